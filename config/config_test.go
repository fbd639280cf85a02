package config

import (
	"encoding/json"
	"testing"
)

func testOptions(opt Options, t *testing.T) {
	err := opt.Verify()
	if err != nil {
		t.Error(err)
	}

	//Check json marshaling
	jstr, err := json.Marshal(opt)
	if err != nil {
		t.Error(err)
	}

	var jobj Options
	err = json.Unmarshal(jstr, &jobj)
	if err != nil {
		t.Error(err)
	}

	err = jobj.Verify()
	if err != nil {
		t.Error(err)
	}

	if !jobj.Equals(opt) {
		t.Error("unmarshalled version did not equate to original")
	}
}

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions

	testOptions(opts, t)
}

func TestDefaultEndpoint(t *testing.T) {
	if DefaultOptions.Relay.Host != "127.0.0.1" {
		t.Error("default host should be the loopback interface")
	}
	if DefaultOptions.Relay.Port != 4000 {
		t.Error("default port should be 4000")
	}
}

func TestOptionsLogLevel(t *testing.T) {
	opts := DefaultOptions
	opts.Logging.Level = "DUMMY"

	err := opts.Verify()
	if err == nil {
		t.Error("failed to catch bad logging level")
	}
}

func TestOptionsMerge(t *testing.T) {
	tgt := DefaultOptions

	opts := DefaultOptions
	opts.Relay.Port = 4444
	opts.Relay.AllowList = false

	if err := tgt.MergeFrom(opts); err != nil {
		t.Error(err)
	}
	if tgt.Relay.Port != 4444 {
		t.Error("merge did not carry the relay port")
	}
	if tgt.Relay.AllowList {
		t.Error("merge did not carry the list setting")
	}

	opts.Logging.Level = "DUMMY"
	if err := tgt.MergeFrom(opts); err == nil {
		t.Error("failed to find bad logging level")
	}
}
