package client

import (
	"bytes"
	crand "crypto/rand"
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

//KeyExchange negotiates the 32-byte shared secret over the pake
//phase. Start yields this side's payload to publish; Finish
//consumes the peer's payload and returns the secret. Both sides
//must arrive at the same bytes
type KeyExchange interface {
	Start() ([]byte, error)
	Finish(peer []byte) ([]byte, error)
}

const contribSize = 32

//ErrExchange signals a pake payload the exchange cannot use
var ErrExchange = errors.New("malformed key exchange payload")

//codeExchange derives the shared secret from the wormhole code and
//both published contributions. Each side publishes random bytes;
//the secret is an HKDF over the code keyed with the transcript, so
//both sides compute the same value and a listener without the code
//cannot. It fills the KeyExchange slot until a full PAKE is wired
//in; swap implementations through Config.NewKeyExchange
type codeExchange struct {
	code    string
	contrib []byte
}

//NewCodeExchange builds the default KeyExchange over a code
func NewCodeExchange(code string) KeyExchange {
	return &codeExchange{code: code}
}

func (x *codeExchange) Start() ([]byte, error) {
	x.contrib = make([]byte, contribSize)
	if _, err := crand.Read(x.contrib); err != nil {
		return nil, err
	}
	return x.contrib, nil
}

func (x *codeExchange) Finish(peer []byte) ([]byte, error) {
	if len(peer) != contribSize || x.contrib == nil {
		return nil, ErrExchange
	}

	//Order the transcript so both sides agree on it
	lo, hi := x.contrib, peer
	if bytes.Compare(lo, hi) > 0 {
		lo, hi = hi, lo
	}

	info := append([]byte("wormhole:pake:"), lo...)
	info = append(info, hi...)

	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(x.code), nil, info)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}
