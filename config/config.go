package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli"

	"github.com/nickjhughes/go-wormhole/log"
)

//RelayOptions holds the settings specific to the relay
//server operations
type RelayOptions struct {
	//Host portion for the server to listen on. Defaults to the
	//loopback interface; set it explicitly to serve a wider network
	Host string `json:"host"`

	//Port number for the server to listen on
	Port uint `json:"port"`

	//WelcomeMOTD set's the welcome message to be displayed on connecting
	//clients
	WelcomeMOTD string `json:"welcomeMOTD"`

	//WelcomeError is displayed to clients, and if provided will have
	//them disconnect immediately
	WelcomeError string `json:"welcomeError"`

	//DBFile path to the SQLite file used for usage records.
	//Leaving this empty disables usage recording entirely; the
	//rendezvous state itself always lives in memory
	DBFile string `json:"dbFile"`

	//AllowList allows clients to request a list of active nameplates
	AllowList bool `json:"allowList"`
}

//Options is a JSON serializable object holding the configuration
//settings for running a wormhole relay server.
//
//These options can be loaded from file, or filled in from command line.
//The intended hierarchy is CLI options > File > Defaults
type Options struct {
	//Relay holds the relay portion options
	Relay RelayOptions `json:"relay"`

	//Logging holds the options settings for logging operations
	Logging log.Options `json:"logging"`
}

//Opts is the globally loaded configuration, set once at startup
var Opts *Options

//DefaultOptions contains the preset default options
//for a server.
var DefaultOptions = Options{
	Relay: RelayOptions{
		Host:      "127.0.0.1",
		Port:      4000,
		DBFile:    "",
		AllowList: true,
	},

	Logging: log.DefaultOptions,
}

//Equals returns true if the supplied options matches these ones (this).
//Performs this as a deep-equals operation
func (o Options) Equals(opts Options) bool {
	return o.Relay == opts.Relay &&
		o.Logging.Equals(opts.Logging)
}

//Verify checks the Options fields for validity.
//Returns an error if a problem is incountered
func (o Options) Verify() error {
	return o.Logging.Verify()
}

//MergeFrom combines the fields from the supplied Options parameter
//into this object (smartly where applicable) and run Verify on itself,
//returning the validation error if any happened.
func (o *Options) MergeFrom(opt Options) error {
	o.Relay = opt.Relay

	err := o.Logging.MergeFrom(opt.Logging)
	if err != nil {
		return err
	}
	return o.Verify()
}

//ReadOptionsFromFile opens the provided JSON file and marshals the data
//into a Options object.
//Returns the results, and the first error encountered.
//The error is either validation error, or JSON encoding error.
func ReadOptionsFromFile(filename string) (Options, error) {
	res := DefaultOptions

	file, err := os.ReadFile(filename)
	if err != nil {
		return res, err
	}

	err = json.Unmarshal(file, &res)
	if err != nil {
		return res, err
	}

	return res, res.Verify()
}

//NewOptions compiles the Options object from the provided sources.
//Will use a custom defaults, or if nil the DefaultOptions object is used.
//Then will search the fileName json file (if provided) for options.
//Then will combine the CLI options provided from main().
//These options cascade in order where applicable for the option.
//Will run the Options.Verify() method and return the error after compilation
func NewOptions(defaults *Options, filename string, ctx *cli.Context) (Options, error) {
	res := DefaultOptions
	if defaults != nil {
		res = *defaults
	}

	if len(filename) > 0 {
		fmt.Printf("reading configuration from '%s'\n", filename)
		file, err := ReadOptionsFromFile(filename)
		if err != nil {
			return res, err
		}
		err = res.MergeFrom(file)
		if err != nil {
			return res, err
		}
	}

	if ctx != nil {
		applyCLIOptions(ctx, &res)
	}

	return res, res.Verify()
}

//applyCLIOptions writes the options presented in the CLI arguments to
//the provided Options object, overriding anything there previously
func applyCLIOptions(c *cli.Context, opts *Options) {
	if c == nil || opts == nil { //Safe-gaurd
		return
	}

	if c.String("config") != "" {
		//config file was used, ignore the flags
		return
	}

	opts.Relay.Host = c.String("host")
	opts.Relay.Port = c.Uint("port")

	opts.Relay.DBFile = c.String("db")

	if c.String("motd") != "" {
		opts.Relay.WelcomeMOTD = c.String("motd")
	}
	if c.String("welcome-error") != "" {
		opts.Relay.WelcomeError = c.String("welcome-error")
	}

	if c.Bool("no-list") {
		opts.Relay.AllowList = false
	}

	opts.Logging.Path = c.String("log")

	if str := c.String("log-level"); str != "" {
		opts.Logging.Level = str
	}

	if c.Bool("log-blur") {
		opts.Logging.BlurTimes = true
	}
}
