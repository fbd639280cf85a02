package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli"

	"github.com/nickjhughes/go-wormhole/config"
	"github.com/nickjhughes/go-wormhole/db"
	"github.com/nickjhughes/go-wormhole/log"
	"github.com/nickjhughes/go-wormhole/relay"
)

const (
	//Version holds the CLI application version
	Version = "0.1.0"
)

const usageText = `wormhole-server [global options...] [command]

   Default command is "serve".
   If the config option is provided, then all the other options are
   ignored and the json file is used instead.
`

var (
	cfg config.Options

	chanQuit = make(chan bool)
)

func main() {
	app := cli.NewApp()
	app.Name = "Wormhole Relay Server"
	app.Usage = "rendezvous server for wormhole clients exchanging text and files"
	app.UsageText = usageText
	app.HelpName = "wormhole-server"
	app.Version = Version

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "configuration JSON `FILE` to use instead of options (empty = no config)",
		},

		cli.StringFlag{
			Name:  "host",
			Usage: "`HOST` address or IP for the listening interface",
			Value: config.DefaultOptions.Relay.Host,
		},
		cli.UintFlag{
			Name:  "port",
			Usage: "`PORT` number to listen on",
			Value: config.DefaultOptions.Relay.Port,
		},

		cli.StringFlag{
			Name:  "motd",
			Usage: "`MESSAGE` of the day shown to connecting clients",
		},
		cli.StringFlag{
			Name:  "welcome-error",
			Usage: "`MESSAGE` that refuses service, sent to every client on connect",
		},

		cli.StringFlag{
			Name:  "db, d",
			Usage: "path to SQLite `FILE` for usage records (empty disables recording)",
			Value: config.DefaultOptions.Relay.DBFile,
		},
		cli.BoolFlag{
			Name:  "no-list",
			Usage: "disable the 'list' request",
		},

		cli.StringFlag{
			Name:  "log, l",
			Usage: "`FILE` to write usage/error logs to (empty does not write logs)",
			Value: config.DefaultOptions.Logging.Path,
		},
		cli.StringFlag{
			Name:  "log-level, L",
			Usage: "logging `LEVEL` to use options are [DEBUG|INFO|WARN|ERROR]",
			Value: config.DefaultOptions.Logging.Level,
		},
		cli.BoolFlag{
			Name:  "log-blur",
			Usage: "round out access times in logs to improve privacy",
		},
	}

	app.Commands = []cli.Command{
		cli.Command{
			Name:   "serve",
			Usage:  "serve rendezvous requests (default command)",
			Action: runServer,
			Flags:  app.Flags,
		},

		cli.Command{
			Name:   "stats",
			Usage:  "summarize the recorded usage by mood",
			Action: runStats,
			Flags: []cli.Flag{
				cli.StringFlag{
					Name:  "config, c",
					Usage: "configuration JSON `FILE` to use instead of options (empty = no config)",
				},
				cli.StringFlag{
					Name:  "db, d",
					Usage: "path to SQLite `FILE` for usage records",
					Value: config.DefaultOptions.Relay.DBFile,
				},
				cli.StringFlag{
					Name:  "log, l",
					Usage: "`FILE` to write usage/error logs to (empty does not write logs)",
					Value: config.DefaultOptions.Logging.Path,
				},
				cli.StringFlag{
					Name:  "log-level, L",
					Usage: "logging `LEVEL` to use options are [DEBUG|INFO|WARN|ERROR]",
					Value: config.DefaultOptions.Logging.Level,
				},
			},
		},
	}

	app.Action = runServer

	err := app.Run(os.Args)
	if err != nil {
		fmt.Println(err.Error())
		os.Exit(1)
	}
}

//common initialization procedures
func initialize(c *cli.Context) error {
	var err error

	//Load the configuration (from file if needed)
	cfgFile := c.String("config")
	cfg, err = config.NewOptions(nil, cfgFile, c)
	if err != nil {
		return fmt.Errorf("failed to parse configuration options; error = %s", err.Error())
	}
	config.Opts = &cfg //Make it global

	//Startup logging as soon as possible
	if err := log.Initialize(cfg.Logging); err != nil {
		return fmt.Errorf("failed to startup server due to logging issue; error = %s", err.Error())
	}
	log.Info("initialized logging")

	return nil
}

//performs the shutdown steps for graceful closing of the server
func shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*30)
	defer cancel()

	relay.Shutdown(ctx)
}

//holds the main thread until either an interrupt from OS, or the chanQuit receives a message
func blockUntilSignalOrTermination() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	//Block until terminated
	select {
	case <-sigChan:
		log.Info("closing due to interrupt")
	case <-chanQuit:
		log.Info("closing from quit message")
	}
}

func runServer(c *cli.Context) error {
	if err := initialize(c); err != nil {
		return err
	}

	if err := relay.Initialize(); err != nil {
		log.Err("failed to start relay service", err)
		return err
	}
	relay.Start()

	blockUntilSignalOrTermination()
	shutdown()

	return nil
}

func runStats(c *cli.Context) error {
	if err := initialize(c); err != nil {
		return err
	}

	if cfg.Relay.DBFile == "" {
		return fmt.Errorf("stats requires a usage database, set one with --db")
	}

	if err := db.Initialize(); err != nil {
		return err
	}
	defer db.Close()

	moods, err := db.Stats()
	if err != nil {
		return err
	}

	if len(moods) == 0 {
		fmt.Println("no usage recorded yet")
		return nil
	}

	for _, mc := range moods {
		fmt.Printf("%-8s %d\n", mc.Mood, mc.Count)
	}
	return nil
}
