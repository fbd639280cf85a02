package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/urfave/cli"

	"github.com/nickjhughes/go-wormhole/client"
	"github.com/nickjhughes/go-wormhole/log"
)

const (
	//Version holds the CLI application version
	Version = "0.1.0"
)

func main() {
	app := cli.NewApp()
	app.Name = "Wormhole"
	app.Usage = "exchange text through a wormhole relay using a short spoken code"
	app.HelpName = "wormhole"
	app.Version = Version

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "relay-url",
			Usage: "websocket `URL` of the relay server",
			Value: client.DefaultRelayURL,
		},
		cli.StringFlag{
			Name:  "app-id",
			Usage: "application `NAMESPACE` on the relay",
			Value: client.DefaultAppID,
		},
		cli.StringFlag{
			Name:  "log-level, L",
			Usage: "logging `LEVEL` to use options are [DEBUG|INFO|WARN|ERROR]",
			Value: "WARN",
		},
	}

	app.Commands = []cli.Command{
		cli.Command{
			Name:   "send",
			Usage:  "offer a text message and print the code to speak to the receiver",
			Action: runSend,
			Flags: append([]cli.Flag{
				cli.StringFlag{
					Name:  "text, t",
					Usage: "`MESSAGE` to send",
				},
			}, app.Flags...),
		},

		cli.Command{
			Name:      "receive",
			Usage:     "collect a text message using a code obtained from the sender",
			ArgsUsage: "CODE",
			Action:    runReceive,
			Flags:     app.Flags,
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

func initialize(c *cli.Context) (client.Config, error) {
	cfg := client.Config{
		RelayURL: c.String("relay-url"),
		AppID:    c.String("app-id"),
	}

	err := log.Initialize(log.Options{Level: c.String("log-level")})
	return cfg, err
}

func runSend(c *cli.Context) error {
	text := c.String("text")
	if text == "" {
		return fmt.Errorf("nothing to send, use --text")
	}

	cfg, err := initialize(c)
	if err != nil {
		return err
	}

	//An interrupt aborts the exchange; the relay notices the
	//dropped socket and cleans up after us
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err = client.Send(ctx, cfg, text, func(code string) {
		fmt.Printf("wormhole code is: %s\n", code)
		fmt.Println("on the other computer, run: wormhole receive " + code)
	})
	if err != nil {
		return err
	}

	fmt.Println("text sent")
	return nil
}

func runReceive(c *cli.Context) error {
	code := c.Args().First()
	if code == "" {
		return fmt.Errorf("no code given, usage: wormhole receive CODE")
	}

	cfg, err := initialize(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	text, err := client.Receive(ctx, cfg, code)
	if err != nil {
		return err
	}

	fmt.Println(text)
	return nil
}
