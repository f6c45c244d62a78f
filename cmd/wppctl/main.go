package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/matheus3301/wppbridge/internal/config"
	"github.com/matheus3301/wppbridge/internal/session"
	"github.com/matheus3301/wppbridge/internal/tui/client"
	"github.com/urfave/cli/v2"
)

type contextKey int

const contextKeyClient contextKey = iota

func getClient(ctx *cli.Context) *client.Client {
	return ctx.Context.Value(contextKeyClient).(*client.Client)
}

// connectDaemon resolves the session and dials its daemon. The daemon is
// not started on demand; wpptui does that.
func connectDaemon(ctx *cli.Context) error {
	cfg, err := config.LoadOrDefault(session.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	name := session.Resolve(ctx.String("session"), cfg)
	if err := session.ValidateName(name); err != nil {
		return err
	}
	c, err := client.New(session.For(name).Socket)
	if err != nil {
		return fmt.Errorf("cannot connect to daemon for session %q: %w", name, err)
	}
	ctx.Context = context.WithValue(ctx.Context, contextKeyClient, c)
	return nil
}

func closeDaemon(ctx *cli.Context) error {
	if c, ok := ctx.Context.Value(contextKeyClient).(*client.Client); ok {
		return c.Close()
	}
	return nil
}

func main() {
	app := &cli.App{
		Name:  "wppctl",
		Usage: "Control a running wppd session daemon",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "session",
				Usage: "session name (overrides config default)",
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "output in JSON format",
			},
		},
		Before: connectDaemon,
		After:  closeDaemon,
		Commands: []*cli.Command{
			statusCommand,
			connectCommand,
			loginCommand,
			logoutCommand,
			chatsCommand,
			chatCommand,
			messagesCommand,
			sendCommand,
			readCommand,
			searchCommand,
			watchCommand,
			sessionsCommand,
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := app.RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
