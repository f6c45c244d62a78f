package main

import (
	"fmt"
	"os"

	"github.com/matheus3301/wppbridge/internal/config"
	"github.com/matheus3301/wppbridge/internal/daemon"
	"github.com/matheus3301/wppbridge/internal/session"
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func run(ctx *cli.Context) error {
	cfg, err := config.LoadOrDefault(ctx.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	name := session.Resolve(ctx.String("session"), cfg)
	if err := session.ValidateName(name); err != nil {
		return err
	}
	if err := session.For(name).Ensure(); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	p := daemon.Params{SessionName: name, Config: cfg}
	if !ctx.Bool("quiet") {
		p.Console = os.Stderr
	}
	app := fx.New(
		daemon.Module(p),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.Named("fx")}
		}),
	)
	if err := app.Err(); err != nil {
		return err
	}
	app.Run()
	return nil
}

func main() {
	app := &cli.App{
		Name:  "wppd",
		Usage: "Run the WhatsApp session daemon",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "session",
				Usage: "session name (overrides config default)",
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to config file",
				Value: session.ConfigPath(),
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "log to the session log file only",
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
