package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/matheus3301/wppbridge/internal/config"
	"github.com/matheus3301/wppbridge/internal/lock"
	"github.com/matheus3301/wppbridge/internal/session"
	"github.com/matheus3301/wppbridge/internal/tui"
	"github.com/matheus3301/wppbridge/internal/tui/client"
	"github.com/urfave/cli/v2"
)

const (
	probeTimeout = 2 * time.Second
	startTimeout = 10 * time.Second
)

func run(ctx *cli.Context) error {
	cfg, err := config.LoadOrDefault(session.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	sessionName := session.Resolve(ctx.String("session"), cfg)
	if err := session.ValidateName(sessionName); err != nil {
		return err
	}

	paths := session.For(sessionName)
	socketPath := paths.Socket

	// Probe daemon health; auto-start if needed. A held lock means a
	// daemon is already coming up, so only wait for it.
	if !client.Probe(socketPath, probeTimeout) {
		if info, held, _ := lock.Inspect(paths.Lock); held {
			fmt.Fprintf(os.Stderr, "waiting for daemon (pid %d) of session %q...\n", info.PID, sessionName)
		} else {
			fmt.Fprintf(os.Stderr, "daemon not running for session %q, starting...\n", sessionName)
			if err := startDaemon(sessionName); err != nil {
				return fmt.Errorf("failed to start daemon: %w", err)
			}
		}
		wait, cancel := context.WithTimeout(ctx.Context, startTimeout)
		defer cancel()
		if err := client.Wait(wait, socketPath, 300*time.Millisecond); err != nil {
			return err
		}
	}

	c, err := client.New(socketPath)
	if err != nil {
		return fmt.Errorf("connect to daemon: %w", err)
	}
	defer func() { _ = c.Close() }()

	return tui.NewApp(c, sessionName).Run()
}

func startDaemon(sessionName string) error {
	executable, err := os.Executable()
	if err != nil {
		return err
	}
	wppd := filepath.Join(filepath.Dir(executable), "wppd")

	if _, err := os.Stat(wppd); err != nil {
		wppd = "wppd"
	}

	cmd := exec.Command(wppd, "--session", sessionName, "--quiet")
	// Startup errors stay visible but log lines would garble the screen.
	// The new session keeps the daemon alive after the terminal closes.
	cmd.Stderr = os.Stderr
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := cmd.Start(); err != nil {
		return err
	}
	return cmd.Process.Release()
}

func main() {
	app := &cli.App{
		Name:  "wpptui",
		Usage: "Terminal client for a wppd session, starting the daemon when needed",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "session",
				Usage: "session name (overrides config default)",
			},
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
