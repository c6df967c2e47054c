// main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"campusquest/database"
	"campusquest/handlers"
	"campusquest/middleware"
)

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "campusquest",
		Short:        "Campus gamification API: quizzes, flashcards, challenges and XP",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if configPath != "" {
				os.Setenv("CONFIG_PATH", configPath)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("CONFIG_PATH"), "path to YAML config")
	cmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the HTTP server (default)",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the database schema",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigrate()
			},
		},
		&cobra.Command{
			Use:   "sweep",
			Short: "Reset challenge completions left over from earlier days",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runSweep(cmd.Context())
			},
		},
	)
	return cmd
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if err := database.RunMigrations(a.db); err != nil {
		return err
	}

	app := handlers.NewApp(a.cfg, a.handlers)

	stop := make(chan struct{})
	defer close(stop)
	for _, rl := range []*middleware.RateLimiter{a.handlers.GeneralLimiter, a.handlers.AuthLimiter} {
		if rl != nil {
			rl.StartPruning(5*time.Minute, 30*time.Minute, stop)
		}
	}

	a.sweeper.Start(ctx)
	defer a.sweeper.Stop()

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("server starting", "port", a.cfg.Server.Port, "env", a.cfg.Server.Env)
		errCh <- app.Listen(":" + a.cfg.Server.Port)
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sig)

	select {
	case err := <-errCh:
		return err
	case s := <-sig:
		a.log.Info("shutting down", "signal", s.String())
	case <-ctx.Done():
	}
	return app.ShutdownWithTimeout(10 * time.Second)
}

func runMigrate() error {
	a, err := bootstrap(context.Background())
	if err != nil {
		return err
	}
	defer a.close()
	if err := database.RunMigrations(a.db); err != nil {
		return err
	}
	a.log.Info("migrations applied", "driver", a.cfg.Database.Driver)
	return nil
}

func runSweep(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	n, err := a.sweeper.Sweep(ctx)
	if err != nil {
		return err
	}
	a.log.Info("sweep finished", "reset", n)
	return nil
}
