package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	appLog "syllabuscal/internal/log"
	"syllabuscal/internal/scheduler"
	"syllabuscal/internal/web"
)

var serveFlags struct {
	listen string
	once   bool
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveFlags.listen, "listen", "", "HTTP listen address (overrides config if set)")
	serveCmd.Flags().BoolVar(&serveFlags.once, "once", false, "refresh the feed once, write the calendar and exit")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and keep the calendar feed fresh",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveFlags.listen != "" {
		cfg.Listen = serveFlags.listen
	}
	a, err := newApp()
	if err != nil {
		return err
	}

	appLog.Info("effective config",
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"refresh", cfg.RefreshCron,
		"sources", len(cfg.Sources),
		"inference", cfg.Inference.Enabled,
		"max_concurrent", cfg.MaxConcurrent,
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if serveFlags.once {
		snap, err := a.RefreshFeed(ctx)
		if err != nil {
			return err
		}
		return writeOutput(snap.Calendar.Filename, snap.Calendar.Data)
	}

	sched, err := scheduler.New("feed", cfg.RefreshCron, 2*time.Minute, func(ctx context.Context) error {
		_, err := a.RefreshFeed(ctx)
		return err
	})
	if err != nil {
		return err
	}
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	// First build runs in the background so the listener comes up at once;
	// /calendar.ics answers 503 until it lands.
	go sched.RunNow()

	srv := web.NewServer(a)
	if err := srv.ListenAndServe(ctx, cfg.Listen); err != nil {
		return err
	}
	appLog.Info("syllabuscal exiting", "pid", os.Getpid())
	return nil
}
