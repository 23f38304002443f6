// -- cmd/run.go --
package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/halcyonqa/halcyon/internal/config"
	"github.com/halcyonqa/halcyon/internal/hierarchy"
	"github.com/halcyonqa/halcyon/internal/monitor"
	"github.com/halcyonqa/halcyon/internal/observability"
	"github.com/halcyonqa/halcyon/internal/session"
)

var capProfiles []string

// runCmd connects a session per capability profile and verifies each one
// end to end: session creation, hierarchy capture, clean teardown. Profiles
// run in parallel; one failure cancels the rest.
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect device sessions and verify the pipeline end to end.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logger := observability.GetLogger()
		profiles := capProfiles
		if len(profiles) == 0 {
			profiles = []string{appConfig.Driver.Capabilities}
		}

		g, gctx := errgroup.WithContext(ctx)
		for _, profile := range profiles {
			profile := profile
			g.Go(func() error {
				return runSession(gctx, appConfig, profile, logger)
			})
		}
		if err := g.Wait(); err != nil {
			return fmt.Errorf("session check failed: %w", err)
		}
		logger.Info("All sessions verified.", zap.Int("sessions", len(profiles)))
		return nil
	},
}

// runSession drives one device session through a connect/capture/close
// cycle against the given capability profile.
func runSession(ctx context.Context, base *config.Config, profile string, logger *zap.Logger) error {
	cfg := *base
	cfg.Driver.Capabilities = profile

	s, err := session.Connect(ctx, &cfg, nil, logger)
	if err != nil {
		return fmt.Errorf("profile %q: %w", profile, err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if cerr := s.Close(closeCtx); cerr != nil {
			logger.Warn("Session teardown failed.", zap.Error(cerr))
		}
	}()

	var mon *monitor.Monitor
	if cfg.Monitor.Enabled {
		if prober, ok := s.Driver().(monitor.Prober); ok {
			mon = monitor.New(prober, cfg.Monitor.Interval, logger)
			mon.Start(ctx)
			defer mon.Stop()
		}
	}

	source, err := s.Driver().PageSource(ctx)
	if err != nil {
		return fmt.Errorf("profile %q: capture hierarchy: %w", profile, err)
	}
	snap, err := hierarchy.Parse(source)
	if err != nil {
		return fmt.Errorf("profile %q: parse hierarchy: %w", profile, err)
	}

	logger.Info("Session verified.",
		zap.String("session_id", s.ID()),
		zap.String("profile", profile),
		zap.Int("hierarchy_nodes", snap.Len()),
		zap.Any("cache", s.CacheStats()))
	return nil
}

func init() {
	runCmd.Flags().StringSliceVar(&capProfiles, "caps", nil,
		"capability profile YAML file(s); repeat or comma-separate for parallel sessions")
	rootCmd.AddCommand(runCmd)
}
