package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tallybot/app/internal/common"
	"github.com/tallybot/app/internal/connector"
	"github.com/tallybot/app/internal/scheduler"
	"github.com/tallybot/app/internal/storage"
	"github.com/tallybot/app/internal/tracker"
	"go.uber.org/zap"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	logger, err := initLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	rootCmd := &cobra.Command{
		Use:     "tallybot",
		Short:   "tallybot - daily accountability coordinator",
		Long:    `tallybot posts daily accountability prompts to Telegram channels, tracks declared tasks through their lifecycle, and publishes a recap.`,
		Version: fmt.Sprintf("%s (built at %s)", Version, BuildTime),
	}

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the tracker, scheduler and Telegram connector",
		Long:  `Start the long-running bot: the task tracker, the per-channel daily scheduler, and the Telegram update loop.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(logger)
		},
	}

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Check application health status",
		Long:  `Check if the application is running and healthy.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("OK")
			return nil
		},
	}

	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(buildChannelCommands(logger))
	rootCmd.AddCommand(buildTaskCommands(logger))

	if err := rootCmd.Execute(); err != nil {
		logger.Error("Command execution failed", zap.Error(err))
		os.Exit(1)
	}
}

// initLogger initializes the zap logger.
func initLogger() (*zap.Logger, error) {
	env := os.Getenv("TALLY_ENV")
	logLevel := os.Getenv("TALLY_LOG_LEVEL")

	var config zap.Config
	if env == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
	}

	if logLevel != "" {
		level, err := zap.ParseAtomicLevel(logLevel)
		if err == nil {
			config.Level = level
		}
	}

	return config.Build()
}

// runStart wires the components together and runs them until a signal
// or a fatal error arrives.
func runStart(logger *zap.Logger) error {
	logger.Info("Starting tallybot",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	cfg, err := common.LoadConfig()
	if err != nil {
		return err
	}

	repo, cleanup, err := initStorage(logger)
	if err != nil {
		logger.Error("Failed to initialize storage", zap.Error(err))
		return err
	}
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	eventChan := make(chan tracker.ConnectorEvent, 100)

	messenger := connector.NewTelegramMessenger(logger.Named("connector"))
	trackerServer := tracker.NewTracker(logger.Named("tracker"), repo, messenger, eventChan, tracker.Settings{
		DefaultTimezone: cfg.Cycle.DefaultTimezone,
		SendDelay:       cfg.Cycle.SendDelay,
	})
	schedulerServer := scheduler.NewScheduler(logger.Named("scheduler"), trackerServer, scheduler.Config{
		PromptTime: cfg.Cycle.PromptTime,
		RecapTime:  cfg.Cycle.RecapTime,
	})
	connectorServer := connector.NewServer(logger.Named("connector"), trackerServer, messenger, eventChan, schedulerServer)

	errChan := make(chan error, 3)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := trackerServer.Start(ctx); err != nil && err != context.Canceled {
			errChan <- fmt.Errorf("tracker error: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := schedulerServer.Start(ctx); err != nil && err != context.Canceled {
			errChan <- fmt.Errorf("scheduler error: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := connectorServer.Start(ctx); err != nil && err != context.Canceled {
			errChan <- fmt.Errorf("connector error: %w", err)
		}
	}()

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received")
		cancel()
	case err := <-errChan:
		logger.Error("Server error", zap.Error(err))
		cancel()
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	shutdownErrChan := make(chan error, 3)

	go func() {
		shutdownErrChan <- trackerServer.Stop(shutdownCtx)
	}()
	go func() {
		shutdownErrChan <- schedulerServer.Stop(shutdownCtx)
	}()
	go func() {
		shutdownErrChan <- connectorServer.Stop(shutdownCtx)
	}()

	go func() {
		wg.Wait()
		close(errChan)
	}()

	for i := 0; i < 3; i++ {
		if err := <-shutdownErrChan; err != nil {
			logger.Error("Shutdown error", zap.Error(err))
		}
	}

	logger.Info("Servers stopped gracefully")
	return nil
}

func initStorage(logger *zap.Logger) (*storage.Repository, func(), error) {
	cfg, err := storage.ConfigFromEnv()
	if err != nil {
		return nil, func() {}, err
	}

	db, err := storage.Open(cfg)
	if err != nil {
		return nil, func() {}, err
	}

	if err := storage.AutoMigrate(db); err != nil {
		_ = storage.Close(db)
		return nil, func() {}, err
	}

	repo, err := storage.NewRepository(db)
	if err != nil {
		_ = storage.Close(db)
		return nil, func() {}, err
	}

	cleanup := func() {
		if err := storage.Close(db); err != nil {
			logger.Warn("Failed to close storage", zap.Error(err))
		}
	}

	return repo, cleanup, nil
}

// newTracker builds a tracker over the store for one-shot CLI use. CLI
// inspection never talks to Telegram, so the messenger stays unbound.
func newTracker(logger *zap.Logger) (*tracker.Tracker, func(), error) {
	repo, cleanup, err := initStorage(logger)
	if err != nil {
		return nil, func() {}, err
	}

	cfg, err := common.LoadConfig()
	if err != nil {
		cleanup()
		return nil, func() {}, err
	}

	eventChan := make(chan tracker.ConnectorEvent, 10)
	messenger := connector.NewTelegramMessenger(logger.Named("connector"))
	trk := tracker.NewTracker(logger.Named("tracker"), repo, messenger, eventChan, tracker.Settings{
		DefaultTimezone: cfg.Cycle.DefaultTimezone,
		SendDelay:       cfg.Cycle.SendDelay,
	})
	return trk, cleanup, nil
}
