// Package scheduler fires the daily begin/end cycle callbacks at each
// channel's configured local time.
package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tallybot/app/internal/storage"
	"go.uber.org/zap"
)

// Orchestrator is the slice of the tracker the scheduler drives.
type Orchestrator interface {
	ListChannels(ctx context.Context) ([]storage.Channel, error)
	BeginCycle(ctx context.Context, channelID int64) error
	EndCycle(ctx context.Context, channelID int64) error
}

// Config carries the daily trigger times, as channel-local HH:MM.
type Config struct {
	PromptTime string
	RecapTime  string
}

// Scheduler maintains one cron runner with two entries per registered
// channel. Each entry carries a CRON_TZ prefix so it fires at the
// channel's own local time; cross-channel cycles run independently.
type Scheduler struct {
	logger       *zap.Logger
	orchestrator Orchestrator
	cfg          Config

	cron    *cron.Cron
	mu      sync.Mutex
	entries []cron.EntryID
}

// NewScheduler creates a new Scheduler.
func NewScheduler(logger *zap.Logger, orchestrator Orchestrator, cfg Config) *Scheduler {
	return &Scheduler{
		logger:       logger,
		orchestrator: orchestrator,
		cfg:          cfg,
		cron:         cron.New(),
	}
}

// Start loads the channel schedule and runs until the context is canceled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("Starting scheduler",
		zap.String("prompt_time", s.cfg.PromptTime),
		zap.String("recap_time", s.cfg.RecapTime),
	)

	if err := s.Reload(ctx); err != nil {
		return err
	}

	s.cron.Start()
	<-ctx.Done()

	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	return ctx.Err()
}

// Stop halts the cron runner and waits for running jobs to finish.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.logger.Info("Stopping scheduler")
	select {
	case <-s.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("shutdown timeout exceeded")
	}
}

// Reload rebuilds the cron entries from the channel registry. Called at
// startup and again whenever a channel is (re)registered.
func (s *Scheduler) Reload(ctx context.Context) error {
	channels, err := s.orchestrator.ListChannels(ctx)
	if err != nil {
		return fmt.Errorf("scheduler: failed to list channels: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.entries {
		s.cron.Remove(id)
	}
	s.entries = s.entries[:0]

	for _, channel := range channels {
		channelID := channel.ID

		// Recap first, prompt second: the recap closes the prior cycle
		// immediately before the new prompts supersede it.
		recapSpec, err := DailySpec(channel.Timezone, s.cfg.RecapTime)
		if err != nil {
			s.logger.Warn("Skipping channel with unusable recap schedule",
				zap.Int64("channel_id", channelID),
				zap.Error(err),
			)
			continue
		}
		promptSpec, err := DailySpec(channel.Timezone, s.cfg.PromptTime)
		if err != nil {
			s.logger.Warn("Skipping channel with unusable prompt schedule",
				zap.Int64("channel_id", channelID),
				zap.Error(err),
			)
			continue
		}

		recapID, err := s.cron.AddFunc(recapSpec, func() {
			s.runCallback(channelID, "end_cycle", s.orchestrator.EndCycle)
		})
		if err != nil {
			s.logger.Error("Failed to schedule recap", zap.Int64("channel_id", channelID), zap.Error(err))
			continue
		}
		promptID, err := s.cron.AddFunc(promptSpec, func() {
			s.runCallback(channelID, "begin_cycle", s.orchestrator.BeginCycle)
		})
		if err != nil {
			s.cron.Remove(recapID)
			s.logger.Error("Failed to schedule prompt", zap.Int64("channel_id", channelID), zap.Error(err))
			continue
		}

		s.entries = append(s.entries, recapID, promptID)
	}

	s.logger.Info("Schedule reloaded",
		zap.Int("channels", len(channels)),
		zap.Int("entries", len(s.entries)),
	)
	return nil
}

// runCallback invokes one daily callback with a bounded context. A failed
// callback is not retried within the same cycle; the next cycle supersedes
// whatever it left incomplete.
func (s *Scheduler) runCallback(channelID int64, name string, fn func(context.Context, int64) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if err := fn(ctx, channelID); err != nil {
		s.logger.Error("Cycle callback failed",
			zap.String("callback", name),
			zap.Int64("channel_id", channelID),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("Cycle callback completed",
		zap.String("callback", name),
		zap.Int64("channel_id", channelID),
	)
}

// DailySpec renders a cron spec that fires once a day at the given HH:MM
// in the given IANA zone, using the CRON_TZ entry prefix.
func DailySpec(timezone, clock string) (string, error) {
	if _, err := time.LoadLocation(timezone); err != nil {
		return "", fmt.Errorf("scheduler: invalid timezone %q: %w", timezone, err)
	}
	hour, minute, err := ParseClock(clock)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("CRON_TZ=%s %d %d * * *", timezone, minute, hour), nil
}

// ParseClock splits an HH:MM string into its hour and minute.
func ParseClock(clock string) (int, int, error) {
	parts := strings.SplitN(clock, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("scheduler: invalid clock %q, want HH:MM", clock)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("scheduler: invalid hour in %q", clock)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("scheduler: invalid minute in %q", clock)
	}
	return hour, minute, nil
}
