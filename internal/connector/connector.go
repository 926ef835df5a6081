package connector

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	"github.com/joho/godotenv"
	"github.com/tallybot/app/internal/common"
	"github.com/tallybot/app/internal/connector/handlers"
	"github.com/tallybot/app/internal/tracker"
	"go.uber.org/zap"
)

// Connector owns the Telegram session and the routing of inbound updates.
// Commands are answered synchronously through the tracker; forward and
// status observations are pushed onto the tracker's event channel by the
// update handler.
type Connector struct {
	logger    *zap.Logger
	messenger *TelegramMessenger
	handler   *handlers.TelegramHandler
	config    *common.Config
}

// NewServer creates a new connector server.
func NewServer(
	logger *zap.Logger,
	trk *tracker.Tracker,
	messenger *TelegramMessenger,
	eventChan chan<- tracker.ConnectorEvent,
	schedule handlers.ScheduleRefresher,
) *Connector {
	return &Connector{
		logger:    logger,
		messenger: messenger,
		handler:   handlers.NewTelegramHandler(logger, trk, eventChan, schedule),
	}
}

// Start connects to the Telegram Bot API and long-polls for updates until
// the context is canceled.
func (s *Connector) Start(ctx context.Context) error {
	s.logger.Info("Starting connector server (Telegram Bot)")

	if err := godotenv.Load(); err != nil {
		s.logger.Warn("Could not load .env file", zap.Error(err))
	}

	cfg, err := common.LoadConfig()
	if err != nil {
		return fmt.Errorf("connector: failed to load config: %w", err)
	}
	s.config = cfg

	token := cfg.Telegram.Token
	if token == "" {
		return fmt.Errorf("connector: TALLY_TELEGRAM_TOKEN is not set")
	}

	b, err := bot.New(token, bot.WithDefaultHandler(s.handler.HandleUpdate))
	if err != nil {
		return fmt.Errorf("connector: failed to create telegram session: %w", err)
	}
	s.messenger.Bind(b)

	s.logger.Info("Connector started, polling for updates")
	b.Start(ctx)

	s.logger.Info("Connector polling stopped")
	return ctx.Err()
}

// Stop shuts the connector down. The long-poll loop exits with the Start
// context; there is no session teardown beyond that.
func (s *Connector) Stop(ctx context.Context) error {
	s.logger.Info("Stopping connector server")
	return nil
}
