package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nfrund/actwatch/internal/clock"
	"github.com/nfrund/actwatch/internal/config"
	"github.com/nfrund/actwatch/internal/logging"
	"github.com/nfrund/actwatch/internal/logsource"
	"github.com/nfrund/actwatch/internal/overlay"
	"github.com/nfrund/actwatch/internal/profile"
	"github.com/nfrund/actwatch/internal/pubsub"
	"github.com/nfrund/actwatch/internal/server"
	"github.com/nfrund/actwatch/internal/session"
	"github.com/nfrund/actwatch/internal/websocket"
	"github.com/spf13/afero"
)

func main() {
	if err := run(); err != nil {
		slog.Error("actwatch stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	logger := logging.New()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	fs := afero.NewOsFs()
	prof, err := profile.Load(fs, cfg.ProfilePath)
	if err != nil {
		return err
	}
	logger.Info("Loaded profile", "name", prof.Name, "abilities", len(prof.Abilities), "bindings", len(prof.Bindings))

	opts := []session.Option{
		session.WithLogger(logger.With("component", "session")),
		session.WithIdleTimeout(cfg.IdleTimeout),
		session.WithIdlePoll(cfg.IdlePoll),
		session.WithLeniency(cfg.BufferLeniency),
		session.WithCombatAbilities(cfg.CombatAbilities...),
		session.WithPrimaryPlayer(cfg.PrimaryPlayer),
	}
	if cfg.FeedDetection() {
		opts = append(opts, session.WithDetection(session.DetectFeed))
	}
	eng, err := session.New(prof.Descriptors(), prof, opts...)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	defer eng.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := pubsub.NewWatermillBridge(logger.With("component", "pubsub"))
	defer bus.Close()

	relay := pubsub.NewRelay(bus, logger.With("component", "relay"))
	relay.Attach(eng.Hub())
	defer relay.Detach()

	stream := websocket.NewStream(logger.With("component", "stream"))
	go stream.Run(ctx)
	if err := stream.Subscribe(ctx, bus, pubsub.RelayTopics()...); err != nil {
		return fmt.Errorf("subscribe stream: %w", err)
	}

	srv := server.New(eng, stream,
		server.WithLogger(logger.With("component", "server")),
		server.WithClock(clock.Real{}.Now),
	)

	errCh := make(chan error, 2)
	go func() { errCh <- srv.Start(ctx, cfg.HTTPAddr) }()
	go func() { errCh <- runSource(ctx, cfg, fs, eng, logger) }()

	// Either component stopping takes the other down with it.
	var firstErr error
	for i := 0; i < 2; i++ {
		if err := <-errCh; err != nil && firstErr == nil {
			firstErr = err
		}
		stop()
	}
	logger.Info("actwatch shut down")
	return firstErr
}

func runSource(ctx context.Context, cfg *config.Config, fs afero.Fs, eng *session.Engine, logger *slog.Logger) error {
	if cfg.Source == config.SourceOverlay {
		client := overlay.NewClient(cfg.OverlayURL,
			overlay.WithLogger(logger.With("component", "overlay")),
		)
		return client.Run(ctx, eng)
	}

	follower := logsource.NewFollower(fs, cfg.LogDir,
		logsource.WithStartAtEnd(cfg.StartAtEnd),
		logsource.WithPollInterval(cfg.PollInterval),
		logsource.WithRefreshInterval(cfg.RefreshInterval),
		logsource.WithLogger(logger.With("component", "logsource")),
	)
	logger.Info("Following log directory", "dir", cfg.LogDir)
	return eng.Follow(ctx, follower)
}
