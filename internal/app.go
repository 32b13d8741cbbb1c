// Package internal assembles strategies, transports and storage into a runnable process.
package internal

import (
	"context"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/rsibot/config"
	"github.com/vadiminshakov/rsibot/internal/command"
	"github.com/vadiminshakov/rsibot/internal/engine"
	"github.com/vadiminshakov/rsibot/internal/events"
	"github.com/vadiminshakov/rsibot/internal/registry"
	"github.com/vadiminshakov/rsibot/internal/storage/journal"
	"github.com/vadiminshakov/rsibot/internal/transport/telegram"
	"github.com/vadiminshakov/rsibot/internal/web"
	"github.com/vadiminshakov/rsibot/pkg/retrier"
)

const (
	shutdownTimeout = 30 * time.Second
	notifyBuffer    = 128
)

// App owns every long-lived component of the process.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	registry    *registry.Registry
	dispatcher  *command.Dispatcher
	broadcaster *events.Broadcaster
	journal     *journal.Store
	streamFrom  uint64
	prom        *prometheus.Registry
	chats       *telegram.Chats
}

// NewApp builds the strategy registry for cfg on top of the exchange client.
func NewApp(logger *zap.Logger, cfg config.Config, client any) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	provider, err := newKlineProvider(client)
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:         cfg,
		logger:      logger,
		registry:    registry.New(logger),
		broadcaster: events.NewBroadcaster(notifyBuffer),
		prom:        prometheus.NewRegistry(),
		chats:       telegram.NewChats(cfg.Telegram.AllowedChatID),
	}
	a.prom.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	sink := events.Multi{a.broadcaster}
	if cfg.JournalDir != "" {
		a.journal, err = journal.Open(logger, cfg.JournalDir)
		if err != nil {
			return nil, err
		}
		a.streamFrom = a.journal.CurrentIndex()
		sink = append(sink, a.journal)
	}

	metrics := engine.NewMetrics(a.prom)
	loop := engine.NewLoop(logger, engine.LoopConfig{
		PollInterval: cfg.PollInterval,
		FetchTimeout: cfg.FetchTimeout,
		Retrier:      a.newRetrier(),
	}, metrics)

	factory := newStrategyFactory(logger, cfg.Location, provider, sink)
	for _, sc := range cfg.Strategies {
		s, err := factory.createStrategy(sc)
		if err != nil {
			a.Close()
			return nil, err
		}
		m := engine.NewManager(logger, s, loop, engine.WithLocation(cfg.Location))
		if err := a.registry.Add(m); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.dispatcher = command.NewDispatcher(logger, a.registry, command.WithSessions(a.chats))
	return a, nil
}

func (a *App) newRetrier() *retrier.Retrier {
	rc := a.cfg.FetchRetry
	opts := []retrier.Option{
		retrier.WithMaxRetries(rc.MaxRetries),
		retrier.WithOnRetry(func(attempt int, err error, wait time.Duration) {
			a.logger.Debug("retrying market data fetch",
				zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
		}),
	}
	if rc.InitialInterval > 0 {
		opts = append(opts, retrier.WithInitialInterval(rc.InitialInterval))
	}
	if rc.MaxInterval > 0 {
		opts = append(opts, retrier.WithMaxInterval(rc.MaxInterval))
	}
	return retrier.New(opts...)
}

// Registry returns the strategy registry.
func (a *App) Registry() *registry.Registry { return a.registry }

// Dispatcher returns the command dispatcher.
func (a *App) Dispatcher() *command.Dispatcher { return a.dispatcher }

// Run starts autostart strategies and the enabled transports, then blocks until ctx is cancelled.
// On return every strategy loop has been stopped.
func (a *App) Run(ctx context.Context) error {
	for _, sc := range a.cfg.Strategies {
		if !sc.Autostart {
			continue
		}
		if m, ok := a.registry.Get(sc.Name); ok {
			a.logger.Info(m.Start())
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if a.cfg.Telegram.Enabled() {
		api, err := telegram.Dial(a.cfg.Telegram.Token)
		if err != nil {
			a.shutdown()
			return err
		}
		bot := telegram.New(a.logger, api, a.dispatcher, a.chats, telegram.Config{
			AllowedChatID:     a.cfg.Telegram.AllowedChatID,
			MessagesPerSecond: a.cfg.Telegram.MessagesPerSecond,
		})
		g.Go(func() error { return bot.Run(gctx) })

		if a.cfg.Telegram.NotifyTrades {
			sub := a.broadcaster.Subscribe()
			g.Go(func() error {
				defer a.broadcaster.Unsubscribe(sub)
				bot.Notify(gctx, sub)
				return nil
			})
		}
	} else {
		a.logger.Info("telegram disabled: set TELEGRAM_TOKEN to enable the chat command channel")
	}

	if a.cfg.Web.Enabled {
		var reader interface {
			RecordsAfter(uint64) ([]journal.Record, error)
		}
		if a.journal != nil {
			reader = a.journal
		}
		srv := web.NewServer(a.logger, web.Config{
			Addr:             a.cfg.Web.Addr,
			AutocertDomains:  a.cfg.Web.AutocertDomains,
			AutocertCacheDir: a.cfg.Web.AutocertCacheDir,
			Token:            a.cfg.Web.Token,
		}, a.dispatcher, a.registry, reader, a.streamFrom, a.prom)
		g.Go(func() error {
			return errors.Wrap(srv.Start(gctx), "web server")
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	err := g.Wait()
	a.shutdown()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *App) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	a.registry.StopAll(ctx)
}

// Close releases storage. It is safe to call after Run.
func (a *App) Close() {
	if a.journal == nil {
		return
	}
	if err := a.journal.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		a.logger.Warn("failed to close journal", zap.Error(err))
	}
	a.journal = nil
}
