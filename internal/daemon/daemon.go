// Package daemon wires resolved accounts into running channel instances
// and supervises them until shutdown.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"maxbridge/internal/config"
	"maxbridge/internal/host"
	"maxbridge/internal/logger"
	"maxbridge/internal/maxapi"
	"maxbridge/internal/maxbot"
	"maxbridge/internal/metrics"
	"maxbridge/pkg/chunk"
	"maxbridge/pkg/media"
	"maxbridge/pkg/pairing"
	"maxbridge/pkg/session"
	"maxbridge/pkg/webhooksink"
)

// Daemon runs every enabled account of the bridge.
type Daemon struct {
	cfg     *config.Config
	log     *logger.Logger
	metrics *metrics.Metrics
	sink    *webhooksink.Server
}

// New creates a daemon from loaded configuration.
func New(cfg *config.Config, log *logger.Logger) *Daemon {
	return &Daemon{
		cfg:     cfg,
		log:     log,
		metrics: metrics.New(),
	}
}

// Run starts all accounts and blocks until ctx is cancelled or a channel
// fails fatally.
func (d *Daemon) Run(ctx context.Context) error {
	if !d.cfg.Max.Enabled {
		return fmt.Errorf("max channel is disabled in configuration")
	}

	accounts, err := d.resolveRunnable()
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		return fmt.Errorf("no enabled account has a bot token")
	}

	if anyWebhook(accounts) {
		addr := fmt.Sprintf("%s:%d", d.cfg.Webhook.Host, d.cfg.Webhook.Port)
		d.sink = webhooksink.NewServer(addr, d.log.GetZerolog())
		if err := d.sink.Start(); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			d.sink.Shutdown(shutdownCtx)
		}()
	}

	if d.cfg.Metrics.Enabled {
		d.serveMetrics(ctx)
	}

	watcher, err := NewConfigWatcher(d.log.GetZerolog())
	if err != nil {
		d.log.Warn().Err(err).Msg("config watcher unavailable")
	} else {
		go watcher.Run(ctx)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, len(accounts))

	for _, account := range accounts {
		channel, err := d.buildChannel(account)
		if err != nil {
			return fmt.Errorf("account %s: %w", account.ID, err)
		}

		wg.Add(1)
		go func(account *config.ResolvedAccount) {
			defer wg.Done()
			var runErr error
			if account.Webhook.URL != "" {
				runErr = channel.RunWebhook(ctx, d.sink, maxbot.WebhookOptions{
					PublicURL: account.Webhook.URL,
					Path:      account.Webhook.Path,
					Secret:    account.Webhook.Secret,
				})
			} else {
				runErr = channel.RunPolling(ctx)
			}
			if runErr != nil {
				errCh <- fmt.Errorf("account %s: %w", account.ID, runErr)
				cancel()
			}
		}(account)

		d.log.Info().Str("account", account.ID).Str("mode", accountMode(account)).Msg("account started")
	}

	wg.Wait()
	close(errCh)
	return firstError(errCh)
}

func (d *Daemon) resolveRunnable() ([]*config.ResolvedAccount, error) {
	var accounts []*config.ResolvedAccount
	for _, id := range d.cfg.AccountIDs() {
		account, err := d.cfg.ResolveAccount(id)
		if err != nil {
			return nil, err
		}
		if !account.Enabled {
			continue
		}
		if !account.Configured() {
			d.log.Warn().Str("account", id).Msg("skipping account without token")
			continue
		}
		accounts = append(accounts, account)
	}
	return accounts, nil
}

func (d *Daemon) buildChannel(account *config.ResolvedAccount) (*maxbot.Channel, error) {
	clientOpts := []maxapi.Option{maxapi.WithLogger(d.log.GetZerolog())}
	if account.BaseURL != "" {
		clientOpts = append(clientOpts, maxapi.WithBaseURL(account.BaseURL))
	}
	client, err := maxapi.NewClient(account.Token, clientOpts...)
	if err != nil {
		return nil, err
	}

	accountDir := filepath.Join(d.cfg.DataDir, "accounts", account.ID)
	pairingMgr, err := pairing.NewManager(filepath.Join(accountDir, "pairing"))
	if err != nil {
		return nil, err
	}
	sessions, err := session.NewStore(filepath.Join(accountDir, "sessions.json"))
	if err != nil {
		return nil, err
	}

	maxBytes := int64(account.MediaMaxMB) * 1024 * 1024
	bundle := &host.Bundle{
		Dispatcher: host.NewHTTPDispatcher(d.cfg.Host.Endpoint, d.cfg.Host.AgentID, d.log.GetZerolog()),
		Router:     host.StaticResolver{AgentID: d.cfg.Host.AgentID},
		Pairing:    pairingMgr,
		Sessions:   sessions,
		Fetcher:    media.NewFetcher(maxBytes),
		MediaStore: media.NewStore(filepath.Join(accountDir, "media")),
		Chunker:    chunk.New(maxbot.MessageLimit, chunk.Mode(d.cfg.Host.ChunkMode)),
	}

	return maxbot.NewChannel(maxbot.Options{
		Account: account,
		API:     client,
		Host:    bundle,
		Logger:  d.log.GetZerolog(),
		Metrics: d.metrics,
	})
}

func (d *Daemon) serveMetrics(ctx context.Context) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", d.metrics.Handler())
	srv := &http.Server{Addr: d.cfg.Metrics.Addr, Handler: mux}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.log.Error().Err(err).Msg("metrics server stopped")
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	d.log.Info().Str("addr", d.cfg.Metrics.Addr).Msg("metrics endpoint listening")
}

func anyWebhook(accounts []*config.ResolvedAccount) bool {
	for _, account := range accounts {
		if account.Webhook.URL != "" {
			return true
		}
	}
	return false
}

func accountMode(account *config.ResolvedAccount) string {
	if account.Webhook.URL != "" {
		return "webhook"
	}
	return "polling"
}

func firstError(errCh <-chan error) error {
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	return nil
}
