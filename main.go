package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/savegram/grab-server/bot"
	"github.com/savegram/grab-server/history"
	"github.com/savegram/grab-server/proxy"
	"github.com/savegram/grab-server/resolve"
	"github.com/savegram/grab-server/server"
	"github.com/savegram/grab-server/store"
	"github.com/savegram/grab-server/tr"
	"github.com/savegram/grab-server/transcribe"
)

type Config struct {
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`
	PublicURL  string `env:"PUBLIC_URL" envDefault:"http://localhost:8080"`

	// Provider order expresses trust: internal instance first when
	// configured, then the public list, then the legacy mirror.
	CobaltEndpoints   []string `env:"COBALT_ENDPOINTS" envSeparator:"," envDefault:"https://api.cobalt.tools,https://cobalt.api.kwiatekmiki.pl,https://dl.khames.com/api"`
	CobaltAPIKey      string   `env:"COBALT_API_KEY"`
	InternalCobaltURL string   `env:"INTERNAL_COBALT_URL"`
	SaveformEndpoint  string   `env:"SAVEFORM_ENDPOINT" envDefault:"https://www.ssvid.net/api/ajax/search"`

	GroqAPIKey string `env:"GROQ_API_KEY"`
	CacheURL   string `env:"CACHE_URL"` // fs://dir, b2://keyID:appKey@bucket

	HistoryFile  string `env:"HISTORY_FILE"`
	DiscordToken string `env:"DISCORD_TOKEN"`
}

func main() {
	if err := run(context.Background()); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	defer tr.Shutdown()

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return fmt.Errorf("parsing config: %w", err)
	}

	resolver := &resolve.Resolver{Providers: buildProviders(cfg)}

	var cache store.Store
	if cfg.CacheURL != "" {
		cache, err = store.New(ctx, cfg.CacheURL)
		if err != nil {
			return fmt.Errorf("opening transcript cache: %w", err)
		}
		defer cache.Close()
		slog.Info("transcript cache ready", "store", cache.String())
	}

	var historyStore history.Store = history.NewMemStore()
	if cfg.HistoryFile != "" {
		historyStore = &history.FileStore{Path: cfg.HistoryFile}
	}

	srv := &server.Server{
		Resolver: resolver,
		Proxy:    &proxy.Handler{},
		Transcriber: &transcribe.Transcriber{
			APIKey: cfg.GroqAPIKey,
			Cache:  cache,
		},
		History: history.New(historyStore),
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("http server started", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	if cfg.DiscordToken != "" {
		discord := &bot.Discord{
			Token:     cfg.DiscordToken,
			PublicURL: cfg.PublicURL,
			Resolver:  resolver,
			ProxyURL:  srv.ProxyURL,
		}
		if err := discord.Start(); err != nil {
			return fmt.Errorf("starting discord bot: %w", err)
		}
		defer discord.Close()
		slog.Info("discord bot started")
	}

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sc:
		slog.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func buildProviders(cfg Config) []resolve.Provider {
	var providers []resolve.Provider

	if cfg.InternalCobaltURL != "" {
		// Internal hop: no host gating, the container decides what it
		// supports.
		providers = append(providers, &resolve.CobaltProvider{
			Endpoint: cfg.InternalCobaltURL,
			APIKey:   cfg.CobaltAPIKey,
		})
	}
	for _, endpoint := range cfg.CobaltEndpoints {
		if endpoint == "" {
			continue
		}
		providers = append(providers, &resolve.CobaltProvider{
			Endpoint: endpoint,
			APIKey:   cfg.CobaltAPIKey,
			Patterns: resolve.DefaultPatterns,
		})
	}
	if cfg.SaveformEndpoint != "" {
		providers = append(providers, &resolve.SaveformProvider{Endpoint: cfg.SaveformEndpoint})
	}

	return providers
}
