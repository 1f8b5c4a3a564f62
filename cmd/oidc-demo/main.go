// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

// oidc-demo is a small OpenID Connect relying party.  Configure a provider
// in the browser, log in, and inspect the resulting tokens and userinfo.
package main

import (
	"context"
	"crypto/rand"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/cap-oidc-demo/config"
	"github.com/hashicorp/cap-oidc-demo/flow"
	"github.com/hashicorp/cap-oidc-demo/registry"
	"github.com/hashicorp/cap-oidc-demo/server"
	"github.com/hashicorp/cap-oidc-demo/session"
	"github.com/hashicorp/go-hclog"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 10 * time.Second

func main() {
	configFile := flag.String("config", "", "path to a YAML config file (overrides "+config.FileEnvVar+")")
	flag.Parse()

	cfg, err := config.Load(config.WithFile(*configFile))
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	logger := hclog.New(&hclog.LoggerOptions{
		Name:  "oidc-demo",
		Level: cfg.Level(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("exiting", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger hclog.Logger) error {
	const op = "main.run"

	store, closeStore, err := newStore(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer closeStore()

	regOpts := []registry.Option{
		registry.WithLogger(logger.Named("registry")),
		registry.WithHTTPTimeout(cfg.HTTPTimeout),
		registry.WithRetention(cfg.LoginTTL),
	}
	if cfg.ProviderCAFile != "" {
		pem, err := os.ReadFile(cfg.ProviderCAFile)
		if err != nil {
			return fmt.Errorf("%s: unable to read provider CA: %w", op, err)
		}
		regOpts = append(regOpts, registry.WithProviderCA(string(pem)))
	}
	reg := registry.New(regOpts...)

	engine, err := flow.NewEngine(reg, store,
		flow.WithLogger(logger.Named("flow")),
		flow.WithIdpHintParam(cfg.IdpHintParam),
		flow.WithVerifyIdToken(cfg.VerifyIdToken),
		flow.WithLoginTTL(cfg.LoginTTL),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	key := []byte(cfg.SessionKey)
	if len(key) == 0 {
		key = make([]byte, session.MinKeyLength)
		if _, err := rand.Read(key); err != nil {
			return fmt.Errorf("%s: unable to generate session key: %w", op, err)
		}
		logger.Warn("OIDC_SESSION_KEY is not set; sessions won't survive a restart")
	}
	cookies, err := session.NewCookies(key, cfg.SecureCookies, session.WithTTL(cfg.SessionTTL))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	srv, err := server.New(engine, cookies,
		server.WithLogger(logger.Named("http")),
		server.WithFormDefaults(server.FormDefaults{
			DiscoveryURL: cfg.DiscoveryURL,
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURI:  cfg.RedirectURI,
			IdpHint:      cfg.IdpHint,
		}),
		server.WithRedirectURI(cfg.RedirectURI),
		server.WithPostLogoutRedirectURI(cfg.PostLogoutRedirectURI),
		server.WithConfigureRate(cfg.ConfigureRate, cfg.ConfigureBurst),
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srvErr := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr)
		srvErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-srvErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("%s: server closed with error: %w", op, err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutting down")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s: shutdown: %w", op, err)
	}
	return nil
}

// newStore returns the Redis store when OIDC_REDIS_ADDR is set, otherwise the
// in-memory store.
func newStore(ctx context.Context, cfg *config.Config, logger hclog.Logger) (session.Store, func(), error) {
	const op = "main.newStore"
	if cfg.RedisAddr == "" {
		logger.Debug("using in-memory session store")
		return session.NewMemoryStore(session.WithTTL(cfg.SessionTTL)), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, cfg.HTTPTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("%s: unable to reach redis at %s: %w", op, cfg.RedisAddr, err)
	}
	store, err := session.NewRedisStore(rdb, session.WithTTL(cfg.SessionTTL))
	if err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("%s: %w", op, err)
	}
	logger.Info("using redis session store", "addr", cfg.RedisAddr)
	return store, func() { _ = rdb.Close() }, nil
}
