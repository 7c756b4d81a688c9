// SPDX-FileCopyrightText: Copyright 2025 Corvidae Labs
// SPDX-License-Identifier: Apache-2.0

package app

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/corvidae/gatehouse/pkg/auth"
	"github.com/corvidae/gatehouse/pkg/config"
	"github.com/corvidae/gatehouse/pkg/directory"
	"github.com/corvidae/gatehouse/pkg/grants"
	"github.com/corvidae/gatehouse/pkg/logger"
	"github.com/corvidae/gatehouse/pkg/patsource"
	"github.com/corvidae/gatehouse/pkg/script"
	"github.com/corvidae/gatehouse/pkg/server"
	"github.com/corvidae/gatehouse/pkg/session"
	"github.com/corvidae/gatehouse/pkg/workflow"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the gatehouse server",
		Long: `Start the gatehouse authentication server.

The server reads the configuration file given with --config (or runs with
built-in defaults), opens the configured session store and listens for
HTTP requests.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	sessions, err := buildSessionStore(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := sessions.Close(); err != nil {
			logger.Warnf("closing session store: %v", err)
		}
	}()

	clients, users := buildDirectories(cfg)

	assertions, err := auth.NewAssertionVerifier(ctx, clients)
	if err != nil {
		return fmt.Errorf("creating assertion verifier: %w", err)
	}

	clientAuth := auth.NewClientAuthenticator(clients, grants.NewMemoryStore(), cfg.BuildFilters(), assertions)
	sessionAuth := auth.NewSessionAuthenticator(sessions, users, clients)
	dispatcher := auth.NewDispatcher(clientAuth, sessionAuth, cfg.Server.Realm)

	var engineOpts []workflow.EngineOption
	if !cfg.ScriptsEnabled() {
		engineOpts = append(engineOpts, workflow.WithScriptsDisabled())
	}
	engine := workflow.NewEngine(sessions, users, script.NewRegistry(), engineOpts...)

	pats := patsource.NewSource()
	for _, iss := range cfg.Issuers {
		pats.RegisterIssuer(iss.Name, patsource.IssuerConfig{
			TokenURL:     iss.TokenURL,
			ClientID:     iss.ClientID,
			ClientSecret: iss.ClientSecret,
			Scopes:       iss.Scopes,
		})
	}

	handler := server.NewHandler(dispatcher, engine, sessions, cfg, server.WithPATSource(pats))

	logger.Infow("starting gatehouse",
		"address", cfg.ListenAddr(),
		"realm", cfg.Server.Realm,
		"session_store", cfg.Session.Store,
		"upstream_issuers", len(cfg.Issuers),
	)
	return server.Serve(ctx, cfg.ListenAddr(), handler.Routes())
}

func loadConfig() (*config.Config, error) {
	configPath := viper.GetString("config")
	if configPath == "" {
		logger.Info("no configuration file given, using defaults")
		return config.Default(), nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("configuration loading failed: %w", err)
	}
	return cfg, nil
}

func buildSessionStore(cfg *config.Config) (session.Store, error) {
	switch cfg.Session.Store {
	case config.StoreRedis:
		store, err := session.NewRedisStore(context.Background(), cfg.RedisSessionConfig())
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		return store, nil
	default:
		return session.NewMemoryStore(), nil
	}
}

func buildDirectories(cfg *config.Config) (directory.ClientDirectory, directory.UserDirectory) {
	clients := directory.NewMemoryClientDirectory()
	for _, c := range cfg.Clients {
		clients.Register(&directory.Client{
			ID:      c.ID,
			Secret:  c.Secret,
			DN:      c.DN,
			Method:  directory.AuthMethod(c.Method),
			JWKSURI: c.JWKSURI,
		})
	}

	users := directory.NewMemoryUserDirectory()
	for _, u := range cfg.Users {
		id := u.ID
		if id == "" {
			id = u.Username
		}
		users.Register(&directory.User{ID: id, Username: u.Username}, u.Password)
	}
	return clients, users
}
