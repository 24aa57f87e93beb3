// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/sigil-dev/docquery/internal/chunker"
	"github.com/sigil-dev/docquery/internal/config"
	"github.com/sigil-dev/docquery/internal/embedding"
	googleemb "github.com/sigil-dev/docquery/internal/embedding/google"
	openaiemb "github.com/sigil-dev/docquery/internal/embedding/openai"
	"github.com/sigil-dev/docquery/internal/embedding/tfidf"
	"github.com/sigil-dev/docquery/internal/provider"
	anthropicprov "github.com/sigil-dev/docquery/internal/provider/anthropic"
	googleprov "github.com/sigil-dev/docquery/internal/provider/google"
	openaiprov "github.com/sigil-dev/docquery/internal/provider/openai"
	"github.com/sigil-dev/docquery/internal/rag"
	"github.com/sigil-dev/docquery/internal/server"
	"github.com/sigil-dev/docquery/internal/service"
	_ "github.com/sigil-dev/docquery/internal/store/sqlite" // register sqlite backend
	dqerr "github.com/sigil-dev/docquery/pkg/errors"
)

// App holds all wired subsystems and manages their lifecycle.
type App struct {
	Server   *server.Server
	Service  *service.Service
	Registry *provider.Registry
}

// WireApp creates all subsystems from cfg and wires them together.
func WireApp(ctx context.Context, cfg *config.Config) (*App, error) {
	// 1. Chat providers and routing.
	reg := provider.NewRegistry()
	registerBuiltinProviders(ctx, cfg, reg)

	synth, err := newSynthesizer(cfg, reg)
	if err != nil {
		_ = reg.Close()
		return nil, err
	}

	// 2. Embeddings.
	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		_ = reg.Close()
		return nil, dqerr.Wrapf(err, dqerr.CodeCLISetupFailure, "creating %s embedder", cfg.Embeddings.Provider)
	}

	// 3. Index builder and document service.
	splitter, err := chunker.New(cfg.Index.ChunkSize, cfg.Index.ChunkOverlap)
	if err != nil {
		_ = reg.Close()
		return nil, err
	}

	svc, err := service.New(service.Config{
		UploadDir: cfg.Storage.UploadDir,
		Builder: &rag.Builder{
			Splitter: splitter,
			Embedder: embedder,
			Backend:  cfg.Index.Backend,
		},
		Engine: &rag.QueryEngine{TopK: cfg.Index.TopK, Synthesizer: synth},
	})
	if err != nil {
		_ = reg.Close()
		return nil, err
	}

	// 4. HTTP server.
	services, err := server.NewServices(svc, reg)
	if err != nil {
		_ = reg.Close()
		return nil, dqerr.Wrapf(err, dqerr.CodeCLISetupFailure, "creating services")
	}

	srv, err := server.New(server.Config{
		ListenAddr:     cfg.Server.Listen,
		CORSOrigins:    cfg.Server.CORSOrigins,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		RateLimit: server.RateLimitConfig{
			RequestsPerSecond: cfg.Server.RateLimitRPS,
			Burst:             cfg.Server.RateLimitBurst,
		},
		Version: version,
	}, services)
	if err != nil {
		_ = reg.Close()
		return nil, dqerr.Wrapf(err, dqerr.CodeCLISetupFailure, "creating server")
	}

	slog.Info("docquery wired",
		"embedder", embedder.Name(),
		"backend", cfg.Index.Backend,
		"synthesizer", synth.Name(),
		"providers", reg.Names(),
		"upload_dir", cfg.Storage.UploadDir,
	)

	return &App{Server: srv, Service: svc, Registry: reg}, nil
}

// Start runs the HTTP server and blocks until the context is cancelled.
func (a *App) Start(ctx context.Context) error {
	return a.Server.Start(ctx)
}

// Close releases all resources held by the app.
func (a *App) Close() error {
	type closer interface{ Close() error }
	closers := []closer{a.Server, a.Service, a.Registry}

	var errs []error
	for _, c := range closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// providerFactory builds a provider.Provider from a ProviderConfig.
type providerFactory func(context.Context, config.ProviderConfig) (provider.Provider, error)

// builtinProviderFactories maps provider names to their constructors.
// Declared as a variable so tests can inject fakes.
var builtinProviderFactories = map[string]providerFactory{
	"anthropic": func(_ context.Context, pc config.ProviderConfig) (provider.Provider, error) {
		return anthropicprov.New(anthropicprov.Config{APIKey: pc.APIKey, BaseURL: pc.Endpoint})
	},
	"google": func(ctx context.Context, pc config.ProviderConfig) (provider.Provider, error) {
		return googleprov.New(ctx, googleprov.Config{APIKey: pc.APIKey, BaseURL: pc.Endpoint})
	},
	"openai": func(_ context.Context, pc config.ProviderConfig) (provider.Provider, error) {
		return openaiprov.New(openaiprov.Config{APIKey: pc.APIKey, BaseURL: pc.Endpoint})
	},
}

// registerBuiltinProviders registers every configured provider that has an
// API key and a built-in implementation. Unknown names or construction
// failures are logged and skipped.
func registerBuiltinProviders(ctx context.Context, cfg *config.Config, reg *provider.Registry) {
	names := cfg.ProviderNames()
	sort.Strings(names)
	for _, name := range names {
		factory, ok := builtinProviderFactories[name]
		if !ok {
			slog.Warn("unknown provider in config, skipping", "provider", name)
			continue
		}
		p, err := factory(ctx, cfg.Providers[name])
		if err != nil {
			slog.Warn("failed to create provider", "provider", name, "error", err)
			continue
		}
		reg.Register(name, p)
		slog.Info("registered provider", "provider", name)
	}
}

// newSynthesizer picks the answer mode. LLM mode without any registered
// chat provider degrades to extractive answers.
func newSynthesizer(cfg *config.Config, reg *provider.Registry) (rag.Synthesizer, error) {
	if cfg.Answer.Mode == "extractive" {
		return rag.ExtractiveSynthesizer{}, nil
	}
	if reg.Len() == 0 {
		slog.Warn("no chat provider has an API key, answering extractively",
			"hint", "set OPENAI_API_KEY or providers.<name>.api_key")
		return rag.ExtractiveSynthesizer{}, nil
	}

	if err := reg.SetDefault(cfg.Models.Default); err != nil {
		return nil, dqerr.Wrapf(err, dqerr.CodeCLISetupFailure,
			"setting default model %s (is its provider's api_key set?)", cfg.Models.Default)
	}

	var failover []string
	for _, ref := range cfg.Models.Failover {
		name, _, _ := strings.Cut(ref, "/")
		if _, err := reg.Get(name); err != nil {
			slog.Warn("skipping failover model without a registered provider", "model", ref)
			continue
		}
		failover = append(failover, ref)
	}
	if err := reg.SetFailover(failover); err != nil {
		return nil, dqerr.Wrapf(err, dqerr.CodeCLISetupFailure, "setting failover chain")
	}

	temp := float32(cfg.Answer.Temperature)
	return &rag.LLMSynthesizer{
		Registry: reg,
		Options: provider.ChatOptions{
			Temperature: &temp,
			MaxTokens:   cfg.Answer.MaxTokens,
		},
	}, nil
}

func newEmbedder(ctx context.Context, cfg *config.Config) (embedding.Embedder, error) {
	batch := embedding.DefaultBatchOptions()
	batch.Size = cfg.Embeddings.BatchSize

	switch cfg.Embeddings.Provider {
	case "tfidf":
		return tfidf.New(), nil
	case "google":
		pc := cfg.Providers["google"]
		return googleemb.New(ctx, googleemb.Config{
			APIKey:     pc.APIKey,
			BaseURL:    pc.Endpoint,
			Model:      cfg.Embeddings.Model,
			Dimensions: cfg.Embeddings.Dimensions,
			Batch:      batch,
		})
	default:
		pc := cfg.Providers["openai"]
		return openaiemb.New(openaiemb.Config{
			APIKey:     pc.APIKey,
			BaseURL:    pc.Endpoint,
			Model:      cfg.Embeddings.Model,
			Dimensions: cfg.Embeddings.Dimensions,
			Batch:      batch,
		})
	}
}
