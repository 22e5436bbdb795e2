package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/arin/cuecard/internal/ai"
	"github.com/arin/cuecard/internal/config"
	"github.com/arin/cuecard/internal/logging"
	"github.com/arin/cuecard/internal/session"
)

// app is everything a command needs, built once per invocation.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *session.Store
	client *ai.StreamingClient
}

func loadApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	logger := logging.New(os.Stderr, level)

	request, resource := cfg.Timeouts()
	return &app{
		cfg:    cfg,
		logger: logger,
		store:  session.NewStore(cfg.SessionsDir(), cfg, session.WithLogger(logger)),
		client: ai.NewStreamingClient(newProvider(cfg),
			ai.WithTimeouts(request, resource),
			ai.WithLogger(logger),
		),
	}, nil
}

func newProvider(cfg *config.Config) ai.Provider {
	opts := []ai.ProviderOption{ai.WithSystemInstruction(cfg.SystemInstruction())}
	if cfg.Temperature != nil {
		opts = append(opts, ai.WithTemperature(*cfg.Temperature))
	}
	if cfg.Provider == config.ProviderOpenAI {
		return ai.NewOpenAIProvider(cfg.APIKey(), cfg.ActiveModel(), opts...)
	}
	return ai.NewGeminiProvider(cfg.APIKey(), cfg.ActiveModel(), opts...)
}

// credentialHint explains how to fix a missing API key.
func credentialHint(cfg *config.Config) string {
	env := "GEMINI_API_KEY"
	if cfg.Provider == config.ProviderOpenAI {
		env = "OPENAI_API_KEY"
	}
	return fmt.Sprintf("run: cuecard config set-key %s <key>  (or set %s)", cfg.Provider, env)
}
