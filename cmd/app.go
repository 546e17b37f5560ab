package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nytrohq/interview-screener/internal/ai"
	"github.com/nytrohq/interview-screener/internal/ai/gemini"
	"github.com/nytrohq/interview-screener/internal/crm/hubspot"
	"github.com/nytrohq/interview-screener/internal/evaluation"
	"github.com/nytrohq/interview-screener/internal/followup"
	"github.com/nytrohq/interview-screener/internal/interview"
	"github.com/nytrohq/interview-screener/internal/logger"
	"github.com/nytrohq/interview-screener/internal/rubric"
	"github.com/nytrohq/interview-screener/internal/secrets"

	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// appContext wires the core components for the run and serve commands.
type appContext struct {
	config      *Config
	rubric      *rubric.Rubric
	logger      *zap.Logger
	interviews  *interview.Engine
	evaluations *evaluation.Engine
	guides      *followup.Generator
	crm         *hubspot.Client

	sessions    interview.Store
	evalResults evaluation.Store
}

func bootstrap(ctx context.Context) (*appContext, error) {
	zlog, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		return nil, fmt.Errorf("creating a logger: %w", err)
	}

	config, err := getConfig()
	if err != nil {
		return nil, fmt.Errorf("getting a config: %w", err)
	}

	if config == nil {
		return nil, fmt.Errorf("config is required")
	}

	// The rubric is loaded once and validated eagerly; a broken rubric
	// must stop the process here.
	r, err := rubric.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	gateway, err := newGateway(ctx, config.AI, zlog)
	if err != nil {
		zlog.Warn("running without a language model gateway", zap.Error(err))
	}

	sessions, evalResults, err := newStores(ctx, config.Store)
	if err != nil {
		return nil, err
	}

	evaluations := evaluation.NewEngine(r, evaluation.Deps{
		Gateway: gateway,
		Store:   evalResults,
		Logger:  zlog,
	})

	interviews := interview.NewEngine(r, interview.Deps{
		Store:     sessions,
		Gateway:   gateway,
		Evaluator: evaluations,
		Logger:    zlog,
	})

	guides := followup.NewGenerator(r, evalResults, sessions, zlog)

	crm, err := newCRM(ctx, config.CRM, zlog)
	if err != nil {
		zlog.Warn("running without crm sync", zap.Error(err))
	}

	return &appContext{
		config:      config,
		rubric:      r,
		logger:      zlog,
		interviews:  interviews,
		evaluations: evaluations,
		guides:      guides,
		crm:         crm,
		sessions:    sessions,
		evalResults: evalResults,
	}, nil
}

func newGateway(ctx context.Context, cfg *AIConfig, zlog *zap.Logger) (ai.Gateway, error) {
	if cfg == nil {
		return nil, fmt.Errorf("ai configuration is missing")
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "gemini" {
		return nil, fmt.Errorf("unsupported ai provider: %s", cfg.Provider)
	}

	if cfg.Gemini == nil {
		return nil, fmt.Errorf("gemini configuration is required")
	}

	apiKey, err := secrets.Load(secrets.Source{
		Name: "gemini api key",
		File: cfg.Gemini.APIKeyFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set ai.gemini.api-key-file or GEMINI_API_KEY_FILE)", err)
	}

	timeout := time.Duration(cfg.Gemini.TimeoutSeconds) * time.Second

	gatewayLogger := logger.WithCommonFields(zlog, "gemini", cfg.Gemini.Model)

	gateway, err := gemini.New(ctx, apiKey, cfg.Gemini.Model, timeout, gatewayLogger)
	if err != nil {
		return nil, err
	}

	return gateway, nil
}

func newStores(ctx context.Context, cfg *StoreConfig) (interview.Store, evaluation.Store, error) {
	if cfg == nil || cfg.Backend == "" || cfg.Backend == "memory" {
		return interview.NewMemoryStore(), evaluation.NewMemoryStore(), nil
	}

	if cfg.Backend != "redis" {
		return nil, nil, fmt.Errorf("unsupported store backend: %s", cfg.Backend)
	}

	if cfg.Redis == nil {
		return nil, nil, fmt.Errorf("redis configuration is required for the redis backend")
	}

	ttl := time.Duration(cfg.Redis.TTLHours) * time.Hour

	sessions, err := interview.NewRedisStore(ctx, interview.RedisOptions{
		Address:  cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		TTL:      ttl,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connecting session store: %w", err)
	}

	return sessions, evaluation.NewRedisStore(sessions.Client(), ttl), nil
}

func newCRM(ctx context.Context, cfg *CRMConfig, zlog *zap.Logger) (*hubspot.Client, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}

	provider := strings.TrimSpace(strings.ToLower(cfg.Provider))
	if provider != "" && provider != "hubspot" {
		return nil, fmt.Errorf("unsupported crm provider: %s", cfg.Provider)
	}

	token, err := secrets.Load(secrets.Source{
		Name: "hubspot access token",
		File: cfg.TokenFile,
	})
	if err != nil {
		return nil, fmt.Errorf("%w (set crm.token-file or HUBSPOT_TOKEN_FILE)", err)
	}

	client := hubspot.New(ctx, zlog, token)
	if cfg.Hubspot != nil && cfg.Hubspot.APIURL != "" {
		client.APIURL = cfg.Hubspot.APIURL
	}

	return client, nil
}
