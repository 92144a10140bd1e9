package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sicko7947/hrflow"
	"github.com/sicko7947/hrflow/agent"
	"github.com/sicko7947/hrflow/builder"
	"github.com/sicko7947/hrflow/config"
	"github.com/sicko7947/hrflow/hitl"
	"github.com/sicko7947/hrflow/llm"
	"github.com/sicko7947/hrflow/messaging"
	"github.com/sicko7947/hrflow/secrets"
	"github.com/sicko7947/hrflow/store"
	"github.com/sicko7947/hrflow/telemetry"
	"github.com/sicko7947/hrflow/worker"
)

const serviceName = "hrflow"

// runtime holds the collaborators shared by the commands
type runtime struct {
	settings *config.Settings
	core     hrflow.Config
	logger   zerolog.Logger
	store    hrflow.Store
	bus      hrflow.Bus
	reviews  *hitl.Manager
	metrics  *telemetry.Metrics
}

func newRuntime(ctx context.Context, s *config.Settings) (*runtime, error) {
	rt := &runtime{
		settings: s,
		core:     s.Core(),
		logger:   log.Logger,
		metrics:  telemetry.DefaultMetrics(),
	}

	if s.Tracing.Enabled {
		if err := telemetry.Init(serviceName, "1.0.0", s.Tracing.Output); err != nil {
			return nil, fmt.Errorf("failed to init tracing: %w", err)
		}
	}

	kv, err := openStore(ctx, s, rt.logger)
	if err != nil {
		return nil, err
	}
	rt.store = kv

	bus, err := openBus(s, rt.logger)
	if err != nil {
		_ = kv.Close()
		return nil, err
	}
	rt.bus = bus

	rt.reviews = hitl.NewManager(rt.store, rt.bus,
		hitl.WithLogger(rt.logger),
		hitl.WithConfig(rt.core),
		hitl.WithMetrics(rt.metrics),
	)
	return rt, nil
}

func (rt *runtime) Close(ctx context.Context) error {
	return errors.Join(
		rt.bus.Close(),
		rt.store.Close(),
		telemetry.Shutdown(ctx),
	)
}

func openStore(ctx context.Context, s *config.Settings, logger zerolog.Logger) (hrflow.Store, error) {
	switch s.Store.Backend {
	case config.BackendRedis:
		kv := store.NewRedisStoreFromAddr(s.Store.Redis.Addr, s.Store.Redis.Password, s.Store.Redis.DB)
		if err := kv.Ping(ctx); err != nil {
			return nil, fmt.Errorf("failed to reach redis at %s: %w", s.Store.Redis.Addr, err)
		}
		logger.Info().Str("addr", s.Store.Redis.Addr).Msg("Using redis store")
		return kv, nil

	case config.BackendDynamoDB:
		cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(s.Store.DynamoDB.Region))
		if err != nil {
			return nil, fmt.Errorf("failed to load aws config: %w", err)
		}
		client := dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
			if s.Store.DynamoDB.Endpoint != "" {
				o.BaseEndpoint = aws.String(s.Store.DynamoDB.Endpoint)
			}
		})
		if s.Store.DynamoDB.CreateTable {
			if err := store.EnsureTable(ctx, client, s.Store.DynamoDB.Table); err != nil {
				return nil, fmt.Errorf("failed to ensure table %s: %w", s.Store.DynamoDB.Table, err)
			}
		}
		logger.Info().Str("table", s.Store.DynamoDB.Table).Msg("Using dynamodb store")
		return store.NewDynamoDBStore(client, s.Store.DynamoDB.Table), nil

	default:
		logger.Warn().Msg("Using in-memory store, state is lost on exit")
		return store.NewMemoryStore(), nil
	}
}

func openBus(s *config.Settings, logger zerolog.Logger) (hrflow.Bus, error) {
	if s.Broker.Backend == config.BackendAMQP {
		bus, err := messaging.DialAMQP(s.Broker.URL,
			messaging.WithAMQPLogger(logger),
			messaging.WithPrefetch(s.Broker.Prefetch),
		)
		if err != nil {
			return nil, err
		}
		return bus, nil
	}
	return messaging.NewMemoryBus(
		messaging.WithMemoryBusLogger(logger),
		messaging.WithHistoryLimit(0),
	), nil
}

// newLLM resolves the API key from Vault or settings. Without a key agents
// run on their default artifacts.
func (rt *runtime) newLLM(ctx context.Context) (llm.Client, error) {
	s := rt.settings

	var reader secrets.Reader
	if s.Vault.Enabled {
		vr, err := secrets.NewVaultReader(s.Vault.Address, s.Vault.Token, s.Vault.Mount, rt.logger)
		if err != nil {
			return nil, err
		}
		reader = vr
	}

	key, err := secrets.GeminiAPIKey(ctx, reader, s.LLM.APIKey)
	if err != nil {
		rt.logger.Warn().Err(err).Msg("Vault lookup failed, using configured api key")
	}
	if key == "" {
		rt.logger.Warn().Msg("No LLM api key configured, agents will use default artifacts")
		return llm.Unavailable{}, nil
	}
	return llm.NewGeminiClient(ctx, key, s.LLM.Model)
}

// newWorker validates the template against the registry and builds a worker
func (rt *runtime) newWorker(ctx context.Context) (*worker.Worker, error) {
	registry := agent.DefaultRegistry()
	if err := builder.ValidateTemplate(builder.HRPolicyTemplate(), registry.Types()); err != nil {
		return nil, err
	}

	client, err := rt.newLLM(ctx)
	if err != nil {
		return nil, err
	}

	return worker.New(rt.store, rt.bus, registry,
		worker.WithLLM(client),
		worker.WithApprovals(rt.reviews),
		worker.WithLogger(rt.logger),
		worker.WithConfig(rt.core),
		worker.WithMetrics(rt.metrics),
	), nil
}
