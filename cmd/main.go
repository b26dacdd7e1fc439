package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"hostel-concierge/handler"
	"hostel-concierge/internal/booking"
	"hostel-concierge/internal/config"
	"hostel-concierge/internal/integrations/hotelapi"
	"hostel-concierge/internal/integrations/openai"
	"hostel-concierge/internal/integrations/paramstore"
	"hostel-concierge/internal/lock"
	"hostel-concierge/internal/logger"
	"hostel-concierge/internal/repository"
	"hostel-concierge/internal/statemachine"
	"hostel-concierge/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	log, err := logger.NewStructured(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		slog.Error("failed to create logger", "err", err)
		os.Exit(1)
	}
	fatal := func(msg string, err error) {
		log.WithError(err).Error(msg, nil)
		os.Exit(1)
	}

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		fatal("failed to load AWS config", err)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		fatal("failed to create SSM client", err)
	}
	store, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.AWS.StateTable)
	if err != nil {
		fatal("failed to create conversation store", err)
	}

	var openaiOpts []openai.Option
	if cfg.OpenAI.BaseURL != "" {
		openaiOpts = append(openaiOpts, openai.WithBaseURL(cfg.OpenAI.BaseURL))
	}
	openaiClient, err := openai.NewClient(ssmClient, cfg.AWS.ParamPrefix, openaiOpts...)
	if err != nil {
		fatal("failed to create OpenAI client", err)
	}
	hotel, err := hotelapi.NewClient(ssmClient, cfg.AWS.ParamPrefix, cfg.HotelAPI.BaseURL)
	if err != nil {
		fatal("failed to create hotel API client", err)
	}

	var locker lock.Locker = lock.NewLocal()
	if cfg.Redis.Address != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		locker, err = lock.NewRedis(rdb,
			lock.WithTTL(config.GetDuration(cfg.Lock.TTLMs)),
			lock.WithWait(config.GetDuration(cfg.Lock.WaitMs)),
		)
		if err != nil {
			fatal("failed to create redis lock", err)
		}
	}

	// ---- Conversation flow ----
	machine, err := statemachine.New(store, hotel, hotel, hotel, hotel, log)
	if err != nil {
		fatal("failed to create state machine", err)
	}
	decider, err := booking.NewDecider(store, hotel)
	if err != nil {
		fatal("failed to create booking decider", err)
	}
	assistant, err := usecase.NewAssistantService(ssmClient, openaiClient, store, hotel, hotel, store, usecase.AssistantConfig{
		ParamPrefix:  cfg.AWS.ParamPrefix,
		Model:        cfg.OpenAI.Model,
		Temperature:  cfg.OpenAI.Temperature,
		MaxTokens:    cfg.OpenAI.MaxTokens,
		HistoryLimit: cfg.Assistant.HistoryLimit,
	}, log)
	if err != nil {
		fatal("failed to create assistant", err)
	}

	orchestrator, err := usecase.NewOrchestrator(usecase.Dependencies{
		Store:      store,
		Transcript: store,
		Directory:  hotel,
		Tours:      hotel,
		Machine:    machine,
		Decider:    decider,
		Bookings:   hotel,
		Assistant:  assistant,
		Locker:     locker,
		Logger:     log,
	},
		usecase.WithDefaultLanguage(cfg.DefaultLanguage()),
		usecase.WithLockWait(config.GetDuration(cfg.Lock.WaitMs)),
	)
	if err != nil {
		fatal("failed to create orchestrator", err)
	}

	// ---- Handler ----
	h, err := handler.NewHandler(orchestrator,
		handler.WithRateLimit(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst),
		handler.WithLogger(log),
		handler.WithMetrics(cfg.Metrics.Path, promhttp.Handler()),
	)
	if err != nil {
		fatal("failed to create handler", err)
	}

	lambda.Start(h.Handle)
}
