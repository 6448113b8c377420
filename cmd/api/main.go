package main

import (
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/arcrm/engage/internal/ai"
	"github.com/arcrm/engage/internal/config"
	"github.com/arcrm/engage/internal/handlers"
	"github.com/arcrm/engage/internal/queue"
	"github.com/arcrm/engage/internal/repository"
	"github.com/arcrm/engage/internal/services"
	xhttp "github.com/arcrm/engage/pkg/http"
	"github.com/arcrm/engage/pkg/logger"
	"github.com/arcrm/engage/pkg/pg"
	"github.com/arcrm/engage/pkg/redis"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}

	// transport (tcp for now)
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Server.ReadBufferSize = 1024 * 16
	s.Server.WriteBufferSize = 1024 * 16
	s.Use(xhttp.CompressMiddleware(6))
	s.Use(xhttp.TimeoutMiddleware(time.Second * 30))
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(xhttp.RecoverMiddleware)
	s.Router = xhttp.CreateDefaultRouter()

	readConf := pg.Config{
		User:     config.Get().PostgresReadUser,
		Host:     config.Get().PostgresReadHost,
		Port:     config.Get().PostgresReadPort,
		Password: config.Get().PostgresReadPassword,
		Database: config.Get().PostgresReadDatabase,
	}
	writeConf := pg.Config{
		User:     config.Get().PostgresWriteUser,
		Host:     config.Get().PostgresWriteHost,
		Port:     config.Get().PostgresWritePort,
		Password: config.Get().PostgresWritePassword,
		Database: config.Get().PostgresWriteDatabase,
	}

	pgDebug := false
	if config.Get().AppEnv == "dev" {
		pgDebug = true
	}
	db, err := pg.CreateReadWrite(readConf, writeConf, pgDebug)
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	redisAdap, err := redis.NewRedisAdapter("default", config.Get().RedisUniversalKeyPrefix, &redis.Options{
		Addrs:      []string{config.Get().RedisAddr},
		ClientName: "default",
		DB:         config.Get().RedisDatabase,
		Username:   config.Get().RedisUsername,
		Password:   config.Get().RedisPassword,
	})
	if err != nil {
		logger.Error("failed connecting to redis", "error", err)
		return
	}

	q, err := queue.New(redisAdap, queue.Config{
		Name:              config.Get().QueueName,
		ConsumerGroup:     config.Get().QueueConsumerGroup,
		ConsumerName:      config.Get().QueueConsumerName,
		MaxRetries:        config.Get().QueueMaxRetries,
		VisibilityTimeout: config.Get().QueueVisibilityTimeout,
		PollInterval:      config.Get().QueuePollInterval,
		BatchSize:         config.Get().QueueBatchSize,
		MaxLen:            config.Get().QueueMaxLen,
		EnableDLQ:         config.Get().QueueEnableDLQ,
	})
	if err != nil {
		logger.Error("failed creating queue", "error", err)
		return
	}

	contactRepo := repository.NewContactRepository(db)
	conversationRepo := repository.NewConversationRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	complaintRepo := repository.NewComplaintRepository(db)
	evaluationRepo := repository.NewEvaluationRepository(db)

	completer, err := ai.NewOpenAIClient(
		config.Get().AIApiKey,
		config.Get().AIBaseUrl,
		config.Get().AIModel,
	)
	if err != nil {
		logger.Error("failed creating ai client", "error", err)
		return
	}
	analyzer := ai.NewAnalyzer(completer, config.Get().AITimeout)

	// services
	contactService := services.NewContactService(contactRepo)
	conversationService := services.NewConversationService(conversationRepo, messageRepo, q)
	triageService := services.NewTriageService(contactRepo, conversationRepo, messageRepo, complaintRepo, analyzer, q)
	evaluationService := services.NewEvaluationService(evaluationRepo, analyzer)
	healthService := services.NewHealthService(db, redisAdap)

	// v1 handlers
	contactHandler := handlers.NewContactHandler(contactService)
	conversationHandler := handlers.NewConversationHandler(conversationService)
	complaintHandler := handlers.NewComplaintHandler(triageService)
	evaluationHandler := handlers.NewEvaluationHandler(evaluationService)
	webhookHandler := handlers.NewWebhookHandler(contactService, triageService)
	healthHandler := handlers.NewHealthHandler(healthService)

	g := s.Router.Group("/api/v1")
	handlers.RegisterContactRoutes(g, contactHandler)
	handlers.RegisterConversationRoutes(g, conversationHandler)
	handlers.RegisterComplaintRoutes(g, complaintHandler)
	handlers.RegisterEvaluationRoutes(g, evaluationHandler)
	handlers.RegisterWebhookRoutes(g, webhookHandler)
	handlers.RegisterHealthRoutes(g, healthHandler)

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Kill)

	go func() {
		var err = s.ListenAndServe(config.Get().HttpListenAddr)
		if err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()

	select {
	case <-c:
		s.Shutdown()
	}
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Open(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
