package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/arcrm/engage/internal/config"
	"github.com/arcrm/engage/internal/dispatcher"
	gateway "github.com/arcrm/engage/internal/gateways"
	"github.com/arcrm/engage/internal/repository"
	"github.com/arcrm/engage/pkg/logger"
	"github.com/arcrm/engage/pkg/pg"
	"github.com/arcrm/engage/pkg/prom"
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

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Kill, os.Interrupt, syscall.SIGTERM)

	client, err := gateway.NewClient(&gateway.Config{
		BaseURL:                 config.Get().WhatsAppBaseUrl,
		AppKey:                  config.Get().WhatsAppAppKey,
		AuthKey:                 config.Get().WhatsAppAuthKey,
		Sandbox:                 config.Get().WhatsAppSandbox,
		Timeout:                 config.Get().WhatsAppTimeout,
		MaxRetries:              config.Get().WhatsAppRetryMax,
		RetryDelay:              time.Millisecond * 100,
		MaxConns:                1000,
		CircuitBreakerThreshold: 5,
		CircuitBreakerTimeout:   30 * time.Second,
	})
	if err != nil {
		logger.Error("failed to create gateway", "error", err)
		return
	}

	messageRepo := repository.NewMessageRepository(db)
	deliveryReportRepo := repository.NewDeliveryReportRepository(db)

	idempotencyService := dispatcher.NewIdempotencyService(redisAdap, dispatcher.DefaultIdempotencyConfig())

	service, err := dispatcher.NewDispatcherService(redisAdap)
	if err != nil {
		logger.Error("failed to create the dispatcher", "error", err)
		return
	}
	service.RegisterProcessor(dispatcher.NewOutboundProcessor(client, messageRepo, deliveryReportRepo, idempotencyService))

	var hostname string
	hostname, err = os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	err = prom.Create(hostname, config.Get().AppEnv, config.Get().PromNamespace)
	if err != nil {
		logger.Error("failed to create prometheus metrics", "error", err)
		return
	}

	go func() {
		prom.ListenAndServer(":9100", "/metrics")
	}()

	go func() {
		err := service.Start()
		if err != nil {
			logger.Error("failed to start dispatcher", "error", err)
		}
	}()

	select {
	case <-c:
		service.Stop()
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
