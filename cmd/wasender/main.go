package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// MessageStatus is the provider-side state of an accepted message.
type MessageStatus string

const (
	StatusSent    MessageStatus = "sent"
	StatusPending MessageStatus = "pending"
	StatusFailed  MessageStatus = "failed"
)

// CreateMessageResponse mirrors the wasender create-message payload.
type CreateMessageResponse struct {
	MessageID   string        `json:"message_id"`
	Status      MessageStatus `json:"status"`
	To          string        `json:"to"`
	ErrorCode   string        `json:"error_code,omitempty"`
	ErrorMsg    string        `json:"error_message,omitempty"`
	ProcessedAt time.Time     `json:"processed_at"`
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status       string    `json:"status"`
	InstanceID   string    `json:"instance_id"`
	Timestamp    time.Time `json:"timestamp"`
	DeliveryRate float64   `json:"delivery_rate"`
}

// MockSender simulates the WhatsApp provider backend.
type MockSender struct {
	appKey       string
	authKey      string
	deliveryRate float64
	minDelay     time.Duration
	maxDelay     time.Duration
	instanceID   string
	rng          *rand.Rand
}

func NewMockSender(appKey, authKey string, deliveryRate float64, minDelay, maxDelay time.Duration) *MockSender {
	return &MockSender{
		appKey:       appKey,
		authKey:      authKey,
		deliveryRate: deliveryRate,
		minDelay:     minDelay,
		maxDelay:     maxDelay,
		instanceID:   "WASENDER_" + uuid.New().String()[:8],
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *MockSender) simulateDelivery(to, message string) *CreateMessageResponse {
	delay := m.randomDelay()
	time.Sleep(delay)

	response := &CreateMessageResponse{
		MessageID:   uuid.New().String(),
		To:          to,
		ProcessedAt: time.Now(),
	}

	if m.shouldSucceed() {
		response.Status = StatusSent

		log.Info().
			Str("message_id", response.MessageID).
			Str("to", to).
			Int("message_len", len(message)).
			Dur("delay", delay).
			Msg("message accepted")
	} else {
		response.Status = StatusFailed
		response.ErrorCode = m.randomErrorCode()
		response.ErrorMsg = m.errorMessage(response.ErrorCode)

		log.Warn().
			Str("message_id", response.MessageID).
			Str("to", to).
			Str("error_code", response.ErrorCode).
			Msg("message rejected")
	}

	return response
}

func (m *MockSender) randomDelay() time.Duration {
	delta := m.maxDelay - m.minDelay
	if delta <= 0 {
		return m.minDelay
	}
	return m.minDelay + time.Duration(m.rng.Int63n(int64(delta)))
}

func (m *MockSender) shouldSucceed() bool {
	return m.rng.Float64() < m.deliveryRate
}

func (m *MockSender) randomErrorCode() string {
	errorCodes := []string{
		"INVALID_NUMBER",
		"NOT_ON_WHATSAPP",
		"NETWORK_ERROR",
		"TIMEOUT",
		"BLOCKED",
	}
	return errorCodes[m.rng.Intn(len(errorCodes))]
}

func (m *MockSender) errorMessage(code string) string {
	messages := map[string]string{
		"INVALID_NUMBER":  "The phone number is invalid or not in service",
		"NOT_ON_WHATSAPP": "The recipient is not registered on WhatsApp",
		"NETWORK_ERROR":   "Network connectivity issue",
		"TIMEOUT":         "Message delivery timed out",
		"BLOCKED":         "The recipient has blocked this sender",
	}

	if msg, ok := messages[code]; ok {
		return msg
	}
	return "Unknown error occurred"
}

type Handler struct {
	sender *MockSender
}

func NewHandler(sender *MockSender) *Handler {
	return &Handler{sender: sender}
}

// CreateMessage accepts the multipart create-message form the gateway
// client posts: appkey, authkey, to, message and an optional file URL.
func (h *Handler) CreateMessage(c *gin.Context) {
	appKey := c.PostForm("appkey")
	authKey := c.PostForm("authkey")
	to := c.PostForm("to")
	message := c.PostForm("message")
	file := c.PostForm("file")

	if h.sender.appKey != "" && appKey != h.sender.appKey {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid appkey"})
		return
	}
	if h.sender.authKey != "" && authKey != h.sender.authKey {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authkey"})
		return
	}
	if to == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to is required"})
		return
	}
	if message == "" && file == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message or file is required"})
		return
	}

	log.Info().
		Str("to", to).
		Bool("has_file", file != "").
		Msg("received create-message request")

	response := h.sender.simulateDelivery(to, message)

	statusCode := http.StatusOK
	if response.Status == StatusFailed {
		statusCode = http.StatusUnprocessableEntity
	}

	c.JSON(statusCode, response)
}

func (h *Handler) HealthCheck(c *gin.Context) {
	// Simulate 5% downtime
	if h.sender.rng.Float64() < 0.05 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"error":  "provider temporarily unavailable",
		})
		return
	}

	c.JSON(http.StatusOK, HealthResponse{
		Status:       "healthy",
		InstanceID:   h.sender.instanceID,
		Timestamp:    time.Now(),
		DeliveryRate: h.sender.deliveryRate,
	})
}

func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Msg("request processed")
	})

	public := router.Group("/public/api")
	{
		public.POST("/create-message", handler.CreateMessage)
	}

	router.GET("/health", handler.HealthCheck)

	return router
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := getEnv("PORT", "8082")
	appKey := getEnv("WASENDER_APP_KEY", "")
	authKey := getEnv("WASENDER_AUTH_KEY", "")
	deliveryRate := getEnvFloat("DELIVERY_RATE", 1)
	minDelay := getEnvDuration("MIN_DELAY", 100*time.Millisecond)
	maxDelay := getEnvDuration("MAX_DELAY", 2*time.Second)

	log.Info().
		Str("port", port).
		Float64("delivery_rate", deliveryRate).
		Dur("min_delay", minDelay).
		Dur("max_delay", maxDelay).
		Msg("starting mock WhatsApp sender")

	sender := NewMockSender(appKey, authKey, deliveryRate, minDelay, maxDelay)
	handler := NewHandler(sender)
	router := SetupRouter(handler)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
