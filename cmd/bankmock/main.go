package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StatementLine is one incoming transfer on the mock bank account.
type StatementLine struct {
	Reference string    `json:"reference" binding:"required"`
	Amount    int64     `json:"amount" binding:"required,gt=0"`
	PaidAt    time.Time `json:"paid_at"`
	PayerName string    `json:"payer_name,omitempty"`
	Bank      string    `json:"bank,omitempty"`
}

type HealthResponse struct {
	Status       string    `json:"status"`
	BankID       string    `json:"bank_id"`
	Timestamp    time.Time `json:"timestamp"`
	Availability float64   `json:"availability"`
	Statements   int       `json:"statements"`
}

// MockBank keeps statement lines in memory and fails a configurable share
// of lookups to exercise client retries and circuit breaking.
type MockBank struct {
	mu           sync.RWMutex
	lines        map[string]StatementLine
	availability float64
	maxDelay     time.Duration
	bankID       string
	rng          *rand.Rand
	rngMu        sync.Mutex
}

func NewMockBank(availability float64, maxDelay time.Duration) *MockBank {
	return &MockBank{
		lines:        make(map[string]StatementLine),
		availability: availability,
		maxDelay:     maxDelay,
		bankID:       "MOCK_BANK_" + uuid.New().String()[:8],
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func normalizeReference(ref string) string {
	ref = strings.ToUpper(strings.TrimSpace(ref))
	return strings.NewReplacer(" ", "", "-", "").Replace(ref)
}

func (b *MockBank) Add(line StatementLine) StatementLine {
	line.Reference = normalizeReference(line.Reference)
	if line.PaidAt.IsZero() {
		line.PaidAt = time.Now().UTC()
	}
	if line.Bank == "" {
		line.Bank = b.bankID
	}
	b.mu.Lock()
	b.lines[line.Reference] = line
	b.mu.Unlock()
	return line
}

func (b *MockBank) Get(ref string) (StatementLine, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	line, ok := b.lines[normalizeReference(ref)]
	return line, ok
}

func (b *MockBank) available() bool {
	b.rngMu.Lock()
	defer b.rngMu.Unlock()
	return b.rng.Float64() < b.availability
}

func (b *MockBank) delay() time.Duration {
	if b.maxDelay <= 0 {
		return 0
	}
	b.rngMu.Lock()
	defer b.rngMu.Unlock()
	return time.Duration(b.rng.Int63n(int64(b.maxDelay)))
}

type Handler struct {
	bank *MockBank
}

func NewHandler(bank *MockBank) *Handler {
	return &Handler{bank: bank}
}

func (h *Handler) GetStatement(c *gin.Context) {
	ref := c.Param("reference")
	time.Sleep(h.bank.delay())

	if !h.bank.available() {
		log.Warn().Str("reference", ref).Msg("Simulated bank outage")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "bank temporarily unavailable"})
		return
	}

	line, ok := h.bank.Get(ref)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no statement line for reference"})
		return
	}
	c.JSON(http.StatusOK, line)
}

func (h *Handler) AddStatement(c *gin.Context) {
	var line StatementLine
	if err := c.ShouldBindJSON(&line); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}
	line = h.bank.Add(line)
	log.Info().Str("reference", line.Reference).Int64("amount", line.Amount).Msg("Statement line added")
	c.JSON(http.StatusCreated, line)
}

func (h *Handler) HealthCheck(c *gin.Context) {
	h.bank.mu.RLock()
	n := len(h.bank.lines)
	availability := h.bank.availability
	h.bank.mu.RUnlock()

	c.JSON(http.StatusOK, HealthResponse{
		Status:       "healthy",
		BankID:       h.bank.bankID,
		Timestamp:    time.Now(),
		Availability: availability,
		Statements:   n,
	})
}

// UpdateConfig changes the simulated availability at runtime.
func (h *Handler) UpdateConfig(c *gin.Context) {
	var config struct {
		Availability *float64 `json:"availability"`
	}
	if err := c.ShouldBindJSON(&config); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	h.bank.mu.Lock()
	if config.Availability != nil && *config.Availability >= 0 && *config.Availability <= 1 {
		h.bank.availability = *config.Availability
		log.Info().Float64("availability", *config.Availability).Msg("Updated availability")
	}
	availability := h.bank.availability
	h.bank.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"availability": availability})
}

func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request processed")
	})

	v1 := router.Group("/api/v1")
	{
		v1.GET("/statements/:reference", handler.GetStatement)
		v1.POST("/statements", handler.AddStatement)
		v1.PUT("/config", handler.UpdateConfig)
	}
	router.GET("/health", handler.HealthCheck)

	return router
}

// seed loads "REF:AMOUNT" pairs, comma separated.
func seed(bank *MockBank, list string) error {
	for _, pair := range strings.Split(list, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		ref, amount, ok := strings.Cut(pair, ":")
		if !ok {
			return fmt.Errorf("bad seed entry %q", pair)
		}
		var n int64
		if _, err := fmt.Sscanf(amount, "%d", &n); err != nil || n <= 0 {
			return fmt.Errorf("bad amount in seed entry %q", pair)
		}
		bank.Add(StatementLine{Reference: ref, Amount: n})
	}
	return nil
}

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	addr := getEnv("BANK_MOCK_LISTEN_ADDR", ":8090")
	availability := getEnvFloat("BANK_MOCK_AVAILABILITY", 1)
	maxDelay := getEnvDuration("BANK_MOCK_MAX_DELAY", 200*time.Millisecond)

	bank := NewMockBank(availability, maxDelay)
	if err := seed(bank, os.Getenv("BANK_MOCK_SEED")); err != nil {
		log.Fatal().Err(err).Msg("Invalid BANK_MOCK_SEED")
	}

	log.Info().
		Str("addr", addr).
		Float64("availability", availability).
		Dur("max_delay", maxDelay).
		Msg("Starting mock bank")

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:         addr,
		Handler:      SetupRouter(NewHandler(bank)),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited")
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
