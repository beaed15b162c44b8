package gateways

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/nimasrn/dv-referral-ledger/internal/model"
	"github.com/nimasrn/dv-referral-ledger/pkg/logger"
	"github.com/valyala/fasthttp"
)

var (
	ErrNoAvailableProviders = errors.New("no available bank providers")
	ErrReceiptNotFound      = errors.New("receipt not found at bank")
)

const statementPath = "/api/v1/statements/"

type Config struct {
	Providers               []ProviderConfig
	Timeout                 time.Duration
	MaxRetries              int
	RetryDelay              time.Duration
	MaxConns                int
	HealthCheckInterval     time.Duration // 0 disables background checks
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration
	Dial                    fasthttp.DialFunc
}

type ProviderConfig struct {
	Name   string
	URL    string
	Weight int // 1-100
}

// BankClient looks up payment references at one or more bank statement
// providers, picking the best scoring provider on each attempt.
type BankClient struct {
	config    *Config
	providers []*Provider
	mu        sync.RWMutex
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

func NewBankClient(config *Config) (*BankClient, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if len(config.Providers) == 0 {
		return nil, errors.New("at least one provider is required")
	}

	c := &BankClient{
		config:    config,
		providers: make([]*Provider, 0, len(config.Providers)),
		stopCh:    make(chan struct{}),
	}
	for _, pc := range config.Providers {
		httpClient := &fasthttp.Client{
			MaxConnsPerHost:     config.MaxConns,
			ReadTimeout:         config.Timeout,
			WriteTimeout:        config.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
			Dial:                config.Dial,
		}
		c.providers = append(c.providers, NewProvider(pc.Name, pc.URL, pc.Weight, httpClient))
		logger.Info("bank provider initialized", "name", pc.Name, "url", pc.URL, "weight", pc.Weight)
	}

	if config.HealthCheckInterval > 0 {
		c.wg.Add(1)
		go c.healthChecker()
	}
	return c, nil
}

func (c *BankClient) SelectBestProvider() (*Provider, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var best *Provider
	var bestScore float64
	for _, p := range c.providers {
		if !p.IsAvailable() {
			continue
		}
		if score := p.CalculateScore(); score > bestScore {
			bestScore = score
			best = p
		}
	}
	if best == nil {
		return nil, ErrNoAvailableProviders
	}
	return best, nil
}

// LookupReceipt fetches the statement line for reference. A 404 from a
// provider is an answer, not a failure: it returns ErrReceiptNotFound
// without retrying.
func (c *BankClient) LookupReceipt(ctx context.Context, reference string) (*model.BankRecord, error) {
	path := statementPath + url.PathEscape(reference)

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.config.RetryDelay):
			}
		}

		provider, err := c.SelectBestProvider()
		if err != nil {
			lastErr = err
			continue
		}

		start := time.Now()
		status, body, err := c.doRequest(ctx, provider, fasthttp.MethodGet, path)
		latency := time.Since(start).Milliseconds()

		if err == nil && status == fasthttp.StatusNotFound {
			provider.metrics.RecordSuccess(latency)
			return nil, fmt.Errorf("%w: %s", ErrReceiptNotFound, reference)
		}
		if err == nil && status != fasthttp.StatusOK {
			err = fmt.Errorf("unexpected status code: %d, body: %s", status, body)
		}
		if err != nil {
			provider.metrics.RecordFailure()
			c.checkCircuitBreaker(provider)
			logger.Warn("bank lookup failed, retrying", "error", err, "provider", provider.name, "attempt", attempt+1)
			lastErr = err
			continue
		}

		provider.metrics.RecordSuccess(latency)
		var record model.BankRecord
		if err := json.Unmarshal(body, &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal bank record: %w", err)
		}
		if record.Bank == "" {
			record.Bank = provider.name
		}
		return &record, nil
	}

	return nil, fmt.Errorf("bank lookup failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

func (c *BankClient) doRequest(ctx context.Context, provider *Provider, method, path string) (int, []byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(provider.url + path)
	req.Header.SetMethod(method)
	req.Header.Set("Accept", "application/json")

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}
	if err := provider.client.DoDeadline(req, resp, deadline); err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}

	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return resp.StatusCode(), body, nil
}

func (c *BankClient) checkCircuitBreaker(provider *Provider) {
	fails := provider.metrics.ConsecutiveFails.Load()
	if c.config.CircuitBreakerThreshold <= 0 || fails < int32(c.config.CircuitBreakerThreshold) {
		return
	}
	provider.SetState(StateCircuitOpen)
	provider.circuitOpenUntil.Store(time.Now().Add(c.config.CircuitBreakerTimeout).Unix())
	logger.Warn("circuit breaker opened", "provider", provider.name, "consecutive_fails", fails, "timeout", c.config.CircuitBreakerTimeout)
}

func (c *BankClient) healthChecker() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.HealthCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.performHealthChecks()
		case <-c.stopCh:
			return
		}
	}
}

func (c *BankClient) performHealthChecks() {
	ctx, cancel := context.WithTimeout(context.Background(), c.config.Timeout)
	defer cancel()

	c.mu.RLock()
	providers := append([]*Provider(nil), c.providers...)
	c.mu.RUnlock()

	for _, p := range providers {
		if p.GetState() == StateCircuitOpen {
			continue
		}
		old := p.GetState()
		next := StateUnhealthy
		if c.checkProviderHealth(ctx, p) {
			next = StateHealthy
			if old == StateDegraded && p.metrics.SuccessRate() < 0.8 {
				next = StateDegraded
			}
		}
		if next != old {
			p.SetState(next)
			logger.Info("bank provider state changed", "provider", p.name, "old_state", old.String(), "new_state", next.String())
		}
	}
}

func (c *BankClient) checkProviderHealth(ctx context.Context, p *Provider) bool {
	status, body, err := c.doRequest(ctx, p, fasthttp.MethodGet, "/health")
	if err != nil || status != fasthttp.StatusOK {
		return false
	}
	var health struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(body, &health); err != nil {
		return false
	}
	return health.Status == "healthy"
}

func (c *BankClient) GetProviderStats() []ProviderStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	stats := make([]ProviderStats, 0, len(c.providers))
	for _, p := range c.providers {
		stats = append(stats, ProviderStats{
			Name:             p.name,
			State:            p.GetState().String(),
			Score:            p.CalculateScore(),
			TotalRequests:    p.metrics.TotalRequests.Load(),
			FailedReqs:       p.metrics.FailedReqs.Load(),
			SuccessRate:      p.metrics.SuccessRate(),
			AvgLatencyMs:     p.metrics.AvgLatencyMs(),
			P95LatencyMs:     p.metrics.P95LatencyMs(),
			ConsecutiveFails: p.metrics.ConsecutiveFails.Load(),
		})
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Score > stats[j].Score })
	return stats
}

func (c *BankClient) Close() error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
	return nil
}
