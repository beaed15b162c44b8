package helpers

import (
	"context"
	"encoding/json"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/nimasrn/dv-referral-ledger/internal/handlers"
	"github.com/nimasrn/dv-referral-ledger/internal/processor"
	"github.com/nimasrn/dv-referral-ledger/internal/queue"
	"github.com/nimasrn/dv-referral-ledger/internal/repository"
	"github.com/nimasrn/dv-referral-ledger/internal/services"
	xhttp "github.com/nimasrn/dv-referral-ledger/pkg/http"
	"github.com/nimasrn/dv-referral-ledger/pkg/jwt"
	"github.com/nimasrn/dv-referral-ledger/pkg/pg"
	"github.com/nimasrn/dv-referral-ledger/pkg/redis"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttputil"
)

const (
	ApplicationFee = 500
	JWTSecret      = "e2e-secret"

	requestTimeout = 5 * time.Second
)

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	t.Helper()
	mr := miniredis.RunT(t)
	adapter, err := redis.NewRedisAdapter(t.Name()+"-"+mr.Addr(), "", &redis.Options{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)
	return mr, adapter
}

// Environment is the whole system wired over sqlite and miniredis: the API
// router, the outbox relay, and a running reward processor.
type Environment struct {
	DB        *pg.DB
	Redis     *miniredis.Miniredis
	Adapter   redis.RedisAdapter
	Queue     *queue.Queue
	Users     *repository.UserRepository
	Forms     *repository.FormRepository
	Referrals *repository.ReferralRepository
	Ledger    *repository.LedgerRepository
	Outbox    *repository.OutboxRepository
	Relay     *processor.OutboxRelay
	Processor *processor.ProcessorService
	Tokens    *jwt.Manager

	client *fasthttp.Client
}

type Option func(*options)

type options struct {
	bank services.ReceiptLookup
}

// WithBank makes payment verification consult bank.
func WithBank(bank services.ReceiptLookup) Option {
	return func(o *options) { o.bank = bank }
}

func NewEnvironment(t *testing.T, opts ...Option) *Environment {
	t.Helper()
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	db := repository.OpenTestDB(t)
	mr, adapter := SetupTestRedis(t)

	env := &Environment{
		DB:        db,
		Redis:     mr,
		Adapter:   adapter,
		Users:     repository.NewUserRepository(db),
		Forms:     repository.NewFormRepository(db),
		Referrals: repository.NewReferralRepository(db),
		Ledger:    repository.NewLedgerRepository(db),
		Outbox:    repository.NewOutboxRepository(db),
		Tokens:    jwt.NewManager(JWTSecret, time.Hour),
	}
	payouts := repository.NewPayoutRepository(db)

	referralService := services.NewReferralService(db, env.Users, env.Referrals, env.Forms, env.Ledger)
	userService := services.NewUserService(db, env.Users, env.Forms, referralService, env.Ledger)
	formService := services.NewFormService(db, env.Forms, env.Outbox)
	verifier := services.NewReceiptVerifier(ApplicationFee, 30*24*time.Hour, env.Forms, o.bank)
	paymentService := services.NewPaymentService(db, env.Forms, env.Outbox, verifier)
	payoutService := services.NewPayoutService(db, payouts, env.Referrals, env.Users, env.Ledger)

	r := xhttp.CreateDefaultRouter()
	handlers.Register(r.Group("/api/v1"), handlers.Handlers{
		Health:  handlers.NewHealthHandler(services.NewHealthService(db, adapter)),
		Users:   handlers.NewUserHandler(userService, referralService),
		Forms:   handlers.NewFormHandler(formService, paymentService),
		Admin:   handlers.NewAdminHandler(formService, paymentService),
		Payouts: handlers.NewPayoutHandler(payoutService),
	}, env.Tokens)
	env.client = serveInmemory(t, xhttp.RequestIDMiddleware(r.Handler))

	qcfg := queue.QueueConfig{
		Name:              "e2e:rewards",
		ConsumerGroup:     "e2e",
		ConsumerName:      "e2e",
		MaxRetries:        3,
		VisibilityTimeout: time.Second,
		PollInterval:      10 * time.Millisecond,
		BatchSize:         10,
		EnableDLQ:         true,
	}
	q, err := queue.NewQueue(adapter, qcfg)
	require.NoError(t, err)
	env.Queue = q
	env.Relay = processor.NewOutboxRelay(db, env.Outbox, q, 25*time.Millisecond, 50)

	idem := processor.NewIdempotencyService(adapter, processor.DefaultIdempotencyConfig())
	env.Processor = processor.NewProcessorService(
		func(c queue.QueueConfig) (*queue.Queue, error) { return queue.NewQueue(adapter, c) },
		processor.NewReferralEventProcessor(referralService, idem),
		processor.Options{Queue: qcfg, Consumers: 1, Workers: 2},
	).WithRelay(env.Relay)

	return env
}

// Start runs the relay and the reward processor until the test ends.
func (e *Environment) Start(t *testing.T) {
	t.Helper()
	require.NoError(t, e.Processor.Start())
	t.Cleanup(e.Processor.Stop)
}

func (e *Environment) AdminToken(t *testing.T) string {
	t.Helper()
	tok, err := e.Tokens.Issue("1", "admin")
	require.NoError(t, err)
	return tok
}

func (e *Environment) UserToken(t *testing.T, userID int64) string {
	t.Helper()
	tok, err := e.Tokens.Issue(strconv.FormatInt(userID, 10), "user")
	require.NoError(t, err)
	return tok
}

type Response struct {
	Status int
	Body   []byte
}

func (r Response) Decode(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.Body, v), string(r.Body))
}

// serveInmemory runs handler on a real fasthttp server over an in-memory
// listener, so handlers get fully initialized request contexts.
func serveInmemory(t *testing.T, handler fasthttp.RequestHandler) *fasthttp.Client {
	t.Helper()
	ln := fasthttputil.NewInmemoryListener()
	server := &fasthttp.Server{Handler: handler}
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = server.Serve(ln)
	}()
	client := &fasthttp.Client{
		Dial: func(string) (net.Conn, error) { return ln.Dial() },
	}
	t.Cleanup(func() {
		client.CloseIdleConnections()
		_ = server.Shutdown()
		_ = ln.Close()
		<-done
	})
	return client
}

func (e *Environment) Do(t *testing.T, method, path, token string, body any) Response {
	t.Helper()
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.Header.SetMethod(method)
	req.SetRequestURI("http://ledger.test/api/v1" + path)
	if token != "" {
		req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+token)
	}
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		req.Header.SetContentType("application/json")
		req.SetBody(raw)
	}
	require.NoError(t, e.client.DoTimeout(req, resp, requestTimeout))
	return Response{Status: resp.StatusCode(), Body: append([]byte(nil), resp.Body()...)}
}

// Balance reads the cached referral earnings straight from the database.
func (e *Environment) Balance(t *testing.T, userID int64) int64 {
	t.Helper()
	u, err := e.Users.GetByID(context.Background(), userID)
	require.NoError(t, err)
	return u.ReferralEarnings
}

func (e *Environment) RequireLedgerConsistent(t *testing.T) {
	t.Helper()
	drift, err := e.Ledger.FindDrift(context.Background())
	require.NoError(t, err)
	require.Empty(t, drift)
}
