package handlers

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/nimasrn/dv-referral-ledger/internal/model"
	xhttp "github.com/nimasrn/dv-referral-ledger/pkg/http"
	"github.com/nimasrn/dv-referral-ledger/pkg/jwt"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

type MockUserService struct{ mock.Mock }

func (m *MockUserService) Register(ctx context.Context, req model.RegisterRequest) (*model.RegisterResult, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*model.RegisterResult)
	return res, args.Error(1)
}

func (m *MockUserService) Get(ctx context.Context, id int64) (*model.User, error) {
	args := m.Called(ctx, id)
	res, _ := args.Get(0).(*model.User)
	return res, args.Error(1)
}

func (m *MockUserService) GetEarnings(ctx context.Context, id int64) (*model.Earnings, error) {
	args := m.Called(ctx, id)
	res, _ := args.Get(0).(*model.Earnings)
	return res, args.Error(1)
}

type MockReferralLister struct{ mock.Mock }

func (m *MockReferralLister) ListReferrals(ctx context.Context, referrerID int64, f model.ReferralFilter) ([]*model.Referral, int64, error) {
	args := m.Called(ctx, referrerID, f)
	res, _ := args.Get(0).([]*model.Referral)
	return res, args.Get(1).(int64), args.Error(2)
}

type MockFormService struct{ mock.Mock }

func (m *MockFormService) Create(ctx context.Context, req model.FormCreateRequest) (*model.Form, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*model.Form)
	return res, args.Error(1)
}

func (m *MockFormService) GetByTrackingID(ctx context.Context, trackingID string) (*model.FormTracking, error) {
	args := m.Called(ctx, trackingID)
	res, _ := args.Get(0).(*model.FormTracking)
	return res, args.Error(1)
}

func (m *MockFormService) BulkApprove(ctx context.Context, req model.BulkApproveRequest) ([]model.ApproveOutcome, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).([]model.ApproveOutcome)
	return res, args.Error(1)
}

func (m *MockFormService) List(ctx context.Context, f model.FormFilter) ([]*model.Form, int64, error) {
	args := m.Called(ctx, f)
	res, _ := args.Get(0).([]*model.Form)
	return res, args.Get(1).(int64), args.Error(2)
}

type MockPaymentService struct{ mock.Mock }

func (m *MockPaymentService) SubmitReceipt(ctx context.Context, formID int64, r model.Receipt) (*model.Form, error) {
	args := m.Called(ctx, formID, r)
	res, _ := args.Get(0).(*model.Form)
	return res, args.Error(1)
}

func (m *MockPaymentService) VerifyPayment(ctx context.Context, formID int64, req model.VerifyRequest) (*model.Form, error) {
	args := m.Called(ctx, formID, req)
	res, _ := args.Get(0).(*model.Form)
	return res, args.Error(1)
}

type MockPayoutService struct{ mock.Mock }

func (m *MockPayoutService) payout(args mock.Arguments) (*model.Payout, error) {
	res, _ := args.Get(0).(*model.Payout)
	return res, args.Error(1)
}

func (m *MockPayoutService) RequestPayout(ctx context.Context, userID int64) (*model.Payout, error) {
	return m.payout(m.Called(ctx, userID))
}

func (m *MockPayoutService) ApprovePayout(ctx context.Context, payoutID int64) (*model.Payout, error) {
	return m.payout(m.Called(ctx, payoutID))
}

func (m *MockPayoutService) MarkPaid(ctx context.Context, payoutID int64) (*model.Payout, error) {
	return m.payout(m.Called(ctx, payoutID))
}

func (m *MockPayoutService) RejectPayout(ctx context.Context, payoutID int64, note string) (*model.Payout, error) {
	return m.payout(m.Called(ctx, payoutID, note))
}

func (m *MockPayoutService) ReversePayout(ctx context.Context, payoutID int64, note string) (*model.Payout, error) {
	return m.payout(m.Called(ctx, payoutID, note))
}

func (m *MockPayoutService) Get(ctx context.Context, id int64) (*model.Payout, error) {
	return m.payout(m.Called(ctx, id))
}

func (m *MockPayoutService) ListPayouts(ctx context.Context, f model.PayoutFilter) ([]*model.Payout, int64, error) {
	args := m.Called(ctx, f)
	res, _ := args.Get(0).([]*model.Payout)
	return res, args.Get(1).(int64), args.Error(2)
}

type MockHealthService struct{ mock.Mock }

func (m *MockHealthService) Check(ctx context.Context) map[string]string {
	return m.Called(ctx).Get(0).(map[string]string)
}

type testAPI struct {
	users    *MockUserService
	refs     *MockReferralLister
	forms    *MockFormService
	payments *MockPaymentService
	payouts  *MockPayoutService
	health   *MockHealthService
	tokens   *jwt.Manager
	handler  fasthttp.RequestHandler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	api := &testAPI{
		users:    &MockUserService{},
		refs:     &MockReferralLister{},
		forms:    &MockFormService{},
		payments: &MockPaymentService{},
		payouts:  &MockPayoutService{},
		health:   &MockHealthService{},
		tokens:   jwt.NewManager("test-secret", time.Hour),
	}

	r := xhttp.CreateDefaultRouter()
	Register(r.Group("/api/v1"), Handlers{
		Health:  NewHealthHandler(api.health),
		Users:   NewUserHandler(api.users, api.refs),
		Forms:   NewFormHandler(api.forms, api.payments),
		Admin:   NewAdminHandler(api.forms, api.payments),
		Payouts: NewPayoutHandler(api.payouts),
	}, api.tokens)
	api.handler = r.Handler
	return api
}

func (a *testAPI) token(t *testing.T, subject string, role model.Role) string {
	t.Helper()
	tok, err := a.tokens.Issue(subject, string(role))
	require.NoError(t, err)
	return tok
}

// do runs one request through the router and returns the response context.
// Init gives the context a server, which handlers rely on when they pass it
// on as a context.Context.
func (a *testAPI) do(method, path, token string, body any) *fasthttp.RequestCtx {
	var req fasthttp.Request
	req.Header.SetMethod(method)
	req.SetRequestURI(path)
	if token != "" {
		req.Header.Set(fasthttp.HeaderAuthorization, "Bearer "+token)
	}
	switch b := body.(type) {
	case nil:
	case string:
		req.SetBodyString(b)
	default:
		raw, _ := json.Marshal(b)
		req.SetBody(raw)
	}
	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&req, nil, nil)
	a.handler(ctx)
	return ctx
}

func decode[T any](t *testing.T, ctx *fasthttp.RequestCtx) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &v), string(ctx.Response.Body()))
	return v
}
