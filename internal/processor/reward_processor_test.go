package processor

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/nimasrn/dv-referral-ledger/internal/model"
	"github.com/nimasrn/dv-referral-ledger/internal/queue"
	"github.com/nimasrn/dv-referral-ledger/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockRewardProcessor struct {
	mock.Mock
}

func (m *MockRewardProcessor) ProcessReferralReward(ctx context.Context, formID int64) (*model.ReferralResult, error) {
	args := m.Called(ctx, formID)
	res, _ := args.Get(0).(*model.ReferralResult)
	return res, args.Error(1)
}

func rewardMessage(t *testing.T, eventID, formID int64) *queue.Message {
	t.Helper()
	data, err := json.Marshal(model.RewardEvent{EventID: eventID, EventType: model.EventPaymentVerified, FormID: formID})
	require.NoError(t, err)
	return &queue.Message{ID: "1-0", Data: data, Attempts: 1}
}

func newEventProcessor(t *testing.T, cfg IdempotencyConfig) (*ReferralEventProcessor, *MockRewardProcessor, *IdempotencyService) {
	_, a := newTestRedis(t)
	rewards := &MockRewardProcessor{}
	idem := NewIdempotencyService(a, cfg)
	return NewReferralEventProcessor(rewards, idem), rewards, idem
}

func TestReferralEventProcessor_Process(t *testing.T) {
	ctx := context.Background()

	t.Run("credits once and acknowledges redelivery", func(t *testing.T) {
		p, rewards, idem := newEventProcessor(t, DefaultIdempotencyConfig())
		rewards.On("ProcessReferralReward", mock.Anything, int64(7)).
			Return(&model.ReferralResult{Success: true, Message: model.MsgRewardProcessed}, nil).Once()

		require.NoError(t, p.Process(ctx, rewardMessage(t, 1, 7)))
		require.NoError(t, p.Process(ctx, rewardMessage(t, 1, 7)))

		rewards.AssertNumberOfCalls(t, "ProcessReferralReward", 1)
		done, err := idem.IsProcessed(ctx, "1")
		require.NoError(t, err)
		assert.True(t, done)
	})

	t.Run("two events for the same form both reach the service", func(t *testing.T) {
		p, rewards, _ := newEventProcessor(t, DefaultIdempotencyConfig())
		rewards.On("ProcessReferralReward", mock.Anything, int64(7)).
			Return(&model.ReferralResult{Success: true, Message: model.MsgAlreadyRewarded}, nil)

		require.NoError(t, p.Process(ctx, rewardMessage(t, 1, 7)))
		require.NoError(t, p.Process(ctx, rewardMessage(t, 2, 7)))
		rewards.AssertNumberOfCalls(t, "ProcessReferralReward", 2)
	})

	t.Run("transient failure is retried", func(t *testing.T) {
		p, rewards, idem := newEventProcessor(t, DefaultIdempotencyConfig())
		rewards.On("ProcessReferralReward", mock.Anything, int64(7)).
			Return(nil, errors.New("connection reset")).Once()
		rewards.On("ProcessReferralReward", mock.Anything, int64(7)).
			Return(&model.ReferralResult{Success: true, Message: model.MsgRewardProcessed}, nil).Once()

		err := p.Process(ctx, rewardMessage(t, 3, 7))
		require.Error(t, err)
		count, err := idem.GetRetryCount(ctx, "3")
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		require.NoError(t, p.Process(ctx, rewardMessage(t, 3, 7)))
		rewards.AssertExpectations(t)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		cfg := DefaultIdempotencyConfig()
		cfg.MaxRetries = 2
		p, rewards, _ := newEventProcessor(t, cfg)
		rewards.On("ProcessReferralReward", mock.Anything, int64(7)).Return(nil, errors.New("db down"))

		require.Error(t, p.Process(ctx, rewardMessage(t, 4, 7)))
		require.Error(t, p.Process(ctx, rewardMessage(t, 4, 7)))
		err := p.Process(ctx, rewardMessage(t, 4, 7))
		assert.ErrorIs(t, err, ErrMaxRetriesExceeded)
		rewards.AssertNumberOfCalls(t, "ProcessReferralReward", 2)
	})

	t.Run("permanent failures are acknowledged", func(t *testing.T) {
		p, rewards, idem := newEventProcessor(t, DefaultIdempotencyConfig())
		rewards.On("ProcessReferralReward", mock.Anything, int64(8)).Return(nil, services.ErrFormNotFound)
		rewards.On("ProcessReferralReward", mock.Anything, int64(9)).
			Return(nil, errors.Join(errors.New("lookup"), services.ErrReferrerNotFound))

		require.NoError(t, p.Process(ctx, rewardMessage(t, 5, 8)))
		require.NoError(t, p.Process(ctx, rewardMessage(t, 6, 9)))

		done, err := idem.IsProcessed(ctx, "5")
		require.NoError(t, err)
		assert.True(t, done)
	})

	t.Run("malformed payload is dropped", func(t *testing.T) {
		p, rewards, _ := newEventProcessor(t, DefaultIdempotencyConfig())
		require.NoError(t, p.Process(ctx, &queue.Message{ID: "1-0", Data: []byte("{not json")}))
		require.NoError(t, p.Process(ctx, &queue.Message{ID: "2-0", Data: []byte(`{"event_id":0,"form_id":3}`)}))
		rewards.AssertNotCalled(t, "ProcessReferralReward", mock.Anything, mock.Anything)
	})

	t.Run("held lock leaves the message pending", func(t *testing.T) {
		p, rewards, idem := newEventProcessor(t, DefaultIdempotencyConfig())
		_, err := idem.AcquireProcessingLock(ctx, "10")
		require.NoError(t, err)

		require.Error(t, p.Process(ctx, rewardMessage(t, 10, 7)))
		rewards.AssertNotCalled(t, "ProcessReferralReward", mock.Anything, mock.Anything)
	})
}
