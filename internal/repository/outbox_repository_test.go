package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nimasrn/dv-referral-ledger/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutboxRepository(t *testing.T) {
	db := OpenTestDB(t)
	repo := NewOutboxRepository(db)
	ctx := context.Background()

	first, err := repo.Create(ctx, model.NewFormEvent(model.EventPaymentVerified, 1))
	require.NoError(t, err)
	second, err := repo.Create(ctx, model.NewFormEvent(model.EventFormApproved, 2))
	require.NoError(t, err)

	pending, err := repo.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID)
	assert.JSONEq(t, `{"form_id":1}`, string(pending[0].Payload))

	require.NoError(t, repo.MarkFailed(ctx, second.ID, errors.New("redis down")))
	require.NoError(t, repo.MarkPublished(ctx, []int64{first.ID}, time.Now()))

	pending, err = repo.ClaimPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, second.ID, pending[0].ID)
	assert.Equal(t, 1, pending[0].Attempts)
	assert.Equal(t, "redis down", pending[0].LastError)

	count, err := repo.CountPending(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	events, err := repo.ListByAggregate(ctx, 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, model.OutboxStatusPublished, events[0].Status)
	assert.NotNil(t, events[0].PublishedAt)
}
