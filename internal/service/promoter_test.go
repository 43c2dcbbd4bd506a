package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/notify-dispatch/config"
	"github.com/target/notify-dispatch/internal/core"
	"github.com/target/notify-dispatch/internal/mocks"
	"go.uber.org/mock/gomock"
)

func TestPromoter_PromoteDue(t *testing.T) {
	ctrl := gomock.NewController(t)
	queue := mocks.NewMockQueueRepository(ctrl)
	sink := &recordingSink{}

	p, err := NewPromoter(PromoterOptions{
		Queue: queue,
		Config: config.DispatcherConfig{
			TenantID:     "t-1",
			RetryBackoff: 30 * time.Second,
			PromoteLimit: 500,
		},
		Metrics: sink,
	})
	require.NoError(t, err)

	queue.EXPECT().PromoteScheduled(gomock.Any(), core.PromoteParams{
		TenantID:     "t-1",
		RetryBackoff: 30 * time.Second,
		Limit:        500,
	}).Return(4, nil)

	n, err := p.PromoteDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, int64(4), sink.sum("dispatch.promoted"))
}

func TestPromoter_NothingDue(t *testing.T) {
	ctrl := gomock.NewController(t)
	queue := mocks.NewMockQueueRepository(ctrl)
	p, err := NewPromoter(PromoterOptions{Queue: queue})
	require.NoError(t, err)

	queue.EXPECT().PromoteScheduled(gomock.Any(), gomock.Any()).Return(0, nil)

	n, err := p.PromoteDue(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPromoter_Error(t *testing.T) {
	ctrl := gomock.NewController(t)
	queue := mocks.NewMockQueueRepository(ctrl)
	p, err := NewPromoter(PromoterOptions{Queue: queue})
	require.NoError(t, err)

	dbErr := errors.New("statement timeout")
	queue.EXPECT().PromoteScheduled(gomock.Any(), gomock.Any()).Return(0, dbErr)

	n, err := p.PromoteDue(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
	assert.Contains(t, err.Error(), "promote due jobs")
	assert.Zero(t, n)
}

func TestNewPromoter_RequiresQueue(t *testing.T) {
	_, err := NewPromoter(PromoterOptions{})
	assert.Error(t, err)
}
