package cache

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"coffee-backend/internal/models"
)

func TestHelpersDegradeWithoutClient(t *testing.T) {
	SetClient(nil)
	ctx := context.Background()

	CachePayment(ctx, "k1", &models.PaymentResult{AccountID: 1, NewOutstanding: decimal.NewFromInt(5)})
	_, ok := GetCachedPayment(ctx, "k1")
	assert.False(t, ok)
	assert.Error(t, Ping(ctx))
	assert.NoError(t, Close())

	var rc ReplayCache
	_, ok = rc.GetPayment(ctx, "k1")
	assert.False(t, ok)
}
