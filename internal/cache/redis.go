package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"coffee-backend/internal/config"
	"coffee-backend/internal/models"
)

const (
	paymentKeyFmt = "payment:idem:%s"
	paymentTTL    = 24 * time.Hour
)

var client *redis.Client

// Init initializes the Redis connection. On failure the client stays nil and
// every helper below becomes a no-op.
func Init(cfg *config.Config) error {
	client = redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		// Close the failed client and set to nil for graceful degradation
		client.Close()
		client = nil
		return err
	}
	return nil
}

// SetClient installs an already connected client, or nil to disable caching.
func SetClient(c *redis.Client) {
	client = c
}

// GetClient returns the Redis client
func GetClient() *redis.Client {
	return client
}

func Close() error {
	if client == nil {
		return nil
	}
	return client.Close()
}

// GetCachedPayment returns the stored result for an idempotency key.
func GetCachedPayment(ctx context.Context, key string) (*models.PaymentResult, bool) {
	if client == nil {
		return nil, false
	}
	data, err := client.Get(ctx, fmt.Sprintf(paymentKeyFmt, key)).Bytes()
	if err != nil {
		return nil, false
	}
	var result models.PaymentResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, false
	}
	return &result, true
}

// CachePayment stores a payment result for replay for 24 hours.
func CachePayment(ctx context.Context, key string, result *models.PaymentResult) {
	if client == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	client.Set(ctx, fmt.Sprintf(paymentKeyFmt, key), data, paymentTTL)
}

// ReplayCache exposes the payment helpers to services.
type ReplayCache struct{}

func (ReplayCache) GetPayment(ctx context.Context, key string) (*models.PaymentResult, bool) {
	return GetCachedPayment(ctx, key)
}

func (ReplayCache) PutPayment(ctx context.Context, key string, result *models.PaymentResult) {
	CachePayment(ctx, key, result)
}

// Ping reports redis health; a disabled cache reports an error.
func Ping(ctx context.Context) error {
	if client == nil {
		return fmt.Errorf("redis disabled")
	}
	return client.Ping(ctx).Err()
}
