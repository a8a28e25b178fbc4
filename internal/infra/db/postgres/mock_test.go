//go:build !integration

package postgres

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	"wallet-billing/internal/domain/model"
	"wallet-billing/internal/domain/ports/repository"
	red "wallet-billing/internal/infra/redis"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerCouponRepo mocks the database repository that the coupon decorator wraps.
type mockInnerCouponRepo struct {
	SaveFunc           func(ctx context.Context, tx repository.Tx, c *model.Coupon) error
	FindByIDOrCodeFunc func(ctx context.Context, tx repository.Tx, ref string) (*model.Coupon, error)
	IncrementUsageFunc func(ctx context.Context, tx repository.Tx, id string) error
}

func (m *mockInnerCouponRepo) Save(ctx context.Context, tx repository.Tx, c *model.Coupon) error {
	return m.SaveFunc(ctx, tx, c)
}
func (m *mockInnerCouponRepo) FindByIDOrCode(ctx context.Context, tx repository.Tx, ref string) (*model.Coupon, error) {
	return m.FindByIDOrCodeFunc(ctx, tx, ref)
}
func (m *mockInnerCouponRepo) IncrementUsage(ctx context.Context, tx repository.Tx, id string) error {
	return m.IncrementUsageFunc(ctx, tx, id)
}

// mockRedisClient mocks our Redis client wrapper.
type mockRedisClient struct {
	GetFunc   func(ctx context.Context, key string) (string, error)
	SetFunc   func(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	SetNXFunc func(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
	DelFunc   func(ctx context.Context, keys ...string) error
	PingFunc  func(ctx context.Context) error
	EvalFunc  func(ctx context.Context, script *redis.Script, keys []string, args ...interface{}) (interface{}, error)
	CloseFunc func() error
}

var _ red.RedisClient = &mockRedisClient{}

func (m *mockRedisClient) Get(ctx context.Context, key string) (string, error) {
	if m.GetFunc == nil {
		return "", redis.Nil
	}
	return m.GetFunc(ctx, key)
}

func (m *mockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if m.SetFunc == nil {
		return nil
	}
	return m.SetFunc(ctx, key, value, expiration)
}

func (m *mockRedisClient) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	if m.SetNXFunc == nil {
		return true, nil
	}
	return m.SetNXFunc(ctx, key, value, expiration)
}

func (m *mockRedisClient) Del(ctx context.Context, keys ...string) error {
	if m.DelFunc == nil {
		return nil
	}
	return m.DelFunc(ctx, keys...)
}

func (m *mockRedisClient) Ping(ctx context.Context) error {
	if m.PingFunc == nil {
		return nil
	}
	return m.PingFunc(ctx)
}

func (m *mockRedisClient) Eval(ctx context.Context, script *redis.Script, keys []string, args ...interface{}) (interface{}, error) {
	if m.EvalFunc == nil {
		return int64(1), nil
	}
	return m.EvalFunc(ctx, script, keys, args...)
}

func (m *mockRedisClient) Close() error {
	if m.CloseFunc == nil {
		return nil
	}
	return m.CloseFunc()
}
