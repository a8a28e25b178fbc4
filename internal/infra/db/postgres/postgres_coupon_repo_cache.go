package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"wallet-billing/internal/domain/model"
	"wallet-billing/internal/domain/ports/repository"
	"wallet-billing/internal/infra/metrics"
	red "wallet-billing/internal/infra/redis"
)

var _ repository.CouponRepository = (*couponRepoCacheDecorator)(nil)

// couponRepoCacheDecorator caches coupon lookups by id and by code. Coupons
// change rarely (usage counters aside), so a short TTL plus write-through
// invalidation keeps renewal pricing off the hot path.
type couponRepoCacheDecorator struct {
	inner repository.CouponRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewCouponRepoCacheDecorator(inner repository.CouponRepository, cache red.RedisClient) repository.CouponRepository {
	return &couponRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   15 * time.Minute,
	}
}

func couponKey(ref string) string { return fmt.Sprintf("coupon:%s", ref) }

func (d *couponRepoCacheDecorator) FindByIDOrCode(ctx context.Context, tx repository.Tx, ref string) (*model.Coupon, error) {
	key := couponKey(ref)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		metrics.IncCacheRequest("coupon", "hit")
		var c model.Coupon
		if json.Unmarshal([]byte(val), &c) == nil {
			return &c, nil
		}
	}

	metrics.IncCacheRequest("coupon", "miss")
	c, err := d.inner.FindByIDOrCode(ctx, tx, ref)
	if err != nil {
		return nil, err
	}
	if c != nil {
		bytes, _ := json.Marshal(c)
		d.cache.Set(ctx, key, bytes, d.ttl)
	}
	return c, nil
}

func (d *couponRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, c *model.Coupon) error {
	d.cache.Del(ctx, couponKey(c.ID), couponKey(c.Code))
	return d.inner.Save(ctx, tx, c)
}

func (d *couponRepoCacheDecorator) IncrementUsage(ctx context.Context, tx repository.Tx, id string) error {
	// The cached copy carries a stale used_count until the TTL lapses;
	// invalidate by id, and by code too once the row is loadable.
	if c, err := d.inner.FindByIDOrCode(ctx, tx, id); err == nil && c != nil {
		d.cache.Del(ctx, couponKey(c.ID), couponKey(c.Code))
	} else {
		d.cache.Del(ctx, couponKey(id))
	}
	return d.inner.IncrementUsage(ctx, tx, id)
}
