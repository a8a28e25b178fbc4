package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/shopspring/decimal"

	"wallet-billing/internal/config"
	"wallet-billing/internal/domain/model"
	"wallet-billing/internal/domain/ports/id"
	"wallet-billing/internal/domain/ports/repository"
	pg "wallet-billing/internal/infra/db/postgres"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 4)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	couponRepo := pg.NewCouponRepo(pool)
	ids := id.NewRandom()
	now := time.Now()

	// Sample coupons for exercising the pricing path.
	in30 := now.AddDate(0, 1, 0)
	tenOff := decimal.NewFromInt(10)
	quarter := decimal.RequireFromString("0.25")
	hundred := 100

	seed := []*model.Coupon{
		{ID: ids.NewID(), Code: "WELCOME10", DiscountAmount: &tenOff, MaxUsage: &hundred, CreatedAt: now},
		{ID: ids.NewID(), Code: "SPRING25", DiscountRate: &quarter, AffectedAt: &now, ExpiredAt: &in30, CreatedAt: now},
	}

	for _, c := range seed {
		if err := couponRepo.Save(ctx, repository.NoTX, c); err != nil {
			log.Printf("coupon %s: %v (skipping)", c.Code, err)
			continue
		}
		fmt.Printf("seeded coupon %s (id=%s)\n", c.Code, c.ID)
	}

	fmt.Println("Seeding complete.")
}
