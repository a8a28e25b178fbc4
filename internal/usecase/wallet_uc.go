package usecase

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"wallet-billing/internal/domain"
	"wallet-billing/internal/domain/model"
	"wallet-billing/internal/domain/ports/clock"
	"wallet-billing/internal/domain/ports/id"
	"wallet-billing/internal/domain/ports/repository"
)

// WalletUseCase owns wallet and pocket lifecycle.
type WalletUseCase struct {
	wallets repository.WalletRepository
	pockets repository.PocketRepository
	ids     id.Generator
	clock   clock.Clock
	log     *zerolog.Logger
}

func NewWalletUseCase(wallets repository.WalletRepository, pockets repository.PocketRepository, ids id.Generator, clk clock.Clock, logger *zerolog.Logger) *WalletUseCase {
	l := logger.With().Str("component", "WalletUC").Logger()
	return &WalletUseCase{wallets: wallets, pockets: pockets, ids: ids, clock: clk, log: &l}
}

// CreateWallet creates the one wallet an account gets. There is no implicit
// idempotent create; a second call fails with ErrAlreadyExists.
func (uc *WalletUseCase) CreateWallet(ctx context.Context, accountID string) (*model.Wallet, error) {
	if accountID == "" {
		return nil, domain.ErrInvalidArgument
	}
	existing, err := uc.wallets.FindByAccount(ctx, repository.NoTX, accountID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrAlreadyExists
	}

	w, err := model.NewWallet(uc.ids.NewID(), accountID, uc.clock.Now())
	if err != nil {
		return nil, err
	}
	if err := uc.wallets.Save(ctx, repository.NoTX, w); err != nil {
		return nil, err
	}
	uc.log.Info().Str("wallet_id", w.ID).Str("account_id", accountID).Msg("wallet created")
	return w, nil
}

// GetWallet returns the account's wallet with its pockets loaded.
func (uc *WalletUseCase) GetWallet(ctx context.Context, accountID string) (*model.Wallet, error) {
	return uc.wallets.FindByAccount(ctx, repository.NoTX, accountID)
}

// GetOrCreatePocket resolves the pocket for (wallet, currency), creating an
// empty one on first use of that currency.
func (uc *WalletUseCase) GetOrCreatePocket(ctx context.Context, walletID, currency string) (*model.Pocket, error) {
	if walletID == "" || currency == "" {
		return nil, domain.ErrInvalidArgument
	}
	return uc.pockets.GetOrCreate(ctx, repository.NoTX, walletID, currency)
}
