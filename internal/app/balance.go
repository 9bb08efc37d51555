package app

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"crosspay/go-backend/pkg/models"
)

// BalanceReader fetches the smart account balance from the provider. A refresh
// already in flight for an address is not duplicated; later callers wait on
// and observe the first request's result. Failure leaves any cached value in
// the session untouched: stale-but-present beats empty.
type BalanceReader struct {
	svc      AccountService
	decimals int
	group    singleflight.Group
}

func NewBalanceReader(svc AccountService, decimals int) *BalanceReader {
	return &BalanceReader{svc: svc, decimals: decimals}
}

func (r *BalanceReader) Refresh(ctx context.Context, scwAddress string) (models.Balance, error) {
	key := strings.ToLower(strings.TrimSpace(scwAddress))
	v, err, _ := r.group.Do(key, func() (any, error) {
		net, err := r.svc.GetSmartBalance(ctx, scwAddress)
		if err != nil {
			return nil, wrapStage(StageBalance, err)
		}
		balance := models.Balance{Amount: net, AsOf: time.Now().UTC()}
		if display, err := models.FormatUnits(net, r.decimals); err == nil {
			balance.Display = display
		}
		return balance, nil
	})
	if err != nil {
		return models.Balance{}, err
	}
	return v.(models.Balance), nil
}
