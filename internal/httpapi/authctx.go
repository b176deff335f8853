package httpapi

import (
	"context"

	"github.com/and161185/cosmetics-shop/internal/model"
)

type ctxKey string

const accountKey ctxKey = "shop.account"

// WithAccount stores the authenticated account in context.
func WithAccount(ctx context.Context, acc *model.Account) context.Context {
	return context.WithValue(ctx, accountKey, acc)
}

// AccountFromCtx fetches the authenticated account from context.
func AccountFromCtx(ctx context.Context) (*model.Account, bool) {
	acc, ok := ctx.Value(accountKey).(*model.Account)
	return acc, ok && acc != nil
}
