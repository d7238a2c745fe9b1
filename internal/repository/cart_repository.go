package repository

import (
	"context"

	"app/internal/domain/model"
)

// カート本体。チェックアウト成功時にCHECKED_OUTへ落として
// 明細をクリアするのが唯一の状態遷移。
type CartRepository interface {
	GetOrCreateActiveByUserID(ctx context.Context, userID int64) (model.Cart, error)
	FindActiveByUserID(ctx context.Context, userID int64) (model.Cart, error)
	UpdateStatus(ctx context.Context, cartID int64, status model.CartStatus) error
	Clear(ctx context.Context, cartID int64) error
}
