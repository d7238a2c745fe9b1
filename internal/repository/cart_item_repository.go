package repository

import (
	"context"

	"app/internal/domain/model"
)

type CartItemRepository interface {
	//チェックアウトのスナップショット元になる明細一覧
	ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error)

	//同一商品は数量加算。新規行には商品の価格とバリエーション表記を
	//追加時点の値で凍結する。
	UpsertByCartAndProduct(ctx context.Context, cartID int64, addQty int64, p model.Product) error

	UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error
	DeleteByID(ctx context.Context, cartItemID int64) error
	FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error)
	IsOwnedByUser(ctx context.Context, cartItemID int64, userID int64) (bool, error)
}
