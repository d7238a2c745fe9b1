package repository

import (
	"context"

	"app/internal/domain/model"
)

// 注文明細。作成後は不変（スナップショット）なので更新系は持たない。
type OrderItemRepository interface {
	CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error
	ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error)
}
