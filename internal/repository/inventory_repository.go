package repository

import (
	"app/internal/domain/model"
	"context"
)

// 在庫はproducts.stockの条件付きUPDATEで動かす。
type InventoryRepository interface {
	// 在庫の現在値を設定
	SetStock(ctx context.Context, productID int64, newStock int64) error

	// 在庫が足りるときだけ減算。PAID遷移の勝者が明細ごとに呼ぶ。
	DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error)

	// 在庫戻し（キャンセル時）
	IncreaseStock(ctx context.Context, productID int64, qty int64) error

	// 在庫変動の履歴（キャンセル戻しなど）を残す
	CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error

	// 在庫設定＋調整履歴をまとめて行う（管理者用）
	SetStockWithAdjustment(ctx context.Context, adminUserID int64, productID int64, newStock int64, reason string) error
}
