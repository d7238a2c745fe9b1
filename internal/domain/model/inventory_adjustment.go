package model

import "time"

// 在庫調整の理由コード
const (
	AdjustmentReasonManual    = "MANUAL"          // 管理者の棚卸し・手調整
	AdjustmentReasonCancelled = "ORDER_CANCELLED" // 注文キャンセルによる在庫戻し
)

// 在庫変動の履歴。管理者の手調整と、キャンセル時の在庫戻しを記録する。
// PAID時の引き当てはordersのstock_committedで追えるのでここには積まない。
type InventoryAdjustment struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID   int64  `gorm:"not null;index" json:"product_id"`
	ActorUserID int64  `gorm:"not null;index" json:"actor_user_id"`
	OrderID     *int64 `gorm:"index" json:"order_id,omitempty"`
	Delta       int64  `gorm:"not null" json:"delta"`
	Reason      string `gorm:"type:varchar(255);not null" json:"reason"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
