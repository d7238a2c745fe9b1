package model

import "time"

type CartStatus string

const (
	CartStatusActive     CartStatus = "ACTIVE"
	CartStatusCheckedOut CartStatus = "CHECKED_OUT"
	CartStatusAbandoned  CartStatus = "ABANDONED"
)

// ユーザーの買い物カゴ。ACTIVEは1ユーザーにつき常に1つで、
// チェックアウト成功時にCHECKED_OUTへ落として新しいACTIVEを作り直す。
type Cart struct {
	ID     int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID int64      `gorm:"not null;index:idx_carts_user_status" json:"user_id"`
	Status CartStatus `gorm:"type:varchar(20);not null;index:idx_carts_user_status" json:"status"`

	//CHECKED_OUTへ落とした時刻。ACTIVEの間はNULL
	CheckedOutAt *time.Time `gorm:"index" json:"checked_out_at,omitempty"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
