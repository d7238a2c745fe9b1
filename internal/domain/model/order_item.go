package model

import "time"

// 注文明細。注文時点のスナップショットなので作成後は不変。
// 商品マスタが後から変わっても過去の注文は崩れない。
type OrderItem struct {
	ID        int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   int64 `gorm:"not null;index" json:"order_id"`
	ProductID int64 `gorm:"not null;index" json:"product_id"`

	ProductNameSnapshot string `gorm:"type:varchar(255);not null" json:"product_name_snapshot"`
	VariantSnapshot     string `gorm:"type:varchar(100)" json:"variant_snapshot"`
	SizeSnapshot        string `gorm:"type:varchar(30)" json:"size_snapshot"`
	ColorSnapshot       string `gorm:"type:varchar(30)" json:"color_snapshot"`

	UnitPriceSnapshot int64 `gorm:"not null" json:"unit_price_snapshot"`
	Quantity          int64 `gorm:"not null" json:"quantity"`
	TotalPrice        int64 `gorm:"not null" json:"total_price"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}
