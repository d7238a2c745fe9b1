package model

import "time"

// カートの明細。
// 価格とバリエーション表記は追加時点のスナップショットを必ず保存。
// 後で商品マスタが変わってもカート表示と注文明細がぶれない。
type CartItem struct {
	ID        int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	CartID    int64 `gorm:"not null;index" json:"cart_id"`
	ProductID int64 `gorm:"not null;index" json:"product_id"`
	Quantity  int64 `gorm:"not null" json:"quantity"`

	UnitPriceSnapshot int64  `gorm:"not null;column:unit_price_snapshot" json:"unit_price_snapshot"`
	VariantSnapshot   string `gorm:"type:varchar(100)" json:"variant_snapshot"`
	SizeSnapshot      string `gorm:"type:varchar(30)" json:"size_snapshot"`
	ColorSnapshot     string `gorm:"type:varchar(30)" json:"color_snapshot"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
