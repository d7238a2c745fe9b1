package model

import (
	"time"

	"gorm.io/gorm"
)

// 販売単位の商品。バリエーション（色・サイズ違い）は行を分けて持つ。
// 同じ商品名でVariant/Size/Colorが違えば別のProduct行＝別の在庫。
type Product struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string `gorm:"type:varchar(255);not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`

	//バリエーション識別（例: "Steel Burr" / "M" / "Black"）。単一展開なら空でよい
	Variant string `gorm:"type:varchar(100);index" json:"variant"`
	Size    string `gorm:"type:varchar(30)" json:"size"`
	Color   string `gorm:"type:varchar(30)" json:"color"`

	Price     int64          `gorm:"not null" json:"price"`
	Stock     int64          `gorm:"not null" json:"stock"`
	IsActive  bool           `gorm:"not null;default:false" json:"is_active"`
	CreatedAt time.Time      `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}
