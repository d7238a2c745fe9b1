package model

import "time"

// 配送先・請求先住所。インド国内配送のみ。
type Address struct {
	ID     int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID int64 `gorm:"not null;index" json:"user_id"`

	//宛名
	Name string `gorm:"type:varchar(255);not null" json:"name"`

	//番地・ストリート
	Line1 string `gorm:"type:varchar(255);not null" json:"line1"`

	//部屋番号・ランドマークなど
	Line2 string `gorm:"type:varchar(255)" json:"line2"`

	//市
	City string `gorm:"type:varchar(255);not null" json:"city"`

	//州
	State string `gorm:"type:varchar(100);not null" json:"state"`

	//PINコード（6桁、先頭は1-9）
	PinCode string `gorm:"type:varchar(6);not null" json:"pin_code"`

	//電話番号（10桁の携帯番号）
	Phone string `gorm:"type:varchar(15)" json:"phone"`

	//このユーザーのデフォルト住所か
	IsDefault bool `gorm:"not null;default:false" json:"is_default"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}
