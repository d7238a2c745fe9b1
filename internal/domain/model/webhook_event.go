package model

import "time"

// Webhook重複排除レコード。
// Razorpayは at-least-once 配送なので、処理済みイベントIDをここに残す。
// 保持期間（既定14日）を過ぎた行は定期的に消す。
type WebhookEvent struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID     string    `gorm:"type:varchar(128);not null;uniqueIndex" json:"event_id"`
	EventType   string    `gorm:"type:varchar(64);not null;index" json:"event_type"`
	OrderID     int64     `gorm:"index" json:"order_id"`
	ProcessedAt time.Time `gorm:"not null" json:"processed_at"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime;index" json:"created_at"`
}
