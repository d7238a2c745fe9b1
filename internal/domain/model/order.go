package model

import "time"

// 注文ステータス（配送側の軸）
type OrderStatus string

const (
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusConfirmed       OrderStatus = "CONFIRMED"
	OrderStatusProcessing      OrderStatus = "PROCESSING"
	OrderStatusShipped         OrderStatus = "SHIPPED"
	OrderStatusDelivered       OrderStatus = "DELIVERED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusReturnRequested OrderStatus = "RETURN_REQUESTED"
	OrderStatusReturned        OrderStatus = "RETURNED"
	OrderStatusRefunded        OrderStatus = "REFUNDED"
)

// 支払いステータス（注文ステータスとは独立の軸）
// CONFIRMEDのままPROCESSING→PAID→REFUNDEDと動くことがあるので分けている
type PaymentStatus string

const (
	PaymentStatusPending           PaymentStatus = "PENDING"
	PaymentStatusProcessing        PaymentStatus = "PROCESSING"
	PaymentStatusPaid              PaymentStatus = "PAID"
	PaymentStatusFailed            PaymentStatus = "FAILED"
	PaymentStatusRefundRequested   PaymentStatus = "REFUND_REQUESTED"
	PaymentStatusRefunded          PaymentStatus = "REFUNDED"
	PaymentStatusPartiallyRefunded PaymentStatus = "PARTIALLY_REFUNDED"
)

type Order struct {
	ID          int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderNumber string `gorm:"type:varchar(40);not null;uniqueIndex" json:"order_number"`
	UserID      int64  `gorm:"not null;index" json:"user_id"`

	ShippingAddressID int64 `gorm:"not null" json:"shipping_address_id"`
	BillingAddressID  int64 `gorm:"not null" json:"billing_address_id"`

	Status        OrderStatus   `gorm:"type:varchar(20);not null;index" json:"status"`
	PaymentStatus PaymentStatus `gorm:"type:varchar(20);not null;index" json:"payment_status"`

	// Razorpay連携。RazorpayOrderIDはチェックアウト完了まで空。
	// RazorpayPaymentIDとRazorpaySignatureは必ずセットで1回だけ書く（write-once）。
	RazorpayOrderID   string `gorm:"type:varchar(64);index" json:"razorpay_order_id"`
	RazorpayPaymentID string `gorm:"type:varchar(64)" json:"razorpay_payment_id"`
	RazorpaySignature string `gorm:"type:varchar(128)" json:"-"`

	// 金額はすべて最小通貨単位。作成時に確定して以後再計算しない。
	Subtotal    int64 `gorm:"not null" json:"subtotal"`
	Tax         int64 `gorm:"not null" json:"tax"`
	Shipping    int64 `gorm:"not null" json:"shipping"`
	Discount    int64 `gorm:"not null" json:"discount"`
	TotalAmount int64 `gorm:"not null" json:"total_amount"`

	Notes        string `gorm:"type:text" json:"notes"`
	ReturnReason string `gorm:"type:text" json:"return_reason"`

	// 在庫を引き当て済みか（PAID遷移の勝者だけがtrueにする）
	StockCommitted bool `gorm:"not null;default:false" json:"-"`

	IdempotencyKey string `gorm:"type:varchar(255);not null;uniqueIndex" json:"-"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// PaymentTerminal は支払いがこれ以上前進しない状態かどうか。
// PAID以降のステータスはFAILEDやPROCESSINGで上書きしてはいけない。
func (s PaymentStatus) PaymentTerminal() bool {
	switch s {
	case PaymentStatusPaid, PaymentStatusRefundRequested, PaymentStatusRefunded, PaymentStatusPartiallyRefunded:
		return true
	}
	return false
}

// CanCancel は顧客キャンセルの前提条件（ステータスのみ。期限は usecase 側で見る）
func (o Order) CanCancel() bool {
	return o.Status == OrderStatusConfirmed || o.Status == OrderStatusProcessing
}

// CanRequestReturn は返品申請の前提条件
func (o Order) CanRequestReturn() bool {
	return o.Status == OrderStatusDelivered
}

// CanRefund は返金の前提条件（支払い済み＋payment id確定）
func (o Order) CanRefund() bool {
	return o.PaymentStatus == PaymentStatusPaid && o.RazorpayPaymentID != ""
}

// 管理者が設定できる配送ステータスか
func ValidFulfillmentStatus(s OrderStatus) bool {
	switch s {
	case OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered, OrderStatusReturned:
		return true
	}
	return false
}
