package repository

import (
	"context"
	"time"

	"app/internal/domain/model"
)

type AdminOrderListFilter struct {
	Page          int
	Limit         int
	Status        string
	PaymentStatus string
	UserID        *int64
	From          *time.Time
	To            *time.Time
}

// 支払い遷移は全部「条件付きUPDATE」で行う。
// 戻り値のboolは「この呼び出しが行を書き換えたか」。falseは
// 競合相手が先に書いた（または前提が崩れている）ことを意味し、
// エラーではない。副作用はtrueを引いた側だけが実行する。
type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	FindByRazorpayOrderID(ctx context.Context, rzpOrderID string) (model.Order, error)
	ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error)
	Create(ctx context.Context, order model.Order) (int64, error)

	//チェックアウト二重送信対策（同じキーなら同じ注文を返す）
	FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error)

	//ゲートウェイ注文IDの書き込み（未設定のときだけ）
	SetRazorpayOrderID(ctx context.Context, orderID int64, rzpOrderID string) (bool, error)

	//payment_id + signature のwrite-once書き込み（両方未設定のときだけ）
	ClaimPayment(ctx context.Context, orderID int64, paymentID string, signature string) (bool, error)

	//Webhookが先にpayment_idだけ確定させたとき、あとから来た検証パスが
	//同じpayment_idのクライアント署名を埋める。署名が既にあれば書かない。
	AttachPaymentSignature(ctx context.Context, orderID int64, paymentID string, signature string) (bool, error)

	//PENDING → PROCESSING（payment.authorized）
	MarkPaymentProcessing(ctx context.Context, orderID int64, paymentID string) (bool, error)

	//PENDING/PROCESSING → PAID。勝った側だけtrue。
	//注文ステータスがPENDINGならCONFIRMEDへ進める（それ以降なら触らない）。
	MarkPaid(ctx context.Context, orderID int64) (bool, error)

	//PENDING/PROCESSING → FAILED。PAID後に来たFAILEDはfalse（stale）。
	MarkPaymentFailed(ctx context.Context, orderID int64) (bool, error)

	//PAID → REFUNDED / PARTIALLY_REFUNDED
	MarkRefunded(ctx context.Context, orderID int64, status model.PaymentStatus) (bool, error)

	//在庫引き当て済みフラグ（PAID勝者が1回だけ立てる）
	MarkStockCommitted(ctx context.Context, orderID int64) (bool, error)

	//注文ステータスの条件付き遷移（キャンセル・返品申請など）
	UpdateStatusIf(ctx context.Context, orderID int64, from []model.OrderStatus, to model.OrderStatus) (bool, error)

	//管理者の配送ステータス更新
	UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus) error

	//返品理由の保存
	SetReturnReason(ctx context.Context, orderID int64, reason string) error

	//管理者用の注文一覧
	ListAdmin(ctx context.Context, f AdminOrderListFilter) ([]model.Order, int64, error)
}
