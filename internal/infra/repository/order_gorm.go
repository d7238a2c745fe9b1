package repository

import (
	"context"
	"errors"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
)

type OrderGormRepository struct {
	db *gorm.DB
}

func NewOrderGormRepository(db *gorm.DB) *OrderGormRepository {
	return &OrderGormRepository{db: db}
}

func (r *OrderGormRepository) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).Where("id = ?", orderID).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

func (r *OrderGormRepository) FindByRazorpayOrderID(ctx context.Context, rzpOrderID string) (model.Order, error) {
	var o model.Order
	err := r.db.WithContext(ctx).Where("razorpay_order_id = ?", rzpOrderID).First(&o).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

func (r *OrderGormRepository) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return []model.Order{}, 0, err
	}

	var items []model.Order
	offset := (page - 1) * limit
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id desc").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return []model.Order{}, 0, err
	}

	return items, total, nil
}

func (r *OrderGormRepository) Create(ctx context.Context, order model.Order) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&order).Error; err != nil {
		return 0, err
	}
	return order.ID, nil
}

func (r *OrderGormRepository) FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error) {
	var o model.Order
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND idempotency_key = ?", userID, key).
		First(&o).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Order{}, false, nil
	}
	if err != nil {
		return model.Order{}, false, err
	}
	return o, true, nil
}

// ゲートウェイ注文IDは未設定のときだけ書ける
func (r *OrderGormRepository) SetRazorpayOrderID(ctx context.Context, orderID int64, rzpOrderID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND razorpay_order_id = ''", orderID).
		Update("razorpay_order_id", rzpOrderID)

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// payment_id + signature のwrite-once。両方未設定のときだけ成功する。
// 後から別のpayment_idで上書きされることはない（リプレイ対策）。
func (r *OrderGormRepository) ClaimPayment(ctx context.Context, orderID int64, paymentID string, signature string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND razorpay_payment_id = '' AND razorpay_signature = ''", orderID).
		Updates(map[string]interface{}{
			"razorpay_payment_id": paymentID,
			"razorpay_signature":  signature,
		})

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Webhookが先に勝つとpayment_idだけ入って署名は空のまま残る。
// その後に来た検証パスが、同じpayment_idに限り署名を1回だけ埋める。
// 署名が既に入っている行には触らない（write-onceは崩さない）。
func (r *OrderGormRepository) AttachPaymentSignature(ctx context.Context, orderID int64, paymentID string, signature string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND razorpay_payment_id = ? AND razorpay_signature = ''", orderID, paymentID).
		Update("razorpay_signature", signature)

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// payment.authorized：PENDINGのときだけPROCESSINGへ。
// payment_idが未設定なら一緒に入れる（signatureはwebhookには無いので触らない）。
func (r *OrderGormRepository) MarkPaymentProcessing(ctx context.Context, orderID int64, paymentID string) (bool, error) {
	values := map[string]interface{}{
		"payment_status": model.PaymentStatusProcessing,
	}
	if paymentID != "" {
		values["razorpay_payment_id"] = gorm.Expr(
			"CASE WHEN razorpay_payment_id = '' THEN ? ELSE razorpay_payment_id END", paymentID)
	}

	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND payment_status = ?", orderID, model.PaymentStatusPending).
		Updates(values)

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// PAID遷移。ここがレース解決の一点。
// 検証パスとWebhookパスが同時に来ても、rows=1を引くのは片方だけ。
// 注文ステータスはPENDINGのときだけCONFIRMEDへ進める。
func (r *OrderGormRepository) MarkPaid(ctx context.Context, orderID int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND payment_status IN ?", orderID,
			[]model.PaymentStatus{model.PaymentStatusPending, model.PaymentStatusProcessing, model.PaymentStatusFailed}).
		Updates(map[string]interface{}{
			"payment_status": model.PaymentStatusPaid,
			"status": gorm.Expr("CASE WHEN status = ? THEN ? ELSE status END",
				model.OrderStatusPending, model.OrderStatusConfirmed),
		})

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// FAILED遷移。PAID後に来たものはrows=0（stale扱いで捨てる）。
func (r *OrderGormRepository) MarkPaymentFailed(ctx context.Context, orderID int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND payment_status IN ?", orderID,
			[]model.PaymentStatus{model.PaymentStatusPending, model.PaymentStatusProcessing}).
		Update("payment_status", model.PaymentStatusFailed)

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// 返金遷移。PAIDからだけ。
func (r *OrderGormRepository) MarkRefunded(ctx context.Context, orderID int64, status model.PaymentStatus) (bool, error) {
	if status != model.PaymentStatusRefunded && status != model.PaymentStatusPartiallyRefunded {
		return false, errors.New("invalid refund status")
	}

	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND payment_status = ?", orderID, model.PaymentStatusPaid).
		Update("payment_status", status)

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// 在庫引き当てフラグ。falseなら誰かが先に引き当て済み。
func (r *OrderGormRepository) MarkStockCommitted(ctx context.Context, orderID int64) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND stock_committed = false", orderID).
		Update("stock_committed", true)

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// 注文ステータスの条件付き遷移
func (r *OrderGormRepository) UpdateStatusIf(ctx context.Context, orderID int64, from []model.OrderStatus, to model.OrderStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ? AND status IN ?", orderID, from).
		Update("status", to)

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *OrderGormRepository) UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus) error {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", orderID).
		Update("status", status)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *OrderGormRepository) SetReturnReason(ctx context.Context, orderID int64, reason string) error {
	res := r.db.WithContext(ctx).Model(&model.Order{}).
		Where("id = ?", orderID).
		Update("return_reason", reason)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *OrderGormRepository) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	if f.Page <= 0 {
		f.Page = 1
	}
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}

	q := r.db.WithContext(ctx).Model(&model.Order{})

	//status 絞り込み
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	//payment_status 絞り込み
	if f.PaymentStatus != "" {
		q = q.Where("payment_status = ?", f.PaymentStatus)
	}

	//user_id 絞り込み
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}

	//期間絞り込み
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return []model.Order{}, 0, err
	}

	var items []model.Order
	offset := (f.Page - 1) * f.Limit
	if err := q.Order("id desc").Limit(f.Limit).Offset(offset).Find(&items).Error; err != nil {
		return []model.Order{}, 0, err
	}

	return items, total, nil
}
