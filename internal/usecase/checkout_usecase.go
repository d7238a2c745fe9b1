package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"app/internal/domain/model"
	"app/internal/gateway"
	"app/internal/metrics"
	repo "app/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 決済ゲートウェイへの約束。実装はinternal/gateway。
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amount int64, currency string, receipt string) (gateway.CreatedOrder, error)
	Refund(ctx context.Context, paymentID string, amount int64) (gateway.RefundResult, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
	VerifyWebhookSignature(body []byte, signature string) bool
	KeyID() string
}

// チェックアウトの金額計算まわりの設定
type PricingConfig struct {
	TaxRateBasisPoints    int64
	ShippingFee           int64
	FreeShippingThreshold int64
	Currency              string
}

type CheckoutUsecase struct {
	tx        repo.TransactionManager
	addresses repo.AddressRepository
	users     repo.UserRepository
	gw        PaymentGateway
	pricing   PricingConfig
	logger    *zap.Logger
}

func NewCheckoutUsecase(
	tx repo.TransactionManager,
	addresses repo.AddressRepository,
	users repo.UserRepository,
	gw PaymentGateway,
	pricing PricingConfig,
	logger *zap.Logger,
) *CheckoutUsecase {
	if pricing.Currency == "" {
		pricing.Currency = "INR"
	}
	return &CheckoutUsecase{
		tx:        tx,
		addresses: addresses,
		users:     users,
		gw:        gw,
		pricing:   pricing,
		logger:    logger,
	}
}

type BeginCheckoutInput struct {
	ShippingAddressID int64
	BillingAddressID  int64
	Notes             string
	IdempotencyKey    string
}

// フロントがゲートウェイのUIを開くのに必要な情報一式
type CheckoutOutput struct {
	OrderNumber    string `json:"order_number"`
	GatewayOrderID string `json:"gateway_order_id"`
	GatewayKeyID   string `json:"gateway_key_id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	CustomerName   string `json:"customer_name"`
	CustomerEmail  string `json:"customer_email"`
	CustomerPhone  string `json:"customer_phone"`
}

// BeginCheckout はカートのスナップショットからPENDING注文を作り、
// ゲートウェイ側にも対応する注文を作る。
// ローカル作成→リモート作成の2段階はアトミックにできないので、
// リモートが失敗したらPENDINGのまま残し、同じidempotency keyの
// 再呼び出しで同じローカル注文に対してリモート作成だけやり直す。
func (u *CheckoutUsecase) BeginCheckout(ctx context.Context, userID int64, in BeginCheckoutInput) (CheckoutOutput, error) {
	if userID <= 0 {
		return CheckoutOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if in.ShippingAddressID <= 0 || in.BillingAddressID <= 0 {
		return CheckoutOutput{}, NewHTTPError(http.StatusBadRequest, "invalid address_id")
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if key == "" || len(key) > 255 {
		return CheckoutOutput{}, NewHTTPError(http.StatusBadRequest, "invalid idempotency_key")
	}

	//住所の存在＋所有チェック（配送先・請求先どちらも）
	for _, addrID := range []int64{in.ShippingAddressID, in.BillingAddressID} {
		owned, err := u.addresses.IsOwnedByUser(ctx, addrID, userID)
		if err != nil {
			return CheckoutOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if !owned {
			return CheckoutOutput{}, NewHTTPError(http.StatusBadRequest, "invalid address_id")
		}
	}

	//プレフィル用のユーザー情報
	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		return CheckoutOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	var order model.Order

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 同じキーなら同じ注文
		existing, found, err := r.Orders().FindByIdempotencyKey(ctx, userID, key)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if found {
			order = existing
			return nil
		}

		//ACTIVEカート取得
		cart, err := r.Carts().FindActiveByUserID(ctx, userID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusBadRequest, "cart empty")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		cartItems, err := r.CartItems().ListByCartID(ctx, cart.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if len(cartItems) == 0 {
			return NewHTTPError(http.StatusBadRequest, "cart empty")
		}

		//スナップショット作成。在庫はここでは減らさない
		//（支払い確定まで在庫を抱えない。減算はPAID遷移の勝者がやる）。
		now := time.Now()
		orderItems := make([]model.OrderItem, 0, len(cartItems))
		var subtotal int64 = 0

		for _, ci := range cartItems {
			p, err := r.Products().FindByID(ctx, ci.ProductID)
			if err == repo.ErrNotFound {
				return NewHTTPError(http.StatusBadRequest, "invalid")
			}
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			if !p.IsActive {
				return NewHTTPError(http.StatusBadRequest, "invalid")
			}

			//価格とバリエーション表記はカート明細で凍結済みの値を引き継ぐ
			lineTotal := ci.UnitPriceSnapshot * ci.Quantity
			orderItems = append(orderItems, model.OrderItem{
				ProductID:           ci.ProductID,
				ProductNameSnapshot: p.Name,
				VariantSnapshot:     ci.VariantSnapshot,
				SizeSnapshot:        ci.SizeSnapshot,
				ColorSnapshot:       ci.ColorSnapshot,
				UnitPriceSnapshot:   ci.UnitPriceSnapshot,
				Quantity:            ci.Quantity,
				TotalPrice:          lineTotal,
				CreatedAt:           now,
			})
			subtotal += lineTotal
		}

		//金額は作成時に確定。以後再計算しない。
		tax := subtotal * u.pricing.TaxRateBasisPoints / 10000
		var shipping int64 = 0
		if subtotal < u.pricing.FreeShippingThreshold {
			shipping = u.pricing.ShippingFee
		}
		var discount int64 = 0
		total := subtotal + tax + shipping - discount

		newOrder := model.Order{
			OrderNumber:       newOrderNumber(now),
			UserID:            userID,
			ShippingAddressID: in.ShippingAddressID,
			BillingAddressID:  in.BillingAddressID,
			Status:            model.OrderStatusPending,
			PaymentStatus:     model.PaymentStatusPending,
			Subtotal:          subtotal,
			Tax:               tax,
			Shipping:          shipping,
			Discount:          discount,
			TotalAmount:       total,
			Notes:             strings.TrimSpace(in.Notes),
			IdempotencyKey:    key,
			CreatedAt:         now,
			UpdatedAt:         now,
		}

		orderID, err := r.Orders().Create(ctx, newOrder)
		if err != nil {
			//競合（同時に同じキーが入った等）はもう一回検索して同じ結果を返す
			ex2, found2, err2 := r.Orders().FindByIdempotencyKey(ctx, userID, key)
			if err2 == nil && found2 {
				order = ex2
				return nil
			}
			return NewHTTPError(http.StatusConflict, "idempotency conflict")
		}
		newOrder.ID = orderID

		if err := r.OrderItems().CreateBulk(ctx, orderID, orderItems); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//カートをCHECKED_OUTにして明細をクリア（再注文防止）
		if err := r.Carts().UpdateStatus(ctx, cart.ID, model.CartStatusCheckedOut); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if err := r.Carts().Clear(ctx, cart.ID); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		order = newOrder
		return nil
	})

	if err != nil {
		metrics.RecordCheckout("rejected")
		return CheckoutOutput{}, err
	}

	//既にゲートウェイ注文があるならそのまま返す（再呼び出し）
	if order.RazorpayOrderID != "" {
		metrics.RecordCheckout("reused")
		return u.buildOutput(order, user), nil
	}

	//リモート注文作成。ここから先はトランザクション外。
	out, err := u.attachGatewayOrder(ctx, order, user)
	if err != nil {
		return CheckoutOutput{}, err
	}

	metrics.RecordCheckout("created")
	return out, nil
}

// RetryCheckout はゲートウェイ注文の作成に失敗したPENDING注文のやり直し。
func (u *CheckoutUsecase) RetryCheckout(ctx context.Context, userID int64, orderID int64) (CheckoutOutput, error) {
	if userID <= 0 {
		return CheckoutOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return CheckoutOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var order model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if o.UserID != userID {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if o.Status != model.OrderStatusPending || o.PaymentStatus != model.PaymentStatusPending {
			return NewHTTPError(http.StatusConflict, "order is not pending")
		}
		order = o
		return nil
	})
	if err != nil {
		return CheckoutOutput{}, err
	}

	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		return CheckoutOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}

	if order.RazorpayOrderID != "" {
		return u.buildOutput(order, user), nil
	}

	return u.attachGatewayOrder(ctx, order, user)
}

// attachGatewayOrder はリモート注文を作ってIDをローカル注文に書く。
// receiptに注文番号を渡しているので、二重に呼んでもゲートウェイ側で同じ
// 注文に寄る。ローカル側もSetRazorpayOrderIDが未設定時のみ書く。
func (u *CheckoutUsecase) attachGatewayOrder(ctx context.Context, order model.Order, user *model.User) (CheckoutOutput, error) {
	created, err := u.gw.CreateOrder(ctx, order.TotalAmount, u.pricing.Currency, order.OrderNumber)
	if err != nil {
		metrics.RecordCheckout("gateway_error")
		u.logger.Warn("gateway order creation failed",
			zap.String("order_number", order.OrderNumber),
			zap.Error(err))

		//PENDING注文は残っているので、リトライで同じ注文から再開できる
		if errors.Is(err, gateway.ErrGatewayUnavailable) {
			return CheckoutOutput{}, NewHTTPError(http.StatusServiceUnavailable, "payment gateway unavailable, please retry")
		}
		return CheckoutOutput{}, NewHTTPError(http.StatusBadGateway, "payment gateway rejected the order")
	}

	var set bool
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		ok, err := r.Orders().SetRazorpayOrderID(ctx, order.ID, created.GatewayOrderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		set = ok
		if !ok {
			//並行リトライが先に書いた。DBにある方を正とする。
			o, err := r.Orders().FindByID(ctx, order.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			order = o
		}
		return nil
	})
	if err != nil {
		return CheckoutOutput{}, err
	}

	if set {
		order.RazorpayOrderID = created.GatewayOrderID
	}

	return u.buildOutput(order, user), nil
}

func (u *CheckoutUsecase) buildOutput(order model.Order, user *model.User) CheckoutOutput {
	return CheckoutOutput{
		OrderNumber:    order.OrderNumber,
		GatewayOrderID: order.RazorpayOrderID,
		GatewayKeyID:   u.gw.KeyID(),
		Amount:         order.TotalAmount,
		Currency:       u.pricing.Currency,
		CustomerName:   user.Name,
		CustomerEmail:  user.Email,
		CustomerPhone:  user.Phone,
	}
}

// 注文番号。人間可読＋一意。
func newOrderNumber(now time.Time) string {
	id := uuid.NewString()
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), strings.ToUpper(id[:8]))
}
