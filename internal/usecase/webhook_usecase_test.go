package usecase

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"app/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

func paymentEventBody(event, paymentID, rzpOrderID string) []byte {
	return []byte(fmt.Sprintf(
		`{"event":%q,"payload":{"payment":{"entity":{"id":%q,"order_id":%q,"status":"captured"}}}}`,
		event, paymentID, rzpOrderID))
}

func newWebhookFixture(store *memStore) (*WebhookUsecase, *GatewayMock) {
	gw := new(GatewayMock)
	gw.On("VerifyWebhookSignature", mock.Anything, "good_sig").Return(true)
	gw.On("VerifyWebhookSignature", mock.Anything, "bad_sig").Return(false)
	return NewWebhookUsecase(memTxManager{store}, gw, zap.NewNop()), gw
}

func TestWebhookUsecase_HandleWebhook_CapturedAppliesPaid(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	orderID := seedPendingOrder(store, "order_rzp1")
	uc, _ := newWebhookFixture(store)

	err := uc.HandleWebhook(ctx, WebhookInput{
		Body:      paymentEventBody("payment.captured", "pay_1", "order_rzp1"),
		Signature: "good_sig",
		EventID:   "evt_1",
	})
	assert.NoError(t, err)

	o := store.order(t, orderID)
	assert.Equal(t, model.PaymentStatusPaid, o.PaymentStatus)
	assert.Equal(t, model.OrderStatusConfirmed, o.Status)
	assert.Equal(t, "pay_1", o.RazorpayPaymentID)
	assert.True(t, o.StockCommitted)
	assert.Equal(t, int64(4), store.stock[10])

	seen, _ := memEvents{store}.Exists(ctx, "evt_1")
	assert.True(t, seen)
}

func TestWebhookUsecase_HandleWebhook_DuplicateEventID(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	orderID := seedPendingOrder(store, "order_rzp1")
	uc, _ := newWebhookFixture(store)

	in := WebhookInput{
		Body:      paymentEventBody("payment.captured", "pay_1", "order_rzp1"),
		Signature: "good_sig",
		EventID:   "evt_1",
	}

	assert.NoError(t, uc.HandleWebhook(ctx, in))
	// 再配送。処理済みイベントIDなので何もしない。
	assert.NoError(t, uc.HandleWebhook(ctx, in))

	o := store.order(t, orderID)
	assert.Equal(t, model.PaymentStatusPaid, o.PaymentStatus)
	assert.Equal(t, int64(4), store.stock[10])
}

func TestWebhookUsecase_HandleWebhook_EventIDFallbackDedupes(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	seedPendingOrder(store, "order_rzp1")
	uc, _ := newWebhookFixture(store)

	// X-Razorpay-Event-Id無し。同一ボディならハッシュで重複排除される。
	in := WebhookInput{
		Body:      paymentEventBody("payment.captured", "pay_1", "order_rzp1"),
		Signature: "good_sig",
	}

	assert.NoError(t, uc.HandleWebhook(ctx, in))
	assert.NoError(t, uc.HandleWebhook(ctx, in))

	assert.Equal(t, int64(4), store.stock[10])
	assert.Len(t, store.events, 1)
}

func TestWebhookUsecase_HandleWebhook_BadSignature(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	orderID := seedPendingOrder(store, "order_rzp1")
	uc, _ := newWebhookFixture(store)

	err := uc.HandleWebhook(ctx, WebhookInput{
		Body:      paymentEventBody("payment.captured", "pay_1", "order_rzp1"),
		Signature: "bad_sig",
		EventID:   "evt_1",
	})
	assertHTTPStatus(t, err, http.StatusBadRequest)

	o := store.order(t, orderID)
	assert.Equal(t, model.PaymentStatusPending, o.PaymentStatus)
}

func TestWebhookUsecase_HandleWebhook_OrphanOrderAcked(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	uc, _ := newWebhookFixture(store)

	// 知らないゲートウェイ注文。ACKしてリトライさせない。
	err := uc.HandleWebhook(ctx, WebhookInput{
		Body:      paymentEventBody("payment.captured", "pay_1", "order_unknown"),
		Signature: "good_sig",
		EventID:   "evt_1",
	})
	assert.NoError(t, err)

	// 処理済みとしては記録しない（後で注文が現れたら再配送で拾える）
	seen, _ := memEvents{store}.Exists(ctx, "evt_1")
	assert.False(t, seen)
}

func TestWebhookUsecase_HandleWebhook_MalformedAcked(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	uc, _ := newWebhookFixture(store)

	err := uc.HandleWebhook(ctx, WebhookInput{
		Body:      []byte(`{"event":`),
		Signature: "good_sig",
	})
	assert.NoError(t, err)
}

func TestWebhookUsecase_HandleWebhook_UnknownKindAcked(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	orderID := seedPendingOrder(store, "order_rzp1")
	uc, _ := newWebhookFixture(store)

	err := uc.HandleWebhook(ctx, WebhookInput{
		Body:      paymentEventBody("payment.dispute.created", "pay_1", "order_rzp1"),
		Signature: "good_sig",
		EventID:   "evt_1",
	})
	assert.NoError(t, err)

	o := store.order(t, orderID)
	assert.Equal(t, model.PaymentStatusPending, o.PaymentStatus)
}

func TestWebhookUsecase_HandleWebhook_StaleFailedAfterPaid(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	orderID := seedPendingOrder(store, "order_rzp1")
	uc, _ := newWebhookFixture(store)

	assert.NoError(t, uc.HandleWebhook(ctx, WebhookInput{
		Body:      paymentEventBody("payment.captured", "pay_1", "order_rzp1"),
		Signature: "good_sig",
		EventID:   "evt_1",
	}))

	// 順不同で後から届いたFAILED。PAIDは巻き戻さない。
	assert.NoError(t, uc.HandleWebhook(ctx, WebhookInput{
		Body:      paymentEventBody("payment.failed", "pay_1", "order_rzp1"),
		Signature: "good_sig",
		EventID:   "evt_2",
	}))

	o := store.order(t, orderID)
	assert.Equal(t, model.PaymentStatusPaid, o.PaymentStatus)
	assert.Equal(t, model.OrderStatusConfirmed, o.Status)
}

func TestWebhookUsecase_HandleWebhook_AuthorizedThenCaptured(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	orderID := seedPendingOrder(store, "order_rzp1")
	uc, _ := newWebhookFixture(store)

	assert.NoError(t, uc.HandleWebhook(ctx, WebhookInput{
		Body:      paymentEventBody("payment.authorized", "pay_1", "order_rzp1"),
		Signature: "good_sig",
		EventID:   "evt_1",
	}))

	o := store.order(t, orderID)
	assert.Equal(t, model.PaymentStatusProcessing, o.PaymentStatus)
	assert.Equal(t, "pay_1", o.RazorpayPaymentID)
	assert.False(t, o.StockCommitted)

	assert.NoError(t, uc.HandleWebhook(ctx, WebhookInput{
		Body:      paymentEventBody("payment.captured", "pay_1", "order_rzp1"),
		Signature: "good_sig",
		EventID:   "evt_2",
	}))

	o = store.order(t, orderID)
	assert.Equal(t, model.PaymentStatusPaid, o.PaymentStatus)
	assert.True(t, o.StockCommitted)
	assert.Equal(t, int64(4), store.stock[10])
}

func TestWebhookUsecase_HandleWebhook_FailedThenRetriedPaymentSucceeds(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	orderID := seedPendingOrder(store, "order_rzp1")
	uc, _ := newWebhookFixture(store)

	assert.NoError(t, uc.HandleWebhook(ctx, WebhookInput{
		Body:      paymentEventBody("payment.failed", "pay_1", "order_rzp1"),
		Signature: "good_sig",
		EventID:   "evt_1",
	}))
	assert.Equal(t, model.PaymentStatusFailed, store.order(t, orderID).PaymentStatus)

	// 失敗後にユーザーが支払いをやり直して成功したケース
	assert.NoError(t, uc.HandleWebhook(ctx, WebhookInput{
		Body:      paymentEventBody("payment.captured", "pay_2", "order_rzp1"),
		Signature: "good_sig",
		EventID:   "evt_2",
	}))
	assert.Equal(t, model.PaymentStatusPaid, store.order(t, orderID).PaymentStatus)
}

// 検証パスとWebhookパスが同じ支払いを処理しても収束する
func TestWebhookUsecase_ConvergesWithVerificationPath(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	orderID := seedPendingOrder(store, "order_rzp1")

	gw := new(GatewayMock)
	gw.On("VerifyPaymentSignature", "order_rzp1", "pay_1", "sig_1").Return(true)
	gw.On("VerifyWebhookSignature", mock.Anything, "good_sig").Return(true)

	paymentUC := NewPaymentUsecase(memTxManager{store}, gw, zap.NewNop())
	webhookUC := NewWebhookUsecase(memTxManager{store}, gw, zap.NewNop())

	// 速報パス（クライアント検証）が先に勝つ
	_, err := paymentUC.VerifyPayment(ctx, VerifyPaymentInput{
		RazorpayOrderID:   "order_rzp1",
		RazorpayPaymentID: "pay_1",
		RazorpaySignature: "sig_1",
	})
	assert.NoError(t, err)

	// 確定パス（Webhook）が後から同じ支払いを通知してくる
	assert.NoError(t, webhookUC.HandleWebhook(ctx, WebhookInput{
		Body:      paymentEventBody("payment.captured", "pay_1", "order_rzp1"),
		Signature: "good_sig",
		EventID:   "evt_1",
	}))

	o := store.order(t, orderID)
	assert.Equal(t, model.PaymentStatusPaid, o.PaymentStatus)
	assert.Equal(t, "pay_1", o.RazorpayPaymentID)
	assert.Equal(t, "sig_1", o.RazorpaySignature)

	// 在庫の引き当ては1回だけ
	assert.Equal(t, int64(4), store.stock[10])
}

// Webhookが先にPAIDまで進めたあとに検証パスが来るケース。
// Webhookにはクライアント署名が乗ってこないので、検証パスが
// 同じpayment_idの署名をあとから埋めることを確認する。
func TestWebhookUsecase_WebhookFirstThenVerificationFillsSignature(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	orderID := seedPendingOrder(store, "order_rzp1")

	gw := new(GatewayMock)
	gw.On("VerifyPaymentSignature", "order_rzp1", "pay_1", "sig_1").Return(true)
	gw.On("VerifyWebhookSignature", mock.Anything, "good_sig").Return(true)

	paymentUC := NewPaymentUsecase(memTxManager{store}, gw, zap.NewNop())
	webhookUC := NewWebhookUsecase(memTxManager{store}, gw, zap.NewNop())

	// 確定パス（Webhook）が先に勝つ
	assert.NoError(t, webhookUC.HandleWebhook(ctx, WebhookInput{
		Body:      paymentEventBody("payment.captured", "pay_1", "order_rzp1"),
		Signature: "good_sig",
		EventID:   "evt_1",
	}))

	o := store.order(t, orderID)
	assert.Equal(t, model.PaymentStatusPaid, o.PaymentStatus)
	assert.Equal(t, "pay_1", o.RazorpayPaymentID)
	assert.Empty(t, o.RazorpaySignature)

	// 速報パスが後から同じ支払いを申告してくる
	out, err := paymentUC.VerifyPayment(ctx, VerifyPaymentInput{
		RazorpayOrderID:   "order_rzp1",
		RazorpayPaymentID: "pay_1",
		RazorpaySignature: "sig_1",
	})
	assert.NoError(t, err)
	assert.Equal(t, string(model.PaymentStatusPaid), out.PaymentStatus)

	o = store.order(t, orderID)
	assert.Equal(t, "pay_1", o.RazorpayPaymentID)
	assert.Equal(t, "sig_1", o.RazorpaySignature)

	// 在庫の引き当ては1回だけ
	assert.Equal(t, int64(4), store.stock[10])
}

// 速報パスと確定パスを実際に並行させる。どちらが勝っても
// PAID・payment_id・署名・在庫引き当て1回に収束すること。
func TestWebhookUsecase_ConcurrentVerificationAndWebhook(t *testing.T) {
	for i := 0; i < 50; i++ {
		ctx := context.Background()
		store := newMemStore()
		orderID := seedPendingOrder(store, "order_rzp1")

		gw := new(GatewayMock)
		gw.On("VerifyPaymentSignature", "order_rzp1", "pay_1", "sig_1").Return(true)
		gw.On("VerifyWebhookSignature", mock.Anything, "good_sig").Return(true)

		paymentUC := NewPaymentUsecase(memTxManager{store}, gw, zap.NewNop())
		webhookUC := NewWebhookUsecase(memTxManager{store}, gw, zap.NewNop())

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := paymentUC.VerifyPayment(ctx, VerifyPaymentInput{
				RazorpayOrderID:   "order_rzp1",
				RazorpayPaymentID: "pay_1",
				RazorpaySignature: "sig_1",
			})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, webhookUC.HandleWebhook(ctx, WebhookInput{
				Body:      paymentEventBody("payment.captured", "pay_1", "order_rzp1"),
				Signature: "good_sig",
				EventID:   "evt_1",
			}))
		}()
		wg.Wait()

		o := store.order(t, orderID)
		assert.Equal(t, model.PaymentStatusPaid, o.PaymentStatus)
		assert.Equal(t, model.OrderStatusConfirmed, o.Status)
		assert.Equal(t, "pay_1", o.RazorpayPaymentID)
		assert.Equal(t, "sig_1", o.RazorpaySignature)
		assert.True(t, o.StockCommitted)
		assert.Equal(t, int64(4), store.stock[10])
	}
}

func TestWebhookUsecase_PurgeExpiredEvents(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	uc, _ := newWebhookFixture(store)

	// 掃除の基準は受信時刻（created_at）
	old := model.WebhookEvent{EventID: "evt_old", EventType: "payment.captured", ProcessedAt: time.Now().Add(-30 * 24 * time.Hour), CreatedAt: time.Now().Add(-30 * 24 * time.Hour)}
	fresh := model.WebhookEvent{EventID: "evt_new", EventType: "payment.captured", ProcessedAt: time.Now(), CreatedAt: time.Now()}
	_, _ = memEvents{store}.InsertIfAbsent(ctx, old)
	_, _ = memEvents{store}.InsertIfAbsent(ctx, fresh)

	purged, err := uc.PurgeExpiredEvents(ctx, 14*24*time.Hour)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	seen, _ := memEvents{store}.Exists(ctx, "evt_old")
	assert.False(t, seen)
	seen, _ = memEvents{store}.Exists(ctx, "evt_new")
	assert.True(t, seen)
}
