package usecase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"app/internal/domain/model"
	"app/internal/gateway"
	"app/internal/metrics"
	repo "app/internal/repository"

	"go.uber.org/zap"
)

type WebhookUsecase struct {
	tx     repo.TransactionManager
	gw     PaymentGateway
	logger *zap.Logger
}

func NewWebhookUsecase(tx repo.TransactionManager, gw PaymentGateway, logger *zap.Logger) *WebhookUsecase {
	return &WebhookUsecase{tx: tx, gw: gw, logger: logger}
}

type WebhookInput struct {
	Body      []byte
	Signature string
	EventID   string // X-Razorpay-Event-Id。無ければボディのハッシュで代用
}

// HandleWebhook はゲートウェイからの非同期通知（確定パス）。
// at-least-once配送なので、同じイベントが何度来ても・どの順で来ても
// 結果が変わらないように作る。エラーを返すのは署名不一致のときだけ。
// それ以外は全部ACK（エラーを返すとゲートウェイが無駄にリトライし続ける）。
func (u *WebhookUsecase) HandleWebhook(ctx context.Context, in WebhookInput) error {
	//署名はrawボディ全体に対して検証する
	if !u.gw.VerifyWebhookSignature(in.Body, in.Signature) {
		u.logger.Warn("webhook signature mismatch",
			zap.Int("body_size", len(in.Body)))
		metrics.RecordWebhookEvent("unknown", "rejected")
		return NewHTTPError(http.StatusBadRequest, "invalid signature")
	}

	ev, err := gateway.ParseWebhookEvent(in.Body)
	if err != nil {
		//署名は合っているのに読めない＝こちらが知らない形式。
		//リトライさせても結果は同じなのでACKして記録だけ残す。
		u.logger.Warn("malformed webhook payload acknowledged")
		metrics.RecordWebhookEvent("unknown", "malformed")
		return nil
	}

	//未知の種別は前方互換のためACK
	if ev.Kind == gateway.EventUnknown {
		u.logger.Info("unknown webhook event kind acknowledged",
			zap.String("event", ev.RawKind))
		metrics.RecordWebhookEvent(ev.RawKind, "ignored")
		return nil
	}

	eventID := in.EventID
	if eventID == "" {
		sum := sha256.Sum256(in.Body)
		eventID = hex.EncodeToString(sum[:])
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		//重複排除。処理済みなら即ACK。
		seen, err := r.WebhookEvents().Exists(ctx, eventID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if seen {
			metrics.RecordWebhookEvent(string(ev.Kind), "duplicate")
			return nil
		}

		order, err := r.Orders().FindByRazorpayOrderID(ctx, ev.GatewayOrderID)
		if err == repo.ErrNotFound {
			//知らない注文（テストイベント・削除済みなど）。
			//エラーにするとリトライ地獄になるのでACK。
			u.logger.Warn("webhook for unknown order acknowledged",
				zap.String("event", string(ev.Kind)),
				zap.String("razorpay_order_id", ev.GatewayOrderID))
			metrics.RecordWebhookEvent(string(ev.Kind), "orphan")
			return nil
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		if err := u.apply(ctx, r, ev, order); err != nil {
			return err
		}

		//イベントIDの記録は遷移の適用後。間でクラッシュしても
		//再配送時に冪等な遷移をもう一度なぞるだけで済む。
		if _, err := r.WebhookEvents().InsertIfAbsent(ctx, model.WebhookEvent{
			EventID:     eventID,
			EventType:   string(ev.Kind),
			OrderID:     order.ID,
			ProcessedAt: time.Now(),
		}); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		return nil
	})
}

func (u *WebhookUsecase) apply(ctx context.Context, r repo.TxRepos, ev gateway.WebhookEvent, order model.Order) error {
	switch ev.Kind {
	case gateway.EventPaymentAuthorized:
		applied, err := r.Orders().MarkPaymentProcessing(ctx, order.ID, ev.PaymentID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if applied {
			metrics.RecordPaymentTransition(string(model.PaymentStatusProcessing))
			metrics.RecordWebhookEvent(string(ev.Kind), "applied")
		} else {
			//既にPROCESSING以降。順不同の古いイベントなので捨てる。
			metrics.RecordWebhookEvent(string(ev.Kind), "stale")
		}
		return nil

	case gateway.EventPaymentCaptured, gateway.EventOrderPaid:
		//payment_idが乗っていればwrite-onceで入れておく
		//（検証パスが先に別の値を入れていたら負けるだけ）。
		//クライアント署名はWebhookペイロードには無いので空のまま残し、
		//あとから来た検証パスがAttachPaymentSignatureで埋める。
		if ev.PaymentID != "" {
			if _, err := r.Orders().ClaimPayment(ctx, order.ID, ev.PaymentID, ""); err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
		}

		won, err := r.Orders().MarkPaid(ctx, order.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if won {
			metrics.RecordPaymentTransition(string(model.PaymentStatusPaid))
			metrics.RecordWebhookEvent(string(ev.Kind), "applied")
			u.logger.Info("payment reconciled via webhook",
				zap.Int64("order_id", order.ID),
				zap.String("event", string(ev.Kind)),
				zap.String("path", "webhook"))

			return commitOrderStock(ctx, r, u.logger, order.ID)
		}

		//検証パスが先に勝っていた。副作用は再実行しない。
		metrics.RecordWebhookEvent(string(ev.Kind), "already_applied")
		return nil

	case gateway.EventPaymentFailed:
		applied, err := r.Orders().MarkPaymentFailed(ctx, order.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if applied {
			metrics.RecordPaymentTransition(string(model.PaymentStatusFailed))
			metrics.RecordWebhookEvent(string(ev.Kind), "applied")
		} else {
			//PAID後に届いたFAILEDは巻き戻さない。staleとして記録だけ。
			u.logger.Warn("stale payment.failed dropped",
				zap.Int64("order_id", order.ID),
				zap.String("payment_status", string(order.PaymentStatus)))
			metrics.RecordWebhookEvent(string(ev.Kind), "stale")
		}
		return nil
	}

	return nil
}

// PurgeExpiredEvents は保持期間を過ぎた重複排除レコードの掃除。
// 起動時と定期実行で呼ばれる。
func (u *WebhookUsecase) PurgeExpiredEvents(ctx context.Context, retention time.Duration) (int64, error) {
	var purged int64
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		n, err := r.WebhookEvents().PurgeOlderThan(ctx, time.Now().Add(-retention))
		if err != nil {
			return err
		}
		purged = n
		return nil
	})
	if err != nil {
		return 0, err
	}
	if purged > 0 {
		u.logger.Info("purged webhook events", zap.Int64("count", purged))
	}
	return purged, nil
}
