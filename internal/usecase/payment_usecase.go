package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"app/internal/domain/model"
	"app/internal/gateway"
	"app/internal/metrics"
	repo "app/internal/repository"

	"go.uber.org/zap"
)

type PaymentUsecase struct {
	tx     repo.TransactionManager
	gw     PaymentGateway
	logger *zap.Logger
}

func NewPaymentUsecase(tx repo.TransactionManager, gw PaymentGateway, logger *zap.Logger) *PaymentUsecase {
	return &PaymentUsecase{tx: tx, gw: gw, logger: logger}
}

type VerifyPaymentInput struct {
	RazorpayOrderID   string
	RazorpayPaymentID string
	RazorpaySignature string
	PaymentMethod     string
}

// VerifyPayment はクライアント申告の決済完了（速報パス）。
// Webhook側（確定パス）と同じ支払いを同時に処理していても安全なように、
// 遷移は全部DBの条件付きUPDATEで直列化する。負けた側は「適用済み」として
// そのまま既存の注文を返す。
func (u *PaymentUsecase) VerifyPayment(ctx context.Context, in VerifyPaymentInput) (OrderOutput, error) {
	if strings.TrimSpace(in.RazorpayOrderID) == "" ||
		strings.TrimSpace(in.RazorpayPaymentID) == "" ||
		strings.TrimSpace(in.RazorpaySignature) == "" {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "missing payment fields")
	}

	//署名検証。失敗したら注文には一切触らない。
	if !u.gw.VerifyPaymentSignature(in.RazorpayOrderID, in.RazorpayPaymentID, in.RazorpaySignature) {
		u.logger.Warn("payment signature mismatch",
			zap.String("razorpay_order_id", in.RazorpayOrderID),
			zap.String("razorpay_payment_id", in.RazorpayPaymentID))
		metrics.RecordPaymentTransition("signature_mismatch")
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "signature mismatch")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByRazorpayOrderID(ctx, in.RazorpayOrderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "order not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		//二重送信の再呼び出しはそのまま返す
		if o.PaymentStatus.PaymentTerminal() {
			if o.RazorpayPaymentID != "" && o.RazorpayPaymentID != in.RazorpayPaymentID {
				//確定済みの支払いを別のpayment_idで上書きしにきた
				u.logger.Warn("verification with different payment id ignored",
					zap.Int64("order_id", o.ID),
					zap.String("stored_payment_id", o.RazorpayPaymentID),
					zap.String("reported_payment_id", in.RazorpayPaymentID))
			} else if o.RazorpaySignature == "" {
				//Webhookが先にPAIDまで進めた注文。Webhookにはクライアント署名が
				//乗ってこないので、同じpayment_idの検証がここで署名を埋める。
				if _, err := r.Orders().AttachPaymentSignature(ctx, o.ID, in.RazorpayPaymentID, in.RazorpaySignature); err != nil {
					return NewHTTPError(http.StatusInternalServerError, "db error")
				}
			}
			out, err = u.loadOutput(ctx, r, o.ID)
			return err
		}

		//payment_id + signature はwrite-once
		claimed, err := r.Orders().ClaimPayment(ctx, o.ID, in.RazorpayPaymentID, in.RazorpaySignature)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if !claimed {
			//Webhookが先にpayment_idを入れているケース。値が違うなら無視して現状を返す。
			cur, err := r.Orders().FindByID(ctx, o.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			if cur.RazorpayPaymentID != in.RazorpayPaymentID {
				u.logger.Warn("claim lost to different payment id",
					zap.Int64("order_id", o.ID),
					zap.String("stored_payment_id", cur.RazorpayPaymentID))
				out, err = u.loadOutput(ctx, r, o.ID)
				return err
			}
			//同じpayment_idで署名だけ空ならここで埋める（1回だけ）
			if cur.RazorpaySignature == "" {
				if _, err := r.Orders().AttachPaymentSignature(ctx, o.ID, in.RazorpayPaymentID, in.RazorpaySignature); err != nil {
					return NewHTTPError(http.StatusInternalServerError, "db error")
				}
			}
		}

		//PAID遷移。勝った側だけ副作用（在庫引き当て）を実行する。
		won, err := r.Orders().MarkPaid(ctx, o.ID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if won {
			metrics.RecordPaymentTransition(string(model.PaymentStatusPaid))
			u.logger.Info("payment verified",
				zap.Int64("order_id", o.ID),
				zap.String("razorpay_payment_id", in.RazorpayPaymentID),
				zap.String("path", "client_verification"))

			if err := commitOrderStock(ctx, r, u.logger, o.ID); err != nil {
				return err
			}
		}

		out, err = u.loadOutput(ctx, r, o.ID)
		return err
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

type RefundInput struct {
	Amount int64 // 0なら全額
}

// RefundOrder は管理者による返金。PAIDかつpayment_id確定済みのみ。
// ゲートウェイへの返金発行→ローカル遷移の順。発行後の遷移失敗は
// ログに残す（返金自体は成立しているので巻き戻さない）。
func (u *PaymentUsecase) RefundOrder(ctx context.Context, adminID int64, orderID int64, in RefundInput) (OrderOutput, error) {
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	if in.Amount < 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid amount")
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
		if !o.CanRefund() {
			return NewHTTPError(http.StatusConflict, "order is not refundable")
		}
		if in.Amount > o.TotalAmount {
			return NewHTTPError(http.StatusBadRequest, "amount exceeds order total")
		}
		order = o
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	//ゲートウェイへ返金発行（トランザクション外・タイムアウトあり）
	result, err := u.gw.Refund(ctx, order.RazorpayPaymentID, in.Amount)
	if err != nil {
		u.logger.Warn("gateway refund failed",
			zap.Int64("order_id", orderID),
			zap.Error(err))
		if errors.Is(err, gateway.ErrGatewayUnavailable) {
			return OrderOutput{}, NewHTTPError(http.StatusServiceUnavailable, "payment gateway unavailable, please retry")
		}
		return OrderOutput{}, NewHTTPError(http.StatusBadGateway, "payment gateway rejected the refund")
	}

	//一部返金か全額か
	target := model.PaymentStatusRefunded
	if in.Amount > 0 && in.Amount < order.TotalAmount {
		target = model.PaymentStatusPartiallyRefunded
	}

	var out OrderOutput
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		ok, err := r.Orders().MarkRefunded(ctx, orderID, target)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if !ok {
			//返金は成立しているのに遷移できない＝要オペレーション確認
			u.logger.Error("refund issued but status transition lost",
				zap.Int64("order_id", orderID),
				zap.String("refund_id", result.RefundID))
		} else {
			metrics.RecordPaymentTransition(string(target))
		}

		out, err = u.loadOutput(ctx, r, orderID)
		return err
	})
	if err != nil {
		return OrderOutput{}, err
	}

	u.logger.Info("refund completed",
		zap.Int64("order_id", orderID),
		zap.Int64("admin_id", adminID),
		zap.String("refund_id", result.RefundID),
		zap.String("status", string(target)))

	return out, nil
}

func (u *PaymentUsecase) loadOutput(ctx context.Context, r repo.TxRepos, orderID int64) (OrderOutput, error) {
	o, err := r.Orders().FindByID(ctx, orderID)
	if err != nil {
		return OrderOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	items, err := r.OrderItems().ListByOrderID(ctx, orderID)
	if err != nil {
		return OrderOutput{}, NewHTTPError(http.StatusInternalServerError, "db error")
	}
	return toOrderOutput(o, items), nil
}

// commitOrderStock はPAID遷移の勝者が呼ぶ在庫引き当て。
// stock_committedフラグで二重引き当てを防ぐので、検証パスとWebhookパスの
// どちらが呼んでも1回しか実行されない。
// 在庫不足は支払い済みなので失敗にはせず、ログに残して続行する
//（売り越し分はオペレーションで追う）。
func commitOrderStock(ctx context.Context, r repo.TxRepos, logger *zap.Logger, orderID int64) error {
	first, err := r.Orders().MarkStockCommitted(ctx, orderID)
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}
	if !first {
		return nil
	}

	items, err := r.OrderItems().ListByOrderID(ctx, orderID)
	if err != nil {
		return NewHTTPError(http.StatusInternalServerError, "db error")
	}

	for _, it := range items {
		ok, err := r.Inventory().DecreaseStockIfEnough(ctx, it.ProductID, it.Quantity)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if !ok {
			logger.Error("oversold: paid order exceeds stock",
				zap.Int64("order_id", orderID),
				zap.Int64("product_id", it.ProductID),
				zap.Int64("quantity", it.Quantity))
		}
	}
	return nil
}
