package usecase

import (
	"context"
	"net/http"
	"strings"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"go.uber.org/zap"
)

type OrderUsecase struct {
	tx           repo.TransactionManager
	cancelWindow time.Duration
	returnWindow time.Duration
	logger       *zap.Logger
}

func NewOrderUsecase(tx repo.TransactionManager, cancelWindow, returnWindow time.Duration, logger *zap.Logger) *OrderUsecase {
	return &OrderUsecase{
		tx:           tx,
		cancelWindow: cancelWindow,
		returnWindow: returnWindow,
		logger:       logger,
	}
}

type OrderItemOutput struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Variant   string `json:"variant,omitempty"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
	Total     int64  `json:"total"`
}

type OrderOutput struct {
	ID            int64             `json:"id"`
	OrderNumber   string            `json:"order_number"`
	UserID        int64             `json:"user_id"`
	Status        string            `json:"status"`
	PaymentStatus string            `json:"payment_status"`
	Subtotal      int64             `json:"subtotal"`
	Tax           int64             `json:"tax"`
	Shipping      int64             `json:"shipping"`
	Discount      int64             `json:"discount"`
	TotalAmount   int64             `json:"total_amount"`
	CreatedAt     time.Time         `json:"created_at"`
	Items         []OrderItemOutput `json:"items"`
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64) ([]OrderOutput, error) {
	if userID <= 0 {
		return []OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	//ページングはまず固定で取る
	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, _, err := r.Orders().ListByUserID(ctx, userID, 1, 50)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			outs = append(outs, toOrderOutput(o, items))
		}
		return nil
	})

	if err != nil {
		return []OrderOutput{}, err
	}
	return outs, nil
}

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if err == repo.ErrNotFound {
			return NewHTTPError(http.StatusNotFound, "not found")
		}
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if o.UserID != userID {
			//他人の注文は「存在しない扱い」にする
			return NewHTTPError(http.StatusNotFound, "not found")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		out = toOrderOutput(o, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

// CancelOrder は顧客キャンセル。
// CONFIRMED/PROCESSINGかつ期限内のみ。期限はサーバー側で必ず見る
// （UIの表示だけに任せない）。
func (u *OrderUsecase) CancelOrder(ctx context.Context, userID int64, orderID int64) error {
	if userID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
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

		if !o.CanCancel() {
			return NewHTTPError(http.StatusConflict, "order cannot be cancelled")
		}
		if time.Since(o.CreatedAt) > u.cancelWindow {
			return NewHTTPError(http.StatusConflict, "cancellation window expired")
		}

		ok, err := r.Orders().UpdateStatusIf(ctx, orderID,
			[]model.OrderStatus{model.OrderStatusConfirmed, model.OrderStatusProcessing},
			model.OrderStatusCancelled)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if !ok {
			//並行で状態が進んでいた
			return NewHTTPError(http.StatusConflict, "order cannot be cancelled")
		}

		//在庫引き当て済みなら戻す
		if o.StockCommitted {
			items, err := r.OrderItems().ListByOrderID(ctx, orderID)
			if err != nil {
				return NewHTTPError(http.StatusInternalServerError, "db error")
			}
			for _, it := range items {
				if err := r.Inventory().IncreaseStock(ctx, it.ProductID, it.Quantity); err != nil {
					return NewHTTPError(http.StatusInternalServerError, "db error")
				}
				adj := model.InventoryAdjustment{
					ProductID:   it.ProductID,
					ActorUserID: userID,
					OrderID:     &orderID,
					Delta:       it.Quantity,
					Reason:      model.AdjustmentReasonCancelled,
					CreatedAt:   time.Now(),
				}
				if err := r.Inventory().CreateAdjustment(ctx, adj); err != nil {
					return NewHTTPError(http.StatusInternalServerError, "db error")
				}
			}
		}

		u.logger.Info("order cancelled",
			zap.Int64("order_id", orderID),
			zap.Int64("user_id", userID))
		return nil
	})
}

// RequestReturn は返品申請。DELIVERED限定、理由は10文字以上。
func (u *OrderUsecase) RequestReturn(ctx context.Context, userID int64, orderID int64, reason string) error {
	if userID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	reason = strings.TrimSpace(reason)
	if len(reason) < 10 {
		return NewHTTPError(http.StatusBadRequest, "reason must be at least 10 characters")
	}

	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
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

		if !o.CanRequestReturn() {
			return NewHTTPError(http.StatusConflict, "order is not delivered")
		}
		//配達時刻の専用カラムは持っていないので最終更新時刻で判定する
		if time.Since(o.UpdatedAt) > u.returnWindow {
			return NewHTTPError(http.StatusConflict, "return window expired")
		}

		ok, err := r.Orders().UpdateStatusIf(ctx, orderID,
			[]model.OrderStatus{model.OrderStatusDelivered},
			model.OrderStatusReturnRequested)
		if err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}
		if !ok {
			return NewHTTPError(http.StatusConflict, "order is not delivered")
		}

		if err := r.Orders().SetReturnReason(ctx, orderID, reason); err != nil {
			return NewHTTPError(http.StatusInternalServerError, "db error")
		}

		return nil
	})
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ProductID: it.ProductID,
			Name:      it.ProductNameSnapshot,
			Variant:   it.VariantSnapshot,
			Size:      it.SizeSnapshot,
			Color:     it.ColorSnapshot,
			Price:     it.UnitPriceSnapshot,
			Quantity:  it.Quantity,
			Total:     it.TotalPrice,
		})
	}

	return OrderOutput{
		ID:            o.ID,
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID,
		Status:        string(o.Status),
		PaymentStatus: string(o.PaymentStatus),
		Subtotal:      o.Subtotal,
		Tax:           o.Tax,
		Shipping:      o.Shipping,
		Discount:      o.Discount,
		TotalAmount:   o.TotalAmount,
		CreatedAt:     o.CreatedAt,
		Items:         outItems,
	}
}
