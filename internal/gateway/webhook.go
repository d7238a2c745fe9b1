package gateway

import (
	"encoding/json"
	"errors"
)

// Webhookのイベント種別。知らない種別はUnknownに落として呼び出し側でACKする
// （将来Razorpayが種別を増やしても受信側が壊れないように）。
type EventKind string

const (
	EventPaymentAuthorized EventKind = "payment.authorized"
	EventPaymentCaptured   EventKind = "payment.captured"
	EventPaymentFailed     EventKind = "payment.failed"
	EventOrderPaid         EventKind = "order.paid"
	EventUnknown           EventKind = "unknown"
)

var ErrMalformedEvent = errors.New("malformed webhook event")

// パース済みのWebhookイベント。any掘りをここで閉じ込める。
// クライアント署名はWebhookには乗ってこない（検証パスだけが持つ）。
type WebhookEvent struct {
	Kind           EventKind
	RawKind        string // 未知種別のログ用
	GatewayOrderID string
	PaymentID      string
}

type webhookEnvelope struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
				Status  string `json:"status"`
			} `json:"entity"`
		} `json:"payment"`
		Order struct {
			Entity struct {
				ID string `json:"id"`
			} `json:"entity"`
		} `json:"order"`
	} `json:"payload"`
}

// ParseWebhookEvent は生ボディをイベントに変換する。
// 署名検証が済んでから呼ぶこと。
func ParseWebhookEvent(body []byte) (WebhookEvent, error) {
	var env webhookEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return WebhookEvent{}, ErrMalformedEvent
	}
	if env.Event == "" {
		return WebhookEvent{}, ErrMalformedEvent
	}

	ev := WebhookEvent{RawKind: env.Event}

	switch EventKind(env.Event) {
	case EventPaymentAuthorized, EventPaymentCaptured, EventPaymentFailed:
		ev.Kind = EventKind(env.Event)
		ev.PaymentID = env.Payload.Payment.Entity.ID
		ev.GatewayOrderID = env.Payload.Payment.Entity.OrderID
		if ev.GatewayOrderID == "" || ev.PaymentID == "" {
			return WebhookEvent{}, ErrMalformedEvent
		}
	case EventOrderPaid:
		ev.Kind = EventOrderPaid
		ev.GatewayOrderID = env.Payload.Order.Entity.ID
		ev.PaymentID = env.Payload.Payment.Entity.ID
		if ev.GatewayOrderID == "" {
			return WebhookEvent{}, ErrMalformedEvent
		}
	default:
		ev.Kind = EventUnknown
	}

	return ev, nil
}
