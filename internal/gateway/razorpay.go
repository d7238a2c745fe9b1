package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// 呼び出し側がリトライ判断できるように2種類に分ける。
// Unavailable＝ネットワーク/タイムアウト/5xx（リトライ可）
// Rejected＝4xx業務エラー（同じ入力でリトライしても無駄）
var (
	ErrGatewayUnavailable = errors.New("gateway unavailable")
	ErrGatewayRejected    = errors.New("gateway rejected")
)

type CreatedOrder struct {
	GatewayOrderID string
	KeyID          string
	Amount         int64
	Currency       string
}

type RefundResult struct {
	RefundID string
	Status   string
}

type RazorpayClient struct {
	baseURL       string
	keyID         string
	keySecret     string
	webhookSecret string
	httpClient    *http.Client
}

func NewRazorpayClient(baseURL, keyID, keySecret, webhookSecret string, timeout time.Duration) *RazorpayClient {
	return &RazorpayClient{
		baseURL:       baseURL,
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		httpClient:    &http.Client{Timeout: timeout},
	}
}

func (c *RazorpayClient) KeyID() string {
	return c.keyID
}

type razorpayOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type razorpayErrorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateOrder はRazorpay側に注文を作る。receiptにはローカルの注文番号を渡す。
func (c *RazorpayClient) CreateOrder(ctx context.Context, amount int64, currency string, receipt string) (CreatedOrder, error) {
	body := map[string]interface{}{
		"amount":   amount,
		"currency": currency,
		"receipt":  receipt,
	}

	var out razorpayOrderResponse
	if err := c.post(ctx, "/orders", body, &out); err != nil {
		return CreatedOrder{}, err
	}

	return CreatedOrder{
		GatewayOrderID: out.ID,
		KeyID:          c.keyID,
		Amount:         out.Amount,
		Currency:       out.Currency,
	}, nil
}

type razorpayRefundResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Refund は返金を発行する。amount=0なら全額。
func (c *RazorpayClient) Refund(ctx context.Context, paymentID string, amount int64) (RefundResult, error) {
	body := map[string]interface{}{}
	if amount > 0 {
		body["amount"] = amount
	}

	var out razorpayRefundResponse
	if err := c.post(ctx, "/payments/"+paymentID+"/refund", body, &out); err != nil {
		return RefundResult{}, err
	}

	return RefundResult{RefundID: out.ID, Status: out.Status}, nil
}

// VerifyPaymentSignature はクライアント申告の決済完了を検証する。
// signature = HMAC-SHA256(keySecret, orderID + "|" + paymentID) のhex。
func (c *RazorpayClient) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	mac := hmac.New(sha256.New, []byte(c.keySecret))
	mac.Write([]byte(orderID + "|" + paymentID))
	expected := hex.EncodeToString(mac.Sum(nil))

	//比較はconstant time
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyWebhookSignature はWebhook本文の署名を検証する。
// シークレットはクライアント検証用とは別物。
func (c *RazorpayClient) VerifyWebhookSignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(c.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(signature))
}

func (c *RazorpayClient) post(ctx context.Context, path string, body interface{}, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: encode request: %v", ErrGatewayRejected, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: build request: %v", ErrGatewayRejected, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		//タイムアウト・接続失敗はリトライ可能扱い
		return fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrGatewayUnavailable, err)
	}

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", ErrGatewayUnavailable, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		var rzpErr razorpayErrorResponse
		if err := json.Unmarshal(data, &rzpErr); err == nil && rzpErr.Error.Description != "" {
			return fmt.Errorf("%w: %s (%s)", ErrGatewayRejected, rzpErr.Error.Description, rzpErr.Error.Code)
		}
		return fmt.Errorf("%w: status %d", ErrGatewayRejected, resp.StatusCode)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrGatewayUnavailable, err)
	}
	return nil
}
