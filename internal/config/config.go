package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	PostgresUser     string // DBユーザー
	PostgresPassword string // DBパスワード
	PostgresDB       string // DB名
	PostgresHost     string // DBホスト（localhost）
	PostgresPort     int    // DBポート（5433）

	JWTSecret string // JWT署名シークレット

	// Razorpay（決済ゲートウェイ）
	RazorpayKeyID         string        // 公開キーID（フロントにも渡す）
	RazorpayKeySecret     string        // APIシークレット兼 クライアント検証用HMACシークレット
	RazorpayWebhookSecret string        // Webhook署名用シークレット（KeySecretとは別物）
	RazorpayBaseURL       string        // APIベースURL（テストで差し替え可能）
	GatewayTimeout        time.Duration // ゲートウェイHTTPのタイムアウト

	// 注文まわりの業務設定
	WebhookRetention      time.Duration // Webhook重複排除レコードの保持期間
	CancelWindow          time.Duration // 注文キャンセル可能期間
	ReturnWindow          time.Duration // 返品申請可能期間
	TaxRateBasisPoints    int64         // 税率（basis points、18% = 1800）
	ShippingFee           int64         // 送料（最小通貨単位）
	FreeShippingThreshold int64         // この金額以上で送料無料（最小通貨単位）

	GoEnv string // dev/prod
}

// Loadは環境変数から設定を組み立てる
func Load() (Config, error) {
	pgPort, err := mustAtoi("POSTGRES_PORT")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port: os.Getenv("PORT"),

		PostgresUser:     os.Getenv("POSTGRES_USER"),
		PostgresPassword: os.Getenv("POSTGRES_PASSWORD"),
		PostgresDB:       os.Getenv("POSTGRES_DB"),
		PostgresHost:     os.Getenv("POSTGRES_HOST"),
		PostgresPort:     pgPort,

		JWTSecret: os.Getenv("JWT_SECRET"),

		RazorpayKeyID:         os.Getenv("RAZORPAY_KEY_ID"),
		RazorpayKeySecret:     os.Getenv("RAZORPAY_KEY_SECRET"),
		RazorpayWebhookSecret: os.Getenv("RAZORPAY_WEBHOOK_SECRET"),
		RazorpayBaseURL:       getenvDefault("RAZORPAY_BASE_URL", "https://api.razorpay.com/v1"),

		GoEnv: os.Getenv("GO_ENV"),
	}

	cfg.GatewayTimeout = time.Duration(atoiDefault("GATEWAY_TIMEOUT_SECONDS", 15)) * time.Second
	cfg.WebhookRetention = time.Duration(atoiDefault("WEBHOOK_RETENTION_DAYS", 14)) * 24 * time.Hour
	cfg.CancelWindow = time.Duration(atoiDefault("CANCEL_WINDOW_DAYS", 3)) * 24 * time.Hour
	cfg.ReturnWindow = time.Duration(atoiDefault("RETURN_WINDOW_DAYS", 7)) * 24 * time.Hour
	cfg.TaxRateBasisPoints = int64(atoiDefault("TAX_RATE_BP", 1800))
	cfg.ShippingFee = int64(atoiDefault("SHIPPING_FEE", 5000))
	cfg.FreeShippingThreshold = int64(atoiDefault("FREE_SHIPPING_THRESHOLD", 100000))

	//必須チェック
	if cfg.Port == "" {
		return Config{}, fmt.Errorf("PORT is required")
	}
	if cfg.PostgresUser == "" {
		return Config{}, fmt.Errorf("POSTGRES_USER is required")
	}
	if cfg.PostgresPassword == "" {
		return Config{}, fmt.Errorf("POSTGRES_PASSWORD is required")
	}
	if cfg.PostgresDB == "" {
		return Config{}, fmt.Errorf("POSTGRES_DB is required")
	}
	if cfg.PostgresHost == "" {
		return Config{}, fmt.Errorf("POSTGRES_HOST is required")
	}
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.RazorpayKeyID == "" {
		return Config{}, fmt.Errorf("RAZORPAY_KEY_ID is required")
	}
	if cfg.RazorpayKeySecret == "" {
		return Config{}, fmt.Errorf("RAZORPAY_KEY_SECRET is required")
	}
	if cfg.RazorpayWebhookSecret == "" {
		return Config{}, fmt.Errorf("RAZORPAY_WEBHOOK_SECRET is required")
	}
	if cfg.GoEnv == "" {
		return Config{}, fmt.Errorf("GO_ENV is required")
	}

	return cfg, nil
}

func mustAtoi(key string) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return 0, fmt.Errorf("%s is required", key)
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func atoiDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvDefault(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}
