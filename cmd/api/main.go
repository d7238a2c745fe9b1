package main

import (
	"context"
	"time"

	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/gateway"
	"app/internal/handler"
	"app/internal/infra/db"
	infraRepo "app/internal/infra/repository"
	"app/internal/logging"
	"app/internal/server"
	"app/internal/usecase"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	//.envはローカル開発用。無くても起動は続ける。
	_ = godotenv.Load("../.env")

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(cfg.GoEnv)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	//DB接続
	gormDB, err := db.Connect(cfg)
	if err != nil {
		logger.Fatal("db connection failed", zap.Error(err))
	}
	if err := gormDB.AutoMigrate(
		&model.User{},
		&model.Address{},
		&model.Product{},
		&model.InventoryAdjustment{},
		&model.Cart{},
		&model.CartItem{},
		&model.Order{},
		&model.OrderItem{},
		&model.WebhookEvent{},
	); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserRepository(gormDB)
	addressRepo := infraRepo.NewAddressGormRepository(gormDB)
	productRepo := infraRepo.NewProductGormRepository(gormDB)
	inventoryRepo := infraRepo.NewInventoryGormRepository(gormDB)
	cartRepo := infraRepo.NewCartGormRepository(gormDB)
	txManager := infraRepo.NewTxManagerGorm(gormDB)

	//ゲートウェイクライアントはプロセス起動時に1回だけ作る
	rzp := gateway.NewRazorpayClient(
		cfg.RazorpayBaseURL,
		cfg.RazorpayKeyID,
		cfg.RazorpayKeySecret,
		cfg.RazorpayWebhookSecret,
		cfg.GatewayTimeout,
	)

	pricing := usecase.PricingConfig{
		TaxRateBasisPoints:    cfg.TaxRateBasisPoints,
		ShippingFee:           cfg.ShippingFee,
		FreeShippingThreshold: cfg.FreeShippingThreshold,
		Currency:              "INR",
	}

	//Usecase生成
	authUC := usecase.NewAuthUsecase(userRepo, cfg.JWTSecret)
	productUC := usecase.NewProductUsecase(productRepo, inventoryRepo)
	cartUC := usecase.NewCartUsecase(cartRepo, cartRepo, productRepo)
	addressUC := usecase.NewAddressUsecase(addressRepo)
	checkoutUC := usecase.NewCheckoutUsecase(txManager, addressRepo, userRepo, rzp, pricing, logger)
	paymentUC := usecase.NewPaymentUsecase(txManager, rzp, logger)
	webhookUC := usecase.NewWebhookUsecase(txManager, rzp, logger)
	orderUC := usecase.NewOrderUsecase(txManager, cfg.CancelWindow, cfg.ReturnWindow, logger)
	adminOrderUC := usecase.NewAdminOrderUsecase(txManager, logger)

	//Webhook重複排除レコードの掃除（起動時＋毎日）
	go func() {
		for {
			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			if _, err := webhookUC.PurgeExpiredEvents(ctx, cfg.WebhookRetention); err != nil {
				logger.Warn("webhook event purge failed", zap.Error(err))
			}
			cancel()
			time.Sleep(24 * time.Hour)
		}
	}()

	//Handler生成
	h := server.Handlers{
		Auth:         handler.NewAuthHandler(authUC),
		Product:      handler.NewProductHandler(productUC),
		Cart:         handler.NewCartHandler(cartUC),
		Address:      handler.NewAddressHandler(addressUC),
		Checkout:     handler.NewCheckoutHandler(checkoutUC),
		Payment:      handler.NewPaymentHandler(paymentUC),
		Webhook:      handler.NewWebhookHandler(webhookUC),
		Order:        handler.NewOrderHandler(orderUC),
		AdminOrder:   handler.NewAdminOrderHandler(adminOrderUC, paymentUC),
		AdminProduct: handler.NewAdminProductHandler(productUC),
	}

	e := server.New(cfg, h)

	addr := ":" + cfg.Port
	logger.Info("starting server", zap.String("addr", addr))
	if err := e.Start(addr); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}
