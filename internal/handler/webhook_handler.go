package handler

import (
	"io"
	"net/http"

	"app/internal/usecase"

	"github.com/labstack/echo/v4"
)

// ボディの読み過ぎ防止（Razorpayのイベントは高々数KB）
const maxWebhookBodySize = 1 << 20

type WebhookHandler struct {
	uc *usecase.WebhookUsecase
}

func NewWebhookHandler(uc *usecase.WebhookUsecase) *WebhookHandler {
	return &WebhookHandler{uc: uc}
}

type WebhookResponse struct {
	Success bool `json:"success"`
}

// Webhookは認証ミドルウェアを通さない。署名検証が認証そのもの。
func (h *WebhookHandler) RegisterRoutes(e *echo.Echo) {
	e.POST("/webhooks/razorpay", h.handle)
}

func (h *WebhookHandler) handle(c echo.Context) error {
	//署名はrawボディに対するものなのでBind前に読む
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxWebhookBodySize))
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "cannot read body"})
	}

	in := usecase.WebhookInput{
		Body:      body,
		Signature: c.Request().Header.Get("X-Razorpay-Signature"),
		EventID:   c.Request().Header.Get("X-Razorpay-Event-Id"),
	}

	if err := h.uc.HandleWebhook(c.Request().Context(), in); err != nil {
		//署名不一致だけ400。それ以外のエラーはwriteErrorで返す。
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, WebhookResponse{Success: true})
}
