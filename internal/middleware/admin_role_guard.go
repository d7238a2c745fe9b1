package middleware

import (
	"net/http"

	"app/internal/domain/model"

	"github.com/labstack/echo/v4"
)

// contextのroleが指定ロールと一致するときだけ通す。
// AuthJWTの後段に置くこと（roleはJWTのclaimから入る）。
func requireRole(role model.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, ok := c.Get(CtxUserRoleKey).(string)
			if !ok || raw == "" {
				return c.JSON(http.StatusUnauthorized, errorJSON("unauthorized"))
			}
			if model.Role(raw) != role {
				return c.JSON(http.StatusForbidden, errorJSON("forbidden"))
			}
			return next(c)
		}
	}
}

// AdminRoleGuard は /admin 配下のロールチェック。
func AdminRoleGuard() echo.MiddlewareFunc {
	return requireRole(model.RoleAdmin)
}
