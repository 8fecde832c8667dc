package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
)

const localsAccountID = "account_id"

// RequireAuth 驗證 Authorization header 並把目前帳戶 ID 放入 Locals
// header 可以是原始 token 或 "Bearer <token>"
func (h *Handler) RequireAuth(c *fiber.Ctx) error {
	raw := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if raw == "" {
		return domain.ErrUnauthorized
	}
	if scheme, token, ok := strings.Cut(raw, " "); ok && strings.EqualFold(scheme, "Bearer") {
		raw = strings.TrimSpace(token)
	}
	accountID, err := h.core.Authenticate(raw)
	if err != nil {
		return err
	}
	c.Locals(localsAccountID, accountID)
	return c.Next()
}

func actingAccount(c *fiber.Ctx) string {
	id, _ := c.Locals(localsAccountID).(string)
	return id
}
