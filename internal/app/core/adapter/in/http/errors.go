package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
)

// ErrorToStatusCode 將 domain 錯誤轉成 HTTP 狀態碼
// ErrTransferFailed 會包住造成失敗的原因，所以要先於其他錯誤判斷
func ErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrTransferFailed),
		errors.Is(err, domain.ErrStorageUnavailable):
		return fiber.StatusServiceUnavailable
	case errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrInsufficientCredit):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, domain.ErrAccountNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrAccountAlreadyExists):
		return fiber.StatusConflict
	default:
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return fe.Code
		}
		return fiber.StatusInternalServerError
	}
}

func writeMessage(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(ErrorResponse{Message: message})
}

// errorMessage 5xx 不把內部錯誤細節回給客戶端
func errorMessage(status int, err error) string {
	if status >= fiber.StatusInternalServerError {
		return utils.StatusMessage(status)
	}
	return err.Error()
}
