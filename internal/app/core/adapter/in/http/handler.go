package http

import (
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
)

// Handler HTTP 的 Driving Adapter，把請求轉給 CoreUseCase
type Handler struct {
	core     *usecase.CoreUseCase
	validate *validator.Validate
	logger   *zap.Logger
}

func NewHandler(core *usecase.CoreUseCase, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		core:     core,
		validate: newValidator(),
		logger:   logger.Named("http"),
	}
}

func (h *Handler) Ping(c *fiber.Ctx) error {
	return c.SendString("pong")
}

func (h *Handler) Register(c *fiber.Ctx) error {
	in, err := BindAndValidate[RegisterRequest](c, h.validate)
	if in == nil {
		return err
	}
	acc, err := h.core.Register(c.UserContext(), in.CPF, in.Name, in.Password)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(BalanceResponse{CPF: acc.ID, Credit: acc.Balance})
}

func (h *Handler) Login(c *fiber.Ctx) error {
	in, err := BindAndValidate[LoginRequest](c, h.validate)
	if in == nil {
		return err
	}
	token, err := h.core.Login(c.UserContext(), in.CPF, in.Password)
	if err != nil {
		return err
	}
	return c.JSON(TokenResponse{Token: token})
}

func (h *Handler) Deposit(c *fiber.Ctx) error {
	in, err := BindAndValidate[DepositRequest](c, h.validate)
	if in == nil {
		return err
	}
	target := in.CPF
	if target == "" {
		target = actingAccount(c)
	}
	credit, err := h.core.Deposit(c.UserContext(), target, in.Quantity)
	if err != nil {
		return err
	}
	return c.JSON(BalanceResponse{CPF: target, Credit: credit})
}

func (h *Handler) Transfer(c *fiber.Ctx) error {
	in, err := BindAndValidate[TransferRequest](c, h.validate)
	if in == nil {
		return err
	}
	tr, err := h.core.Transfer(c.UserContext(), actingAccount(c), in.CPF, in.Quantity)
	if err != nil {
		return err
	}
	return c.JSON(TransferReceipt{
		ID:     tr.ID.String(),
		From:   tr.From,
		To:     tr.To,
		Amount: tr.Amount,
		State:  tr.State.String(),
	})
}

func (h *Handler) Balance(c *fiber.Ctx) error {
	id := actingAccount(c)
	credit, err := h.core.GetAccountBalance(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(BalanceResponse{CPF: id, Credit: credit})
}

// ErrorHandler 所有 handler 回傳的錯誤統一在這裡轉成 {message}
func (h *Handler) ErrorHandler(c *fiber.Ctx, err error) error {
	status := ErrorToStatusCode(err)
	if status >= fiber.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Int("status", status),
			zap.Error(err))
	}
	return writeMessage(c, status, errorMessage(status, err))
}
