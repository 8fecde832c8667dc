package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// Config HTTP server 設定
type Config struct {
	ReadTimeout  time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT"`
}

// NewApp 建立 fiber app 並註冊所有路由
func NewApp(h *Handler, cfg Config) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "go-credit-ledger",
		DisableStartupMessage: true,
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		ErrorHandler:          h.ErrorHandler,
	})
	app.Use(recover.New())

	app.Get("/ping", h.Ping)
	app.Post("/register", h.Register)
	app.Post("/login", h.Login)

	app.Post("/deposit", h.RequireAuth, h.Deposit)
	app.Post("/transfer", h.RequireAuth, h.Transfer)
	app.Get("/balance", h.RequireAuth, h.Balance)
	return app
}
