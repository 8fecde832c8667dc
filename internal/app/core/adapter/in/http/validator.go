package http

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// newValidator 建立帶有自訂規則的 validator
//
//	cpf: 剛好 11 位數字
//	strongpassword: 至少 8 碼，需包含數字、特殊符號、大寫與小寫字母
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// RegisterValidation 只在 tag 名稱為空或函式為 nil 時回傳錯誤
	_ = v.RegisterValidation("cpf", func(fl validator.FieldLevel) bool {
		return isCPF(fl.Field().String())
	})
	_ = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
		return isStrongPassword(fl.Field().String())
	})
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func isCPF(s string) bool {
	if len(s) != 11 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isStrongPassword(s string) bool {
	if len(s) < 8 {
		return false
	}
	var digit, special, upper, lower bool
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			special = true
		}
	}
	return digit && special && upper && lower
}

// BindAndValidate 解析 request body 並驗證
// 失敗時已寫入 400 回應，呼叫端直接回傳 error 即可
func BindAndValidate[T any](c *fiber.Ctx, v *validator.Validate) (*T, error) {
	var input T
	if err := c.BodyParser(&input); err != nil {
		return nil, writeMessage(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := v.Struct(input); err != nil {
		return nil, writeMessage(c, fiber.StatusBadRequest, validationMessage(err))
	}
	return &input, nil
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return strings.Join(msgs, "; ")
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "cpf":
		return fmt.Sprintf("%s must have exactly 11 digits", fe.Field())
	case "min":
		return fmt.Sprintf("%s must have at least %s characters", fe.Field(), fe.Param())
	case "strongpassword":
		return fmt.Sprintf("%s must have at least 8 characters including a digit, a special character, an uppercase and a lowercase letter", fe.Field())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}
