package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAmount 金額必須為正整數
	ErrInvalidAmount = errors.New("amount must be a positive integer")

	// ErrInvalidRequest 請求不合法 (例如轉給自己)
	ErrInvalidRequest = errors.New("invalid request")

	// ErrAccountNotFound 找不到帳戶
	ErrAccountNotFound = errors.New("account not found")

	// ErrSourceNotFound 找不到轉出帳戶
	ErrSourceNotFound = fmt.Errorf("source %w", ErrAccountNotFound)

	// ErrDestinationNotFound 找不到轉入帳戶
	ErrDestinationNotFound = fmt.Errorf("destination %w", ErrAccountNotFound)

	// ErrAccountAlreadyExists 帳戶已存在
	ErrAccountAlreadyExists = errors.New("account already exists")

	// ErrWouldUnderflow 扣款後餘額會變成負數 (Store 層級)
	ErrWouldUnderflow = errors.New("balance would underflow")

	// ErrInsufficientCredit 餘額不足
	ErrInsufficientCredit = errors.New("insufficient credit")

	// ErrTransferFailed 入帳失敗，扣款已回沖
	ErrTransferFailed = errors.New("transfer failed")

	// ErrStorageUnavailable 儲存層無法使用
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrUnauthorized 認證失敗
	ErrUnauthorized = errors.New("unauthorized")

	// ErrWALWriteFailed 寫入 WAL 失敗
	ErrWALWriteFailed = errors.New("wal write failed")
)
