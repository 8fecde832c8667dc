package http

// RegisterRequest POST /register
type RegisterRequest struct {
	CPF      string `json:"cpf" validate:"required,cpf"`
	Name     string `json:"name" validate:"required,min=4"`
	Password string `json:"password" validate:"required,strongpassword"`
}

// LoginRequest POST /login
type LoginRequest struct {
	CPF      string `json:"cpf" validate:"required,cpf"`
	Password string `json:"password" validate:"required"`
}

// DepositRequest POST /deposit，CPF 留空時存入目前登入的帳戶
type DepositRequest struct {
	CPF      string `json:"cpf" validate:"omitempty,cpf"`
	Quantity int64  `json:"quantity" validate:"gt=0"`
}

// TransferRequest POST /transfer，CPF 為收款帳戶
type TransferRequest struct {
	CPF      string `json:"cpf" validate:"required,cpf"`
	Quantity int64  `json:"quantity" validate:"gt=0"`
}

type TokenResponse struct {
	Token string `json:"token"`
}

type BalanceResponse struct {
	CPF    string `json:"cpf"`
	Credit int64  `json:"credit"`
}

// TransferReceipt 轉帳成功後回傳的收據
type TransferReceipt struct {
	ID     string `json:"id"`
	From   string `json:"from"`
	To     string `json:"to"`
	Amount int64  `json:"amount"`
	State  string `json:"state"`
}

// ErrorResponse 所有錯誤回應的格式
type ErrorResponse struct {
	Message string `json:"message"`
}
