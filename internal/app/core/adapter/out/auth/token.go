package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
)

const defaultTokenTTL = time.Hour

// Claims 權杖內容，cpf 即帳戶 ID
type Claims struct {
	CPF string `json:"cpf"`
	jwt.RegisteredClaims
}

// JWTIssuer 以 HS256 簽發權杖
type JWTIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTIssuer 建立權杖簽發器
//
// 參數:
//
//	secret: HMAC 金鑰，不可為空
//	ttl: 權杖有效時間，<= 0 時為 1 小時
func NewJWTIssuer(secret string, ttl time.Duration) (*JWTIssuer, error) {
	if secret == "" {
		return nil, errors.New("jwt secret must not be empty")
	}
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	return &JWTIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

func (j *JWTIssuer) Issue(accountID string) (string, error) {
	now := j.now()
	claims := Claims{
		CPF: accountID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Resolve 驗證權杖並回傳帳戶 ID，可接受 "Bearer <token>" 或純 token
func (j *JWTIssuer) Resolve(token string) (string, error) {
	token = strings.TrimSpace(token)
	if after, ok := strings.CutPrefix(token, "Bearer "); ok {
		token = strings.TrimSpace(after)
	}
	if token == "" {
		return "", fmt.Errorf("%w: missing auth token", domain.ErrUnauthorized)
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return j.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(j.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	if claims.CPF == "" {
		return "", fmt.Errorf("%w: token has no subject", domain.ErrUnauthorized)
	}
	return claims.CPF, nil
}

var _ usecase.TokenIssuer = (*JWTIssuer)(nil)
