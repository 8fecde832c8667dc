package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
)

const (
	fieldOwner          = "owner"
	fieldCredentialHash = "credential_hash"
	fieldBalance        = "balance"
)

// 腳本回傳碼
const (
	codeOK        = 0
	codeNotFound  = -1
	codeUnderflow = -2
	codeExists    = -3
	codeOverflow  = -4
)

// createScript 存在檢查與寫入在同一個腳本內，Redis 保證腳本原子執行
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
	return -3
end
redis.call('HSET', KEYS[1], 'owner', ARGV[1], 'credential_hash', ARGV[2], 'balance', '0')
return 0
`)

// adjustScript 守衛條件 0 <= balance + delta <= MaxInt64，通過才 HINCRBY
// Lua 的數字是 double，超過 2^53 會失真，所以比較都在十進位字串或拆成 9 位數的兩段上做
// 回傳 {code, balance 字串}
var adjustScript = redis.NewScript(`
local function split(s)
	local n = string.len(s)
	if n <= 9 then
		return 0, tonumber(s)
	end
	return tonumber(string.sub(s, 1, n - 9)), tonumber(string.sub(s, n - 8))
end

local balance = redis.call('HGET', KEYS[1], 'balance')
if not balance then
	return {-1, '0'}
end
local delta = ARGV[1]
if string.sub(delta, 1, 1) == '-' then
	local need = string.sub(delta, 2)
	if string.len(balance) < string.len(need) or (string.len(balance) == string.len(need) and balance < need) then
		return {-2, balance}
	end
else
	local bh, bl = split(balance)
	local dh, dl = split(delta)
	local hi, lo = bh + dh, bl + dl
	if lo >= 1000000000 then
		hi, lo = hi + 1, lo - 1000000000
	end
	if hi > 9223372036 or (hi == 9223372036 and lo > 854775807) then
		return {-4, balance}
	end
end
local res = redis.pcall('HINCRBY', KEYS[1], 'balance', delta)
if type(res) == 'table' and res.err then
	return {-4, balance}
end
return {0, redis.call('HGET', KEYS[1], 'balance')}
`)

// Store 以 Redis Hash 實作 AccountStore，每個帳戶一個 key
type Store struct {
	client redis.UniversalClient
	prefix string
}

func NewStore(client redis.UniversalClient, keyPrefix string) *Store {
	if keyPrefix == "" {
		keyPrefix = "ledger"
	}
	return &Store{client: client, prefix: keyPrefix}
}

func (s *Store) key(id string) string {
	return s.prefix + ":account:" + id
}

func (s *Store) Get(ctx context.Context, id string) (*domain.Account, error) {
	fields, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return nil, unavailable(err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrAccountNotFound
	}
	balance, err := strconv.ParseInt(fields[fieldBalance], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: corrupted balance for %s: %v", domain.ErrStorageUnavailable, id, err)
	}
	return &domain.Account{
		ID:             id,
		Owner:          fields[fieldOwner],
		CredentialHash: fields[fieldCredentialHash],
		Balance:        balance,
	}, nil
}

func (s *Store) Create(ctx context.Context, id, owner, credentialHash string) (*domain.Account, error) {
	code, err := createScript.Run(ctx, s.client, []string{s.key(id)}, owner, credentialHash).Int64()
	if err != nil {
		return nil, unavailable(err)
	}
	if code == codeExists {
		return nil, domain.ErrAccountAlreadyExists
	}
	return domain.NewAccount(id, owner, credentialHash), nil
}

func (s *Store) AdjustBalance(ctx context.Context, id string, delta int64) (int64, error) {
	res, err := adjustScript.Run(ctx, s.client, []string{s.key(id)}, delta).Int64Slice()
	if err != nil {
		return 0, unavailable(err)
	}
	if len(res) != 2 {
		return 0, fmt.Errorf("%w: unexpected script reply %v", domain.ErrStorageUnavailable, res)
	}
	switch res[0] {
	case codeOK:
		return res[1], nil
	case codeNotFound:
		return 0, domain.ErrAccountNotFound
	case codeUnderflow:
		return res[1], domain.ErrWouldUnderflow
	case codeOverflow:
		return res[1], domain.ErrInvalidAmount
	default:
		return 0, fmt.Errorf("%w: unexpected script code %d", domain.ErrStorageUnavailable, res[0])
	}
}

func unavailable(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
}

var _ usecase.AccountStore = (*Store)(nil)
