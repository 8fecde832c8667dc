package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/JoeShih716/go-credit-ledger/internal/app/core/domain"
	"github.com/JoeShih716/go-credit-ledger/internal/app/core/usecase"
)

type accountOwner struct {
	Name string `bson:"name"`
	CPF  string `bson:"cpf"`
}

// userDocument users collection 的文件格式，_id 即帳戶 CPF
type userDocument struct {
	ID             string       `bson:"_id"`
	Owner          accountOwner `bson:"account_owner"`
	CredentialHash string       `bson:"credential_hash"`
	Credit         int64        `bson:"credit"`
}

func (d *userDocument) toDomain() *domain.Account {
	return &domain.Account{
		ID:             d.ID,
		Owner:          d.Owner.Name,
		CredentialHash: d.CredentialHash,
		Balance:        d.Credit,
	}
}

// Store 以 MongoDB 實作 AccountStore
// 餘額異動使用帶條件的 findOneAndUpdate，守衛與 $inc 在同一份文件上原子完成
type Store struct {
	coll *mongo.Collection
}

func NewStore(coll *mongo.Collection) *Store {
	return &Store{coll: coll}
}

func (s *Store) Get(ctx context.Context, id string) (*domain.Account, error) {
	var doc userDocument
	if err := s.coll.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&doc); err != nil {
		return nil, translate(err)
	}
	return doc.toDomain(), nil
}

func (s *Store) Create(ctx context.Context, id, owner, credentialHash string) (*domain.Account, error) {
	doc := userDocument{
		ID:             id,
		Owner:          accountOwner{Name: owner, CPF: id},
		CredentialHash: credentialHash,
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return nil, translate(err)
	}
	return doc.toDomain(), nil
}

// AdjustBalance 條件 credit >= -delta 不成立時文件不會被更新
// 此時再讀一次以區分帳戶不存在與餘額不足
func (s *Store) AdjustBalance(ctx context.Context, id string, delta int64) (int64, error) {
	filter := bson.D{{Key: "_id", Value: id}}
	if delta < 0 {
		filter = append(filter, bson.E{Key: "credit", Value: bson.D{{Key: "$gte", Value: -delta}}})
	}
	update := bson.D{{Key: "$inc", Value: bson.D{{Key: "credit", Value: delta}}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc userDocument
	err := s.coll.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	if err == nil {
		return doc.Credit, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return 0, translate(err)
	}

	current, getErr := s.Get(ctx, id)
	if getErr != nil {
		return 0, getErr
	}
	return current.Balance, domain.ErrWouldUnderflow
}

func translate(err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return domain.ErrAccountNotFound
	case mongo.IsDuplicateKeyError(err):
		return domain.ErrAccountAlreadyExists
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
}

var _ usecase.AccountStore = (*Store)(nil)
