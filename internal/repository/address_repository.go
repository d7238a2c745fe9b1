package repository

import (
	"app/internal/domain/model"
	"context"
)

// 配送先・請求先住所の永続化。
// IsOwnedByUserはチェックアウトの住所検証でも使う。
type AddressRepository interface {
	Create(ctx context.Context, address model.Address) (model.Address, error)
	ListByUserID(ctx context.Context, userID int64) ([]model.Address, error)
	FindByID(ctx context.Context, addressID int64) (model.Address, error)
	Update(ctx context.Context, address model.Address) error

	//注文が参照中の住所は消せない（DBの外部キーに弾かせる）
	Delete(ctx context.Context, addressID int64) error

	IsOwnedByUser(ctx context.Context, addressID, userID int64) (bool, error)

	//デフォルトはユーザーにつき1つ。切り替えは同一トランザクションで行う。
	SetDefault(ctx context.Context, userID, addressID int64) error
}
