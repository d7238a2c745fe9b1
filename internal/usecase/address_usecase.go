package usecase

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

// 住所系で存在しないことを表す（Handlerが404に変換する）
var ErrNotFound = errors.New("not found")

// 1ユーザーが持てる住所の上限
const maxAddressesPerUser = 20

var (
	//インドのPINコード。6桁・先頭は1-9
	pinCodeRe = regexp.MustCompile(`^[1-9][0-9]{5}$`)
	//携帯番号。10桁・先頭は6-9
	phoneRe = regexp.MustCompile(`^[6-9][0-9]{9}$`)
)

type AddressDTO struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	Name      string `json:"name"`
	Line1     string `json:"line1"`
	Line2     string `json:"line2"`
	City      string `json:"city"`
	State     string `json:"state"`
	PinCode   string `json:"pin_code"`
	Phone     string `json:"phone"`
	IsDefault bool   `json:"is_default"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type AddressInput struct {
	Name    string `json:"name"`
	Line1   string `json:"line1"`
	Line2   string `json:"line2"`
	City    string `json:"city"`
	State   string `json:"state"`
	PinCode string `json:"pin_code"`
	Phone   string `json:"phone"`
}

// 必須項目とPIN・電話番号の形式チェック
func (in *AddressInput) validate() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Line1 = strings.TrimSpace(in.Line1)
	in.Line2 = strings.TrimSpace(in.Line2)
	in.City = strings.TrimSpace(in.City)
	in.State = strings.TrimSpace(in.State)
	in.PinCode = strings.TrimSpace(in.PinCode)
	in.Phone = strings.TrimSpace(in.Phone)

	if in.Name == "" || in.Line1 == "" || in.City == "" || in.State == "" {
		return ErrValidation
	}
	if !pinCodeRe.MatchString(in.PinCode) {
		return ErrValidation
	}
	if in.Phone != "" && !phoneRe.MatchString(in.Phone) {
		return ErrValidation
	}
	return nil
}

type AddressUsecase struct {
	addresses repo.AddressRepository
}

func NewAddressUsecase(addresses repo.AddressRepository) *AddressUsecase {
	return &AddressUsecase{addresses: addresses}
}

func (u *AddressUsecase) List(ctx context.Context, userID int64) ([]AddressDTO, error) {
	if userID <= 0 {
		return nil, ErrUnauthorized
	}

	list, err := u.addresses.ListByUserID(ctx, userID)
	if err != nil {
		return nil, ErrInternal
	}

	out := make([]AddressDTO, 0, len(list))
	for i := range list {
		out = append(out, toAddressDTO(&list[i]))
	}
	return out, nil
}

// 最初の1件は自動でデフォルトにする
func (u *AddressUsecase) Create(ctx context.Context, userID int64, in AddressInput) (AddressDTO, error) {
	if userID <= 0 {
		return AddressDTO{}, ErrUnauthorized
	}
	if err := in.validate(); err != nil {
		return AddressDTO{}, err
	}

	existing, err := u.addresses.ListByUserID(ctx, userID)
	if err != nil {
		return AddressDTO{}, ErrInternal
	}
	if len(existing) >= maxAddressesPerUser {
		return AddressDTO{}, ErrConflict
	}

	now := time.Now()
	created, err := u.addresses.Create(ctx, model.Address{
		UserID:    userID,
		Name:      in.Name,
		Line1:     in.Line1,
		Line2:     in.Line2,
		City:      in.City,
		State:     in.State,
		PinCode:   in.PinCode,
		Phone:     in.Phone,
		IsDefault: len(existing) == 0,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return AddressDTO{}, ErrInternal
	}

	return toAddressDTO(&created), nil
}

func (u *AddressUsecase) Update(ctx context.Context, userID int64, addressID int64, in AddressInput) error {
	if userID <= 0 {
		return ErrUnauthorized
	}
	if addressID <= 0 {
		return ErrValidation
	}
	if err := in.validate(); err != nil {
		return err
	}

	if err := u.mustOwn(ctx, userID, addressID); err != nil {
		return err
	}

	err := u.addresses.Update(ctx, model.Address{
		ID:        addressID,
		Name:      in.Name,
		Line1:     in.Line1,
		Line2:     in.Line2,
		City:      in.City,
		State:     in.State,
		PinCode:   in.PinCode,
		Phone:     in.Phone,
		UpdatedAt: time.Now(),
	})
	if errors.Is(err, repo.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return ErrInternal
	}
	return nil
}

func (u *AddressUsecase) Delete(ctx context.Context, userID int64, addressID int64) error {
	if userID <= 0 {
		return ErrUnauthorized
	}
	if addressID <= 0 {
		return ErrValidation
	}

	if err := u.mustOwn(ctx, userID, addressID); err != nil {
		return err
	}

	if err := u.addresses.Delete(ctx, addressID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		//注文が参照中（外部キー違反）などで削除できない
		return ErrConflict
	}
	return nil
}

func (u *AddressUsecase) SetDefault(ctx context.Context, userID int64, addressID int64) error {
	if userID <= 0 {
		return ErrUnauthorized
	}
	if addressID <= 0 {
		return ErrValidation
	}

	if err := u.mustOwn(ctx, userID, addressID); err != nil {
		return err
	}

	if err := u.addresses.SetDefault(ctx, userID, addressID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotFound
		}
		return ErrInternal
	}
	return nil
}

// 所有チェック。他人の住所は403。
func (u *AddressUsecase) mustOwn(ctx context.Context, userID, addressID int64) error {
	owned, err := u.addresses.IsOwnedByUser(ctx, addressID, userID)
	if err != nil {
		return ErrInternal
	}
	if !owned {
		return ErrForbidden
	}
	return nil
}

func toAddressDTO(a *model.Address) AddressDTO {
	return AddressDTO{
		ID:        a.ID,
		UserID:    a.UserID,
		Name:      a.Name,
		Line1:     a.Line1,
		Line2:     a.Line2,
		City:      a.City,
		State:     a.State,
		PinCode:   a.PinCode,
		Phone:     a.Phone,
		IsDefault: a.IsDefault,
		CreatedAt: a.CreatedAt.Format(time.RFC3339),
		UpdatedAt: a.UpdatedAt.Format(time.RFC3339),
	}
}
