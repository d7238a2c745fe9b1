package usecase

import (
	"context"
	"testing"

	"app/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func validAddressInput() AddressInput {
	return AddressInput{
		Name:    "Ravi Kumar",
		Line1:   "221 MG Road",
		Line2:   "Flat 4B",
		City:    "Bengaluru",
		State:   "Karnataka",
		PinCode: "560001",
		Phone:   "9876543210",
	}
}

func TestAddressUsecase_Create_FirstAddressBecomesDefault(t *testing.T) {
	ctx := context.Background()
	repoMock := new(AddressRepoMock)
	repoMock.On("ListByUserID", mock.Anything, int64(1)).Return([]model.Address{}, nil)
	repoMock.On("Create", mock.Anything, mock.MatchedBy(func(a model.Address) bool {
		return a.UserID == 1 && a.IsDefault && a.PinCode == "560001"
	})).Return(model.Address{ID: 5, UserID: 1, IsDefault: true, PinCode: "560001"}, nil)

	uc := NewAddressUsecase(repoMock)

	out, err := uc.Create(ctx, 1, validAddressInput())
	assert.NoError(t, err)
	assert.True(t, out.IsDefault)
	repoMock.AssertExpectations(t)
}

func TestAddressUsecase_Create_SecondAddressNotDefault(t *testing.T) {
	ctx := context.Background()
	repoMock := new(AddressRepoMock)
	repoMock.On("ListByUserID", mock.Anything, int64(1)).
		Return([]model.Address{{ID: 5, UserID: 1, IsDefault: true}}, nil)
	repoMock.On("Create", mock.Anything, mock.MatchedBy(func(a model.Address) bool {
		return !a.IsDefault
	})).Return(model.Address{ID: 6, UserID: 1}, nil)

	uc := NewAddressUsecase(repoMock)

	_, err := uc.Create(ctx, 1, validAddressInput())
	assert.NoError(t, err)
	repoMock.AssertExpectations(t)
}

func TestAddressUsecase_Create_TooManyAddresses(t *testing.T) {
	ctx := context.Background()
	existing := make([]model.Address, maxAddressesPerUser)
	repoMock := new(AddressRepoMock)
	repoMock.On("ListByUserID", mock.Anything, int64(1)).Return(existing, nil)

	uc := NewAddressUsecase(repoMock)

	_, err := uc.Create(ctx, 1, validAddressInput())
	assert.ErrorIs(t, err, ErrConflict)
}

func TestAddressUsecase_Create_InvalidPinCode(t *testing.T) {
	uc := NewAddressUsecase(new(AddressRepoMock))

	for _, pin := range []string{"", "12345", "0560001", "056001", "ABC123"} {
		in := validAddressInput()
		in.PinCode = pin
		_, err := uc.Create(context.Background(), 1, in)
		assert.ErrorIs(t, err, ErrValidation, "pin %q", pin)
	}
}

func TestAddressUsecase_Create_InvalidPhone(t *testing.T) {
	uc := NewAddressUsecase(new(AddressRepoMock))

	in := validAddressInput()
	in.Phone = "1234567890" // 先頭が6-9でない
	_, err := uc.Create(context.Background(), 1, in)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestAddressUsecase_Update_NotOwned(t *testing.T) {
	ctx := context.Background()
	repoMock := new(AddressRepoMock)
	repoMock.On("IsOwnedByUser", mock.Anything, int64(7), int64(1)).Return(false, nil)

	uc := NewAddressUsecase(repoMock)

	err := uc.Update(ctx, 1, 7, validAddressInput())
	assert.ErrorIs(t, err, ErrForbidden)
}
