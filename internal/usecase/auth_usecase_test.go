package usecase

import (
	"context"
	"net/http"
	"testing"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"
)

func TestAuthUsecase_Register_InvalidInput(t *testing.T) {
	uc := NewAuthUsecase(new(UserRepoMock), "secret")

	_, err := uc.Register(context.Background(), RegisterInput{Email: "not-an-email", Password: "password123"})
	assertHTTPStatus(t, err, http.StatusBadRequest)

	_, err = uc.Register(context.Background(), RegisterInput{Email: "taro@example.com", Password: "short"})
	assertHTTPStatus(t, err, http.StatusBadRequest)
}

func TestAuthUsecase_Register_DuplicateEmail(t *testing.T) {
	users := new(UserRepoMock)
	users.On("FindByEmail", mock.Anything, "taro@example.com").
		Return(&model.User{ID: 1, Email: "taro@example.com"}, nil)

	uc := NewAuthUsecase(users, "secret")

	_, err := uc.Register(context.Background(), RegisterInput{Email: "Taro@Example.com", Password: "password123"})
	assertHTTPStatus(t, err, http.StatusConflict)
}

func TestAuthUsecase_Register_Success(t *testing.T) {
	users := new(UserRepoMock)
	users.On("FindByEmail", mock.Anything, "taro@example.com").Return(nil, repo.ErrNotFound)
	users.On("Create", mock.Anything, mock.MatchedBy(func(u *model.User) bool {
		return u.Email == "taro@example.com" && u.Role == model.RoleUser && u.PasswordHash != "password123"
	})).Return(nil)

	uc := NewAuthUsecase(users, "secret")

	out, err := uc.Register(context.Background(), RegisterInput{
		Email:    "Taro@Example.com",
		Password: "password123",
		Name:     "Taro",
	})
	assert.NoError(t, err)
	assert.NotEmpty(t, out.AccessToken)
	assert.Equal(t, "taro@example.com", out.Email)
	assert.Equal(t, string(model.RoleUser), out.Role)

	users.AssertExpectations(t)
}

func TestAuthUsecase_Login_WrongPassword(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	users := new(UserRepoMock)
	users.On("FindByEmail", mock.Anything, "taro@example.com").
		Return(&model.User{ID: 1, Email: "taro@example.com", PasswordHash: string(hash), IsActive: true}, nil)

	uc := NewAuthUsecase(users, "secret")

	_, err := uc.Login(context.Background(), LoginInput{Email: "taro@example.com", Password: "wrong-password"})
	assertHTTPStatus(t, err, http.StatusUnauthorized)
}

func TestAuthUsecase_Login_UnknownUserSameError(t *testing.T) {
	users := new(UserRepoMock)
	users.On("FindByEmail", mock.Anything, "nobody@example.com").Return(nil, repo.ErrNotFound)

	uc := NewAuthUsecase(users, "secret")

	//存在しないユーザーでも同じ401
	_, err := uc.Login(context.Background(), LoginInput{Email: "nobody@example.com", Password: "password123"})
	assertHTTPStatus(t, err, http.StatusUnauthorized)
}

func TestAuthUsecase_Login_Success(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	users := new(UserRepoMock)
	users.On("FindByEmail", mock.Anything, "taro@example.com").
		Return(&model.User{ID: 1, Email: "taro@example.com", PasswordHash: string(hash), Role: model.RoleUser, IsActive: true}, nil)
	users.On("Update", mock.Anything, mock.Anything).Return(nil)

	uc := NewAuthUsecase(users, "secret")

	out, err := uc.Login(context.Background(), LoginInput{Email: "taro@example.com", Password: "password123"})
	assert.NoError(t, err)
	assert.NotEmpty(t, out.AccessToken)
	assert.Equal(t, int64(1), out.UserID)
}

func TestAuthUsecase_Login_InactiveUser(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	users := new(UserRepoMock)
	users.On("FindByEmail", mock.Anything, "taro@example.com").
		Return(&model.User{ID: 1, Email: "taro@example.com", PasswordHash: string(hash), IsActive: false}, nil)

	uc := NewAuthUsecase(users, "secret")

	_, err := uc.Login(context.Background(), LoginInput{Email: "taro@example.com", Password: "password123"})
	assertHTTPStatus(t, err, http.StatusUnauthorized)
}
