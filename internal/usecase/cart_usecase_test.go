package usecase

import (
	"context"
	"net/http"
	"testing"

	"app/internal/domain/model"

	"github.com/stretchr/testify/assert"
)

func newCartUsecaseFixture(store *memStore) *CartUsecase {
	return NewCartUsecase(memCarts{store}, memCartItems{store}, memProducts{store})
}

func TestCartUsecase_AddToCart_FreezesVariantAndPrice(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.seedProduct(model.Product{
		ID: 12, Name: "Cotton T-Shirt", Price: 30000, Stock: 10, IsActive: true,
		Variant: "Classic Fit", Size: "M", Color: "Navy",
	}, 10)

	uc := newCartUsecaseFixture(store)

	out, err := uc.AddToCart(ctx, 1, AddCartInput{ProductID: 12, Quantity: 2})
	assert.NoError(t, err)
	if assert.Len(t, out.Items, 1) {
		it := out.Items[0]
		assert.Equal(t, "Cotton T-Shirt", it.Name)
		assert.Equal(t, "Classic Fit", it.Variant)
		assert.Equal(t, "M", it.Size)
		assert.Equal(t, "Navy", it.Color)
		assert.Equal(t, int64(30000), it.Price)
		assert.Equal(t, int64(2), it.Quantity)
	}
	assert.Equal(t, int64(60000), out.Total)

	// 商品マスタの価格とバリエーションを後から変えても明細はぶれない
	store.seedProduct(model.Product{
		ID: 12, Name: "Cotton T-Shirt", Price: 45000, Stock: 10, IsActive: true,
		Variant: "Slim Fit", Size: "L", Color: "Black",
	}, 10)

	out, err = uc.GetCart(ctx, 1)
	assert.NoError(t, err)
	if assert.Len(t, out.Items, 1) {
		assert.Equal(t, "Classic Fit", out.Items[0].Variant)
		assert.Equal(t, "M", out.Items[0].Size)
		assert.Equal(t, "Navy", out.Items[0].Color)
		assert.Equal(t, int64(30000), out.Items[0].Price)
	}
}

func TestCartUsecase_AddToCart_SameProductAccumulates(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.seedProduct(model.Product{ID: 10, Name: "Espresso Machine", Price: 100000, Stock: 5, IsActive: true}, 5)

	uc := newCartUsecaseFixture(store)

	_, err := uc.AddToCart(ctx, 1, AddCartInput{ProductID: 10, Quantity: 2})
	assert.NoError(t, err)
	out, err := uc.AddToCart(ctx, 1, AddCartInput{ProductID: 10, Quantity: 1})
	assert.NoError(t, err)

	if assert.Len(t, out.Items, 1) {
		assert.Equal(t, int64(3), out.Items[0].Quantity)
	}
}

func TestCartUsecase_AddToCart_StockExceeded(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.seedProduct(model.Product{ID: 10, Name: "Espresso Machine", Price: 100000, Stock: 2, IsActive: true}, 2)

	uc := newCartUsecaseFixture(store)

	_, err := uc.AddToCart(ctx, 1, AddCartInput{ProductID: 10, Quantity: 2})
	assert.NoError(t, err)

	// 加算後の数量が在庫を超える
	_, err = uc.AddToCart(ctx, 1, AddCartInput{ProductID: 10, Quantity: 1})
	assertHTTPStatus(t, err, http.StatusBadRequest)
}

func TestCartUsecase_AddToCart_InactiveProduct(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.seedProduct(model.Product{ID: 10, Name: "Espresso Machine", Price: 100000, Stock: 5, IsActive: false}, 5)

	uc := newCartUsecaseFixture(store)

	_, err := uc.AddToCart(ctx, 1, AddCartInput{ProductID: 10, Quantity: 1})
	assertHTTPStatus(t, err, http.StatusBadRequest)
}
