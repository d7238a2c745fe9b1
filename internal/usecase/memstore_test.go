package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"app/internal/domain/model"
	"app/internal/gateway"
	repo "app/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// =====================
// インメモリストア
// =====================
// GORM実装と同じ条件付きUPDATEの意味論を再現した記憶上のストア。
// 支払い遷移の「勝ち負け」をそのままテストできる。

type memStore struct {
	mu     sync.Mutex
	nextID int64

	orders      map[int64]*model.Order
	items       map[int64][]model.OrderItem
	events      map[string]model.WebhookEvent
	stock       map[int64]int64
	products    map[int64]model.Product
	carts       map[int64]*model.Cart
	cartItems   map[int64][]model.CartItem
	adjustments []model.InventoryAdjustment
}

func newMemStore() *memStore {
	return &memStore{
		orders:    map[int64]*model.Order{},
		items:     map[int64][]model.OrderItem{},
		events:    map[string]model.WebhookEvent{},
		stock:     map[int64]int64{},
		products:  map[int64]model.Product{},
		carts:     map[int64]*model.Cart{},
		cartItems: map[int64][]model.CartItem{},
	}
}

func (s *memStore) seedOrder(o model.Order) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	o.ID = s.nextID
	s.orders[o.ID] = &o
	return o.ID
}

func (s *memStore) seedOrderItems(orderID int64, items ...model.OrderItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range items {
		items[i].OrderID = orderID
	}
	s.items[orderID] = append(s.items[orderID], items...)
}

func (s *memStore) seedProduct(p model.Product, stock int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[p.ID] = p
	s.stock[p.ID] = stock
}

func (s *memStore) seedActiveCart(userID int64, items ...model.CartItem) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	cartID := s.nextID
	s.carts[cartID] = &model.Cart{ID: cartID, UserID: userID, Status: model.CartStatusActive}
	for i := range items {
		items[i].CartID = cartID
	}
	s.cartItems[cartID] = items
	return cartID
}

func (s *memStore) order(t *testing.T, id int64) model.Order {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		t.Fatalf("order %d not in store", id)
	}
	return *o
}

// ---- OrderRepository ----

type memOrders struct{ s *memStore }

func (m memOrders) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	o, ok := m.s.orders[orderID]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return *o, nil
}

func (m memOrders) FindByRazorpayOrderID(ctx context.Context, rzpOrderID string) (model.Order, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, o := range m.s.orders {
		if o.RazorpayOrderID == rzpOrderID && rzpOrderID != "" {
			return *o, nil
		}
	}
	return model.Order{}, repo.ErrNotFound
}

func (m memOrders) ListByUserID(ctx context.Context, userID int64, page int, limit int) ([]model.Order, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []model.Order
	for _, o := range m.s.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, int64(len(out)), nil
}

func (m memOrders) Create(ctx context.Context, order model.Order) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, o := range m.s.orders {
		if o.UserID == order.UserID && o.IdempotencyKey == order.IdempotencyKey {
			return 0, errors.New("duplicate idempotency key")
		}
	}
	m.s.nextID++
	order.ID = m.s.nextID
	m.s.orders[order.ID] = &order
	return order.ID, nil
}

func (m memOrders) FindByIdempotencyKey(ctx context.Context, userID int64, key string) (model.Order, bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, o := range m.s.orders {
		if o.UserID == userID && o.IdempotencyKey == key {
			return *o, true, nil
		}
	}
	return model.Order{}, false, nil
}

func (m memOrders) SetRazorpayOrderID(ctx context.Context, orderID int64, rzpOrderID string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	o, ok := m.s.orders[orderID]
	if !ok || o.RazorpayOrderID != "" {
		return false, nil
	}
	o.RazorpayOrderID = rzpOrderID
	return true, nil
}

func (m memOrders) ClaimPayment(ctx context.Context, orderID int64, paymentID string, signature string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	o, ok := m.s.orders[orderID]
	if !ok || o.RazorpayPaymentID != "" || o.RazorpaySignature != "" {
		return false, nil
	}
	o.RazorpayPaymentID = paymentID
	o.RazorpaySignature = signature
	return true, nil
}

func (m memOrders) AttachPaymentSignature(ctx context.Context, orderID int64, paymentID string, signature string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	o, ok := m.s.orders[orderID]
	if !ok || o.RazorpayPaymentID != paymentID || o.RazorpaySignature != "" {
		return false, nil
	}
	o.RazorpaySignature = signature
	return true, nil
}

func (m memOrders) MarkPaymentProcessing(ctx context.Context, orderID int64, paymentID string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	o, ok := m.s.orders[orderID]
	if !ok || o.PaymentStatus != model.PaymentStatusPending {
		return false, nil
	}
	o.PaymentStatus = model.PaymentStatusProcessing
	if paymentID != "" && o.RazorpayPaymentID == "" {
		o.RazorpayPaymentID = paymentID
	}
	return true, nil
}

func (m memOrders) MarkPaid(ctx context.Context, orderID int64) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	o, ok := m.s.orders[orderID]
	if !ok {
		return false, nil
	}
	switch o.PaymentStatus {
	case model.PaymentStatusPending, model.PaymentStatusProcessing, model.PaymentStatusFailed:
		o.PaymentStatus = model.PaymentStatusPaid
		if o.Status == model.OrderStatusPending {
			o.Status = model.OrderStatusConfirmed
		}
		return true, nil
	}
	return false, nil
}

func (m memOrders) MarkPaymentFailed(ctx context.Context, orderID int64) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	o, ok := m.s.orders[orderID]
	if !ok {
		return false, nil
	}
	switch o.PaymentStatus {
	case model.PaymentStatusPending, model.PaymentStatusProcessing:
		o.PaymentStatus = model.PaymentStatusFailed
		return true, nil
	}
	return false, nil
}

func (m memOrders) MarkRefunded(ctx context.Context, orderID int64, status model.PaymentStatus) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	o, ok := m.s.orders[orderID]
	if !ok || o.PaymentStatus != model.PaymentStatusPaid {
		return false, nil
	}
	o.PaymentStatus = status
	return true, nil
}

func (m memOrders) MarkStockCommitted(ctx context.Context, orderID int64) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	o, ok := m.s.orders[orderID]
	if !ok || o.StockCommitted {
		return false, nil
	}
	o.StockCommitted = true
	return true, nil
}

func (m memOrders) UpdateStatusIf(ctx context.Context, orderID int64, from []model.OrderStatus, to model.OrderStatus) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	o, ok := m.s.orders[orderID]
	if !ok {
		return false, nil
	}
	for _, f := range from {
		if o.Status == f {
			o.Status = to
			return true, nil
		}
	}
	return false, nil
}

func (m memOrders) UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	o, ok := m.s.orders[orderID]
	if !ok {
		return repo.ErrNotFound
	}
	o.Status = status
	return nil
}

func (m memOrders) SetReturnReason(ctx context.Context, orderID int64, reason string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	o, ok := m.s.orders[orderID]
	if !ok {
		return repo.ErrNotFound
	}
	o.ReturnReason = reason
	return nil
}

func (m memOrders) ListAdmin(ctx context.Context, f repo.AdminOrderListFilter) ([]model.Order, int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []model.Order
	for _, o := range m.s.orders {
		if f.Status != "" && string(o.Status) != f.Status {
			continue
		}
		if f.PaymentStatus != "" && string(o.PaymentStatus) != f.PaymentStatus {
			continue
		}
		if f.UserID != nil && o.UserID != *f.UserID {
			continue
		}
		out = append(out, *o)
	}
	return out, int64(len(out)), nil
}

// ---- OrderItemRepository ----

type memOrderItems struct{ s *memStore }

func (m memOrderItems) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for i := range items {
		items[i].OrderID = orderID
	}
	m.s.items[orderID] = append(m.s.items[orderID], items...)
	return nil
}

func (m memOrderItems) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return append([]model.OrderItem{}, m.s.items[orderID]...), nil
}

// ---- WebhookEventRepository ----

type memEvents struct{ s *memStore }

func (m memEvents) Exists(ctx context.Context, eventID string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	_, ok := m.s.events[eventID]
	return ok, nil
}

func (m memEvents) InsertIfAbsent(ctx context.Context, ev model.WebhookEvent) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if _, ok := m.s.events[ev.EventID]; ok {
		return false, nil
	}
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	m.s.events[ev.EventID] = ev
	return true, nil
}

func (m memEvents) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var n int64
	for id, ev := range m.s.events {
		if ev.CreatedAt.Before(cutoff) {
			delete(m.s.events, id)
			n++
		}
	}
	return n, nil
}

// ---- InventoryRepository ----

type memInventory struct{ s *memStore }

func (m memInventory) SetStock(ctx context.Context, productID int64, newStock int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.stock[productID] = newStock
	return nil
}

func (m memInventory) DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.stock[productID] < qty {
		return false, nil
	}
	m.s.stock[productID] -= qty
	return true, nil
}

func (m memInventory) IncreaseStock(ctx context.Context, productID int64, qty int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.stock[productID] += qty
	return nil
}

func (m memInventory) CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	m.s.adjustments = append(m.s.adjustments, adjustment)
	return nil
}

func (m memInventory) SetStockWithAdjustment(ctx context.Context, adminUserID int64, productID int64, newStock int64, reason string) error {
	panic("not used in these tests")
}

// ---- CartRepository / CartItemRepository ----

type memCarts struct{ s *memStore }

func (m memCarts) GetOrCreateActiveByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, c := range m.s.carts {
		if c.UserID == userID && c.Status == model.CartStatusActive {
			return *c, nil
		}
	}
	m.s.nextID++
	c := &model.Cart{ID: m.s.nextID, UserID: userID, Status: model.CartStatusActive}
	m.s.carts[c.ID] = c
	return *c, nil
}

func (m memCarts) FindActiveByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, c := range m.s.carts {
		if c.UserID == userID && c.Status == model.CartStatusActive {
			return *c, nil
		}
	}
	return model.Cart{}, repo.ErrNotFound
}

func (m memCarts) UpdateStatus(ctx context.Context, cartID int64, status model.CartStatus) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.carts[cartID]
	if !ok {
		return repo.ErrNotFound
	}
	c.Status = status
	if status == model.CartStatusCheckedOut {
		now := time.Now()
		c.CheckedOutAt = &now
	}
	return nil
}

func (m memCarts) Clear(ctx context.Context, cartID int64) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	delete(m.s.cartItems, cartID)
	return nil
}

type memCartItems struct{ s *memStore }

func (m memCartItems) ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return append([]model.CartItem{}, m.s.cartItems[cartID]...), nil
}

func (m memCartItems) UpsertByCartAndProduct(ctx context.Context, cartID int64, addQty int64, p model.Product) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	items := m.s.cartItems[cartID]
	for i := range items {
		if items[i].ProductID == p.ID {
			items[i].Quantity += addQty
			return nil
		}
	}
	m.s.nextID++
	m.s.cartItems[cartID] = append(items, model.CartItem{
		ID:                m.s.nextID,
		CartID:            cartID,
		ProductID:         p.ID,
		Quantity:          addQty,
		UnitPriceSnapshot: p.Price,
		VariantSnapshot:   p.Variant,
		SizeSnapshot:      p.Size,
		ColorSnapshot:     p.Color,
	})
	return nil
}

func (m memCartItems) UpdateQuantity(ctx context.Context, cartItemID int64, qty int64) error {
	panic("not used in these tests")
}

func (m memCartItems) DeleteByID(ctx context.Context, cartItemID int64) error {
	panic("not used in these tests")
}

func (m memCartItems) FindByID(ctx context.Context, cartItemID int64) (model.CartItem, error) {
	panic("not used in these tests")
}

func (m memCartItems) IsOwnedByUser(ctx context.Context, cartItemID int64, userID int64) (bool, error) {
	panic("not used in these tests")
}

// ---- ProductRepository ----

type memProducts struct{ s *memStore }

func (m memProducts) ListPublic(ctx context.Context, q repo.ProductListQuery) ([]model.Product, int64, error) {
	panic("not used in these tests")
}

func (m memProducts) FindByID(ctx context.Context, id int64) (model.Product, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	p, ok := m.s.products[id]
	if !ok {
		return model.Product{}, repo.ErrNotFound
	}
	return p, nil
}

func (m memProducts) Create(ctx context.Context, p model.Product) (model.Product, error) {
	panic("not used in these tests")
}

func (m memProducts) Update(ctx context.Context, p model.Product) error {
	panic("not used in these tests")
}

func (m memProducts) SoftDelete(ctx context.Context, id int64) error {
	panic("not used in these tests")
}

// ---- TransactionManager ----

type memTxRepos struct{ s *memStore }

func (r memTxRepos) Orders() repo.OrderRepository             { return memOrders{r.s} }
func (r memTxRepos) OrderItems() repo.OrderItemRepository     { return memOrderItems{r.s} }
func (r memTxRepos) Carts() repo.CartRepository               { return memCarts{r.s} }
func (r memTxRepos) CartItems() repo.CartItemRepository       { return memCartItems{r.s} }
func (r memTxRepos) Inventory() repo.InventoryRepository      { return memInventory{r.s} }
func (r memTxRepos) Products() repo.ProductRepository         { return memProducts{r.s} }
func (r memTxRepos) WebhookEvents() repo.WebhookEventRepository { return memEvents{r.s} }

type memTxManager struct{ s *memStore }

func (m memTxManager) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return fn(memTxRepos{m.s})
}

// =====================
// ゲートウェイと周辺リポジトリのモック
// =====================

type GatewayMock struct{ mock.Mock }

func (m *GatewayMock) CreateOrder(ctx context.Context, amount int64, currency string, receipt string) (gateway.CreatedOrder, error) {
	args := m.Called(ctx, amount, currency, receipt)
	co, _ := args.Get(0).(gateway.CreatedOrder)
	return co, args.Error(1)
}

func (m *GatewayMock) Refund(ctx context.Context, paymentID string, amount int64) (gateway.RefundResult, error) {
	args := m.Called(ctx, paymentID, amount)
	res, _ := args.Get(0).(gateway.RefundResult)
	return res, args.Error(1)
}

func (m *GatewayMock) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	args := m.Called(orderID, paymentID, signature)
	return args.Bool(0)
}

func (m *GatewayMock) VerifyWebhookSignature(body []byte, signature string) bool {
	args := m.Called(body, signature)
	return args.Bool(0)
}

func (m *GatewayMock) KeyID() string {
	return "rzp_test_key"
}

type AddressRepoMock struct{ mock.Mock }

func (m *AddressRepoMock) Create(ctx context.Context, address model.Address) (model.Address, error) {
	args := m.Called(ctx, address)
	a, _ := args.Get(0).(model.Address)
	return a, args.Error(1)
}

func (m *AddressRepoMock) ListByUserID(ctx context.Context, userID int64) ([]model.Address, error) {
	args := m.Called(ctx, userID)
	list, _ := args.Get(0).([]model.Address)
	return list, args.Error(1)
}

func (m *AddressRepoMock) FindByID(ctx context.Context, addressID int64) (model.Address, error) {
	panic("not used in these tests")
}

func (m *AddressRepoMock) Update(ctx context.Context, address model.Address) error {
	panic("not used in these tests")
}

func (m *AddressRepoMock) Delete(ctx context.Context, addressID int64) error {
	panic("not used in these tests")
}

func (m *AddressRepoMock) IsOwnedByUser(ctx context.Context, addressID, userID int64) (bool, error) {
	args := m.Called(ctx, addressID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *AddressRepoMock) SetDefault(ctx context.Context, userID, addressID int64) error {
	panic("not used in these tests")
}

type UserRepoMock struct{ mock.Mock }

func (m *UserRepoMock) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *UserRepoMock) FindByID(ctx context.Context, userID int64) (*model.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *UserRepoMock) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	args := m.Called(ctx, email)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *UserRepoMock) Update(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

// =====================
// ヘルパー
// =====================

func assertHTTPStatus(t *testing.T, err error, want int) {
	t.Helper()
	he, ok := AsHTTPError(err)
	if assert.True(t, ok, "expected HTTPError, got %v", err) {
		assert.Equal(t, want, he.Status)
	}
}
