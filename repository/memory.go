package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"broker-ledger/models"
)

// Memory is an in-memory Store used by tests and diskless runs. A
// transaction works on a deep copy of the state and swaps it in on commit,
// so a failed transaction leaves nothing behind, matching the rollback
// semantics of the Postgres store.
type Memory struct {
	mu       sync.Mutex
	state    *memState
	currency string
	inTx     bool
}

type posKey struct {
	account  int64
	security string
}

type memState struct {
	balances    map[int64]*models.BankBalance
	positions   map[posKey]*models.Position
	orders      map[int64]*models.Order
	nextOrderID int64
}

// NewMemory creates an empty in-memory store.
func NewMemory(currency string) *Memory {
	return &Memory{
		state: &memState{
			balances:    make(map[int64]*models.BankBalance),
			positions:   make(map[posKey]*models.Position),
			orders:      make(map[int64]*models.Order),
			nextOrderID: 1,
		},
		currency: currency,
	}
}

func (s *memState) clone() *memState {
	c := &memState{
		balances:    make(map[int64]*models.BankBalance, len(s.balances)),
		positions:   make(map[posKey]*models.Position, len(s.positions)),
		orders:      make(map[int64]*models.Order, len(s.orders)),
		nextOrderID: s.nextOrderID,
	}
	for k, v := range s.balances {
		b := *v
		c.balances[k] = &b
	}
	for k, v := range s.positions {
		p := *v
		c.positions[k] = &p
	}
	for k, v := range s.orders {
		o := *v
		c.orders[k] = &o
	}
	return c
}

// WithTransaction runs fn against a scratch copy of the state; the copy
// becomes the state only when fn succeeds.
func (m *Memory) WithTransaction(ctx context.Context, fn func(Store) error) error {
	if m.inTx {
		return fn(m)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	scratch := m.state.clone()
	tx := &Memory{state: scratch, currency: m.currency, inTx: true}
	if err := fn(tx); err != nil {
		return err
	}
	m.state = scratch
	return nil
}

// Balances returns the cash ledger store.
func (m *Memory) Balances() BalanceStore { return &memBalances{m} }

// Positions returns the position store.
func (m *Memory) Positions() PositionStore { return &memPositions{m} }

// Orders returns the order store.
func (m *Memory) Orders() OrderStore { return &memOrders{m} }

// Health always succeeds for the in-memory store.
func (m *Memory) Health(ctx context.Context) error { return nil }

// Close is a no-op for the in-memory store.
func (m *Memory) Close() {}

// lock takes the store mutex unless the caller already holds it through an
// open transaction.
func (m *Memory) lock() func() {
	if m.inTx {
		return func() {}
	}
	m.mu.Lock()
	return m.mu.Unlock
}

func (m *Memory) balance(bankAccountID int64) *models.BankBalance {
	b, ok := m.state.balances[bankAccountID]
	if !ok {
		b = models.NewBankBalance(bankAccountID, m.currency)
		m.state.balances[bankAccountID] = b
	}
	return b
}

func (m *Memory) position(brokerageAccountID int64, securityID string) *models.Position {
	k := posKey{brokerageAccountID, securityID}
	p, ok := m.state.positions[k]
	if !ok {
		p = models.NewPosition(brokerageAccountID, securityID)
		m.state.positions[k] = p
	}
	return p
}

type memBalances struct {
	m *Memory
}

func (s *memBalances) Get(ctx context.Context, bankAccountID int64) (*models.BankBalance, error) {
	defer s.m.lock()()
	b := *s.m.balance(bankAccountID)
	return &b, nil
}

func (s *memBalances) Reserve(ctx context.Context, bankAccountID int64, amount decimal.Decimal) error {
	defer s.m.lock()()
	return s.m.balance(bankAccountID).Reserve(amount)
}

func (s *memBalances) Release(ctx context.Context, bankAccountID int64, amount decimal.Decimal) error {
	defer s.m.lock()()
	return s.m.balance(bankAccountID).Release(amount)
}

func (s *memBalances) Settle(ctx context.Context, bankAccountID int64, reserved, actual decimal.Decimal) error {
	defer s.m.lock()()
	return s.m.balance(bankAccountID).Settle(reserved, actual)
}

func (s *memBalances) Credit(ctx context.Context, bankAccountID int64, amount decimal.Decimal) error {
	defer s.m.lock()()
	return s.m.balance(bankAccountID).Credit(amount)
}

func (s *memBalances) Debit(ctx context.Context, bankAccountID int64, amount decimal.Decimal) error {
	defer s.m.lock()()
	return s.m.balance(bankAccountID).Debit(amount)
}

type memPositions struct {
	m *Memory
}

func (s *memPositions) Get(ctx context.Context, brokerageAccountID int64, securityID string) (*models.Position, error) {
	defer s.m.lock()()
	if p, ok := s.m.state.positions[posKey{brokerageAccountID, securityID}]; ok {
		cp := *p
		return &cp, nil
	}
	return models.NewPosition(brokerageAccountID, securityID), nil
}

func (s *memPositions) ReserveQuantity(ctx context.Context, brokerageAccountID int64, securityID string, qty int64) error {
	defer s.m.lock()()
	return s.m.position(brokerageAccountID, securityID).ReserveQuantity(qty)
}

func (s *memPositions) ReleaseQuantity(ctx context.Context, brokerageAccountID int64, securityID string, qty int64) error {
	defer s.m.lock()()
	return s.m.position(brokerageAccountID, securityID).ReleaseQuantity(qty)
}

func (s *memPositions) ApplyBuy(ctx context.Context, brokerageAccountID int64, securityID string, qty int64, fillPrice decimal.Decimal) error {
	defer s.m.lock()()
	return s.m.position(brokerageAccountID, securityID).ApplyBuy(qty, fillPrice)
}

func (s *memPositions) ApplySell(ctx context.Context, brokerageAccountID int64, securityID string, qty int64) error {
	defer s.m.lock()()
	k := posKey{brokerageAccountID, securityID}
	p := s.m.position(brokerageAccountID, securityID)
	if err := p.ApplySell(qty); err != nil {
		return err
	}
	if p.IsEmpty() {
		delete(s.m.state.positions, k)
	}
	return nil
}

type memOrders struct {
	m *Memory
}

func (s *memOrders) Create(ctx context.Context, o *models.Order) error {
	defer s.m.lock()()
	o.ID = s.m.state.nextOrderID
	s.m.state.nextOrderID++
	cp := *o
	s.m.state.orders[o.ID] = &cp
	return nil
}

func (s *memOrders) Get(ctx context.Context, id int64) (*models.Order, error) {
	defer s.m.lock()()
	o, ok := s.m.state.orders[id]
	if !ok {
		return nil, ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *memOrders) Update(ctx context.Context, o *models.Order) error {
	defer s.m.lock()()
	if _, ok := s.m.state.orders[o.ID]; !ok {
		return ErrOrderNotFound
	}
	cp := *o
	s.m.state.orders[o.ID] = &cp
	return nil
}

func (s *memOrders) ListByClient(ctx context.Context, clientID int64, limit int) ([]models.Order, error) {
	defer s.m.lock()()
	var orders []models.Order
	for _, o := range s.m.state.orders {
		if o.ClientID == clientID {
			orders = append(orders, *o)
		}
	}
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	if limit <= 0 {
		limit = defaultListLimit
	}
	if len(orders) > limit {
		orders = orders[:limit]
	}
	return orders, nil
}
