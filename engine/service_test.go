package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"

	"broker-ledger/idgen"
	"broker-ledger/models"
	"broker-ledger/observability"
	"broker-ledger/repository"
	"broker-ledger/services"
)

var testTime = time.Date(2025, 6, 2, 10, 30, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// newTestService wires the engine against the in-memory store with a 1%
// brokerage / 16% tax-on-fee schedule and a fixed clock.
func newTestService(t *testing.T) (*Service, *repository.Memory, *services.StaticQuoteProvider) {
	t.Helper()

	store := repository.NewMemory("USD")
	fees := services.NewConfigFeeProvider(models.FeeSchedule{
		BrokerageRate: dec("0.01"),
		ExchangeRate:  dec("0"),
		CustodyRate:   dec("0"),
		TaxRate:       dec("0.16"),
		Currency:      "USD",
	})
	quotes := services.NewStaticQuoteProvider()

	ids, err := idgen.New(1)
	if err != nil {
		t.Fatalf("idgen.New() error = %v", err)
	}

	svc := New(store, fees, quotes, ids, func() time.Time { return testTime })
	return svc, store, quotes
}

func limitBuy(qty int64, price string) models.OrderRequest {
	limit := dec(price)
	return models.OrderRequest{
		ClientID:           1,
		BrokerageAccountID: 10,
		BankAccountID:      20,
		SecurityID:         "ACME",
		Type:               models.OrderTypeLimit,
		Quantity:           qty,
		LimitPrice:         &limit,
	}
}

func TestSubmitBuy_HappyPath(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	if err := svc.Deposit(ctx, 20, dec("10000.00")); err != nil {
		t.Fatalf("Deposit() error = %v", err)
	}

	order, err := svc.SubmitBuy(ctx, limitBuy(100, "50.00"))
	if err != nil {
		t.Fatalf("SubmitBuy() error = %v", err)
	}

	if order.State != models.OrderStatePending {
		t.Errorf("State = %s, want pending", order.State)
	}
	if order.ID == 0 {
		t.Error("order id not assigned")
	}
	if !strings.HasPrefix(order.OrderNumber, "ORD-") {
		t.Errorf("OrderNumber = %q, want ORD- prefix", order.OrderNumber)
	}
	// gross 5000.00 + commission 58.00 (base 50.00, tax 8.00)
	if !order.ReservedTotal.Equal(dec("5058.00")) {
		t.Errorf("ReservedTotal = %s, want 5058.00", order.ReservedTotal)
	}
	if !order.Commission.Total.Equal(dec("58.00")) {
		t.Errorf("Commission.Total = %s, want 58.00", order.Commission.Total)
	}
	if !order.CreatedAt.Equal(testTime) {
		t.Errorf("CreatedAt = %v, want injected clock time %v", order.CreatedAt, testTime)
	}

	b, _ := svc.GetBalance(ctx, 20)
	if !b.Available.Equal(dec("4942.00")) || !b.Blocked.Equal(dec("5058.00")) {
		t.Errorf("balance = available %s blocked %s, want 4942.00 / 5058.00", b.Available, b.Blocked)
	}
}

func TestExecute_BuyHappyPath(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	svc.Deposit(ctx, 20, dec("10000.00"))
	order, err := svc.SubmitBuy(ctx, limitBuy(100, "50.00"))
	if err != nil {
		t.Fatalf("SubmitBuy() error = %v", err)
	}

	if err := svc.Execute(ctx, order.ID, dec("50.00")); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	b, _ := svc.GetBalance(ctx, 20)
	if !b.Available.Equal(dec("4942.00")) || !b.Blocked.IsZero() {
		t.Errorf("balance = available %s blocked %s, want 4942.00 / 0", b.Available, b.Blocked)
	}

	p, _ := svc.GetPosition(ctx, 10, "ACME")
	if p.QtyTotal != 100 || p.QtyAvailable != 100 || p.QtyBlocked != 0 {
		t.Errorf("position = total %d available %d blocked %d, want 100 / 100 / 0",
			p.QtyTotal, p.QtyAvailable, p.QtyBlocked)
	}
	if !p.AvgCost.Equal(dec("50.00")) {
		t.Errorf("AvgCost = %s, want 50.00", p.AvgCost)
	}

	got, _ := svc.GetOrder(ctx, order.ID)
	if got.State != models.OrderStateExecuted {
		t.Errorf("State = %s, want executed", got.State)
	}
	if got.FilledQuantity != 100 {
		t.Errorf("FilledQuantity = %d, want 100", got.FilledQuantity)
	}
	if got.AvgFillPrice == nil || !got.AvgFillPrice.Equal(dec("50.00")) {
		t.Errorf("AvgFillPrice = %v, want 50.00", got.AvgFillPrice)
	}
	if got.ExecutedAt == nil || !got.ExecutedAt.Equal(testTime) {
		t.Errorf("ExecutedAt = %v, want %v", got.ExecutedAt, testTime)
	}
}

func TestSubmitBuy_InsufficientFundsParksOrder(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	svc.Deposit(ctx, 20, dec("100.00"))

	order, err := svc.SubmitBuy(ctx, limitBuy(100, "50.00"))
	if err != nil {
		t.Fatalf("SubmitBuy() error = %v", err)
	}
	if order.State != models.OrderStateAwaitingFunds {
		t.Errorf("State = %s, want awaiting_funds", order.State)
	}
	if !order.ReservedTotal.IsZero() {
		t.Errorf("ReservedTotal = %s, want 0 (no reservation held)", order.ReservedTotal)
	}

	b, _ := svc.GetBalance(ctx, 20)
	if !b.Available.Equal(dec("100.00")) || !b.Blocked.IsZero() {
		t.Errorf("balance mutated: available %s blocked %s, want 100.00 / 0", b.Available, b.Blocked)
	}
}

func TestExecute_AwaitingFundsNotExecutable(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	order, err := svc.SubmitBuy(ctx, limitBuy(100, "50.00"))
	if err != nil {
		t.Fatalf("SubmitBuy() error = %v", err)
	}
	if order.State != models.OrderStateAwaitingFunds {
		t.Fatalf("State = %s, want awaiting_funds", order.State)
	}

	err = svc.Execute(ctx, order.ID, dec("50.00"))
	var transition *models.InvalidStateTransitionError
	if !errors.As(err, &transition) {
		t.Fatalf("Execute() error = %v, want *InvalidStateTransitionError", err)
	}
}

func TestExecute_SettleShortfallLeavesOrderPending(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	svc.Deposit(ctx, 20, dec("10000.00"))
	order, _ := svc.SubmitBuy(ctx, limitBuy(100, "50.00"))

	// fill above the limit estimate: actual 5159.16 exceeds the 5058.00
	// reservation, so the settlement must abort in full
	err := svc.Execute(ctx, order.ID, dec("51.00"))
	var insufficient *models.InsufficientFundsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("Execute() error = %v, want *InsufficientFundsError", err)
	}

	got, _ := svc.GetOrder(ctx, order.ID)
	if got.State != models.OrderStatePending {
		t.Errorf("State = %s, want pending after aborted settlement", got.State)
	}
	b, _ := svc.GetBalance(ctx, 20)
	if !b.Available.Equal(dec("4942.00")) || !b.Blocked.Equal(dec("5058.00")) {
		t.Errorf("balance mutated: available %s blocked %s, want 4942.00 / 5058.00", b.Available, b.Blocked)
	}
	p, _ := svc.GetPosition(ctx, 10, "ACME")
	if !p.IsEmpty() {
		t.Errorf("position mutated by aborted settlement: total=%d", p.QtyTotal)
	}
}

func TestExecute_SettleSurplusReturnsToAvailable(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	svc.Deposit(ctx, 20, dec("10000.00"))
	order, _ := svc.SubmitBuy(ctx, limitBuy(100, "50.00"))

	// fill below the limit: actual 4956.84 (gross 4900 + commission 56.84),
	// the 101.16 difference returns to available
	if err := svc.Execute(ctx, order.ID, dec("49.00")); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	b, _ := svc.GetBalance(ctx, 20)
	if !b.Available.Equal(dec("5043.16")) || !b.Blocked.IsZero() {
		t.Errorf("balance = available %s blocked %s, want 5043.16 / 0", b.Available, b.Blocked)
	}
}

func seedPosition(t *testing.T, store *repository.Memory, qty int64, cost string) {
	t.Helper()
	if err := store.Positions().ApplyBuy(context.Background(), 10, "ACME", qty, dec(cost)); err != nil {
		t.Fatalf("seed position: %v", err)
	}
}

func limitSell(qty int64, price string) models.OrderRequest {
	return limitBuy(qty, price)
}

func TestSubmitSell_HappyPath(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	seedPosition(t, store, 100, "50.00")

	order, err := svc.SubmitSell(ctx, limitSell(40, "60.00"))
	if err != nil {
		t.Fatalf("SubmitSell() error = %v", err)
	}
	if order.State != models.OrderStatePending {
		t.Errorf("State = %s, want pending", order.State)
	}

	p, _ := svc.GetPosition(ctx, 10, "ACME")
	if p.QtyAvailable != 60 || p.QtyBlocked != 40 {
		t.Errorf("position = available %d blocked %d, want 60 / 40", p.QtyAvailable, p.QtyBlocked)
	}

	if err := svc.Execute(ctx, order.ID, dec("60.00")); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	// gross 2400.00 minus commission 27.84 (base 24.00, tax 3.84)
	b, _ := svc.GetBalance(ctx, 20)
	if !b.Available.Equal(dec("2372.16")) {
		t.Errorf("Available = %s, want 2372.16", b.Available)
	}

	p, _ = svc.GetPosition(ctx, 10, "ACME")
	if p.QtyTotal != 60 || p.QtyAvailable != 60 || p.QtyBlocked != 0 {
		t.Errorf("position = total %d available %d blocked %d, want 60 / 60 / 0",
			p.QtyTotal, p.QtyAvailable, p.QtyBlocked)
	}
	if !p.AvgCost.Equal(dec("50.00")) {
		t.Errorf("AvgCost = %s, want 50.00 (unchanged by sell)", p.AvgCost)
	}
}

func TestSubmitSell_Boundary(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	seedPosition(t, store, 100, "50.00")

	// exactly the available quantity succeeds
	if _, err := svc.SubmitSell(ctx, limitSell(100, "60.00")); err != nil {
		t.Fatalf("SubmitSell(100) error = %v", err)
	}
	p, _ := svc.GetPosition(ctx, 10, "ACME")
	if p.QtyAvailable != 0 {
		t.Errorf("QtyAvailable = %d, want 0", p.QtyAvailable)
	}

	// one more unit is a hard rejection with no order created
	_, err := svc.SubmitSell(ctx, limitSell(1, "60.00"))
	var insufficient *models.InsufficientPositionError
	if !errors.As(err, &insufficient) {
		t.Fatalf("SubmitSell(1) error = %v, want *InsufficientPositionError", err)
	}
	if insufficient.Requested != 1 || insufficient.Available != 0 {
		t.Errorf("error context = requested %d available %d, want 1 / 0",
			insufficient.Requested, insufficient.Available)
	}

	orders, _ := svc.ListOrders(ctx, 1, 10)
	if len(orders) != 1 {
		t.Errorf("rejected sell created an order: %d orders, want 1", len(orders))
	}
}

func TestCancel_BuyReleasesReservation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	svc.Deposit(ctx, 20, dec("10000.00"))
	order, _ := svc.SubmitBuy(ctx, limitBuy(100, "50.00"))

	if err := svc.Cancel(ctx, order.ID, "client request"); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	b, _ := svc.GetBalance(ctx, 20)
	if !b.Available.Equal(dec("10000.00")) || !b.Blocked.IsZero() {
		t.Errorf("balance = available %s blocked %s, want 10000.00 / 0", b.Available, b.Blocked)
	}

	got, _ := svc.GetOrder(ctx, order.ID)
	if got.State != models.OrderStateCancelled {
		t.Errorf("State = %s, want cancelled", got.State)
	}
	if !strings.Contains(got.Notes, "client request") {
		t.Errorf("Notes = %q, want cancellation reason recorded", got.Notes)
	}
}

func TestCancel_SellReleasesQuantity(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()
	seedPosition(t, store, 100, "50.00")

	order, _ := svc.SubmitSell(ctx, limitSell(40, "60.00"))
	if err := svc.Cancel(ctx, order.ID, "client request"); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	p, _ := svc.GetPosition(ctx, 10, "ACME")
	if p.QtyAvailable != 100 || p.QtyBlocked != 0 {
		t.Errorf("position = available %d blocked %d, want 100 / 0", p.QtyAvailable, p.QtyBlocked)
	}
}

func TestCancel_AwaitingFundsHoldsNoReservation(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	order, _ := svc.SubmitBuy(ctx, limitBuy(100, "50.00"))
	if order.State != models.OrderStateAwaitingFunds {
		t.Fatalf("State = %s, want awaiting_funds", order.State)
	}

	if err := svc.Cancel(ctx, order.ID, "gave up waiting"); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	b, _ := svc.GetBalance(ctx, 20)
	if !b.Available.IsZero() || !b.Blocked.IsZero() {
		t.Errorf("balance mutated: available %s blocked %s, want 0 / 0", b.Available, b.Blocked)
	}
}

func TestCancel_ExecutedOrderRejected(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	svc.Deposit(ctx, 20, dec("10000.00"))
	order, _ := svc.SubmitBuy(ctx, limitBuy(100, "50.00"))
	if err := svc.Execute(ctx, order.ID, dec("50.00")); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	err := svc.Cancel(ctx, order.ID, "too late")
	var transition *models.InvalidStateTransitionError
	if !errors.As(err, &transition) {
		t.Fatalf("Cancel() error = %v, want *InvalidStateTransitionError", err)
	}
}

func TestExecute_Idempotence(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	svc.Deposit(ctx, 20, dec("10000.00"))
	order, _ := svc.SubmitBuy(ctx, limitBuy(100, "50.00"))
	if err := svc.Execute(ctx, order.ID, dec("50.00")); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	balanceBefore, _ := svc.GetBalance(ctx, 20)
	positionBefore, _ := svc.GetPosition(ctx, 10, "ACME")

	err := svc.Execute(ctx, order.ID, dec("50.00"))
	var transition *models.InvalidStateTransitionError
	if !errors.As(err, &transition) {
		t.Fatalf("second Execute() error = %v, want *InvalidStateTransitionError", err)
	}

	balanceAfter, _ := svc.GetBalance(ctx, 20)
	positionAfter, _ := svc.GetPosition(ctx, 10, "ACME")
	if !balanceAfter.Available.Equal(balanceBefore.Available) || !balanceAfter.Blocked.Equal(balanceBefore.Blocked) {
		t.Error("second Execute() mutated the balance")
	}
	if positionAfter.QtyTotal != positionBefore.QtyTotal || !positionAfter.AvgCost.Equal(positionBefore.AvgCost) {
		t.Error("second Execute() mutated the position")
	}
}

func TestSubmitBuy_MarketOrderUsesQuote(t *testing.T) {
	svc, _, quotes := newTestService(t)
	ctx := context.Background()

	svc.Deposit(ctx, 20, dec("10000.00"))
	quotes.Set("ACME", dec("50.00"))

	req := limitBuy(100, "50.00")
	req.Type = models.OrderTypeMarket
	req.LimitPrice = nil

	order, err := svc.SubmitBuy(ctx, req)
	if err != nil {
		t.Fatalf("SubmitBuy() error = %v", err)
	}
	if !order.ReservedTotal.Equal(dec("5058.00")) {
		t.Errorf("ReservedTotal = %s, want 5058.00 from the market quote", order.ReservedTotal)
	}
}

func TestSubmitBuy_MarketOrderWithoutQuoteFails(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	svc.Deposit(ctx, 20, dec("10000.00"))

	req := limitBuy(100, "50.00")
	req.Type = models.OrderTypeMarket
	req.LimitPrice = nil

	if _, err := svc.SubmitBuy(ctx, req); err == nil {
		t.Fatal("SubmitBuy() without a quote: expected error")
	}

	orders, _ := svc.ListOrders(ctx, 1, 10)
	if len(orders) != 0 {
		t.Errorf("failed submission created an order: %d orders", len(orders))
	}
}

func TestSubmitBuy_InvalidRequest(t *testing.T) {
	svc, _, _ := newTestService(t)

	req := limitBuy(0, "50.00")
	_, err := svc.SubmitBuy(context.Background(), req)
	var invalid *models.InvalidArgumentError
	if !errors.As(err, &invalid) {
		t.Fatalf("SubmitBuy() error = %v, want *InvalidArgumentError", err)
	}
}

func TestExecute_OrderNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	err := svc.Execute(context.Background(), 9999, dec("50.00"))
	if !errors.Is(err, repository.ErrOrderNotFound) {
		t.Fatalf("Execute() error = %v, want ErrOrderNotFound", err)
	}
}

func TestEvents_PublishedAfterCommitOnly(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	var events []Event
	svc.Events().Subscribe(func(e Event) { events = append(events, e) })

	svc.Deposit(ctx, 20, dec("10000.00"))
	order, err := svc.SubmitBuy(ctx, limitBuy(100, "50.00"))
	if err != nil {
		t.Fatalf("SubmitBuy() error = %v", err)
	}
	if err := svc.Execute(ctx, order.ID, dec("50.00")); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	// a rejected sell commits nothing and must publish nothing
	if _, err := svc.SubmitSell(ctx, limitSell(999, "60.00")); err == nil {
		t.Fatal("SubmitSell() expected insufficient position error")
	}

	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}
	if events[0].Type != EventOrderCreated || events[1].Type != EventOrderExecuted {
		t.Errorf("event types = %s, %s; want order.created, order.executed", events[0].Type, events[1].Type)
	}
	if events[0].Order.OrderNumber != order.OrderNumber {
		t.Errorf("event order number = %q, want %q", events[0].Order.OrderNumber, order.OrderNumber)
	}
}

func TestWithdraw_CannotTouchBlockedFunds(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	svc.Deposit(ctx, 20, dec("10000.00"))
	if _, err := svc.SubmitBuy(ctx, limitBuy(100, "50.00")); err != nil {
		t.Fatalf("SubmitBuy() error = %v", err)
	}

	// 4942.00 available; the 5058.00 blocked must be out of reach
	err := svc.Withdraw(ctx, 20, dec("5000.00"))
	var insufficient *models.InsufficientFundsError
	if !errors.As(err, &insufficient) {
		t.Fatalf("Withdraw() error = %v, want *InsufficientFundsError", err)
	}

	if err := svc.Withdraw(ctx, 20, dec("4942.00")); err != nil {
		t.Fatalf("Withdraw() of available funds error = %v", err)
	}
}

// createFailStore fails every order insert so a submission dies after the
// reservation step; the surrounding transaction must roll back in full.
type createFailStore struct {
	repository.Store
}

func (s createFailStore) Orders() repository.OrderStore {
	return createFailOrders{s.Store.Orders()}
}

func (s createFailStore) WithTransaction(ctx context.Context, fn func(repository.Store) error) error {
	return s.Store.WithTransaction(ctx, func(tx repository.Store) error {
		return fn(createFailStore{tx})
	})
}

type createFailOrders struct {
	repository.OrderStore
}

func (createFailOrders) Create(ctx context.Context, order *models.Order) error {
	return errors.New("order insert unavailable")
}

func TestSubmitBuy_ReservationFailureCountsCommittedOrdersOnly(t *testing.T) {
	counter := observability.GetMetrics().ReservationFailuresTotal.WithLabelValues("insufficient_funds")
	before := testutil.ToFloat64(counter)

	svc, store, _ := newTestService(t)
	ctx := context.Background()

	// the account has no funds and the order insert fails too: the whole
	// submission rolls back and must not count as a reservation failure
	failing := New(createFailStore{store}, svc.fees, svc.quotes, svc.ids, svc.now)
	if _, err := failing.SubmitBuy(ctx, limitBuy(100, "50.00")); err == nil {
		t.Fatal("SubmitBuy() with failing order insert: expected error")
	}
	if got := testutil.ToFloat64(counter) - before; got != 0 {
		t.Errorf("rolled-back submission counted %v reservation failures, want 0", got)
	}

	// a committed awaiting-funds order counts exactly once
	order, err := svc.SubmitBuy(ctx, limitBuy(100, "50.00"))
	if err != nil {
		t.Fatalf("SubmitBuy() error = %v", err)
	}
	if order.State != models.OrderStateAwaitingFunds {
		t.Fatalf("State = %s, want awaiting_funds", order.State)
	}
	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("parked submission counted %v reservation failures, want 1", got)
	}
}

// histogramSamples reads the cumulative sample count of one histogram child.
func histogramSamples(t *testing.T, obs prometheus.Observer) uint64 {
	t.Helper()
	metric, ok := obs.(prometheus.Metric)
	if !ok {
		t.Fatalf("observer %T does not expose its metric", obs)
	}
	var out dto.Metric
	if err := metric.Write(&out); err != nil {
		t.Fatalf("reading histogram: %v", err)
	}
	return out.GetHistogram().GetSampleCount()
}

func TestEngineOperations_ObserveDurations(t *testing.T) {
	m := observability.GetMetrics()
	submits := m.OrderDuration.WithLabelValues("submit_buy", "success")
	executes := m.OrderDuration.WithLabelValues("execute", "success")
	cancels := m.OrderDuration.WithLabelValues("cancel", "success")
	submitsBefore := histogramSamples(t, submits)
	executesBefore := histogramSamples(t, executes)
	cancelsBefore := histogramSamples(t, cancels)

	svc, _, _ := newTestService(t)
	ctx := context.Background()

	svc.Deposit(ctx, 20, dec("20000.00"))
	executed, err := svc.SubmitBuy(ctx, limitBuy(100, "50.00"))
	if err != nil {
		t.Fatalf("SubmitBuy() error = %v", err)
	}
	if err := svc.Execute(ctx, executed.ID, dec("50.00")); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	cancelled, err := svc.SubmitBuy(ctx, limitBuy(10, "50.00"))
	if err != nil {
		t.Fatalf("SubmitBuy() error = %v", err)
	}
	if err := svc.Cancel(ctx, cancelled.ID, "client request"); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	if got := histogramSamples(t, submits) - submitsBefore; got != 2 {
		t.Errorf("submit_buy/success observations = %d, want 2", got)
	}
	if got := histogramSamples(t, executes) - executesBefore; got != 1 {
		t.Errorf("execute/success observations = %d, want 1", got)
	}
	if got := histogramSamples(t, cancels) - cancelsBefore; got != 1 {
		t.Errorf("cancel/success observations = %d, want 1", got)
	}
}

func TestDeposit_RejectsNonPositiveAmount(t *testing.T) {
	svc, _, _ := newTestService(t)

	for _, amount := range []string{"0", "-10.00"} {
		err := svc.Deposit(context.Background(), 20, dec(amount))
		var invalid *models.InvalidArgumentError
		if !errors.As(err, &invalid) {
			t.Errorf("Deposit(%s) error = %v, want *InvalidArgumentError", amount, err)
		}
	}
}
