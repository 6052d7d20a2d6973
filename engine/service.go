// Package engine implements the order lifecycle: validation, funds and
// share reservation, execution against a fill price, and cancellation.
// Every mutating call runs inside a single storage transaction; the ledger
// and the position book are only ever touched through their own atomic
// operations, so a failed call leaves the system exactly as it was.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"broker-ledger/commission"
	"broker-ledger/idgen"
	"broker-ledger/models"
	"broker-ledger/observability"
	"broker-ledger/repository"
	"broker-ledger/services"
)

// Clock supplies the current time; injected so state-machine timestamps
// are testable.
type Clock func() time.Time

// Service is the order execution service. It is the only component that
// calls the mutating ledger and position operations.
type Service struct {
	store  repository.Store
	fees   services.FeeScheduleProvider
	quotes services.QuoteProvider
	ids    *idgen.Generator
	now    Clock
	events *Publisher
}

// New creates a Service. A nil clock defaults to time.Now.
func New(store repository.Store, fees services.FeeScheduleProvider, quotes services.QuoteProvider, ids *idgen.Generator, clock Clock) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{
		store:  store,
		fees:   fees,
		quotes: quotes,
		ids:    ids,
		now:    clock,
		events: NewPublisher(),
	}
}

// Events returns the publisher callers subscribe to for post-commit
// notifications.
func (s *Service) Events() *Publisher {
	return s.events
}

// SubmitBuy validates a buy request, reserves gross + commission on the
// bank account, and creates the order. When the account cannot cover the
// reservation the order is created in awaiting-funds instead, holding no
// reservation, parked until the client deposits cash.
func (s *Service) SubmitBuy(ctx context.Context, req models.OrderRequest) (*models.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	price, err := s.referencePrice(ctx, req)
	if err != nil {
		return nil, err
	}

	gross := decimal.NewFromInt(req.Quantity).Mul(price)
	comm, err := commission.Calculate(gross, models.OrderSideBuy, s.fees.Schedule())
	if err != nil {
		return nil, err
	}
	total := gross.Add(comm.Total)

	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()

	var order *models.Order
	err = s.store.WithTransaction(ctx, func(tx repository.Store) error {
		state := models.OrderStatePending
		reserved := total

		if err := tx.Balances().Reserve(ctx, req.BankAccountID, total); err != nil {
			var insufficient *models.InsufficientFundsError
			if !errors.As(err, &insufficient) {
				return err
			}
			state = models.OrderStateAwaitingFunds
			reserved = decimal.Zero
		}

		order = s.newOrder(req, models.OrderSideBuy, state)
		order.ReservedTotal = reserved
		order.Commission = comm
		return tx.Orders().Create(ctx, order)
	})
	if err != nil {
		timer.ObserveOperation("submit_buy", "error")
		return nil, err
	}
	timer.ObserveOperation("submit_buy", "success")

	if order.State == models.OrderStateAwaitingFunds {
		metrics.RecordReservationFailure("insufficient_funds")
	}
	metrics.RecordOrderSubmitted(string(order.Side), string(order.State))
	observability.WithOrder(order.OrderNumber).Info("buy order created",
		"state", order.State,
		"security", order.SecurityID,
		"quantity", order.Quantity,
		"reserved", order.ReservedTotal.String())
	s.publish(EventOrderCreated, *order, "")
	return order, nil
}

// SubmitSell validates a sell request, blocks the shares on the position,
// and creates the order. Insufficient shares is a hard rejection: no order
// is created and nothing is reserved.
func (s *Service) SubmitSell(ctx context.Context, req models.OrderRequest) (*models.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()

	var order *models.Order
	err := s.store.WithTransaction(ctx, func(tx repository.Store) error {
		if err := tx.Positions().ReserveQuantity(ctx, req.BrokerageAccountID, req.SecurityID, req.Quantity); err != nil {
			return err
		}

		order = s.newOrder(req, models.OrderSideSell, models.OrderStatePending)
		return tx.Orders().Create(ctx, order)
	})
	if err != nil {
		timer.ObserveOperation("submit_sell", "error")
		var insufficient *models.InsufficientPositionError
		if errors.As(err, &insufficient) {
			metrics.RecordReservationFailure("insufficient_position")
		}
		return nil, err
	}
	timer.ObserveOperation("submit_sell", "success")

	metrics.RecordOrderSubmitted(string(order.Side), string(order.State))
	observability.WithOrder(order.OrderNumber).Info("sell order created",
		"security", order.SecurityID,
		"quantity", order.Quantity)
	s.publish(EventOrderCreated, *order, "")
	return order, nil
}

// Execute settles a pending order at the given fill price. Commission is
// recomputed at the fill price; for a buy the reservation is settled at its
// actual cost, for a sell the net proceeds are credited. A settlement
// shortfall aborts the whole call and leaves the order pending for manual
// resolution. Executing an already-executed order returns
// InvalidStateTransition and mutates nothing.
func (s *Service) Execute(ctx context.Context, orderID int64, fillPrice decimal.Decimal) error {
	if !fillPrice.IsPositive() {
		return &models.InvalidArgumentError{Field: "fill_price", Reason: "must be positive"}
	}

	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()

	var executed models.Order
	err := s.store.WithTransaction(ctx, func(tx repository.Store) error {
		order, err := tx.Orders().Get(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.CanTransition(models.OrderStateExecuted) {
			return &models.InvalidStateTransitionError{
				OrderID: order.ID,
				From:    order.State,
				To:      models.OrderStateExecuted,
			}
		}

		gross := decimal.NewFromInt(order.Quantity).Mul(fillPrice)
		comm, err := commission.Calculate(gross, order.Side, s.fees.Schedule())
		if err != nil {
			return err
		}

		switch order.Side {
		case models.OrderSideBuy:
			actual := gross.Add(comm.Total)
			if err := tx.Balances().Settle(ctx, order.BankAccountID, order.ReservedTotal, actual); err != nil {
				return err
			}
			if err := tx.Positions().ApplyBuy(ctx, order.BrokerageAccountID, order.SecurityID, order.Quantity, fillPrice); err != nil {
				return err
			}
		case models.OrderSideSell:
			net := gross.Sub(comm.Total)
			if net.IsNegative() {
				return &models.InvalidArgumentError{
					Field:  "fill_price",
					Reason: "net proceeds would be negative after commission",
				}
			}
			if err := tx.Balances().Credit(ctx, order.BankAccountID, net); err != nil {
				return err
			}
			if err := tx.Positions().ApplySell(ctx, order.BrokerageAccountID, order.SecurityID, order.Quantity); err != nil {
				return err
			}
		}

		now := s.now()
		order.State = models.OrderStateExecuted
		order.FilledQuantity = order.Quantity
		order.AvgFillPrice = &fillPrice
		order.ExecutedAt = &now
		order.Commission = comm
		executed = *order
		return tx.Orders().Update(ctx, order)
	})
	if err != nil {
		timer.ObserveOperation("execute", "error")
		observability.WithError(err).Warn("order execution failed", "order_id", orderID)
		return err
	}
	timer.ObserveOperation("execute", "success")

	metrics.RecordOrderExecuted(string(executed.Side))
	observability.WithOrder(executed.OrderNumber).Info("order executed",
		"side", executed.Side,
		"fill_price", fillPrice.String(),
		"commission", executed.Commission.Total.String())
	s.publish(EventOrderExecuted, executed, "")
	return nil
}

// Cancel moves an order to cancelled and releases whatever it still holds:
// the cash reservation for a pending buy, the blocked shares for a pending
// sell, nothing for an awaiting-funds order.
func (s *Service) Cancel(ctx context.Context, orderID int64, reason string) error {
	metrics := observability.GetMetrics()
	timer := metrics.NewTimer()

	var cancelled models.Order
	err := s.store.WithTransaction(ctx, func(tx repository.Store) error {
		order, err := tx.Orders().Get(ctx, orderID)
		if err != nil {
			return err
		}
		if !order.CanTransition(models.OrderStateCancelled) {
			return &models.InvalidStateTransitionError{
				OrderID: order.ID,
				From:    order.State,
				To:      models.OrderStateCancelled,
			}
		}

		if order.State == models.OrderStatePending {
			switch order.Side {
			case models.OrderSideBuy:
				if err := tx.Balances().Release(ctx, order.BankAccountID, order.ReservedTotal); err != nil {
					return err
				}
			case models.OrderSideSell:
				if err := tx.Positions().ReleaseQuantity(ctx, order.BrokerageAccountID, order.SecurityID, order.Quantity); err != nil {
					return err
				}
			}
		}

		order.State = models.OrderStateCancelled
		if reason != "" {
			if order.Notes != "" {
				order.Notes += "; "
			}
			order.Notes += "cancelled: " + reason
		}
		cancelled = *order
		return tx.Orders().Update(ctx, order)
	})
	if err != nil {
		timer.ObserveOperation("cancel", "error")
		return err
	}
	timer.ObserveOperation("cancel", "success")

	metrics.RecordOrderCancelled(string(cancelled.Side))
	observability.WithOrder(cancelled.OrderNumber).Info("order cancelled", "reason", reason)
	s.publish(EventOrderCancelled, cancelled, reason)
	return nil
}

// GetOrder returns a single order.
func (s *Service) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	return s.store.Orders().Get(ctx, orderID)
}

// ListOrders returns the client's most recent orders.
func (s *Service) ListOrders(ctx context.Context, clientID int64, limit int) ([]models.Order, error) {
	return s.store.Orders().ListByClient(ctx, clientID, limit)
}

// GetBalance returns a read-only snapshot of a bank account's cash.
func (s *Service) GetBalance(ctx context.Context, bankAccountID int64) (*models.BankBalance, error) {
	return s.store.Balances().Get(ctx, bankAccountID)
}

// GetPosition returns a read-only snapshot of a holding.
func (s *Service) GetPosition(ctx context.Context, brokerageAccountID int64, securityID string) (*models.Position, error) {
	return s.store.Positions().Get(ctx, brokerageAccountID, securityID)
}

// Deposit credits cash to a bank account.
func (s *Service) Deposit(ctx context.Context, bankAccountID int64, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return &models.InvalidArgumentError{Field: "amount", Reason: "must be positive"}
	}
	err := s.store.WithTransaction(ctx, func(tx repository.Store) error {
		return tx.Balances().Credit(ctx, bankAccountID, amount)
	})
	if err != nil {
		return err
	}
	observability.WithAccount(bankAccountID).Info("funds deposited", "amount", amount.String())
	return nil
}

// Withdraw debits available cash from a bank account. Blocked funds cannot
// be withdrawn.
func (s *Service) Withdraw(ctx context.Context, bankAccountID int64, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return &models.InvalidArgumentError{Field: "amount", Reason: "must be positive"}
	}
	err := s.store.WithTransaction(ctx, func(tx repository.Store) error {
		return tx.Balances().Debit(ctx, bankAccountID, amount)
	})
	if err != nil {
		return err
	}
	observability.WithAccount(bankAccountID).Info("funds withdrawn", "amount", amount.String())
	return nil
}

// referencePrice returns the price used to size a buy reservation: the
// limit price for limit orders, the market quote otherwise.
func (s *Service) referencePrice(ctx context.Context, req models.OrderRequest) (decimal.Decimal, error) {
	if req.Type == models.OrderTypeLimit {
		return *req.LimitPrice, nil
	}
	price, err := s.quotes.Quote(ctx, req.SecurityID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to price market order for %s: %w", req.SecurityID, err)
	}
	return price, nil
}

func (s *Service) newOrder(req models.OrderRequest, side models.OrderSide, state models.OrderState) *models.Order {
	return &models.Order{
		OrderNumber:        s.ids.NextOrderNumber(),
		ClientID:           req.ClientID,
		BrokerageAccountID: req.BrokerageAccountID,
		BankAccountID:      req.BankAccountID,
		SecurityID:         req.SecurityID,
		Side:               side,
		Type:               req.Type,
		Quantity:           req.Quantity,
		LimitPrice:         req.LimitPrice,
		State:              state,
		ReservedTotal:      decimal.Zero,
		Notes:              req.Notes,
		CreatedAt:          s.now(),
		ExpiresAt:          req.ExpiresAt,
	}
}

func (s *Service) publish(t EventType, order models.Order, reason string) {
	s.events.publish(Event{
		ID:         uuid.New(),
		Type:       t,
		Order:      order,
		Reason:     reason,
		OccurredAt: s.now(),
	})
}
