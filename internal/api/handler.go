package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"broker-ledger/config"
	"broker-ledger/engine"
	"broker-ledger/models"
	"broker-ledger/repository"
)

// Handler handles HTTP API requests
type Handler struct {
	svc   *engine.Service
	store repository.Store
	cfg   *config.Config
}

// NewHandler creates a new Handler
func NewHandler(svc *engine.Service, store repository.Store, cfg *config.Config) *Handler {
	return &Handler{svc: svc, store: store, cfg: cfg}
}

// HandleHealth returns the health status of the application
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status": "ok",
		"services": map[string]string{
			"database": "unknown",
		},
	}

	if err := h.store.Health(r.Context()); err == nil {
		status["services"].(map[string]string)["database"] = "connected"
	} else {
		status["services"].(map[string]string)["database"] = "disconnected"
		status["status"] = "degraded"
	}

	h.jsonResponse(w, status)
}

// HandleSubmitBuy places a buy order
func (h *Handler) HandleSubmitBuy(w http.ResponseWriter, r *http.Request) {
	var req models.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	order, err := h.svc.SubmitBuy(r.Context(), req)
	if err != nil {
		h.jsonError(w, err.Error(), httpStatus(err))
		return
	}
	h.jsonStatusResponse(w, http.StatusCreated, order)
}

// HandleSubmitSell places a sell order
func (h *Handler) HandleSubmitSell(w http.ResponseWriter, r *http.Request) {
	var req models.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	order, err := h.svc.SubmitSell(r.Context(), req)
	if err != nil {
		h.jsonError(w, err.Error(), httpStatus(err))
		return
	}
	h.jsonStatusResponse(w, http.StatusCreated, order)
}

// ExecuteRequest carries the fill price for an execution
type ExecuteRequest struct {
	FillPrice decimal.Decimal `json:"fill_price"`
}

// HandleExecuteOrder executes a pending order at the given fill price
func (h *Handler) HandleExecuteOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.parseOrderID(w, r)
	if !ok {
		return
	}

	var req ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.svc.Execute(r.Context(), orderID, req.FillPrice); err != nil {
		h.jsonError(w, err.Error(), httpStatus(err))
		return
	}

	order, err := h.svc.GetOrder(r.Context(), orderID)
	if err != nil {
		h.jsonError(w, err.Error(), httpStatus(err))
		return
	}
	h.jsonResponse(w, order)
}

// CancelRequest carries an optional cancellation reason
type CancelRequest struct {
	Reason string `json:"reason"`
}

// HandleCancelOrder cancels a pending or parked order
func (h *Handler) HandleCancelOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.parseOrderID(w, r)
	if !ok {
		return
	}

	var req CancelRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.jsonError(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	if err := h.svc.Cancel(r.Context(), orderID, req.Reason); err != nil {
		h.jsonError(w, err.Error(), httpStatus(err))
		return
	}

	order, err := h.svc.GetOrder(r.Context(), orderID)
	if err != nil {
		h.jsonError(w, err.Error(), httpStatus(err))
		return
	}
	h.jsonResponse(w, order)
}

// HandleGetOrder returns a single order
func (h *Handler) HandleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := h.parseOrderID(w, r)
	if !ok {
		return
	}

	order, err := h.svc.GetOrder(r.Context(), orderID)
	if err != nil {
		h.jsonError(w, err.Error(), httpStatus(err))
		return
	}
	h.jsonResponse(w, order)
}

// HandleListOrders returns a client's orders, newest first
func (h *Handler) HandleListOrders(w http.ResponseWriter, r *http.Request) {
	clientID, err := strconv.ParseInt(r.URL.Query().Get("client_id"), 10, 64)
	if err != nil || clientID <= 0 {
		h.jsonError(w, "client_id query parameter is required", http.StatusBadRequest)
		return
	}
	limit := h.ParseLimitParam(r, 50)

	orders, err := h.svc.ListOrders(r.Context(), clientID, limit)
	if err != nil {
		h.jsonError(w, err.Error(), httpStatus(err))
		return
	}
	h.jsonResponse(w, map[string]interface{}{
		"orders": orders,
		"count":  len(orders),
	})
}

// HandleGetBalance returns the funds breakdown for a bank account
func (h *Handler) HandleGetBalance(w http.ResponseWriter, r *http.Request) {
	accountID, ok := h.parseAccountID(w, r)
	if !ok {
		return
	}

	balance, err := h.svc.GetBalance(r.Context(), accountID)
	if err != nil {
		h.jsonError(w, err.Error(), httpStatus(err))
		return
	}
	h.jsonResponse(w, balance)
}

// HandleGetPosition returns a holding for a brokerage account and security
func (h *Handler) HandleGetPosition(w http.ResponseWriter, r *http.Request) {
	accountID, err := strconv.ParseInt(chi.URLParam(r, "accountID"), 10, 64)
	if err != nil || accountID <= 0 {
		h.jsonError(w, "invalid brokerage account ID", http.StatusBadRequest)
		return
	}
	securityID := chi.URLParam(r, "securityID")
	if securityID == "" {
		h.jsonError(w, "missing security ID", http.StatusBadRequest)
		return
	}

	position, err := h.svc.GetPosition(r.Context(), accountID, securityID)
	if err != nil {
		h.jsonError(w, err.Error(), httpStatus(err))
		return
	}
	h.jsonResponse(w, position)
}

// TransferRequest carries a deposit or withdrawal amount
type TransferRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// HandleDeposit credits available funds to a bank account
func (h *Handler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	h.handleTransfer(w, r, h.svc.Deposit)
}

// HandleWithdraw debits available funds from a bank account
func (h *Handler) HandleWithdraw(w http.ResponseWriter, r *http.Request) {
	h.handleTransfer(w, r, h.svc.Withdraw)
}

func (h *Handler) handleTransfer(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, bankAccountID int64, amount decimal.Decimal) error) {
	accountID, ok := h.parseAccountID(w, r)
	if !ok {
		return
	}

	var req TransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := apply(r.Context(), accountID, req.Amount); err != nil {
		h.jsonError(w, err.Error(), httpStatus(err))
		return
	}

	balance, err := h.svc.GetBalance(r.Context(), accountID)
	if err != nil {
		h.jsonError(w, err.Error(), httpStatus(err))
		return
	}
	h.jsonResponse(w, balance)
}

func (h *Handler) parseOrderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.jsonError(w, "invalid order ID", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

func (h *Handler) parseAccountID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.jsonError(w, "invalid account ID", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// httpStatus maps domain errors to HTTP status codes
func httpStatus(err error) int {
	var (
		invalidArg *models.InvalidArgumentError
		noFunds    *models.InsufficientFundsError
		noPosition *models.InsufficientPositionError
		badState   *models.InvalidStateTransitionError
		invariant  *models.InvariantViolationError
	)
	switch {
	case errors.As(err, &invalidArg):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.As(err, &badState):
		return http.StatusConflict
	case errors.As(err, &noFunds), errors.As(err, &noPosition):
		return http.StatusUnprocessableEntity
	case errors.As(err, &invariant):
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) ParseLimitParam(r *http.Request, defaultLimit int) int {
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			return l
		}
	}
	return defaultLimit
}

func (h *Handler) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) jsonStatusResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
