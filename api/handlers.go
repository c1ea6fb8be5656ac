/*
handlers.go - HTTP handlers for the market transaction core

PURPOSE:
  Exposes the core via REST. Handlers parse the request, resolve the
  trusted actor, delegate to the domain services, and serialize the
  result. No business rule lives here.

IDENTITY:
  The identity provider in front of this service verifies credentials and
  forwards the result as X-User-Id / X-User-Role headers. The middleware
  in server.go turns those into a market.Actor; handlers only check
  coarse role gates that the services re-check anyway.

ERROR HANDLING:
  Every domain error maps to a stable kind string plus an HTTP status:
    400  LimitExceeded, DuplicateItem, EmptyCart, InvalidRange
    403  Forbidden
    404  NotFound
    409  InsufficientStock, InsufficientTokens, InvalidTransition,
         DuplicatePending, AlreadyDecided
    503  Conflict (transient, retry)
    500  everything else (detail logged, not exposed)

SEE ALSO:
  - dto.go: Wire shapes
  - server.go: Routing and middleware
*/
package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bulldogs/market-core/market"
)

// =============================================================================
// HANDLER
// =============================================================================

// Handler holds the wired core plus presentation settings.
type Handler struct {
	Core              *market.Core
	Log               *zap.Logger
	LowStockThreshold int
}

func NewHandler(core *market.Core, log *zap.Logger) *Handler {
	return &Handler{Core: core, Log: log, LowStockThreshold: market.DefaultLowStockThreshold}
}

// =============================================================================
// USERS
// =============================================================================

func (h *Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}
	if req.ID == "" {
		h.badRequest(w, "id is required")
		return
	}

	u := &market.User{
		ID:        market.UserID(req.ID),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Role:      market.Role(req.Role),
	}
	if err := h.Core.Registry.CreateProfile(r.Context(), u); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toUserDTO(u))
}

func (h *Handler) ListStudents(w http.ResponseWriter, r *http.Request) {
	if !actorFrom(r).IsStaff() {
		h.writeError(w, market.ErrForbidden)
		return
	}
	students, err := h.Core.Registry.Students(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]UserDTO, 0, len(students))
	for i := range students {
		out = append(out, toUserDTO(&students[i]))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	studentID := market.UserID(chi.URLParam(r, "id"))
	if actor.ID != studentID && !actor.IsStaff() {
		h.writeError(w, market.ErrForbidden)
		return
	}

	balance, err := h.Core.Tokens.Balance(r.Context(), studentID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, BalanceDTO{StudentID: string(studentID), Balance: balance})
}

// =============================================================================
// ITEMS
// =============================================================================

func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req UpsertItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}

	item := &market.Item{
		Name:        req.Name,
		Description: req.Description,
		Category:    market.Category(req.Category),
		ImageURL:    req.ImageURL,
		Quantity:    req.Quantity,
	}
	if err := h.Core.Catalog.CreateItem(r.Context(), actorFrom(r), item); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toItemDTO(item))
}

func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.Core.Catalog.Browse(r.Context(), market.Category(r.URL.Query().Get("category")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, itemDTOs(items))
}

func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	item, err := h.Core.Catalog.Item(r.Context(), market.ItemID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toItemDTO(item))
}

func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req UpsertItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}

	item, err := h.Core.Catalog.UpdateItem(r.Context(), actorFrom(r), market.ItemID(chi.URLParam(r, "id")), func(item *market.Item) {
		item.Name = req.Name
		item.Description = req.Description
		item.Category = market.Category(req.Category)
		item.ImageURL = req.ImageURL
		item.Quantity = req.Quantity
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toItemDTO(item))
}

func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	if err := h.Core.Catalog.DeleteItem(r.Context(), actorFrom(r), market.ItemID(chi.URLParam(r, "id"))); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) LowStockItems(w http.ResponseWriter, r *http.Request) {
	if !actorFrom(r).IsStaff() {
		h.writeError(w, market.ErrForbidden)
		return
	}
	threshold := h.LowStockThreshold
	if raw := r.URL.Query().Get("threshold"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			threshold = v
		}
	}
	items, err := h.Core.Inventory.LowStock(r.Context(), threshold)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, itemDTOs(items))
}

func (h *Handler) OutOfStockItems(w http.ResponseWriter, r *http.Request) {
	if !actorFrom(r).IsStaff() {
		h.writeError(w, market.ErrForbidden)
		return
	}
	items, err := h.Core.Inventory.OutOfStock(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, itemDTOs(items))
}

// =============================================================================
// ORDERS
// =============================================================================

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}
	pickup, err := time.Parse(time.RFC3339, req.PickupTime)
	if err != nil {
		h.badRequest(w, "pickup_time must be RFC 3339")
		return
	}

	cart := make(market.Cart, 0, len(req.Lines))
	for _, line := range req.Lines {
		cart = append(cart, market.CartLine{ItemID: market.ItemID(line.ItemID), Quantity: line.Quantity})
	}

	order, err := h.Core.Orders.Create(r.Context(), actorFrom(r).ID, cart, pickup)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toOrderDTO(order))
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	var (
		orders []market.Order
		err    error
	)
	if actor.IsStaff() {
		if student := r.URL.Query().Get("student"); student != "" {
			orders, err = h.Core.Orders.ListForStudent(r.Context(), market.UserID(student))
		} else {
			orders, err = h.Core.Orders.ListAll(r.Context())
		}
	} else {
		orders, err = h.Core.Orders.ListForStudent(r.Context(), actor.ID)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := make([]OrderDTO, 0, len(orders))
	for i := range orders {
		out = append(out, toOrderDTO(&orders[i]))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.Core.Orders.Get(r.Context(), market.OrderID(chi.URLParam(r, "id")), actorFrom(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toOrderDTO(order))
}

func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateOrderStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}

	id := market.OrderID(chi.URLParam(r, "id"))
	if err := h.Core.Orders.UpdateStatus(r.Context(), id, market.OrderStatus(req.Status), actorFrom(r)); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	id := market.OrderID(chi.URLParam(r, "id"))
	if err := h.Core.Orders.Cancel(r.Context(), id, actorFrom(r)); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// TOKEN REQUESTS
// =============================================================================

func (h *Handler) SubmitTokenRequest(w http.ResponseWriter, r *http.Request) {
	var req SubmitTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid JSON body")
		return
	}

	tr, err := h.Core.Requests.Submit(r.Context(), actorFrom(r).ID, req.Reason, req.Tokens)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toTokenRequestDTO(tr))
}

func (h *Handler) ListTokenRequests(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)

	var (
		requests []market.TokenRequest
		err      error
	)
	if actor.IsStaff() {
		if student := r.URL.Query().Get("student"); student != "" {
			requests, err = h.Core.Requests.ListForStudent(r.Context(), market.UserID(student))
		} else {
			requests, err = h.Core.Requests.ListAll(r.Context())
		}
	} else {
		requests, err = h.Core.Requests.ListForStudent(r.Context(), actor.ID)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}

	out := make([]TokenRequestDTO, 0, len(requests))
	for i := range requests {
		out = append(out, toTokenRequestDTO(&requests[i]))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) ApproveTokenRequest(w http.ResponseWriter, r *http.Request) {
	h.decideTokenRequest(w, r, market.RequestApproved)
}

func (h *Handler) RejectTokenRequest(w http.ResponseWriter, r *http.Request) {
	h.decideTokenRequest(w, r, market.RequestRejected)
}

func (h *Handler) decideTokenRequest(w http.ResponseWriter, r *http.Request, outcome market.RequestStatus) {
	id := market.RequestID(chi.URLParam(r, "id"))
	if err := h.Core.Requests.Decide(r.Context(), id, outcome, actorFrom(r)); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	limit := market.StudentFeedLimit
	if actor.IsStaff() {
		limit = market.StaffFeedLimit
	}

	feed, err := h.Core.Notify.Feed(r.Context(), actor.ID, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]NotificationDTO, 0, len(feed))
	for i := range feed {
		out = append(out, toNotificationDTO(&feed[i]))
	}
	h.writeJSON(w, http.StatusOK, out)
}

func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	id := market.NotificationID(chi.URLParam(r, "id"))
	if err := h.Core.Notify.MarkRead(r.Context(), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) MarkAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	if err := h.Core.Notify.MarkAllRead(r.Context(), actorFrom(r).ID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ADMIN
// =============================================================================

func (h *Handler) ResetTokens(w http.ResponseWriter, r *http.Request) {
	if !actorFrom(r).IsStaff() {
		h.writeError(w, market.ErrForbidden)
		return
	}

	count, err := h.Core.Reset.ResetAll(r.Context(), h.Core.Quota)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, ResetResponse{Reset: count, Quota: h.Core.Quota})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Log.Warn("response encode failed", zap.Error(err))
	}
}

func (h *Handler) badRequest(w http.ResponseWriter, msg string) {
	h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "BadRequest", Message: msg})
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	kind := market.Kind(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		h.Log.Error("internal error", zap.Error(err))
		// Never leak internal detail.
		h.writeJSON(w, status, ErrorResponse{Error: kind, Message: "internal error"})
		return
	}
	h.writeJSON(w, status, ErrorResponse{Error: kind, Message: err.Error()})
}

func statusFor(kind string) int {
	switch kind {
	case "LimitExceeded", "DuplicateItem", "EmptyCart", "InvalidRange":
		return http.StatusBadRequest
	case "Forbidden":
		return http.StatusForbidden
	case "NotFound":
		return http.StatusNotFound
	case "InsufficientStock", "InsufficientTokens", "InvalidTransition",
		"DuplicatePending", "AlreadyDecided":
		return http.StatusConflict
	case "Conflict":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func itemDTOs(items []market.Item) []ItemDTO {
	out := make([]ItemDTO, 0, len(items))
	for i := range items {
		out = append(out, toItemDTO(&items[i]))
	}
	return out
}
