/*
Package memory provides an in-memory implementation of the market stores.

PURPOSE:
  Backs tests and dev mode. Implements the same conditional-update contract
  as the SQLite store: guarded writes fail with ErrVersionConflict when the
  record moved underneath the caller, uniqueness constraints are enforced
  for notification dedup keys and pending token requests.

CONCURRENCY:
  A single RWMutex guards all maps. The version counters on each record are
  what give the ledgers their compare-and-swap semantics; the mutex only
  keeps the map operations themselves safe.

SEE ALSO:
  - market/store.go: Interface contracts
  - store/sqlite: The production implementation
*/
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/bulldogs/market-core/market"
)

// Store implements market.Store entirely in memory.
type Store struct {
	mu            sync.RWMutex
	users         map[market.UserID]market.User
	userSeq       []market.UserID
	items         map[market.ItemID]market.Item
	itemSeq       []market.ItemID
	accounts      map[market.UserID]market.TokenAccount
	orders        map[market.OrderID]market.Order
	orderSeq      []market.OrderID
	requests      map[market.RequestID]market.TokenRequest
	requestSeq    []market.RequestID
	notifications []market.Notification
	dedup         map[string]bool
}

var _ market.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		users:    make(map[market.UserID]market.User),
		items:    make(map[market.ItemID]market.Item),
		accounts: make(map[market.UserID]market.TokenAccount),
		orders:   make(map[market.OrderID]market.Order),
		requests: make(map[market.RequestID]market.TokenRequest),
		dedup:    make(map[string]bool),
	}
}

// =============================================================================
// USERS
// =============================================================================

func (s *Store) CreateUser(_ context.Context, u *market.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return fmt.Errorf("user %q already exists", u.ID)
	}
	s.users[u.ID] = *u
	s.userSeq = append(s.userSeq, u.ID)
	return nil
}

func (s *Store) GetUser(_ context.Context, id market.UserID) (*market.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, market.ErrNotFound)
	}
	return &u, nil
}

func (s *Store) ListStaff(_ context.Context) ([]market.User, error) {
	return s.listByRole(market.RoleAdmin), nil
}

func (s *Store) ListStudents(_ context.Context) ([]market.User, error) {
	return s.listByRole(market.RoleStudent), nil
}

func (s *Store) listByRole(role market.Role) []market.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []market.User
	for _, id := range s.userSeq {
		if u := s.users[id]; u.Role == role {
			out = append(out, u)
		}
	}
	return out
}

// =============================================================================
// ITEMS
// =============================================================================

func (s *Store) CreateItem(_ context.Context, item *market.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[item.ID]; ok {
		return fmt.Errorf("item %q already exists", item.ID)
	}
	if item.Version == 0 {
		item.Version = 1
	}
	s.items[item.ID] = *item
	s.itemSeq = append(s.itemSeq, item.ID)
	return nil
}

func (s *Store) GetItem(_ context.Context, id market.ItemID) (*market.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("item %s: %w", id, market.ErrNotFound)
	}
	return &item, nil
}

func (s *Store) UpdateItem(_ context.Context, item *market.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.items[item.ID]
	if !ok {
		return fmt.Errorf("item %s: %w", item.ID, market.ErrNotFound)
	}
	if current.Version != item.Version {
		return market.ErrVersionConflict
	}
	next := *item
	next.Version = current.Version + 1
	s.items[item.ID] = next
	return nil
}

func (s *Store) UpdateItemQuantity(_ context.Context, id market.ItemID, expectVersion int64, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.items[id]
	if !ok {
		return fmt.Errorf("item %s: %w", id, market.ErrNotFound)
	}
	if current.Version != expectVersion {
		return market.ErrVersionConflict
	}
	current.Quantity = quantity
	current.Version++
	s.items[id] = current
	return nil
}

func (s *Store) DeleteItem(_ context.Context, id market.ItemID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("item %s: %w", id, market.ErrNotFound)
	}
	delete(s.items, id)
	for i, existing := range s.itemSeq {
		if existing == id {
			s.itemSeq = append(s.itemSeq[:i], s.itemSeq[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) ListItems(_ context.Context, category market.Category) ([]market.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []market.Item
	for _, id := range s.itemSeq {
		item := s.items[id]
		if category != "" && item.Category != category {
			continue
		}
		out = append(out, item)
	}
	return out, nil
}

func (s *Store) LowStockItems(_ context.Context, threshold int) ([]market.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []market.Item
	for _, id := range s.itemSeq {
		if item := s.items[id]; item.Quantity > 0 && item.Quantity <= threshold {
			out = append(out, item)
		}
	}
	return out, nil
}

func (s *Store) OutOfStockItems(_ context.Context) ([]market.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []market.Item
	for _, id := range s.itemSeq {
		if item := s.items[id]; item.Quantity <= 0 {
			out = append(out, item)
		}
	}
	return out, nil
}

// =============================================================================
// TOKEN ACCOUNTS
// =============================================================================

func (s *Store) CreateAccount(_ context.Context, studentID market.UserID, balance int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[studentID]; ok {
		return fmt.Errorf("account %q already exists", studentID)
	}
	s.accounts[studentID] = market.TokenAccount{StudentID: studentID, Balance: balance, Version: 1}
	return nil
}

func (s *Store) GetAccount(_ context.Context, studentID market.UserID) (*market.TokenAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[studentID]
	if !ok {
		return nil, fmt.Errorf("account %s: %w", studentID, market.ErrNotFound)
	}
	return &acct, nil
}

func (s *Store) UpdateBalance(_ context.Context, studentID market.UserID, expectVersion int64, balance int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[studentID]
	if !ok {
		return fmt.Errorf("account %s: %w", studentID, market.ErrNotFound)
	}
	if acct.Version != expectVersion {
		return market.ErrVersionConflict
	}
	acct.Balance = balance
	acct.Version++
	s.accounts[studentID] = acct
	return nil
}

func (s *Store) SetBalance(_ context.Context, studentID market.UserID, balance int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[studentID]
	if !ok {
		return fmt.Errorf("account %s: %w", studentID, market.ErrNotFound)
	}
	acct.Balance = balance
	acct.Version++
	s.accounts[studentID] = acct
	return nil
}

func (s *Store) ListAccounts(_ context.Context) ([]market.TokenAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]market.TokenAccount, 0, len(s.accounts))
	for _, acct := range s.accounts {
		out = append(out, acct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

// =============================================================================
// ORDERS
// =============================================================================

func (s *Store) CreateOrder(_ context.Context, o *market.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.orders[o.ID]; ok {
		return fmt.Errorf("order %q already exists", o.ID)
	}
	stored := *o
	stored.Lines = append([]market.OrderLine(nil), o.Lines...)
	s.orders[o.ID] = stored
	s.orderSeq = append(s.orderSeq, o.ID)
	return nil
}

func (s *Store) GetOrder(_ context.Context, id market.OrderID) (*market.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, market.ErrNotFound)
	}
	o.Lines = append([]market.OrderLine(nil), o.Lines...)
	return &o, nil
}

func (s *Store) UpdateOrderStatus(_ context.Context, id market.OrderID, from, to market.OrderStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return fmt.Errorf("order %s: %w", id, market.ErrNotFound)
	}
	if o.Status != from {
		return market.ErrVersionConflict
	}
	o.Status = to
	o.Version++
	s.orders[id] = o
	return nil
}

func (s *Store) ListOrdersByStudent(_ context.Context, studentID market.UserID) ([]market.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []market.Order
	for i := len(s.orderSeq) - 1; i >= 0; i-- {
		if o := s.orders[s.orderSeq[i]]; o.StudentID == studentID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (s *Store) ListOrders(_ context.Context) ([]market.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]market.Order, 0, len(s.orderSeq))
	for i := len(s.orderSeq) - 1; i >= 0; i-- {
		out = append(out, s.orders[s.orderSeq[i]])
	}
	return out, nil
}

// =============================================================================
// TOKEN REQUESTS
// =============================================================================

func (s *Store) CreateRequest(_ context.Context, r *market.TokenRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[r.ID]; ok {
		return fmt.Errorf("request %q already exists", r.ID)
	}
	// One pending request per student, enforced atomically with the insert.
	for _, id := range s.requestSeq {
		if existing := s.requests[id]; existing.StudentID == r.StudentID && existing.Status == market.RequestPending {
			return market.ErrDuplicatePending
		}
	}
	s.requests[r.ID] = *r
	s.requestSeq = append(s.requestSeq, r.ID)
	return nil
}

func (s *Store) GetRequest(_ context.Context, id market.RequestID) (*market.TokenRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", id, market.ErrNotFound)
	}
	return &r, nil
}

func (s *Store) HasPendingRequest(_ context.Context, studentID market.UserID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.requestSeq {
		if r := s.requests[id]; r.StudentID == studentID && r.Status == market.RequestPending {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) DecideRequest(_ context.Context, id market.RequestID, outcome market.RequestStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return fmt.Errorf("request %s: %w", id, market.ErrNotFound)
	}
	if r.Status != market.RequestPending {
		return market.ErrVersionConflict
	}
	r.Status = outcome
	r.Version++
	s.requests[id] = r
	return nil
}

func (s *Store) ListRequestsByStudent(_ context.Context, studentID market.UserID) ([]market.TokenRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []market.TokenRequest
	for i := len(s.requestSeq) - 1; i >= 0; i-- {
		if r := s.requests[s.requestSeq[i]]; r.StudentID == studentID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *Store) ListRequests(_ context.Context) ([]market.TokenRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]market.TokenRequest, 0, len(s.requestSeq))
	for i := len(s.requestSeq) - 1; i >= 0; i-- {
		out = append(out, s.requests[s.requestSeq[i]])
	}
	return out, nil
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func dedupKey(recipient market.UserID, key string) string {
	return string(recipient) + "\x00" + key
}

func (s *Store) AppendNotification(_ context.Context, n *market.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.DedupKey != "" {
		k := dedupKey(n.RecipientID, n.DedupKey)
		if s.dedup[k] {
			return market.ErrDuplicateNotification
		}
		s.dedup[k] = true
	}
	s.notifications = append(s.notifications, *n)
	return nil
}

func (s *Store) ListNotifications(_ context.Context, recipient market.UserID, limit int) ([]market.Notification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []market.Notification
	for i := len(s.notifications) - 1; i >= 0; i-- {
		if s.notifications[i].RecipientID != recipient {
			continue
		}
		out = append(out, s.notifications[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *Store) MarkRead(_ context.Context, id market.NotificationID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			s.notifications[i].Read = true
			return nil
		}
	}
	return fmt.Errorf("notification %s: %w", id, market.ErrNotFound)
}

func (s *Store) MarkAllRead(_ context.Context, recipient market.UserID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		if s.notifications[i].RecipientID == recipient {
			s.notifications[i].Read = true
		}
	}
	return nil
}
