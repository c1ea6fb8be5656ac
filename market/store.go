/*
store.go - Repository interfaces and the conditional-update contract

PURPOSE:
  Defines the persistence boundary of the core. Each entity gets its own
  repository interface, injected into the component that owns it; there is
  no ambient global connection.

CONDITIONAL-UPDATE CONTRACT:
  The two shared counters (item quantity, token balance) and the two
  workflow records (order status, request status) must never be written
  blind. Every mutating primitive here is guarded:

    UpdateItemQuantity(id, expectVersion, qty)   guarded on Version
    UpdateBalance(id, expectVersion, balance)    guarded on Version
    UpdateOrderStatus(id, from, to)              guarded on current status
    DecideRequest(id, outcome)                   guarded on status=pending

  A guard miss returns ErrVersionConflict. The ledgers own the retry loop;
  stores never retry internally.

IDEMPOTENT APPENDS:
  AppendNotification enforces uniqueness on (recipient, dedup key) and
  returns ErrDuplicateNotification on a replay, which the dispatcher maps
  to a silent no-op. CreateRequest enforces at most one pending request
  per student and returns ErrDuplicatePending on a race.

IMPLEMENTATIONS:
  - store/memory: mutex + version counters, used by tests and dev mode
  - store/sqlite: guarded UPDATEs checked via RowsAffected, unique indexes
    for the idempotency constraints

SEE ALSO:
  - inventory.go, tokens.go: Retry discipline around ErrVersionConflict
  - store/sqlite/sqlite.go, store/memory/memory.go
*/
package market

import "context"

// =============================================================================
// USER STORE - Identity roster (students + staff)
// =============================================================================

type UserStore interface {
	CreateUser(ctx context.Context, u *User) error
	GetUser(ctx context.Context, id UserID) (*User, error)

	// ListStaff resolves the staff roster at fan-out time. Staff added later
	// do not retroactively receive past notifications.
	ListStaff(ctx context.Context) ([]User, error)
	ListStudents(ctx context.Context) ([]User, error)
}

// =============================================================================
// ITEM STORE
// =============================================================================

type ItemStore interface {
	CreateItem(ctx context.Context, item *Item) error
	GetItem(ctx context.Context, id ItemID) (*Item, error)

	// UpdateItem writes all mutable fields guarded on item.Version and bumps
	// the version on success.
	UpdateItem(ctx context.Context, item *Item) error

	// UpdateItemQuantity is the ledger primitive: write quantity only if the
	// record is still at expectVersion.
	UpdateItemQuantity(ctx context.Context, id ItemID, expectVersion int64, quantity int) error

	DeleteItem(ctx context.Context, id ItemID) error

	// ListItems returns all items, optionally filtered by category
	// (empty category means no filter).
	ListItems(ctx context.Context, category Category) ([]Item, error)
	LowStockItems(ctx context.Context, threshold int) ([]Item, error)
	OutOfStockItems(ctx context.Context) ([]Item, error)
}

// =============================================================================
// ACCOUNT STORE - Token balances
// =============================================================================

type AccountStore interface {
	CreateAccount(ctx context.Context, studentID UserID, balance int) error
	GetAccount(ctx context.Context, studentID UserID) (*TokenAccount, error)

	// UpdateBalance is the ledger primitive: write balance only if the record
	// is still at expectVersion.
	UpdateBalance(ctx context.Context, studentID UserID, expectVersion int64, balance int) error

	// SetBalance overwrites unconditionally. Used by the weekly reset, which
	// restates the quota rather than applying a delta.
	SetBalance(ctx context.Context, studentID UserID, balance int) error

	ListAccounts(ctx context.Context) ([]TokenAccount, error)
}

// =============================================================================
// ORDER STORE
// =============================================================================

type OrderStore interface {
	CreateOrder(ctx context.Context, o *Order) error
	GetOrder(ctx context.Context, id OrderID) (*Order, error)

	// UpdateOrderStatus flips status only if the order is currently in
	// `from`. A pending->ready and a cancel racing on the same order can
	// therefore never both succeed.
	UpdateOrderStatus(ctx context.Context, id OrderID, from, to OrderStatus) error

	ListOrdersByStudent(ctx context.Context, studentID UserID) ([]Order, error)
	ListOrders(ctx context.Context) ([]Order, error)
}

// =============================================================================
// REQUEST STORE - Token requests
// =============================================================================

type RequestStore interface {
	// CreateRequest fails with ErrDuplicatePending if the student already has
	// a pending request (enforced at the store so concurrent submits cannot
	// both slip through).
	CreateRequest(ctx context.Context, r *TokenRequest) error

	GetRequest(ctx context.Context, id RequestID) (*TokenRequest, error)
	HasPendingRequest(ctx context.Context, studentID UserID) (bool, error)

	// DecideRequest flips status only if the request is still pending.
	DecideRequest(ctx context.Context, id RequestID, outcome RequestStatus) error

	ListRequestsByStudent(ctx context.Context, studentID UserID) ([]TokenRequest, error)
	ListRequests(ctx context.Context) ([]TokenRequest, error)
}

// =============================================================================
// NOTIFICATION STORE
// =============================================================================

type NotificationStore interface {
	// AppendNotification persists a notification. A non-empty DedupKey that
	// was already delivered to the same recipient returns
	// ErrDuplicateNotification.
	AppendNotification(ctx context.Context, n *Notification) error

	// ListNotifications returns the recipient's feed, newest first,
	// at most limit entries (0 means no limit).
	ListNotifications(ctx context.Context, recipient UserID, limit int) ([]Notification, error)

	// MarkRead and MarkAllRead are idempotent; re-marking is a no-op.
	MarkRead(ctx context.Context, id NotificationID) error
	MarkAllRead(ctx context.Context, recipient UserID) error
}

// =============================================================================
// COMPOSED STORE
// =============================================================================

// Store is the full persistence surface the core is wired against.
type Store interface {
	UserStore
	ItemStore
	AccountStore
	OrderStore
	RequestStore
	NotificationStore
}
