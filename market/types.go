/*
Package market is the transaction core of the campus donation market.

PURPOSE:
  This package contains the domain types and services that own the market's
  real invariants: inventory counts that never go negative, token balances
  that never go negative, and orders whose reservations and charges always
  move in lockstep. Everything around it (auth screens, page rendering,
  email transport) is a collaborator, not part of this core.

KEY CONCEPTS IN THIS FILE (types.go):
  - Item: A donated good with an available quantity
  - TokenAccount: A student's spendable token balance
  - Order: A durable record of a checkout, with line-item snapshots
  - TokenRequest: An emergency request for extra tokens
  - Notification: An immutable message to a student or staff member
  - Actor: The trusted identity (id + role) attached to each call

DESIGN PRINCIPLES:
  1. Typed identifiers: ItemID, OrderID etc. cannot be mixed up silently
  2. Closed state enums with explicit transition tables, no free-form strings
  3. Versioned records: every mutable entity carries a Version used by the
     stores' conditional-update primitive
  4. Snapshots: orders copy item names at checkout time so later catalog
     edits do not rewrite history

SEE ALSO:
  - errors.go: The error taxonomy surfaced by every operation
  - store.go: Repository interfaces and the conditional-update contract
  - inventory.go, tokens.go: The two ledgers guarding the shared counters
  - order.go: The order state machine coordinating both ledgers
*/
package market

import (
	"time"
)

// =============================================================================
// LIMITS & DEFAULTS
// =============================================================================

const (
	// DefaultQuota is the token balance every student starts with and is
	// reset to each week.
	DefaultQuota = 3

	// MaxCartQuantity is the maximum total quantity across all cart lines.
	MaxCartQuantity = 3

	// Token request bounds.
	MinRequestTokens = 1
	MaxRequestTokens = 5

	// DefaultLowStockThreshold marks items that staff should restock soon.
	DefaultLowStockThreshold = 5

	// DefaultRetryAttempts bounds the conditional-update retry loop in the
	// ledgers before a Conflict is surfaced to the caller.
	DefaultRetryAttempts = 5
)

// Notification feed bounds (per recipient, newest first).
const (
	StudentFeedLimit = 20
	StaffFeedLimit   = 50
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type UserID string
type ItemID string
type OrderID string
type RequestID string
type NotificationID string

// =============================================================================
// USERS & ACTORS
// =============================================================================

type Role string

const (
	RoleStudent Role = "student"
	RoleAdmin   Role = "admin"
)

func (r Role) Valid() bool { return r == RoleStudent || r == RoleAdmin }

// User is a registered identity. Credentials are verified upstream by the
// identity provider; the core only records id, role and contact fields.
type User struct {
	ID        UserID
	FirstName string
	LastName  string
	Email     string
	Role      Role
	CreatedAt time.Time
}

// Actor is the trusted identity attached to a call at the HTTP edge.
type Actor struct {
	ID   UserID
	Role Role
}

func (a Actor) IsStaff() bool { return a.Role == RoleAdmin }

// =============================================================================
// ITEMS
// =============================================================================

type Category string

const (
	CategoryFood     Category = "food"
	CategoryClothing Category = "clothing"
	CategoryHygiene  Category = "hygiene"
	CategorySchool   Category = "school"
	CategoryOther    Category = "other"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryFood, CategoryClothing, CategoryHygiene, CategorySchool, CategoryOther:
		return true
	}
	return false
}

// Item is a donated good. Quantity is mutated only through the inventory
// ledger (orders) or staff catalog edits, never directly.
type Item struct {
	ID          ItemID
	Name        string
	Description string
	Category    Category
	ImageURL    string
	Quantity    int
	CreatedAt   time.Time
	Version     int64
}

// =============================================================================
// TOKEN ACCOUNTS
// =============================================================================

// TokenAccount holds a student's spendable balance. Balance is mutated only
// through the token ledger's debit/credit/set operations.
type TokenAccount struct {
	StudentID UserID
	Balance   int
	Version   int64
}

// =============================================================================
// ORDERS
// =============================================================================

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderReady     OrderStatus = "ready"
	OrderCompleted OrderStatus = "completed"
	OrderCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPending, OrderReady, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed.
func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderCancelled
}

// orderTransitions is the closed transition table. Anything not listed is
// rejected with ErrInvalidTransition.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending: {OrderReady, OrderCancelled},
	OrderReady:   {OrderCompleted, OrderCancelled},
}

// CanTransition reports whether from -> to is in the transition table.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// OrderLine is a snapshot of one ordered item. Name is copied at checkout
// time so catalog edits do not rewrite order history.
type OrderLine struct {
	ItemID   ItemID `json:"item_id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Order is the durable record of a checkout. TokensCharged always equals
// len(Lines): one token per distinct item.
type Order struct {
	ID            OrderID
	StudentID     UserID
	StudentEmail  string
	Lines         []OrderLine
	Status        OrderStatus
	PickupTime    time.Time
	TokensCharged int
	CreatedAt     time.Time
	Version       int64
}

// ShortID is the human-facing order reference used in notifications.
func (o *Order) ShortID() string {
	id := string(o.ID)
	if len(id) > 6 {
		return id[len(id)-6:]
	}
	return id
}

// =============================================================================
// CART
// =============================================================================

// CartLine is a proposed purchase of one item.
type CartLine struct {
	ItemID   ItemID
	Quantity int
}

// Cart is the ordered sequence of lines a student submits at checkout.
type Cart []CartLine

// TotalQuantity is the sum of requested quantities across all lines.
// The cart limit counts units; the token charge counts distinct lines.
func (c Cart) TotalQuantity() int {
	total := 0
	for _, line := range c {
		total += line.Quantity
	}
	return total
}

// =============================================================================
// TOKEN REQUESTS
// =============================================================================

type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// TokenRequest is an emergency request for extra tokens. At most one pending
// request per student may exist at a time.
type TokenRequest struct {
	ID        RequestID
	StudentID UserID
	Reason    string
	Tokens    int
	Status    RequestStatus
	CreatedAt time.Time
	Version   int64
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

type NotificationCategory string

const (
	NotifyOrder     NotificationCategory = "order"
	NotifyInventory NotificationCategory = "inventory"
	NotifyToken     NotificationCategory = "token"
	NotifySystem    NotificationCategory = "system"
)

// Notification is an immutable message to one recipient. Only the Read flag
// may change after creation. DedupKey makes a retried emit a no-op: the same
// (recipient, event) pair is never delivered twice.
type Notification struct {
	ID          NotificationID
	RecipientID UserID
	Message     string
	Category    NotificationCategory
	Read        bool
	RelatedID   string
	DedupKey    string
	CreatedAt   time.Time
}

// EventKey builds a deterministic dedup key from an entity reference and a
// transition, e.g. EventKey("order", id, "cancelled").
func EventKey(parts ...string) string {
	key := ""
	for i, p := range parts {
		if i > 0 {
			key += ":"
		}
		key += p
	}
	return key
}
