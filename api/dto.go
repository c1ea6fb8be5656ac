/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON shapes for the HTTP surface, decoupled from the domain types so the
  wire contract can evolve without touching the core. Fields are additive
  only: new optional fields may appear, existing ones never change meaning.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/bulldogs/market-core/market"
)

// =============================================================================
// USERS
// =============================================================================

type UserDTO struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	CreatedAt string `json:"created_at,omitempty"`
}

type CreateUserRequest struct {
	ID        string `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
}

type BalanceDTO struct {
	StudentID string `json:"student_id"`
	Balance   int    `json:"balance"`
}

// =============================================================================
// ITEMS
// =============================================================================

type ItemDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category"`
	ImageURL    string `json:"image_url,omitempty"`
	Quantity    int    `json:"quantity"`
	CreatedAt   string `json:"created_at,omitempty"`
}

type UpsertItemRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	ImageURL    string `json:"image_url"`
	Quantity    int    `json:"quantity"`
}

// =============================================================================
// ORDERS
// =============================================================================

type OrderLineDTO struct {
	ItemID   string `json:"item_id"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type OrderDTO struct {
	ID            string         `json:"id"`
	StudentID     string         `json:"student_id"`
	StudentEmail  string         `json:"student_email,omitempty"`
	Lines         []OrderLineDTO `json:"items"`
	Status        string         `json:"status"`
	PickupTime    string         `json:"pickup_time"`
	TokensCharged int            `json:"tokens_used"`
	CreatedAt     string         `json:"created_at"`
}

type CartLineRequest struct {
	ItemID   string `json:"item_id"`
	Quantity int    `json:"quantity"`
}

type CreateOrderRequest struct {
	Lines      []CartLineRequest `json:"items"`
	PickupTime string            `json:"pickup_time"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status"`
}

// =============================================================================
// TOKEN REQUESTS
// =============================================================================

type TokenRequestDTO struct {
	ID        string `json:"id"`
	StudentID string `json:"student_id"`
	Reason    string `json:"reason"`
	Tokens    int    `json:"tokens_requested"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

type SubmitTokenRequest struct {
	Reason string `json:"reason"`
	Tokens int    `json:"tokens_requested"`
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

type NotificationDTO struct {
	ID        string `json:"id"`
	Message   string `json:"message"`
	Category  string `json:"type"`
	Read      bool   `json:"read"`
	RelatedID string `json:"related_id,omitempty"`
	CreatedAt string `json:"created_at"`
}

// =============================================================================
// MISC
// =============================================================================

type ResetResponse struct {
	Reset int `json:"reset"`
	Quota int `json:"quota"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// =============================================================================
// MAPPERS
// =============================================================================

func toUserDTO(u *market.User) UserDTO {
	return UserDTO{
		ID:        string(u.ID),
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Role:      string(u.Role),
		CreatedAt: formatTime(u.CreatedAt),
	}
}

func toItemDTO(item *market.Item) ItemDTO {
	return ItemDTO{
		ID:          string(item.ID),
		Name:        item.Name,
		Description: item.Description,
		Category:    string(item.Category),
		ImageURL:    item.ImageURL,
		Quantity:    item.Quantity,
		CreatedAt:   formatTime(item.CreatedAt),
	}
}

func toOrderDTO(o *market.Order) OrderDTO {
	lines := make([]OrderLineDTO, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, OrderLineDTO{ItemID: string(l.ItemID), Name: l.Name, Quantity: l.Quantity})
	}
	return OrderDTO{
		ID:            string(o.ID),
		StudentID:     string(o.StudentID),
		StudentEmail:  o.StudentEmail,
		Lines:         lines,
		Status:        string(o.Status),
		PickupTime:    formatTime(o.PickupTime),
		TokensCharged: o.TokensCharged,
		CreatedAt:     formatTime(o.CreatedAt),
	}
}

func toTokenRequestDTO(r *market.TokenRequest) TokenRequestDTO {
	return TokenRequestDTO{
		ID:        string(r.ID),
		StudentID: string(r.StudentID),
		Reason:    r.Reason,
		Tokens:    r.Tokens,
		Status:    string(r.Status),
		CreatedAt: formatTime(r.CreatedAt),
	}
}

func toNotificationDTO(n *market.Notification) NotificationDTO {
	return NotificationDTO{
		ID:        string(n.ID),
		Message:   n.Message,
		Category:  string(n.Category),
		Read:      n.Read,
		RelatedID: n.RelatedID,
		CreatedAt: formatTime(n.CreatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
