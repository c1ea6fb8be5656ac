/*
core.go - Wiring for the transaction core

PURPOSE:
  Builds the component graph in one place: ledgers over their stores,
  services over the ledgers, the dispatcher underneath everything. The
  HTTP layer and tests construct a Core and pick the pieces they need.
*/
package market

import "go.uber.org/zap"

// Options tunes the core. Zero values fall back to the defaults in types.go.
type Options struct {
	Quota         int // weekly token quota
	RetryAttempts int // conditional-update retry budget
}

// Core holds the fully wired transaction core.
type Core struct {
	Store     Store
	Notify    *Dispatcher
	Inventory *InventoryLedger
	Tokens    *TokenLedger
	Validator *CartValidator
	Orders    *OrderService
	Requests  *TokenRequestService
	Registry  *Registry
	Catalog   *Catalog
	Reset     *WeeklyReset
	Quota     int
}

// NewCore wires every component over the given store.
func NewCore(store Store, log *zap.Logger, opts Options) *Core {
	if opts.Quota <= 0 {
		opts.Quota = DefaultQuota
	}

	notify := NewDispatcher(store, store, log)
	inventory := NewInventoryLedger(store, notify, log, opts.RetryAttempts)
	tokens := NewTokenLedger(store, log, opts.RetryAttempts)
	validator := NewCartValidator(store)

	return &Core{
		Store:     store,
		Notify:    notify,
		Inventory: inventory,
		Tokens:    tokens,
		Validator: validator,
		Orders:    NewOrderService(store, store, validator, inventory, tokens, notify, log),
		Requests:  NewTokenRequestService(store, store, tokens, notify, log),
		Registry:  NewRegistry(store, store, notify, log, opts.Quota),
		Catalog:   NewCatalog(store, inventory, notify, log),
		Reset:     NewWeeklyReset(store, tokens, notify, log),
		Quota:     opts.Quota,
	}
}
