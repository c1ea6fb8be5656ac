/*
Package sqlite provides the SQLite-backed implementation of the market stores.

PURPOSE:
  Production persistence for the transaction core. The same patterns carry
  to PostgreSQL with minor dialect changes: every guarded write is a single
  conditional UPDATE checked through RowsAffected, every idempotency rule
  is a unique index.

CONDITIONAL UPDATES:
  UPDATE items          SET quantity=?, version=version+1 WHERE id=? AND version=?
  UPDATE token_accounts SET balance=?,  version=version+1 WHERE student_id=? AND version=?
  UPDATE orders         SET status=?,   version=version+1 WHERE id=? AND status=?
  UPDATE token_requests SET status=?,   version=version+1 WHERE id=? AND status='pending'

  Zero rows affected means either the record is gone (ErrNotFound) or the
  guard missed (ErrVersionConflict); a follow-up existence check tells the
  two apart.

UNIQUENESS:
  - notifications(recipient_id, dedup_key): replayed emits are rejected and
    mapped to ErrDuplicateNotification
  - token_requests(student_id) WHERE status='pending': concurrent submits
    cannot create two pending requests; mapped to ErrDuplicatePending

WAL MODE:
  Opened with WAL so readers do not block behind the single writer, plus
  foreign keys on.

SEE ALSO:
  - market/store.go: Interface contracts
  - store/memory: In-memory implementation for tests
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/bulldogs/market-core/market"
)

// Store implements market.Store on SQLite.
type Store struct {
	db *sql.DB
}

var _ market.Store = (*Store)(nil)

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite allows a single writer; serializing through one connection
	// avoids SQLITE_BUSY under concurrent checkouts.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		email TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);

	CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		category TEXT NOT NULL,
		image_url TEXT NOT NULL DEFAULT '',
		quantity INTEGER NOT NULL CHECK (quantity >= 0),
		created_at TEXT NOT NULL,
		version INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS token_accounts (
		student_id TEXT PRIMARY KEY,
		balance INTEGER NOT NULL CHECK (balance >= 0),
		version INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		student_email TEXT NOT NULL DEFAULT '',
		lines_json TEXT NOT NULL,
		status TEXT NOT NULL,
		pickup_time TEXT NOT NULL,
		tokens_charged INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		version INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_orders_student
		ON orders(student_id, created_at);

	CREATE TABLE IF NOT EXISTS token_requests (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL,
		reason TEXT NOT NULL DEFAULT '',
		tokens INTEGER NOT NULL,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		version INTEGER NOT NULL
	);
	-- At most one pending request per student, enforced in the database so
	-- concurrent submits cannot both slip through.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_requests_one_pending
		ON token_requests(student_id) WHERE status = 'pending';

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		recipient_id TEXT NOT NULL,
		message TEXT NOT NULL,
		category TEXT NOT NULL,
		read_flag INTEGER NOT NULL DEFAULT 0,
		related_id TEXT,
		dedup_key TEXT,
		created_at TEXT NOT NULL
	);
	-- Idempotent delivery: one notification per (recipient, event).
	CREATE UNIQUE INDEX IF NOT EXISTS idx_notifications_dedup
		ON notifications(recipient_id, dedup_key) WHERE dedup_key IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_notifications_recipient
		ON notifications(recipient_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// HELPERS
// =============================================================================

const timeLayout = time.RFC3339Nano

func encodeTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func decodeTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// isUniqueViolation reports whether err is a unique-constraint failure on
// the named table.
func isUniqueViolation(err error, table string) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	if se.ExtendedCode != sqlite3.ErrConstraintUnique &&
		se.ExtendedCode != sqlite3.ErrConstraintPrimaryKey {
		return false
	}
	return strings.Contains(se.Error(), table)
}

// guardResult classifies a zero-row conditional update: gone or raced.
func (s *Store) guardResult(ctx context.Context, existsQuery string, key any, name string) error {
	var exists bool
	if err := s.db.QueryRowContext(ctx, existsQuery, key).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%s %v: %w", name, key, market.ErrNotFound)
	}
	return market.ErrVersionConflict
}

// =============================================================================
// USERS
// =============================================================================

func (s *Store) CreateUser(ctx context.Context, u *market.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, first_name, last_name, email, role, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		string(u.ID), u.FirstName, u.LastName, u.Email, string(u.Role), encodeTime(u.CreatedAt))
	if isUniqueViolation(err, "users") {
		return fmt.Errorf("user %q already exists", u.ID)
	}
	return err
}

func (s *Store) GetUser(ctx context.Context, id market.UserID) (*market.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, first_name, last_name, email, role, created_at FROM users WHERE id = ?`,
		string(id))

	var u market.User
	var createdAt string
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Role, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, market.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	u.CreatedAt = decodeTime(createdAt)
	return &u, nil
}

func (s *Store) ListStaff(ctx context.Context) ([]market.User, error) {
	return s.listUsers(ctx, market.RoleAdmin)
}

func (s *Store) ListStudents(ctx context.Context) ([]market.User, error) {
	return s.listUsers(ctx, market.RoleStudent)
}

func (s *Store) listUsers(ctx context.Context, role market.Role) ([]market.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, first_name, last_name, email, role, created_at
		 FROM users WHERE role = ? ORDER BY created_at`, string(role))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []market.User
	for rows.Next() {
		var u market.User
		var createdAt string
		if err := rows.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &u.Role, &createdAt); err != nil {
			return nil, err
		}
		u.CreatedAt = decodeTime(createdAt)
		out = append(out, u)
	}
	return out, rows.Err()
}

// =============================================================================
// ITEMS
// =============================================================================

func (s *Store) CreateItem(ctx context.Context, item *market.Item) error {
	if item.Version == 0 {
		item.Version = 1
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO items (id, name, description, category, image_url, quantity, created_at, version)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(item.ID), item.Name, item.Description, string(item.Category),
		item.ImageURL, item.Quantity, encodeTime(item.CreatedAt), item.Version)
	if isUniqueViolation(err, "items") {
		return fmt.Errorf("item %q already exists", item.ID)
	}
	return err
}

func (s *Store) GetItem(ctx context.Context, id market.ItemID) (*market.Item, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, category, image_url, quantity, created_at, version
		 FROM items WHERE id = ?`, string(id))

	var item market.Item
	var createdAt string
	err := row.Scan(&item.ID, &item.Name, &item.Description, &item.Category,
		&item.ImageURL, &item.Quantity, &createdAt, &item.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %s: %w", id, market.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	item.CreatedAt = decodeTime(createdAt)
	return &item, nil
}

func (s *Store) UpdateItem(ctx context.Context, item *market.Item) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE items SET name = ?, description = ?, category = ?, image_url = ?,
		        quantity = ?, version = version + 1
		 WHERE id = ? AND version = ?`,
		item.Name, item.Description, string(item.Category), item.ImageURL,
		item.Quantity, string(item.ID), item.Version)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.guardResult(ctx, `SELECT EXISTS(SELECT 1 FROM items WHERE id = ?)`, string(item.ID), "item")
	}
	return nil
}

func (s *Store) UpdateItemQuantity(ctx context.Context, id market.ItemID, expectVersion int64, quantity int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE items SET quantity = ?, version = version + 1
		 WHERE id = ? AND version = ?`,
		quantity, string(id), expectVersion)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.guardResult(ctx, `SELECT EXISTS(SELECT 1 FROM items WHERE id = ?)`, string(id), "item")
	}
	return nil
}

func (s *Store) DeleteItem(ctx context.Context, id market.ItemID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, string(id))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("item %s: %w", id, market.ErrNotFound)
	}
	return nil
}

func (s *Store) ListItems(ctx context.Context, category market.Category) ([]market.Item, error) {
	query := `SELECT id, name, description, category, image_url, quantity, created_at, version
	          FROM items`
	args := []any{}
	if category != "" {
		query += ` WHERE category = ?`
		args = append(args, string(category))
	}
	query += ` ORDER BY created_at`
	return s.queryItems(ctx, query, args...)
}

func (s *Store) LowStockItems(ctx context.Context, threshold int) ([]market.Item, error) {
	return s.queryItems(ctx,
		`SELECT id, name, description, category, image_url, quantity, created_at, version
		 FROM items WHERE quantity > 0 AND quantity <= ? ORDER BY quantity`, threshold)
}

func (s *Store) OutOfStockItems(ctx context.Context) ([]market.Item, error) {
	return s.queryItems(ctx,
		`SELECT id, name, description, category, image_url, quantity, created_at, version
		 FROM items WHERE quantity <= 0 ORDER BY created_at`)
}

func (s *Store) queryItems(ctx context.Context, query string, args ...any) ([]market.Item, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []market.Item
	for rows.Next() {
		var item market.Item
		var createdAt string
		if err := rows.Scan(&item.ID, &item.Name, &item.Description, &item.Category,
			&item.ImageURL, &item.Quantity, &createdAt, &item.Version); err != nil {
			return nil, err
		}
		item.CreatedAt = decodeTime(createdAt)
		out = append(out, item)
	}
	return out, rows.Err()
}

// =============================================================================
// TOKEN ACCOUNTS
// =============================================================================

func (s *Store) CreateAccount(ctx context.Context, studentID market.UserID, balance int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO token_accounts (student_id, balance, version) VALUES (?, ?, 1)`,
		string(studentID), balance)
	if isUniqueViolation(err, "token_accounts") {
		return fmt.Errorf("account %q already exists", studentID)
	}
	return err
}

func (s *Store) GetAccount(ctx context.Context, studentID market.UserID) (*market.TokenAccount, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT student_id, balance, version FROM token_accounts WHERE student_id = ?`,
		string(studentID))

	var acct market.TokenAccount
	err := row.Scan(&acct.StudentID, &acct.Balance, &acct.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("account %s: %w", studentID, market.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &acct, nil
}

func (s *Store) UpdateBalance(ctx context.Context, studentID market.UserID, expectVersion int64, balance int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE token_accounts SET balance = ?, version = version + 1
		 WHERE student_id = ? AND version = ?`,
		balance, string(studentID), expectVersion)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.guardResult(ctx, `SELECT EXISTS(SELECT 1 FROM token_accounts WHERE student_id = ?)`, string(studentID), "account")
	}
	return nil
}

func (s *Store) SetBalance(ctx context.Context, studentID market.UserID, balance int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE token_accounts SET balance = ?, version = version + 1 WHERE student_id = ?`,
		balance, string(studentID))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("account %s: %w", studentID, market.ErrNotFound)
	}
	return nil
}

func (s *Store) ListAccounts(ctx context.Context) ([]market.TokenAccount, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT student_id, balance, version FROM token_accounts ORDER BY student_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []market.TokenAccount
	for rows.Next() {
		var acct market.TokenAccount
		if err := rows.Scan(&acct.StudentID, &acct.Balance, &acct.Version); err != nil {
			return nil, err
		}
		out = append(out, acct)
	}
	return out, rows.Err()
}

// =============================================================================
// ORDERS
// =============================================================================

func (s *Store) CreateOrder(ctx context.Context, o *market.Order) error {
	lines, err := json.Marshal(o.Lines)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO orders (id, student_id, student_email, lines_json, status,
		                     pickup_time, tokens_charged, created_at, version)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(o.ID), string(o.StudentID), o.StudentEmail, string(lines), string(o.Status),
		encodeTime(o.PickupTime), o.TokensCharged, encodeTime(o.CreatedAt), o.Version)
	if isUniqueViolation(err, "orders") {
		return fmt.Errorf("order %q already exists", o.ID)
	}
	return err
}

func (s *Store) GetOrder(ctx context.Context, id market.OrderID) (*market.Order, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, student_id, student_email, lines_json, status, pickup_time,
		        tokens_charged, created_at, version
		 FROM orders WHERE id = ?`, string(id))

	o, err := scanOrder(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", id, market.ErrNotFound)
	}
	return o, err
}

func (s *Store) UpdateOrderStatus(ctx context.Context, id market.OrderID, from, to market.OrderStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = ?, version = version + 1
		 WHERE id = ? AND status = ?`,
		string(to), string(id), string(from))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.guardResult(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = ?)`, string(id), "order")
	}
	return nil
}

func (s *Store) ListOrdersByStudent(ctx context.Context, studentID market.UserID) ([]market.Order, error) {
	return s.queryOrders(ctx,
		`SELECT id, student_id, student_email, lines_json, status, pickup_time,
		        tokens_charged, created_at, version
		 FROM orders WHERE student_id = ? ORDER BY created_at DESC`, string(studentID))
}

func (s *Store) ListOrders(ctx context.Context) ([]market.Order, error) {
	return s.queryOrders(ctx,
		`SELECT id, student_id, student_email, lines_json, status, pickup_time,
		        tokens_charged, created_at, version
		 FROM orders ORDER BY created_at DESC`)
}

func (s *Store) queryOrders(ctx context.Context, query string, args ...any) ([]market.Order, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []market.Order
	for rows.Next() {
		o, err := scanOrder(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

func scanOrder(scan func(...any) error) (*market.Order, error) {
	var o market.Order
	var lines, pickupTime, createdAt string
	if err := scan(&o.ID, &o.StudentID, &o.StudentEmail, &lines, &o.Status,
		&pickupTime, &o.TokensCharged, &createdAt, &o.Version); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(lines), &o.Lines); err != nil {
		return nil, fmt.Errorf("decode order lines: %w", err)
	}
	o.PickupTime = decodeTime(pickupTime)
	o.CreatedAt = decodeTime(createdAt)
	return &o, nil
}

// =============================================================================
// TOKEN REQUESTS
// =============================================================================

func (s *Store) CreateRequest(ctx context.Context, r *market.TokenRequest) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO token_requests (id, student_id, reason, tokens, status, created_at, version)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(r.ID), string(r.StudentID), r.Reason, r.Tokens, string(r.Status),
		encodeTime(r.CreatedAt), r.Version)
	if err != nil && isUniqueViolation(err, "token_requests") {
		// The partial index on pending requests fired: another pending
		// request for this student already exists.
		return market.ErrDuplicatePending
	}
	return err
}

func (s *Store) GetRequest(ctx context.Context, id market.RequestID) (*market.TokenRequest, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, student_id, reason, tokens, status, created_at, version
		 FROM token_requests WHERE id = ?`, string(id))

	var r market.TokenRequest
	var createdAt string
	err := row.Scan(&r.ID, &r.StudentID, &r.Reason, &r.Tokens, &r.Status, &createdAt, &r.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("request %s: %w", id, market.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	r.CreatedAt = decodeTime(createdAt)
	return &r, nil
}

func (s *Store) HasPendingRequest(ctx context.Context, studentID market.UserID) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM token_requests WHERE student_id = ? AND status = 'pending')`,
		string(studentID)).Scan(&exists)
	return exists, err
}

func (s *Store) DecideRequest(ctx context.Context, id market.RequestID, outcome market.RequestStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE token_requests SET status = ?, version = version + 1
		 WHERE id = ? AND status = 'pending'`,
		string(outcome), string(id))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.guardResult(ctx, `SELECT EXISTS(SELECT 1 FROM token_requests WHERE id = ?)`, string(id), "request")
	}
	return nil
}

func (s *Store) ListRequestsByStudent(ctx context.Context, studentID market.UserID) ([]market.TokenRequest, error) {
	return s.queryRequests(ctx,
		`SELECT id, student_id, reason, tokens, status, created_at, version
		 FROM token_requests WHERE student_id = ? ORDER BY created_at DESC`, string(studentID))
}

func (s *Store) ListRequests(ctx context.Context) ([]market.TokenRequest, error) {
	return s.queryRequests(ctx,
		`SELECT id, student_id, reason, tokens, status, created_at, version
		 FROM token_requests ORDER BY created_at DESC`)
}

func (s *Store) queryRequests(ctx context.Context, query string, args ...any) ([]market.TokenRequest, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []market.TokenRequest
	for rows.Next() {
		var r market.TokenRequest
		var createdAt string
		if err := rows.Scan(&r.ID, &r.StudentID, &r.Reason, &r.Tokens, &r.Status, &createdAt, &r.Version); err != nil {
			return nil, err
		}
		r.CreatedAt = decodeTime(createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func (s *Store) AppendNotification(ctx context.Context, n *market.Notification) error {
	var dedup any
	if n.DedupKey != "" {
		dedup = n.DedupKey
	}
	var related any
	if n.RelatedID != "" {
		related = n.RelatedID
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, recipient_id, message, category, read_flag,
		                            related_id, dedup_key, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(n.ID), string(n.RecipientID), n.Message, string(n.Category),
		boolToInt(n.Read), related, dedup, encodeTime(n.CreatedAt))
	if err != nil && isUniqueViolation(err, "notifications") {
		return market.ErrDuplicateNotification
	}
	return err
}

func (s *Store) ListNotifications(ctx context.Context, recipient market.UserID, limit int) ([]market.Notification, error) {
	query := `SELECT id, recipient_id, message, category, read_flag, related_id, dedup_key, created_at
	          FROM notifications WHERE recipient_id = ? ORDER BY created_at DESC`
	args := []any{string(recipient)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []market.Notification
	for rows.Next() {
		var n market.Notification
		var readFlag int
		var related, dedup sql.NullString
		var createdAt string
		if err := rows.Scan(&n.ID, &n.RecipientID, &n.Message, &n.Category,
			&readFlag, &related, &dedup, &createdAt); err != nil {
			return nil, err
		}
		n.Read = readFlag != 0
		n.RelatedID = related.String
		n.DedupKey = dedup.String
		n.CreatedAt = decodeTime(createdAt)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) MarkRead(ctx context.Context, id market.NotificationID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read_flag = 1 WHERE id = ?`, string(id))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("notification %s: %w", id, market.ErrNotFound)
	}
	return nil
}

func (s *Store) MarkAllRead(ctx context.Context, recipient market.UserID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET read_flag = 1 WHERE recipient_id = ? AND read_flag = 0`,
		string(recipient))
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
