// Package sqlite provides a SQLite store implementation using the
// CGO-free modernc.org/sqlite driver.
//
// SQLite has a single writer, so the pool is pinned to one connection
// and every settlement runs as a plain transaction. Good for embedded
// and single-node deployments; use the postgres store for anything with
// real write concurrency.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/xraph/concierge"
	"github.com/xraph/concierge/account"
	"github.com/xraph/concierge/id"
	"github.com/xraph/concierge/membership"
	"github.com/xraph/concierge/order"
	"github.com/xraph/concierge/payment"
	conciergestore "github.com/xraph/concierge/store"
)

// compile-time interface check
var _ conciergestore.Store = (*Store)(nil)

// Store implements store.Store on top of a SQLite database file.
type Store struct {
	db *sql.DB
}

// New wraps an already-opened database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens (or creates) the database file at path. WAL mode keeps
// readers unblocked during settlement writes; busy_timeout waits for
// locks instead of failing immediately.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("concierge/sqlite: open %s: %w", path, err)
	}

	// SQLite allows one writer at a time; a single connection avoids
	// SQLITE_BUSY churn under concurrent settlements.
	db.SetMaxOpenConns(1)

	return &Store{db: db}, nil
}

// DB returns the underlying handle for direct access.
func (s *Store) DB() *sql.DB { return s.db }

// Migrate creates the required tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("concierge/sqlite: migration failed: %w", err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // rollback after commit is a no-op

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// isUniqueViolation matches the modernc driver's constraint error text.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// metaJSON serializes metadata for a TEXT column, NULL when empty.
func metaJSON(m map[string]string) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func scanMeta(raw sql.NullString) (map[string]string, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw.String), &m); err != nil {
		return nil, err
	}
	return m, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// ==================== Account Store ====================

func (s *Store) CreateAccount(ctx context.Context, a *account.Account) error {
	meta, err := metaJSON(a.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO concierge_accounts (id, name, balance, currency, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ID.String(), a.Name, a.Balance.Amount, a.Balance.Currency, meta,
		a.CreatedAt.UnixMilli(), a.UpdatedAt.UnixMilli())
	if isUniqueViolation(err) {
		return concierge.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetAccount(ctx context.Context, accountID id.AccountID) (*account.Account, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, balance, currency, metadata, created_at, updated_at
		FROM concierge_accounts WHERE id = ?`, accountID.String())
	return scanAccount(row)
}

func scanAccount(row rowScanner) (*account.Account, error) {
	var (
		a                    account.Account
		meta                 sql.NullString
		createdMS, updatedMS int64
	)
	err := row.Scan(&a.ID, &a.Name, &a.Balance.Amount, &a.Balance.Currency,
		&meta, &createdMS, &updatedMS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, concierge.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	if a.Metadata, err = scanMeta(meta); err != nil {
		return nil, err
	}
	a.CreatedAt = time.UnixMilli(createdMS).UTC()
	a.UpdatedAt = time.UnixMilli(updatedMS).UTC()
	return &a, nil
}

// ==================== Order Store ====================

const orderColumns = `id, account_id, status, description,
	item_cost, service_fee, shipping_estimate, total_cost, currency,
	external_ref, quoted_at, paid_at, purchased_at, inspected_at,
	shipped_at, delivered_at, cancelled_at, refunded_at,
	metadata, created_at, updated_at`

func (s *Store) CreateOrder(ctx context.Context, o *order.Order) error {
	meta, err := metaJSON(o.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO concierge_orders (`+orderColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID.String(), o.AccountID.String(), string(o.Status), o.Description,
		o.ItemCost.Amount, o.ServiceFee.Amount, o.ShippingEstimate.Amount, o.TotalCost.Amount, o.TotalCost.Currency,
		nullString(o.ExternalRef), msPtr(o.QuotedAt), msPtr(o.PaidAt), msPtr(o.PurchasedAt), msPtr(o.InspectedAt),
		msPtr(o.ShippedAt), msPtr(o.DeliveredAt), msPtr(o.CancelledAt), msPtr(o.RefundedAt),
		meta, o.CreatedAt.UnixMilli(), o.UpdatedAt.UnixMilli())
	if isUniqueViolation(err) {
		return concierge.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+` FROM concierge_orders WHERE id = ?`, orderID.String())
	return scanOrder(row)
}

func (s *Store) GetOrderByExternalRef(ctx context.Context, ref string) (*order.Order, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+orderColumns+` FROM concierge_orders WHERE external_ref = ?`, ref)
	return scanOrder(row)
}

func scanOrder(row rowScanner) (*order.Order, error) {
	var (
		o                    order.Order
		currency             string
		extRef, meta         sql.NullString
		quoted, paid         sql.NullInt64
		purchased, insp      sql.NullInt64
		shipped, delivered   sql.NullInt64
		cancelled, refund    sql.NullInt64
		createdMS, updatedMS int64
	)
	err := row.Scan(&o.ID, &o.AccountID, &o.Status, &o.Description,
		&o.ItemCost.Amount, &o.ServiceFee.Amount, &o.ShippingEstimate.Amount, &o.TotalCost.Amount, &currency,
		&extRef, &quoted, &paid, &purchased, &insp,
		&shipped, &delivered, &cancelled, &refund,
		&meta, &createdMS, &updatedMS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, concierge.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}

	o.ItemCost.Currency = currency
	o.ServiceFee.Currency = currency
	o.ShippingEstimate.Currency = currency
	o.TotalCost.Currency = currency
	o.ExternalRef = extRef.String

	o.QuotedAt = timePtr(quoted)
	o.PaidAt = timePtr(paid)
	o.PurchasedAt = timePtr(purchased)
	o.InspectedAt = timePtr(insp)
	o.ShippedAt = timePtr(shipped)
	o.DeliveredAt = timePtr(delivered)
	o.CancelledAt = timePtr(cancelled)
	o.RefundedAt = timePtr(refund)

	if o.Metadata, err = scanMeta(meta); err != nil {
		return nil, err
	}
	o.CreatedAt = time.UnixMilli(createdMS).UTC()
	o.UpdatedAt = time.UnixMilli(updatedMS).UTC()
	return &o, nil
}

func (s *Store) ListOrders(ctx context.Context, accountID id.AccountID, opts order.ListOpts) ([]*order.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM concierge_orders WHERE account_id = ?`
	args := []any{accountID.String()}

	if opts.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(opts.Status))
	}
	query += ` ORDER BY created_at DESC`
	query, args = appendPaging(query, args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*order.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, rows.Err()
}

func (s *Store) TransitionOrder(ctx context.Context, o *order.Order, from order.Status) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return updateOrderIfStatus(ctx, tx, o, from)
	})
}

func updateOrderIfStatus(ctx context.Context, tx *sql.Tx, o *order.Order, from order.Status) error {
	meta, err := metaJSON(o.Metadata)
	if err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `
		UPDATE concierge_orders SET
			status = ?, description = ?,
			item_cost = ?, service_fee = ?, shipping_estimate = ?, total_cost = ?,
			quoted_at = ?, paid_at = ?, purchased_at = ?, inspected_at = ?,
			shipped_at = ?, delivered_at = ?, cancelled_at = ?, refunded_at = ?,
			metadata = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(o.Status), o.Description,
		o.ItemCost.Amount, o.ServiceFee.Amount, o.ShippingEstimate.Amount, o.TotalCost.Amount,
		msPtr(o.QuotedAt), msPtr(o.PaidAt), msPtr(o.PurchasedAt), msPtr(o.InspectedAt),
		msPtr(o.ShippedAt), msPtr(o.DeliveredAt), msPtr(o.CancelledAt), msPtr(o.RefundedAt),
		meta, o.UpdatedAt.UnixMilli(),
		o.ID.String(), string(from))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var one int
		err := tx.QueryRowContext(ctx,
			`SELECT 1 FROM concierge_orders WHERE id = ?`, o.ID.String()).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return concierge.ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		return concierge.ErrConcurrentModification
	}
	return nil
}

// ==================== Payment Store ====================

const paymentColumns = `id, account_id, order_id, membership_id, type,
	amount, currency, status, reference, method, metadata, created_at, updated_at`

func (s *Store) GetPayment(ctx context.Context, paymentID id.PaymentID) (*payment.Payment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+paymentColumns+` FROM concierge_payments WHERE id = ?`, paymentID.String())
	return scanPayment(row)
}

func (s *Store) GetPaymentByReference(ctx context.Context, reference string) (*payment.Payment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+paymentColumns+` FROM concierge_payments WHERE reference = ?`, reference)
	return scanPayment(row)
}

func (s *Store) GetCompletedOrderPayment(ctx context.Context, orderID id.OrderID) (*payment.Payment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+paymentColumns+` FROM concierge_payments
		WHERE order_id = ? AND type = ? AND status = ?`,
		orderID.String(), string(payment.TypeOrderPayment), string(payment.StatusCompleted))
	p, err := scanPayment(row)
	if errors.Is(err, concierge.ErrPaymentNotFound) {
		return nil, concierge.ErrNoCompletedPayment
	}
	return p, err
}

func scanPayment(row rowScanner) (*payment.Payment, error) {
	var (
		p                    payment.Payment
		method, meta         sql.NullString
		createdMS, updatedMS int64
	)
	err := row.Scan(&p.ID, &p.AccountID, &p.OrderID, &p.MembershipID, &p.Type,
		&p.Amount.Amount, &p.Amount.Currency, &p.Status, &p.Reference, &method,
		&meta, &createdMS, &updatedMS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, concierge.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	p.Method = method.String
	if p.Metadata, err = scanMeta(meta); err != nil {
		return nil, err
	}
	p.CreatedAt = time.UnixMilli(createdMS).UTC()
	p.UpdatedAt = time.UnixMilli(updatedMS).UTC()
	return &p, nil
}

func (s *Store) ListPayments(ctx context.Context, accountID id.AccountID, opts payment.ListOpts) ([]*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM concierge_payments WHERE account_id = ?`
	args := []any{accountID.String()}

	if opts.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(opts.Type))
	}
	if opts.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(opts.Status))
	}
	query += ` ORDER BY created_at DESC`
	query, args = appendPaging(query, args, opts.Limit, opts.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]*payment.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func insertPayment(ctx context.Context, tx *sql.Tx, p *payment.Payment) error {
	meta, err := metaJSON(p.Metadata)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO concierge_payments (`+paymentColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID.String(), p.AccountID.String(), idOrNil(p.OrderID), idOrNil(p.MembershipID), string(p.Type),
		p.Amount.Amount, p.Amount.Currency, string(p.Status), p.Reference, nullString(p.Method),
		meta, p.CreatedAt.UnixMilli(), p.UpdatedAt.UnixMilli())
	return err
}

// ==================== Settlement ====================

// getBalance reads the balance inside tx. The single-connection pool
// means no other writer can interleave before this transaction commits.
func getBalance(ctx context.Context, tx *sql.Tx, accountID id.AccountID) (int64, error) {
	var balance int64
	err := tx.QueryRowContext(ctx,
		`SELECT balance FROM concierge_accounts WHERE id = ?`, accountID.String()).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, concierge.ErrAccountNotFound
	}
	return balance, err
}

func setBalance(ctx context.Context, tx *sql.Tx, accountID id.AccountID, balance int64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE concierge_accounts SET balance = ?, updated_at = ? WHERE id = ?`,
		balance, time.Now().UnixMilli(), accountID.String())
	return err
}

func (s *Store) SettleDeposit(ctx context.Context, pay *payment.Payment) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		balance, err := getBalance(ctx, tx, pay.AccountID)
		if err != nil {
			return err
		}
		if err := insertPayment(ctx, tx, pay); err != nil {
			if isUniqueViolation(err) {
				return concierge.ErrDuplicateReference
			}
			return err
		}
		return setBalance(ctx, tx, pay.AccountID, balance+pay.Amount.Amount)
	})
}

func (s *Store) SettleOrderPayment(ctx context.Context, pay *payment.Payment, o *order.Order, from order.Status) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		balance, err := getBalance(ctx, tx, pay.AccountID)
		if err != nil {
			return err
		}
		if balance < pay.Amount.Amount {
			return concierge.ErrInsufficientFunds
		}
		if err := updateOrderIfStatus(ctx, tx, o, from); err != nil {
			return err
		}
		if err := insertPayment(ctx, tx, pay); err != nil {
			return err
		}
		return setBalance(ctx, tx, pay.AccountID, balance-pay.Amount.Amount)
	})
}

func (s *Store) SettleOrderRefund(ctx context.Context, pay *payment.Payment, original *payment.Payment, o *order.Order, from order.Status) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		balance, err := getBalance(ctx, tx, pay.AccountID)
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE concierge_payments SET status = ?, updated_at = ?
			WHERE id = ? AND status = ?`,
			string(payment.StatusRefunded), time.Now().UnixMilli(),
			original.ID.String(), string(payment.StatusCompleted))
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return concierge.ErrAlreadyRefunded
		}

		if err := updateOrderIfStatus(ctx, tx, o, from); err != nil {
			return err
		}
		if err := insertPayment(ctx, tx, pay); err != nil {
			return err
		}
		return setBalance(ctx, tx, pay.AccountID, balance+pay.Amount.Amount)
	})
}

func (s *Store) SettleMembershipPayment(ctx context.Context, pay *payment.Payment, m *membership.Membership) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		balance, err := getBalance(ctx, tx, pay.AccountID)
		if err != nil {
			return err
		}
		if balance < pay.Amount.Amount {
			return concierge.ErrInsufficientFunds
		}
		if err := expireDueMemberships(ctx, tx, m.AccountID, m.StartedAt); err != nil {
			return err
		}
		if err := insertMembership(ctx, tx, m); err != nil {
			return err
		}
		if err := insertPayment(ctx, tx, pay); err != nil {
			return err
		}
		return setBalance(ctx, tx, pay.AccountID, balance-pay.Amount.Amount)
	})
}

// ==================== Membership Store ====================

const membershipColumns = `id, account_id, type, status, started_at, expires_at,
	amount_paid, currency, metadata, created_at, updated_at`

// insertMembership inserts the row and translates index violations:
// the one-active and one-trial partial indexes carry the per-account
// invariants, so racing inserts lose here rather than double-commit.
// SQLite names the violated index in the error text.
func insertMembership(ctx context.Context, tx *sql.Tx, m *membership.Membership) error {
	meta, err := metaJSON(m.Metadata)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO concierge_memberships (`+membershipColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID.String(), m.AccountID.String(), string(m.Type), string(m.Status),
		m.StartedAt.UnixMilli(), m.ExpiresAt.UnixMilli(),
		m.AmountPaid.Amount, m.AmountPaid.Currency, meta,
		m.CreatedAt.UnixMilli(), m.UpdatedAt.UnixMilli())
	if isUniqueViolation(err) {
		switch {
		case strings.Contains(err.Error(), "concierge_memberships_one_active"):
			return concierge.ErrMembershipActive
		case strings.Contains(err.Error(), "concierge_memberships_one_trial"):
			return concierge.ErrTrialAlreadyUsed
		}
		return concierge.ErrAlreadyExists
	}
	return err
}

// expireDueMemberships flips the account's due-but-still-active rows to
// expired so the one-active index only counts memberships that still
// grant access. The sweep would do the same on its next pass; rows
// expired here skip the sweep's notification.
func expireDueMemberships(ctx context.Context, tx *sql.Tx, accountID id.AccountID, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE concierge_memberships SET status = ?, updated_at = ?
		WHERE account_id = ? AND status = ? AND expires_at <= ?`,
		string(membership.StatusExpired), time.Now().UnixMilli(),
		accountID.String(), string(membership.StatusActive), now.UnixMilli())
	return err
}

func (s *Store) CreateMembership(ctx context.Context, m *membership.Membership) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := expireDueMemberships(ctx, tx, m.AccountID, m.StartedAt); err != nil {
			return err
		}
		return insertMembership(ctx, tx, m)
	})
}

func (s *Store) GetMembership(ctx context.Context, membershipID id.MembershipID) (*membership.Membership, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+membershipColumns+` FROM concierge_memberships WHERE id = ?`, membershipID.String())
	return scanMembership(row)
}

func (s *Store) GetActiveMembership(ctx context.Context, accountID id.AccountID, now time.Time) (*membership.Membership, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+membershipColumns+` FROM concierge_memberships
		WHERE account_id = ? AND status = ? AND expires_at > ?
		ORDER BY expires_at DESC LIMIT 1`,
		accountID.String(), string(membership.StatusActive), now.UnixMilli())
	return scanMembership(row)
}

func scanMembership(row rowScanner) (*membership.Membership, error) {
	var (
		m                    membership.Membership
		meta                 sql.NullString
		startedMS, expiresMS int64
		createdMS, updatedMS int64
	)
	err := row.Scan(&m.ID, &m.AccountID, &m.Type, &m.Status, &startedMS, &expiresMS,
		&m.AmountPaid.Amount, &m.AmountPaid.Currency, &meta, &createdMS, &updatedMS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, concierge.ErrMembershipNotFound
	}
	if err != nil {
		return nil, err
	}
	if m.Metadata, err = scanMeta(meta); err != nil {
		return nil, err
	}
	m.StartedAt = time.UnixMilli(startedMS).UTC()
	m.ExpiresAt = time.UnixMilli(expiresMS).UTC()
	m.CreatedAt = time.UnixMilli(createdMS).UTC()
	m.UpdatedAt = time.UnixMilli(updatedMS).UTC()
	return &m, nil
}

func (s *Store) HasTrialMembership(ctx context.Context, accountID id.AccountID) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM concierge_memberships WHERE account_id = ? AND type = ? LIMIT 1`,
		accountID.String(), string(membership.TypeTrial)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (s *Store) TransitionMembership(ctx context.Context, m *membership.Membership, from membership.Status) error {
	meta, err := metaJSON(m.Metadata)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE concierge_memberships SET
			status = ?, expires_at = ?, metadata = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		string(m.Status), m.ExpiresAt.UnixMilli(), meta, m.UpdatedAt.UnixMilli(),
		m.ID.String(), string(from))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var one int
		err := s.db.QueryRowContext(ctx,
			`SELECT 1 FROM concierge_memberships WHERE id = ?`, m.ID.String()).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return concierge.ErrMembershipNotFound
		}
		if err != nil {
			return err
		}
		return concierge.ErrConcurrentModification
	}
	return nil
}

func (s *Store) ExpireMemberships(ctx context.Context, now time.Time) ([]*membership.Membership, error) {
	var expired []*membership.Membership

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
			SELECT `+membershipColumns+` FROM concierge_memberships
			WHERE status = ? AND expires_at <= ?
			ORDER BY expires_at ASC`,
			string(membership.StatusActive), now.UnixMilli())
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			m, err := scanMembership(rows)
			if err != nil {
				return err
			}
			expired = append(expired, m)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		nowMS := time.Now().UnixMilli()
		for _, m := range expired {
			m.Status = membership.StatusExpired
			m.UpdatedAt = time.UnixMilli(nowMS).UTC()
			if _, err := tx.ExecContext(ctx, `
				UPDATE concierge_memberships SET status = ?, updated_at = ?
				WHERE id = ?`,
				string(membership.StatusExpired), nowMS, m.ID.String()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if expired == nil {
		expired = make([]*membership.Membership, 0)
	}
	return expired, nil
}

// ==================== helpers ====================

func appendPaging(query string, args []any, limit, offset int) (string, []any) {
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	if offset > 0 {
		if limit <= 0 {
			// SQLite requires LIMIT before OFFSET; -1 means unlimited.
			query += ` LIMIT -1`
		}
		query += ` OFFSET ?`
		args = append(args, offset)
	}
	return query, args
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func idOrNil(v id.ID) any {
	if v.IsNil() {
		return nil
	}
	return v.String()
}

func msPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UnixMilli()
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.UnixMilli(v.Int64).UTC()
	return &t
}
