// Package postgres provides a PostgreSQL store implementation using pgx.
//
// Settlement methods run inside a single transaction with row-level
// locks: the account row is taken FOR UPDATE before the balance check so
// the check-and-debit is atomic, and order rows commit through a
// conditional UPDATE on the expected status.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

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

// Store implements store.Store on top of a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL store from an existing pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Connect opens a pool for the given DSN and wraps it in a Store.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("concierge/postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("concierge/postgres: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Pool returns the underlying pool for direct access.
func (s *Store) Pool() *pgxpool.Pool { return s.pool }

// Migrate creates the required tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("concierge/postgres: migration failed: %w", err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// withTx runs fn inside a transaction, rolling back on error.
func (s *Store) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// isUniqueViolation reports whether err is a unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ==================== Account Store ====================

func (s *Store) CreateAccount(ctx context.Context, a *account.Account) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO concierge_accounts (id, name, balance, currency, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		a.ID, a.Name, a.Balance.Amount, a.Balance.Currency, a.Metadata, a.CreatedAt, a.UpdatedAt)
	if isUniqueViolation(err) {
		return concierge.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetAccount(ctx context.Context, accountID id.AccountID) (*account.Account, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, balance, currency, metadata, created_at, updated_at
		FROM concierge_accounts WHERE id = $1`, accountID)
	return scanAccount(row)
}

func scanAccount(row pgx.Row) (*account.Account, error) {
	var a account.Account
	err := row.Scan(&a.ID, &a.Name, &a.Balance.Amount, &a.Balance.Currency,
		&a.Metadata, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, concierge.ErrAccountNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ==================== Order Store ====================

const orderColumns = `id, account_id, status, description,
	item_cost, service_fee, shipping_estimate, total_cost, currency,
	external_ref, quoted_at, paid_at, purchased_at, inspected_at,
	shipped_at, delivered_at, cancelled_at, refunded_at,
	metadata, created_at, updated_at`

func (s *Store) CreateOrder(ctx context.Context, o *order.Order) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO concierge_orders (`+orderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		o.ID, o.AccountID, o.Status, o.Description,
		o.ItemCost.Amount, o.ServiceFee.Amount, o.ShippingEstimate.Amount, o.TotalCost.Amount, o.TotalCost.Currency,
		nullString(o.ExternalRef), o.QuotedAt, o.PaidAt, o.PurchasedAt, o.InspectedAt,
		o.ShippedAt, o.DeliveredAt, o.CancelledAt, o.RefundedAt,
		o.Metadata, o.CreatedAt, o.UpdatedAt)
	if isUniqueViolation(err) {
		return concierge.ErrAlreadyExists
	}
	return err
}

func (s *Store) GetOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM concierge_orders WHERE id = $1`, orderID)
	return scanOrder(row)
}

func (s *Store) GetOrderByExternalRef(ctx context.Context, ref string) (*order.Order, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+orderColumns+` FROM concierge_orders WHERE external_ref = $1`, ref)
	return scanOrder(row)
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var (
		o        order.Order
		currency string
		extRef   *string
	)
	err := row.Scan(&o.ID, &o.AccountID, &o.Status, &o.Description,
		&o.ItemCost.Amount, &o.ServiceFee.Amount, &o.ShippingEstimate.Amount, &o.TotalCost.Amount, &currency,
		&extRef, &o.QuotedAt, &o.PaidAt, &o.PurchasedAt, &o.InspectedAt,
		&o.ShippedAt, &o.DeliveredAt, &o.CancelledAt, &o.RefundedAt,
		&o.Metadata, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, concierge.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	o.ItemCost.Currency = currency
	o.ServiceFee.Currency = currency
	o.ShippingEstimate.Currency = currency
	o.TotalCost.Currency = currency
	if extRef != nil {
		o.ExternalRef = *extRef
	}
	return &o, nil
}

func (s *Store) ListOrders(ctx context.Context, accountID id.AccountID, opts order.ListOpts) ([]*order.Order, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + orderColumns + ` FROM concierge_orders WHERE account_id = $1`)
	args := []any{accountID}

	if opts.Status != "" {
		args = append(args, opts.Status)
		fmt.Fprintf(&sb, " AND status = $%d", len(args))
	}
	sb.WriteString(" ORDER BY created_at DESC")
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, sb.String(), args...)
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
	return s.withTx(ctx, func(tx pgx.Tx) error {
		return updateOrderIfStatus(ctx, tx, o, from)
	})
}

// updateOrderIfStatus rewrites the mutable order fields only when the
// stored status still matches from.
func updateOrderIfStatus(ctx context.Context, tx pgx.Tx, o *order.Order, from order.Status) error {
	tag, err := tx.Exec(ctx, `
		UPDATE concierge_orders SET
			status = $1, description = $2,
			item_cost = $3, service_fee = $4, shipping_estimate = $5, total_cost = $6,
			quoted_at = $7, paid_at = $8, purchased_at = $9, inspected_at = $10,
			shipped_at = $11, delivered_at = $12, cancelled_at = $13, refunded_at = $14,
			metadata = $15, updated_at = $16
		WHERE id = $17 AND status = $18`,
		o.Status, o.Description,
		o.ItemCost.Amount, o.ServiceFee.Amount, o.ShippingEstimate.Amount, o.TotalCost.Amount,
		o.QuotedAt, o.PaidAt, o.PurchasedAt, o.InspectedAt,
		o.ShippedAt, o.DeliveredAt, o.CancelledAt, o.RefundedAt,
		o.Metadata, o.UpdatedAt,
		o.ID, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM concierge_orders WHERE id = $1)`, o.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return concierge.ErrOrderNotFound
		}
		return concierge.ErrConcurrentModification
	}
	return nil
}

// ==================== Payment Store ====================

const paymentColumns = `id, account_id, order_id, membership_id, type,
	amount, currency, status, reference, method, metadata, created_at, updated_at`

func (s *Store) GetPayment(ctx context.Context, paymentID id.PaymentID) (*payment.Payment, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+paymentColumns+` FROM concierge_payments WHERE id = $1`, paymentID)
	return scanPayment(row)
}

func (s *Store) GetPaymentByReference(ctx context.Context, reference string) (*payment.Payment, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+paymentColumns+` FROM concierge_payments WHERE reference = $1`, reference)
	return scanPayment(row)
}

func (s *Store) GetCompletedOrderPayment(ctx context.Context, orderID id.OrderID) (*payment.Payment, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+paymentColumns+` FROM concierge_payments
		WHERE order_id = $1 AND type = $2 AND status = $3`,
		orderID, payment.TypeOrderPayment, payment.StatusCompleted)
	p, err := scanPayment(row)
	if errors.Is(err, concierge.ErrPaymentNotFound) {
		return nil, concierge.ErrNoCompletedPayment
	}
	return p, err
}

func scanPayment(row pgx.Row) (*payment.Payment, error) {
	var (
		p      payment.Payment
		method *string
	)
	err := row.Scan(&p.ID, &p.AccountID, &p.OrderID, &p.MembershipID, &p.Type,
		&p.Amount.Amount, &p.Amount.Currency, &p.Status, &p.Reference, &method,
		&p.Metadata, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, concierge.ErrPaymentNotFound
	}
	if err != nil {
		return nil, err
	}
	if method != nil {
		p.Method = *method
	}
	return &p, nil
}

func (s *Store) ListPayments(ctx context.Context, accountID id.AccountID, opts payment.ListOpts) ([]*payment.Payment, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + paymentColumns + ` FROM concierge_payments WHERE account_id = $1`)
	args := []any{accountID}

	if opts.Type != "" {
		args = append(args, opts.Type)
		fmt.Fprintf(&sb, " AND type = $%d", len(args))
	}
	if opts.Status != "" {
		args = append(args, opts.Status)
		fmt.Fprintf(&sb, " AND status = $%d", len(args))
	}
	sb.WriteString(" ORDER BY created_at DESC")
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if opts.Offset > 0 {
		args = append(args, opts.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, sb.String(), args...)
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

func insertPayment(ctx context.Context, tx pgx.Tx, p *payment.Payment) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO concierge_payments (`+paymentColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		p.ID, p.AccountID, p.OrderID, p.MembershipID, p.Type,
		p.Amount.Amount, p.Amount.Currency, p.Status, p.Reference, nullString(p.Method),
		p.Metadata, p.CreatedAt, p.UpdatedAt)
	return err
}

// lockBalance reads the account balance under FOR UPDATE so the
// subsequent balance write is race-free within the transaction.
func lockBalance(ctx context.Context, tx pgx.Tx, accountID id.AccountID) (int64, error) {
	var balance int64
	err := tx.QueryRow(ctx,
		`SELECT balance FROM concierge_accounts WHERE id = $1 FOR UPDATE`, accountID).Scan(&balance)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, concierge.ErrAccountNotFound
	}
	return balance, err
}

func setBalance(ctx context.Context, tx pgx.Tx, accountID id.AccountID, balance int64, now time.Time) error {
	_, err := tx.Exec(ctx,
		`UPDATE concierge_accounts SET balance = $1, updated_at = $2 WHERE id = $3`,
		balance, now, accountID)
	return err
}

// ==================== Settlement ====================

func (s *Store) SettleDeposit(ctx context.Context, pay *payment.Payment) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		balance, err := lockBalance(ctx, tx, pay.AccountID)
		if err != nil {
			return err
		}
		if err := insertPayment(ctx, tx, pay); err != nil {
			if isUniqueViolation(err) {
				return concierge.ErrDuplicateReference
			}
			return err
		}
		return setBalance(ctx, tx, pay.AccountID, balance+pay.Amount.Amount, time.Now().UTC())
	})
}

func (s *Store) SettleOrderPayment(ctx context.Context, pay *payment.Payment, o *order.Order, from order.Status) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		balance, err := lockBalance(ctx, tx, pay.AccountID)
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
		return setBalance(ctx, tx, pay.AccountID, balance-pay.Amount.Amount, time.Now().UTC())
	})
}

func (s *Store) SettleOrderRefund(ctx context.Context, pay *payment.Payment, original *payment.Payment, o *order.Order, from order.Status) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		balance, err := lockBalance(ctx, tx, pay.AccountID)
		if err != nil {
			return err
		}

		// Flip the original to refunded only if it is still completed;
		// zero rows means a concurrent refund won.
		tag, err := tx.Exec(ctx, `
			UPDATE concierge_payments SET status = $1, updated_at = $2
			WHERE id = $3 AND status = $4`,
			payment.StatusRefunded, time.Now().UTC(), original.ID, payment.StatusCompleted)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return concierge.ErrAlreadyRefunded
		}

		if err := updateOrderIfStatus(ctx, tx, o, from); err != nil {
			return err
		}
		if err := insertPayment(ctx, tx, pay); err != nil {
			return err
		}
		return setBalance(ctx, tx, pay.AccountID, balance+pay.Amount.Amount, time.Now().UTC())
	})
}

func (s *Store) SettleMembershipPayment(ctx context.Context, pay *payment.Payment, m *membership.Membership) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		balance, err := lockBalance(ctx, tx, pay.AccountID)
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
		return setBalance(ctx, tx, pay.AccountID, balance-pay.Amount.Amount, time.Now().UTC())
	})
}

// ==================== Membership Store ====================

const membershipColumns = `id, account_id, type, status, started_at, expires_at,
	amount_paid, currency, metadata, created_at, updated_at`

// insertMembership inserts the row and translates index violations:
// the one-active and one-trial partial indexes carry the per-account
// invariants, so racing inserts lose here rather than double-commit.
func insertMembership(ctx context.Context, tx pgx.Tx, m *membership.Membership) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO concierge_memberships (`+membershipColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		m.ID, m.AccountID, m.Type, m.Status, m.StartedAt, m.ExpiresAt,
		m.AmountPaid.Amount, m.AmountPaid.Currency, m.Metadata, m.CreatedAt, m.UpdatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case "concierge_memberships_one_active":
			return concierge.ErrMembershipActive
		case "concierge_memberships_one_trial":
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
func expireDueMemberships(ctx context.Context, tx pgx.Tx, accountID id.AccountID, now time.Time) error {
	_, err := tx.Exec(ctx, `
		UPDATE concierge_memberships SET status = $1, updated_at = $2
		WHERE account_id = $3 AND status = $4 AND expires_at <= $5`,
		membership.StatusExpired, time.Now().UTC(), accountID, membership.StatusActive, now)
	return err
}

func (s *Store) CreateMembership(ctx context.Context, m *membership.Membership) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if err := expireDueMemberships(ctx, tx, m.AccountID, m.StartedAt); err != nil {
			return err
		}
		return insertMembership(ctx, tx, m)
	})
}

func (s *Store) GetMembership(ctx context.Context, membershipID id.MembershipID) (*membership.Membership, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+membershipColumns+` FROM concierge_memberships WHERE id = $1`, membershipID)
	return scanMembership(row)
}

func (s *Store) GetActiveMembership(ctx context.Context, accountID id.AccountID, now time.Time) (*membership.Membership, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+membershipColumns+` FROM concierge_memberships
		WHERE account_id = $1 AND status = $2 AND expires_at > $3
		ORDER BY expires_at DESC LIMIT 1`,
		accountID, membership.StatusActive, now)
	return scanMembership(row)
}

func scanMembership(row pgx.Row) (*membership.Membership, error) {
	var m membership.Membership
	err := row.Scan(&m.ID, &m.AccountID, &m.Type, &m.Status, &m.StartedAt, &m.ExpiresAt,
		&m.AmountPaid.Amount, &m.AmountPaid.Currency, &m.Metadata, &m.CreatedAt, &m.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, concierge.ErrMembershipNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) HasTrialMembership(ctx context.Context, accountID id.AccountID) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM concierge_memberships WHERE account_id = $1 AND type = $2
		)`, accountID, membership.TypeTrial).Scan(&exists)
	return exists, err
}

func (s *Store) TransitionMembership(ctx context.Context, m *membership.Membership, from membership.Status) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE concierge_memberships SET
			status = $1, expires_at = $2, metadata = $3, updated_at = $4
		WHERE id = $5 AND status = $6`,
		m.Status, m.ExpiresAt, m.Metadata, m.UpdatedAt, m.ID, from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM concierge_memberships WHERE id = $1)`, m.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return concierge.ErrMembershipNotFound
		}
		return concierge.ErrConcurrentModification
	}
	return nil
}

func (s *Store) ExpireMemberships(ctx context.Context, now time.Time) ([]*membership.Membership, error) {
	rows, err := s.pool.Query(ctx, `
		UPDATE concierge_memberships SET status = $1, updated_at = $2
		WHERE status = $3 AND expires_at <= $4
		RETURNING `+membershipColumns,
		membership.StatusExpired, now.UTC(), membership.StatusActive, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	expired := make([]*membership.Membership, 0)
	for rows.Next() {
		m, err := scanMembership(rows)
		if err != nil {
			return nil, err
		}
		expired = append(expired, m)
	}
	return expired, rows.Err()
}

// nullString maps "" to SQL NULL for optional text columns.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
