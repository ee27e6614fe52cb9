package postgres

// migrations holds the idempotent schema statements executed by Migrate.
// Balances are stored in minor units; the CHECK constraint is the
// database-level backstop for the non-negative balance invariant.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS concierge_accounts (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		balance     BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
		currency    TEXT NOT NULL,
		metadata    JSONB,
		created_at  TIMESTAMPTZ NOT NULL,
		updated_at  TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS concierge_orders (
		id                 TEXT PRIMARY KEY,
		account_id         TEXT NOT NULL REFERENCES concierge_accounts(id),
		status             TEXT NOT NULL,
		description        TEXT NOT NULL DEFAULT '',
		item_cost          BIGINT NOT NULL DEFAULT 0,
		service_fee        BIGINT NOT NULL DEFAULT 0,
		shipping_estimate  BIGINT NOT NULL DEFAULT 0,
		total_cost         BIGINT NOT NULL DEFAULT 0,
		currency           TEXT NOT NULL,
		external_ref       TEXT,
		quoted_at          TIMESTAMPTZ,
		paid_at            TIMESTAMPTZ,
		purchased_at       TIMESTAMPTZ,
		inspected_at       TIMESTAMPTZ,
		shipped_at         TIMESTAMPTZ,
		delivered_at       TIMESTAMPTZ,
		cancelled_at       TIMESTAMPTZ,
		refunded_at        TIMESTAMPTZ,
		metadata           JSONB,
		created_at         TIMESTAMPTZ NOT NULL,
		updated_at         TIMESTAMPTZ NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_concierge_orders_account
		ON concierge_orders (account_id, created_at DESC)`,

	`CREATE UNIQUE INDEX IF NOT EXISTS idx_concierge_orders_external_ref
		ON concierge_orders (external_ref) WHERE external_ref IS NOT NULL`,

	`CREATE TABLE IF NOT EXISTS concierge_payments (
		id             TEXT PRIMARY KEY,
		account_id     TEXT NOT NULL REFERENCES concierge_accounts(id),
		order_id       TEXT,
		membership_id  TEXT,
		type           TEXT NOT NULL,
		amount         BIGINT NOT NULL,
		currency       TEXT NOT NULL,
		status         TEXT NOT NULL,
		reference      TEXT NOT NULL UNIQUE,
		method         TEXT,
		metadata       JSONB,
		created_at     TIMESTAMPTZ NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_concierge_payments_account
		ON concierge_payments (account_id, created_at DESC)`,

	`CREATE INDEX IF NOT EXISTS idx_concierge_payments_order
		ON concierge_payments (order_id) WHERE order_id IS NOT NULL`,

	`CREATE TABLE IF NOT EXISTS concierge_memberships (
		id           TEXT PRIMARY KEY,
		account_id   TEXT NOT NULL REFERENCES concierge_accounts(id),
		type         TEXT NOT NULL,
		status       TEXT NOT NULL,
		started_at   TIMESTAMPTZ NOT NULL,
		expires_at   TIMESTAMPTZ NOT NULL,
		amount_paid  BIGINT NOT NULL DEFAULT 0,
		currency     TEXT NOT NULL,
		metadata     JSONB,
		created_at   TIMESTAMPTZ NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_concierge_memberships_account
		ON concierge_memberships (account_id)`,

	`CREATE INDEX IF NOT EXISTS idx_concierge_memberships_expiry
		ON concierge_memberships (status, expires_at)`,

	// The partial unique indexes back the per-account membership
	// invariants at the insert itself: at most one active membership,
	// at most one trial ever. insertMembership maps their violations
	// back to the matching sentinel errors.
	`CREATE UNIQUE INDEX IF NOT EXISTS concierge_memberships_one_active
		ON concierge_memberships (account_id) WHERE status = 'active'`,

	`CREATE UNIQUE INDEX IF NOT EXISTS concierge_memberships_one_trial
		ON concierge_memberships (account_id) WHERE type = 'trial'`,
}
