package audithook

// Action constants for audit events.
const (
	// Account actions
	ActionDepositSettled = "deposit.settled"

	// Order actions
	ActionOrderSubmitted = "order.submitted"
	ActionOrderQuoted    = "order.quoted"
	ActionOrderAccepted  = "order.accepted"
	ActionOrderPaid      = "order.paid"
	ActionOrderAdvanced  = "order.advanced"
	ActionOrderCancelled = "order.cancelled"
	ActionOrderRefunded  = "order.refunded"

	// Payment actions
	ActionPaymentSettled = "payment.settled"

	// Membership actions
	ActionMembershipStarted   = "membership.started"
	ActionMembershipCancelled = "membership.cancelled"
	ActionMembershipExpired   = "membership.expired"
)

// Resource constants for audit events.
const (
	ResourceAccount    = "account"
	ResourceOrder      = "order"
	ResourcePayment    = "payment"
	ResourceMembership = "membership"
)

// Category constants for audit events.
const (
	CategoryOrder      = "order"
	CategoryPayment    = "payment"
	CategoryMembership = "membership"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
