// Package concierge provides the order, wallet, and membership engine
// for a shopping-concierge platform.
//
// Concierge is designed as a library, not a service. Import it directly
// into your Go application. It provides:
//
//   - Wallet accounts with an always-non-negative balance invariant
//   - Atomic settlement: balance delta, payment record, and status
//     change commit together or not at all
//   - Idempotent deposits keyed by a caller-supplied reference
//   - A strict order state machine from request through delivery, with
//     cancellation and fee-bearing refunds
//   - Trial and paid membership lifecycles with background expiry
//   - Lifecycle hooks for audit trails, metrics, and notifications
//
// # Quick Start
//
// Create an engine with your preferred store:
//
//	import (
//	    "github.com/xraph/concierge"
//	    "github.com/xraph/concierge/store/memory"
//	)
//
//	eng := concierge.New(memory.New(),
//	    concierge.WithRefundFee(500), // 5% refund fee
//	)
//
//	// Start the engine (migrates the store, begins background workers)
//	if err := eng.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer eng.Stop()
//
// # Core Concepts
//
// Accounts hold a wallet balance funded by deposits:
//
//	acct, _ := eng.CreateAccount(ctx, "ada")
//	eng.Deposit(ctx, acct.ID, concierge.USD(10000), "dep-2024-0001")
//
// Orders move through a strict lifecycle. The customer asks, the
// concierge quotes, the customer accepts and pays, then the concierge
// purchases, inspects, and ships:
//
//	o, _ := eng.SubmitOrder(ctx, acct.ID, order.Request{Description: "vintage camera"})
//	o, _ = eng.QuoteOrder(ctx, o.ID, quote.Quote{
//	    ItemCost:         concierge.USD(4000),
//	    ServiceFee:       concierge.USD(500),
//	    ShippingEstimate: concierge.USD(500),
//	})
//	o, _ = eng.AcceptQuote(ctx, o.ID)
//	o, _ = eng.PayOrder(ctx, o.ID)
//
// Memberships grant platform access on trial or paid plans:
//
//	m, _ := eng.StartTrial(ctx, acct.ID)
//	m, _ = eng.Subscribe(ctx, acct.ID, membership.TypePremium)
//
// # Money
//
// All monetary calculations use integer arithmetic to avoid
// floating-point precision issues. The Money type represents amounts in
// the smallest currency unit (cents for USD, pence for GBP, etc), and
// percentage fees are computed in basis points with a single rounding
// step.
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	acct_01h2xcejqtf2nbrexx3vqjhp41   // Account ID
//	order_01h2xcejqtf2nbrexx3vqjhp41  // Order ID
//	pay_01h455vb4pex5vsknk084sn02q    // Payment ID
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of entities.
package concierge
