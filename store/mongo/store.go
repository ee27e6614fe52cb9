// Package mongo provides a MongoDB store implementation.
//
// Settlement methods run inside multi-document transactions, which
// requires a replica set (a single-node replica set is fine). The
// balance check-and-debit is a conditional update on balance >= amount,
// so the non-negative invariant holds even outside a transaction.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/concierge"
	"github.com/xraph/concierge/account"
	"github.com/xraph/concierge/id"
	"github.com/xraph/concierge/membership"
	"github.com/xraph/concierge/order"
	"github.com/xraph/concierge/payment"
	conciergestore "github.com/xraph/concierge/store"
)

// Collection name constants.
const (
	colAccounts    = "concierge_accounts"
	colOrders      = "concierge_orders"
	colPayments    = "concierge_payments"
	colMemberships = "concierge_memberships"
)

// Membership invariant index names, echoed back in duplicate-key errors.
const (
	idxOneActiveMembership = "concierge_memberships_one_active"
	idxOneTrialMembership  = "concierge_memberships_one_trial"
)

// compile-time interface check
var _ conciergestore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

// New wraps an existing client and database name.
func New(client *mongo.Client, database string) *Store {
	return &Store{
		client: client,
		db:     client.Database(database),
	}
}

// Connect opens a client for the given URI and wraps it in a Store.
func Connect(ctx context.Context, uri, database string) (*Store, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("concierge/mongo: connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("concierge/mongo: ping: %w", err)
	}
	return New(client, database), nil
}

// DB returns the underlying database for direct access.
func (s *Store) DB() *mongo.Database { return s.db }

// Migrate creates indexes for all concierge collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := map[string][]mongo.IndexModel{
		colOrders: {
			{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{
				Keys: bson.D{{Key: "external_ref", Value: 1}},
				Options: options.Index().SetUnique(true).
					SetPartialFilterExpression(bson.M{"external_ref": bson.M{"$exists": true}}),
			},
		},
		colPayments: {
			{Keys: bson.D{{Key: "reference", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "order_id", Value: 1}}},
		},
		colMemberships: {
			// The partial unique indexes back the per-account membership
			// invariants at the insert itself: at most one active
			// membership, at most one trial ever. insertMembership maps
			// their violations back to the matching sentinel errors.
			// Same key pattern, distinct names and filters.
			{
				Keys: bson.D{{Key: "account_id", Value: 1}},
				Options: options.Index().SetUnique(true).SetName(idxOneActiveMembership).
					SetPartialFilterExpression(bson.M{"status": string(membership.StatusActive)}),
			},
			{
				Keys: bson.D{{Key: "account_id", Value: 1}},
				Options: options.Index().SetUnique(true).SetName(idxOneTrialMembership).
					SetPartialFilterExpression(bson.M{"type": string(membership.TypeTrial)}),
			},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "expires_at", Value: 1}}},
		},
	}

	for col, models := range indexes {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("concierge/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (s *Store) Close() error {
	return s.client.Disconnect(context.Background())
}

// withTxn runs fn inside a multi-document transaction.
func (s *Store) withTxn(ctx context.Context, fn func(ctx context.Context) error) error {
	session, err := s.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	return err
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// ==================== Account Store ====================

func (s *Store) CreateAccount(ctx context.Context, a *account.Account) error {
	_, err := s.db.Collection(colAccounts).InsertOne(ctx, toAccountModel(a))
	if mongo.IsDuplicateKeyError(err) {
		return concierge.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("concierge/mongo: create account: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, accountID id.AccountID) (*account.Account, error) {
	var m accountModel
	err := s.db.Collection(colAccounts).FindOne(ctx, bson.M{"_id": accountID.String()}).Decode(&m)
	if isNoDocuments(err) {
		return nil, concierge.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("concierge/mongo: get account: %w", err)
	}
	return fromAccountModel(&m)
}

// creditAccount unconditionally adds amount to the balance.
func (s *Store) creditAccount(ctx context.Context, accountID id.AccountID, amount int64) error {
	res, err := s.db.Collection(colAccounts).UpdateOne(ctx,
		bson.M{"_id": accountID.String()},
		bson.M{
			"$inc": bson.M{"balance": amount},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return concierge.ErrAccountNotFound
	}
	return nil
}

// debitAccount subtracts amount only if the balance covers it; the
// balance filter makes the check-and-debit a single atomic operation.
func (s *Store) debitAccount(ctx context.Context, accountID id.AccountID, amount int64) error {
	res, err := s.db.Collection(colAccounts).UpdateOne(ctx,
		bson.M{"_id": accountID.String(), "balance": bson.M{"$gte": amount}},
		bson.M{
			"$inc": bson.M{"balance": -amount},
			"$set": bson.M{"updated_at": time.Now().UTC()},
		})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		// Distinguish a missing account from an underfunded one.
		n, err := s.db.Collection(colAccounts).CountDocuments(ctx, bson.M{"_id": accountID.String()})
		if err != nil {
			return err
		}
		if n == 0 {
			return concierge.ErrAccountNotFound
		}
		return concierge.ErrInsufficientFunds
	}
	return nil
}

// ==================== Order Store ====================

func (s *Store) CreateOrder(ctx context.Context, o *order.Order) error {
	_, err := s.db.Collection(colOrders).InsertOne(ctx, toOrderModel(o))
	if mongo.IsDuplicateKeyError(err) {
		return concierge.ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("concierge/mongo: create order: %w", err)
	}
	return nil
}

func (s *Store) GetOrder(ctx context.Context, orderID id.OrderID) (*order.Order, error) {
	return s.findOrder(ctx, bson.M{"_id": orderID.String()})
}

func (s *Store) GetOrderByExternalRef(ctx context.Context, ref string) (*order.Order, error) {
	return s.findOrder(ctx, bson.M{"external_ref": ref})
}

func (s *Store) findOrder(ctx context.Context, filter bson.M) (*order.Order, error) {
	var m orderModel
	err := s.db.Collection(colOrders).FindOne(ctx, filter).Decode(&m)
	if isNoDocuments(err) {
		return nil, concierge.ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("concierge/mongo: find order: %w", err)
	}
	return fromOrderModel(&m)
}

func (s *Store) ListOrders(ctx context.Context, accountID id.AccountID, opts order.ListOpts) ([]*order.Order, error) {
	filter := bson.M{"account_id": accountID.String()}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if opts.Limit > 0 {
		findOpts = findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts = findOpts.SetSkip(int64(opts.Offset))
	}

	cursor, err := s.db.Collection(colOrders).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("concierge/mongo: list orders: %w", err)
	}
	defer cursor.Close(ctx)

	result := make([]*order.Order, 0)
	for cursor.Next(ctx) {
		var m orderModel
		if err := cursor.Decode(&m); err != nil {
			return nil, err
		}
		o, err := fromOrderModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, o)
	}
	return result, cursor.Err()
}

func (s *Store) TransitionOrder(ctx context.Context, o *order.Order, from order.Status) error {
	return s.replaceOrderIfStatus(ctx, o, from)
}

// replaceOrderIfStatus rewrites the order document only when its stored
// status still matches from.
func (s *Store) replaceOrderIfStatus(ctx context.Context, o *order.Order, from order.Status) error {
	res, err := s.db.Collection(colOrders).ReplaceOne(ctx,
		bson.M{"_id": o.ID.String(), "status": string(from)},
		toOrderModel(o))
	if err != nil {
		return fmt.Errorf("concierge/mongo: transition order: %w", err)
	}
	if res.MatchedCount == 0 {
		n, err := s.db.Collection(colOrders).CountDocuments(ctx, bson.M{"_id": o.ID.String()})
		if err != nil {
			return err
		}
		if n == 0 {
			return concierge.ErrOrderNotFound
		}
		return concierge.ErrConcurrentModification
	}
	return nil
}

// ==================== Payment Store ====================

func (s *Store) GetPayment(ctx context.Context, paymentID id.PaymentID) (*payment.Payment, error) {
	return s.findPayment(ctx, bson.M{"_id": paymentID.String()})
}

func (s *Store) GetPaymentByReference(ctx context.Context, reference string) (*payment.Payment, error) {
	return s.findPayment(ctx, bson.M{"reference": reference})
}

func (s *Store) GetCompletedOrderPayment(ctx context.Context, orderID id.OrderID) (*payment.Payment, error) {
	p, err := s.findPayment(ctx, bson.M{
		"order_id": orderID.String(),
		"type":     string(payment.TypeOrderPayment),
		"status":   string(payment.StatusCompleted),
	})
	if errors.Is(err, concierge.ErrPaymentNotFound) {
		return nil, concierge.ErrNoCompletedPayment
	}
	return p, err
}

func (s *Store) findPayment(ctx context.Context, filter bson.M) (*payment.Payment, error) {
	var m paymentModel
	err := s.db.Collection(colPayments).FindOne(ctx, filter).Decode(&m)
	if isNoDocuments(err) {
		return nil, concierge.ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("concierge/mongo: find payment: %w", err)
	}
	return fromPaymentModel(&m)
}

func (s *Store) ListPayments(ctx context.Context, accountID id.AccountID, opts payment.ListOpts) ([]*payment.Payment, error) {
	filter := bson.M{"account_id": accountID.String()}
	if opts.Type != "" {
		filter["type"] = string(opts.Type)
	}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if opts.Limit > 0 {
		findOpts = findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts = findOpts.SetSkip(int64(opts.Offset))
	}

	cursor, err := s.db.Collection(colPayments).Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("concierge/mongo: list payments: %w", err)
	}
	defer cursor.Close(ctx)

	result := make([]*payment.Payment, 0)
	for cursor.Next(ctx) {
		var m paymentModel
		if err := cursor.Decode(&m); err != nil {
			return nil, err
		}
		p, err := fromPaymentModel(&m)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, cursor.Err()
}

func (s *Store) insertPayment(ctx context.Context, p *payment.Payment) error {
	_, err := s.db.Collection(colPayments).InsertOne(ctx, toPaymentModel(p))
	return err
}

// ==================== Settlement ====================

func (s *Store) SettleDeposit(ctx context.Context, pay *payment.Payment) error {
	return s.withTxn(ctx, func(ctx context.Context) error {
		if err := s.insertPayment(ctx, pay); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return concierge.ErrDuplicateReference
			}
			return err
		}
		return s.creditAccount(ctx, pay.AccountID, pay.Amount.Amount)
	})
}

func (s *Store) SettleOrderPayment(ctx context.Context, pay *payment.Payment, o *order.Order, from order.Status) error {
	return s.withTxn(ctx, func(ctx context.Context) error {
		if err := s.replaceOrderIfStatus(ctx, o, from); err != nil {
			return err
		}
		if err := s.debitAccount(ctx, pay.AccountID, pay.Amount.Amount); err != nil {
			return err
		}
		return s.insertPayment(ctx, pay)
	})
}

func (s *Store) SettleOrderRefund(ctx context.Context, pay *payment.Payment, original *payment.Payment, o *order.Order, from order.Status) error {
	return s.withTxn(ctx, func(ctx context.Context) error {
		res, err := s.db.Collection(colPayments).UpdateOne(ctx,
			bson.M{"_id": original.ID.String(), "status": string(payment.StatusCompleted)},
			bson.M{"$set": bson.M{
				"status":     string(payment.StatusRefunded),
				"updated_at": time.Now().UTC(),
			}})
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return concierge.ErrAlreadyRefunded
		}

		if err := s.replaceOrderIfStatus(ctx, o, from); err != nil {
			return err
		}
		if err := s.creditAccount(ctx, pay.AccountID, pay.Amount.Amount); err != nil {
			return err
		}
		return s.insertPayment(ctx, pay)
	})
}

func (s *Store) SettleMembershipPayment(ctx context.Context, pay *payment.Payment, m *membership.Membership) error {
	return s.withTxn(ctx, func(ctx context.Context) error {
		if err := s.expireDueMemberships(ctx, m.AccountID, m.StartedAt); err != nil {
			return err
		}
		if err := s.debitAccount(ctx, pay.AccountID, pay.Amount.Amount); err != nil {
			return err
		}
		if err := s.insertMembership(ctx, m); err != nil {
			return err
		}
		return s.insertPayment(ctx, pay)
	})
}

// ==================== Membership Store ====================

// insertMembership inserts the document and translates index
// violations: the one-active and one-trial partial indexes carry the
// per-account invariants, so racing inserts lose here rather than
// double-commit. The server names the violated index in the error.
func (s *Store) insertMembership(ctx context.Context, m *membership.Membership) error {
	_, err := s.db.Collection(colMemberships).InsertOne(ctx, toMembershipModel(m))
	if mongo.IsDuplicateKeyError(err) {
		switch {
		case strings.Contains(err.Error(), idxOneActiveMembership):
			return concierge.ErrMembershipActive
		case strings.Contains(err.Error(), idxOneTrialMembership):
			return concierge.ErrTrialAlreadyUsed
		}
		return concierge.ErrAlreadyExists
	}
	return err
}

// expireDueMemberships flips the account's due-but-still-active
// documents to expired so the one-active index only counts memberships
// that still grant access. The sweep would do the same on its next
// pass; documents expired here skip the sweep's notification.
func (s *Store) expireDueMemberships(ctx context.Context, accountID id.AccountID, now time.Time) error {
	_, err := s.db.Collection(colMemberships).UpdateMany(ctx,
		bson.M{
			"account_id": accountID.String(),
			"status":     string(membership.StatusActive),
			"expires_at": bson.M{"$lte": now},
		},
		bson.M{"$set": bson.M{
			"status":     string(membership.StatusExpired),
			"updated_at": time.Now().UTC(),
		}})
	return err
}

func (s *Store) CreateMembership(ctx context.Context, m *membership.Membership) error {
	err := s.withTxn(ctx, func(ctx context.Context) error {
		if err := s.expireDueMemberships(ctx, m.AccountID, m.StartedAt); err != nil {
			return err
		}
		return s.insertMembership(ctx, m)
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, concierge.ErrAlreadyExists),
		errors.Is(err, concierge.ErrMembershipActive),
		errors.Is(err, concierge.ErrTrialAlreadyUsed):
		return err
	default:
		return fmt.Errorf("concierge/mongo: create membership: %w", err)
	}
}

func (s *Store) GetMembership(ctx context.Context, membershipID id.MembershipID) (*membership.Membership, error) {
	return s.findMembership(ctx, bson.M{"_id": membershipID.String()}, nil)
}

func (s *Store) GetActiveMembership(ctx context.Context, accountID id.AccountID, now time.Time) (*membership.Membership, error) {
	return s.findMembership(ctx, bson.M{
		"account_id": accountID.String(),
		"status":     string(membership.StatusActive),
		"expires_at": bson.M{"$gt": now},
	}, options.FindOne().SetSort(bson.D{{Key: "expires_at", Value: -1}}))
}

func (s *Store) findMembership(ctx context.Context, filter bson.M, opts options.Lister[options.FindOneOptions]) (*membership.Membership, error) {
	var m membershipModel
	var err error
	if opts != nil {
		err = s.db.Collection(colMemberships).FindOne(ctx, filter, opts).Decode(&m)
	} else {
		err = s.db.Collection(colMemberships).FindOne(ctx, filter).Decode(&m)
	}
	if isNoDocuments(err) {
		return nil, concierge.ErrMembershipNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("concierge/mongo: find membership: %w", err)
	}
	return fromMembershipModel(&m)
}

func (s *Store) HasTrialMembership(ctx context.Context, accountID id.AccountID) (bool, error) {
	n, err := s.db.Collection(colMemberships).CountDocuments(ctx, bson.M{
		"account_id": accountID.String(),
		"type":       string(membership.TypeTrial),
	})
	return n > 0, err
}

func (s *Store) TransitionMembership(ctx context.Context, m *membership.Membership, from membership.Status) error {
	res, err := s.db.Collection(colMemberships).ReplaceOne(ctx,
		bson.M{"_id": m.ID.String(), "status": string(from)},
		toMembershipModel(m))
	if err != nil {
		return fmt.Errorf("concierge/mongo: transition membership: %w", err)
	}
	if res.MatchedCount == 0 {
		n, err := s.db.Collection(colMemberships).CountDocuments(ctx, bson.M{"_id": m.ID.String()})
		if err != nil {
			return err
		}
		if n == 0 {
			return concierge.ErrMembershipNotFound
		}
		return concierge.ErrConcurrentModification
	}
	return nil
}

func (s *Store) ExpireMemberships(ctx context.Context, now time.Time) ([]*membership.Membership, error) {
	filter := bson.M{
		"status":     string(membership.StatusActive),
		"expires_at": bson.M{"$lte": now},
	}

	cursor, err := s.db.Collection(colMemberships).Find(ctx, filter,
		options.Find().SetSort(bson.D{{Key: "expires_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("concierge/mongo: expire memberships: %w", err)
	}
	defer cursor.Close(ctx)

	expired := make([]*membership.Membership, 0)
	for cursor.Next(ctx) {
		var doc membershipModel
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}

		// Conditional per-document flip keeps the sweep idempotent under
		// concurrent sweepers: only one of them matches status=active.
		res, err := s.db.Collection(colMemberships).UpdateOne(ctx,
			bson.M{"_id": doc.ID, "status": string(membership.StatusActive)},
			bson.M{"$set": bson.M{
				"status":     string(membership.StatusExpired),
				"updated_at": time.Now().UTC(),
			}})
		if err != nil {
			return nil, err
		}
		if res.ModifiedCount == 0 {
			continue
		}

		doc.Status = string(membership.StatusExpired)
		m, err := fromMembershipModel(&doc)
		if err != nil {
			return nil, err
		}
		expired = append(expired, m)
	}
	return expired, cursor.Err()
}
