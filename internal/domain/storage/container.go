package storage

import (
	"context"
	"errors"

	"trekmap/internal/domain/accesscontrol"
	"trekmap/internal/domain/places"
	"trekmap/internal/domain/pushtokens"
	"trekmap/internal/domain/reviewhistory"
	"trekmap/internal/domain/reviewimages"
	"trekmap/internal/domain/reviews"
	"trekmap/internal/domain/userpoints"
	"trekmap/internal/domain/users"
	"trekmap/internal/ledger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Container struct {
	pool          *pgxpool.Pool // nil in handler tests; the tx helpers then refuse to run
	Users         users.Store
	Places        places.Store
	Reviews       reviews.Store
	History       reviewhistory.Store
	UserPoints    userpoints.Store
	ReviewImages  reviewimages.Store
	PushTokens    pushtokens.Store
	AccessControl accesscontrol.Store
}

func NewContainer(db *pgxpool.Pool) *Container {
	return &Container{
		pool:          db,
		Users:         users.NewRepository(db),
		Places:        places.NewRepository(db),
		Reviews:       reviews.NewRepository(db),
		History:       reviewhistory.NewRepository(db),
		UserPoints:    userpoints.NewRepository(db),
		ReviewImages:  reviewimages.NewRepository(db),
		PushTokens:    pushtokens.NewRepository(db),
		AccessControl: accesscontrol.NewRepository(db),
	}
}

// ModerationTx is the tx-scoped set of repos a review status change runs on.
type ModerationTx struct {
	Reviews reviews.StatusStore
	History reviewhistory.Store
	Ledger  ledger.Creditor
}

// SubmissionTx is the tx-scoped set of repos a user's review write runs on.
type SubmissionTx struct {
	Reviews reviews.Store
	Images  reviewimages.Store
}

// WithModerationTx runs a review status change atomically.
func (c *Container) WithModerationTx(ctx context.Context, fn func(m *ModerationTx) error) error {
	return c.withTx(ctx, func(tx pgx.Tx) error {
		return fn(&ModerationTx{
			Reviews: reviews.NewRepository(tx),
			History: reviewhistory.NewRepository(tx),
			Ledger:  ledger.New(users.NewRepository(tx), userpoints.NewRepository(tx)),
		})
	})
}

// WithSubmissionTx runs a review write and its image enqueue atomically.
func (c *Container) WithSubmissionTx(ctx context.Context, fn func(s *SubmissionTx) error) error {
	return c.withTx(ctx, func(tx pgx.Tx) error {
		return fn(&SubmissionTx{
			Reviews: reviews.NewRepository(tx),
			Images:  reviewimages.NewRepository(tx),
		})
	})
}

func (c *Container) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	if c.pool == nil {
		return errors.New("storage: container has no pool, build it with NewContainer")
	}

	tx, err := c.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}

	defer func() {
		_ = tx.Rollback(ctx) // no-op after Commit
	}()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
