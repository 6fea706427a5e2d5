package transaction

import (
	"context"

	"gorm.io/gorm"
)

type TransactionContextKey struct{}

func WithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, TransactionContextKey{}, tx)
}

type Database struct {
	db *gorm.DB
}

// GetTx returns the transaction bound to ctx, or the root handle.
func (t *Database) GetTx(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(TransactionContextKey{}).(*gorm.DB); ok {
		return tx
	}
	return t.db
}

// Query returns a context-bound session for ctx.
func (t *Database) Query(ctx context.Context) *gorm.DB {
	return t.GetTx(ctx).WithContext(ctx)
}

// Transaction runs fn in a transaction. Nested calls join the outer transaction.
func (t *Database) Transaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(TransactionContextKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(WithTx(ctx, tx))
	})
}

func (t *Database) DB() *gorm.DB {
	return t.db
}

func NewDatabase(db *gorm.DB) *Database {
	return &Database{db}
}
