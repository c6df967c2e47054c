package database

import (
	"context"

	"gorm.io/gorm"
)

// TxRunner runs a function inside a transaction bound to ctx. The function
// must use the tx handle it is given for every read and write.
type TxRunner struct {
	db *gorm.DB
}

func NewTxRunner(db *gorm.DB) *TxRunner {
	return &TxRunner{db: db}
}

func (r *TxRunner) DB() *gorm.DB {
	return r.db
}

func (r *TxRunner) InTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}
