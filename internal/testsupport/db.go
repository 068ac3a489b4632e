// Package testsupport builds in-memory databases carrying the billing schema.
package testsupport

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

var dbSeq atomic.Int64

var schema = []string{
	`CREATE TABLE transactions (
		id BIGINT PRIMARY KEY,
		ext_id TEXT,
		user_id TEXT NOT NULL,
		amount NUMERIC(14, 3) NOT NULL CHECK (amount > 0),
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE (id, type)
	)`,
	`CREATE UNIQUE INDEX ux_transactions_ext_id ON transactions(ext_id)`,
	`CREATE TABLE receipts (
		id BIGINT PRIMARY KEY,
		ext_id TEXT,
		transaction_id BIGINT REFERENCES transactions(id) ON DELETE SET NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE receipt_items (
		id BIGINT PRIMARY KEY,
		receipt_id BIGINT NOT NULL REFERENCES receipts(id),
		description VARCHAR(4096) NOT NULL,
		quantity NUMERIC(14, 3) NOT NULL,
		amount NUMERIC(14, 3) NOT NULL,
		type TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE users_films (
		id BIGINT PRIMARY KEY,
		user_id TEXT NOT NULL,
		film_id TEXT NOT NULL,
		watched BOOLEAN NOT NULL DEFAULT FALSE,
		is_active BOOLEAN NOT NULL DEFAULT FALSE,
		transaction_id BIGINT REFERENCES transactions(id) ON DELETE SET NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE (user_id, film_id)
	)`,
}

// NewDB opens an isolated in-memory sqlite database with the billing tables.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:memdb_%d_%d?mode=memory&cache=shared", time.Now().UnixNano(), dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	for _, stmt := range schema {
		if err := db.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func NewNode(t *testing.T) *snowflake.Node {
	t.Helper()

	node, err := snowflake.NewNode(10)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	return node
}

// Count runs a COUNT query and returns the result.
func Count(t *testing.T, db *gorm.DB, query string, args ...any) int64 {
	t.Helper()

	var count int64
	if err := db.Raw(query, args...).Scan(&count).Error; err != nil {
		t.Fatalf("query count: %v", err)
	}
	return count
}
