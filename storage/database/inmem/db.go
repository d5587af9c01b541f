// Package inmemdb keeps every table in memory. It backs the tests and the -inmem dev mode.
package inmemdb

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/NoheilaRamdani/sae401/core"
	"github.com/NoheilaRamdani/sae401/core/assignment"
	"github.com/NoheilaRamdani/sae401/core/group"
	"github.com/NoheilaRamdani/sae401/core/subject"
	"github.com/NoheilaRamdani/sae401/core/suggestion"
	"github.com/NoheilaRamdani/sae401/core/user"
)

type (
	table[T any] struct {
		rows map[string]T
	}

	membership struct {
		UserID  string
		GroupID string
	}

	// DB guards every table with one lock. A unit of work holds it exclusively from start to
	// commit or rollback, so no other caller reads its partial writes or writes under it.
	DB struct {
		mu sync.RWMutex

		user       *table[user.User]
		group      *table[group.Group]
		membership *table[membership]
		delegate   *table[group.Delegate]
		subject    *table[subject.Subject]
		assignment *table[assignment.Assignment]
		suggestion *table[suggestion.Suggestion]
	}

	snapshot struct {
		user       map[string]user.User
		group      map[string]group.Group
		membership map[string]membership
		delegate   map[string]group.Delegate
		subject    map[string]subject.Subject
		assignment map[string]assignment.Assignment
		suggestion map[string]suggestion.Suggestion
	}

	txKey struct{}
)

var _ core.Transactor = (*DB)(nil) // interface compliance check

func newTable[T any]() *table[T] {
	return &table[T]{rows: make(map[string]T)}
}

func Open() *DB {
	return &DB{
		user:       newTable[user.User](),
		group:      newTable[group.Group](),
		membership: newTable[membership](),
		delegate:   newTable[group.Delegate](),
		subject:    newTable[subject.Subject](),
		assignment: newTable[assignment.Assignment](),
		suggestion: newTable[suggestion.Suggestion](),
	}
}

func (t *table[T]) copyRows() map[string]T {
	rows := make(map[string]T, len(t.rows))
	for k, v := range t.rows {
		rows[k] = v
	}
	return rows
}

func (t *table[T]) restore(rows map[string]T) {
	t.rows = rows
}

// Rows never share slices with callers: repositories copy on write, so a shallow copy of the
// tables is a consistent snapshot.
func (db *DB) snapshot() snapshot {
	return snapshot{
		user:       db.user.copyRows(),
		group:      db.group.copyRows(),
		membership: db.membership.copyRows(),
		delegate:   db.delegate.copyRows(),
		subject:    db.subject.copyRows(),
		assignment: db.assignment.copyRows(),
		suggestion: db.suggestion.copyRows(),
	}
}

func (db *DB) restore(s snapshot) {
	db.user.restore(s.user)
	db.group.restore(s.group)
	db.membership.restore(s.membership)
	db.delegate.restore(s.delegate)
	db.subject.restore(s.subject)
	db.assignment.restore(s.assignment)
	db.suggestion.restore(s.suggestion)
}

func (db *DB) inTx(ctx context.Context) bool {
	return ctx.Value(txKey{}) == db
}

// lock takes the store for writing and returns the matching unlock.
// Inside WithinTx the unit of work already holds it.
func (db *DB) lock(ctx context.Context) func() {
	if db.inTx(ctx) {
		return func() {}
	}
	db.mu.Lock()
	return db.mu.Unlock
}

// rlock is lock for readers.
func (db *DB) rlock(ctx context.Context) func() {
	if db.inTx(ctx) {
		return func() {}
	}
	db.mu.RLock()
	return db.mu.RUnlock
}

// WithinTx runs units of work one at a time, restoring every table when fn fails or panics.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if db.inTx(ctx) {
		return fn(ctx)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	snap := db.snapshot()
	committed := false
	defer func() {
		if !committed {
			db.restore(snap)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, db)); err != nil {
		return err
	}
	committed = true
	return nil
}

func newID() string {
	return uuid.New().String()
}

func copyStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append(make([]string, 0, len(s)), s...)
}

func membershipKey(userID, groupID string) string {
	return userID + "|" + groupID
}
