package ps

import (
	"errors"
	"fmt"
	"path"

	"github.com/nickyhof/ShopQL/core"
)

var errTransactionClosed = errors.New("transaction already committed or rolled back")

// pendingWrite is one queued change. A nil data slice deletes key, and an
// empty key with nil data deletes the whole collection.
type pendingWrite struct {
	collection string
	key        string
	data       []byte
}

func (w pendingWrite) path() string {
	return path.Join(w.collection, w.key)
}

// TransactionBuilder queues record writes and deletes so they land as one
// commit.
type TransactionBuilder struct {
	persistence *Persistence
	pending     []pendingWrite
	closed      bool
}

func (persistence *Persistence) BeginTransaction() (*TransactionBuilder, error) {
	if err := persistence.ensureInitialized(); err != nil {
		return nil, err
	}
	return &TransactionBuilder{persistence: persistence}, nil
}

func (tb *TransactionBuilder) queue(w pendingWrite) error {
	if tb.closed {
		return errTransactionClosed
	}
	tb.pending = append(tb.pending, w)
	return nil
}

// AddWrite stores data as collection/key.
func (tb *TransactionBuilder) AddWrite(collection, key string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	return tb.queue(pendingWrite{collection: collection, key: key, data: data})
}

// AddDelete removes collection/key, or the whole collection when key is
// empty.
func (tb *TransactionBuilder) AddDelete(collection, key string) error {
	return tb.queue(pendingWrite{collection: collection, key: key})
}

// Commit applies the queued changes in order as a single commit. When the
// resulting tree equals HEAD's, nothing is committed and the zero
// Transaction is returned. An empty message is replaced by a change count.
func (tb *TransactionBuilder) Commit(identity core.Identity, message string) (Transaction, error) {
	if tb.closed {
		return Transaction{}, errTransactionClosed
	}
	if len(tb.pending) == 0 {
		return Transaction{}, ErrNoChanges
	}

	p := tb.persistence
	p.mu.Lock()
	defer p.mu.Unlock()

	base, err := p.headTreeHash()
	if err != nil {
		return Transaction{}, err
	}

	changes := make([]treeChange, len(tb.pending))
	for i, w := range tb.pending {
		changes[i].Path = w.path()
		if w.data == nil {
			continue
		}
		if changes[i].Blob, err = p.writeBlob(w.data); err != nil {
			return Transaction{}, fmt.Errorf("failed to store %s: %w", w.path(), err)
		}
	}

	tree, err := p.applyChanges(base, changes)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to update tree: %w", err)
	}

	count := len(tb.pending)
	tb.Rollback()
	if tree == base {
		return Transaction{}, nil
	}

	if message == "" {
		message = fmt.Sprintf("Batch transaction: %d operation(s)", count)
	}
	txn, err := p.writeCommit(tree, identity, message)
	if err != nil {
		return Transaction{}, fmt.Errorf("failed to commit: %w", err)
	}
	if err := p.checkoutHead(); err != nil {
		return Transaction{}, fmt.Errorf("failed to check out %s: %w", txn.Id, err)
	}
	return txn, nil
}

// Rollback drops the queued changes and closes the builder.
func (tb *TransactionBuilder) Rollback() {
	tb.closed = true
	tb.pending = nil
}
