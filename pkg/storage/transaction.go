package storage

import (
	"errors"
	"fmt"

	"github.com/hexleaf/prodex/internal/logger"
	"github.com/hexleaf/prodex/pkg/product"
)

// ErrTransactionInactive is returned when a committed or rolled-back
// transaction is used again.
var ErrTransactionInactive = errors.New("transaction is no longer active")

// Transaction batches save, update, and delete intents and applies them
// on Commit in that order. It takes no directory lock: concurrent
// transactions touching the same id resolve as last-writer-wins at
// commit time.
type Transaction struct {
	engine *Engine
	active bool

	saves   []pendingSave
	updates map[string]*product.ProductData
	deletes []string
	cache   map[string]*product.ProductData
}

// pendingSave pins the id derived at queue time so Commit stores the
// record under the id the caller was given.
type pendingSave struct {
	id      string
	product *product.ProductData
}

// Begin starts a transaction.
func (e *Engine) Begin() *Transaction {
	return &Transaction{
		engine:  e,
		active:  true,
		updates: make(map[string]*product.ProductData),
		cache:   make(map[string]*product.ProductData),
	}
}

// Save queues a product for insertion and caches it under its derived
// id for reads within the transaction.
func (t *Transaction) Save(p *product.ProductData) (string, error) {
	if !t.active {
		return "", ErrTransactionInactive
	}
	id := t.engine.ProductID(p, "")
	t.saves = append(t.saves, pendingSave{id: id, product: p})
	t.cache[id] = p
	return id, nil
}

// Update queues a merge for an existing product.
func (t *Transaction) Update(id string, p *product.ProductData) error {
	if !t.active {
		return ErrTransactionInactive
	}
	t.updates[id] = p
	t.cache[id] = p
	return nil
}

// Delete queues a removal.
func (t *Transaction) Delete(id string) error {
	if !t.active {
		return ErrTransactionInactive
	}
	t.deletes = append(t.deletes, id)
	delete(t.cache, id)
	return nil
}

// Get reads through the transaction: pending writes shadow storage.
func (t *Transaction) Get(id string) (*product.ProductData, error) {
	if !t.active {
		return nil, ErrTransactionInactive
	}
	if p, ok := t.cache[id]; ok {
		return p, nil
	}
	for _, deleted := range t.deletes {
		if deleted == id {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
		}
	}
	return t.engine.Get(id)
}

// Commit applies the pending intents as batch operations: saves, then
// updates, then deletes. Any failure rolls the transaction back; already
// applied batches are not undone, matching last-writer-wins semantics.
func (t *Transaction) Commit() error {
	if !t.active {
		return ErrTransactionInactive
	}
	t.active = false

	if len(t.saves) > 0 {
		ids := make([]string, len(t.saves))
		products := make([]*product.ProductData, len(t.saves))
		for i, s := range t.saves {
			ids[i] = s.id
			products[i] = s.product
		}
		if err := t.engine.saveBatchWithIDs(ids, products); err != nil {
			t.discard()
			return fmt.Errorf("transaction commit failed on saves: %w", err)
		}
	}
	if len(t.updates) > 0 {
		if err := t.engine.UpdateBatch(t.updates); err != nil {
			t.discard()
			return fmt.Errorf("transaction commit failed on updates: %w", err)
		}
	}
	if len(t.deletes) > 0 {
		if err := t.engine.DeleteBatch(t.deletes); err != nil {
			t.discard()
			return fmt.Errorf("transaction commit failed on deletes: %w", err)
		}
	}

	logger.Debug("transaction committed",
		"saves", len(t.saves),
		"updates", len(t.updates),
		"deletes", len(t.deletes))
	t.discard()
	return nil
}

// Rollback discards all pending intents.
func (t *Transaction) Rollback() error {
	if !t.active {
		return ErrTransactionInactive
	}
	t.active = false
	t.discard()
	return nil
}

func (t *Transaction) discard() {
	t.saves = nil
	t.updates = nil
	t.deletes = nil
	t.cache = nil
}

// Run executes fn inside a transaction, committing on clean return and
// rolling back when fn errors.
func (e *Engine) Run(fn func(*Transaction) error) error {
	tx := e.Begin()
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, ErrTransactionInactive) {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return tx.Commit()
}
