package storage

import (
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/hexleaf/prodex/internal/logger"
	"github.com/hexleaf/prodex/pkg/product"
)

// SaveBatch stores many products: an all-or-nothing duplicate check,
// parallel file writes, then one index update. Returns the assigned ids
// in input order.
func (e *Engine) SaveBatch(products []*product.ProductData) ([]string, error) {
	if len(products) == 0 {
		return nil, nil
	}

	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = e.ProductID(p, "")
	}
	if err := e.saveBatchWithIDs(ids, products); err != nil {
		return nil, err
	}
	return ids, nil
}

// saveBatchWithIDs stores products under caller-chosen ids, positionally
// matched to products.
func (e *Engine) saveBatchWithIDs(ids []string, products []*product.ProductData) error {
	if len(products) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	records := make([]*record, len(products))
	seen := make(map[string]bool, len(products))
	for i, p := range products {
		id := ids[i]
		if _, exists := e.index[id]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateProduct, id)
		}
		if seen[id] {
			return fmt.Errorf("%w: %s appears twice in batch", ErrDuplicateProduct, id)
		}
		seen[id] = true
		records[i] = newRecord(id, p)
	}

	var g errgroup.Group
	for _, rec := range records {
		g.Go(func() error {
			return e.persistRecord(rec)
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("batch save failed: %w", err)
	}

	for _, rec := range records {
		e.index[rec.ID] = rec.indexEntry(e.config.StoreName)
	}
	if err := e.writeIndexLocked(); err != nil {
		return err
	}
	logger.Debug("batch saved", "count", len(records))
	return nil
}

// GetBatch loads many products, validating every id before reading
// anything.
func (e *Engine) GetBatch(ids []string) ([]*product.ProductData, error) {
	e.mu.Lock()
	for _, id := range ids {
		if _, exists := e.index[id]; !exists {
			e.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
		}
	}
	e.mu.Unlock()

	out := make([]*product.ProductData, len(ids))
	for i, id := range ids {
		rec, err := e.readRecord(id)
		if err != nil {
			return nil, err
		}
		out[i] = &rec.ProductData
	}
	return out, nil
}

// UpdateBatch applies many merges under a single index update.
func (e *Engine) UpdateBatch(updates map[string]*product.ProductData) error {
	if len(updates) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for id := range updates {
		if _, exists := e.index[id]; !exists {
			return fmt.Errorf("%w: %s", ErrProductNotFound, id)
		}
	}
	for id, p := range updates {
		if err := e.updateLocked(id, p, false); err != nil {
			return err
		}
	}
	return e.writeIndexLocked()
}

// DeleteBatch removes many products under a single index update. Every
// id is validated first.
func (e *Engine) DeleteBatch(ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, id := range ids {
		if _, exists := e.index[id]; !exists {
			return fmt.Errorf("%w: %s", ErrProductNotFound, id)
		}
	}
	for _, id := range ids {
		if err := e.deleteLocked(id, false); err != nil {
			return err
		}
	}
	return e.writeIndexLocked()
}
