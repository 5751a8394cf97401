package storage

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexleaf/prodex/pkg/product"
)

func TestTransaction_CommitAppliesInOrder(t *testing.T) {
	e := testEngine(t, false)
	existingID, err := e.Save(sample("Existing", "AW-100"))
	require.NoError(t, err)
	doomedID, err := e.Save(sample("Doomed", "AW-999"))
	require.NoError(t, err)

	tx := e.Begin()
	newID, err := tx.Save(sample("Fresh", "AW-200"))
	require.NoError(t, err)
	require.NoError(t, tx.Update(existingID, &product.ProductData{Brand: "WidgetCo"}))
	require.NoError(t, tx.Delete(doomedID))

	// Nothing is visible in the engine before commit.
	assert.False(t, e.Has(newID))
	preUpdate, err := e.Get(existingID)
	require.NoError(t, err)
	assert.Empty(t, preUpdate.Brand)

	require.NoError(t, tx.Commit())

	assert.True(t, e.Has(newID))
	updated, err := e.Get(existingID)
	require.NoError(t, err)
	assert.Equal(t, "WidgetCo", updated.Brand)
	assert.False(t, e.Has(doomedID))
}

func TestTransaction_SaveKeepsQueuedIDThroughCommit(t *testing.T) {
	e := testEngine(t, false)

	// No SKU and no URL: the id falls through to a generated UUID, which
	// must be the one the record is stored under.
	tx := e.Begin()
	id, err := tx.Save(&product.ProductData{Title: "Anonymous Widget", ExtractionSuccess: true})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	got, err := e.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "Anonymous Widget", got.Title)
	assert.Equal(t, 1, e.Count())
}

func TestTransaction_ReadThrough(t *testing.T) {
	e := testEngine(t, false)
	storedID, err := e.Save(sample("Stored", "AW-100"))
	require.NoError(t, err)

	tx := e.Begin()
	defer func() { _ = tx.Rollback() }()

	pendingID, err := tx.Save(sample("Pending", "AW-200"))
	require.NoError(t, err)

	// Pending saves shadow the engine; untouched ids fall through.
	pending, err := tx.Get(pendingID)
	require.NoError(t, err)
	assert.Equal(t, "Pending", pending.Title)

	stored, err := tx.Get(storedID)
	require.NoError(t, err)
	assert.Equal(t, "Stored", stored.Title)

	require.NoError(t, tx.Delete(storedID))
	_, err = tx.Get(storedID)
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestTransaction_RollbackDiscardsEverything(t *testing.T) {
	e := testEngine(t, false)
	existingID, err := e.Save(sample("Existing", "AW-100"))
	require.NoError(t, err)

	tx := e.Begin()
	pendingID, err := tx.Save(sample("Pending", "AW-200"))
	require.NoError(t, err)
	require.NoError(t, tx.Update(existingID, &product.ProductData{Brand: "WidgetCo"}))
	require.NoError(t, tx.Delete(existingID))

	require.NoError(t, tx.Rollback())

	assert.False(t, e.Has(pendingID))
	got, err := e.Get(existingID)
	require.NoError(t, err)
	assert.Empty(t, got.Brand)
	assert.Equal(t, 1, e.Count())
}

func TestTransaction_InactiveAfterCommit(t *testing.T) {
	e := testEngine(t, false)

	tx := e.Begin()
	_, err := tx.Save(sample("One", "AW-1"))
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	_, err = tx.Save(sample("Two", "AW-2"))
	assert.ErrorIs(t, err, ErrTransactionInactive)
	assert.ErrorIs(t, tx.Update("x", &product.ProductData{}), ErrTransactionInactive)
	assert.ErrorIs(t, tx.Delete("x"), ErrTransactionInactive)
	_, err = tx.Get("x")
	assert.ErrorIs(t, err, ErrTransactionInactive)
	assert.ErrorIs(t, tx.Commit(), ErrTransactionInactive)
	assert.ErrorIs(t, tx.Rollback(), ErrTransactionInactive)
}

func TestTransaction_CommitFailureDiscards(t *testing.T) {
	e := testEngine(t, false)
	_, err := e.Save(sample("Existing", "AW-100"))
	require.NoError(t, err)

	tx := e.Begin()
	_, err = tx.Save(sample("Clash", "AW-100"))
	require.NoError(t, err)
	require.NoError(t, tx.Update("missing", &product.ProductData{Brand: "X"}))

	err = tx.Commit()
	assert.ErrorIs(t, err, ErrDuplicateProduct)
	assert.Equal(t, 1, e.Count())
	assert.ErrorIs(t, tx.Commit(), ErrTransactionInactive)
}

func TestRun_CommitsOnSuccess(t *testing.T) {
	e := testEngine(t, false)

	var id string
	err := e.Run(func(tx *Transaction) error {
		var err error
		id, err = tx.Save(sample("Alpha Widget", "AW-100"))
		return err
	})
	require.NoError(t, err)
	assert.True(t, e.Has(id))
}

func TestRun_RollsBackOnError(t *testing.T) {
	e := testEngine(t, false)
	boom := errors.New("boom")

	err := e.Run(func(tx *Transaction) error {
		if _, err := tx.Save(sample("Alpha Widget", "AW-100")); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, e.Count())
}
