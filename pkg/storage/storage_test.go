package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexleaf/prodex/pkg/product"
)

func testEngine(t *testing.T, versioning bool) *Engine {
	t.Helper()
	e, err := New(Config{
		Dir:        t.TempDir(),
		StoreName:  "widgetshop",
		Versioning: versioning,
	})
	require.NoError(t, err)
	return e
}

func sample(title, sku string) *product.ProductData {
	return &product.ProductData{
		Title:             title,
		SKU:               sku,
		URL:               "https://shop.example.com/" + strings.ToLower(sku),
		Price:             product.Price{CurrentPrice: 9.99, Currency: "USD"},
		ExtractionSuccess: true,
	}
}

func TestProductID_Chain(t *testing.T) {
	e := testEngine(t, false)

	assert.Equal(t, "custom-id", e.ProductID(sample("A", "AW-100"), "custom-id"))
	assert.Equal(t, "widgetshop_AW-100", e.ProductID(sample("A", "AW-100"), ""))

	noSKU := sample("A", "")
	assert.True(t, strings.HasPrefix(e.ProductID(noSKU, ""), "url_"))
	assert.Len(t, e.ProductID(noSKU, ""), len("url_")+12)

	anon := &product.ProductData{Title: "A"}
	id := e.ProductID(anon, "")
	assert.NotEmpty(t, id)
	assert.NotEqual(t, id, e.ProductID(anon, ""), "uuid fallback must be fresh each time")
}

func TestProductID_Sanitised(t *testing.T) {
	e := testEngine(t, false)
	id := e.ProductID(sample("A", "AW 100/B"), "")
	assert.NotContains(t, id, " ")
	assert.NotContains(t, id, "/")
}

func TestSaveAndGet(t *testing.T) {
	e := testEngine(t, false)

	id, err := e.Save(sample("Alpha Widget", "AW-100"))
	require.NoError(t, err)
	assert.Equal(t, "widgetshop_AW-100", id)

	got, err := e.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "Alpha Widget", got.Title)
	assert.Equal(t, 1, got.Version, "initial save is version 1")

	// The record file is pretty-printed JSON with storage metadata.
	data, err := os.ReadFile(filepath.Join(e.config.Dir, id+".json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  \"")
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, id, raw["id"])
	meta, ok := raw["metadata"].(map[string]any)
	require.True(t, ok)
	assert.NotEmpty(t, meta["created_at"])
}

func TestSave_DuplicateRejected(t *testing.T) {
	e := testEngine(t, false)
	_, err := e.Save(sample("Alpha Widget", "AW-100"))
	require.NoError(t, err)

	_, err = e.Save(sample("Alpha Widget Again", "AW-100"))
	assert.ErrorIs(t, err, ErrDuplicateProduct)
}

func TestGet_NotFound(t *testing.T) {
	e := testEngine(t, false)
	_, err := e.Get("missing")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestUpdate_MergesAndBumpsVersion(t *testing.T) {
	e := testEngine(t, false)
	id, err := e.Save(sample("Alpha Widget", "AW-100"))
	require.NoError(t, err)

	err = e.Update(id, &product.ProductData{Brand: "WidgetCo"})
	require.NoError(t, err)

	got, err := e.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "Alpha Widget", got.Title, "unset fields must not clobber")
	assert.Equal(t, "WidgetCo", got.Brand)
	assert.Equal(t, 2, got.Version)
}

func TestUpdate_NotFound(t *testing.T) {
	e := testEngine(t, false)
	err := e.Update("missing", sample("A", "A-1"))
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestDelete(t *testing.T) {
	e := testEngine(t, false)
	id, err := e.Save(sample("Alpha Widget", "AW-100"))
	require.NoError(t, err)

	require.NoError(t, e.Delete(id))
	_, err = e.Get(id)
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.NoFileExists(t, filepath.Join(e.config.Dir, id+".json"))

	assert.ErrorIs(t, e.Delete(id), ErrProductNotFound)
}

func TestIndexSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	e1, err := New(Config{Dir: dir, StoreName: "widgetshop"})
	require.NoError(t, err)
	id, err := e1.Save(sample("Alpha Widget", "AW-100"))
	require.NoError(t, err)

	e2, err := New(Config{Dir: dir, StoreName: "widgetshop"})
	require.NoError(t, err)
	got, err := e2.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "Alpha Widget", got.Title)
	assert.Equal(t, 1, e2.Count())
}

func TestSaveBatch_AllOrNothing(t *testing.T) {
	e := testEngine(t, false)
	_, err := e.Save(sample("Existing", "AW-100"))
	require.NoError(t, err)

	_, err = e.SaveBatch([]*product.ProductData{
		sample("New One", "AW-200"),
		sample("Clash", "AW-100"),
	})
	assert.ErrorIs(t, err, ErrDuplicateProduct)
	assert.Equal(t, 1, e.Count(), "no partial writes on batch failure")

	ids, err := e.SaveBatch([]*product.ProductData{
		sample("New One", "AW-200"),
		sample("New Two", "AW-300"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"widgetshop_AW-200", "widgetshop_AW-300"}, ids)
	assert.Equal(t, 3, e.Count())
}

func TestGetBatch_ValidatesFirst(t *testing.T) {
	e := testEngine(t, false)
	id, err := e.Save(sample("Alpha Widget", "AW-100"))
	require.NoError(t, err)

	_, err = e.GetBatch([]string{id, "missing"})
	assert.ErrorIs(t, err, ErrProductNotFound)

	got, err := e.GetBatch([]string{id})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Alpha Widget", got[0].Title)
}

func TestUpdateBatchAndDeleteBatch(t *testing.T) {
	e := testEngine(t, false)
	ids, err := e.SaveBatch([]*product.ProductData{
		sample("One", "AW-1"),
		sample("Two", "AW-2"),
	})
	require.NoError(t, err)

	err = e.UpdateBatch(map[string]*product.ProductData{
		ids[0]: {Brand: "WidgetCo"},
		ids[1]: {Brand: "OtherCo"},
	})
	require.NoError(t, err)
	got, err := e.Get(ids[0])
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)

	assert.ErrorIs(t,
		e.DeleteBatch([]string{ids[0], "missing"}),
		ErrProductNotFound)
	assert.Equal(t, 2, e.Count(), "delete batch validates before removing")

	require.NoError(t, e.DeleteBatch(ids))
	assert.Equal(t, 0, e.Count())
}

func TestVersioningScenario(t *testing.T) {
	e := testEngine(t, true)
	id, err := e.Save(sample("Alpha Widget", "AW-100"))
	require.NoError(t, err)

	require.NoError(t, e.Update(id, &product.ProductData{Brand: "WidgetCo"}))
	require.NoError(t, e.Update(id, &product.ProductData{Description: "A compact widget."}))

	current, err := e.Get(id)
	require.NoError(t, err)
	assert.Equal(t, 3, current.Version)

	versions, err := e.ListVersions(id)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, versions, "initial save logs version 1, each update logs its new version")

	v1, err := e.GetVersion(id, 1)
	require.NoError(t, err)
	assert.Equal(t, "Alpha Widget", v1.Title)
	assert.Empty(t, v1.Brand, "version 1 is the state at initial save")
	v2, err := e.GetVersion(id, 2)
	require.NoError(t, err)
	assert.Equal(t, "WidgetCo", v2.Brand)
	assert.Empty(t, v2.Description)
	v3, err := e.GetVersion(id, 3)
	require.NoError(t, err)
	assert.Equal(t, "WidgetCo", v3.Brand)
	assert.Equal(t, "A compact widget.", v3.Description)

	_, err = e.GetVersion(id, 9)
	assert.ErrorIs(t, err, ErrVersionNotFound)
}

func TestVersioningScenario_BatchSaveLogsInitialVersion(t *testing.T) {
	e := testEngine(t, true)
	ids, err := e.SaveBatch([]*product.ProductData{sample("One", "AW-1")})
	require.NoError(t, err)

	versions, err := e.ListVersions(ids[0])
	require.NoError(t, err)
	assert.Equal(t, []int{1}, versions)
}

func TestList_FilterSortPaginate(t *testing.T) {
	e := testEngine(t, false)
	_, err := e.SaveBatch([]*product.ProductData{
		sample("Cherry", "AW-3"),
		sample("Apple", "AW-1"),
		sample("Banana", "AW-2"),
	})
	require.NoError(t, err)

	all, err := e.List(ListOptions{SortBy: "title"})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Apple", all[0].Title)
	assert.Equal(t, "Cherry", all[2].Title)

	desc, err := e.List(ListOptions{SortBy: "title", SortOrder: "desc"})
	require.NoError(t, err)
	assert.Equal(t, "Cherry", desc[0].Title)

	bySKU, err := e.List(ListOptions{Filters: map[string]string{"sku": "AW-2"}})
	require.NoError(t, err)
	require.Len(t, bySKU, 1)
	assert.Equal(t, "Banana", bySKU[0].Title)

	byStore, err := e.List(ListOptions{Filters: map[string]string{"store_name": "widgetshop"}})
	require.NoError(t, err)
	assert.Len(t, byStore, 3)

	page2, err := e.List(ListOptions{SortBy: "title", Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, "Cherry", page2[0].Title)

	empty, err := e.List(ListOptions{Page: 5, PageSize: 10})
	require.NoError(t, err)
	assert.Empty(t, empty)

	none, err := e.List(ListOptions{Filters: map[string]string{"sku": "nope"}})
	require.NoError(t, err)
	assert.Empty(t, none)
}
