package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hexleaf/prodex/pkg/product"
)

func TestMerge_EmptyGroup(t *testing.T) {
	_, err := Merge(nil, StrategyLatest)
	assert.ErrorIs(t, err, ErrEmptyGroup)
}

func TestMerge_SingletonPassesThrough(t *testing.T) {
	p := widget("Alpha Widget")
	got, err := Merge([]*product.ProductData{p}, StrategyCombine)
	require.NoError(t, err)
	assert.Same(t, p, got)
}

func TestMerge_UnknownStrategy(t *testing.T) {
	group := []*product.ProductData{widget("A"), widget("B")}
	_, err := Merge(group, MergeStrategy("bogus"))
	assert.Error(t, err)
}

func TestMerge_Latest(t *testing.T) {
	old := widget("Alpha Widget")
	old.ExtractedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := widget("Alpha Widget v2")
	newer.ExtractedAt = time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	got, err := Merge([]*product.ProductData{newer, old}, StrategyLatest)
	require.NoError(t, err)
	assert.Same(t, newer, got)
}

func TestMerge_MostComplete(t *testing.T) {
	sparse := widget("Alpha Widget")
	rich := widget("Alpha Widget")
	rich.Description = "A compact widget."
	rich.SKU = "AW-100"
	rich.Images = []product.Image{{URL: "/img/a.jpg"}}

	got, err := Merge([]*product.ProductData{sparse, rich}, StrategyMostComplete)
	require.NoError(t, err)
	assert.Same(t, rich, got)
}

func TestMerge_CombineFillsGaps(t *testing.T) {
	base := widget("Alpha Widget")
	base.Description = "A compact widget."
	base.SKU = "AW-100"

	other := widget("Alpha Widget")
	other.Warranty = "2 years"
	other.Images = []product.Image{{URL: "/img/a.jpg"}}
	other.Category = []string{"Home", "Widgets"}

	got, err := Merge([]*product.ProductData{base, other}, StrategyCombine)
	require.NoError(t, err)

	// The base keeps its own values and gains the other's extras.
	assert.Equal(t, "A compact widget.", got.Description)
	assert.Equal(t, "AW-100", got.SKU)
	assert.Equal(t, "2 years", got.Warranty)
	assert.Len(t, got.Images, 1)
	assert.Equal(t, []string{"Home", "Widgets"}, got.Category)

	// Combine works on a clone; the inputs stay untouched.
	assert.Empty(t, base.Warranty)
}
