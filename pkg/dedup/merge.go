package dedup

import (
	"errors"
	"fmt"

	"github.com/hexleaf/prodex/pkg/product"
)

// MergeStrategy selects how a duplicate group collapses into one record.
type MergeStrategy string

const (
	// StrategyLatest keeps the most recently extracted product.
	StrategyLatest MergeStrategy = "latest"
	// StrategyMostComplete keeps the product with the most filled fields.
	StrategyMostComplete MergeStrategy = "most_complete"
	// StrategyCombine starts from the most complete product and fills its
	// gaps from the others.
	StrategyCombine MergeStrategy = "combine"
)

// ErrEmptyGroup is returned when a merge is requested for no products.
var ErrEmptyGroup = errors.New("cannot merge an empty product group")

// Merge collapses a duplicate group per the strategy.
func Merge(group []*product.ProductData, strategy MergeStrategy) (*product.ProductData, error) {
	if len(group) == 0 {
		return nil, ErrEmptyGroup
	}
	if len(group) == 1 {
		return group[0], nil
	}

	switch strategy {
	case StrategyLatest:
		latest := group[0]
		for _, p := range group[1:] {
			if p.ExtractedAt.After(latest.ExtractedAt) {
				latest = p
			}
		}
		return latest, nil

	case StrategyMostComplete:
		return mostComplete(group), nil

	case StrategyCombine:
		return combine(group), nil

	default:
		return nil, fmt.Errorf("unknown merge strategy %q", strategy)
	}
}

func mostComplete(group []*product.ProductData) *product.ProductData {
	best := group[0]
	bestCount := best.FilledFieldCount()
	for _, p := range group[1:] {
		if count := p.FilledFieldCount(); count > bestCount {
			best, bestCount = p, count
		}
	}
	return best
}

// combine starts from a clone of the most complete product and fills its
// empty fields from the rest of the group, in group order.
func combine(group []*product.ProductData) *product.ProductData {
	merged := mostComplete(group).Clone()

	for _, p := range group {
		if p == nil {
			continue
		}
		fillString(&merged.Title, p.Title)
		fillString(&merged.Description, p.Description)
		fillString(&merged.ShortDescription, p.ShortDescription)
		fillString(&merged.Brand, p.Brand)
		fillString(&merged.Availability, p.Availability)
		fillString(&merged.SKU, p.SKU)
		fillString(&merged.UPC, p.UPC)
		fillString(&merged.EAN, p.EAN)
		fillString(&merged.ISBN, p.ISBN)
		fillString(&merged.MPN, p.MPN)
		fillString(&merged.GTIN, p.GTIN)
		fillString(&merged.ShippingInfo, p.ShippingInfo)
		fillString(&merged.Warranty, p.Warranty)
		fillString(&merged.Dimensions, p.Dimensions)
		fillString(&merged.Weight, p.Weight)
		fillString(&merged.Material, p.Material)
		fillString(&merged.Seller, p.Seller)
		fillString(&merged.ReleaseDate, p.ReleaseDate)

		if merged.Price.CurrentPrice == 0 && p.Price.CurrentPrice > 0 {
			merged.Price = p.Price
		}
		if merged.Price.Currency == "" {
			merged.Price.Currency = p.Price.Currency
		}
		if len(merged.Category) == 0 {
			merged.Category = p.Category
		}
		if len(merged.Images) == 0 {
			merged.Images = p.Images
		}
		if len(merged.Attributes) == 0 {
			merged.Attributes = p.Attributes
		}
		if len(merged.Variants) == 0 {
			merged.Variants = p.Variants
		}
		if len(merged.Reviews) == 0 {
			merged.Reviews = p.Reviews
		}
	}
	return merged
}

func fillString(dst *string, candidate string) {
	if *dst == "" {
		*dst = candidate
	}
}
