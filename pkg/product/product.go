// Package product defines the canonical extraction output model.
package product

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
)

// Image is a single product image. Position preserves the on-page ordering
// when the source exposes one.
type Image struct {
	URL      string `json:"url" validate:"required"`
	AltText  string `json:"alt_text,omitempty"`
	Position int    `json:"position,omitempty"`
}

// Attribute is a name/value pair describing the product. Attribute names are
// unique within a product after merging.
type Attribute struct {
	Name  string `json:"name" validate:"required"`
	Value string `json:"value"`
}

// Variant is a purchasable variation of a product. Variants carry only their
// own attributes, price, image and availability; they are not nested products.
type Variant struct {
	Attributes   []Attribute `json:"attributes,omitempty"`
	Price        *Price      `json:"price,omitempty"`
	Image        *Image      `json:"image,omitempty"`
	Availability string      `json:"availability,omitempty"`
}

// Review is a customer review attached to a product.
type Review struct {
	ReviewerName     string     `json:"reviewer_name,omitempty"`
	Rating           *float64   `json:"rating,omitempty"`
	Title            string     `json:"title,omitempty"`
	Content          string     `json:"content,omitempty"`
	Date             *time.Time `json:"date,omitempty"`
	VerifiedPurchase bool       `json:"verified_purchase,omitempty"`
}

// Price holds the parsed pricing block of a product.
type Price struct {
	CurrentPrice       float64  `json:"current_price" validate:"gte=0"`
	Currency           string   `json:"currency" validate:"required"`
	OriginalPrice      *float64 `json:"original_price,omitempty"`
	DiscountPercentage *float64 `json:"discount_percentage,omitempty"`
	DiscountAmount     *float64 `json:"discount_amount,omitempty"`
	PricePerUnit       string   `json:"price_per_unit,omitempty"`
}

// ProductData is the canonical result of one product extraction.
type ProductData struct {
	// Identity
	Title string `json:"title" validate:"required"`
	URL   string `json:"url,omitempty"`
	SKU   string `json:"sku,omitempty"`
	UPC   string `json:"upc,omitempty"`
	EAN   string `json:"ean,omitempty"`
	ISBN  string `json:"isbn,omitempty"`
	MPN   string `json:"mpn,omitempty"`
	GTIN  string `json:"gtin,omitempty"`

	// Pricing
	Price Price `json:"price"`

	// Media
	Images []Image `json:"images,omitempty" validate:"omitempty,dive"`

	// Descriptive
	Description      string   `json:"description,omitempty"`
	ShortDescription string   `json:"short_description,omitempty"`
	Brand            string   `json:"brand,omitempty"`
	Category         []string `json:"category,omitempty"`
	Availability     string   `json:"availability,omitempty"`

	// Structured extras
	Attributes []Attribute `json:"attributes,omitempty" validate:"omitempty,dive"`
	Variants   []Variant   `json:"variants,omitempty"`
	Reviews    []Review    `json:"reviews,omitempty"`

	// Metadata
	ShippingInfo string `json:"shipping_info,omitempty"`
	Warranty     string `json:"warranty,omitempty"`
	Dimensions   string `json:"dimensions,omitempty"`
	Weight       string `json:"weight,omitempty"`
	Material     string `json:"material,omitempty"`
	Seller       string `json:"seller,omitempty"`
	ReleaseDate  string `json:"release_date,omitempty"`

	// Bookkeeping
	ExtractedAt       time.Time      `json:"extracted_at"`
	Source            string         `json:"source,omitempty"`
	RawData           map[string]any `json:"raw_data,omitempty"`
	ExtractionSuccess bool           `json:"extraction_success"`
	Version           int            `json:"version,omitempty"`
}

// FailedTitle is the title carried by a ProductData produced by a strategy
// that could not extract anything usable.
const FailedTitle = "Extraction Failed"

// Failed returns the shared failure value for a strategy that could not
// produce a result. It records the source URL and extraction time so failed
// attempts remain traceable.
func Failed(url string) *ProductData {
	return &ProductData{
		Title:             FailedTitle,
		URL:               url,
		Source:            url,
		ExtractedAt:       time.Now().UTC(),
		ExtractionSuccess: false,
	}
}

var structValidator = validator.New()

// Validate checks the record against the completeness rules a finished
// product is expected to meet: a title, a non-negative price with a
// currency, and well-formed image and attribute entries. Extraction never
// calls this; it is for callers that want to gate storage or export on
// complete records.
func (p *ProductData) Validate() error {
	if err := structValidator.Struct(p); err != nil {
		return fmt.Errorf("invalid product record: %w", err)
	}
	return nil
}

// Identifiers returns the product's non-empty identifier fields keyed by
// their canonical lower-case names.
func (p *ProductData) Identifiers() map[string]string {
	ids := make(map[string]string)
	for name, val := range map[string]string{
		"sku":  p.SKU,
		"upc":  p.UPC,
		"ean":  p.EAN,
		"isbn": p.ISBN,
		"mpn":  p.MPN,
		"gtin": p.GTIN,
	} {
		if val != "" {
			ids[name] = val
		}
	}
	return ids
}

// FilledFieldCount counts the non-empty top-level fields. Used by the
// deduplicator's most-complete merge strategy.
func (p *ProductData) FilledFieldCount() int {
	count := 0
	for _, s := range []string{
		p.Title, p.URL, p.SKU, p.UPC, p.EAN, p.ISBN, p.MPN, p.GTIN,
		p.Description, p.ShortDescription, p.Brand, p.Availability,
		p.ShippingInfo, p.Warranty, p.Dimensions, p.Weight, p.Material,
		p.Seller, p.ReleaseDate, p.Price.Currency, p.Price.PricePerUnit,
	} {
		if s != "" {
			count++
		}
	}
	if p.Price.CurrentPrice > 0 {
		count++
	}
	if p.Price.OriginalPrice != nil {
		count++
	}
	if len(p.Images) > 0 {
		count++
	}
	if len(p.Category) > 0 {
		count++
	}
	if len(p.Attributes) > 0 {
		count++
	}
	if len(p.Variants) > 0 {
		count++
	}
	if len(p.Reviews) > 0 {
		count++
	}
	return count
}

// Clone returns a deep copy of the product.
func (p *ProductData) Clone() *ProductData {
	out := *p
	if p.Price.OriginalPrice != nil {
		v := *p.Price.OriginalPrice
		out.Price.OriginalPrice = &v
	}
	if p.Price.DiscountPercentage != nil {
		v := *p.Price.DiscountPercentage
		out.Price.DiscountPercentage = &v
	}
	if p.Price.DiscountAmount != nil {
		v := *p.Price.DiscountAmount
		out.Price.DiscountAmount = &v
	}
	out.Images = append([]Image(nil), p.Images...)
	out.Category = append([]string(nil), p.Category...)
	out.Attributes = append([]Attribute(nil), p.Attributes...)
	out.Variants = append([]Variant(nil), p.Variants...)
	out.Reviews = append([]Review(nil), p.Reviews...)
	if p.RawData != nil {
		out.RawData = make(map[string]any, len(p.RawData))
		for k, v := range p.RawData {
			out.RawData[k] = v
		}
	}
	return &out
}
