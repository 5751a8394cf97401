package product

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Normalize converts the dynamic field map produced by an extractor into a
// ProductData. It is the single coercion point for extractor output: dotted
// keys address nested price fields, categories split on ">", numbers arrive
// as strings or json float64s, and image entries may be bare URL strings or
// {url, alt_text} maps.
func Normalize(fields map[string]any, sourceURL string) *ProductData {
	p := &ProductData{
		URL:         sourceURL,
		Source:      sourceURL,
		ExtractedAt: time.Now().UTC(),
		RawData:     fields,
	}

	for key, val := range fields {
		if val == nil {
			continue
		}
		applyField(p, key, val)
	}

	p.Images = resolveImageURLs(p.Images, sourceURL)
	p.ExtractionSuccess = p.Title != "" && p.Title != FailedTitle
	return p
}

// resolveImageURLs rewrites relative image URLs against the page URL so
// stored records always carry absolute URLs.
func resolveImageURLs(images []Image, sourceURL string) []Image {
	if len(images) == 0 || sourceURL == "" {
		return images
	}
	base, err := url.Parse(sourceURL)
	if err != nil || !base.IsAbs() {
		return images
	}
	for i, img := range images {
		ref, err := url.Parse(img.URL)
		if err != nil {
			continue
		}
		images[i].URL = base.ResolveReference(ref).String()
	}
	return images
}

func applyField(p *ProductData, key string, val any) {
	// Dotted keys address the price sub-record (e.g. "price.current_price").
	if strings.HasPrefix(key, "price.") {
		applyPriceField(&p.Price, strings.TrimPrefix(key, "price."), val)
		return
	}

	switch key {
	case "title":
		p.Title = asString(val)
	case "url":
		p.URL = asString(val)
	case "sku":
		p.SKU = asString(val)
	case "upc":
		p.UPC = asString(val)
	case "ean":
		p.EAN = asString(val)
	case "isbn":
		p.ISBN = asString(val)
	case "mpn":
		p.MPN = asString(val)
	case "gtin":
		p.GTIN = asString(val)
	case "price":
		switch v := val.(type) {
		case string:
			parsed := ParsePrice(v)
			p.Price.CurrentPrice = parsed.CurrentPrice
			if parsed.Currency != "" {
				p.Price.Currency = parsed.Currency
			}
		case map[string]any:
			for k, sub := range v {
				applyPriceField(&p.Price, k, sub)
			}
		default:
			p.Price.CurrentPrice = asFloat(val)
		}
	case "currency":
		p.Price.Currency = asString(val)
	case "description":
		p.Description = asString(val)
	case "short_description":
		p.ShortDescription = asString(val)
	case "brand":
		p.Brand = asString(val)
	case "availability":
		p.Availability = asString(val)
	case "category":
		p.Category = asCategory(val)
	case "images":
		p.Images = asImages(val)
	case "attributes":
		p.Attributes = asAttributes(val)
	case "shipping_info":
		p.ShippingInfo = asString(val)
	case "warranty":
		p.Warranty = asString(val)
	case "dimensions":
		p.Dimensions = asString(val)
	case "weight":
		p.Weight = asString(val)
	case "material":
		p.Material = asString(val)
	case "seller":
		p.Seller = asString(val)
	case "release_date":
		p.ReleaseDate = asString(val)
	}
}

func applyPriceField(pr *Price, key string, val any) {
	switch key {
	case "current_price":
		if s, ok := val.(string); ok {
			parsed := ParsePrice(s)
			pr.CurrentPrice = parsed.CurrentPrice
			if pr.Currency == "" {
				pr.Currency = parsed.Currency
			}
		} else {
			pr.CurrentPrice = asFloat(val)
		}
	case "currency":
		pr.Currency = asString(val)
	case "original_price":
		f := asFloat(val)
		if f > 0 {
			pr.OriginalPrice = &f
		}
	case "discount_percentage":
		f := asFloat(val)
		if f > 0 {
			pr.DiscountPercentage = &f
		}
	case "discount_amount":
		f := asFloat(val)
		if f > 0 {
			pr.DiscountAmount = &f
		}
	case "price_per_unit":
		pr.PricePerUnit = asString(val)
	}
}

func asString(val any) string {
	switch v := val.(type) {
	case string:
		return strings.TrimSpace(v)
	case []string:
		if len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	case []any:
		if len(v) > 0 {
			return asString(v[0])
		}
		return ""
	case fmt.Stringer:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

func asFloat(val any) float64 {
	switch v := val.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case string:
		return ParsePrice(v).CurrentPrice
	default:
		return 0
	}
}

func asCategory(val any) []string {
	var parts []string
	switch v := val.(type) {
	case string:
		parts = strings.Split(v, ">")
	case []string:
		parts = v
	case []any:
		for _, item := range v {
			parts = append(parts, asString(item))
		}
	}
	var out []string
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func asImages(val any) []Image {
	var out []Image
	add := func(item any, pos int) {
		switch v := item.(type) {
		case string:
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, Image{URL: v, Position: pos})
			}
		case map[string]any:
			img := Image{
				URL:      asString(v["url"]),
				AltText:  asString(v["alt_text"]),
				Position: pos,
			}
			if img.URL != "" {
				out = append(out, img)
			}
		case Image:
			v.Position = pos
			out = append(out, v)
		}
	}

	switch v := val.(type) {
	case string:
		add(v, 0)
	case []string:
		for i, s := range v {
			add(s, i)
		}
	case []any:
		for i, item := range v {
			add(item, i)
		}
	case []Image:
		return v
	}
	return out
}

func asAttributes(val any) []Attribute {
	var out []Attribute
	seen := make(map[string]bool)
	add := func(name, value string) {
		name = strings.TrimSpace(name)
		if name == "" || seen[strings.ToLower(name)] {
			return
		}
		seen[strings.ToLower(name)] = true
		out = append(out, Attribute{Name: name, Value: strings.TrimSpace(value)})
	}

	switch v := val.(type) {
	case map[string]any:
		for name, value := range v {
			add(name, asString(value))
		}
	case []any:
		for _, item := range v {
			if m, ok := item.(map[string]any); ok {
				add(asString(m["name"]), asString(m["value"]))
			}
		}
	case []Attribute:
		for _, attr := range v {
			add(attr.Name, attr.Value)
		}
	}
	return out
}
