package product

import (
	"testing"
)

func TestNormalize_DottedPriceKeys(t *testing.T) {
	p := Normalize(map[string]any{
		"title":               "Widget",
		"price.current_price": "9.99",
		"price.currency":      "USD",
	}, "https://example.com/p/1")

	if !p.ExtractionSuccess {
		t.Fatal("expected extraction success")
	}
	if p.Price.CurrentPrice != 9.99 {
		t.Errorf("current price = %v, want 9.99", p.Price.CurrentPrice)
	}
	if p.Price.Currency != "USD" {
		t.Errorf("currency = %q, want USD", p.Price.Currency)
	}
	if p.Source != "https://example.com/p/1" {
		t.Errorf("source = %q", p.Source)
	}
}

func TestNormalize_PriceString(t *testing.T) {
	p := Normalize(map[string]any{
		"title": "Widget",
		"price": "€19,90",
	}, "")

	if p.Price.CurrentPrice != 19.90 {
		t.Errorf("current price = %v, want 19.90", p.Price.CurrentPrice)
	}
	if p.Price.Currency != "EUR" {
		t.Errorf("currency = %q, want EUR", p.Price.Currency)
	}
}

func TestNormalize_CategorySplit(t *testing.T) {
	p := Normalize(map[string]any{
		"title":    "Widget",
		"category": "Home > Kitchen > Gadgets",
	}, "")

	want := []string{"Home", "Kitchen", "Gadgets"}
	if len(p.Category) != len(want) {
		t.Fatalf("category = %v, want %v", p.Category, want)
	}
	for i := range want {
		if p.Category[i] != want[i] {
			t.Errorf("category[%d] = %q, want %q", i, p.Category[i], want[i])
		}
	}
}

func TestNormalize_Images(t *testing.T) {
	p := Normalize(map[string]any{
		"title": "Widget",
		"images": []any{
			"https://example.com/a.jpg",
			map[string]any{"url": "https://example.com/b.jpg", "alt_text": "side view"},
		},
	}, "")

	if len(p.Images) != 2 {
		t.Fatalf("expected 2 images, got %d", len(p.Images))
	}
	if p.Images[0].URL != "https://example.com/a.jpg" || p.Images[0].Position != 0 {
		t.Errorf("image[0] = %+v", p.Images[0])
	}
	if p.Images[1].AltText != "side view" || p.Images[1].Position != 1 {
		t.Errorf("image[1] = %+v", p.Images[1])
	}
}

func TestNormalize_ResolvesRelativeImageURLs(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"root relative", "/img/alpha.jpg", "https://shop.example.com/img/alpha.jpg"},
		{"path relative", "thumbs/alpha.jpg", "https://shop.example.com/widgets/thumbs/alpha.jpg"},
		{"protocol relative", "//cdn.example.com/alpha.jpg", "https://cdn.example.com/alpha.jpg"},
		{"already absolute", "https://media.example.com/alpha.jpg", "https://media.example.com/alpha.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Normalize(map[string]any{
				"title":  "Widget",
				"images": []any{tt.in},
			}, "https://shop.example.com/widgets/alpha")
			if len(p.Images) != 1 {
				t.Fatalf("expected 1 image, got %d", len(p.Images))
			}
			if p.Images[0].URL != tt.want {
				t.Errorf("image URL = %q, want %q", p.Images[0].URL, tt.want)
			}
		})
	}
}

func TestNormalize_AttributeNamesUnique(t *testing.T) {
	p := Normalize(map[string]any{
		"title": "Widget",
		"attributes": []any{
			map[string]any{"name": "Color", "value": "red"},
			map[string]any{"name": "color", "value": "blue"},
			map[string]any{"name": "Size", "value": "M"},
		},
	}, "")

	if len(p.Attributes) != 2 {
		t.Fatalf("expected 2 unique attributes, got %d: %v", len(p.Attributes), p.Attributes)
	}
}

func TestNormalize_MissingTitleFails(t *testing.T) {
	p := Normalize(map[string]any{"price": "9.99"}, "")
	if p.ExtractionSuccess {
		t.Error("expected extraction_success=false without a title")
	}
}

func TestFilledFieldCount(t *testing.T) {
	sparse := &ProductData{Title: "X"}
	rich := &ProductData{
		Title: "X", Brand: "Acme", SKU: "S1",
		Price:  Price{CurrentPrice: 5, Currency: "USD"},
		Images: []Image{{URL: "https://example.com/a.jpg"}},
	}
	if sparse.FilledFieldCount() >= rich.FilledFieldCount() {
		t.Errorf("sparse=%d rich=%d", sparse.FilledFieldCount(), rich.FilledFieldCount())
	}
}

func TestClone_Independent(t *testing.T) {
	orig := &ProductData{
		Title:      "X",
		Images:     []Image{{URL: "a"}},
		Attributes: []Attribute{{Name: "n", Value: "v"}},
	}
	cp := orig.Clone()
	cp.Images[0].URL = "b"
	cp.Attributes[0].Value = "changed"
	if orig.Images[0].URL != "a" || orig.Attributes[0].Value != "v" {
		t.Error("clone shares backing arrays with original")
	}
}
