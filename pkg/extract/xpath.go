package extract

import (
	"context"
	"strings"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"

	"github.com/hexleaf/prodex/internal/logger"
	"github.com/hexleaf/prodex/pkg/product"
)

// XPathSpec tells the XPath extractor how to read one field.
type XPathSpec struct {
	Expression string
	Attribute  string // "" or "text" reads text content
	Array      bool
}

// XPathExtractor reads fields with XPath expressions, same contract as
// the CSS extractor.
type XPathExtractor struct {
	expressions map[string]XPathSpec
}

// NewXPath creates an XPath extractor.
func NewXPath(expressions map[string]XPathSpec) *XPathExtractor {
	return &XPathExtractor{expressions: expressions}
}

func (e *XPathExtractor) Name() string { return "xpath" }

// ExtractFromHTML evaluates each expression and normalises the collected
// fields.
func (e *XPathExtractor) ExtractFromHTML(ctx context.Context, htmlContent, sourceURL string) *product.ProductData {
	doc, err := htmlquery.Parse(strings.NewReader(htmlContent))
	if err != nil {
		logger.Warn("xpath extraction failed to parse HTML", "url", sourceURL, "error", err)
		return product.Failed(sourceURL)
	}

	fields := make(map[string]any)
	for name, spec := range e.expressions {
		if err := ctx.Err(); err != nil {
			return product.Failed(sourceURL)
		}

		expr, err := xpath.Compile(spec.Expression)
		if err != nil {
			logger.Warn("invalid xpath expression skipped",
				"field", name,
				"expression", spec.Expression,
				"error", err)
			continue
		}

		nodes := collectNodes(expr, doc)
		if len(nodes) == 0 {
			continue
		}
		if name == "images" {
			fields[name] = imagesFromNodes(nodes, spec.Attribute)
			continue
		}
		if spec.Array {
			var values []any
			for _, node := range nodes {
				if v := nodeValue(node, spec.Attribute); v != "" {
					values = append(values, v)
				}
			}
			if len(values) > 0 {
				fields[name] = values
			}
			continue
		}
		if v := nodeValue(nodes[0], spec.Attribute); v != "" {
			fields[name] = v
		}
	}

	p := product.Normalize(fields, sourceURL)
	if !p.ExtractionSuccess {
		p.Title = product.FailedTitle
	}
	return p
}

func collectNodes(expr *xpath.Expr, doc *html.Node) []*html.Node {
	var nodes []*html.Node
	iter := expr.Select(htmlquery.CreateXPathNavigator(doc))
	for iter.MoveNext() {
		if nav, ok := iter.Current().(*htmlquery.NodeNavigator); ok {
			nodes = append(nodes, nav.Current())
		}
	}
	return nodes
}

func nodeValue(node *html.Node, attribute string) string {
	if attribute == "" || attribute == "text" {
		return strings.TrimSpace(htmlquery.InnerText(node))
	}
	return strings.TrimSpace(htmlquery.SelectAttr(node, attribute))
}

func imagesFromNodes(nodes []*html.Node, attribute string) []any {
	if attribute == "" || attribute == "text" {
		attribute = "src"
	}
	var out []any
	for _, node := range nodes {
		src := strings.TrimSpace(htmlquery.SelectAttr(node, attribute))
		if src == "" {
			continue
		}
		img := map[string]any{"url": src}
		if alt := htmlquery.SelectAttr(node, "alt"); alt != "" {
			img["alt_text"] = alt
		}
		out = append(out, img)
	}
	return out
}
