package llm

// The three prompts below are part of the extraction contract: the schema
// generator, the schema-guided extractor, and the fallback extractor each
// send exactly one of them (with content appended).

// SchemaGenerationPrompt asks the model to propose CSS selectors for the
// product fields present in a page.
const SchemaGenerationPrompt = `You are an expert at analyzing e-commerce product pages.

Analyze the following HTML and produce a JSON extraction schema describing how to locate each product field with CSS selectors.

Identify selectors for these fields where present:
- title: the product name
- price: the current selling price
- identifiers: sku, upc, ean, isbn, mpn, gtin
- brand: the manufacturer or brand name
- availability: stock status
- description: the product description
- images: product image elements
- attributes: specification name/value pairs
- variants: size/color/style options with their own prices
- reviews: customer reviews with rating, title, content and date
- shipping_info, warranty, dimensions, weight, material, seller, release_date

Respond with JSON only, in the form:
{"fields": [{"name": "...", "selector": "...", "attribute": "text", "required": false, "array": false}, ...]}

Rules:
1. Prefer stable selectors: ids, itemprop attributes, then semantic class names
2. The title and price fields are required and must always appear
3. Use attribute "src" for images and "content" for meta tags
4. Set "array": true for fields with multiple matches (images, attributes, reviews, variants)

HTML:
`

// ExtractionPrompt instructs field-by-field extraction against a provided
// schema.
const ExtractionPrompt = `You are a product data extraction assistant.

Extract product data from the following HTML, field by field, to match the provided schema. Inspect meta tags (og:, twitter:, itemprop) and data-* attributes as well as visible content.

Rules:
1. Return valid JSON only, with keys matching the schema field names exactly
2. If a required field cannot be found, use null
3. If an optional field cannot be found, omit it
4. For prices, return the numeric value and a separate ISO 4217 currency code
5. For images, return absolute URLs
6. Do not invent data that is not present in the HTML
`

// FallbackExtractionPrompt is used when schema-based extraction failed. It
// concentrates on the essential fields first.
const FallbackExtractionPrompt = `You are a product data extraction assistant. A schema-based extraction of this page has already failed, so work directly from the raw content.

First, find these essential fields:
- title: the product name
- price: current price as a number, plus the ISO 4217 currency code
- brand: manufacturer or brand
- images: product image URLs (absolute)
- identifiers: any of sku, upc, ean, isbn, mpn, gtin

Then, if clearly present, add supplementary metadata:
- description, category, availability, attributes, variants, reviews
- shipping_info, warranty, dimensions, weight, material, seller, release_date

Rules:
1. Return valid JSON only
2. Omit fields you cannot find; never guess
3. Prefer structured sources (JSON-LD, meta tags, microdata) over visible text
`
