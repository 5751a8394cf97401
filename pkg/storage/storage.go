// Package storage persists product records as pretty-printed JSON files
// with an index sidecar, optional per-product version logs, and
// optimistic transactions.
package storage

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hexleaf/prodex/internal/logger"
	"github.com/hexleaf/prodex/pkg/product"
)

var (
	// ErrDuplicateProduct is returned when saving an id that already exists.
	ErrDuplicateProduct = errors.New("product already exists")
	// ErrProductNotFound is returned for operations on unknown ids.
	ErrProductNotFound = errors.New("product not found")
	// ErrVersionNotFound is returned for missing version log entries.
	ErrVersionNotFound = errors.New("product version not found")
)

const indexFile = "index.json"

// timeFormat is ISO-8601 with seconds precision.
const timeFormat = "2006-01-02T15:04:05Z07:00"

// Config configures a storage engine.
type Config struct {
	Dir        string
	StoreName  string // used for derived ids of the form <store>_<sku>
	Versioning bool
}

// IndexEntry is the per-product summary kept in index.json.
type IndexEntry struct {
	ID        string            `json:"id"`
	Metadata  map[string]string `json:"metadata"`
	Title     string            `json:"title,omitempty"`
	SKU       string            `json:"sku,omitempty"`
	URL       string            `json:"url,omitempty"`
	StoreName string            `json:"store_name,omitempty"`
	Version   int               `json:"version"`
}

// record is the on-disk product document: the product plus storage
// bookkeeping.
type record struct {
	product.ProductData
	ID       string            `json:"id"`
	Metadata map[string]string `json:"metadata"`
}

// Engine is a JSON file storage engine for one directory. Index access
// is serialised under a single mutex; per-file writes go through a
// temp-file rename so readers never observe partial JSON.
type Engine struct {
	config Config

	mu    sync.Mutex
	index map[string]IndexEntry
}

// New opens (or initialises) the storage directory.
func New(cfg Config) (*Engine, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("storage directory is required")
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	e := &Engine{config: cfg, index: make(map[string]IndexEntry)}
	if err := e.loadIndex(); err != nil {
		return nil, err
	}
	logger.Debug("storage opened", "dir", cfg.Dir, "products", len(e.index))
	return e, nil
}

// ProductID derives the storage id: the first non-empty of the explicit
// id, <store>_<sku>, a url hash, or a fresh UUID.
func (e *Engine) ProductID(p *product.ProductData, explicit string) string {
	if explicit != "" {
		return sanitizeID(explicit)
	}
	if p.SKU != "" && e.config.StoreName != "" {
		return sanitizeID(e.config.StoreName + "_" + p.SKU)
	}
	if p.URL != "" {
		sum := sha1.Sum([]byte(p.URL))
		return "url_" + hex.EncodeToString(sum[:])[:12]
	}
	return uuid.NewString()
}

var unsafeIDChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

func sanitizeID(id string) string {
	return unsafeIDChars.ReplaceAllString(strings.TrimSpace(id), "_")
}

// Save stores a new product under a derived id and returns that id.
func (e *Engine) Save(p *product.ProductData) (string, error) {
	id := e.ProductID(p, "")
	return id, e.SaveWithID(id, p)
}

// SaveWithID stores a new product under a caller-chosen id.
func (e *Engine) SaveWithID(id string, p *product.ProductData) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.index[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateProduct, id)
	}

	rec := newRecord(id, p)
	if err := e.persistRecord(rec); err != nil {
		return err
	}
	e.index[id] = rec.indexEntry(e.config.StoreName)
	if err := e.writeIndexLocked(); err != nil {
		return err
	}
	logger.Debug("product saved", "id", id, "title", p.Title)
	return nil
}

// Get loads one product record.
func (e *Engine) Get(id string) (*product.ProductData, error) {
	e.mu.Lock()
	_, exists := e.index[id]
	e.mu.Unlock()
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}

	rec, err := e.readRecord(id)
	if err != nil {
		return nil, err
	}
	return &rec.ProductData, nil
}

// Update merges p into the stored record: non-empty fields overwrite,
// the version is bumped, and with versioning enabled the prior content
// is appended to the version log first.
func (e *Engine) Update(id string, p *product.ProductData) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.updateLocked(id, p, true)
}

func (e *Engine) updateLocked(id string, p *product.ProductData, writeIndex bool) error {
	if _, exists := e.index[id]; !exists {
		return fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}

	rec, err := e.readRecord(id)
	if err != nil {
		return err
	}

	mergeInto(rec, p)
	rec.Version++
	rec.Metadata["updated_at"] = now()

	if err := e.persistRecord(rec); err != nil {
		return err
	}
	e.index[id] = rec.indexEntry(e.config.StoreName)
	if writeIndex {
		return e.writeIndexLocked()
	}
	return nil
}

// Delete removes the product file and its index entry. The version log
// is kept.
func (e *Engine) Delete(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.deleteLocked(id, true)
}

func (e *Engine) deleteLocked(id string, writeIndex bool) error {
	if _, exists := e.index[id]; !exists {
		return fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	if err := os.Remove(e.recordPath(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete product file: %w", err)
	}
	delete(e.index, id)
	if writeIndex {
		return e.writeIndexLocked()
	}
	return nil
}

// Count reports the number of stored products.
func (e *Engine) Count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.index)
}

// Has reports whether an id exists.
func (e *Engine) Has(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.index[id]
	return ok
}

func newRecord(id string, p *product.ProductData) *record {
	rec := &record{
		ProductData: *p.Clone(),
		ID:          id,
		Metadata: map[string]string{
			"created_at": now(),
			"updated_at": now(),
		},
	}
	if rec.Version == 0 {
		rec.Version = 1
	}
	return rec
}

func (r *record) indexEntry(storeName string) IndexEntry {
	return IndexEntry{
		ID:        r.ID,
		Metadata:  r.Metadata,
		Title:     r.Title,
		SKU:       r.SKU,
		URL:       r.URL,
		StoreName: storeName,
		Version:   r.Version,
	}
}

// mergeInto overwrites the record's fields with p's non-empty values.
func mergeInto(rec *record, p *product.ProductData) {
	apply := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	apply(&rec.Title, p.Title)
	apply(&rec.URL, p.URL)
	apply(&rec.SKU, p.SKU)
	apply(&rec.UPC, p.UPC)
	apply(&rec.EAN, p.EAN)
	apply(&rec.ISBN, p.ISBN)
	apply(&rec.MPN, p.MPN)
	apply(&rec.GTIN, p.GTIN)
	apply(&rec.Description, p.Description)
	apply(&rec.ShortDescription, p.ShortDescription)
	apply(&rec.Brand, p.Brand)
	apply(&rec.Availability, p.Availability)
	apply(&rec.ShippingInfo, p.ShippingInfo)
	apply(&rec.Warranty, p.Warranty)
	apply(&rec.Dimensions, p.Dimensions)
	apply(&rec.Weight, p.Weight)
	apply(&rec.Material, p.Material)
	apply(&rec.Seller, p.Seller)
	apply(&rec.ReleaseDate, p.ReleaseDate)

	if p.Price.CurrentPrice > 0 || p.Price.Currency != "" {
		rec.Price = p.Price
	}
	if len(p.Category) > 0 {
		rec.Category = p.Category
	}
	if len(p.Images) > 0 {
		rec.Images = p.Images
	}
	if len(p.Attributes) > 0 {
		rec.Attributes = p.Attributes
	}
	if len(p.Variants) > 0 {
		rec.Variants = p.Variants
	}
	if len(p.Reviews) > 0 {
		rec.Reviews = p.Reviews
	}
	if !p.ExtractedAt.IsZero() {
		rec.ExtractedAt = p.ExtractedAt
	}
	apply(&rec.Source, p.Source)
	if p.RawData != nil {
		rec.RawData = p.RawData
	}
	rec.ExtractionSuccess = rec.ExtractionSuccess || p.ExtractionSuccess
}

// File helpers.

func (e *Engine) recordPath(id string) string {
	return filepath.Join(e.config.Dir, id+".json")
}

func (e *Engine) readRecord(id string) (*record, error) {
	data, err := os.ReadFile(e.recordPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
		}
		return nil, fmt.Errorf("failed to read product file: %w", err)
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("corrupt product file %s: %w", id, err)
	}
	if rec.Metadata == nil {
		rec.Metadata = make(map[string]string)
	}
	return &rec, nil
}

func (e *Engine) writeRecord(rec *record) error {
	return writeJSON(e.recordPath(rec.ID), rec)
}

// persistRecord writes the record and, with versioning enabled, logs its
// content under its version number. Version log entry v<n> always holds
// the record exactly as it was at version n.
func (e *Engine) persistRecord(rec *record) error {
	if err := e.writeRecord(rec); err != nil {
		return err
	}
	if e.config.Versioning {
		return e.appendVersion(rec)
	}
	return nil
}

func (e *Engine) loadIndex() error {
	data, err := os.ReadFile(filepath.Join(e.config.Dir, indexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read index: %w", err)
	}
	if err := json.Unmarshal(data, &e.index); err != nil {
		return fmt.Errorf("corrupt index: %w", err)
	}
	return nil
}

// writeIndexLocked persists the index; callers hold e.mu.
func (e *Engine) writeIndexLocked() error {
	return writeJSON(filepath.Join(e.config.Dir, indexFile), e.index)
}

// writeJSON writes pretty JSON atomically via a temp file rename.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	return nil
}

func now() string {
	return time.Now().UTC().Truncate(time.Second).Format(timeFormat)
}
