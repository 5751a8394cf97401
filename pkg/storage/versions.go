package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/hexleaf/prodex/pkg/product"
)

func (e *Engine) versionDir(id string) string {
	return filepath.Join(e.config.Dir, "versions", id)
}

func (e *Engine) versionPath(id string, n int) string {
	return filepath.Join(e.versionDir(id), fmt.Sprintf("v%d.json", n))
}

// appendVersion writes the record's content into its version log under
// its current version number.
func (e *Engine) appendVersion(rec *record) error {
	dir := e.versionDir(rec.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create version directory: %w", err)
	}
	return writeJSON(e.versionPath(rec.ID, rec.Version), rec)
}

// GetVersion reads one entry from a product's version log. The live
// record is not consulted.
func (e *Engine) GetVersion(id string, n int) (*product.ProductData, error) {
	rec, err := e.readVersion(id, n)
	if err != nil {
		return nil, err
	}
	return &rec.ProductData, nil
}

func (e *Engine) readVersion(id string, n int) (*record, error) {
	data, err := os.ReadFile(e.versionPath(id, n))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s v%d", ErrVersionNotFound, id, n)
		}
		return nil, fmt.Errorf("failed to read version file: %w", err)
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("corrupt version file %s v%d: %w", id, n, err)
	}
	return &rec, nil
}

// ListVersions returns the logged version numbers for a product in
// ascending order.
func (e *Engine) ListVersions(id string) ([]int, error) {
	entries, err := os.ReadDir(e.versionDir(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read version directory: %w", err)
	}

	var versions []int
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, "v") || !strings.HasSuffix(name, ".json") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "v"), ".json"))
		if err != nil {
			continue
		}
		versions = append(versions, n)
	}
	sort.Ints(versions)
	return versions, nil
}
