// Package catalog reads the entry feed supplied by the catalog
// collaborator.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/edupack/concord-stager/internal/pipeline"
)

// Load reads a JSON array of catalog entries from path. Entries missing an
// id or preview URL are skipped with a warning; the rest of the feed still
// loads.
func Load(path string, logger *zap.Logger) ([]pipeline.CatalogEntry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var raw []pipeline.CatalogEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	entries := make([]pipeline.CatalogEntry, 0, len(raw))
	for i, entry := range raw {
		if entry.ID == "" || entry.PreviewURL == "" {
			logger.Warn("skipping incomplete catalog entry",
				zap.Int("index", i),
				zap.String("id", entry.ID),
			)
			continue
		}
		entries = append(entries, entry)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("catalog %s holds no usable entries", path)
	}
	return entries, nil
}
