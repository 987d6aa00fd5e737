package infrastructure

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Victor-armando18/product-configurator/internal/domain"
	"github.com/Victor-armando18/product-configurator/internal/domain/catalog"
	"github.com/Victor-armando18/product-configurator/internal/infrastructure/schema"
	"github.com/Victor-armando18/product-configurator/internal/infrastructure/yaml"
)

var catalogExtensions = []string{".json", ".yaml", ".yml"}

// FileCatalogLoader reads <dir>/<configurationID>.json|.yaml|.yml.
type FileCatalogLoader struct {
	dir  string
	opts []catalog.Option
}

func NewFileCatalogLoader(dir string, opts ...catalog.Option) *FileCatalogLoader {
	return &FileCatalogLoader{dir: dir, opts: opts}
}

func (l *FileCatalogLoader) Load(ctx context.Context, configurationID string) (*domain.Configuration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if configurationID == "" || filepath.Base(configurationID) != configurationID || strings.HasPrefix(configurationID, ".") {
		return nil, fmt.Errorf("%w: invalid configuration id %q", domain.ErrCatalogNotFound, configurationID)
	}
	for _, ext := range catalogExtensions {
		path := filepath.Join(l.dir, configurationID+ext)
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat catalog %s: %w", path, err)
		}
		return l.LoadFile(path)
	}
	return nil, fmt.Errorf("%w: %s in %s", domain.ErrCatalogNotFound, configurationID, l.dir)
}

// LoadFile reads and validates a single catalog file.
func (l *FileCatalogLoader) LoadFile(path string) (*domain.Configuration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrCatalogNotFound, path)
		}
		return nil, fmt.Errorf("failed to read catalog file %s: %w", path, err)
	}
	return DecodeCatalog(data, filepath.Ext(path), l.opts...)
}

// DecodeCatalog validates a raw document (JSON, or YAML when ext is .yaml or
// .yml) against the catalog schema and loads it.
func DecodeCatalog(data []byte, ext string, opts ...catalog.Option) (*domain.Configuration, error) {
	raw := data
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		converted, err := yaml.ToJSON(data)
		if err != nil {
			return nil, &domain.CatalogError{Reason: err.Error()}
		}
		raw = converted
	}

	if err := schema.ValidateCatalog(raw); err != nil {
		return nil, &domain.CatalogError{Reason: err.Error()}
	}

	var doc catalog.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &domain.CatalogError{Reason: fmt.Sprintf("failed to unmarshal catalog: %v", err)}
	}
	return catalog.Load(doc, opts...)
}
