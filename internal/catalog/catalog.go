// Package catalog reads the application records the desktop shell keeps on
// disk, one <apps dir>/<folder>/config.json per app, so icons can be warmed
// for every known app at startup. It never writes records.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/charlievieth/fastwalk"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/kyvyrn/backend/internal/icon"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/infrastructure/logging"
	"github.com/GriffinCanCode/kyvyrn/backend/internal/shared/paths"
)

// ConfigFile is the record file name inside each app folder
const ConfigFile = paths.AppConfig

// Engine describes how an app is launched
type Engine struct {
	Kind    string `json:"kind"`
	Browser string `json:"browser,omitempty"`
}

// Record is an application record as stored by the desktop shell
type Record struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	URL         string `json:"url"`
	Description string `json:"description"`
	CreatedAt   uint64 `json:"created_at"`
	Engine      Engine `json:"engine"`
	Folder      string `json:"folder"`
}

// Binding returns the fields the icon subsystem needs
func (r Record) Binding() icon.Binding {
	return icon.Binding{AppID: r.ID, URL: r.URL, Name: r.Name}
}

// Catalog loads records from an apps directory
type Catalog struct {
	root   string
	logger *zap.Logger
}

// New creates a catalog rooted at appsDir
func New(appsDir string, logger *zap.Logger) *Catalog {
	return &Catalog{root: appsDir, logger: logging.OrNop(logger)}
}

// Root returns the apps directory
func (c *Catalog) Root() string {
	return c.root
}

// Load reads every record. A missing apps directory yields no records.
// Unreadable or malformed records are skipped and logged. Records are
// ordered by creation time, then id.
func (c *Catalog) Load(ctx context.Context) ([]Record, error) {
	if _, err := os.Stat(c.root); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	var (
		mu      sync.Mutex
		records []Record
	)

	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, c.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			c.logger.Warn("Failed to read apps entry", zap.String("path", path), zap.Error(err))
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		rel, relErr := filepath.Rel(c.root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		depth := segments(rel)

		if d.IsDir() {
			if depth > 1 {
				return fastwalk.SkipDir
			}
			return nil
		}
		if depth != 2 || d.Name() != ConfigFile {
			return nil
		}

		rec, readErr := readRecord(path)
		if readErr != nil {
			c.logger.Warn("Skipping app record", zap.String("path", path), zap.Error(readErr))
			return nil
		}

		mu.Lock()
		records = append(records, rec)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to walk %s: %w", c.root, err)
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt != records[j].CreatedAt {
			return records[i].CreatedAt < records[j].CreatedAt
		}
		return records[i].ID < records[j].ID
	})
	return records, nil
}

// Bindings loads every record as an icon binding
func (c *Catalog) Bindings(ctx context.Context) ([]icon.Binding, error) {
	records, err := c.Load(ctx)
	if err != nil {
		return nil, err
	}
	bindings := make([]icon.Binding, 0, len(records))
	for _, r := range records {
		bindings = append(bindings, r.Binding())
	}
	return bindings, nil
}

// Find returns the record with the given id
func (c *Catalog) Find(ctx context.Context, id string) (Record, bool, error) {
	records, err := c.Load(ctx)
	if err != nil {
		return Record{}, false, err
	}
	for _, r := range records {
		if r.ID == id {
			return r, true, nil
		}
	}
	return Record{}, false, nil
}

func readRecord(path string) (Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := sonic.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("invalid record: %w", err)
	}
	if rec.ID == "" {
		return Record{}, fmt.Errorf("record has no id")
	}
	return rec, nil
}

// segments counts the path elements of a relative path
func segments(rel string) int {
	n := 1
	for _, r := range filepath.ToSlash(rel) {
		if r == '/' {
			n++
		}
	}
	return n
}
