package devices

import (
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/openremoteio/remoteio/internal/types"
	"go.uber.org/zap"
)

//go:embed profiles/*.json
var builtinProfiles embed.FS

// Catalog holds the known model profiles, indexed by model code.
// Built-in profiles are always loaded; profiles found in the search
// paths are loaded on top and may override built-ins with the same code.
type Catalog struct {
	validator   *Validator
	searchPaths []string
	logger      *zap.Logger

	mu     sync.RWMutex
	byCode map[uint16]*types.ModelDefinition
}

func NewCatalog(searchPaths []string, logger *zap.Logger) (*Catalog, error) {
	validator, err := NewValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create validator: %w", err)
	}

	c := &Catalog{
		validator:   validator,
		searchPaths: searchPaths,
		logger:      logger,
		byCode:      make(map[uint16]*types.ModelDefinition),
	}

	if err := c.loadBuiltins(); err != nil {
		return nil, err
	}
	c.loadSearchPaths()

	return c, nil
}

func (c *Catalog) loadBuiltins() error {
	entries, err := builtinProfiles.ReadDir("profiles")
	if err != nil {
		return fmt.Errorf("failed to read built-in profiles: %w", err)
	}

	for _, entry := range entries {
		data, err := builtinProfiles.ReadFile("profiles/" + entry.Name())
		if err != nil {
			return fmt.Errorf("failed to read built-in profile %s: %w", entry.Name(), err)
		}
		if err := c.add(data); err != nil {
			return fmt.Errorf("invalid built-in profile %s: %w", entry.Name(), err)
		}
	}

	return nil
}

// loadSearchPaths loads user-supplied profiles. A broken profile file is
// logged and skipped, it never prevents startup.
func (c *Catalog) loadSearchPaths() {
	for _, searchPath := range c.searchPaths {
		files, err := filepath.Glob(filepath.Join(searchPath, "*.json"))
		if err != nil {
			continue
		}
		for _, file := range files {
			data, err := os.ReadFile(file)
			if err != nil {
				c.logger.Warn("Failed to read model profile",
					zap.String("path", file),
					zap.Error(err))
				continue
			}
			if err := c.add(data); err != nil {
				c.logger.Warn("Skipping invalid model profile",
					zap.String("path", file),
					zap.Error(err))
			}
		}
	}
}

func (c *Catalog) add(data []byte) error {
	if err := c.validator.ValidateProfile(data); err != nil {
		return err
	}

	var def types.ModelDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return fmt.Errorf("failed to unmarshal profile: %w", err)
	}

	code, err := def.Code()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.byCode[code] = &def
	c.mu.Unlock()

	return nil
}

// ByCode returns the profile for a model code reported by a device.
func (c *Catalog) ByCode(code uint16) (*types.ModelDefinition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	def, ok := c.byCode[code]
	return def, ok
}

// ByModel returns the profile whose model string matches, e.g. "7026".
func (c *Catalog) ByModel(model string) (*types.ModelDefinition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, def := range c.byCode {
		if strings.EqualFold(def.Model, model) {
			return def, true
		}
	}
	return nil, false
}

// Models lists all known profiles ordered by model code.
func (c *Catalog) Models() []*types.ModelDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	codes := make([]int, 0, len(c.byCode))
	for code := range c.byCode {
		codes = append(codes, int(code))
	}
	sort.Ints(codes)

	models := make([]*types.ModelDefinition, 0, len(codes))
	for _, code := range codes {
		models = append(models, c.byCode[uint16(code)])
	}
	return models
}
