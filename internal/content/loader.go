package content

import (
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/crypto/blake2b"
	"gopkg.in/yaml.v3"
)

//go:embed schema/unit.schema.json
var unitSchema string

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(unitSchema))
	})
	return schema, schemaErr
}

// Loader loads and caches units from the filesystem.
type Loader struct {
	rootDir string
	units   map[string]*Unit
	mu      sync.RWMutex
}

// NewLoader creates a loader and loads every *.unit.yaml, *.unit.yml and
// *.unit.json file under rootDir. Any invalid unit fails the whole load.
func NewLoader(rootDir string) (*Loader, error) {
	l := &Loader{
		rootDir: rootDir,
		units:   make(map[string]*Unit),
	}

	if err := l.loadAll(); err != nil {
		return nil, fmt.Errorf("loading units: %w", err)
	}

	slog.Info("units loaded", "units", len(l.units))
	return l, nil
}

// GetUnit returns a unit by ID.
func (l *Loader) GetUnit(id string) (*Unit, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	u, ok := l.units[id]
	return u, ok
}

// UnitIDs returns the ids of all loaded units, sorted.
func (l *Loader) UnitIDs() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ids := make([]string, 0, len(l.units))
	for id := range l.units {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (l *Loader) loadAll() error {
	return filepath.Walk(l.rootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || unitStem(path) == "" {
			return nil
		}

		u, err := LoadFile(path)
		if err != nil {
			return err
		}

		l.mu.Lock()
		defer l.mu.Unlock()
		if _, dup := l.units[u.ID]; dup {
			return fmt.Errorf("%s: duplicate unit id %q", path, u.ID)
		}
		l.units[u.ID] = u
		return nil
	})
}

// LoadFile reads, checks and validates a single unit file.
func LoadFile(path string) (*Unit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	u, err := Parse(data, strings.EqualFold(filepath.Ext(path), ".json"))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if u.ID == "" {
		u.ID = unitStem(path)
	}
	return u, nil
}

// Parse decodes a unit document, checks it against the unit schema and
// validates its invariants. isJSON selects the JSON decoder; YAML otherwise.
func Parse(data []byte, isJSON bool) (*Unit, error) {
	var doc any
	if isJSON {
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode unit: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("decode unit: %w", err)
		}
		doc = normalize(doc)
	}

	if err := checkSchema(doc); err != nil {
		return nil, err
	}

	var u Unit
	var err error
	if isJSON {
		err = json.Unmarshal(data, &u)
	} else {
		err = yaml.Unmarshal(data, &u)
	}
	if err != nil {
		return nil, fmt.Errorf("decode unit: %w", err)
	}

	if err := Validate(&u); err != nil {
		return nil, err
	}

	sum := blake2b.Sum256(data)
	u.Fingerprint = hex.EncodeToString(sum[:])
	if u.ID == "" && u.Activity != nil {
		u.ID = u.Activity.ID
	}
	return &u, nil
}

func checkSchema(doc any) error {
	s, err := compiledSchema()
	if err != nil {
		return fmt.Errorf("compile unit schema: %w", err)
	}
	res, err := s.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("check unit schema: %w", err)
	}
	if res.Valid() {
		return nil
	}
	problems := make([]Problem, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		problems = append(problems, Problem{Path: e.Field(), Message: e.Description()})
	}
	return &ValidationError{Problems: problems}
}

// normalize turns YAML maps with non-string keys into JSON-compatible maps.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, x := range t {
			t[k] = normalize(x)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, x := range t {
			out[fmt.Sprint(k)] = normalize(x)
		}
		return out
	case []any:
		for i, x := range t {
			t[i] = normalize(x)
		}
		return t
	default:
		return v
	}
}

func unitStem(path string) string {
	base := filepath.Base(path)
	for _, suffix := range []string{".unit.yaml", ".unit.yml", ".unit.json"} {
		if strings.HasSuffix(base, suffix) {
			return strings.TrimSuffix(base, suffix)
		}
	}
	return ""
}
