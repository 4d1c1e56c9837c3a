package scenario

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"

	"gopkg.in/yaml.v3"

	"dev/bravebird/storefront-e2e/pkg/models"
)

//go:embed catalog/*.yaml
var builtinFS embed.FS

const maxIncludeDepth = 8

// Catalog is a validated, ordered set of scenarios.
type Catalog struct {
	scenarios []Scenario
	byName    map[string]int
}

// Builtin returns the catalog compiled into the binary.
func Builtin() (*Catalog, error) {
	return LoadFS(builtinFS, "catalog")
}

// LoadFS reads every .yaml table in dir of fsys.
func LoadFS(fsys fs.FS, dir string) (*Catalog, error) {
	tables, err := readTables(fsys, dir)
	if err != nil {
		return nil, err
	}
	return build(tables)
}

// LoadFile reads a single user-supplied table. Its include steps may
// reference the built-in fragments.
func LoadFile(file string) (*Catalog, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenarios: %w", err)
	}
	var user Table
	if err := yaml.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}
	builtin, err := readTables(builtinFS, "catalog")
	if err != nil {
		return nil, err
	}
	tables := []Table{user}
	for _, t := range builtin {
		tables = append(tables, Table{Fragments: t.Fragments})
	}
	return build(tables)
}

// Parse builds a catalog from named YAML tables.
func Parse(docs map[string][]byte) (*Catalog, error) {
	names := make([]string, 0, len(docs))
	for name := range docs {
		names = append(names, name)
	}
	sort.Strings(names)

	tables := make([]Table, 0, len(names))
	for _, name := range names {
		var t Table
		if err := yaml.Unmarshal(docs[name], &t); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		tables = append(tables, t)
	}
	return build(tables)
}

func readTables(fsys fs.FS, dir string) ([]Table, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}
	var tables []Table
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".yaml" {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", e.Name(), err)
		}
		var t Table
		if err := yaml.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}
		tables = append(tables, t)
	}
	return tables, nil
}

func build(tables []Table) (*Catalog, error) {
	fragments := make(map[string][]Step)
	for _, t := range tables {
		for name, steps := range t.Fragments {
			if _, dup := fragments[name]; dup {
				return nil, fmt.Errorf("fragment %q defined twice", name)
			}
			fragments[name] = steps
		}
	}

	c := &Catalog{byName: make(map[string]int)}
	seen := make(map[string]bool)
	for _, t := range tables {
		for _, sc := range t.Scenarios {
			if sc.Category == "" {
				sc.Category = t.Category
			}
			if cat, err := models.ParseCategory(string(sc.Category)); err != nil || cat == models.CategoryAll {
				return nil, fmt.Errorf("scenario %q: invalid category %q", sc.Name, sc.Category)
			}
			steps, err := expandIncludes(sc.Steps, fragments, 0)
			if err != nil {
				return nil, fmt.Errorf("scenario %q: %w", sc.Name, err)
			}
			sc.Steps = steps
			if err := sc.Validate(); err != nil {
				return nil, err
			}
			if seen[sc.Name] {
				return nil, fmt.Errorf("scenario %q defined twice", sc.Name)
			}
			seen[sc.Name] = true
			c.scenarios = append(c.scenarios, sc)
		}
	}

	rank := make(map[models.Category]int)
	for i, cat := range models.Categories() {
		rank[cat] = i
	}
	sort.SliceStable(c.scenarios, func(i, j int) bool {
		return rank[c.scenarios[i].Category] < rank[c.scenarios[j].Category]
	})
	for i, sc := range c.scenarios {
		c.byName[sc.Name] = i
	}
	return c, nil
}

func expandIncludes(steps []Step, fragments map[string][]Step, depth int) ([]Step, error) {
	if depth > maxIncludeDepth {
		return nil, fmt.Errorf("includes nested deeper than %d", maxIncludeDepth)
	}
	out := make([]Step, 0, len(steps))
	for _, s := range steps {
		if s.Action != ActionInclude {
			out = append(out, s)
			continue
		}
		frag, ok := fragments[s.Value]
		if !ok {
			return nil, fmt.Errorf("unknown fragment %q", s.Value)
		}
		expanded, err := expandIncludes(frag, fragments, depth+1)
		if err != nil {
			return nil, err
		}
		for _, step := range expanded {
			if s.Optional {
				step.Optional = true
			}
			out = append(out, step)
		}
	}
	return out, nil
}

// All returns every scenario in run order.
func (c *Catalog) All() []Scenario {
	return append([]Scenario(nil), c.scenarios...)
}

// Get looks a scenario up by name.
func (c *Catalog) Get(name string) (Scenario, bool) {
	i, ok := c.byName[name]
	if !ok {
		return Scenario{}, false
	}
	return c.scenarios[i], true
}

// Select returns the scenarios of a category, optionally narrowed to names.
// Unknown names are an error.
func (c *Catalog) Select(cat models.Category, names []string) ([]Scenario, error) {
	var out []Scenario
	if len(names) > 0 {
		for _, name := range names {
			sc, ok := c.Get(name)
			if !ok {
				return nil, fmt.Errorf("unknown scenario %q", name)
			}
			if cat == models.CategoryAll || cat == "" || sc.Category == cat {
				out = append(out, sc)
			}
		}
		return out, nil
	}
	for _, sc := range c.scenarios {
		if cat == models.CategoryAll || cat == "" || sc.Category == cat {
			out = append(out, sc)
		}
	}
	return out, nil
}
