package command

import (
	_ "embed"
	"fmt"
	"runtime"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var builtinCatalog []byte

// AllCategories selects every entry in [Catalog.Filter].
const AllCategories = "all"

// Entry is one canned command.
type Entry struct {
	Name        string `yaml:"name" json:"name"`
	Command     string `yaml:"command" json:"command"`
	Description string `yaml:"description" json:"description"`
	Category    string `yaml:"category" json:"category"`
}

type catalogFile struct {
	Windows []Entry `yaml:"windows"`
	Unix    []Entry `yaml:"unix"`
}

// Catalog is an immutable list of canned commands.
type Catalog struct {
	entries []Entry
}

// ParseCatalog reads a catalog document and keeps the section for goos.
func ParseCatalog(data []byte, goos string) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("command: parsing catalog: %w", err)
	}
	entries := f.Unix
	if goos == "windows" {
		entries = f.Windows
	}
	for i, e := range entries {
		if strings.TrimSpace(e.Name) == "" || strings.TrimSpace(e.Command) == "" {
			return nil, fmt.Errorf("command: catalog entry %d needs a name and a command", i)
		}
	}
	return &Catalog{entries: entries}, nil
}

// DefaultCatalog returns the built-in catalog for the running platform.
func DefaultCatalog() (*Catalog, error) {
	return ParseCatalog(builtinCatalog, runtime.GOOS)
}

// Entries returns every entry in catalog order.
func (c *Catalog) Entries() []Entry {
	return append([]Entry(nil), c.entries...)
}

// Categories returns the distinct categories, sorted.
func (c *Catalog) Categories() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, e := range c.entries {
		if _, ok := seen[e.Category]; ok {
			continue
		}
		seen[e.Category] = struct{}{}
		out = append(out, e.Category)
	}
	sort.Strings(out)
	return out
}

// Filter returns the entries in category whose name, command or description
// contains search. Matching ignores case. An empty category or
// [AllCategories] matches everything, as does an empty search.
func (c *Catalog) Filter(category, search string) []Entry {
	search = strings.ToLower(strings.TrimSpace(search))
	all := category == "" || strings.EqualFold(category, AllCategories)

	var out []Entry
	for _, e := range c.entries {
		if !all && !strings.EqualFold(e.Category, category) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(e.Name), search) &&
			!strings.Contains(strings.ToLower(e.Command), search) &&
			!strings.Contains(strings.ToLower(e.Description), search) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Lookup finds an entry by name, ignoring case.
func (c *Catalog) Lookup(name string) (Entry, bool) {
	for _, e := range c.entries {
		if strings.EqualFold(e.Name, name) {
			return e, true
		}
	}
	return Entry{}, false
}
