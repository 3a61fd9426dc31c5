package geo

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed countries.yaml
var defaultCountries []byte

// Country is one row of the country table.
type Country struct {
	Code     string   `yaml:"code"`
	Name     string   `yaml:"name"`
	Aliases  []string `yaml:"aliases"`
	Timezone string   `yaml:"timezone"`
	TLDs     []string `yaml:"tlds"`
}

// CountryTable answers the lookups the resolver needs.
type CountryTable interface {
	ByCode(code string) (Country, bool)
	ByName(name string) (Country, bool)
	ByTLD(tld string) (Country, bool)
}

// StaticTable is an immutable CountryTable built once from YAML.
type StaticTable struct {
	byCode map[string]Country
	byName map[string]Country
	byTLD  map[string]Country
}

type tableDocument struct {
	Countries []Country `yaml:"countries"`
}

// DefaultTable parses the embedded country list.
func DefaultTable() (*StaticTable, error) {
	return ParseTable(defaultCountries)
}

// ParseTable builds a table from a YAML document with a top-level
// "countries" list.
func ParseTable(data []byte) (*StaticTable, error) {
	var doc tableDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse country table: %w", err)
	}

	t := &StaticTable{
		byCode: make(map[string]Country, len(doc.Countries)),
		byName: make(map[string]Country, len(doc.Countries)),
		byTLD:  make(map[string]Country, len(doc.Countries)),
	}

	for _, c := range doc.Countries {
		c.Code = strings.ToUpper(strings.TrimSpace(c.Code))
		if len(c.Code) != 2 {
			return nil, fmt.Errorf("country %q: code must be two letters", c.Name)
		}
		if _, dup := t.byCode[c.Code]; dup {
			return nil, fmt.Errorf("country %s listed twice", c.Code)
		}

		t.byCode[c.Code] = c
		t.byName[normalizeName(c.Name)] = c
		for _, alias := range c.Aliases {
			t.byName[normalizeName(alias)] = c
		}
		for _, tld := range c.TLDs {
			t.byTLD[strings.ToLower(strings.TrimPrefix(tld, "."))] = c
		}
	}

	return t, nil
}

func (t *StaticTable) ByCode(code string) (Country, bool) {
	c, ok := t.byCode[strings.ToUpper(code)]
	return c, ok
}

func (t *StaticTable) ByName(name string) (Country, bool) {
	c, ok := t.byName[normalizeName(name)]
	return c, ok
}

func (t *StaticTable) ByTLD(tld string) (Country, bool) {
	c, ok := t.byTLD[strings.ToLower(tld)]
	return c, ok
}

func normalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

var _ CountryTable = (*StaticTable)(nil)
