package dataset

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed worldclim.yaml
var worldclimYAML []byte

// Entry maps a raw climate variable identifier to its abbreviation.
type Entry struct {
	Raw  string `yaml:"raw"`
	Abbr string `yaml:"abbr"`
}

// Dictionary is the ordered feature dictionary shared by every species run.
type Dictionary struct {
	Entries []Entry `yaml:"features"`
	byRaw   map[string]string
}

// LoadDictionary reads a dictionary from a yaml file. An empty path returns
// the embedded WorldClim bioclimatic table.
func LoadDictionary(path string) (*Dictionary, error) {
	data := worldclimYAML
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read dictionary: %w", err)
		}
	}
	return ParseDictionary(data)
}

// ParseDictionary decodes a yaml dictionary and checks that raw identifiers
// and abbreviations are unique.
func ParseDictionary(data []byte) (*Dictionary, error) {
	d := new(Dictionary)
	if err := yaml.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("parse dictionary: %w", err)
	}
	if len(d.Entries) == 0 {
		return nil, fmt.Errorf("parse dictionary: no features")
	}

	d.byRaw = make(map[string]string, len(d.Entries))
	seen := make(map[string]bool, len(d.Entries))
	for _, e := range d.Entries {
		if e.Raw == "" || e.Abbr == "" {
			return nil, fmt.Errorf("parse dictionary: empty entry %+v", e)
		}
		if _, dup := d.byRaw[e.Raw]; dup {
			return nil, fmt.Errorf("parse dictionary: duplicate raw name %q", e.Raw)
		}
		if seen[e.Abbr] {
			return nil, fmt.Errorf("parse dictionary: duplicate abbreviation %q", e.Abbr)
		}
		d.byRaw[e.Raw] = e.Abbr
		seen[e.Abbr] = true
	}
	return d, nil
}

// Lookup returns the abbreviation for a raw identifier.
func (d *Dictionary) Lookup(raw string) (string, bool) {
	abbr, ok := d.byRaw[raw]
	return abbr, ok
}

// Rename maps raw names to abbreviations. Every name must have an entry.
func (d *Dictionary) Rename(raw []string) ([]string, error) {
	out := make([]string, len(raw))
	for i, r := range raw {
		abbr, ok := d.byRaw[r]
		if !ok {
			return nil, fmt.Errorf("no dictionary entry for %q: %w", r, ErrSchemaMismatch)
		}
		out[i] = abbr
	}
	return out, nil
}

// RenameDataset returns a copy of d with its columns renamed. Rows are shared.
func (d *Dictionary) RenameDataset(ds *Dataset) (*Dataset, error) {
	names, err := d.Rename(ds.Names)
	if err != nil {
		return nil, err
	}
	return &Dataset{Names: names, Rows: ds.Rows}, nil
}
