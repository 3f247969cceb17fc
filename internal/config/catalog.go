package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// DefaultSuffix is the period suffix appended to annex table names.
const DefaultSuffix = "_2025_1S"

// AllAnnexes selects every catalog entry in ResolveAnnexes.
const AllAnnexes = "all"

// AnnexConfig is one catalog entry as written in a pipeline file.
type AnnexConfig struct {
	Database string `json:"database" yaml:"database"`
	Table    string `json:"table" yaml:"table"` // without suffix
	File     string `json:"file" yaml:"file"`
}

// CatalogConfig overrides the built-in catalog.
type CatalogConfig struct {
	Suffix  string                 `json:"suffix" yaml:"suffix"`
	Annexes map[string]AnnexConfig `json:"annexes" yaml:"annexes"`
}

// Annex is a resolved catalog entry.
type Annex struct {
	ID       string
	Database string
	Table    string // with suffix
	File     string
}

var builtinAnnexes = map[string]AnnexConfig{
	"1A": {Database: "SAT_V2", Table: "ANEXO_1A", File: "GERG_AECF_1891_Anexo1A-QA.txt"},
	"2B": {Database: "SAT_V2", Table: "ANEXO_2B", File: "GERG_AECF_1891_Anexo2B.csv"},
	"3C": {Database: "SAT_Nómina_V2", Table: "ANEXO_3C", File: "GERG_AECF_1891_Anexo3C.csv"},
	"4D": {Database: "SAT_Nómina_V2", Table: "ANEXO_4D", File: "GERG_AECF_1891_Anexo4D.csv"},
	"5E": {Database: "SAT_Nómina_V2", Table: "ANEXO_5E", File: "GERG_AECF_1891_Anexo5E.csv"},
	"6F": {Database: "SAT_Nómina_V2", Table: "ANEXO_6F", File: "GERG_AECF_1891_Anexo6F.csv"},
	"7G": {Database: "SAT_Nómina_V2", Table: "ANEXO_7G", File: "GERG_AECF_1891_Anexo7G.csv"},
}

// Catalog maps annex ids to their destination and extract file.
type Catalog struct {
	suffix  string
	annexes map[string]AnnexConfig
}

// NewCatalog merges cc over the built-in annexes. Override fields left
// empty keep the built-in value.
func NewCatalog(cc CatalogConfig) Catalog {
	c := Catalog{suffix: cc.Suffix, annexes: make(map[string]AnnexConfig, len(builtinAnnexes)+len(cc.Annexes))}
	if c.suffix == "" {
		c.suffix = DefaultSuffix
	}
	for id, a := range builtinAnnexes {
		c.annexes[id] = a
	}
	for id, o := range cc.Annexes {
		id = strings.ToUpper(strings.TrimSpace(id))
		a := c.annexes[id]
		if o.Database != "" {
			a.Database = o.Database
		}
		if o.Table != "" {
			a.Table = o.Table
		}
		if o.File != "" {
			a.File = o.File
		}
		c.annexes[id] = a
	}
	return c
}

// IDs returns the annex ids, sorted.
func (c Catalog) IDs() []string {
	out := make([]string, 0, len(c.annexes))
	for id := range c.annexes {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Lookup resolves one annex id (case-insensitive).
func (c Catalog) Lookup(id string) (Annex, error) {
	key := strings.ToUpper(strings.TrimSpace(id))
	a, ok := c.annexes[key]
	if !ok {
		return Annex{}, fmt.Errorf("annex %q is not in the catalog (have %s)", id, strings.Join(c.IDs(), ", "))
	}
	return Annex{ID: key, Database: a.Database, Table: a.Table + c.suffix, File: a.File}, nil
}

// ResolveAnnexes parses a comma-separated selection such as "1A,3C" or
// "all". Order is preserved and repeats are dropped.
func (c Catalog) ResolveAnnexes(sel string) ([]Annex, error) {
	var ids []string
	if strings.EqualFold(strings.TrimSpace(sel), AllAnnexes) {
		ids = c.IDs()
	} else {
		for _, p := range strings.Split(sel, ",") {
			if p = strings.TrimSpace(p); p != "" {
				ids = append(ids, p)
			}
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no annex selected")
	}

	seen := make(map[string]struct{}, len(ids))
	out := make([]Annex, 0, len(ids))
	for _, id := range ids {
		a, err := c.Lookup(id)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[a.ID]; dup {
			continue
		}
		seen[a.ID] = struct{}{}
		out = append(out, a)
	}
	return out, nil
}

// ForAnnex returns a copy of p targeting annex a: the source path is the
// annex file inside p.Source.Dir and the destination table and database come
// from the catalog.
func (p Pipeline) ForAnnex(a Annex) Pipeline {
	q := p
	q.Job = a.ID
	q.Source.Path = filepath.Join(p.Source.Dir, a.File)
	q.Storage.DB.Table = a.Table
	if p.Storage.DB.Database == "" {
		q.Storage.DB.Database = a.Database
	}
	return q
}
