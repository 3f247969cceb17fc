package normalize

import (
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

//go:embed rules/*.json
var builtin embed.FS

// Built-in table names.
const (
	TableMojibake = "mojibake"
	TableRFC      = "rfc"
)

// Builtin returns one of the tables shipped with the binary.
func Builtin(name string) (Table, error) {
	f, err := builtin.Open("rules/" + name + ".json")
	if err != nil {
		return Table{}, fmt.Errorf("normalize: unknown builtin table %q", name)
	}
	defer f.Close()
	return ReadTable(f)
}

// ReadTable decodes a JSON table:
//
//	{"name": "mojibake", "version": "2025.3", "rules": [{"from": "Ã±", "to": "Ñ"}]}
func ReadTable(r io.Reader) (Table, error) {
	var t Table
	if err := json.NewDecoder(r).Decode(&t); err != nil {
		return Table{}, fmt.Errorf("normalize: decode table: %w", err)
	}
	return t, nil
}

// LoadTable reads a table from path, falling back to the builtin table named
// def when path is empty.
func LoadTable(path, def string) (Table, error) {
	if path == "" {
		return Builtin(def)
	}
	f, err := os.Open(path)
	if err != nil {
		return Table{}, fmt.Errorf("normalize: open %s: %w", path, err)
	}
	defer f.Close()
	return ReadTable(f)
}
