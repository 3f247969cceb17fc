// Package schema describes the fixed column layout of one load run: the
// source columns in header order, their logical kinds and business limits, the
// identifier column and the column that stores each row's source position.
//
// A Schema is resolved once from the extract header (FromHeader) and then read
// by the transformer, the DDL bootstrappers and the storage backends.
package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the logical type of a column.
type Kind string

const (
	KindText     Kind = "text"
	KindDecimal  Kind = "decimal"
	KindDatetime Kind = "datetime"
	KindInt      Kind = "int"
)

// Defaults for the SAT invoice extracts.
const (
	DefaultIDColumn       = "UUID"
	DefaultPositionColumn = "SOURCE_POSITION"

	// DecimalPrecision is the total digit count of every decimal column.
	DecimalPrecision = 18
)

// ErrNoIdentifier is returned when the header lacks the identifier column.
var ErrNoIdentifier = errors.New("schema: identifier column not in header")

// Column is one data column.
type Column struct {
	Name       string
	Kind       Kind
	MaxLen     int // text only; 0 means unbounded
	Scale      int // decimal only
	Required   bool
	PrimaryKey bool
}

// Schema is the ordered set of data columns plus the two bookkeeping columns.
type Schema struct {
	Columns        []Column
	IDColumn       string
	PositionColumn string
}

// Names returns the data column names in order.
func (s Schema) Names() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// DestColumns returns the destination column list: data columns followed by
// the position column. Storage backends write rows in this order.
func (s Schema) DestColumns() []string {
	return append(s.Names(), s.PositionColumn)
}

// Index returns the position of the named column in Columns, or -1. The
// comparison is case-insensitive, like the SQL Server collations the data is
// loaded into.
func (s Schema) Index(name string) int {
	for i, c := range s.Columns {
		if strings.EqualFold(c.Name, name) {
			return i
		}
	}
	return -1
}

// IDIndex returns the index of the identifier column.
func (s Schema) IDIndex() int { return s.Index(s.IDColumn) }

// Options tune FromHeader.
type Options struct {
	IDColumn       string
	PositionColumn string
	// Required lists additional columns that must be present in every row.
	Required []string
	// Types overrides the kind of individual columns, keyed case-insensitively.
	Types map[string]Kind
}

// FromHeader builds the schema for a header row.
//
// Kinds come from the SAT type rules (datetime and money columns); everything
// else is text. Text limits come from the business length rules, matched as
// substrings of the upper-cased name in rule order. The identifier column is
// required and is the primary key.
func FromHeader(header []string, opt Options) (Schema, error) {
	s := Schema{
		IDColumn:       firstNonEmpty(opt.IDColumn, DefaultIDColumn),
		PositionColumn: firstNonEmpty(opt.PositionColumn, DefaultPositionColumn),
	}

	types := make(map[string]Kind, len(opt.Types))
	for k, v := range opt.Types {
		types[strings.ToUpper(strings.TrimSpace(k))] = v
	}
	required := make(map[string]struct{}, len(opt.Required))
	for _, r := range opt.Required {
		required[strings.ToUpper(strings.TrimSpace(r))] = struct{}{}
	}

	seen := make(map[string]struct{}, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			return Schema{}, fmt.Errorf("schema: header column %d is empty", i+1)
		}
		up := strings.ToUpper(name)
		if _, dup := seen[up]; dup {
			return Schema{}, fmt.Errorf("schema: duplicate header column %q", name)
		}
		seen[up] = struct{}{}
		if strings.EqualFold(name, s.PositionColumn) {
			return Schema{}, fmt.Errorf("schema: header column %q collides with the position column", name)
		}

		c := classify(name)
		if k, ok := types[up]; ok {
			c.Kind = k
			if k != KindText {
				c.MaxLen = 0
			}
			if k == KindDecimal && c.Scale == 0 {
				c.Scale = 2
			}
		}
		if _, ok := required[up]; ok {
			c.Required = true
		}
		if strings.EqualFold(name, s.IDColumn) {
			c.Name = name
			c.Kind = KindText
			c.MaxLen = 36
			c.Required = true
			c.PrimaryKey = true
		}
		s.Columns = append(s.Columns, c)
	}

	if s.IDIndex() < 0 {
		return Schema{}, fmt.Errorf("%w: %q", ErrNoIdentifier, s.IDColumn)
	}
	return s, nil
}

func classify(name string) Column {
	up := strings.ToUpper(name)
	c := Column{Name: name, Kind: KindText}

	switch k := satTypes[up]; k {
	case KindDatetime:
		c.Kind = KindDatetime
		return c
	case KindDecimal:
		c.Kind = KindDecimal
		c.Scale = 2
		if strings.Contains(up, "CAMBIO") {
			c.Scale = 4
		}
		return c
	}

	for _, bl := range businessLengths {
		if !strings.Contains(up, bl.key) {
			continue
		}
		if bl.scale > 0 {
			c.Kind = KindDecimal
			c.Scale = bl.scale
		} else {
			c.MaxLen = bl.length
		}
		return c
	}
	return c
}

func firstNonEmpty(v ...string) string {
	for _, s := range v {
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}
