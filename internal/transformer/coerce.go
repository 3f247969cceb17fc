package transformer

import (
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"satload/internal/normalize"
	"satload/internal/schema"
)

// DatetimeLayouts are tried in order for datetime columns. Fractional seconds
// are accepted after the seconds field of any layout. Values carry no zone and
// are read as UTC.
var DatetimeLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006",
}

// colPlan is the compiled pipeline of one column. apply maps a raw value
// (nil for absent, string otherwise) to the canonical value or a reason.
type colPlan struct {
	name  string
	apply func(raw any) (any, Reason)
}

func compileColumn(c schema.Column, n *normalize.Normalizer, upper bool, sentinels map[string]struct{}, isID bool) (colPlan, error) {
	var coerce func(s string) (any, Reason)

	switch c.Kind {
	case schema.KindText, "":
		maxLen := c.MaxLen
		coerce = func(s string) (any, Reason) {
			if upper {
				s = strings.ToUpper(s)
			}
			s = n.Normalize(s)
			if s == "" {
				return nil, ""
			}
			if maxLen > 0 && utf8.RuneCountInString(s) > maxLen {
				return nil, ReasonOutOfRange
			}
			return s, ""
		}

	case schema.KindDecimal:
		scale := c.Scale
		if scale < 0 || scale >= schema.DecimalPrecision {
			return colPlan{}, fmt.Errorf("transformer: column %s: invalid scale %d", c.Name, scale)
		}
		coerce = func(s string) (any, Reason) {
			return parseDecimal(s, scale)
		}

	case schema.KindDatetime:
		coerce = func(s string) (any, Reason) {
			for _, layout := range DatetimeLayouts {
				if t, err := time.Parse(layout, s); err == nil {
					return t, ""
				}
			}
			return nil, ReasonCoercion
		}

	case schema.KindInt:
		coerce = func(s string) (any, Reason) {
			return parseInt(s)
		}

	default:
		return colPlan{}, fmt.Errorf("transformer: column %s: unknown kind %q", c.Name, c.Kind)
	}

	required := c.Required || isID
	return colPlan{
		name: c.Name,
		apply: func(raw any) (any, Reason) {
			if raw == nil {
				if required {
					return nil, ReasonMissingField
				}
				return nil, ""
			}
			s, ok := raw.(string)
			if !ok {
				s = fmt.Sprint(raw)
			}
			s = strings.TrimSpace(s)
			if _, null := sentinels[strings.ToUpper(s)]; null {
				if isID {
					return nil, ReasonMissingField
				}
				return nil, ""
			}
			v, reason := coerce(s)
			if reason == "" && v == nil && isID {
				return nil, ReasonMissingField
			}
			return v, reason
		},
	}, nil
}

// parseDecimal validates s as a decimal and renders it at the column scale,
// rounding half away from zero. Thousands separators (",") are dropped. The
// result must fit DECIMAL(18, scale).
func parseDecimal(s string, scale int) (any, Reason) {
	s = strings.ReplaceAll(s, ",", "")
	if s == "" || strings.Trim(s, "0123456789.+-eE") != "" {
		return nil, ReasonCoercion
	}
	if strings.ContainsAny(s, "eE") {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, ReasonCoercion
		}
		if math.Abs(f) >= 1e18 {
			return nil, ReasonOutOfRange
		}
		s = strconv.FormatFloat(f, 'f', -1, 64)
	}
	var r big.Rat
	if _, ok := r.SetString(s); !ok {
		return nil, ReasonCoercion
	}
	out := r.FloatString(scale)

	digits := out
	if digits[0] == '-' {
		digits = digits[1:]
	}
	if i := strings.IndexByte(digits, '.'); i >= 0 {
		digits = digits[:i]
	}
	digits = strings.TrimLeft(digits, "0")
	if len(digits) > schema.DecimalPrecision-scale {
		return nil, ReasonOutOfRange
	}
	return out, ""
}

// parseInt accepts integers and integral decimals such as "42.0".
func parseInt(s string) (any, Reason) {
	i, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return i, ""
	}
	if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
		return nil, ReasonOutOfRange
	}
	if strings.IndexByte(s, '.') >= 0 {
		if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
			return int64(f), ""
		}
	}
	return nil, ReasonCoercion
}
