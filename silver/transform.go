package silver

import (
	"math"
	"strconv"
	"strings"

	"realestate_ai/jsonval"
	"realestate_ai/models"
)

// Row holds one silver row aligned with Columns. Cells are nil, int64,
// float64, string, bool, time.Time or []string depending on column type.
type Row []any

// Get returns the cell of the named column, or nil for unknown names.
func (r Row) Get(name string) any {
	i, ok := columnIndex[name]
	if !ok || i >= len(r) {
		return nil
	}
	return r[i]
}

// Transform projects a flattened record onto the silver schema. Cells that
// fail coercion are nil; the rest of the row is unaffected.
func Transform(rec Record) Row {
	row := make(Row, len(Columns))
	for i, c := range Columns {
		if c.Derive != nil {
			row[i] = c.Derive(rec)
			continue
		}
		row[i] = Coerce(lookup(rec, c.Sources), c)
	}
	return row
}

// Coerce converts a flattened value to the Go type of the column.
func Coerce(v jsonval.Value, c Column) any {
	if v.IsNull() {
		return nil
	}
	switch c.Type {
	case TypeInt:
		f, ok := numberOf(v)
		if !ok {
			return nil
		}
		f = math.Round(f)
		if f < math.MinInt64 || f >= math.MaxInt64 {
			return nil
		}
		return int64(f)
	case TypeFloat:
		f, ok := numberOf(v)
		if !ok {
			return nil
		}
		return roundTo(f, c.Digits)
	case TypeString:
		if s, ok := v.Text(); ok {
			return s
		}
	case TypeCategory:
		if s, ok := v.Text(); ok {
			return strings.ToLower(s)
		}
	case TypeBool:
		return boolOf(v)
	case TypeTime:
		s, ok := v.Str()
		if !ok {
			return nil
		}
		t, err := models.ParseTimestamp(&s)
		if err != nil || t == nil {
			return nil
		}
		return *t
	case TypeStringList:
		return stringListOf(v)
	}
	return nil
}

func numberOf(v jsonval.Value) (float64, bool) {
	if f, ok := v.Float(); ok {
		return f, !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	s, ok := v.Str()
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func roundTo(f float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(f*p) / p
}

func boolOf(v jsonval.Value) any {
	if b, ok := v.Bool(); ok {
		return b
	}
	if f, ok := v.Float(); ok {
		return f != 0
	}
	s, ok := v.Str()
	if !ok {
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "yes", "y", "t":
		return true
	case "false", "0", "no", "n", "f":
		return false
	}
	return nil
}

// stringListOf keeps list members as strings. A plain string is split on
// commas.
func stringListOf(v jsonval.Value) any {
	if items, ok := v.List(); ok {
		out := make([]string, 0, len(items))
		for _, it := range items {
			if s, ok := it.Text(); ok {
				out = append(out, s)
			}
		}
		return out
	}
	s, ok := v.Str()
	if !ok {
		return nil
	}
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
