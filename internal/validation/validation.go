package validation

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strings"

	"github.com/arthur-debert/nanotree/types"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks tree options for consistency. Options are expected to have
// defaults applied already.
func Validate(opts types.Options) error {
	if err := ValidateIdentifier(opts.Table, "table"); err != nil {
		return err
	}

	// Semantic fields must be usable column names and distinct
	seen := make(map[string]string)
	named := []struct{ role, name string }{
		{"id field", opts.IDField},
		{"path field", opts.PathField},
		{"parent id field", opts.ParentIDField},
		{"depth field", opts.DepthField},
		{"num children field", opts.NumChildrenField},
		{"data field", opts.DataField},
	}
	for _, f := range named {
		if err := ValidateIdentifier(f.name, f.role); err != nil {
			return err
		}
		key := strings.ToLower(f.name)
		if other, exists := seen[key]; exists {
			return fmt.Errorf("%w: %s %q conflicts with %s", types.ErrInvalidConfig, f.role, f.name, other)
		}
		seen[key] = f.role
	}

	for _, field := range opts.OrderBy {
		if err := ValidateIdentifier(field, "order by field"); err != nil {
			return err
		}
		key := strings.ToLower(field)
		if other, exists := seen[key]; exists {
			return fmt.Errorf("%w: order by field %q conflicts with %s", types.ErrInvalidConfig, field, other)
		}
		seen[key] = "order by field"
	}

	if err := ValidateAlphabet(opts.Alphabet); err != nil {
		return err
	}
	return ValidateStepLength(len(opts.Alphabet), opts.StepLength)
}

// ValidateIdentifier ensures a name can be spliced into SQL as a column or
// table name.
func ValidateIdentifier(name, role string) error {
	if name == "" {
		return fmt.Errorf("%w: %s cannot be empty", types.ErrInvalidConfig, role)
	}
	if !identifierPattern.MatchString(name) {
		return fmt.Errorf("%w: %s %q must match %s", types.ErrInvalidConfig, role, name, identifierPattern)
	}
	if IsReservedName(name) {
		return fmt.Errorf("%w: %s %q is a reserved word", types.ErrInvalidConfig, role, name)
	}
	return nil
}

// ValidateAlphabet requires at least two single-byte symbols in strictly
// ascending byte order, so that lexicographic path order is numeric order.
func ValidateAlphabet(alphabet string) error {
	if len(alphabet) < 2 {
		return fmt.Errorf("%w: alphabet needs at least 2 symbols, got %d", types.ErrInvalidConfig, len(alphabet))
	}
	for i := 0; i < len(alphabet); i++ {
		c := alphabet[i]
		if c < 0x21 || c > 0x7e {
			return fmt.Errorf("%w: alphabet symbol %q at %d is not printable ASCII", types.ErrInvalidConfig, c, i)
		}
		if i > 0 && alphabet[i-1] >= c {
			return fmt.Errorf("%w: alphabet must be in ascending order (%q before %q)", types.ErrInvalidConfig, alphabet[i-1], c)
		}
	}
	return nil
}

// ValidateStepLength requires base^step to be representable as int64.
func ValidateStepLength(base, step int) error {
	if step < 1 {
		return fmt.Errorf("%w: step length must be positive, got %d", types.ErrInvalidConfig, step)
	}
	if float64(step)*math.Log2(float64(base)) >= 63 {
		return fmt.Errorf("%w: step length %d with %d symbols exceeds 63 bits", types.ErrInvalidConfig, step, base)
	}
	return nil
}

// IsReservedName checks names that would collide with SQL keywords.
func IsReservedName(name string) bool {
	reserved := []string{
		"select", "from", "where", "order", "by", "group", "having",
		"insert", "update", "delete", "create", "drop", "alter",
		"table", "index", "and", "or", "not", "null", "like",
	}

	name = strings.ToLower(name)
	for _, reservedName := range reserved {
		if name == reservedName {
			return true
		}
	}

	return false
}

// ValidateSimpleType ensures a payload value used for ordering is a simple
// type (string, number, bool).
func ValidateSimpleType(value interface{}, fieldName string) error {
	if value == nil {
		return nil
	}

	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return nil
	case reflect.Slice, reflect.Array:
		return fmt.Errorf("field '%s' cannot be an array/slice type, got %T", fieldName, value)
	case reflect.Map:
		return fmt.Errorf("field '%s' cannot be a map type, got %T", fieldName, value)
	case reflect.Ptr:
		if v.IsNil() {
			return nil
		}
		return ValidateSimpleType(v.Elem().Interface(), fieldName)
	default:
		return fmt.Errorf("field '%s' must be a simple type (string, number, or bool), got %T", fieldName, value)
	}
}

// NormalizeSimpleType converts a simple value to its canonical form: nil,
// string, bool, int64 or float64. Pointers are dereferenced.
func NormalizeSimpleType(value interface{}, fieldName string) (interface{}, error) {
	if err := ValidateSimpleType(value, fieldName); err != nil {
		return nil, err
	}
	if value == nil {
		return nil, nil
	}
	v := reflect.ValueOf(value)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil, nil
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.String:
		return v.String(), nil
	case reflect.Bool:
		return v.Bool(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := v.Uint()
		if u > math.MaxInt64 {
			return float64(u), nil
		}
		return int64(u), nil
	default:
		return v.Float(), nil
	}
}
