package entity

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/ormkit/ormkit/ormerr"
)

// assignValue sets field (addressable) from a raw driver value, doing
// the same family of numeric/time/string widening conversions as the
// teacher's deserializeToFieldValue, minus its unsafe-pointer field
// access — every field reached here comes from reflect.New, which is
// always addressable through the normal reflect API.
func assignValue(field reflect.Value, value any) error {
	if value == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}

	rv := reflect.ValueOf(value)
	if rv.Type().AssignableTo(field.Type()) {
		field.Set(rv)
		return nil
	}
	if rv.Type().ConvertibleTo(field.Type()) && isNumericKind(rv.Kind()) && isNumericKind(field.Kind()) {
		field.Set(rv.Convert(field.Type()))
		return nil
	}

	switch field.Interface().(type) {
	case time.Time:
		t, err := coerceTime(value)
		if err != nil {
			return err
		}
		field.Set(reflect.ValueOf(t))
		return nil
	case string:
		field.SetString(coerceString(value))
		return nil
	case bool:
		b, err := coerceBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
		return nil
	}

	switch field.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := coerceInt64(value)
		if err != nil {
			return err
		}
		field.SetInt(n)
		return nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := coerceUint64(value)
		if err != nil {
			return err
		}
		field.SetUint(n)
		return nil
	case reflect.Float32, reflect.Float64:
		f, err := coerceFloat64(value)
		if err != nil {
			return err
		}
		field.SetFloat(f)
		return nil
	case reflect.Ptr:
		if field.Type().Elem().Kind() == reflect.Struct || isScalarPtrTarget(field.Type().Elem()) {
			inner := reflect.New(field.Type().Elem())
			if err := assignValue(inner.Elem(), value); err != nil {
				return err
			}
			field.Set(inner)
			return nil
		}
	}

	if rv.Type().ConvertibleTo(field.Type()) {
		field.Set(rv.Convert(field.Type()))
		return nil
	}

	return ormerr.Newf(ormerr.TypeConversion, "cannot assign %T into %s", value, field.Type())
}

func isScalarPtrTarget(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.String, reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return t == reflect.TypeOf(time.Time{})
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func coerceString(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func coerceBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case int:
		return v != 0, nil
	case []byte:
		return parseBool(string(v))
	case string:
		return parseBool(v)
	default:
		return false, ormerr.Newf(ormerr.TypeConversion, "cannot convert %T to bool", value)
	}
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "t", "true", "1":
		return true, nil
	case "f", "false", "0":
		return false, nil
	}
	return strconv.ParseBool(s)
}

func coerceInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, ormerr.Newf(ormerr.TypeConversion, "cannot convert %T to int", value)
	}
}

func coerceUint64(value any) (uint64, error) {
	switch v := value.(type) {
	case uint64:
		return v, nil
	case int64:
		if v < 0 {
			return 0, ormerr.Newf(ormerr.TypeConversion, "cannot convert negative %d to uint", v)
		}
		return uint64(v), nil
	case int:
		if v < 0 {
			return 0, ormerr.Newf(ormerr.TypeConversion, "cannot convert negative %d to uint", v)
		}
		return uint64(v), nil
	case []byte:
		return strconv.ParseUint(string(v), 10, 64)
	case string:
		return strconv.ParseUint(v, 10, 64)
	default:
		return 0, ormerr.Newf(ormerr.TypeConversion, "cannot convert %T to uint", value)
	}
}

func coerceFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case []byte:
		return strconv.ParseFloat(string(v), 64)
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, ormerr.Newf(ormerr.TypeConversion, "cannot convert %T to float64", value)
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func coerceTime(value any) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case []byte:
		return parseTimeString(string(v))
	case string:
		return parseTimeString(v)
	default:
		return time.Time{}, ormerr.Newf(ormerr.TypeConversion, "cannot convert %T to time.Time", value)
	}
}

func parseTimeString(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ormerr.Newf(ormerr.TypeConversion, "unable to parse time %q", s)
}

// isZero reports whether v holds its type's zero value, used to decide
// whether a pk value counts as "unset" (spec §4.9's Save dispatch
// between Create and Update) and to keep Insert columns uncluttered.
func isZero(v reflect.Value) bool {
	return v.IsZero()
}
