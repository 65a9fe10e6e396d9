package adapter

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ormkit/ormkit/ormerr"
)

// DefaultRegistry returns a new registry seeded with the adapter set every
// backend gets by default (spec §4.2): datetime, boolean, UUID (text and
// bytes), JSON, decimal, byte blobs, and generic typed arrays.
func DefaultRegistry() *Registry {
	r := New()

	mustRegister(r, reflect.TypeOf(time.Time{}), WireDateTime, timeAdapter{})
	mustRegister(r, reflect.TypeOf(false), WireBoolean, boolAdapter{})
	mustRegister(r, reflect.TypeOf(uuid.UUID{}), WireUUIDText, uuidTextAdapter{})
	mustRegister(r, reflect.TypeOf(uuid.UUID{}), WireUUIDBytes, uuidBytesAdapter{})
	mustRegister(r, reflect.TypeOf(map[string]any{}), WireJSONText, jsonAdapter{})
	mustRegister(r, reflect.TypeOf([]any{}), WireJSONText, jsonAdapter{})
	mustRegister(r, reflect.TypeOf(decimal.Decimal{}), WireDecimal, decimalAdapter{})
	mustRegister(r, reflect.TypeOf([]byte{}), WireBlob, blobAdapter{})
	mustRegister(r, reflect.TypeOf([]string{}), WireArrayText, stringArrayAdapter{})
	mustRegister(r, reflect.TypeOf([]int64{}), WireArrayText, int64ArrayAdapter{})

	return r
}

func mustRegister(r *Registry, t reflect.Type, w Wire, a Adapter) {
	if err := r.Register(t, w, a, false); err != nil {
		panic(fmt.Sprintf("adapter: default registration failed for (%s, %s): %v", t, w, err))
	}
}

// timeAdapter renders time.Time as RFC3339 text with timezone preserved
// (spec S6: "2024-01-01T12:30:45+00:00" round-trips exactly).
type timeAdapter struct{}

func (timeAdapter) ToDB(value any, _ Options) (any, error) {
	t, ok := value.(time.Time)
	if !ok {
		return nil, ormerr.Newf(ormerr.TypeConversion, "expected time.Time, got %T", value)
	}
	return t.Format(time.RFC3339), nil
}

func (timeAdapter) FromDB(value any, opts Options) (any, error) {
	s, ok := value.(string)
	if !ok {
		if t, ok := value.(time.Time); ok {
			return t, nil
		}
		return nil, ormerr.Newf(ormerr.TypeConversion, "expected string or time.Time, got %T", value)
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, ormerr.Wrap(ormerr.TypeConversion, fmt.Sprintf("malformed datetime %q", s), err)
	}
	if tz, ok := opts["timezone"].(*time.Location); ok && tz != nil {
		parsed = parsed.In(tz)
	}
	return parsed, nil
}

type boolAdapter struct{}

func (boolAdapter) ToDB(value any, _ Options) (any, error) {
	b, ok := value.(bool)
	if !ok {
		return nil, ormerr.Newf(ormerr.TypeConversion, "expected bool, got %T", value)
	}
	return b, nil
}

func (boolAdapter) FromDB(value any, _ Options) (any, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case int64:
		return v != 0, nil
	case int:
		return v != 0, nil
	case string:
		return v == "1" || v == "t" || v == "true", nil
	default:
		return nil, ormerr.Newf(ormerr.TypeConversion, "cannot convert %T to bool", value)
	}
}

type uuidTextAdapter struct{}

func (uuidTextAdapter) ToDB(value any, _ Options) (any, error) {
	u, ok := value.(uuid.UUID)
	if !ok {
		return nil, ormerr.Newf(ormerr.TypeConversion, "expected uuid.UUID, got %T", value)
	}
	return u.String(), nil
}

func (uuidTextAdapter) FromDB(value any, _ Options) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, ormerr.Newf(ormerr.TypeConversion, "expected string, got %T", value)
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return nil, ormerr.Wrap(ormerr.TypeConversion, fmt.Sprintf("malformed uuid %q", s), err)
	}
	return u, nil
}

type uuidBytesAdapter struct{}

func (uuidBytesAdapter) ToDB(value any, _ Options) (any, error) {
	u, ok := value.(uuid.UUID)
	if !ok {
		return nil, ormerr.Newf(ormerr.TypeConversion, "expected uuid.UUID, got %T", value)
	}
	return u[:], nil
}

func (uuidBytesAdapter) FromDB(value any, _ Options) (any, error) {
	b, ok := value.([]byte)
	if !ok {
		return nil, ormerr.Newf(ormerr.TypeConversion, "expected []byte, got %T", value)
	}
	u, err := uuid.FromBytes(b)
	if err != nil {
		return nil, ormerr.Wrap(ormerr.TypeConversion, "malformed uuid bytes", err)
	}
	return u, nil
}

// jsonAdapter stores both objects (map[string]any) and arrays ([]any) as
// text, per spec §4.2 ("JSON (object/array as text)").
type jsonAdapter struct{}

func (jsonAdapter) ToDB(value any, _ Options) (any, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return nil, ormerr.Wrap(ormerr.TypeConversion, "failed to marshal JSON value", err)
	}
	return string(b), nil
}

func (jsonAdapter) FromDB(value any, _ Options) (any, error) {
	var raw []byte
	switch v := value.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return nil, ormerr.Newf(ormerr.TypeConversion, "expected string or []byte JSON, got %T", value)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, ormerr.Wrap(ormerr.TypeConversion, "malformed JSON value", err)
	}
	return out, nil
}

type decimalAdapter struct{}

func (decimalAdapter) ToDB(value any, _ Options) (any, error) {
	d, ok := value.(decimal.Decimal)
	if !ok {
		return nil, ormerr.Newf(ormerr.TypeConversion, "expected decimal.Decimal, got %T", value)
	}
	return d.String(), nil
}

func (decimalAdapter) FromDB(value any, _ Options) (any, error) {
	switch v := value.(type) {
	case string:
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, ormerr.Wrap(ormerr.TypeConversion, fmt.Sprintf("malformed decimal %q", v), err)
		}
		return d, nil
	case float64:
		return decimal.NewFromFloat(v), nil
	default:
		return nil, ormerr.Newf(ormerr.TypeConversion, "cannot convert %T to decimal", value)
	}
}

type blobAdapter struct{}

func (blobAdapter) ToDB(value any, _ Options) (any, error) {
	b, ok := value.([]byte)
	if !ok {
		return nil, ormerr.Newf(ormerr.TypeConversion, "expected []byte, got %T", value)
	}
	return b, nil
}

func (blobAdapter) FromDB(value any, _ Options) (any, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, ormerr.Newf(ormerr.TypeConversion, "cannot convert %T to []byte", value)
	}
}

// stringArrayAdapter and int64ArrayAdapter store typed slices as a JSON
// array of text, per spec §4.2's "arrays" entry. Element conversion
// failures surface as TypeConversion, not a panic.
type stringArrayAdapter struct{}

func (stringArrayAdapter) ToDB(value any, _ Options) (any, error) {
	arr, ok := value.([]string)
	if !ok {
		return nil, ormerr.Newf(ormerr.TypeConversion, "expected []string, got %T", value)
	}
	b, err := json.Marshal(arr)
	if err != nil {
		return nil, ormerr.Wrap(ormerr.TypeConversion, "failed to marshal string array", err)
	}
	return string(b), nil
}

func (stringArrayAdapter) FromDB(value any, _ Options) (any, error) {
	raw, err := toBytes(value)
	if err != nil {
		return nil, err
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, ormerr.Wrap(ormerr.TypeConversion, "malformed string array element", err)
	}
	return out, nil
}

type int64ArrayAdapter struct{}

func (int64ArrayAdapter) ToDB(value any, _ Options) (any, error) {
	arr, ok := value.([]int64)
	if !ok {
		return nil, ormerr.Newf(ormerr.TypeConversion, "expected []int64, got %T", value)
	}
	b, err := json.Marshal(arr)
	if err != nil {
		return nil, ormerr.Wrap(ormerr.TypeConversion, "failed to marshal int64 array", err)
	}
	return string(b), nil
}

func (int64ArrayAdapter) FromDB(value any, _ Options) (any, error) {
	raw, err := toBytes(value)
	if err != nil {
		return nil, err
	}
	var out []int64
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, ormerr.Wrap(ormerr.TypeConversion, "malformed int64 array element", err)
	}
	return out, nil
}

func toBytes(value any) ([]byte, error) {
	switch v := value.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return nil, ormerr.Newf(ormerr.TypeConversion, "expected string or []byte array, got %T", value)
	}
}

// StringerEnum adapts any named string type (an "enum" in spec §4.2's
// sense) to wire text, round-tripping through fmt.Stringer when available.
type StringerEnum struct {
	// New constructs the zero-valued enum instance for FromDB to populate
	// via its fmt.Sscan-compatible type, if the enum type implements
	// encoding.TextUnmarshaler-like behavior through FromText.
	FromText func(s string) (any, error)
}

func (e StringerEnum) ToDB(value any, _ Options) (any, error) {
	if s, ok := value.(fmt.Stringer); ok {
		return s.String(), nil
	}
	return fmt.Sprintf("%v", value), nil
}

func (e StringerEnum) FromDB(value any, _ Options) (any, error) {
	s, ok := value.(string)
	if !ok {
		return nil, ormerr.Newf(ormerr.TypeConversion, "expected string for enum, got %T", value)
	}
	if e.FromText == nil {
		return s, nil
	}
	out, err := e.FromText(s)
	if err != nil {
		return nil, ormerr.Wrap(ormerr.TypeConversion, fmt.Sprintf("invalid enum value %q", s), err)
	}
	return out, nil
}
