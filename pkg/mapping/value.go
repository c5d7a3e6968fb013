package mapping

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/spf13/cast"
)

// ErrUnsupportedValue matches every *UnsupportedValueError via errors.Is.
var ErrUnsupportedValue = errors.New("unsupported property value")

// UnsupportedValueError reports a property value outside the supported shapes:
// a scalar (bool, string, integer, float, time.Time) or a flat sequence of scalars.
type UnsupportedValueError struct {
	Property string
	Value    any
	Reason   string
}

func (e *UnsupportedValueError) Error() string {
	if e.Property == "" {
		return fmt.Sprintf("unsupported property value %T: %s", e.Value, e.Reason)
	}
	return fmt.Sprintf("unsupported value %T for property %q: %s", e.Value, e.Property, e.Reason)
}

// Is lets errors.Is(err, ErrUnsupportedValue) match.
func (e *UnsupportedValueError) Is(target error) bool {
	return target == ErrUnsupportedValue
}

// isScalar reports whether v is one of the supported scalar types.
func isScalar(v any) bool {
	switch v.(type) {
	case bool, string,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64,
		time.Time:
		return true
	default:
		return false
	}
}

// sequence returns the elements of v when v is a slice or array.
func sequence(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// stringValue renders v the way documents store forced strings and keys.
func stringValue(v any) string {
	if t, ok := v.(time.Time); ok {
		return t.Format(time.RFC3339Nano)
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return s
}
