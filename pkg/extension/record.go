package extension

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var ErrInvalidRecord = errors.New("invalid extension record")

// Record is an installed extension as stored for a workspace.
type Record struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	URL    string         `json:"url"`
	Config map[string]any `json:"config" validate:"required,contextobject"`
	Token  string         `json:"token"`
	Data   any            `json:"data,omitempty"`
}

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidRecord, strings.Join(e.Fields, ", "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalidRecord }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("contextobject", func(fl validator.FieldLevel) bool {
		m, ok := fl.Field().Interface().(map[string]any)
		return ok && ValidateContext(m) == nil
	})
	return v
}

// ValidateRecord checks r at the data boundary.
func ValidateRecord(r Record) error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		field := fe.Field()
		if fe.Tag() == "contextobject" {
			if cerr := ValidateContext(r.Config); cerr != nil {
				field = cerr.Error()
			}
		}
		out.Fields = append(out.Fields, field)
	}
	return out
}

// DecodeRecord parses and validates a stored record.
func DecodeRecord(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if err := requireKeys(data, "id", "name", "url", "token"); err != nil {
		return Record{}, err
	}
	if err := ValidateRecord(r); err != nil {
		return Record{}, err
	}
	return r, nil
}

// requireKeys reports keys that are absent or null. Empty strings are allowed.
func requireKeys(data []byte, keys ...string) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	out := &ValidationError{}
	for _, k := range keys {
		v, ok := raw[k]
		if !ok || string(v) == "null" {
			out.Fields = append(out.Fields, k)
		}
	}
	if len(out.Fields) > 0 {
		return out
	}
	return nil
}

// ValidateContext checks that every value in a config object is a string,
// number, boolean, or a nested object or array of such values.
func ValidateContext(obj map[string]any) error {
	return validateObject("config", obj)
}

func validateObject(path string, obj map[string]any) error {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := validateValue(path+"."+k, obj[k]); err != nil {
			return err
		}
	}
	return nil
}

func validateValue(path string, v any) error {
	switch val := v.(type) {
	case string, bool, json.Number,
		float64, float32, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return nil
	case map[string]any:
		return validateObject(path, val)
	case []any:
		for i, item := range val {
			if err := validateValue(fmt.Sprintf("%s[%d]", path, i), item); err != nil {
				return err
			}
		}
		return nil
	case nil:
		return fmt.Errorf("%s: null is not allowed", path)
	default:
		return fmt.Errorf("%s: unsupported type %T", path, v)
	}
}
