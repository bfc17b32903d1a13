package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONMap stores a free-form JSON object in a text column.
type JSONMap map[string]interface{}

// Value implements driver.Valuer.
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (m *JSONMap) Scan(src interface{}) error {
	return scanJSON(src, m, "{}")
}

// JSONList stores a free-form JSON array in a text column.
type JSONList []interface{}

// Value implements driver.Valuer.
func (l JSONList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *JSONList) Scan(src interface{}) error {
	return scanJSON(src, l, "[]")
}

// StringList stores a list of strings (attachment IDs, roles) as JSON text.
type StringList []string

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src interface{}) error {
	return scanJSON(src, l, "[]")
}

// FloatList stores numeric reading arrays (grid readings, particle counts)
// as JSON text.
type FloatList []float64

// Value implements driver.Valuer.
func (l FloatList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal(l)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (l *FloatList) Scan(src interface{}) error {
	return scanJSON(src, l, "[]")
}

func scanJSON(src, dst interface{}, empty string) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		data = []byte(empty)
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported JSON column type %T", src)
	}
	if len(data) == 0 {
		data = []byte(empty)
	}
	return json.Unmarshal(data, dst)
}
