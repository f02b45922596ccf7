package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Trend is one candidate topic returned by a trend source
type Trend struct {
	Name   string `json:"name"`
	Source string `json:"source"` // google, twitter, static, fallback
}

// TrendNames returns the trend names in order
func TrendNames(trends []Trend) []string {
	names := make([]string, 0, len(trends))
	for _, t := range trends {
		names = append(names, t.Name)
	}
	return names
}

// StringSlice is a custom type for storing string arrays in JSON
type StringSlice []string

func (s StringSlice) Value() (driver.Value, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (s *StringSlice) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*s = nil
		return nil
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("unsupported StringSlice source %T", value)
	}
}
