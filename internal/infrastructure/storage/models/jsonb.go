// Package models holds the bun ORM row types backing the
// repository (spec §4.7), grounded on the teacher's
// internal/infrastructure/storage/models package: bun.BaseModel
// embedding, BeforeAppendModel timestamp/ID hooks, and a JSONBMap
// custom type for jsonb columns.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSONBMap stores a node or job-step's config/config_snapshot as a
// jsonb column.
type JSONBMap map[string]interface{}

func (j JSONBMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (j *JSONBMap) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSONBMap)
		return nil
	}
	b, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			b = []byte(s)
		} else {
			return errors.New("JSONBMap: value is not []byte or string")
		}
	}
	if len(b) == 0 {
		*j = make(JSONBMap)
		return nil
	}
	return json.Unmarshal(b, j)
}
