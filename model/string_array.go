// Copyright (c) 2017-present Mattermost, Inc. All Rights Reserved.
// See License.txt for license information.

package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// StringArray type to load and save []string in a text column as json using sqlx
type StringArray []string

// Value converts StringArray to database value
func (sa StringArray) Value() (driver.Value, error) {
	if sa == nil {
		return "[]", nil
	}
	b, err := json.Marshal(sa)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan converts database column value to StringArray
func (sa *StringArray) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, sa)
	case string:
		return json.Unmarshal([]byte(v), sa)
	default:
		return errors.New("received value is neither a byte slice nor a string")
	}
}
