// Package erp implements the live transactional source client. The
// backend speaks JSON-RPC 2.0 and follows ERP wire conventions: relation
// fields arrive as [id, "label"] pairs, absent values as boolean false.
package erp

import (
	"encoding/json"
	"fmt"
)

// Relation is an optional reference decoded from an [id, "label"] pair.
// A wire value of false leaves the zero Relation.
type Relation struct {
	Label string
	ID    int64
	Set   bool
}

// UnmarshalJSON accepts [id, "label"], false, or null.
func (r *Relation) UnmarshalJSON(data []byte) error {
	*r = Relation{}

	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err == nil {
		if len(pair) < 2 {
			return nil
		}
		if err := json.Unmarshal(pair[0], &r.ID); err != nil {
			return fmt.Errorf("relation id: %w", err)
		}
		if err := json.Unmarshal(pair[1], &r.Label); err != nil {
			return fmt.Errorf("relation label: %w", err)
		}
		r.Set = true
		return nil
	}

	var absent bool
	if err := json.Unmarshal(data, &absent); err == nil {
		return nil
	}
	if string(data) == "null" {
		return nil
	}
	return fmt.Errorf("relation: unexpected value %s", data)
}

// optText is a string field that may arrive as boolean false when unset.
type optText string

func (t *optText) UnmarshalJSON(data []byte) error {
	*t = ""

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = optText(s)
		return nil
	}

	var absent bool
	if err := json.Unmarshal(data, &absent); err == nil {
		return nil
	}
	if string(data) == "null" {
		return nil
	}
	return fmt.Errorf("text field: unexpected value %s", data)
}

func (t optText) String() string {
	return string(t)
}
