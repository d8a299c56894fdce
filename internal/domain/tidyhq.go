package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// TidyHQInvoice is the subset of a TidyHQ invoice record the scan reads.
type TidyHQInvoice struct {
	ID                FlexibleID      `json:"id"`
	Name              string          `json:"name"`
	OutstandingAmount decimal.Decimal `json:"outstanding_amount"`
	DueDate           string          `json:"due_date"`
	Paid              bool            `json:"paid"`
	Contact           TidyHQContact   `json:"contact"`
}

type TidyHQContact struct {
	ContactIDReference FlexibleID   `json:"contact_id_reference"`
	DisplayName        string       `json:"display_name"`
	CustomFields       CustomFields `json:"custom_fields"`
}

// FlexibleID accepts IDs encoded either as JSON strings or numbers.
type FlexibleID string

func (id *FlexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexibleID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = FlexibleID(n.String())
	return nil
}

func (id FlexibleID) String() string {
	return string(id)
}

// CustomFields maps a custom field ID to its value rendered as a string.
// TidyHQ returns either an object keyed by field ID or a list of {id, value}.
type CustomFields map[string]string

type customFieldValue struct {
	ID    FlexibleID      `json:"id"`
	Value json.RawMessage `json:"value"`
}

func (c *CustomFields) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	fields := make(CustomFields)

	switch {
	case bytes.Equal(data, []byte("null")):
	case len(data) > 0 && data[0] == '{':
		var byID map[string]customFieldValue
		if err := json.Unmarshal(data, &byID); err != nil {
			return fmt.Errorf("custom_fields object: %w", err)
		}
		for id, field := range byID {
			if v := rawString(field.Value); v != "" {
				fields[id] = v
			}
		}
	case len(data) > 0 && data[0] == '[':
		var list []customFieldValue
		if err := json.Unmarshal(data, &list); err != nil {
			return fmt.Errorf("custom_fields list: %w", err)
		}
		for _, field := range list {
			if v := rawString(field.Value); v != "" {
				fields[field.ID.String()] = v
			}
		}
	default:
		return fmt.Errorf("custom_fields must be an object or list")
	}

	*c = fields
	return nil
}

func rawString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return strings.TrimSpace(string(raw))
}
