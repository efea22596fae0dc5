package backend

import "fmt"

// APIError carries the HTTP status and the decoded error body of a failed
// backend call so callers can inspect structured conflict payloads.
type APIError struct {
	Status  int
	Message string
	Payload map[string]any
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("backend: %s (status %d)", e.Message, e.Status)
}

// Code returns the machine-readable error code from the payload, if any.
func (e *APIError) Code() string {
	if e.Payload == nil {
		return ""
	}
	code, _ := e.Payload["code"].(string)
	return code
}

// FieldConflict is one field-level conflict reported by the backend, e.g. a
// duplicate cedula or email.
type FieldConflict struct {
	Field   string
	Message string
}

// FieldConflicts extracts the errors list of a DUPLICATE_KEY payload.
func (e *APIError) FieldConflicts() []FieldConflict {
	if e.Payload == nil {
		return nil
	}
	items, _ := e.Payload["errors"].([]any)
	var out []FieldConflict
	for _, item := range items {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		field, _ := entry["field"].(string)
		if field == "" {
			continue
		}
		msg, _ := entry["message"].(string)
		out = append(out, FieldConflict{Field: field, Message: msg})
	}
	return out
}
