package domain

import "encoding/json"

// MultiValue is one entry of a multi-valued field such as EMAIL or PHONE.
type MultiValue struct {
	Value     string `json:"VALUE"`
	ValueType string `json:"VALUE_TYPE"`
}

// RecordPayload maps field identifiers to the values sent on create.
// Multi-valued fields hold []MultiValue; absent values have no key.
type RecordPayload map[string]any

// FirstValue returns the first entry of a multi-valued field, if populated.
func (p RecordPayload) FirstValue(fieldID string) (string, bool) {
	entries, ok := p[fieldID].([]MultiValue)
	if !ok || len(entries) == 0 {
		return "", false
	}
	return entries[0].Value, true
}

// UnmarshalJSON restores EMAIL and PHONE entries as []MultiValue so payloads read back
// from storage keep their identity values.
func (p *RecordPayload) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		*p = nil
		return nil
	}

	out := make(RecordPayload, len(raw))
	for key, value := range raw {
		if IsMultiValue(key) {
			var entries []MultiValue
			if err := json.Unmarshal(value, &entries); err == nil {
				out[key] = entries
				continue
			}
		}
		var decoded any
		if err := json.Unmarshal(value, &decoded); err != nil {
			return err
		}
		out[key] = decoded
	}
	*p = out
	return nil
}

// Identity holds the values used to look up an existing record.
type Identity struct {
	Email string
	Phone string
}

// Empty reports whether no identity value is present.
func (i Identity) Empty() bool {
	return i.Email == "" && i.Phone == ""
}

// IdentityOf extracts the first EMAIL and first PHONE values of the payload.
func IdentityOf(p RecordPayload) Identity {
	var id Identity
	id.Email, _ = p.FirstValue(FieldEmail)
	id.Phone, _ = p.FirstValue(FieldPhone)
	return id
}
