package record

import (
	"encoding/json"
	"fmt"

	domainerrors "github.com/Turnage-Digital/Holmes-sub001/internal/errors"
)

// envelope wraps a record variant with its type tag for storage and wire use.
type envelope struct {
	Type Type            `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Encode serializes a record with its type discriminator.
func Encode(r Record) ([]byte, error) {
	if r == nil {
		return nil, domainerrors.New(domainerrors.CodeRecordInvalid, "record is required")
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	raw, err := json.Marshal(envelope{Type: r.RecordType(), Data: data})
	if err != nil {
		return nil, fmt.Errorf("marshal record envelope: %w", err)
	}
	return raw, nil
}

// Decode deserializes a record, rejecting unknown type discriminators.
func Decode(raw []byte) (Record, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("unmarshal record envelope: %w", err)
	}

	var target Record
	switch env.Type {
	case TypeCriminal:
		target = &Criminal{}
	case TypeEmployment:
		target = &Employment{}
	case TypeEducation:
		target = &Education{}
	case TypeIdentity:
		target = &Identity{}
	case TypeAddress:
		target = &Address{}
	case TypeSanctions:
		target = &Sanctions{}
	case TypeDriving:
		target = &Driving{}
	case TypeDrugTest:
		target = &DrugTest{}
	default:
		return nil, domainerrors.Newf(domainerrors.CodeRecordTypeUnknown, "unknown record type %q", env.Type)
	}
	if err := json.Unmarshal(env.Data, target); err != nil {
		return nil, fmt.Errorf("unmarshal %s record: %w", env.Type, err)
	}
	return deref(target), nil
}

// deref returns the value form of a decoded record pointer so callers
// compare and store records by value.
func deref(r Record) Record {
	switch typed := r.(type) {
	case *Criminal:
		return *typed
	case *Employment:
		return *typed
	case *Education:
		return *typed
	case *Identity:
		return *typed
	case *Address:
		return *typed
	case *Sanctions:
		return *typed
	case *Driving:
		return *typed
	case *DrugTest:
		return *typed
	default:
		return r
	}
}

// EncodeList serializes a slice of records.
func EncodeList(records []Record) ([]byte, error) {
	envelopes := make([]json.RawMessage, 0, len(records))
	for _, r := range records {
		raw, err := Encode(r)
		if err != nil {
			return nil, err
		}
		envelopes = append(envelopes, raw)
	}
	raw, err := json.Marshal(envelopes)
	if err != nil {
		return nil, fmt.Errorf("marshal record list: %w", err)
	}
	return raw, nil
}

// DecodeList deserializes a slice of records.
func DecodeList(raw []byte) ([]Record, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var envelopes []json.RawMessage
	if err := json.Unmarshal(raw, &envelopes); err != nil {
		return nil, fmt.Errorf("unmarshal record list: %w", err)
	}
	records := make([]Record, 0, len(envelopes))
	for _, env := range envelopes {
		r, err := Decode(env)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}
