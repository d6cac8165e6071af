package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// wireField JSON-представление поля. Снимок кодируется массивом,
// чтобы порядок полей переживал сериализацию.
type wireField struct {
	Key   string          `json:"k"`
	Kind  string          `json:"t"`
	Value json.RawMessage `json:"v"`
}

func (s *Snapshot) MarshalJSON() ([]byte, error) {
	out := make([]wireField, 0, s.Len())
	for _, f := range s.Fields() {
		raw, err := json.Marshal(f.Value.Interface())
		if err != nil {
			return nil, fmt.Errorf("поле %s: %w", f.Key, err)
		}
		out = append(out, wireField{Key: f.Key, Kind: f.Value.kind.String(), Value: raw})
	}
	return json.Marshal(out)
}

func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var in []wireField
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	s.fields = nil
	s.index = make(map[string]int, len(in))

	for _, wf := range in {
		kind, err := parseKind(wf.Kind)
		if err != nil {
			return err
		}
		v, err := decodeValue(kind, wf.Value)
		if err != nil {
			return fmt.Errorf("поле %s: %w", wf.Key, err)
		}
		s.set(wf.Key, v)
	}
	return nil
}

func decodeValue(kind Kind, raw json.RawMessage) (Value, error) {
	switch kind {
	case KindInt:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var n json.Number
		if err := dec.Decode(&n); err != nil {
			return Value{}, err
		}
		i, err := n.Int64()
		if err != nil {
			return Value{}, err
		}
		return IntValue(i), nil
	case KindFloat:
		var f float64
		err := json.Unmarshal(raw, &f)
		return FloatValue(f), err
	case KindBool:
		var b bool
		err := json.Unmarshal(raw, &b)
		return BoolValue(b), err
	case KindString:
		var str string
		err := json.Unmarshal(raw, &str)
		return StringValue(str), err
	default:
		nested := New()
		err := json.Unmarshal(raw, nested)
		return NestedValue(nested), err
	}
}
