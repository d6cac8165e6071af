package protocol

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Serializer кодек пакетов. Пустой результат Encode без ошибки означает «не отправлять».
type Serializer interface {
	Encode(p Packet) ([]byte, error)
	Decode(data []byte) (Packet, error)
}

type envelope struct {
	Type Type            `json:"t"`
	Data json.RawMessage `json:"d"`
}

// JSONSerializer кодирует пакет в конверт {"t": тип, "d": данные}.
type JSONSerializer struct{}

func NewJSONSerializer() *JSONSerializer { return &JSONSerializer{} }

func (s *JSONSerializer) Encode(p Packet) ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации %s: %w", p.PacketType(), err)
	}
	return json.Marshal(envelope{Type: p.PacketType(), Data: data})
}

func (s *JSONSerializer) Decode(data []byte) (Packet, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("ошибка десериализации конверта: %w", err)
	}
	p, err := NewPacket(env.Type)
	if err != nil {
		return nil, err
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, p); err != nil {
			return nil, fmt.Errorf("ошибка десериализации %s: %w", env.Type, err)
		}
	}
	return p, nil
}

// ProtoSerializer бинарный кодек: пакет через JSON-представление переводится
// в google.protobuf.Struct и маршалится protobuf.
type ProtoSerializer struct{}

func NewProtoSerializer() *ProtoSerializer { return &ProtoSerializer{} }

func (s *ProtoSerializer) Encode(p Packet) ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации %s: %w", p.PacketType(), err)
	}
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("ошибка преобразования %s: %w", p.PacketType(), err)
	}

	body, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("ошибка построения Struct для %s: %w", p.PacketType(), err)
	}
	env := &structpb.Struct{Fields: map[string]*structpb.Value{
		"t": structpb.NewNumberValue(float64(p.PacketType())),
		"d": structpb.NewStructValue(body),
	}}
	return proto.Marshal(env)
}

func (s *ProtoSerializer) Decode(data []byte) (Packet, error) {
	env := &structpb.Struct{}
	if err := proto.Unmarshal(data, env); err != nil {
		return nil, fmt.Errorf("ошибка десериализации сообщения: %w", err)
	}
	tv, ok := env.Fields["t"]
	if !ok {
		return nil, fmt.Errorf("в сообщении нет типа")
	}
	p, err := NewPacket(Type(tv.GetNumberValue()))
	if err != nil {
		return nil, err
	}
	if body := env.Fields["d"].GetStructValue(); body != nil {
		raw, err := json.Marshal(body.AsMap())
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, fmt.Errorf("ошибка десериализации %s: %w", p.PacketType(), err)
		}
	}
	return p, nil
}
