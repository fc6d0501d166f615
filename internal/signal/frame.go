package signal

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownKind 信号种类无法识别
var ErrUnknownKind = errors.New("unknown signal type")

// Frame 信号总线桥接到 MQTT 时使用的 JSON 帧
type Frame struct {
	Type   string  `json:"type"`
	Number uint32  `json:"number"`
	Bool   *bool   `json:"bool,omitempty"`
	UShort *uint16 `json:"ushort,omitempty"`
	String *string `json:"string,omitempty"`
}

// Decode 解析 JSON 帧为 Signal
// type 取值 digital/analog/serial，兼容 bool/numeric/string
func Decode(payload []byte) (Signal, error) {
	var f Frame
	if err := json.Unmarshal(payload, &f); err != nil {
		return nil, fmt.Errorf("failed to unmarshal signal frame: %w", err)
	}
	return f.Signal()
}

// Signal 帧转换为 Signal，缺少对应类型的值时报错
func (f Frame) Signal() (Signal, error) {
	switch f.Type {
	case "digital", "bool", "boolean":
		if f.Bool == nil {
			return nil, fmt.Errorf("digital signal %d: missing bool value", f.Number)
		}
		return Digital{ID: f.Number, Value: *f.Bool}, nil
	case "analog", "numeric", "ushort":
		if f.UShort == nil {
			return nil, fmt.Errorf("analog signal %d: missing ushort value", f.Number)
		}
		return Analog{ID: f.Number, Value: *f.UShort}, nil
	case "serial", "string":
		if f.String == nil {
			return nil, fmt.Errorf("serial signal %d: missing string value", f.Number)
		}
		return Serial{ID: f.Number, Value: *f.String}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, f.Type)
	}
}

// Encode 将 Signal 编码为 JSON 帧
func Encode(s Signal) ([]byte, error) {
	f := Frame{Type: string(s.Kind()), Number: s.Number()}
	switch v := s.(type) {
	case Digital:
		f.Bool = &v.Value
	case Analog:
		f.UShort = &v.Value
	case Serial:
		f.String = &v.Value
	}
	return json.Marshal(f)
}
