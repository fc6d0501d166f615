// Package signal 定义硬件信号总线上的信号类型
//
// 信号只有三种：数字量（bool）、模拟量（uint16）、串行量（string）。
// Signal 是封闭接口，只能由本包中的类型实现，处理方用类型 switch 穷举。
package signal

import "fmt"

// Kind 信号种类
type Kind string

const (
	KindDigital Kind = "digital"
	KindAnalog  Kind = "analog"
	KindSerial  Kind = "serial"
)

// Signal 信号（Digital / Analog / Serial 之一）
type Signal interface {
	Kind() Kind
	Number() uint32
	String() string
	sealed()
}

// Digital 数字量信号
type Digital struct {
	ID    uint32
	Value bool
}

// Analog 模拟量信号
type Analog struct {
	ID    uint32
	Value uint16
}

// Serial 串行量信号
type Serial struct {
	ID    uint32
	Value string
}

func (Digital) Kind() Kind { return KindDigital }
func (Analog) Kind() Kind  { return KindAnalog }
func (Serial) Kind() Kind  { return KindSerial }

func (s Digital) Number() uint32 { return s.ID }
func (s Analog) Number() uint32  { return s.ID }
func (s Serial) Number() uint32  { return s.ID }

func (s Digital) String() string {
	return fmt.Sprintf("digital[%d %s]=%t", s.ID, DigitalName(s.ID), s.Value)
}

func (s Analog) String() string {
	return fmt.Sprintf("analog[%d %s]=%d", s.ID, AnalogName(s.ID), s.Value)
}

func (s Serial) String() string {
	return fmt.Sprintf("serial[%d %s]=%q", s.ID, SerialName(s.ID), s.Value)
}

func (Digital) sealed() {}
func (Analog) sealed()  {}
func (Serial) sealed()  {}
