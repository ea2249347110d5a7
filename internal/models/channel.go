package models

import "strings"

// Channel — выход контроллера: L1..L5 (лампы), K1, K2 (вентиляторы), USB (всегда включён).
type Channel string

const (
	L1  Channel = "L1"
	L2  Channel = "L2"
	L3  Channel = "L3"
	L4  Channel = "L4"
	L5  Channel = "L5"
	K1  Channel = "K1"
	K2  Channel = "K2"
	USB Channel = "USB"
)

// Commandable — каналы, которыми управляет оператор (USB сюда не входит).
var Commandable = []Channel{L1, L2, L3, L4, L5, K1, K2}

// Outputs — все измеряемые каналы.
var Outputs = []Channel{L1, L2, L3, L4, L5, K1, K2, USB}

// ParseChannel accepts only commandable channels, case-insensitive.
func ParseChannel(s string) (Channel, bool) {
	c := Channel(strings.ToUpper(strings.TrimSpace(s)))
	for _, k := range Commandable {
		if k == c {
			return c, true
		}
	}
	return "", false
}

// ParseReportedState — строгий разбор состояния из push: только "ON" и "OFF"
// как прислала прошивка. Регистр не нормализуется.
func ParseReportedState(s string) (State, bool) {
	switch State(s) {
	case On, Off:
		return State(s), true
	}
	return "", false
}

// Column — имя колонки в device_control / current_status.
func (c Channel) Column() string { return strings.ToLower(string(c)) }

// Key in snapshot maps: "L1".."K2", "usb".
func (c Channel) Key() string {
	if c == USB {
		return "usb"
	}
	return string(c)
}

type State string

const (
	On  State = "ON"
	Off State = "OFF"
)

func ParseState(s string) (State, bool) {
	switch State(strings.ToUpper(strings.TrimSpace(s))) {
	case On:
		return On, true
	case Off:
		return Off, true
	}
	return "", false
}

type Mode string

const (
	Manual Mode = "MANUAL"
	Auto   Mode = "AUTO"
)

func ParseMode(s string) (Mode, bool) {
	switch Mode(strings.ToUpper(strings.TrimSpace(s))) {
	case Manual:
		return Manual, true
	case Auto:
		return Auto, true
	}
	return "", false
}

type SensorStatus string

const (
	SensorSucceed SensorStatus = "SUCCEED"
	SensorFailed  SensorStatus = "FAILED"
	SensorUnknown SensorStatus = "UNKNOWN"
)

func ParseSensorStatus(s string) (SensorStatus, bool) {
	switch SensorStatus(strings.ToUpper(strings.TrimSpace(s))) {
	case SensorSucceed:
		return SensorSucceed, true
	case SensorFailed:
		return SensorFailed, true
	case SensorUnknown:
		return SensorUnknown, true
	}
	return "", false
}
