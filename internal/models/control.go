package models

import "time"

// DeviceControl — ожидающая команда для контроллера, одна строка на устройство.
// Пишется только поколоночно (см. repo.CommandStore), читается pull'ом.
type DeviceControl struct {
	DeviceID  string `gorm:"primaryKey;size:64"`
	Mode      string `gorm:"size:16;not null;default:MANUAL"`
	L1        string `gorm:"column:l1;size:3;not null;default:OFF"`
	L2        string `gorm:"column:l2;size:3;not null;default:OFF"`
	L3        string `gorm:"column:l3;size:3;not null;default:OFF"`
	L4        string `gorm:"column:l4;size:3;not null;default:OFF"`
	L5        string `gorm:"column:l5;size:3;not null;default:OFF"`
	K1        string `gorm:"column:k1;size:3;not null;default:OFF"`
	K2        string `gorm:"column:k2;size:3;not null;default:OFF"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (DeviceControl) TableName() string { return "device_control" }

// DefaultControl — MANUAL, всё выключено.
func DefaultControl(deviceID string) DeviceControl {
	off := string(Off)
	return DeviceControl{
		DeviceID: deviceID,
		Mode:     string(Manual),
		L1:       off,
		L2:       off,
		L3:       off,
		L4:       off,
		L5:       off,
		K1:       off,
		K2:       off,
	}
}

func (d *DeviceControl) State(c Channel) State {
	switch c {
	case L1:
		return State(d.L1)
	case L2:
		return State(d.L2)
	case L3:
		return State(d.L3)
	case L4:
		return State(d.L4)
	case L5:
		return State(d.L5)
	case K1:
		return State(d.K1)
	case K2:
		return State(d.K2)
	}
	return Off
}
