package models

import (
	"time"

	"gorm.io/datatypes"
)

// Reading — плоская запись телеметрии, колонки совпадают с прошивкой контроллера.
// Общая часть sensor_data (история) и current_status (текущее состояние).
type Reading struct {
	Mode string `gorm:"size:16"`

	TemperatureKamar  float64
	TemperatureRtamu  float64
	HumidityKamar     float64
	HumidityRtamu     float64
	LightLevel        int
	BatteryVoltage    float64
	BatterySOC        float64 `gorm:"column:battery_soc"`
	EstimatedRuntime  float64
	StatusReadSensors string `gorm:"size:16"`

	PirTeras     bool
	PirRuangTamu bool
	PirKamar     bool
	PirWC        bool `gorm:"column:pir_wc"`
	PirDapur     bool

	L1  string `gorm:"column:l1;size:3"`
	L2  string `gorm:"column:l2;size:3"`
	L3  string `gorm:"column:l3;size:3"`
	L4  string `gorm:"column:l4;size:3"`
	L5  string `gorm:"column:l5;size:3"`
	K1  string `gorm:"column:k1;size:3"`
	K2  string `gorm:"column:k2;size:3"`
	USB string `gorm:"column:usb;size:3"`

	PowerL1    float64 `gorm:"column:power_l1"`
	PowerL2    float64 `gorm:"column:power_l2"`
	PowerL3    float64 `gorm:"column:power_l3"`
	PowerL4    float64 `gorm:"column:power_l4"`
	PowerL5    float64 `gorm:"column:power_l5"`
	PowerK1    float64 `gorm:"column:power_k1"`
	PowerK2    float64 `gorm:"column:power_k2"`
	PowerUSB   float64 `gorm:"column:power_usb"`
	TotalPower float64

	CurrentL1    float64 `gorm:"column:current_l1"`
	CurrentL2    float64 `gorm:"column:current_l2"`
	CurrentL3    float64 `gorm:"column:current_l3"`
	CurrentL4    float64 `gorm:"column:current_l4"`
	CurrentL5    float64 `gorm:"column:current_l5"`
	CurrentK1    float64 `gorm:"column:current_k1"`
	CurrentK2    float64 `gorm:"column:current_k2"`
	CurrentUSB   float64 `gorm:"column:current_usb"`
	CurrentTotal float64

	VoltageL1     float64 `gorm:"column:voltage_l1"`
	VoltageL2     float64 `gorm:"column:voltage_l2"`
	VoltageL3     float64 `gorm:"column:voltage_l3"`
	VoltageL4     float64 `gorm:"column:voltage_l4"`
	VoltageL5     float64 `gorm:"column:voltage_l5"`
	VoltageK1     float64 `gorm:"column:voltage_k1"`
	VoltageK2     float64 `gorm:"column:voltage_k2"`
	VoltageUSB    float64 `gorm:"column:voltage_usb"`
	VoltageSystem float64

	Timestamp time.Time `gorm:"column:timestamp;index"`
}

// OutputReading — один канал из Reading.
type OutputReading struct {
	State   State
	Power   float64
	Current float64
	Voltage float64
}

func (r *Reading) Output(c Channel) OutputReading {
	switch c {
	case L1:
		return OutputReading{State(r.L1), r.PowerL1, r.CurrentL1, r.VoltageL1}
	case L2:
		return OutputReading{State(r.L2), r.PowerL2, r.CurrentL2, r.VoltageL2}
	case L3:
		return OutputReading{State(r.L3), r.PowerL3, r.CurrentL3, r.VoltageL3}
	case L4:
		return OutputReading{State(r.L4), r.PowerL4, r.CurrentL4, r.VoltageL4}
	case L5:
		return OutputReading{State(r.L5), r.PowerL5, r.CurrentL5, r.VoltageL5}
	case K1:
		return OutputReading{State(r.K1), r.PowerK1, r.CurrentK1, r.VoltageK1}
	case K2:
		return OutputReading{State(r.K2), r.PowerK2, r.CurrentK2, r.VoltageK2}
	case USB:
		return OutputReading{State(r.USB), r.PowerUSB, r.CurrentUSB, r.VoltageUSB}
	}
	return OutputReading{}
}

func (r *Reading) SetOutput(c Channel, o OutputReading) {
	st := string(o.State)
	switch c {
	case L1:
		r.L1, r.PowerL1, r.CurrentL1, r.VoltageL1 = st, o.Power, o.Current, o.Voltage
	case L2:
		r.L2, r.PowerL2, r.CurrentL2, r.VoltageL2 = st, o.Power, o.Current, o.Voltage
	case L3:
		r.L3, r.PowerL3, r.CurrentL3, r.VoltageL3 = st, o.Power, o.Current, o.Voltage
	case L4:
		r.L4, r.PowerL4, r.CurrentL4, r.VoltageL4 = st, o.Power, o.Current, o.Voltage
	case L5:
		r.L5, r.PowerL5, r.CurrentL5, r.VoltageL5 = st, o.Power, o.Current, o.Voltage
	case K1:
		r.K1, r.PowerK1, r.CurrentK1, r.VoltageK1 = st, o.Power, o.Current, o.Voltage
	case K2:
		r.K2, r.PowerK2, r.CurrentK2, r.VoltageK2 = st, o.Power, o.Current, o.Voltage
	case USB:
		r.USB, r.PowerUSB, r.CurrentUSB, r.VoltageUSB = st, o.Power, o.Current, o.Voltage
	}
}

// SensorData — история, только INSERT.
type SensorData struct {
	ID       uint   `gorm:"primaryKey;autoIncrement"`
	SampleID string `gorm:"size:36;uniqueIndex"`
	DeviceID string `gorm:"size:64;index;not null"`

	Reading `gorm:"embedded"`

	Raw       datatypes.JSON // поля формы как пришли, для разбора инцидентов
	CreatedAt time.Time
}

func (SensorData) TableName() string { return "sensor_data" }

// CurrentStatus — последний принятый push, одна строка на устройство.
type CurrentStatus struct {
	DeviceID string `gorm:"primaryKey;size:64"`
	SampleID string `gorm:"size:36"`

	Reading `gorm:"embedded"`

	UpdatedAt time.Time
}

func (CurrentStatus) TableName() string { return "current_status" }
