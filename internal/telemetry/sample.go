// Package telemetry turns the controller's flat push fields into a typed,
// validated Sample before anything reaches storage.
package telemetry

import (
	"time"

	"dchome/internal/models"
)

type Output struct {
	State   models.State
	Power   float64 // W
	Current float64 // A
	Voltage float64 // V
}

type Battery struct {
	Voltage      float64
	SOC          float64 // %
	RuntimeHours float64
}

// Environment: two zones, kamar (bedroom) and rtamu (living room).
type Environment struct {
	TemperatureKamar float64
	TemperatureRtamu float64
	HumidityKamar    float64
	HumidityRtamu    float64
	LightLevel       int
	SensorStatus     models.SensorStatus
}

type Motion struct {
	Teras     bool
	RuangTamu bool
	Kamar     bool
	WC        bool
	Dapur     bool
}

// Totals are accepted as reported by the controller.
type Totals struct {
	Power         float64
	Current       float64
	SystemVoltage float64
}

type Sample struct {
	DeviceID    string
	Mode        models.Mode
	Outputs     map[models.Channel]Output
	Battery     Battery
	Environment Environment
	Motion      Motion
	Totals      Totals
}

// ChannelPowerSum adds up per-channel power, USB included.
func (s Sample) ChannelPowerSum() float64 {
	var sum float64
	for _, c := range models.Outputs {
		sum += s.Outputs[c].Power
	}
	return sum
}

// Reading flattens the sample into the storage row layout.
func (s Sample) Reading(ts time.Time) models.Reading {
	r := models.Reading{
		Mode:              string(s.Mode),
		TemperatureKamar:  s.Environment.TemperatureKamar,
		TemperatureRtamu:  s.Environment.TemperatureRtamu,
		HumidityKamar:     s.Environment.HumidityKamar,
		HumidityRtamu:     s.Environment.HumidityRtamu,
		LightLevel:        s.Environment.LightLevel,
		BatteryVoltage:    s.Battery.Voltage,
		BatterySOC:        s.Battery.SOC,
		EstimatedRuntime:  s.Battery.RuntimeHours,
		StatusReadSensors: string(s.Environment.SensorStatus),
		PirTeras:          s.Motion.Teras,
		PirRuangTamu:      s.Motion.RuangTamu,
		PirKamar:          s.Motion.Kamar,
		PirWC:             s.Motion.WC,
		PirDapur:          s.Motion.Dapur,
		TotalPower:        s.Totals.Power,
		CurrentTotal:      s.Totals.Current,
		VoltageSystem:     s.Totals.SystemVoltage,
		Timestamp:         ts,
	}
	for _, c := range models.Outputs {
		o := s.Outputs[c]
		r.SetOutput(c, models.OutputReading{State: o.State, Power: o.Power, Current: o.Current, Voltage: o.Voltage})
	}
	return r
}

// FromReading is the inverse of Reading.
func FromReading(deviceID string, r models.Reading) Sample {
	s := Sample{
		DeviceID: deviceID,
		Mode:     models.Mode(r.Mode),
		Outputs:  make(map[models.Channel]Output, len(models.Outputs)),
		Battery: Battery{
			Voltage:      r.BatteryVoltage,
			SOC:          r.BatterySOC,
			RuntimeHours: r.EstimatedRuntime,
		},
		Environment: Environment{
			TemperatureKamar: r.TemperatureKamar,
			TemperatureRtamu: r.TemperatureRtamu,
			HumidityKamar:    r.HumidityKamar,
			HumidityRtamu:    r.HumidityRtamu,
			LightLevel:       r.LightLevel,
			SensorStatus:     models.SensorStatus(r.StatusReadSensors),
		},
		Motion: Motion{
			Teras:     r.PirTeras,
			RuangTamu: r.PirRuangTamu,
			Kamar:     r.PirKamar,
			WC:        r.PirWC,
			Dapur:     r.PirDapur,
		},
		Totals: Totals{
			Power:         r.TotalPower,
			Current:       r.CurrentTotal,
			SystemVoltage: r.VoltageSystem,
		},
	}
	for _, c := range models.Outputs {
		o := r.Output(c)
		s.Outputs[c] = Output{State: o.State, Power: o.Power, Current: o.Current, Voltage: o.Voltage}
	}
	return s
}
