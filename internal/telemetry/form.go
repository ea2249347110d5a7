package telemetry

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"dchome/internal/errcode"
	"dchome/internal/models"
)

// Field defaults and safe substitutes, as the controller firmware expects them.
const (
	DefaultBatteryVoltage = 12.6
	DefaultSOC            = 75.0
	DefaultUSBVoltage     = 5.0
	DefaultSystemVoltage  = 12.0

	MinTemperature = -50.0
	MaxTemperature = 100.0
	MaxBatteryVolt = 15.0
)

// Correction records one field that was replaced during validation.
type Correction struct {
	Field    string `json:"field"`
	Received string `json:"received"`
	Applied  string `json:"applied"`
}

func (c Correction) String() string {
	return fmt.Sprintf("%s: %q -> %s", c.Field, c.Received, c.Applied)
}

type fieldParser struct {
	v     url.Values
	fixes []Correction
}

func (p *fieldParser) raw(key string) (string, bool) {
	s := strings.TrimSpace(p.v.Get(key))
	return s, s != ""
}

func (p *fieldParser) fix(key, received string, applied any) {
	p.fixes = append(p.fixes, Correction{Field: key, Received: received, Applied: fmt.Sprint(applied)})
}

// number: absent -> def; not a finite number -> def with a correction.
func (p *fieldParser) number(key string, def float64) float64 {
	s, ok := p.raw(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		p.fix(key, s, def)
		return def
	}
	return f
}

// bounded: outside [min,max] -> safe with a correction. The write still proceeds.
func (p *fieldParser) bounded(key string, def, min, max, safe float64) float64 {
	f := p.number(key, def)
	if f < min || f > max {
		p.fix(key, p.v.Get(key), safe)
		return safe
	}
	return f
}

func (p *fieldParser) flag(key string) bool {
	s, ok := p.raw(key)
	if !ok {
		return false
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int(f) != 0
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		p.fix(key, s, false)
		return false
	}
	return b
}

func (p *fieldParser) state(key string, def models.State) models.State {
	s, ok := p.raw(key)
	if !ok {
		return def
	}
	st, valid := models.ParseReportedState(s)
	if !valid {
		p.fix(key, s, def)
		return def
	}
	return st
}

// ParseForm validates every push field and returns the typed sample and the list of
// corrections applied. The only rejection is a missing device id.
func ParseForm(v url.Values) (Sample, []Correction, error) {
	id := strings.TrimSpace(v.Get("id"))
	if id == "" {
		return Sample{}, nil, errcode.New(errcode.MissingRequiredField, "telemetry.parse", "id")
	}
	p := &fieldParser{v: v}

	s := Sample{
		DeviceID: id,
		Mode:     models.Manual,
		Outputs:  make(map[models.Channel]Output, len(models.Outputs)),
	}
	if raw, ok := p.raw("mode"); ok {
		if m, valid := models.ParseMode(raw); valid {
			s.Mode = m
		} else {
			p.fix("mode", raw, models.Manual)
		}
	}

	s.Environment = Environment{
		TemperatureKamar: p.bounded("temperature_kamar", 0, MinTemperature, MaxTemperature, 0),
		TemperatureRtamu: p.bounded("temperature_rtamu", 0, MinTemperature, MaxTemperature, 0),
		HumidityKamar:    p.bounded("humidity_kamar", 0, 0, 100, 0),
		HumidityRtamu:    p.bounded("humidity_rtamu", 0, 0, 100, 0),
		LightLevel:       int(p.bounded("light_level", 0, 0, math.MaxInt32, 0)),
		SensorStatus:     models.SensorUnknown,
	}
	if raw, ok := p.raw("status_read_sensors"); ok {
		if st, valid := models.ParseSensorStatus(raw); valid {
			s.Environment.SensorStatus = st
		} else {
			p.fix("status_read_sensors", raw, models.SensorUnknown)
		}
	}

	s.Battery = Battery{
		Voltage:      p.bounded("battery_voltage", DefaultBatteryVoltage, 0, MaxBatteryVolt, DefaultBatteryVoltage),
		SOC:          p.bounded("battery_soc", DefaultSOC, 0, 100, DefaultSOC),
		RuntimeHours: p.number("estimated_runtime", 0),
	}

	s.Motion = Motion{
		Teras:     p.flag("pir_teras"),
		RuangTamu: p.flag("pir_ruang_tamu"),
		Kamar:     p.flag("pir_kamar"),
		WC:        p.flag("pir_wc"),
		Dapur:     p.flag("pir_dapur"),
	}

	for _, c := range models.Outputs {
		col := c.Column()
		defState, defVolt := models.Off, 0.0
		if c == models.USB {
			defState, defVolt = models.On, DefaultUSBVoltage
		}
		s.Outputs[c] = Output{
			State:   p.state(col, defState),
			Power:   p.number("power_"+col, 0),
			Current: p.number("current_"+col, 0),
			Voltage: p.number("voltage_"+col, defVolt),
		}
	}

	s.Totals = Totals{
		Power:         p.number("total_power", 0),
		Current:       p.number("current_total", 0),
		SystemVoltage: p.number("voltage_system", DefaultSystemVoltage),
	}

	return s, p.fixes, nil
}

// Form encodes a sample with the same field names ParseForm reads.
func (s Sample) Form() url.Values {
	v := url.Values{}
	f := func(x float64) string { return strconv.FormatFloat(x, 'f', -1, 64) }
	b := func(x bool) string {
		if x {
			return "1"
		}
		return "0"
	}

	v.Set("id", s.DeviceID)
	v.Set("mode", string(s.Mode))
	v.Set("temperature_kamar", f(s.Environment.TemperatureKamar))
	v.Set("temperature_rtamu", f(s.Environment.TemperatureRtamu))
	v.Set("humidity_kamar", f(s.Environment.HumidityKamar))
	v.Set("humidity_rtamu", f(s.Environment.HumidityRtamu))
	v.Set("light_level", strconv.Itoa(s.Environment.LightLevel))
	v.Set("status_read_sensors", string(s.Environment.SensorStatus))
	v.Set("battery_voltage", f(s.Battery.Voltage))
	v.Set("battery_soc", f(s.Battery.SOC))
	v.Set("estimated_runtime", f(s.Battery.RuntimeHours))
	v.Set("pir_teras", b(s.Motion.Teras))
	v.Set("pir_ruang_tamu", b(s.Motion.RuangTamu))
	v.Set("pir_kamar", b(s.Motion.Kamar))
	v.Set("pir_wc", b(s.Motion.WC))
	v.Set("pir_dapur", b(s.Motion.Dapur))
	for _, c := range models.Outputs {
		o, ok := s.Outputs[c]
		if !ok {
			continue
		}
		col := c.Column()
		if o.State != "" {
			v.Set(col, string(o.State))
		}
		v.Set("power_"+col, f(o.Power))
		v.Set("current_"+col, f(o.Current))
		v.Set("voltage_"+col, f(o.Voltage))
	}
	v.Set("total_power", f(s.Totals.Power))
	v.Set("current_total", f(s.Totals.Current))
	v.Set("voltage_system", f(s.Totals.SystemVoltage))
	return v
}
