// Package simulator stands in for the controller firmware: it pulls commands,
// switches outputs, drains the battery and pushes telemetry.
package simulator

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"dchome/internal/automode"
	"dchome/internal/logs"
	"dchome/internal/models"
	"dchome/internal/telemetry"
	"dchome/internal/wire"

	"github.com/sirupsen/logrus"
)

type API interface {
	Pull(ctx context.Context, deviceID string) (wire.PullResponse, error)
	Push(ctx context.Context, form url.Values) (wire.PushResponse, error)
}

// Нагрузка каналов при 12 В, Вт.
var loadWatts = map[models.Channel]float64{
	models.L1:  5,
	models.L2:  5,
	models.L3:  5,
	models.L4:  5,
	models.L5:  5,
	models.K1:  6,
	models.K2:  6,
	models.USB: 2.5,
}

const (
	busVoltage = 12.0
	// CapacityWh — 12 В 20 Ач.
	CapacityWh = 240.0
	// ChargeWatts — средний заряд от панели.
	ChargeWatts = 8.0
)

type Device struct {
	ID     string
	Mode   models.Mode
	States map[models.Channel]models.State
	SOC    float64
}

func NewDevice(id string, soc float64) *Device {
	d := &Device{
		ID:     id,
		Mode:   models.Manual,
		States: make(map[models.Channel]models.State, len(models.Outputs)),
		SOC:    soc,
	}
	for _, c := range models.Commandable {
		d.States[c] = models.Off
	}
	d.States[models.USB] = models.On
	return d
}

// Apply: MANUAL берёт состояния из команды, AUTO включает рекомендованные каналы.
func (d *Device) Apply(cmd wire.PullResponse) {
	if m, ok := models.ParseMode(cmd.Mode); ok {
		d.Mode = m
	}
	if d.Mode == models.Auto {
		adv := automode.Advise(d.SOC, 0)
		for _, c := range models.Commandable {
			d.States[c] = models.Off
			if adv.Recommends(c) {
				d.States[c] = models.On
			}
		}
		return
	}
	for _, c := range models.Commandable {
		if st, ok := models.ParseState(string(cmd.State(c))); ok {
			d.States[c] = st
		}
	}
}

// Load — суммарная мощность включённых каналов.
func (d *Device) Load() float64 {
	var sum float64
	for c, st := range d.States {
		if st == models.On {
			sum += loadWatts[c]
		}
	}
	return sum
}

// Advance moves SOC by the net energy over dt, clamped to [0,100].
func (d *Device) Advance(dt time.Duration) {
	net := ChargeWatts - d.Load()
	d.SOC += net * dt.Hours() / CapacityWh * 100
	d.SOC = min(100, max(0, d.SOC))
}

// Sample — телеметрия в том виде, в каком её шлёт прошивка.
func (d *Device) Sample() telemetry.Sample {
	s := telemetry.Sample{
		DeviceID: d.ID,
		Mode:     d.Mode,
		Outputs:  make(map[models.Channel]telemetry.Output, len(models.Outputs)),
		Battery: telemetry.Battery{
			Voltage: 11.8 + 0.012*d.SOC,
			SOC:     d.SOC,
		},
		Environment: telemetry.Environment{
			TemperatureKamar: 27.5,
			TemperatureRtamu: 28.1,
			HumidityKamar:    68,
			HumidityRtamu:    64,
			LightLevel:       320,
			SensorStatus:     models.SensorSucceed,
		},
		Totals: telemetry.Totals{SystemVoltage: busVoltage},
	}
	for _, c := range models.Outputs {
		o := telemetry.Output{State: d.States[c], Voltage: busVoltage}
		if c == models.USB {
			o.Voltage = telemetry.DefaultUSBVoltage
		}
		if o.State == models.On {
			o.Power = loadWatts[c]
			o.Current = o.Power / busVoltage
		}
		s.Outputs[c] = o
		s.Totals.Power += o.Power
		s.Totals.Current += o.Current
	}
	if load := d.Load(); load > 0 {
		s.Battery.RuntimeHours = d.SOC / 100 * CapacityWh / load
	}
	return s
}

type Simulator struct {
	api  API
	dev  *Device
	last time.Time
	now  func() time.Time
	log  logrus.FieldLogger
}

func New(api API, dev *Device) *Simulator {
	return &Simulator{api: api, dev: dev, now: time.Now, log: logs.Logger}
}

func (s *Simulator) Device() *Device { return s.dev }

// Step — один цикл прошивки: pull, применить, разрядить, push.
func (s *Simulator) Step(ctx context.Context) error {
	now := s.now()
	if !s.last.IsZero() {
		s.dev.Advance(now.Sub(s.last))
	}
	s.last = now

	cmd, err := s.api.Pull(ctx, s.dev.ID)
	if err != nil {
		return fmt.Errorf("pull: %w", err)
	}
	s.dev.Apply(cmd)

	ack, err := s.api.Push(ctx, s.dev.Sample().Form())
	if err != nil {
		return fmt.Errorf("push: %w", err)
	}
	s.log.WithFields(logrus.Fields{
		"mode":  s.dev.Mode,
		"soc":   fmt.Sprintf("%.2f", s.dev.SOC),
		"load":  s.dev.Load(),
		"fixes": len(ack.Corrections),
	}).Info("sim: pushed")
	return nil
}

// Run шагает каждые interval; ошибки логируются, цикл продолжается.
func (s *Simulator) Run(ctx context.Context, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if err := s.Step(ctx); err != nil && ctx.Err() == nil {
			s.log.WithError(err).Warn("sim: step failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}
