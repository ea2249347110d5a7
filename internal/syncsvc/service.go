// Package syncsvc implements the controller sync protocol (push telemetry, pull
// commands) and the read-side snapshot built on top of it.
package syncsvc

import (
	"context"
	"encoding/json"
	"math"
	"net/url"
	"strings"
	"time"

	"dchome/internal/automode"
	"dchome/internal/errcode"
	"dchome/internal/liveness"
	"dchome/internal/logs"
	"dchome/internal/models"
	"dchome/internal/telemetry"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// TelemetryRepo — хранилище истории и текущего состояния (repo.TelemetryStore).
type TelemetryRepo interface {
	Save(ctx context.Context, deviceID, sampleID string, r models.Reading, raw []byte) error
	Current(ctx context.Context, deviceID string) (*models.CurrentStatus, error)
	History(ctx context.Context, deviceID string, limit int) ([]models.SensorData, error)
}

// CommandRepo — хранилище ожидающих команд (repo.CommandStore).
type CommandRepo interface {
	Ensure(ctx context.Context, deviceID string) (models.DeviceControl, bool, error)
	Get(ctx context.Context, deviceID string) (*models.DeviceControl, error)
}

type Options struct {
	LivenessWindow time.Duration
	// PowerTolerance: допустимое расхождение total_power и суммы каналов, Вт.
	PowerTolerance float64
	Now            func() time.Time
	NewID          func() string
	Log            logrus.FieldLogger
}

type Service struct {
	telemetry TelemetryRepo
	commands  CommandRepo

	window    time.Duration
	tolerance float64
	now       func() time.Time
	newID     func() string
	log       logrus.FieldLogger
}

func New(t TelemetryRepo, c CommandRepo, o Options) *Service {
	s := &Service{
		telemetry: t,
		commands:  c,
		window:    o.LivenessWindow,
		tolerance: o.PowerTolerance,
		now:       o.Now,
		newID:     o.NewID,
		log:       o.Log,
	}
	if s.window <= 0 {
		s.window = liveness.DefaultWindow
	}
	if s.tolerance <= 0 {
		s.tolerance = 1
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	if s.log == nil {
		s.log = logs.Logger
	}
	return s
}

// Ack — подтверждение принятого push.
type Ack struct {
	DeviceID    string
	SampleID    string
	Accepted    time.Time
	Mode        models.Mode
	BatterySOC  float64
	TotalPower  float64
	Corrections []telemetry.Correction
}

// Push validates the flat form, then writes history and current state atomically.
// Out-of-range fields are corrected, never rejected; only a missing id is.
func (s *Service) Push(ctx context.Context, form url.Values) (Ack, error) {
	const op = "syncsvc.Push"

	sample, fixes, err := telemetry.ParseForm(form)
	if err != nil {
		return Ack{}, err
	}
	l := s.log.WithField("device_id", sample.DeviceID)
	for _, f := range fixes {
		l.WithField("code", errcode.ValidationClamped).Warnf("push: %s", f)
	}

	if sum := sample.ChannelPowerSum(); math.Abs(sum-sample.Totals.Power) > s.tolerance {
		// итог доверяем контроллеру, только фиксируем
		l.WithFields(logrus.Fields{
			"total_power": sample.Totals.Power,
			"channel_sum": sum,
		}).Warn("push: total_power differs from channel sum")
	}

	ack := Ack{
		DeviceID:    sample.DeviceID,
		SampleID:    s.newID(),
		Accepted:    s.now().Truncate(time.Second),
		Mode:        sample.Mode,
		BatterySOC:  sample.Battery.SOC,
		TotalPower:  sample.Totals.Power,
		Corrections: fixes,
	}
	if err := s.telemetry.Save(ctx, sample.DeviceID, ack.SampleID, sample.Reading(ack.Accepted), rawForm(form)); err != nil {
		l.WithError(err).Error("push: save failed")
		return Ack{}, errcode.Wrap(errcode.StorageUnavailable, op, err)
	}
	l.WithFields(logrus.Fields{
		"sample_id": ack.SampleID,
		"soc":       ack.BatterySOC,
		"power":     ack.TotalPower,
		"mode":      ack.Mode,
	}).Debug("push accepted")
	return ack, nil
}

// rawForm: первые значения полей как JSON-объект для колонки raw.
func rawForm(form url.Values) []byte {
	m := make(map[string]string, len(form))
	for k, v := range form {
		if len(v) > 0 {
			m[k] = v[0]
		}
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return b
}

// Command — то, что контроллер получает на pull.
type Command struct {
	DeviceID  string
	Mode      models.Mode
	States    map[models.Channel]models.State
	UpdatedAt time.Time
	// Created: первый контакт, строка создана с дефолтами.
	Created bool
}

func commandFrom(m models.DeviceControl, created bool) Command {
	c := Command{
		DeviceID:  m.DeviceID,
		Mode:      models.Mode(strings.ToUpper(m.Mode)),
		States:    make(map[models.Channel]models.State, len(models.Commandable)),
		UpdatedAt: m.UpdatedAt,
		Created:   created,
	}
	if _, ok := models.ParseMode(m.Mode); !ok {
		c.Mode = models.Manual
	}
	for _, ch := range models.Commandable {
		st, ok := models.ParseState(string(m.State(ch)))
		if !ok {
			st = models.Off
		}
		c.States[ch] = st
	}
	return c
}

// Pull returns the pending command, bootstrapping a MANUAL/all-OFF row on first contact.
func (s *Service) Pull(ctx context.Context, deviceID string) (Command, error) {
	const op = "syncsvc.Pull"

	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return Command{}, errcode.New(errcode.MissingRequiredField, op, "id")
	}
	m, created, err := s.commands.Ensure(ctx, deviceID)
	if err != nil {
		s.log.WithField("device_id", deviceID).WithError(err).Error("pull: store failed")
		return Command{}, errcode.Wrap(errcode.StorageUnavailable, op, err)
	}
	if created {
		s.log.WithField("device_id", deviceID).WithField("code", errcode.UnknownDevice).Info("pull: new device provisioned")
	}
	return commandFrom(m, created), nil
}

// Snapshot — агрегированное представление для фронтенда.
type Snapshot struct {
	DeviceID  string
	Timestamp time.Time
	Liveness  liveness.Verdict
	// Mode: режим из device_control, если строка есть, иначе отчёт контроллера.
	Mode            models.Mode
	Sample          telemetry.Sample
	Advice          automode.Advice
	LastCommandTime *time.Time
}

// Snapshot reads current state and the pending command. A device that never pushed
// yields a NoData error.
func (s *Service) Snapshot(ctx context.Context, deviceID string) (Snapshot, error) {
	const op = "syncsvc.Snapshot"

	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return Snapshot{}, errcode.New(errcode.MissingRequiredField, op, "id")
	}
	cur, err := s.telemetry.Current(ctx, deviceID)
	if err != nil {
		return Snapshot{}, errcode.Wrap(errcode.StorageUnavailable, op, err)
	}
	if cur == nil {
		return Snapshot{}, errcode.New(errcode.NoData, op, "no telemetry for "+deviceID)
	}
	cmd, err := s.commands.Get(ctx, deviceID)
	if err != nil {
		return Snapshot{}, errcode.Wrap(errcode.StorageUnavailable, op, err)
	}

	last := cur.Timestamp
	snap := Snapshot{
		DeviceID:  deviceID,
		Timestamp: last,
		Liveness:  liveness.Evaluate(s.now(), &last, s.window),
		Sample:    telemetry.FromReading(deviceID, cur.Reading),
		Advice:    automode.Advise(cur.BatterySOC, cur.TotalPower),
	}
	snap.Mode = snap.Sample.Mode
	if cmd != nil {
		if m, ok := models.ParseMode(cmd.Mode); ok {
			snap.Mode = m
		}
		t := cmd.UpdatedAt
		snap.LastCommandTime = &t
	}
	return snap, nil
}

// History — последние записи устройства, новые первыми.
func (s *Service) History(ctx context.Context, deviceID string, limit int) ([]models.SensorData, error) {
	const op = "syncsvc.History"

	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return nil, errcode.New(errcode.MissingRequiredField, op, "id")
	}
	if limit < 0 {
		return nil, errcode.New(errcode.InvalidArgument, op, "limit must be >= 0")
	}
	rows, err := s.telemetry.History(ctx, deviceID, limit)
	if err != nil {
		return nil, errcode.Wrap(errcode.StorageUnavailable, op, err)
	}
	return rows, nil
}

