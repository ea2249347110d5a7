package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"dchome/internal/errcode"
	"dchome/internal/middleware"
	"dchome/internal/models"
	"dchome/internal/syncsvc"
	"dchome/internal/wire"

	"github.com/gorilla/mux"
)

// POST /pull
func (c *Controller) handlePull(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(w, r)
	if err != nil {
		c.badRequest(w, r, err)
		return
	}

	cmd, err := c.sync.Pull(r.Context(), fields.Get("id"))
	if err != nil {
		if errcode.Of(err) == errcode.MissingRequiredField {
			c.writeError(w, r, err, "device id is required", map[string]any{
				"received_fields": fieldNames(fields),
				"request_method":  r.Method,
			})
			return
		}
		c.writeError(w, r, err, "failed to read pending command", map[string]any{"id": fields.Get("id")})
		return
	}

	resp := wire.PullResponse{
		Status:    wire.StatusSuccess,
		DeviceID:  cmd.DeviceID,
		Mode:      string(cmd.Mode),
		Timestamp: wire.FormatTime(cmd.UpdatedAt),
	}
	for ch, st := range cmd.States {
		resp.SetState(ch, st)
	}
	if cmd.Created {
		resp.Message = "new device registered with default settings"
	}
	wire.Write(w, r, http.StatusOK, resp)
}

// POST /push
func (c *Controller) handlePush(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(w, r)
	if err != nil {
		c.badRequest(w, r, err)
		return
	}

	ack, err := c.sync.Push(r.Context(), fields)
	if err != nil {
		switch errcode.Of(err) {
		case errcode.MissingRequiredField:
			c.writeError(w, r, err, "device id is required", map[string]any{
				"received_fields": fieldNames(fields),
				"request_method":  r.Method,
			})
		default:
			c.writeError(w, r, err, "failed to save telemetry", map[string]any{
				"id":          fields.Get("id"),
				"mode":        fields.Get("mode"),
				"battery_soc": fields.Get("battery_soc"),
			})
		}
		return
	}

	msg := "data saved"
	if n := len(ack.Corrections); n > 0 {
		msg = "data saved, " + strconv.Itoa(n) + " field(s) corrected"
	}
	wire.Write(w, r, http.StatusOK, wire.PushResponse{
		Status:    wire.StatusSuccess,
		Message:   msg,
		Timestamp: wire.FormatTime(ack.Accepted),
		SampleID:  ack.SampleID,
		RecordsAffected: wire.RecordsAffected{
			SensorData:    1,
			CurrentStatus: "updated",
		},
		DataReceived: wire.DataReceived{
			BatterySOC: ack.BatterySOC,
			TotalPower: ack.TotalPower,
			Mode:       string(ack.Mode),
		},
		Corrections: ack.Corrections,
	})
}

func (c *Controller) deviceID(v string) string {
	if id := strings.TrimSpace(v); id != "" {
		return id
	}
	return c.defaultID
}

// GET /snapshot?id=&t=
// Нет данных — 200 со status=error: фронтенд разбирает тело и показывает "нет связи".
func (c *Controller) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	id := c.deviceID(r.URL.Query().Get("id"))

	snap, err := c.sync.Snapshot(r.Context(), id)
	if err != nil {
		status := http.StatusOK
		msg := "no telemetry received yet"
		if code := errcode.Of(err); code != errcode.NoData {
			status = httpStatus(err)
			msg = "snapshot unavailable: " + string(code)
			middleware.Log(r.Context()).WithError(err).WithField("device_id", id).Error("snapshot failed")
		}
		wire.Write(w, r, status, wire.SnapshotResponse{
			Status:    wire.StatusError,
			Message:   msg,
			DeviceID:  id,
			Timestamp: wire.FormatTime(c.now()),
		})
		return
	}
	wire.Write(w, r, http.StatusOK, snapshotResponse(snap))
}

func snapshotResponse(s syncsvc.Snapshot) wire.SnapshotResponse {
	resp := wire.SnapshotResponse{
		Status:      wire.StatusSuccess,
		DeviceID:    s.DeviceID,
		Timestamp:   wire.FormatTime(s.Timestamp),
		IsConnected: s.Liveness.Connected,
		Mode:        string(s.Mode),
		Devices:     make(map[string]string, len(models.Commandable)),
		Power:       make(map[string]float64, len(models.Outputs)+1),
		Current:     make(map[string]float64, len(models.Outputs)+1),
		Voltage:     make(map[string]float64, len(models.Outputs)+1),
		Battery: &wire.Battery{
			Voltage:          s.Sample.Battery.Voltage,
			SOC:              s.Sample.Battery.SOC,
			EstimatedRuntime: s.Sample.Battery.RuntimeHours,
		},
		Sensors: &wire.Sensors{
			TemperatureKamar:  s.Sample.Environment.TemperatureKamar,
			TemperatureRtamu:  s.Sample.Environment.TemperatureRtamu,
			HumidityKamar:     s.Sample.Environment.HumidityKamar,
			HumidityRtamu:     s.Sample.Environment.HumidityRtamu,
			LightLevel:        s.Sample.Environment.LightLevel,
			StatusReadSensors: string(s.Sample.Environment.SensorStatus),
		},
		PIR: &wire.PIR{
			Teras:     btoi(s.Sample.Motion.Teras),
			RuangTamu: btoi(s.Sample.Motion.RuangTamu),
			Kamar:     btoi(s.Sample.Motion.Kamar),
			WC:        btoi(s.Sample.Motion.WC),
			Dapur:     btoi(s.Sample.Motion.Dapur),
		},
	}
	if d := s.Liveness.Delay; d != nil {
		sec := int64(*d / time.Second)
		resp.ConnectionDelay = &sec
	}
	for _, ch := range models.Outputs {
		o := s.Sample.Outputs[ch]
		if ch != models.USB {
			resp.Devices[ch.Key()] = string(o.State)
		}
		resp.Power[ch.Key()] = o.Power
		resp.Current[ch.Key()] = o.Current
		resp.Voltage[ch.Key()] = o.Voltage
	}
	resp.Power["total"] = s.Sample.Totals.Power
	resp.Current["total"] = s.Sample.Totals.Current
	resp.Voltage["system"] = s.Sample.Totals.SystemVoltage

	rec := make([]string, 0, len(s.Advice.RecommendedDevices))
	for _, ch := range s.Advice.RecommendedDevices {
		rec = append(rec, string(ch))
	}
	resp.AutoModeData = &wire.AutoModeData{
		RecommendedDevices:    rec,
		BatteryStatus:         string(s.Advice.BatteryStatus),
		EnergyEfficiencyScore: s.Advice.EfficiencyScore,
	}
	if s.LastCommandTime != nil {
		resp.AutoModeData.LastCommandTime = wire.FormatTime(*s.LastCommandTime)
	}
	return resp
}

func btoi(b bool) int {
	if b {
		return 1
	}
	return 0
}

// POST /control
func (c *Controller) handleControl(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(w, r)
	if err != nil {
		c.badRequest(w, r, err)
		return
	}
	req := wire.ControlRequest{
		Action: strings.TrimSpace(fields.Get("action")),
		ID:     fields.Get("id"),
		Device: fields.Get("device"),
		State:  fields.Get("state"),
		Mode:   fields.Get("mode"),
	}
	id := c.deviceID(req.ID)

	var (
		at  time.Time
		msg string
	)
	switch req.Action {
	case wire.ActionControlDevice, wire.ActionToggleOutput:
		at, err = c.gateway.SetOutput(r.Context(), id, req.Device, req.State)
		msg = strings.ToUpper(strings.TrimSpace(req.Device)) + " set to " + strings.ToUpper(strings.TrimSpace(req.State))
	case wire.ActionChangeMode:
		at, err = c.gateway.SetMode(r.Context(), id, req.Mode)
		msg = "mode set to " + strings.ToUpper(strings.TrimSpace(req.Mode))
	case "":
		err = errcode.New(errcode.MissingRequiredField, "api.control", "action")
	default:
		err = errcode.New(errcode.InvalidArgument, "api.control", "unknown action "+req.Action)
	}
	if err != nil {
		c.writeError(w, r, err, err.Error(), nil)
		return
	}

	wire.Write(w, r, http.StatusOK, wire.ControlResponse{
		Status:    wire.StatusSuccess,
		Message:   msg,
		DeviceID:  id,
		Timestamp: wire.FormatTime(at),
	})
}

// GET /api/v1/devices/{id}/history?limit=n
func (c *Controller) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := url.PathUnescape(mux.Vars(r)["id"])
	if err != nil {
		c.writeError(w, r, errcode.Wrap(errcode.InvalidArgument, "api.history", err), "bad device id", nil)
		return
	}
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			c.writeError(w, r, errcode.New(errcode.InvalidArgument, "api.history", "limit"), "limit must be an integer", nil)
			return
		}
		limit = n
	}

	rows, err := c.sync.History(r.Context(), id, limit)
	if err != nil {
		c.writeError(w, r, err, err.Error(), nil)
		return
	}

	resp := wire.HistoryResponse{
		Status:   wire.StatusSuccess,
		DeviceID: id,
		Count:    len(rows),
		Items:    make([]wire.HistoryItem, 0, len(rows)),
	}
	for i := range rows {
		h := &rows[i]
		item := wire.HistoryItem{
			SampleID:       h.SampleID,
			Timestamp:      wire.FormatTime(h.Timestamp),
			Mode:           h.Mode,
			BatterySOC:     h.BatterySOC,
			BatteryVoltage: h.BatteryVoltage,
			TotalPower:     h.TotalPower,
			CurrentTotal:   h.CurrentTotal,
			Devices:        make(map[string]string, len(models.Commandable)),
		}
		for _, ch := range models.Commandable {
			item.Devices[ch.Key()] = string(h.Output(ch).State)
		}
		resp.Items = append(resp.Items, item)
	}
	wire.Write(w, r, http.StatusOK, resp)
}
