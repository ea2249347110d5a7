// Package wire holds the HTTP body shapes shared by the server, the monitor client
// and the simulator, plus the JSON/CBOR codec.
package wire

import (
	"time"

	"dchome/internal/models"
	"dchome/internal/telemetry"
)

// TimeLayout — формат времени контроллера и фронтенда (UTC).
const TimeLayout = "2006-01-02 15:04:05"

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(TimeLayout)
}

func ParseTime(s string) (time.Time, error) {
	return time.ParseInLocation(TimeLayout, s, time.UTC)
}

// PullResponse — ответ /pull. Ключи MODE и L1..K2 в верхнем регистре, как ждёт прошивка.
type PullResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	DeviceID  string `json:"device_id"`
	Mode      string `json:"MODE"`
	L1        string `json:"L1"`
	L2        string `json:"L2"`
	L3        string `json:"L3"`
	L4        string `json:"L4"`
	L5        string `json:"L5"`
	K1        string `json:"K1"`
	K2        string `json:"K2"`
	Timestamp string `json:"timestamp"`
}

func (p *PullResponse) field(c models.Channel) *string {
	switch c {
	case models.L1:
		return &p.L1
	case models.L2:
		return &p.L2
	case models.L3:
		return &p.L3
	case models.L4:
		return &p.L4
	case models.L5:
		return &p.L5
	case models.K1:
		return &p.K1
	case models.K2:
		return &p.K2
	}
	return nil
}

func (p *PullResponse) SetState(c models.Channel, st models.State) {
	if f := p.field(c); f != nil {
		*f = string(st)
	}
}

func (p *PullResponse) State(c models.Channel) models.State {
	if f := p.field(c); f != nil {
		return models.State(*f)
	}
	return ""
}

type RecordsAffected struct {
	SensorData    int    `json:"sensor_data"`
	CurrentStatus string `json:"current_status"`
}

type DataReceived struct {
	BatterySOC float64 `json:"battery_soc"`
	TotalPower float64 `json:"total_power"`
	Mode       string  `json:"mode"`
}

type PushResponse struct {
	Status          string                 `json:"status"`
	Message         string                 `json:"message"`
	Timestamp       string                 `json:"timestamp"`
	SampleID        string                 `json:"sample_id"`
	RecordsAffected RecordsAffected        `json:"records_affected"`
	DataReceived    DataReceived           `json:"data_received"`
	Corrections     []telemetry.Correction `json:"corrections,omitempty"`
}

// ErrorResponse — общий формат ошибки для всех ручек.
type ErrorResponse struct {
	Status    string         `json:"status"`
	Code      string         `json:"code,omitempty"`
	Message   string         `json:"message"`
	SQLError  string         `json:"sql_error,omitempty"`
	DebugInfo map[string]any `json:"debug_info,omitempty"`
}

type Battery struct {
	Voltage          float64 `json:"voltage"`
	SOC              float64 `json:"soc"`
	EstimatedRuntime float64 `json:"estimatedRuntime"`
}

type Sensors struct {
	TemperatureKamar  float64 `json:"temperatureKamar"`
	TemperatureRtamu  float64 `json:"temperatureRtamu"`
	HumidityKamar     float64 `json:"humidityKamar"`
	HumidityRtamu     float64 `json:"humidityRtamu"`
	LightLevel        int     `json:"lightLevel"`
	StatusReadSensors string  `json:"statusReadSensors"`
}

// PIR values are 0/1 integers on the wire.
type PIR struct {
	Teras     int `json:"teras"`
	RuangTamu int `json:"ruangTamu"`
	Kamar     int `json:"kamar"`
	WC        int `json:"wc"`
	Dapur     int `json:"dapur"`
}

type AutoModeData struct {
	RecommendedDevices    []string `json:"recommendedDevices"`
	BatteryStatus         string   `json:"batteryStatus"`
	EnergyEfficiencyScore float64  `json:"energyEfficiencyScore"`
	LastCommandTime       string   `json:"lastCommandTime,omitempty"`
}

// SnapshotResponse — ответ /snapshot. При отсутствии данных заполнены только
// status, message, timestamp и isConnected=false.
type SnapshotResponse struct {
	Status          string             `json:"status"`
	Message         string             `json:"message,omitempty"`
	DeviceID        string             `json:"device_id,omitempty"`
	Timestamp       string             `json:"timestamp"`
	IsConnected     bool               `json:"isConnected"`
	ConnectionDelay *int64             `json:"connectionDelay,omitempty"` // seconds
	Mode            string             `json:"mode,omitempty"`
	Devices         map[string]string  `json:"devices,omitempty"`
	Battery         *Battery           `json:"battery,omitempty"`
	Sensors         *Sensors           `json:"sensors,omitempty"`
	PIR             *PIR               `json:"pir,omitempty"`
	Power           map[string]float64 `json:"power,omitempty"`
	Current         map[string]float64 `json:"current,omitempty"`
	Voltage         map[string]float64 `json:"voltage,omitempty"`
	AutoModeData    *AutoModeData      `json:"autoModeData,omitempty"`
}

// ControlRequest — тело /control: {action, device, state} или {action, mode}.
type ControlRequest struct {
	Action string `json:"action"`
	ID     string `json:"id,omitempty"`
	Device string `json:"device,omitempty"`
	State  string `json:"state,omitempty"`
	Mode   string `json:"mode,omitempty"`
}

const (
	ActionControlDevice = "control_device"
	ActionToggleOutput  = "toggle_output"
	ActionChangeMode    = "change_mode"
)

type ControlResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	DeviceID  string `json:"device_id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

type HistoryItem struct {
	SampleID       string            `json:"sample_id"`
	Timestamp      string            `json:"timestamp"`
	Mode           string            `json:"mode"`
	BatterySOC     float64           `json:"battery_soc"`
	BatteryVoltage float64           `json:"battery_voltage"`
	TotalPower     float64           `json:"total_power"`
	CurrentTotal   float64           `json:"current_total"`
	Devices        map[string]string `json:"devices"`
}

type HistoryResponse struct {
	Status   string        `json:"status"`
	DeviceID string        `json:"device_id"`
	Count    int           `json:"count"`
	Items    []HistoryItem `json:"items"`
}
