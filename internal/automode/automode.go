// Package automode derives the advisory AUTO-mode view from battery state of charge.
// Nothing here actuates outputs; the controller applies AUTO mode itself.
package automode

import "dchome/internal/models"

type BatteryStatus string

const (
	Emergency BatteryStatus = "EMERGENCY"
	Critical  BatteryStatus = "CRITICAL"
	Low       BatteryStatus = "LOW"
	Medium    BatteryStatus = "MEDIUM"
	Good      BatteryStatus = "GOOD"
	Excellent BatteryStatus = "EXCELLENT"
)

type tier struct {
	min       float64
	inclusive bool
	outputs   []models.Channel
}

// Tiers top-down, first match wins. The L1-L2 tier is strict (> 35).
var tiers = []tier{
	{90, true, []models.Channel{models.L1, models.L2, models.L3, models.L4, models.L5, models.K1, models.K2}},
	{80, true, []models.Channel{models.L1, models.L2, models.L3, models.L4, models.L5, models.K1}},
	{70, true, []models.Channel{models.L1, models.L2, models.L3, models.L4, models.L5}},
	{60, true, []models.Channel{models.L1, models.L2, models.L3, models.L4}},
	{50, true, []models.Channel{models.L1, models.L2, models.L3}},
	{35, false, []models.Channel{models.L1, models.L2}},
}

// RecommendedDevices returns the outputs AUTO mode would keep on at this SOC.
func RecommendedDevices(soc float64) []models.Channel {
	for _, t := range tiers {
		if soc > t.min || (t.inclusive && soc == t.min) {
			out := make([]models.Channel, len(t.outputs))
			copy(out, t.outputs)
			return out
		}
	}
	return []models.Channel{}
}

// Status bands are inclusive on their upper bound.
func Status(soc float64) BatteryStatus {
	switch {
	case soc <= 20:
		return Emergency
	case soc <= 35:
		return Critical
	case soc <= 50:
		return Low
	case soc <= 70:
		return Medium
	case soc <= 90:
		return Good
	default:
		return Excellent
	}
}

// EfficiencyScore is a display heuristic in [0,100]: higher charge and lower draw score better.
func EfficiencyScore(soc, totalPower float64) float64 {
	if totalPower == 0 {
		return 100
	}
	score := (soc / 100) * (100 / max(1, totalPower/10))
	return min(100, max(0, score))
}

type Advice struct {
	RecommendedDevices []models.Channel
	BatteryStatus      BatteryStatus
	EfficiencyScore    float64
}

func Advise(soc, totalPower float64) Advice {
	return Advice{
		RecommendedDevices: RecommendedDevices(soc),
		BatteryStatus:      Status(soc),
		EfficiencyScore:    EfficiencyScore(soc, totalPower),
	}
}

// Recommends reports whether c is in the recommended set for soc.
func (a Advice) Recommends(c models.Channel) bool {
	for _, r := range a.RecommendedDevices {
		if r == c {
			return true
		}
	}
	return false
}
