package automode

import (
	"testing"

	"dchome/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestRecommendedDevices_TierBoundaries(t *testing.T) {
	cases := []struct {
		soc  float64
		want int
	}{
		{100, 7}, {90, 7}, {89.9, 6}, {89, 6}, {80, 6},
		{79, 5}, {70, 5}, {69, 4}, {60, 4}, {59, 3}, {50, 3},
		{49, 2}, {36, 2}, {35.1, 2}, {35, 0}, {20, 0}, {0, 0},
	}
	for _, c := range cases {
		assert.Len(t, RecommendedDevices(c.soc), c.want, "soc=%v", c.soc)
	}
}

func TestRecommendedDevices_Monotonic(t *testing.T) {
	prev := -1
	for soc := 0.0; soc <= 100; soc += 0.5 {
		n := len(RecommendedDevices(soc))
		assert.GreaterOrEqual(t, n, prev, "soc=%v", soc)
		prev = n
	}
}

func TestRecommendedDevices_Members(t *testing.T) {
	assert.Equal(t, []models.Channel{models.L1, models.L2, models.L3, models.L4, models.L5, models.K1},
		RecommendedDevices(85))
	assert.Equal(t, []models.Channel{models.L1, models.L2}, RecommendedDevices(40))
	assert.NotNil(t, RecommendedDevices(10))
}

func TestRecommendedDevices_ReturnsCopy(t *testing.T) {
	got := RecommendedDevices(95)
	got[0] = models.USB
	assert.Equal(t, models.L1, RecommendedDevices(95)[0])
}

func TestStatus_Bands(t *testing.T) {
	assert.Equal(t, Emergency, Status(0))
	assert.Equal(t, Emergency, Status(20))
	assert.Equal(t, Critical, Status(21))
	assert.Equal(t, Critical, Status(35))
	assert.Equal(t, Low, Status(36))
	assert.Equal(t, Low, Status(50))
	assert.Equal(t, Medium, Status(70))
	assert.Equal(t, Good, Status(71))
	assert.Equal(t, Good, Status(90))
	assert.Equal(t, Excellent, Status(91))
	assert.Equal(t, Excellent, Status(100))
}

func TestEfficiencyScore_ZeroPower(t *testing.T) {
	assert.Equal(t, 100.0, EfficiencyScore(0, 0))
	assert.Equal(t, 100.0, EfficiencyScore(55, 0))
}

func TestEfficiencyScore_Clamped(t *testing.T) {
	assert.InDelta(t, 1.0, EfficiencyScore(100, 1000), 1e-9)
	assert.Equal(t, 100.0, EfficiencyScore(100, 5))
	assert.Equal(t, 0.0, EfficiencyScore(0, 1000))

	for _, p := range []float64{0.1, 1, 10, 50, 1e6} {
		s := EfficiencyScore(100, p)
		assert.GreaterOrEqual(t, s, 0.0)
		assert.LessOrEqual(t, s, 100.0)
	}
}

func TestEfficiencyScore_Formula(t *testing.T) {
	// 50% charge, 40 W: 0.5 * (100 / 4) = 12.5
	assert.InDelta(t, 12.5, EfficiencyScore(50, 40), 1e-9)
}

func TestEfficiencyScore_DecreasesWithPower(t *testing.T) {
	assert.Greater(t, EfficiencyScore(80, 20), EfficiencyScore(80, 40))
	assert.Greater(t, EfficiencyScore(90, 40), EfficiencyScore(60, 40))
}

func TestAdvise(t *testing.T) {
	a := Advise(62, 30)
	assert.Equal(t, Medium, a.BatteryStatus)
	assert.Len(t, a.RecommendedDevices, 4)
	assert.True(t, a.Recommends(models.L4))
	assert.False(t, a.Recommends(models.L5))
}
