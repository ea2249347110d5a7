package repo

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"dchome/internal/db"
	"dchome/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	d, err := db.Open("sqlite", fmt.Sprintf("file:%s?mode=memory&cache=shared", name))
	require.NoError(t, err)
	require.NoError(t, db.Migrate(d))
	t.Cleanup(func() { _ = db.Close(d) })
	return d
}

func reading(soc float64, l1 models.State, ts time.Time) models.Reading {
	r := models.Reading{
		Mode:              string(models.Manual),
		BatterySOC:        soc,
		StatusReadSensors: string(models.SensorSucceed),
		Timestamp:         ts,
	}
	for _, c := range models.Outputs {
		r.SetOutput(c, models.OutputReading{State: models.Off})
	}
	r.SetOutput(models.L1, models.OutputReading{State: l1, Power: 9.9})
	return r
}

func TestTelemetryStore_SaveAndCurrent(t *testing.T) {
	ctx := context.Background()
	s := NewTelemetryStore(newTestDB(t))

	cur, err := s.Current(ctx, "dev-1")
	require.NoError(t, err)
	assert.Nil(t, cur)

	ts := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	require.NoError(t, s.Save(ctx, "dev-1", "s-1", reading(80, models.On, ts), []byte(`{"id":"dev-1"}`)))

	cur, err = s.Current(ctx, "dev-1")
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, "s-1", cur.SampleID)
	assert.Equal(t, "ON", cur.L1)
	assert.Equal(t, 9.9, cur.PowerL1)
	assert.True(t, ts.Equal(cur.Timestamp))
}

func TestTelemetryStore_CurrentIsReplaced(t *testing.T) {
	ctx := context.Background()
	s := NewTelemetryStore(newTestDB(t))
	ts := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(ctx, "dev-1", "s-1", reading(80, models.On, ts), nil))
	require.NoError(t, s.Save(ctx, "dev-1", "s-2", reading(40, models.Off, ts.Add(5*time.Second)), nil))

	cur, err := s.Current(ctx, "dev-1")
	require.NoError(t, err)
	assert.Equal(t, "s-2", cur.SampleID)
	assert.Equal(t, 40.0, cur.BatterySOC)
	assert.Equal(t, "OFF", cur.L1)

	n, err := s.CountHistory(ctx, "dev-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestTelemetryStore_SaveIsAtomic(t *testing.T) {
	ctx := context.Background()
	d := newTestDB(t)
	s := NewTelemetryStore(d)

	// current_status недоступна: история не должна остаться без пары
	require.NoError(t, d.Migrator().DropTable(&models.CurrentStatus{}))

	err := s.Save(ctx, "dev-1", "s-1", reading(80, models.On, time.Now().UTC()), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "current_status")

	n, err := s.CountHistory(ctx, "dev-1")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTelemetryStore_History(t *testing.T) {
	ctx := context.Background()
	s := NewTelemetryStore(newTestDB(t))
	base := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("s-%d", i)
		require.NoError(t, s.Save(ctx, "dev-1", id, reading(float64(50+i), models.On, base.Add(time.Duration(i)*time.Second)), nil))
	}
	require.NoError(t, s.Save(ctx, "dev-2", "other", reading(10, models.Off, base), nil))

	rows, err := s.History(ctx, "dev-1", 3)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "s-4", rows[0].SampleID)
	assert.Equal(t, "s-2", rows[2].SampleID)

	rows, err = s.History(ctx, "dev-1", 0)
	require.NoError(t, err)
	assert.Len(t, rows, 5)
}

func TestCommandStore_EnsureIsIdempotent(t *testing.T) {
	ctx := context.Background()
	d := newTestDB(t)
	s := NewCommandStore(d)

	first, created, err := s.Ensure(ctx, "new-dev")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "MANUAL", first.Mode)
	for _, c := range models.Commandable {
		assert.Equal(t, models.Off, first.State(c), c)
	}

	second, created, err := s.Ensure(ctx, "new-dev")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.Mode, second.Mode)

	var n int64
	require.NoError(t, d.Model(&models.DeviceControl{}).Where("device_id = ?", "new-dev").Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestCommandStore_EnsureConcurrentFirstContact(t *testing.T) {
	ctx := context.Background()
	d := newTestDB(t)
	s := NewCommandStore(d)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		errs    []error
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, c, err := s.Ensure(ctx, "racy")
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
			}
			if c {
				created++
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, errs)
	assert.Equal(t, 1, created)
	var n int64
	require.NoError(t, d.Model(&models.DeviceControl{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestCommandStore_GetMissing(t *testing.T) {
	s := NewCommandStore(newTestDB(t))
	m, err := s.Get(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestCommandStore_SetChannelOnlyTouchesOneColumn(t *testing.T) {
	ctx := context.Background()
	fixed := time.Date(2026, 10, 18, 11, 30, 0, 0, time.UTC)
	s := NewCommandStore(newTestDB(t)).WithClock(func() time.Time { return fixed })

	_, err := s.SetMode(ctx, "dev-1", models.Auto)
	require.NoError(t, err)
	at, err := s.SetChannel(ctx, "dev-1", models.L3, models.On)
	require.NoError(t, err)
	assert.True(t, fixed.Equal(at))

	m, err := s.Get(ctx, "dev-1")
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "AUTO", m.Mode)
	assert.Equal(t, models.On, m.State(models.L3))
	assert.Equal(t, models.Off, m.State(models.L1))
	assert.True(t, fixed.Equal(m.UpdatedAt))
}

func TestCommandStore_ConcurrentSetChannelKeepsBoth(t *testing.T) {
	ctx := context.Background()
	s := NewCommandStore(newTestDB(t))
	_, _, err := s.Ensure(ctx, "dev-1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, c := range []models.Channel{models.L1, models.K1} {
		wg.Add(1)
		go func(c models.Channel) {
			defer wg.Done()
			_, err := s.SetChannel(ctx, "dev-1", c, models.On)
			errs <- err
		}(c)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	m, err := s.Get(ctx, "dev-1")
	require.NoError(t, err)
	assert.Equal(t, models.On, m.State(models.L1))
	assert.Equal(t, models.On, m.State(models.K1))
	assert.Equal(t, models.Off, m.State(models.K2))
}
