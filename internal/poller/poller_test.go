package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"dchome/internal/wire"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type result struct {
	resp wire.SnapshotResponse
	err  error
}

// scripted отдаёт ответы по очереди; последний повторяется.
type scripted struct {
	mu      sync.Mutex
	results []result
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (s *scripted) Snapshot(ctx context.Context, _ string) (wire.SnapshotResponse, error) {
	n := int(s.calls.Add(1))
	if s.started != nil {
		s.started <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := n - 1
	if i >= len(s.results) {
		i = len(s.results) - 1
	}
	return s.results[i].resp, s.results[i].err
}

func snap(ts string, connected bool, soc, power float64, l1 string) wire.SnapshotResponse {
	return wire.SnapshotResponse{
		Status:      wire.StatusSuccess,
		Timestamp:   ts,
		IsConnected: connected,
		Mode:        "MANUAL",
		Devices:     map[string]string{"L1": l1, "L2": "OFF", "L3": "OFF", "L4": "OFF", "L5": "OFF", "K1": "OFF", "K2": "OFF"},
		Battery:     &wire.Battery{SOC: soc},
		Power:       map[string]float64{"total": power},
	}
}

func newPoller(f Fetcher, o Options) *Poller {
	l, _ := test.NewNullLogger()
	o.Log = l
	return New(f, "dev", o)
}

func TestRefresh_JoinsOutstandingFetch(t *testing.T) {
	f := &scripted{
		results: []result{{resp: snap("2026-10-18 10:00:00", true, 50, 0, "OFF")}},
		started: make(chan struct{}, 8),
		release: make(chan struct{}),
	}
	p := newPoller(f, Options{})

	var wg sync.WaitGroup
	states := make([]State, 5)
	wg.Add(1)
	go func() {
		defer wg.Done()
		states[0], _ = p.Refresh(context.Background())
	}()
	<-f.started

	for i := 1; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			states[i], _ = p.Refresh(context.Background())
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(f.release)
	wg.Wait()

	assert.Equal(t, int32(1), f.calls.Load())
	for _, st := range states {
		assert.True(t, st.Connected)
	}
}

func TestRefresh_LastTimestampWins(t *testing.T) {
	f := &scripted{results: []result{
		{resp: snap("2026-10-18 10:00:05", true, 60, 0, "ON")},
		{resp: snap("2026-10-18 10:00:03", true, 40, 0, "OFF")},
	}}
	p := newPoller(f, Options{})

	_, err := p.Refresh(context.Background())
	require.NoError(t, err)
	st, err := p.Refresh(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "2026-10-18 10:00:05", st.Snapshot.Timestamp)
	assert.Equal(t, "ON", p.State().Snapshot.Devices["L1"])
}

func TestRefresh_ErrorMarksDisconnected(t *testing.T) {
	f := &scripted{results: []result{
		{resp: snap("2026-10-18 10:00:00", true, 50, 0, "OFF")},
		{err: errors.New("connection refused")},
		{resp: wire.SnapshotResponse{Status: wire.StatusError, Message: "no telemetry"}},
		{resp: snap("2026-10-18 10:00:10", true, 50, 0, "OFF")},
	}}
	var changes []Change
	p := newPoller(f, Options{OnChange: func(_, _ State, c []Change) { changes = append(changes, c...) }})
	ctx := context.Background()

	_, err := p.Refresh(ctx)
	require.NoError(t, err)

	st, err := p.Refresh(ctx)
	require.Error(t, err)
	assert.False(t, st.Connected)
	assert.NotNil(t, st.Snapshot, "last snapshot stays visible")

	st, err = p.Refresh(ctx)
	require.ErrorIs(t, err, errNotSuccess)
	assert.False(t, st.Connected)

	st, err = p.Refresh(ctx)
	require.NoError(t, err)
	assert.True(t, st.Connected)
	assert.NoError(t, st.Err)

	var kinds []ChangeKind
	for _, c := range changes {
		kinds = append(kinds, c.Kind)
	}
	assert.Equal(t, []ChangeKind{ChangeConnection, ChangeConnection, ChangeConnection}, kinds)
}

func TestChanges(t *testing.T) {
	a := snap("2026-10-18 10:00:00", true, 50, 10, "OFF")
	b := snap("2026-10-18 10:00:02", true, 50.05, 10.05, "ON")
	c := snap("2026-10-18 10:00:04", false, 50.3, 25, "ON")
	c.Mode = "AUTO"

	got := Changes(State{Connected: true, Snapshot: &a}, State{Connected: true, Snapshot: &b})
	require.Len(t, got, 1)
	assert.Equal(t, Change{Kind: ChangeDevice, Key: "L1", From: "OFF", To: "ON"}, got[0])
	assert.Equal(t, "device L1: OFF -> ON", got[0].String())

	got = Changes(State{Connected: true, Snapshot: &b}, State{Connected: false, Snapshot: &c})
	kinds := map[ChangeKind]Change{}
	for _, ch := range got {
		kinds[ch.Kind] = ch
	}
	assert.Len(t, got, 4)
	assert.Equal(t, "offline", kinds[ChangeConnection].To)
	assert.Equal(t, "AUTO", kinds[ChangeMode].To)
	assert.Equal(t, "50.3", kinds[ChangeSOC].To)
	assert.Equal(t, "25.0", kinds[ChangePower].To)

	assert.Empty(t, Changes(State{}, State{}))
}

func TestRun_KeepsPollingThroughErrors(t *testing.T) {
	f := &scripted{results: []result{
		{err: errors.New("timeout")},
		{err: errors.New("timeout")},
		{resp: snap("2026-10-18 10:00:00", true, 50, 0, "OFF")},
	}}
	p := newPoller(f, Options{Interval: 5 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	require.Eventually(t, func() bool { return p.State().Connected }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.GreaterOrEqual(t, f.calls.Load(), int32(3))
}

func TestApply_NotifiesInTransitionOrder(t *testing.T) {
	type seen struct{ from, to string }
	var (
		mu    sync.Mutex
		got   []seen
		first = make(chan struct{})
		hold  = make(chan struct{})
	)
	var once sync.Once
	p := newPoller(&scripted{}, Options{
		OnChange: func(old, cur State, _ []Change) {
			once.Do(func() {
				close(first)
				<-hold
			})
			from := ""
			if old.Snapshot != nil {
				from = old.Snapshot.Timestamp
			}
			mu.Lock()
			got = append(got, seen{from, cur.Snapshot.Timestamp})
			mu.Unlock()
		},
	})

	s1 := snap("2026-10-18 10:00:01", true, 50, 1, "OFF")
	s2 := snap("2026-10-18 10:00:02", true, 60, 1, "ON")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); p.apply(&s1, nil) }()
	<-first
	go func() { defer wg.Done(); p.apply(&s2, nil) }()

	// второй переход уже применён, но его уведомление ждёт первое
	require.Eventually(t, func() bool { return p.State().Snapshot.Timestamp == s2.Timestamp }, time.Second, time.Millisecond)
	close(hold)
	wg.Wait()

	assert.Equal(t, []seen{
		{"", s1.Timestamp},
		{s1.Timestamp, s2.Timestamp},
	}, got)
}
