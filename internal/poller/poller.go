// Package poller keeps a dashboard-side view of one device fresh by polling the
// snapshot endpoint with at most one fetch in flight.
package poller

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"dchome/internal/logs"
	"dchome/internal/models"
	"dchome/internal/wire"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

const DefaultInterval = 2 * time.Second

type Fetcher interface {
	Snapshot(ctx context.Context, deviceID string) (wire.SnapshotResponse, error)
}

// State — последнее применённое состояние.
type State struct {
	Connected bool
	Snapshot  *wire.SnapshotResponse
	// At — время снимка по его собственному timestamp.
	At  time.Time
	Err error
}

type Options struct {
	Interval time.Duration
	Timeout  time.Duration
	// OnChange вызывается последовательно, в порядке переходов состояния.
	// Из колбэка нельзя синхронно вызывать Refresh.
	OnChange func(old, cur State, changes []Change)
	Log      logrus.FieldLogger
}

type Poller struct {
	f        Fetcher
	deviceID string
	interval time.Duration
	timeout  time.Duration
	onChange func(old, cur State, changes []Change)
	log      logrus.FieldLogger

	sf singleflight.Group

	mu      sync.Mutex
	state   State
	pending []notice // под mu, в порядке переходов

	notifyMu sync.Mutex
}

type notice struct {
	old, cur State
	changes  []Change
}

func New(f Fetcher, deviceID string, o Options) *Poller {
	p := &Poller{
		f:        f,
		deviceID: deviceID,
		interval: o.Interval,
		timeout:  o.Timeout,
		onChange: o.OnChange,
		log:      o.Log,
	}
	if p.interval <= 0 {
		p.interval = DefaultInterval
	}
	if p.log == nil {
		p.log = logs.Logger
	}
	return p
}

func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

var errNotSuccess = errors.New("snapshot status is not success")

// Refresh fetches a snapshot; callers arriving while a fetch is outstanding share
// its result instead of starting a second one.
func (p *Poller) Refresh(ctx context.Context) (State, error) {
	v, err, _ := p.sf.Do(p.deviceID, func() (any, error) {
		fctx := ctx
		if p.timeout > 0 {
			var cancel context.CancelFunc
			fctx, cancel = context.WithTimeout(ctx, p.timeout)
			defer cancel()
		}
		return p.f.Snapshot(fctx, p.deviceID)
	})
	if err != nil {
		return p.apply(nil, err), err
	}
	resp := v.(wire.SnapshotResponse)
	if resp.Status != wire.StatusSuccess {
		err = fmt.Errorf("%w: %s", errNotSuccess, resp.Message)
		return p.apply(nil, err), err
	}
	return p.apply(&resp, nil), nil
}

// apply: ошибка -> disconnected (последний снимок остаётся для отображения);
// успешный снимок старше уже применённого отбрасывается.
func (p *Poller) apply(resp *wire.SnapshotResponse, err error) State {
	p.mu.Lock()
	old := p.state
	next := old
	if err != nil {
		next.Connected = false
		next.Err = err
	} else {
		at, perr := wire.ParseTime(resp.Timestamp)
		if perr != nil {
			next.Connected = false
			next.Err = fmt.Errorf("snapshot timestamp %q: %w", resp.Timestamp, perr)
		} else if at.Before(old.At) {
			p.mu.Unlock()
			p.log.WithField("timestamp", resp.Timestamp).Debug("poller: stale snapshot dropped")
			return old
		} else {
			next = State{Connected: resp.IsConnected, Snapshot: resp, At: at}
		}
	}
	p.state = next
	if changes := Changes(old, next); len(changes) > 0 && p.onChange != nil {
		p.pending = append(p.pending, notice{old, next, changes})
	}
	p.mu.Unlock()

	p.notify()
	return next
}

// notify доставляет накопленные уведомления по одному потоку за раз.
func (p *Poller) notify() {
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()

	p.mu.Lock()
	q := p.pending
	p.pending = nil
	p.mu.Unlock()

	for _, n := range q {
		p.onChange(n.old, n.cur, n.changes)
	}
}

// Run triggers Refresh every interval without waiting for the previous one.
// A slow fetch keeps running and its result is still applied.
func (p *Poller) Run(ctx context.Context) error {
	t := time.NewTicker(p.interval)
	defer t.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	trigger := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.Refresh(ctx); err != nil && ctx.Err() == nil {
				p.log.WithError(err).Debug("poller: refresh failed")
			}
		}()
	}

	trigger()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			trigger()
		}
	}
}

type ChangeKind string

const (
	ChangeConnection ChangeKind = "connection"
	ChangeDevice     ChangeKind = "device"
	ChangeMode       ChangeKind = "mode"
	ChangeSOC        ChangeKind = "soc"
	ChangePower      ChangeKind = "power"
)

type Change struct {
	Kind ChangeKind
	Key  string
	From string
	To   string
}

func (c Change) String() string {
	if c.Key != "" {
		return fmt.Sprintf("%s %s: %s -> %s", c.Kind, c.Key, c.From, c.To)
	}
	return fmt.Sprintf("%s: %s -> %s", c.Kind, c.From, c.To)
}

// Пороги, ниже которых изменения SOC и мощности не сообщаются.
const (
	SOCThreshold   = 0.1
	PowerThreshold = 0.1
)

func f1(x float64) string { return fmt.Sprintf("%.1f", x) }

// Changes lists what the operator would notice between two states.
func Changes(old, cur State) []Change {
	var out []Change
	if old.Connected != cur.Connected {
		out = append(out, Change{Kind: ChangeConnection, From: onlineWord(old.Connected), To: onlineWord(cur.Connected)})
	}
	a, b := old.Snapshot, cur.Snapshot
	if a == nil || b == nil || a == b {
		return out
	}

	if a.Mode != b.Mode {
		out = append(out, Change{Kind: ChangeMode, From: a.Mode, To: b.Mode})
	}
	for _, c := range models.Commandable {
		from, to := a.Devices[c.Key()], b.Devices[c.Key()]
		if from != to {
			out = append(out, Change{Kind: ChangeDevice, Key: c.Key(), From: from, To: to})
		}
	}
	if a.Battery != nil && b.Battery != nil && math.Abs(a.Battery.SOC-b.Battery.SOC) > SOCThreshold {
		out = append(out, Change{Kind: ChangeSOC, From: f1(a.Battery.SOC), To: f1(b.Battery.SOC)})
	}
	if pa, pb := a.Power["total"], b.Power["total"]; math.Abs(pa-pb) > PowerThreshold {
		out = append(out, Change{Kind: ChangePower, From: f1(pa), To: f1(pb)})
	}
	return out
}

func onlineWord(b bool) string {
	if b {
		return "online"
	}
	return "offline"
}
