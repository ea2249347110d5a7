// Package control queues operator commands for the controller's next pull.
package control

import (
	"context"
	"strings"
	"time"

	"dchome/internal/errcode"
	"dchome/internal/logs"
	"dchome/internal/models"

	"github.com/sirupsen/logrus"
)

// Store — поколоночная запись команд (repo.CommandStore).
type Store interface {
	SetChannel(ctx context.Context, deviceID string, c models.Channel, st models.State) (time.Time, error)
	SetMode(ctx context.Context, deviceID string, m models.Mode) (time.Time, error)
}

type Gateway struct {
	store Store
	log   logrus.FieldLogger
}

func NewGateway(s Store) *Gateway {
	return &Gateway{store: s, log: logs.Logger}
}

// WithLogger — для тестов.
func (g *Gateway) WithLogger(l logrus.FieldLogger) *Gateway {
	g.log = l
	return g
}

// SetOutput queues the desired state of one channel. Success means durably queued,
// not applied by the device.
func (g *Gateway) SetOutput(ctx context.Context, deviceID, channel, state string) (time.Time, error) {
	const op = "control.SetOutput"

	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return time.Time{}, errcode.New(errcode.InvalidArgument, op, "device id is empty")
	}
	c, ok := models.ParseChannel(channel)
	if !ok {
		return time.Time{}, errcode.New(errcode.InvalidArgument, op, "unknown channel "+channel)
	}
	st, ok := models.ParseState(state)
	if !ok {
		return time.Time{}, errcode.New(errcode.InvalidArgument, op, "state must be ON or OFF")
	}

	at, err := g.store.SetChannel(ctx, deviceID, c, st)
	if err != nil {
		g.log.WithFields(logrus.Fields{"device_id": deviceID, "channel": c}).WithError(err).Error("set output failed")
		return time.Time{}, errcode.Wrap(errcode.StorageUnavailable, op, err)
	}
	g.log.WithFields(logrus.Fields{"device_id": deviceID, "channel": c, "state": st}).Info("output queued")
	return at, nil
}

func (g *Gateway) SetMode(ctx context.Context, deviceID, mode string) (time.Time, error) {
	const op = "control.SetMode"

	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return time.Time{}, errcode.New(errcode.InvalidArgument, op, "device id is empty")
	}
	m, ok := models.ParseMode(mode)
	if !ok {
		return time.Time{}, errcode.New(errcode.InvalidArgument, op, "mode must be MANUAL or AUTO")
	}

	at, err := g.store.SetMode(ctx, deviceID, m)
	if err != nil {
		g.log.WithField("device_id", deviceID).WithError(err).Error("set mode failed")
		return time.Time{}, errcode.Wrap(errcode.StorageUnavailable, op, err)
	}
	g.log.WithFields(logrus.Fields{"device_id": deviceID, "mode": m}).Info("mode queued")
	return at, nil
}
