// dchome-monitor polls /snapshot like the dashboard does and logs what changes.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"dchome/config"
	"dchome/internal/client"
	"dchome/internal/logs"
	"dchome/internal/poller"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

func main() {
	flags := pflag.NewFlagSet("dchome-monitor", pflag.ExitOnError)
	cfgPath := flags.StringP("config", "c", "", "config file")
	flags.String("base-url", "", "bridge base URL")
	flags.String("watch-id", "", "device to watch")
	flags.Duration("interval", 0, "poll interval")
	flags.String("log-level", "", "debug | info | warn | error")
	useCBOR := flags.Bool("cbor", false, "request application/cbor")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(*cfgPath, flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logs.Init(logs.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, File: cfg.Logging.File})

	var opts []client.Option
	if *useCBOR {
		opts = append(opts, client.WithCBOR())
	}
	c, err := client.New(cfg.Monitor.BaseURL, cfg.Monitor.Timeout, opts...)
	if err != nil {
		logs.Logger.Fatal(err)
	}

	deviceID := cfg.Monitor.DeviceID
	p := poller.New(c, deviceID, poller.Options{
		Interval: cfg.Monitor.Interval,
		Timeout:  cfg.Monitor.Timeout,
		OnChange: func(_, cur poller.State, changes []poller.Change) {
			l := logs.Logger.WithField("device_id", deviceID)
			if cur.Err != nil {
				l = l.WithError(cur.Err)
			}
			for _, ch := range changes {
				l.WithFields(logrus.Fields{"kind": ch.Kind}).Info(ch.String())
			}
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	logs.Logger.Infof("monitoring %s at %s every %s", deviceID, cfg.Monitor.BaseURL, cfg.Monitor.Interval)
	if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logs.Logger.Fatal(err)
	}
}
