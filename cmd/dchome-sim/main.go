// dchome-sim plays the controller against a running bridge.
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
	"dchome/internal/simulator"

	"github.com/spf13/pflag"
)

func main() {
	flags := pflag.NewFlagSet("dchome-sim", pflag.ExitOnError)
	cfgPath := flags.StringP("config", "c", "", "config file")
	flags.String("sim-base-url", "", "bridge base URL")
	flags.String("sim-device-id", "", "simulated device id")
	flags.Duration("sim-interval", 0, "pull/push period")
	flags.String("log-level", "", "debug | info | warn | error")
	soc := flags.Float64("soc", 80, "initial state of charge, %")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(*cfgPath, flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logs.Init(logs.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, File: cfg.Logging.File})

	c, err := client.New(cfg.Simulator.BaseURL, cfg.Simulator.Interval)
	if err != nil {
		logs.Logger.Fatal(err)
	}
	sim := simulator.New(c, simulator.NewDevice(cfg.Simulator.DeviceID, *soc))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	logs.Logger.Infof("simulating %s against %s every %s", cfg.Simulator.DeviceID, cfg.Simulator.BaseURL, cfg.Simulator.Interval)
	if err := sim.Run(ctx, cfg.Simulator.Interval); err != nil && !errors.Is(err, context.Canceled) {
		logs.Logger.Fatal(err)
	}
}
