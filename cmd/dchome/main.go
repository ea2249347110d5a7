package main

import (
	"fmt"
	"os"

	"dchome/config"
	"dchome/server"

	"github.com/spf13/pflag"
)

func main() {
	flags := pflag.NewFlagSet("dchome", pflag.ExitOnError)
	cfgPath := flags.StringP("config", "c", "", "config file (yaml/toml/json)")
	flags.String("address", "", "listen address")
	flags.String("port", "", "listen port")
	flags.String("db-driver", "", "mysql | postgres | sqlite")
	flags.String("db-dsn", "", "database DSN")
	flags.String("log-level", "", "debug | info | warn | error")
	flags.String("log-format", "", "text | json")
	flags.String("log-file", "", "also write logs to this file")
	flags.String("device-id", "", "device shown by /snapshot without ?id=")
	_ = flags.Parse(os.Args[1:])

	cfg, err := config.Load(*cfgPath, flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	var app server.App
	if err := app.Initialize(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "init:", err)
		os.Exit(1)
	}
	if err := app.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "run:", err)
		os.Exit(1)
	}
}
