package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"tokenwatch/internal/app"
)

func main() {
	var (
		cfgPath     string
		once        bool
		checkConfig bool
	)
	flag.StringVarP(&cfgPath, "config", "c", "./config.yaml", "path to config (yaml or json)")
	flag.BoolVar(&once, "once", false, "run a single poll cycle and exit")
	flag.BoolVar(&checkConfig, "check-config", false, "validate the config and exit")
	flag.Parse()

	if checkConfig {
		if _, err := app.CheckConfig(cfgPath); err != nil {
			fmt.Fprintln(os.Stderr, "config invalid:", err)
			os.Exit(1)
		}
		fmt.Println("config ok:", cfgPath)
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	os.Exit(run(ctx, cfgPath, once))
}

func run(ctx context.Context, cfgPath string, once bool) int {
	a, err := app.New(ctx, cfgPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		return 1
	}
	defer a.Close()

	if once {
		err = a.Once(ctx)
	} else {
		err = a.Run(ctx)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		return 1
	}
	return 0
}
