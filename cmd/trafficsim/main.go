// Package main is the entry point for the trafficsim simulator.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/MDylan95/sma-trafic/internal/buildinfo"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	if flag.NArg() > 0 {
		switch flag.Arg(0) {
		case "run":
			if err := runRun(logger, *configPath); err != nil {
				logger.Error("simulation failed", "error", err)
				os.Exit(1)
			}
		case "init":
			dir := "."
			if flag.NArg() > 1 {
				dir = flag.Arg(1)
			}
			if err := runInit(os.Stdout, dir); err != nil {
				fmt.Fprintf(os.Stderr, "init failed: %v\n", err)
				os.Exit(1)
			}
		case "version":
			fmt.Println(buildinfo.String())
			for k, v := range buildinfo.BuildInfo() {
				fmt.Printf("  %-12s %s\n", k+":", v)
			}
		default:
			fmt.Fprintf(os.Stderr, "unknown command: %s\n", flag.Arg(0))
			os.Exit(1)
		}
		return
	}

	fmt.Println("trafficsim - multi-agent traffic simulator")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  run      Run a simulation to completion")
	fmt.Println("  init     Write a starter config.yaml into a directory")
	fmt.Println("  version  Show version")
	fmt.Println()
	fmt.Println("Flags:")
	flag.PrintDefaults()
}
