package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/caarlos0/env/v6"

	"flightpwm/core"
	"flightpwm/host/board"
	"flightpwm/host/config"
	"flightpwm/host/console"
	"flightpwm/host/serial"
	"flightpwm/host/sim"
)

// EnvConfig holds environment overrides for the command-line flags
type EnvConfig struct {
	Device string `env:"FLIGHTPWM_DEVICE"`
	Baud   int    `env:"FLIGHTPWM_BAUD"`
	Config string `env:"FLIGHTPWM_CONFIG"`
	Sim    bool   `env:"FLIGHTPWM_SIM"`
	Debug  bool   `env:"FLIGHTPWM_DEBUG"`
}

var (
	device     = flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud       = flag.Int("baud", 250000, "Baud rate (ignored for USB CDC)")
	configPath = flag.String("config", "", "Board output map (YAML); default quad layout when empty")
	simulate   = flag.Bool("sim", false, "Drive an in-process simulated board instead of a device")
	verbose    = flag.Bool("verbose", false, "Enable verbose output")
)

func main() {
	flag.Parse()

	envCfg := new(EnvConfig)
	if err := env.Parse(envCfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to parse environment: %v\n", err)
		os.Exit(1)
	}
	if envCfg.Device != "" {
		*device = envCfg.Device
	}
	if envCfg.Baud != 0 {
		*baud = envCfg.Baud
	}
	if envCfg.Config != "" {
		*configPath = envCfg.Config
	}
	*simulate = *simulate || envCfg.Sim
	*verbose = *verbose || envCfg.Debug

	fmt.Println("flightpwm host - motor and servo output console")
	fmt.Println("===============================================")

	cfg := config.DefaultQuadConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	fmt.Printf("Board %q: %d motors, %d servos\n", cfg.Name, len(cfg.Motors), len(cfg.Servos))

	client := board.NewClient()
	var simBoard *sim.Board

	if *simulate {
		if *verbose {
			core.SetDebugEnabled(true)
			core.SetDebugWriter(func(s string) { fmt.Fprintln(os.Stderr, s) })
		}

		var err error
		simBoard, err = sim.NewBoard(cfg.EngineConfig(), 16, 4)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to start simulator: %v\n", err)
			os.Exit(1)
		}
		client.ConnectPort(simBoard.Connect())
		fmt.Println("Connected to simulated board")
	} else {
		fmt.Printf("Connecting to board on %s...\n", *device)
		serialCfg := serial.DefaultConfig(*device)
		serialCfg.Baud = *baud
		if err := client.ConnectWithConfig(serialCfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: Failed to connect: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Connected successfully!")
	}
	defer client.Close()

	if err := config.Apply(cfg, client); err != nil {
		// The board disarms itself on a failed output; keep the console
		// up so the operator can inspect it
		fmt.Fprintf(os.Stderr, "Warning: configuration incomplete: %v\n", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	c := console.New(client, simBoard, uint8(len(cfg.Motors)), os.Stdout)
	if err := c.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if simBoard != nil && *verbose {
		core.DumpEventRing()
	}
}
