// Command basebandsim boots a firmware portal against hwio.Simulated instead
// of real hardware: a deterministic sample-block driver that ticks the
// scheduler once per simulated millisecond and lets the CLI run the receiver
// for a fixed duration without an RF front end, matching spec.md §6's
// simulation-backend entry point.
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/globsky/greta-oto/pkg/firmware/config"
	"github.com/globsky/greta-oto/pkg/firmware/hwio"
	"github.com/globsky/greta-oto/pkg/firmware/output"
	"github.com/globsky/greta-oto/pkg/firmware/persist"
	"github.com/globsky/greta-oto/pkg/firmware/platform"
	"github.com/globsky/greta-oto/pkg/firmware/portal"
	"github.com/globsky/greta-oto/pkg/firmware/taskmgr"
)

// simulatedBufferFillMs is how often the simulated AE front end reports its
// sample buffer full; there is no real correlator feeding it, so a fixed
// cadence stands in for the actual fill-threshold timing fillAeBuffer
// computes against real hardware.
const simulatedBufferFillMs = 50

func main() {
	configPath := flag.String("config", "", "path to the receiver YAML config")
	persistPath := flag.String("persist", "", "path to the parameter-persistence file (empty: in-memory)")
	startFlag := flag.String("start", "cold", "start type: cold, warm, or hot")
	durationMs := flag.Int("duration-ms", 60000, "simulated run length in milliseconds")
	measOut := flag.String("meas-out", "", "path to write $PMSRP/$PBMSR/$PMSRE sentences (empty: stdout)")
	dataOut := flag.String("data-out", "", "path to write $PDATA sentences (empty: stdout)")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	logger := logrus.New()
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logger.Fatalf("invalid log level: %v", err)
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if *configPath == "" {
		logger.Fatal("-config is required")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatalf("loading config: %v", err)
	}

	start, err := parseStartType(*startFlag)
	if err != nil {
		logger.Fatalf("invalid -start: %v", err)
	}

	store, err := openStore(*persistPath)
	if err != nil {
		logger.Fatalf("opening persistence store: %v", err)
	}
	if closer, ok := store.(*os.File); ok {
		defer closer.Close()
	}

	measPort, err := openOutputPort(*measOut)
	if err != nil {
		logger.Fatalf("opening measurement output: %v", err)
	}
	dataPort, err := openOutputPort(*dataOut)
	if err != nil {
		logger.Fatalf("opening data output: %v", err)
	}

	hw := hwio.NewSimulated(*durationMs)
	clock := &platform.SimClock{}

	p := portal.New(hw, clock, cfg, store, logger, nil, nil)
	p.Output = &output.Recorder{MeasPort: measPort, DataPort: dataPort, Logger: logger}

	if err := p.Boot(start); err != nil {
		logger.Fatalf("boot failed: %v", err)
	}

	hw.Ticker = func(tickMs int) {
		clock.Advance(1)
		p.Tasks.DoAllTasks()

		if tickMs > 0 && tickMs%simulatedBufferFillMs == 0 {
			hw.WriteReg(hwio.RegAEStatus, hwio.AEStatusBufferReady)
		}
		if tickMs%taskmgr.RequestScanInterval == 0 {
			hw.RaiseInterrupt(1 << hwio.IntBitRequest)
		}
		if tickMs > 0 && p.TE.IntervalMs > 0 && tickMs%p.TE.IntervalMs == 0 {
			hw.RaiseInterrupt(1 << hwio.IntBitMeasurement)
		}
	}

	done := make(chan struct{})
	go func() {
		hw.EnableRF()
		close(done)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-done:
		logger.WithField("duration_ms", *durationMs).Info("simulated run complete")
	case <-sigCh:
		logger.Info("interrupted, exiting without waiting for run completion")
	}
}

func parseStartType(s string) (portal.StartType, error) {
	switch s {
	case "cold":
		return portal.ColdStart, nil
	case "warm":
		return portal.WarmStart, nil
	case "hot":
		return portal.HotStart, nil
	default:
		return 0, fmt.Errorf("unknown start type %q", s)
	}
}

// openStore opens path as a persist.Store, or returns a fresh in-memory
// store if path is empty.
func openStore(path string) (persist.Store, error) {
	if path == "" {
		return persist.NewMemStore(), nil
	}
	return os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
}

// openOutputPort opens path as an output.Port, creating or truncating the
// file, or wraps stdout if path is empty.
func openOutputPort(path string) (*output.Port, error) {
	if path == "" {
		return output.NewPort(os.Stdout), nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	return output.NewPort(f), nil
}
