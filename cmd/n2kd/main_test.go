package main

import (
	"testing"

	"github.com/simpleiot/n2kfast/config"
)

func TestFlagBusConfig(t *testing.T) {
	bus, err := flagBusConfig("can0", "", "250000", 42, []uint32{130820})
	if err != nil {
		t.Fatal(err)
	}

	if bus.Source != 42 || bus.Device != "can0" || len(bus.FastPackets) != 1 {
		t.Errorf("bus: %+v", bus)
	}

	if _, err := flagBusConfig("can0", "", "250000", 256, nil); err == nil {
		t.Error("source 256 should be rejected")
	}
}

func TestFlagBusGps(t *testing.T) {
	// gps configured in a file, bus only given on the command line
	cfg, err := config.Parse([]byte("gps: {port: /dev/ttyUSB0}"))
	if err != nil {
		t.Fatal(err)
	}

	bus, err := flagBusConfig("can1", "", "250000", 0, nil)
	if err != nil {
		t.Fatal(err)
	}
	cfg.Buses = append(cfg.Buses, bus)
	cfg.DefaultGpsBus()

	if err := cfg.Validate(); err != nil {
		t.Fatal("validate: ", err)
	}

	if cfg.Gps.Bus != "can1" {
		t.Error("gps bus: ", cfg.Gps.Bus)
	}
}
