package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/oklog/run"
	"github.com/simpleiot/n2kfast/client"
	"github.com/simpleiot/n2kfast/config"
	"github.com/simpleiot/n2kfast/gps"
	"github.com/simpleiot/n2kfast/n2k"
	"github.com/simpleiot/n2kfast/natsserver"
	"github.com/simpleiot/n2kfast/store"
	"github.com/simpleiot/n2kfast/system"
)

// goreleaser will replace version with Git version. You can also pass version
// into the go build:
//   go build -ldflags="-X main.version=1.2.3"
var version = "Development"

func main() {
	// global options
	flags := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	flagVersion := flags.Bool("version", false, "Print app version")
	flags.Usage = func() {
		fmt.Println("usage: n2kd [OPTION]... COMMAND [OPTION]...")
		fmt.Println("Global options:")
		flags.PrintDefaults()
		fmt.Println()
		fmt.Println("Available commands:")
		fmt.Println("  - serve (bridge CAN buses to NATS)")
		fmt.Println("  - log (log bridged messages)")
	}

	flags.Parse(os.Args[1:])

	if *flagVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	// extract sub command and its arguments
	args := flags.Args()

	if len(args) < 1 {
		// run serve command by default
		args = []string{"serve"}
	}

	switch args[0] {
	case "serve":
		if err := runServe(args[1:]); err != nil {
			log.Println("n2kd stopped, reason: ", err)
			os.Exit(-1)
		}
	case "log":
		if err := runLog(args[1:]); err != nil {
			log.Fatal("Error: ", err)
		}
	default:
		log.Fatal("Unknown command; options: serve, log")
	}
}

func runServe(args []string) error {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	flagConfig := flags.String("config", "", "YAML config file")
	flagNatsServer := flags.String("natsServer", config.DefaultNatsServer, "NATS Server")
	flagNatsDisableServer := flags.Bool("natsDisableServer", false, "Disable embedded NATS server")
	flagNatsPort := flags.Int("natsPort", 4222, "Port for embedded NATS server")
	flagAuthToken := flags.String("token", "", "Auth token")
	flagData := flags.String("data", "", "Data directory for the message log, empty disables logging")
	flagKeep := flags.Duration("keep", 7*24*time.Hour, "How long logged messages are kept")
	flagSyslog := flags.Bool("syslog", false, "Log to syslog")
	flagBus := flags.String("bus", "", "CAN device to bridge in addition to the config file (can0, /dev/ttyACM0)")
	flagBusType := flags.String("busType", client.BusTypeSocketCan, "Bus type: socketcan or slcan")
	flagBitRate := flags.String("bitRate", "250000", "CAN bit rate")
	flagSource := flags.Uint("source", 0, "Source address for transmitted messages")
	flagGps := flags.String("gps", "", "Serial port of NMEA 0183 GPS receiver")
	flagGpsBus := flags.String("gpsBus", "", "Bus GPS positions are sent on")
	flagDebug := flags.Bool("debug", false, "Debug output")

	if err := flags.Parse(args); err != nil {
		return err
	}

	if *flagSyslog {
		if err := system.EnableSyslog(); err != nil {
			log.Println("Error enabling syslog: ", err)
		}
	}

	log.Printf("n2kd %v\n", version)

	cfg, err := config.Load(*flagConfig)
	if err != nil {
		return err
	}

	cfg.ApplyEnv(os.Getenv)

	// command line options win over the environment and the config file
	flags.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "natsServer":
			cfg.NatsServer = *flagNatsServer
		case "natsDisableServer":
			cfg.NatsDisableServer = *flagNatsDisableServer
		case "natsPort":
			cfg.NatsPort = *flagNatsPort
		case "token":
			cfg.AuthToken = *flagAuthToken
		case "data":
			cfg.DataDir = *flagData
		case "gps":
			cfg.Gps.Port = *flagGps
		case "gpsBus":
			cfg.Gps.Bus = *flagGpsBus
		}
	})

	if *flagBus != "" {
		bus, err := flagBusConfig(*flagBus, *flagBusType, *flagBitRate, *flagSource, cfg.FastPackets)
		if err != nil {
			return err
		}
		cfg.Buses = append(cfg.Buses, bus)
	}

	cfg.DefaultGpsBus()

	if err := cfg.Validate(); err != nil {
		return err
	}

	if len(cfg.Buses) == 0 {
		return fmt.Errorf("no CAN buses configured")
	}

	g := client.NewRunGroup("n2kd")

	natsServer := cfg.NatsServer
	if !cfg.NatsDisableServer {
		ns, err := natsserver.New(natsserver.Options{
			Port: cfg.NatsPort,
			Auth: cfg.AuthToken,
		})
		if err != nil {
			return err
		}
		g.Add(ns)
		natsServer = fmt.Sprintf("nats://localhost:%v", cfg.NatsPort)
	}

	nc, err := client.EdgeConnect(client.EdgeOptions{
		Server:    natsServer,
		AuthToken: cfg.AuthToken,
		Disconnected: func() {
			log.Println("NATS Disconnected")
		},
		Reconnected: func() {
			log.Println("NATS Reconnected")
		},
	})
	if err != nil {
		return fmt.Errorf("Error connecting to NATS server: %v", err)
	}
	defer nc.Close()

	var msgLog client.MessageLog

	if cfg.DataDir != "" {
		db, err := store.NewSqliteDb(filepath.Join(cfg.DataDir, "n2k.sqlite"))
		if err != nil {
			return err
		}
		defer db.Close()
		msgLog = db

		pruneStop := make(chan struct{})
		g.AddFunc(func() error {
			return prune(db, *flagKeep, pruneStop)
		}, func(error) {
			close(pruneStop)
		})
	}

	for _, bus := range cfg.Buses {
		if bus.Disabled {
			log.Println("Bus disabled:", bus.BusName())
			continue
		}
		g.Add(client.NewCanBusClient(nc, bus, nil, msgLog))
	}

	if cfg.Gps.Port != "" {
		gpsSrc := gps.NewGps(cfg.Gps.Port, cfg.Gps.Baud, func(p n2k.GNSSPosition) {
			sendPosition(nc, cfg.Gps.Bus, p)
		})
		gpsSrc.SetDebug(*flagDebug)
		g.Add(gpsSrc)
	}

	g.AddFunc(run.SignalHandler(context.Background(),
		syscall.SIGINT, syscall.SIGTERM))

	return g.Run()
}

// flagBusConfig builds the config of a bus given on the command line
func flagBusConfig(device, busType, bitRate string, source uint, fastPackets []uint32) (client.CanBus, error) {
	if source > 255 {
		return client.CanBus{}, fmt.Errorf("source address %v out of range 0-255", source)
	}

	return client.CanBus{
		Device:      device,
		Type:        busType,
		BitRate:     bitRate,
		Source:      uint8(source),
		FastPackets: fastPackets,
	}, nil
}

func sendPosition(nc *nats.Conn, bus string, p n2k.GNSSPosition) {
	payload, err := p.MarshalBinary()
	if err != nil {
		log.Println("Error encoding position: ", err)
		return
	}

	m := nats.NewMsg(client.SubjectTx(bus, n2k.PGNGNSSPosition))
	m.Data = payload
	m.Header.Set(client.HeaderPriority, "3")

	if err := nc.PublishMsg(m); err != nil {
		log.Println("Error sending position: ", err)
	}
}

// prune removes logged messages older than keep once an hour
func prune(db *store.DbSqlite, keep time.Duration, stop chan struct{}) error {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			n, err := db.Prune(time.Now().Add(-keep))
			if err != nil {
				log.Println("Error pruning message log: ", err)
			} else if n > 0 {
				log.Printf("Pruned %v logged messages\n", n)
			}
		case <-stop:
			return nil
		}
	}
}

func runLog(args []string) error {
	flags := flag.NewFlagSet("log", flag.ExitOnError)
	flagNatsServer := flags.String("natsServer", config.DefaultNatsServer, "NATS Server")
	flagAuthToken := flags.String("token", "", "Auth token")
	flagBus := flags.String("bus", "", "Only log this bus")

	if err := flags.Parse(args); err != nil {
		return err
	}

	// only consider env if command line option is something different
	// that default
	natsServer := *flagNatsServer
	if natsServer == config.DefaultNatsServer {
		natsServerE := os.Getenv(config.EnvNatsServer)
		if natsServerE != "" {
			natsServer = natsServerE
		}
	}

	authToken := *flagAuthToken
	if authToken == "" {
		authToken = os.Getenv(config.EnvAuthToken)
	}

	nc, err := client.EdgeConnect(client.EdgeOptions{
		Server:    natsServer,
		AuthToken: authToken,
		Closed: func() {
			log.Println("NATS Closed")
			os.Exit(0)
		},
	})
	if err != nil {
		return err
	}

	if _, err := client.Log(nc, *flagBus); err != nil {
		return err
	}

	select {}
}
