package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/simpleiot/n2kfast/client"
	"github.com/simpleiot/n2kfast/config"
	"github.com/simpleiot/n2kfast/fastpacket"
	"github.com/simpleiot/n2kfast/n2k"
)

func usage() {
	fmt.Println("usage: n2kutil COMMAND [OPTION]... HEX...")
	fmt.Println("Available commands:")
	fmt.Println("  - encode (split a payload into fast-packet frames)")
	fmt.Println("  - decode (reassemble a payload from frames)")
	fmt.Println("  - send (transmit a payload through a running n2kd)")
}

func main() {
	log.SetFlags(0)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	var err error

	switch os.Args[1] {
	case "encode":
		err = runEncode(os.Args[2:])
	case "decode":
		err = runDecode(os.Args[2:])
	case "send":
		err = runSend(os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}

	if err != nil {
		log.Fatal("Error: ", err)
	}
}

// parseHex accepts bytes as one string or split across args, spaces ignored
func parseHex(args []string) ([]byte, error) {
	s := strings.ReplaceAll(strings.Join(args, ""), " ", "")
	return hex.DecodeString(s)
}

func idFlags(flags *flag.FlagSet) func() (n2k.ID, error) {
	flagPGN := flags.Uint("pgn", uint(n2k.PGNGNSSPosition), "PGN")
	flagPrio := flags.Uint("prio", client.DefaultPriority, "Priority")
	flagSrc := flags.Uint("src", 0, "Source address")
	flagDst := flags.Uint("dst", n2k.BroadcastAddress, "Destination address")

	return func() (n2k.ID, error) {
		if *flagPGN > 0x3FFFF || *flagPrio > 7 || *flagSrc > 255 || *flagDst > 255 {
			return n2k.ID{}, fmt.Errorf("id field out of range")
		}
		return n2k.ID{
			Priority:    uint8(*flagPrio),
			PGN:         uint32(*flagPGN),
			Source:      uint8(*flagSrc),
			Destination: uint8(*flagDst),
		}, nil
	}
}

func runEncode(args []string) error {
	flags := flag.NewFlagSet("encode", flag.ExitOnError)
	getID := idFlags(flags)
	flagSeq := flags.Uint("seq", 0, "Sequence counter (0-7)")

	if err := flags.Parse(args); err != nil {
		return err
	}

	id, err := getID()
	if err != nil {
		return err
	}

	payload, err := parseHex(flags.Args())
	if err != nil {
		return err
	}

	if *flagSeq > 7 {
		return fastpacket.ErrInvalidParameter
	}

	frames, err := n2k.Frames(id, payload, uint8(*flagSeq), true)
	if err != nil {
		return err
	}

	for _, f := range frames {
		fmt.Printf("%08X [%v] % X\n", f.ID, f.Length, f.Data[:f.Length])
	}

	return nil
}

func runDecode(args []string) error {
	flags := flag.NewFlagSet("decode", flag.ExitOnError)
	flagPGN := flags.Uint("pgn", 0, "Decode the payload as this PGN when known")

	if err := flags.Parse(args); err != nil {
		return err
	}

	if flags.NArg() == 0 {
		return fmt.Errorf("no frames given")
	}

	m := fastpacket.NewMessage()
	done := false

	// one frame per argument
	for i, a := range flags.Args() {
		b, err := parseHex([]string{a})
		if err != nil {
			return err
		}

		done, err = m.AddFrame(b)
		if err != nil {
			return fmt.Errorf("frame %v: %w", i, err)
		}
	}

	if !done {
		log.Printf("Message incomplete: %v of %v frames\n", m.Queued(), m.NumFrames())
	}

	payload, err := m.Payload()
	if err != nil {
		return err
	}

	fmt.Printf("% X\n", payload)

	if *flagPGN == n2k.PGNGNSSPosition {
		var p n2k.GNSSPosition
		if err := p.UnmarshalBinary(payload); err != nil {
			return err
		}
		fmt.Println(p)
	}

	return nil
}

func runSend(args []string) error {
	flags := flag.NewFlagSet("send", flag.ExitOnError)
	getID := idFlags(flags)
	flagNatsServer := flags.String("natsServer", config.DefaultNatsServer, "NATS Server")
	flagAuthToken := flags.String("token", "", "Auth token")
	flagBus := flags.String("bus", "can0", "Bus to send on")

	if err := flags.Parse(args); err != nil {
		return err
	}

	id, err := getID()
	if err != nil {
		return err
	}

	payload, err := parseHex(flags.Args())
	if err != nil {
		return err
	}

	nc, err := nats.Connect(*flagNatsServer, nats.Token(*flagAuthToken))
	if err != nil {
		return err
	}
	defer nc.Close()

	m := nats.NewMsg(client.SubjectTx(*flagBus, id.PGN))
	m.Data = payload
	m.Header.Set(client.HeaderPriority, strconv.Itoa(int(id.Priority)))
	m.Header.Set(client.HeaderDestination, strconv.Itoa(int(id.Destination)))
	if id.Source != 0 {
		m.Header.Set(client.HeaderSource, strconv.Itoa(int(id.Source)))
	}

	resp, err := nc.RequestMsg(m, 5*time.Second)
	if err != nil {
		return err
	}

	if len(resp.Data) > 0 {
		return fmt.Errorf("transmit failed: %s", resp.Data)
	}

	log.Println("sent", len(payload), "bytes on", *flagBus)

	return nil
}
