package client

import (
	"context"
	"fmt"
	"log"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/simpleiot/canparse"
	"github.com/simpleiot/n2kfast/fastpacket"
	"github.com/simpleiot/n2kfast/n2k"
	"github.com/simpleiot/n2kfast/store"
	"go.einride.tech/can"
)

// DefaultPriority is used for transmitted messages without a prio header
const DefaultPriority = 6

// Database is a KCD (Kayak) CAN database used to decode plain CAN frames
// into signals
type Database struct {
	Name string `yaml:"name"`
	Data string `yaml:"data"`
}

// CanBus is the config of one CAN bus
type CanBus struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Type        string     `yaml:"type"`
	Device      string     `yaml:"device"`
	BitRate     string     `yaml:"bitRate"`
	Baud        int        `yaml:"baud"`
	Source      uint8      `yaml:"source"`
	FastPackets []uint32   `yaml:"fastPackets"`
	Databases   []Database `yaml:"databases"`
	Disabled    bool       `yaml:"disabled"`
}

// BusName returns the name used in NATS subjects for the bus
func (b CanBus) BusName() string {
	name := b.Name
	if name == "" {
		name = path.Base(b.Device)
	}
	return strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(name)
}

// MessageLog records bridged messages
type MessageLog interface {
	Insert(r store.Record) error
}

// CanBusStats are the counters of a bus client
type CanBusStats struct {
	FramesRx       int
	MsgsRx         int
	FastPacketErrs int
	MsgsRecvdDb    int
	MsgsRecvdOther int
	MsgsTx         int
	FramesTx       int
	TxErrs         int
	Dropped        int
}

// CanBusClient bridges one CAN bus and NATS
type CanBusClient struct {
	nc        *nats.Conn
	config    CanBus
	dial      Dialer
	log       MessageLog
	stop      chan struct{}
	stopOnce  sync.Once
	txMsgs    chan *nats.Msg
	bus       string
	fastPGNs  n2k.PGNSet
	assembler *fastpacket.Assembler
	seq       *fastpacket.Sequencer
	db        *canparse.Database

	statsLock sync.Mutex
	stats     CanBusStats
}

// NewCanBusClient returns a new CanBusClient with a NATS connection and a
// config. dial defaults to Dial and msgLog may be nil.
func NewCanBusClient(nc *nats.Conn, config CanBus, dial Dialer, msgLog MessageLog) *CanBusClient {
	if dial == nil {
		dial = Dial
	}

	return &CanBusClient{
		nc:        nc,
		config:    config,
		dial:      dial,
		log:       msgLog,
		stop:      make(chan struct{}),
		txMsgs:    make(chan *nats.Msg, 32),
		bus:       config.BusName(),
		fastPGNs:  n2k.NewFastPacketSet(config.FastPackets...),
		assembler: fastpacket.NewAssembler(fastpacket.DefaultTimeout),
		seq:       fastpacket.NewSequencer(),
		db:        &canparse.Database{},
	}
}

// Run the main logic for this client and blocks until stopped.
//
//   - a listener goroutine receives frames from the CanConn and sends them on
//     the canMsgRx channel
//
//   - in the main loop, frames of fast-packet PGNs are reassembled and the
//     payload published once complete. Other frames are decoded with the KCD
//     databases and a message is published for each signal, and extended
//     frames are also published as single frame NMEA 2000 messages.
//
//   - payloads received on the tx subject are framed and transmitted
func (cb *CanBusClient) Run() error {
	log.Println("CanBusClient: Starting CAN bus client:", cb.bus, cb.config.Description)

	cb.readDb()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := cb.dial(ctx, cb.config)
	if err != nil {
		return errors.Wrap(err, "CanBusClient: error opening bus "+cb.bus)
	}
	defer conn.Close()

	sub, err := cb.nc.Subscribe(SubjectTxAll(cb.bus), func(m *nats.Msg) {
		select {
		case cb.txMsgs <- m:
		default:
			cb.updateStats(func(s *CanBusStats) { s.Dropped++ })
			log.Println("CanBusClient: tx queue full, dropping message for", m.Subject)
		}
	})
	if err != nil {
		return errors.Wrap(err, "CanBusClient: error subscribing to tx subject")
	}
	defer sub.Unsubscribe()

	canMsgRx := make(chan can.Frame)
	rxDone := make(chan error, 1)

	// Listen on the bus
	go func() {
		for conn.Receive() {
			select {
			case canMsgRx <- conn.Frame():
			case <-ctx.Done():
				rxDone <- nil
				return
			}
		}
		rxDone <- conn.Err()
	}()

	sweep := time.NewTicker(fastpacket.DefaultTimeout / 2)
	defer sweep.Stop()

	for {
		select {
		case <-cb.stop:
			log.Println("CanBusClient: stopping CAN bus client:", cb.bus)
			return nil

		case err := <-rxDone:
			if err == nil {
				err = errors.New("bus closed")
			}
			return errors.Wrap(err, "CanBusClient: receive on "+cb.bus)

		case frame := <-canMsgRx:
			cb.handleFrame(frame)

		case m := <-cb.txMsgs:
			err := cb.transmit(ctx, conn, m)
			if err != nil {
				cb.updateStats(func(s *CanBusStats) { s.TxErrs++ })
				log.Println("CanBusClient: transmit error:", err)
			}
			if m.Reply != "" {
				resp := ""
				if err != nil {
					resp = err.Error()
				}
				if err := m.Respond([]byte(resp)); err != nil {
					log.Println("CanBusClient: error responding to tx request:", err)
				}
			}

		case <-sweep.C:
			if n := cb.assembler.Sweep(); n > 0 {
				cb.updateStats(func(s *CanBusStats) { s.FastPacketErrs += n })
			}
		}
	}
}

// Stop sends a signal to the Run function to exit
func (cb *CanBusClient) Stop(_ error) {
	cb.stopOnce.Do(func() { close(cb.stop) })
}

// Stats returns a copy of the bus counters
func (cb *CanBusClient) Stats() CanBusStats {
	cb.statsLock.Lock()
	defer cb.statsLock.Unlock()
	return cb.stats
}

func (cb *CanBusClient) updateStats(f func(s *CanBusStats)) {
	cb.statsLock.Lock()
	f(&cb.stats)
	cb.statsLock.Unlock()
}

func (cb *CanBusClient) readDb() {
	cb.db.Clean()
	msgs, signals := 0, 0
	for _, dbFile := range cb.config.Databases {
		err := cb.db.ReadBytes([]byte(dbFile.Data), dbFile.Name)
		if err != nil {
			log.Println(errors.Wrap(err, "CanBusClient: Error parsing database file "+dbFile.Name))
			cb.db.Clean()
			return
		}
	}
	for _, b := range cb.db.Busses {
		msgs += len(b.Messages)
		for _, m := range b.Messages {
			signals += len(m.Signals)
		}
	}
	if len(cb.config.Databases) > 0 {
		log.Printf("CanBusClient: %v: loaded %v messages, %v signals\n", cb.bus, msgs, signals)
	}
}

func (cb *CanBusClient) handleFrame(frame can.Frame) {
	cb.updateStats(func(s *CanBusStats) { s.FramesRx++ })

	if frame.IsRemote {
		return
	}

	id := n2k.ParseID(frame.ID)

	if frame.IsExtended && cb.fastPGNs.IsFastPacket(id.PGN) {
		payload, err := cb.assembler.Add(id.StreamKey(), frame.Data[:frame.Length])
		if err != nil {
			cb.updateStats(func(s *CanBusStats) { s.FastPacketErrs++ })
			return
		}
		if payload != nil {
			cb.publishRx(id, payload)
		}
		return
	}

	// Decode the can message based on database
	msg, err := canparse.DecodeMessage(frame, cb.db)
	if err != nil {
		cb.updateStats(func(s *CanBusStats) { s.MsgsRecvdOther++ })
	} else {
		cb.updateStats(func(s *CanBusStats) { s.MsgsRecvdDb++ })
		for _, sig := range msg.Signals {
			m := nats.NewMsg(SubjectSignal(cb.bus, fmt.Sprintf("%v", msg.Name), fmt.Sprintf("%v", sig.Name)))
			m.Data = []byte(strconv.FormatFloat(float64(sig.Value), 'f', -1, 64))
			m.Header.Set("unit", fmt.Sprintf("%v", sig.Unit))
			if err := cb.nc.PublishMsg(m); err != nil {
				log.Println(errors.Wrap(err, "CanBusClient: error publishing signal"))
			}
		}
	}

	if frame.IsExtended {
		payload := make([]byte, frame.Length)
		copy(payload, frame.Data[:frame.Length])
		cb.publishRx(id, payload)
	}
}

func (cb *CanBusClient) publishRx(id n2k.ID, payload []byte) {
	cb.updateStats(func(s *CanBusStats) { s.MsgsRx++ })

	cb.logMsg(store.DirRx, id, payload)

	m := nats.NewMsg(SubjectRx(cb.bus, id.PGN))
	m.Data = payload
	setIDHeader(m.Header, id)

	if err := cb.nc.PublishMsg(m); err != nil {
		log.Println(errors.Wrap(err, "CanBusClient: error publishing message"))
	}
}

func (cb *CanBusClient) transmit(ctx context.Context, conn CanConn, m *nats.Msg) error {
	id, err := txID(m, cb.config.Source)
	if err != nil {
		return err
	}

	fast := cb.fastPGNs.IsFastPacket(id.PGN) || len(m.Data) > fastpacket.FrameLen

	var seq uint8
	if fast {
		seq = cb.seq.Next(id.StreamKey())
	}

	frames, err := n2k.Frames(id, m.Data, seq, fast)
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("error framing pgn %v", id.PGN))
	}

	for _, f := range frames {
		if err := conn.TransmitFrame(ctx, f); err != nil {
			return errors.Wrap(err, "error transmitting frame")
		}
	}

	cb.updateStats(func(s *CanBusStats) {
		s.MsgsTx++
		s.FramesTx += len(frames)
	})

	cb.logMsg(store.DirTx, id, m.Data)

	return nil
}

func (cb *CanBusClient) logMsg(dir string, id n2k.ID, payload []byte) {
	if cb.log == nil {
		return
	}

	err := cb.log.Insert(store.Record{
		Time:        time.Now(),
		Bus:         cb.bus,
		Dir:         dir,
		PGN:         id.PGN,
		Priority:    id.Priority,
		Source:      id.Source,
		Destination: id.Destination,
		Data:        payload,
	})
	if err != nil {
		log.Println("CanBusClient: error logging message:", err)
	}
}

// Header names used for the NMEA 2000 address fields
const (
	HeaderPGN         = "pgn"
	HeaderSource      = "src"
	HeaderDestination = "dst"
	HeaderPriority    = "prio"
)

func setIDHeader(h nats.Header, id n2k.ID) {
	h.Set(HeaderPGN, strconv.FormatUint(uint64(id.PGN), 10))
	h.Set(HeaderSource, strconv.Itoa(int(id.Source)))
	h.Set(HeaderDestination, strconv.Itoa(int(id.Destination)))
	h.Set(HeaderPriority, strconv.Itoa(int(id.Priority)))
}

// txID builds the identifier for a transmit request. The PGN comes from
// the header or the last subject token, the other fields fall back to
// defaults.
func txID(m *nats.Msg, source uint8) (n2k.ID, error) {
	id := n2k.ID{
		Priority:    DefaultPriority,
		Source:      source,
		Destination: n2k.BroadcastAddress,
	}

	pgnS := m.Header.Get(HeaderPGN)
	if pgnS == "" {
		chunks := strings.Split(m.Subject, ".")
		pgnS = chunks[len(chunks)-1]
	}

	pgn, err := strconv.ParseUint(pgnS, 10, 18)
	if err != nil {
		return id, errors.Wrap(err, "invalid pgn")
	}
	id.PGN = uint32(pgn)

	fields := []struct {
		header string
		bits   int
		v      *uint8
	}{
		{HeaderSource, 8, &id.Source},
		{HeaderDestination, 8, &id.Destination},
		{HeaderPriority, 3, &id.Priority},
	}

	for _, f := range fields {
		s := m.Header.Get(f.header)
		if s == "" {
			continue
		}
		v, err := strconv.ParseUint(s, 10, f.bits)
		if err != nil {
			return id, errors.Wrap(err, "invalid "+f.header)
		}
		*f.v = uint8(v)
	}

	return id, nil
}
