package client

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/simpleiot/n2kfast/n2k"
)

// Log subscribes to all bridge subjects and prints the messages until the
// subscription is closed
func Log(nc *nats.Conn, bus string) (*nats.Subscription, error) {
	subject := "n2k.>"
	if bus != "" {
		subject = "n2k." + bus + ".>"
	}

	log.Println("Logging messages on:", subject)

	return nc.Subscribe(subject, func(m *nats.Msg) {
		fmt.Println(FormatMsg(time.Now(), m))
	})
}

// FormatMsg renders a bridged message on one line
func FormatMsg(t time.Time, m *nats.Msg) string {
	chunks := strings.Split(m.Subject, ".")
	if len(chunks) >= 3 && chunks[2] == "sig" {
		return fmt.Sprintf("%v %v = %s %v", t.Format("15:04:05.000"), m.Subject,
			m.Data, m.Header.Get("unit"))
	}

	id, err := txID(m, 0)
	if err != nil {
		return fmt.Sprintf("%v %v % X", t.Format("15:04:05.000"), m.Subject, m.Data)
	}

	ret := fmt.Sprintf("%v %v %v: % X", t.Format("15:04:05.000"), m.Subject, id, m.Data)

	if id.PGN == n2k.PGNGNSSPosition {
		var p n2k.GNSSPosition
		if err := p.UnmarshalBinary(m.Data); err == nil {
			ret += fmt.Sprintf("\n    %v", p)
		}
	}

	return ret
}
