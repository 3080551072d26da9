package testutil

import (
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/simpleiot/n2kfast/natsserver"
)

// TestServer spins up an embedded NATS server on a random port and
// connects to it. Call the returned stop function to clean up.
func TestServer() (*nats.Conn, func(), error) {
	srv, err := natsserver.New(natsserver.Options{Port: natsserver.RandomPort})
	if err != nil {
		return nil, nil, err
	}

	go srv.Run()

	if !srv.WaitReady(5 * time.Second) {
		srv.Stop(nil)
		return nil, nil, errors.New("Timeout waiting for NATS server")
	}

	nc, err := nats.Connect(srv.ClientURL())
	if err != nil {
		srv.Stop(nil)
		return nil, nil, fmt.Errorf("Error connecting to NATS server: %v", err)
	}

	return nc, func() {
		nc.Close()
		srv.Stop(nil)
	}, nil
}
