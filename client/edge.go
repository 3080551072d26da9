package client

import (
	"log"
	"math"
	"math/rand"
	"net"
	"time"

	"github.com/nats-io/nats.go"
)

// EdgeOptions describes options for connecting to a NATS server over a link
// that may come and go, as on a boat
type EdgeOptions struct {
	Server       string
	AuthToken    string
	Disconnected func()
	Reconnected  func()
	Closed       func()
}

// EdgeConnect connects with long timeouts and retries forever, backing off
// exponentially up to 6m between attempts.
func EdgeConnect(o EdgeOptions) (*nats.Conn, error) {
	authEnabled := "no"
	if o.AuthToken != "" {
		authEnabled = "yes"
	}
	log.Printf("NATS edge connect to: %v, auth enabled: %v", o.Server, authEnabled)

	nc, err := nats.Connect(o.Server,
		nats.Timeout(30*time.Second),
		nats.DrainTimeout(30*time.Second),
		nats.PingInterval(2*time.Minute),
		nats.MaxPingsOutstanding(3),
		nats.RetryOnFailedConnect(true),
		nats.ReconnectBufSize(128*1024),
		nats.ReconnectWait(10*time.Second),
		nats.MaxReconnects(-1),
		nats.SetCustomDialer(&net.Dialer{
			KeepAlive: -1,
		}),
		nats.CustomReconnectDelay(func(attempts int) time.Duration {
			delay := ExpBackoff(attempts, 6*time.Minute)
			log.Printf("NATS reconnect attempts: %v, delay: %v", attempts, delay)
			return delay
		}),
		nats.Token(o.AuthToken),
	)

	if err != nil {
		return nil, err
	}

	nc.SetErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
		log.Printf("NATS Error: %s\n", err)
	})

	if o.Reconnected != nil {
		nc.SetReconnectHandler(func(_ *nats.Conn) { o.Reconnected() })
	}

	if o.Disconnected != nil {
		nc.SetDisconnectHandler(func(_ *nats.Conn) { o.Disconnected() })
	}

	if o.Closed != nil {
		nc.SetClosedHandler(func(_ *nats.Conn) { o.Closed() })
	}

	return nc, nil
}

// ExpBackoff calculates an exponential time backup to max duration + a random fraction of 1s
func ExpBackoff(attempts int, max time.Duration) time.Duration {
	delay := time.Duration(math.Exp2(float64(attempts))) * time.Second
	if delay > max {
		delay = max
	}
	// randomize a bit
	delay = delay + time.Duration(rand.Float32()*1000)*time.Millisecond
	return delay
}
