package natsserver

import (
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// RandomPort asks the server to pick a free port
const RandomPort = server.RANDOM_PORT

// Options for starting the nats server
type Options struct {
	Port       int
	HTTPPort   int
	Auth       string
	TLSCert    string
	TLSKey     string
	TLSTimeout float64
}

// Server is an embedded NATS server used when the bridge runs standalone
type Server struct {
	srv *server.Server
}

// New creates a nats server instance. It is started by Run.
func New(o Options) (*Server, error) {
	opts := server.Options{
		Port:          o.Port,
		HTTPPort:      o.HTTPPort,
		Authorization: o.Auth,
		NoSigs:        true,
	}

	if o.TLSCert != "" && o.TLSKey != "" {
		log.Println("Setting up NATS TLS ...")
		opts.TLS = true
		opts.TLSCert = o.TLSCert
		opts.TLSKey = o.TLSKey
		opts.TLSTimeout = o.TLSTimeout
		tc := server.TLSConfigOpts{}
		tc.CertFile = opts.TLSCert
		tc.KeyFile = opts.TLSKey

		var err error
		opts.TLSConfig, err = server.GenTLSConfig(&tc)
		if err != nil {
			return nil, fmt.Errorf("Error setting up TLS: %v", err)
		}
	}

	natsServer, err := server.NewServer(&opts)
	if err != nil {
		return nil, fmt.Errorf("Error create new Nats server: %v", err)
	}

	authEnabled := "no"
	if o.Auth != "" {
		authEnabled = "yes"
	}

	log.Printf("NATS server, port: %v, http port: %v, auth enabled: %v\n",
		o.Port, o.HTTPPort, authEnabled)

	return &Server{srv: natsServer}, nil
}

// Run starts the server and blocks until it is shut down
func (s *Server) Run() error {
	s.srv.Start()
	s.srv.WaitForShutdown()
	return nil
}

// Stop shuts the server down
func (s *Server) Stop(_ error) {
	s.srv.Shutdown()
}

// WaitReady blocks until the server accepts clients or timeout expires
func (s *Server) WaitReady(timeout time.Duration) bool {
	return s.srv.ReadyForConnections(timeout)
}

// ClientURL returns the URL clients connect to
func (s *Server) ClientURL() string {
	return s.srv.ClientURL()
}
