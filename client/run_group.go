package client

import (
	"log"
	"sync"

	"github.com/oklog/run"
)

// RunGroup is used to group a list of clients and start/stop them together.
// When any member returns, all the others are stopped.
type RunGroup struct {
	name     string
	stop     chan struct{}
	stopOnce sync.Once
	group    run.Group
}

// NewRunGroup creates a new client group
func NewRunGroup(name string) *RunGroup {
	return &RunGroup{name: name, stop: make(chan struct{})}
}

// Add client to group
func (g *RunGroup) Add(client RunStop) {
	g.group.Add(client.Run, client.Stop)
}

// AddFunc adds a bare run/stop pair, for example run.SignalHandler
func (g *RunGroup) AddFunc(execute func() error, interrupt func(error)) {
	g.group.Add(execute, interrupt)
}

// Run clients. This function blocks until a member exits or the group is
// stopped. All clients must be added before Run is called, and a group can
// only be run once.
func (g *RunGroup) Run() error {
	g.group.Add(func() error {
		<-g.stop
		return nil
	}, func(_ error) {
		g.Stop(nil)
	})

	err := g.group.Run()
	log.Printf("RunGroup %v: stopped, reason: %v\n", g.name, err)

	return err
}

// Stop clients
func (g *RunGroup) Stop(_ error) {
	g.stopOnce.Do(func() { close(g.stop) })
}
