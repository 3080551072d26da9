package client

import (
	"errors"
	"sync"
	"testing"
	"time"
)

var errTestClientStopped = errors.New("client stopped")

type testClient struct {
	stop     chan struct{}
	stopOnce sync.Once
}

func newTestClient() *testClient {
	return &testClient{stop: make(chan struct{})}
}

func (tc *testClient) Run() error {
	<-tc.stop
	return errTestClientStopped
}

func (tc *testClient) Stop(_ error) {
	tc.stopOnce.Do(func() { close(tc.stop) })
}

func waitGroup(t *testing.T, groupErr chan error) error {
	select {
	case err := <-groupErr:
		return err
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for group to stop")
	}
	return nil
}

func TestGroupStopByClient(t *testing.T) {
	g := NewRunGroup("testGroup")
	testC := newTestClient()
	g.Add(testC)

	groupErr := make(chan error)
	go func() {
		groupErr <- g.Run()
	}()

	testC.Stop(nil)

	if err := waitGroup(t, groupErr); err != errTestClientStopped {
		t.Error("expected client error, got: ", err)
	}
}

func TestGroupStopByGroup(t *testing.T) {
	g := NewRunGroup("testGroup")
	testC := newTestClient()
	g.Add(testC)

	stopped := make(chan struct{})
	g.AddFunc(func() error {
		<-stopped
		return nil
	}, func(error) {
		close(stopped)
	})

	groupErr := make(chan error)
	go func() {
		groupErr <- g.Run()
	}()

	g.Stop(nil)

	if err := waitGroup(t, groupErr); err != nil {
		t.Error("expected nil error from group stop, got: ", err)
	}

	select {
	case <-testC.stop:
	default:
		t.Error("client was not stopped")
	}
}
