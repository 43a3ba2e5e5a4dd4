package client

import "testing"

func TestHandleFetchIsFatalAndTearsDownConnection(t *testing.T) {
	c, _, _ := newTestConn(t)
	c.state = StateIdle

	if err := c.HandleFetch(nil); err == nil {
		t.Fatal("expected an error")
	}
	if c.state != StateFailed {
		t.Fatalf("state = %v, want failed", c.state)
	}
}

func TestHandleDeclareIsFatal(t *testing.T) {
	c, _, _ := newTestConn(t)
	c.state = StateIdle
	if err := c.HandleDeclare(nil); err == nil {
		t.Fatal("expected an error")
	}
}

func TestHandleDeallocateIsFatal(t *testing.T) {
	c, _, _ := newTestConn(t)
	c.state = StateIdle
	if err := c.HandleDeallocate(nil); err == nil {
		t.Fatal("expected an error")
	}
}
