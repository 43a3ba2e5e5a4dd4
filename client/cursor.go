package client

import (
	"context"

	verrors "github.com/ha1tch/veloq-go/pkg/errors"
)

// HandleFetch, HandleDeclare, and HandleDeallocate belong to the
// server-side cursor protocol extension. No wire encoding for them
// appears in spec.md, and no example statement in spec.md §8 exercises
// a cursor; issuing one here would leave the connection in a state this
// driver cannot interpret, so each is a fatal stub that tears the
// connection down rather than silently no-opping.
func (c *Conn) HandleFetch(ctx context.Context) error {
	return c.unsupportedLocked("fetch")
}

func (c *Conn) HandleDeclare(ctx context.Context) error {
	return c.unsupportedLocked("declare cursor")
}

func (c *Conn) HandleDeallocate(ctx context.Context) error {
	return c.unsupportedLocked("deallocate cursor")
}

func (c *Conn) unsupportedLocked(feature string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.teardownLocked()
	return verrors.Interface(feature).Fatal().Err()
}
