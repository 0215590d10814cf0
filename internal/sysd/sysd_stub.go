//go:build !linux

package sysd

import (
	"context"
	"errors"
)

// ErrUnsupported is returned on platforms without systemd.
var ErrUnsupported = errors.New("sysd: unsupported OS (linux only)")

type Conn struct{}

func New(ctx context.Context) (*Conn, error) { return nil, ErrUnsupported }

func (c *Conn) Close() error                                        { return nil }
func (c *Conn) Reload(ctx context.Context) error                    { return ErrUnsupported }
func (c *Conn) Start(ctx context.Context, unit string) error        { return ErrUnsupported }
func (c *Conn) Stop(ctx context.Context, unit string) error         { return ErrUnsupported }
func (c *Conn) Restart(ctx context.Context, unit string) error      { return ErrUnsupported }
func (c *Conn) Enable(ctx context.Context, unit string, now bool) error {
	return ErrUnsupported
}
func (c *Conn) Disable(ctx context.Context, unit string) error { return ErrUnsupported }

func (c *Conn) TimerStatus(ctx context.Context, unit string) (TimerStatus, error) {
	return TimerStatus{}, ErrUnsupported
}
func (c *Conn) ServiceStatus(ctx context.Context, unit string) (ServiceStatus, error) {
	return ServiceStatus{}, ErrUnsupported
}
