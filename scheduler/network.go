package scheduler

import (
	"context"
	"errors"
	"time"
)

// ErrNetworkUnavailable is returned by a run whose network constraint is unmet.
var ErrNetworkUnavailable = errors.New("network unavailable")

// NetworkChecker decides whether a job requiring network may run.
type NetworkChecker interface {
	Check(ctx context.Context) error
}

// NetworkCheckerFunc adapts a function to NetworkChecker.
type NetworkCheckerFunc func(ctx context.Context) error

func (f NetworkCheckerFunc) Check(ctx context.Context) error { return f(ctx) }

// Pinger is implemented by httptransport.Client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RemoteProbe treats the remote as the network: if it answers, we are online.
type RemoteProbe struct {
	Pinger  Pinger
	Timeout time.Duration
}

func (p RemoteProbe) Check(ctx context.Context) error {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Pinger.Ping(ctx)
}
