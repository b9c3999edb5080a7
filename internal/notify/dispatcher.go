package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"
	"golang.org/x/time/rate"

	"tokenwatch/internal/metrics"
	logx "tokenwatch/pkg/logx"
)

// Target pairs a channel with its send throttle.
type Target struct {
	Channel    Channel
	RatePerSec float64
	Timeout    time.Duration
}

type slot struct {
	ch      Channel
	lim     *rate.Limiter
	timeout time.Duration
}

// Dispatcher fans one event out to every channel, sequentially and in order.
//
// Send failures never propagate: they are logged with the channel and the
// identity, counted, and the next channel is tried.
type Dispatcher struct {
	log     logx.Logger
	metrics *metrics.Metrics
	slots   []slot
}

func NewDispatcher(log logx.Logger, m *metrics.Metrics, targets ...Target) (*Dispatcher, error) {
	if len(targets) == 0 {
		return nil, ErrNoChannels
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	slots := make([]slot, 0, len(targets))
	for _, t := range targets {
		r := t.RatePerSec
		if r <= 0 {
			r = DefaultRatePerSec
		}
		burst := max(1, int(r))
		timeout := t.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		slots = append(slots, slot{ch: t.Channel, lim: rate.NewLimiter(rate.Limit(r), burst), timeout: timeout})
	}
	return &Dispatcher{log: log.With(logx.String("comp", "notify")), metrics: m, slots: slots}, nil
}

// Channels lists channel names in dispatch order.
func (d *Dispatcher) Channels() []string {
	return lo.Map(d.slots, func(s slot, _ int) string { return s.ch.Name() })
}

// Notify delivers a to every channel. It returns the number of channels that
// accepted the alert.
func (d *Dispatcher) Notify(ctx context.Context, a Alert) int {
	delivered := 0
	for _, s := range d.slots {
		err := d.deliver(ctx, s, func(c context.Context) error { return s.ch.Notify(c, a) })
		d.metrics.ObserveSend(s.ch.Name(), "alert", err)
		if err != nil {
			d.log.Error("alert delivery failed",
				logx.String("channel", s.ch.Name()),
				logx.String("identity", a.Identity),
				logx.String("symbol", a.Symbol),
				logx.Err(err),
			)
			continue
		}
		delivered++
		d.log.Info("alert delivered", logx.String("channel", s.ch.Name()), logx.String("identity", a.Identity))
	}
	return delivered
}

// Announce sends the liveness message to every channel. Failures are only logged.
func (d *Dispatcher) Announce(ctx context.Context, l Liveness) int {
	delivered := 0
	for _, s := range d.slots {
		err := d.deliver(ctx, s, func(c context.Context) error { return s.ch.Announce(c, l) })
		d.metrics.ObserveSend(s.ch.Name(), "liveness", err)
		if err != nil {
			d.log.Warn("liveness announcement failed", logx.String("channel", s.ch.Name()), logx.Err(err))
			continue
		}
		delivered++
	}
	return delivered
}

func (d *Dispatcher) deliver(ctx context.Context, s slot, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &SendError{Channel: s.ch.Name(), Err: panicError{v: r}}
		}
	}()
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.lim.Wait(cctx); err != nil {
		return &SendError{Channel: s.ch.Name(), Err: err}
	}
	return fn(cctx)
}

type panicError struct{ v any }

func (p panicError) Error() string { return fmt.Sprintf("panic in channel: %v", p.v) }
