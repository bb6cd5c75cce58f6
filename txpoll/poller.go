// Package txpoll waits for transaction receipts with bounded retries.
package txpoll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/archslayer/flagbase111-sub000/inter"
)

var (
	// ErrNotConfirmed is returned when every attempt came back empty.
	ErrNotConfirmed = errors.New("txpoll: transaction not confirmed")
)

// Fetcher looks a receipt up by transaction hash. *core.Engine implements
// it.
type Fetcher interface {
	Receipt(hash common.Hash) (*inter.Receipt, bool)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(hash common.Hash) (*inter.Receipt, bool)

func (f FetcherFunc) Receipt(hash common.Hash) (*inter.Receipt, bool) {
	return f(hash)
}

// Config bounds a Poller.
type Config struct {
	// Interval is the minimum time between attempts.
	Interval time.Duration
	// MaxAttempts caps the number of lookups per Wait.
	MaxAttempts int
	// Timeout caps the total time of one Wait. Zero means only ctx applies.
	Timeout time.Duration
}

// DefaultConfig polls every 2 seconds for up to one minute.
func DefaultConfig() Config {
	return Config{
		Interval:    2 * time.Second,
		MaxAttempts: 30,
		Timeout:     time.Minute,
	}
}

// Poller waits for receipts.
type Poller struct {
	cfg   Config
	fetch Fetcher
	log   logrus.FieldLogger
}

// New returns a poller over fetch.
func New(fetch Fetcher, cfg Config, log logrus.FieldLogger) *Poller {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Poller{cfg: cfg, fetch: fetch, log: log.WithField("module", "txpoll")}
}

// Wait returns the receipt of hash once the fetcher has it. It gives up with
// ErrNotConfirmed after MaxAttempts lookups, or with the context error when
// ctx is done or Timeout passes first.
func (p *Poller) Wait(ctx context.Context, hash common.Hash) (*inter.Receipt, error) {
	if p.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Timeout)
		defer cancel()
	}
	limit := rate.Inf
	if p.cfg.Interval > 0 {
		limit = rate.Every(p.cfg.Interval)
	}
	limiter := rate.NewLimiter(limit, 1)

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for %s: %w", hash.Hex(), ctxErr(ctx, err))
		}
		if r, ok := p.fetch.Receipt(hash); ok {
			p.log.WithFields(logrus.Fields{"tx": hash.Hex(), "block": r.Block, "attempts": attempt}).Debug("Transaction confirmed")
			return r, nil
		}
		p.log.WithFields(logrus.Fields{"tx": hash.Hex(), "attempt": attempt}).Trace("Receipt not available yet")
	}
	return nil, fmt.Errorf("%w: %s after %d attempts", ErrNotConfirmed, hash.Hex(), p.cfg.MaxAttempts)
}

// ctxErr prefers the context error over the limiter's own message for a
// wait that would outlive the deadline.
func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if _, ok := ctx.Deadline(); ok {
		return context.DeadlineExceeded
	}
	return err
}

// Result is the outcome of an asynchronous Wait.
type Result struct {
	Receipt *inter.Receipt
	Err     error
}

// WaitAsync runs Wait in the background and delivers its result on the
// returned channel.
func (p *Poller) WaitAsync(ctx context.Context, hash common.Hash) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		r, err := p.Wait(ctx, hash)
		out <- Result{Receipt: r, Err: err}
	}()
	return out
}
