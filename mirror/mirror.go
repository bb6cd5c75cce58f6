package mirror

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/event"
	"github.com/sirupsen/logrus"

	"github.com/archslayer/flagbase111-sub000/inter"
)

// Feed is the receipt stream a Mirror follows. *core.Engine implements it.
type Feed interface {
	SubscribeReceipts(ch chan<- *inter.Receipt) event.Subscription
}

// Config holds the sinks of a Mirror. Either sink may be nil.
type Config struct {
	Audit     *AuditLog
	ReadModel *ReadModel
	// Buffer is the receipt channel capacity. Defaults to 256.
	Buffer int
	Logger logrus.FieldLogger
}

// Mirror applies every receipt of a Feed to the audit log and the read
// model.
type Mirror struct {
	cfg     Config
	log     logrus.FieldLogger
	applied atomic.Uint64
	block   atomic.Uint64
}

// New returns a mirror writing into the sinks of cfg.
func New(cfg Config) *Mirror {
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	return &Mirror{cfg: cfg, log: cfg.Logger.WithField("module", "mirror")}
}

// Run follows feed until ctx is done or the subscription fails. Audit write
// failures are logged and do not stop the mirror.
func (m *Mirror) Run(ctx context.Context, feed Feed) error {
	ch := make(chan *inter.Receipt, m.cfg.Buffer)
	sub := feed.SubscribeReceipts(ch)
	return m.loop(ctx, sub, ch)
}

// Start subscribes to feed and follows it in the background. Receipts
// published after Start returns are all applied. stop ends the mirror and
// returns the error that ended it, nil on a clean stop. Calling stop again
// returns the same result.
func (m *Mirror) Start(feed Feed) (stop func() error) {
	ch := make(chan *inter.Receipt, m.cfg.Buffer)
	sub := feed.SubscribeReceipts(ch)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.loop(ctx, sub, ch) }()

	var (
		once sync.Once
		err  error
	)
	return func() error {
		once.Do(func() {
			cancel()
			if err = <-done; errors.Is(err, context.Canceled) {
				err = nil
			}
		})
		return err
	}
}

func (m *Mirror) loop(ctx context.Context, sub event.Subscription, ch <-chan *inter.Receipt) error {
	defer sub.Unsubscribe()
	for {
		select {
		case r := <-ch:
			m.Apply(ctx, r)
		case err := <-sub.Err():
			return err
		case <-ctx.Done():
			// drain what was already delivered
			for {
				select {
				case r := <-ch:
					m.Apply(context.Background(), r)
				default:
					return ctx.Err()
				}
			}
		}
	}
}

// Apply applies one receipt to the sinks.
func (m *Mirror) Apply(ctx context.Context, r *inter.Receipt) {
	if m.cfg.ReadModel != nil {
		m.cfg.ReadModel.Invalidate(r)
	}
	if m.cfg.Audit != nil {
		if err := m.cfg.Audit.Append(ctx, r); err != nil {
			m.log.WithFields(logrus.Fields{"block": r.Block, "tx": r.TxHash.Hex()}).WithError(err).Error("Audit append failed")
		}
	}
	m.applied.Add(1)
	m.block.Store(uint64(r.Block))
	m.log.WithFields(logrus.Fields{"block": r.Block, "op": r.Op, "events": len(r.Events)}).Debug("Receipt mirrored")
}

// Applied returns the number of receipts applied so far.
func (m *Mirror) Applied() uint64 {
	return m.applied.Load()
}

// Block returns the block of the last applied receipt.
func (m *Mirror) Block() uint64 {
	return m.block.Load()
}
