package host

import (
	"context"
	"errors"

	"github.com/roach88/exproxy/internal/ir"
)

// ErrSequencerStopped is returned for submissions after Stop or after the Run
// context ends.
var ErrSequencerStopped = errors.New("sequencer stopped")

// Sequencer feeds external calls from many goroutines into a Host in
// arrival order.
//
// Thread-safety model:
//   - Submit(): safe from any goroutine
//   - Run(): must be called from exactly one goroutine
type Sequencer struct {
	host  *Host
	queue *callQueue
}

// NewSequencer creates a sequencer in front of h.
func NewSequencer(h *Host) *Sequencer {
	return &Sequencer{host: h, queue: newCallQueue()}
}

// Submit queues msg and waits for its receipt.
func (s *Sequencer) Submit(ctx context.Context, msg ir.Msg) (*ir.Receipt, error) {
	sub := submission{ctx: ctx, msg: msg, reply: make(chan result, 1)}
	if !s.queue.Enqueue(sub) {
		return nil, ErrSequencerStopped
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-sub.reply:
		return res.receipt, res.err
	}
}

// Run executes queued calls one by one until ctx is cancelled or Stop is
// called. Pending submissions are failed with ErrSequencerStopped.
func (s *Sequencer) Run(ctx context.Context) error {
	s.host.logger.Info("sequencer starting")

	for {
		sub, ok := s.queue.TryDequeue()
		if ok {
			s.process(sub)
			continue
		}

		select {
		case <-ctx.Done():
			s.host.logger.Info("sequencer stopping: context cancelled")
			s.drain()
			return ctx.Err()

		case <-s.queue.Wait():
			// A leftover signal may arrive with the queue empty but open.
			if s.queue.Len() == 0 && s.queue.Closed() {
				s.host.logger.Info("sequencer stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue, causing Run to return.
func (s *Sequencer) Stop() {
	s.drain()
}

func (s *Sequencer) process(sub submission) {
	if err := sub.ctx.Err(); err != nil {
		sub.reply <- result{err: err}
		return
	}
	receipt, err := s.host.Call(sub.ctx, sub.msg)
	if err != nil {
		s.host.logger.Error("sequenced call failed",
			"to", sub.msg.To.Hex(),
			"selector", sub.msg.Selector.Hex(),
			"error", err)
	}
	sub.reply <- result{receipt: receipt, err: err}
}

func (s *Sequencer) drain() {
	for _, sub := range s.queue.Close() {
		sub.reply <- result{err: ErrSequencerStopped}
	}
}
