// Package virtual provides an in-process l1.Bus used to wire two Channels
// back-to-back for tests and the cmd/lapdmctl harness. Since the engine is
// single-threaded and cooperative (§5), delivery is a direct synchronous
// call into the peer's listener rather than a socket round-trip, and
// "ready to send" is driven explicitly by the caller rather than by a real
// multiframe schedule.
package virtual

import (
	"sync"

	"github.com/osmocom-go/lapdm/pkg/l1"
	"github.com/sirupsen/logrus"
)

// Bus is one end of a loopback pair. Use NewPair to obtain two connected
// ends.
type Bus struct {
	log      *logrus.Entry
	mu       sync.Mutex
	peer     *Bus
	listener l1.Listener
}

// NewPair returns two Bus endpoints wired to each other: a DataReq sent on
// one is delivered as a DataInd to the other's subscribed listener. An
// EmptyFrameReq is only logged.
func NewPair(log *logrus.Entry) (a, b *Bus) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	a = &Bus{log: log.WithField("end", "a")}
	b = &Bus{log: log.WithField("end", "b")}
	a.peer = b
	b.peer = a
	return a, b
}

// Subscribe registers the listener that receives frames sent by the peer.
func (b *Bus) Subscribe(listener l1.Listener) (func(), error) {
	b.mu.Lock()
	b.listener = listener
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		b.listener = nil
		b.mu.Unlock()
	}, nil
}

// Send delivers a data block to the peer's listener.
func (b *Bus) Send(req l1.DataReq) error {
	peer := b.peer
	peer.mu.Lock()
	listener := peer.listener
	peer.mu.Unlock()
	if listener == nil {
		b.log.WithField("chan_nr", req.ChanNr).Debug("no peer listener, dropping block")
		return nil
	}
	block := make(l1.Block, len(req.Block))
	copy(block, req.Block)
	listener.HandlePHData(l1.DataInd{ChanNr: req.ChanNr, LinkID: req.LinkID, Block: block})
	return nil
}

// SendEmptyFrame is a no-op on the wire; it exists so callers that always
// go through the Bus interface don't need a type switch.
func (b *Bus) SendEmptyFrame(req l1.EmptyFrameReq) error {
	b.log.WithField("chan_nr", req.ChanNr).Debug("sending empty frame")
	return nil
}

// SendRach loops the RACH request back as an immediate confirmation on
// frame number 0; real frame-number tracking belongs to a physical layer
// this module does not model (§1).
func (b *Bus) SendRach(req l1.RachReq) error {
	listener := b.listener
	if listener == nil {
		return nil
	}
	listener.HandlePHRachConf(l1.RachConf{FrameNumber: 0})
	return nil
}

// RTS simulates L1 announcing it is ready to send on chanNr/linkID, asking
// the subscribed listener for a block. Call this explicitly from a test or
// harness driving the cooperative loop.
func (b *Bus) RTS(chanNr, linkID uint8) {
	b.mu.Lock()
	listener := b.listener
	b.mu.Unlock()
	if listener != nil {
		listener.HandlePHRTS(chanNr, linkID)
	}
}
