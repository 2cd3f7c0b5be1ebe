// Package entity groups the per-SAPI Datalinks that make up one LAPDm
// entity on one physical channel (§4.3 "One entity per channel"), and
// drains them in round-robin order onto L1, the way lapdm_entity wraps
// its two lapdm_datalink structs (SAPI 0, SAPI 3) in the original
// implementation.
package entity

import (
	"fmt"

	"github.com/osmocom-go/lapdm"
	"github.com/osmocom-go/lapdm/pkg/config"
	"github.com/osmocom-go/lapdm/pkg/datalink"
	"github.com/osmocom-go/lapdm/pkg/rsl"
	"github.com/osmocom-go/lapdm/pkg/timer"
	"github.com/sirupsen/logrus"
)

// fillerOctet pads every outbound frame shorter than the channel's fixed
// block size up to that size. An idle slot gets no filler block here; see
// the EmptyFrame flag instead.
const fillerOctet = 0x2b

// sapiOrder is the round-robin polling order L1 expects frames in: SAPI
// 0 (call control/mobility management) ahead of SAPI 3 (short message
// service), per §4.3.
var sapiOrder = [2]uint8{0, 3}

// Entity owns the SAPI-0 and SAPI-3 Datalinks multiplexed onto one
// physical channel.
type Entity struct {
	log      *logrus.Entry
	params   config.Table
	chanType lapdm.ChannelType
	polarity lapdm.CRPolarity
	links    map[uint8]*datalink.Datalink
	next     int // index into sapiOrder for the next PopFrame drain
	flags    lapdm.EntityFlags
}

// New builds an Entity for the given mode (MS or BTS) and channel type,
// wiring both SAPIs to the same upward sink and T200 scheduler.
func New(mode lapdm.Mode, chanType lapdm.ChannelType, params config.Table, up rsl.Upward, sched *timer.Scheduler, log *logrus.Entry) *Entity {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	polarity := lapdm.PolarityForMode(mode)
	e := &Entity{
		log:      log,
		params:   params,
		chanType: chanType,
		polarity: polarity,
		links:    make(map[uint8]*datalink.Datalink, len(sapiOrder)),
	}
	for _, sapi := range sapiOrder {
		e.links[sapi] = datalink.New(sapi, polarity, params, up, sched, log)
	}
	return e
}

// Datalink returns the Datalink for sapi, or nil if sapi isn't one of
// this entity's allocated SAPIs.
func (e *Entity) Datalink(sapi uint8) *datalink.Datalink {
	return e.links[sapi]
}

// ChannelType reports the channel type this entity was built for; its
// N201 sets the block size NextBlock pads to. The Datalinks do not read
// it: each takes its N201/N200 row from the ChannelType of its latest
// EstReq/ResReq/ReconReq, and uses the SDCCH row before the first one.
func (e *Entity) ChannelType() lapdm.ChannelType { return e.chanType }

// SetMode updates the C/R polarity of every Datalink and resets each one
// back to IDLE, for a role change (e.g. a test harness flipping MS/BTS)
// that doesn't warrant rebuilding the whole Entity.
func (e *Entity) SetMode(mode lapdm.Mode) {
	e.polarity = lapdm.PolarityForMode(mode)
	for _, sapi := range sapiOrder {
		e.links[sapi].SetPolarity(e.polarity)
		e.links[sapi].Reset()
	}
}

// SetFlags installs new per-entity behavior flags (§6 "Flags"). Note
// that PollingOnly is always effectively true in this implementation:
// every Datalink already queues its frames in an outbox and only
// NextBlock drains them on a PH-RTS, so there is no separate
// spontaneous-send path to suppress.
func (e *Entity) SetFlags(flags lapdm.EntityFlags) {
	e.flags = flags
}

// Flags returns the currently installed entity flags.
func (e *Entity) Flags() lapdm.EntityFlags { return e.flags }

// Reset reinitializes every Datalink owned by this entity back to IDLE,
// for a channel release or mode switch.
func (e *Entity) Reset() {
	for _, sapi := range sapiOrder {
		e.links[sapi].Reset()
	}
}

// HandleBlock decodes a raw L1 octet block and routes it to the
// Datalink named by its SAPI. An unknown SAPI is reported rather than
// silently dropped, the way lapdm_ph_data_ind rejects frames for an
// unallocated SAPI.
func (e *Entity) HandleBlock(raw []byte) error {
	f, err := lapdm.Decode(raw)
	if err != nil {
		return fmt.Errorf("entity: decode inbound block: %w", err)
	}
	dl, ok := e.links[f.SAPI]
	if !ok {
		return fmt.Errorf("%w: sapi %d", lapdm.ErrUnknownSAPI, f.SAPI)
	}
	dl.HandleFrame(f)
	return nil
}

// NextBlock drains one queued frame in round-robin SAPI order and pads
// it out to this entity's channel block size (N201+3 octets) with the
// filler octet, or reports nothing pending if both Datalinks are empty.
func (e *Entity) NextBlock() ([]byte, bool) {
	for i := 0; i < len(sapiOrder); i++ {
		sapi := sapiOrder[e.next]
		e.next = (e.next + 1) % len(sapiOrder)
		if raw, ok := e.links[sapi].PopFrame(); ok {
			return e.pad(raw), true
		}
	}
	return nil, false
}

// HasPending reports whether either Datalink has a frame queued.
func (e *Entity) HasPending() bool {
	for _, sapi := range sapiOrder {
		if e.links[sapi].HasPending() {
			return true
		}
	}
	return false
}

func (e *Entity) pad(raw []byte) []byte {
	n201 := int(e.params[e.chanType].N201)
	if n201 == 0 {
		n201 = 20
	}
	size := n201 + 3
	if len(raw) >= size {
		return raw
	}
	out := make([]byte, size)
	copy(out, raw)
	for i := len(raw); i < size; i++ {
		out[i] = fillerOctet
	}
	return out
}
