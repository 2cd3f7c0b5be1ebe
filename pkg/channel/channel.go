// Package channel wires the DCCH and ACCH entities of one physical
// channel to an L1 Bus, handling the SACCH L1-header framing and the
// CHAN_RQD/RACH/CHAN_CONF common-channel request flow, grounded on
// original_source/lapdm.c's lapdm_channel (the lc->lapdm_dcch/lc->lapdm_acch
// pair) and rslms_rx_chan_rqd/l2_ph_chan_conf.
package channel

import (
	"fmt"

	"github.com/osmocom-go/lapdm"
	"github.com/osmocom-go/lapdm/pkg/config"
	"github.com/osmocom-go/lapdm/pkg/entity"
	"github.com/osmocom-go/lapdm/pkg/l1"
	"github.com/osmocom-go/lapdm/pkg/rsl"
	"github.com/osmocom-go/lapdm/pkg/timer"
	"github.com/sirupsen/logrus"
)

// achLinkBit is link_id's bit 6 (§4.3), which selects the ACCH entity
// instead of the DCCH one; it carries no SAPI information of its own.
const achLinkBit = 0x40

// sacchHeaderLen is the two-octet L1 header (ordered MS power, ordered
// timing advance on the downlink; actual MS power, actual timing advance
// on the uplink) that precedes every SACCH block, format B4 (§4.2).
const sacchHeaderLen = 2

// Channel owns the DCCH and ACCH entities multiplexed onto one physical
// traffic/signalling channel and bridges them to an l1.Bus.
type Channel struct {
	log *logrus.Entry
	bus l1.Bus
	up  rsl.Upward

	dcch *entity.Entity
	acch *entity.Entity

	achUp  *achUpward
	cancel func()
}

// achUpward wraps the caller's rsl.Upward to attach the ordered/actual
// MS-power and timing-advance values carried in the SACCH B4 header to
// the UnitDataInd primitive the ACCH entity's Datalinks otherwise have
// no way to see, since they only ever look at frame payload.
type achUpward struct {
	rsl.Upward
	pendingTA    uint8
	pendingPower uint8
}

func (a *achUpward) HandleUnitDataInd(i rsl.UnitDataInd) {
	i.TimingAdvance = a.pendingTA
	i.MSPower = a.pendingPower
	a.Upward.HandleUnitDataInd(i)
}

// New builds a Channel, subscribes it to bus, and returns it ready to
// receive PH-SAP primitives. dcchType is the DCCH entity's channel type
// (SDCCH or one of the FACCH variants); the ACCH entity always uses
// ChannelSACCH. An entity's channel type sets the block size it pads to;
// each Datalink's N201/N200 row comes from the ChannelType of its latest
// EstReq/ResReq/ReconReq, SDCCH before the first one.
func New(bus l1.Bus, up rsl.Upward, mode lapdm.Mode, dcchType lapdm.ChannelType, params config.Table, sched *timer.Scheduler, log *logrus.Entry) (*Channel, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	achUp := &achUpward{Upward: up}
	c := &Channel{
		log:   log,
		bus:   bus,
		up:    up,
		dcch:  entity.New(mode, dcchType, params, up, sched, log.WithField("entity", "dcch")),
		acch:  entity.New(mode, lapdm.ChannelSACCH, params, achUp, sched, log.WithField("entity", "acch")),
		achUp: achUp,
	}
	cancel, err := bus.Subscribe(c)
	if err != nil {
		return nil, fmt.Errorf("channel: subscribe to bus: %w", err)
	}
	c.cancel = cancel
	return c, nil
}

// Close unsubscribes the Channel from its Bus.
func (c *Channel) Close() {
	if c.cancel != nil {
		c.cancel()
	}
}

// DCCH returns the dedicated control channel entity (SDCCH/FACCH).
func (c *Channel) DCCH() *entity.Entity { return c.dcch }

// ACCH returns the associated control channel entity (SACCH).
func (c *Channel) ACCH() *entity.Entity { return c.acch }

func (c *Channel) entityFor(linkID uint8) *entity.Entity {
	if linkID&achLinkBit != 0 {
		return c.acch
	}
	return c.dcch
}

// SetMode updates the C/R polarity of both entities, for a role switch,
// and resets all their Datalinks to IDLE.
func (c *Channel) SetMode(mode lapdm.Mode) {
	c.dcch.SetMode(mode)
	c.acch.SetMode(mode)
}

// SetFlags installs the same per-entity flags on both DCCH and ACCH,
// mirroring lapdm_channel_set_flags applying to both of a channel's
// datalink entities at once.
func (c *Channel) SetFlags(flags lapdm.EntityFlags) {
	c.dcch.SetFlags(flags)
	c.acch.SetFlags(flags)
}

// Reset reinitializes every Datalink on both entities back to IDLE.
func (c *Channel) Reset() {
	c.dcch.Reset()
	c.acch.Reset()
}

// HandlePHData implements l1.Listener: it strips the SACCH L1 header
// when present and routes the remaining LAPDm block to the right entity.
func (c *Channel) HandlePHData(ind l1.DataInd) {
	ent := c.entityFor(ind.LinkID)
	raw := []byte(ind.Block)
	if ent == c.acch {
		if len(raw) < sacchHeaderLen {
			c.log.WithField("len", len(raw)).Warn("SACCH block shorter than its L1 header")
			return
		}
		c.achUp.pendingPower = raw[0]
		c.achUp.pendingTA = raw[1]
		raw = raw[sacchHeaderLen:]
	}
	if err := ent.HandleBlock(raw); err != nil {
		c.log.WithError(err).Warn("inbound block rejected")
	}
}

// HandlePHRTS implements l1.Listener: L1 wants a block to send on
// chanNr/linkID. A SACCH block gets its two-octet L1 header prepended;
// an idle slot falls back to PH-EMPTY_FRAME.req only if the entity's
// EmptyFrame flag asks for one, the way POLLING_ONLY/EMPTY_FRAME gate the
// original's ph_data_req/ph_empty_frame_req choice.
func (c *Channel) HandlePHRTS(chanNr, linkID uint8) {
	ent := c.entityFor(linkID)
	block, ok := ent.NextBlock()
	if !ok {
		if ent.Flags().EmptyFrame {
			if err := c.bus.SendEmptyFrame(l1.EmptyFrameReq{ChanNr: chanNr, LinkID: linkID}); err != nil {
				c.log.WithError(err).Warn("send empty frame")
			}
		}
		return
	}
	if ent == c.acch {
		// Ordered MS power/timing advance are carried on a separate
		// RSL SACCH INFO MODIFY path, not modeled here; the header
		// octets default to zero until that path is wired up.
		block = append([]byte{0, 0}, block...)
	}
	if err := c.bus.Send(l1.DataReq{ChanNr: chanNr, LinkID: linkID, Block: l1.Block(block)}); err != nil {
		c.log.WithError(err).Warn("send data block")
	}
}

// HandlePHRachConf implements l1.Listener: the frame number a RACH burst
// actually went out on is repacked into the T1/T2/T3 request reference
// and reported upward as a CHANNEL CONFIRM.
func (c *Channel) HandlePHRachConf(conf l1.RachConf) {
	t1, t2, t3 := frameNumberToT123(conf.FrameNumber)
	c.up.HandleChanConf(rsl.ChanConf{T1: t1, T2: t2, T3: t3})
}

// ChanRqd decodes a CHANNEL REQUIRED request into a RACH transmission.
func (c *Channel) ChanRqd(req rsl.ChanRqd) error {
	return c.bus.SendRach(l1.RachReq{
		RA:             req.RA,
		Offset:         req.Offset,
		IsCombinedCCCH: req.IsCombinedCCCH,
		TA:             0,
		TxPower:        req.MSPower,
	})
}

// frameNumberToT123 decomposes a GSM frame number into its T1 (the 26x51
// superframe count mod 32), T2 (mod 26) and T3 (mod 51) components, the
// multiframe coordinates a CHANNEL CONFIRM's request reference carries
// (GSM 05.02 §4.3, the frame-number decomposition used by
// rslms_rx_chan_rqd's companion l2_ph_chan_conf).
func frameNumberToT123(fn uint32) (t1, t2, t3 uint8) {
	t1 = uint8((fn / (26 * 51)) % 32)
	t2 = uint8(fn % 26)
	t3 = uint8(fn % 51)
	return
}
