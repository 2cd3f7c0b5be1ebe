package datalink

import (
	"fmt"
	"time"

	"github.com/osmocom-go/lapdm"
	"github.com/osmocom-go/lapdm/internal/bitfield"
	"github.com/osmocom-go/lapdm/pkg/config"
	"github.com/osmocom-go/lapdm/pkg/rsl"
	"github.com/osmocom-go/lapdm/pkg/timer"
	"github.com/sirupsen/logrus"
)

// t200Duration is fixed at 1s per TS 04.06 §5.8.1.1; it never varies by
// channel type, unlike N200 and N201.
const t200Duration = 1 * time.Second

// windowSize is k, the maximum number of outstanding unacknowledged I
// frames (§5.8.4). LAPDm always runs with k=1.
const windowSize = 1

// maxReassembly bounds dl.rcvBuffer, mirroring the 200+56-octet rcv_buffer
// allocation in original_source/lapdm.c; a segment that would exceed it is
// dropped, but the message is still delivered (see reassemble).
const maxReassembly = 200

// Datalink is one SAPI's LAPDm state machine. A Channel/Entity owns two of
// these (SAPI 0 and SAPI 3) and routes decoded frames and L3 requests to
// the right one; Datalink itself knows nothing about SAPI demultiplexing.
type Datalink struct {
	log   *logrus.Entry
	sched *timer.Scheduler
	up    rsl.Upward

	sapi     uint8
	polarity lapdm.CRPolarity
	params   config.Table

	chanNr   rsl.ChanNr
	link     rsl.LinkID
	chanType lapdm.ChannelType

	state State

	vSend, vAck, vRecv           lapdm.Seq
	ownBusy, peerBusy, seqErrCond bool
	retransCtr                   uint8

	// txHist[i] holds the encoded bytes of the unacknowledged I frame sent
	// with N(S)=i, or nil. Slot 0 is reused to stash the last SABM/DISC
	// command frame while in SABM_SENT/DISC_SENT, exactly as
	// original_source/lapdm.c reuses dl->tx_hist[0] -- the two uses never
	// overlap because a Datalink is never in SABM_SENT/DISC_SENT and
	// MF_EST/TIMER_RECOV at once.
	txHist [8][]byte

	sendQueue  [][]byte
	sendBuffer []byte
	sendOut    int

	rcvBuffer []byte

	t200 *timer.Timer

	outbox [][]byte
}

// New returns an idle Datalink for the given SAPI. params supplies the
// N201/N200 row selected by whatever ChannelType a later EstReq/ResReq
// names; up receives every upward primitive and MDL-ERROR-INDICATION.
func New(sapi uint8, polarity lapdm.CRPolarity, params config.Table, up rsl.Upward, sched *timer.Scheduler, log *logrus.Entry) *Datalink {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Datalink{
		log:      log.WithField("sapi", sapi),
		sched:    sched,
		up:       up,
		sapi:     sapi,
		polarity: polarity,
		params:   params,
		state:    StateIdle,
	}
}

// State reports the current data link state.
func (dl *Datalink) State() State { return dl.state }

// SAPI reports the SAPI this Datalink was constructed for.
func (dl *Datalink) SAPI() uint8 { return dl.sapi }

// PopFrame removes and returns the oldest queued outbound frame, for the
// owning Entity's round-robin PH-RTS drain.
func (dl *Datalink) PopFrame() ([]byte, bool) {
	if len(dl.outbox) == 0 {
		return nil, false
	}
	f := dl.outbox[0]
	dl.outbox = dl.outbox[1:]
	return f, true
}

// HasPending reports whether a frame is queued for this Datalink.
func (dl *Datalink) HasPending() bool {
	return len(dl.outbox) > 0
}

// N201 reports the current channel type's max payload size, for callers
// (Entity) that need to pad an outbound block to the right length.
func (dl *Datalink) N201() int { return dl.n201() }

// SetPolarity installs a new C/R polarity table, used by
// Entity.SetMode/Channel.SetMode when the MS/BTS role changes.
func (dl *Datalink) SetPolarity(p lapdm.CRPolarity) {
	dl.polarity = p
}

// Reset forces the Datalink back to IDLE and clears all state, the way a
// mode change or channel release reinitializes every Datalink on it
// (lapdm_dl_init).
func (dl *Datalink) Reset() {
	dl.resetT200()
	dl.flushTx()
	dl.flushSend()
	dl.rcvBuffer = nil
	dl.ownBusy, dl.peerBusy, dl.seqErrCond = false, false, false
	dl.retransCtr = 0
	dl.vSend, dl.vAck, dl.vRecv = 0, 0, 0
	dl.newState(StateIdle)
}

func (dl *Datalink) n201() int {
	n := int(dl.params[dl.chanType].N201)
	if n == 0 {
		n = 20
	}
	return n
}

func (dl *Datalink) n200EstRel() uint8 {
	n := dl.params[dl.chanType].N200EstRel
	if n == 0 {
		n = 5
	}
	return n
}

func (dl *Datalink) n200Recover() uint8 {
	n := dl.params[dl.chanType].N200Recover
	if n == 0 {
		n = 5
	}
	return n
}

func (dl *Datalink) newState(s State) {
	dl.log.WithFields(logrus.Fields{"from": dl.state, "to": s}).Debug("state transition")
	dl.state = s
}

func (dl *Datalink) flushTx() {
	for i := range dl.txHist {
		dl.txHist[i] = nil
	}
}

func (dl *Datalink) flushSend() {
	dl.sendQueue = nil
	dl.sendBuffer = nil
	dl.sendOut = 0
}

func (dl *Datalink) armT200() {
	if dl.t200 == nil {
		dl.t200 = dl.sched.After(t200Duration, dl.onT200Expiry)
		return
	}
	if !dl.t200.Pending() {
		dl.sched.Restart(dl.t200, t200Duration)
	}
}

func (dl *Datalink) resetT200() {
	if dl.t200 != nil {
		dl.sched.Cancel(dl.t200)
	}
}

func (dl *Datalink) reportError(cause lapdm.MDLErrorCause) {
	dl.log.WithField("cause", cause).Warn("MDL-ERROR-INDICATION")
	if dl.up != nil {
		dl.up.HandleErrorInd(rsl.ErrorInd{Link: dl.link, Cause: cause})
	}
}

// send encodes f with this Datalink's SAPI and queues it for L1, returning
// the encoded bytes (or nil on an encode error, which is already logged).
func (dl *Datalink) send(f lapdm.Frame) []byte {
	f.SAPI = dl.sapi
	f.LPD = lapdm.LPDNormal
	raw, err := lapdm.Encode(f)
	if err != nil {
		dl.log.WithError(err).Error("encode outbound frame")
		return nil
	}
	dl.outbox = append(dl.outbox, raw)
	return raw
}

func (dl *Datalink) sendUA(payload []byte) {
	dl.send(lapdm.Frame{Kind: lapdm.KindU, U: lapdm.UUA, CR: dl.polarity.Loc2RemResp, PF: true, Payload: payload})
}

func (dl *Datalink) sendDM(final bool) {
	dl.send(lapdm.Frame{Kind: lapdm.KindU, U: lapdm.UDM, CR: dl.polarity.Loc2RemResp, PF: final})
}

func (dl *Datalink) sendRR(pf bool) {
	dl.send(lapdm.Frame{Kind: lapdm.KindS, S: lapdm.SRR, NR: dl.vRecv, PF: pf, CR: dl.polarity.Loc2RemResp})
}

func (dl *Datalink) sendRNR(pf bool) {
	dl.send(lapdm.Frame{Kind: lapdm.KindS, S: lapdm.SRNR, NR: dl.vRecv, PF: pf, CR: dl.polarity.Loc2RemResp})
}

func (dl *Datalink) sendREJ(pf bool) {
	dl.send(lapdm.Frame{Kind: lapdm.KindS, S: lapdm.SREJ, NR: dl.vRecv, PF: pf, CR: dl.polarity.Loc2RemResp})
}

// --- L3 -> Datalink requests (§4.1, §4.4) ---

func (dl *Datalink) establish(chanNr rsl.ChanNr, link rsl.LinkID, chanType lapdm.ChannelType, l3 []byte) {
	dl.chanNr, dl.link, dl.chanType = chanNr, link, chanType
	dl.retransCtr = 0
	dl.vSend, dl.vAck, dl.vRecv = 0, 0, 0
	dl.flushTx()
	raw := dl.send(lapdm.Frame{Kind: lapdm.KindU, U: lapdm.USABM, CR: dl.polarity.Loc2RemCmd, PF: true, Payload: l3})
	dl.txHist[0] = raw
	dl.newState(StateSABMSent)
	dl.armT200()
}

// EstReq requests establishment of the link, optionally with a contention
// resolution L3 payload (SAPI 0 only). Re-requesting establishment while
// already established is allowed on SAPI 0 (a local release before
// re-establishing); any other SAPI already established is an error. An
// L3 payload on any other SAPI is answered with REL.ind and the link
// stays IDLE.
func (dl *Datalink) EstReq(req rsl.EstReq) error {
	if dl.state != StateIdle {
		if dl.sapi != 0 {
			return fmt.Errorf("%w: sapi %d already established", lapdm.ErrBusy, dl.sapi)
		}
		dl.log.Info("re-establishing over an already-established link (local release)")
	}
	if len(req.L3) > 0 && dl.sapi != 0 {
		if dl.up != nil {
			dl.up.HandleRelInd(rsl.RelInd{Link: req.Link})
		}
		return nil
	}
	dl.flushSend()
	dl.establish(req.ChanNr, req.Link, req.ChanTyp, req.L3)
	return nil
}

// DataReq queues an L3 message for segmented I-frame transfer. The link
// must already be established.
func (dl *Datalink) DataReq(req rsl.DataReq) error {
	if dl.state != StateMFEst && dl.state != StateTimerRecov {
		return fmt.Errorf("%w: sapi %d", lapdm.ErrNotEstablished, dl.sapi)
	}
	dl.sendQueue = append(dl.sendQueue, req.L3)
	dl.trySendI()
	return nil
}

// UnitDataReq sends a single unacknowledged UI frame. UI is never
// segmented (§5.3.3): a payload larger than one frame can carry is
// rejected rather than silently truncated.
func (dl *Datalink) UnitDataReq(req rsl.UnitDataReq) error {
	if max := dl.n201() - 3; len(req.L3) > max {
		return fmt.Errorf("%w: UI payload of %d octets exceeds N201-3=%d", lapdm.ErrIllegalArgument, len(req.L3), max)
	}
	dl.send(lapdm.Frame{Kind: lapdm.KindU, U: lapdm.UUI, CR: dl.polarity.Loc2RemCmd, Payload: req.L3})
	return nil
}

// SuspReq suspends the link for an anticipated handover: T200 is
// cancelled and the link drops to IDLE, but nothing queued for L3 is
// lost -- any unacknowledged or partially segmented data is folded back
// into the send queue so a later ResReq/ReconReq resumes the transfer
// from scratch with fresh sequence numbers rather than resending stale
// tx_hist slots against a V(S) that SABM/UA is about to reset anyway.
func (dl *Datalink) SuspReq() error {
	if dl.state != StateMFEst && dl.state != StateTimerRecov {
		return fmt.Errorf("%w: sapi %d", lapdm.ErrNotEstablished, dl.sapi)
	}
	dl.resetT200()
	dl.requeueUnacked()
	dl.newState(StateIdle)
	if dl.up != nil {
		dl.up.HandleSuspConf(rsl.SuspConf{Link: dl.link})
	}
	return nil
}

// requeueUnacked reassembles any unacknowledged I-frame payloads still in
// tx_hist plus whatever of the current send_buffer was not yet segmented,
// and pushes the result back to the front of the send queue.
func (dl *Datalink) requeueUnacked() {
	var pending []byte
	for i := dl.vAck; i != dl.vSend; i = i.Incr() {
		if raw := dl.txHist[i]; raw != nil && len(raw) > 3 {
			pending = append(pending, raw[3:]...)
		}
		dl.txHist[i] = nil
	}
	if dl.sendBuffer != nil && dl.sendOut < len(dl.sendBuffer) {
		pending = append(pending, dl.sendBuffer[dl.sendOut:]...)
	}
	dl.sendBuffer = nil
	dl.sendOut = 0
	dl.vSend, dl.vAck, dl.vRecv = 0, 0, 0
	if len(pending) > 0 {
		dl.sendQueue = append([][]byte{pending}, dl.sendQueue...)
	}
}

// reestablish drives a fresh SABM exchange without touching the pending
// send queue, the shape shared by ResReq and ReconReq. tx_hist is cleared
// because its slots are indexed by a V(S) numbering the coming UA resets
// to zero.
func (dl *Datalink) reestablish(chanNr rsl.ChanNr, link rsl.LinkID, chanType lapdm.ChannelType, l3 []byte) error {
	if dl.state != StateIdle {
		return fmt.Errorf("%w: sapi %d", lapdm.ErrBusy, dl.sapi)
	}
	dl.establish(chanNr, link, chanType, l3)
	return nil
}

// ResReq resumes a previously suspended link.
func (dl *Datalink) ResReq(req rsl.ResReq) error {
	return dl.reestablish(req.ChanNr, req.Link, req.ChanTyp, req.L3)
}

// ReconReq reconnects after a handover failure. The reference
// implementation's RECON_REQ handler is byte-for-byte the same code path
// as RES_REQ; this mirrors that rather than duplicating it.
func (dl *Datalink) ReconReq(req rsl.ReconReq) error {
	return dl.reestablish(req.ChanNr, req.Link, req.ChanTyp, req.L3)
}

// RelReq tears the link down. A Local release skips the DISC exchange
// entirely (used for abnormal/error recovery); a Normal release while
// already IDLE confirms immediately rather than sending a DISC nobody is
// listening for (the release-in-idle fast path).
func (dl *Datalink) RelReq(req rsl.RelReq) error {
	if req.Mode == lapdm.ReleaseLocal {
		dl.resetT200()
		dl.flushTx()
		dl.flushSend()
		dl.newState(StateIdle)
		if dl.up != nil {
			dl.up.HandleRelConf(rsl.RelConf{Link: dl.link})
		}
		return nil
	}
	if dl.state == StateIdle {
		if dl.up != nil {
			dl.up.HandleRelConf(rsl.RelConf{Link: dl.link})
		}
		return nil
	}
	dl.flushTx()
	dl.flushSend()
	dl.retransCtr = 0
	raw := dl.send(lapdm.Frame{Kind: lapdm.KindU, U: lapdm.UDISC, CR: dl.polarity.Loc2RemCmd, PF: true})
	dl.txHist[0] = raw
	dl.newState(StateDiscSent)
	dl.armT200()
	return nil
}

// trySendI segments dl.sendQueue into I frames and transmits as many as
// the k=1 window and peer/timer-recovery conditions allow, resending from
// tx_hist rather than re-segmenting when a slot is already occupied.
// Grounded on rslms_send_i.
func (dl *Datalink) trySendI() {
	n201 := dl.n201()
	for {
		if dl.peerBusy || dl.state == StateTimerRecov {
			return
		}
		if dl.vSend == dl.vAck.Add(windowSize) {
			return
		}

		if dl.txHist[dl.vSend] == nil {
			if dl.sendBuffer == nil {
				if len(dl.sendQueue) == 0 {
					return
				}
				dl.sendBuffer = dl.sendQueue[0]
				dl.sendQueue = dl.sendQueue[1:]
				dl.sendOut = 0
			}
			left := len(dl.sendBuffer) - dl.sendOut
			if left == 0 {
				dl.sendBuffer = nil
				continue
			}
			length := left
			if length > n201-3 {
				length = n201 - 3
			}
			payload := append([]byte(nil), dl.sendBuffer[dl.sendOut:dl.sendOut+length]...)
			dl.sendOut += length
			raw := dl.send(lapdm.Frame{
				Kind:    lapdm.KindI,
				CR:      dl.polarity.Loc2RemCmd,
				NS:      dl.vSend,
				NR:      dl.vRecv,
				More:    left > length,
				Payload: payload,
			})
			dl.txHist[dl.vSend] = raw
		} else {
			raw := append([]byte(nil), dl.txHist[dl.vSend]...)
			raw[1] = bitfield.PackControlI(uint8(dl.vRecv), uint8(dl.vSend), false)
			dl.outbox = append(dl.outbox, raw)
		}

		dl.vSend = dl.vSend.Incr()
		dl.armT200()
	}
}

// acknowledge flushes tx_hist slots up to (but not including) nr and
// manages T200/V(A) accordingly. Grounded on lapdm_acknowledge; isS/isREJ
// select which of the two T200-reset/N(R)-validity rules apply.
func (dl *Datalink) acknowledge(nr lapdm.Seq, isS, isREJ bool) {
	for i := dl.vAck; i != nr; i = i.Incr() {
		dl.txHist[i] = nil
	}

	t200Reset := false
	if dl.state != StateTimerRecov {
		if (!isREJ && nr != dl.vAck) || (isREJ && nr == dl.vAck) {
			dl.resetT200()
			t200Reset = true
		}
		if dl.vAck.Distance(nr) > dl.vAck.Distance(dl.vSend) {
			dl.reportError(lapdm.CauseSequenceError)
		}
	}

	dl.vAck = nr

	if t200Reset && !isREJ {
		if dl.txHist[dl.vSend.Sub(1)] != nil {
			dl.armT200()
		}
	}
}
