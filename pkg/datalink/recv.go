package datalink

import (
	"bytes"

	"github.com/osmocom-go/lapdm"
	"github.com/osmocom-go/lapdm/pkg/rsl"
)

// HandleFrame dispatches a decoded inbound frame to the U/S/I handler for
// its Kind. The caller (Entity) has already resolved which Datalink a
// frame's SAPI addresses; HandleFrame itself never looks at f.SAPI.
func (dl *Datalink) HandleFrame(f lapdm.Frame) {
	switch f.Kind {
	case lapdm.KindU:
		dl.handleU(f)
	case lapdm.KindS:
		dl.handleS(f)
	case lapdm.KindI:
		dl.handleI(f)
	}
}

func (dl *Datalink) handleU(f lapdm.Frame) {
	switch f.U {
	case lapdm.USABM:
		dl.handleSABM(f)
	case lapdm.UDM:
		dl.handleDM(f)
	case lapdm.UUI:
		dl.handleUI(f)
	case lapdm.UDISC:
		dl.handleDISC(f)
	case lapdm.UUA:
		dl.handleUA(f)
	default:
		dl.reportError(lapdm.CauseFrameNotImplemented)
	}
}

// handleSABM grounds on the LAPDm_U_SABM arm of lapdm_rx_u.
func (dl *Datalink) handleSABM(f lapdm.Frame) {
	dl.seqErrCond = false
	if f.CR == dl.polarity.Rem2LocResp {
		dl.reportError(lapdm.CauseFrameNotImplemented)
		return
	}
	if f.More || len(f.Payload)+3 > dl.n201() {
		dl.reportError(lapdm.CauseUFrameIncorrectParameters)
		return
	}

	switch dl.state {
	case StateIdle:
		// common establishment path below
	case StateMFEst:
		if len(f.Payload) == 0 {
			dl.sendUA(nil)
			if dl.up != nil {
				dl.up.HandleEstConf(rsl.EstConf{Link: dl.link})
			}
			return
		}
		if len(dl.txHist[0]) > 3 {
			dl.reportError(lapdm.CauseSABMInfoNotAllowed)
		}
		return
	case StateDiscSent:
		dl.sendDM(true)
		dl.resetT200()
		if dl.up != nil {
			dl.up.HandleRelConf(rsl.RelConf{Link: dl.link})
		}
		return
	default:
		dl.sendUA(f.Payload)
		return
	}

	dl.sendUA(f.Payload)
	dl.vSend, dl.vRecv, dl.vAck = 0, 0, 0
	dl.txHist[0] = nil
	dl.newState(StateMFEst)
	if dl.up != nil {
		dl.up.HandleEstInd(rsl.EstInd{Link: dl.link, L3: f.Payload})
	}
}

func (dl *Datalink) handleDM(f lapdm.Frame) {
	if f.CR == dl.polarity.Rem2LocCmd {
		dl.reportError(lapdm.CauseFrameNotImplemented)
		return
	}
	if !f.PF {
		// 5.4.1.2: DM responses with F=0 are ignored
		return
	}
	switch dl.state {
	case StateSABMSent:
	case StateMFEst:
		dl.reportError(lapdm.CauseUnsolicitedDMResponse)
		return
	case StateTimerRecov:
		// DM with F=1 is a normal recovery outcome, nothing more to check
	case StateDiscSent:
		dl.resetT200()
		dl.flushTx()
		dl.flushSend()
		dl.newState(StateIdle)
		if dl.up != nil {
			dl.up.HandleRelConf(rsl.RelConf{Link: dl.link})
		}
		return
	default:
		return
	}
	dl.resetT200()
	if dl.up != nil {
		dl.up.HandleRelInd(rsl.RelInd{Link: dl.link})
	}
}

func (dl *Datalink) handleUI(f lapdm.Frame) {
	if f.CR == dl.polarity.Rem2LocResp {
		dl.reportError(lapdm.CauseFrameNotImplemented)
		return
	}
	if len(f.Payload) == 0 {
		// 5.3.3: UI frames with L=0 are ignored
		return
	}
	if dl.up != nil {
		dl.up.HandleUnitDataInd(rsl.UnitDataInd{Link: dl.link, L3: f.Payload})
	}
}

func (dl *Datalink) handleDISC(f lapdm.Frame) {
	dl.flushTx()
	dl.flushSend()
	dl.seqErrCond = false
	if f.CR == dl.polarity.Rem2LocResp {
		dl.reportError(lapdm.CauseFrameNotImplemented)
		return
	}
	if len(f.Payload) > 0 || f.More {
		dl.reportError(lapdm.CauseUFrameIncorrectParameters)
		return
	}

	releaseIsConfirm := false
	switch dl.state {
	case StateIdle:
		dl.sendDM(true)
		return
	case StateSABMSent:
		dl.sendDM(true)
		dl.resetT200()
		if dl.up != nil {
			dl.up.HandleRelInd(rsl.RelInd{Link: dl.link})
		}
		return
	case StateMFEst, StateTimerRecov:
		// common release path below, REL_IND
	case StateDiscSent:
		releaseIsConfirm = true
	default:
		dl.sendUA(nil)
		return
	}

	dl.sendUA(nil)
	dl.resetT200()
	dl.flushTx()
	dl.flushSend()
	dl.newState(StateIdle)
	if dl.up == nil {
		return
	}
	if releaseIsConfirm {
		dl.up.HandleRelConf(rsl.RelConf{Link: dl.link})
	} else {
		dl.up.HandleRelInd(rsl.RelInd{Link: dl.link})
	}
}

func (dl *Datalink) handleUA(f lapdm.Frame) {
	if f.CR == dl.polarity.Rem2LocCmd {
		dl.reportError(lapdm.CauseFrameNotImplemented)
		return
	}
	if f.More || len(f.Payload)+3 > dl.n201() {
		dl.reportError(lapdm.CauseUFrameIncorrectParameters)
		return
	}
	if !f.PF {
		// 5.4.1.2: UA responses with F=0 are ignored
		return
	}

	switch dl.state {
	case StateSABMSent:
		// contention-resolution compare below
	case StateMFEst, StateTimerRecov:
		dl.reportError(lapdm.CauseUnsolicitedUAResponse)
		return
	case StateDiscSent:
		dl.resetT200()
		dl.flushTx()
		dl.flushSend()
		dl.newState(StateIdle)
		if dl.up != nil {
			dl.up.HandleRelConf(rsl.RelConf{Link: dl.link})
		}
		return
	default:
		return
	}

	dl.resetT200()
	if len(dl.txHist[0]) > 3 {
		sent := dl.txHist[0][3:]
		if len(f.Payload) != len(sent) || !bytes.Equal(f.Payload, sent) {
			dl.log.Warn("UA contention resolution payload mismatch")
			dl.flushTx()
			dl.flushSend()
			dl.newState(StateIdle)
			if dl.up != nil {
				dl.up.HandleRelInd(rsl.RelInd{Link: dl.link})
			}
			return
		}
	}

	dl.vSend, dl.vRecv, dl.vAck = 0, 0, 0
	dl.txHist[0] = nil
	dl.newState(StateMFEst)
	dl.trySendI()
	if dl.up != nil {
		dl.up.HandleEstConf(rsl.EstConf{Link: dl.link})
	}
}

// handleS grounds on lapdm_rx_s.
func (dl *Datalink) handleS(f lapdm.Frame) {
	if len(f.Payload) > 0 || f.More {
		dl.reportError(lapdm.CauseSFrameIncorrectParameters)
		return
	}
	if f.CR == dl.polarity.Rem2LocResp && f.PF && dl.state != StateTimerRecov {
		dl.reportError(lapdm.CauseUnsolicitedSupervisoryResponse)
	}

	switch dl.state {
	case StateIdle:
		if f.PF {
			dl.sendDM(true)
		}
		return
	case StateSABMSent, StateDiscSent:
		return
	}

	switch f.S {
	case lapdm.SRR:
		dl.handleRR(f)
	case lapdm.SRNR:
		dl.handleRNR(f)
	case lapdm.SREJ:
		dl.handleREJ(f)
	default:
		dl.reportError(lapdm.CauseFrameNotImplemented)
	}
}

func (dl *Datalink) handleRR(f lapdm.Frame) {
	dl.acknowledge(f.NR, true, false)

	if f.CR == dl.polarity.Rem2LocCmd && f.PF {
		if !dl.ownBusy && !dl.seqErrCond {
			dl.sendRR(true)
		} else if dl.ownBusy {
			dl.sendRNR(true)
		}
	} else if f.CR == dl.polarity.Rem2LocResp && f.PF && dl.state == StateTimerRecov {
		dl.vSend = f.NR
		dl.resetT200()
		dl.newState(StateMFEst)
	}

	dl.trySendI()
}

func (dl *Datalink) handleRNR(f lapdm.Frame) {
	dl.acknowledge(f.NR, true, false)
	dl.peerBusy = true

	if f.PF {
		if f.CR == dl.polarity.Rem2LocCmd {
			if !dl.ownBusy {
				dl.sendRR(true)
			} else {
				dl.sendRNR(true)
			}
		} else if dl.state == StateTimerRecov {
			dl.newState(StateMFEst)
			dl.vSend = f.NR
		}
	}

	dl.trySendI()
}

// handleREJ grounds on the LAPDm_S_REJ arm of lapdm_rx_s: the three-way
// split is on whether we are already in TIMER_RECOV, and if so whether
// this is the poll response that ends it.
func (dl *Datalink) handleREJ(f lapdm.Frame) {
	dl.acknowledge(f.NR, true, true)

	switch {
	case dl.state != StateTimerRecov:
		dl.peerBusy = false
		dl.vSend, dl.vAck = f.NR, f.NR
		dl.resetT200()
		if f.CR == dl.polarity.Rem2LocCmd && f.PF {
			if !dl.ownBusy && !dl.seqErrCond {
				dl.sendRR(true)
			} else if dl.ownBusy {
				dl.sendRNR(true)
			}
		}
		if f.CR == dl.polarity.Rem2LocResp && f.PF {
			dl.reportError(lapdm.CauseUnsolicitedSupervisoryResponse)
		}
	case f.CR == dl.polarity.Rem2LocResp && f.PF:
		dl.peerBusy = false
		dl.newState(StateMFEst)
		dl.vSend, dl.vAck = f.NR, f.NR
		dl.resetT200()
	default:
		dl.peerBusy = false
		dl.vSend, dl.vAck = f.NR, f.NR
		if f.CR == dl.polarity.Rem2LocCmd && f.PF {
			if !dl.ownBusy && !dl.seqErrCond {
				dl.sendRR(true)
			} else if dl.ownBusy {
				dl.sendRNR(true)
			}
		}
	}

	dl.trySendI()
}

// handleI grounds on lapdm_rx_i: C/R and length validation, state-based
// discard, N(S) sequence checking, acknowledgement, reassembly and the
// RR/RNR poll-or-piggyback tail.
func (dl *Datalink) handleI(f lapdm.Frame) {
	if f.CR == dl.polarity.Rem2LocResp {
		dl.reportError(lapdm.CauseFrameNotImplemented)
		return
	}
	n201 := dl.n201()
	length := len(f.Payload)
	if length == 0 || length+3 > n201 {
		dl.reportError(lapdm.CauseIFrameIncorrectLength)
		return
	}
	if f.More && length+3 < n201 {
		dl.reportError(lapdm.CauseIFrameIncorrectMBits)
		return
	}

	switch dl.state {
	case StateIdle:
		if f.PF {
			dl.sendDM(true)
		}
		fallthrough
	case StateSABMSent, StateDiscSent:
		return
	}

	if f.NS != dl.vRecv {
		if !dl.seqErrCond {
			dl.sendREJ(f.PF)
			// Latch the condition so a repeated out-of-sequence N(S)
			// doesn't trigger another REJ on every retry, per TS 04.06
			// §5.4.2.1 -- only the first bad frame in a run gets rejected.
			dl.seqErrCond = true
		}
		return
	}
	dl.seqErrCond = false

	dl.vRecv = dl.vRecv.Incr()
	dl.acknowledge(f.NR, false, false)

	if !dl.ownBusy {
		dl.reassemble(f.Payload, f.More, length)
	}

	if f.PF {
		if !dl.ownBusy {
			dl.sendRR(true)
		} else {
			dl.sendRNR(true)
		}
		dl.trySendI()
		return
	}

	if !dl.ownBusy {
		before := len(dl.outbox)
		dl.trySendI()
		if len(dl.outbox) == before {
			dl.sendRR(false)
		}
		return
	}
	dl.sendRNR(false)
	dl.trySendI()
}

// reassemble appends one segment to rcv_buffer (allocating it on the first
// segment of a multi-frame message) and delivers DATA-IND once the final
// segment (M=0) arrives. A segment that would take the buffer past
// maxReassembly is dropped whole; what was already buffered is still
// delivered on the final segment, mirroring original_source/lapdm.c's "Received frame overflow"
// branch, which logs and continues rather than discarding the message
// (§9 Open Question (a)).
func (dl *Datalink) reassemble(payload []byte, more bool, length int) {
	if !more && dl.rcvBuffer == nil {
		if dl.up != nil {
			dl.up.HandleDataInd(rsl.DataInd{Link: dl.link, L3: payload})
		}
		return
	}
	if dl.rcvBuffer == nil {
		dl.rcvBuffer = make([]byte, 0, maxReassembly)
	}
	if len(dl.rcvBuffer)+length > maxReassembly {
		dl.log.Warn("reassembly buffer overflow, dropping segment")
	} else {
		dl.rcvBuffer = append(dl.rcvBuffer, payload...)
	}
	if !more {
		if dl.up != nil {
			dl.up.HandleDataInd(rsl.DataInd{Link: dl.link, L3: dl.rcvBuffer})
		}
		dl.rcvBuffer = nil
	}
}
