package datalink

import (
	"github.com/osmocom-go/lapdm"
	"github.com/osmocom-go/lapdm/internal/bitfield"
	"github.com/osmocom-go/lapdm/pkg/rsl"
)

// onT200Expiry is the T200 callback, grounded on lapdm_t200_cb. It is
// registered with the Scheduler by armT200 and never called directly.
func (dl *Datalink) onT200Expiry() {
	switch dl.state {
	case StateSABMSent, StateDiscSent:
		dl.expireEstablishing()
	case StateMFEst:
		dl.retransCtr = 0
		dl.newState(StateTimerRecov)
		dl.expireRecovery()
	case StateTimerRecov:
		dl.expireRecovery()
	default:
		dl.log.WithField("state", dl.state).Warn("T200 expired in unexpected state")
	}
}

// expireEstablishing handles T200 expiry during SABM_SENT/DISC_SENT
// (§5.4.1.3, §5.4.4.3): retransmit the stashed command up to N200EstRel
// times, then give up and report the link lost.
func (dl *Datalink) expireEstablishing() {
	if dl.retransCtr+1 >= dl.n200EstRel()+1 {
		if dl.state == StateSABMSent {
			if dl.up != nil {
				dl.up.HandleRelInd(rsl.RelInd{Link: dl.link})
			}
		} else {
			if dl.up != nil {
				dl.up.HandleRelConf(rsl.RelConf{Link: dl.link})
			}
		}
		dl.reportError(lapdm.CauseT200Expired)
		dl.flushTx()
		dl.flushSend()
		dl.newState(StateIdle)
		return
	}
	if dl.txHist[0] != nil {
		dl.outbox = append(dl.outbox, append([]byte(nil), dl.txHist[0]...))
	}
	dl.retransCtr++
	dl.armT200()
}

// expireRecovery handles T200 expiry during MF_EST (which falls straight
// into TIMER_RECOV, §5.5.7) and TIMER_RECOV itself: retransmit the last
// unacknowledged I frame with P=1 if there is one, otherwise poll with an
// RR/RNR; past N200Recover retransmissions, give up and report the error
// upward without tearing the link down (§5.5.7 leaves recovery to L3).
func (dl *Datalink) expireRecovery() {
	if dl.retransCtr >= dl.n200Recover() {
		dl.reportError(lapdm.CauseT200Expired)
		return
	}
	dl.retransCtr++

	prev := dl.vSend.Sub(1)
	if dl.txHist[prev] != nil {
		raw := append([]byte(nil), dl.txHist[prev]...)
		raw[1] = bitfield.PackControlI(uint8(dl.vRecv), uint8(prev), true)
		dl.outbox = append(dl.outbox, raw)
	} else if !dl.ownBusy && !dl.seqErrCond {
		dl.sendRR(true)
	} else if dl.ownBusy {
		dl.sendRNR(true)
	}
	// else: own_busy is false and seqErrCond is true -- the REJ was
	// already sent when the sequence error condition was entered, so
	// there is nothing left to (re)send here; T200 still restarts below
	// so the peer eventually times the link out if it never recovers.

	dl.armT200()
}
