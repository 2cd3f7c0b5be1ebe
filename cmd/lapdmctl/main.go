// Command lapdmctl is a demo harness for manual/automated testing: it
// wires an MS-side and a BTS-side Channel back to back over the virtual
// Bus, establishes SAPI 0, and sends one L3 message from the MS to the BTS.
package main

import (
	"flag"
	"time"

	"github.com/osmocom-go/lapdm"
	"github.com/osmocom-go/lapdm/pkg/channel"
	"github.com/osmocom-go/lapdm/pkg/config"
	"github.com/osmocom-go/lapdm/pkg/l1/virtual"
	"github.com/osmocom-go/lapdm/pkg/rsl"
	"github.com/osmocom-go/lapdm/pkg/timer"
	log "github.com/sirupsen/logrus"
)

// upward just logs every primitive it receives, standing in for an L3.
type upward struct {
	name string
}

func (u upward) HandleEstInd(i rsl.EstInd) {
	log.WithField("side", u.name).WithField("l3", i.L3).Info("EST.ind")
}
func (u upward) HandleEstConf(rsl.EstConf) {
	log.WithField("side", u.name).Info("EST.conf")
}
func (u upward) HandleDataInd(i rsl.DataInd) {
	log.WithField("side", u.name).WithField("l3", i.L3).Info("DATA.ind")
}
func (u upward) HandleUnitDataInd(i rsl.UnitDataInd) {
	log.WithField("side", u.name).WithField("l3", i.L3).Info("UNIT DATA.ind")
}
func (u upward) HandleRelInd(rsl.RelInd) {
	log.WithField("side", u.name).Info("REL.ind")
}
func (u upward) HandleRelConf(rsl.RelConf) {
	log.WithField("side", u.name).Info("REL.conf")
}
func (u upward) HandleSuspConf(rsl.SuspConf) {
	log.WithField("side", u.name).Info("SUSP.conf")
}
func (u upward) HandleErrorInd(i rsl.ErrorInd) {
	log.WithField("side", u.name).WithField("cause", i.Cause).Warn("ERROR.ind")
}
func (u upward) HandleChanConf(c rsl.ChanConf) {
	log.WithField("side", u.name).WithField("t1", c.T1).WithField("t2", c.T2).WithField("t3", c.T3).Info("CHAN.conf")
}

func main() {
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()
	if *debug {
		log.SetLevel(log.DebugLevel)
	}

	sched := timer.New()
	params := config.Default()
	msBus, btsBus := virtual.NewPair(nil)

	ms, err := channel.New(msBus, upward{"MS"}, lapdm.ModeMS, lapdm.ChannelSDCCH, params, sched, nil)
	if err != nil {
		panic(err)
	}
	defer ms.Close()
	bts, err := channel.New(btsBus, upward{"BTS"}, lapdm.ModeBTS, lapdm.ChannelSDCCH, params, sched, nil)
	if err != nil {
		panic(err)
	}
	defer bts.Close()

	if err := ms.DCCH().Datalink(0).EstReq(rsl.EstReq{ChanTyp: lapdm.ChannelSDCCH}); err != nil {
		panic(err)
	}
	pump(msBus, btsBus, sched)

	if err := ms.DCCH().Datalink(0).DataReq(rsl.DataReq{L3: []byte("hello from the MS")}); err != nil {
		panic(err)
	}
	pump(msBus, btsBus, sched)
}

// pump drives eight rounds of the cooperative PH-RTS loop on both ends,
// firing any timer whose deadline has already passed after each round.
func pump(a, b *virtual.Bus, sched *timer.Scheduler) {
	for i := 0; i < 8; i++ {
		a.RTS(0, 0)
		b.RTS(0, 0)
		if deadline, ok := sched.NextDeadline(); ok && deadline.Before(time.Now()) {
			sched.Advance(deadline.Add(time.Millisecond))
		}
	}
}
