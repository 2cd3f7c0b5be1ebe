package channel

import (
	"testing"

	"github.com/osmocom-go/lapdm"
	"github.com/osmocom-go/lapdm/pkg/config"
	"github.com/osmocom-go/lapdm/pkg/l1/virtual"
	"github.com/osmocom-go/lapdm/pkg/rsl"
	"github.com/osmocom-go/lapdm/pkg/timer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	estInd      []rsl.EstInd
	estConf     []rsl.EstConf
	unitDataInd []rsl.UnitDataInd
	chanConf    []rsl.ChanConf
}

func (r *recorder) HandleEstInd(i rsl.EstInd)   { r.estInd = append(r.estInd, i) }
func (r *recorder) HandleEstConf(i rsl.EstConf) { r.estConf = append(r.estConf, i) }
func (r *recorder) HandleDataInd(rsl.DataInd)   {}
func (r *recorder) HandleUnitDataInd(i rsl.UnitDataInd) {
	r.unitDataInd = append(r.unitDataInd, i)
}
func (r *recorder) HandleRelInd(rsl.RelInd)     {}
func (r *recorder) HandleRelConf(rsl.RelConf)   {}
func (r *recorder) HandleSuspConf(rsl.SuspConf) {}
func (r *recorder) HandleErrorInd(rsl.ErrorInd) {}
func (r *recorder) HandleChanConf(c rsl.ChanConf) {
	r.chanConf = append(r.chanConf, c)
}

func TestChannelEstablishmentOverVirtualBus(t *testing.T) {
	busMS, busBTS := virtual.NewPair(nil)
	sched := timer.New()
	params := config.Default()

	msRec, btsRec := &recorder{}, &recorder{}
	ms, err := New(busMS, msRec, lapdm.ModeMS, lapdm.ChannelSDCCH, params, sched, nil)
	require.NoError(t, err)
	bts, err := New(busBTS, btsRec, lapdm.ModeBTS, lapdm.ChannelSDCCH, params, sched, nil)
	require.NoError(t, err)
	defer ms.Close()
	defer bts.Close()

	require.NoError(t, ms.DCCH().Datalink(0).EstReq(rsl.EstReq{ChanTyp: lapdm.ChannelSDCCH}))
	busMS.RTS(0, 0) // MS sends SABM out, BTS receives it synchronously

	require.Len(t, btsRec.estInd, 1)

	busBTS.RTS(0, 0) // BTS answers with UA
	require.Len(t, msRec.estConf, 1)

	assert.Equal(t, "MF_EST", bts.DCCH().Datalink(0).State().String())
	assert.Equal(t, "MF_EST", ms.DCCH().Datalink(0).State().String())
}

func TestChannelSACCHHeaderRoundTrips(t *testing.T) {
	busMS, busBTS := virtual.NewPair(nil)
	sched := timer.New()
	params := config.Default()

	msRec, btsRec := &recorder{}, &recorder{}
	ms, err := New(busMS, msRec, lapdm.ModeMS, lapdm.ChannelSDCCH, params, sched, nil)
	require.NoError(t, err)
	bts, err := New(busBTS, btsRec, lapdm.ModeBTS, lapdm.ChannelSDCCH, params, sched, nil)
	require.NoError(t, err)
	defer ms.Close()
	defer bts.Close()

	require.NoError(t, ms.ACCH().Datalink(0).UnitDataReq(rsl.UnitDataReq{L3: []byte{7, 7}}))
	busMS.RTS(0, achLinkBit)

	require.Len(t, btsRec.unitDataInd, 1)
	assert.Equal(t, []byte{7, 7}, btsRec.unitDataInd[0].L3)
}

func TestChanRqdTriggersRachAndChanConf(t *testing.T) {
	busMS, busBTS := virtual.NewPair(nil)
	sched := timer.New()
	params := config.Default()

	msRec, btsRec := &recorder{}, &recorder{}
	ms, err := New(busMS, msRec, lapdm.ModeMS, lapdm.ChannelSDCCH, params, sched, nil)
	require.NoError(t, err)
	_, err = New(busBTS, btsRec, lapdm.ModeBTS, lapdm.ChannelSDCCH, params, sched, nil)
	require.NoError(t, err)
	defer ms.Close()

	require.NoError(t, ms.ChanRqd(rsl.ChanRqd{RA: 0x23}))
	require.Len(t, msRec.chanConf, 1)
	assert.Equal(t, uint8(0), msRec.chanConf[0].T1)
}

func TestFrameNumberToT123(t *testing.T) {
	t1, t2, t3 := frameNumberToT123(26*51 + 5)
	assert.Equal(t, uint8(1), t1)
	assert.Equal(t, uint8(5), t2)
	assert.Equal(t, uint8(5), t3)
}
