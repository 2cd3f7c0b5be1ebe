package entity

import (
	"testing"

	"github.com/osmocom-go/lapdm"
	"github.com/osmocom-go/lapdm/pkg/config"
	"github.com/osmocom-go/lapdm/pkg/rsl"
	"github.com/osmocom-go/lapdm/pkg/timer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	estInd []rsl.EstInd
}

func (r *recorder) HandleEstInd(i rsl.EstInd)         { r.estInd = append(r.estInd, i) }
func (r *recorder) HandleEstConf(rsl.EstConf)         {}
func (r *recorder) HandleDataInd(rsl.DataInd)         {}
func (r *recorder) HandleUnitDataInd(rsl.UnitDataInd) {}
func (r *recorder) HandleRelInd(rsl.RelInd)           {}
func (r *recorder) HandleRelConf(rsl.RelConf)         {}
func (r *recorder) HandleSuspConf(rsl.SuspConf)       {}
func (r *recorder) HandleErrorInd(rsl.ErrorInd)       {}
func (r *recorder) HandleChanConf(rsl.ChanConf)       {}

func newTestEntity(t *testing.T) (*Entity, *recorder) {
	t.Helper()
	rec := &recorder{}
	e := New(lapdm.ModeBTS, lapdm.ChannelSDCCH, config.Default(), rec, timer.New(), nil)
	return e, rec
}

func TestEntitySplitsBySAPI(t *testing.T) {
	e, _ := newTestEntity(t)
	require.NotNil(t, e.Datalink(0))
	require.NotNil(t, e.Datalink(3))
	assert.Nil(t, e.Datalink(1))
}

func TestEntityRoutesInboundFrameBySAPI(t *testing.T) {
	e, rec := newTestEntity(t)
	polarity := lapdm.PolarityForMode(lapdm.ModeMS)
	raw, err := lapdm.Encode(lapdm.Frame{SAPI: 0, Kind: lapdm.KindU, U: lapdm.USABM, CR: polarity.Loc2RemCmd, PF: true, Payload: []byte{1, 2}})
	require.NoError(t, err)

	require.NoError(t, e.HandleBlock(raw))
	require.Len(t, rec.estInd, 1)
	assert.Equal(t, []byte{1, 2}, rec.estInd[0].L3)
	// SAPI 3 never saw the SABM.
	assert.Equal(t, "IDLE", e.Datalink(3).State().String())
}

func TestEntityNextBlockRoundRobinsAndPads(t *testing.T) {
	e, _ := newTestEntity(t)
	require.NoError(t, e.Datalink(0).UnitDataReq(rsl.UnitDataReq{L3: []byte{1}}))
	require.NoError(t, e.Datalink(3).UnitDataReq(rsl.UnitDataReq{L3: []byte{2}}))

	block, ok := e.NextBlock()
	require.True(t, ok)
	assert.Len(t, block, e.Datalink(0).N201()+3)

	block2, ok := e.NextBlock()
	require.True(t, ok)
	assert.Len(t, block2, e.Datalink(0).N201()+3)

	_, ok = e.NextBlock()
	assert.False(t, ok)
}

func TestEntityHandleBlockUnknownSAPI(t *testing.T) {
	e, _ := newTestEntity(t)
	polarity := lapdm.PolarityForMode(lapdm.ModeMS)
	raw, err := lapdm.Encode(lapdm.Frame{SAPI: 5, Kind: lapdm.KindU, U: lapdm.UUI, CR: polarity.Loc2RemCmd})
	require.NoError(t, err)
	err = e.HandleBlock(raw)
	assert.ErrorIs(t, err, lapdm.ErrUnknownSAPI)
}
