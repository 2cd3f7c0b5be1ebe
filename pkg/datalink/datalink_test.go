package datalink

import (
	"testing"
	"time"

	"github.com/osmocom-go/lapdm"
	"github.com/osmocom-go/lapdm/pkg/config"
	"github.com/osmocom-go/lapdm/pkg/rsl"
	"github.com/osmocom-go/lapdm/pkg/timer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder implements rsl.Upward and records every primitive it receives,
// so tests can assert on exactly which callbacks fired.
type recorder struct {
	estInd, estConf, relInd, relConf, suspConf []struct{}
	dataInd                                    [][]byte
	unitDataInd                                [][]byte
	errorInd                                   []lapdm.MDLErrorCause
	chanConf                                   []rsl.ChanConf
}

func (r *recorder) HandleEstInd(rsl.EstInd)         { r.estInd = append(r.estInd, struct{}{}) }
func (r *recorder) HandleEstConf(rsl.EstConf)       { r.estConf = append(r.estConf, struct{}{}) }
func (r *recorder) HandleDataInd(i rsl.DataInd)     { r.dataInd = append(r.dataInd, i.L3) }
func (r *recorder) HandleUnitDataInd(i rsl.UnitDataInd) {
	r.unitDataInd = append(r.unitDataInd, i.L3)
}
func (r *recorder) HandleRelInd(rsl.RelInd)     { r.relInd = append(r.relInd, struct{}{}) }
func (r *recorder) HandleRelConf(rsl.RelConf)   { r.relConf = append(r.relConf, struct{}{}) }
func (r *recorder) HandleSuspConf(rsl.SuspConf) { r.suspConf = append(r.suspConf, struct{}{}) }
func (r *recorder) HandleErrorInd(i rsl.ErrorInd) {
	r.errorInd = append(r.errorInd, i.Cause)
}
func (r *recorder) HandleChanConf(c rsl.ChanConf) { r.chanConf = append(r.chanConf, c) }

func newTestDL(t *testing.T) (*Datalink, *recorder, *timer.Scheduler) {
	t.Helper()
	rec := &recorder{}
	sched := timer.New()
	dl := New(0, lapdm.PolarityForMode(lapdm.ModeMS), config.Default(), rec, sched, nil)
	return dl, rec, sched
}

func drainFrames(t *testing.T, dl *Datalink) []lapdm.Frame {
	t.Helper()
	var out []lapdm.Frame
	for {
		raw, ok := dl.PopFrame()
		if !ok {
			break
		}
		f, err := lapdm.Decode(raw)
		require.NoError(t, err)
		out = append(out, f)
	}
	return out
}

func TestEstablishmentHandshake(t *testing.T) {
	dl, rec, _ := newTestDL(t)

	err := dl.EstReq(rsl.EstReq{ChanTyp: lapdm.ChannelSDCCH})
	require.NoError(t, err)
	assert.Equal(t, StateSABMSent, dl.State())

	frames := drainFrames(t, dl)
	require.Len(t, frames, 1)
	assert.Equal(t, lapdm.KindU, frames[0].Kind)
	assert.Equal(t, lapdm.USABM, frames[0].U)

	dl.HandleFrame(lapdm.Frame{Kind: lapdm.KindU, U: lapdm.UUA, CR: lapdm.PolarityForMode(lapdm.ModeMS).Rem2LocResp, PF: true})
	assert.Equal(t, StateMFEst, dl.State())
	assert.Len(t, rec.estConf, 1)
	assert.Equal(t, lapdm.Seq(0), dl.vSend)
}

func TestDataReqSegmentsAcrossN201(t *testing.T) {
	dl, _, _ := newTestDL(t)
	require.NoError(t, dl.EstReq(rsl.EstReq{ChanTyp: lapdm.ChannelSDCCH}))
	drainFrames(t, dl)
	polarity := lapdm.PolarityForMode(lapdm.ModeMS)
	dl.HandleFrame(lapdm.Frame{Kind: lapdm.KindU, U: lapdm.UUA, CR: polarity.Rem2LocResp, PF: true})

	// N201 for SDCCH is 20, so a 30-byte message must split into two
	// segments of at most 17 octets of payload each (20-3).
	payload := make([]byte, 30)
	for i := range payload {
		payload[i] = byte(i)
	}
	require.NoError(t, dl.DataReq(rsl.DataReq{L3: payload}))

	frames := drainFrames(t, dl)
	require.Len(t, frames, 1)
	assert.True(t, frames[0].More)
	assert.Equal(t, lapdm.Seq(0), frames[0].NS)
	assert.Len(t, frames[0].Payload, 17)

	// only one I frame outstanding at a time (k=1): acking it lets the
	// second segment go out.
	dl.HandleFrame(lapdm.Frame{Kind: lapdm.KindS, S: lapdm.SRR, CR: polarity.Rem2LocResp, NR: lapdm.Seq(1)})
	frames = drainFrames(t, dl)
	require.Len(t, frames, 1)
	assert.False(t, frames[0].More)
	assert.Equal(t, lapdm.Seq(1), frames[0].NS)
	assert.Equal(t, 13, len(frames[0].Payload))
}

func TestReassemblyDeliversOnFinalSegment(t *testing.T) {
	dl, rec, _ := newTestDL(t)
	require.NoError(t, dl.EstReq(rsl.EstReq{ChanTyp: lapdm.ChannelSDCCH}))
	drainFrames(t, dl)
	polarity := lapdm.PolarityForMode(lapdm.ModeMS)
	dl.HandleFrame(lapdm.Frame{Kind: lapdm.KindU, U: lapdm.UUA, CR: polarity.Rem2LocResp, PF: true})

	// a non-final segment (M=1) must fill the frame: N201-3 = 17 octets on SDCCH
	first := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17}
	second := []byte{18, 19, 20}
	dl.HandleFrame(lapdm.Frame{Kind: lapdm.KindI, CR: polarity.Rem2LocCmd, NS: 0, NR: 0, More: true, Payload: first})
	assert.Empty(t, rec.dataInd)
	dl.HandleFrame(lapdm.Frame{Kind: lapdm.KindI, CR: polarity.Rem2LocCmd, NS: 1, NR: 0, More: false, Payload: second})

	require.Len(t, rec.dataInd, 1)
	assert.Equal(t, append(append([]byte{}, first...), second...), rec.dataInd[0])
}

// TestSequenceErrorLatchesCondition covers a repeated out-of-sequence N(S):
// the first bad frame gets a REJ, a second bad frame while the condition is
// still latched does not.
func TestSequenceErrorLatchesCondition(t *testing.T) {
	dl, _, _ := newTestDL(t)
	require.NoError(t, dl.EstReq(rsl.EstReq{ChanTyp: lapdm.ChannelSDCCH}))
	drainFrames(t, dl)
	polarity := lapdm.PolarityForMode(lapdm.ModeMS)
	dl.HandleFrame(lapdm.Frame{Kind: lapdm.KindU, U: lapdm.UUA, CR: polarity.Rem2LocResp, PF: true})

	dl.HandleFrame(lapdm.Frame{Kind: lapdm.KindI, CR: polarity.Rem2LocCmd, NS: 5, NR: 0, Payload: []byte{1}})
	frames := drainFrames(t, dl)
	require.Len(t, frames, 1)
	assert.Equal(t, lapdm.SREJ, frames[0].S)
	assert.True(t, dl.seqErrCond)

	dl.HandleFrame(lapdm.Frame{Kind: lapdm.KindI, CR: polarity.Rem2LocCmd, NS: 6, NR: 0, Payload: []byte{2}})
	assert.Empty(t, drainFrames(t, dl))
}

func TestT200RetransmitsSABMThenReleases(t *testing.T) {
	dl, rec, sched := newTestDL(t)
	require.NoError(t, dl.EstReq(rsl.EstReq{ChanTyp: lapdm.ChannelSDCCH}))
	drainFrames(t, dl)

	for i := 0; i < int(dl.n200EstRel())+1; i++ {
		deadline, ok := sched.NextDeadline()
		require.True(t, ok)
		sched.Advance(deadline.Add(time.Millisecond))
	}

	assert.Equal(t, StateIdle, dl.State())
	assert.NotEmpty(t, rec.relInd)
	assert.Contains(t, rec.errorInd, lapdm.CauseT200Expired)
}

func TestReleaseInIdleFastPath(t *testing.T) {
	dl, rec, _ := newTestDL(t)
	require.NoError(t, dl.RelReq(rsl.RelReq{Mode: lapdm.ReleaseNormal}))
	assert.Len(t, rec.relConf, 1)
	assert.Empty(t, drainFrames(t, dl))
}

func TestSuspendThenResumeKeepsPendingData(t *testing.T) {
	dl, rec, _ := newTestDL(t)
	require.NoError(t, dl.EstReq(rsl.EstReq{ChanTyp: lapdm.ChannelSDCCH}))
	drainFrames(t, dl)
	polarity := lapdm.PolarityForMode(lapdm.ModeMS)
	dl.HandleFrame(lapdm.Frame{Kind: lapdm.KindU, U: lapdm.UUA, CR: polarity.Rem2LocResp, PF: true})

	require.NoError(t, dl.DataReq(rsl.DataReq{L3: []byte{9, 9, 9}}))
	drainFrames(t, dl) // let the segment go out unacked

	require.NoError(t, dl.SuspReq())
	assert.Equal(t, StateIdle, dl.State())
	assert.Len(t, rec.suspConf, 1)

	require.NoError(t, dl.ResReq(rsl.ResReq{ChanTyp: lapdm.ChannelSDCCH}))
	frames := drainFrames(t, dl)
	require.Len(t, frames, 1)
	assert.Equal(t, lapdm.USABM, frames[0].U)

	dl.HandleFrame(lapdm.Frame{Kind: lapdm.KindU, U: lapdm.UUA, CR: polarity.Rem2LocResp, PF: true})
	assert.Equal(t, StateMFEst, dl.State())
	// the data queued before suspend is still pending and gets resegmented
	frames = drainFrames(t, dl)
	require.Len(t, frames, 1)
	assert.Equal(t, []byte{9, 9, 9}, frames[0].Payload)
}
