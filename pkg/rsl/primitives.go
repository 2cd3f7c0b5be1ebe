// Package rsl defines the RLL (Radio Link Layer) and COM_CHAN primitives
// exchanged between the LAPDm engine and L3, and the CHAN_RQD/CHAN_CONF
// messages used for common-channel signalling (§6). Per
// §1's scope, the RSL transport itself -- the byte-level envelope that
// would carry these across a real Abis link -- is out of scope; these are
// plain Go structs, the "typed message envelope" the spec calls for.
package rsl

import "github.com/osmocom-go/lapdm"

// LinkID carries the SAPI and the DCCH/ACCH selector bit (§4.3) that
// addresses a downward request to the right Entity and Datalink.
type LinkID struct {
	SAPI uint8
	ACCH bool // link_id & 0x40: route to the ACCH entity instead of DCCH
}

// ChanNr is the RSL channel-number IE; it is opaque to this module beyond
// being echoed back on confirmations and carried in PH-SAP primitives.
type ChanNr uint8

// --- Downward (L3 -> Datalink) requests ---

type EstReq struct {
	ChanNr  ChanNr
	Link    LinkID
	L3      []byte // optional contention-resolution payload
	ChanTyp lapdm.ChannelType
}

type DataReq struct {
	ChanNr ChanNr
	Link   LinkID
	L3     []byte
}

type UnitDataReq struct {
	ChanNr        ChanNr
	Link          LinkID
	L3            []byte
	TxPower       uint8
	TimingAdvance uint8
}

type SuspReq struct {
	ChanNr ChanNr
	Link   LinkID
}

type ResReq struct {
	ChanNr  ChanNr
	Link    LinkID
	L3      []byte
	ChanTyp lapdm.ChannelType
}

type ReconReq struct {
	ChanNr  ChanNr
	Link    LinkID
	L3      []byte
	ChanTyp lapdm.ChannelType
}

type RelReq struct {
	ChanNr ChanNr
	Link   LinkID
	Mode   lapdm.ReleaseMode
}

// ChanRqd carries a CHANNEL REQUIRED common-channel message requesting a
// RACH transmission (§4.3).
type ChanRqd struct {
	RA              uint8
	Offset          uint16
	IsCombinedCCCH  bool
	AccessDelay     uint8
	MSPower         uint8
}

// --- Upward (Datalink -> L3) indications/confirmations ---

type EstInd struct {
	Link LinkID
	L3   []byte
}

type EstConf struct {
	Link LinkID
}

type DataInd struct {
	Link LinkID
	L3   []byte
}

type UnitDataInd struct {
	Link          LinkID
	L3            []byte
	TimingAdvance uint8 // only meaningful on SACCH (B4 format)
	MSPower       uint8
}

type RelInd struct {
	Link LinkID
}

type RelConf struct {
	Link LinkID
}

type SuspConf struct {
	Link LinkID
}

// ErrorInd reports a protocol-level MDL-ERROR-INDICATION (§7 "Protocol
// errors"). It is never returned as a Go error; it is delivered through
// the same upward channel as the other primitives.
type ErrorInd struct {
	Link  LinkID
	Cause lapdm.MDLErrorCause
}

// ChanConf carries the CHANNEL CONFIRM common-channel message sent after
// L1 reports a successful RACH (§4.3).
type ChanConf struct {
	T1, T2, T3 uint8
}

// Upward is the callback interface a caller (L3) implements to receive
// primitives from the engine. A nil method receiver is never invoked --
// Channel/Entity/Datalink call through a non-nil Upward supplied at
// construction time.
type Upward interface {
	HandleEstInd(EstInd)
	HandleEstConf(EstConf)
	HandleDataInd(DataInd)
	HandleUnitDataInd(UnitDataInd)
	HandleRelInd(RelInd)
	HandleRelConf(RelConf)
	HandleSuspConf(SuspConf)
	HandleErrorInd(ErrorInd)
	HandleChanConf(ChanConf)
}
