// Package l1 defines the PH-SAP primitives and Bus abstraction at the L1
// boundary (§6 "PH-SAP primitives"). Physical-layer burst encoding, CRC and
// convolutional coding are explicitly out of scope (§1); a Bus moves
// already-decoded, already-deinterleaved octet blocks.
package l1

// Block is one already-deinterleaved Layer 1 octet block, always exactly
// N201+3 octets for a full/half-rate channel once padded (§6 "Wire format").
type Block []byte

// DataInd/DataReq carry a block up from, or down to, L1.
type DataInd struct {
	ChanNr uint8
	LinkID uint8
	Block  Block
}

type DataReq struct {
	ChanNr uint8
	LinkID uint8
	Block  Block
}

// RachReq requests a RACH burst be sent, decoded from a CHAN_RQD message
// (§4.3).
type RachReq struct {
	RA             uint8
	Offset         uint16
	IsCombinedCCCH bool
	TA             int8
	TxPower        uint8
}

// RachConf reports the GSM frame number the RACH burst was actually sent
// on, so the Channel can build the CHAN_CONF request-reference IE.
type RachConf struct {
	FrameNumber uint32
}

// EmptyFrameReq asks L1 to send a filler frame because nothing was queued
// (§6 "Flags", EMPTY_FRAME).
type EmptyFrameReq struct {
	ChanNr uint8
	LinkID uint8
}

// Listener is implemented by the Entity/Channel to receive upward PH-SAP
// primitives from a Bus.
type Listener interface {
	// HandlePHData delivers an inbound data block.
	HandlePHData(DataInd)
	// HandlePHRTS signals L1 is ready to send on the given channel/link
	// and wants a block (or an EmptyFrameReq) in return.
	HandlePHRTS(chanNr, linkID uint8)
	// HandlePHRachConf delivers the outcome of a RachReq.
	HandlePHRachConf(RachConf)
}

// Bus is the downward L1 transport a Channel/Entity is constructed with.
// Implementations bridge to real hardware, or (see the virtual
// subpackage) to an in-process test double.
type Bus interface {
	Send(DataReq) error
	SendEmptyFrame(EmptyFrameReq) error
	SendRach(RachReq) error
	// Subscribe registers the upward listener and returns a cancel func,
	// mirroring BusManager.Subscribe's cancel-func pattern.
	Subscribe(Listener) (cancel func(), err error)
}
