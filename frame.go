package lapdm

import (
	"fmt"

	"github.com/osmocom-go/lapdm/internal/bitfield"
)

// Kind distinguishes the three LAPDm control-octet formats (TS 04.06 §3.4).
type Kind uint8

const (
	KindI Kind = iota // Information
	KindS             // Supervisory
	KindU             // Unnumbered
)

func (k Kind) String() string {
	switch k {
	case KindI:
		return "I"
	case KindS:
		return "S"
	case KindU:
		return "U"
	default:
		return "?"
	}
}

// UType enumerates the unnumbered-frame variants.
type UType uint8

const (
	USABM UType = bitfield.USABM
	UDM   UType = bitfield.UDM
	UUI   UType = bitfield.UUI
	UDISC UType = bitfield.UDISC
	UUA   UType = bitfield.UUA
)

func (u UType) String() string {
	switch u {
	case USABM:
		return "SABM"
	case UDM:
		return "DM"
	case UUI:
		return "UI"
	case UDISC:
		return "DISC"
	case UUA:
		return "UA"
	default:
		return fmt.Sprintf("U(%#x)", uint8(u))
	}
}

// SType enumerates the supervisory-frame variants.
type SType uint8

const (
	SRR  SType = bitfield.SRR
	SRNR SType = bitfield.SRNR
	SREJ SType = bitfield.SREJ
)

func (s SType) String() string {
	switch s {
	case SRR:
		return "RR"
	case SRNR:
		return "RNR"
	case SREJ:
		return "REJ"
	default:
		return fmt.Sprintf("S(%#x)", uint8(s))
	}
}

// Link-protocol discriminator values for the address octet.
const (
	LPDNormal = 0
	LPDSMSCB  = 1
)

// Format identifies how a frame was (or will be) wrapped for the air
// interface, per §4.2. Entity and Channel do not consult it: Entity
// decodes every block as format A/B, and Channel strips or prepends the
// B4 header by link id.
type Format uint8

const (
	FormatA    Format = iota // full address+control+length, no payload
	FormatB                  // full address+control+length, with payload
	FormatBbis               // broadcast/paging: no address octet, UI only
	FormatBter               // short header variant -- unimplemented (§4.2)
	FormatB4                 // SACCH: two-octet L1 header (MS power, TA) precedes the frame
)

func (f Format) String() string {
	switch f {
	case FormatA:
		return "A"
	case FormatB:
		return "B"
	case FormatBbis:
		return "Bbis"
	case FormatBter:
		return "Bter"
	case FormatB4:
		return "B4"
	default:
		return "?"
	}
}

// Frame is the typed representation of a LAPDm link-layer frame. Exactly one
// of the Kind-specific field groups is meaningful at a time, per Kind.
// tx_hist slots store the encoded byte slice of a Frame, not the Frame
// itself (see pkg/datalink).
type Frame struct {
	SAPI    uint8
	LPD     uint8
	CR      uint8 // command/response bit as it will be transmitted
	Kind    Kind
	U       UType // valid iff Kind == KindU
	S       SType // valid iff Kind == KindS
	NS      Seq   // valid iff Kind == KindI
	NR      Seq   // valid iff Kind == KindI or KindS
	PF      bool  // P-bit on a command, F-bit on a response
	More    bool  // length-octet M-bit: more segments follow
	Payload []byte
}

// Encode packs f into its wire octets: address, control, length, payload.
// It never pads to N201 -- padding to the channel's block size is an Entity
// concern (§4.2), not a frame-encoding one.
func Encode(f Frame) ([]byte, error) {
	if f.SAPI > 7 {
		return nil, fmt.Errorf("%w: SAPI %d out of range", ErrIllegalArgument, f.SAPI)
	}
	addr := bitfield.PackAddress(f.LPD, f.SAPI, f.CR)

	var ctrl byte
	switch f.Kind {
	case KindI:
		ctrl = bitfield.PackControlI(uint8(f.NR), uint8(f.NS), f.PF)
	case KindS:
		ctrl = bitfield.PackControlS(uint8(f.NR), uint8(f.S), f.PF)
	case KindU:
		ctrl = bitfield.PackControlU(uint8(f.U), f.PF)
	default:
		return nil, fmt.Errorf("%w: kind %v", ErrIllegalArgument, f.Kind)
	}

	if len(f.Payload) > 63 {
		return nil, fmt.Errorf("%w: payload of %d octets exceeds the 6-bit length field", ErrIllegalArgument, len(f.Payload))
	}
	length := bitfield.PackLength(uint8(len(f.Payload)), f.More)

	out := make([]byte, 0, 3+len(f.Payload))
	out = append(out, addr, ctrl, length)
	out = append(out, f.Payload...)
	return out, nil
}

// Decode unpacks a wire buffer (as delivered by L1, already stripped of any
// B4 L1 header by the caller) into a Frame. It does not validate protocol
// semantics (e.g. "DISC with payload") -- that belongs to the datalink
// state machine (§7); Decode only validates the bit-level invariants that
// make the rest of the frame unparseable if violated (EA, EL).
func Decode(raw []byte) (Frame, error) {
	if len(raw) < 3 {
		return Frame{}, fmt.Errorf("%w: got %d octets, need at least 3", ErrShortFrame, len(raw))
	}

	lpd, sapi, cr, ea := bitfield.UnpackAddress(raw[0])
	if ea != 1 {
		return Frame{}, fmt.Errorf("%w: EA bit is 0, multi-octet address unsupported", ErrUnsupportedFmt)
	}

	f := Frame{SAPI: sapi, LPD: lpd, CR: cr}

	ctrl := raw[1]
	switch bitfield.ClassifyControl(ctrl) {
	case bitfield.CtrlKindI:
		f.Kind = KindI
		nr, ns, p := bitfield.UnpackControlI(ctrl)
		f.NR, f.NS, f.PF = Seq(nr), Seq(ns), p
	case bitfield.CtrlKindS:
		f.Kind = KindS
		nr, ss, pf := bitfield.UnpackControlS(ctrl)
		f.NR, f.S, f.PF = Seq(nr), SType(ss), pf
	default:
		f.Kind = KindU
		m, pf := bitfield.UnpackControlU(ctrl)
		f.U, f.PF = UType(m), pf
	}

	l, more, el := bitfield.UnpackLength(raw[2])
	if el != 1 {
		return Frame{}, fmt.Errorf("%w: EL bit is 0, length extension unsupported", ErrUnsupportedFmt)
	}
	f.More = more

	payloadEnd := 3 + int(l)
	if payloadEnd > len(raw) {
		return Frame{}, fmt.Errorf("%w: length field %d exceeds %d remaining octets", ErrShortFrame, l, len(raw)-3)
	}
	if l > 0 {
		f.Payload = append([]byte(nil), raw[3:payloadEnd]...)
	}
	return f, nil
}
