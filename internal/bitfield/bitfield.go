// Package bitfield packs and unpacks the address, control and length
// octets of a LAPDm frame (3GPP TS 04.06 §3.2-3.4). It is the single place
// the bit layout is encoded; frame.Encode/frame.Decode are built on top of
// it and nothing else in the module open-codes a shift or mask.
package bitfield

// Address octet: EA(1) | C/R(1) | SAPI(3) | LPD(2) | spare(1), listed from
// bit 0 up to bit 7. EA occupies bit 0 and must be 1 (single-octet address).

// PackAddress builds the address octet from LPD, SAPI and the C/R bit.
func PackAddress(lpd, sapi, cr uint8) byte {
	return byte((lpd&0x3)<<5 | (sapi&0x7)<<2 | (cr&0x1)<<1 | 0x1)
}

// UnpackAddress splits an address octet into LPD, SAPI, C/R and the EA bit.
func UnpackAddress(b byte) (lpd, sapi, cr, ea uint8) {
	lpd = (uint8(b) >> 5) & 0x3
	sapi = (uint8(b) >> 2) & 0x7
	cr = (uint8(b) >> 1) & 0x1
	ea = uint8(b) & 0x1
	return
}

// Control-octet format discriminator, carried in the two low bits.
const (
	CtrlKindI = 0 // xxxxxxx0
	CtrlKindS = 1 // xxxxxx01
	CtrlKindU = 3 // xxxxxx11
)

// ClassifyControl returns one of CtrlKindI/CtrlKindS/CtrlKindU for a raw
// control octet.
func ClassifyControl(b byte) int {
	if b&0x1 == 0 {
		return CtrlKindI
	}
	if b&0x3 == 0x1 {
		return CtrlKindS
	}
	return CtrlKindU
}

// PackControlI builds an I-format control octet: N(R)(3)|P(1)|N(S)(3)|0.
func PackControlI(nr, ns uint8, p bool) byte {
	return byte((nr&0x7)<<5 | b2u(p)<<4 | (ns&0x7)<<1)
}

// UnpackControlI reads N(R), N(S) and P back out of an I-format control octet.
func UnpackControlI(b byte) (nr, ns uint8, p bool) {
	nr = (uint8(b) >> 5) & 0x7
	p = (uint8(b)>>4)&0x1 == 1
	ns = (uint8(b) >> 1) & 0x7
	return
}

// PackControlS builds an S-format control octet: N(R)(3)|P/F(1)|SS(2)|01.
func PackControlS(nr, ss uint8, pf bool) byte {
	return byte((nr&0x7)<<5 | b2u(pf)<<4 | (ss&0x3)<<2 | 0x1)
}

// UnpackControlS reads N(R), SS and P/F out of an S-format control octet.
func UnpackControlS(b byte) (nr, ss uint8, pf bool) {
	nr = (uint8(b) >> 5) & 0x7
	pf = (uint8(b)>>4)&0x1 == 1
	ss = (uint8(b) >> 2) & 0x3
	return
}

// PackControlU builds a U-format control octet: M(3)|P/F(1)|M(2)|11, where
// the caller supplies the 5-bit M-field value already split by the 0x1C/0x03
// boundary used on the wire (see the U-frame constants in this package).
func PackControlU(m uint8, pf bool) byte {
	return byte((m&0x1c)<<(5-2) | b2u(pf)<<4 | (m&0x3)<<2 | 0x3)
}

// UnpackControlU reads the M-field and P/F bit out of a U-format control octet.
func UnpackControlU(b byte) (m uint8, pf bool) {
	m = (uint8(b)&0xc)>>2 | (uint8(b)&0xe0)>>3
	pf = (uint8(b)>>4)&0x1 == 1
	return
}

// U-frame M-field values (TS 04.06 Table 4).
const (
	USABM = 0x07
	UDM   = 0x03
	UUI   = 0x00
	UDISC = 0x08
	UUA   = 0x0C
)

// S-frame SS-field values (TS 04.06 §3.4.3).
const (
	SRR  = 0x0
	SRNR = 0x1
	SREJ = 0x2
)

// PackLength builds the length octet: L(6)|M(1)|EL(1). EL is always 1
// (single-octet length, no multi-octet length extension).
func PackLength(l uint8, m bool) byte {
	return byte((l&0x3f)<<2 | b2u(m)<<1 | 0x1)
}

// UnpackLength splits a length octet into L, M and EL.
func UnpackLength(b byte) (l uint8, m bool, el uint8) {
	l = (uint8(b) >> 2) & 0x3f
	m = (uint8(b)>>1)&0x1 == 1
	el = uint8(b) & 0x1
	return
}

func b2u(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
