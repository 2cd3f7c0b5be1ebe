package lapdm

import (
	"bytes"
	"testing"
)

func TestEncodeDecodeIFrame(t *testing.T) {
	f := Frame{
		SAPI:    3,
		Kind:    KindI,
		CR:      1,
		NS:      2,
		NR:      5,
		PF:      true,
		More:    true,
		Payload: []byte{0xaa, 0xbb, 0xcc},
	}
	raw, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.SAPI != f.SAPI || got.Kind != f.Kind || got.CR != f.CR ||
		got.NS != f.NS || got.NR != f.NR || got.PF != f.PF || got.More != f.More {
		t.Fatalf("roundtrip mismatch: got %+v, want %+v", got, f)
	}
	if !bytes.Equal(got.Payload, f.Payload) {
		t.Fatalf("payload mismatch: got %v, want %v", got.Payload, f.Payload)
	}
}

func TestEncodeDecodeUFrame(t *testing.T) {
	f := Frame{SAPI: 0, Kind: KindU, U: USABM, CR: 0, PF: true}
	raw, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Kind != KindU || got.U != USABM || !got.PF {
		t.Fatalf("unexpected decode: %+v", got)
	}
}

func TestEncodeDecodeSFrame(t *testing.T) {
	f := Frame{SAPI: 0, Kind: KindS, S: SREJ, NR: 4, PF: true}
	raw, err := Encode(f)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Kind != KindS || got.S != SREJ || got.NR != 4 || !got.PF {
		t.Fatalf("unexpected decode: %+v", got)
	}
}

func TestEncodeRejectsSAPIOutOfRange(t *testing.T) {
	_, err := Encode(Frame{SAPI: 8, Kind: KindU, U: USABM})
	if err == nil {
		t.Fatalf("expected an error for SAPI 8")
	}
}

func TestEncodeRejectsOversizePayload(t *testing.T) {
	_, err := Encode(Frame{Kind: KindI, Payload: make([]byte, 64)})
	if err == nil {
		t.Fatalf("expected an error for a 64-octet payload")
	}
}

func TestDecodeRejectsShortFrame(t *testing.T) {
	_, err := Decode([]byte{0x01, 0x02})
	if err == nil {
		t.Fatalf("expected an error for a 2-octet buffer")
	}
}

func TestDecodeRejectsTruncatedPayload(t *testing.T) {
	raw, err := Encode(Frame{Kind: KindI, Payload: []byte{1, 2, 3}})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	_, err = Decode(raw[:len(raw)-1])
	if err == nil {
		t.Fatalf("expected an error for a truncated payload")
	}
}
