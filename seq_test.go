package lapdm

import "testing"

func TestSeqIncrWraps(t *testing.T) {
	if got := Seq(7).Incr(); got != Seq(0) {
		t.Fatalf("Seq(7).Incr() = %v, want 0", got)
	}
	if got := Seq(3).Incr(); got != Seq(4) {
		t.Fatalf("Seq(3).Incr() = %v, want 4", got)
	}
}

func TestSeqAddSub(t *testing.T) {
	if got := Seq(6).Add(3); got != Seq(1) {
		t.Fatalf("Seq(6).Add(3) = %v, want 1", got)
	}
	if got := Seq(1).Sub(3); got != Seq(6) {
		t.Fatalf("Seq(1).Sub(3) = %v, want 6", got)
	}
}

func TestSeqDistance(t *testing.T) {
	cases := []struct {
		from, to Seq
		want     uint8
	}{
		{0, 0, 0},
		{0, 1, 1},
		{7, 0, 1},
		{2, 0, 6},
	}
	for _, c := range cases {
		if got := c.from.Distance(c.to); got != c.want {
			t.Fatalf("Seq(%d).Distance(%d) = %d, want %d", c.from, c.to, got, c.want)
		}
	}
}

func TestSeqInWindow(t *testing.T) {
	if !Seq(1).InWindow(0, 3) {
		t.Fatalf("expected Seq(1) to be inside window [0,3)")
	}
	if Seq(3).InWindow(0, 3) {
		t.Fatalf("expected Seq(3) to be outside window [0,3)")
	}
	if !Seq(0).InWindow(6, 3) {
		t.Fatalf("expected Seq(0) to be inside wrapping window [6,9)")
	}
}
