package types

import "testing"

func TestRange_ResolveWholeObject(t *testing.T) {
	start, end := WholeRange().Resolve(100)
	if start != 0 || end != 100 {
		t.Fatalf("got [%d,%d), want [0,100)", start, end)
	}
}

func TestRange_ResolveSuffixClampsToSize(t *testing.T) {
	start, end := SuffixRange(500).Resolve(100)
	if start != 0 || end != 100 {
		t.Fatalf("suffix larger than object should clamp to [0,100), got [%d,%d)", start, end)
	}

	start, end = SuffixRange(10).Resolve(100)
	if start != 90 || end != 100 {
		t.Fatalf("got [%d,%d), want [90,100)", start, end)
	}
}

func TestRange_ResolveExplicitWindowClampsEnd(t *testing.T) {
	start, end := NewRange(50, 1000).Resolve(100)
	if start != 50 || end != 100 {
		t.Fatalf("window end beyond size should clamp to 100, got [%d,%d)", start, end)
	}
}

func TestRange_ResolveOpenEnded(t *testing.T) {
	start, end := RangeFrom(30).Resolve(100)
	if start != 30 || end != 100 {
		t.Fatalf("got [%d,%d), want [30,100)", start, end)
	}
}

func TestRange_HeaderRoundTrip(t *testing.T) {
	tests := []Range{
		NewRange(0, 100),
		RangeFrom(50),
		SuffixRange(20),
	}
	for _, r := range tests {
		header := r.Header()
		parsed, err := ParseRangeHeader(header)
		if err != nil {
			t.Fatalf("ParseRangeHeader(%q): %v", header, err)
		}
		const size = 1000
		wantStart, wantEnd := r.Resolve(size)
		gotStart, gotEnd := parsed.Resolve(size)
		if wantStart != gotStart || wantEnd != gotEnd {
			t.Fatalf("round trip mismatch for %q: want [%d,%d), got [%d,%d)", header, wantStart, wantEnd, gotStart, gotEnd)
		}
	}
}

func TestRange_HeaderFullRangeIsEmpty(t *testing.T) {
	if got := WholeRange().Header(); got != "" {
		t.Fatalf("expected empty header for the whole range, got %q", got)
	}
}

func TestRange_Shift(t *testing.T) {
	shifted := NewRange(10, 20).Shift(5)
	start, end := shifted.Resolve(1000)
	if start != 15 || end != 35 {
		t.Fatalf("got [%d,%d), want [15,35)", start, end)
	}
}

func TestRange_Truncate(t *testing.T) {
	truncated := RangeFrom(10).Truncate(5)
	start, end := truncated.Resolve(1000)
	if start != 10 || end != 15 {
		t.Fatalf("got [%d,%d), want [10,15)", start, end)
	}
}

func TestParseRangeHeader_RejectsUnsupportedUnit(t *testing.T) {
	if _, err := ParseRangeHeader("items=0-1"); err == nil {
		t.Fatal("expected an error for a non-bytes unit")
	}
}

func TestParseRangeHeader_RejectsMalformed(t *testing.T) {
	if _, err := ParseRangeHeader("bytes=abc-def"); err == nil {
		t.Fatal("expected an error for a malformed range header")
	}
}
