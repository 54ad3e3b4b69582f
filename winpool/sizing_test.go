package winpool

import "testing"

func TestSizeBricksMappingDisabledWhenNoMemory(t *testing.T) {
	b, n, off := sizeBricks(900, 9, 0, NoOpMonitor{})
	if b != 0 || n != 0 || !off {
		t.Fatalf("got (%d, %d, %v), want (0, 0, true)", b, n, off)
	}
}

func TestSizeBricksMappingDisabledBelowMinimum(t *testing.T) {
	// 10*pageSize is the floor; anything strictly under it disables mapping.
	b, n, off := sizeBricks(900, 9, 8, NoOpMonitor{})
	if b != 0 || n != 0 || !off {
		t.Fatalf("got (%d, %d, %v), want (0, 0, true)", b, n, off)
	}
}

func TestSizeBricksAtMinimumMemoryStaysEnabled(t *testing.T) {
	b, n, off := sizeBricks(900, 9, 90, NoOpMonitor{})
	if off {
		t.Fatalf("mapping unexpectedly disabled at mem == 10*pageSize")
	}
	if b != 9 {
		t.Fatalf("brick size = %d, want 9", b)
	}
	if n != 10000 {
		t.Fatalf("brick count = %d, want 10000", n)
	}
}

func TestSizeBricksLargeFileClampsToMaxBrickCount(t *testing.T) {
	b, n, off := sizeBricks(10_000_000_000, 33, 10_000_000, NoOpMonitor{})
	if off {
		t.Fatalf("mapping unexpectedly disabled")
	}
	if n != MaxBrickCount {
		t.Fatalf("brick count = %d, want clamp to %d", n, MaxBrickCount)
	}
	if b != 99990 {
		t.Fatalf("brick size = %d, want 99990", b)
	}
}

func TestSizeBricksMemCoversWholeFile(t *testing.T) {
	b, n, off := sizeBricks(1000, 10, 2000, NoOpMonitor{})
	if off {
		t.Fatalf("mapping unexpectedly disabled")
	}
	if b <= 0 || n <= 0 {
		t.Fatalf("expected a positive brick layout, got size=%d count=%d", b, n)
	}
}

func TestSizeBricksEmptyFileOnlyMemory(t *testing.T) {
	b, n, off := sizeBricks(0, 10, 1000, NoOpMonitor{})
	if off {
		t.Fatalf("mapping unexpectedly disabled")
	}
	if n != 0 {
		t.Fatalf("brick count = %d, want 0 for an empty file", n)
	}
	if b < 10 {
		t.Fatalf("brick size = %d, want at least one page", b)
	}
}

func TestRoundToBrickMultiple(t *testing.T) {
	cases := []struct{ x, r, want int64 }{
		{0, 9, 9},
		{8, 9, 9},
		{9, 9, 9},
		{100, 9, 99},
		{1000, 33, 990},
	}
	for _, c := range cases {
		got := roundToBrickMultiple(c.x, c.r)
		if got != c.want {
			t.Errorf("roundToBrickMultiple(%d, %d) = %d, want %d", c.x, c.r, got, c.want)
		}
	}
}

func TestCeilDiv(t *testing.T) {
	cases := []struct{ a, b, want int64 }{
		{0, 5, 0},
		{10, 5, 2},
		{11, 5, 3},
		{900000, 90, 10000},
	}
	for _, c := range cases {
		got := ceilDiv(c.a, c.b)
		if got != c.want {
			t.Errorf("ceilDiv(%d, %d) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}
