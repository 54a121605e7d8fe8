package ezusb

import "testing"

func TestIsExternal(t *testing.T) {
	testCases := []struct {
		descr  string
		chip   Chip
		addr   uint32
		length int
		want   bool
	}{
		{"FX2 last on-chip byte", FX2, 0x1FFF, 1, false},
		{"FX2 range crosses code boundary", FX2, 0x1FFF, 2, true},
		{"FX2 last scratch byte", FX2, 0xE1FF, 1, false},
		{"FX2 past scratch", FX2, 0xE200, 1, true},
		{"FX2 whole scratch window", FX2, 0xE000, 0x200, false},
		{"FX2 scratch overrun", FX2, 0xE000, 0x201, true},
		{"FX2 full code RAM", FX2, 0x0000, 0x2000, false},
		{"FX2 between windows", FX2, 0x8000, 1, true},
		{"FX2LP boundary moves to 0x3fff", FX2LP, 0x3FFF, 1, false},
		{"FX2LP crosses boundary", FX2LP, 0x3FFF, 2, true},
		{"FX2LP above FX2 boundary still internal", FX2LP, 0x2000, 1, false},
		{"AN21 last on-chip byte", AN21, 0x1B3F, 1, false},
		{"AN21 crosses boundary", AN21, 0x1B3F, 2, true},
		{"AN21 past boundary", AN21, 0x1B40, 1, true},
		{"FX mirrors AN21", FX, 0x1B3F, 1, false},
		{"FX crosses boundary", FX, 0x1B3F, 2, true},
		{"FX3 has no external memory split", FX3, 0xFFFF0000, 4096, false},
	}

	for _, tc := range testCases {
		if got := tc.chip.IsExternal(tc.addr, tc.length); got != tc.want {
			t.Fatalf("Test %q: IsExternal(0x%x, %d) = %t, want %t",
				tc.descr, tc.addr, tc.length, got, tc.want)
		}
	}
}

func TestCPUCS(t *testing.T) {
	testCases := []struct {
		chip    Chip
		want    uint32
		wantHas bool
	}{
		{AN21, 0x7F92, true},
		{FX, 0x7F92, true},
		{FX2, 0xE600, true},
		{FX2LP, 0xE600, true},
		{FX3, 0, false},
	}
	for _, tc := range testCases {
		addr, has := tc.chip.CPUCS()
		if addr != tc.want || has != tc.wantHas {
			t.Fatalf("Test %q: CPUCS() = (0x%x, %t), want (0x%x, %t)",
				tc.chip, addr, has, tc.want, tc.wantHas)
		}
	}
}

func TestParseChip(t *testing.T) {
	for _, name := range []string{"an21", "fx", "fx2", "fx2lp", "fx3"} {
		chip, err := ParseChip(name)
		if err != nil {
			t.Fatalf("ParseChip(%q): %v", name, err)
		}
		if chip.String() != name {
			t.Fatalf("ParseChip(%q).String() = %q", name, chip.String())
		}
	}
	if _, err := ParseChip("8051"); err == nil {
		t.Fatalf("ParseChip accepted an unknown type")
	}
}

func TestIICFirstByte(t *testing.T) {
	testCases := []struct {
		chip    Chip
		want    byte
		wantHas bool
	}{
		{FX2, 0xC2, true},
		{FX2LP, 0xC2, true},
		{AN21, 0xB2, true},
		{FX, 0xB6, true},
		{FX3, 0, false},
	}
	for _, tc := range testCases {
		b, has := tc.chip.IICFirstByte()
		if b != tc.want || has != tc.wantHas {
			t.Fatalf("Test %q: IICFirstByte() = (0x%02x, %t), want (0x%02x, %t)",
				tc.chip, b, has, tc.want, tc.wantHas)
		}
	}
}
