package image

import (
	"bytes"
	"testing"
)

func TestParseBin(t *testing.T) {
	input := make([]byte, 10000)
	for i := range input {
		input[i] = byte(i * 7)
	}

	var got []Segment
	if err := ParseBin(bytes.NewReader(input), nil, collect(&got)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantAddrs := []uint32{0, 4096, 8192}
	wantLens := []int{4096, 4096, 1808}
	if len(got) != len(wantAddrs) {
		t.Fatalf("got %d segments, want %d", len(got), len(wantAddrs))
	}
	var rebuilt []byte
	for i, seg := range got {
		if seg.Addr != wantAddrs[i] || len(seg.Data) != wantLens[i] {
			t.Fatalf("segment %d: got addr 0x%x len %d, want addr 0x%x len %d",
				i, seg.Addr, len(seg.Data), wantAddrs[i], wantLens[i])
		}
		rebuilt = append(rebuilt, seg.Data...)
	}
	if !bytes.Equal(rebuilt, input) {
		t.Fatalf("reassembled segments do not match the input stream")
	}
}

func TestParseBinEmpty(t *testing.T) {
	pokes := 0
	err := ParseBin(bytes.NewReader(nil), nil, func(addr uint32, external bool, data []byte) error {
		pokes++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pokes != 0 {
		t.Fatalf("got %d pokes for an empty stream, want 0", pokes)
	}
}

func TestDetectType(t *testing.T) {
	testCases := []struct {
		path    string
		want    Type
		wantErr bool
	}{
		{"firmware.hex", TypeHex, false},
		{"firmware.IHX", TypeHex, false},
		{"vend_ax.iic", TypeIIC, false},
		{"ram.bix", TypeBix, false},
		{"boot.img", TypeImg, false},
		{"firmware.elf", 0, true},
	}
	for _, tc := range testCases {
		got, err := DetectType(tc.path)
		if (err != nil) != tc.wantErr {
			t.Fatalf("Test %q: error %v, wantErr %t", tc.path, err, tc.wantErr)
		}
		if err == nil && got != tc.want {
			t.Fatalf("Test %q: got %v, want %v", tc.path, got, tc.want)
		}
	}
}
