package image

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// hexRecord builds one data record with a valid checksum.
func hexRecord(addr uint16, data []byte) string {
	var b strings.Builder
	sum := byte(len(data)) + byte(addr>>8) + byte(addr)
	fmt.Fprintf(&b, ":%02X%04X00", len(data), addr)
	for _, d := range data {
		fmt.Fprintf(&b, "%02X", d)
		sum += d
	}
	fmt.Fprintf(&b, "%02X", 0-sum)
	return b.String()
}

const hexEOF = ":00000001FF"

func collect(segs *[]Segment) PokeFunc {
	return func(addr uint32, external bool, data []byte) error {
		*segs = append(*segs, Segment{Addr: addr, External: external, Data: append([]byte(nil), data...)})
		return nil
	}
}

func TestParseHexSegments(t *testing.T) {
	testCases := []struct {
		descr string
		input string
		want  []Segment
	}{
		{
			descr: "single record",
			input: hexRecord(0x1000, []byte{1, 2, 3}) + "\n" + hexEOF + "\n",
			want:  []Segment{{Addr: 0x1000, Data: []byte{1, 2, 3}}},
		},
		{
			descr: "contiguous records merge",
			input: hexRecord(0x1000, []byte{1, 2, 3}) + "\n" + hexRecord(0x1003, []byte{4, 5, 6}) + "\n" + hexEOF + "\n",
			want:  []Segment{{Addr: 0x1000, Data: []byte{1, 2, 3, 4, 5, 6}}},
		},
		{
			descr: "address gap flushes",
			input: hexRecord(0x1000, []byte{1, 2}) + "\n" + hexRecord(0x1010, []byte{3, 4}) + "\n" + hexEOF + "\n",
			want: []Segment{
				{Addr: 0x1000, Data: []byte{1, 2}},
				{Addr: 0x1010, Data: []byte{3, 4}},
			},
		},
		{
			descr: "comment lines skipped",
			input: "# copyright notice\n" + hexRecord(0x0, []byte{0xAA}) + "\n# trailing comment\n" + hexEOF + "\n",
			want:  []Segment{{Addr: 0, Data: []byte{0xAA}}},
		},
		{
			descr: "missing EOF record still flushes",
			input: hexRecord(0x2000, []byte{9}) + "\n",
			want:  []Segment{{Addr: 0x2000, Data: []byte{9}}},
		},
		{
			descr: "CRLF line endings",
			input: hexRecord(0x10, []byte{7, 8}) + "\r\n" + hexEOF + "\r\n",
			want:  []Segment{{Addr: 0x10, Data: []byte{7, 8}}},
		},
		{
			descr: "records after EOF ignored",
			input: hexRecord(0x10, []byte{1}) + "\n" + hexEOF + "\n" + hexRecord(0x20, []byte{2}) + "\n",
			want:  []Segment{{Addr: 0x10, Data: []byte{1}}},
		},
	}

	for _, tc := range testCases {
		var got []Segment
		if err := ParseHex(strings.NewReader(tc.input), nil, collect(&got)); err != nil {
			t.Fatalf("Test %q: unexpected error: %v", tc.descr, err)
		}
		if len(got) != len(tc.want) {
			t.Fatalf("Test %q: got %d segments, want %d", tc.descr, len(got), len(tc.want))
		}
		for i := range got {
			if got[i].Addr != tc.want[i].Addr || !bytes.Equal(got[i].Data, tc.want[i].Data) {
				t.Fatalf("Test %q: segment %d: got {0x%04x %x}, want {0x%04x %x}",
					tc.descr, i, got[i].Addr, got[i].Data, tc.want[i].Addr, tc.want[i].Data)
			}
		}
	}
}

func TestParseHexMergeLimit(t *testing.T) {
	// Four 255-byte records fill the merge buffer to 1020 bytes; a fifth
	// contiguous 4-byte record would push it past 1023 and must flush.
	var b strings.Builder
	addr := uint16(0)
	big := make([]byte, 255)
	for i := 0; i < 4; i++ {
		b.WriteString(hexRecord(addr, big) + "\n")
		addr += 255
	}
	b.WriteString(hexRecord(addr, []byte{1, 2, 3, 4}) + "\n")
	b.WriteString(hexEOF + "\n")

	var got []Segment
	if err := ParseHex(strings.NewReader(b.String()), nil, collect(&got)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d segments, want 2", len(got))
	}
	if got[0].Addr != 0 || len(got[0].Data) != 1020 {
		t.Fatalf("first segment: got addr 0x%x len %d, want addr 0 len 1020", got[0].Addr, len(got[0].Data))
	}
	if got[1].Addr != 1020 || len(got[1].Data) != 4 {
		t.Fatalf("second segment: got addr 0x%x len %d, want addr 1020 len 4", got[1].Addr, len(got[1].Data))
	}
}

func TestParseHexClassify(t *testing.T) {
	// Classification happens on the merged segment, not per record.
	input := hexRecord(0x1FFE, []byte{1}) + "\n" + hexRecord(0x1FFF, []byte{2, 3}) + "\n" + hexEOF + "\n"
	var gotAddr uint32
	var gotLen int
	classify := func(addr uint32, length int) bool {
		gotAddr, gotLen = addr, length
		return true
	}
	var got []Segment
	if err := ParseHex(strings.NewReader(input), classify, collect(&got)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAddr != 0x1FFE || gotLen != 3 {
		t.Fatalf("classifier saw (0x%x, %d), want (0x1ffe, 3)", gotAddr, gotLen)
	}
	if len(got) != 1 || !got[0].External {
		t.Fatalf("expected one external segment, got %+v", got)
	}
}

func TestParseHexChecksumNotValidated(t *testing.T) {
	// The record checksum byte is read but never verified, matching the
	// original tool.
	input := ":03100000010203FF\n" + hexEOF + "\n"
	var got []Segment
	if err := ParseHex(strings.NewReader(input), nil, collect(&got)); err != nil {
		t.Fatalf("record with bad checksum rejected: %v", err)
	}
	if len(got) != 1 || !bytes.Equal(got[0].Data, []byte{1, 2, 3}) {
		t.Fatalf("unexpected segments: %+v", got)
	}
}

func TestParseHexErrors(t *testing.T) {
	testCases := []struct {
		descr string
		input string
	}{
		{"not an ihex record", "hello world\n"},
		{"empty line", "\n" + hexEOF + "\n"},
		{"unsupported record type", ":020000040000FA\n"},
		{"record shorter than declared length", ":10100000AABB00\n"},
		{"bad hex in header", ":ZZ100000AABBCC\n"},
		{"truncated record", ":0310\n"},
	}

	for _, tc := range testCases {
		var got []Segment
		err := ParseHex(strings.NewReader(tc.input), nil, collect(&got))
		if err == nil {
			t.Fatalf("Test %q: expected an error, got none (segments %+v)", tc.descr, got)
		}
		var ferr *FormatError
		if !errors.As(err, &ferr) {
			t.Fatalf("Test %q: got %T (%v), want *FormatError", tc.descr, err, err)
		}
	}
}

func TestParseHexPokeErrorStops(t *testing.T) {
	input := hexRecord(0x0, []byte{1}) + "\n" + hexRecord(0x100, []byte{2}) + "\n" + hexEOF + "\n"
	pokes := 0
	errBoom := errors.New("boom")
	err := ParseHex(strings.NewReader(input), nil, func(addr uint32, external bool, data []byte) error {
		pokes++
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("got error %v, want %v", err, errBoom)
	}
	if pokes != 1 {
		t.Fatalf("got %d pokes after failure, want 1", pokes)
	}
}
