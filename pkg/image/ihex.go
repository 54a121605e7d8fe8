package image

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// hexMergeLimit caps how many bytes of consecutive records are merged into
// one segment. 1023 is the EEPROM segment limit on the wire; the upload
// protocol itself would allow much more than a loader could handle.
const hexMergeLimit = 1023

// ParseHex reads a line-oriented Intel HEX image and emits merged segments.
//
// Only data records (type 00) and the end-of-file record (type 01) are
// recognized. Lines starting with '#' are comments and skipped, an extension
// for copyrights and the like. Address-contiguous records are coalesced until
// the merge buffer fills; a gap or a full buffer flushes the pending segment.
//
// The per-record checksum byte is read but deliberately not validated: the
// original loader never checked it, and rejecting images it accepted would be
// a behavior change.
func ParseHex(r io.Reader, classify ClassifyFunc, poke PokeFunc) error {
	buf := make([]byte, 0, hexMergeLimit)
	var bufAddr uint32
	first := true

	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		external := classify != nil && classify(bufAddr, len(buf))
		err := poke(bufAddr, external, buf)
		buf = buf[:0]
		return err
	}

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimRight(scanner.Text(), "\r")
		if len(text) > 0 && text[0] == '#' {
			continue
		}
		if len(text) == 0 || text[0] != ':' {
			return &FormatError{Format: "ihex", Line: line, Reason: fmt.Sprintf("not an ihex record: %q", text)}
		}
		if len(text) < 11 {
			return &FormatError{Format: "ihex", Line: line, Reason: "record too short"}
		}

		hdr, err := hex.DecodeString(text[1:9])
		if err != nil {
			return &FormatError{Format: "ihex", Line: line, Reason: "bad hex digits in record header"}
		}
		length := int(hdr[0])
		off := uint32(hdr[1])<<8 | uint32(hdr[2])
		recType := hdr[3]

		if first {
			bufAddr = off
			first = false
		}

		if recType == 1 {
			break
		}
		if recType != 0 {
			return &FormatError{Format: "ihex", Line: line, Reason: fmt.Sprintf("unsupported record type: %d", recType)}
		}
		if length*2+11 > len(text) {
			return &FormatError{Format: "ihex", Line: line, Reason: "record shorter than its declared length"}
		}

		// Flush the pending segment if this record is not contiguous with
		// it, or if appending would overflow the merge buffer.
		if len(buf) != 0 && (off != bufAddr+uint32(len(buf)) || len(buf)+length > hexMergeLimit) {
			if err := flush(); err != nil {
				return err
			}
			bufAddr = off
		}

		data, err := hex.DecodeString(text[9 : 9+length*2])
		if err != nil {
			return &FormatError{Format: "ihex", Line: line, Reason: "bad hex digits in record data"}
		}
		buf = append(buf, data...)
		// The two checksum characters that follow are not validated.
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	// EOF without an end-of-file record still flushes what we have, matching
	// the original loader.
	return flush()
}
