package image

import (
	"errors"
	"io"
)

const binChunkLen = 4096

// ParseBin treats the whole stream as one contiguous image starting at
// address 0, emitted in 4 KiB segments. Used for Cypress BIX and IMG files.
func ParseBin(r io.Reader, classify ClassifyFunc, poke PokeFunc) error {
	buf := make([]byte, binChunkLen)
	var addr uint32
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			external := classify != nil && classify(addr, n)
			if perr := poke(addr, external, buf[:n]); perr != nil {
				return perr
			}
			addr += uint32(n)
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		if err != nil {
			return err
		}
	}
}
