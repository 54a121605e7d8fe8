package image

import (
	"io"
)

// iicBlockLimit is the working buffer size for one IIC data block. The format
// guarantees blocks fit in 4 KiB.
const iicBlockLimit = 4096

// iicTrailerLen is the fixed reset record at the end of every IIC image. It
// is not a data block and must not be parsed as one.
const iicTrailerLen = 5

// ParseIIC reads a Cypress IIC image: a sequence of 4-byte big-endian
// {length, address} block headers each followed by that many payload bytes,
// ending in the 5-byte reset trailer. The reader must be positioned after any
// container header the caller has already consumed.
func ParseIIC(r io.ReadSeeker, classify ClassifyFunc, poke PokeFunc) error {
	pos, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return err
	}
	if _, err := r.Seek(pos, io.SeekStart); err != nil {
		return err
	}

	data := make([]byte, iicBlockLimit)
	for pos < end-iicTrailerLen {
		var hdr [4]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			return &FormatError{Format: "iic", Reason: "unable to read block header"}
		}
		blockLen := int(hdr[0])<<8 | int(hdr[1])
		addr := uint32(hdr[2])<<8 | uint32(hdr[3])
		if blockLen > iicBlockLimit {
			return &CapacityError{Format: "iic", Size: blockLen, Limit: iicBlockLimit}
		}
		if _, err := io.ReadFull(r, data[:blockLen]); err != nil {
			return &FormatError{Format: "iic", Reason: "block payload truncated"}
		}
		pos += int64(4 + blockLen)

		external := classify != nil && classify(addr, blockLen)
		if err := poke(addr, external, data[:blockLen]); err != nil {
			return err
		}
	}
	return nil
}
