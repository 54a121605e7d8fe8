package ezusb

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/ezusb-tools/fxload/pkg/image"
)

// fx3WriteLimit caps one control transfer while writing an image chunk.
const fx3WriteLimit = 4096

// fx3BootVersionAddr holds the ROM bootloader version string.
const fx3BootVersionAddr = 0xFFFF0020

// LoadFX3 streams a Cypress FX3 boot image (AN76405 format) into target RAM
// and transfers execution to its entry point.
//
// The image is read chunk by chunk, never buffered whole. Every chunk is
// written in sub-4KiB pieces, each immediately read back and compared; the
// running sum of all data words must match the image's trailing checksum
// before the jump command is issued.
func (l *Loader) LoadFX3(img io.Reader) error {
	var hdr [4]byte
	if _, err := io.ReadFull(img, hdr[:]); err != nil {
		return &image.FormatError{Format: "fx3", Reason: "could not read image header"}
	}
	if hdr[0] != 'C' || hdr[1] != 'Y' {
		return &image.FormatError{Format: "fx3", Reason: "image doesn't have a CYpress signature"}
	}
	switch hdr[3] {
	case 0xB0:
		payload := "executable"
		if hdr[2]&0x01 != 0 {
			payload = "data"
		}
		l.log.Debug("normal FW binary image with checksum", "payload", payload)
	case 0xB1:
		return &image.FormatError{Format: "fx3", Reason: "security binary image is not currently supported"}
	case 0xB2:
		return &image.FormatError{Format: "fx3", Reason: "VID:PID image is not currently supported"}
	default:
		return &image.FormatError{Format: "fx3", Reason: fmt.Sprintf("invalid image type 0x%02X", hdr[3])}
	}

	if l.log.IsDebug() {
		var ver [4]byte
		if err := l.read("read bootloader version", reqRWInternal, fx3BootVersionAddr, ver[:]); err != nil {
			return err
		}
		l.log.Debug("FX3 bootloader version",
			"version", fmt.Sprintf("0x%02X%02X%02X%02X", ver[3], ver[2], ver[1], ver[0]))
	}

	var checksum uint32
	var addr uint32
	readBack := make([]byte, fx3WriteLimit)

	l.log.Debug("writing image")
	for {
		var chunkHdr [8]byte
		if _, err := io.ReadFull(img, chunkHdr[:]); err != nil {
			return &image.FormatError{Format: "fx3", Reason: "could not read chunk header"}
		}
		wordCount := binary.LittleEndian.Uint32(chunkHdr[0:4])
		addr = binary.LittleEndian.Uint32(chunkHdr[4:8])
		if wordCount == 0 {
			// Terminating chunk; its address field is the program entry.
			break
		}

		data := make([]byte, wordCount*4)
		if _, err := io.ReadFull(img, data); err != nil {
			return &image.FormatError{Format: "fx3", Reason: "could not read chunk data"}
		}
		for i := 0; i < len(data); i += 4 {
			checksum += binary.LittleEndian.Uint32(data[i : i+4])
		}

		for len(data) > 0 {
			n := fx3WriteLimit
			if n > len(data) {
				n = len(data)
			}
			if err := l.write("write firmware", reqRWInternal, addr, data[:n]); err != nil {
				return err
			}
			if err := l.read("read firmware", reqRWInternal, addr, readBack[:n]); err != nil {
				return err
			}
			if !bytes.Equal(readBack[:n], data[:n]) {
				return &VerifyError{Addr: addr, Reason: "read-back does not match written data"}
			}
			data = data[n:]
			addr += uint32(n)
		}
	}

	var tail [4]byte
	if _, err := io.ReadFull(img, tail[:]); err != nil {
		return &image.FormatError{Format: "fx3", Reason: "could not read image checksum"}
	}
	if want := binary.LittleEndian.Uint32(tail[:]); checksum != want {
		return &VerifyError{Reason: fmt.Sprintf("image checksum 0x%08x, computed 0x%08x", want, checksum)}
	}

	// Transfer execution to the program entry. An I/O error is tolerated:
	// the device may drop off the bus as it begins executing.
	l.log.Debug("transfer execution to program entry", "addr", fmt.Sprintf("0x%08x", addr))
	if err := l.write("jump to entry", reqRWInternal, addr, nil); err != nil {
		if errors.Is(err, ErrIO) {
			l.log.Debug("device went away on jump", "err", err)
			return nil
		}
		return err
	}
	return nil
}
