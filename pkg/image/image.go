// Package image decodes EZ-USB firmware image files. Three on-disk formats
// (Intel HEX, Cypress IIC, plain binary BIX/IMG) are parsed through one
// callback contract: each decoded memory segment is handed to a PokeFunc in
// ascending, non-overlapping address order.
package image

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Segment is one contiguous run of firmware bytes placed at Addr.
type Segment struct {
	Addr     uint32
	External bool
	Data     []byte
}

// PokeFunc consumes one decoded segment. The data slice is only valid for the
// duration of the call. A non-nil error stops the parse immediately.
type PokeFunc func(addr uint32, external bool, data []byte) error

// ClassifyFunc reports whether [addr, addr+length) reaches external memory.
// A nil ClassifyFunc classifies everything as internal.
type ClassifyFunc func(addr uint32, length int) bool

// Type identifies the on-disk image format.
type Type int

const (
	TypeHex Type = iota // Intel HEX (.hex, .ihx)
	TypeIIC             // Cypress 8051 IIC container (.iic)
	TypeBix             // Cypress BIX raw binary (.bix)
	TypeImg             // Cypress IMG raw binary (.img)
)

func (t Type) String() string {
	switch t {
	case TypeHex:
		return "Intel HEX"
	case TypeIIC:
		return "Cypress 8051 IIC"
	case TypeBix:
		return "Cypress BIX"
	case TypeImg:
		return "Cypress IMG"
	}
	return fmt.Sprintf("image.Type(%d)", int(t))
}

// DetectType guesses the image format from the file extension.
func DetectType(path string) (Type, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".hex", ".ihx":
		return TypeHex, nil
	case ".iic":
		return TypeIIC, nil
	case ".bix":
		return TypeBix, nil
	case ".img":
		return TypeImg, nil
	}
	return 0, fmt.Errorf("%q is not a recognized image type", path)
}

// Parse decodes the image with the parser for t, feeding every segment to
// poke. The reader must be positioned at the first byte of image data.
func Parse(t Type, r io.ReadSeeker, classify ClassifyFunc, poke PokeFunc) error {
	switch t {
	case TypeHex:
		return ParseHex(r, classify, poke)
	case TypeIIC:
		return ParseIIC(r, classify, poke)
	case TypeBix, TypeImg:
		return ParseBin(r, classify, poke)
	}
	return fmt.Errorf("unknown image type %d", int(t))
}

// FormatError reports a malformed record or header. It is never retried.
type FormatError struct {
	Format string // "ihex", "iic", "bin", "fx3"
	Line   int    // 1-based line number for line-oriented formats, else 0
	Reason string
}

func (e *FormatError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s image, line %d: %s", e.Format, e.Line, e.Reason)
	}
	return fmt.Sprintf("%s image: %s", e.Format, e.Reason)
}

// CapacityError reports a block that does not fit the parser's working
// buffer. The formats guarantee this never happens for well-formed images.
type CapacityError struct {
	Format string
	Size   int
	Limit  int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s image: %d byte block exceeds %d byte buffer", e.Format, e.Size, e.Limit)
}
