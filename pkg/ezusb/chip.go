// Package ezusb uploads firmware into Cypress EZ-USB microcontrollers over
// vendor-specific USB control transfers. The chips accept writes into on-chip
// SRAM through their built-in first-stage loader; external memory needs a
// second-stage loader already resident and running. Resetting the CPUCS
// register starts the uploaded code.
package ezusb

import "fmt"

// Chip identifies the target chip family. The family decides the CPUCS
// register address and which address ranges are on-chip RAM.
type Chip int

const (
	AN21 Chip = iota // AnchorChips AN21xx
	FX               // Cypress EZ-USB FX (FX1)
	FX2              // Cypress EZ-USB FX2
	FX2LP            // Cypress EZ-USB FX2LP
	FX3              // Cypress FX3 (its own load path, see LoadFX3)
)

var chipNames = []string{"an21", "fx", "fx2", "fx2lp", "fx3"}

func (c Chip) String() string {
	if c < 0 || int(c) >= len(chipNames) {
		return fmt.Sprintf("ezusb.Chip(%d)", int(c))
	}
	return chipNames[c]
}

// ParseChip maps a user-supplied type name to a Chip.
func ParseChip(name string) (Chip, error) {
	for i, n := range chipNames {
		if n == name {
			return Chip(i), nil
		}
	}
	return 0, fmt.Errorf("illegal microcontroller type: %q", name)
}

// CPUCS returns the address of the chip's CPU control register. FX3 has
// none; its firmware is started with a jump command instead of a reset.
func (c Chip) CPUCS() (uint32, bool) {
	switch c {
	case FX2, FX2LP:
		return 0xE600, true
	case AN21, FX:
		return 0x7F92, true
	}
	return 0, false
}

// IsExternal reports whether [addr, addr+length) includes external RAM,
// writable only by a resident second-stage loader. A range that starts in
// on-chip RAM but extends past its end counts as external.
func (c Chip) IsExternal(addr uint32, length int) bool {
	end := addr + uint32(length)
	switch c {
	case AN21, FX:
		// With 8KB RAM, 0x0000-0x1b3f can be written; we can't tell a 4KB
		// device apart here.
		if addr <= 0x1B3F {
			return end > 0x1B40
		}
		return true
	case FX2:
		return isExternal8051(addr, end, 0x1FFF)
	case FX2LP:
		return isExternal8051(addr, end, 0x3FFF)
	}
	// FX3 images carry no internal/external distinction.
	return false
}

// isExternal8051 checks the two on-chip windows of the FX2-generation parts:
// code/data RAM from zero up to codeTop, and 512 bytes of scratch at 0xE000.
func isExternal8051(addr, end, codeTop uint32) bool {
	if addr <= codeTop {
		return end > codeTop+1
	}
	if addr >= 0xE000 && addr <= 0xE1FF {
		return end > 0xE200
	}
	return true
}

// IICFirstByte returns the header byte an IIC image must start with to hold
// executable code for this chip.
func (c Chip) IICFirstByte() (byte, bool) {
	switch c {
	case FX2, FX2LP:
		return 0xC2, true
	case AN21:
		return 0xB2, true
	case FX:
		return 0xB6, true
	}
	return 0, false
}
