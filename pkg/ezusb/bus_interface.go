package ezusb

import (
	"errors"
	"time"
)

// ControlBus is the vendor control-transfer surface of an attached device.
// The loader is written against this interface so tests can substitute a
// fake; pkg/usbdev provides the gousb-backed implementation.
//
// One ControlBus must be driven by at most one Loader at a time; uploads to
// the same handle have to be serialized by the caller.
type ControlBus interface {
	// ControlWrite issues a vendor OUT transfer and returns how many bytes
	// the device accepted.
	ControlWrite(opcode uint8, value, index uint16, data []byte, timeout time.Duration) (int, error)
	// ControlRead issues a vendor IN transfer into buf and returns how many
	// bytes the device produced.
	ControlRead(opcode uint8, value, index uint16, buf []byte, timeout time.Duration) (int, error)
}

// Sentinel classes for transport failures. Implementations wrap these so the
// loader can tell retryable and tolerated faults from fatal ones with
// errors.Is.
var (
	// ErrTimeout marks a timed-out transfer. Control messages are not NAKed,
	// just dropped, so a timeout is worth retrying.
	ErrTimeout = errors.New("control transfer timed out")

	// ErrIO marks a low-level I/O failure, typically the device dropping off
	// the bus. Fatal everywhere except the two documented spots where the
	// device is expected to disappear as it starts executing.
	ErrIO = errors.New("control transfer I/O error")
)
