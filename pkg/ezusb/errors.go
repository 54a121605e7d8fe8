package ezusb

import (
	"errors"
	"fmt"
)

// ContractError reports a write the active loading mode forbids: an external
// segment while only the hardware first-stage loader is present. This is
// caller misuse, not a device fault, and is never retried.
type ContractError struct {
	Addr uint32
	Len  int
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("can't write %d bytes external memory at 0x%08x", e.Len, e.Addr)
}

// TransportError wraps a failed control transfer with the operation that
// issued it.
type TransportError struct {
	Op   string
	Addr uint32
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s, addr 0x%08x: %v", e.Op, e.Addr, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the underlying fault was a transfer timeout.
func (e *TransportError) Timeout() bool { return errors.Is(e.Err, ErrTimeout) }

// VerifyError reports an FX3 read-back or image checksum mismatch.
type VerifyError struct {
	Addr   uint32
	Reason string
}

func (e *VerifyError) Error() string {
	if e.Addr != 0 {
		return fmt.Sprintf("verify failed at 0x%08x: %s", e.Addr, e.Reason)
	}
	return fmt.Sprintf("verify failed: %s", e.Reason)
}
