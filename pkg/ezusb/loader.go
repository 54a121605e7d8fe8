package ezusb

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/ezusb-tools/fxload/pkg/image"
)

// Vendor request codes the bootstrap loader recognizes. The codes are
// reserved by Cypress; RW_INTERNAL is implemented by the hardware loader,
// RW_MEMORY by "Vend_Ax"-style second-stage firmware.
const (
	reqRWInternal uint8 = 0xA0
	reqRWMemory   uint8 = 0xA3
)

// retryLimit bounds how many times one vendor write is attempted when the
// transfer keeps timing out.
const retryLimit = 5

const defaultTimeout = 1000 * time.Millisecond

// Mode selects which segments a load pass actually writes.
type Mode int

const (
	modeUnset    Mode = iota
	InternalOnly      // hardware first-stage loader, CPU stopped
	SkipInternal      // first phase with a second-stage loader, CPU running
	SkipExternal      // second phase with a second-stage loader, CPU stopped
)

// Loader drives one firmware upload into one device. It owns the device
// handle for the duration of the upload and is not safe for concurrent use.
type Loader struct {
	bus     ControlBus
	chip    Chip
	log     hclog.Logger
	timeout time.Duration

	mode  Mode
	total int // bytes written so far
	count int // segments written so far
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger routes the loader's progress and diagnostic output. The default
// logger discards everything.
func WithLogger(log hclog.Logger) Option {
	return func(l *Loader) { l.log = log }
}

// WithTimeout overrides the per-transfer timeout (default 1s).
func WithTimeout(d time.Duration) Option {
	return func(l *Loader) { l.timeout = d }
}

// New returns a Loader for the given device and chip family.
func New(bus ControlBus, chip Chip, opts ...Option) *Loader {
	l := &Loader{
		bus:     bus,
		chip:    chip,
		log:     hclog.NewNullLogger(),
		timeout: defaultTimeout,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Result reports what one upload wrote.
type Result struct {
	BytesWritten int
	Segments     int
}

// LoadRAM uploads a firmware image into target RAM and starts it.
//
// With twoStage false everything is written through the hardware first-stage
// loader in one pass; the image must fit in on-chip memory, and an external
// segment is a contract violation.
//
// With twoStage true a second-stage loader is assumed to be resident and
// running. External memory is written first, with the CPU left running so
// the loader can service the writes; then the CPU is halted, the image is
// re-parsed, and the on-chip segments (at minimum the reset vector) are
// written through the hardware loader.
//
// On any fatal error the CPU is left halted so the caller may retry.
func (l *Loader) LoadRAM(img io.ReadSeeker, typ image.Type, twoStage bool) (Result, error) {
	if l.chip == FX3 {
		return Result{}, l.LoadFX3(img)
	}

	if typ == image.TypeIIC {
		if err := l.checkIICHeader(img); err != nil {
			return Result{}, err
		}
	}

	cpucs, hasCPUCS := l.chip.CPUCS()
	l.total, l.count = 0, 0

	if !twoStage {
		l.mode = InternalOnly
		// Halt the CPU while we overwrite its code and data.
		if hasCPUCS {
			if err := l.haltCPU(cpucs); err != nil {
				return Result{}, err
			}
		}
	} else {
		// Let the CPU run: the resident loader answers the external writes.
		// It gets overwritten in the second pass.
		l.mode = SkipInternal
		l.log.Debug("2nd stage: write external memory")
	}

	if err := image.Parse(typ, img, l.chip.IsExternal, l.poke); err != nil {
		return Result{}, err
	}

	if twoStage {
		l.mode = SkipExternal
		// Halt the CPU while we overwrite the second-stage loader.
		if hasCPUCS {
			if err := l.haltCPU(cpucs); err != nil {
				return Result{}, err
			}
		}
		if _, err := img.Seek(0, io.SeekStart); err != nil {
			return Result{}, err
		}
		// At minimum the interrupt vectors at 0x0000 must be rewritten for
		// reset. The rescan always uses the HEX parser.
		l.log.Debug("2nd stage: write on-chip memory")
		if err := image.ParseHex(img, l.chip.IsExternal, l.poke); err != nil {
			return Result{}, err
		}
	}

	res := Result{BytesWritten: l.total, Segments: l.count}
	if l.count != 0 {
		l.log.Debug("wrote firmware", "bytes", l.total, "segments", l.count)
	}

	// Reset the CPU so it runs what we just uploaded.
	if hasCPUCS {
		if err := l.runCPU(cpucs); err != nil {
			return res, err
		}
	}
	return res, nil
}

// checkIICHeader consumes the 8-byte IIC container header and verifies the
// image holds executable code for this chip family.
func (l *Loader) checkIICHeader(img io.Reader) error {
	var hdr [8]byte
	if _, err := io.ReadFull(img, hdr[:]); err != nil {
		return &image.FormatError{Format: "iic", Reason: "unable to read container header"}
	}
	want, ok := l.chip.IICFirstByte()
	if !ok || hdr[0] != want {
		return &image.FormatError{Format: "iic", Reason: "image does not contain executable code - cannot load to RAM"}
	}
	return nil
}

// poke writes one decoded segment, or drops it per the active mode. It is
// handed to the image parsers as their segment callback.
func (l *Loader) poke(addr uint32, external bool, data []byte) error {
	switch l.mode {
	case InternalOnly: // CPU should be stopped
		if external {
			return &ContractError{Addr: addr, Len: len(data)}
		}
	case SkipInternal: // CPU must be running
		if !external {
			l.log.Debug("SKIP on-chip RAM", "addr", fmt.Sprintf("0x%08x", addr), "len", len(data))
			return nil
		}
	case SkipExternal: // CPU should be stopped
		if external {
			l.log.Debug("SKIP external RAM", "addr", fmt.Sprintf("0x%08x", addr), "len", len(data))
			return nil
		}
	default:
		return fmt.Errorf("no loading mode set")
	}

	op, opcode := "write on-chip", reqRWInternal
	if external {
		op, opcode = "write external", reqRWMemory
	}

	var err error
	for attempt := 1; attempt <= retryLimit; attempt++ {
		err = l.write(op, opcode, addr, data)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrTimeout) {
			break
		}
		l.log.Debug("timed out, retrying", "op", op, "addr", fmt.Sprintf("0x%08x", addr), "attempt", attempt)
	}
	if err != nil {
		return err
	}

	l.total += len(data)
	l.count++
	return nil
}

// haltCPU stops the core by writing 1 to the CPUCS register.
func (l *Loader) haltCPU(cpucs uint32) error {
	l.log.Debug("stop CPU")
	if err := l.write("stop CPU", reqRWInternal, cpucs, []byte{1}); err != nil {
		return err
	}
	return nil
}

// runCPU takes the core out of reset by writing 0 to CPUCS. An I/O error is
// tolerated here: some devices disconnect from the bus the moment the core
// resumes execution.
func (l *Loader) runCPU(cpucs uint32) error {
	l.log.Debug("reset CPU")
	if err := l.write("reset CPU", reqRWInternal, cpucs, []byte{0}); err != nil {
		if errors.Is(err, ErrIO) {
			l.log.Debug("device went away while resetting CPU", "err", err)
			return nil
		}
		return err
	}
	return nil
}

// write issues one vendor write, addressed by the low and high 16 bits of
// addr. A short write without a transport error is still a transport error.
func (l *Loader) write(op string, opcode uint8, addr uint32, data []byte) error {
	l.log.Trace(op, "addr", fmt.Sprintf("0x%08x", addr), "len", len(data))
	n, err := l.bus.ControlWrite(opcode, uint16(addr&0xFFFF), uint16(addr>>16), data, l.timeout)
	if err != nil {
		return &TransportError{Op: op, Addr: addr, Err: err}
	}
	if n != len(data) {
		return &TransportError{Op: op, Addr: addr, Err: fmt.Errorf("short write: %d of %d bytes", n, len(data))}
	}
	return nil
}

// read issues one vendor read into buf.
func (l *Loader) read(op string, opcode uint8, addr uint32, buf []byte) error {
	l.log.Trace(op, "addr", fmt.Sprintf("0x%08x", addr), "len", len(buf))
	n, err := l.bus.ControlRead(opcode, uint16(addr&0xFFFF), uint16(addr>>16), buf, l.timeout)
	if err != nil {
		return &TransportError{Op: op, Addr: addr, Err: err}
	}
	if n != len(buf) {
		return &TransportError{Op: op, Addr: addr, Err: fmt.Errorf("short read: %d of %d bytes", n, len(buf))}
	}
	return nil
}
