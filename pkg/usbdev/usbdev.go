// Package usbdev opens EZ-USB devices over libusb and exposes them through
// the loader's control-transfer interface.
package usbdev

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/gousb"

	"github.com/ezusb-tools/fxload/pkg/ezusb"
)

// Selector narrows which attached device to open. With no criteria set, the
// first device matching the known-device table wins.
type Selector struct {
	HasID    bool
	VID, PID uint16

	HasPath      bool
	Bus, Address int

	HasChip bool
	Chip    ezusb.Chip
}

// Device is an open EZ-USB device. It implements ezusb.ControlBus and must
// only be driven by one upload at a time.
type Device struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	done func()

	// Chip is the detected or requested chip family.
	Chip ezusb.Chip
	// Desc describes the device for log output.
	Desc string
}

// Open finds, opens and claims a device per sel.
func Open(sel Selector) (*Device, error) {
	ctx := gousb.NewContext()
	dev, chip, desc, err := openMatching(ctx, sel)
	if err != nil {
		ctx.Close()
		return nil, err
	}

	// The hardware loader answers on the default control endpoint, but we
	// still claim interface 0 so nothing else owns the device meanwhile.
	dev.SetAutoDetach(true)
	cfg, err := dev.Config(1)
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("cannot select configuration: %v", err)
	}
	intf, err := cfg.Interface(0, 0)
	if err != nil {
		cfg.Close()
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("cannot claim interface 0: %v", err)
	}

	return &Device{
		ctx:  ctx,
		dev:  dev,
		done: func() { intf.Close(); cfg.Close() },
		Chip: chip,
		Desc: desc,
	}, nil
}

func openMatching(ctx *gousb.Context, sel Selector) (*gousb.Device, ezusb.Chip, string, error) {
	var matched KnownDevice
	var haveKnown bool

	devs, err := ctx.OpenDevices(func(d *gousb.DeviceDesc) bool {
		if sel.HasPath && (d.Bus != sel.Bus || d.Address != sel.Address) {
			return false
		}
		if sel.HasID && (uint16(d.Vendor) != sel.VID || uint16(d.Product) != sel.PID) {
			return false
		}
		kd, known := LookupKnown(uint16(d.Vendor), uint16(d.Product))
		if !sel.HasID && !sel.HasPath {
			// Nothing but (at most) a chip type was specified; only known
			// devices qualify.
			if !known {
				return false
			}
			if sel.HasChip && kd.Chip != sel.Chip {
				return false
			}
		}
		matched, haveKnown = kd, known
		return true
	})
	// OpenDevices may fail for unrelated devices after a match was opened.
	if len(devs) == 0 {
		if err != nil {
			return nil, 0, "", fmt.Errorf("cannot open device: %v", err)
		}
		return nil, 0, "", errors.New("could not find a known device - please specify type and/or vid:pid and/or bus,dev")
	}
	for _, extra := range devs[1:] {
		extra.Close()
	}
	dev := devs[0]

	chip := matched.Chip
	desc := matched.Designation
	if sel.HasChip {
		chip = sel.Chip
	} else if !haveKnown {
		dev.Close()
		return nil, 0, "", errors.New("device is not in the known-device table - please specify its type")
	}
	if desc == "" {
		desc = fmt.Sprintf("%s device", chip)
	}
	return dev, chip, desc, nil
}

// Name describes the open device.
func (d *Device) Name() string {
	return fmt.Sprintf("%s [%04x:%04x]", d.Desc, uint16(d.dev.Desc.Vendor), uint16(d.dev.Desc.Product))
}

// ControlWrite implements ezusb.ControlBus with a vendor OUT transfer to the
// device.
func (d *Device) ControlWrite(opcode uint8, value, index uint16, data []byte, timeout time.Duration) (int, error) {
	d.dev.ControlTimeout = timeout
	n, err := d.dev.Control(gousb.ControlOut|gousb.ControlVendor|gousb.ControlDevice, opcode, value, index, data)
	return n, mapErr(err)
}

// ControlRead implements ezusb.ControlBus with a vendor IN transfer from the
// device.
func (d *Device) ControlRead(opcode uint8, value, index uint16, buf []byte, timeout time.Duration) (int, error) {
	d.dev.ControlTimeout = timeout
	n, err := d.dev.Control(gousb.ControlIn|gousb.ControlVendor|gousb.ControlDevice, opcode, value, index, buf)
	return n, mapErr(err)
}

// Close releases the interface and the underlying libusb handles.
func (d *Device) Close() error {
	if d.done != nil {
		d.done()
		d.done = nil
	}
	if err := d.dev.Close(); err != nil {
		d.ctx.Close()
		return err
	}
	return d.ctx.Close()
}

// mapErr translates libusb failures into the loader's transport error
// classes.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gousb.ErrorTimeout):
		return fmt.Errorf("%w: %v", ezusb.ErrTimeout, err)
	case errors.Is(err, gousb.ErrorIO), errors.Is(err, gousb.ErrorNoDevice):
		return fmt.Errorf("%w: %v", ezusb.ErrIO, err)
	}
	return err
}
