package usbdev

import "github.com/ezusb-tools/fxload/pkg/ezusb"

// KnownDevice maps a VID:PID to the chip family to assume for it.
type KnownDevice struct {
	VID, PID    uint16
	Chip        ezusb.Chip
	Designation string
}

// KnownDevices lists the AnchorChips/Cypress parts and development boards
// that enumerate with a stable default ID before firmware is loaded.
var KnownDevices = []KnownDevice{
	{0x0547, 0x2122, ezusb.AN21, "Cypress EZ-USB (2122S)"},
	{0x0547, 0x2125, ezusb.AN21, "Cypress EZ-USB (2121S/2125S)"},
	{0x0547, 0x2126, ezusb.AN21, "Cypress EZ-USB (2126S)"},
	{0x0547, 0x2131, ezusb.AN21, "Cypress EZ-USB (2131Q/2131S/2135S)"},
	{0x0547, 0x2136, ezusb.AN21, "Cypress EZ-USB (2136S)"},
	{0x0547, 0x2225, ezusb.AN21, "Cypress EZ-USB (2225)"},
	{0x0547, 0x2226, ezusb.AN21, "Cypress EZ-USB (2226)"},
	{0x0547, 0x2235, ezusb.AN21, "Cypress EZ-USB (2235)"},
	{0x0547, 0x2236, ezusb.AN21, "Cypress EZ-USB (2236)"},
	{0x04B4, 0x6473, ezusb.FX, "Cypress EZ-USB FX1"},
	{0x04B4, 0x8613, ezusb.FX2LP, "Cypress EZ-USB FX2LP (68013A/14A/15A/16A)"},
	{0x04B4, 0x00F3, ezusb.FX3, "Cypress FX3"},
}

// LookupKnown finds the table entry for a VID:PID pair.
func LookupKnown(vid, pid uint16) (KnownDevice, bool) {
	for _, kd := range KnownDevices {
		if kd.VID == vid && kd.PID == pid {
			return kd, true
		}
	}
	return KnownDevice{}, false
}
