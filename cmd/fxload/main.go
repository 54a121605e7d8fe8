// fxload uploads firmware into Cypress EZ-USB series microcontrollers over
// USB. With no second-stage loader the firmware is written straight into
// on-chip memory; with one, external memory is written first through the
// resident loader.
package main

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/ezusb-tools/fxload/pkg/ezusb"
	"github.com/ezusb-tools/fxload/pkg/image"
	"github.com/ezusb-tools/fxload/pkg/usbdev"
)

var (
	firmwarePath string
	loaderPath   string
	chipName     string
	deviceID     string
	devicePath   string
	verbosity    int
	quiet        bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "fxload",
		Short:         "Upload firmware into Cypress EZ-USB microcontrollers",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          run,
	}
	rootCmd.Flags().StringVarP(&firmwarePath, "firmware", "i", "", "firmware to upload")
	rootCmd.Flags().StringVarP(&loaderPath, "stage2", "s", "", "second stage loader")
	rootCmd.Flags().StringVarP(&chipName, "type", "t", "", "target type: an21, fx, fx2, fx2lp, fx3")
	rootCmd.Flags().StringVarP(&deviceID, "device", "d", "", "target device, as an USB VID:PID")
	rootCmd.Flags().StringVarP(&devicePath, "busaddr", "p", "", "target device, as a bus number and device address \"bus,addr\"")
	rootCmd.Flags().CountVarP(&verbosity, "verbose", "v", "increase verbosity")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "decrease verbosity (silent mode)")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func logLevel() hclog.Level {
	switch {
	case quiet:
		return hclog.Error
	case verbosity >= 2:
		return hclog.Trace
	case verbosity == 1:
		return hclog.Debug
	}
	return hclog.Info
}

func run(cmd *cobra.Command, args []string) error {
	if firmwarePath == "" {
		return fmt.Errorf("no firmware specified")
	}
	if deviceID != "" && devicePath != "" {
		return fmt.Errorf("only one of -d or -p can be specified")
	}

	log := hclog.New(&hclog.LoggerOptions{
		Name:   "fxload",
		Level:  logLevel(),
		Output: os.Stderr,
	})

	var sel usbdev.Selector
	if chipName != "" {
		chip, err := ezusb.ParseChip(chipName)
		if err != nil {
			return err
		}
		sel.HasChip, sel.Chip = true, chip
	}
	if deviceID != "" {
		if _, err := fmt.Sscanf(deviceID, "%x:%x", &sel.VID, &sel.PID); err != nil {
			return fmt.Errorf("please specify VID & PID as \"vid:pid\" in hexadecimal format")
		}
		sel.HasID = true
	}
	if devicePath != "" {
		if _, err := fmt.Sscanf(devicePath, "%d,%d", &sel.Bus, &sel.Address); err != nil {
			return fmt.Errorf("please specify bus & device number as \"bus,dev\" in decimal format")
		}
		sel.HasPath = true
	}

	dev, err := usbdev.Open(sel)
	if err != nil {
		return err
	}
	defer dev.Close()
	log.Info("found device", "device", dev.Name(), "type", dev.Chip.String())

	loader := ezusb.New(dev, dev.Chip, ezusb.WithLogger(log))

	if dev.Chip == ezusb.FX3 {
		if loaderPath != "" {
			return fmt.Errorf("fx3 does not use a second stage loader")
		}
		img, err := os.Open(firmwarePath)
		if err != nil {
			return err
		}
		defer img.Close()
		log.Info("uploading FX3 image", "path", firmwarePath)
		if err := loader.LoadFX3(img); err != nil {
			return fmt.Errorf("unable to upload %s: %w", firmwarePath, err)
		}
		return nil
	}

	fwType, err := image.DetectType(firmwarePath)
	if err != nil {
		return err
	}
	log.Debug("firmware image", "path", firmwarePath, "format", fwType.String())

	if loaderPath == "" {
		// Single stage: everything goes into on-chip memory.
		res, err := loadFile(loader, firmwarePath, fwType, false)
		if err != nil {
			return fmt.Errorf("unable to upload %s: %w", firmwarePath, err)
		}
		log.Info("firmware uploaded", "bytes", res.BytesWritten, "segments", res.Segments)
		return nil
	}

	// Two stage: first place the loader into on-chip memory, then feed the
	// firmware through it. The second pass re-parses the firmware as HEX.
	if fwType != image.TypeHex {
		return fmt.Errorf("two-stage loading requires an Intel HEX firmware image")
	}
	ldrType, err := image.DetectType(loaderPath)
	if err != nil {
		return err
	}
	log.Debug("1st stage: load 2nd stage loader", "path", loaderPath, "format", ldrType.String())
	if _, err := loadFile(loader, loaderPath, ldrType, false); err != nil {
		return fmt.Errorf("unable to upload %s: %w", loaderPath, err)
	}

	log.Debug("2nd stage: load firmware", "path", firmwarePath)
	res, err := loadFile(loader, firmwarePath, fwType, true)
	if err != nil {
		return fmt.Errorf("unable to upload %s: %w", firmwarePath, err)
	}
	log.Info("firmware uploaded", "bytes", res.BytesWritten, "segments", res.Segments)
	return nil
}

func loadFile(loader *ezusb.Loader, path string, typ image.Type, twoStage bool) (ezusb.Result, error) {
	img, err := os.Open(path)
	if err != nil {
		return ezusb.Result{}, err
	}
	defer img.Close()
	return loader.LoadRAM(img, typ, twoStage)
}
