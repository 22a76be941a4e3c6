//go:build linux && !mips && !mipsle

// Excluded on MIPS since gousb needs cgo and libusb, neither commonly
// available on those targets.
package hidtransport

import (
	"context"
	"fmt"

	"github.com/google/gousb"

	"github.com/fidobridge/ctaphid/ctaphid"
)

// USB is a Transport backed by a real HID-class USB device, addressed by
// vendor/product ID, communicating over interrupt IN/OUT endpoints.
type USB struct {
	ctx    *gousb.Context
	device *gousb.Device
	config *gousb.Config
	intf   *gousb.Interface
	epOut  *gousb.OutEndpoint
	epIn   *gousb.InEndpoint
}

// OpenUSB claims the HID interface of the device at (vid, pid) and resolves
// its interrupt IN/OUT endpoints.
func OpenUSB(vid, pid gousb.ID, ifaceNum, altNum int, epOutAddr, epInAddr int) (*USB, error) {
	ctx := gousb.NewContext()

	device, err := ctx.OpenDeviceWithVIDPID(vid, pid)
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("hidtransport: open USB device: %w", err)
	}
	if device == nil {
		ctx.Close()
		return nil, fmt.Errorf("hidtransport: no USB device at VID:0x%04x PID:0x%04x", vid, pid)
	}

	config, err := device.Config(1)
	if err != nil {
		device.Close()
		ctx.Close()
		return nil, fmt.Errorf("hidtransport: set USB config: %w", err)
	}

	intf, err := config.Interface(ifaceNum, altNum)
	if err != nil {
		config.Close()
		device.Close()
		ctx.Close()
		return nil, fmt.Errorf("hidtransport: claim USB interface: %w", err)
	}

	epOut, err := intf.OutEndpoint(epOutAddr)
	if err != nil {
		intf.Close()
		config.Close()
		device.Close()
		ctx.Close()
		return nil, fmt.Errorf("hidtransport: open OUT endpoint: %w", err)
	}

	epIn, err := intf.InEndpoint(epInAddr)
	if err != nil {
		intf.Close()
		config.Close()
		device.Close()
		ctx.Close()
		return nil, fmt.Errorf("hidtransport: open IN endpoint: %w", err)
	}

	return &USB{ctx: ctx, device: device, config: config, intf: intf, epOut: epOut, epIn: epIn}, nil
}

func (u *USB) Close() error {
	u.intf.Close()
	u.config.Close()
	u.device.Close()
	u.ctx.Close()
	return nil
}

var _ ctaphid.Transport = (*USB)(nil)

func (u *USB) RecvReport(ctx context.Context) ([]byte, error) {
	buf := make([]byte, ctaphid.FrameLen)
	n, err := u.epIn.ReadContext(ctx, buf)
	if err != nil {
		return nil, fmt.Errorf("hidtransport: USB read: %w", err)
	}
	if n != ctaphid.FrameLen {
		return nil, fmt.Errorf("hidtransport: short USB read: got %d want %d", n, ctaphid.FrameLen)
	}
	return buf, nil
}

func (u *USB) SendReport(ctx context.Context, frame []byte) error {
	_, err := u.epOut.WriteContext(ctx, frame)
	if err != nil {
		return fmt.Errorf("hidtransport: USB write: %w", err)
	}
	return nil
}

func (u *USB) ResponseDone() {}
