package capture

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gen2brain/malgo"
)

// MalgoDevice captures microphone audio through miniaudio. It asks for
// mono float32 at the default device rate; the rate the hardware
// actually settled on is reported from Open.
type MalgoDevice struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
}

// NewMalgoDevice initializes the miniaudio backend context.
func NewMalgoDevice() (*MalgoDevice, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}
	return &MalgoDevice{ctx: ctx}, nil
}

// Open implements Device.
func (d *MalgoDevice) Open(onSamples func([]float32)) (int, error) {
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.Alsa.NoMMap = 1

	onRecvFrames := func(_, pSample []byte, framecount uint32) {
		if framecount == 0 {
			return
		}
		samples := make([]float32, framecount)
		for i := range samples {
			samples[i] = float32FromBytes(pSample[i*4:])
		}
		onSamples(samples)
	}

	device, err := malgo.InitDevice(d.ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onRecvFrames,
	})
	if err != nil {
		return 0, fmt.Errorf("init capture device: %w", err)
	}
	d.device = device
	return int(device.SampleRate()), nil
}

// Start implements Device.
func (d *MalgoDevice) Start() error {
	if d.device == nil {
		return fmt.Errorf("capture device not open")
	}
	return d.device.Start()
}

// Stop implements Device.
func (d *MalgoDevice) Stop() error {
	if d.device == nil {
		return nil
	}
	return d.device.Stop()
}

// Close implements Device.
func (d *MalgoDevice) Close() error {
	if d.device != nil {
		d.device.Uninit()
		d.device = nil
	}
	if d.ctx != nil {
		err := d.ctx.Uninit()
		d.ctx.Free()
		d.ctx = nil
		return err
	}
	return nil
}

func float32FromBytes(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}
