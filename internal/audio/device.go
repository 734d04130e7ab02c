// Package audio wraps malgo microphone capture for the recognition
// engines.
package audio

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gen2brain/malgo"

	"github.com/amaki/voicereply/pkg/collections"
)

// DataPacket is one chunk of raw PCM samples from the capture callback.
type DataPacket = []byte

// Device is a microphone capture device. One device is exclusively owned
// by the recognizer that allocated it for the duration of one capture
// generation.
type Device interface {
	// CaptureInto initializes the underlying device; once Start is
	// called, packets of sampled bytes are written into dataC.
	CaptureInto(ctx context.Context, dataC chan DataPacket) error

	// Start starts capturing.
	Start(ctx context.Context) error

	// Stop stops capturing. No-op if the device was never allocated.
	Stop(ctx context.Context) error

	// IsStarted reports whether the device is currently capturing.
	IsStarted() bool

	// Dealloc frees the underlying device resources.
	Dealloc(ctx context.Context)
}

// Info describes an available capture device.
type Info struct {
	Name      string
	IsDefault bool
	Formats   []string
}

type device struct {
	conf *DeviceConfig

	mgCtx    *malgo.AllocatedContext
	mgDevice *malgo.Device
}

// NewDevice creates a capture device with the given config; nil uses
// DefaultConfig.
func NewDevice(conf *DeviceConfig) Device {
	if conf == nil {
		conf = DefaultConfig()
	}

	return &device{conf: conf}
}

// EnumerateDevices lists available capture devices.
func EnumerateDevices(ctx context.Context) ([]Info, error) {
	devCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize malgo context: %w", err)
	}
	defer uninitializeContext(devCtx)

	captureDevices, err := devCtx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("failed to get capture devices: %w", err)
	}

	infos := collections.Apply(captureDevices, func(mdi malgo.DeviceInfo) Info {
		return Info{
			Name:      mdi.Name(),
			IsDefault: mdi.IsDefault != 0,
			Formats: collections.Apply(mdi.Formats, func(mf malgo.DataFormat) string {
				return fmt.Sprintf("(SampleSizeBytes: %d, Channels: %d, SampleRate: %d)",
					malgo.SampleSizeInBytes(mf.Format), mf.Channels, mf.SampleRate)
			}),
		}
	})

	return infos, nil
}

func (d *device) CaptureInto(ctx context.Context, dataC chan DataPacket) error {
	if dataC == nil {
		return fmt.Errorf("data channel is nil. unable to allocate device")
	}

	mgCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	devCnf := malgo.DefaultDeviceConfig(malgo.Capture)
	devCnf.Capture.Format = d.conf.Format
	devCnf.Capture.Channels = uint32(d.conf.CaptureChannels)
	devCnf.SampleRate = uint32(d.conf.SampleRate)

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, samples []byte, _ uint32) {
			dataC <- samples
		},
	}

	mgDevice, err := malgo.InitDevice(mgCtx.Context, devCnf, callbacks)
	if err != nil {
		uninitializeContext(mgCtx)
		return fmt.Errorf("failed to initialize malgo capture device: %w", err)
	}

	d.mgCtx = mgCtx
	d.mgDevice = mgDevice

	return nil
}

func (d *device) Start(ctx context.Context) error {
	if d.mgDevice == nil {
		return fmt.Errorf("device nil. have you allocated it with CaptureInto?")
	}

	if d.mgDevice.IsStarted() {
		return nil
	}

	if err := d.mgDevice.Start(); err != nil {
		return fmt.Errorf("failed to start malgo device: %w", err)
	}

	return nil
}

func (d *device) Stop(ctx context.Context) error {
	if d.mgDevice == nil {
		return nil
	}

	if err := d.mgDevice.Stop(); err != nil {
		return fmt.Errorf("failed to stop malgo device: %w", err)
	}

	return nil
}

func (d *device) IsStarted() bool {
	if d.mgDevice == nil {
		return false
	}

	return d.mgDevice.IsStarted()
}

func (d *device) Dealloc(ctx context.Context) {
	if d.mgDevice == nil {
		return
	}

	d.mgDevice.Uninit()
	d.mgCtx.Free()
	d.mgDevice = nil
	d.mgCtx = nil
}

func uninitializeContext(deviceCtx *malgo.AllocatedContext) {
	if deviceCtx == nil {
		return
	}

	if err := deviceCtx.Uninit(); err != nil {
		slog.Error("failed to uninitialize malgo context", "error", err)
	}
	deviceCtx.Free()
}
