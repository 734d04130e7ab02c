package audio

import "github.com/gen2brain/malgo"

// DeviceConfig configures the capture device. Recognition engines expect
// 16 kHz mono signed 16-bit PCM.
type DeviceConfig struct {
	Format          malgo.FormatType
	CaptureChannels int
	SampleRate      int
}

// DefaultConfig is the capture format the recognition engines consume.
func DefaultConfig() *DeviceConfig {
	return &DeviceConfig{
		Format:          malgo.FormatS16,
		CaptureChannels: 1,
		SampleRate:      16_000,
	}
}
