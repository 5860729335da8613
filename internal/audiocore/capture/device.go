package capture

import (
	"context"
	"encoding/hex"
	"fmt"
	"runtime"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/hashicorp/go-multierror"

	"github.com/tphakala/seamless-recorder/internal/audiocore"
	"github.com/tphakala/seamless-recorder/internal/conf"
	"github.com/tphakala/seamless-recorder/internal/logger"
)

// DeviceInfo describes a capture source
type DeviceInfo struct {
	Index     int
	Name      string
	ID        string
	IsDefault bool
}

// Device captures S16 PCM from a malgo device and pumps it to a DeliverFunc
type Device struct {
	settings conf.CaptureSettings
	format   audiocore.AudioFormat
	pump     *Pump
	log      logger.Logger

	mu      sync.Mutex
	running bool
}

// NewDevice returns a device that delivers captured audio to deliver
func NewDevice(settings conf.CaptureSettings, format audiocore.AudioFormat, deliver DeliverFunc) *Device {
	return &Device{
		settings: settings,
		format:   format,
		pump:     NewPump(settings.RingBufferSize, settings.PumpInterval, deliver, WithFrameSize(format.BytesPerFrame())),
		log:      getLogger().Module("device"),
	}
}

// Pump exposes the device's buffer statistics
func (d *Device) Pump() *Pump {
	return d.pump
}

func backendForOS() malgo.Backend {
	switch runtime.GOOS {
	case "linux":
		return malgo.BackendAlsa
	case "windows":
		return malgo.BackendWasapi
	case "darwin":
		return malgo.BackendCoreaudio
	default:
		return malgo.BackendNull
	}
}

func initContext(log logger.Logger) (*malgo.AllocatedContext, error) {
	return malgo.InitContext([]malgo.Backend{backendForOS()}, malgo.ContextConfig{}, func(message string) {
		log.Trace("malgo", logger.String("message", strings.TrimSpace(message)))
	})
}

// ListDevices returns the capture sources of the OS backend
func ListDevices() ([]DeviceInfo, error) {
	mctx, err := initContext(getLogger())
	if err != nil {
		return nil, fmt.Errorf("audio context init failed: %w", err)
	}
	defer func() {
		_ = mctx.Uninit()
		mctx.Free()
	}()

	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return nil, fmt.Errorf("listing capture devices failed: %w", err)
	}

	devices := make([]DeviceInfo, 0, len(infos))
	for i := range infos {
		devices = append(devices, DeviceInfo{
			Index:     i,
			Name:      infos[i].Name(),
			ID:        decodeID(infos[i].ID.String()),
			IsDefault: infos[i].IsDefault == 1,
		})
	}
	return devices, nil
}

// decodeID turns malgo's hex device ids into the ALSA style names users type
func decodeID(hexID string) string {
	b, err := hex.DecodeString(hexID)
	if err != nil {
		return hexID
	}
	return strings.TrimRight(string(b), "\x00")
}

// matchesDevice reports whether info is the device named by source. An
// empty source, "default" and "sysdefault" select the backend default.
func matchesDevice(source string, info *malgo.DeviceInfo) bool {
	switch source {
	case "", "default", "sysdefault":
		return info.IsDefault == 1
	}
	return decodeID(info.ID.String()) == source || strings.Contains(info.Name(), source)
}

// Run opens the device and captures until ctx is done. It blocks and always
// stops and releases the device before returning.
func (d *Device) Run(ctx context.Context) (err error) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return fmt.Errorf("capture device already running")
	}
	d.running = true
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
	}()

	mctx, err := initContext(d.log)
	if err != nil {
		return audiocore.NewError(audiocore.ErrCaptureOpenFailed, err, componentCapture, "init_context")
	}
	defer func() {
		if uerr := mctx.Uninit(); uerr != nil {
			err = multierror.Append(err, fmt.Errorf("audio context uninit: %w", uerr)).ErrorOrNil()
		}
		mctx.Free()
	}()

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(d.format.Channels)
	cfg.SampleRate = uint32(d.format.SampleRate)
	cfg.Alsa.NoMMap = 1

	infos, err := mctx.Devices(malgo.Capture)
	if err != nil {
		return audiocore.NewError(audiocore.ErrCaptureOpenFailed, err, componentCapture, "list_devices")
	}
	selected := ""
	for i := range infos {
		if matchesDevice(d.settings.Device, &infos[i]) {
			cfg.Capture.DeviceID = infos[i].ID.Pointer()
			selected = infos[i].Name()
			break
		}
	}
	if selected == "" && d.settings.Device != "" && d.settings.Device != "default" && d.settings.Device != "sysdefault" {
		return audiocore.NewError(audiocore.ErrCaptureOpenFailed,
			fmt.Errorf("no capture source matches %q", d.settings.Device), componentCapture, "select_device")
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			d.pump.Feed(input)
		},
	}
	device, err := malgo.InitDevice(mctx.Context, cfg, callbacks)
	if err != nil {
		return audiocore.NewError(audiocore.ErrCaptureOpenFailed, err, componentCapture, "init_device")
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return audiocore.NewError(audiocore.ErrCaptureOpenFailed, err, componentCapture, "start_device")
	}
	d.log.Info("capture device started",
		logger.String("device", selected),
		logger.String("format", d.format.String()))

	perr := d.pump.Run(ctx)

	var result *multierror.Error
	if serr := device.Stop(); serr != nil {
		result = multierror.Append(result, fmt.Errorf("device stop: %w", serr))
	}
	if perr != nil {
		result = multierror.Append(result, perr)
	}
	d.log.Info("capture device stopped",
		logger.Int64("overrun_bytes", d.pump.Overruns()))
	return result.ErrorOrNil()
}
