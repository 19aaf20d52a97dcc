package recording

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"
)

// AudioFrame is one chunk of captured microphone audio.
type AudioFrame struct {
	Samples   []float32
	Timestamp time.Time
}

type Config struct {
	SampleRate        int
	Channels          int
	ChannelBufferSize int
}

func DefaultConfig() Config {
	return Config{
		SampleRate:        16000,
		Channels:          1,
		ChannelBufferSize: 32,
	}
}

// Recorder is the capture surface the pipeline depends on. The device-backed
// implementation is DeviceRecorder; tests substitute a mock.
type Recorder interface {
	Start(ctx context.Context) (<-chan AudioFrame, <-chan error, error)
	Stop() error
	IsRecording() bool
	Close() error
}

// DeviceRecorder captures audio from the default microphone via miniaudio.
// At most one capture session is active at a time.
type DeviceRecorder struct {
	config Config

	malgoCtx  *malgo.AllocatedContext
	recording atomic.Bool

	mu     sync.Mutex // guards device and cancel
	device *malgo.Device
	cancel context.CancelFunc

	wg sync.WaitGroup
}

func NewRecorder(config Config) (*DeviceRecorder, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	malgoCtx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("init audio context: %w", err)
	}

	return &DeviceRecorder{config: config, malgoCtx: malgoCtx}, nil
}

func NewDefaultRecorder() (*DeviceRecorder, error) { return NewRecorder(DefaultConfig()) }

func (r *DeviceRecorder) IsRecording() bool {
	return r.recording.Load()
}

func (r *DeviceRecorder) SampleRate() int { return r.config.SampleRate }
func (r *DeviceRecorder) Channels() int   { return r.config.Channels }

// Start opens the capture device and begins streaming frames. The returned
// channels are closed when the session ends, via Stop or context cancellation.
func (r *DeviceRecorder) Start(ctx context.Context) (<-chan AudioFrame, <-chan error, error) {
	if r.recording.Load() {
		return nil, nil, fmt.Errorf("already recording")
	}
	if r.malgoCtx == nil {
		return nil, nil, fmt.Errorf("recorder is closed")
	}

	captureCtx, cancel := context.WithCancel(ctx)

	frameCh := make(chan AudioFrame, r.config.ChannelBufferSize)
	errCh := make(chan error, 1)

	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatF32
	deviceCfg.Capture.Channels = uint32(r.config.Channels)
	deviceCfg.SampleRate = uint32(r.config.SampleRate)

	var dropped atomic.Int64
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pSample []byte, frameCount uint32) {
			samples := bytesToFloat32(pSample, frameCount*uint32(r.config.Channels))
			if len(samples) == 0 {
				return
			}
			frame := AudioFrame{Samples: samples, Timestamp: time.Now()}
			select {
			case frameCh <- frame:
			case <-captureCtx.Done():
			default:
				// Backpressure: drop rather than stall the device callback.
				if n := dropped.Add(1); n%100 == 1 {
					log.Printf("recording: dropped %d frames due to backpressure", n)
				}
			}
		},
	}

	device, err := malgo.InitDevice(r.malgoCtx.Context, deviceCfg, callbacks)
	if err != nil {
		cancel()
		return nil, nil, fmt.Errorf("init capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		cancel()
		return nil, nil, fmt.Errorf("start capture device: %w", err)
	}

	r.mu.Lock()
	r.device = device
	r.cancel = cancel
	r.mu.Unlock()

	r.recording.Store(true)
	r.wg.Add(1)
	go r.waitLoop(captureCtx, frameCh, errCh)

	return frameCh, errCh, nil
}

// Stop ends the capture session. Safe to call when not recording.
func (r *DeviceRecorder) Stop() error {
	if !r.recording.Load() {
		return nil
	}

	r.mu.Lock()
	cancel := r.cancel
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
	return nil
}

// Close stops any active session and releases the audio context.
func (r *DeviceRecorder) Close() error {
	_ = r.Stop()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.malgoCtx != nil {
		if err := r.malgoCtx.Uninit(); err != nil {
			return fmt.Errorf("uninit audio context: %w", err)
		}
		r.malgoCtx.Free()
		r.malgoCtx = nil
	}
	return nil
}

func (r *DeviceRecorder) waitLoop(ctx context.Context, frameCh chan AudioFrame, errCh chan error) {
	defer func() {
		r.mu.Lock()
		if r.device != nil {
			r.device.Uninit()
			r.device = nil
		}
		r.cancel = nil
		r.mu.Unlock()

		r.recording.Store(false)
		close(frameCh)
		close(errCh)
		r.wg.Done()
	}()

	<-ctx.Done()
}

func validateConfig(config Config) error {
	if config.SampleRate <= 0 {
		return fmt.Errorf("invalid SampleRate: %d", config.SampleRate)
	}
	if config.Channels <= 0 {
		return fmt.Errorf("invalid Channels: %d", config.Channels)
	}
	if config.ChannelBufferSize <= 0 {
		return fmt.Errorf("invalid ChannelBufferSize: %d", config.ChannelBufferSize)
	}
	return nil
}

func bytesToFloat32(data []byte, sampleCount uint32) []float32 {
	samples := make([]float32, 0, sampleCount)
	for i := uint32(0); i < sampleCount; i++ {
		offset := i * 4
		if offset+4 > uint32(len(data)) {
			break
		}
		bits := binary.LittleEndian.Uint32(data[offset : offset+4])
		samples = append(samples, math.Float32frombits(bits))
	}
	return samples
}
