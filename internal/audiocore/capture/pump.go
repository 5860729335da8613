package capture

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/smallnest/ringbuffer"

	"github.com/tphakala/seamless-recorder/internal/audiocore"
	"github.com/tphakala/seamless-recorder/internal/logger"
)

const (
	// DefaultRingBufferSize holds two seconds of 16 kHz stereo audio
	DefaultRingBufferSize = 128000
	// DefaultPumpInterval is how often buffered audio is delivered
	DefaultPumpInterval = 20 * time.Millisecond
)

// DeliverFunc receives captured PCM, normally recorder.Session.Write
type DeliverFunc func(p []byte) (int, error)

// Pump decouples the device callback from delivery. Feed copies into a ring
// buffer without blocking, Run drains it on a ticker.
type Pump struct {
	rb       *ringbuffer.RingBuffer
	deliver  DeliverFunc
	interval time.Duration
	clock    clock.Clock
	frame    int
	chunk    []byte
	overruns atomic.Int64
	failures atomic.Int64
	log      logger.Logger
}

// PumpOption configures a Pump
type PumpOption func(*Pump)

// WithPumpClock replaces the ticker clock
func WithPumpClock(c clock.Clock) PumpOption {
	return func(p *Pump) { p.clock = c }
}

// WithFrameSize sets the frame size that overruns are rounded to
func WithFrameSize(n int) PumpOption {
	return func(p *Pump) {
		if n > 0 {
			p.frame = n
		}
	}
}

// NewPump returns a pump with a ring buffer of size bytes
func NewPump(size int, interval time.Duration, deliver DeliverFunc, opts ...PumpOption) *Pump {
	if size <= 0 {
		size = DefaultRingBufferSize
	}
	if interval <= 0 {
		interval = DefaultPumpInterval
	}
	p := &Pump{
		rb:       ringbuffer.New(size),
		deliver:  deliver,
		interval: interval,
		clock:    clock.New(),
		frame:    audiocore.DefaultFormat().BytesPerFrame(),
		chunk:    make([]byte, size),
		log:      getLogger().Module("pump"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Feed buffers captured bytes. Whole frames that do not fit are dropped and
// counted, so delivered audio stays frame aligned.
func (p *Pump) Feed(b []byte) {
	if free := p.rb.Free(); free < len(b) {
		keep := free - free%p.frame
		p.overruns.Add(int64(len(b) - keep))
		b = b[:keep]
	}
	if len(b) == 0 {
		return
	}
	if _, err := p.rb.Write(b); err != nil {
		p.log.Warn("ring buffer write failed", logger.Error(err))
	}
}

// Drain delivers everything currently buffered
func (p *Pump) Drain() {
	for {
		n, err := p.rb.Read(p.chunk)
		if n > 0 {
			if _, derr := p.deliver(p.chunk[:n]); derr != nil {
				p.failures.Add(1)
				p.log.Debug("delivery failed", logger.Int("bytes", n), logger.Error(derr))
			}
		}
		if err != nil {
			if !errors.Is(err, ringbuffer.ErrIsEmpty) {
				p.log.Warn("ring buffer read failed", logger.Error(err))
			}
			return
		}
		if n < len(p.chunk) {
			return
		}
	}
}

// Run drains the buffer every interval until ctx is done, then drains once more
func (p *Pump) Run(ctx context.Context) error {
	ticker := p.clock.Ticker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.Drain()
			return nil
		case <-ticker.C:
			p.Drain()
		}
	}
}

// Overruns returns the number of bytes dropped because the buffer was full
func (p *Pump) Overruns() int64 {
	return p.overruns.Load()
}

// Failures returns the number of rejected deliveries
func (p *Pump) Failures() int64 {
	return p.failures.Load()
}
