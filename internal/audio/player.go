package audio

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/voxstream/voxstream/domain/repositories"
)

const defaultRetryDelay = 200 * time.Millisecond

// Player drains a FIFO queue of playable PCM units through a playback
// device. Playback starts automatically on the first enqueue and a device
// error skips to the next unit instead of aborting the queue.
type Player struct {
	device     repositories.PlaybackDevice
	logger     *zap.Logger
	retryDelay time.Duration

	mu           sync.Mutex
	queue        [][]byte
	playing      bool
	cancelActive context.CancelFunc
}

func NewPlayer(device repositories.PlaybackDevice, logger *zap.Logger) *Player {
	return &Player{
		device:     device,
		logger:     logger,
		retryDelay: defaultRetryDelay,
	}
}

// Enqueue appends a unit to the queue and starts the drain loop if it is not
// already running.
func (p *Player) Enqueue(unit []byte) {
	if len(unit) == 0 {
		return
	}
	p.mu.Lock()
	p.queue = append(p.queue, unit)
	if !p.playing {
		p.playing = true
		go p.drain()
	}
	p.mu.Unlock()
}

func (p *Player) drain() {
	for {
		p.mu.Lock()
		if len(p.queue) == 0 {
			p.playing = false
			p.mu.Unlock()
			return
		}
		unit := p.queue[0]
		p.queue = p.queue[1:]
		ctx, cancel := context.WithCancel(context.Background())
		p.cancelActive = cancel
		p.mu.Unlock()

		err := p.device.Play(ctx, unit)
		interrupted := ctx.Err() != nil

		p.mu.Lock()
		p.cancelActive = nil
		p.mu.Unlock()
		cancel()

		if err != nil && !interrupted {
			p.logger.Warn("playback failed, skipping to next unit",
				zap.Int("unit_bytes", len(unit)),
				zap.Error(err))
			time.Sleep(p.retryDelay)
		}
	}
}

// Cancel stops the active unit and discards the remaining queue. Safe to
// call at any time, including when nothing is playing.
func (p *Player) Cancel() {
	p.mu.Lock()
	p.queue = nil
	if p.cancelActive != nil {
		p.cancelActive()
	}
	p.mu.Unlock()
}

// Pending returns the number of queued units not yet started.
func (p *Player) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}
