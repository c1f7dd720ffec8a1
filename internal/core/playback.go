package core

import (
	"context"
	"math"
	"math/rand/v2"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/avatarlab/actiond/internal/protocol"
)

// PlaybackConfig tunes the simulated playback loop.
type PlaybackConfig struct {
	MinSteps int
	MaxSteps int
	MinDelay time.Duration
	MaxDelay time.Duration
}

// DefaultPlaybackConfig mirrors the production defaults: 5-10 steps with a
// 0.5-2s pause between them.
func DefaultPlaybackConfig() PlaybackConfig {
	return PlaybackConfig{
		MinSteps: 5,
		MaxSteps: 10,
		MinDelay: 500 * time.Millisecond,
		MaxDelay: 2 * time.Second,
	}
}

// PlaybackTask simulates one running action group. Cancellation is
// cooperative: Cancel() trips the context and the loop observes it at the
// next iteration boundary (the inter-step wait included).
type PlaybackTask struct {
	GroupID protocol.GroupID

	conn     Conn
	cfg      PlaybackConfig
	ctx      context.Context
	cancel   context.CancelFunc
	progress atomic.Uint64
	onDone   func(*PlaybackTask)
}

func newPlaybackTask(gid protocol.GroupID, conn Conn, cfg PlaybackConfig, onDone func(*PlaybackTask)) *PlaybackTask {
	ctx, cancel := context.WithCancel(context.Background())
	return &PlaybackTask{
		GroupID: gid,
		conn:    conn,
		cfg:     cfg,
		ctx:     ctx,
		cancel:  cancel,
		onDone:  onDone,
	}
}

// Cancel marks the task stopped. It never waits for the loop to exit.
func (t *PlaybackTask) Cancel() { t.cancel() }

// Cancelled reports whether Cancel has been called.
func (t *PlaybackTask) Cancelled() bool { return t.ctx.Err() != nil }

// Progress is the last emitted value in [0, 100].
func (t *PlaybackTask) Progress() float64 {
	return math.Float64frombits(t.progress.Load())
}

// Start launches the playback loop. Call at most once.
func (t *PlaybackTask) Start() { go t.run() }

func (t *PlaybackTask) run() {
	steps := t.cfg.MinSteps
	if t.cfg.MaxSteps > t.cfg.MinSteps {
		steps += rand.IntN(t.cfg.MaxSteps - t.cfg.MinSteps + 1)
	}
	log.Info().Str("module", "core.playback").Str("client", t.conn.ID()).
		Str("group", string(t.GroupID)).Int("steps", steps).Msg("playback started")

	for i := 0; i < steps; i++ {
		if t.Cancelled() {
			log.Info().Str("module", "core.playback").Str("group", string(t.GroupID)).Msg("playback stopped")
			return
		}

		value := math.Min(100.0, float64(i+1)*100.0/float64(steps))
		t.progress.Store(math.Float64bits(value))

		if err := t.conn.TrySend(protocol.Progress(value, t.GroupID)); err != nil {
			log.Error().Err(err).Str("module", "core.playback").Str("client", t.conn.ID()).
				Str("group", string(t.GroupID)).Msg("progress send failed")
			return
		}

		if !t.sleep() {
			log.Info().Str("module", "core.playback").Str("group", string(t.GroupID)).Msg("playback stopped")
			return
		}
	}

	// The task may have been cancelled during the last pause; whoever
	// cancelled it already removed it from the session table.
	if t.Cancelled() {
		return
	}

	if err := t.conn.TrySend(protocol.ActionEnd(t.GroupID)); err != nil {
		log.Error().Err(err).Str("module", "core.playback").Str("client", t.conn.ID()).
			Str("group", string(t.GroupID)).Msg("actionEnd send failed")
	} else {
		log.Info().Str("module", "core.playback").Str("client", t.conn.ID()).
			Str("group", string(t.GroupID)).Msg("playback finished")
	}
	t.onDone(t)
}

// sleep waits the random inter-step delay. Returns false when the task was
// cancelled while waiting.
func (t *PlaybackTask) sleep() bool {
	delay := t.cfg.MinDelay
	if t.cfg.MaxDelay > t.cfg.MinDelay {
		delay += rand.N(t.cfg.MaxDelay - t.cfg.MinDelay)
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-t.ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
