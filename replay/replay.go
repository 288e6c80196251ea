// Package replay plays recorded message logs through an in-process
// pipeline, so fold consumers can be exercised against captured data.
//
// A log is a JSON or YAML array of records:
//
//	- topic: /gps/fix
//	  receive_time: 2024-03-01T10:00:00Z
//	  data: {lat: 48.1, lon: 11.5}
//
// Records are grouped into batches by receive time and delivered in order,
// paced by the gaps between timestamps scaled by the configured rate.
// Editing the log file while playing reloads it and restarts playback
// under a new seek epoch.
package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"gopkg.in/yaml.v3"

	"github.com/zoobzio/fold"
)

// Record is one captured message in a log file.
type Record struct {
	Topic       string    `json:"topic" yaml:"topic"`
	ReceiveTime time.Time `json:"receive_time" yaml:"receive_time"`
	Data        any       `json:"data" yaml:"data"`
}

// decodeRecords parses a log body, detecting JSON by its leading character
// and defaulting to YAML (which also accepts plain JSON).
func decodeRecords(raw []byte) ([]Record, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var recs []Record
		if err := json.Unmarshal(raw, &recs); err != nil {
			return nil, fmt.Errorf("expected JSON: %w", err)
		}
		return recs, nil
	}

	var recs []Record
	if err := yaml.Unmarshal(raw, &recs); err != nil {
		return nil, err
	}
	return recs, nil
}

// Option configures a Player.
type Option func(*Player)

// WithClock sets a custom clock for playback pacing.
// Use this with clockz.FakeClock for deterministic timing tests.
func WithClock(clock clockz.Clock) Option {
	return func(p *Player) {
		p.clock = clock
	}
}

// Player plays a recorded log through an embedded in-memory pipeline.
// It implements fold.Pipeline, so accumulators attach to it directly.
type Player struct {
	cfg      Config
	pipeline *fold.MemoryPipeline
	clock    clockz.Clock

	mu      sync.Mutex
	records []fold.Message
	pos     int
	epoch   int64
	loadGen int
	started bool

	// kick wakes a playback loop parked at the end of a non-looping log.
	kick chan struct{}
}

// NewPlayer creates a Player for the given configuration.
func NewPlayer(cfg Config, opts ...Option) (*Player, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid replay config: %w", err)
	}
	p := &Player{
		cfg:      cfg,
		pipeline: fold.NewMemoryPipeline(),
		clock:    clockz.RealClock,
		kick:     make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// SetSubscriptions replaces the full subscription set for consumerID.
func (p *Player) SetSubscriptions(consumerID string, subs []fold.Subscription) {
	p.pipeline.SetSubscriptions(consumerID, subs)
}

// RequestBackfill redelivers the latest retained message per subscribed
// topic.
func (p *Player) RequestBackfill() {
	p.pipeline.RequestBackfill()
}

// Watch registers a new watcher on the underlying pipeline.
func (p *Player) Watch(ctx context.Context) (<-chan fold.PlayerState, error) {
	return p.pipeline.Watch(ctx)
}

// Start loads the log, begins watching it for changes, and starts
// playback. It can only be called once.
func (p *Player) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return fmt.Errorf("player already started")
	}
	p.started = true
	p.mu.Unlock()

	records, err := p.load()
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(p.cfg.File); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch log %s: %w", p.cfg.File, err)
	}

	p.mu.Lock()
	p.records = records
	p.pos = 0
	p.mu.Unlock()

	capitan.Emit(ctx, Loaded,
		KeyFile.Field(p.cfg.File),
		KeyRecordCount.Field(len(records)),
	)

	go p.watchFile(ctx, watcher)
	go p.run(ctx)

	return nil
}

// SeekTo restarts playback from the beginning under the given epoch.
// Attached accumulators observe the epoch change and rebuild their state.
func (p *Player) SeekTo(epoch int64) {
	p.mu.Lock()
	p.pos = 0
	p.epoch = epoch
	p.loadGen++
	// Seek under the lock so the playback loop cannot slip a batch out
	// ahead of the seek notification.
	p.pipeline.SeekTo(epoch)
	p.mu.Unlock()

	p.kickPlayback()
}

// kickPlayback wakes a parked playback loop without blocking.
func (p *Player) kickPlayback() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// load reads and decodes the log file, applies the topic allowlist, and
// returns messages sorted by receive time.
func (p *Player) load() ([]fold.Message, error) {
	raw, err := os.ReadFile(p.cfg.File)
	if err != nil {
		return nil, fmt.Errorf("failed to read log %s: %w", p.cfg.File, err)
	}
	recs, err := decodeRecords(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode log %s: %w", p.cfg.File, err)
	}

	allow := make(map[string]struct{}, len(p.cfg.Topics))
	for _, t := range p.cfg.Topics {
		allow[t] = struct{}{}
	}

	msgs := make([]fold.Message, 0, len(recs))
	for i, rec := range recs {
		if rec.Topic == "" {
			return nil, fmt.Errorf("log %s: record %d has no topic", p.cfg.File, i)
		}
		if len(allow) > 0 {
			if _, ok := allow[rec.Topic]; !ok {
				continue
			}
		}
		msgs = append(msgs, fold.Message{
			Topic:       rec.Topic,
			ReceiveTime: rec.ReceiveTime,
			Data:        rec.Data,
		})
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].ReceiveTime.Before(msgs[j].ReceiveTime)
	})
	return msgs, nil
}

// watchFile reloads the log when it is rewritten, resetting playback under
// a new epoch.
func (p *Player) watchFile(ctx context.Context, watcher *fsnotify.Watcher) {
	defer watcher.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			records, err := p.load()
			if err != nil {
				capitan.Emit(ctx, LoadFailed,
					KeyFile.Field(p.cfg.File),
					KeyError.Field(err.Error()),
				)
				continue
			}

			p.mu.Lock()
			p.records = records
			p.pos = 0
			p.epoch++
			p.loadGen++
			epoch := p.epoch
			p.pipeline.SeekTo(epoch)
			p.mu.Unlock()

			p.kickPlayback()
			capitan.Emit(ctx, Reloaded,
				KeyFile.Field(p.cfg.File),
				KeyRecordCount.Field(len(records)),
				KeyEpoch.Field(int(epoch)),
			)

		case _, ok := <-watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// run delivers record batches in order, pacing by timestamp gaps scaled by
// the configured rate.
func (p *Player) run(ctx context.Context) {
	finished := false
	for {
		if ctx.Err() != nil {
			return
		}

		p.mu.Lock()
		gen := p.loadGen

		if p.pos >= len(p.records) {
			if !p.cfg.Loop {
				p.mu.Unlock()
				if !finished {
					finished = true
					capitan.Emit(ctx, Finished,
						KeyFile.Field(p.cfg.File),
					)
				}
				// Park until a seek or reload restarts playback.
				select {
				case <-ctx.Done():
					return
				case <-p.kick:
					finished = false
				}
				continue
			}
			p.pos = 0
			p.epoch++
			epoch := p.epoch
			p.pipeline.SeekTo(epoch)
			p.mu.Unlock()

			capitan.Emit(ctx, Looped,
				KeyFile.Field(p.cfg.File),
				KeyEpoch.Field(int(epoch)),
			)
			continue
		}

		// Group consecutive records sharing a receive time into one batch.
		start := p.pos
		ts := p.records[start].ReceiveTime
		end := start + 1
		for end < len(p.records) && p.records[end].ReceiveTime.Equal(ts) {
			end++
		}
		batch := p.records[start:end]

		var gap time.Duration
		if start > 0 {
			gap = ts.Sub(p.records[start-1].ReceiveTime)
		}
		p.pos = end
		p.mu.Unlock()

		if gap > 0 && p.cfg.Rate > 0 {
			timer := p.clock.NewTimer(time.Duration(float64(gap) / p.cfg.Rate))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C():
			}
		}

		// A reload or seek during the wait supersedes this batch. Publish
		// under the lock so a concurrent seek cannot land between the
		// staleness check and the delivery.
		p.mu.Lock()
		if gen == p.loadGen {
			p.pipeline.Publish(batch...)
		}
		p.mu.Unlock()
	}
}
