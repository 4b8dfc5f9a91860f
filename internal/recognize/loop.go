// Package recognize runs the continuous camera loop: detect faces in each
// frame, match them against the gallery, debounce repeat sightings, and
// feed accepted events into the attendance state machine.
package recognize

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/kiosklabs/facegate/internal/attendance"
	"github.com/kiosklabs/facegate/internal/debounce"
	"github.com/kiosklabs/facegate/internal/match"
	"github.com/kiosklabs/facegate/internal/vision"
)

// Event is one accepted, debounced recognition outcome.
type Event struct {
	IdentityID string
	Name       string
	Score      float64
	Status     attendance.Status
	Wait       time.Duration
	At         time.Time
}

// frameOutcome makes the per-frame control flow explicit instead of
// exception-style branching: a frame is either processed, skipped, or
// fatal to the loop.
type frameOutcome int

const (
	frameProcessed frameOutcome = iota
	frameSkipped
	frameFatal
)

// Options tunes the loop.
type Options struct {
	MinFaceSize  int
	FaceCropSize int
	PrunePeriod  time.Duration // how often stale debounce entries are dropped; 0 disables
}

// Loop is one recognition instance bound to one camera.
type Loop struct {
	source    vision.FrameSource
	detector  vision.Detector
	embedder  vision.Embedder
	matcher   *match.Matcher
	debouncer *debounce.Tracker
	machine   *attendance.Machine
	opts      Options
	events    chan Event
	now       func() time.Time
}

// New creates a recognition loop. The caller owns the frame source and the
// camera lease around Run.
func New(
	source vision.FrameSource,
	detector vision.Detector,
	embedder vision.Embedder,
	matcher *match.Matcher,
	debouncer *debounce.Tracker,
	machine *attendance.Machine,
	opts Options,
) *Loop {
	return &Loop{
		source:    source,
		detector:  detector,
		embedder:  embedder,
		matcher:   matcher,
		debouncer: debouncer,
		machine:   machine,
		opts:      opts,
		events:    make(chan Event, 64),
		now:       time.Now,
	}
}

// Events returns the channel of accepted recognition events. Slow
// consumers drop events rather than stall the loop.
func (l *Loop) Events() <-chan Event {
	return l.events
}

// Run processes frames until the context is cancelled or the device fails.
// Device failure is terminal and returned to the caller; per-frame
// capability failures only skip the frame.
func (l *Loop) Run(ctx context.Context) error {
	defer close(l.events)

	lastPrune := l.now()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, err := l.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, vision.ErrDeviceUnavailable) {
				return err
			}
			continue
		}

		if outcome := l.processFrame(ctx, frame); outcome == frameFatal {
			return ctx.Err()
		}

		if l.opts.PrunePeriod > 0 && l.now().Sub(lastPrune) > l.opts.PrunePeriod {
			l.debouncer.Prune(l.now(), l.opts.PrunePeriod)
			lastPrune = l.now()
		}
	}
}

// processFrame handles every face in one frame independently: a failure on
// one face never affects the others.
func (l *Loop) processFrame(ctx context.Context, frame vision.Frame) frameOutcome {
	boxes, err := l.detector.Detect(ctx, frame)
	if err != nil {
		if ctx.Err() != nil {
			return frameFatal
		}
		return frameSkipped // detection failure is per-frame, non-fatal
	}

	for _, box := range boxes {
		l.processFace(ctx, frame, box)
	}
	return frameProcessed
}

func (l *Loop) processFace(ctx context.Context, frame vision.Frame, box vision.Box) {
	crop, err := vision.CropFace(frame, box, l.opts.MinFaceSize, l.opts.FaceCropSize)
	if err != nil {
		return // too small or undecodable; skip this face
	}

	embedding, err := l.embedder.Embed(ctx, crop)
	if err != nil {
		return // embedding failure is per-face, non-fatal
	}

	result := l.matcher.Match(embedding)
	if !result.OK {
		// Unknown presence: no attendance event, no debounce write.
		return
	}

	now := l.now()
	if !l.debouncer.ShouldFire(result.ID, now) {
		return
	}

	outcome, err := l.machine.Mark(ctx, result.ID, now)
	if err != nil {
		// The ledger failed loudly; log and move on. The debounce window
		// keeps a transient failure from hammering the store.
		log.Printf("attendance mark failed for %s: %v", result.ID, err)
		return
	}

	event := Event{
		IdentityID: result.ID,
		Name:       result.Name,
		Score:      result.Score,
		Status:     outcome.Status,
		Wait:       outcome.Wait,
		At:         now,
	}
	select {
	case l.events <- event:
	default:
		// Consumer lagging; drop rather than block the camera loop.
	}
}
