package recognize

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"sync"
	"testing"
	"time"

	"github.com/kiosklabs/facegate/internal/attendance"
	"github.com/kiosklabs/facegate/internal/debounce"
	"github.com/kiosklabs/facegate/internal/gallery"
	"github.com/kiosklabs/facegate/internal/match"
	"github.com/kiosklabs/facegate/internal/store/mock"
	"github.com/kiosklabs/facegate/internal/vision"
)

var frameJPEG = func() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	for y := 0; y < 480; y++ {
		for x := 0; x < 640; x++ {
			img.Set(x, y, color.RGBA{R: 128, G: 128, B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		panic(err)
	}
	return buf.Bytes()
}()

// clock is a test clock the frame source advances as it emits frames.
type clock struct {
	mu  sync.Mutex
	cur time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

func (c *clock) set(t time.Time) {
	c.mu.Lock()
	c.cur = t
	c.mu.Unlock()
}

// scriptedSource emits one frame per scripted timestamp, then reports the
// device as gone.
type scriptedSource struct {
	clk   *clock
	times []time.Time
	idx   int
}

func (s *scriptedSource) Next(ctx context.Context) (vision.Frame, error) {
	if err := ctx.Err(); err != nil {
		return vision.Frame{}, err
	}
	if s.idx >= len(s.times) {
		return vision.Frame{}, vision.ErrDeviceUnavailable
	}
	s.clk.set(s.times[s.idx])
	s.idx++
	return vision.Frame{Data: frameJPEG, Sequence: uint64(s.idx), TakenAt: s.clk.now()}, nil
}

func (s *scriptedSource) Close() error { return nil }

type staticDetector struct {
	boxes []vision.Box
	err   error
}

func (d *staticDetector) Detect(ctx context.Context, frame vision.Frame) ([]vision.Box, error) {
	return d.boxes, d.err
}

// seqEmbedder returns embeddings round-robin across calls, matching the
// per-face processing order within a frame.
type seqEmbedder struct {
	mu      sync.Mutex
	calls   int
	vectors [][]float32
}

func (e *seqEmbedder) Embed(ctx context.Context, faceJPEG []byte) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v := e.vectors[e.calls%len(e.vectors)]
	e.calls++
	return v, nil
}

var (
	baseTime = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	aliceVec = []float32{1, 0, 0}
	bobVec   = []float32{0, 1, 0}
)

func enrolledGallery() *gallery.Store {
	store := gallery.NewStore()
	store.Publish(gallery.Template{ID: "alice", Name: "Alice", Vector: aliceVec})
	store.Publish(gallery.Template{ID: "bob", Name: "Bob", Vector: bobVec})
	return store
}

func newTestLoop(src vision.FrameSource, det vision.Detector, emb vision.Embedder, clk *clock, ledger *mock.Ledger) *Loop {
	matcher := match.New(enrolledGallery(), 0.6)
	machine := attendance.NewMachine(ledger, 60*time.Second)
	loop := New(src, det, emb, matcher, debounce.NewTracker(5*time.Second), machine,
		Options{MinFaceSize: 80, FaceCropSize: 160})
	loop.now = clk.now
	return loop
}

func collectEvents(loop *Loop) []Event {
	var events []Event
	for e := range loop.Events() {
		events = append(events, e)
	}
	return events
}

func TestLoop_CheckInThenDebounced(t *testing.T) {
	clk := &clock{}
	// Three sightings of the same face within the 5s debounce window.
	src := &scriptedSource{clk: clk, times: []time.Time{
		baseTime,
		baseTime.Add(1 * time.Second),
		baseTime.Add(2 * time.Second),
	}}
	ledger := mock.NewLedger()
	loop := newTestLoop(src, &staticDetector{boxes: []vision.Box{{X1: 100, Y1: 100, X2: 250, Y2: 260}}},
		&seqEmbedder{vectors: [][]float32{aliceVec}}, clk, ledger)

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background()) }()
	events := collectEvents(loop)

	if err := <-done; !errors.Is(err, vision.ErrDeviceUnavailable) {
		t.Fatalf("expected device loss to end the loop, got %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected a single debounced event, got %d", len(events))
	}
	if events[0].IdentityID != "alice" || events[0].Status != attendance.StatusCheckIn {
		t.Errorf("unexpected event %+v", events[0])
	}
	if ledger.Creates != 1 {
		t.Errorf("expected one session create, got %d", ledger.Creates)
	}
}

func TestLoop_CheckOutAfterDwell(t *testing.T) {
	clk := &clock{}
	src := &scriptedSource{clk: clk, times: []time.Time{
		baseTime,
		baseTime.Add(30 * time.Second), // past debounce, below dwell -> wait
		baseTime.Add(70 * time.Second), // dwell satisfied -> check-out
	}}
	ledger := mock.NewLedger()
	loop := newTestLoop(src, &staticDetector{boxes: []vision.Box{{X1: 100, Y1: 100, X2: 250, Y2: 260}}},
		&seqEmbedder{vectors: [][]float32{aliceVec}}, clk, ledger)

	go loop.Run(context.Background())
	events := collectEvents(loop)

	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d: %+v", len(events), events)
	}
	if events[0].Status != attendance.StatusCheckIn {
		t.Errorf("event 0: expected check-in, got %s", events[0].Status)
	}
	if events[1].Status != attendance.StatusWait || events[1].Wait != 30*time.Second {
		t.Errorf("event 1: expected 30s wait, got %+v", events[1])
	}
	if events[2].Status != attendance.StatusCheckOut {
		t.Errorf("event 2: expected check-out, got %s", events[2].Status)
	}

	sessions := ledger.Sessions("alice", attendance.DateOf(baseTime))
	if len(sessions) != 1 || sessions[0].CheckOut == nil {
		t.Errorf("expected one closed session, got %+v", sessions)
	}
}

func TestLoop_UnknownFaceLeavesNoTrace(t *testing.T) {
	clk := &clock{}
	src := &scriptedSource{clk: clk, times: []time.Time{baseTime}}
	ledger := mock.NewLedger()
	// Score ~0.4 against a 0.6 threshold.
	stranger := []float32{0.4, 0.2, 0.89}
	loop := newTestLoop(src, &staticDetector{boxes: []vision.Box{{X1: 100, Y1: 100, X2: 250, Y2: 260}}},
		&seqEmbedder{vectors: [][]float32{stranger}}, clk, ledger)

	go loop.Run(context.Background())
	events := collectEvents(loop)

	if len(events) != 0 {
		t.Errorf("unknown face must produce no events, got %+v", events)
	}
	if ledger.Len() != 0 {
		t.Error("unknown face must not touch the ledger")
	}
	if loop.debouncer.Len() != 0 {
		t.Error("unknown face must not write debounce state")
	}
}

func TestLoop_TwoIdentitiesInOneFrame(t *testing.T) {
	clk := &clock{}
	src := &scriptedSource{clk: clk, times: []time.Time{baseTime}}
	ledger := mock.NewLedger()
	loop := newTestLoop(src, &staticDetector{boxes: []vision.Box{
		{X1: 50, Y1: 100, X2: 180, Y2: 240},
		{X1: 350, Y1: 100, X2: 480, Y2: 240},
	}}, &seqEmbedder{vectors: [][]float32{aliceVec, bobVec}}, clk, ledger)

	go loop.Run(context.Background())
	events := collectEvents(loop)

	if len(events) != 2 {
		t.Fatalf("expected one event per identity, got %d", len(events))
	}
	if events[0].IdentityID != "alice" || events[1].IdentityID != "bob" {
		t.Errorf("unexpected identities: %+v", events)
	}
	if len(ledger.Sessions("alice", attendance.DateOf(baseTime))) != 1 {
		t.Error("alice must have her own session")
	}
	if len(ledger.Sessions("bob", attendance.DateOf(baseTime))) != 1 {
		t.Error("bob must have his own session")
	}
}

func TestLoop_DetectorFailureSkipsFrame(t *testing.T) {
	clk := &clock{}
	src := &scriptedSource{clk: clk, times: []time.Time{baseTime, baseTime.Add(time.Second)}}
	ledger := mock.NewLedger()
	loop := newTestLoop(src, &staticDetector{err: errors.New("detector crashed")},
		&seqEmbedder{vectors: [][]float32{aliceVec}}, clk, ledger)

	done := make(chan error, 1)
	go func() { done <- loop.Run(context.Background()) }()
	events := collectEvents(loop)

	// Detection failures are per-frame: the loop survives until device loss.
	if err := <-done; !errors.Is(err, vision.ErrDeviceUnavailable) {
		t.Fatalf("expected device loss after skipped frames, got %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected no events from failed detections, got %+v", events)
	}
}

func TestLoop_ContextCancelStops(t *testing.T) {
	clk := &clock{cur: baseTime}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// Endless source; only the context stops the loop.
	src := &scriptedSource{clk: clk, times: make([]time.Time, 1000)}
	loop := newTestLoop(src, &staticDetector{}, &seqEmbedder{vectors: [][]float32{aliceVec}}, clk, mock.NewLedger())

	if err := loop.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
