// Package enroll drives the capture pipeline that turns a person's face
// into a gallery template: pull frames, detect, crop, embed, and average
// the collected samples.
package enroll

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiosklabs/facegate/internal/gallery"
	"github.com/kiosklabs/facegate/internal/store"
	"github.com/kiosklabs/facegate/internal/vision"
)

var (
	// ErrEnrollmentActive means a run is already capturing for this
	// identity. A second start is rejected; the existing run keeps going.
	ErrEnrollmentActive = errors.New("enrollment already active for identity")

	// ErrEnrollmentIncomplete means the run ended (cancellation or device
	// loss) before collecting all samples. Nothing is published; a prior
	// template, if any, is left untouched.
	ErrEnrollmentIncomplete = errors.New("enrollment ended before collecting all samples")
)

// Options tunes a capture run.
type Options struct {
	Samples       int           // K: embeddings to collect
	SamplePause   time.Duration // pause between accepted samples
	MinFaceSize   int
	FaceCropSize  int
	MinBrightness float64 // frames darker than this mean luma are skipped; 0 disables the gate
	EmbeddingDim  int     // embeddings of any other length are rejected; 0 disables the check
}

// Progress is the polled status of a run.
type Progress struct {
	RunID   string
	Count   int
	Done    bool
	Started time.Time
}

// Run is one enrollment capture session for a single identity.
type Run struct {
	ID         string
	IdentityID string
	Name       string

	mu      sync.Mutex
	count   int
	done    bool
	err     error
	samples [][]float32
	started time.Time
	cancel  context.CancelFunc
}

func (r *Run) progress() Progress {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Progress{RunID: r.ID, Count: r.count, Done: r.done, Started: r.started}
}

func (r *Run) addSample(embedding []float32) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, embedding)
	r.count = len(r.samples)
	return r.count
}

func (r *Run) finish(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.done = true
	r.err = err
}

// Err returns the terminal error of a finished run, nil while running or
// after a successful completion.
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Registry owns the enrollment runs: exactly one active run per identity,
// created on Start and flagged done on completion or cancellation.
type Registry struct {
	detector  vision.Detector
	embedder  vision.Embedder
	openSrc   func() (vision.FrameSource, error)
	lease     *vision.Lease
	gallery   *gallery.Store
	templates store.TemplateStore
	opts      Options

	mu   sync.Mutex
	runs map[string]*Run
}

// NewRegistry creates an enrollment registry. openSrc opens the capture
// device; the lease serializes device ownership with the recognition loop.
func NewRegistry(
	detector vision.Detector,
	embedder vision.Embedder,
	openSrc func() (vision.FrameSource, error),
	lease *vision.Lease,
	galleryStore *gallery.Store,
	templates store.TemplateStore,
	opts Options,
) *Registry {
	return &Registry{
		detector:  detector,
		embedder:  embedder,
		openSrc:   openSrc,
		lease:     lease,
		gallery:   galleryStore,
		templates: templates,
		opts:      opts,
		runs:      make(map[string]*Run),
	}
}

// Start begins a capture run for the identity and returns immediately with
// the run ID; capture proceeds asynchronously. A second Start while a run
// is active is rejected with ErrEnrollmentActive.
func (reg *Registry) Start(identityID, name string) (string, error) {
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if existing, ok := reg.runs[identityID]; ok && !existing.progress().Done {
		return "", ErrEnrollmentActive
	}

	// Claim the camera before the run exists: a rejected start must leave
	// no trace in the registry.
	if err := reg.lease.TryAcquire("enroll:" + identityID); err != nil {
		return "", err
	}

	ctx, cancel := context.WithCancel(context.Background())
	run := &Run{
		ID:         uuid.NewString(),
		IdentityID: identityID,
		Name:       name,
		started:    time.Now(),
		cancel:     cancel,
	}
	reg.runs[identityID] = run

	go reg.capture(ctx, run)
	return run.ID, nil
}

// Progress returns (samples collected, done) for the identity. A pure
// read; unknown identities report zero progress.
func (reg *Registry) Progress(identityID string) Progress {
	reg.mu.Lock()
	run, ok := reg.runs[identityID]
	reg.mu.Unlock()
	if !ok {
		return Progress{}
	}
	return run.progress()
}

// Err returns the terminal error of the identity's latest run. Nil while
// the run is still capturing, after a successful completion, or for an
// unknown identity.
func (reg *Registry) Err(identityID string) error {
	reg.mu.Lock()
	run, ok := reg.runs[identityID]
	reg.mu.Unlock()
	if !ok {
		return nil
	}
	return run.Err()
}

// Cancel stops the identity's run without publishing a template. Idempotent:
// cancelling a finished or unknown run is a no-op.
func (reg *Registry) Cancel(identityID string) {
	reg.mu.Lock()
	run, ok := reg.runs[identityID]
	reg.mu.Unlock()
	if !ok {
		return
	}
	run.cancel()
}

// capture is the asynchronous body of a run. Per-frame detection and
// embedding failures are non-fatal; the frame is skipped and capture
// continues. Cancellation is checked between frames, never mid-embed.
func (reg *Registry) capture(ctx context.Context, run *Run) {
	defer reg.lease.Release()

	src, err := reg.openSrc()
	if err != nil {
		run.finish(err)
		return
	}
	defer src.Close()

	for run.progress().Count < reg.opts.Samples {
		if ctx.Err() != nil {
			run.finish(ErrEnrollmentIncomplete)
			return
		}

		frame, err := src.Next(ctx)
		if errors.Is(err, vision.ErrDeviceUnavailable) {
			run.finish(err)
			return
		}
		if err != nil {
			if ctx.Err() != nil {
				run.finish(ErrEnrollmentIncomplete)
				return
			}
			continue
		}

		if reg.captureSample(ctx, run, frame) {
			time.Sleep(reg.opts.SamplePause)
		}
	}

	reg.publish(run)
}

// captureSample tries to pull one sample out of a frame. Returns true when
// a sample was collected.
func (reg *Registry) captureSample(ctx context.Context, run *Run, frame vision.Frame) bool {
	if reg.opts.MinBrightness > 0 {
		if luma, err := vision.Brightness(frame); err != nil || luma < reg.opts.MinBrightness {
			return false
		}
	}

	boxes, err := reg.detector.Detect(ctx, frame)
	if err != nil || len(boxes) == 0 {
		return false
	}

	for _, box := range boxes {
		crop, err := vision.CropFace(frame, box, reg.opts.MinFaceSize, reg.opts.FaceCropSize)
		if err != nil {
			continue
		}

		// An in-flight embed is never interrupted by cancellation.
		embedding, err := reg.embedder.Embed(context.WithoutCancel(ctx), crop)
		if err != nil {
			continue
		}
		// A wrong-sized embedding would corrupt the sample mean.
		if reg.opts.EmbeddingDim > 0 && len(embedding) != reg.opts.EmbeddingDim {
			continue
		}

		run.addSample(embedding)
		return true // one sample per frame
	}
	return false
}

// publish averages the collected samples into the identity's template and
// makes it visible atomically: gallery swap first, then persistence.
func (reg *Registry) publish(run *Run) {
	run.mu.Lock()
	samples := run.samples
	run.mu.Unlock()

	if len(samples) == 0 {
		run.finish(ErrEnrollmentIncomplete)
		return
	}

	template := MeanVector(samples)
	now := time.Now()

	reg.gallery.Publish(gallery.Template{
		ID:         run.IdentityID,
		Name:       run.Name,
		Vector:     template,
		EnrolledAt: now,
	})

	err := reg.templates.Publish(context.Background(), store.StoredTemplate{
		ID:         run.IdentityID,
		Name:       run.Name,
		Embedding:  template,
		Dim:        len(template),
		EnrolledAt: now,
	})
	run.finish(err)
}

// MeanVector computes the element-wise mean of the sample embeddings.
func MeanVector(samples [][]float32) []float32 {
	if len(samples) == 0 {
		return nil
	}

	mean := make([]float32, len(samples[0]))
	for _, s := range samples {
		for i := range mean {
			mean[i] += s[i]
		}
	}
	n := float32(len(samples))
	for i := range mean {
		mean[i] /= n
	}
	return mean
}
