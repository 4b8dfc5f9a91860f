package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kiosklabs/facegate/internal/attendance"
	"github.com/kiosklabs/facegate/internal/debounce"
	"github.com/kiosklabs/facegate/internal/enroll"
	"github.com/kiosklabs/facegate/internal/recognize"
	"github.com/kiosklabs/facegate/internal/vision"
	"github.com/kiosklabs/facegate/internal/web"
	"github.com/kiosklabs/facegate/internal/web/handlers"
)

// deviceRetryPause is how long the recognition loop waits before reopening
// a lost or busy camera.
const deviceRetryPause = 5 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the recognition loop",
	Long: `Start the check-in engine: the HTTP API for enrollment, gallery and
attendance queries, plus the camera recognition loop when a camera is
configured. Disable the loop with --recognize=false to free the camera
for API-driven enrollment.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (overrides WEB_PORT)")
	serveCmd.Flags().String("host", "", "Host to bind to (overrides WEB_HOST)")
	serveCmd.Flags().Bool("recognize", true, "Run the camera recognition loop")
}

// runRecognition keeps one recognition loop alive against the configured
// camera, reopening the device after loss. The camera lease is released
// between attempts so an enrollment run can take the device.
func runRecognition(ctx context.Context, e *engine, events *handlers.EventLog) {
	tracker := debounce.NewTracker(e.cfg.Recognition.DebounceWindow)
	machine := attendance.NewMachine(e.ledger, e.cfg.Recognition.MinDwell)
	opts := recognize.Options{
		MinFaceSize:  e.cfg.Recognition.MinFaceSize,
		FaceCropSize: e.cfg.Recognition.FaceCropSize,
		PrunePeriod:  time.Minute,
	}

	for ctx.Err() == nil {
		if err := e.lease.TryAcquire("recognize"); err != nil {
			// Enrollment holds the camera; try again later.
			sleepCtx(ctx, deviceRetryPause)
			continue
		}

		src, err := vision.OpenMJPEG(e.cfg.Camera.URL)
		if err != nil {
			e.lease.Release()
			log.Printf("camera open failed: %v (retrying in %s)", err, deviceRetryPause)
			sleepCtx(ctx, deviceRetryPause)
			continue
		}

		loop := recognize.New(src, e.client, e.client, e.matcher, tracker, machine, opts)
		go events.Consume(loop.Events())

		err = loop.Run(ctx)
		src.Close()
		e.lease.Release()

		if ctx.Err() != nil {
			return
		}
		log.Printf("recognition loop ended: %v (reopening in %s)", err, deviceRetryPause)
		sleepCtx(ctx, deviceRetryPause)
	}
}

// sleepCtx sleeps for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	cfg := e.cfg

	registry := enroll.NewRegistry(
		e.client,
		e.client,
		func() (vision.FrameSource, error) { return vision.OpenMJPEG(cfg.Camera.URL) },
		e.lease,
		e.gallery,
		e.templates,
		enroll.Options{
			Samples:       cfg.Enrollment.Samples,
			SamplePause:   cfg.Enrollment.SamplePause,
			MinFaceSize:   cfg.Recognition.MinFaceSize,
			FaceCropSize:  cfg.Recognition.FaceCropSize,
			MinBrightness: cfg.Enrollment.MinBrightness,
			EmbeddingDim:  cfg.Recognition.EmbeddingDim,
		},
	)

	eventLog := handlers.NewEventLog(0)

	host := cfg.Web.Host
	port := cfg.Web.Port
	if flagHost := mustGetString(cmd, "host"); flagHost != "" {
		host = flagHost
	}
	if flagPort := mustGetInt(cmd, "port"); flagPort != 0 {
		port = flagPort
	}

	server := web.NewServer(host, port, web.Deps{
		Registry:  registry,
		Gallery:   e.gallery,
		Templates: e.templates,
		Sessions:  e.ledger,
		Events:    eventLog,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if mustGetBool(cmd, "recognize") {
		if cfg.Camera.URL == "" {
			return errors.New("CAMERA_URL environment variable is required for the recognition loop (or pass --recognize=false)")
		}
		go runRecognition(ctx, e, eventLog)
	} else {
		fmt.Println("Recognition loop disabled; camera is free for enrollment")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting check-in API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}
	return nil
}
