package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kiosklabs/facegate/internal/attendance"
	"github.com/kiosklabs/facegate/internal/debounce"
	"github.com/kiosklabs/facegate/internal/recognize"
	"github.com/kiosklabs/facegate/internal/vision"
)

var recognizeCmd = &cobra.Command{
	Use:   "recognize",
	Short: "Run the recognition loop and log attendance events",
	Long: `Run the camera recognition loop without the HTTP API. Accepted
sightings are marked in the attendance ledger and logged to stdout.`,
	RunE: runRecognize,
}

func init() {
	rootCmd.AddCommand(recognizeCmd)
}

func runRecognize(cmd *cobra.Command, args []string) error {
	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	if e.cfg.Camera.URL == "" {
		return errors.New("CAMERA_URL environment variable is required")
	}
	if e.gallery.Len() == 0 {
		fmt.Println("Warning: gallery is empty, nothing will match")
	}

	if err := e.lease.TryAcquire("recognize"); err != nil {
		return fmt.Errorf("acquiring camera: %w", err)
	}
	defer e.lease.Release()

	src, err := vision.OpenMJPEG(e.cfg.Camera.URL)
	if err != nil {
		return fmt.Errorf("opening camera: %w", err)
	}
	defer src.Close()

	tracker := debounce.NewTracker(e.cfg.Recognition.DebounceWindow)
	machine := attendance.NewMachine(e.ledger, e.cfg.Recognition.MinDwell)
	loop := recognize.New(src, e.client, e.client, e.matcher, tracker, machine, recognize.Options{
		MinFaceSize:  e.cfg.Recognition.MinFaceSize,
		FaceCropSize: e.cfg.Recognition.FaceCropSize,
		PrunePeriod:  time.Minute,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nStopping...")
		cancel()
	}()

	go func() {
		for event := range loop.Events() {
			result := attendance.Result{Status: event.Status, Wait: event.Wait}
			fmt.Printf("%s  %s (%s) score=%.2f  %s\n",
				event.At.Format(time.TimeOnly), event.Name, event.IdentityID,
				event.Score, result.Message())
		}
	}()

	fmt.Println("Recognition loop running, press Ctrl+C to stop")
	if err := loop.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("recognition loop: %w", err)
	}
	return nil
}
