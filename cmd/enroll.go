package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kiosklabs/facegate/internal/enroll"
	"github.com/kiosklabs/facegate/internal/vision"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Enroll an identity from the camera",
	Long: `Capture face samples from the configured camera, average them into a
single template and publish it to the gallery. The run completes after
the configured number of samples or aborts without publishing anything
on cancellation or camera loss.`,
	RunE: runEnroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)

	enrollCmd.Flags().String("id", "", "Identity ID to enroll (required)")
	enrollCmd.Flags().String("name", "", "Display name of the identity (required)")
	_ = enrollCmd.MarkFlagRequired("id")
	_ = enrollCmd.MarkFlagRequired("name")
}

func runEnroll(cmd *cobra.Command, args []string) error {
	identityID := mustGetString(cmd, "id")
	name := mustGetString(cmd, "name")

	e, err := newEngine()
	if err != nil {
		return err
	}
	defer e.Close()

	if e.cfg.Camera.URL == "" {
		return errors.New("CAMERA_URL environment variable is required")
	}

	registry := enroll.NewRegistry(
		e.client,
		e.client,
		func() (vision.FrameSource, error) { return vision.OpenMJPEG(e.cfg.Camera.URL) },
		e.lease,
		e.gallery,
		e.templates,
		enroll.Options{
			Samples:       e.cfg.Enrollment.Samples,
			SamplePause:   e.cfg.Enrollment.SamplePause,
			MinFaceSize:   e.cfg.Recognition.MinFaceSize,
			FaceCropSize:  e.cfg.Recognition.FaceCropSize,
			MinBrightness: e.cfg.Enrollment.MinBrightness,
			EmbeddingDim:  e.cfg.Recognition.EmbeddingDim,
		},
	)

	if _, err := registry.Start(identityID, name); err != nil {
		return fmt.Errorf("starting enrollment: %w", err)
	}

	bar := progressbar.NewOptions(e.cfg.Enrollment.Samples,
		progressbar.OptionSetDescription(fmt.Sprintf("Enrolling %s", name)),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("samples"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionFullWidth(),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-sigChan:
			registry.Cancel(identityID)
			fmt.Println("\nEnrollment cancelled, no template published")
			return nil
		case <-ticker.C:
			p := registry.Progress(identityID)
			_ = bar.Set(p.Count)
			if !p.Done {
				continue
			}
			if err := registry.Err(identityID); err != nil {
				fmt.Println()
				return fmt.Errorf("enrollment failed: %w", err)
			}
			fmt.Printf("\nEnrolled %s (%s) from %d samples\n", name, identityID, p.Count)
			return nil
		}
	}
}
