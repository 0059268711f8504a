// Command trackplay loads a project file and plays it through the audio
// engine facade until interrupted.
//
// Grounded on cbegin-mmlfm-go's cmd/play_mml (sample-rate/volume flags,
// loading a file vs. inline payload, signal-driven shutdown borrowed from
// schollz-221e's setupCleanupOnExit) and rebuilt against spf13/cobra,
// which schollz-221e's own go.mod already carries as a dependency.
package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rowcore/trackengine/internal/engine"
	"github.com/rowcore/trackengine/internal/project"
)

func main() {
	var (
		sampleRate int
		volume     float64
		duration   time.Duration
	)

	root := &cobra.Command{
		Use:   "trackplay [project.json]",
		Short: "Play a tracker project file through the audio engine",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], sampleRate, volume, duration)
		},
	}
	root.Flags().IntVar(&sampleRate, "sample-rate", 44100, "output sample rate")
	root.Flags().Float64Var(&volume, "volume", 0.75, "master volume [0,1]")
	root.Flags().DurationVar(&duration, "duration", 0, "stop after this long (0 = run until interrupted)")

	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}

func run(path string, sampleRate int, volume float64, duration time.Duration) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("trackplay: read %s: %w", path, err)
	}

	proj, err := project.Load(data)
	if err != nil {
		return fmt.Errorf("trackplay: load project: %w", err)
	}

	eng := engine.New(sampleRate)
	eng.SetVolume(volume)

	if err := eng.LoadProject(proj); err != nil {
		return fmt.Errorf("trackplay: %w", err)
	}
	if err := eng.InitAudio(); err != nil {
		return fmt.Errorf("trackplay: init audio: %w", err)
	}

	eng.On("rowChange", func(payload any) {
		fmt.Printf("row %v\n", payload)
	})

	eng.Play()
	fmt.Printf("playing %q (%d instruments, %d patterns)\n", proj.Name, len(proj.Instruments), len(proj.Patterns))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	if duration > 0 {
		select {
		case <-time.After(duration):
		case <-sig:
		}
	} else {
		<-sig
	}

	eng.Stop()
	return nil
}
