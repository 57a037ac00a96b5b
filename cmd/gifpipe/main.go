// Command gifpipe encodes a directory of sequentially-numbered PNG frames
// (or an existing GIF, re-split and re-encoded) into a single GIF89a file
// through the gifpipe pipeline. It is a thin consumer of the core: flag
// parsing and progress rendering live here, the encoding logic does not.
package main

import (
	"context"
	"fmt"
	"image/color"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	gifpipe "github.com/nullpixel/gifpipe"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "gifpipe:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		output      string
		width       int
		height      int
		quality     int
		fps         float64
		fast        bool
		extraEffort bool
		lossy       bool
		lossyQual   int
		repeat      int
		matteHex    string
		verbose     bool
		input       string
	)

	cmd := &cobra.Command{
		Use:   "gifpipe [frames.gif | frame-dir]",
		Short: "Encode frames into an optimized animated GIF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input = args[0]

			settings := gifpipe.DefaultSettings()
			settings.Width = width
			settings.Height = height
			settings.Quality = quality
			settings.Fast = fast
			settings.ExtraEffort = extraEffort
			settings.Lossy = lossy
			if lossyQual > 0 {
				settings.LossyQuality = lossyQual
			}
			if repeat < 0 {
				settings.Repeat = gifpipe.RepeatDisabled()
			} else if repeat == 0 {
				settings.Repeat = gifpipe.RepeatInfinite()
			} else {
				settings.Repeat = gifpipe.RepeatFinite(repeat)
			}
			if matteHex != "" {
				c, err := parseHexColor(matteHex)
				if err != nil {
					return err
				}
				settings.Matte = &c
			}
			if verbose {
				settings.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
			} else {
				settings.Logger = zerolog.Nop()
			}

			return run(input, output, fps, settings)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "output.gif", "output GIF path")
	cmd.Flags().IntVar(&width, "width", 0, "output width (0 = derive)")
	cmd.Flags().IntVar(&height, "height", 0, "output height (0 = derive)")
	cmd.Flags().IntVarP(&quality, "quality", "q", 90, "quality 1-100")
	cmd.Flags().Float64Var(&fps, "fps", 10, "frame rate for a PNG sequence (ignored for GIF input)")
	cmd.Flags().BoolVar(&fast, "fast", false, "trade quality for speed")
	cmd.Flags().BoolVar(&extraEffort, "extra-effort", false, "spend more time on the quantizer")
	cmd.Flags().BoolVar(&lossy, "lossy", false, "enable lossy LZW compression")
	cmd.Flags().IntVar(&lossyQual, "lossy-quality", 0, "override quality for lossy LZW (0 = use --quality)")
	cmd.Flags().IntVar(&repeat, "repeat", 0, "loop count, 0 = forever, -1 = disabled")
	cmd.Flags().StringVar(&matteHex, "matte", "", "blend semi-transparent pixels under this RGB hex color instead of dithering alpha")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log pipeline progress")

	return cmd
}

func run(input, output string, fps float64, settings gifpipe.Settings) error {
	out, err := os.Create(output)
	if err != nil {
		return err
	}
	defer out.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		cancel()
	}()

	progress := &cliProgress{}
	collector, err := gifpipe.NewCollector(ctx, settings, out, progress)
	if err != nil {
		return err
	}

	if st, statErr := os.Stat(input); statErr == nil && st.IsDir() {
		if err := addFrameDirectory(collector, input, fps); err != nil {
			collector.Abort()
			os.Remove(output)
			return err
		}
	} else if strings.EqualFold(filepath.Ext(input), ".gif") {
		if err := collector.AddFrameGIFFile(input, 0, 0); err != nil {
			collector.Abort()
			os.Remove(output)
			return err
		}
	} else {
		collector.Abort()
		os.Remove(output)
		return fmt.Errorf("%s: expected a directory of PNGs or a .gif file", input)
	}

	if err := collector.Finish(); err != nil {
		os.Remove(output)
		return err
	}

	fmt.Printf("wrote %s (%d frames, %d bytes)\n", output, progress.frames, progress.bytes)
	return nil
}

// addFrameDirectory adds every *.png file in dir, sorted by name, spaced
// evenly at the given frame rate.
func addFrameDirectory(collector *gifpipe.Collector, dir string, fps float64) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".png") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	if len(names) == 0 {
		return fmt.Errorf("%s: no PNG frames found", dir)
	}

	if fps <= 0 {
		fps = 10
	}
	for i, name := range names {
		pts := float64(i) / fps
		if err := collector.AddFramePNGFile(i, filepath.Join(dir, name), pts); err != nil {
			return err
		}
	}
	return nil
}

func parseHexColor(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("matte color %q: expected 6 hex digits", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("matte color %q: %w", s, err)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

// cliProgress renders a one-line progress counter to stderr and satisfies
// gifpipe.Progress.
type cliProgress struct {
	frames int
	bytes  uint64
}

func (p *cliProgress) OnFrameWritten() bool {
	p.frames++
	fmt.Fprintf(os.Stderr, "\rframe %d", p.frames)
	return true
}

func (p *cliProgress) OnBytesWritten(total uint64) {
	p.bytes = total
}

func (p *cliProgress) OnFinished(message string) {
	fmt.Fprintf(os.Stderr, "\n%s\n", message)
}
