/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/drgolem/psglab/cache"
	"github.com/drgolem/psglab/decoders"
	"github.com/drgolem/psglab/display"
	"github.com/drgolem/psglab/dsp"
	"github.com/drgolem/psglab/job"
	"github.com/drgolem/psglab/render"
)

// spectrogramCmd represents the spectrogram command
var spectrogramCmd = &cobra.Command{
	Use:   "spectrogram",
	Short: "Compute the multitaper spectrogram of one channel",
	Long: `Computes the spectrogram of one channel over the whole recording and
writes it as a heat map png. Results are cached by file and parameters
when --cache-db is set.`,
	Run: doSpectrogramCmd,
}

func init() {
	rootCmd.AddCommand(spectrogramCmd)

	spectrogramCmd.Flags().String("file", "", "file to analyze")
	spectrogramCmd.Flags().String("channel", "0", "channel index or label")
	spectrogramCmd.Flags().Int("nperseg", 0, "segment length in samples (0: 30 s)")
	spectrogramCmd.Flags().Float64("concentration", job.DefaultConcentration, "multitaper concentration")
	spectrogramCmd.Flags().String("window", dsp.WindowMultitaper.String(), "multitaper, hann, hamming or rectangular")
	spectrogramCmd.Flags().Float64("trim", display.DefaultTrim, "percent trimmed from each end of the colour range")
	spectrogramCmd.Flags().Float64("band-low", display.DefaultBandLow, "lowest frequency shown (Hz)")
	spectrogramCmd.Flags().Float64("band-high", display.DefaultBandHigh, "highest frequency shown (Hz)")
	spectrogramCmd.Flags().String("gradient", "kindlmann", "colour gradient, _r suffix reverses")
	spectrogramCmd.Flags().String("out", "", "output png (default <file>.spectr.png)")
	spectrogramCmd.Flags().String("cache-db", "", "spectrogram cache directory")
	spectrogramCmd.Flags().Int("peaks", 0, "peak overlay lag in bins (0: off)")
	spectrogramCmd.Flags().Float64("peak-threshold", 3.5, "peak overlay z-score threshold")
}

func doSpectrogramCmd(cmd *cobra.Command, args []string) {
	inFileName, err := cmd.Flags().GetString("file")
	if err != nil {
		fmt.Printf("ERR: %v\n", err)
		return
	}
	if _, err := os.Stat(inFileName); os.IsNotExist(err) {
		fmt.Printf("path [%s] does not exist\n", inFileName)
		return
	}
	channelName, _ := cmd.Flags().GetString("channel")
	nperseg, _ := cmd.Flags().GetInt("nperseg")
	concentration, _ := cmd.Flags().GetFloat64("concentration")
	windowName, _ := cmd.Flags().GetString("window")
	trim, _ := cmd.Flags().GetFloat64("trim")
	bandLow, _ := cmd.Flags().GetFloat64("band-low")
	bandHigh, _ := cmd.Flags().GetFloat64("band-high")
	gradientName, _ := cmd.Flags().GetString("gradient")
	outFileName, _ := cmd.Flags().GetString("out")
	cacheDb, _ := cmd.Flags().GetString("cache-db")
	peakLag, _ := cmd.Flags().GetInt("peaks")
	peakThreshold, _ := cmd.Flags().GetFloat64("peak-threshold")

	if outFileName == "" {
		outFileName = filenameWithoutExtension(inFileName) + ".spectr.png"
	}

	window, err := dsp.ParseWindowKind(windowName)
	if err != nil {
		fmt.Printf("ERR: %v\n", err)
		return
	}

	dec, err := decoders.OpenEDF(inFileName)
	if err != nil {
		fmt.Printf("ERR: %v\n", err)
		return
	}
	channel, err := resolveChannel(dec.Header(), channelName)
	dec.Close()
	if err != nil {
		fmt.Printf("ERR: %v\n", err)
		return
	}

	opts := []job.Option{}
	if cacheDb != "" {
		store, err := cache.Open(cacheDb)
		if err != nil {
			fmt.Printf("ERR: %v\n", err)
			return
		}
		defer store.Close()
		opts = append(opts, job.WithCache(store))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	req := job.Request{
		Path:          inFileName,
		Channel:       channel,
		Nperseg:       nperseg,
		Concentration: concentration,
		Window:        window,
		Display: []display.Option{
			display.WithBand(bandLow, bandHigh),
			display.WithTrim(trim),
		},
	}

	t0 := time.Now()
	p := mpb.New(mpb.WithWidth(60), mpb.WithOutput(os.Stderr))
	bar := p.AddBar(100,
		mpb.PrependDecorators(
			decor.Name(channelName+" "),
			decor.Percentage(),
		),
		mpb.AppendDecorators(
			decor.Elapsed(decor.ET_STYLE_GO),
		),
	)

	var res *job.Result
	for ev := range job.StartSpectrogram(ctx, req, opts...) {
		switch ev.Kind {
		case job.EventProgress:
			bar.SetCurrent(int64(ev.Percent))
		case job.EventDone:
			bar.SetCurrent(100)
			res = ev.Result
		case job.EventFailed:
			bar.Abort(false)
			err = ev.Err
		}
	}
	p.Wait()
	if err != nil {
		fmt.Printf("ERR: %v\n", err)
		return
	}

	rows, cols := res.Spectrogram.Power.Dims()
	fmt.Printf("Spectrogram: %s [%s]\n", inFileName, res.Descriptor.Label)
	fmt.Printf("Sample Rate: %g\n", res.Descriptor.SampleRate())
	fmt.Printf("Size: %d freqs x %d segments (cached: %v) in %v\n", rows, cols, res.Cached, time.Since(t0))
	fmt.Printf("Display range: [%.2f, %.2f] dB\n", res.Image.Range.Low, res.Image.Range.High)

	fOut, err := os.Create(outFileName)
	if err != nil {
		fmt.Printf("ERR: %v\n", err)
		return
	}
	defer fOut.Close()

	renderOpts := []render.Option{
		render.WithGradient(display.DefaultGradients().Lookup(gradientName)),
		render.WithTitle(res.Descriptor.Label),
	}
	if peakLag > 0 {
		renderOpts = append(renderOpts, render.WithPeaks(peakLag, peakThreshold))
	}
	if err := render.HeatMap(fOut, res.Image, renderOpts...); err != nil {
		fmt.Printf("ERR: %v\n", err)
		return
	}
	fmt.Printf("plot: %s\n", outFileName)
}
