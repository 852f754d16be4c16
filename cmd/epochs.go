/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"math"
	"os"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot/vg"

	"github.com/drgolem/psglab/decoders"
	"github.com/drgolem/psglab/epoch"
	"github.com/drgolem/psglab/render"
)

// epochsCmd represents the epochs command
var epochsCmd = &cobra.Command{
	Use:   "epochs",
	Short: "Read a window of aligned epochs",
	Long: `Reads --count epochs starting at --epoch and prints a per channel
summary. With --png the window is drawn as stacked traces.`,
	Run: doEpochsCmd,
}

func init() {
	rootCmd.AddCommand(epochsCmd)

	epochsCmd.Flags().String("file", "", "recording to read")
	epochsCmd.Flags().Int("epoch", 0, "first epoch")
	epochsCmd.Flags().Int("count", 1, "number of epochs")
	epochsCmd.Flags().Int64("start-align", 0, "start align padding (ms)")
	epochsCmd.Flags().Int64("offset", 0, "source offset (ms)")
	epochsCmd.Flags().String("png", "", "write traces to this png file")
}

func doEpochsCmd(cmd *cobra.Command, args []string) {
	inFileName, err := cmd.Flags().GetString("file")
	if err != nil {
		fmt.Printf("ERR: %v\n", err)
		return
	}
	if _, err := os.Stat(inFileName); os.IsNotExist(err) {
		fmt.Printf("path [%s] does not exist\n", inFileName)
		return
	}
	first, _ := cmd.Flags().GetInt("epoch")
	count, _ := cmd.Flags().GetInt("count")
	startAlign, _ := cmd.Flags().GetInt64("start-align")
	offset, _ := cmd.Flags().GetInt64("offset")
	pngFileName, _ := cmd.Flags().GetString("png")

	dec, err := decoders.OpenEDF(inFileName)
	if err != nil {
		fmt.Printf("ERR: %v\n", err)
		return
	}
	reader, err := epoch.NewReader(dec,
		epoch.WithStartAlignOffset(startAlign),
		epoch.WithOffset(offset))
	if err != nil {
		dec.Close()
		fmt.Printf("ERR: %v\n", err)
		return
	}
	defer reader.Close()

	if err := reader.Seek(int64(first) * epoch.EpochMillis); err != nil {
		fmt.Printf("ERR: %v\n", err)
		return
	}
	if err := reader.ReadEpochs(count); err != nil {
		fmt.Printf("ERR: %v\n", err)
		return
	}

	fmt.Printf("Epochs %d..%d of %d (current %d), tell %d ms\n",
		reader.WindowStartEpoch(), reader.WindowEndEpoch(), reader.EpochCount(),
		reader.CurrentEpoch(), reader.Tell())

	hdr := reader.Header()
	win := reader.Window()
	for _, ch := range hdr.DataSignals() {
		samples := win.Samples(ch)
		values := make([]float64, 0, len(samples))
		for _, v := range samples {
			if !math.IsNaN(v) {
				values = append(values, v)
			}
		}
		fmt.Printf("%-20s samples: %6d padding: %6d", hdr.Signals[ch].Label, len(samples), win.PaddingCount(ch))
		if len(values) > 0 {
			fmt.Printf(" min: %9.2f max: %9.2f", floats.Min(values), floats.Max(values))
		}
		fmt.Println()
	}

	if pngFileName == "" {
		return
	}
	fOut, err := os.Create(pngFileName)
	if err != nil {
		fmt.Printf("ERR: %v\n", err)
		return
	}
	defer fOut.Close()
	if err := render.Traces(fOut, reader.ChartSignals(), 20*vg.Centimeter); err != nil {
		fmt.Printf("ERR: %v\n", err)
		return
	}
	fmt.Printf("traces: %s\n", pngFileName)
}
