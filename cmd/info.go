/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/drgolem/psglab/decoders"
	"github.com/drgolem/psglab/epoch"
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the header of a recording",
	Long: `Prints the recording header, every signal with its sample rate and
physical range, and the number of aligned epochs.`,
	Run: doInfoCmd,
}

func init() {
	rootCmd.AddCommand(infoCmd)

	infoCmd.Flags().String("file", "", "recording to inspect")
	infoCmd.Flags().Int64("start-align", 0, "start align padding (ms)")
	infoCmd.Flags().Int64("offset", 0, "source offset (ms)")
}

func doInfoCmd(cmd *cobra.Command, args []string) {
	inFileName, err := cmd.Flags().GetString("file")
	if err != nil {
		fmt.Printf("ERR: %v\n", err)
		return
	}
	if _, err := os.Stat(inFileName); os.IsNotExist(err) {
		fmt.Printf("path [%s] does not exist\n", inFileName)
		return
	}
	startAlign, _ := cmd.Flags().GetInt64("start-align")
	offset, _ := cmd.Flags().GetInt64("offset")

	dec, err := decoders.OpenEDF(inFileName)
	if err != nil {
		fmt.Printf("ERR: %v\n", err)
		return
	}

	hdr := dec.Header()
	fmt.Printf("Recording: %s\n", inFileName)
	fmt.Printf("Patient: %s\n", hdr.PatientID)
	fmt.Printf("Recording id: %s\n", hdr.RecordingID)
	fmt.Printf("Start: %v\n", hdr.StartTime)
	fmt.Printf("Duration: %v (%d records of %v)\n", hdr.Duration(), hdr.RecordCount, hdr.RecordDuration)
	for i, s := range hdr.Signals {
		if s.Annotation {
			fmt.Printf("%2d: %-20s annotations\n", i, s.Label)
			continue
		}
		fmt.Printf("%2d: %-20s %8.2f Hz  [%g, %g] %s\n",
			i, s.Label, s.SampleRate(), s.PhysicalMin, s.PhysicalMax, s.Unit)
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

	fmt.Printf("Epochs: %d (%d of start padding)\n", reader.EpochCount(), reader.StartAlignEpochCount())
}
