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
	"github.com/drgolem/psglab/export"
	"github.com/drgolem/psglab/logging"
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Cut an epoch range out of a recording",
	Long: `Writes --count aligned epochs starting at --epoch either as a mono
16 bit wav of one channel or as a new EDF file with every data channel.`,
	Run: doExportCmd,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("file", "", "recording to cut")
	exportCmd.Flags().String("out", "", "output file")
	exportCmd.Flags().String("format", "wav", "wav or edf")
	exportCmd.Flags().String("channel", "0", "channel index or label (wav)")
	exportCmd.Flags().Int("epoch", 0, "first epoch")
	exportCmd.Flags().Int("count", 1, "number of epochs")
	exportCmd.Flags().Int64("start-align", 0, "start align padding (ms)")
	exportCmd.Flags().Int64("offset", 0, "source offset (ms)")
}

func doExportCmd(cmd *cobra.Command, args []string) {
	inFileName, err := cmd.Flags().GetString("file")
	if err != nil {
		fmt.Printf("ERR: %v\n", err)
		return
	}
	if _, err := os.Stat(inFileName); os.IsNotExist(err) {
		fmt.Printf("path [%s] does not exist\n", inFileName)
		return
	}
	outFileName, _ := cmd.Flags().GetString("out")
	format, _ := cmd.Flags().GetString("format")
	channelName, _ := cmd.Flags().GetString("channel")
	first, _ := cmd.Flags().GetInt("epoch")
	count, _ := cmd.Flags().GetInt("count")
	startAlign, _ := cmd.Flags().GetInt64("start-align")
	offset, _ := cmd.Flags().GetInt64("offset")

	if format != "wav" && format != "edf" {
		fmt.Printf("ERR: unknown format %q\n", format)
		return
	}
	if outFileName == "" {
		outFileName = fmt.Sprintf("%s.%d-%d.%s", filenameWithoutExtension(inFileName), first, first+count, format)
	}

	dec, err := decoders.OpenEDF(inFileName)
	if err != nil {
		fmt.Printf("ERR: %v\n", err)
		return
	}
	defer dec.Close()

	fOut, err := os.Create(outFileName)
	if err != nil {
		fmt.Printf("ERR: %v\n", err)
		return
	}
	defer fOut.Close()

	fmt.Printf("in %s\n", inFileName)
	fmt.Printf("out %s\n", outFileName)
	fmt.Printf("epochs [%d:%d)\n", first, first+count)

	if format == "edf" {
		n, err := export.EDF(fOut, dec, first, count, startAlign+offset)
		if err != nil {
			fmt.Printf("ERR: %v\n", err)
			return
		}
		fmt.Printf("records: %d\n", n)
		return
	}

	channel, err := resolveChannel(dec.Header(), channelName)
	if err != nil {
		fmt.Printf("ERR: %v\n", err)
		return
	}
	reader, err := epoch.NewReader(dec,
		epoch.WithStartAlignOffset(startAlign),
		epoch.WithOffset(offset),
		epoch.WithLogger(logging.GetGlobalLogger()))
	if err != nil {
		fmt.Printf("ERR: %v\n", err)
		return
	}
	if err := export.WAV(fOut, reader, channel, first, count); err != nil {
		fmt.Printf("ERR: %v\n", err)
		return
	}
}
