/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"

	"github.com/drgolem/psglab/scan"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List the recordings under a folder",
	Long: `Walks --root for EDF recordings, reads their headers concurrently
and lists them by start time.`,
	Run: doScanCmd,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().String("root", "", "root folder of recordings")
}

func doScanCmd(cmd *cobra.Command, args []string) {
	root, err := cmd.Flags().GetString("root")
	if err != nil {
		fmt.Printf("ERR: %v\n", err)
		return
	}
	if _, err := os.Stat(root); os.IsNotExist(err) {
		fmt.Printf("path [%s] does not exist\n", root)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := mpb.New(mpb.WithWidth(40), mpb.WithOutput(os.Stderr))
	bar := p.AddBar(0,
		mpb.PrependDecorators(
			decor.Name("headers "),
			decor.CurrentNoUnit("%d"),
		),
		mpb.AppendDecorators(
			decor.Elapsed(decor.ET_STYLE_GO),
		),
	)

	recordings, err := scan.Recordings(ctx, root, func(done int) {
		bar.SetCurrent(int64(done))
	})
	if err != nil {
		bar.Abort(false)
		p.Wait()
		fmt.Printf("ERR: %v\n", err)
		return
	}
	bar.SetTotal(-1, true)
	p.Wait()

	for _, rec := range recordings {
		fmt.Printf("%s  %-12v %4d epochs  %s\n    %s\n",
			rec.StartTime.Format("2006-01-02 15:04:05"), rec.Duration, rec.EpochCount,
			rec.Path, strings.Join(rec.Channels, ", "))
	}
	fmt.Printf("recordings: %d\n", len(recordings))
}
