/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/drgolem/psglab/cache"
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or purge the spectrogram cache",
	Run:   doCacheCmd,
}

func init() {
	rootCmd.AddCommand(cacheCmd)

	cacheCmd.Flags().String("db", "spectr.db", "cache directory")
	cacheCmd.Flags().Bool("list", false, "list cached spectrograms")
	cacheCmd.Flags().Bool("purge", false, "drop every cached spectrogram")
}

func doCacheCmd(cmd *cobra.Command, args []string) {
	cacheDb, err := cmd.Flags().GetString("db")
	if err != nil {
		fmt.Printf("ERR: %v\n", err)
		return
	}
	if _, err := os.Stat(cacheDb); os.IsNotExist(err) {
		fmt.Printf("path [%s] does not exist\n", cacheDb)
		return
	}
	doList, _ := cmd.Flags().GetBool("list")
	doPurge, _ := cmd.Flags().GetBool("purge")

	store, err := cache.Open(cacheDb)
	if err != nil {
		fmt.Printf("ERR: %v\n", err)
		return
	}
	defer store.Close()

	if doList {
		keys, err := store.Keys()
		if err != nil {
			fmt.Printf("ERR: %v\n", err)
			return
		}
		for _, k := range keys {
			fmt.Println(k)
		}
		fmt.Printf("entries: %d\n", len(keys))
	}

	if doPurge {
		if err := store.Purge(); err != nil {
			fmt.Printf("ERR: %v\n", err)
			return
		}
		fmt.Println("cache purged")
	}
}
