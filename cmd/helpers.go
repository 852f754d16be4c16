/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/drgolem/psglab/types"
)

func filenameWithoutExtension(fn string) string {
	return strings.TrimSuffix(fn, filepath.Ext(fn))
}

// resolveChannel accepts a channel index or a label.
func resolveChannel(hdr types.Header, channel string) (int, error) {
	if idx, err := strconv.Atoi(channel); err == nil {
		if idx < 0 || idx >= len(hdr.Signals) {
			return 0, fmt.Errorf("channel %d out of range [0, %d)", idx, len(hdr.Signals))
		}
		return idx, nil
	}
	if idx := hdr.SignalIndex(channel); idx >= 0 {
		return idx, nil
	}
	return 0, fmt.Errorf("no channel %q", channel)
}
