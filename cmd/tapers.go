/*
Copyright © 2024 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"

	"github.com/drgolem/psglab/multitaper"
)

// tapersCmd represents the tapers command
var tapersCmd = &cobra.Command{
	Use:   "tapers",
	Short: "Print a generated multitaper set",
	Long: `Generates the Hermite tapers for a segment length and concentration
and prints their weights, norms and worst cross product.`,
	Run: doTapersCmd,
}

func init() {
	rootCmd.AddCommand(tapersCmd)

	tapersCmd.Flags().Int("n", 3000, "taper length (samples)")
	tapersCmd.Flags().Float64("concentration", 20, "time-frequency concentration")
}

func doTapersCmd(cmd *cobra.Command, args []string) {
	n, err := cmd.Flags().GetInt("n")
	if err != nil {
		fmt.Printf("ERR: %v\n", err)
		return
	}
	c, err := cmd.Flags().GetFloat64("concentration")
	if err != nil {
		fmt.Printf("ERR: %v\n", err)
		return
	}

	set, err := multitaper.Generate(n, c)
	if err != nil {
		fmt.Printf("ERR: %v\n", err)
		return
	}

	fmt.Printf("Tapers: %d x %d, concentration %g\n", set.Len(), set.Size(), set.Concentration)
	tapers := make([][]float64, set.Len())
	for i := range tapers {
		tapers[i] = set.Taper(i)
		fmt.Printf("%2d: weight %.6f norm %.9f\n", i, set.Weights[i], floats.Norm(tapers[i], 2))
	}

	worst := 0.0
	for i := range tapers {
		for j := i + 1; j < len(tapers); j++ {
			worst = math.Max(worst, math.Abs(floats.Dot(tapers[i], tapers[j])))
		}
	}
	fmt.Printf("max |<h_i, h_j>|: %.3g\n", worst)
}
