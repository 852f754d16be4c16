// Command gentables writes the embedded concentration and weight tables.
//
// Concentrations run from 1.0 to 50.0 in steps of 0.1. Row c of the weight
// table is exp(-i²/c) for i = 0..11, entries below 1e-3 zeroed, normalized
// to sum one.
package main

import (
	"bytes"
	"encoding/binary"
	"log"
	"math"
	"os"
	"path/filepath"
)

const (
	steps     = 491
	cols      = 12
	minWeight = 1e-3
)

func main() {
	conc := make([]float64, steps)
	for i := range conc {
		conc[i] = float64(10+i) / 10
	}

	cb := new(bytes.Buffer)
	binary.Write(cb, binary.LittleEndian, uint32(len(conc)))
	binary.Write(cb, binary.LittleEndian, conc)

	wb := new(bytes.Buffer)
	binary.Write(wb, binary.LittleEndian, [2]uint32{uint32(len(conc)), cols})
	for _, c := range conc {
		row := make([]float64, cols)
		sum := 0.0
		for i := range row {
			if v := math.Exp(-float64(i*i) / c); v >= minWeight {
				row[i] = v
			}
			sum += row[i]
		}
		for i := range row {
			row[i] /= sum
		}
		binary.Write(wb, binary.LittleEndian, row)
	}

	for name, data := range map[string][]byte{
		"concentrations.bin": cb.Bytes(),
		"weights.bin":        wb.Bytes(),
	} {
		if err := os.WriteFile(filepath.Join("data", name), data, 0o644); err != nil {
			log.Fatal(err)
		}
	}
}
