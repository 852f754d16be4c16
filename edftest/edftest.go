// Package edftest writes small EDF recordings for tests.
package edftest

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OpenPSG/edf"
)

// Signal describes one channel of a generated recording. Gen returns the
// physical value of sample i; nil generates zeros.
type Signal struct {
	Label      string
	Rate       int // samples per one second record
	Annotation bool
	Gen        func(i int) float64
}

var StartTime = time.Date(2024, 3, 1, 22, 30, 0, 0, time.UTC)

// Write creates dir/name holding records one second records and returns
// its path.
func Write(t testing.TB, dir, name string, records int, signals ...Signal) string {
	t.Helper()

	hdr := edf.Header{
		Version:            edf.Version0,
		PatientID:          "X X X X",
		RecordingID:        "Startdate X X X X",
		StartTime:          StartTime,
		DataRecordDuration: time.Second,
		SignalCount:        len(signals),
		Signals:            make([]edf.SignalHeader, len(signals)),
	}
	for i, s := range signals {
		sh := edf.SignalHeader{
			Label:             s.Label,
			PhysicalDimension: "uV",
			PhysicalMin:       -500,
			PhysicalMax:       500,
			DigitalMin:        -32768,
			DigitalMax:        32767,
			SamplesPerRecord:  s.Rate,
		}
		if s.Annotation {
			sh.Label = "EDF Annotations"
			sh.PhysicalDimension = ""
			sh.PhysicalMin = -1
			sh.PhysicalMax = 1
		}
		hdr.Signals[i] = sh
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	w, err := edf.Create(f, hdr)
	if err != nil {
		t.Fatalf("edf header: %v", err)
	}

	for rec := 0; rec < records; rec++ {
		data := make([][]float64, len(signals))
		for i, s := range signals {
			data[i] = make([]float64, s.Rate)
			if s.Gen == nil || s.Annotation {
				continue
			}
			for j := range data[i] {
				data[i][j] = s.Gen(rec*s.Rate + j)
			}
		}
		if err := w.WriteRecord(data); err != nil {
			t.Fatalf("edf record %d: %v", rec, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("edf close: %v", err)
	}
	return path
}

// Ramp yields i mod period, which survives the 16 bit round trip within
// a hundredth of a unit.
func Ramp(period int) func(int) float64 {
	return func(i int) float64 {
		return float64(i % period)
	}
}
