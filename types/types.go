package types

import (
	"strings"
	"time"
)

type FileFormatType string

const (
	FileFormat_EDF FileFormatType = ".edf"
)

// IsRecording reports whether the file extension belongs to a supported
// recording format.
func IsRecording(ext string) bool {
	return FileFormatType(strings.ToLower(ext)) == FileFormat_EDF
}

// SignalDescriptor describes one channel of a recording.
type SignalDescriptor struct {
	Label            string
	Unit             string
	PhysicalMin      float64
	PhysicalMax      float64
	DigitalMin       int
	DigitalMax       int
	SamplesPerRecord int
	RecordDuration   time.Duration
	Annotation       bool
}

// SampleRate returns samples per second.
func (s SignalDescriptor) SampleRate() float64 {
	if s.RecordDuration <= 0 {
		return 0
	}
	return float64(s.SamplesPerRecord) / s.RecordDuration.Seconds()
}

// SamplesForMillis converts a span in milliseconds to a sample count,
// truncated toward zero.
func (s SignalDescriptor) SamplesForMillis(ms int64) int {
	recMs := s.RecordDuration.Milliseconds()
	if recMs <= 0 {
		return 0
	}
	return int(ms * int64(s.SamplesPerRecord) / recMs)
}

type Header struct {
	PatientID      string
	RecordingID    string
	StartTime      time.Time
	RecordDuration time.Duration
	RecordCount    int
	Signals        []SignalDescriptor
}

// Duration is the total recording length.
func (h Header) Duration() time.Duration {
	return time.Duration(h.RecordCount) * h.RecordDuration
}

// DataSignals returns indices of the non-annotation channels.
func (h Header) DataSignals() []int {
	idx := make([]int, 0, len(h.Signals))
	for i, s := range h.Signals {
		if !s.Annotation {
			idx = append(idx, i)
		}
	}
	return idx
}

// SignalIndex finds a channel by label. Returns -1 when absent.
func (h Header) SignalIndex(label string) int {
	for i, s := range h.Signals {
		if strings.EqualFold(s.Label, label) {
			return i
		}
	}
	return -1
}
