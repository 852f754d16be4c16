package export

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/OpenPSG/edf"
	"github.com/youpy/go-wav"

	"github.com/drgolem/psglab/epoch"
	"github.com/drgolem/psglab/types"
)

const wavBatch = 4096

var ErrEmptyRange = errors.New("no recorded data in range")

// WAV writes count aligned epochs of channel ch, starting at epoch first,
// as 16 bit mono PCM scaled to the channel's physical range. Padding is
// written as silence.
func WAV(w io.Writer, r *epoch.Reader, ch, first, count int) error {
	hdr := r.Header()
	if ch < 0 || ch >= len(hdr.Signals) || hdr.Signals[ch].Annotation {
		return fmt.Errorf("channel %d is not a data channel", ch)
	}
	desc := hdr.Signals[ch]

	rate := math.Round(desc.SampleRate())
	if rate < 1 || rate > math.MaxUint32 {
		return fmt.Errorf("sample rate %g not representable in wav", desc.SampleRate())
	}

	if err := r.Seek(int64(first) * epoch.EpochMillis); err != nil {
		return err
	}
	if err := r.ReadEpochs(count); err != nil {
		return err
	}
	samples := r.Window().Samples(ch)

	peak := math.Max(math.Abs(desc.PhysicalMin), math.Abs(desc.PhysicalMax))
	scale := 1.0
	if peak > 0 {
		scale = math.MaxInt16 / peak
	}

	ww := wav.NewWriter(w, uint32(len(samples)), 1, uint32(rate), 16)
	batch := make([]wav.Sample, 0, wavBatch)
	for i, v := range samples {
		batch = append(batch, wav.Sample{Values: [2]int{pcm16(v * scale)}})
		if len(batch) == wavBatch || i == len(samples)-1 {
			if err := ww.WriteSamples(batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	return nil
}

func pcm16(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	return int(math.Max(math.MinInt16, math.Min(math.MaxInt16, math.Round(v))))
}

// RecordSource is the decoder side of an EDF export.
type RecordSource interface {
	Header() types.Header
	EDFHeader() edf.Header
	SeekRecord(rec int) error
	ReadRecord() ([][]float64, error)
}

// EDF copies the data channels of the whole records inside count aligned
// epochs starting at epoch first. alignMs is the start align plus offset
// the epochs are measured with. It returns the number of records written.
func EDF(w io.WriteSeeker, src RecordSource, first, count int, alignMs int64) (int, error) {
	if count <= 0 {
		return 0, fmt.Errorf("invalid epoch count %d", count)
	}
	hdr := src.Header()
	if hdr.RecordDuration%time.Second != 0 {
		return 0, fmt.Errorf("record duration %v is not whole seconds", hdr.RecordDuration)
	}
	channels := hdr.DataSignals()
	if len(channels) == 0 {
		return 0, epoch.ErrNoDataChannels
	}

	recMs := hdr.RecordDuration.Milliseconds()
	from := int64(first)*epoch.EpochMillis - alignMs
	to := from + int64(count)*epoch.EpochMillis
	firstRec := (max(from, 0) + recMs - 1) / recMs
	lastRec := min(to/recMs, int64(hdr.RecordCount))
	if to <= 0 || lastRec <= firstRec {
		return 0, fmt.Errorf("%w: epochs [%d, %d)", ErrEmptyRange, first, first+count)
	}

	srcHdr := src.EDFHeader()
	out := edf.Header{
		Version:            edf.Version0,
		PatientID:          srcHdr.PatientID,
		RecordingID:        srcHdr.RecordingID,
		StartTime:          srcHdr.StartTime.Add(time.Duration(firstRec) * hdr.RecordDuration),
		DataRecordDuration: hdr.RecordDuration,
		SignalCount:        len(channels),
		Signals:            make([]edf.SignalHeader, len(channels)),
	}
	for i, ch := range channels {
		out.Signals[i] = srcHdr.Signals[ch]
	}

	ew, err := edf.Create(w, out)
	if err != nil {
		return 0, err
	}
	if err := src.SeekRecord(int(firstRec)); err != nil {
		return 0, err
	}

	written := 0
	data := make([][]float64, len(channels))
	for rec := firstRec; rec < lastRec; rec++ {
		all, err := src.ReadRecord()
		if err != nil {
			return written, fmt.Errorf("record %d: %w", rec, err)
		}
		for i, ch := range channels {
			data[i] = all[ch]
		}
		if err := ew.WriteRecord(data); err != nil {
			return written, fmt.Errorf("record %d: %w", rec, err)
		}
		written++
	}
	return written, ew.Close()
}
