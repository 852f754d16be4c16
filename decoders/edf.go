package decoders

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/OpenPSG/edf"

	"github.com/drgolem/psglab/types"
)

const AnnotationLabel = "EDF Annotations"

var (
	ErrInvalidHeader  = errors.New("invalid edf header")
	ErrSeekOutOfRange = errors.New("seek out of range")
)

// EDF decodes an EDF/EDF+ recording record by record.
// Not safe for concurrent use.
type EDF struct {
	r      io.ReadSeeker
	closer io.Closer

	hdr    edf.Header
	header types.Header

	recordSize int // bytes
	recordMs   int64
	posMs      int64

	cachedIdx int
	cached    [][]float64
}

func OpenEDF(fileName string) (*EDF, error) {
	f, err := os.Open(fileName)
	if err != nil {
		return nil, err
	}
	dec, err := NewEDF(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", fileName, err)
	}
	dec.closer = f
	return dec, nil
}

func NewEDF(r io.ReadSeeker) (*EDF, error) {
	hdr, err := readHeader(r)
	if err != nil {
		return nil, err
	}

	d := &EDF{
		r:         r,
		hdr:       hdr,
		recordMs:  hdr.DataRecordDuration.Milliseconds(),
		cachedIdx: -1,
	}
	for _, s := range hdr.Signals {
		d.recordSize += s.SamplesPerRecord * 2
	}
	if d.recordMs <= 0 {
		return nil, fmt.Errorf("%w: record duration %v", ErrInvalidHeader, hdr.DataRecordDuration)
	}
	if d.recordSize == 0 {
		return nil, fmt.Errorf("%w: empty data record", ErrInvalidHeader)
	}

	if d.hdr.DataRecords < 0 {
		// recording not finalized, count what is on disk
		end, err := r.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, err
		}
		d.hdr.DataRecords = int((end - int64(hdr.HeaderBytes)) / int64(d.recordSize))
	}

	d.header = types.Header{
		PatientID:      hdr.PatientID,
		RecordingID:    hdr.RecordingID,
		StartTime:      hdr.StartTime,
		RecordDuration: hdr.DataRecordDuration,
		RecordCount:    d.hdr.DataRecords,
		Signals:        make([]types.SignalDescriptor, len(hdr.Signals)),
	}
	for i, s := range hdr.Signals {
		d.header.Signals[i] = types.SignalDescriptor{
			Label:            s.Label,
			Unit:             s.PhysicalDimension,
			PhysicalMin:      s.PhysicalMin,
			PhysicalMax:      s.PhysicalMax,
			DigitalMin:       s.DigitalMin,
			DigitalMax:       s.DigitalMax,
			SamplesPerRecord: s.SamplesPerRecord,
			RecordDuration:   hdr.DataRecordDuration,
			Annotation:       s.Label == AnnotationLabel,
		}
	}

	return d, nil
}

func (d *EDF) Header() types.Header {
	return d.header
}

// EDFHeader returns the raw header, DataRecords resolved.
func (d *EDF) EDFHeader() edf.Header {
	return d.hdr
}

func (d *EDF) recordCount() int {
	return d.hdr.DataRecords
}

// SeekRecord positions the decoder at the start of record rec.
// rec equal to the record count is allowed and means end of recording.
func (d *EDF) SeekRecord(rec int) error {
	if rec < 0 || rec > d.recordCount() {
		return fmt.Errorf("%w: record %d of %d", ErrSeekOutOfRange, rec, d.recordCount())
	}
	d.posMs = int64(rec) * d.recordMs
	return nil
}

// SkipMillis advances the read position without decoding.
func (d *EDF) SkipMillis(ms int64) error {
	if ms < 0 {
		return fmt.Errorf("%w: negative skip %d", ErrSeekOutOfRange, ms)
	}
	end := int64(d.recordCount()) * d.recordMs
	if d.posMs+ms > end {
		return fmt.Errorf("%w: %d ms past end", ErrSeekOutOfRange, d.posMs+ms-end)
	}
	d.posMs += ms
	return nil
}

// ReadRecord decodes the next whole record. io.EOF after the last one.
func (d *EDF) ReadRecord() ([][]float64, error) {
	rec := int(d.posMs / d.recordMs)
	if rec >= d.recordCount() {
		return nil, io.EOF
	}
	data, err := d.record(rec)
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(data))
	for i := range data {
		out[i] = append([]float64(nil), data[i]...)
	}
	d.posMs = int64(rec+1) * d.recordMs
	return out, nil
}

// ReadMillis decodes ms milliseconds of every channel from the current
// position. Near the end of the recording fewer samples are returned.
// Annotation channels come back empty.
func (d *EDF) ReadMillis(ms int64) ([][]float64, error) {
	if ms < 0 {
		return nil, fmt.Errorf("negative read length %d", ms)
	}
	end := int64(d.recordCount()) * d.recordMs
	from := d.posMs
	to := min(from+ms, end)

	out := make([][]float64, len(d.hdr.Signals))
	for i, s := range d.header.Signals {
		if s.Annotation || to <= from {
			out[i] = []float64{}
			continue
		}
		first := sampleAt(from, s.SamplesPerRecord, d.recordMs)
		last := sampleAt(to, s.SamplesPerRecord, d.recordMs)
		out[i] = make([]float64, 0, last-first)
	}

	for rec := int(from / d.recordMs); int64(rec)*d.recordMs < to; rec++ {
		data, err := d.record(rec)
		if err != nil {
			return nil, err
		}
		for i, s := range d.header.Signals {
			if s.Annotation {
				continue
			}
			spr := int64(s.SamplesPerRecord)
			base := int64(rec) * spr
			first := max(sampleAt(from, s.SamplesPerRecord, d.recordMs)-base, 0)
			last := min(sampleAt(to, s.SamplesPerRecord, d.recordMs)-base, spr)
			if first < last {
				out[i] = append(out[i], data[i][first:last]...)
			}
		}
	}

	d.posMs = max(to, from)
	return out, nil
}

func (d *EDF) Close() error {
	d.cached = nil
	if d.closer != nil {
		return d.closer.Close()
	}
	return nil
}

// sampleAt is the index of the first sample at or after ms.
func sampleAt(ms int64, spr int, recMs int64) int64 {
	return (ms*int64(spr) + recMs - 1) / recMs
}

func (d *EDF) record(rec int) ([][]float64, error) {
	if rec == d.cachedIdx {
		return d.cached, nil
	}
	off := int64(d.hdr.HeaderBytes) + int64(rec)*int64(d.recordSize)
	if _, err := d.r.Seek(off, io.SeekStart); err != nil {
		return nil, err
	}
	buf := make([]byte, d.recordSize)
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return nil, fmt.Errorf("record %d: %w", rec, err)
	}

	data := make([][]float64, len(d.hdr.Signals))
	pos := 0
	for i, s := range d.hdr.Signals {
		n := s.SamplesPerRecord
		if d.header.Signals[i].Annotation {
			data[i] = []float64{}
			pos += n * 2
			continue
		}
		samples := make([]float64, n)
		for j := range samples {
			v := int16(binary.LittleEndian.Uint16(buf[pos:]))
			samples[j] = toPhysical(v, s)
			pos += 2
		}
		data[i] = samples
	}

	d.cachedIdx = rec
	d.cached = data
	return data, nil
}

func toPhysical(v int16, s edf.SignalHeader) float64 {
	if s.DigitalMax == s.DigitalMin {
		return 0
	}
	return s.PhysicalMin + (float64(v)-float64(s.DigitalMin))*(s.PhysicalMax-s.PhysicalMin)/float64(s.DigitalMax-s.DigitalMin)
}

func readHeader(r io.ReadSeeker) (edf.Header, error) {
	var hdr edf.Header
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return hdr, err
	}
	br := bufio.NewReader(r)

	b := make([]byte, 256)
	if _, err := io.ReadFull(br, b); err != nil {
		return hdr, fmt.Errorf("%w: %v", ErrInvalidHeader, err)
	}

	field := func(from, to int) string {
		return strings.TrimSpace(string(b[from:to]))
	}

	hdr.Version = edf.Version(field(0, 8))
	hdr.PatientID = field(8, 88)
	hdr.RecordingID = field(88, 168)
	start, err := time.Parse("02.01.06 15.04.05", field(168, 176)+" "+field(176, 184))
	if err != nil {
		return hdr, fmt.Errorf("%w: start time: %v", ErrInvalidHeader, err)
	}
	hdr.StartTime = start
	hdr.Reserved = field(192, 236)

	ints := []struct {
		name     string
		from, to int
		dst      *int
	}{
		{"header bytes", 184, 192, &hdr.HeaderBytes},
		{"data records", 236, 244, &hdr.DataRecords},
		{"signal count", 252, 256, &hdr.SignalCount},
	}
	for _, f := range ints {
		v, err := strconv.Atoi(field(f.from, f.to))
		if err != nil {
			return hdr, fmt.Errorf("%w: %s: %v", ErrInvalidHeader, f.name, err)
		}
		*f.dst = v
	}
	secs, err := strconv.ParseFloat(field(244, 252), 64)
	if err != nil {
		return hdr, fmt.Errorf("%w: record duration: %v", ErrInvalidHeader, err)
	}
	hdr.DataRecordDuration = time.Duration(secs * float64(time.Second))

	ns := hdr.SignalCount
	if ns <= 0 || hdr.HeaderBytes != 256+ns*256 {
		return hdr, fmt.Errorf("%w: %d signals, %d header bytes", ErrInvalidHeader, ns, hdr.HeaderBytes)
	}

	sb := make([]byte, ns*256)
	if _, err := io.ReadFull(br, sb); err != nil {
		return hdr, fmt.Errorf("%w: signal headers: %v", ErrInvalidHeader, err)
	}

	hdr.Signals = make([]edf.SignalHeader, ns)
	pos := 0
	// signal header fields are stored column by column
	next := func(width int) []string {
		vals := make([]string, ns)
		for i := range vals {
			vals[i] = strings.TrimSpace(string(sb[pos : pos+width]))
			pos += width
		}
		return vals
	}
	labels := next(16)
	transducers := next(80)
	dims := next(8)
	pmins := next(8)
	pmaxs := next(8)
	dmins := next(8)
	dmaxs := next(8)
	prefilter := next(80)
	spr := next(8)
	reserved := next(32)

	for i := range hdr.Signals {
		s := &hdr.Signals[i]
		s.Label = labels[i]
		s.TransducerType = transducers[i]
		s.PhysicalDimension = dims[i]
		s.Prefiltering = prefilter[i]
		s.Reserved = reserved[i]

		if s.PhysicalMin, err = strconv.ParseFloat(pmins[i], 64); err != nil {
			return hdr, fmt.Errorf("%w: signal %d physical min: %v", ErrInvalidHeader, i, err)
		}
		if s.PhysicalMax, err = strconv.ParseFloat(pmaxs[i], 64); err != nil {
			return hdr, fmt.Errorf("%w: signal %d physical max: %v", ErrInvalidHeader, i, err)
		}
		if s.DigitalMin, err = strconv.Atoi(dmins[i]); err != nil {
			return hdr, fmt.Errorf("%w: signal %d digital min: %v", ErrInvalidHeader, i, err)
		}
		if s.DigitalMax, err = strconv.Atoi(dmaxs[i]); err != nil {
			return hdr, fmt.Errorf("%w: signal %d digital max: %v", ErrInvalidHeader, i, err)
		}
		if s.SamplesPerRecord, err = strconv.Atoi(spr[i]); err != nil {
			return hdr, fmt.Errorf("%w: signal %d samples per record: %v", ErrInvalidHeader, i, err)
		}
	}

	return hdr, nil
}
