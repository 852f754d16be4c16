package epoch

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/drgolem/psglab/logging"
	"github.com/drgolem/psglab/types"
)

const (
	EpochDuration = 30 * time.Second
	EpochMillis   = int64(EpochDuration / time.Millisecond)
)

var ErrNoDataChannels = errors.New("recording has no data channels")

// RecordDecoder is the record level access the reader needs.
type RecordDecoder interface {
	Header() types.Header
	SeekRecord(rec int) error
	SkipMillis(ms int64) error
	// ReadMillis returns fewer samples near the end of the recording.
	ReadMillis(ms int64) ([][]float64, error)
	ReadRecord() ([][]float64, error)
	Close() error
}

type ReaderOptions struct {
	Logger           logging.Logger
	StartAlignOffset int64
	Offset           int64
}

type SetOptionsFn func(opt *ReaderOptions)

func WithLogger(logger logging.Logger) SetOptionsFn {
	return func(opt *ReaderOptions) {
		opt.Logger = logger
	}
}

// WithStartAlignOffset inserts ms of padding before the first real epoch.
func WithStartAlignOffset(ms int64) SetOptionsFn {
	return func(opt *ReaderOptions) {
		opt.StartAlignOffset = ms
	}
}

func WithOffset(ms int64) SetOptionsFn {
	return func(opt *ReaderOptions) {
		opt.Offset = ms
	}
}

// Reader is an epoch addressed cursor over one recording.
//
// All times are milliseconds. Tell() == position + offset + startAlign,
// where position is the true stream position and may be negative while
// the cursor is inside the start padding.
//
// A Reader is not safe for concurrent use.
type Reader struct {
	dec    RecordDecoder
	header types.Header
	logger logging.Logger

	startAlign int64
	offset     int64
	position   int64
	lastCount  int

	window Window
}

func NewReader(dec RecordDecoder, optFn ...SetOptionsFn) (*Reader, error) {
	opts := ReaderOptions{}
	for _, fn := range optFn {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.GetGlobalLogger()
	}

	hdr := dec.Header()
	if len(hdr.DataSignals()) == 0 {
		return nil, ErrNoDataChannels
	}
	if hdr.RecordDuration.Milliseconds() <= 0 {
		return nil, fmt.Errorf("invalid record duration %v", hdr.RecordDuration)
	}

	r := &Reader{
		dec:        dec,
		header:     hdr,
		logger:     opts.Logger,
		startAlign: opts.StartAlignOffset,
		offset:     opts.Offset,
	}
	if err := r.Seek(0); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Reader) Header() types.Header {
	return r.header
}

func (r *Reader) StartAlignOffset() int64 {
	return r.startAlign
}

func (r *Reader) Offset() int64 {
	return r.offset
}

// SetStartAlignOffset changes the start padding keeping Tell() unchanged.
func (r *Reader) SetStartAlignOffset(ms int64) error {
	return r.reparam(func() { r.startAlign = ms }, func(old ReaderOptions) { r.startAlign = old.StartAlignOffset })
}

// SetOffset changes the per recording lead/lag keeping Tell() unchanged.
func (r *Reader) SetOffset(ms int64) error {
	return r.reparam(func() { r.offset = ms }, func(old ReaderOptions) { r.offset = old.Offset })
}

func (r *Reader) reparam(apply func(), restore func(ReaderOptions)) error {
	t := r.Tell()
	old := ReaderOptions{StartAlignOffset: r.startAlign, Offset: r.offset}
	apply()
	if err := r.Seek(t); err != nil {
		restore(old)
		if rerr := r.Seek(t); rerr != nil {
			r.logger.Error(rerr, "restore position", logging.Fields{"tell": t})
		}
		return err
	}
	return nil
}

// Seek moves the cursor to target, measured from the aligned origin.
// Targets before the start of the recording rewind the decoder and leave
// a negative position to be filled with padding.
func (r *Reader) Seek(target int64) error {
	pos := target - r.offset - r.startAlign
	if pos < 0 {
		if err := r.dec.SeekRecord(0); err != nil {
			return fmt.Errorf("seek %d: %w", target, err)
		}
		r.position = pos
		return nil
	}

	recMs := r.header.RecordDuration.Milliseconds()
	rec := pos / recMs
	if err := r.dec.SeekRecord(int(rec)); err != nil {
		return fmt.Errorf("seek %d: %w", target, err)
	}
	if rem := pos - rec*recMs; rem > 0 {
		if err := r.dec.SkipMillis(rem); err != nil {
			return fmt.Errorf("seek %d: %w", target, err)
		}
	}
	r.position = pos
	return nil
}

func (r *Reader) Tell() int64 {
	return r.position + r.offset + r.startAlign
}

// ReadEpochs replaces the window with count epochs from the cursor.
// Every data channel receives exactly count epochs of samples; spans
// before the start or past the end of the recording become padding.
func (r *Reader) ReadEpochs(count int) error {
	if count <= 0 {
		return fmt.Errorf("invalid epoch count %d", count)
	}

	span := int64(count) * EpochMillis
	fetch := span
	var lead int64
	if r.position < 0 {
		lead = min(span, -r.position)
		fetch = span - lead
	}

	var data [][]float64
	if fetch > 0 {
		var err error
		data, err = r.dec.ReadMillis(fetch)
		if err != nil {
			return fmt.Errorf("read %d epochs at %d: %w", count, r.Tell(), err)
		}
	}

	start := float64(max(r.position, 0)) / 1000
	win := Window{Channels: make([][]Chunk, len(r.header.Signals))}
	for i, s := range r.header.Signals {
		if s.Annotation {
			continue
		}
		nominal := count * s.SamplesForMillis(EpochMillis)

		var samples []float64
		if i < len(data) {
			samples = data[i]
		}
		leadN := 0
		if lead > 0 {
			leadN = max(0, nominal-s.SamplesForMillis(fetch))
		}
		if len(samples) > nominal-leadN {
			samples = samples[:nominal-leadN]
		}
		tailN := nominal - leadN - len(samples)

		chunks := make([]Chunk, 0, 3)
		if leadN > 0 {
			chunks = append(chunks, padding(leadN))
		}
		if len(samples) > 0 {
			chunks = append(chunks, Chunk{Offset: start, Samples: samples})
		}
		if tailN > 0 {
			chunks = append(chunks, padding(tailN))
		}
		win.Channels[i] = chunks
	}

	if win.padded() {
		r.logger.Debug("epoch window padded", logging.Fields{"tell": r.Tell(), "epochs": count})
	}

	r.position += span
	r.lastCount = count
	r.window = win
	return nil
}

func (r *Reader) Window() Window {
	return r.window
}

// WindowStartEpoch is the aligned index of the first epoch of the last read.
func (r *Reader) WindowStartEpoch() int {
	return int(floorDiv(r.Tell()-int64(r.lastCount)*EpochMillis, EpochMillis))
}

// WindowEndEpoch is the aligned index of the last epoch of the last read.
func (r *Reader) WindowEndEpoch() int {
	return r.WindowStartEpoch() + max(r.lastCount, 1) - 1
}

// CurrentEpoch is the centre epoch of the last read.
func (r *Reader) CurrentEpoch() int {
	return r.WindowStartEpoch() + r.lastCount/2
}

// EpochCount is the number of aligned epochs covering the recording,
// counted on the first data channel.
func (r *Reader) EpochCount() int {
	s := r.header.Signals[r.header.DataSignals()[0]]
	perEpoch := int64(s.SamplesForMillis(EpochMillis))
	if perEpoch <= 0 {
		return 0
	}
	total := int64(r.header.RecordCount) * int64(s.SamplesPerRecord)
	align := int64(s.SamplesForMillis(r.offset + r.startAlign))
	n := total + align
	if n <= 0 {
		return 0
	}
	return int((n + perEpoch - 1) / perEpoch)
}

// StartAlignEpochCount is the number of whole epochs of start padding.
func (r *Reader) StartAlignEpochCount() int {
	return int(r.startAlign / EpochMillis)
}

// EpochSampleCount is the number of samples of channel ch in one epoch.
func (r *Reader) EpochSampleCount(ch int) int {
	return r.header.Signals[ch].SamplesForMillis(EpochMillis)
}

func (r *Reader) Close() error {
	return r.dec.Close()
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func padding(n int) Chunk {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return Chunk{Offset: math.NaN(), Samples: s}
}
