package job

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sync/atomic"

	"github.com/drgolem/psglab/cache"
	"github.com/drgolem/psglab/decoders"
	"github.com/drgolem/psglab/display"
	"github.com/drgolem/psglab/dsp"
	"github.com/drgolem/psglab/logging"
	"github.com/drgolem/psglab/multitaper"
	"github.com/drgolem/psglab/signalsource"
	"github.com/drgolem/psglab/types"
)

const (
	DefaultConcentration = 20.0
	// segment length used when Request.Nperseg is 0
	DefaultSegmentSeconds = 30
)

type EventKind int

const (
	EventProgress EventKind = iota
	EventDone
	EventFailed
)

func (k EventKind) String() string {
	switch k {
	case EventProgress:
		return "progress"
	case EventDone:
		return "done"
	case EventFailed:
		return "failed"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

type Result struct {
	Spectrogram *dsp.Spectrogram
	Image       *display.Image
	Descriptor  types.SignalDescriptor
	Cached      bool
}

type Event struct {
	RequestID uint64
	Kind      EventKind
	Percent   float64
	Result    *Result
	Err       error
}

type Request struct {
	ID            uint64 // 0 assigns the next id
	Path          string
	Channel       int
	Nperseg       int
	Concentration float64
	Window        dsp.WindowKind
	Display       []display.Option
}

// Decoder is a private handle on one recording, owned by the job.
type Decoder interface {
	signalsource.RecordDecoder
	Close() error
}

type Opener func(path string) (Decoder, error)

// Store is the subset of cache.Cache the job uses.
type Store interface {
	Get(key []byte) (*dsp.Spectrogram, error)
	Put(key []byte, s *dsp.Spectrogram) error
}

type Options struct {
	Opener Opener
	Tables *multitaper.Tables
	Store  Store
	Logger logging.Logger
}

type Option func(opt *Options)

func WithOpener(open Opener) Option {
	return func(opt *Options) {
		opt.Opener = open
	}
}

func WithTables(t *multitaper.Tables) Option {
	return func(opt *Options) {
		opt.Tables = t
	}
}

func WithCache(s Store) Option {
	return func(opt *Options) {
		opt.Store = s
	}
}

func WithLogger(logger logging.Logger) Option {
	return func(opt *Options) {
		opt.Logger = logger
	}
}

var lastRequestID atomic.Uint64

func NextRequestID() uint64 {
	return lastRequestID.Add(1)
}

func openEDF(path string) (Decoder, error) {
	return decoders.OpenEDF(path)
}

// StartSpectrogram computes the display image of one channel in the
// background. The returned channel delivers progress events in record
// order followed by exactly one EventDone or EventFailed, then closes.
// The job never waits on the consumer, which must drain the channel.
func StartSpectrogram(ctx context.Context, req Request, opts ...Option) <-chan Event {
	o := Options{Opener: openEDF}
	for _, fn := range opts {
		fn(&o)
	}
	if o.Logger == nil {
		o.Logger = logging.GetGlobalLogger()
	}
	if req.ID == 0 {
		req.ID = NextRequestID()
	}

	in := make(chan Event)
	out := unbounded(in)

	go func() {
		defer close(in)
		logger := o.Logger.WithFields(logging.Fields{"request": req.ID, "path": req.Path})

		res, err := run(ctx, req, o, logger, func(pct float64) {
			in <- Event{RequestID: req.ID, Kind: EventProgress, Percent: pct}
		})
		if err != nil {
			logger.Error(err, "spectrogram failed")
			in <- Event{RequestID: req.ID, Kind: EventFailed, Err: err}
			return
		}
		logger.Debug("spectrogram done", logging.Fields{"cached": res.Cached})
		in <- Event{RequestID: req.ID, Kind: EventDone, Percent: 100, Result: res}
	}()

	return out
}

func run(ctx context.Context, req Request, o Options, logger logging.Logger, progress func(float64)) (*Result, error) {
	dec, err := o.Opener(req.Path)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	hdr := dec.Header()
	if req.Channel < 0 || req.Channel >= len(hdr.Signals) {
		return nil, fmt.Errorf("channel %d out of range [0, %d)", req.Channel, len(hdr.Signals))
	}
	desc := hdr.Signals[req.Channel]
	fs := desc.SampleRate()

	nperseg := req.Nperseg
	if nperseg == 0 {
		nperseg = int(math.Round(DefaultSegmentSeconds * fs))
	}
	conc := req.Concentration
	if conc == 0 {
		conc = DefaultConcentration
	}

	key := cacheKey(req, nperseg, conc, o.Store)
	if key != nil {
		s, err := o.Store.Get(key)
		switch {
		case err == nil:
			img, err := display.Process(s, req.Display...)
			if err != nil {
				return nil, err
			}
			return &Result{Spectrogram: s, Image: img, Descriptor: desc, Cached: true}, nil
		case !errors.Is(err, cache.ErrNotFound):
			logger.Warn("cache read failed", logging.Fields{"error": err.Error()})
		}
	}

	samples, err := signalsource.CollectSamples(ctx, dec, req.Channel, progress)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var s *dsp.Spectrogram
	if req.Window == dsp.WindowMultitaper {
		s, err = dsp.ComputeMultitaper(ctx, samples.Samples, fs, nperseg, conc, o.Tables)
	} else {
		var w []float64
		if w, err = dsp.Window(req.Window, nperseg); err == nil {
			s, err = dsp.ComputeSpectrogram(ctx, samples.Samples, w, fs)
		}
	}
	if err != nil {
		return nil, err
	}

	if key != nil {
		if err := o.Store.Put(key, s); err != nil {
			logger.Warn("cache write failed", logging.Fields{"error": err.Error()})
		}
	}

	img, err := display.Process(s, req.Display...)
	if err != nil {
		return nil, err
	}
	return &Result{Spectrogram: s, Image: img, Descriptor: desc}, nil
}

// cacheKey is nil when there is no store or the file cannot be stat'ed.
func cacheKey(req Request, nperseg int, conc float64, store Store) []byte {
	if store == nil {
		return nil
	}
	fi, err := os.Stat(req.Path)
	if err != nil {
		return nil
	}
	return cache.Key(cache.Params{
		Path:          req.Path,
		Size:          fi.Size(),
		ModTime:       fi.ModTime(),
		Channel:       req.Channel,
		Nperseg:       nperseg,
		Concentration: conc,
		Window:        req.Window.String(),
	})
}

// unbounded forwards in to the returned channel in order, buffering
// without limit. The returned channel closes after in is closed and
// drained.
func unbounded(in <-chan Event) <-chan Event {
	out := make(chan Event)
	go func() {
		defer close(out)
		var pending []Event
		for in != nil || len(pending) > 0 {
			var send chan<- Event
			var next Event
			if len(pending) > 0 {
				send = out
				next = pending[0]
			}
			select {
			case ev, ok := <-in:
				if !ok {
					in = nil
					continue
				}
				pending = append(pending, ev)
			case send <- next:
				pending = pending[1:]
			}
		}
	}()
	return out
}
