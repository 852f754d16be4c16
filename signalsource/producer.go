package signalsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/drgolem/psglab/logging"
	"github.com/drgolem/psglab/types"
)

// RecordDecoder is the sequential record access the producer needs.
type RecordDecoder interface {
	Header() types.Header
	SeekRecord(rec int) error
	ReadRecord() ([][]float64, error)
}

type SamplesPacket struct {
	Record  int
	Records int
	Samples []float64
}

// Percent is the share of the requested records delivered so far,
// this packet included.
func (p SamplesPacket) Percent() float64 {
	if p.Records == 0 {
		return 100
	}
	return 100 * float64(p.Record+1) / float64(p.Records)
}

type ProducerOptions struct {
	Channel     int
	FirstRecord int
	Records     int // 0 means through the end
	Logger      logging.Logger
}

type SetOptionsFn func(opt *ProducerOptions)

func WithChannel(ch int) SetOptionsFn {
	return func(opt *ProducerOptions) {
		opt.Channel = ch
	}
}

func WithRecordRange(first, count int) SetOptionsFn {
	return func(opt *ProducerOptions) {
		opt.FirstRecord = first
		opt.Records = count
	}
}

func WithLogger(logger logging.Logger) SetOptionsFn {
	return func(opt *ProducerOptions) {
		opt.Logger = logger
	}
}

type SignalStream interface {
	Descriptor() types.SignalDescriptor
	Stream() <-chan SamplesPacket
	// Err is valid once Stream is closed.
	Err() error
}

type recordStream struct {
	desc   types.SignalDescriptor
	stream <-chan SamplesPacket

	mx  sync.Mutex
	err error
}

// RecordProducer streams one channel of dec, one record per packet, in
// record order. The stream closes at the end of the range, on a decode
// error or when ctx is done.
func RecordProducer(ctx context.Context, dec RecordDecoder, opts ...SetOptionsFn) (SignalStream, error) {
	opt := ProducerOptions{}
	for _, sf := range opts {
		sf(&opt)
	}
	if opt.Logger == nil {
		opt.Logger = logging.GetGlobalLogger()
	}

	hdr := dec.Header()
	if opt.Channel < 0 || opt.Channel >= len(hdr.Signals) {
		return nil, fmt.Errorf("channel %d out of range [0, %d)", opt.Channel, len(hdr.Signals))
	}
	desc := hdr.Signals[opt.Channel]
	if desc.Annotation {
		return nil, fmt.Errorf("channel %d is an annotation channel", opt.Channel)
	}

	last := hdr.RecordCount
	if opt.Records > 0 {
		last = min(opt.FirstRecord+opt.Records, hdr.RecordCount)
	}
	if err := dec.SeekRecord(opt.FirstRecord); err != nil {
		return nil, err
	}

	packets := make(chan SamplesPacket, 1)
	s := &recordStream{
		desc:   desc,
		stream: packets,
	}

	logger := opt.Logger.WithFields(logging.Fields{"channel": desc.Label})

	go func() {
		defer close(packets)
		total := last - opt.FirstRecord
		for rec := opt.FirstRecord; rec < last; rec++ {
			if err := ctx.Err(); err != nil {
				s.setErr(err)
				return
			}
			data, err := dec.ReadRecord()
			if errors.Is(err, io.EOF) {
				logger.Warn("recording shorter than header", logging.Fields{"record": rec})
				return
			}
			if err != nil {
				s.setErr(fmt.Errorf("record %d: %w", rec, err))
				return
			}

			pct := SamplesPacket{
				Record:  rec - opt.FirstRecord,
				Records: total,
				Samples: data[opt.Channel],
			}
			select {
			case packets <- pct:
			case <-ctx.Done():
				s.setErr(ctx.Err())
				return
			}
		}
		logger.Debug("record producer done", logging.Fields{"records": total})
	}()

	return s, nil
}

func (s *recordStream) Descriptor() types.SignalDescriptor {
	return s.desc
}

func (s *recordStream) Stream() <-chan SamplesPacket {
	return s.stream
}

func (s *recordStream) Err() error {
	s.mx.Lock()
	defer s.mx.Unlock()
	return s.err
}

func (s *recordStream) setErr(err error) {
	s.mx.Lock()
	defer s.mx.Unlock()
	s.err = err
}
