package signalsource

import (
	"context"

	"github.com/drgolem/psglab/types"
)

type SignalSamples struct {
	Samples    []float64
	Descriptor types.SignalDescriptor
}

// SampleRate of the collected channel.
func (s SignalSamples) SampleRate() float64 {
	return s.Descriptor.SampleRate()
}

// CollectSamples reads a whole channel into memory. progress, if not nil,
// is called after every record with the percentage done.
func CollectSamples(ctx context.Context, dec RecordDecoder, channel int, progress func(pct float64)) (SignalSamples, error) {
	var out SignalSamples

	stream, err := RecordProducer(ctx, dec, WithChannel(channel))
	if err != nil {
		return out, err
	}

	out.Descriptor = stream.Descriptor()
	hdr := dec.Header()
	out.Samples = make([]float64, 0, hdr.RecordCount*out.Descriptor.SamplesPerRecord)

	for pct := range stream.Stream() {
		out.Samples = append(out.Samples, pct.Samples...)
		if progress != nil {
			progress(pct.Percent())
		}
	}
	if err := stream.Err(); err != nil {
		return SignalSamples{}, err
	}
	return out, nil
}
