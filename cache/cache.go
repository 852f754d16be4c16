package cache

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"gonum.org/v1/gonum/mat"

	"github.com/drgolem/psglab/dsp"
	"github.com/drgolem/psglab/logging"
)

const keyPrefix = "spectr/"

var (
	ErrNotFound = errors.New("spectrogram not cached")
	ErrCorrupt  = errors.New("corrupt cache entry")
)

// Params identify one cached spectrogram. Size and ModTime pin the file
// contents so a rewritten recording misses.
type Params struct {
	Path          string
	Size          int64
	ModTime       time.Time
	Channel       int
	Nperseg       int
	Concentration float64
	Window        string
}

func Key(p Params) []byte {
	path := p.Path
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return []byte(fmt.Sprintf("%s%s|%d|%d|ch%d|n%d|c%g|%s",
		keyPrefix, path, p.Size, p.ModTime.UnixNano(),
		p.Channel, p.Nperseg, p.Concentration, p.Window))
}

type Options struct {
	Logger logging.Logger
}

type Option func(opt *Options)

func WithLogger(logger logging.Logger) Option {
	return func(opt *Options) {
		opt.Logger = logger
	}
}

// Cache stores computed spectrograms in badger. Safe for concurrent use.
type Cache struct {
	db     *badger.DB
	logger logging.Logger
}

// Open opens the cache at path. An empty path keeps everything in memory.
func Open(path string, opts ...Option) (*Cache, error) {
	o := Options{}
	for _, fn := range opts {
		fn(&o)
	}
	if o.Logger == nil {
		o.Logger = logging.GetGlobalLogger()
	}

	bopts := badger.DefaultOptions(path)
	if path == "" {
		bopts = bopts.WithInMemory(true)
	}
	bopts.Logger = &badgerLogger{l: o.Logger}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open cache %q: %w", path, err)
	}
	return &Cache{db: db, logger: o.Logger}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) Get(key []byte) (*dsp.Spectrogram, error) {
	var s *dsp.Spectrogram
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		s, err = spectrogramFromBytes(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	c.logger.Debug("cache hit", logging.Fields{"key": string(key)})
	return s, nil
}

func (c *Cache) Put(key []byte, s *dsp.Spectrogram) error {
	val, err := spectrogramToBytes(s)
	if err != nil {
		return err
	}
	return c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, val)
	})
}

// Keys lists every cached entry.
func (c *Cache) Keys() ([]string, error) {
	var keys []string
	err := c.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, strings.TrimPrefix(string(it.Item().KeyCopy(nil)), keyPrefix))
		}
		return nil
	})
	return keys, err
}

func (c *Cache) Purge() error {
	return c.db.DropAll()
}

// value layout, little endian:
// uint32 nfreq, uint32 ntime, freqs, times, power row major
func spectrogramToBytes(s *dsp.Spectrogram) ([]byte, error) {
	if s == nil || s.Power == nil {
		return nil, fmt.Errorf("nil spectrogram")
	}
	rows, cols := s.Power.Dims()
	if rows != len(s.Freqs) || cols != len(s.Times) {
		return nil, fmt.Errorf("spectrogram axes %dx%d do not match power %dx%d",
			len(s.Freqs), len(s.Times), rows, cols)
	}

	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, uint32(rows))
	binary.Write(buf, binary.LittleEndian, uint32(cols))
	binary.Write(buf, binary.LittleEndian, s.Freqs)
	binary.Write(buf, binary.LittleEndian, s.Times)
	for r := 0; r < rows; r++ {
		binary.Write(buf, binary.LittleEndian, s.Power.RawRowView(r))
	}
	return buf.Bytes(), nil
}

func spectrogramFromBytes(data []byte) (*dsp.Spectrogram, error) {
	buf := bytes.NewReader(data)

	var rows, cols uint32
	if err := binary.Read(buf, binary.LittleEndian, &rows); err != nil {
		return nil, ErrCorrupt
	}
	if err := binary.Read(buf, binary.LittleEndian, &cols); err != nil {
		return nil, ErrCorrupt
	}
	n := uint64(rows) + uint64(cols) + uint64(rows)*uint64(cols)
	if rows == 0 || cols == 0 || uint64(buf.Len()) != 8*n {
		return nil, ErrCorrupt
	}

	s := &dsp.Spectrogram{
		Freqs: make([]float64, rows),
		Times: make([]float64, cols),
	}
	power := make([]float64, int(rows)*int(cols))
	for _, v := range [][]float64{s.Freqs, s.Times, power} {
		if err := binary.Read(buf, binary.LittleEndian, v); err != nil {
			return nil, ErrCorrupt
		}
	}
	s.Power = mat.NewDense(int(rows), int(cols), power)
	return s, nil
}

type badgerLogger struct {
	l logging.Logger
}

func (b *badgerLogger) Errorf(format string, args ...interface{}) {
	b.l.Error(nil, strings.TrimSpace(fmt.Sprintf(format, args...)), logging.Fields{"component": "badger"})
}

func (b *badgerLogger) Warningf(format string, args ...interface{}) {
	b.l.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)), logging.Fields{"component": "badger"})
}

func (b *badgerLogger) Infof(format string, args ...interface{}) {
	b.l.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), logging.Fields{"component": "badger"})
}

func (b *badgerLogger) Debugf(format string, args ...interface{}) {
	b.l.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)), logging.Fields{"component": "badger"})
}
