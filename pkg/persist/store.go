// Package persist implements the wear-leveling, integrity-checked record
// store: a ring of fixed-size blocks over a memory.Backend, each block
// holding one version-tagged, sequence-numbered, CRC-16-protected payload.
// Store always keeps the newest surviving payload current; Save advances
// to the next block in the ring rather than rewriting in place, so that
// repeated saves spread erase/write wear evenly across the region.
package persist

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/flashlog/nvpersist/pkg/common/log"
	"github.com/flashlog/nvpersist/pkg/geometry"
	"github.com/flashlog/nvpersist/pkg/memory"
	"github.com/flashlog/nvpersist/pkg/stats"
	"github.com/flashlog/nvpersist/pkg/telemetry"
)

// Store is the core persist engine. A Store is not safe for concurrent use;
// callers serialize access to a given instance themselves, the same
// contract the backend it wraps assumes.
type Store struct {
	backend memory.Backend
	geom    geometry.Geometry
	version byte

	// initialized is set once Init has completed successfully. Load and
	// Save both refuse to run before that, since currentIndex == -1 alone
	// can't distinguish "Init hasn't run" from "Init ran and found
	// nothing".
	initialized bool

	// currentIndex is the block index of the tail (the block holding the
	// newest surviving payload), or -1 if none has been found yet.
	currentIndex int32
	currentSeq   uint32
	// currentPayload caches the tail's payload so Save can compare
	// incoming writes against it without a re-read, and so Load can
	// return it without touching the backend.
	currentPayload []byte

	// scratch is a reusable encode buffer sized to the write length, so
	// Save never allocates at steady state.
	scratch []byte

	logger    log.Logger
	collector stats.Collector
	telemetry telemetry.Telemetry
}

// Option configures a Store at construction time.
type Option func(*Store)

// WithLogger attaches a logger. The default is a standard logger at Warn
// level, so Init/Save/LoadLegacy stay quiet unless something unusual
// happens (an ambiguous tail selection, a failed legacy conversion); a
// logger at Info level also shows the tail found and the legacy-path
// steps, and Debug adds the per-scan, erase and suppress branch points.
func WithLogger(logger log.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// WithStats attaches a statistics collector.
func WithStats(collector stats.Collector) Option {
	return func(s *Store) { s.collector = collector }
}

// WithTelemetry attaches an OpenTelemetry-backed recorder.
func WithTelemetry(t telemetry.Telemetry) Option {
	return func(s *Store) { s.telemetry = t }
}

// New builds a Store over backend using geom, tagging every block it
// writes with version. It does not touch the backend; call Init to scan
// for existing data.
func New(backend memory.Backend, geom geometry.Geometry, version byte, opts ...Option) (*Store, error) {
	if geom.RegionSize > backend.Size() {
		return nil, fmt.Errorf("%w: geometry region %d exceeds backend size %d", geometry.ErrInvalidGeometry, geom.RegionSize, backend.Size())
	}

	s := &Store{
		backend:      backend,
		geom:         geom,
		version:      version,
		currentIndex: -1,
		logger:       log.NewStandardLogger(log.WithLevel(log.LevelWarn)),
		telemetry:    telemetry.NewNoop(),
		scratch:      make([]byte, geom.WriteLength()),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// PayloadSize returns the payload size this store's geometry was built
// with, used by LoadLegacy to size the legacy read buffer.
func (s *Store) PayloadSize() uint32 {
	return s.geom.PayloadSize
}

// candidate is one CRC-valid, version-matching block found during a scan.
type candidate struct {
	index uint32
	seq   uint32
}

// Init scans every block in the region and establishes the current tail:
// among all version-matching, checksum-valid blocks, the tail is the one
// whose seq+1 (mod 2^32) is not itself a member's seq. If zero or more
// than one block satisfies that, the region is presumed mid-wraparound or
// corrupted, and the tail falls back to the block with the numerically
// greatest sequence number, ties broken by the lower block index.
func (s *Store) Init() (Result, error) {
	start := time.Now()
	ctx, span := s.telemetry.StartSpan(context.Background(), "nvpersist.init",
		attribute.String(telemetry.AttrComponent, telemetry.ComponentPersist))
	defer span.End()

	raw := make([]byte, s.geom.RecordSize())
	var candidates []candidate
	payloads := make(map[uint32][]byte)

	for i := uint32(0); i < s.geom.Count; i++ {
		if err := s.backend.Read(raw, s.geom.Offset(i), uint32(len(raw))); err != nil {
			s.trackError("read")
			s.telemetry.RecordCounter(ctx, "nvpersist.errors", 1,
				attribute.String(telemetry.AttrOperationType, telemetry.OpTypeInit),
				attribute.String(telemetry.AttrErrorType, "read"),
				attribute.String(telemetry.AttrResult, telemetry.ValueFail))
			return ResultFail, fmt.Errorf("%w: reading block %d: %v", ErrBackendFailure, i, err)
		}

		seq, payload, ok := geometry.DecodeBlock(raw, s.version, s.geom)
		if !ok {
			continue
		}

		candidates = append(candidates, candidate{index: i, seq: seq})
		stored := make([]byte, len(payload))
		copy(stored, payload)
		payloads[i] = stored
	}

	if invalid := s.geom.Count - uint32(len(candidates)); invalid != 0 {
		s.logger.Debug("init: %d of %d blocks failed CRC or version validation", invalid, s.geom.Count)
	}

	tail, found, ambiguous := selectTail(candidates)
	if !found {
		s.currentIndex = -1
		s.currentPayload = nil
		s.initialized = true
		s.trackOp(stats.OpInit, start)
		telemetry.RecordDuration(ctx, s.telemetry, "nvpersist.init.duration", start,
			attribute.String(telemetry.AttrOperationType, telemetry.OpTypeInit))
		s.telemetry.RecordCounter(ctx, "nvpersist.init", 1, attribute.String(telemetry.AttrResult, telemetry.ValueNoData))
		return ResultNoData, nil
	}
	if ambiguous {
		s.logger.Warn("init: tail selection ambiguous among %d valid blocks, falling back to greatest sequence (block %d, seq %d)", len(candidates), tail.index, tail.seq)
	}

	s.currentIndex = int32(tail.index)
	s.currentSeq = tail.seq
	s.currentPayload = payloads[tail.index]
	s.initialized = true

	s.logger.Info("init: found tail at block %d, seq %d", tail.index, tail.seq)
	s.trackOp(stats.OpInit, start)
	telemetry.RecordDuration(ctx, s.telemetry, "nvpersist.init.duration", start,
		attribute.String(telemetry.AttrOperationType, telemetry.OpTypeInit))
	s.telemetry.RecordCounter(ctx, "nvpersist.init", 1, attribute.String(telemetry.AttrResult, telemetry.ValueSuccess))
	return ResultSuccess, nil
}

// selectTail applies the ring-ordering rule described on Init. ambiguous
// reports whether the unique-successor rule found zero or more than one
// tail candidate and the fallback greatest-sequence rule had to decide.
func selectTail(candidates []candidate) (tail candidate, found, ambiguous bool) {
	if len(candidates) == 0 {
		return candidate{}, false, false
	}
	if len(candidates) == 1 {
		return candidates[0], true, false
	}

	seqSet := make(map[uint32]struct{}, len(candidates))
	for _, c := range candidates {
		seqSet[c.seq] = struct{}{}
	}

	var tails []candidate
	for _, c := range candidates {
		if _, successorExists := seqSet[c.seq+1]; !successorExists {
			tails = append(tails, c)
		}
	}

	if len(tails) == 1 {
		return tails[0], true, false
	}

	// Zero or multiple tail candidates: fall back to the greatest
	// sequence number, breaking ties by the lower block index.
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.seq > best.seq || (c.seq == best.seq && c.index < best.index) {
			best = c
		}
	}
	return best, true, true
}

// Load copies the current payload into dst, which must be exactly
// PayloadSize bytes long. It returns ResultNoData if Init never found a
// valid block.
func (s *Store) Load(dst []byte) (Result, error) {
	start := time.Now()
	ctx := context.Background()

	if !s.initialized {
		return ResultFail, ErrNotInitialized
	}

	if uint32(len(dst)) != s.geom.PayloadSize {
		return ResultFail, fmt.Errorf("%w: got %d want %d", ErrPayloadSize, len(dst), s.geom.PayloadSize)
	}

	if s.currentIndex < 0 {
		s.trackOp(stats.OpLoad, start)
		s.telemetry.RecordCounter(ctx, "nvpersist.load", 1, attribute.String(telemetry.AttrResult, telemetry.ValueNoData))
		return ResultNoData, nil
	}

	copy(dst, s.currentPayload)
	s.trackBytes(false, uint64(len(dst)))
	s.trackOp(stats.OpLoad, start)
	telemetry.RecordBytes(ctx, s.telemetry, "nvpersist.load.bytes", int64(len(dst)),
		attribute.String(telemetry.AttrOperationType, telemetry.OpTypeLoad))
	s.telemetry.RecordCounter(ctx, "nvpersist.load", 1, attribute.String(telemetry.AttrResult, telemetry.ValueSuccess))
	return ResultSuccess, nil
}

// Save persists payload, which must be exactly PayloadSize bytes long.
// If payload is byte-for-byte identical to the currently cached payload,
// Save returns ResultSuccess without touching the backend at all: same
// data never costs an erase or a write. Otherwise it advances to the
// next block in the ring (erasing it first if necessary) and writes a
// new block with seq bumped by one.
func (s *Store) Save(payload []byte) (Result, error) {
	start := time.Now()
	ctx := context.Background()

	if !s.initialized {
		return ResultFail, ErrNotInitialized
	}

	if uint32(len(payload)) != s.geom.PayloadSize {
		return ResultFail, fmt.Errorf("%w: got %d want %d", ErrPayloadSize, len(payload), s.geom.PayloadSize)
	}

	if s.currentIndex >= 0 && bytes.Equal(payload, s.currentPayload) {
		s.logger.Debug("save: payload unchanged, suppressing write")
		s.trackOp(stats.OpSuppressedSave, start)
		s.telemetry.RecordCounter(ctx, "nvpersist.save", 1, attribute.String(telemetry.AttrResult, telemetry.ValueSuppressed))
		return ResultSuccess, nil
	}

	nextIndex := uint32(0)
	nextSeq := uint32(0)
	if s.currentIndex >= 0 {
		nextIndex = (uint32(s.currentIndex) + 1) % s.geom.Count
		nextSeq = s.currentSeq + 1
	}

	offset := s.geom.Offset(nextIndex)
	writeLen := s.geom.WriteLength()

	if !s.backend.Writable(offset, writeLen) {
		s.logger.Debug("save: erasing block %d before write", nextIndex)
		if err := s.backend.Erase(offset, s.geom.Stride); err != nil {
			s.trackError("erase")
			s.telemetry.RecordCounter(ctx, "nvpersist.errors", 1,
				attribute.String(telemetry.AttrOperationType, telemetry.OpTypeSave),
				attribute.String(telemetry.AttrErrorType, "erase"),
				attribute.String(telemetry.AttrResult, telemetry.ValueFail),
				attribute.Int(telemetry.AttrBlockIndex, int(nextIndex)))
			return ResultFail, fmt.Errorf("%w: erasing block %d: %v", ErrBackendFailure, nextIndex, err)
		}
		s.trackErase(nextIndex, uint64(s.geom.Stride))
	}

	record := geometry.EncodeBlock(s.scratch[:s.geom.RecordSize()], s.version, nextSeq, payload, s.geom)
	buf := s.scratch[:writeLen]
	for i := uint32(len(record)); i < writeLen; i++ {
		buf[i] = s.geom.FillByte
	}

	if err := s.backend.Write(offset, buf); err != nil {
		s.trackError("write")
		s.telemetry.RecordCounter(ctx, "nvpersist.errors", 1,
			attribute.String(telemetry.AttrOperationType, telemetry.OpTypeSave),
			attribute.String(telemetry.AttrErrorType, "write"),
			attribute.String(telemetry.AttrResult, telemetry.ValueFail),
			attribute.Int(telemetry.AttrBlockIndex, int(nextIndex)))
		return ResultFail, fmt.Errorf("%w: writing block %d: %v", ErrBackendFailure, nextIndex, err)
	}
	s.trackBytes(true, uint64(writeLen))

	s.currentIndex = int32(nextIndex)
	s.currentSeq = nextSeq
	if s.currentPayload == nil || uint32(len(s.currentPayload)) != s.geom.PayloadSize {
		s.currentPayload = make([]byte, s.geom.PayloadSize)
	}
	copy(s.currentPayload, payload)

	s.trackOp(stats.OpSave, start)
	telemetry.RecordDuration(ctx, s.telemetry, "nvpersist.save.duration", start,
		attribute.String(telemetry.AttrOperationType, telemetry.OpTypeSave))
	s.telemetry.RecordCounter(ctx, "nvpersist.save", 1,
		attribute.String(telemetry.AttrResult, telemetry.ValueSuccess),
		attribute.Int(telemetry.AttrBlockIndex, int(nextIndex)))
	return ResultSuccess, nil
}

func (s *Store) trackOp(op stats.OperationType, start time.Time) {
	if s.collector == nil {
		return
	}
	s.collector.TrackOperationWithLatency(op, uint64(time.Since(start).Nanoseconds()))
}

func (s *Store) trackBytes(isWrite bool, n uint64) {
	if s.collector == nil {
		return
	}
	s.collector.TrackBytes(isWrite, n)
}

func (s *Store) trackErase(blockIndex uint32, n uint64) {
	if s.collector == nil {
		return
	}
	s.collector.TrackErase(blockIndex, n)
}

func (s *Store) trackError(kind string) {
	if s.collector == nil {
		return
	}
	s.collector.TrackError(kind)
}
