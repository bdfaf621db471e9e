// Package logsegment implements a single on-disk log segment: a pair of
// files (data + index) covering a contiguous range of log indices starting
// at a fixed base index. It supports monotonic append, indexed random read,
// tombstone-based suffix truncation, and prefix compaction with a
// crash-safe atomic swap.
//
// A Segment is single-threaded: every method must be called from the same
// goroutine, exactly like Executor. There is no internal locking.
package logsegment

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"replicore/internal/format"
	"replicore/internal/logging"

	seekable "github.com/SaveTheRbtz/zstd-seekable-format-go/pkg"
	"github.com/klauspost/compress/zstd"
)

// Replacement supplies the entry compaction writes at the compaction
// boundary index, in place of whatever was stored there before.
type Replacement struct {
	Payload []byte
}

// Config configures a Segment's on-disk layout and lifecycle.
type Config struct {
	// Dir is the directory holding the segment's files.
	Dir string
	// Base is the parent log's base name (B in "B-S.log").
	Base string
	// Number is the segment number (S in "B-S.log"), which also doubles as
	// the segment's base index: firstIndex is never below Number.
	Number int64
	// FileMode is the permission bits used when creating segment files.
	// Defaults to 0o600.
	FileMode fs.FileMode
	// FlushOnWrite, if true, syncs both files after every append and after
	// every removeAfter. Segment.Flush(true) always syncs regardless.
	FlushOnWrite bool
	Logger       *slog.Logger
}

// Segment owns one data+index file pair covering indices
// [firstIndex, lastIndex], firstIndex >= Number.
type Segment struct {
	cfg    Config
	logger *slog.Logger

	dataPath, indexPath         string
	tmpDataPath, tmpIndexPath   string
	histDataPath, histIndexPath string

	dataFile  *os.File
	indexFile *os.File

	// compressed segments are sealed and read-only: dataFile is nil and
	// reads go through seekRd/seekFile instead. See compress.go.
	compressed bool
	seekRd     seekable.Reader
	seekFile   *os.File

	isOpen     bool
	firstIndex *int64
	lastIndex  int64
	size       int64
	dataEnd    int64 // current end-of-data offset, for the next append
}

// New creates an unopened Segment. Call Open before using it.
func New(cfg Config) *Segment {
	if cfg.FileMode == 0 {
		cfg.FileMode = 0o600
	}
	base := filepath.Join(cfg.Dir, fmt.Sprintf("%s-%d", cfg.Base, cfg.Number))
	return &Segment{
		cfg:           cfg,
		logger:        logging.Default(cfg.Logger).With("component", "logsegment", "segment", cfg.Number),
		dataPath:      base + ".log",
		indexPath:     base + ".index",
		tmpDataPath:   base + ".tmp.log",
		tmpIndexPath:  base + ".tmp.index",
		histDataPath:  base + ".history.log",
		histIndexPath: base + ".history.index",
	}
}

// Number returns the segment's number, which is also its base index bound.
func (s *Segment) Number() int64 { return s.cfg.Number }

// FirstIndex returns the lowest index currently stored, and whether the
// segment has ever had an entry appended.
func (s *Segment) FirstIndex() (int64, bool) {
	if s.firstIndex == nil {
		return 0, false
	}
	return *s.firstIndex, true
}

// LastIndex returns the highest index currently stored. Meaningless if
// FirstIndex reports false.
func (s *Segment) LastIndex() int64 { return s.lastIndex }

// Size returns the total on-disk bytes occupied by records (header +
// payload), including tombstoned ones — truncation flips a status byte in
// place rather than shrinking the file, so it does not change Size.
// Compaction does shrink it, since compaction rewrites the file.
func (s *Segment) Size() int64 { return s.size }

// IsEmpty reports whether the segment holds zero bytes of record data.
func (s *Segment) IsEmpty() bool { return s.size == 0 }

// Open opens or creates the segment's underlying files. If the files are
// non-empty, it recovers firstIndex/lastIndex from the index file's entry
// count and the first stored record. Opening an already-open segment is a
// misuse and returns ErrIllegalState.
func (s *Segment) Open() error {
	if s.isOpen {
		return ErrIllegalState
	}

	if err := os.MkdirAll(s.cfg.Dir, 0o700); err != nil {
		return ioErr("open", err)
	}

	if err := s.recoverFromHistory(); err != nil {
		return ioErr("open", err)
	}

	dataFile, dataCreated, err := s.openOrCreate(s.dataPath)
	if err != nil {
		return ioErr("open", err)
	}
	indexFile, indexCreated, err := s.openOrCreate(s.indexPath)
	if err != nil {
		_ = dataFile.Close()
		return ioErr("open", err)
	}

	if dataCreated {
		if err := writeFileHeader(dataFile, format.TypeSegmentData); err != nil {
			_ = dataFile.Close()
			_ = indexFile.Close()
			return ioErr("open", err)
		}
	}
	if indexCreated {
		if err := writeFileHeader(indexFile, format.TypeSegmentIndex); err != nil {
			_ = dataFile.Close()
			_ = indexFile.Close()
			return ioErr("open", err)
		}
	}

	if err := validateFileHeader(dataFile, format.TypeSegmentData); err != nil {
		_ = dataFile.Close()
		_ = indexFile.Close()
		return ioErr("open", err)
	}
	if err := validateFileHeader(indexFile, format.TypeSegmentIndex); err != nil {
		_ = dataFile.Close()
		_ = indexFile.Close()
		return ioErr("open", err)
	}

	flags, err := readFileFlags(dataFile)
	if err != nil {
		_ = dataFile.Close()
		_ = indexFile.Close()
		return ioErr("open", err)
	}

	s.indexFile = indexFile
	s.isOpen = true

	if flags&format.FlagCompressed != 0 {
		_ = dataFile.Close()
		rd, f, err := openSeekableReader(s.dataPath)
		if err != nil {
			s.isOpen = false
			_ = indexFile.Close()
			return ioErr("open", err)
		}
		s.seekRd = rd
		s.seekFile = f
		s.compressed = true
	} else {
		s.dataFile = dataFile
	}

	if err := s.recoverIndices(); err != nil {
		s.isOpen = false
		s.closeDataHandles()
		_ = indexFile.Close()
		return err
	}

	if err := s.recoverDataExtent(); err != nil {
		s.isOpen = false
		s.closeDataHandles()
		_ = indexFile.Close()
		return err
	}

	s.logger.Debug("segment opened", "firstIndex", s.firstIndex, "lastIndex", s.lastIndex, "compressed", s.compressed)
	return nil
}

// recoverDataExtent recomputes dataEnd/size after Open. For an uncompressed
// segment this is a simple file stat; a compressed segment has no
// meaningful physical size (it's read-only and smaller on disk than its
// logical content), so it is reconstructed from the last surviving record's
// header instead.
func (s *Segment) recoverDataExtent() error {
	if !s.compressed {
		dataStat, err := s.dataFile.Stat()
		if err != nil {
			return ioErr("open", err)
		}
		s.dataEnd = dataStat.Size()
		s.size = s.dataEnd - format.HeaderSize
		if s.size < 0 {
			s.size = 0
		}
		return nil
	}

	if s.firstIndex == nil {
		s.dataEnd = format.HeaderSize
		s.size = 0
		return nil
	}
	off, err := s.readIndexOffset(s.lastIndex - *s.firstIndex)
	if err != nil {
		return ioErr("open", err)
	}
	hdr, err := s.readRecordHeaderAt(off)
	if err != nil {
		return ioErr("open", err)
	}
	s.dataEnd = off + HeaderSize + int64(hdr.length)
	s.size = s.dataEnd - format.HeaderSize
	return nil
}

// closeDataHandles closes whichever of dataFile/seekRd+seekFile is open.
func (s *Segment) closeDataHandles() {
	if s.dataFile != nil {
		_ = s.dataFile.Close()
	}
	if s.seekRd != nil {
		_ = s.seekRd.Close()
	}
	if s.seekFile != nil {
		_ = s.seekFile.Close()
	}
}

// recoverFromHistory restores the live files from a history copy if one
// exists, meaning a previous compaction crashed after the history copy was
// made (step 6) but before the temp→live rename completed for both files
// (step 7). Any leftover temp files from that attempt are discarded.
func (s *Segment) recoverFromHistory() error {
	_, dataErr := os.Stat(s.histDataPath)
	_, indexErr := os.Stat(s.histIndexPath)
	if errors.Is(dataErr, fs.ErrNotExist) && errors.Is(indexErr, fs.ErrNotExist) {
		return nil
	}

	s.logger.Warn("recovering from interrupted compaction", "history", s.histDataPath)

	if dataErr == nil {
		if err := moveFile(s.histDataPath, s.dataPath); err != nil {
			return fmt.Errorf("restore data history: %w", err)
		}
	}
	if indexErr == nil {
		if err := moveFile(s.histIndexPath, s.indexPath); err != nil {
			return fmt.Errorf("restore index history: %w", err)
		}
	}
	_ = os.Remove(s.tmpDataPath)
	_ = os.Remove(s.tmpIndexPath)
	return nil
}

func (s *Segment) openOrCreate(path string) (*os.File, bool, error) {
	_, statErr := os.Stat(path)
	created := errors.Is(statErr, fs.ErrNotExist)
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_RDWR, s.cfg.FileMode)
	if err != nil {
		return nil, false, err
	}
	return f, created, nil
}

func writeFileHeader(f *os.File, typ byte) error {
	h := format.Header{Type: typ, Version: format.CurrentVersion}
	buf := h.Encode()
	if _, err := f.WriteAt(buf[:], 0); err != nil {
		return err
	}
	return f.Sync()
}

func validateFileHeader(f *os.File, typ byte) error {
	buf := make([]byte, format.HeaderSize)
	if _, err := f.ReadAt(buf, 0); err != nil {
		return err
	}
	_, err := format.DecodeAndValidate(buf, typ, format.CurrentVersion)
	return err
}

// recoverIndices recomputes firstIndex/lastIndex from the index file's
// entry count and the data file's first stored record. Must be called with
// both files open and positioned after the format header.
func (s *Segment) recoverIndices() error {
	indexStat, err := s.indexFile.Stat()
	if err != nil {
		return ioErr("open", err)
	}
	entries := (indexStat.Size() - format.HeaderSize) / 8
	if entries <= 0 {
		s.firstIndex = nil
		s.lastIndex = 0
		return nil
	}

	off, err := s.readIndexOffset(0)
	if err != nil {
		return ioErr("open", err)
	}
	hdr, err := s.readRecordHeaderAt(off)
	if err != nil {
		return ioErr("open", err)
	}

	first := int64(hdr.index)
	s.firstIndex = &first
	s.lastIndex = first + entries - 1
	return nil
}

// Append writes a new ACTIVE record with stored index lastIndex+1 (or
// Number if the segment is empty), and returns that index.
func (s *Segment) Append(payload []byte) (int64, error) {
	if !s.isOpen || s.compressed {
		return 0, ErrIllegalState
	}

	var newIndex int64
	if s.firstIndex == nil {
		newIndex = s.cfg.Number
	} else {
		newIndex = s.lastIndex + 1
	}

	if err := s.writeRecord(newIndex, StatusActive, payload); err != nil {
		return 0, ioErr("append", err)
	}

	if s.firstIndex == nil {
		fi := newIndex
		s.firstIndex = &fi
	}
	s.lastIndex = newIndex
	s.size += recordSize(len(payload))

	if s.cfg.FlushOnWrite {
		if err := s.flushLocked(); err != nil {
			return newIndex, err
		}
	}
	return newIndex, nil
}

// AppendBatch appends each entry in order, equivalent to calling Append
// repeatedly. Atomicity is per-entry only: if an append fails partway
// through, the indices assigned so far are returned alongside the error.
func (s *Segment) AppendBatch(entries [][]byte) ([]int64, error) {
	indices := make([]int64, 0, len(entries))
	for _, e := range entries {
		idx, err := s.Append(e)
		if err != nil {
			return indices, err
		}
		indices = append(indices, idx)
	}
	return indices, nil
}

func (s *Segment) writeRecord(index int64, status byte, payload []byte) error {
	buf := encodeRecord(uint64(index), status, payload)
	off := s.dataEnd
	if _, err := s.dataFile.WriteAt(buf, off); err != nil {
		return err
	}
	s.dataEnd += int64(len(buf))

	base := s.cfg.Number
	if s.firstIndex != nil {
		base = *s.firstIndex
	}
	slot := index - base

	var idxBuf [8]byte
	binary.LittleEndian.PutUint64(idxBuf[:], uint64(off))
	if _, err := s.indexFile.WriteAt(idxBuf[:], format.HeaderSize+slot*8); err != nil {
		return err
	}
	return nil
}

func (s *Segment) readIndexOffset(slot int64) (int64, error) {
	var buf [8]byte
	if _, err := s.indexFile.ReadAt(buf[:], format.HeaderSize+slot*8); err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(buf[:])), nil
}

func (s *Segment) readRecordHeaderAt(off int64) (recordHeader, error) {
	buf := make([]byte, HeaderSize)
	if _, err := s.dataReadAt(buf, off); err != nil {
		return recordHeader{}, err
	}
	return decodeHeader(buf), nil
}

func (s *Segment) readRecordAt(off int64) (recordHeader, []byte, error) {
	hdr, err := s.readRecordHeaderAt(off)
	if err != nil {
		return recordHeader{}, nil, err
	}
	payload := make([]byte, hdr.length)
	if hdr.length > 0 {
		if _, err := s.dataReadAt(payload, off+HeaderSize); err != nil {
			return recordHeader{}, nil, err
		}
	}
	return hdr, payload, nil
}

// dataReadAt reads from the data section at off, which is always relative
// to the start of the file (including the format header), regardless of
// whether the segment is compressed. Seekable zstd addresses reads by
// uncompressed offset into the body, so a compressed read shifts off back
// by the header size first.
func (s *Segment) dataReadAt(buf []byte, off int64) (int, error) {
	if s.compressed {
		return s.seekRd.ReadAt(buf, off-format.HeaderSize)
	}
	return s.dataFile.ReadAt(buf, off)
}

// Get returns the payload stored at index, or nil if index falls in a
// deleted hole or outside the segment's current range. A stored index that
// disagrees with the index-file's own bookkeeping is reported as
// ErrMissingEntries — on-disk corruption, since the two files are written
// together and should never diverge.
func (s *Segment) Get(index int64) ([]byte, error) {
	if !s.isOpen {
		return nil, ErrIllegalState
	}
	if s.firstIndex == nil || index < *s.firstIndex || index > s.lastIndex {
		return nil, nil
	}

	slot := index - *s.firstIndex
	off, err := s.readIndexOffset(slot)
	if err != nil {
		return nil, ioErr("get", err)
	}
	hdr, payload, err := s.readRecordAt(off)
	if err != nil {
		return nil, ioErr("get", err)
	}
	if hdr.index != uint64(index) {
		return nil, ErrMissingEntries
	}
	if hdr.status == StatusDeleted {
		return nil, nil
	}
	return payload, nil
}

// GetRange collects ACTIVE records for indices [from, to], in index order,
// silently skipping deleted holes and out-of-range indices.
func (s *Segment) GetRange(from, to int64) ([][]byte, error) {
	if !s.isOpen {
		return nil, ErrIllegalState
	}
	var out [][]byte
	for i := from; i <= to; i++ {
		v, err := s.Get(i)
		if err != nil {
			return nil, err
		}
		if v != nil {
			out = append(out, v)
		}
	}
	return out, nil
}

// RemoveAfter tombstones every record with stored index greater than
// index by flipping its status byte in place — the bytes themselves are
// never removed — and sets lastIndex := index. If index is below the
// segment's base (Number), the entire segment is cleared.
func (s *Segment) RemoveAfter(index int64) error {
	if !s.isOpen || s.compressed {
		return ErrIllegalState
	}
	if s.firstIndex == nil {
		return nil
	}

	if index < s.cfg.Number {
		return s.clear()
	}
	if index >= s.lastIndex {
		return nil
	}

	for j := index + 1; j <= s.lastIndex; j++ {
		slot := j - *s.firstIndex
		off, err := s.readIndexOffset(slot)
		if err != nil {
			return ioErr("removeAfter", err)
		}
		if _, err := s.dataFile.WriteAt([]byte{StatusDeleted}, off+8); err != nil {
			return ioErr("removeAfter", err)
		}
	}

	newEntries := index - *s.firstIndex + 1
	if err := s.indexFile.Truncate(format.HeaderSize + newEntries*8); err != nil {
		return ioErr("removeAfter", err)
	}
	s.lastIndex = index

	if s.cfg.FlushOnWrite {
		return s.flushLocked()
	}
	return nil
}

func (s *Segment) clear() error {
	if err := s.dataFile.Truncate(format.HeaderSize); err != nil {
		return ioErr("removeAfter", err)
	}
	if err := s.indexFile.Truncate(format.HeaderSize); err != nil {
		return ioErr("removeAfter", err)
	}
	s.firstIndex = nil
	s.lastIndex = 0
	s.size = 0
	s.dataEnd = format.HeaderSize
	return nil
}

// Compact reclaims the prefix [firstIndex, index) and optionally replaces
// the entry at index, surviving a crash at any point: it writes the new
// chronicle to temp files, copies the live files to a history location as
// a recovery point, then atomically swaps temp over live and discards the
// history copy. See Open's recovery step for the crash-recovery half of
// this protocol.
//
// When no replacement is supplied, the entry at index is kept unchanged,
// so index itself becomes the segment's new first index.
func (s *Segment) Compact(index int64, replacement *Replacement) error {
	if !s.isOpen || s.compressed {
		return ErrIllegalState
	}
	if s.firstIndex == nil {
		return fmt.Errorf("logsegment: compact: segment is empty")
	}
	if index < *s.firstIndex || index > s.lastIndex {
		return fmt.Errorf("logsegment: compact: index %d out of range [%d, %d]", index, *s.firstIndex, s.lastIndex)
	}
	if index == *s.firstIndex && replacement == nil {
		return nil
	}

	tmpData, err := os.OpenFile(filepath.Clean(s.tmpDataPath), os.O_CREATE|os.O_TRUNC|os.O_RDWR, s.cfg.FileMode)
	if err != nil {
		return ioErr("compact", err)
	}
	defer tmpData.Close()
	tmpIndex, err := os.OpenFile(filepath.Clean(s.tmpIndexPath), os.O_CREATE|os.O_TRUNC|os.O_RDWR, s.cfg.FileMode)
	if err != nil {
		return ioErr("compact", err)
	}
	defer tmpIndex.Close()

	if err := writeFileHeader(tmpData, format.TypeSegmentData); err != nil {
		return ioErr("compact", err)
	}
	if err := writeFileHeader(tmpIndex, format.TypeSegmentIndex); err != nil {
		return ioErr("compact", err)
	}

	var (
		newFirst  *int64
		newLast   int64
		newSize   int64
		dataEnd   int64 = format.HeaderSize
		slotBase  int64
		haveFirst bool
	)

	writeSurviving := func(idx int64, payload []byte) error {
		buf := encodeRecord(uint64(idx), StatusActive, payload)
		if _, err := tmpData.WriteAt(buf, dataEnd); err != nil {
			return err
		}
		if !haveFirst {
			f := idx
			newFirst = &f
			slotBase = idx
			haveFirst = true
		}
		slot := idx - slotBase
		var idxBuf [8]byte
		binary.LittleEndian.PutUint64(idxBuf[:], uint64(dataEnd))
		if _, err := tmpIndex.WriteAt(idxBuf[:], format.HeaderSize+slot*8); err != nil {
			return err
		}
		dataEnd += int64(len(buf))
		newSize += recordSize(len(payload))
		newLast = idx
		return nil
	}

	if replacement != nil {
		if err := writeSurviving(index, replacement.Payload); err != nil {
			return ioErr("compact", err)
		}
	}
	start := index + 1
	if replacement == nil {
		start = index
	}
	for j := start; j <= s.lastIndex; j++ {
		v, err := s.Get(j)
		if err != nil {
			return ioErr("compact", err)
		}
		if v == nil {
			continue
		}
		if err := writeSurviving(j, v); err != nil {
			return ioErr("compact", err)
		}
	}

	if err := tmpData.Sync(); err != nil {
		return ioErr("compact", err)
	}
	if err := tmpIndex.Sync(); err != nil {
		return ioErr("compact", err)
	}
	if err := tmpData.Close(); err != nil {
		return ioErr("compact", err)
	}
	if err := tmpIndex.Close(); err != nil {
		return ioErr("compact", err)
	}

	if err := s.dataFile.Close(); err != nil {
		return ioErr("compact", err)
	}
	if err := s.indexFile.Close(); err != nil {
		return ioErr("compact", err)
	}

	if err := copyFile(s.dataPath, s.histDataPath); err != nil {
		return ioErr("compact", err)
	}
	if err := copyFile(s.indexPath, s.histIndexPath); err != nil {
		return ioErr("compact", err)
	}

	if err := moveFile(s.tmpDataPath, s.dataPath); err != nil {
		return ioErr("compact", err)
	}
	if err := moveFile(s.tmpIndexPath, s.indexPath); err != nil {
		return ioErr("compact", err)
	}

	if err := os.Remove(s.histDataPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ioErr("compact", err)
	}
	if err := os.Remove(s.histIndexPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ioErr("compact", err)
	}

	dataFile, err := os.OpenFile(filepath.Clean(s.dataPath), os.O_RDWR, s.cfg.FileMode)
	if err != nil {
		return ioErr("compact", err)
	}
	indexFile, err := os.OpenFile(filepath.Clean(s.indexPath), os.O_RDWR, s.cfg.FileMode)
	if err != nil {
		_ = dataFile.Close()
		return ioErr("compact", err)
	}
	s.dataFile = dataFile
	s.indexFile = indexFile
	s.firstIndex = newFirst
	s.lastIndex = newLast
	s.size = newSize
	s.dataEnd = dataEnd

	s.logger.Info("segment compacted", "index", index, "firstIndex", s.firstIndex, "lastIndex", s.lastIndex)
	return nil
}

// IsCompressed reports whether this segment's data file is sealed as
// seekable zstd. A compressed segment is read-only: Append, RemoveAfter,
// and Compact all fail with ErrIllegalState.
func (s *Segment) IsCompressed() bool { return s.compressed }

// Compress seals the segment's data file as seekable zstd in place,
// shrinking its on-disk footprint while keeping every Get/GetRange offset
// valid (seekable zstd addresses reads by uncompressed offset). Only a
// segment the caller knows is done receiving writes should be compressed —
// segmentedlog.Log.CompressSealed compresses every segment other than the
// active one. Compressing an already-compressed segment is a no-op.
func (s *Segment) Compress() error {
	if !s.isOpen {
		return ErrIllegalState
	}
	if s.compressed {
		return nil
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return ioErr("compress", err)
	}
	defer enc.Close()

	if err := s.dataFile.Close(); err != nil {
		return ioErr("compress", err)
	}
	if err := compressDataFile(s.dataPath, enc, s.cfg.FileMode); err != nil {
		if f, openErr := os.OpenFile(filepath.Clean(s.dataPath), os.O_RDWR, s.cfg.FileMode); openErr == nil {
			s.dataFile = f
		}
		return ioErr("compress", err)
	}

	rd, f, err := openSeekableReader(s.dataPath)
	if err != nil {
		return ioErr("compress", err)
	}
	s.seekRd = rd
	s.seekFile = f
	s.dataFile = nil
	s.compressed = true
	s.logger.Info("segment compressed", "path", s.dataPath)
	return nil
}

// Flush syncs the underlying file handles to stable storage if force is
// true or the segment was configured with FlushOnWrite. A no-op on a
// compressed (read-only) segment.
func (s *Segment) Flush(force bool) error {
	if !s.isOpen {
		return ErrIllegalState
	}
	if s.compressed {
		return nil
	}
	if force || s.cfg.FlushOnWrite {
		return s.flushLocked()
	}
	return nil
}

func (s *Segment) flushLocked() error {
	if err := s.dataFile.Sync(); err != nil {
		return ioErr("flush", err)
	}
	if err := s.indexFile.Sync(); err != nil {
		return ioErr("flush", err)
	}
	return nil
}

// Close closes the underlying file handles. Closing an already-closed
// segment returns ErrIllegalState.
func (s *Segment) Close() error {
	if !s.isOpen {
		return ErrIllegalState
	}
	var errData error
	if s.compressed {
		errData = errors.Join(s.seekRd.Close(), s.seekFile.Close())
	} else {
		errData = s.dataFile.Close()
	}
	errIndex := s.indexFile.Close()
	s.isOpen = false
	return ioErr("close", errors.Join(errData, errIndex))
}

// Delete closes (if open) and removes all files belonging to this segment,
// including any leftover temp/history files from an interrupted compaction.
func (s *Segment) Delete() error {
	if s.isOpen {
		if err := s.Close(); err != nil {
			return err
		}
	}
	for _, p := range []string{s.dataPath, s.indexPath, s.tmpDataPath, s.tmpIndexPath, s.histDataPath, s.histIndexPath} {
		if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return ioErr("delete", err)
		}
	}
	return nil
}

var _ io.Closer = (*Segment)(nil)
