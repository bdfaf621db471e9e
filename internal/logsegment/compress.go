package logsegment

import (
	"io"
	"os"
	"path/filepath"

	"replicore/internal/format"

	seekable "github.com/SaveTheRbtz/zstd-seekable-format-go/pkg"
	"github.com/klauspost/compress/zstd"
)

// seekableFrameSize is the uncompressed frame size for seekable zstd
// compression. Each frame compresses independently, enabling random access
// at frame granularity without decompressing the whole segment.
const seekableFrameSize = 256 << 10 // 256 KB

// zstdDec is a package-level decoder, concurrent-safe, always available for
// reads of any compressed segment.
var zstdDec *zstd.Decoder

func init() {
	var err error
	zstdDec, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		panic("logsegment: init zstd decoder: " + err.Error())
	}
}

// compressDataFile rewrites path's body (everything after the format
// header) as seekable zstd and sets FlagCompressed in the header, via
// temp-file-then-rename so a crash mid-compress never corrupts the live
// file. The stored byte offsets into the body are unaffected: seekable zstd
// addresses reads by uncompressed offset, which is exactly what this
// segment's index already stores.
func compressDataFile(path string, enc *zstd.Encoder, mode os.FileMode) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(data) < format.HeaderSize {
		return format.ErrHeaderTooSmall
	}
	header := data[:format.HeaderSize]
	body := data[format.HeaderSize:]

	newHeader := make([]byte, format.HeaderSize)
	copy(newHeader, header)
	newHeader[3] |= format.FlagCompressed

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".compress-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpPath)
	}

	if _, err := tmp.Write(newHeader); err != nil {
		cleanup()
		return err
	}

	sw, err := seekable.NewWriter(tmp, enc)
	if err != nil {
		cleanup()
		return err
	}
	for off := 0; off < len(body); off += seekableFrameSize {
		end := off + seekableFrameSize
		if end > len(body) {
			end = len(body)
		}
		if _, err := sw.Write(body[off:end]); err != nil {
			cleanup()
			return err
		}
	}
	if err := sw.Close(); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Chmod(mode); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}

	return os.Rename(tmpPath, path)
}

// readFileFlags reads just the header's flags byte, leaving the file
// position untouched for subsequent reads by the caller.
func readFileFlags(f *os.File) (byte, error) {
	var hdr [format.HeaderSize]byte
	if _, err := f.ReadAt(hdr[:], 0); err != nil {
		return 0, err
	}
	h, err := format.Decode(hdr[:])
	if err != nil {
		return 0, err
	}
	return h.Flags, nil
}

// openSeekableReader opens a compressed data file and returns a seekable
// reader over the data section (after the header). Only the frame(s)
// covering a requested byte range are decompressed on read. The caller owns
// closing both the returned reader and file.
func openSeekableReader(path string) (seekable.Reader, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	section := io.NewSectionReader(f, int64(format.HeaderSize), info.Size()-int64(format.HeaderSize))
	r, err := seekable.NewReader(section, zstdDec)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return r, f, nil
}
