package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"tilestream/internal/world"
)

const (
	DefaultExt           = "txt"
	DefaultCompressedExt = "txt.zst"
)

// FileStore keeps one file per chunk at <dir>/x<cx>y<cy>.<ext>.
type FileStore struct {
	dir   string
	ext   string
	codec Codec

	enc *zstd.Encoder // nil when uncompressed
	dec *zstd.Decoder
}

// FileOptions configures a FileStore.
type FileOptions struct {
	Ext      string // without the leading dot
	Compress bool   // zstd-wrap the text body
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string, opts FileOptions, codec Codec) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("empty world folder")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	fsStore := &FileStore{dir: dir, ext: opts.Ext, codec: codec}
	if fsStore.ext == "" {
		fsStore.ext = DefaultExt
		if opts.Compress {
			fsStore.ext = DefaultCompressedExt
		}
	}
	if opts.Compress {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, err
		}
		dec, err := zstd.NewReader(nil)
		if err != nil {
			enc.Close()
			return nil, err
		}
		fsStore.enc, fsStore.dec = enc, dec
	}
	return fsStore, nil
}

// Path returns the file that holds coord.
func (s *FileStore) Path(coord world.Coord) string {
	return filepath.Join(s.dir, coord.String()+"."+s.ext)
}

// Load reads and decodes the chunk file. A missing file is world.ErrNotFound.
func (s *FileStore) Load(ctx context.Context, coord world.Coord) (world.Grid, error) {
	if err := ctx.Err(); err != nil {
		return world.Grid{}, err
	}
	raw, err := os.ReadFile(s.Path(coord))
	if errors.Is(err, fs.ErrNotExist) {
		return world.Grid{}, fmt.Errorf("chunk %s: %w", coord, world.ErrNotFound)
	}
	if err != nil {
		return world.Grid{}, err
	}
	if s.dec != nil {
		raw, err = s.dec.DecodeAll(raw, nil)
		if err != nil {
			return world.Grid{}, &world.CorruptChunkError{Coord: coord, Reason: "zstd: " + err.Error()}
		}
	}
	return s.codec.Decode(coord, raw)
}

// Save writes the chunk to a temp file and renames it over the old one.
func (s *FileStore) Save(ctx context.Context, coord world.Coord, grid world.Grid) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := s.codec.Encode(grid)
	if err != nil {
		return err
	}
	if s.enc != nil {
		body = s.enc.EncodeAll(body, nil)
	}

	f, err := os.CreateTemp(s.dir, "."+coord.String()+"-*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.Write(body); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, s.Path(coord)); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// Close releases the zstd coders.
func (s *FileStore) Close() error {
	if s.enc != nil {
		_ = s.enc.Close()
		s.dec.Close()
	}
	return nil
}
