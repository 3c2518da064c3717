package flight

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	fileEntrySuffix = ".flight"
	fileHeaderSize  = 12
)

var (
	createTempFile = os.CreateTemp
	renameFile     = os.Rename
)

// fileEntryMagic starts every entry, followed by the big-endian unix-nano
// expiry and the raw value.
var fileEntryMagic = []byte("FLT1")

var errCorruptFileEntry = errors.New("flight: corrupt file entry")

// fileStore keeps one file per key, named by the key's SHA-256. Writes go to
// a temp file renamed into place so readers never see a partial entry.
type fileStore struct {
	dir        string
	defaultTTL time.Duration
}

func newFileStore(dir string, defaultTTL time.Duration) (Store, error) {
	if dir == "" {
		dir = defaultFileDir()
	}
	if defaultTTL <= 0 {
		defaultTTL = defaultStoreTTL
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create file store dir: %w", err)
	}
	return &fileStore{dir: dir, defaultTTL: defaultTTL}, nil
}

func (s *fileStore) Driver() Driver {
	return DriverFile
}

func (s *fileStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	path := s.path(key)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	expiresAt, value, err := decodeFileEntry(data)
	if err != nil {
		_ = os.Remove(path)
		return nil, false, err
	}
	if time.Now().UnixNano() > expiresAt {
		_ = os.Remove(path)
		return nil, false, nil
	}
	return value, true, nil
}

func (s *fileStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	var header [fileHeaderSize]byte
	copy(header[:4], fileEntryMagic)
	binary.BigEndian.PutUint64(header[4:], uint64(time.Now().Add(ttl).UnixNano()))

	tmp, err := createTempFile(s.dir, "tmp-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	_, err = tmp.Write(append(header[:], value...))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := renameFile(tmpPath, s.path(key)); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

func (s *fileStore) Delete(_ context.Context, key string) error {
	if err := os.Remove(s.path(key)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Flush removes entry files only; other files in dir are left alone.
func (s *fileStore) Flush(_ context.Context) error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), fileEntrySuffix) {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, entry.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *fileStore) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.dir, hex.EncodeToString(sum[:])+fileEntrySuffix)
}

func decodeFileEntry(data []byte) (int64, []byte, error) {
	if len(data) < fileHeaderSize || !bytes.Equal(data[:4], fileEntryMagic) {
		return 0, nil, errCorruptFileEntry
	}
	return int64(binary.BigEndian.Uint64(data[4:fileHeaderSize])), data[fileHeaderSize:], nil
}
