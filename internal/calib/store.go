package calib

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Store persists calibration records.
type Store interface {
	// Load returns the stored record, or factory defaults if the
	// store is empty or holds a stale schema. Installing defaults
	// persists them immediately (self-healing first boot).
	Load() (*Record, error)

	// Save validates and persists the record. Called on every
	// mutation; writes here are infrequent (manual calibration is
	// rare and ABC fires at most once per window per channel).
	Save(*Record) error
}

// FileStore keeps the record in a YAML file. The schema version
// field, not the file layout, decides whether a stored record is
// usable, so the format is stable across recompiles.
type FileStore struct {
	path string
	log  *zap.Logger
}

// NewFileStore creates a store at the given path.
func NewFileStore(path string, log *zap.Logger) *FileStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &FileStore{path: path, log: log}
}

// Load reads the record, self-healing to factory defaults on a
// missing file, unparsable content or a schema version mismatch.
func (s *FileStore) Load() (*Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.log.Info("calibration store empty, installing factory defaults",
				zap.String("path", s.path))
			return s.installDefaults()
		}
		return nil, fmt.Errorf("read calibration store: %w", err)
	}

	rec := &Record{}
	if err := yaml.Unmarshal(data, rec); err != nil {
		s.log.Warn("calibration store unreadable, installing factory defaults",
			zap.String("path", s.path), zap.Error(err))
		return s.installDefaults()
	}
	if err := rec.Validate(); err != nil {
		s.log.Warn("stored calibration rejected, installing factory defaults",
			zap.String("path", s.path), zap.Error(err))
		return s.installDefaults()
	}
	return rec, nil
}

// Save validates the record and writes it atomically (temp file plus
// rename) so a power cut mid-write cannot corrupt the store.
func (s *FileStore) Save(rec *Record) error {
	if err := rec.Validate(); err != nil {
		return fmt.Errorf("refusing to persist invalid calibration: %w", err)
	}

	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal calibration: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".calibration-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp store file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write calibration: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp store file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace calibration store: %w", err)
	}
	return nil
}

func (s *FileStore) installDefaults() (*Record, error) {
	rec := Defaults()
	if err := s.Save(rec); err != nil {
		return nil, fmt.Errorf("persist factory defaults: %w", err)
	}
	return rec, nil
}
