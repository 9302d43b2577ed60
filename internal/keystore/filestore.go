package keystore

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"

	"github.com/barnettlynn/she-core/internal/sheconst"
)

// snapshotRecord is the on-disk shape of a Record: hex-encoded so the file
// stays readable/diffable, mirroring the teacher's preference for plain-text
// formats (.hex key files, YAML configs) over binary blobs.
type snapshotRecord struct {
	Client string `yaml:"client"`
	Slot   byte   `yaml:"slot"`
	Flags  byte   `yaml:"flags"`
	Count  uint32 `yaml:"count"`
	KeyHex string `yaml:"key"`
}

type snapshotFile struct {
	Records []snapshotRecord `yaml:"records"`
}

// FileStore is a crash-safe, whole-file YAML keystore: every mutation reads
// the current snapshot, updates it in memory, and replaces the file with
// atomic.WriteFile so a crash mid-write never leaves a torn file behind.
// Grounded in calvinalkan/agent-task's atomic.WriteFile-backed ticket/lock/
// cache persistence.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore opens (without yet reading) a YAML snapshot store at path.
// The file is created lazily on first write if it doesn't exist.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) load() (snapshotFile, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return snapshotFile{}, nil
		}
		return snapshotFile{}, fmt.Errorf("keystore: reading snapshot: %w", err)
	}
	var sf snapshotFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return snapshotFile{}, fmt.Errorf("keystore: decoding snapshot: %w", err)
	}
	return sf, nil
}

func (s *FileStore) save(sf snapshotFile) error {
	data, err := yaml.Marshal(sf)
	if err != nil {
		return fmt.Errorf("keystore: encoding snapshot: %w", err)
	}
	return atomic.WriteFile(s.path, strings.NewReader(string(data)))
}

func toSnapshotRecord(rec Record) snapshotRecord {
	return snapshotRecord{
		Client: rec.ID.Client,
		Slot:   byte(rec.ID.Slot),
		Flags:  rec.Metadata.Flags,
		Count:  rec.Metadata.Count,
		KeyHex: hex.EncodeToString(rec.Key[:]),
	}
}

func fromSnapshotRecord(sr snapshotRecord) (Record, error) {
	keyBytes, err := hex.DecodeString(sr.KeyHex)
	if err != nil || len(keyBytes) != sheconst.KeySize {
		return Record{}, fmt.Errorf("keystore: corrupt key material for %s/%d", sr.Client, sr.Slot)
	}
	var rec Record
	rec.ID = ID{Client: sr.Client, Slot: sheconst.Slot(sr.Slot)}
	rec.Metadata = Metadata{Flags: sr.Flags, Count: sr.Count}
	copy(rec.Key[:], keyBytes)
	return rec, nil
}

func (s *FileStore) ReadKey(_ context.Context, id ID) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sf, err := s.load()
	if err != nil {
		return Record{}, err
	}
	for _, sr := range sf.Records {
		if sr.Client == id.Client && sheconst.Slot(sr.Slot) == id.Slot {
			return fromSnapshotRecord(sr)
		}
	}
	return Record{}, ErrNotFound
}

func (s *FileStore) write(rec Record) error {
	sf, err := s.load()
	if err != nil {
		return err
	}
	replaced := false
	for i, sr := range sf.Records {
		if sr.Client == rec.ID.Client && sheconst.Slot(sr.Slot) == rec.ID.Slot {
			sf.Records[i] = toSnapshotRecord(rec)
			replaced = true
			break
		}
	}
	if !replaced {
		sf.Records = append(sf.Records, toSnapshotRecord(rec))
	}
	return s.save(sf)
}

func (s *FileStore) CacheKey(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(rec)
}

func (s *FileStore) AddObject(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(rec)
}

func (s *FileStore) DumpMetadata(_ context.Context, client string) (map[sheconst.Slot]Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sf, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make(map[sheconst.Slot]Metadata)
	for _, sr := range sf.Records {
		if sr.Client == client {
			out[sheconst.Slot(sr.Slot)] = Metadata{Flags: sr.Flags, Count: sr.Count}
		}
	}
	return out, nil
}

var _ Store = (*FileStore)(nil)
var _ Snapshot = (*FileStore)(nil)
