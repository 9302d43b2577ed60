package keystore

import (
	"context"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/barnettlynn/she-core/internal/sheconst"
)

// keyRow is the gorm model backing SQLStore.
type keyRow struct {
	Client string `gorm:"primaryKey"`
	Slot   byte   `gorm:"primaryKey"`
	Flags  byte
	Count  uint32
	Key    []byte
}

func (keyRow) TableName() string { return "she_key_slots" }

// SQLStore is the production NVM backend: a gorm-managed SQLite database,
// grounded in kgiusti-go-fdo-server's gorm.io/gorm + gorm.io/driver/sqlite
// dependency pair (a DB-backed store for an HSM-adjacent protocol server).
type SQLStore struct {
	db *gorm.DB
}

// OpenSQLStore opens (creating if necessary) a SQLite-backed keystore at dsn
// and migrates its schema.
func OpenSQLStore(dsn string) (*SQLStore, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("keystore: opening sqlite store: %w", err)
	}
	if err := db.AutoMigrate(&keyRow{}); err != nil {
		return nil, fmt.Errorf("keystore: migrating schema: %w", err)
	}
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) ReadKey(ctx context.Context, id ID) (Record, error) {
	var row keyRow
	err := s.db.WithContext(ctx).
		Where("client = ? AND slot = ?", id.Client, byte(id.Slot)).
		First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("keystore: reading %s/%d: %w", id.Client, id.Slot, err)
	}
	return rowToRecord(row)
}

func (s *SQLStore) write(ctx context.Context, rec Record) error {
	row := keyRow{
		Client: rec.ID.Client,
		Slot:   byte(rec.ID.Slot),
		Flags:  rec.Metadata.Flags,
		Count:  rec.Metadata.Count,
		Key:    append([]byte{}, rec.Key[:]...),
	}
	return s.db.WithContext(ctx).Save(&row).Error
}

func (s *SQLStore) CacheKey(ctx context.Context, rec Record) error   { return s.write(ctx, rec) }
func (s *SQLStore) AddObject(ctx context.Context, rec Record) error { return s.write(ctx, rec) }

func (s *SQLStore) DumpMetadata(ctx context.Context, client string) (map[sheconst.Slot]Metadata, error) {
	var rows []keyRow
	if err := s.db.WithContext(ctx).Where("client = ?", client).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[sheconst.Slot]Metadata, len(rows))
	for _, row := range rows {
		out[sheconst.Slot(row.Slot)] = Metadata{Flags: row.Flags, Count: row.Count}
	}
	return out, nil
}

func rowToRecord(row keyRow) (Record, error) {
	if len(row.Key) != sheconst.KeySize {
		return Record{}, fmt.Errorf("keystore: corrupt key material for %s/%d", row.Client, row.Slot)
	}
	var rec Record
	rec.ID = ID{Client: row.Client, Slot: sheconst.Slot(row.Slot)}
	rec.Metadata = Metadata{Flags: row.Flags, Count: row.Count}
	copy(rec.Key[:], row.Key)
	return rec, nil
}

var _ Store = (*SQLStore)(nil)
var _ Snapshot = (*SQLStore)(nil)
