package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/brettbedarf/treefs/internal/util"
	badger "github.com/dgraph-io/badger/v4"
	"github.com/mitchellh/mapstructure"
)

// Key namespace
//
//	"h:"            header (version, tree id, root, pre-order entry ids)
//	"e:<id hex16>"  EntryRecord
//	"i:<id hex16>"  InodeRecord
//
// Ids are zero padded so prefix iteration returns records in id order.
const (
	prefixHeader = "h:"
	prefixEntry  = "e:"
	prefixInode  = "i:"
)

func keyHeader() []byte         { return []byte(prefixHeader) }
func keyEntry(id uint64) []byte { return fmt.Appendf(nil, "%s%016x", prefixEntry, id) }
func keyInode(id uint64) []byte { return fmt.Appendf(nil, "%s%016x", prefixInode, id) }

type badgerHeader struct {
	Version uint32
	TreeID  string
	SavedAt int64
	RootID  uint64
	Order   []uint64 // pre-order entry ids
}

// BadgerBackendConfig are the "badger" storage options
type BadgerBackendConfig struct {
	Dir        string `mapstructure:"dir"`
	Path       string `mapstructure:"path"` // alias for Dir
	InMemory   bool   `mapstructure:"in_memory"`
	SyncWrites bool   `mapstructure:"sync_writes"`
}

// BadgerBackend stores every entry and inode as its own key so large trees
// don't have to be encoded as a single blob. Records are XDR encoded; the
// configured snapshot codec is not used.
type BadgerBackend struct {
	db *badger.DB
}

func openBadgerBackend(_ context.Context, opts map[string]any, _ Codec) (Backend, error) {
	var cfg BadgerBackendConfig
	if err := mapstructure.Decode(opts, &cfg); err != nil {
		return nil, fmt.Errorf("invalid badger storage options: %w", err)
	}
	return NewBadgerBackend(cfg)
}

// NewBadgerBackend opens (creating if needed) the database described by cfg
func NewBadgerBackend(cfg BadgerBackendConfig) (*BadgerBackend, error) {
	if cfg.Dir == "" {
		cfg.Dir = cfg.Path
	}
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Dir == "" {
			return nil, errors.New("badger storage requires a dir unless in_memory is set")
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithLogger(util.NewBadgerLogger("persist.badger"))

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", cfg.Dir, err)
	}
	return &BadgerBackend{db: db}, nil
}

func (b *BadgerBackend) Save(ctx context.Context, snap *Snapshot) error {
	logger := util.GetLogger("BadgerBackend.Save")
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := b.db.DropPrefix([]byte(prefixHeader), []byte(prefixEntry), []byte(prefixInode)); err != nil {
		return fmt.Errorf("failed to clear previous tree: %w", err)
	}

	hdr := badgerHeader{
		Version: snap.Version,
		TreeID:  snap.TreeID,
		SavedAt: snap.SavedAt,
		RootID:  snap.RootID,
		Order:   make([]uint64, 0, len(snap.Entries)),
	}

	wb := b.db.NewWriteBatch()
	defer wb.Cancel()
	for i := range snap.Entries {
		rec := &snap.Entries[i]
		hdr.Order = append(hdr.Order, rec.ID)
		val, err := encodeRecord(rec)
		if err != nil {
			return fmt.Errorf("failed to encode entry %d: %w", rec.ID, err)
		}
		if err := wb.Set(keyEntry(rec.ID), val); err != nil {
			return err
		}
	}
	for i := range snap.Inodes {
		rec := &snap.Inodes[i]
		val, err := encodeRecord(rec)
		if err != nil {
			return fmt.Errorf("failed to encode inode %d: %w", rec.ID, err)
		}
		if err := wb.Set(keyInode(rec.ID), val); err != nil {
			return err
		}
	}
	// header last: a tree without header reads as absent
	val, err := encodeRecord(&hdr)
	if err != nil {
		return err
	}
	if err := wb.Set(keyHeader(), val); err != nil {
		return err
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to write tree: %w", err)
	}
	logger.Debug().Int("entries", len(snap.Entries)).Int("inodes", len(snap.Inodes)).Msg("Saved snapshot")
	return nil
}

func (b *BadgerBackend) Load(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var snap *Snapshot
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(keyHeader())
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotExist
		}
		if err != nil {
			return err
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		var hdr badgerHeader
		if err := decodeRecord(raw, &hdr); err != nil {
			return err
		}
		if hdr.Version != FormatVersion {
			return corruptf("unsupported format version %d", hdr.Version)
		}

		entries := make(map[uint64]EntryRecord, len(hdr.Order))
		if err := iterPrefix(txn, prefixEntry, func(val []byte) error {
			var rec EntryRecord
			if err := decodeRecord(val, &rec); err != nil {
				return err
			}
			entries[rec.ID] = rec
			return nil
		}); err != nil {
			return err
		}

		snap = &Snapshot{
			Version: hdr.Version,
			TreeID:  hdr.TreeID,
			SavedAt: hdr.SavedAt,
			RootID:  hdr.RootID,
			Entries: make([]EntryRecord, 0, len(hdr.Order)),
		}
		for _, id := range hdr.Order {
			rec, ok := entries[id]
			if !ok {
				return corruptf("missing entry %d", id)
			}
			snap.Entries = append(snap.Entries, rec)
		}

		return iterPrefix(txn, prefixInode, func(val []byte) error {
			var rec InodeRecord
			if err := decodeRecord(val, &rec); err != nil {
				return err
			}
			snap.Inodes = append(snap.Inodes, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func iterPrefix(txn *badger.Txn, prefix string, fn func(val []byte) error) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()
	p := []byte(prefix)
	for it.Seek(p); it.ValidForPrefix(p); it.Next() {
		val, err := it.Item().ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(val); err != nil {
			return err
		}
	}
	return nil
}

func (b *BadgerBackend) Close() error {
	return b.db.Close()
}
