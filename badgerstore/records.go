package badgerstore

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/jacentio/graft/store"
)

// Link record kinds. A link is a key-only inverse index entry
// (kind, target, source) for one pointer or content reference.
const (
	kindAsc     = 'a'
	kindHead    = 'h'
	kindPeer    = 'p'
	kindContent = 'c'
)

// Key layout uses NUL separators so opaque refs cannot collide with the
// structure of the key.
func itemKey(id string) []byte {
	return append([]byte("i\x00"), id...)
}

func linkPrefix(kind byte, target string) []byte {
	k := []byte{'l', 0, kind, 0}
	k = append(k, target...)
	return append(k, 0)
}

func linkKey(kind byte, target, source string) []byte {
	return append(linkPrefix(kind, target), source...)
}

func grantKey(contentRef, userID string) []byte {
	k := []byte{'g', 0}
	k = append(k, contentRef...)
	k = append(k, 0)
	return append(k, userID...)
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func getItem(txn *badger.Txn, id string) (*store.Item, error) {
	entry, err := txn.Get(itemKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var it store.Item
	if err := entry.Value(func(val []byte) error {
		return json.Unmarshal(val, &it)
	}); err != nil {
		return nil, err
	}
	return &it, nil
}

func setItem(txn *badger.Txn, it *store.Item) error {
	raw, err := json.Marshal(it)
	if err != nil {
		return err
	}
	return txn.Set(itemKey(it.ID), raw)
}

// itemsByLink scans one target's link entries and loads the source items.
// Ids are collected before the point reads so the iterator is closed first.
func itemsByLink(txn *badger.Txn, kind byte, target string) ([]*store.Item, error) {
	prefix := linkPrefix(kind, target)
	var ids []string

	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	iter := txn.NewIterator(opts)
	for iter.Seek(prefix); iter.ValidForPrefix(prefix); iter.Next() {
		key := iter.Item().Key()
		ids = append(ids, string(key[len(prefix):]))
	}
	iter.Close()

	var items []*store.Item
	for _, id := range ids {
		it, err := getItem(txn, id)
		if errors.Is(err, store.ErrNotFound) {
			// Dangling link entries cannot occur within a snapshot, but a
			// missing source is not worth failing an adjacency read over.
			continue
		}
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

func applyPut(txn *badger.Txn, src *store.Item, now string) error {
	if _, err := txn.Get(itemKey(src.ID)); err == nil {
		return store.ErrAlreadyExists
	} else if !errors.Is(err, badger.ErrKeyNotFound) {
		return err
	}

	it := src.Clone()
	it.Version = 1
	it.CreatedAt = now
	it.UpdatedAt = now
	if err := setItem(txn, it); err != nil {
		return err
	}

	if it.Ascendant != "" {
		if err := txn.Set(linkKey(kindAsc, it.Ascendant, it.ID), nil); err != nil {
			return err
		}
	}
	if it.DescendantHead != "" {
		if err := txn.Set(linkKey(kindHead, it.DescendantHead, it.ID), nil); err != nil {
			return err
		}
	}
	if it.PeerNext != "" {
		if err := txn.Set(linkKey(kindPeer, it.PeerNext, it.ID), nil); err != nil {
			return err
		}
	}
	if it.ContentRef != "" {
		if err := txn.Set(linkKey(kindContent, it.ContentRef, it.ID), nil); err != nil {
			return err
		}
	}
	return nil
}

func applyUpdate(txn *badger.Txn, u *store.PointerUpdate, now string) error {
	it, err := getItem(txn, u.ID)
	if err != nil {
		return err
	}
	if it.Version != u.ExpectedVersion {
		return store.ErrConcurrentModification
	}

	if u.SetHead {
		if err := moveLink(txn, kindHead, it.DescendantHead, u.NewHead, it.ID); err != nil {
			return err
		}
		it.DescendantHead = u.NewHead
	}
	if u.SetPeer {
		if err := moveLink(txn, kindPeer, it.PeerNext, u.NewPeer, it.ID); err != nil {
			return err
		}
		it.PeerNext = u.NewPeer
	}
	if u.SetVisual {
		it.VisualRef = u.NewVisual
	}

	it.Version++
	it.UpdatedAt = now
	return setItem(txn, it)
}

func applyDelete(txn *badger.Txn, id string) error {
	it, err := getItem(txn, id)
	if err != nil {
		return err
	}
	if err := txn.Delete(itemKey(id)); err != nil {
		return err
	}
	if it.Ascendant != "" {
		if err := txn.Delete(linkKey(kindAsc, it.Ascendant, it.ID)); err != nil {
			return err
		}
	}
	if it.DescendantHead != "" {
		if err := txn.Delete(linkKey(kindHead, it.DescendantHead, it.ID)); err != nil {
			return err
		}
	}
	if it.PeerNext != "" {
		if err := txn.Delete(linkKey(kindPeer, it.PeerNext, it.ID)); err != nil {
			return err
		}
	}
	if it.ContentRef != "" {
		if err := txn.Delete(linkKey(kindContent, it.ContentRef, it.ID)); err != nil {
			return err
		}
	}
	return nil
}

func moveLink(txn *badger.Txn, kind byte, oldTarget, newTarget, source string) error {
	if oldTarget == newTarget {
		return nil
	}
	if oldTarget != "" {
		if err := txn.Delete(linkKey(kind, oldTarget, source)); err != nil {
			return err
		}
	}
	if newTarget != "" {
		if err := txn.Set(linkKey(kind, newTarget, source), nil); err != nil {
			return err
		}
	}
	return nil
}
