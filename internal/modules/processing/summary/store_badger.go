package summary

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/timshannon/badgerhold/v4"
)

// BadgerStore keeps summaries in an embedded badger database.
type BadgerStore struct {
	store *badgerhold.Store
}

// OpenBadgerStore opens (or creates) the database under dir.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create badger dir: %w", err)
	}
	options := badgerhold.DefaultOptions
	options.Options = badger.DefaultOptions(dir).WithLogger(nil)
	store, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("open badger store: %w", err)
	}
	return &BadgerStore{store: store}, nil
}

func (s *BadgerStore) Get(_ context.Context, documentID string) (*Summary, error) {
	var out Summary
	if err := s.store.Get(documentID, &out); err != nil {
		if errors.Is(err, badgerhold.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (s *BadgerStore) Put(_ context.Context, sum *Summary) error {
	return s.store.Upsert(sum.DocumentID, sum)
}

func (s *BadgerStore) Delete(_ context.Context, documentID string) error {
	err := s.store.Delete(documentID, &Summary{})
	if errors.Is(err, badgerhold.ErrNotFound) {
		return nil
	}
	return err
}

func (s *BadgerStore) Close() error {
	return s.store.Close()
}
