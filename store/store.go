package store

import (
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
	bolterrors "go.etcd.io/bbolt/errors"
)

var likedBucketName = []byte("liked")

// Liked caches the track URIs of playlists, one nested bucket per playlist.
// A playlist bucket exists only once the playlist has been seeded with its
// full track list, so a missing bucket means "unknown", not "empty".
type Liked struct {
	db *bbolt.DB
}

func Open(path string) (*Liked, error) {
	opts := &bbolt.Options{ //nolint:exhaustruct
		NoFreelistSync: true,
		ReadOnly:       false,
		Timeout:        1 * time.Second,
		NoGrowSync:     false,
		FreelistType:   bbolt.FreelistArrayType,
	}
	db, err := bbolt.Open(path, 0o600, opts)
	if nil != err {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	if err := createBuckets(db); nil != err {
		return nil, errors.Join(err, db.Close())
	}

	return &Liked{db: db}, nil
}

func createBuckets(db *bbolt.DB) error {
	err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(likedBucketName); nil != err {
			return fmt.Errorf("failed to create liked bucket: %v", err)
		}

		return nil
	})
	if nil != err {
		return fmt.Errorf("failed to create buckets: %v", err)
	}

	return nil
}

func (s *Liked) Close() error {
	if err := s.db.Close(); nil != err {
		return fmt.Errorf("failed to close database: %v", err)
	}

	return nil
}

func (s *Liked) Seeded(playlistID string) (bool, error) {
	var seeded bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		seeded = nil != tx.Bucket(likedBucketName).Bucket([]byte(playlistID))
		return nil
	})
	if nil != err {
		return false, fmt.Errorf("failed to check playlist bucket: %v", err)
	}

	return seeded, nil
}

// Seed replaces whatever is cached for the playlist with uris.
func (s *Liked) Seed(playlistID string, uris []string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		liked := tx.Bucket(likedBucketName)
		if err := liked.DeleteBucket([]byte(playlistID)); nil != err && !errors.Is(err, bolterrors.ErrBucketNotFound) {
			return fmt.Errorf("failed to drop playlist bucket: %v", err)
		}

		b, err := liked.CreateBucket([]byte(playlistID))
		if nil != err {
			return fmt.Errorf("failed to create playlist bucket: %v", err)
		}

		seededAt := stamp()
		for _, uri := range uris {
			if err := b.Put([]byte(uri), seededAt); nil != err {
				return fmt.Errorf("failed to store track uri: %v", err)
			}
		}

		return nil
	})
	if nil != err {
		return fmt.Errorf("failed to seed playlist: %v", err)
	}

	return nil
}

// Has reports whether uri is cached as part of the playlist. It is false for
// playlists that were never seeded.
func (s *Liked) Has(playlistID, uri string) (bool, error) {
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		if b := tx.Bucket(likedBucketName).Bucket([]byte(playlistID)); nil != b {
			found = nil != b.Get([]byte(uri))
		}

		return nil
	})
	if nil != err {
		return false, fmt.Errorf("failed to look up track uri: %v", err)
	}

	return found, nil
}

// Add records uri for a seeded playlist. Unseeded playlists are left alone.
func (s *Liked) Add(playlistID, uri string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(likedBucketName).Bucket([]byte(playlistID))
		if nil == b {
			return nil
		}

		if err := b.Put([]byte(uri), stamp()); nil != err {
			return fmt.Errorf("failed to store track uri: %v", err)
		}

		return nil
	})
	if nil != err {
		return fmt.Errorf("failed to add track uri: %v", err)
	}

	return nil
}

func (s *Liked) Remove(playlistID, uri string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(likedBucketName).Bucket([]byte(playlistID))
		if nil == b {
			return nil
		}

		if err := b.Delete([]byte(uri)); nil != err {
			return fmt.Errorf("failed to delete track uri: %v", err)
		}

		return nil
	})
	if nil != err {
		return fmt.Errorf("failed to remove track uri: %v", err)
	}

	return nil
}

// Forget drops the cached track list of the playlist.
func (s *Liked) Forget(playlistID string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		err := tx.Bucket(likedBucketName).DeleteBucket([]byte(playlistID))
		if nil != err && !errors.Is(err, bolterrors.ErrBucketNotFound) {
			return fmt.Errorf("failed to drop playlist bucket: %v", err)
		}

		return nil
	})
	if nil != err {
		return fmt.Errorf("failed to forget playlist: %v", err)
	}

	return nil
}

func stamp() []byte {
	return []byte(time.Now().UTC().Format(time.RFC3339))
}
