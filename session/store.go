// Package session keeps the login sessions of the server-rendered pages in
// a local pebble database, so sessions survive a restart.
package session

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"path/filepath"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var ErrNotFound = errors.New("session not found")

type Session struct {
	Username string
	Wallet   string
}

type Store struct {
	db *pebble.DB
}

func NewStore(storeDir string) (*Store, error) {
	db, err := pebble.Open(filepath.Join(storeDir, "sessions"), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("opening pebble db: %v", err)
	}
	return &Store{db: db}, nil
}

// Create stores a new session and returns its id.
func (s *Store) Create(username, wallet string) (string, error) {
	id := uuid.NewString()

	buffer := new(bytes.Buffer)
	encoder := gob.NewEncoder(buffer)
	err := encoder.Encode(Session{Username: username, Wallet: wallet})
	if err != nil {
		return "", errors.Wrap(err, "encoding session")
	}

	err = s.db.Set([]byte(id), buffer.Bytes(), pebble.Sync)
	if err != nil {
		return "", errors.Wrapf(err, "saving session [%s]", id)
	}
	return id, nil
}

func (s *Store) Get(id string) (*Session, error) {
	value, closer, err := s.db.Get([]byte(id))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "getting session [%s]", id)
	}
	defer closer.Close()

	buffer := bytes.NewBuffer(value)
	decoder := gob.NewDecoder(buffer)
	var session Session
	err = decoder.Decode(&session)
	if err != nil {
		return nil, errors.Wrap(err, "deserializing session")
	}
	return &session, nil
}

func (s *Store) Delete(id string) error {
	err := s.db.Delete([]byte(id), pebble.Sync)
	if err != nil {
		return errors.Wrapf(err, "deleting session [%s]", id)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
