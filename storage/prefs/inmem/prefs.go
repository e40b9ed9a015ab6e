package inmemprefs

import (
	"sync"

	"github.com/trezcool/attendly/core/device"
)

// Store keeps preferences for the lifetime of the process.
type Store struct {
	mutex sync.RWMutex
	table map[string]string
}

var _ device.Preferences = (*Store)(nil)

func NewStore(initial ...map[string]string) *Store {
	table := make(map[string]string)
	for _, m := range initial {
		for key, val := range m {
			table[key] = val
		}
	}
	return &Store{table: table}
}

func (s *Store) Get(key string) (string, bool, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	val, ok := s.table[key]
	return val, ok, nil
}

func (s *Store) Set(key, value string) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.table[key] = value
	return nil
}
