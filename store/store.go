package store

import (
	"github.com/openparl/hansardsearch/internal/profile"
)

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

// GetDriver returns the underlying driver.
func (s *Store) GetDriver() Driver {
	return s.driver
}

// Backend returns the active passage storage layout.
func (s *Store) Backend() profile.Backend {
	return s.profile.Backend
}

func (s *Store) Close() error {
	return s.driver.Close()
}
