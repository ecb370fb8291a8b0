package services

import (
	"github.com/iota-uz/asptt-sync/modules/asptt/testkit"
)

type memStore struct {
	*testkit.Store
}

func newMemStore() *memStore {
	return &memStore{Store: testkit.NewStore()}
}

func (m *memStore) repos() Repositories {
	return Repositories{
		Clubs:      m.Clubs(),
		Licensees:  m.Licensees(),
		Aliases:    m.Aliases(),
		Documents:  m.Documents(),
		Meta:       m.Meta(),
		Batches:    m.Batches(),
		ImportLogs: m.ImportLogs(),
		Tx:         m.Transactor(),
	}
}
