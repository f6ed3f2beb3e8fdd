package calib

// MemStore is an in-memory Store for tests.
type MemStore struct {
	// Rec is the stored record; nil behaves like an empty store.
	Rec *Record

	// Saves counts Save calls.
	Saves int

	// SaveError, if set, is returned by Save.
	SaveError error
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{}
}

// Load returns the stored record or installs defaults, mirroring the
// FileStore self-heal behavior.
func (m *MemStore) Load() (*Record, error) {
	if m.Rec == nil || m.Rec.Validate() != nil {
		rec := Defaults()
		if err := m.Save(rec); err != nil {
			return nil, err
		}
		return rec, nil
	}
	return m.Rec.Clone(), nil
}

// Save stores a copy of the record.
func (m *MemStore) Save(rec *Record) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	m.Rec = rec.Clone()
	m.Saves++
	return nil
}
