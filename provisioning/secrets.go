package provisioning

import "sync"

// BackupSecrets are the optional backup keys a primary device may include
// in its provisioning message.
type BackupSecrets struct {
	EphemeralBackupKey []byte
	MasterKey          []byte
	MediaRootBackupKey []byte
}

// HasBackupKey reports whether the primary offered a transfer archive.
func (b *BackupSecrets) HasBackupKey() bool {
	return b != nil && len(b.EphemeralBackupKey) > 0
}

// Secrets is a take-once cell shared between a provisioning attempt and the
// history sync that follows it. Each attempt writes it at most once and the
// value can be taken at most once.
type Secrets struct {
	mu sync.Mutex
	v  *BackupSecrets
}

// Put stores the secrets of the current attempt, discarding anything left
// over from a previous one.
func (s *Secrets) Put(b BackupSecrets) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.v = &b
}

// Take returns the stored secrets and empties the cell.
func (s *Secrets) Take() (*BackupSecrets, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.v
	s.v = nil
	return v, v != nil
}

// HasBackupKey peeks without consuming.
func (s *Secrets) HasBackupKey() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.v.HasBackupKey()
}

// Clear drops any stored value.
func (s *Secrets) Clear() {
	s.mu.Lock()
	s.v = nil
	s.mu.Unlock()
}
