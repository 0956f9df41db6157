package reliability

import (
	"encoding/json"

	"github.com/undchain/modulr/kvstore"
)

// persistedProfile is the JSON-serializable form of Profile; SeenJobs is
// flattened to a slice of job IDs in map iteration order, which carries
// no meaning since the set only needs membership, not ordering.
type persistedProfile struct {
	XP       int      `json:"xp"`
	Level    int      `json:"level"`
	History  []Event  `json:"history"`
	SeenJobs []string `json:"seen_jobs"`
}

// Persist writes userID's profile to table under key userID. It is a
// no-op for an unknown user. ApplySignal does not call it; profiles are
// written only when a caller invokes Persist.
func (m *Manager) Persist(table *kvstore.Table, userID string) error {
	m.mu.RLock()
	p, ok := m.users[userID]
	if !ok {
		m.mu.RUnlock()
		return nil
	}
	pp := persistedProfile{
		XP:      p.XP,
		Level:   p.Level,
		History: append([]Event{}, p.History...),
	}
	for jobID := range p.SeenJobs {
		pp.SeenJobs = append(pp.SeenJobs, jobID)
	}
	m.mu.RUnlock()

	data, err := json.Marshal(pp)
	if err != nil {
		return err
	}
	return table.Set([]byte(userID), data)
}

// Restore loads userID's profile from table, replacing any in-memory
// state for that user. It is a no-op if the key is absent (a fresh node
// with no prior history for that user).
func (m *Manager) Restore(table *kvstore.Table, userID string) error {
	data, err := table.Get([]byte(userID))
	if err == kvstore.ErrNotFound {
		return nil
	}
	if err != nil {
		return err
	}
	var pp persistedProfile
	if err := json.Unmarshal(data, &pp); err != nil {
		return err
	}

	p := &Profile{
		XP:       pp.XP,
		Level:    pp.Level,
		History:  pp.History,
		SeenJobs: make(map[string]struct{}, len(pp.SeenJobs)),
	}
	for _, jobID := range pp.SeenJobs {
		p.SeenJobs[jobID] = struct{}{}
	}

	m.mu.Lock()
	m.users[userID] = p
	m.mu.Unlock()
	return nil
}
