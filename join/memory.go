package join

import (
	"sync"
)

// MemoryManager is shared by the join actors of a process. Actors report their cache usage at each barrier,
// and a target set here overrides each actor's configured target from the next barrier on.
type MemoryManager struct {
	lock   sync.Mutex
	target int
	usage  map[uint32]int
}

func NewMemoryManager() *MemoryManager {
	return &MemoryManager{usage: map[uint32]int{}}
}

// SetTarget sets the per actor cache target in bytes. Zero or less clears it.
func (m *MemoryManager) SetTarget(bytes int) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.target = bytes
}

func (m *MemoryManager) Target() (int, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.target, m.target > 0
}

func (m *MemoryManager) ReportUsage(actorID uint32, bytes int) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.usage[actorID] = bytes
}

func (m *MemoryManager) Unregister(actorID uint32) {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.usage, actorID)
}

func (m *MemoryManager) TotalUsage() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	total := 0
	for _, u := range m.usage {
		total += u
	}
	return total
}
