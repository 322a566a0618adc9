package wa

// LockedUsers reports how many users currently have an entry in the lock
// table.
func (m *Manager) LockedUsers() int {
	return m.locks.Count()
}
