package enrollment

// SetIDGenerator replaces the session id generator.
func SetIDGenerator(m *Manager, fn func() string) {
	m.newID = fn
}
