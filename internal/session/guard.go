package session

// RequireAuth is the route guard for commands that need a session
func RequireAuth(m *Manager) error {
	if !m.IsAuthenticated() {
		return ErrNotAuthenticated
	}
	return nil
}
