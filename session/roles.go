package session

// HasRole reports whether the current token's role set contains role.
// Total: unauthenticated sessions and tokens without roles yield false.
func (m *Manager) HasRole(role string) bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if m.token == nil {
		return false
	}
	return m.token.Claims.HasRole(role)
}

// HasAnyRole reports whether the role set contains at least one of roles.
func (m *Manager) HasAnyRole(roles []string) bool {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if m.token == nil {
		return false
	}
	return m.token.Claims.HasAnyRole(roles)
}

// GetUserRoles returns a copy of the current role set, empty when
// unauthenticated.
func (m *Manager) GetUserRoles() []string {
	m.lock.RLock()
	defer m.lock.RUnlock()
	if m.token == nil {
		return []string{}
	}
	roles := make([]string, len(m.token.Claims.Roles))
	copy(roles, m.token.Claims.Roles)
	return roles
}
