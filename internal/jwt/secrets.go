package jwt

import "sync"

var (
	secretsMu   sync.RWMutex
	roleSecrets = map[Role]string{}
)

// Configure sets the signing secret of role. An empty secret disables the
// role: tokens can neither be created nor accepted for it.
func Configure(role Role, secret string) {
	secretsMu.Lock()
	defer secretsMu.Unlock()
	if secret == "" {
		delete(roleSecrets, role)
		return
	}
	roleSecrets[role] = secret
}

func secretFor(role Role) (string, bool) {
	secretsMu.RLock()
	defer secretsMu.RUnlock()
	secret, ok := roleSecrets[role]
	return secret, ok
}
