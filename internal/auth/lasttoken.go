package auth

import "sync"

// LastToken holds the most recently issued token for the debug endpoints.
type LastToken struct {
	mu    sync.RWMutex
	token string
}

func (l *LastToken) Set(token string) {
	l.mu.Lock()
	l.token = token
	l.mu.Unlock()
}

func (l *LastToken) Get() (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.token, l.token != ""
}
