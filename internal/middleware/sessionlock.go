package middleware

import (
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/conversant-bank/atm-backend/internal/auth"
	"github.com/conversant-bank/atm-backend/internal/handler"
)

// SessionLocker admits one in-flight request per session. A second request
// arriving while the first is still processing is rejected, not queued, so a
// stalled LLM call cannot pile up state transitions behind it.
type SessionLocker struct {
	mu       sync.Mutex
	inFlight map[uuid.UUID]struct{}
}

func NewSessionLocker() *SessionLocker {
	return &SessionLocker{inFlight: make(map[uuid.UUID]struct{})}
}

func (l *SessionLocker) acquire(id uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, busy := l.inFlight[id]; busy {
		return false
	}
	l.inFlight[id] = struct{}{}
	return true
}

func (l *SessionLocker) release(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.inFlight, id)
}

func (l *SessionLocker) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID, ok := auth.SessionIDFromContext(r.Context())
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		if !l.acquire(sessionID) {
			handler.RespondAppError(w, handler.ErrConcurrentRequest, nil)
			return
		}
		defer l.release(sessionID)

		next.ServeHTTP(w, r)
	})
}
