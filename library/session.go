package library

import "context"

// Session identifies the operator on whose behalf a request runs. Front ends
// attach it to the request context after login.
type Session struct {
	OperatorID int64  `json:"operator_id"`
	Username   string `json:"username"`
}

type sessionKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, s)
}

// SessionFromContext returns the operator session attached to ctx.
func SessionFromContext(ctx context.Context) (Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(Session)
	return s, ok && s.OperatorID > 0
}

func requireSession(ctx context.Context) (Session, error) {
	s, ok := SessionFromContext(ctx)
	if !ok {
		return Session{}, ErrNoSession
	}
	return s, nil
}
