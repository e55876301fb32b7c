// ABOUTME: In-memory registry mapping MCP session IDs to their server and client session.
// ABOUTME: Also serves as the SDK SessionIdManager and reaps idle sessions.

package mcp

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// notificationBuffer is the per-session queue for server-to-client notifications.
const notificationBuffer = 64

var (
	// ErrSessionNotFound is returned for IDs the registry does not know.
	ErrSessionNotFound = errors.New("session not found")
	// ErrMissingSessionID is returned when a request carries no session ID.
	ErrMissingSessionID = errors.New("missing session ID")
)

// Session is one live MCP session.
type Session struct {
	ID        string
	CreatedAt time.Time

	// server is nil for sessions minted on behalf of the SDK transport.
	server *server.MCPServer
	client *clientSession

	lastSeen  atomic.Int64 // unix nanos
	streaming atomic.Bool
}

// Server returns the MCP server bound to this session.
func (s *Session) Server() *server.MCPServer { return s.server }

// LastSeen reports when the session last handled a request.
func (s *Session) LastSeen() time.Time { return time.Unix(0, s.lastSeen.Load()) }

func (s *Session) touch() { s.lastSeen.Store(time.Now().UnixNano()) }

// clientSession implements server.ClientSession.
type clientSession struct {
	id            string
	notifications chan mcpgo.JSONRPCNotification
	initialized   atomic.Bool
	done          chan struct{}
	closeOnce     sync.Once
}

func newClientSession(id string) *clientSession {
	return &clientSession{
		id:            id,
		notifications: make(chan mcpgo.JSONRPCNotification, notificationBuffer),
		done:          make(chan struct{}),
	}
}

func (c *clientSession) SessionID() string { return c.id }

func (c *clientSession) NotificationChannel() chan<- mcpgo.JSONRPCNotification {
	return c.notifications
}

func (c *clientSession) Initialize() { c.initialized.Store(true) }

func (c *clientSession) Initialized() bool { return c.initialized.Load() }

func (c *clientSession) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

var _ server.ClientSession = (*clientSession)(nil)

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithCountObserver reports the session count after every change.
func WithCountObserver(fn func(count int)) RegistryOption {
	return func(r *Registry) { r.onCount = fn }
}

// Registry tracks live sessions. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	onCount  func(int)
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{sessions: make(map[string]*Session)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create mints a session ID, binds it to srv and registers the client session with srv.
func (r *Registry) Create(ctx context.Context, srv *server.MCPServer) (*Session, error) {
	sess := r.newSession(srv)
	if srv != nil {
		if err := srv.RegisterSession(ctx, sess.client); err != nil {
			return nil, fmt.Errorf("registering session: %w", err)
		}
	}
	r.add(sess)
	return sess, nil
}

func (r *Registry) newSession(srv *server.MCPServer) *Session {
	id := uuid.New().String()
	sess := &Session{
		ID:        id,
		CreatedAt: time.Now(),
		server:    srv,
		client:    newClientSession(id),
	}
	sess.touch()
	return sess
}

func (r *Registry) add(sess *Session) {
	r.mu.Lock()
	r.sessions[sess.ID] = sess
	n := len(r.sessions)
	r.mu.Unlock()
	r.notify(n)
}

// Get returns the session for id and marks it as seen.
func (r *Registry) Get(id string) (*Session, error) {
	if id == "" {
		return nil, ErrMissingSessionID
	}
	r.mu.RLock()
	sess, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.touch()
	return sess, nil
}

// Delete tears the session down. It reports whether the session existed.
func (r *Registry) Delete(ctx context.Context, id string) bool {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()
	if !ok {
		return false
	}

	teardown(ctx, sess)
	r.notify(n)
	return true
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// IDs returns the live session IDs in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Reap removes sessions idle for longer than maxIdle and returns their IDs.
func (r *Registry) Reap(ctx context.Context, maxIdle time.Duration) []string {
	cutoff := time.Now().Add(-maxIdle)

	r.mu.Lock()
	var expired []*Session
	for id, sess := range r.sessions {
		if sess.LastSeen().Before(cutoff) && !sess.streaming.Load() {
			expired = append(expired, sess)
			delete(r.sessions, id)
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	ids := make([]string, 0, len(expired))
	for _, sess := range expired {
		teardown(ctx, sess)
		ids = append(ids, sess.ID)
	}
	if len(expired) > 0 {
		r.notify(n)
	}
	return ids
}

// RunReaper calls Reap every interval until ctx is done.
func (r *Registry) RunReaper(ctx context.Context, interval, maxIdle time.Duration, onReap func(ids []string)) {
	if interval <= 0 || maxIdle <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if ids := r.Reap(ctx, maxIdle); len(ids) > 0 && onReap != nil {
				onReap(ids)
			}
		case <-ctx.Done():
			return
		}
	}
}

// CloseAll tears down every session.
func (r *Registry) CloseAll(ctx context.Context) {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, sess := range all {
		teardown(ctx, sess)
	}
	if len(all) > 0 {
		r.notify(0)
	}
}

func (r *Registry) notify(n int) {
	if r.onCount != nil {
		r.onCount(n)
	}
}

func teardown(ctx context.Context, sess *Session) {
	if sess.server != nil {
		sess.server.UnregisterSession(ctx, sess.ID)
	}
	sess.client.close()
}

// SDK session ID manager. Sessions minted here carry no server of their own.

// Generate implements server.SessionIdManager.
func (r *Registry) Generate() string {
	sess := r.newSession(nil)
	r.add(sess)
	return sess.ID
}

// Validate implements server.SessionIdManager. Unknown IDs count as terminated.
func (r *Registry) Validate(sessionID string) (isTerminated bool, err error) {
	if _, err := r.Get(sessionID); err != nil {
		if errors.Is(err, ErrMissingSessionID) {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// Terminate implements server.SessionIdManager. Terminating an unknown ID is a no-op.
func (r *Registry) Terminate(sessionID string) (isNotAllowed bool, err error) {
	if sessionID == "" {
		return false, ErrMissingSessionID
	}
	r.Delete(context.Background(), sessionID)
	return false, nil
}

var _ server.SessionIdManager = (*Registry)(nil)
