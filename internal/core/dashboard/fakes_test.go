package dashboard

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/UjjawalMishra93/civic-issue-system/internal/core/issues"
	"github.com/UjjawalMishra93/civic-issue-system/internal/core/users"
	"github.com/UjjawalMishra93/civic-issue-system/internal/notifications"
)

// fakeStore serves an in-memory issue list and upvote table.
// holds[n] blocks the n-th FetchIssues call (1-based) after it copied its data.
type fakeStore struct {
	issues   []*issues.Issue
	upvotes  map[string]map[string]struct{}
	holds    map[int]chan struct{}
	fetchErr error
	fetches  int
	mu       sync.Mutex
}

func newFakeStore(list ...*issues.Issue) *fakeStore {
	return &fakeStore{
		issues:  list,
		upvotes: make(map[string]map[string]struct{}),
		holds:   make(map[int]chan struct{}),
	}
}

func (s *fakeStore) FetchIssues(ctx context.Context) ([]*issues.Issue, error) {
	s.mu.Lock()
	s.fetches++
	hold := s.holds[s.fetches]
	err := s.fetchErr
	out := make([]*issues.Issue, 0, len(s.issues))
	for _, issue := range s.issues {
		copied := *issue
		out = append(out, &copied)
	}
	s.mu.Unlock()

	if hold != nil {
		<-hold
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *fakeStore) FetchUserUpvotes(ctx context.Context, userID string) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]struct{})
	for id := range s.upvotes[userID] {
		out[id] = struct{}{}
	}
	return out, nil
}

func (s *fakeStore) setCount(issueID string, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, issue := range s.issues {
		if issue.ID == issueID {
			issue.UpvoteCount = count
		}
	}
}

func (s *fakeStore) setUpvoted(userID, issueID string, upvoted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.upvotes[userID] == nil {
		s.upvotes[userID] = make(map[string]struct{})
	}
	if upvoted {
		s.upvotes[userID][issueID] = struct{}{}
	} else {
		delete(s.upvotes[userID], issueID)
	}
}

func (s *fakeStore) remove(issueID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.issues[:0]
	for _, issue := range s.issues {
		if issue.ID != issueID {
			kept = append(kept, issue)
		}
	}
	s.issues = kept
}

func (s *fakeStore) holdFetch(n int) chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan struct{})
	s.holds[n] = ch
	return ch
}

type backendCall struct {
	ctxErr  error
	op      string
	issueID string
	userID  string
}

// fakeBackend records mutations. With release set, every call blocks until
// an error (or nil) is sent or its context ends.
type fakeBackend struct {
	err     error
	started chan string
	release chan error
	calls   []backendCall
	mu      sync.Mutex
}

func (b *fakeBackend) InsertUpvote(ctx context.Context, issueID, userID string) error {
	return b.do(ctx, "insert", issueID, userID)
}

func (b *fakeBackend) DeleteUpvote(ctx context.Context, issueID, userID string) error {
	return b.do(ctx, "delete", issueID, userID)
}

func (b *fakeBackend) do(ctx context.Context, op, issueID, userID string) error {
	if b.started != nil {
		b.started <- op + ":" + issueID
	}

	var err error
	if b.release != nil {
		select {
		case err = <-b.release:
		case <-ctx.Done():
			err = ctx.Err()
		}
	} else {
		b.mu.Lock()
		err = b.err
		b.mu.Unlock()
	}

	b.mu.Lock()
	b.calls = append(b.calls, backendCall{op: op, issueID: issueID, userID: userID, ctxErr: ctx.Err()})
	b.mu.Unlock()
	return err
}

func (b *fakeBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.calls)
}

func (b *fakeBackend) recorded() []backendCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]backendCall(nil), b.calls...)
}

type fakeAuth struct {
	user *users.User
	mu   sync.Mutex
}

func (a *fakeAuth) CurrentUser(ctx context.Context) *users.User {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.user == nil {
		return nil
	}
	u := *a.user
	return &u
}

func (a *fakeAuth) set(user *users.User) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.user = user
}

type recordingSink struct {
	sent []notifications.Notification
	mu   sync.Mutex
}

func (s *recordingSink) Notify(ctx context.Context, sessionID string, n notifications.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, n)
	return nil
}

func (s *recordingSink) all() []notifications.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notifications.Notification(nil), s.sent...)
}

func (s *recordingSink) countKind(kind notifications.Kind) int {
	n := 0
	for _, sent := range s.all() {
		if sent.Kind == kind {
			n++
		}
	}
	return n
}

var citizen = &users.User{ID: "user-1", Email: "asha@example.com", Role: users.RoleCitizen}

func testLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func newIssue(id string, count int) *issues.Issue {
	return &issues.Issue{
		ID:          id,
		Title:       "Issue " + id,
		Status:      issues.StatusPending,
		District:    "Ranchi",
		ReporterID:  "reporter-1",
		UpvoteCount: count,
	}
}

type harness struct {
	store   *fakeStore
	backend *fakeBackend
	auth    *fakeAuth
	sink    *recordingSink
	rec     *Reconciler
}

func newHarness(t *testing.T, backend *fakeBackend, timeout time.Duration, list ...*issues.Issue) *harness {
	t.Helper()
	h := &harness{
		store:   newFakeStore(list...),
		backend: backend,
		auth:    &fakeAuth{user: citizen},
		sink:    &recordingSink{},
	}
	h.rec = NewReconciler("session-1", h.store, h.backend, h.auth, h.sink, Config{RemoteTimeout: timeout}, testLogger())
	return h
}

// gatedBackend blocks every mutation until the test releases it
func gatedBackend() *fakeBackend {
	return &fakeBackend{
		started: make(chan string, 8),
		release: make(chan error, 8),
	}
}

func waitStarted(t *testing.T, b *fakeBackend) string {
	t.Helper()
	select {
	case op := <-b.started:
		return op
	case <-time.After(2 * time.Second):
		t.Fatal("backend call was not dispatched")
		return ""
	}
}

type toggleOutcome struct {
	result *ToggleResult
	err    error
}

func toggleAsync(ctx context.Context, r *Reconciler, issueID string) <-chan toggleOutcome {
	done := make(chan toggleOutcome, 1)
	go func() {
		result, err := r.Toggle(ctx, issueID)
		done <- toggleOutcome{result: result, err: err}
	}()
	return done
}

func waitOutcome(t *testing.T, done <-chan toggleOutcome) toggleOutcome {
	t.Helper()
	select {
	case out := <-done:
		return out
	case <-time.After(2 * time.Second):
		t.Fatal("toggle did not settle")
		return toggleOutcome{}
	}
}
