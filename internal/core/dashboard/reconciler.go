package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/UjjawalMishra93/civic-issue-system/internal/core/issues"
	"github.com/UjjawalMishra93/civic-issue-system/internal/core/upvotes"
	"github.com/UjjawalMishra93/civic-issue-system/internal/notifications"
)

// DefaultRemoteTimeout bounds a single upvote mutation
const DefaultRemoteTimeout = 10 * time.Second

// Config holds reconciler and session tunables
type Config struct {
	RemoteTimeout  time.Duration
	SessionIdleTTL time.Duration
}

// pendingToggle is an in-flight Pending(from, to) transition
type pendingToggle struct {
	prevCount int
	from      bool
	to        bool
}

// deferredEntry is what a refetch reported for an issue whose toggle was
// still pending. issue is nil when the refetch no longer contained it.
type deferredEntry struct {
	issue   *issues.Issue
	upvoted bool
}

// Reconciler holds one dashboard session's issues and upvote membership and
// applies optimistic upvote toggles against the backend.
//
// The mutex is never held across a store or backend call, so readers see the
// optimistic state while a mutation is outstanding.
type Reconciler struct {
	loadedAt time.Time

	store    IssueStore
	backend  upvotes.Backend
	auth     AuthProvider
	notifier NotificationSink
	logger   *slog.Logger

	index     map[string]int
	upvoted   map[string]struct{}
	pending   map[string]pendingToggle
	deferred  map[string]deferredEntry
	settledAt map[string]uint64
	observers map[uint64]Observer

	sessionID string
	ownerID   string
	issues    []*issues.Issue

	remoteTimeout time.Duration
	version       uint64
	refreshSeq    uint64
	appliedSeq    uint64
	nextObserver  uint64

	mu sync.Mutex
}

// NewReconciler creates an empty, unloaded reconciler for a session
func NewReconciler(
	sessionID string,
	store IssueStore,
	backend upvotes.Backend,
	auth AuthProvider,
	notifier NotificationSink,
	cfg Config,
	logger *slog.Logger,
) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = DefaultRemoteTimeout
	}
	return &Reconciler{
		sessionID:     sessionID,
		store:         store,
		backend:       backend,
		auth:          auth,
		notifier:      notifier,
		logger:        logger.With("session", sessionID),
		remoteTimeout: cfg.RemoteTimeout,
		index:         make(map[string]int),
		upvoted:       make(map[string]struct{}),
		pending:       make(map[string]pendingToggle),
		deferred:      make(map[string]deferredEntry),
		settledAt:     make(map[string]uint64),
		observers:     make(map[uint64]Observer),
	}
}

// SessionID returns the session this reconciler belongs to
func (r *Reconciler) SessionID() string {
	return r.sessionID
}

// Owner returns the ID of the user the session was loaded for, or "" before Load
func (r *Reconciler) Owner() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ownerID
}

// Load binds the session to the current user and performs the initial fetch
func (r *Reconciler) Load(ctx context.Context) error {
	user := r.auth.CurrentUser(ctx)
	if user == nil {
		return ErrAuthenticationRequired
	}

	r.mu.Lock()
	if r.ownerID != "" && r.ownerID != user.ID {
		r.mu.Unlock()
		r.logger.Warn("dashboard load by a different user rejected",
			"owner", r.ownerID,
			"user", user.ID)
		return ErrAuthenticationRequired
	}
	r.ownerID = user.ID
	r.mu.Unlock()

	return r.Refresh(ctx)
}

// Refresh refetches issues and the owner's upvotes and replaces local state.
// Entries with a pending toggle keep their optimistic state; what the refetch
// reported for them is applied when the toggle settles. Entries whose toggle
// settled after the refetch started keep their confirmed state.
func (r *Reconciler) Refresh(ctx context.Context) error {
	r.mu.Lock()
	ownerID := r.ownerID
	r.refreshSeq++
	seq := r.refreshSeq
	r.mu.Unlock()

	if ownerID == "" {
		return ErrAuthenticationRequired
	}

	fetched, err := r.store.FetchIssues(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch issues: %w", err)
	}
	upvoted, err := r.store.FetchUserUpvotes(ctx, ownerID)
	if err != nil {
		return fmt.Errorf("failed to fetch user upvotes: %w", err)
	}

	r.mu.Lock()
	if seq < r.appliedSeq {
		// A newer snapshot already landed while this one was in flight
		r.mu.Unlock()
		r.logger.Debug("discarding stale refetch", "seq", seq, "applied", r.appliedSeq)
		return nil
	}
	r.appliedSeq = seq
	r.applySnapshotLocked(fetched, upvoted, seq)
	view := r.viewLocked()
	r.mu.Unlock()

	r.logger.Debug("dashboard refreshed",
		"user", ownerID,
		"issues", len(view.Issues),
		"upvoted", len(upvoted))

	r.publish(view)
	return nil
}

// applySnapshotLocked replaces issues and membership with a fetched snapshot.
// Entries with a toggle in flight are deferred. Entries whose toggle settled at
// or after seq was taken may predate the write and are left as they are.
func (r *Reconciler) applySnapshotLocked(fetched []*issues.Issue, upvoted map[string]struct{}, seq uint64) {
	stale := func(id string) bool {
		at, ok := r.settledAt[id]
		return ok && at >= seq
	}
	keep := func(id string) bool {
		_, inFlight := r.pending[id]
		return inFlight || stale(id)
	}

	seen := make(map[string]bool, len(fetched))
	next := make([]*issues.Issue, 0, len(fetched))

	for _, issue := range fetched {
		if issue == nil || seen[issue.ID] {
			continue
		}
		seen[issue.ID] = true

		if keep(issue.ID) {
			if _, inFlight := r.pending[issue.ID]; inFlight && !stale(issue.ID) {
				_, isUpvoted := upvoted[issue.ID]
				snapshot := *issue
				r.deferred[issue.ID] = deferredEntry{issue: &snapshot, upvoted: isUpvoted}
			}
			if i, ok := r.index[issue.ID]; ok {
				next = append(next, r.issues[i])
				continue
			}
		}

		copied := *issue
		next = append(next, &copied)
	}

	// Kept entries the snapshot dropped stay visible; pending ones until they settle
	for id, i := range r.index {
		if seen[id] || !keep(id) {
			continue
		}
		if _, inFlight := r.pending[id]; inFlight && !stale(id) {
			_, isUpvoted := upvoted[id]
			r.deferred[id] = deferredEntry{issue: nil, upvoted: isUpvoted}
		}
		next = append(next, r.issues[i])
	}

	nextUpvoted := make(map[string]struct{}, len(upvoted))
	for id := range upvoted {
		if keep(id) {
			continue
		}
		nextUpvoted[id] = struct{}{}
	}
	for id := range r.upvoted {
		if keep(id) {
			nextUpvoted[id] = struct{}{}
		}
	}

	for id, at := range r.settledAt {
		if at < seq {
			delete(r.settledAt, id)
		}
	}

	r.issues = next
	r.upvoted = nextUpvoted
	r.reindexLocked()
	r.loadedAt = time.Now().UTC()
	r.version++
}

// Toggle flips the current user's upvote on issueID.
// The optimistic change is visible to Snapshot and observers before the
// backend call returns. On ErrRemoteFailure the returned result describes
// the rolled-back state.
func (r *Reconciler) Toggle(ctx context.Context, issueID string) (*ToggleResult, error) {
	user := r.auth.CurrentUser(ctx)
	if user == nil {
		r.notify(ctx, notifications.KindAuthenticationRequired, issueID, "Please log in to upvote.")
		return nil, ErrAuthenticationRequired
	}

	r.mu.Lock()
	if r.ownerID == "" || r.ownerID != user.ID {
		r.mu.Unlock()
		r.notify(ctx, notifications.KindAuthenticationRequired, issueID, "Please log in to upvote.")
		return nil, ErrAuthenticationRequired
	}

	idx, ok := r.index[issueID]
	if !ok {
		r.mu.Unlock()
		return nil, ErrIssueNotFound
	}

	if _, inFlight := r.pending[issueID]; inFlight {
		r.mu.Unlock()
		r.logger.Debug("toggle rejected: operation in progress",
			"user", user.ID,
			"issue", issueID)
		return nil, ErrOperationInProgress
	}

	// Snapshot
	_, wasUpvoted := r.upvoted[issueID]
	delta := 1
	if wasUpvoted {
		delta = -1
	}

	// Optimistic update
	issue := r.issues[idx]
	prevCount := issue.UpvoteCount
	r.setMembershipLocked(issueID, !wasUpvoted)
	issue.UpvoteCount = clampCount(issue.UpvoteCount + delta)
	r.pending[issueID] = pendingToggle{prevCount: prevCount, from: wasUpvoted, to: !wasUpvoted}
	r.version++
	view := r.viewLocked()
	r.mu.Unlock()

	r.publish(view)

	// Remote mutation; runs to completion even if the caller goes away
	remoteCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.remoteTimeout)
	var remoteErr error
	if wasUpvoted {
		remoteErr = r.backend.DeleteUpvote(remoteCtx, issueID, user.ID)
	} else {
		remoteErr = r.backend.InsertUpvote(remoteCtx, issueID, user.ID)
	}
	cancel()

	// Settle
	r.mu.Lock()
	p := r.pending[issueID]
	delete(r.pending, issueID)
	deferred, hasDeferred := r.deferred[issueID]
	delete(r.deferred, issueID)
	r.settledAt[issueID] = r.refreshSeq

	if remoteErr == nil {
		r.settleSuccessLocked(issueID, p, delta, deferred, hasDeferred)
	} else {
		r.settleFailureLocked(issueID, p, deferred, hasDeferred)
	}

	result := r.resultLocked(issueID)
	if remoteErr == nil {
		// The issue may have left the view; the write still stands
		result.Upvoted = p.to
	}
	r.version++
	view = r.viewLocked()
	r.mu.Unlock()

	r.publish(view)

	if remoteErr != nil {
		r.logger.Warn("upvote toggle rolled back",
			"user", user.ID,
			"issue", issueID,
			"from", p.from,
			"to", p.to,
			"error", remoteErr)
		r.notify(ctx, notifications.KindRemoteFailure, issueID, "Couldn't save your upvote. Please try again.")
		return result, fmt.Errorf("%w: %w", ErrRemoteFailure, remoteErr)
	}

	r.logger.Info("upvote toggle settled",
		"user", user.ID,
		"issue", issueID,
		"upvoted", p.to)

	return result, nil
}

// settleSuccessLocked keeps the confirmed membership. A refetch that landed
// meanwhile supplies the count; it is shifted by the confirmed delta only if
// that snapshot was taken before the write.
func (r *Reconciler) settleSuccessLocked(issueID string, p pendingToggle, delta int, deferred deferredEntry, hasDeferred bool) {
	r.setMembershipLocked(issueID, p.to)
	if !hasDeferred {
		return
	}
	if deferred.issue == nil {
		r.removeIssueLocked(issueID)
		return
	}

	updated := *deferred.issue
	if deferred.upvoted != p.to {
		updated.UpvoteCount = clampCount(updated.UpvoteCount + delta)
	}
	r.replaceIssueLocked(issueID, &updated)
}

// settleFailureLocked undoes exactly the optimistic change, or applies the
// refetched entry as-is when one arrived while the toggle was pending
func (r *Reconciler) settleFailureLocked(issueID string, p pendingToggle, deferred deferredEntry, hasDeferred bool) {
	if !hasDeferred {
		r.setMembershipLocked(issueID, p.from)
		if idx, ok := r.index[issueID]; ok {
			r.issues[idx].UpvoteCount = p.prevCount
		}
		return
	}

	r.setMembershipLocked(issueID, deferred.upvoted)
	if deferred.issue == nil {
		r.removeIssueLocked(issueID)
		return
	}
	updated := *deferred.issue
	r.replaceIssueLocked(issueID, &updated)
}

// HandleChange refreshes in response to a realtime notification
func (r *Reconciler) HandleChange(ctx context.Context) error {
	return r.Refresh(ctx)
}

// Snapshot returns a consistent copy of the current state
func (r *Reconciler) Snapshot() View {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.viewLocked()
}

// IsPending reports whether issueID has a toggle in flight
func (r *Reconciler) IsPending(issueID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.pending[issueID]
	return ok
}

// Subscribe registers an observer for state changes and returns a func that
// removes it. Observers run on the goroutine that changed the state.
func (r *Reconciler) Subscribe(observer Observer) func() {
	r.mu.Lock()
	id := r.nextObserver
	r.nextObserver++
	r.observers[id] = observer
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.observers, id)
			r.mu.Unlock()
		})
	}
}

func (r *Reconciler) publish(view View) {
	r.mu.Lock()
	ids := make([]uint64, 0, len(r.observers))
	for id := range r.observers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	observers := make([]Observer, 0, len(ids))
	for _, id := range ids {
		observers = append(observers, r.observers[id])
	}
	r.mu.Unlock()

	for _, observer := range observers {
		observer(view)
	}
}

func (r *Reconciler) notify(ctx context.Context, kind notifications.Kind, issueID, message string) {
	if r.notifier == nil {
		return
	}
	n := notifications.Notification{
		Kind:    kind,
		IssueID: issueID,
		Message: message,
	}
	if err := r.notifier.Notify(context.WithoutCancel(ctx), r.sessionID, n); err != nil {
		r.logger.Error("failed to deliver notification",
			"error", err,
			"kind", kind,
			"issue", issueID)
	}
}

func (r *Reconciler) setMembershipLocked(issueID string, upvoted bool) {
	if upvoted {
		r.upvoted[issueID] = struct{}{}
		return
	}
	delete(r.upvoted, issueID)
}

func (r *Reconciler) replaceIssueLocked(issueID string, issue *issues.Issue) {
	if idx, ok := r.index[issueID]; ok {
		r.issues[idx] = issue
		return
	}
	r.issues = append(r.issues, issue)
	r.index[issueID] = len(r.issues) - 1
}

func (r *Reconciler) removeIssueLocked(issueID string) {
	idx, ok := r.index[issueID]
	if !ok {
		return
	}
	r.issues = append(r.issues[:idx], r.issues[idx+1:]...)
	delete(r.upvoted, issueID)
	r.reindexLocked()
}

func (r *Reconciler) reindexLocked() {
	r.index = make(map[string]int, len(r.issues))
	for i, issue := range r.issues {
		r.index[issue.ID] = i
	}
}

func (r *Reconciler) resultLocked(issueID string) *ToggleResult {
	result := &ToggleResult{IssueID: issueID}
	_, result.Upvoted = r.upvoted[issueID]
	if idx, ok := r.index[issueID]; ok {
		result.UpvoteCount = r.issues[idx].UpvoteCount
	}
	return result
}

func (r *Reconciler) viewLocked() View {
	view := View{
		SessionID:   r.sessionID,
		UserID:      r.ownerID,
		RefreshedAt: r.loadedAt,
		Version:     r.version,
		Issues:      make([]IssueView, 0, len(r.issues)),
	}
	for _, issue := range r.issues {
		_, isUpvoted := r.upvoted[issue.ID]
		_, inFlight := r.pending[issue.ID]
		view.Issues = append(view.Issues, IssueView{
			Issue:   *issue,
			Upvoted: isUpvoted,
			Pending: inFlight,
		})
	}
	return view
}

func clampCount(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
