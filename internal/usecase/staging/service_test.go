package staging

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/indexstager/internal/domain"
	"github.com/kailas-cloud/indexstager/internal/domain/alias"
)

// --- Mocks ---

type spyRepo struct {
	bindings  map[string]alias.Bindings
	bindErr   map[string]error
	deleteErr map[string]error
	updateErr error
	copyErr   error
	listings  [][]string
	listErr   error

	calls   []string
	updates [][]alias.Action
	deleted []string
	copies  [][2]string
	listed  int
}

func newSpy() *spyRepo {
	return &spyRepo{
		bindings:  map[string]alias.Bindings{},
		bindErr:   map[string]error{},
		deleteErr: map[string]error{},
	}
}

func (m *spyRepo) Bindings(_ context.Context, name string) (alias.Bindings, error) {
	m.calls = append(m.calls, "bindings:"+name)
	if err, ok := m.bindErr[name]; ok {
		return nil, err
	}
	b, ok := m.bindings[name]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return b, nil
}

func (m *spyRepo) UpdateAliases(_ context.Context, actions []alias.Action) error {
	m.calls = append(m.calls, "update")
	m.updates = append(m.updates, actions)
	return m.updateErr
}

func (m *spyRepo) DeleteIndex(_ context.Context, name string) error {
	m.calls = append(m.calls, "delete:"+name)
	if err, ok := m.deleteErr[name]; ok {
		return err
	}
	m.deleted = append(m.deleted, name)
	return nil
}

func (m *spyRepo) CopyIndex(_ context.Context, src, dst string) error {
	m.calls = append(m.calls, "copy:"+src+"->"+dst)
	m.copies = append(m.copies, [2]string{src, dst})
	return m.copyErr
}

func (m *spyRepo) ListIndexes(_ context.Context) ([]string, error) {
	m.calls = append(m.calls, "list")
	defer func() { m.listed++ }()
	if m.listErr != nil {
		return nil, m.listErr
	}
	if m.listed < len(m.listings) {
		return m.listings[m.listed], nil
	}
	if len(m.listings) == 0 {
		return nil, nil
	}
	return m.listings[len(m.listings)-1], nil
}

func (m *spyRepo) mutated() bool {
	for _, c := range m.calls {
		if c == "update" || strings.HasPrefix(c, "copy:") || strings.HasPrefix(c, "delete:") {
			return true
		}
	}
	return false
}

const (
	stamp   = "20240101000000"
	tempOld = "articles_20231201000000-00000001"
	tempNew = "articles_" + stamp + "-abcd1234"
)

func fastPolicy(attempts int) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, Interval: 0, Multiplier: 1}
}

func newSession(t *testing.T, repo Repository, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{
		WithClock(func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }),
		WithRandom(func() (string, error) { return "abcd1234", nil }),
		WithRetryPolicy(fastPolicy(3)),
	}, opts...)
	svc, err := New(repo, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sess, err := svc.NewSession("articles")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return sess
}

func equalActions(a, b []alias.Action) bool { return slices.Equal(a, b) }

// --- Construction ---

func TestNew_Errors(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("nil repo: expected ErrInvalidConfig, got %v", err)
	}
	_, err := New(newSpy(), WithRetryPolicy(RetryPolicy{MaxAttempts: 0, Multiplier: 1}))
	if !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("bad policy: expected ErrInvalidConfig, got %v", err)
	}
}

func TestNewSession_Errors(t *testing.T) {
	svc, err := New(newSpy())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.NewSession(""); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("empty name: expected ErrInvalidConfig, got %v", err)
	}
	if _, err := svc.ResumeSession("articles", "articles_tmp"); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("bad temp: expected ErrInvalidConfig, got %v", err)
	}
	sess, err := svc.ResumeSession("articles", tempNew)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if sess.Names().TempIndex() != tempNew {
		t.Errorf("temp = %q", sess.Names().TempIndex())
	}
}

func TestAttachSession(t *testing.T) {
	repo := newSpy()
	svc, err := New(repo, WithRandom(func() (string, error) {
		t.Error("attached session drew a temp suffix")
		return "abcd1234", nil
	}))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.AttachSession("bad name"); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("invalid name: expected ErrInvalidConfig, got %v", err)
	}

	sess, err := svc.AttachSession("articles")
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if sess.Names().TempIndex() != "" || sess.Names().StagingAlias() != "articles_staged" {
		t.Errorf("unexpected names: %+v", sess.Names())
	}
	if err := sess.AliasStageToTemp(context.Background()); !errors.Is(err, domain.ErrInvalidConfig) {
		t.Errorf("stage: expected ErrInvalidConfig, got %v", err)
	}
	if len(repo.calls) != 0 {
		t.Errorf("repository touched: %v", repo.calls)
	}
}

func TestSession_TempNameStable(t *testing.T) {
	sess := newSession(t, newSpy())
	first := sess.Names().TempIndex()
	if first != tempNew {
		t.Fatalf("temp = %q, want %q", first, tempNew)
	}
	_ = sess.AliasStageToTemp(context.Background())
	if sess.Names().TempIndex() != first {
		t.Error("temp name changed during session")
	}
}

// --- Resolver ---

func TestAliasStageToTemp(t *testing.T) {
	repo := newSpy()
	repo.deleteErr["articles_staged"] = domain.ErrNotFound
	sess := newSession(t, repo)

	if err := sess.AliasStageToTemp(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.updates) != 1 || !equalActions(repo.updates[0], []alias.Action{alias.Add(tempNew, "articles_staged")}) {
		t.Errorf("unexpected updates: %+v", repo.updates)
	}
	if repo.calls[0] != "delete:articles_staged" {
		t.Errorf("expected staging name cleared first, calls=%v", repo.calls)
	}
}

func TestAliasStageToTemp_UnbindsEarlierStage(t *testing.T) {
	repo := newSpy()
	repo.deleteErr["articles_staged"] = domain.ErrNotFound
	repo.bindings["articles_staged"] = alias.Bindings{
		tempOld: {"articles_staged"},
		tempNew: {"articles_staged"},
	}
	sess := newSession(t, repo)

	if err := sess.AliasStageToTemp(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []alias.Action{
		alias.Remove(tempOld, "articles_staged"),
		alias.Add(tempNew, "articles_staged"),
	}
	if len(repo.updates) != 1 || !equalActions(repo.updates[0], want) {
		t.Errorf("unexpected updates: %+v", repo.updates)
	}
	if got := sess.Superseded(); !slices.Equal(got, []string{tempOld}) {
		t.Errorf("superseded = %v", got)
	}
	if len(repo.deleted) != 0 {
		t.Errorf("superseded indexes deleted: %v", repo.deleted)
	}
}

func TestAliasStageToTemp_BindingsErrorFatal(t *testing.T) {
	repo := newSpy()
	repo.deleteErr["articles_staged"] = domain.ErrNotFound
	repo.bindErr["articles_staged"] = errors.New("connection reset")
	sess := newSession(t, repo)

	if err := sess.AliasStageToTemp(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(repo.updates) != 0 {
		t.Error("alias updated after failed lookup")
	}
}

func TestAliasStageToTemp_DeleteFailureFatal(t *testing.T) {
	repo := newSpy()
	repo.deleteErr["articles_staged"] = errors.New("connection reset")
	sess := newSession(t, repo)

	if err := sess.AliasStageToTemp(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(repo.updates) != 0 {
		t.Error("alias updated after failed delete")
	}
}

func TestAliasStageToTemp_UpdateError(t *testing.T) {
	repo := newSpy()
	repo.updateErr = domain.ErrNotFound
	sess := newSession(t, repo)

	err := sess.AliasStageToTemp(context.Background())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected update error to propagate, got %v", err)
	}
}

func TestFindNewestAliasTarget(t *testing.T) {
	repo := newSpy()
	repo.bindings["articles_staged"] = alias.Bindings{
		tempOld:          {"articles_staged"},
		tempNew:          {"articles_staged"},
		"unrelated_idx":  {"articles_staged"},
		"articles-other": {"articles_staged"},
	}
	sess := newSession(t, repo)

	got, err := sess.FindNewestAliasTarget(context.Background(), "articles_staged")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != tempNew {
		t.Errorf("got %q, want %q", got, tempNew)
	}
}

func TestFindNewestAliasTarget_Unresolvable(t *testing.T) {
	tests := []struct {
		name string
		repo func() *spyRepo
	}{
		{"not found", newSpy},
		{"no temp indexes", func() *spyRepo {
			r := newSpy()
			r.bindings["articles_staged"] = alias.Bindings{"other": {"articles_staged"}}
			return r
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sess := newSession(t, tc.repo())
			_, err := sess.FindNewestAliasTarget(context.Background(), "articles_staged")
			var ue *domain.UnresolvableStageError
			if !errors.As(err, &ue) || ue.Alias != "articles_staged" {
				t.Errorf("expected UnresolvableStageError naming the alias, got %v", err)
			}
			if !errors.Is(err, domain.ErrUnresolvableStage) {
				t.Error("expected errors.Is ErrUnresolvableStage")
			}
		})
	}
}

func TestFindNewestAliasTarget_TransportError(t *testing.T) {
	repo := newSpy()
	boom := errors.New("timeout")
	repo.bindErr["articles_staged"] = boom
	sess := newSession(t, repo)

	if _, err := sess.FindNewestAliasTarget(context.Background(), "articles_staged"); !errors.Is(err, boom) {
		t.Errorf("expected wrapped transport error, got %v", err)
	}
}

func TestResolve(t *testing.T) {
	repo := newSpy()
	repo.bindings["articles"] = alias.Bindings{tempNew: {"articles"}}
	svc, _ := New(repo)

	b, ok, err := svc.Resolve(context.Background(), "articles")
	if err != nil || !ok || len(b[tempNew]) != 1 {
		t.Errorf("Resolve(articles) = %v, %v, %v", b, ok, err)
	}
	b, ok, err = svc.Resolve(context.Background(), "missing")
	if err != nil || ok || len(b) != 0 {
		t.Errorf("Resolve(missing) = %v, %v, %v", b, ok, err)
	}
	if _, _, err := svc.Resolve(context.Background(), "bad name"); !errors.Is(err, domain.ErrInvalidName) {
		t.Errorf("expected ErrInvalidName, got %v", err)
	}
}

// --- Promote ---

func TestPromote_NoLiveBinding(t *testing.T) {
	repo := newSpy()
	repo.bindings["articles_staged"] = alias.Bindings{tempNew: {"articles_staged"}}
	sess := newSession(t, repo)

	rep, err := sess.Promote(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []alias.Action{
		alias.Remove(tempNew, "articles_staged"),
		alias.Add(tempNew, "articles"),
	}
	if len(repo.updates) != 1 || !equalActions(repo.updates[0], want) {
		t.Errorf("actions = %+v, want %+v", repo.updates, want)
	}
	if rep.State != StatePromoted || rep.StagedIndex != tempNew || rep.LiveName != "articles" {
		t.Errorf("unexpected report: %+v", rep)
	}
	if len(repo.copies) != 0 || len(repo.deleted) != 0 {
		t.Errorf("unexpected copy/delete: copies=%v deleted=%v", repo.copies, repo.deleted)
	}
}

func TestPromote_ReplacesPreviousTarget(t *testing.T) {
	repo := newSpy()
	repo.bindings["articles_staged"] = alias.Bindings{tempNew: {"articles_staged"}}
	repo.bindings["articles"] = alias.Bindings{tempOld: {"articles"}}
	sess := newSession(t, repo)

	rep, err := sess.Promote(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []alias.Action{
		alias.Remove(tempOld, "articles"),
		alias.Remove(tempNew, "articles_staged"),
		alias.Add(tempNew, "articles"),
	}
	if !equalActions(repo.updates[0], want) {
		t.Errorf("actions = %+v, want %+v", repo.updates[0], want)
	}
	if !slices.Equal(repo.deleted, []string{tempOld}) {
		t.Errorf("deleted = %v", repo.deleted)
	}
	if !slices.Equal(rep.Cleanup.Deleted, []string{tempOld}) || !rep.Cleanup.OK() {
		t.Errorf("cleanup = %+v", rep.Cleanup)
	}
	if !slices.Equal(rep.PreviousTargets, []string{tempOld}) {
		t.Errorf("previous = %v", rep.PreviousTargets)
	}
	// cleanup runs after the swap
	if idx := slices.Index(repo.calls, "update"); idx > slices.Index(repo.calls, "delete:"+tempOld) {
		t.Errorf("delete before swap: %v", repo.calls)
	}
}

func TestPromote_CorruptState(t *testing.T) {
	repo := newSpy()
	repo.bindings["articles_staged"] = alias.Bindings{tempNew: {"articles_staged"}}
	repo.bindings["articles"] = alias.Bindings{
		tempOld:    {"articles"},
		"articles": {"articles-readonly"},
	}
	sess := newSession(t, repo)

	rep, err := sess.Promote(context.Background(), "")
	var ce *domain.CorruptStateError
	if !errors.As(err, &ce) || ce.Name != "articles" {
		t.Fatalf("expected CorruptStateError for articles, got %v", err)
	}
	if !errors.Is(err, domain.ErrCorruptState) {
		t.Error("expected errors.Is ErrCorruptState")
	}
	if repo.mutated() {
		t.Errorf("mutation before abort: %v", repo.calls)
	}
	if rep.State != StateFailed {
		t.Errorf("state = %s", rep.State)
	}
}

func TestPromote_FirstTimeMigration(t *testing.T) {
	repo := newSpy()
	repo.bindings["articles_staged"] = alias.Bindings{tempNew: {"articles_staged"}}
	repo.bindings["articles"] = alias.Bindings{}
	repo.listings = [][]string{
		{"articles", tempNew},
		{"articles", "articles-pre-staged-original", tempNew},
	}
	sess := newSession(t, repo)

	rep, err := sess.Promote(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.copies) != 1 || repo.copies[0] != [2]string{"articles", "articles-pre-staged-original"} {
		t.Errorf("copies = %v", repo.copies)
	}
	if !slices.Equal(repo.deleted, []string{"articles"}) {
		t.Errorf("deleted = %v", repo.deleted)
	}
	if !rep.CopyConfirmed || rep.PollAttempts != 2 || rep.OriginalPreserved != "articles-pre-staged-original" {
		t.Errorf("unexpected report: %+v", rep)
	}
	want := []alias.Action{
		alias.Remove(tempNew, "articles_staged"),
		alias.Add(tempNew, "articles"),
	}
	if !equalActions(repo.updates[0], want) {
		t.Errorf("actions = %+v", repo.updates[0])
	}
	// copy, poll and delete all precede the swap
	if slices.Index(repo.calls, "delete:articles") > slices.Index(repo.calls, "update") {
		t.Errorf("original deleted after swap: %v", repo.calls)
	}
}

func TestPromote_PollExhaustedProceeds(t *testing.T) {
	repo := newSpy()
	repo.bindings["articles_staged"] = alias.Bindings{tempNew: {"articles_staged"}}
	repo.bindings["articles"] = alias.Bindings{}
	repo.listErr = errors.New("busy")
	sess := newSession(t, repo)

	rep, err := sess.Promote(context.Background(), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rep.CopyConfirmed || rep.PollAttempts != 3 {
		t.Errorf("expected unconfirmed copy after 3 attempts, got %+v", rep)
	}
	if rep.State != StatePromoted {
		t.Errorf("state = %s", rep.State)
	}
}

func TestPromote_PollCancelled(t *testing.T) {
	repo := newSpy()
	repo.bindings["articles_staged"] = alias.Bindings{tempNew: {"articles_staged"}}
	repo.bindings["articles"] = alias.Bindings{}
	sess := newSession(t, repo, WithRetryPolicy(RetryPolicy{MaxAttempts: 5, Interval: time.Hour, Multiplier: 1}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := sess.Promote(ctx, "")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if len(repo.updates) != 0 {
		t.Error("aliases swapped after cancelled poll")
	}
}

func TestPromote_CopyErrorFatal(t *testing.T) {
	repo := newSpy()
	repo.bindings["articles_staged"] = alias.Bindings{tempNew: {"articles_staged"}}
	repo.bindings["articles"] = alias.Bindings{}
	repo.copyErr = errors.New("disk full")
	sess := newSession(t, repo)

	if _, err := sess.Promote(context.Background(), ""); err == nil {
		t.Fatal("expected error")
	}
	if len(repo.updates) != 0 || len(repo.deleted) != 0 {
		t.Errorf("mutation after failed copy: %v", repo.calls)
	}
}

func TestPromote_DeleteOriginalTolerated(t *testing.T) {
	repo := newSpy()
	repo.bindings["articles_staged"] = alias.Bindings{tempNew: {"articles_staged"}}
	repo.bindings["articles"] = alias.Bindings{}
	repo.listings = [][]string{{"articles-pre-staged-original"}}
	repo.deleteErr["articles"] = errors.New("locked")
	sess := newSession(t, repo)

	if _, err := sess.Promote(context.Background(), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(repo.updates) != 1 {
		t.Error("expected swap to be attempted")
	}
}

func TestPromote_Errors(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name  string
		setup func(r *spyRepo)
		live  string
		want  error
	}{
		{"invalid live", func(*spyRepo) {}, "bad name", domain.ErrInvalidName},
		{"nothing staged", func(*spyRepo) {}, "", domain.ErrUnresolvableStage},
		{"live lookup error", func(r *spyRepo) {
			r.bindings["articles_staged"] = alias.Bindings{tempNew: {"articles_staged"}}
			r.bindErr["articles"] = boom
		}, "", boom},
		{"swap error", func(r *spyRepo) {
			r.bindings["articles_staged"] = alias.Bindings{tempNew: {"articles_staged"}}
			r.updateErr = boom
		}, "", boom},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			repo := newSpy()
			tc.setup(repo)
			sess := newSession(t, repo)

			rep, err := sess.Promote(context.Background(), tc.live)
			if !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
			if rep.State != StateFailed {
				t.Errorf("state = %s", rep.State)
			}
		})
	}
}

func TestPromote_CustomLiveName(t *testing.T) {
	repo := newSpy()
	repo.bindings["articles_staged"] = alias.Bindings{tempNew: {"articles_staged"}}
	sess := newSession(t, repo)

	rep, err := sess.Promote(context.Background(), "articles_v2")
	if err != nil {
		t.Fatal(err)
	}
	if rep.LiveName != "articles_v2" || repo.updates[0][1] != alias.Add(tempNew, "articles_v2") {
		t.Errorf("unexpected: report=%+v actions=%+v", rep, repo.updates[0])
	}
}

func TestPromote_StagedAlreadyLive(t *testing.T) {
	repo := newSpy()
	repo.bindings["articles_staged"] = alias.Bindings{tempNew: {"articles_staged"}}
	repo.bindings["articles"] = alias.Bindings{tempNew: {"articles"}}
	sess := newSession(t, repo)

	rep, err := sess.Promote(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(repo.deleted) != 0 {
		t.Errorf("staged index deleted: %v", repo.deleted)
	}
	if len(rep.Cleanup.Deleted) != 0 {
		t.Errorf("cleanup = %+v", rep.Cleanup)
	}
}

// --- Cleanup ---

func TestCleanup_Report(t *testing.T) {
	repo := newSpy()
	repo.deleteErr["gone"] = domain.ErrNotFound
	repo.deleteErr["stuck"] = errors.New("locked")
	sess := newSession(t, repo)

	rep := sess.Cleanup(context.Background(), "a", "gone", "stuck", "b")
	if !slices.Equal(rep.Deleted, []string{"a", "b"}) {
		t.Errorf("deleted = %v", rep.Deleted)
	}
	if !slices.Equal(rep.Missing, []string{"gone"}) {
		t.Errorf("missing = %v", rep.Missing)
	}
	if len(rep.Failed) != 1 || rep.Failed[0].Index != "stuck" || rep.Failed[0].Error == "" {
		t.Errorf("failed = %+v", rep.Failed)
	}
	if rep.OK() {
		t.Error("expected OK() false")
	}
}

func TestDeleteIfExists(t *testing.T) {
	repo := newSpy()
	repo.deleteErr["gone"] = domain.ErrNotFound
	sess := newSession(t, repo)

	if res := sess.DeleteIfExists(context.Background(), "gone"); res.Outcome != CleanupMissing {
		t.Errorf("outcome = %s", res.Outcome)
	}
	if res := sess.DeleteIfExists(context.Background(), "x"); res.Outcome != CleanupDeleted {
		t.Errorf("outcome = %s", res.Outcome)
	}
}
