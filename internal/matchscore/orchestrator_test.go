package matchscore

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"jobgate/internal/session"
	"jobgate/internal/upstream"
)

type fakeScoreClient struct {
	mu sync.Mutex

	scoreCalls int
	appCalls   int

	score    upstream.MatchScore
	scoreErr error

	applications []upstream.Application
	appErr       error
}

func (f *fakeScoreClient) FetchMatchScore(_ context.Context, _, _ string) (upstream.MatchScore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scoreCalls++
	return f.score, f.scoreErr
}

func (f *fakeScoreClient) MyApplications(_ context.Context, _ string) ([]upstream.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appCalls++
	return f.applications, f.appErr
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var testSession = session.Session{UserID: "u1", Token: "token"}

func TestGetOrCompute_Success(t *testing.T) {
	client := &fakeScoreClient{score: upstream.MatchScore{FinalScore: 87.5, Cached: true}}
	o := New(client, testLogger())

	record, err := o.GetOrCompute(context.Background(), testSession, "job-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.Score != 87.5 || !record.Cached || record.Reason != "" {
		t.Fatalf("unexpected record: %+v", record)
	}
}

func TestGetOrCompute_IdempotentPerJob(t *testing.T) {
	client := &fakeScoreClient{score: upstream.MatchScore{FinalScore: 70}}
	o := New(client, testLogger())

	ctx := context.Background()
	if _, err := o.GetOrCompute(ctx, testSession, "job-1"); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if _, err := o.GetOrCompute(ctx, testSession, "job-1"); err != nil {
		t.Fatalf("second call: %v", err)
	}

	if client.scoreCalls != 1 {
		t.Fatalf("expected exactly one network request, got %d", client.scoreCalls)
	}
}

func TestGetOrCompute_ConcurrentCallsDeduped(t *testing.T) {
	client := &fakeScoreClient{score: upstream.MatchScore{FinalScore: 55}}
	o := New(client, testLogger())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = o.GetOrCompute(context.Background(), testSession, "job-1")
		}()
	}
	wg.Wait()

	if client.scoreCalls != 1 {
		t.Fatalf("concurrent calls must be deduped to one request, got %d", client.scoreCalls)
	}
}

func TestGetOrCompute_NoTokenWritesNothing(t *testing.T) {
	client := &fakeScoreClient{}
	o := New(client, testLogger())

	_, err := o.GetOrCompute(context.Background(), session.Session{UserID: "u1"}, "job-1")
	if !errors.Is(err, ErrNoSession) {
		t.Fatalf("expected ErrNoSession, got %v", err)
	}
	if _, ok := o.Lookup("u1", "job-1"); ok {
		t.Fatal("no record may be written when the token is missing")
	}
	if client.scoreCalls != 0 {
		t.Fatalf("no request may be issued without a token, got %d", client.scoreCalls)
	}
}

func TestGetOrCompute_NoResumeReason(t *testing.T) {
	client := &fakeScoreClient{scoreErr: upstream.ErrNoResume}
	o := New(client, testLogger())

	record, err := o.GetOrCompute(context.Background(), testSession, "job-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.Reason != ReasonNoResume {
		t.Fatalf("expected noResume reason, got %+v", record)
	}
	if record.Score != 0 {
		t.Fatalf("reason-coded record must carry zero score, got %v", record.Score)
	}
	// 原因码已是终态，不再走申请历史回退。
	if client.appCalls != 0 {
		t.Fatalf("classified failure must not hit the fallback, got %d calls", client.appCalls)
	}
}

func TestGetOrCompute_ClassifiedReasons(t *testing.T) {
	cases := []struct {
		err    error
		reason Reason
	}{
		{upstream.ErrUserNotFound, ReasonUserNotFound},
		{upstream.ErrAuth, ReasonAuthError},
	}

	for _, tc := range cases {
		client := &fakeScoreClient{scoreErr: tc.err}
		o := New(client, testLogger())
		record, err := o.GetOrCompute(context.Background(), testSession, "job-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if record.Reason != tc.reason {
			t.Errorf("error %v: got reason %q, want %q", tc.err, record.Reason, tc.reason)
		}
	}
}

func TestGetOrCompute_FallbackToApplicationHistory(t *testing.T) {
	score := 64.0
	client := &fakeScoreClient{
		scoreErr: &upstream.StatusError{Status: 500, Message: "boom"},
		applications: []upstream.Application{
			{JobID: "other"},
			{JobID: "job-1", FinalScore: &score},
		},
	}
	o := New(client, testLogger())

	record, err := o.GetOrCompute(context.Background(), testSession, "job-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.Score != 64 || !record.Cached || record.Reason != "" {
		t.Fatalf("expected cached score from history, got %+v", record)
	}
}

func TestGetOrCompute_FallbackWithoutMatchIsNoData(t *testing.T) {
	client := &fakeScoreClient{
		scoreErr:     &upstream.StatusError{Status: 500, Message: "boom"},
		applications: []upstream.Application{{JobID: "other"}},
	}
	o := New(client, testLogger())

	record, err := o.GetOrCompute(context.Background(), testSession, "job-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.Reason != ReasonNoData {
		t.Fatalf("expected noData, got %+v", record)
	}
}

func TestGetOrCompute_FallbackFailureIsError(t *testing.T) {
	client := &fakeScoreClient{
		scoreErr: &upstream.StatusError{Status: 500, Message: "boom"},
		appErr:   errors.New("network down"),
	}
	o := New(client, testLogger())

	record, err := o.GetOrCompute(context.Background(), testSession, "job-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.Reason != ReasonError {
		t.Fatalf("expected error reason, got %+v", record)
	}
}

func TestRefresh_RecomputesExistingRecord(t *testing.T) {
	client := &fakeScoreClient{score: upstream.MatchScore{FinalScore: 40}}
	o := New(client, testLogger())

	ctx := context.Background()
	if _, err := o.GetOrCompute(ctx, testSession, "job-1"); err != nil {
		t.Fatalf("first compute: %v", err)
	}

	client.mu.Lock()
	client.score = upstream.MatchScore{FinalScore: 90}
	client.mu.Unlock()

	record, err := o.Refresh(ctx, testSession, "job-1")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if record.Score != 90 {
		t.Fatalf("refresh must recompute, got %+v", record)
	}
	if client.scoreCalls != 2 {
		t.Fatalf("expected 2 requests after explicit refresh, got %d", client.scoreCalls)
	}
}

func TestScores_SnapshotTreatsReasonRecordsAsZero(t *testing.T) {
	client := &fakeScoreClient{scoreErr: upstream.ErrNoResume}
	o := New(client, testLogger())

	if _, err := o.GetOrCompute(context.Background(), testSession, "job-1"); err != nil {
		t.Fatalf("compute: %v", err)
	}

	scores := o.Scores(testSession.UserID)
	if scores["job-1"] != 0 {
		t.Fatalf("reason-coded record must contribute 0 to sorting, got %v", scores["job-1"])
	}
}

// seqScoreClient 按调用顺序返回预置分数，用来区分不同调用的结果。
type seqScoreClient struct {
	mu    sync.Mutex
	calls int
	seq   []upstream.MatchScore
}

func (f *seqScoreClient) FetchMatchScore(_ context.Context, _, _ string) (upstream.MatchScore, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	score := f.seq[f.calls]
	f.calls++
	return score, nil
}

func (f *seqScoreClient) MyApplications(_ context.Context, _ string) ([]upstream.Application, error) {
	return nil, nil
}

func TestGetOrCompute_ScopedPerUser(t *testing.T) {
	client := &seqScoreClient{seq: []upstream.MatchScore{
		{FinalScore: 87.5},
		{FinalScore: 12.0},
	}}
	o := New(client, testLogger())
	ctx := context.Background()

	alice := session.Session{UserID: "alice", Token: "token-a"}
	bob := session.Session{UserID: "bob", Token: "token-b"}

	first, err := o.GetOrCompute(ctx, alice, "job-1")
	if err != nil {
		t.Fatalf("alice: %v", err)
	}
	second, err := o.GetOrCompute(ctx, bob, "job-1")
	if err != nil {
		t.Fatalf("bob: %v", err)
	}

	// 同一职位、不同用户：各自计算，互不共享缓存。
	if client.calls != 2 {
		t.Fatalf("expected one request per user, got %d", client.calls)
	}
	if first.Score != 87.5 || second.Score != 12.0 {
		t.Fatalf("records leaked across users: alice=%+v bob=%+v", first, second)
	}

	if scores := o.Scores("alice"); scores["job-1"] != 87.5 {
		t.Fatalf("alice snapshot polluted: %v", scores)
	}
	if scores := o.Scores("bob"); scores["job-1"] != 12.0 {
		t.Fatalf("bob snapshot polluted: %v", scores)
	}
}

func TestRefresh_DoesNotTouchOtherUsers(t *testing.T) {
	client := &seqScoreClient{seq: []upstream.MatchScore{
		{FinalScore: 87.5},
		{FinalScore: 12.0},
		{FinalScore: 50.0},
	}}
	o := New(client, testLogger())
	ctx := context.Background()

	alice := session.Session{UserID: "alice", Token: "token-a"}
	bob := session.Session{UserID: "bob", Token: "token-b"}

	if _, err := o.GetOrCompute(ctx, alice, "job-1"); err != nil {
		t.Fatalf("alice: %v", err)
	}
	if _, err := o.GetOrCompute(ctx, bob, "job-1"); err != nil {
		t.Fatalf("bob: %v", err)
	}

	record, err := o.Refresh(ctx, alice, "job-1")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if record.Score != 50.0 {
		t.Fatalf("alice refresh must recompute, got %+v", record)
	}

	// bob 的记录不受 alice 刷新影响。
	kept, ok := o.Lookup("bob", "job-1")
	if !ok || kept.Score != 12.0 {
		t.Fatalf("bob record lost or changed after alice refresh: %+v ok=%v", kept, ok)
	}
	if client.calls != 3 {
		t.Fatalf("expected 3 requests total, got %d", client.calls)
	}
}

// gatedScoreClient 在 FetchMatchScore 里阻塞，用来构造"计算仍在进行中"的时刻。
type gatedScoreClient struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
}

func (f *gatedScoreClient) FetchMatchScore(_ context.Context, _, _ string) (upstream.MatchScore, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	f.started <- struct{}{}
	<-f.release
	return upstream.MatchScore{FinalScore: float64(n * 10)}, nil
}

func (f *gatedScoreClient) MyApplications(_ context.Context, _ string) ([]upstream.Application, error) {
	return nil, nil
}

func TestRefresh_DoesNotJoinInFlightComputation(t *testing.T) {
	client := &gatedScoreClient{
		started: make(chan struct{}, 2),
		release: make(chan struct{}),
	}
	o := New(client, testLogger())
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = o.GetOrCompute(ctx, testSession, "job-1")
	}()
	<-client.started // 第一次计算已在上游阻塞

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = o.Refresh(ctx, testSession, "job-1")
	}()
	// 第二次上游调用出现，说明刷新开启了新计算而不是搭旧车。
	<-client.started

	close(client.release)
	wg.Wait()

	client.mu.Lock()
	calls := client.calls
	client.mu.Unlock()
	if calls != 2 {
		t.Fatalf("refresh during an in-flight computation must issue a fresh request, got %d", calls)
	}
}
