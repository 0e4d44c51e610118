package tracker

import (
	"context"
	"errors"
	"testing"

	"jobgate/internal/session"
	"jobgate/internal/upstream"
)

type fakeApplyClient struct {
	listCalls    int
	applications []upstream.Application
	listErr      error
	applyErr     error
}

func (f *fakeApplyClient) MyApplications(context.Context, string) ([]upstream.Application, error) {
	f.listCalls++
	return f.applications, f.listErr
}

func (f *fakeApplyClient) Apply(context.Context, string, string, string) error {
	return f.applyErr
}

type fakeFavorites struct {
	favorited map[string]bool
}

func (f *fakeFavorites) Contains(_ context.Context, _, jobID string) (bool, error) {
	return f.favorited[jobID], nil
}

var testSession = session.Session{UserID: "u1", Token: "tok"}

func TestAppliedSet_LoadedOncePerUser(t *testing.T) {
	client := &fakeApplyClient{applications: []upstream.Application{{JobID: "job-1"}}}
	tr := New(client, &fakeFavorites{})

	ctx := context.Background()
	if _, err := tr.AppliedSet(ctx, testSession); err != nil {
		t.Fatalf("first load: %v", err)
	}
	set, err := tr.AppliedSet(ctx, testSession)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}

	if client.listCalls != 1 {
		t.Fatalf("applied set must be fetched once, got %d calls", client.listCalls)
	}
	if _, ok := set["job-1"]; !ok {
		t.Fatalf("expected job-1 in applied set, got %v", set)
	}
}

func TestApply_OptimisticallyAppends(t *testing.T) {
	client := &fakeApplyClient{}
	tr := New(client, &fakeFavorites{})
	ctx := context.Background()

	if err := tr.Apply(ctx, testSession, "job-9", "cover"); err != nil {
		t.Fatalf("apply: %v", err)
	}

	set, err := tr.AppliedSet(ctx, testSession)
	if err != nil {
		t.Fatalf("applied set: %v", err)
	}
	if _, ok := set["job-9"]; !ok {
		t.Fatalf("successful apply must mark the job applied, got %v", set)
	}
}

func TestApply_FailurePropagatesWithoutMarking(t *testing.T) {
	client := &fakeApplyClient{applyErr: upstream.ErrAlreadyApplied}
	tr := New(client, &fakeFavorites{})
	ctx := context.Background()

	err := tr.Apply(ctx, testSession, "job-9", "")
	if !errors.Is(err, upstream.ErrAlreadyApplied) {
		t.Fatalf("expected ErrAlreadyApplied, got %v", err)
	}

	set, err := tr.AppliedSet(ctx, testSession)
	if err != nil {
		t.Fatalf("applied set: %v", err)
	}
	if _, ok := set["job-9"]; ok {
		t.Fatal("failed apply must not mark the job applied")
	}
}

func TestState_CombinesAppliedAndFavorited(t *testing.T) {
	client := &fakeApplyClient{applications: []upstream.Application{{JobID: "job-1"}}}
	favorites := &fakeFavorites{favorited: map[string]bool{"job-2": true}}
	tr := New(client, favorites)
	ctx := context.Background()

	state, err := tr.State(ctx, testSession, "job-1")
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if !state.Applied || state.Favorited {
		t.Fatalf("job-1 should be applied only: %+v", state)
	}

	state, err = tr.State(ctx, testSession, "job-2")
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if state.Applied || !state.Favorited {
		t.Fatalf("job-2 should be favorited only: %+v", state)
	}
}
