package tracker

import (
	"context"
	"fmt"
	"sync"

	"jobgate/internal/session"
	"jobgate/internal/upstream"
)

// applyClient 是跟踪器需要的上游子集。
type applyClient interface {
	MyApplications(ctx context.Context, token string) ([]upstream.Application, error)
	Apply(ctx context.Context, token, jobID, coverLetter string) error
}

// favoriteStore 抽象收藏存储，便于测试替换。
type favoriteStore interface {
	Contains(ctx context.Context, userID, jobID string) (bool, error)
}

// State 汇总单个职位对当前用户的申请/收藏状态。
type State struct {
	Applied   bool `json:"applied"`
	Favorited bool `json:"favorited"`
}

// Tracker 维护每个用户的已申请职位集合：首次访问时从上游加载，
// 申请成功后乐观追加，客户端侧只增不减。收藏状态直接读收藏存储。
type Tracker struct {
	client    applyClient
	favorites favoriteStore

	mu      sync.Mutex
	applied map[string]map[string]struct{}
}

// New 构造跟踪器。
func New(client applyClient, favorites favoriteStore) *Tracker {
	return &Tracker{
		client:    client,
		favorites: favorites,
		applied:   make(map[string]map[string]struct{}),
	}
}

// AppliedSet 返回用户的已申请职位集合，未加载过则先从上游拉取。
func (t *Tracker) AppliedSet(ctx context.Context, sess session.Session) (map[string]struct{}, error) {
	t.mu.Lock()
	set, ok := t.applied[sess.UserID]
	t.mu.Unlock()
	if ok {
		return copySet(set), nil
	}

	applications, err := t.client.MyApplications(ctx, sess.Token)
	if err != nil {
		return nil, fmt.Errorf("load applied jobs: %w", err)
	}

	set = make(map[string]struct{}, len(applications))
	for _, app := range applications {
		set[app.JobID] = struct{}{}
	}

	t.mu.Lock()
	// 加载期间可能有并发 Apply 先写入了，合并而不是覆盖。
	if existing, ok := t.applied[sess.UserID]; ok {
		for id := range existing {
			set[id] = struct{}{}
		}
	}
	t.applied[sess.UserID] = set
	t.mu.Unlock()

	return copySet(set), nil
}

// State 返回单个职位的申请/收藏状态。
func (t *Tracker) State(ctx context.Context, sess session.Session, jobID string) (State, error) {
	applied, err := t.AppliedSet(ctx, sess)
	if err != nil {
		return State{}, err
	}

	favorited, err := t.favorites.Contains(ctx, sess.UserID, jobID)
	if err != nil {
		return State{}, err
	}

	_, isApplied := applied[jobID]
	return State{Applied: isApplied, Favorited: favorited}, nil
}

// Apply 提交申请，成功后乐观地把职位标记为已申请。
// 上游的失败原因（已申请、需付费、未认证）由调用方用 errors.Is 区分。
func (t *Tracker) Apply(ctx context.Context, sess session.Session, jobID, coverLetter string) error {
	if err := t.client.Apply(ctx, sess.Token, jobID, coverLetter); err != nil {
		return err
	}

	t.mu.Lock()
	set, ok := t.applied[sess.UserID]
	if !ok {
		set = make(map[string]struct{})
		t.applied[sess.UserID] = set
	}
	set[jobID] = struct{}{}
	t.mu.Unlock()

	return nil
}

func copySet(set map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(set))
	for id := range set {
		out[id] = struct{}{}
	}
	return out
}
