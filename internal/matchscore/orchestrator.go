package matchscore

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"jobgate/internal/session"
	"jobgate/internal/upstream"
)

// Reason 标记"为什么没有真实分数"。Reason 非空时 Score 恒为 0，
// 表示"没有分数"而不是"分数为零"。
type Reason string

const (
	ReasonNoResume     Reason = "noResume"
	ReasonUserNotFound Reason = "userNotFound"
	ReasonNoData       Reason = "noData"
	ReasonAuthError    Reason = "authError"
	ReasonAPIError     Reason = "apiError"
	ReasonError        Reason = "error"
)

// Record 是某个 (用户, 职位) 在本会话内的匹配结果：
// 真实分数和原因码二者只有一个有效。
type Record struct {
	Score  float64 `json:"score"`
	Cached bool    `json:"cached"`
	Reason Reason  `json:"reason,omitempty"`
}

// ErrNoSession 表示缺少令牌，编排器直接放弃且不写入任何记录。
var ErrNoSession = errors.New("matchscore: no session token")

// scoreClient 是编排器需要的上游子集，便于测试替换。
type scoreClient interface {
	FetchMatchScore(ctx context.Context, token, jobID string) (upstream.MatchScore, error)
	MyApplications(ctx context.Context, token string) ([]upstream.Application, error)
}

// Orchestrator 按 (用户, 职位) 缓存匹配结果，保证同一对在会话内至多触发一次计算。
// 一个编排器实例服务所有在线用户，缓存必须按用户隔离，
// 否则 A 算出的分数会被直接端给 B。并发的重复请求通过 singleflight 合并，
// 堵住"查缓存-发请求"之间的竞态窗口。
type Orchestrator struct {
	client scoreClient
	logger *slog.Logger

	mu sync.RWMutex
	// userID → jobID → Record，按用户隔离（与 tracker 的 applied 集合同款结构）。
	records map[string]map[string]Record
	group   singleflight.Group
}

// New 构造编排器。
func New(client scoreClient, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		client:  client,
		logger:  logger,
		records: make(map[string]map[string]Record),
	}
}

// flightKey 是 singleflight 的合并键，必须带上用户，
// 不同用户对同一职位的计算不能互相合并。
func flightKey(userID, jobID string) string {
	return userID + "\x00" + jobID
}

// Lookup 只读查询某个用户的某条记录，绝不触发计算。
func (o *Orchestrator) Lookup(userID, jobID string) (Record, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	record, ok := o.records[userID][jobID]
	return record, ok
}

// Scores 返回该用户当前已缓存的分数快照，原因码记录的分数就是 0。
// relevance 排序只能看本人的分数。
func (o *Orchestrator) Scores(userID string) map[string]float64 {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(map[string]float64, len(o.records[userID]))
	for id, record := range o.records[userID] {
		out[id] = record.Score
	}
	return out
}

// GetOrCompute 返回该 (用户, 职位) 的匹配记录；已有记录直接命中，不做隐式刷新。
// 计算走有序回退链，终态只会写入一次：要么真实分数，要么单个原因码。
func (o *Orchestrator) GetOrCompute(ctx context.Context, sess session.Session, jobID string) (Record, error) {
	if sess.Token == "" {
		return Record{}, ErrNoSession
	}

	if record, ok := o.Lookup(sess.UserID, jobID); ok {
		return record, nil
	}

	value, err, _ := o.group.Do(flightKey(sess.UserID, jobID), func() (any, error) {
		// 二次检查：singleflight 排队期间可能已有别的调用写入。
		if record, ok := o.Lookup(sess.UserID, jobID); ok {
			return record, nil
		}
		record := o.compute(ctx, sess, jobID)
		o.store(sess.UserID, jobID, record)
		return record, nil
	})
	if err != nil {
		return Record{}, err
	}
	return value.(Record), nil
}

// Refresh 显式重算：删掉该用户的已有记录后重新走一遍计算链。
// Forget 保证不会搭上还在飞行中的旧计算，重算必然打到上游。
func (o *Orchestrator) Refresh(ctx context.Context, sess session.Session, jobID string) (Record, error) {
	if sess.Token == "" {
		return Record{}, ErrNoSession
	}

	o.mu.Lock()
	delete(o.records[sess.UserID], jobID)
	o.mu.Unlock()
	o.group.Forget(flightKey(sess.UserID, jobID))

	return o.GetOrCompute(ctx, sess, jobID)
}

// compute 执行回退链：主端点 → 申请历史 → 终态原因码。
func (o *Orchestrator) compute(ctx context.Context, sess session.Session, jobID string) Record {
	score, err := o.client.FetchMatchScore(ctx, sess.Token, jobID)
	if err == nil {
		return Record{Score: score.FinalScore, Cached: score.Cached}
	}

	switch {
	case errors.Is(err, upstream.ErrNoResume):
		return Record{Reason: ReasonNoResume}
	case errors.Is(err, upstream.ErrUserNotFound):
		return Record{Reason: ReasonUserNotFound}
	case errors.Is(err, upstream.ErrAuth):
		return Record{Reason: ReasonAuthError}
	}

	o.logger.Warn("match score endpoint failed, falling back to application history",
		slog.String("job_id", jobID),
		slog.Any("error", err),
	)

	applications, err := o.client.MyApplications(ctx, sess.Token)
	if err != nil {
		return Record{Reason: ReasonError}
	}

	for _, app := range applications {
		if app.JobID == jobID && app.FinalScore != nil {
			return Record{Score: *app.FinalScore, Cached: true}
		}
	}

	return Record{Reason: ReasonNoData}
}

func (o *Orchestrator) store(userID, jobID string, record Record) {
	o.mu.Lock()
	if o.records[userID] == nil {
		o.records[userID] = make(map[string]Record)
	}
	o.records[userID][jobID] = record
	o.mu.Unlock()
}
