package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"jobgate/internal/api/middleware"
	"jobgate/internal/jobs"
	"jobgate/internal/matchscore"
	"jobgate/internal/metrics"
	"jobgate/internal/session"
	"jobgate/internal/tracker"
	"jobgate/internal/upstream"
)

// jobLister 是职位查询需要的上游子集。
type jobLister interface {
	ListJobs(ctx context.Context) ([]jobs.Job, error)
	ListJobsForUser(ctx context.Context, userID string) ([]jobs.Job, error)
}

// scoreOrchestrator 抽象匹配分数编排器，便于测试替换。
type scoreOrchestrator interface {
	GetOrCompute(ctx context.Context, sess session.Session, jobID string) (matchscore.Record, error)
	Refresh(ctx context.Context, sess session.Session, jobID string) (matchscore.Record, error)
	Scores(userID string) map[string]float64
}

// favoriteToggler 抽象收藏存储的写路径。
type favoriteToggler interface {
	List(ctx context.Context, userID string) ([]string, error)
	Toggle(ctx context.Context, userID, jobID string) (bool, error)
}

// applyTracker 抽象申请状态跟踪器。
type applyTracker interface {
	State(ctx context.Context, sess session.Session, jobID string) (tracker.State, error)
	Apply(ctx context.Context, sess session.Session, jobID, coverLetter string) error
}

// JobHandler 负责职位搜索、匹配分数、申请与收藏相关的 API。
type JobHandler struct {
	lister    jobLister
	scores    scoreOrchestrator
	tracker   applyTracker
	favorites favoriteToggler
}

// NewJobHandler 构造 JobHandler。
func NewJobHandler(lister jobLister, scores scoreOrchestrator, tr applyTracker, favorites favoriteToggler) *JobHandler {
	return &JobHandler{
		lister:    lister,
		scores:    scores,
		tracker:   tr,
		favorites: favorites,
	}
}

type searchResponse struct {
	Jobs  []jobs.Job `json:"jobs"`
	Total int        `json:"total"`
}

// SearchJobs 拉取职位集合并套用过滤/排序管线。
// 空结果集正常返回空数组，不是错误。
func (h *JobHandler) SearchJobs(c *gin.Context) {
	sess, ok := middleware.SessionFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ctx := c.Request.Context()
	logger := middleware.LoggerFromContext(c)

	var list []jobs.Job
	var err error
	if c.Query("scope") == "mine" {
		list, err = h.lister.ListJobsForUser(ctx, sess.UserID)
	} else {
		list, err = h.lister.ListJobs(ctx)
	}
	if err != nil {
		logger.Error("list jobs failed", slog.Any("error", err))
		BadGateway(c, "job listing unavailable")
		return
	}

	criteria := jobs.Criteria{
		Search:     c.Query("q"),
		Location:   c.Query("location"),
		JobType:    c.Query("type"),
		Experience: c.Query("experience"),
		Field:      c.Query("field"),
	}
	if raw := strings.TrimSpace(c.Query("communities")); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			if id = strings.TrimSpace(id); id != "" {
				criteria.SelectedCommunities = append(criteria.SelectedCommunities, id)
			}
		}
	}

	filtered := jobs.Filter(list, criteria)

	sortKey := c.DefaultQuery("sort", jobs.SortDate)
	// relevance 只读当前用户已缓存的分数，排序不触发任何计算。
	sorted := jobs.Sort(filtered, sortKey, h.scores.Scores(sess.UserID))

	c.JSON(http.StatusOK, searchResponse{Jobs: sorted, Total: len(sorted)})
}

type scoreResponse struct {
	Score      float64           `json:"score"`
	Cached     bool              `json:"cached"`
	Reason     matchscore.Reason `json:"reason,omitempty"`
	Label      string            `json:"label"`
	ColorClass string            `json:"color_class"`
}

func toScoreResponse(record matchscore.Record) scoreResponse {
	return scoreResponse{
		Score:      record.Score,
		Cached:     record.Cached,
		Reason:     record.Reason,
		Label:      record.Label(),
		ColorClass: record.ColorClass(),
	}
}

// MatchScore 返回该职位的匹配记录，必要时触发计算（同会话内至多一次）。
func (h *JobHandler) MatchScore(c *gin.Context) {
	h.serveScore(c, h.scores.GetOrCompute)
}

// RefreshMatchScore 显式重算该职位的匹配记录。
func (h *JobHandler) RefreshMatchScore(c *gin.Context) {
	h.serveScore(c, h.scores.Refresh)
}

func (h *JobHandler) serveScore(c *gin.Context, fetch func(context.Context, session.Session, string) (matchscore.Record, error)) {
	sess, ok := middleware.SessionFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	jobID := c.Param("id")
	if jobID == "" {
		BadRequest(c, "job id is required")
		return
	}

	record, err := fetch(c.Request.Context(), sess, jobID)
	if err != nil {
		if errors.Is(err, matchscore.ErrNoSession) {
			Unauthorized(c)
			return
		}
		middleware.LoggerFromContext(c).Error("match score failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	metrics.ObserveMatchScore(string(record.Reason))
	c.JSON(http.StatusOK, toScoreResponse(record))
}

type applyRequest struct {
	CoverLetter string `json:"cover_letter"`
}

// Apply 提交职位申请。上游的业务失败映射成可操作的提示而不是原始文案。
func (h *JobHandler) Apply(c *gin.Context) {
	sess, ok := middleware.SessionFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	jobID := c.Param("id")
	var req applyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, err.Error())
		return
	}

	logger := middleware.LoggerFromContext(c).With(slog.String("job_id", jobID))

	switch err := h.tracker.Apply(c.Request.Context(), sess, jobID, req.CoverLetter); {
	case err == nil:
		logger.Info("application submitted")
		c.Status(http.StatusCreated)
	case errors.Is(err, upstream.ErrAlreadyApplied):
		Conflict(c, "you have already applied to this job")
	case errors.Is(err, upstream.ErrPaymentRequired):
		PaymentRequired(c, "an active subscription is required to apply")
	case errors.Is(err, upstream.ErrAuth):
		Unauthorized(c)
	default:
		logger.Error("apply failed", slog.Any("error", err))
		BadGateway(c, "application could not be submitted")
	}
}

// JobState 返回单个职位的申请/收藏状态。
func (h *JobHandler) JobState(c *gin.Context) {
	sess, ok := middleware.SessionFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	state, err := h.tracker.State(c.Request.Context(), sess, c.Param("id"))
	if err != nil {
		middleware.LoggerFromContext(c).Error("job state failed", slog.Any("error", err))
		BadGateway(c, "job state unavailable")
		return
	}

	c.JSON(http.StatusOK, state)
}

// ToggleFavorite 翻转收藏状态并立即持久化。
func (h *JobHandler) ToggleFavorite(c *gin.Context) {
	sess, ok := middleware.SessionFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	favorited, err := h.favorites.Toggle(c.Request.Context(), sess.UserID, c.Param("id"))
	if err != nil {
		middleware.LoggerFromContext(c).Error("toggle favorite failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"favorited": favorited})
}

// ListFavorites 返回收藏的职位 id 列表。
func (h *JobHandler) ListFavorites(c *gin.Context) {
	sess, ok := middleware.SessionFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ids, err := h.favorites.List(c.Request.Context(), sess.UserID)
	if err != nil {
		middleware.LoggerFromContext(c).Error("list favorites failed", slog.Any("error", err))
		Internal(c, "internal error")
		return
	}

	c.JSON(http.StatusOK, gin.H{"job_ids": ids})
}
