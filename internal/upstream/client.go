package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"jobgate/internal/jobs"
)

// Community 是社区目录里的一条记录，客户端视角下只读。
type Community struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// User 只保留网关关心的字段。
type User struct {
	ID          string   `json:"id"`
	Communities []string `json:"communities"`
}

// MatchScore 是匹配分数端点的成功载荷。
type MatchScore struct {
	FinalScore float64 `json:"final_score"`
	Cached     bool    `json:"cached"`
}

// Application 是申请历史里的一条记录，final_score 可能缺失。
type Application struct {
	JobID      string   `json:"job_id"`
	FinalScore *float64 `json:"final_score"`
}

// Client 封装对招聘后端 REST API 的访问。
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient 构造上游客户端。
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// ListJobs 拉取全量职位列表。
func (c *Client) ListJobs(ctx context.Context) ([]jobs.Job, error) {
	var list []jobs.Job
	if err := c.getJSON(ctx, "/api/jobs/get_jobs", nil, "", &list); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return list, nil
}

// ListJobsForUser 拉取按用户社区预过滤后的职位列表。
func (c *Client) ListJobsForUser(ctx context.Context, userID string) ([]jobs.Job, error) {
	query := url.Values{"userId": {userID}}
	var list []jobs.Job
	if err := c.getJSON(ctx, "/api/jobs/get_jobs_for_user", query, "", &list); err != nil {
		return nil, fmt.Errorf("list jobs for user: %w", err)
	}
	return list, nil
}

type communitiesResponse struct {
	Success     bool        `json:"success"`
	Communities []Community `json:"communities"`
}

// ListCommunities 拉取全局社区目录。
func (c *Client) ListCommunities(ctx context.Context) ([]Community, error) {
	var resp communitiesResponse
	if err := c.getJSON(ctx, "/api/communities", nil, "", &resp); err != nil {
		return nil, fmt.Errorf("list communities: %w", err)
	}
	if !resp.Success {
		return nil, &StatusError{Status: http.StatusOK, Message: "communities response not successful"}
	}
	return resp.Communities, nil
}

// GetUser 拉取用户信息（含社区成员关系）。
func (c *Client) GetUser(ctx context.Context, userID string) (User, error) {
	query := url.Values{"userId": {userID}}
	var user User
	if err := c.getJSON(ctx, "/api/auth/get_user", query, "", &user); err != nil {
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

type matchScoreResponse struct {
	MatchData *MatchScore `json:"match_data"`
}

// FetchMatchScore 调用主评分端点。失败会被 classify 归类成哨兵错误。
func (c *Client) FetchMatchScore(ctx context.Context, token, jobID string) (MatchScore, error) {
	var resp matchScoreResponse
	path := "/api/applications/match-score/" + url.PathEscape(jobID)
	if err := c.getJSON(ctx, path, nil, token, &resp); err != nil {
		return MatchScore{}, fmt.Errorf("fetch match score: %w", err)
	}
	if resp.MatchData == nil {
		return MatchScore{}, &StatusError{Status: http.StatusOK, Message: "match_data missing from payload"}
	}
	return *resp.MatchData, nil
}

// MyApplications 拉取当前用户的申请历史。
func (c *Client) MyApplications(ctx context.Context, token string) ([]Application, error) {
	var list []Application
	if err := c.getJSON(ctx, "/api/applications/my-applications", nil, token, &list); err != nil {
		return nil, fmt.Errorf("my applications: %w", err)
	}
	return list, nil
}

type applyRequest struct {
	JobID       string `json:"job_id"`
	CoverLetter string `json:"cover_letter"`
}

// Apply 提交一份职位申请，成功返回 nil（上游回 201）。
func (c *Client) Apply(ctx context.Context, token, jobID, coverLetter string) error {
	body, err := json.Marshal(applyRequest{JobID: jobID, CoverLetter: coverLetter})
	if err != nil {
		return fmt.Errorf("marshal apply request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/applications/apply", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build apply request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("apply request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return classify(resp.StatusCode, readMessage(resp.Body))
	}
	return nil
}

// getJSON 发起 GET 请求并解码 JSON。token 非空时附带 Bearer 头。
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, token string, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := classify(resp.StatusCode, readMessage(resp.Body))
		if resp.StatusCode >= 500 {
			c.logger.Warn("upstream server error",
				slog.String("path", path),
				slog.Int("status", resp.StatusCode),
			)
		}
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// readMessage 从错误响应体里提取消息。上游错误体通常是
// {"error": "..."} 或 {"message": "..."}，兜底用原始文本。
func readMessage(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 8*1024))
	if err != nil {
		return ""
	}

	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return strings.TrimSpace(string(data))
}
