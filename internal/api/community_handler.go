package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"jobgate/internal/api/middleware"
	"jobgate/internal/community"
	"jobgate/internal/upstream"
)

// communityDirectory 抽象社区目录缓存。
type communityDirectory interface {
	Communities() ([]upstream.Community, error)
	Refresh(ctx context.Context) error
	MembershipsFor(ctx context.Context, userID string) ([]string, error)
}

// CommunityHandler 负责社区目录相关的 API。
type CommunityHandler struct {
	directory communityDirectory
}

// NewCommunityHandler 构造 CommunityHandler。
func NewCommunityHandler(directory communityDirectory) *CommunityHandler {
	return &CommunityHandler{directory: directory}
}

// ListCommunities 返回缓存的社区目录。缓存未就绪时现场重试一次拉取，
// 仍失败则返回 503，由客户端的重试入口再次触发。
func (h *CommunityHandler) ListCommunities(c *gin.Context) {
	list, err := h.directory.Communities()
	if errors.Is(err, community.ErrNotLoaded) {
		if refreshErr := h.directory.Refresh(c.Request.Context()); refreshErr == nil {
			list, err = h.directory.Communities()
		}
	}
	if err != nil {
		middleware.LoggerFromContext(c).Warn("community directory unavailable", slog.Any("error", err))
		Error(c, http.StatusServiceUnavailable, "community directory unavailable, try again")
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "communities": list})
}

// MyCommunities 返回当前用户的社区成员关系。
func (h *CommunityHandler) MyCommunities(c *gin.Context) {
	sess, ok := middleware.SessionFromContext(c)
	if !ok {
		AbortUnauthorized(c)
		return
	}

	ids, err := h.directory.MembershipsFor(c.Request.Context(), sess.UserID)
	if err != nil {
		if errors.Is(err, upstream.ErrUserNotFound) {
			NotFound(c, "user not found")
			return
		}
		middleware.LoggerFromContext(c).Error("memberships lookup failed", slog.Any("error", err))
		BadGateway(c, "memberships unavailable")
		return
	}

	c.JSON(http.StatusOK, gin.H{"communities": ids})
}
