package community

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"jobgate/internal/upstream"
)

// ErrNotLoaded 表示目录尚未成功加载过（首次拉取失败或还没拉取）。
// 调用方据此渲染重试入口，而不是把整页打挂。
var ErrNotLoaded = errors.New("community: directory not loaded")

// directoryClient 是目录需要的上游子集。
type directoryClient interface {
	ListCommunities(ctx context.Context) ([]upstream.Community, error)
	GetUser(ctx context.Context, userID string) (upstream.User, error)
}

// Directory 缓存全局社区目录。目录是会话级只读参考数据，
// 启动时预热一次，之后由 cron 周期刷新；读路径永不阻塞在刷新上。
// 刷新失败保留上一份好数据。
type Directory struct {
	client directoryClient
	logger *slog.Logger
	cron   *cron.Cron

	mu          sync.RWMutex
	communities []upstream.Community
	loaded      bool
	lastErr     error
}

// NewDirectory 构造目录缓存。
func NewDirectory(client directoryClient, logger *slog.Logger) *Directory {
	return &Directory{
		client: client,
		logger: logger,
		cron:   cron.New(),
	}
}

// Refresh 同步拉取一次目录。失败时记录错误；若之前已有数据则继续用旧数据。
func (d *Directory) Refresh(ctx context.Context) error {
	communities, err := d.client.ListCommunities(ctx)

	d.mu.Lock()
	defer d.mu.Unlock()

	if err != nil {
		d.lastErr = err
		d.logger.Warn("community directory refresh failed", slog.Any("error", err))
		return fmt.Errorf("refresh directory: %w", err)
	}

	d.communities = communities
	d.loaded = true
	d.lastErr = nil
	return nil
}

// StartRefresh 注册周期刷新任务。
func (d *Directory) StartRefresh(intervalHours int) error {
	spec := fmt.Sprintf("@every %dh", intervalHours)
	_, err := d.cron.AddFunc(spec, func() {
		if err := d.Refresh(context.Background()); err != nil {
			d.logger.Warn("scheduled directory refresh failed", slog.Any("error", err))
		}
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	d.cron.Start()
	d.logger.Info("community directory refresh scheduled", slog.String("spec", spec))
	return nil
}

// Stop 停掉刷新任务。
func (d *Directory) Stop() {
	d.cron.Stop()
}

// Communities 返回当前缓存的目录。从未加载成功时返回 ErrNotLoaded，
// 由调用方决定是否触发重试。
func (d *Directory) Communities() ([]upstream.Community, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.loaded {
		if d.lastErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrNotLoaded, d.lastErr)
		}
		return nil, ErrNotLoaded
	}

	out := make([]upstream.Community, len(d.communities))
	copy(out, d.communities)
	return out, nil
}

// MembershipsFor 拉取某个用户的社区成员关系。
func (d *Directory) MembershipsFor(ctx context.Context, userID string) ([]string, error) {
	user, err := d.client.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("memberships for user: %w", err)
	}
	return user.Communities, nil
}
