package api

import (
	"github.com/gin-gonic/gin"

	"jobgate/internal/api/middleware"
	"jobgate/internal/session"
)

// RegisterRoutes 注册 API 路由。
func RegisterRoutes(
	router *gin.Engine,
	verifier *session.Verifier,
	jobHandler *JobHandler,
	communityHandler *CommunityHandler,
) {
	authMiddleware := middleware.AuthMiddleware(verifier)

	v1 := router.Group("/v1")
	{
		// 社区目录是公共参考数据，目录失败不应拖垮职位页。
		v1.GET("/communities", communityHandler.ListCommunities)

		meGroup := v1.Group("/me")
		meGroup.Use(authMiddleware)
		{
			meGroup.GET("/communities", communityHandler.MyCommunities)
		}

		jobGroup := v1.Group("/jobs")
		jobGroup.Use(authMiddleware)
		{
			jobGroup.GET("", jobHandler.SearchJobs)
			jobGroup.GET("/:id/match-score", jobHandler.MatchScore)
			jobGroup.POST("/:id/match-score/refresh", jobHandler.RefreshMatchScore)
			jobGroup.POST("/:id/apply", jobHandler.Apply)
			jobGroup.GET("/:id/state", jobHandler.JobState)
			jobGroup.POST("/:id/favorite", jobHandler.ToggleFavorite)
		}

		v1.GET("/favorites", authMiddleware, jobHandler.ListFavorites)
	}
}
