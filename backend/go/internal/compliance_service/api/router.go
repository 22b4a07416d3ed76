package api

import (
	"github.com/gin-gonic/gin"

	"accord/backend/go/internal/config"
	"accord/backend/go/internal/pii"
	userservice "accord/backend/go/internal/user_service/service"
)

// SetupRouter configures and returns the gin engine for the compliance
// service. Administrative endpoints sit behind the admin role; everything
// except signup, login and the health probe requires a valid token.
func SetupRouter(h *Handler, auth *userservice.Service, redactor *pii.Redactor, cfg *config.AppConfig) *gin.Engine {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}
	r := gin.Default()

	r.GET("/health", h.Health)

	authMW := AuthMiddleware(auth)
	adminMW := RequireAdmin(auth)

	apiV1 := r.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/signup", h.Signup)
			authGroup.POST("/login", h.Login)
			authGroup.POST("/logout", authMW, h.Logout)
			authGroup.GET("/me", authMW, h.Me)
		}

		qaGroup := apiV1.Group("/qa")
		qaGroup.Use(authMW)
		if cfg.QA.RedactResponses && redactor != nil {
			qaGroup.Use(ResponseRedaction(redactor))
		}
		{
			qaGroup.POST("/ask", h.Ask)
			qaGroup.POST("/ask-image", h.AskImage)
			qaGroup.GET("/history", h.History)
		}

		docs := apiV1.Group("/documents")
		docs.Use(authMW)
		{
			docs.POST("", h.UploadDocument)
			docs.GET("", h.ListDocuments)
			docs.GET("/:id", h.GetDocument)
			docs.GET("/:id/download", h.DownloadDocument)
			docs.GET("/:id/similar", h.SimilarDocuments)
			docs.POST("/:id/reembed", adminMW, h.ReEmbedDocument)
			docs.DELETE("/:id", adminMW, h.DeleteDocument)
		}

		apiV1.POST("/search", authMW, h.Search)

		jobs := apiV1.Group("/finetune")
		jobs.Use(authMW, adminMW)
		{
			jobs.POST("/jobs", h.CreateFineTuneJob)
			jobs.GET("/jobs", h.ListFineTuneJobs)
			jobs.GET("/jobs/:id", h.GetFineTuneJob)
			jobs.POST("/jobs/:id/cancel", h.CancelFineTuneJob)
		}

		modelsGroup := apiV1.Group("/models")
		modelsGroup.Use(authMW)
		{
			modelsGroup.GET("", h.ListModels)
			modelsGroup.POST("", adminMW, h.RegisterModel)
			modelsGroup.POST("/:id/activate", adminMW, h.ActivateModel)
		}
	}

	return r
}
