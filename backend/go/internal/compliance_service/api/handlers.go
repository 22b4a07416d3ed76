package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"accord/backend/go/internal/finetune"
	"accord/backend/go/internal/ingest"
	"accord/backend/go/internal/models"
	"accord/backend/go/internal/qa"
	"accord/backend/go/internal/registry"
	"accord/backend/go/internal/search"
	"accord/backend/go/internal/store"
	userservice "accord/backend/go/internal/user_service/service"
	"accord/backend/go/pkg/logger"
)

// HealthCheck probes one backing component. A nil error means healthy.
type HealthCheck func(ctx context.Context) error

// Handler bundles the handler functions of all API endpoints.
type Handler struct {
	auth      *userservice.Service
	qa        *qa.Orchestrator
	documents *ingest.Service
	search    *search.Engine
	finetune  *finetune.Service
	registry  *registry.Service
	health    map[string]HealthCheck
	log       *logger.Logger
}

// NewHandler creates a Handler over the wired services.
func NewHandler(
	auth *userservice.Service,
	orchestrator *qa.Orchestrator,
	documents *ingest.Service,
	engine *search.Engine,
	tuning *finetune.Service,
	reg *registry.Service,
	health map[string]HealthCheck,
) *Handler {
	return &Handler{
		auth:      auth,
		qa:        orchestrator,
		documents: documents,
		search:    engine,
		finetune:  tuning,
		registry:  reg,
		health:    health,
		log:       logger.New("compliance-api", "", ""),
	}
}

// currentUserID returns the authenticated user's ID as stored on audit
// entries and documents.
func currentUserID(c *gin.Context) string {
	return strconv.FormatUint(uint64(c.GetUint(ctxUserID)), 10)
}

// --- Auth Handlers ---

type signupRequest struct {
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone"`
	Password string `json:"password" binding:"required,min=8"`
	FullName string `json:"full_name"`
}

// Signup registers a new account.
func (h *Handler) Signup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.auth.Signup(userservice.SignupRequest{
		Username: req.Username,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
		FullName: req.FullName,
	})
	switch {
	case errors.Is(err, userservice.ErrEmailTaken),
		errors.Is(err, userservice.ErrUsernameTaken),
		errors.Is(err, userservice.ErrPhoneTaken):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user_id": user.ID, "username": user.Username})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login exchanges credentials for a signed token.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	token, user, err := h.auth.Login(req.Email, req.Password)
	switch {
	case errors.Is(err, userservice.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	case errors.Is(err, userservice.ErrAccountDisabled):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
}

// Logout revokes the presented token.
func (h *Handler) Logout(c *gin.Context) {
	token := c.GetString(ctxToken)
	if err := h.auth.Logout(c.Request.Context(), token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// Me returns the authenticated user's profile, roles included.
func (h *Handler) Me(c *gin.Context) {
	user, err := h.auth.GetUser(c.GetUint(ctxUserID))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, user)
}

// --- Q&A Handlers ---

type askRequest struct {
	Query               string   `json:"query" binding:"required"`
	TopK                *int     `json:"top_k" binding:"omitempty,gt=0"`
	SimilarityThreshold *float64 `json:"similarity_threshold" binding:"omitempty,gte=0,lte=1"`
	IncludeSources      *bool    `json:"include_sources"`
}

// Ask answers a question grounded in the document repository.
func (h *Handler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	includeSources := true
	if req.IncludeSources != nil {
		includeSources = *req.IncludeSources
	}

	resp, err := h.qa.AnswerQuery(c.Request.Context(), &models.QARequest{
		QueryText:           req.Query,
		TopK:                req.TopK,
		SimilarityThreshold: req.SimilarityThreshold,
		IncludeSources:      includeSources,
		UserID:              currentUserID(c),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// AskImage answers a question about uploaded images. The request is
// multipart: a "query" field plus one or more files under "images".
func (h *Handler) AskImage(c *gin.Context) {
	query := c.PostForm("query")
	if query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query field is required"})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	files := form.File["images"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one image is required"})
		return
	}

	images := make([]models.ImagePart, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("open %s: %v", fh.Filename, err)})
			return
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("read %s: %v", fh.Filename, err)})
			return
		}
		mime := fh.Header.Get("Content-Type")
		if mime == "" {
			mime = mimetype.Detect(data).String()
		}
		images = append(images, models.ImagePart{MimeType: mime, Data: data})
	}

	resp, err := h.qa.AnswerImageQuery(c.Request.Context(), &models.ImageQARequest{
		QueryText: query,
		Images:    images,
		UserID:    currentUserID(c),
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// History returns the caller's past Q&A interactions, most recent first.
func (h *Handler) History(c *gin.Context) {
	limit := int64(20)
	if v := c.Query("limit"); v != "" {
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	entries, err := h.qa.GetQueryHistory(c.Request.Context(), currentUserID(c), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": entries, "count": len(entries)})
}

// --- Document Handlers ---

// UploadDocument ingests one uploaded file.
func (h *Handler) UploadDocument(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file field is required"})
		return
	}
	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	data, err := io.ReadAll(f)
	f.Close()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	metadata := map[string]interface{}{}
	if desc := c.PostForm("description"); desc != "" {
		metadata["description"] = desc
	}

	result, err := h.documents.Ingest(c.Request.Context(), ingest.UploadInput{
		Filename:   fh.Filename,
		Data:       data,
		UploadedBy: currentUserID(c),
		Metadata:   metadata,
	})
	switch {
	case errors.Is(err, ingest.ErrEmptyFile):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, ingest.ErrFileTooLarge):
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
		return
	case errors.Is(err, ingest.ErrUnsupportedType):
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if result.Duplicate {
		c.JSON(http.StatusOK, gin.H{"duplicate": true, "message": "document already ingested"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"duplicate": false, "document": result.Document})
}

// ListDocuments returns one page of documents.
func (h *Handler) ListDocuments(c *gin.Context) {
	page, err := positiveIntQuery(c, "page", 1)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	limit, err := positiveIntQuery(c, "limit", 20)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	docs, total, err := h.documents.List(c.Request.Context(), page, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs, "total": total, "page": page, "limit": limit})
}

// GetDocument returns one document including its extracted text.
func (h *Handler) GetDocument(c *gin.Context) {
	doc, err := h.documents.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, doc)
}

// DownloadDocument streams the archived original.
func (h *Handler) DownloadDocument(c *gin.Context) {
	reader, doc, err := h.documents.Download(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer reader.Close()

	c.DataFromReader(http.StatusOK, -1, doc.MimeType, reader, map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", doc.Filename),
	})
}

// SimilarDocuments returns documents most similar to the given one.
func (h *Handler) SimilarDocuments(c *gin.Context) {
	topK, err := positiveIntQuery(c, "top_k", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results, err := h.search.GetSimilarDocuments(c.Request.Context(), c.Param("id"), topK)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
}

// ReEmbedDocument regenerates a document's embedding with the current
// provider. Used after switching embedding models so old documents stay
// searchable.
func (h *Handler) ReEmbedDocument(c *gin.Context) {
	doc, err := h.documents.ReEmbed(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "document re-embedded", "document_id": doc.ID})
}

// DeleteDocument removes a document and its archived original.
func (h *Handler) DeleteDocument(c *gin.Context) {
	id := c.Param("id")
	err := h.documents.Delete(c.Request.Context(), id, currentUserID(c))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "document deleted", "document_id": id})
}

// --- Search Handler ---

type searchRequest struct {
	Query               string   `json:"query" binding:"required"`
	TopK                int      `json:"top_k" binding:"omitempty,gt=0"`
	SimilarityThreshold *float64 `json:"similarity_threshold" binding:"omitempty,gte=0,lte=1"`
	DocumentIDs         []string `json:"document_ids"`
}

// Search runs a similarity search without answer generation.
func (h *Handler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results, err := h.search.SearchDocuments(c.Request.Context(), req.Query, search.Options{
		TopK:        req.TopK,
		Threshold:   req.SimilarityThreshold,
		DocumentIDs: req.DocumentIDs,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
}

// --- Fine-Tune Handlers ---

type createJobRequest struct {
	JobName       string   `json:"job_name" binding:"required"`
	BaseModel     string   `json:"base_model"`
	MinConfidence *float64 `json:"min_confidence" binding:"omitempty,gte=0,lte=1"`
	MinSamples    int      `json:"min_samples" binding:"omitempty,gt=0"`
}

// CreateFineTuneJob creates a job and starts its dataset build in the
// background.
func (h *Handler) CreateFineTuneJob(c *gin.Context) {
	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.finetune.CreateJob(c.Request.Context(), finetune.CreateJobRequest{
		JobName:       req.JobName,
		BaseModel:     req.BaseModel,
		MinConfidence: req.MinConfidence,
		MinSamples:    req.MinSamples,
		CreatedBy:     currentUserID(c),
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	go h.runFineTuneJob(job.ID)
	c.JSON(http.StatusCreated, job)
}

// runFineTuneJob drives one job to completion outside the request cycle.
func (h *Handler) runFineTuneJob(jobID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	if err := h.finetune.Run(ctx, jobID); err != nil {
		h.log.WithError(err).WithField("job_id", jobID).Error("Fine-tune job failed")
	}
}

// ListFineTuneJobs returns recent jobs, newest first.
func (h *Handler) ListFineTuneJobs(c *gin.Context) {
	limit, err := positiveIntQuery(c, "limit", 50)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	jobs, err := h.finetune.ListJobs(c.Request.Context(), int64(limit))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "count": len(jobs)})
}

// GetFineTuneJob returns one job.
func (h *Handler) GetFineTuneJob(c *gin.Context) {
	job, err := h.finetune.GetJob(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, job)
}

// CancelFineTuneJob cancels a job that has not reached a terminal state.
func (h *Handler) CancelFineTuneJob(c *gin.Context) {
	job, err := h.finetune.Cancel(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, job)
}

// --- Model Registry Handlers ---

// ListModels returns all registered models.
func (h *Handler) ListModels(c *gin.Context) {
	records, err := h.registry.List(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"models": records, "count": len(records)})
}

type registerModelRequest struct {
	Name        string `json:"name" binding:"required"`
	Provider    string `json:"provider" binding:"required"`
	ModelID     string `json:"model_id" binding:"required"`
	Description string `json:"description"`
	Activate    bool   `json:"activate"`
}

// RegisterModel records a new model, optionally activating it.
func (h *Handler) RegisterModel(c *gin.Context) {
	var req registerModelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := h.registry.Register(c.Request.Context(), registry.RegisterRequest{
		Name:        req.Name,
		Provider:    req.Provider,
		ModelID:     req.ModelID,
		Description: req.Description,
		Activate:    req.Activate,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, record)
}

// ActivateModel makes the given model the active one for its provider.
func (h *Handler) ActivateModel(c *gin.Context) {
	record, err := h.registry.Activate(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, record)
}

// --- Health Handler ---

// Health probes each backing component and reports a per-component verdict.
// Any unavailable component degrades the overall status.
func (h *Handler) Health(c *gin.Context) {
	status := "ok"
	components := make(map[string]string, len(h.health))
	for name, check := range h.health {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		if err := check(ctx); err != nil {
			components[name] = "unavailable"
			status = "degraded"
			h.log.WithError(err).WithField("component", name).Warn("Health check failed")
		} else {
			components[name] = "ok"
		}
		cancel()
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "components": components})
}

// positiveIntQuery parses an optional positive integer query parameter.
func positiveIntQuery(c *gin.Context, name string, fallback int) (int, error) {
	v := c.Query(name)
	if v == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil || parsed <= 0 {
		return 0, fmt.Errorf("%s must be a positive integer", name)
	}
	return parsed, nil
}
