package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"worker-render/constant"
	"worker-render/dto"
	"worker-render/entities"
	"worker-render/repository"
	"worker-render/service"
)

// RegisterRoutes mounts the render status surface. The HTTP layer only parses
// and relays; all lifecycle rules live in the pipeline.
func RegisterRoutes(r *gin.Engine, pipeline *service.Pipeline, workerToken string) {
	g := r.Group("/renders")
	if workerToken != "" {
		g.Use(bearerAuth(workerToken))
	}
	g.POST("", createRender(pipeline))
	g.GET("", listRenders(pipeline))
	g.GET("/:renderId", getRender(pipeline))
	g.DELETE("/:renderId", deleteRender(pipeline))
}

func bearerAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") != "Bearer "+token {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

type createRenderBody struct {
	UserId    string             `json:"userId"`
	RenderId  string             `json:"renderId"`
	ProjectId string             `json:"projectId"`
	ConfigId  string             `json:"configId"`
	Options   *dto.RenderOptions `json:"options"`
}

func createRender(pipeline *service.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body createRenderBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		opts := dto.DefaultRenderOptions()
		if body.Options != nil {
			opts = *body.Options
		}
		job, err := pipeline.CreateRenderJob(c.Request.Context(), body.UserId, dto.CreateRenderRequest{
			RenderId:  body.RenderId,
			ProjectId: body.ProjectId,
			ConfigId:  body.ConfigId,
		}, opts)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusAccepted, statusResponse(job))
	}
}

func getRender(pipeline *service.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, err := pipeline.GetRenderJob(c.Request.Context(), c.Query("userId"), c.Param("renderId"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, statusResponse(job))
	}
}

func listRenders(pipeline *service.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.Query("limit"))
		status := constant.RenderStatus(c.Query("status"))
		jobs, err := pipeline.ListRenderJobs(c.Request.Context(), c.Query("userId"), status, limit)
		if err != nil {
			writeError(c, err)
			return
		}
		out := make([]dto.RenderStatusResponse, 0, len(jobs))
		for _, job := range jobs {
			out = append(out, statusResponse(job))
		}
		c.JSON(http.StatusOK, gin.H{"jobs": out})
	}
}

func deleteRender(pipeline *service.Pipeline) gin.HandlerFunc {
	return func(c *gin.Context) {
		deleted, err := pipeline.DeleteRenderJob(c.Request.Context(), c.Query("userId"), c.Param("renderId"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": deleted})
	}
}

func statusResponse(job *entities.RenderJob) dto.RenderStatusResponse {
	return dto.RenderStatusResponse{
		RenderId:  job.RenderId,
		Status:    job.Status,
		Progress:  job.Progress,
		OutputUrl: job.OutputUrl,
		Error:     job.Error,
	}
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrJobNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "render job not found"})
	case errors.Is(err, service.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrInsufficientBalance):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": "insufficient balance"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
