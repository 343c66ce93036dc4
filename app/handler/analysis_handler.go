package handler

import (
	"io"
	"net/http"
	"strconv"

	"verifier/internal/model"
	"verifier/internal/service"
	"verifier/pkg/logger"

	"github.com/gin-gonic/gin"
)

// maxVerdictSize upper bound of a verdict body
const maxVerdictSize = 32 << 20

// AnalysisHandler serves the compute engine: task claiming, verdicts and previous state
type AnalysisHandler struct {
	taskService   *service.TaskService
	resultService *service.ResultService
	stateService  *service.StateService
}

// NewAnalysisHandler creates analysis handler
func NewAnalysisHandler(taskService *service.TaskService, resultService *service.ResultService, stateService *service.StateService) *AnalysisHandler {
	return &AnalysisHandler{
		taskService:   taskService,
		resultService: resultService,
		stateService:  stateService,
	}
}

// ClaimTask hands the next queued task to the engine
// @Summary Claim next analysis task
// @Description Atomically moves the highest-priority queued task to RUNNING. 204 when the queue is empty.
// @Tags analysis
// @Accept json
// @Produce json
// @Param request body model.ClaimRequest false "Task type filter"
// @Success 200 {object} model.AnalysisTask
// @Router /api/v1/analysis/tasks/claim [post]
func (h *AnalysisHandler) ClaimTask(c *gin.Context) {
	var req model.ClaimRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
	}

	task, err := h.taskService.ClaimNext(c.Request.Context(), req.TaskTypes)
	if err != nil {
		respondError(c, "claim task", err)
		return
	}
	if task == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, task)
}

// GetStatuses returns the status of each known task id
// @Summary Get task statuses
// @Tags analysis
// @Accept json
// @Produce json
// @Param request body model.StatusRequest true "Task ids"
// @Success 200 {object} map[string]string
// @Router /api/v1/analysis/tasks/statuses [post]
func (h *AnalysisHandler) GetStatuses(c *gin.Context) {
	var req model.StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	statuses, err := h.taskService.GetStatuses(c.Request.Context(), req.TaskIDs)
	if err != nil {
		respondError(c, "get task statuses", err)
		return
	}
	c.JSON(http.StatusOK, statuses)
}

// GetTask returns one task
func (h *AnalysisHandler) GetTask(c *gin.Context) {
	task, err := h.taskService.GetTask(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		respondError(c, "get task", err)
		return
	}
	c.JSON(http.StatusOK, task)
}

type failureRequest struct {
	Reason string `json:"reason"`
}

// ReportFailure marks a task FAILED
// @Summary Report task failure
// @Description Called by the engine when it cannot complete a task. Idempotent.
// @Tags analysis
// @Param taskId query string true "Task ID"
// @Success 200 {object} map[string]string
// @Router /api/v1/analysis/tasks/failure [post]
func (h *AnalysisHandler) ReportFailure(c *gin.Context) {
	taskID, ok := requiredQuery(c, "taskId")
	if !ok {
		return
	}
	var req failureRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			logger.WarnCtx(c.Request.Context(), "invalid failure report, task_id: %s, error: %v", taskID, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
	}

	if err := h.taskService.MarkFailure(c.Request.Context(), taskID, req.Reason); err != nil {
		respondError(c, "mark task failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "task marked failed"})
}

// SaveResult folds the engine verdict of a task into the risk model
// @Summary Save analysis result
// @Description The body is the verdict of the task's type. Re-posting a verdict replaces the stored one.
// @Tags analysis
// @Accept json
// @Produce json
// @Param taskId query string true "Task ID"
// @Success 200 {object} model.SaveResultResponse
// @Router /api/v1/analysis/results [post]
func (h *AnalysisHandler) SaveResult(c *gin.Context) {
	taskID, ok := requiredQuery(c, "taskId")
	if !ok {
		return
	}
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxVerdictSize))
	if err != nil {
		logger.WarnCtx(c.Request.Context(), "failed to read verdict body, task_id: %s, error: %v", taskID, err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "failed to read body"})
		return
	}

	resp, err := h.resultService.SaveResult(c.Request.Context(), taskID, body)
	if err != nil {
		respondError(c, "save result", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetCumulativeSums returns the running sums of a source
func (h *AnalysisHandler) GetCumulativeSums(c *gin.Context) {
	sourceID, ok := requiredQuery(c, "verificationTaskId")
	if !ok {
		return
	}
	sums, err := h.stateService.GetCumulativeSums(c.Request.Context(), sourceID)
	if err != nil {
		respondError(c, "get cumulative sums", err)
		return
	}
	c.JSON(http.StatusOK, sums)
}

// GetShortTermHistory returns the recent values of a source
func (h *AnalysisHandler) GetShortTermHistory(c *gin.Context) {
	sourceID, ok := requiredQuery(c, "verificationTaskId")
	if !ok {
		return
	}
	history, err := h.stateService.GetShortTermHistory(c.Request.Context(), sourceID)
	if err != nil {
		respondError(c, "get short-term history", err)
		return
	}
	c.JSON(http.StatusOK, history)
}

// GetAnomalousPatterns returns the long-term anomalous patterns of a source
func (h *AnalysisHandler) GetAnomalousPatterns(c *gin.Context) {
	sourceID, ok := requiredQuery(c, "verificationTaskId")
	if !ok {
		return
	}
	patterns, err := h.stateService.GetLongTermAnomalies(c.Request.Context(), sourceID)
	if err != nil {
		respondError(c, "get anomalous patterns", err)
		return
	}
	c.JSON(http.StatusOK, patterns)
}

// GetLogClusters returns the active log clusters of a source
func (h *AnalysisHandler) GetLogClusters(c *gin.Context) {
	sourceID, ok := requiredQuery(c, "verificationTaskId")
	if !ok {
		return
	}
	clusters, err := h.stateService.GetActiveClusters(c.Request.Context(), sourceID)
	if err != nil {
		respondError(c, "get log clusters", err)
		return
	}
	c.JSON(http.StatusOK, clusters)
}

// GetClusteredLogs returns stored L1/L2 records of a source inside a window
func (h *AnalysisHandler) GetClusteredLogs(c *gin.Context) {
	sourceID, ok := requiredQuery(c, "verificationTaskId")
	if !ok {
		return
	}
	level := model.ClusterLevel(c.DefaultQuery("level", string(model.ClusterLevelL1)))
	if level != model.ClusterLevelL1 && level != model.ClusterLevelL2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "level must be L1 or L2"})
		return
	}
	start, ok := epochMillisParam(c, "startTime")
	if !ok {
		return
	}
	end, ok := epochMillisParam(c, "endTime")
	if !ok {
		return
	}

	records, err := h.stateService.GetClusteredRecords(c.Request.Context(), sourceID, level, model.Window{Start: start, End: end})
	if err != nil {
		respondError(c, "get clustered logs", err)
		return
	}
	c.JSON(http.StatusOK, records)
}

// GetTaskEvents returns the lifecycle events of a task
// @Summary Get analysis task events
// @Tags analysis
// @Produce json
// @Param task_id path string true "Task ID"
// @Success 200 {array} model.TaskEvent
// @Router /api/v1/analysis/tasks/{task_id}/events [get]
func (h *AnalysisHandler) GetTaskEvents(c *gin.Context) {
	events, err := h.taskService.GetTaskEvents(c.Request.Context(), c.Param("task_id"))
	if err != nil {
		respondError(c, "get task events", err)
		return
	}
	c.JSON(http.StatusOK, events)
}

// GetRiskSummaries returns the per-window risk summaries of a source
// @Summary List risk summaries
// @Tags verification
// @Produce json
// @Param id path string true "Verification task ID"
// @Param startTime query int true "Epoch milliseconds"
// @Param endTime query int true "Epoch milliseconds"
// @Success 200 {array} model.RiskSummary
// @Router /api/v1/verification-tasks/{id}/risk-summaries [get]
func (h *AnalysisHandler) GetRiskSummaries(c *gin.Context) {
	start, ok := epochMillisParam(c, "startTime")
	if !ok {
		return
	}
	end, ok := epochMillisParam(c, "endTime")
	if !ok {
		return
	}

	summaries, err := h.resultService.ListRiskSummaries(c.Request.Context(), c.Param("id"), model.Window{Start: start, End: end})
	if err != nil {
		respondError(c, "list risk summaries", err)
		return
	}
	c.JSON(http.StatusOK, summaries)
}

// GetAnomalies returns the latest anomalies of a source
// @Summary List anomalies
// @Tags verification
// @Produce json
// @Param id path string true "Verification task ID"
// @Param limit query int false "Max anomalies (default 100)"
// @Success 200 {array} model.Anomaly
// @Router /api/v1/verification-tasks/{id}/anomalies [get]
func (h *AnalysisHandler) GetAnomalies(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}

	anomalies, err := h.resultService.ListAnomalies(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		respondError(c, "list anomalies", err)
		return
	}
	c.JSON(http.StatusOK, anomalies)
}
