package handler

import (
	"net/http"

	"verifier/internal/model"
	"verifier/internal/service"

	"github.com/gin-gonic/gin"
)

// VerificationHandler serves the control plane: source registration, window dispatch
// and the deployment risk views
type VerificationHandler struct {
	dispatchService     *service.DispatchService
	verificationService *service.VerificationService
}

// NewVerificationHandler creates verification handler
func NewVerificationHandler(dispatchService *service.DispatchService, verificationService *service.VerificationService) *VerificationHandler {
	return &VerificationHandler{
		dispatchService:     dispatchService,
		verificationService: verificationService,
	}
}

// SaveVerificationTask registers or updates a monitored source
// @Summary Register monitored source
// @Tags verification
// @Accept json
// @Produce json
// @Param id path string true "Verification task ID"
// @Param request body model.VerificationTask true "Monitored source"
// @Success 200 {object} model.VerificationTask
// @Router /api/v1/verification-tasks/{id} [put]
func (h *VerificationHandler) SaveVerificationTask(c *gin.Context) {
	var task model.VerificationTask
	if err := c.ShouldBindJSON(&task); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	task.ID = c.Param("id")
	if task.AccountID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "accountId required"})
		return
	}
	if _, ok := task.BaselineWindow(); ok && !task.BaselineEnd.After(*task.BaselineStart) {
		c.JSON(http.StatusBadRequest, gin.H{"error": model.ErrInvalidWindow.Error()})
		return
	}

	if err := h.verificationService.SaveVerificationTask(c.Request.Context(), &task); err != nil {
		respondError(c, "save verification task", err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// GetVerificationTask returns a monitored source
func (h *VerificationHandler) GetVerificationTask(c *gin.Context) {
	task, err := h.verificationService.GetVerificationTask(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "get verification task", err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// SaveJobInstance registers a deployment verification job instance
// @Summary Register job instance
// @Description Host lists left empty are resolved from the pod selectors when host resolution is enabled.
// @Tags verification
// @Accept json
// @Produce json
// @Param instance_id path string true "Job instance ID"
// @Param request body model.VerificationJobInstance true "Job instance"
// @Success 200 {object} model.VerificationJobInstance
// @Router /api/v1/job-instances/{instance_id} [put]
func (h *VerificationHandler) SaveJobInstance(c *gin.Context) {
	var job model.VerificationJobInstance
	if err := c.ShouldBindJSON(&job); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	job.ID = c.Param("instance_id")
	if job.VerificationType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "verificationType required"})
		return
	}

	if err := h.verificationService.SaveJobInstance(c.Request.Context(), &job); err != nil {
		respondError(c, "save job instance", err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// DispatchWindow turns one (source, window) into analysis tasks
// @Summary Dispatch analysis window
// @Description 409 while an earlier window of the same source is still in flight.
// @Tags verification
// @Accept json
// @Produce json
// @Param id path string true "Verification task ID"
// @Param request body model.WindowRequest true "Window"
// @Success 200 {object} model.DispatchResponse
// @Router /api/v1/verification-tasks/{id}/windows [post]
func (h *VerificationHandler) DispatchWindow(c *gin.Context) {
	var req model.WindowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	req.VerificationTaskID = c.Param("id")

	resp, err := h.dispatchService.Dispatch(c.Request.Context(), &req)
	if err != nil {
		respondError(c, "dispatch window", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

type hostRecordsRequest struct {
	Records []*model.HostRecord `json:"records" binding:"required,dive"`
}

// AddHostRecords stores hosts observed for a source
func (h *VerificationHandler) AddHostRecords(c *gin.Context) {
	var req hostRecordsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	if err := h.verificationService.AddHostRecords(c.Request.Context(), c.Param("id"), req.Records); err != nil {
		respondError(c, "add host records", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "host records added", "count": len(req.Records)})
}

// GetHealthInfo returns pre/post activity category risks of a health verification
func (h *VerificationHandler) GetHealthInfo(c *gin.Context) {
	info, err := h.verificationService.GetHealthInfo(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "get health info", err)
		return
	}
	c.JSON(http.StatusOK, info)
}

// GetLatestRisk returns the latest risk of a deployment
// @Summary Get deployment risk
// @Description risk is null when no analysis has completed yet.
// @Tags deployments
// @Produce json
// @Param instance_id path string true "Job instance ID"
// @Param accountId query string false "Account ID"
// @Router /api/v1/deployments/{instance_id}/risk [get]
func (h *VerificationHandler) GetLatestRisk(c *gin.Context) {
	instanceID := c.Param("instance_id")
	risk, err := h.verificationService.GetLatestRisk(c.Request.Context(), c.Query("accountId"), instanceID)
	if err != nil {
		respondError(c, "get latest risk", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"verificationJobInstanceId": instanceID, "risk": risk})
}

// GetCanaryInfo returns the primary / canary host view of a deployment
func (h *VerificationHandler) GetCanaryInfo(c *gin.Context) {
	info, err := h.verificationService.GetCanaryOrBlueGreenInfo(c.Request.Context(), c.Query("accountId"), c.Param("instance_id"))
	if err != nil {
		respondError(c, "get canary info", err)
		return
	}
	c.JSON(http.StatusOK, info)
}
