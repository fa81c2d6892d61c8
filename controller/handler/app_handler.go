package handler

import (
	"mini-app-service/controller/middleware"
	"mini-app-service/controller/respond"
	"mini-app-service/service/approval_service"

	"github.com/gin-gonic/gin"
)

// AppHandler app submission and lookup endpoints
type AppHandler struct {
	approval *approval_service.ApprovalService
}

// NewAppHandler create app handler
func NewAppHandler(approval *approval_service.ApprovalService) *AppHandler {
	return &AppHandler{approval: approval}
}

// Submit submit or resubmit an app
// @Summary Submit app
// @Description Creates the listing for a url or re-runs the approval decision for its owner
// @Tags App
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body approval_service.SubmissionRequest true "submission"
// @Success 200 {object} respond.Response{data=respond.SubmitResponse}
// @Router /api/v1/apps [post]
func (h *AppHandler) Submit(c *gin.Context) {
	var req approval_service.SubmissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.InvalidParam(c, "invalid request: "+err.Error())
		return
	}
	res, err := h.approval.Submit(c.Request.Context(), middleware.Identity(c), middleware.WalletTrusted(c), req)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.Success(c, respond.SubmitResponse{
		App:       respond.ToAppResponse(res.App),
		Created:   res.Created,
		Developer: respond.ToDeveloperResponse(res.Developer),
	})
}

// Lookup get an app by url
// @Summary Lookup app
// @Tags App
// @Produce json
// @Param url query string true "app url"
// @Success 200 {object} respond.Response{data=respond.AppResponse}
// @Router /api/v1/apps/lookup [get]
func (h *AppHandler) Lookup(c *gin.Context) {
	url := c.Query("url")
	if url == "" {
		respond.InvalidParam(c, "url is required")
		return
	}
	app, err := h.approval.GetApp(url)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.Success(c, respond.ToAppResponse(app))
}

// GetStats app statistics
// @Summary Statistics
// @Tags App
// @Produce json
// @Success 200 {object} respond.Response{data=respond.StatsResponse}
// @Router /api/v1/stats [get]
func (h *AppHandler) GetStats(c *gin.Context) {
	total, err := h.approval.CountApps()
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.Success(c, respond.StatsResponse{TotalApps: total})
}
