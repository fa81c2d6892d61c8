package handler

import (
	"mini-app-service/controller/middleware"
	"mini-app-service/controller/respond"
	model "mini-app-service/models"
	"mini-app-service/service/approval_service"
	"mini-app-service/service/verification_service"

	"github.com/gin-gonic/gin"
)

// AdminHandler staff review endpoints; mounted behind middleware.RequireStaff
type AdminHandler struct {
	verification *verification_service.VerificationService
	approval     *approval_service.ApprovalService
}

// NewAdminHandler create admin handler
func NewAdminHandler(verification *verification_service.VerificationService, approval *approval_service.ApprovalService) *AdminHandler {
	return &AdminHandler{
		verification: verification,
		approval:     approval,
	}
}

// ReviewQueue list apps by status
// @Summary Review queue
// @Description Apps in a status, oldest first; all apps when status is empty
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param status query string false "pending | pending_contract | pending_review | approved | rejected"
// @Param cursor query int false "cursor" default(0)
// @Param size query int false "page size" default(20)
// @Success 200 {object} respond.Response{data=respond.AppListResponse}
// @Router /api/v1/admin/apps [get]
func (h *AdminHandler) ReviewQueue(c *gin.Context) {
	var status model.AppStatus
	if raw := c.Query("status"); raw != "" {
		st, ok := model.ParseAppStatus(raw)
		if !ok {
			respond.InvalidParam(c, "unknown status "+raw)
			return
		}
		status = st
	}
	cursor, size := pageParams(c)
	apps, next, err := h.approval.ReviewQueue(middleware.Developer(c), status, cursor, size)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.Success(c, respond.ToAppListResponse(apps, next, len(apps) == size))
}

// ApproveContract approve a pending_contract app
// @Summary Contract approval
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body URLRequest true "app url"
// @Success 200 {object} respond.Response{data=respond.AppResponse}
// @Router /api/v1/admin/apps/contract-approval [post]
func (h *AdminHandler) ApproveContract(c *gin.Context) {
	var req URLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.InvalidParam(c, "invalid request: "+err.Error())
		return
	}
	app, err := h.approval.ApproveContract(middleware.Developer(c), req.URL)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.Success(c, respond.ToAppResponse(app))
}

// Approve approve a pending app
// @Summary Manual approval
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body URLRequest true "app url"
// @Success 200 {object} respond.Response{data=respond.AppResponse}
// @Router /api/v1/admin/apps/approve [post]
func (h *AdminHandler) Approve(c *gin.Context) {
	var req URLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.InvalidParam(c, "invalid request: "+err.Error())
		return
	}
	app, err := h.approval.Approve(middleware.Developer(c), req.URL)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.Success(c, respond.ToAppResponse(app))
}

// Reject reject an app
// @Summary Reject app
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body RejectRequest true "app url and reason"
// @Success 200 {object} respond.Response{data=respond.AppResponse}
// @Router /api/v1/admin/apps/reject [post]
func (h *AdminHandler) Reject(c *gin.Context) {
	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.InvalidParam(c, "invalid request: "+err.Error())
		return
	}
	app, err := h.approval.Reject(middleware.Developer(c), req.URL, req.Reason)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.Success(c, respond.ToAppResponse(app))
}

// GrantVerified grant verified status out of band
// @Summary Grant verified
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param id path string true "developer id"
// @Success 200 {object} respond.Response{data=respond.DeveloperResponse}
// @Router /api/v1/admin/developers/{id}/verify [post]
func (h *AdminHandler) GrantVerified(c *gin.Context) {
	dev, err := h.verification.GrantVerified(middleware.Developer(c), c.Param("id"))
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.Success(c, respond.ToDeveloperResponse(dev))
}

// SetRole grant or revoke an admin role
// @Summary Set admin role
// @Description ADMIN only; role is ADMIN, MODERATOR or none
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "developer id"
// @Param request body RoleRequest true "role"
// @Success 200 {object} respond.Response{data=respond.DeveloperResponse}
// @Router /api/v1/admin/developers/{id}/role [post]
func (h *AdminHandler) SetRole(c *gin.Context) {
	var req RoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.InvalidParam(c, "invalid request: "+err.Error())
		return
	}
	role, ok := model.ParseAdminRole(req.Role)
	if !ok {
		respond.InvalidParam(c, "unknown role "+req.Role)
		return
	}
	dev, err := h.verification.SetRole(middleware.Developer(c), c.Param("id"), role)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.Success(c, respond.ToDeveloperResponse(dev))
}
