package handler

import (
	"mini-app-service/controller/middleware"
	"mini-app-service/controller/respond"
	"mini-app-service/service/approval_service"
	"mini-app-service/service/points_service"
	"mini-app-service/service/verification_service"

	"github.com/gin-gonic/gin"
)

// DeveloperHandler current developer endpoints
type DeveloperHandler struct {
	verification *verification_service.VerificationService
	approval     *approval_service.ApprovalService
	points       *points_service.PointsService
}

// NewDeveloperHandler create developer handler
func NewDeveloperHandler(verification *verification_service.VerificationService, approval *approval_service.ApprovalService, points *points_service.PointsService) *DeveloperHandler {
	return &DeveloperHandler{
		verification: verification,
		approval:     approval,
		points:       points,
	}
}

// GetMe get the current developer
// @Summary Current developer
// @Description Returns the developer of the current identity, creating it on first use
// @Tags Developer
// @Produce json
// @Security BearerAuth
// @Success 200 {object} respond.Response{data=respond.DeveloperResponse}
// @Router /api/v1/developers/me [get]
func (h *DeveloperHandler) GetMe(c *gin.Context) {
	dev, err := h.verification.EnsureDeveloper(middleware.Identity(c))
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.Success(c, respond.ToDeveloperResponse(dev))
}

// StartWalletChallenge issue a wallet proof nonce
// @Summary Start wallet challenge
// @Description Issues a single-use nonce and the exact message the wallet must personal_sign; replaces any outstanding nonce
// @Tags Developer
// @Produce json
// @Security BearerAuth
// @Success 200 {object} respond.Response{data=respond.WalletChallengeResponse}
// @Router /api/v1/developers/me/wallet-challenge [post]
func (h *DeveloperHandler) StartWalletChallenge(c *gin.Context) {
	dev, err := h.verification.EnsureDeveloper(middleware.Identity(c))
	if err != nil {
		respond.FromError(c, err)
		return
	}
	inst, err := h.verification.StartWalletChallenge(dev)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.Success(c, respond.ToWalletChallengeResponse(inst))
}

// ProveWallet prove control of a wallet
// @Summary Wallet proof
// @Description Verifies an EIP-191 personal_sign signature over the issued wallet challenge message and records the wallet fact
// @Tags Developer
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body verification_service.WalletProof true "signed message"
// @Success 200 {object} respond.Response{data=respond.DeveloperResponse}
// @Router /api/v1/developers/me/wallet-proof [post]
func (h *DeveloperHandler) ProveWallet(c *gin.Context) {
	var req verification_service.WalletProof
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.InvalidParam(c, "invalid request: "+err.Error())
		return
	}
	dev, err := h.verification.EnsureDeveloper(middleware.Identity(c))
	if err != nil {
		respond.FromError(c, err)
		return
	}
	dev, err = h.verification.ProveWallet(dev, req)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.Success(c, respond.ToDeveloperResponse(dev))
}

// StartChallenge start a domain challenge
// @Summary Start domain challenge
// @Description Issues a token to publish at the well-known verification path of the domain; replaces any pending challenge
// @Tags Developer
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body DomainRequest true "domain"
// @Success 200 {object} respond.Response{data=respond.ChallengeResponse}
// @Router /api/v1/developers/me/domain-challenge [post]
func (h *DeveloperHandler) StartChallenge(c *gin.Context) {
	var req DomainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.InvalidParam(c, "invalid request: "+err.Error())
		return
	}
	dev, err := h.verification.EnsureDeveloper(middleware.Identity(c))
	if err != nil {
		respond.FromError(c, err)
		return
	}
	inst, err := h.verification.StartChallenge(dev, req.Domain)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.Success(c, respond.ToChallengeResponse(inst))
}

// ConfirmChallenge confirm the pending domain challenge
// @Summary Confirm domain challenge
// @Description Fetches the published token and proves the domain fact when it matches
// @Tags Developer
// @Produce json
// @Security BearerAuth
// @Success 200 {object} respond.Response{data=respond.DeveloperResponse}
// @Router /api/v1/developers/me/domain-challenge/confirm [post]
func (h *DeveloperHandler) ConfirmChallenge(c *gin.Context) {
	dev, err := h.verification.EnsureDeveloper(middleware.Identity(c))
	if err != nil {
		respond.FromError(c, err)
		return
	}
	dev, err = h.verification.ConfirmChallenge(c.Request.Context(), dev)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.Success(c, respond.ToDeveloperResponse(dev))
}

// ListMyApps list the current developer's apps
// @Summary My apps
// @Description Apps owned by the current developer, newest first
// @Tags Developer
// @Produce json
// @Security BearerAuth
// @Param cursor query int false "cursor" default(0)
// @Param size query int false "page size" default(20)
// @Success 200 {object} respond.Response{data=respond.AppListResponse}
// @Router /api/v1/developers/me/apps [get]
func (h *DeveloperHandler) ListMyApps(c *gin.Context) {
	cursor, size := pageParams(c)
	dev, err := h.verification.EnsureDeveloper(middleware.Identity(c))
	if err != nil {
		respond.FromError(c, err)
		return
	}
	apps, next, err := h.approval.ListDeveloperApps(dev.ID, cursor, size)
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.Success(c, respond.ToAppListResponse(apps, next, len(apps) == size))
}

// GetMyPoints ledger balance of the current identity
// @Summary My points
// @Tags Developer
// @Produce json
// @Security BearerAuth
// @Success 200 {object} respond.Response{data=respond.PointsResponse}
// @Router /api/v1/developers/me/points [get]
func (h *DeveloperHandler) GetMyPoints(c *gin.Context) {
	total, entries, err := h.points.Balance(middleware.Identity(c))
	if err != nil {
		respond.FromError(c, err)
		return
	}
	respond.Success(c, respond.ToPointsResponse(total, entries))
}
