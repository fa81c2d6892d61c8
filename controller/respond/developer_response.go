package respond

import (
	model "mini-app-service/models"
	"mini-app-service/service/verification_service"
)

// DeveloperResponse developer response structure
type DeveloperResponse struct {
	ID                 string                   `json:"id"`
	IdentityKey        string                   `json:"identity_key" example:"fid:1234"`
	WalletAddress      string                   `json:"wallet_address,omitempty"`
	WalletVerified     bool                     `json:"wallet_verified"`
	DomainVerified     bool                     `json:"domain_verified"`
	VerifiedDomain     string                   `json:"verified_domain,omitempty" example:"x.example"`
	VerificationStatus model.VerificationStatus `json:"verification_status" example:"wallet_verified"`
	Verified           bool                     `json:"verified"`
	VerifiedByAdmin    bool                     `json:"verified_by_admin"`
	AdminRole          model.AdminRole          `json:"admin_role,omitempty"`
	PendingDomain      string                   `json:"pending_domain,omitempty"`
	CreatedAt          int64                    `json:"created_at" example:"1699999999"`
}

// ToDeveloperResponse convert developer to response structure; the challenge token is never echoed
func ToDeveloperResponse(dev *model.Developer) DeveloperResponse {
	if dev == nil {
		return DeveloperResponse{}
	}
	resp := DeveloperResponse{
		ID:                 dev.ID,
		IdentityKey:        dev.IdentityKey,
		WalletAddress:      dev.WalletAddress,
		WalletVerified:     dev.WalletVerified,
		DomainVerified:     dev.DomainVerified,
		VerifiedDomain:     dev.VerifiedDomain,
		VerificationStatus: dev.VerificationStatus,
		Verified:           dev.Verified,
		VerifiedByAdmin:    dev.VerifiedByAdmin,
		AdminRole:          dev.AdminRole,
		CreatedAt:          dev.CreatedAt.Unix(),
	}
	if dev.DomainChallenge.Pending() {
		resp.PendingDomain = dev.DomainChallenge.Domain
	}
	return resp
}

// ChallengeResponse domain challenge publishing instructions
type ChallengeResponse struct {
	Domain    string `json:"domain" example:"https://x.example"`
	Token     string `json:"token"`
	Path      string `json:"path" example:"/.well-known/miniapp-verification.txt"`
	URL       string `json:"url" example:"https://x.example/.well-known/miniapp-verification.txt"`
	ExpiresAt int64  `json:"expires_at" example:"1699999999"`
}

// ToChallengeResponse convert challenge instructions to response structure
func ToChallengeResponse(inst *verification_service.ChallengeInstructions) ChallengeResponse {
	return ChallengeResponse{
		Domain:    inst.Domain,
		Token:     inst.Token,
		Path:      inst.Path,
		URL:       inst.URL,
		ExpiresAt: inst.ExpiresAt.Unix(),
	}
}

// WalletChallengeResponse message the wallet has to personal_sign
type WalletChallengeResponse struct {
	Nonce     string `json:"nonce"`
	Message   string `json:"message"`
	ExpiresAt int64  `json:"expires_at" example:"1699999999"`
}

// ToWalletChallengeResponse convert wallet challenge instructions to response structure
func ToWalletChallengeResponse(inst *verification_service.WalletChallengeInstructions) WalletChallengeResponse {
	return WalletChallengeResponse{
		Nonce:     inst.Nonce,
		Message:   inst.Message,
		ExpiresAt: inst.ExpiresAt.Unix(),
	}
}

// PointsEntryResponse ledger entry
type PointsEntryResponse struct {
	Amount      int64  `json:"amount" example:"100"`
	Reason      string `json:"reason" example:"app_submission"`
	ReferenceID string `json:"reference_id" example:"https://x.example"`
	CreatedAt   int64  `json:"created_at" example:"1699999999"`
}

// PointsResponse ledger balance
type PointsResponse struct {
	Total   int64                 `json:"total" example:"200"`
	Entries []PointsEntryResponse `json:"entries"`
}

// ToPointsResponse convert ledger entries to response structure
func ToPointsResponse(total int64, entries []*model.PointsEntry) PointsResponse {
	result := make([]PointsEntryResponse, 0, len(entries))
	for _, e := range entries {
		result = append(result, PointsEntryResponse{
			Amount:      e.Amount,
			Reason:      e.Reason,
			ReferenceID: e.ReferenceID,
			CreatedAt:   e.CreatedAt.Unix(),
		})
	}
	return PointsResponse{Total: total, Entries: result}
}
