package approval_service

import model "mini-app-service/models"

// DecisionInput everything the decision table looks at
type DecisionInput struct {
	Verified        bool
	AdminRole       model.AdminRole
	WalletProven    bool
	OwnsManifest    bool
	ContractAddress string
	ReviewMessage   string
}

// Decide evaluates the approval table; the first matching rule wins.
func Decide(in DecisionInput) model.AppStatus {
	switch {
	case in.Verified || in.AdminRole.IsStaff():
		return model.AppStatusApproved
	case in.WalletProven && in.OwnsManifest:
		return model.AppStatusApproved
	case in.ContractAddress != "":
		return model.AppStatusPendingContract
	case in.ReviewMessage != "":
		return model.AppStatusPendingReview
	}
	return model.AppStatusPending
}

// resolveStatus applies a fresh decision to a resubmitted listing. Approved is
// never downgraded, and states only staff can leave (pending_contract, rejected)
// are kept.
func resolveStatus(current, decided model.AppStatus) model.AppStatus {
	switch current {
	case model.AppStatusApproved, model.AppStatusPendingContract, model.AppStatusRejected:
		return current
	}
	return decided
}
