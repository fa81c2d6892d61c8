package models

import "time"

// AppStatus listing lifecycle status
type AppStatus string

const (
	AppStatusPending         AppStatus = "pending"
	AppStatusPendingContract AppStatus = "pending_contract"
	AppStatusPendingReview   AppStatus = "pending_review"
	AppStatusApproved        AppStatus = "approved"
	AppStatusRejected        AppStatus = "rejected"
)

// ParseAppStatus validate a status string
func ParseAppStatus(s string) (AppStatus, bool) {
	switch st := AppStatus(s); st {
	case AppStatusPending, AppStatusPendingContract, AppStatusPendingReview, AppStatusApproved, AppStatusRejected:
		return st, true
	}
	return "", false
}

// IsPending any of the three pending states
func (s AppStatus) IsPending() bool {
	return s == AppStatusPending || s == AppStatusPendingContract || s == AppStatusPendingReview
}

// App mini app listing, keyed by canonical url
type App struct {
	ID  string `gorm:"type:varchar(36);uniqueIndex;not null" json:"id"`
	URL string `gorm:"primaryKey;type:varchar(512)" json:"url"`

	// Listing metadata
	Name        string   `gorm:"type:varchar(255)" json:"name"`
	Description string   `gorm:"type:text" json:"description,omitempty"`
	IconURL     string   `gorm:"type:varchar(512)" json:"icon_url,omitempty"`
	Category    string   `gorm:"type:varchar(64)" json:"category,omitempty"`
	OgImage     string   `gorm:"type:varchar(512)" json:"og_image,omitempty"`
	Screenshots []string `gorm:"serializer:json" json:"screenshots,omitempty"`

	// Decision inputs and outcome
	Status           AppStatus `gorm:"type:varchar(20);index;not null" json:"status"`
	ContractAddress  string    `gorm:"type:varchar(42)" json:"contract_address,omitempty"`
	ContractVerified bool      `gorm:"not null;default:false" json:"contract_verified"`
	ReviewMessage    string    `gorm:"type:text" json:"review_message,omitempty"`
	ManifestSnapshot string    `gorm:"type:text" json:"manifest_snapshot,omitempty"`

	OwnerDeveloperID string `gorm:"type:varchar(36);index;not null" json:"owner_developer_id"`

	// Review audit
	ReviewedBy      string     `gorm:"type:varchar(128)" json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time `json:"reviewed_at,omitempty"`
	RejectionReason string     `gorm:"type:text" json:"rejection_reason,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specify table name
func (App) TableName() string {
	return "tb_app"
}
