package models

import (
	"strings"
	"time"
)

// VerificationStatus developer verification state
type VerificationStatus string

const (
	VerificationUnverified     VerificationStatus = "unverified"
	VerificationWalletVerified VerificationStatus = "wallet_verified"
	VerificationDomainVerified VerificationStatus = "domain_verified"
	VerificationVerified       VerificationStatus = "verified"
)

// AdminRole out-of-band role grant
type AdminRole string

const (
	RoleNone      AdminRole = ""
	RoleModerator AdminRole = "MODERATOR"
	RoleAdmin     AdminRole = "ADMIN"
)

// ParseAdminRole accepts "", "none", "MODERATOR" and "ADMIN" (case-insensitive)
func ParseAdminRole(s string) (AdminRole, bool) {
	switch AdminRole(strings.ToUpper(strings.TrimSpace(s))) {
	case "", "NONE":
		return RoleNone, true
	case RoleModerator:
		return RoleModerator, true
	case RoleAdmin:
		return RoleAdmin, true
	}
	return RoleNone, false
}

// IsStaff admin or moderator
func (r AdminRole) IsStaff() bool {
	return r == RoleAdmin || r == RoleModerator
}

// DomainChallenge pending domain ownership challenge; Token empty means none
type DomainChallenge struct {
	Domain   string     `gorm:"column:challenge_domain;type:varchar(255)" json:"domain,omitempty"`
	Token    string     `gorm:"column:challenge_token;type:varchar(128)" json:"token,omitempty"`
	IssuedAt *time.Time `gorm:"column:challenge_issued_at" json:"issued_at,omitempty"`
}

// Pending reports whether a challenge is outstanding
func (c DomainChallenge) Pending() bool {
	return c.Token != ""
}

// Expired reports whether the challenge is older than ttl at now
func (c DomainChallenge) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 || c.IssuedAt == nil {
		return false
	}
	return now.Sub(*c.IssuedAt) > ttl
}

// WalletChallenge single-use nonce a wallet proof must sign; Nonce empty means none
type WalletChallenge struct {
	Nonce    string     `gorm:"column:wallet_nonce;type:varchar(128)" json:"nonce,omitempty"`
	IssuedAt *time.Time `gorm:"column:wallet_nonce_issued_at" json:"issued_at,omitempty"`
}

// Pending reports whether a nonce is outstanding
func (c WalletChallenge) Pending() bool {
	return c.Nonce != ""
}

// Expired reports whether the nonce is older than ttl at now
func (c WalletChallenge) Expired(now time.Time, ttl time.Duration) bool {
	if ttl <= 0 || c.IssuedAt == nil {
		return false
	}
	return now.Sub(*c.IssuedAt) > ttl
}

// WalletProofMessage the exact text a wallet signs to answer nonce for identityKey
func WalletProofMessage(identityKey, nonce string) string {
	return "Mini App Store wallet verification\nidentity: " + identityKey + "\nnonce: " + nonce
}

// Developer a submitting identity and its verification facts
type Developer struct {
	ID          string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	IdentityKey string `gorm:"uniqueIndex;type:varchar(128);not null" json:"identity_key"` // lower-case wallet or namespaced external id

	// WalletAddress proven (or identity) wallet used for manifest ownership checks
	WalletAddress string `gorm:"type:varchar(42);index" json:"wallet_address,omitempty"`

	// Verification facts
	WalletVerified     bool               `gorm:"not null;default:false" json:"wallet_verified"`
	DomainVerified     bool               `gorm:"not null;default:false" json:"domain_verified"`
	VerifiedDomain     string             `gorm:"type:varchar(255)" json:"verified_domain,omitempty"`
	VerificationStatus VerificationStatus `gorm:"type:varchar(20);not null;default:'unverified'" json:"verification_status"`
	Verified           bool               `gorm:"not null;default:false" json:"verified"`

	// Admin grant audit, distinct from algorithmic verification
	VerifiedByAdmin   bool       `gorm:"not null;default:false" json:"verified_by_admin"`
	VerifiedGrantedBy string     `gorm:"type:varchar(128)" json:"verified_granted_by,omitempty"`
	VerifiedGrantedAt *time.Time `json:"verified_granted_at,omitempty"`

	AdminRole AdminRole `gorm:"type:varchar(16)" json:"admin_role,omitempty"`

	DomainChallenge DomainChallenge `gorm:"embedded" json:"domain_challenge"`
	WalletChallenge WalletChallenge `gorm:"embedded" json:"wallet_challenge"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName specify table name
func (Developer) TableName() string {
	return "tb_developer"
}
