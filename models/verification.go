package models

import "time"

// DeriveStatus maps the two verification facts onto a status.
// The mapping only depends on the set of proven facts, so proving them in any
// order, or repeatedly, lands on the same status.
func DeriveStatus(walletVerified, domainVerified bool) VerificationStatus {
	switch {
	case walletVerified && domainVerified:
		return VerificationVerified
	case walletVerified:
		return VerificationWalletVerified
	case domainVerified:
		return VerificationDomainVerified
	}
	return VerificationUnverified
}

// Recompute refreshes VerificationStatus and Verified from the stored facts.
// An admin grant forces verified.
func (d *Developer) Recompute() {
	if d.VerifiedByAdmin {
		d.VerificationStatus = VerificationVerified
		d.Verified = true
		return
	}
	d.VerificationStatus = DeriveStatus(d.WalletVerified, d.DomainVerified)
	d.Verified = d.VerificationStatus == VerificationVerified
}

// MarkWalletVerified records the wallet fact
func (d *Developer) MarkWalletVerified(wallet string) {
	d.WalletAddress = wallet
	d.WalletVerified = true
	d.Recompute()
}

// MarkDomainVerified records the domain fact and consumes the pending challenge
func (d *Developer) MarkDomainVerified(domain string) {
	d.DomainVerified = true
	d.VerifiedDomain = domain
	d.DomainChallenge = DomainChallenge{}
	d.Recompute()
}

// GrantVerified out-of-band verification by a staff member
func (d *Developer) GrantVerified(grantedBy string, at time.Time) {
	d.VerifiedByAdmin = true
	d.VerifiedGrantedBy = grantedBy
	d.VerifiedGrantedAt = &at
	d.Recompute()
}

// HasProvenWallet wallet fact proven with a known address
func (d *Developer) HasProvenWallet() bool {
	return d.WalletVerified && d.WalletAddress != ""
}
