package verification_service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"mini-app-service/common"
	"mini-app-service/database"
	"mini-app-service/manifest"
	"mini-app-service/metrics"
	model "mini-app-service/models"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultChallengePath      = "/.well-known/miniapp-verification.txt"
	DefaultWalletChallengeTTL = 15 * time.Minute
	DefaultChallengeTTL       = 24 * time.Hour

	tokenBytes = 32
)

// DeveloperStore developer persistence used by the service (models/dao.DeveloperDAO)
type DeveloperStore interface {
	Create(dev *model.Developer) error
	GetByID(id string) (*model.Developer, error)
	GetByIdentity(identityKey string) (*model.Developer, error)
	Update(id string, fn func(dev *model.Developer) error) (*model.Developer, error)
}

// TextFetcher fetches the published challenge file (fetcher.Client)
type TextFetcher interface {
	FetchText(ctx context.Context, target string) (string, int, error)
}

// Options verification settings
type Options struct {
	ChallengePath       string
	ChallengeTTL        time.Duration
	WalletChallengeTTL  time.Duration
	AllowHTTP           bool
	AdminIdentities     []string
	ModeratorIdentities []string

	// Now clock override for tests
	Now func() time.Time
}

// VerificationService developer verification state machine
type VerificationService struct {
	developers DeveloperStore
	fetcher    TextFetcher
	opts       Options
	bootstrap  map[string]model.AdminRole
}

// NewVerificationService create verification service
func NewVerificationService(developers DeveloperStore, fetcher TextFetcher, opts Options) *VerificationService {
	if opts.ChallengePath == "" {
		opts.ChallengePath = DefaultChallengePath
	}
	if !strings.HasPrefix(opts.ChallengePath, "/") {
		opts.ChallengePath = "/" + opts.ChallengePath
	}
	if opts.ChallengeTTL == 0 {
		opts.ChallengeTTL = DefaultChallengeTTL
	}
	if opts.WalletChallengeTTL == 0 {
		opts.WalletChallengeTTL = DefaultWalletChallengeTTL
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	bootstrap := make(map[string]model.AdminRole)
	for _, id := range opts.ModeratorIdentities {
		if key, err := common.NormalizeIdentity(id); err == nil {
			bootstrap[key] = model.RoleModerator
		}
	}
	for _, id := range opts.AdminIdentities {
		if key, err := common.NormalizeIdentity(id); err == nil {
			bootstrap[key] = model.RoleAdmin
		}
	}

	return &VerificationService{
		developers: developers,
		fetcher:    fetcher,
		opts:       opts,
		bootstrap:  bootstrap,
	}
}

// ChallengeInstructions what the developer has to publish to prove a domain
type ChallengeInstructions struct {
	Domain    string    `json:"domain"`
	Token     string    `json:"token"`
	Path      string    `json:"path"`
	URL       string    `json:"url"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// WalletChallengeInstructions what the wallet has to sign
type WalletChallengeInstructions struct {
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// WalletProof signed message proving control of a wallet
type WalletProof struct {
	Address   string `json:"address" binding:"required"`
	Message   string `json:"message" binding:"required"`
	Signature string `json:"signature" binding:"required"`
}

// Present reports whether any proof field was supplied
func (p WalletProof) Present() bool {
	return p.Address != "" || p.Message != "" || p.Signature != ""
}

// EnsureDeveloper get the developer for an identity, creating it on first use.
func (s *VerificationService) EnsureDeveloper(identity string) (*model.Developer, error) {
	key, err := common.NormalizeIdentity(identity)
	if err != nil {
		return nil, err
	}

	dev, err := s.developers.GetByIdentity(key)
	if err == nil {
		return dev, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}

	now := s.opts.Now()
	dev = &model.Developer{
		ID:          uuid.NewString(),
		IdentityKey: key,
		AdminRole:   s.bootstrap[key],
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if common.IsWalletAddress(key) {
		dev.WalletAddress = key
	}
	dev.Recompute()

	if err := s.developers.Create(dev); err != nil {
		if errors.Is(err, database.ErrAlreadyExists) {
			// lost a concurrent first-request race
			return s.developers.GetByIdentity(key)
		}
		return nil, err
	}
	log.Info().Str("developer_id", dev.ID).Str("identity", key).Str("role", string(dev.AdminRole)).Msg("developer created")
	return dev, nil
}

// GetDeveloper get developer by id
func (s *VerificationService) GetDeveloper(id string) (*model.Developer, error) {
	return s.developers.GetByID(id)
}

// StartWalletChallenge issue a single-use nonce for a wallet proof, replacing any
// outstanding one. The wallet must sign Message exactly.
func (s *VerificationService) StartWalletChallenge(dev *model.Developer) (*WalletChallengeInstructions, error) {
	nonce, err := newToken()
	if err != nil {
		return nil, errors.Wrap(err, "generate wallet nonce")
	}
	issuedAt := s.opts.Now()

	_, err = s.developers.Update(dev.ID, func(d *model.Developer) error {
		d.WalletChallenge = model.WalletChallenge{Nonce: nonce, IssuedAt: &issuedAt}
		d.UpdatedAt = issuedAt
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &WalletChallengeInstructions{
		Nonce:     nonce,
		Message:   model.WalletProofMessage(dev.IdentityKey, nonce),
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(s.opts.WalletChallengeTTL),
	}, nil
}

// ProveWallet verify a personal_sign proof over the outstanding wallet challenge
// and record the wallet fact. The nonce is consumed on success.
// Wallet identities must sign with their own address; external identities link
// the first proven wallet and reject a different one.
func (s *VerificationService) ProveWallet(dev *model.Developer, proof WalletProof) (*model.Developer, error) {
	address, err := common.NormalizeWalletAddress(proof.Address)
	if err != nil {
		return nil, err
	}
	if _, err := common.VerifySignature(address, proof.Message, proof.Signature); err != nil {
		return nil, err
	}

	current, err := s.developers.GetByID(dev.ID)
	if err != nil {
		return nil, err
	}
	challenge := current.WalletChallenge
	if !challenge.Pending() {
		return nil, errors.Wrap(common.ErrChallengeNotFound, "no wallet challenge issued")
	}
	if challenge.Expired(s.opts.Now(), s.opts.WalletChallengeTTL) {
		_, err := s.developers.Update(dev.ID, func(d *model.Developer) error {
			if d.WalletChallenge.Nonce == challenge.Nonce {
				d.WalletChallenge = model.WalletChallenge{}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return nil, common.ErrChallengeExpired
	}
	if proof.Message != model.WalletProofMessage(current.IdentityKey, challenge.Nonce) {
		return nil, errors.Wrap(common.ErrInvalidSignature, "message does not answer the issued wallet challenge")
	}

	updated, err := s.developers.Update(dev.ID, func(d *model.Developer) error {
		// consumed or replaced since it was checked
		if d.WalletChallenge.Nonce != challenge.Nonce {
			return errors.Wrap(common.ErrChallengeNotFound, "wallet challenge already used")
		}
		if common.IsWalletAddress(d.IdentityKey) {
			if d.IdentityKey != address {
				return errors.Wrap(common.ErrInvalidSignature, "signer is not the authenticated wallet")
			}
		} else if d.WalletAddress != "" && d.WalletAddress != address {
			return errors.Wrapf(common.ErrConflict, "identity already linked to %s", d.WalletAddress)
		}
		d.WalletChallenge = model.WalletChallenge{}
		d.MarkWalletVerified(address)
		d.UpdatedAt = s.opts.Now()
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.VerificationTransitionsTotal.WithLabelValues("wallet", string(updated.VerificationStatus)).Inc()
	log.Info().Str("developer_id", updated.ID).Str("wallet", address).Str("status", string(updated.VerificationStatus)).Msg("wallet proven")
	return updated, nil
}

// ProveTrustedWallet record the wallet fact for a wallet identity vouched for by
// the identity provider, no signature needed.
func (s *VerificationService) ProveTrustedWallet(dev *model.Developer) (*model.Developer, error) {
	if !common.IsWalletAddress(dev.IdentityKey) {
		return nil, common.Malformed("trusted wallet proof requires a wallet identity")
	}
	if dev.WalletVerified {
		return dev, nil
	}
	updated, err := s.developers.Update(dev.ID, func(d *model.Developer) error {
		d.MarkWalletVerified(d.IdentityKey)
		d.UpdatedAt = s.opts.Now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.VerificationTransitionsTotal.WithLabelValues("wallet", string(updated.VerificationStatus)).Inc()
	return updated, nil
}

// StartChallenge issue a fresh token for domain, replacing any pending challenge.
func (s *VerificationService) StartChallenge(dev *model.Developer, domain string) (*ChallengeInstructions, error) {
	origin, err := manifest.Origin(domain, s.opts.AllowHTTP)
	if err != nil {
		return nil, err
	}
	token, err := newToken()
	if err != nil {
		return nil, errors.Wrap(err, "generate challenge token")
	}
	issuedAt := s.opts.Now()

	_, err = s.developers.Update(dev.ID, func(d *model.Developer) error {
		d.DomainChallenge = model.DomainChallenge{
			Domain:   origin,
			Token:    token,
			IssuedAt: &issuedAt,
		}
		d.UpdatedAt = issuedAt
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("developer_id", dev.ID).Str("domain", origin).Msg("domain challenge started")
	return &ChallengeInstructions{
		Domain:    origin,
		Token:     token,
		Path:      s.opts.ChallengePath,
		URL:       origin + s.opts.ChallengePath,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(s.opts.ChallengeTTL),
	}, nil
}

// ConfirmChallenge fetch the published token and, when it matches, prove the
// domain fact. The challenge is consumed only if it is still the one that was checked.
func (s *VerificationService) ConfirmChallenge(ctx context.Context, dev *model.Developer) (*model.Developer, error) {
	current, err := s.developers.GetByID(dev.ID)
	if err != nil {
		return nil, err
	}
	challenge := current.DomainChallenge
	if !challenge.Pending() {
		return nil, common.ErrChallengeNotFound
	}

	if challenge.Expired(s.opts.Now(), s.opts.ChallengeTTL) {
		_, err := s.developers.Update(dev.ID, func(d *model.Developer) error {
			if d.DomainChallenge.Token == challenge.Token {
				d.DomainChallenge = model.DomainChallenge{}
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return nil, common.ErrChallengeExpired
	}

	target := challenge.Domain + s.opts.ChallengePath
	body, status, err := s.fetcher.FetchText(ctx, target)
	if err != nil {
		log.Warn().Err(err).Str("developer_id", dev.ID).Str("url", target).Msg("challenge fetch failed")
		return nil, errors.Wrap(common.ErrFetchFailed, err.Error())
	}
	if status < http.StatusOK || status >= http.StatusMultipleChoices || strings.TrimSpace(body) != challenge.Token {
		log.Info().Str("developer_id", dev.ID).Int("status", status).Str("url", target).Msg("challenge content mismatch")
		return nil, common.ErrContentMismatch
	}

	updated, err := s.developers.Update(dev.ID, func(d *model.Developer) error {
		// a newer challenge replaced the one we verified
		if d.DomainChallenge.Token != challenge.Token {
			return common.ErrChallengeNotFound
		}
		d.MarkDomainVerified(manifest.Host(challenge.Domain))
		d.UpdatedAt = s.opts.Now()
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.VerificationTransitionsTotal.WithLabelValues("domain", string(updated.VerificationStatus)).Inc()
	log.Info().Str("developer_id", updated.ID).Str("domain", updated.VerifiedDomain).Str("status", string(updated.VerificationStatus)).Msg("domain proven")
	return updated, nil
}

// GrantVerified out-of-band verification by staff, recorded for audit
func (s *VerificationService) GrantVerified(actor *model.Developer, developerID string) (*model.Developer, error) {
	if actor == nil || !actor.AdminRole.IsStaff() {
		return nil, common.ErrForbidden
	}
	updated, err := s.developers.Update(developerID, func(d *model.Developer) error {
		now := s.opts.Now()
		d.GrantVerified(actor.IdentityKey, now)
		d.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.VerificationTransitionsTotal.WithLabelValues("admin_grant", string(updated.VerificationStatus)).Inc()
	log.Info().Str("developer_id", developerID).Str("granted_by", actor.IdentityKey).Msg("verification granted")
	return updated, nil
}

// SetRole grant or revoke an admin role; ADMIN only
func (s *VerificationService) SetRole(actor *model.Developer, developerID string, role model.AdminRole) (*model.Developer, error) {
	if actor == nil || actor.AdminRole != model.RoleAdmin {
		return nil, common.ErrForbidden
	}
	updated, err := s.developers.Update(developerID, func(d *model.Developer) error {
		d.AdminRole = role
		d.UpdatedAt = s.opts.Now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Str("developer_id", developerID).Str("role", string(role)).Str("granted_by", actor.IdentityKey).Msg("role updated")
	return updated, nil
}

func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
