package approval_service

import (
	"context"
	"time"

	"mini-app-service/common"
	"mini-app-service/database"
	"mini-app-service/manifest"
	"mini-app-service/metrics"
	model "mini-app-service/models"
	"mini-app-service/service/points_service"
	"mini-app-service/service/verification_service"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const DefaultSubmissionPoints = 100

// AppStore app persistence (models/dao.AppDAO)
type AppStore interface {
	Create(app *model.App) error
	GetByURL(url string) (*model.App, error)
	Update(url string, fn func(app *model.App) error) (*model.App, error)
	ListByOwnerWithCursor(developerID string, cursor int64, size int) ([]*model.App, int64, error)
	ListByStatusWithCursor(status model.AppStatus, cursor int64, size int) ([]*model.App, int64, error)
	Count() (int64, error)
}

// ManifestFetcher remote manifest source (fetcher.Client)
type ManifestFetcher interface {
	FetchManifest(ctx context.Context, siteURL string) (*manifest.Manifest, error)
}

// DeveloperVerifier developer lookup and wallet proofs (verification_service.VerificationService)
type DeveloperVerifier interface {
	EnsureDeveloper(identity string) (*model.Developer, error)
	ProveWallet(dev *model.Developer, proof verification_service.WalletProof) (*model.Developer, error)
	ProveTrustedWallet(dev *model.Developer) (*model.Developer, error)
}

// PointsAwarder non-blocking point award (points_service.Awarder)
type PointsAwarder interface {
	Award(identity string, amount int64, reason, referenceID string)
}

// Options approval settings
type Options struct {
	DefaultOwner     string
	AllowHTTP        bool
	SubmissionPoints int64

	Now func() time.Time
}

// SubmissionRequest app submission; only url is required
type SubmissionRequest struct {
	URL             string   `json:"url" validate:"required,max=512"`
	Name            string   `json:"name,omitempty" validate:"max=255"`
	Description     string   `json:"description,omitempty" validate:"max=4000"`
	IconURL         string   `json:"icon_url,omitempty" validate:"omitempty,url,max=512"`
	Category        string   `json:"category,omitempty" validate:"max=64"`
	OgImage         string   `json:"og_image,omitempty" validate:"omitempty,url,max=512"`
	Screenshots     []string `json:"screenshots,omitempty" validate:"max=10,dive,url,max=512"`
	ContractAddress string   `json:"contract_address,omitempty" validate:"max=42"`
	ReviewMessage   string   `json:"review_message,omitempty" validate:"max=2000"`

	// optional inline wallet proof
	WalletAddress string `json:"wallet_address,omitempty"`
	Message       string `json:"message,omitempty" validate:"max=4096"`
	Signature     string `json:"signature,omitempty"`
}

func (r SubmissionRequest) walletProof() verification_service.WalletProof {
	return verification_service.WalletProof{Address: r.WalletAddress, Message: r.Message, Signature: r.Signature}
}

// SubmitResult outcome of a submission
type SubmitResult struct {
	App       *model.App       `json:"app"`
	Created   bool             `json:"created"`
	Developer *model.Developer `json:"developer"`
}

// ApprovalService app approval decision engine
type ApprovalService struct {
	apps     AppStore
	verifier DeveloperVerifier
	fetcher  ManifestFetcher
	awarder  PointsAwarder
	matcher  *manifest.Matcher
	validate *validator.Validate
	opts     Options
}

// NewApprovalService create approval service; awarder may be nil
func NewApprovalService(apps AppStore, verifier DeveloperVerifier, fetcher ManifestFetcher, awarder PointsAwarder, opts Options) *ApprovalService {
	if opts.SubmissionPoints == 0 {
		opts.SubmissionPoints = DefaultSubmissionPoints
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &ApprovalService{
		apps:     apps,
		verifier: verifier,
		fetcher:  fetcher,
		awarder:  awarder,
		matcher:  manifest.NewMatcher(opts.DefaultOwner),
		validate: validator.New(),
		opts:     opts,
	}
}

// DecideStatus runs the decision table for dev against a freshly fetched manifest (nil when unavailable)
func (s *ApprovalService) DecideStatus(dev *model.Developer, doc *manifest.Manifest, contractAddress, reviewMessage string) model.AppStatus {
	in := DecisionInput{
		Verified:        dev.Verified,
		AdminRole:       dev.AdminRole,
		WalletProven:    dev.HasProvenWallet(),
		ContractAddress: contractAddress,
		ReviewMessage:   reviewMessage,
	}
	if in.WalletProven {
		in.OwnsManifest = s.matcher.IsOwner(dev.WalletAddress, doc)
	}
	return Decide(in)
}

// Submit creates or updates the listing for req.URL on behalf of identity.
// walletTrusted is set by the identity provider only.
func (s *ApprovalService) Submit(ctx context.Context, identity string, walletTrusted bool, req SubmissionRequest) (*SubmitResult, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, common.Malformed("%s", err.Error())
	}
	url, err := manifest.CanonicalURL(req.URL, s.opts.AllowHTTP)
	if err != nil {
		return nil, err
	}
	contract, err := common.NormalizeContractAddress(req.ContractAddress)
	if err != nil {
		return nil, err
	}

	dev, err := s.verifier.EnsureDeveloper(identity)
	if err != nil {
		return nil, err
	}
	if proof := req.walletProof(); proof.Present() {
		if dev, err = s.verifier.ProveWallet(dev, proof); err != nil {
			return nil, err
		}
	} else if walletTrusted && common.IsWalletAddress(dev.IdentityKey) {
		if dev, err = s.verifier.ProveTrustedWallet(dev); err != nil {
			return nil, err
		}
	}

	// fail fast on a foreign url before going to the network
	existing, err := s.apps.GetByURL(url)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		return nil, err
	}
	if existing != nil && existing.OwnerDeveloperID != dev.ID {
		return nil, errors.Wrapf(common.ErrConflict, "%s is owned by another developer", url)
	}

	doc, err := s.fetcher.FetchManifest(ctx, url)
	if err != nil {
		log.Warn().Err(err).Str("developer_id", dev.ID).Str("url", url).Msg("manifest unavailable, ownership not proven")
		doc = nil
	}

	if existing == nil {
		app, err := s.create(dev, url, contract, doc, req)
		if err == nil {
			return &SubmitResult{App: app, Created: true, Developer: dev}, nil
		}
		if !errors.Is(err, database.ErrAlreadyExists) {
			return nil, err
		}
		// a concurrent first submission won the insert
	}

	app, err := s.update(dev, url, contract, doc, req)
	if err != nil {
		return nil, err
	}
	return &SubmitResult{App: app, Created: false, Developer: dev}, nil
}

func (s *ApprovalService) create(dev *model.Developer, url, contract string, doc *manifest.Manifest, req SubmissionRequest) (*model.App, error) {
	now := s.opts.Now()
	app := &model.App{
		ID:               uuid.NewString(),
		URL:              url,
		ContractAddress:  contract,
		ReviewMessage:    req.ReviewMessage,
		OwnerDeveloperID: dev.ID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	mergeListing(app, req, doc)
	app.Status = s.DecideStatus(dev, doc, app.ContractAddress, app.ReviewMessage)

	if err := s.apps.Create(app); err != nil {
		return nil, err
	}

	metrics.SubmissionsTotal.WithLabelValues(string(app.Status), "created").Inc()
	log.Info().Str("developer_id", dev.ID).Str("url", url).Str("status", string(app.Status)).Msg("app created")

	// award after the listing is stored; never fails the submission
	if s.awarder != nil {
		s.awarder.Award(dev.IdentityKey, s.opts.SubmissionPoints, points_service.ReasonAppSubmission, url)
	}
	return app, nil
}

func (s *ApprovalService) update(dev *model.Developer, url, contract string, doc *manifest.Manifest, req SubmissionRequest) (*model.App, error) {
	app, err := s.apps.Update(url, func(app *model.App) error {
		if app.OwnerDeveloperID != dev.ID {
			return errors.Wrapf(common.ErrConflict, "%s is owned by another developer", url)
		}
		if contract != "" {
			app.ContractAddress = contract
		}
		if req.ReviewMessage != "" {
			app.ReviewMessage = req.ReviewMessage
		}
		mergeListing(app, req, doc)

		status := resolveStatus(app.Status, s.DecideStatus(dev, doc, app.ContractAddress, app.ReviewMessage))
		if status != model.AppStatusRejected {
			app.RejectionReason = ""
		}
		app.Status = status
		app.UpdatedAt = s.opts.Now()
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.SubmissionsTotal.WithLabelValues(string(app.Status), "updated").Inc()
	log.Info().Str("developer_id", dev.ID).Str("url", url).Str("status", string(app.Status)).Msg("app updated")
	return app, nil
}

// mergeListing fills listing metadata: explicit fields first, then the manifest,
// then whatever the app already had. Name falls back to the url host.
func mergeListing(app *model.App, req SubmissionRequest, doc *manifest.Manifest) {
	var m manifest.Manifest
	if doc != nil {
		m = *doc
		app.ManifestSnapshot = doc.Snapshot()
	}
	app.Name = pick(req.Name, m.Name, app.Name)
	app.Description = pick(req.Description, m.Description, app.Description)
	app.IconURL = pick(req.IconURL, m.Icon, app.IconURL)
	app.Category = pick(req.Category, m.Category, app.Category)
	app.OgImage = pick(req.OgImage, m.OgImage, app.OgImage)
	switch {
	case len(req.Screenshots) > 0:
		app.Screenshots = req.Screenshots
	case len(m.Screenshots) > 0:
		app.Screenshots = m.Screenshots
	}
	if app.Name == "" {
		app.Name = manifest.Host(app.URL)
	}
}

func pick(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// ApproveContract approve a listing held for contract review: a pending_contract
// app, or a rejected one carrying an unverified contract.
func (s *ApprovalService) ApproveContract(actor *model.Developer, rawURL string) (*model.App, error) {
	return s.review(actor, rawURL, "contract_approval", func(app *model.App) error {
		reopened := app.Status == model.AppStatusRejected && app.ContractAddress != ""
		if app.Status != model.AppStatusPendingContract && !reopened {
			return errors.Wrapf(common.ErrInvalidTransition, "%s -> approved by contract review", app.Status)
		}
		app.ContractVerified = true
		app.Status = model.AppStatusApproved
		app.RejectionReason = ""
		return nil
	})
}

// Approve manually approve a pending_review, pending or rejected listing.
// Listings with an unverified contract go through ApproveContract.
func (s *ApprovalService) Approve(actor *model.Developer, rawURL string) (*model.App, error) {
	return s.review(actor, rawURL, "approve", func(app *model.App) error {
		switch app.Status {
		case model.AppStatusPending, model.AppStatusPendingReview, model.AppStatusRejected:
		default:
			return errors.Wrapf(common.ErrInvalidTransition, "%s -> approved", app.Status)
		}
		if app.ContractAddress != "" && !app.ContractVerified {
			return errors.Wrap(common.ErrInvalidTransition, "contract not verified, use contract approval")
		}
		app.Status = model.AppStatusApproved
		app.RejectionReason = ""
		return nil
	})
}

// Reject reject a listing with a reason
func (s *ApprovalService) Reject(actor *model.Developer, rawURL, reason string) (*model.App, error) {
	if reason == "" {
		return nil, common.Malformed("rejection reason is required")
	}
	return s.review(actor, rawURL, "reject", func(app *model.App) error {
		if app.Status == model.AppStatusRejected {
			return errors.Wrapf(common.ErrInvalidTransition, "%s -> rejected", app.Status)
		}
		app.Status = model.AppStatusRejected
		app.RejectionReason = reason
		return nil
	})
}

func (s *ApprovalService) review(actor *model.Developer, rawURL, action string, fn func(app *model.App) error) (*model.App, error) {
	if actor == nil || !actor.AdminRole.IsStaff() {
		return nil, common.ErrForbidden
	}
	url, err := manifest.CanonicalURL(rawURL, s.opts.AllowHTTP)
	if err != nil {
		return nil, err
	}
	app, err := s.apps.Update(url, func(app *model.App) error {
		if err := fn(app); err != nil {
			return err
		}
		now := s.opts.Now()
		app.ReviewedBy = actor.IdentityKey
		app.ReviewedAt = &now
		app.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, err
	}
	metrics.SubmissionsTotal.WithLabelValues(string(app.Status), action).Inc()
	log.Info().Str("url", url).Str("action", action).Str("reviewed_by", actor.IdentityKey).Str("status", string(app.Status)).Msg("app reviewed")
	return app, nil
}

// GetApp get listing by url (canonicalised)
func (s *ApprovalService) GetApp(rawURL string) (*model.App, error) {
	url, err := manifest.CanonicalURL(rawURL, s.opts.AllowHTTP)
	if err != nil {
		return nil, err
	}
	return s.apps.GetByURL(url)
}

// ListDeveloperApps listings owned by a developer, newest first
func (s *ApprovalService) ListDeveloperApps(developerID string, cursor int64, size int) ([]*model.App, int64, error) {
	return s.apps.ListByOwnerWithCursor(developerID, cursor, size)
}

// ReviewQueue listings in a status, oldest first; staff only
func (s *ApprovalService) ReviewQueue(actor *model.Developer, status model.AppStatus, cursor int64, size int) ([]*model.App, int64, error) {
	if actor == nil || !actor.AdminRole.IsStaff() {
		return nil, 0, common.ErrForbidden
	}
	return s.apps.ListByStatusWithCursor(status, cursor, size)
}

// CountApps total listings
func (s *ApprovalService) CountApps() (int64, error) {
	return s.apps.Count()
}
