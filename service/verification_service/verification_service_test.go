package verification_service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"mini-app-service/common"
	"mini-app-service/database"
	"mini-app-service/fetcher"
	model "mini-app-service/models"
	"mini-app-service/models/dao"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc  *VerificationService
	site *httptest.Server

	mu        sync.Mutex
	published string
	status    int
	now       time.Time
}

func newFixture(t *testing.T, opts Options) *fixture {
	t.Helper()
	db, err := database.NewPebbleDatabase(&database.PebbleConfig{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &fixture{status: http.StatusOK, now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	f.site = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		if r.URL.Path != DefaultChallengePath {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(f.status)
		w.Write([]byte(f.published))
	}))
	t.Cleanup(f.site.Close)

	opts.AllowHTTP = true
	opts.Now = func() time.Time {
		f.mu.Lock()
		defer f.mu.Unlock()
		return f.now
	}
	client := fetcher.NewClient(fetcher.Options{Timeout: time.Second, AllowPrivateNetworks: true})
	f.svc = NewVerificationService(dao.NewDeveloperDAO(db), client, opts)
	return f
}

func (f *fixture) publish(status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = status
	f.published = body
}

func (f *fixture) advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func testKey(t *testing.T) (*btcec.PrivateKey, string) {
	t.Helper()
	key, _ := btcec.PrivKeyFromBytes([]byte("0123456789abcdef0123456789abcdef"))
	return key, common.PubKeyToAddress(key.PubKey())
}

// signedProof issues a wallet challenge for dev and answers it with key
func (f *fixture) signedProof(t *testing.T, dev *model.Developer, key *btcec.PrivateKey, address string) WalletProof {
	t.Helper()
	inst, err := f.svc.StartWalletChallenge(dev)
	require.NoError(t, err)
	sig, err := common.SignPersonalMessage(key, inst.Message)
	require.NoError(t, err)
	return WalletProof{Address: address, Message: inst.Message, Signature: sig}
}

func TestEnsureDeveloperIsLazyAndUnique(t *testing.T) {
	f := newFixture(t, Options{AdminIdentities: []string{"FID:1"}})

	dev, err := f.svc.EnsureDeveloper("fid:1")
	require.NoError(t, err)
	assert.Equal(t, "fid:1", dev.IdentityKey)
	assert.Equal(t, model.RoleAdmin, dev.AdminRole)
	assert.Equal(t, model.VerificationUnverified, dev.VerificationStatus)

	again, err := f.svc.EnsureDeveloper("FID:1")
	require.NoError(t, err)
	assert.Equal(t, dev.ID, again.ID)

	_, err = f.svc.EnsureDeveloper("")
	assert.True(t, errors.Is(err, common.ErrUnauthenticated))
}

func TestEnsureDeveloperConcurrent(t *testing.T) {
	f := newFixture(t, Options{})

	ids := make(chan string, 8)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			dev, err := f.svc.EnsureDeveloper("fid:42")
			if assert.NoError(t, err) {
				ids <- dev.ID
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		seen[id] = true
	}
	assert.Len(t, seen, 1)
}

func TestProveWallet(t *testing.T) {
	f := newFixture(t, Options{})
	key, addr := testKey(t)

	dev, err := f.svc.EnsureDeveloper(addr)
	require.NoError(t, err)

	once, err := f.svc.ProveWallet(dev, f.signedProof(t, dev, key, addr))
	require.NoError(t, err)
	assert.Equal(t, model.VerificationWalletVerified, once.VerificationStatus)
	assert.False(t, once.Verified)

	twice, err := f.svc.ProveWallet(dev, f.signedProof(t, dev, key, addr))
	require.NoError(t, err)
	assert.Equal(t, once.VerificationStatus, twice.VerificationStatus)
	assert.Equal(t, once.Verified, twice.Verified)
}

func TestProveWalletRejectsOtherSigner(t *testing.T) {
	f := newFixture(t, Options{})
	key, addr := testKey(t)

	other, err := f.svc.EnsureDeveloper("0x00000000000000000000000000000000000000aa")
	require.NoError(t, err)

	_, err = f.svc.ProveWallet(other, f.signedProof(t, other, key, addr))
	assert.True(t, errors.Is(err, common.ErrInvalidSignature))

	// the proof claims an address the signature does not recover to
	proof := f.signedProof(t, other, key, addr)
	proof.Address = "0x00000000000000000000000000000000000000aa"
	_, err = f.svc.ProveWallet(other, proof)
	assert.True(t, errors.Is(err, common.ErrInvalidSignature))

	stored, err := f.svc.GetDeveloper(other.ID)
	require.NoError(t, err)
	assert.False(t, stored.WalletVerified)
}

func TestProveWalletLinksExternalIdentity(t *testing.T) {
	f := newFixture(t, Options{})
	key, addr := testKey(t)

	dev, err := f.svc.EnsureDeveloper("fid:7")
	require.NoError(t, err)
	assert.Empty(t, dev.WalletAddress)

	linked, err := f.svc.ProveWallet(dev, f.signedProof(t, dev, key, addr))
	require.NoError(t, err)
	assert.Equal(t, addr, linked.WalletAddress)

	otherKey, _ := btcec.PrivKeyFromBytes([]byte("fedcba9876543210fedcba9876543210"))
	otherAddr := common.PubKeyToAddress(otherKey.PubKey())
	_, err = f.svc.ProveWallet(dev, f.signedProof(t, dev, otherKey, otherAddr))
	assert.True(t, errors.Is(err, common.ErrConflict))
}

func TestProveWalletRequiresIssuedChallenge(t *testing.T) {
	f := newFixture(t, Options{})
	key, addr := testKey(t)

	dev, err := f.svc.EnsureDeveloper("fid:777")
	require.NoError(t, err)

	// a signature published elsewhere over unrelated text
	sig, err := common.SignPersonalMessage(key, "gm")
	require.NoError(t, err)
	_, err = f.svc.ProveWallet(dev, WalletProof{Address: addr, Message: "gm", Signature: sig})
	assert.True(t, errors.Is(err, common.ErrChallengeNotFound))

	// once a challenge exists, only its exact message is accepted
	_, err = f.svc.StartWalletChallenge(dev)
	require.NoError(t, err)
	_, err = f.svc.ProveWallet(dev, WalletProof{Address: addr, Message: "gm", Signature: sig})
	assert.True(t, errors.Is(err, common.ErrInvalidSignature))

	// a message answering another identity's nonce does not transfer
	victim, err := f.svc.EnsureDeveloper(addr)
	require.NoError(t, err)
	victimProof := f.signedProof(t, victim, key, addr)
	_, err = f.svc.ProveWallet(dev, victimProof)
	assert.True(t, errors.Is(err, common.ErrInvalidSignature))

	stored, err := f.svc.GetDeveloper(dev.ID)
	require.NoError(t, err)
	assert.False(t, stored.WalletVerified)
	assert.Empty(t, stored.WalletAddress)
}

func TestWalletChallengeIsSingleUse(t *testing.T) {
	f := newFixture(t, Options{})
	key, addr := testKey(t)

	dev, err := f.svc.EnsureDeveloper(addr)
	require.NoError(t, err)
	proof := f.signedProof(t, dev, key, addr)
	assert.Contains(t, proof.Message, addr)

	_, err = f.svc.ProveWallet(dev, proof)
	require.NoError(t, err)

	_, err = f.svc.ProveWallet(dev, proof)
	assert.True(t, errors.Is(err, common.ErrChallengeNotFound))
}

func TestWalletChallengeRestartInvalidatesOldNonce(t *testing.T) {
	f := newFixture(t, Options{})
	key, addr := testKey(t)

	dev, err := f.svc.EnsureDeveloper(addr)
	require.NoError(t, err)
	stale := f.signedProof(t, dev, key, addr)
	_, err = f.svc.StartWalletChallenge(dev)
	require.NoError(t, err)

	_, err = f.svc.ProveWallet(dev, stale)
	assert.True(t, errors.Is(err, common.ErrInvalidSignature))
}

func TestWalletChallengeExpires(t *testing.T) {
	f := newFixture(t, Options{WalletChallengeTTL: time.Minute})
	key, addr := testKey(t)

	dev, err := f.svc.EnsureDeveloper(addr)
	require.NoError(t, err)
	proof := f.signedProof(t, dev, key, addr)
	f.advance(2 * time.Minute)

	_, err = f.svc.ProveWallet(dev, proof)
	assert.True(t, errors.Is(err, common.ErrChallengeExpired))

	stored, err := f.svc.GetDeveloper(dev.ID)
	require.NoError(t, err)
	assert.False(t, stored.WalletChallenge.Pending())
	assert.False(t, stored.WalletVerified)
}

func TestProveTrustedWallet(t *testing.T) {
	f := newFixture(t, Options{})
	_, addr := testKey(t)

	dev, err := f.svc.EnsureDeveloper(addr)
	require.NoError(t, err)
	dev, err = f.svc.ProveTrustedWallet(dev)
	require.NoError(t, err)
	assert.True(t, dev.WalletVerified)

	ext, err := f.svc.EnsureDeveloper("fid:9")
	require.NoError(t, err)
	_, err = f.svc.ProveTrustedWallet(ext)
	assert.True(t, errors.Is(err, common.ErrMalformedInput))
}

func TestConfirmBeforePublishIsContentMismatch(t *testing.T) {
	f := newFixture(t, Options{})

	dev, err := f.svc.EnsureDeveloper("fid:3")
	require.NoError(t, err)
	inst, err := f.svc.StartChallenge(dev, f.site.URL)
	require.NoError(t, err)
	assert.Len(t, inst.Token, 64)
	assert.Equal(t, f.site.URL+DefaultChallengePath, inst.URL)

	f.publish(http.StatusNotFound, "")
	_, err = f.svc.ConfirmChallenge(context.Background(), dev)
	assert.True(t, errors.Is(err, common.ErrContentMismatch))

	f.publish(http.StatusOK, "some other token")
	_, err = f.svc.ConfirmChallenge(context.Background(), dev)
	assert.True(t, errors.Is(err, common.ErrContentMismatch))

	stored, err := f.svc.GetDeveloper(dev.ID)
	require.NoError(t, err)
	assert.Equal(t, model.VerificationUnverified, stored.VerificationStatus)
	assert.True(t, stored.DomainChallenge.Pending())
}

func TestConfirmChallengeSucceedsOnce(t *testing.T) {
	f := newFixture(t, Options{})

	dev, err := f.svc.EnsureDeveloper("fid:3")
	require.NoError(t, err)
	inst, err := f.svc.StartChallenge(dev, f.site.URL)
	require.NoError(t, err)

	f.publish(http.StatusOK, "  "+inst.Token+"\n")
	confirmed, err := f.svc.ConfirmChallenge(context.Background(), dev)
	require.NoError(t, err)
	assert.True(t, confirmed.DomainVerified)
	assert.Equal(t, "127.0.0.1", confirmed.VerifiedDomain)
	assert.Equal(t, model.VerificationDomainVerified, confirmed.VerificationStatus)
	assert.False(t, confirmed.DomainChallenge.Pending())

	_, err = f.svc.ConfirmChallenge(context.Background(), dev)
	assert.True(t, errors.Is(err, common.ErrChallengeNotFound))
}

func TestRestartedChallengeInvalidatesOldToken(t *testing.T) {
	f := newFixture(t, Options{})

	dev, err := f.svc.EnsureDeveloper("fid:3")
	require.NoError(t, err)
	first, err := f.svc.StartChallenge(dev, f.site.URL)
	require.NoError(t, err)
	second, err := f.svc.StartChallenge(dev, f.site.URL)
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, second.Token)

	f.publish(http.StatusOK, first.Token)
	_, err = f.svc.ConfirmChallenge(context.Background(), dev)
	assert.True(t, errors.Is(err, common.ErrContentMismatch))

	f.publish(http.StatusOK, second.Token)
	_, err = f.svc.ConfirmChallenge(context.Background(), dev)
	assert.NoError(t, err)
}

func TestConfirmWithoutChallenge(t *testing.T) {
	f := newFixture(t, Options{})
	dev, err := f.svc.EnsureDeveloper("fid:3")
	require.NoError(t, err)

	_, err = f.svc.ConfirmChallenge(context.Background(), dev)
	assert.True(t, errors.Is(err, common.ErrChallengeNotFound))
}

func TestExpiredChallengeIsCleared(t *testing.T) {
	f := newFixture(t, Options{ChallengeTTL: time.Hour})
	dev, err := f.svc.EnsureDeveloper("fid:3")
	require.NoError(t, err)
	inst, err := f.svc.StartChallenge(dev, f.site.URL)
	require.NoError(t, err)

	f.publish(http.StatusOK, inst.Token)
	f.advance(2 * time.Hour)

	_, err = f.svc.ConfirmChallenge(context.Background(), dev)
	assert.True(t, errors.Is(err, common.ErrChallengeExpired))

	_, err = f.svc.ConfirmChallenge(context.Background(), dev)
	assert.True(t, errors.Is(err, common.ErrChallengeNotFound))
}

func TestConfirmUnreachableIsFetchFailed(t *testing.T) {
	f := newFixture(t, Options{})
	dev, err := f.svc.EnsureDeveloper("fid:3")
	require.NoError(t, err)
	_, err = f.svc.StartChallenge(dev, "http://127.0.0.1:1")
	require.NoError(t, err)

	_, err = f.svc.ConfirmChallenge(context.Background(), dev)
	assert.True(t, errors.Is(err, common.ErrFetchFailed))
}

func TestStartChallengeRejectsMalformedDomain(t *testing.T) {
	f := newFixture(t, Options{})
	dev, err := f.svc.EnsureDeveloper("fid:3")
	require.NoError(t, err)

	_, err = f.svc.StartChallenge(dev, "ftp://x.example")
	assert.True(t, errors.Is(err, common.ErrMalformedInput))
}

func TestDomainThenWalletIsVerified(t *testing.T) {
	f := newFixture(t, Options{})
	key, addr := testKey(t)

	dev, err := f.svc.EnsureDeveloper(addr)
	require.NoError(t, err)
	inst, err := f.svc.StartChallenge(dev, f.site.URL)
	require.NoError(t, err)
	f.publish(http.StatusOK, inst.Token)
	_, err = f.svc.ConfirmChallenge(context.Background(), dev)
	require.NoError(t, err)

	dev, err = f.svc.ProveWallet(dev, f.signedProof(t, dev, key, addr))
	require.NoError(t, err)
	assert.Equal(t, model.VerificationVerified, dev.VerificationStatus)
	assert.True(t, dev.Verified)
}

func TestAdminGrants(t *testing.T) {
	f := newFixture(t, Options{AdminIdentities: []string{"fid:1"}, ModeratorIdentities: []string{"fid:2"}})

	admin, err := f.svc.EnsureDeveloper("fid:1")
	require.NoError(t, err)
	mod, err := f.svc.EnsureDeveloper("fid:2")
	require.NoError(t, err)
	dev, err := f.svc.EnsureDeveloper("fid:3")
	require.NoError(t, err)

	_, err = f.svc.GrantVerified(dev, mod.ID)
	assert.True(t, errors.Is(err, common.ErrForbidden))

	granted, err := f.svc.GrantVerified(mod, dev.ID)
	require.NoError(t, err)
	assert.True(t, granted.Verified)
	assert.True(t, granted.VerifiedByAdmin)
	assert.Equal(t, "fid:2", granted.VerifiedGrantedBy)

	_, err = f.svc.SetRole(mod, dev.ID, model.RoleAdmin)
	assert.True(t, errors.Is(err, common.ErrForbidden))

	promoted, err := f.svc.SetRole(admin, dev.ID, model.RoleModerator)
	require.NoError(t, err)
	assert.Equal(t, model.RoleModerator, promoted.AdminRole)

	_, err = f.svc.SetRole(admin, "missing", model.RoleModerator)
	assert.True(t, errors.Is(err, common.ErrNotFound))
}

// restartingFetcher answers with the token it was armed with, restarting the
// challenge before it returns
type restartingFetcher struct {
	svc     *VerificationService
	dev     *model.Developer
	body    string
	next    *ChallengeInstructions
	nextErr error
}

func (r *restartingFetcher) FetchText(ctx context.Context, target string) (string, int, error) {
	r.next, r.nextErr = r.svc.StartChallenge(r.dev, "https://x.example")
	return r.body, http.StatusOK, nil
}

func TestConfirmLosesToConcurrentRestart(t *testing.T) {
	db, err := database.NewPebbleDatabase(&database.PebbleConfig{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	fetch := &restartingFetcher{}
	svc := NewVerificationService(dao.NewDeveloperDAO(db), fetch, Options{})
	fetch.svc = svc

	dev, err := svc.EnsureDeveloper("fid:5")
	require.NoError(t, err)
	first, err := svc.StartChallenge(dev, "https://x.example")
	require.NoError(t, err)
	fetch.dev = dev
	fetch.body = first.Token

	_, err = svc.ConfirmChallenge(context.Background(), dev)
	assert.True(t, errors.Is(err, common.ErrChallengeNotFound))
	require.NoError(t, fetch.nextErr)
	require.NotNil(t, fetch.next)

	stored, err := svc.GetDeveloper(dev.ID)
	require.NoError(t, err)
	assert.False(t, stored.DomainVerified)
	assert.Equal(t, model.VerificationUnverified, stored.VerificationStatus)
	assert.Equal(t, fetch.next.Token, stored.DomainChallenge.Token)
	assert.NotEqual(t, first.Token, stored.DomainChallenge.Token)
}
