package controller

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"mini-app-service/common"
	"mini-app-service/controller/middleware"
	"mini-app-service/controller/respond"
	"mini-app-service/database"
	"mini-app-service/fetcher"
	model "mini-app-service/models"
	"mini-app-service/models/dao"
	"mini-app-service/service/approval_service"
	"mini-app-service/service/points_service"
	"mini-app-service/service/verification_service"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "router-test-secret"

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	router *gin.Engine
	site   *httptest.Server

	mu       sync.Mutex
	manifest string
}

func (ts *testServer) serveManifest(body string) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.manifest = body
}

func newTestServer(t *testing.T, limiter *middleware.RateLimiter) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.NewPebbleDatabase(&database.PebbleConfig{DataDir: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ts := &testServer{}
	ts.site = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.mu.Lock()
		body := ts.manifest
		ts.mu.Unlock()
		if r.URL.Path == fetcher.DefaultManifestPath && body != "" {
			w.Write([]byte(body))
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(ts.site.Close)

	client := fetcher.NewClient(fetcher.Options{Timeout: time.Second, AllowPrivateNetworks: true})
	verification := verification_service.NewVerificationService(dao.NewDeveloperDAO(db), client, verification_service.Options{
		AllowHTTP:       true,
		AdminIdentities: []string{"fid:1"},
	})
	points := points_service.NewPointsService(dao.NewPointsDAO(db))
	approval := approval_service.NewApprovalService(dao.NewAppDAO(db), verification, client, nil, approval_service.Options{
		DefaultOwner: "0x000000000000000000000000000000000000dead",
		AllowHTTP:    true,
	})

	ts.router = SetupRouter(RouterConfig{
		Verification: verification,
		Approval:     approval,
		Points:       points,
		RateLimiter:  limiter,
		JwtSecret:    testSecret,
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, identity string, trusted bool, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if identity != "" {
		token, err := middleware.GenerateIdentityToken(testSecret, identity, trusted, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") != "" && w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	w, _ := ts.do(t, http.MethodGet, "/health", "", false, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequiresIdentity(t *testing.T) {
	ts := newTestServer(t, nil)
	w, env := ts.do(t, http.MethodGet, "/api/v1/developers/me", "", false, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, respond.CodeUnauthenticated, env.Code)
}

func TestGetMeCreatesDeveloper(t *testing.T) {
	ts := newTestServer(t, nil)
	_, env := ts.do(t, http.MethodGet, "/api/v1/developers/me", "fid:42", false, nil)
	require.Equal(t, respond.CodeSuccess, env.Code)

	var dev respond.DeveloperResponse
	require.NoError(t, json.Unmarshal(env.Data, &dev))
	assert.Equal(t, "fid:42", dev.IdentityKey)
	assert.Equal(t, model.VerificationUnverified, dev.VerificationStatus)
}

func TestSubmitTrustedWalletOwnerIsApproved(t *testing.T) {
	ts := newTestServer(t, nil)
	key, _ := btcec.PrivKeyFromBytes([]byte("0123456789abcdef0123456789abcdef"))
	addr := common.PubKeyToAddress(key.PubKey())
	ts.serveManifest(`{"name":"Router App","owner":"` + addr + `"}`)

	_, env := ts.do(t, http.MethodPost, "/api/v1/apps", addr, true, map[string]interface{}{"url": ts.site.URL})
	require.Equal(t, respond.CodeSuccess, env.Code, env.Message)

	var res respond.SubmitResponse
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.True(t, res.Created)
	assert.Equal(t, model.AppStatusApproved, res.App.Status)
	assert.Equal(t, "Router App", res.App.Name)

	_, env = ts.do(t, http.MethodGet, "/api/v1/apps/lookup?url="+url.QueryEscape(ts.site.URL), "", false, nil)
	require.Equal(t, respond.CodeSuccess, env.Code)
	var app respond.AppResponse
	require.NoError(t, json.Unmarshal(env.Data, &app))
	assert.Equal(t, model.AppStatusApproved, app.Status)

	_, env = ts.do(t, http.MethodGet, "/api/v1/stats", "", false, nil)
	var stats respond.StatsResponse
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, int64(1), stats.TotalApps)

	_, env = ts.do(t, http.MethodGet, "/api/v1/developers/me/apps", addr, false, nil)
	var list respond.AppListResponse
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list.Apps, 1)
	assert.False(t, list.HasMore)
}

func TestSubmitConflictForOtherDeveloper(t *testing.T) {
	ts := newTestServer(t, nil)
	_, env := ts.do(t, http.MethodPost, "/api/v1/apps", "fid:7", false, map[string]interface{}{"url": ts.site.URL})
	require.Equal(t, respond.CodeSuccess, env.Code)

	_, env = ts.do(t, http.MethodPost, "/api/v1/apps", "fid:8", false, map[string]interface{}{"url": ts.site.URL})
	assert.Equal(t, respond.CodeConflict, env.Code)
}

func TestSubmitMalformed(t *testing.T) {
	ts := newTestServer(t, nil)
	_, env := ts.do(t, http.MethodPost, "/api/v1/apps", "fid:7", false, map[string]interface{}{"url": "not a url"})
	assert.Equal(t, respond.CodeInvalidParam, env.Code)
}

func TestLookupMissing(t *testing.T) {
	ts := newTestServer(t, nil)
	_, env := ts.do(t, http.MethodGet, "/api/v1/apps/lookup?url="+url.QueryEscape("https://nowhere.example"), "", false, nil)
	assert.Equal(t, respond.CodeNotFound, env.Code)

	_, env = ts.do(t, http.MethodGet, "/api/v1/apps/lookup", "", false, nil)
	assert.Equal(t, respond.CodeInvalidParam, env.Code)
}

func TestAdminRoutes(t *testing.T) {
	ts := newTestServer(t, nil)
	_, env := ts.do(t, http.MethodPost, "/api/v1/apps", "fid:7", false, map[string]interface{}{
		"url":            ts.site.URL,
		"review_message": "please review",
	})
	require.Equal(t, respond.CodeSuccess, env.Code)

	// non staff
	_, env = ts.do(t, http.MethodGet, "/api/v1/admin/apps?status=pending_review", "fid:7", false, nil)
	assert.Equal(t, respond.CodeForbidden, env.Code)

	_, env = ts.do(t, http.MethodGet, "/api/v1/admin/apps?status=bogus", "fid:1", false, nil)
	assert.Equal(t, respond.CodeInvalidParam, env.Code)

	_, env = ts.do(t, http.MethodGet, "/api/v1/admin/apps?status=pending_review", "fid:1", false, nil)
	require.Equal(t, respond.CodeSuccess, env.Code)
	var list respond.AppListResponse
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list.Apps, 1)

	// reason required
	_, env = ts.do(t, http.MethodPost, "/api/v1/admin/apps/reject", "fid:1", false, map[string]string{"url": ts.site.URL})
	assert.Equal(t, respond.CodeInvalidParam, env.Code)

	_, env = ts.do(t, http.MethodPost, "/api/v1/admin/apps/approve", "fid:1", false, map[string]string{"url": ts.site.URL})
	require.Equal(t, respond.CodeSuccess, env.Code)
	var app respond.AppResponse
	require.NoError(t, json.Unmarshal(env.Data, &app))
	assert.Equal(t, model.AppStatusApproved, app.Status)
	assert.NotEmpty(t, app.ReviewedBy)
}

func TestAdminGrantAndRole(t *testing.T) {
	ts := newTestServer(t, nil)
	_, env := ts.do(t, http.MethodGet, "/api/v1/developers/me", "fid:9", false, nil)
	var dev respond.DeveloperResponse
	require.NoError(t, json.Unmarshal(env.Data, &dev))

	_, env = ts.do(t, http.MethodPost, "/api/v1/admin/developers/"+dev.ID+"/verify", "fid:1", false, nil)
	require.Equal(t, respond.CodeSuccess, env.Code)
	require.NoError(t, json.Unmarshal(env.Data, &dev))
	assert.True(t, dev.Verified)
	assert.True(t, dev.VerifiedByAdmin)

	_, env = ts.do(t, http.MethodPost, "/api/v1/admin/developers/"+dev.ID+"/role", "fid:1", false, map[string]string{"role": "superuser"})
	assert.Equal(t, respond.CodeInvalidParam, env.Code)

	_, env = ts.do(t, http.MethodPost, "/api/v1/admin/developers/"+dev.ID+"/role", "fid:1", false, map[string]string{"role": "MODERATOR"})
	require.Equal(t, respond.CodeSuccess, env.Code)

	// moderators review but cannot grant roles
	_, env = ts.do(t, http.MethodPost, "/api/v1/admin/developers/"+dev.ID+"/role", "fid:9", false, map[string]string{"role": "ADMIN"})
	assert.Equal(t, respond.CodeForbidden, env.Code)
}

func TestRateLimited(t *testing.T) {
	ts := newTestServer(t, middleware.NewRateLimiter(0.001, 1))
	w, _ := ts.do(t, http.MethodGet, "/api/v1/developers/me", "fid:5", false, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env := ts.do(t, http.MethodGet, "/api/v1/developers/me", "fid:5", false, nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, respond.CodeTooManyRequests, env.Code)
}

func TestWalletChallengeFlow(t *testing.T) {
	ts := newTestServer(t, nil)
	key, _ := btcec.PrivKeyFromBytes([]byte("0123456789abcdef0123456789abcdef"))
	addr := common.PubKeyToAddress(key.PubKey())

	// no challenge issued yet
	sig, err := common.SignPersonalMessage(key, "gm")
	require.NoError(t, err)
	_, env := ts.do(t, http.MethodPost, "/api/v1/developers/me/wallet-proof", "fid:30", false,
		verification_service.WalletProof{Address: addr, Message: "gm", Signature: sig})
	assert.Equal(t, respond.CodeVerificationFailed, env.Code)

	_, env = ts.do(t, http.MethodPost, "/api/v1/developers/me/wallet-challenge", "fid:30", false, nil)
	require.Equal(t, respond.CodeSuccess, env.Code)
	var challenge respond.WalletChallengeResponse
	require.NoError(t, json.Unmarshal(env.Data, &challenge))
	assert.Contains(t, challenge.Message, challenge.Nonce)
	assert.Contains(t, challenge.Message, "fid:30")

	sig, err = common.SignPersonalMessage(key, challenge.Message)
	require.NoError(t, err)
	proof := verification_service.WalletProof{Address: addr, Message: challenge.Message, Signature: sig}

	_, env = ts.do(t, http.MethodPost, "/api/v1/developers/me/wallet-proof", "fid:30", false, proof)
	require.Equal(t, respond.CodeSuccess, env.Code, env.Message)
	var dev respond.DeveloperResponse
	require.NoError(t, json.Unmarshal(env.Data, &dev))
	assert.True(t, dev.WalletVerified)
	assert.Equal(t, addr, dev.WalletAddress)

	// replay of a consumed nonce
	_, env = ts.do(t, http.MethodPost, "/api/v1/developers/me/wallet-proof", "fid:30", false, proof)
	assert.Equal(t, respond.CodeVerificationFailed, env.Code)
}
