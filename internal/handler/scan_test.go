package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jonesrussell/sherlock-center/internal/domain"
	"github.com/jonesrussell/sherlock-center/internal/events"
	"github.com/jonesrussell/sherlock-center/internal/logger"
	"github.com/jonesrussell/sherlock-center/internal/middleware"
	"github.com/jonesrussell/sherlock-center/internal/probe"
	"github.com/jonesrussell/sherlock-center/internal/ratelimit"
	"github.com/jonesrussell/sherlock-center/internal/repository"
	"github.com/jonesrussell/sherlock-center/internal/scanner"
)

type allowLimiter struct{}

func (allowLimiter) Allow(context.Context, int64) (bool, error) { return true, nil }

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, int64) (bool, error) { return false, nil }

type dropPublisher struct{}

func (dropPublisher) Publish(context.Context, events.Event) error { return nil }

// fixedEngine reports a fixed outcome per site, optionally blocking
// until release is closed.
type fixedEngine struct {
	sites   []string
	release chan struct{}
}

func (e *fixedEngine) TotalSites() int { return len(e.sites) }

func (e *fixedEngine) Run(_ context.Context, _ string, observe func(probe.Outcome)) error {
	if e.release != nil {
		<-e.release
	}
	for _, site := range e.sites {
		observe(probe.Outcome{
			SiteName: site,
			URLMain:  "https://" + site + ".example",
			URLUser:  "https://" + site + ".example/alice",
			Status:   domain.OutcomeAvailable,
		})
	}
	return nil
}

type scanTestEnv struct {
	router *gin.Engine
	store  *repository.MemoryScanStore
}

// asUser injects an authenticated user without going through JWT.
func asUser(userID int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserID, userID)
		c.Next()
	}
}

func newScanTestEnv(t *testing.T, limiter ratelimit.Limiter, engine probe.Engine, maxConcurrent int, userID int64) *scanTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewMemoryScanStore()
	svc := scanner.NewService(store, limiter, engine, dropPublisher{}, nil,
		scanner.Config{MaxConcurrent: maxConcurrent}, logger.NewNop())
	handler := NewScanHandler(svc, logger.NewNop())

	router := gin.New()
	group := router.Group("/scans", asUser(userID))
	group.POST("", handler.Create)
	group.GET("", handler.List)
	group.GET("/:id", handler.Get)
	group.GET("/:id/results", handler.Results)

	return &scanTestEnv{router: router, store: store}
}

func (e *scanTestEnv) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *scanTestEnv) waitForStatus(t *testing.T, scanID uuid.UUID, want domain.ScanStatus) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		scan, err := e.store.Get(context.Background(), scanID)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if scan.Status == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("scan never reached status %s", want)
}

func TestScanHandler_Create(t *testing.T) {
	env := newScanTestEnv(t, allowLimiter{}, &fixedEngine{sites: []string{"SiteA", "SiteB"}}, 2, 1)

	rec := env.do(http.MethodPost, "/scans", `{"target_url":"https://github.com/alice"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var resp domain.ScanResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.ScanID == uuid.Nil {
		t.Error("scan_id is empty")
	}
	if resp.Status != string(domain.ScanPending) {
		t.Errorf("status = %q, want %q", resp.Status, domain.ScanPending)
	}

	env.waitForStatus(t, resp.ScanID, domain.ScanCompleted)
}

func TestScanHandler_CreateValidation(t *testing.T) {
	env := newScanTestEnv(t, allowLimiter{}, &fixedEngine{sites: []string{"SiteA"}}, 1, 1)

	tests := []struct {
		name string
		body string
	}{
		{name: "missing target_url", body: `{}`},
		{name: "malformed json", body: `{"target_url":`},
		{name: "unknown scan type", body: `{"target_url":"https://github.com/alice","scan_type":"deep"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodPost, "/scans", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestScanHandler_CreateRateLimited(t *testing.T) {
	env := newScanTestEnv(t, denyLimiter{}, &fixedEngine{sites: []string{"SiteA"}}, 1, 1)

	rec := env.do(http.MethodPost, "/scans", `{"target_url":"https://github.com/alice"}`)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
}

func TestScanHandler_CreateAtCapacity(t *testing.T) {
	release := make(chan struct{})
	engine := &fixedEngine{sites: []string{"SiteA"}, release: release}
	env := newScanTestEnv(t, allowLimiter{}, engine, 1, 1)

	first := env.do(http.MethodPost, "/scans", `{"target_url":"https://github.com/alice"}`)
	if first.Code != http.StatusOK {
		t.Fatalf("first scan status = %d, want %d", first.Code, http.StatusOK)
	}

	second := env.do(http.MethodPost, "/scans", `{"target_url":"https://github.com/bob"}`)
	if second.Code != http.StatusServiceUnavailable {
		t.Fatalf("second scan status = %d, want %d", second.Code, http.StatusServiceUnavailable)
	}

	close(release)

	var resp domain.ScanResponse
	if err := json.Unmarshal(first.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	env.waitForStatus(t, resp.ScanID, domain.ScanCompleted)
}

func TestScanHandler_Get(t *testing.T) {
	env := newScanTestEnv(t, allowLimiter{}, &fixedEngine{sites: []string{"SiteA", "SiteB"}}, 1, 1)

	rec := env.do(http.MethodPost, "/scans", `{"target_url":"https://github.com/alice"}`)
	var created domain.ScanResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	env.waitForStatus(t, created.ScanID, domain.ScanCompleted)

	rec = env.do(http.MethodGet, "/scans/"+created.ScanID.String(), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var status domain.ScanStatusResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if status.Status != domain.ScanCompleted {
		t.Errorf("status = %q, want %q", status.Status, domain.ScanCompleted)
	}
	if status.Progress != 100.0 {
		t.Errorf("progress = %v, want 100", status.Progress)
	}
	if status.FindingsCount != 2 {
		t.Errorf("findings_count = %d, want 2", status.FindingsCount)
	}
	if status.SecurityScore == nil {
		t.Error("security_score is nil")
	}
}

func TestScanHandler_GetRejections(t *testing.T) {
	env := newScanTestEnv(t, allowLimiter{}, &fixedEngine{sites: []string{"SiteA"}}, 1, 1)

	rec := env.do(http.MethodGet, "/scans/not-a-uuid", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("malformed id: status = %d, want %d", rec.Code, http.StatusBadRequest)
	}

	rec = env.do(http.MethodGet, "/scans/"+uuid.NewString(), "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown id: status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestScanHandler_GetOtherUsersScan(t *testing.T) {
	env := newScanTestEnv(t, allowLimiter{}, &fixedEngine{sites: []string{"SiteA"}}, 1, 1)

	scan, err := env.store.CreatePending(context.Background(), 99, "https://github.com/mallory", domain.ScanTypeQuick)
	if err != nil {
		t.Fatalf("CreatePending() error = %v", err)
	}

	rec := env.do(http.MethodGet, "/scans/"+scan.ID.String(), "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}

	rec = env.do(http.MethodGet, "/scans/"+scan.ID.String()+"/results", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("results: status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestScanHandler_List(t *testing.T) {
	env := newScanTestEnv(t, allowLimiter{}, &fixedEngine{sites: []string{"SiteA"}}, 2, 1)

	for _, target := range []string{"https://github.com/alice", "https://gitlab.com/alice"} {
		rec := env.do(http.MethodPost, "/scans", `{"target_url":"`+target+`"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("create status = %d: %s", rec.Code, rec.Body.String())
		}
		var resp domain.ScanResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal response: %v", err)
		}
		env.waitForStatus(t, resp.ScanID, domain.ScanCompleted)
	}

	rec := env.do(http.MethodGet, "/scans", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var listing struct {
		Scans []domain.ScanStatusResponse `json:"scans"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(listing.Scans) != 2 {
		t.Fatalf("len(scans) = %d, want 2", len(listing.Scans))
	}

	rec = env.do(http.MethodGet, "/scans?limit=1", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(listing.Scans) != 1 {
		t.Fatalf("len(scans) with limit=1 = %d, want 1", len(listing.Scans))
	}
}

func TestScanHandler_ListRunningScanProgress(t *testing.T) {
	engine := &fixedEngine{sites: []string{"SiteA", "SiteB", "SiteC", "SiteD"}}
	env := newScanTestEnv(t, allowLimiter{}, engine, 1, 1)

	ctx := context.Background()
	scan, err := env.store.CreatePending(ctx, 1, "https://github.com/alice", domain.ScanTypeQuick)
	if err != nil {
		t.Fatalf("CreatePending() error = %v", err)
	}
	if err := env.store.SetState(ctx, scan.ID, domain.ScanRunning, nil, nil); err != nil {
		t.Fatalf("SetState() error = %v", err)
	}
	for _, site := range []string{"SiteA", "SiteB"} {
		result := domain.ScanResult{
			ScanID:   scan.ID,
			SiteName: site,
			Status:   domain.OutcomeAvailable,
		}
		if err := env.store.AppendResult(ctx, result); err != nil {
			t.Fatalf("AppendResult() error = %v", err)
		}
	}

	rec := env.do(http.MethodGet, "/scans", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var listing struct {
		Scans []domain.ScanStatusResponse `json:"scans"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(listing.Scans) != 1 {
		t.Fatalf("len(scans) = %d, want 1", len(listing.Scans))
	}

	// 2 of 4 sites recorded: the listing reports the live value, not the
	// coarse 0-until-completed shortcut.
	entry := listing.Scans[0]
	if entry.Status != domain.ScanRunning {
		t.Errorf("status = %q, want %q", entry.Status, domain.ScanRunning)
	}
	if entry.Progress != 50.0 {
		t.Errorf("progress = %v, want 50", entry.Progress)
	}
	if entry.FindingsCount != 2 {
		t.Errorf("findings_count = %d, want 2", entry.FindingsCount)
	}
}

func TestScanHandler_Results(t *testing.T) {
	env := newScanTestEnv(t, allowLimiter{}, &fixedEngine{sites: []string{"SiteA", "SiteB", "SiteC"}}, 1, 1)

	rec := env.do(http.MethodPost, "/scans", `{"target_url":"https://github.com/alice"}`)
	var created domain.ScanResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	env.waitForStatus(t, created.ScanID, domain.ScanCompleted)

	rec = env.do(http.MethodGet, "/scans/"+created.ScanID.String()+"/results", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var listing struct {
		Results []domain.ScanResult `json:"results"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listing); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if len(listing.Results) != 3 {
		t.Fatalf("len(results) = %d, want 3", len(listing.Results))
	}
	for _, result := range listing.Results {
		if result.ScanID != created.ScanID {
			t.Errorf("result scan_id = %s, want %s", result.ScanID, created.ScanID)
		}
		if result.Status != domain.OutcomeAvailable {
			t.Errorf("result status = %q, want %q", result.Status, domain.OutcomeAvailable)
		}
	}
}
