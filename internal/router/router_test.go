package router

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/una-transcript/internal/cache"
	"github.com/stemsi/una-transcript/internal/config"
	"github.com/stemsi/una-transcript/internal/handler"
	"github.com/stemsi/una-transcript/internal/middleware"
	"github.com/stemsi/una-transcript/internal/model"
	"github.com/stemsi/una-transcript/internal/response"
	"github.com/stemsi/una-transcript/internal/scraper"
	"github.com/stemsi/una-transcript/internal/service"
	"github.com/stemsi/una-transcript/internal/validator"
	"github.com/stemsi/una-transcript/internal/worker"
	"github.com/stretchr/testify/require"
)

// portalStub answers like the portal would for a handful of known IDs.
type portalStub struct {
	calls atomic.Int32
}

func (p *portalStub) Scrape(ctx context.Context, id string) (*model.StudentRecord, error) {
	p.calls.Add(1)
	switch id {
	case "99999":
		return nil, fmt.Errorf("C%s: %w", id, scraper.ErrStudentNotFound)
	case "55555":
		return nil, fmt.Errorf("C%s: %w", id, scraper.ErrEmptyTranscript)
	case "77777":
		return nil, fmt.Errorf("loading portal: %w", scraper.ErrTimeout)
	case "66666":
		return nil, fmt.Errorf("browser crashed")
	}

	var semesters model.SemesterSet
	for _, key := range []string{"S1", "S2"} {
		semesters.Put(key, model.SemesterRecord{
			Summary: model.SemesterSummary{Average: "13,75", TotalCredits: "30", Decision: "Validé"},
			Modules: []model.ModuleRecord{{
				ID:      "MI101",
				Average: "13,75",
				Courses: []model.CourseRecord{
					{Name: "Analyse 1", Credit: 3, Final: 12, Decision: "V"},
					{Name: "Algèbre 1", Credit: 3, Final: 15.5, Decision: "V"},
				},
			}},
		})
	}
	return model.NewStudentRecord(model.StudentProfile{
		ID:                 "C" + id,
		Name:               "Ahmed Salem Cheikh",
		OrientationProfile: "2MI-L1",
		ProfileLabel:       "Mathématiques-Informatique",
	}, semesters), nil
}

type testServer struct {
	router *gin.Engine
	portal *portalStub
}

func newTestServer(t *testing.T, queue *worker.PrewarmQueue, ratePerMinute int) *testServer {
	t.Helper()
	return newTestServerWithTTL(t, queue, ratePerMinute, 168*time.Hour)
}

func newTestServerWithTTL(t *testing.T, queue *worker.PrewarmQueue, ratePerMinute int, ttl time.Duration) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validator.Setup()

	cfg := &config.Config{GinMode: gin.TestMode, CacheTTL: ttl}
	portal := &portalStub{}
	transcripts := service.NewTranscriptService(portal, cache.New(cfg.CacheTTL, 0), zerolog.Nop())

	limiter := middleware.NewRateLimiter(ratePerMinute, time.Minute, zerolog.Nop())
	t.Cleanup(limiter.Close)

	r := SetupRouter(&Handlers{
		Student: handler.NewStudentHandler(transcripts, zerolog.Nop()),
		Prewarm: handler.NewPrewarmHandler(queue, zerolog.Nop()),
		System:  handler.NewSystemHandler(transcripts, queue, zerolog.Nop()),
	}, cfg, limiter)

	return &testServer{router: r, portal: portal}
}

func (s *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) response.ErrorBody {
	t.Helper()
	var body response.ErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.RequestID)
	return body
}

func TestRootAndHealth(t *testing.T) {
	s := newTestServer(t, nil, 30)

	w := s.do(http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "Server is running", w.Body.String())

	w = s.do(http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestGetStudentCachesTranscript(t *testing.T) {
	s := newTestServer(t, nil, 30)

	first := s.do(http.MethodGet, "/student/12345", "")
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, "MISS", first.Header().Get("X-Cache"))
	require.Equal(t, "private, max-age=604800", first.Header().Get("Cache-Control"))

	var rec map[string]any
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &rec))
	require.Equal(t, "C12345", rec["id"])
	require.Equal(t, "Ahmed Salem Cheikh", rec["name"])
	require.True(t, strings.Index(first.Body.String(), `"S1"`) < strings.Index(first.Body.String(), `"S2"`))

	second := s.do(http.MethodGet, "/student/12345", "")
	require.Equal(t, http.StatusOK, second.Code)
	require.Equal(t, "HIT", second.Header().Get("X-Cache"))
	require.Equal(t, first.Body.String(), second.Body.String())
	require.EqualValues(t, 1, s.portal.calls.Load())

	refreshed := s.do(http.MethodGet, "/student/12345?refresh=true", "")
	require.Equal(t, http.StatusOK, refreshed.Code)
	require.Equal(t, "MISS", refreshed.Header().Get("X-Cache"))
	require.EqualValues(t, 2, s.portal.calls.Load())
}

func TestCacheHitAdvertisesRemainingLifetime(t *testing.T) {
	s := newTestServerWithTTL(t, nil, 30, 3*time.Second)

	first := s.do(http.MethodGet, "/student/12345", "")
	require.Equal(t, "MISS", first.Header().Get("X-Cache"))
	require.Equal(t, "private, max-age=3", first.Header().Get("Cache-Control"))

	time.Sleep(1100 * time.Millisecond)

	second := s.do(http.MethodGet, "/student/12345", "")
	require.Equal(t, "HIT", second.Header().Get("X-Cache"))

	var maxAge int
	_, err := fmt.Sscanf(second.Header().Get("Cache-Control"), "private, max-age=%d", &maxAge)
	require.NoError(t, err)
	require.GreaterOrEqual(t, maxAge, 0)
	require.Less(t, maxAge, 2)
}

func TestGetStudentErrors(t *testing.T) {
	s := newTestServer(t, nil, 100)

	cases := []struct {
		path   string
		status int
		code   response.ErrCode
	}{
		{"/student/abc", http.StatusBadRequest, response.ErrInvalidStudentID},
		{"/student/12a", http.StatusBadRequest, response.ErrInvalidStudentID},
		{"/student/99999", http.StatusNotFound, response.ErrStudentNotFound},
		{"/student/55555", http.StatusBadGateway, response.ErrTranscriptEmpty},
		{"/student/77777", http.StatusGatewayTimeout, response.ErrScrapeTimeout},
		{"/student/66666", http.StatusInternalServerError, response.ErrInternal},
	}
	for _, tc := range cases {
		w := s.do(http.MethodGet, tc.path, "")
		require.Equal(t, tc.status, w.Code, tc.path)
		body := decodeError(t, w)
		require.Equal(t, tc.code, body.Code, tc.path)
		require.Equal(t, response.GetMessage(tc.code), body.Error)
		require.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	}

	// Invalid IDs never reach the portal.
	require.EqualValues(t, 4, s.portal.calls.Load())
}

func TestGetStudentRateLimited(t *testing.T) {
	s := newTestServer(t, nil, 1)

	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/student/12345", "").Code)
	w := s.do(http.MethodGet, "/student/12345", "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, response.ErrRateLimitExceeded, decodeError(t, w).Code)
}

func TestCacheStatsAndEviction(t *testing.T) {
	s := newTestServer(t, nil, 30)

	s.do(http.MethodGet, "/student/12345", "")
	s.do(http.MethodGet, "/student/12345", "")

	w := s.do(http.MethodGet, "/cache-stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"hits":1,"misses":1,"keys":1,"ksize":5,"ttl_seconds":604800}`, w.Body.String())

	w = s.do(http.MethodDelete, "/student/12345/cache", "")
	require.Equal(t, http.StatusNoContent, w.Code)

	w = s.do(http.MethodGet, "/student/12345", "")
	require.Equal(t, "MISS", w.Header().Get("X-Cache"))

	w = s.do(http.MethodDelete, "/student/abc/cache", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPrewarm(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	queue := worker.NewPrewarmQueue(rdb)
	s := newTestServer(t, queue, 30)

	w := s.do(http.MethodPost, "/students/prewarm", `{"ids":["12345","0042"]}`)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.JSONEq(t, `{"queued":2}`, w.Body.String())

	n, err := queue.Len(context.Background())
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	w = s.do(http.MethodPost, "/students/prewarm", `{"ids":["nope"]}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, response.ErrValidation, decodeError(t, w).Code)

	w = s.do(http.MethodGet, "/system/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	var metrics map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &metrics))
	require.EqualValues(t, 2, metrics["prewarm_queue"])
}

func TestPrewarmDisabledWithoutRedis(t *testing.T) {
	s := newTestServer(t, nil, 30)

	w := s.do(http.MethodPost, "/students/prewarm", `{"ids":["12345"]}`)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Equal(t, response.ErrPrewarmDisabled, decodeError(t, w).Code)
}
