package handler

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stemsi/una-transcript/internal/cache"
	"github.com/stemsi/una-transcript/internal/response"
	"github.com/stemsi/una-transcript/internal/service"
	"github.com/stemsi/una-transcript/internal/worker"
)

// SystemHandler answers liveness probes and reports process metrics.
type SystemHandler struct {
	transcripts *service.TranscriptService
	queue       *worker.PrewarmQueue
	startTime   time.Time
	log         zerolog.Logger
}

// NewSystemHandler creates a SystemHandler. queue may be nil.
func NewSystemHandler(transcripts *service.TranscriptService, queue *worker.PrewarmQueue, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		transcripts: transcripts,
		queue:       queue,
		startTime:   time.Now(),
		log:         log.With().Str("component", "system_handler").Logger(),
	}
}

// Root godoc
// GET /
func (h *SystemHandler) Root(c *gin.Context) {
	c.String(http.StatusOK, "Server is running")
}

// Health godoc
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	response.Success(c, http.StatusOK, gin.H{"status": "ok"})
}

type systemMetrics struct {
	Timestamp int64  `json:"timestamp"`
	Uptime    string `json:"uptime"`

	// OS
	LoadAvg1  float64 `json:"load_avg_1"`
	LoadAvg5  float64 `json:"load_avg_5"`
	LoadAvg15 float64 `json:"load_avg_15"`

	// Go Application
	Goroutines  int    `json:"goroutines"`
	HeapAlloc   uint64 `json:"heap_alloc"`
	HeapSys     uint64 `json:"heap_sys"`
	NumGC       uint32 `json:"num_gc"`
	AppRSSBytes uint64 `json:"app_rss_bytes"`
	GoVersion   string `json:"go_version"`
	NumCPU      int    `json:"num_cpu"`

	// Transcripts
	Cache        cache.Stats `json:"cache"`
	PrewarmQueue *int64      `json:"prewarm_queue"`
}

// Metrics godoc
// GET /system/metrics
func (h *SystemHandler) Metrics(c *gin.Context) {
	response.Success(c, http.StatusOK, h.collect(c.Request.Context()))
}

func (h *SystemHandler) collect(ctx context.Context) systemMetrics {
	m := systemMetrics{
		Timestamp: time.Now().Unix(),
		Uptime:    formatDuration(time.Since(h.startTime)),
		GoVersion: runtime.Version(),
		NumCPU:    runtime.NumCPU(),
		Cache:     h.transcripts.CacheStats(),
	}

	// ── Load Average ──
	m.LoadAvg1, m.LoadAvg5, m.LoadAvg15, _ = readLoadAvg()

	// ── Go Runtime ──
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.Goroutines = runtime.NumGoroutine()
	m.HeapAlloc = ms.HeapAlloc
	m.HeapSys = ms.Sys
	m.NumGC = ms.NumGC

	// ── App RSS ──
	m.AppRSSBytes, _ = readProcessRSS()

	// ── Prewarm Queue ──
	if h.queue != nil {
		n, err := h.queue.Len(ctx)
		if err != nil {
			h.log.Warn().Err(err).Msg("Failed to read prewarm queue length")
		} else {
			m.PrewarmQueue = &n
		}
	}

	return m
}

// ---------- /proc Readers ----------

// readLoadAvg parses /proc/loadavg.
func readLoadAvg() (load1, load5, load15 float64, err error) {
	data, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return 0, 0, 0, err
	}
	fields := strings.Fields(string(data))
	if len(fields) < 3 {
		return 0, 0, 0, fmt.Errorf("unexpected /proc/loadavg format")
	}
	load1, _ = strconv.ParseFloat(fields[0], 64)
	load5, _ = strconv.ParseFloat(fields[1], 64)
	load15, _ = strconv.ParseFloat(fields[2], 64)
	return load1, load5, load15, nil
}

// readProcessRSS reads VmRSS from /proc/self/status.
func readProcessRSS() (uint64, error) {
	f, err := os.Open("/proc/self/status")
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "VmRSS:") {
			fields := strings.Fields(line)
			if len(fields) < 2 {
				break
			}
			kb, _ := strconv.ParseUint(fields[1], 10, 64)
			return kb * 1024, nil
		}
	}
	return 0, fmt.Errorf("VmRSS not found")
}

// ---------- Helpers ----------

func formatDuration(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	return fmt.Sprintf("%dm %ds", minutes, seconds)
}
