package enrichment

import (
	"strings"
	"sync"
	"time"
)

// HealthMonitor tracks website fetch success and failure rates
type HealthMonitor struct {
	mu                   sync.RWMutex
	totalRequests        int64
	successfulRequests   int64
	failedRequests       int64
	consecutiveFailures  int64
	lastFailureTime      time.Time
	lastSuccessTime      time.Time
	recentFailures       []FailureRecord
	maxRecentFailures    int
	failureThreshold     float64
	consecutiveThreshold int64
	now                  func() time.Time
}

// FailureRecord represents a single failure event
type FailureRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Host      string    `json:"host"`
	Error     string    `json:"error"`
	Category  string    `json:"category"`
}

// HealthStatus represents the current health of website enrichment
type HealthStatus struct {
	IsHealthy           bool            `json:"is_healthy"`
	TotalRequests       int64           `json:"total_requests"`
	SuccessfulRequests  int64           `json:"successful_requests"`
	FailedRequests      int64           `json:"failed_requests"`
	SuccessRate         float64         `json:"success_rate"`
	ConsecutiveFailures int64           `json:"consecutive_failures"`
	LastFailureTime     *time.Time      `json:"last_failure_time,omitempty"`
	LastSuccessTime     *time.Time      `json:"last_success_time,omitempty"`
	RecentFailures      []FailureRecord `json:"recent_failures"`
	HealthIssues        []string        `json:"health_issues"`
}

// NewHealthMonitor creates a new health monitor
func NewHealthMonitor() *HealthMonitor {
	return &HealthMonitor{
		maxRecentFailures:    50,
		failureThreshold:     0.5, // websites fail often; only flag a majority
		consecutiveThreshold: 10,
		recentFailures:       make([]FailureRecord, 0, 50),
		now:                  time.Now,
	}
}

// RecordSuccess records a successful fetch
func (h *HealthMonitor) RecordSuccess(host string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.totalRequests++
	h.successfulRequests++
	h.consecutiveFailures = 0
	h.lastSuccessTime = h.now()
}

// RecordFailure records a failed fetch
func (h *HealthMonitor) RecordFailure(host string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.totalRequests++
	h.failedRequests++
	h.consecutiveFailures++
	h.lastFailureTime = h.now()

	msg := ""
	if err != nil {
		msg = err.Error()
	}
	h.recentFailures = append(h.recentFailures, FailureRecord{
		Timestamp: h.lastFailureTime,
		Host:      host,
		Error:     msg,
		Category:  categorizeError(msg),
	})
	if len(h.recentFailures) > h.maxRecentFailures {
		h.recentFailures = h.recentFailures[1:]
	}
}

// GetHealthStatus returns the current health status
func (h *HealthMonitor) GetHealthStatus() HealthStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	status := HealthStatus{
		IsHealthy:           true,
		TotalRequests:       h.totalRequests,
		SuccessfulRequests:  h.successfulRequests,
		FailedRequests:      h.failedRequests,
		ConsecutiveFailures: h.consecutiveFailures,
		RecentFailures:      make([]FailureRecord, len(h.recentFailures)),
		HealthIssues:        []string{},
		SuccessRate:         1.0,
	}
	copy(status.RecentFailures, h.recentFailures)

	if h.totalRequests > 0 {
		status.SuccessRate = float64(h.successfulRequests) / float64(h.totalRequests)
	}
	if !h.lastFailureTime.IsZero() {
		t := h.lastFailureTime
		status.LastFailureTime = &t
	}
	if !h.lastSuccessTime.IsZero() {
		t := h.lastSuccessTime
		status.LastSuccessTime = &t
	}

	if h.totalRequests >= 10 && status.SuccessRate < (1.0-h.failureThreshold) {
		status.IsHealthy = false
		status.HealthIssues = append(status.HealthIssues, "High failure rate detected")
	}
	if h.consecutiveFailures >= h.consecutiveThreshold {
		status.IsHealthy = false
		status.HealthIssues = append(status.HealthIssues, "Multiple consecutive failures detected")
	}
	if issue := h.dominantFailure(); issue != "" {
		status.HealthIssues = append(status.HealthIssues, issue)
	}
	return status
}

// dominantFailure names an error category behind most recent failures.
func (h *HealthMonitor) dominantFailure() string {
	if len(h.recentFailures) < 3 {
		return ""
	}
	counts := make(map[string]int)
	for _, f := range h.recentFailures {
		counts[f.Category]++
	}
	for category, n := range counts {
		if category == "other" || float64(n)/float64(len(h.recentFailures)) <= 0.5 {
			continue
		}
		switch category {
		case "timeout":
			return "Frequent timeout errors detected"
		case "rate_limit":
			return "Rate limiting detected"
		case "network":
			return "Network connectivity issues detected"
		case "blocked":
			return "Sites are refusing requests"
		}
	}
	return ""
}

// Reset clears all counters
func (h *HealthMonitor) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.totalRequests = 0
	h.successfulRequests = 0
	h.failedRequests = 0
	h.consecutiveFailures = 0
	h.lastFailureTime = time.Time{}
	h.lastSuccessTime = time.Time{}
	h.recentFailures = h.recentFailures[:0]
}

func categorizeError(msg string) string {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "timeout") || strings.Contains(m, "deadline exceeded"):
		return "timeout"
	case strings.Contains(m, "429") || strings.Contains(m, "rate limit"):
		return "rate_limit"
	case strings.Contains(m, "403") || strings.Contains(m, "401"):
		return "blocked"
	case strings.Contains(m, "connection refused") || strings.Contains(m, "no such host") ||
		strings.Contains(m, "network"):
		return "network"
	default:
		return "other"
	}
}

// IsHealthy reports the IsHealthy field of the current status.
func (h *HealthMonitor) IsHealthy() bool {
	return h.GetHealthStatus().IsHealthy
}
