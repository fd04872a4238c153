package xapi

import (
	"net/http"
	"strings"
	"sync"
	"time"
)

// endpointCostRule pairs an HTTP method and path prefix with its estimated
// dollar-equivalent X API cost, grounded on the cost bucketing shape of
// internal/usage/usage.go's Cost.Estimate -- generalized from LLM
// token-based pricing to X API per-call pricing.
type endpointCostRule struct {
	method string
	prefix string
	cost   float64
}

var endpointCostRules = []endpointCostRule{
	{http.MethodPost, "/tweets", 0.0}, // posting is free under the basic tier
	{http.MethodGet, "/tweets/search/recent", 0.00015},
	{http.MethodGet, "/users", 0.0001},
}

func estimateCost(method, path string) float64 {
	for _, rule := range endpointCostRules {
		if rule.method == method && strings.HasPrefix(path, rule.prefix) {
			return rule.cost
		}
	}
	return 0
}

// UsageRecord is one accounted X API call.
type UsageRecord struct {
	Endpoint   string
	Method     string
	StatusCode int
	Cost       float64
	Timestamp  time.Time
}

// UsageTracker accumulates per-endpoint usage and cost, grounded on
// internal/usage/usage.go's Tracker (mutex + slice of records + running
// totals), narrowed from per-user LLM cost tracking to per-endpoint X API
// cost tracking.
type UsageTracker struct {
	mu      sync.Mutex
	clock   func() time.Time
	records []UsageRecord
	totalsByEndpoint map[string]float64
}

// NewUsageTracker builds a tracker. clock defaults to time.Now.
func NewUsageTracker(clock func() time.Time) *UsageTracker {
	if clock == nil {
		clock = time.Now
	}
	return &UsageTracker{clock: clock, totalsByEndpoint: make(map[string]float64)}
}

// Record accounts one API call, fire-and-forget: callers don't check its
// return because usage accounting must never block or fail a request.
// Failed calls (status >= 400) are recorded at zero cost, since X does not
// bill for failed requests.
func (u *UsageTracker) Record(path, method string, statusCode int) {
	cost := 0.0
	if statusCode < 400 {
		cost = estimateCost(method, path)
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.records = append(u.records, UsageRecord{
		Endpoint:   path,
		Method:     method,
		StatusCode: statusCode,
		Cost:       cost,
		Timestamp:  u.clock(),
	})
	u.totalsByEndpoint[path] += cost
}

// TotalCost returns the accumulated cost across all recorded calls.
func (u *UsageTracker) TotalCost() float64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	total := 0.0
	for _, c := range u.totalsByEndpoint {
		total += c
	}
	return total
}

// Records returns a copy of all recorded usage entries, most useful in
// tests asserting on accounting behavior.
func (u *UsageTracker) Records() []UsageRecord {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]UsageRecord, len(u.records))
	copy(out, u.records)
	return out
}
