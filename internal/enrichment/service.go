// Package enrichment fills in lead details from the lead's company website.
package enrichment

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ajharbinger/crm-pipeline/internal/logger"
	"github.com/ajharbinger/crm-pipeline/internal/models"
)

// Fetcher loads an HTML document. *Client implements it.
type Fetcher interface {
	Get(ctx context.Context, url string) (*goquery.Document, error)
}

// Recorder counts enrichment outcomes.
type Recorder interface {
	EnrichmentResult(result string)
}

type nopRecorder struct{}

func (nopRecorder) EnrichmentResult(string) {}

// Service enriches leads from their websites.
type Service struct {
	fetcher  Fetcher
	parser   *Parser
	health   *HealthMonitor
	recorder Recorder
	logger   logger.Logger
}

// NewService creates an enrichment service. recorder may be nil.
func NewService(fetcher Fetcher, health *HealthMonitor, recorder Recorder, log logger.Logger) *Service {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if health == nil {
		health = NewHealthMonitor()
	}
	return &Service{
		fetcher:  fetcher,
		parser:   NewParser(),
		health:   health,
		recorder: recorder,
		logger:   log,
	}
}

// Health returns the fetch health monitor.
func (s *Service) Health() *HealthMonitor {
	return s.health
}

// Inspect fetches and parses a website without touching any lead.
func (s *Service) Inspect(ctx context.Context, website string) (SiteInfo, error) {
	target, err := NormalizeURL(website)
	if err != nil {
		s.recorder.EnrichmentResult("invalid_url")
		return SiteInfo{}, err
	}

	doc, err := s.fetcher.Get(ctx, target.String())
	if err != nil {
		s.health.RecordFailure(target.Host, err)
		s.recorder.EnrichmentResult("failure")
		return SiteInfo{}, fmt.Errorf("failed to fetch %s: %w", target.Host, err)
	}
	s.health.RecordSuccess(target.Host)
	s.recorder.EnrichmentResult("success")

	return s.parser.Parse(doc), nil
}

// EnrichLead sets WebsiteSummary and, when empty, Industry from the lead's
// website. It reports whether the lead changed.
func (s *Service) EnrichLead(ctx context.Context, lead *models.Lead) (bool, error) {
	if strings.TrimSpace(lead.Website) == "" {
		return false, nil
	}

	info, err := s.Inspect(ctx, lead.Website)
	if err != nil {
		s.logger.Warn("Website enrichment failed", "lead_id", lead.ID, "website", lead.Website, "error", err)
		return false, err
	}

	changed := false
	if summary := info.Summary(); summary != "" && summary != lead.WebsiteSummary {
		lead.WebsiteSummary = summary
		changed = true
	}
	if lead.Industry == "" && info.Industry != "" {
		lead.Industry = info.Industry
		changed = true
	}

	s.logger.Debug("Website enrichment complete", "lead_id", lead.ID, "changed", changed, "industry", info.Industry)
	return changed, nil
}

// NormalizeURL adds a scheme when missing and requires an http(s) host.
func NormalizeURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("website is empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid website %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("website %q has no host", raw)
	}
	return u, nil
}
