// Package worker
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dancharlton9/gambling-blocklist/packages/classifier"
	"github.com/dancharlton9/gambling-blocklist/packages/collector"
	"github.com/dancharlton9/gambling-blocklist/packages/config"
	"github.com/dancharlton9/gambling-blocklist/packages/domain"
	"github.com/dancharlton9/gambling-blocklist/packages/manual"
	"github.com/dancharlton9/gambling-blocklist/packages/metrics"
	"github.com/dancharlton9/gambling-blocklist/packages/registry"
	"github.com/dancharlton9/gambling-blocklist/packages/resolver"
	"github.com/dancharlton9/gambling-blocklist/packages/variants"
)

// Browser loads an aggregator page and enumerates its links.
type Browser interface {
	Load(ctx context.Context, rawURL string) (*domain.Page, error)
}

type Worker struct {
	cfg      config.Config
	browser  Browser
	resolver *resolver.Resolver
	rules    classifier.Rules
	variants variants.Generator
}

func New(cfg config.Config, browser Browser, res *resolver.Resolver) *Worker {
	return &Worker{
		cfg:      cfg,
		browser:  browser,
		resolver: res,
		rules:    cfg.Rules(),
		variants: variants.New(cfg.VariantMin, cfg.VariantMax),
	}
}

type SourceReport struct {
	URL        string
	Title      string
	Language   string
	Links      int
	Candidates int
	States     map[domain.ResolveState]int
	Accepted   int
	Added      int
	Rejected   map[domain.Reason]int
	Err        error
}

type Report struct {
	Manual         int
	Sources        []SourceReport
	BeforeVariants int
	VariantsAdded  int
	Total          int
	ByProvenance   map[domain.Provenance]int
	Duration       time.Duration
}

// Run executes one full pass: manual list, every aggregator source, then
// variant expansion. Per-source failures are logged and recorded in the
// report; only cancellation of ctx makes Run return an error.
func (w *Worker) Run(ctx context.Context) (*registry.Registry, Report, error) {
	start := time.Now()
	reg := registry.New()
	var report Report

	manualDomains, err := manual.Load(w.cfg.ManualFile, w.cfg.Exclusions)
	if err != nil {
		slog.Error("Failed to load manual list, continuing without it", "path", w.cfg.ManualFile, "error", err)
	}
	for _, d := range manualDomains {
		if reg.InsertIfAbsent(d, domain.Manual) {
			report.Manual++
		}
	}

	report.Sources = w.processSources(ctx, reg)
	if err := ctx.Err(); err != nil {
		return reg, report, fmt.Errorf("run interrupted: %w", err)
	}

	report.BeforeVariants = reg.Len()
	slog.Info("Sources complete", "unique_domains", report.BeforeVariants)

	report.VariantsAdded = w.expandVariants(reg)
	report.Total = reg.Len()
	report.ByProvenance = reg.CountByProvenance()
	report.Duration = time.Since(start)

	for _, p := range []domain.Provenance{domain.Manual, domain.Direct, domain.Redirect, domain.Variant} {
		metrics.RegistryDomains.WithLabelValues(string(p)).Set(float64(report.ByProvenance[p]))
	}
	metrics.LastRunTimestamp.SetToCurrentTime()

	slog.Info("Run complete",
		"total", report.Total,
		"before_variants", report.BeforeVariants,
		"variants_added", report.VariantsAdded,
		"manual", report.ByProvenance[domain.Manual],
		"direct", report.ByProvenance[domain.Direct],
		"redirect", report.ByProvenance[domain.Redirect],
		"duration", report.Duration.String(),
	)
	return reg, report, nil
}

func (w *Worker) processSources(ctx context.Context, reg *registry.Registry) []SourceReport {
	reports := make([]SourceReport, len(w.cfg.Aggregators))

	limit := w.cfg.MaxParallelSources
	if limit < 1 {
		limit = 1
	}
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, sourceURL := range w.cfg.Aggregators {
		i, sourceURL := i, sourceURL
		g.Go(func() error {
			reports[i] = w.processSource(gCtx, sourceURL, reg)
			if err := reports[i].Err; err != nil {
				slog.Warn("Source failed", "url", sourceURL, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return reports
}

func (w *Worker) processSource(ctx context.Context, sourceURL string, reg *registry.Registry) SourceReport {
	report := SourceReport{
		URL:      sourceURL,
		States:   make(map[domain.ResolveState]int),
		Rejected: make(map[domain.Reason]int),
	}
	slog.Info("Scraping source", "url", sourceURL)

	page, err := w.browser.Load(ctx, sourceURL)
	if err != nil {
		metrics.SourcesProcessed.WithLabelValues("error").Inc()
		report.Err = fmt.Errorf("load %s: %w", sourceURL, err)
		return report
	}
	report.Title = page.Title
	report.Language = page.Language
	report.Links = len(page.Links)

	if page.Language != "" && page.Language != "eng" {
		slog.Warn("Source is not in English, call-to-action matching may miss links", "url", sourceURL, "language", page.Language)
	}
	if len(page.Links) == 0 {
		metrics.SourcesProcessed.WithLabelValues("empty").Inc()
		report.Err = fmt.Errorf("%w: %s", domain.ErrEmptySource, sourceURL)
		return report
	}

	candidates := collector.Collect(page.Links, page.URL)
	report.Candidates = len(candidates)

	for _, res := range w.resolver.ResolvePage(ctx, candidates) {
		report.States[res.State]++
		metrics.CandidatesResolved.WithLabelValues(string(res.State), string(res.Method)).Inc()
		if res.State != domain.StateDirect && res.State != domain.StateResolved {
			continue
		}

		d, verdict := classifier.ClassifyRaw(res.Destination, w.rules)
		recordVerdict(verdict)
		if !verdict.Accepted {
			report.Rejected[verdict.Reason]++
			continue
		}
		report.Accepted++
		if reg.InsertIfAbsent(d, res.Provenance()) {
			report.Added++
		}
	}

	metrics.SourcesProcessed.WithLabelValues("ok").Inc()
	slog.Info("Source complete",
		"url", sourceURL,
		"links", report.Links,
		"candidates", report.Candidates,
		"accepted", report.Accepted,
		"new_domains", report.Added,
		"redirects_resolved", report.States[domain.StateResolved],
		"redirects_failed", report.States[domain.StateFailed],
	)
	return report
}

// expandVariants seeds the generator from every non-variant entry. Each
// sibling is normalized and classified again before it may enter the registry.
func (w *Worker) expandVariants(reg *registry.Registry) int {
	if w.variants.Count() == 0 {
		return 0
	}
	added := 0
	for _, e := range reg.Snapshot() {
		if e.Provenance == domain.Variant {
			continue
		}
		for _, v := range w.variants.Expand(e.Domain) {
			d, verdict := classifier.ClassifyRaw(string(v), w.rules)
			recordVerdict(verdict)
			if verdict.Accepted && reg.InsertIfAbsent(d, domain.Variant) {
				added++
			}
		}
	}
	slog.Info("Variants generated", "added", added, "range_min", w.variants.Min, "range_max", w.variants.Max)
	return added
}

func recordVerdict(v domain.Verdict) {
	metrics.Verdicts.WithLabelValues(string(v.Reason), strconv.FormatBool(v.Accepted)).Inc()
}
