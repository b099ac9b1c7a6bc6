// probe dry-runs the pipeline against a single aggregator page and prints
// what would be collected, without touching the lists or the database.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dancharlton9/gambling-blocklist/packages/classifier"
	"github.com/dancharlton9/gambling-blocklist/packages/collector"
	"github.com/dancharlton9/gambling-blocklist/packages/config"
	"github.com/dancharlton9/gambling-blocklist/packages/crawler"
	"github.com/dancharlton9/gambling-blocklist/packages/domain"
	"github.com/dancharlton9/gambling-blocklist/packages/resolver"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintln(os.Stderr, "usage: probe <aggregator-url>")
		os.Exit(2)
	}
	targetURL := os.Args[1]

	_ = godotenv.Load()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	browser := crawler.New(crawler.Options{
		FetchTimeout:      cfg.FetchTimeout,
		NavigationTimeout: cfg.NavigationTimeout,
		UserAgent:         cfg.UserAgent,
		AcceptLanguage:    cfg.AcceptLanguage,
		MaxBodyBytes:      cfg.MaxBodyBytes,
		MaxRedirects:      cfg.MaxRedirects,
	}, crawler.NewPoliteness(cfg.PoliteDelay, cfg.PoliteJitter))

	fmt.Printf("--- Probing %s ---\n\n", targetURL)

	page, err := browser.Load(ctx, targetURL)
	if err != nil {
		log.Fatalf("FATAL: Failed to load page: %v", err)
	}
	fmt.Printf("Title:     %s\n", page.Title)
	fmt.Printf("Final URL: %s\n", page.URL)
	fmt.Printf("Language:  %s\n", orDash(page.Language))
	fmt.Printf("Links:     %d\n\n", len(page.Links))
	if page.Language != "" && page.Language != "eng" {
		fmt.Println("NOTE: page is not English; call-to-action phrases may not match.")
	}

	candidates := collector.Collect(page.Links, page.URL)
	rules := cfg.Rules()
	res := resolver.New(cfg.ResolverConfig(), rules, browser)

	states := make(map[domain.ResolveState]int)
	accepted := make(map[string]domain.Provenance)
	for _, r := range res.ResolvePage(ctx, candidates) {
		states[r.State]++
		if r.State != domain.StateDirect && r.State != domain.StateResolved {
			if r.State == domain.StateFailed {
				fmt.Printf("FAILED   %-12s %s (%v)\n", r.Method, r.Candidate.RawHref, r.Err)
			}
			continue
		}
		d, v := classifier.ClassifyRaw(r.Destination, rules)
		fmt.Printf("%-8s %-12s %-14s %s -> %s\n", r.State, r.Method, v.Reason, r.Candidate.RawHref, orDash(d.String()))
		if v.Accepted {
			if _, seen := accepted[d.String()]; !seen {
				accepted[d.String()] = r.Provenance()
			}
		}
	}

	fmt.Println("\n--- Resolution states ---")
	for _, s := range []domain.ResolveState{domain.StateDirect, domain.StateResolved, domain.StateFailed, domain.StateSameOriginPlain} {
		fmt.Printf("%-18s %d\n", s, states[s])
	}

	names := make([]string, 0, len(accepted))
	for d := range accepted {
		names = append(names, d)
	}
	sort.Strings(names)
	fmt.Printf("\n--- Accepted domains (%d) ---\n", len(names))
	for _, d := range names {
		fmt.Printf("%-40s %s\n", d, accepted[d])
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
