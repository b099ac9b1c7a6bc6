// Package config
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dancharlton9/gambling-blocklist/packages/classifier"
	"github.com/dancharlton9/gambling-blocklist/packages/domain"
	"github.com/dancharlton9/gambling-blocklist/packages/resolver"
)

const maxParallelSources = 4

type Config struct {
	// Rule sets
	Aggregators      []string
	Exclusions       []string
	TLDs             []string
	Keywords         []string
	RedirectPatterns []string
	CTAPhrases       []string
	Permissive       bool
	VariantMin       int
	VariantMax       int

	// Files
	SourcesFile string
	ManualFile  string
	OutputDir   string
	RepoURL     string

	// Fetching and navigation
	FetchTimeout          time.Duration
	NavigationTimeout     time.Duration
	MaxNavigationsPerPage int
	PoliteDelay           time.Duration
	PoliteJitter          time.Duration
	MaxParallelSources    int
	UserAgent             string
	AcceptLanguage        string
	MaxBodyBytes          int64
	MaxRedirects          int

	// Publication and observability
	DatabaseURL string
	MetricsFile string
	MetricsAddr string
	LogFile     string
	LogLevel    string
}

// Sources is the optional YAML file that replaces the built-in rule sets.
// Lists left empty keep their defaults.
type Sources struct {
	Aggregators      []string `yaml:"aggregators"`
	Exclusions       []string `yaml:"exclusions"`
	TLDs             []string `yaml:"tlds"`
	Keywords         []string `yaml:"keywords"`
	RedirectPatterns []string `yaml:"redirect_patterns"`
	CTAPhrases       []string `yaml:"cta_phrases"`
}

var (
	DefaultAggregators = []string{
		"https://www.nongamstopcasinos.net/",
		"https://www.nongamstopcasinos.net/new-casinos-not-on-gamstop/",
		"https://www.nongamstopcasinos.net/crypto-casinos-not-on-gamstop/",
		"https://casinonotongamstop.com/",
		"https://www.casinosnotongamstop.org/",
		"https://www.nonstopcasino.org/",
		"https://nonstopcasino.org/uk/",
		"https://casinosanalyzer.com/non-gamstop-casinos",
		"https://www.casinosanalyzer.com/online-casinos/not-on-gamstop",
	}
	DefaultExclusions = []string{
		// search, social, marketplaces
		"google.com", "facebook.com", "twitter.com", "youtube.com", "instagram.com",
		"linkedin.com", "reddit.com", "wikipedia.org", "amazon.com", "t.co", "x.com",
		// responsible gambling and support
		"gamstop.co.uk", "begambleaware.org", "gamcare.org.uk", "gamblingcommission.gov.uk",
		"responsiblegambling.org", "ncpgambling.org", "gamblersanonymous.org",
		// CDNs and common services
		"cloudflare.com", "jsdelivr.net", "googleapis.com", "gstatic.com",
		"w3.org", "schema.org", "trustpilot.com",
		// aggregators
		"nongamstopcasinos.net", "casinonotongamstop.com", "casinosnotongamstop.org",
		"nonstopcasino.org", "casinosanalyzer.com",
	}
	DefaultTLDs     = []string{".casino", ".bet", ".games", ".game", ".io", ".ag", ".gg", ".vip", ".win", ".fun"}
	DefaultKeywords = []string{
		"casino", "bet", "slots", "poker", "spin", "vegas", "lucky",
		"jackpot", "win", "game", "play", "wager", "stake", "roulette",
	}
	DefaultRedirectPatterns = []string{"/go/", "/out/", "/visit/", "/redirect/", "/link/", "/click/", "/track/", "/aff/", "/partner/", "/ref/"}
	DefaultCTAPhrases       = []string{"play now", "visit", "claim bonus", "sign up", "get bonus", "join now", "register", "claim", "play here", "visit site", "visit casino", "bet now"}
)

func Load() (Config, error) {
	cfg := Config{
		Aggregators:      DefaultAggregators,
		Exclusions:       DefaultExclusions,
		TLDs:             DefaultTLDs,
		Keywords:         DefaultKeywords,
		RedirectPatterns: DefaultRedirectPatterns,
		CTAPhrases:       DefaultCTAPhrases,
	}

	cfg.SourcesFile = getEnv("SOURCES_FILE", "")
	if cfg.SourcesFile != "" {
		src, err := LoadSources(cfg.SourcesFile)
		if err != nil {
			return cfg, err
		}
		src.apply(&cfg)
	}

	overrideList(&cfg.Aggregators, "AGGREGATOR_URLS")
	overrideList(&cfg.Exclusions, "EXCLUDE_DOMAINS")
	overrideList(&cfg.TLDs, "GAMBLING_TLDS")
	overrideList(&cfg.Keywords, "GAMBLING_KEYWORDS")
	overrideList(&cfg.RedirectPatterns, "REDIRECT_PATTERNS")
	overrideList(&cfg.CTAPhrases, "CTA_PHRASES")

	p := &parser{}
	cfg.Permissive = p.bool("PERMISSIVE_MODE", false)
	cfg.VariantMin = p.int("VARIANT_MIN", 1)
	cfg.VariantMax = p.int("VARIANT_MAX", 9)

	cfg.ManualFile = getEnv("MANUAL_FILE", "domains/manual.txt")
	cfg.OutputDir = getEnv("OUTPUT_DIR", "lists")
	cfg.RepoURL = getEnv("REPO_URL", "https://github.com/dancharlton9/gambling-blocklist")

	cfg.FetchTimeout = p.duration("FETCH_TIMEOUT", 30*time.Second)
	cfg.NavigationTimeout = p.duration("NAVIGATION_TIMEOUT", 15*time.Second)
	cfg.MaxNavigationsPerPage = p.int("MAX_NAVIGATIONS_PER_PAGE", 30)
	cfg.PoliteDelay = p.duration("POLITE_DELAY", 3*time.Second)
	cfg.PoliteJitter = p.duration("POLITE_JITTER", 2*time.Second)
	cfg.MaxParallelSources = p.int("MAX_PARALLEL_SOURCES", 1)
	cfg.UserAgent = getEnv("USER_AGENT", "")
	cfg.AcceptLanguage = getEnv("ACCEPT_LANGUAGE", "en-GB,en;q=0.5")
	cfg.MaxBodyBytes = int64(p.int("MAX_BODY_BYTES", 5<<20))
	cfg.MaxRedirects = p.int("MAX_REDIRECTS", 10)

	cfg.DatabaseURL = getEnv("DATABASE_URL", "")
	cfg.MetricsFile = getEnv("METRICS_FILE", "")
	cfg.MetricsAddr = getEnv("METRICS_ADDR", "")
	cfg.LogFile = getEnv("LOG_FILE", "logs/blocklist.log")
	cfg.LogLevel = getEnv("LOG_LEVEL", "info")

	if len(p.errs) > 0 {
		return cfg, fmt.Errorf("%w: %s", domain.ErrConfiguration, strings.Join(p.errs, "; "))
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadSources reads the YAML rule-set file at path.
func LoadSources(path string) (*Sources, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read sources file: %v", domain.ErrConfiguration, err)
	}
	var src Sources
	if err := yaml.Unmarshal(data, &src); err != nil {
		return nil, fmt.Errorf("%w: parse sources file %s: %v", domain.ErrConfiguration, path, err)
	}
	return &src, nil
}

func (s *Sources) apply(cfg *Config) {
	for _, f := range []struct {
		dst *[]string
		src []string
	}{
		{&cfg.Aggregators, s.Aggregators},
		{&cfg.Exclusions, s.Exclusions},
		{&cfg.TLDs, s.TLDs},
		{&cfg.Keywords, s.Keywords},
		{&cfg.RedirectPatterns, s.RedirectPatterns},
		{&cfg.CTAPhrases, s.CTAPhrases},
	} {
		if len(f.src) > 0 {
			*f.dst = f.src
		}
	}
}

// normalize lower-cases the rule sets and folds every aggregator host into
// the exclusion set, so a source never lists itself.
func (c *Config) normalize() {
	aggregators := c.Aggregators[:0:0]
	for _, a := range c.Aggregators {
		if a = strings.TrimSpace(a); a != "" {
			aggregators = append(aggregators, a)
		}
	}
	c.Aggregators = aggregators
	c.Exclusions = cleanList(c.Exclusions, domain.StripWWW)
	c.TLDs = cleanList(c.TLDs, func(s string) string {
		if !strings.HasPrefix(s, ".") {
			s = "." + s
		}
		return s
	})
	c.Keywords = cleanList(c.Keywords, nil)
	c.CTAPhrases = cleanList(c.CTAPhrases, nil)
	c.RedirectPatterns = cleanList(c.RedirectPatterns, nil)

	seen := make(map[string]bool, len(c.Exclusions))
	for _, e := range c.Exclusions {
		seen[e] = true
	}
	for _, a := range c.Aggregators {
		host := domain.StripWWW(domain.HostOf(a))
		if host != "" && !seen[host] {
			seen[host] = true
			c.Exclusions = append(c.Exclusions, host)
		}
	}

	if c.MaxParallelSources > maxParallelSources {
		slog.Warn("MAX_PARALLEL_SOURCES clamped", "value", c.MaxParallelSources, "max", maxParallelSources)
		c.MaxParallelSources = maxParallelSources
	}
	if c.MaxParallelSources < 1 {
		c.MaxParallelSources = 1
	}
}

func (c Config) Validate() error {
	var problems []string

	if len(c.Aggregators) == 0 {
		problems = append(problems, "no aggregator URLs")
	}
	for _, a := range c.Aggregators {
		u, err := url.Parse(a)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			problems = append(problems, fmt.Sprintf("invalid aggregator URL %q", a))
		}
	}
	if len(c.Exclusions) == 0 {
		problems = append(problems, "exclusion set is empty")
	}
	if len(c.TLDs) == 0 && len(c.Keywords) == 0 && !c.Permissive {
		problems = append(problems, "no gambling TLDs or keywords")
	}
	// VARIANT_MAX=0 turns variant generation off.
	if c.VariantMin < 0 || c.VariantMax > 99 || (c.VariantMax != 0 && c.VariantMax < c.VariantMin) {
		problems = append(problems, fmt.Sprintf("invalid variant range %d..%d", c.VariantMin, c.VariantMax))
	}
	if c.FetchTimeout <= 0 {
		problems = append(problems, "FETCH_TIMEOUT must be positive")
	}
	if c.NavigationTimeout <= 0 {
		problems = append(problems, "NAVIGATION_TIMEOUT must be positive")
	}
	if c.MaxNavigationsPerPage < 0 {
		problems = append(problems, "MAX_NAVIGATIONS_PER_PAGE must not be negative")
	}
	if c.PoliteDelay < 0 || c.PoliteJitter < 0 {
		problems = append(problems, "polite delay and jitter must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

func (c Config) Rules() classifier.Rules {
	return classifier.Rules{
		Exclusions: c.Exclusions,
		TLDs:       c.TLDs,
		Keywords:   c.Keywords,
		Permissive: c.Permissive,
	}
}

func (c Config) ResolverConfig() resolver.Config {
	return resolver.Config{
		RedirectPatterns:      c.RedirectPatterns,
		CTAPhrases:            c.CTAPhrases,
		MaxNavigationsPerPage: c.MaxNavigationsPerPage,
	}
}

// parser collects conversion failures instead of silently falling back.
type parser struct {
	errs []string
}

func (p *parser) int(key string, def int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Sprintf("invalid %s %q", key, raw))
		return def
	}
	return v
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Sprintf("invalid %s %q", key, raw))
		return def
	}
	return v
}

func (p *parser) bool(key string, def bool) bool {
	raw := getEnv(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		p.errs = append(p.errs, fmt.Sprintf("invalid %s %q", key, raw))
		return def
	}
	return v
}

func overrideList(dst *[]string, key string) {
	if raw := getEnv(key, ""); raw != "" {
		*dst = strings.Split(raw, ",")
	}
}

func cleanList(in []string, fn func(string) string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if fn != nil {
			s = fn(s)
		}
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultVal
}
