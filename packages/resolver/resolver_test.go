package resolver

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/dancharlton9/gambling-blocklist/packages/classifier"
	"github.com/dancharlton9/gambling-blocklist/packages/domain"
)

type fakeNavigator struct {
	finals map[string]string
	errs   map[string]error
	calls  []string
}

func (f *fakeNavigator) Navigate(ctx context.Context, rawURL string) (string, error) {
	f.calls = append(f.calls, rawURL)
	if err, ok := f.errs[rawURL]; ok {
		return "", err
	}
	if final, ok := f.finals[rawURL]; ok {
		return final, nil
	}
	return rawURL, nil
}

func testConfig() Config {
	return Config{
		RedirectPatterns:      []string{"/go/", "/out/", "/visit/", "/redirect/", "/link/", "/click/", "/track/", "/aff/", "/partner/", "/ref/"},
		CTAPhrases:            []string{"play now", "visit", "claim bonus", "sign up"},
		MaxNavigationsPerPage: 30,
	}
}

func testRules() classifier.Rules {
	return classifier.Rules{
		Exclusions: []string{"agg.example", "gamstop.co.uk"},
		TLDs:       []string{".casino", ".bet"},
		Keywords:   []string{"casino", "slots", "spin"},
	}
}

func candidate(href, text string) domain.CandidateURL {
	return domain.CandidateURL{RawHref: href, VisibleText: text, SourcePageDomain: "agg.example"}
}

func TestInspect(t *testing.T) {
	r := New(testConfig(), testRules(), &fakeNavigator{})

	tests := []struct {
		name       string
		c          domain.CandidateURL
		wantState  domain.ResolveState
		wantMethod domain.ResolveMethod
		wantDest   string
	}{
		{
			name:       "external link is direct",
			c:          candidate("https://WinBig.casino/welcome", "WinBig"),
			wantState:  domain.StateDirect,
			wantMethod: domain.MethodLink,
			wantDest:   "winbig.casino",
		},
		{
			name:       "www variant of source is same origin",
			c:          candidate("https://www.agg.example/reviews/", "Reviews"),
			wantState:  domain.StateSameOriginPlain,
			wantMethod: domain.MethodNone,
		},
		{
			name:       "subdomain of source without signals is plain",
			c:          candidate("https://blog.agg.example/post", "Read more"),
			wantState:  domain.StateSameOriginPlain,
			wantMethod: domain.MethodNone,
		},
		{
			name:       "redirect path with url param",
			c:          candidate("https://agg.example/out/aff123?url=https%3A%2F%2Fwinbig.casino", "Play Now"),
			wantState:  domain.StateResolved,
			wantMethod: domain.MethodQueryParam,
			wantDest:   "winbig.casino",
		},
		{
			name:       "cta text with double encoded param",
			c:          candidate("https://agg.example/bonus?target=https%253A%252F%252Fspinland.bet%252Fjoin", "Claim Bonus"),
			wantState:  domain.StateResolved,
			wantMethod: domain.MethodQueryParam,
			wantDest:   "spinland.bet",
		},
		{
			name:       "schemeless param value",
			c:          candidate("https://agg.example/go/?u=luckyslots.com/landing", ""),
			wantState:  domain.StateResolved,
			wantMethod: domain.MethodQueryParam,
			wantDest:   "luckyslots.com",
		},
		{
			name:       "higher priority param wins",
			c:          candidate("https://agg.example/go/x?d=second.casino&url=first.casino", ""),
			wantState:  domain.StateResolved,
			wantMethod: domain.MethodQueryParam,
			wantDest:   "first.casino",
		},
		{
			name:       "param pointing back to source is ignored",
			c:          candidate("https://agg.example/visit/winbig.casino?redirect=https://agg.example/home", ""),
			wantState:  domain.StateResolved,
			wantMethod: domain.MethodPathToken,
			wantDest:   "winbig.casino",
		},
		{
			name:       "path token must classify",
			c:          candidate("https://agg.example/go/index.html", "Play now"),
			wantState:  domain.StateRedirectCandidate,
			wantMethod: domain.MethodNone,
		},
		{
			name:       "redirect path without trailing slash",
			c:          candidate("https://agg.example/out?id=42", ""),
			wantState:  domain.StateRedirectCandidate,
			wantMethod: domain.MethodNone,
		},
		{
			name:       "opaque redirect needs navigation",
			c:          candidate("https://agg.example/track/8812", "Visit Casino"),
			wantState:  domain.StateRedirectCandidate,
			wantMethod: domain.MethodNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := r.Inspect(tt.c)
			if got.State != tt.wantState {
				t.Fatalf("State = %s, want %s (err %v)", got.State, tt.wantState, got.Err)
			}
			if got.Method != tt.wantMethod {
				t.Errorf("Method = %s, want %s", got.Method, tt.wantMethod)
			}
			if got.Destination != tt.wantDest {
				t.Errorf("Destination = %q, want %q", got.Destination, tt.wantDest)
			}
		})
	}
}

func TestResolvePage_Navigation(t *testing.T) {
	nav := &fakeNavigator{
		finals: map[string]string{
			"https://agg.example/track/1": "https://www.spinland.bet/?ref=agg",
			"https://agg.example/track/2": "https://agg.example/closed",
		},
		errs: map[string]error{
			"https://agg.example/track/3": fmt.Errorf("%w: context deadline exceeded", domain.ErrNavigationTimeout),
			"https://agg.example/track/4": errors.New("dial tcp: lookup failed"),
			"https://agg.example/track/5": context.DeadlineExceeded,
		},
	}
	r := New(testConfig(), testRules(), nav)

	got := r.ResolvePage(context.Background(), []domain.CandidateURL{
		candidate("https://agg.example/track/1", "Visit"),
		candidate("https://agg.example/track/2", "Visit"),
		candidate("https://agg.example/track/3", "Visit"),
		candidate("https://agg.example/track/4", "Visit"),
		candidate("https://agg.example/track/5", "Visit"),
		candidate("https://winbig.casino/", "WinBig"),
	})

	if got[0].State != domain.StateResolved || got[0].Destination != "www.spinland.bet" || got[0].Method != domain.MethodNavigation {
		t.Errorf("track/1 = %+v, want RESOLVED www.spinland.bet via navigation", got[0])
	}
	if got[1].State != domain.StateFailed || !errors.Is(got[1].Err, domain.ErrNavigation) {
		t.Errorf("track/2 = %+v, want FAILED ending on source origin", got[1])
	}
	if got[2].State != domain.StateFailed || !errors.Is(got[2].Err, domain.ErrNavigationTimeout) {
		t.Errorf("track/3 = %+v, want FAILED timeout", got[2])
	}
	if got[3].State != domain.StateFailed || !errors.Is(got[3].Err, domain.ErrNavigation) {
		t.Errorf("track/4 = %+v, want FAILED navigation error", got[3])
	}
	if got[4].State != domain.StateFailed || !errors.Is(got[4].Err, domain.ErrNavigationTimeout) {
		t.Errorf("track/5 = %+v, want FAILED timeout from deadline", got[4])
	}
	if got[5].State != domain.StateDirect {
		t.Errorf("direct candidate = %+v, want DIRECT", got[5])
	}
	if len(nav.calls) != 5 {
		t.Errorf("navigations = %d, want 5", len(nav.calls))
	}
}

func TestResolvePage_CapBoundsNavigation(t *testing.T) {
	cfg := testConfig()
	cfg.MaxNavigationsPerPage = 2
	nav := &fakeNavigator{}
	r := New(cfg, testRules(), nav)

	var cs []domain.CandidateURL
	for i := 0; i < 5; i++ {
		cs = append(cs, candidate(fmt.Sprintf("https://agg.example/click/%d", i), "Play now"))
	}
	// Settled without the network; must not consume budget.
	cs = append(cs, candidate("https://agg.example/out/?url=winbig.casino", "Play now"))

	got := r.ResolvePage(context.Background(), cs)

	if len(nav.calls) != 2 {
		t.Fatalf("navigations = %d, want 2", len(nav.calls))
	}
	capped := 0
	for _, res := range got[:5] {
		if res.Method == domain.MethodCapped {
			capped++
			if res.State != domain.StateFailed {
				t.Errorf("capped candidate state = %s, want FAILED", res.State)
			}
		}
	}
	if capped != 3 {
		t.Errorf("capped = %d, want 3", capped)
	}
	if got[5].State != domain.StateResolved || got[5].Destination != "winbig.casino" {
		t.Errorf("query candidate = %+v, want RESOLVED winbig.casino", got[5])
	}
}

func TestResolvePage_SameHrefNavigatedOnce(t *testing.T) {
	nav := &fakeNavigator{finals: map[string]string{"https://agg.example/go/77": "https://spinland.bet/"}}
	r := New(testConfig(), testRules(), nav)

	got := r.ResolvePage(context.Background(), []domain.CandidateURL{
		candidate("https://agg.example/go/77", "Play now"),
		candidate("https://agg.example/go/77", "Visit"),
	})

	if len(nav.calls) != 1 {
		t.Fatalf("navigations = %d, want 1", len(nav.calls))
	}
	for i, res := range got {
		if res.State != domain.StateResolved || res.Destination != "spinland.bet" {
			t.Errorf("result[%d] = %+v, want RESOLVED spinland.bet", i, res)
		}
	}
	if got[1].Candidate.VisibleText != "Visit" {
		t.Errorf("cached result lost its own candidate: %+v", got[1].Candidate)
	}
}

func TestResolve_CanceledContext(t *testing.T) {
	nav := &fakeNavigator{}
	r := New(testConfig(), testRules(), nav)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := r.Resolve(ctx, candidate("https://agg.example/ref/abc", ""), NewBudget(5))
	if got.State != domain.StateFailed || len(nav.calls) != 0 {
		t.Fatalf("Resolve on canceled ctx = %+v (calls %d), want FAILED without navigation", got, len(nav.calls))
	}
}

func TestBudget(t *testing.T) {
	b := NewBudget(2)
	if !b.Take() || !b.Take() {
		t.Fatal("expected two successful takes")
	}
	if b.Take() {
		t.Fatal("expected third take to fail")
	}
	if got := b.Remaining(); got != 0 {
		t.Fatalf("Remaining after exhaustion = %d, want 0", got)
	}
	if got := NewBudget(3).Remaining(); got != 3 {
		t.Fatalf("Remaining on fresh budget = %d, want 3", got)
	}
	if NewBudget(-1).Take() {
		t.Fatal("negative budget must not allow navigation")
	}
	var nilBudget *Budget
	if nilBudget.Take() || nilBudget.Remaining() != 0 {
		t.Fatal("nil budget must not allow navigation")
	}
}
