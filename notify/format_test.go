package notify

import (
	"strings"
	"testing"
	"time"

	"github.com/vigilhq/vigil/snapshot"
)

func changedReport() *snapshot.ChangeReport {
	return &snapshot.ChangeReport{
		Competitor:   "acme",
		NewPages:     []string{"https://acme.example/blog"},
		RemovedPages: []string{"https://acme.example/legacy"},
		TextChanges: []snapshot.TextChange{
			{URL: "https://acme.example/about", ChangePercent: 15.5},
			{URL: "https://acme.example/pricing", ChangePercent: 12.5, IsPricing: true},
		},
		PricingChanges: []snapshot.TextChange{
			{URL: "https://acme.example/pricing", ChangePercent: 12.5, IsPricing: true},
		},
		VisualChanges: []snapshot.VisualChange{
			{URL: "https://acme.example", DiffScore: 23},
		},
		KeywordAlerts: []snapshot.KeywordAlert{
			{URL: "https://acme.example/blog", Keyword: "enterprise", Context: "...launching Enterprise API..."},
		},
	}
}

// flatten joins every block's text for substring assertions.
func flatten(t *testing.T, msg Message) string {
	t.Helper()
	var b strings.Builder
	for _, blk := range msg.Blocks {
		if blk.Text != nil {
			b.WriteString(blk.Text.Text)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// An empty run still produces a well-formed quiet-week message.
func TestBuildMessage_QuietWeek(t *testing.T) {
	p := &Payload{
		GeneratedAt: time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC),
		Competitors: []CompetitorSection{
			{Name: "acme", Report: &snapshot.ChangeReport{Competitor: "acme"}},
		},
	}

	msg := BuildMessage(p)
	if !strings.Contains(msg.Text, "No significant changes") {
		t.Errorf("fallback text = %q, want quiet-week wording", msg.Text)
	}
	if len(msg.Blocks) != 2 {
		t.Fatalf("got %d blocks, want header + summary", len(msg.Blocks))
	}
	if msg.Blocks[0].Type != "header" {
		t.Errorf("first block = %q, want header", msg.Blocks[0].Type)
	}
	if !strings.Contains(msg.Blocks[0].Text.Text, "Mar 14, 2026") {
		t.Errorf("header %q missing run date", msg.Blocks[0].Text.Text)
	}
}

func TestBuildMessage_Changes(t *testing.T) {
	p := &Payload{
		GeneratedAt: time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC),
		Competitors: []CompetitorSection{
			{Name: "acme", Tier: "Tier 1", Report: changedReport(), PricingExcerpt: "Pro plan now **$149/mo**"},
			{Name: "globex", Report: &snapshot.ChangeReport{Competitor: "globex"}},
		},
	}

	msg := BuildMessage(p)
	if !strings.Contains(msg.Text, "Changes detected") {
		t.Errorf("fallback text = %q, want changes wording", msg.Text)
	}

	all := flatten(t, msg)
	for _, want := range []string{
		"[Tier 1] acme",
		"1 new, 1 removed, 2 changed pages",
		"🚨 *Pricing change*",
		"12.5% changed",
		"> Pro plan now **$149/mo**",
		"changed by 15.5%",
		"New: <https://acme.example/blog",
		"visual diff 23%",
		"`enterprise`",
		"...launching Enterprise API...",
		"No changes: globex",
	} {
		if !strings.Contains(all, want) {
			t.Errorf("message missing %q\n%s", want, all)
		}
	}
}

// The pricing entry is called out in its own line, not buried in the
// generic changed-pages list.
func TestBuildMessage_PricingNotDoubleListed(t *testing.T) {
	p := &Payload{
		GeneratedAt: time.Now(),
		Competitors: []CompetitorSection{{Name: "acme", Report: changedReport()}},
	}

	all := flatten(t, BuildMessage(p))
	if got := strings.Count(all, "12.5%"); got != 1 {
		t.Errorf("pricing percent rendered %d times, want once", got)
	}
}

func TestBuildMessage_Mentions(t *testing.T) {
	p := &Payload{
		GeneratedAt: time.Now(),
		Mentions: []MentionItem{
			{Site: "TechNews", Category: "tech", Title: "Acme raises series B", URL: "https://technews.example/a1", Terms: []string{"acme"}},
			{Site: "TechNews", Category: "tech", Title: "Globex ships agents", URL: "https://technews.example/a2", Terms: []string{"globex", "agents"}},
			{Site: "BizWire", Title: "Market roundup", URL: "https://bizwire.example/b1", Terms: []string{"acme"}},
		},
	}

	all := flatten(t, BuildMessage(p))
	for _, want := range []string{
		"NEW MEDIA MENTIONS* (3 articles)",
		"*TechNews* (tech):",
		"Acme raises series B",
		"_Mentions: globex, agents_",
		"*BizWire*:",
	} {
		if !strings.Contains(all, want) {
			t.Errorf("message missing %q\n%s", want, all)
		}
	}
}

func TestBuildMessage_Errors(t *testing.T) {
	p := &Payload{
		GeneratedAt: time.Now(),
		Errors: []ErrorItem{
			{Competitor: "globex", Stage: "crawl", Message: "fetch homepage: http 503"},
		},
	}

	all := flatten(t, BuildMessage(p))
	if !strings.Contains(all, "⚠️ *Errors*") {
		t.Error("errors section missing")
	}
	if !strings.Contains(all, "• globex (crawl) fetch homepage: http 503") {
		t.Errorf("error line missing\n%s", all)
	}
}

// Long change lists are capped per competitor so one noisy site cannot
// blow Slack's block limit.
func TestBuildMessage_CapsLists(t *testing.T) {
	r := &snapshot.ChangeReport{Competitor: "acme"}
	for i := 0; i < 10; i++ {
		r.TextChanges = append(r.TextChanges, snapshot.TextChange{
			URL: "https://acme.example/p" + string(rune('a'+i)), ChangePercent: 50,
		})
	}
	p := &Payload{
		GeneratedAt: time.Now(),
		Competitors: []CompetitorSection{{Name: "acme", Report: r}},
	}

	all := flatten(t, BuildMessage(p))
	if got := strings.Count(all, "changed by 50.0%"); got != maxTextChangesShown {
		t.Errorf("%d change lines shown, want %d", got, maxTextChangesShown)
	}
	if !strings.Contains(all, "10 changed pages") {
		t.Errorf("summary count missing\n%s", all)
	}
}
