package notify

import (
	"fmt"
	"strings"
)

// Message is the webhook body: fallback text plus Block Kit blocks.
type Message struct {
	Text   string  `json:"text"`
	Blocks []Block `json:"blocks,omitempty"`
}

// Block is one Block Kit element. Text is absent for dividers.
type Block struct {
	Type string `json:"type"`
	Text *Text  `json:"text,omitempty"`
}

// Text is the inner text object of a header or section block.
type Text struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

func header(s string) Block {
	return Block{Type: "header", Text: &Text{Type: "plain_text", Text: s, Emoji: true}}
}

func section(md string) Block {
	return Block{Type: "section", Text: &Text{Type: "mrkdwn", Text: md}}
}

func divider() Block {
	return Block{Type: "divider"}
}

// Display caps. Slack truncates messages past 50 blocks, so each list shows
// its head and the counts carry the rest.
const (
	maxTextChangesShown = 3
	maxNewPagesShown    = 2
	maxVisualShown      = 3
	maxAlertsShown      = 3
	maxArticlesPerSite  = 5
)

// BuildMessage renders a payload into the webhook message.
func BuildMessage(p *Payload) Message {
	date := p.GeneratedAt.Format("Jan 2, 2006")

	if !p.HasContent() {
		return Message{
			Text: "Competitor Monitor: No significant changes detected this week.",
			Blocks: []Block{
				header("🔍 Competitor Monitor - " + date),
				section("No significant changes detected."),
			},
		}
	}

	msg := Message{
		Text:   "🔍 Competitor Monitor: Changes detected!",
		Blocks: []Block{header("🔍 Competitor Monitor - " + date)},
	}

	var quiet []string
	for i := range p.Competitors {
		c := &p.Competitors[i]
		if sectionHasContent(c) {
			msg.Blocks = append(msg.Blocks, competitorBlocks(c)...)
			msg.Blocks = append(msg.Blocks, divider())
		} else {
			quiet = append(quiet, c.Name)
		}
	}
	if len(quiet) > 0 {
		msg.Blocks = append(msg.Blocks, section("No changes: "+strings.Join(quiet, ", ")))
	}

	if len(p.Mentions) > 0 {
		msg.Blocks = append(msg.Blocks, mentionBlocks(p.Mentions)...)
	}
	if len(p.Errors) > 0 {
		msg.Blocks = append(msg.Blocks, errorBlocks(p.Errors)...)
	}
	return msg
}

func sectionHasContent(c *CompetitorSection) bool {
	if c.Report == nil {
		return false
	}
	return c.Report.HasChanges() || len(c.Report.KeywordAlerts) > 0
}

func competitorBlocks(c *CompetitorSection) []Block {
	r := c.Report
	name := "*" + c.Name + "*"
	if c.Tier != "" {
		name = "*[" + c.Tier + "] " + c.Name + "*"
	}

	var parts []string
	if n := len(r.NewPages); n > 0 {
		parts = append(parts, fmt.Sprintf("%d new", n))
	}
	if n := len(r.RemovedPages); n > 0 {
		parts = append(parts, fmt.Sprintf("%d removed", n))
	}
	if n := len(r.TextChanges); n > 0 {
		parts = append(parts, fmt.Sprintf("%d changed", n))
	}
	summary := name
	if len(parts) > 0 {
		summary += " - " + strings.Join(parts, ", ") + " pages"
	}

	var b strings.Builder
	b.WriteString(summary)

	for i, pc := range r.PricingChanges {
		if i >= maxTextChangesShown {
			break
		}
		fmt.Fprintf(&b, "\n🚨 *Pricing change*: <%s|%s> %.1f%% changed", pc.URL, pc.URL, pc.ChangePercent)
	}
	if c.PricingExcerpt != "" {
		fmt.Fprintf(&b, "\n> %s", strings.ReplaceAll(truncate(c.PricingExcerpt, 300), "\n", "\n> "))
	}

	shown := 0
	for _, tc := range r.TextChanges {
		if tc.IsPricing {
			continue
		}
		if shown >= maxTextChangesShown {
			break
		}
		fmt.Fprintf(&b, "\n• <%s|Page> changed by %.1f%%", tc.URL, tc.ChangePercent)
		shown++
	}
	for i, u := range r.NewPages {
		if i >= maxNewPagesShown {
			break
		}
		fmt.Fprintf(&b, "\n• New: <%s|%s>", u, truncate(u, 50))
	}
	for i, vc := range r.VisualChanges {
		if i >= maxVisualShown {
			break
		}
		fmt.Fprintf(&b, "\n👁️ <%s|Page> visual diff %.0f%%", vc.URL, vc.DiffScore)
	}
	for i, ka := range r.KeywordAlerts {
		if i >= maxAlertsShown {
			break
		}
		fmt.Fprintf(&b, "\n🚨 `%s` on <%s|Page>: %s", ka.Keyword, ka.URL, ka.Context)
	}

	return []Block{section(b.String())}
}

func mentionBlocks(mentions []MentionItem) []Block {
	blocks := []Block{
		section(fmt.Sprintf("📰 *NEW MEDIA MENTIONS* (%d articles)", len(mentions))),
	}

	// Group per site, keeping first-seen site order.
	var sites []string
	bySite := map[string][]MentionItem{}
	for _, m := range mentions {
		if _, ok := bySite[m.Site]; !ok {
			sites = append(sites, m.Site)
		}
		bySite[m.Site] = append(bySite[m.Site], m)
	}

	for _, site := range sites {
		items := bySite[site]
		label := "*" + site + "*"
		if cat := items[0].Category; cat != "" {
			label += " (" + cat + ")"
		}
		var lines []string
		for i, m := range items {
			if i >= maxArticlesPerSite {
				break
			}
			title := m.Title
			if title == "" {
				title = "Article"
			}
			line := fmt.Sprintf("• <%s|%s>", m.URL, truncate(title, 50))
			if len(m.Terms) > 0 {
				line += "\n  _Mentions: " + strings.Join(m.Terms, ", ") + "_"
			}
			lines = append(lines, line)
		}
		blocks = append(blocks, section(label+":\n"+strings.Join(lines, "\n")))
	}

	blocks = append(blocks, divider())
	return blocks
}

func errorBlocks(errs []ErrorItem) []Block {
	var lines []string
	for _, e := range errs {
		line := "• "
		if e.Competitor != "" {
			line += e.Competitor + " "
		}
		if e.Stage != "" {
			line += "(" + e.Stage + ") "
		}
		line += e.Message
		lines = append(lines, line)
	}
	return []Block{section("⚠️ *Errors*\n" + strings.Join(lines, "\n"))}
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
