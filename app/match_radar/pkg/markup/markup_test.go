package markup

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iWorld-y/match_radar/app/match_radar/pkg/model"
)

func query(t *testing.T) model.MatchQuery {
	t.Helper()
	q, err := model.ParseMatchQuery("Arsenal", "Chelsea", "Premier League", "2024-05-01")
	require.NoError(t, err)
	return q
}

func TestRender(t *testing.T) {
	insights := "Arsenal unbeaten in 6."
	r := &model.AnalysisResult{
		EnhancedAnalysis: "## Team News\nSaka fit.\nRice & Odegaard start.\n\nArsenal are favourites.",
		DBInsights:       &insights,
	}

	html, err := Render(query(t), r)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(html, "<!-- wp:html -->"))
	assert.True(t, strings.HasSuffix(html, "<!-- /wp:html -->"))
	assert.Contains(t, html, "<h1>Arsenal vs Chelsea - Match Analysis</h1>")
	assert.Contains(t, html, `<p class="match-info">Premier League | 01 May 2024</p>`)
	assert.Contains(t, html, "<h2>Team News</h2>")
	assert.Contains(t, html, "<p>Saka fit.<br>Rice &amp; Odegaard start.</p>")
	assert.Contains(t, html, "<h2>Statistical Insights</h2>")
	assert.Contains(t, html, `class="disclaimer"`)
}

func TestRender_InsightsOnlyOnce(t *testing.T) {
	insights := "Only statistics."
	html, err := Render(query(t), &model.AnalysisResult{DBInsights: &insights})
	require.NoError(t, err)
	assert.NotContains(t, html, "Statistical Insights")
	assert.Equal(t, 1, strings.Count(html, "Only statistics."))
}

func TestStrip_RoundTrip(t *testing.T) {
	text := "Saka fit.\nRice & Odegaard start.\n\nArsenal are favourites."
	html, err := Render(query(t), &model.AnalysisResult{EnhancedAnalysis: text})
	require.NoError(t, err)

	got, err := Strip(html)
	require.NoError(t, err)
	assert.Equal(t, text, got)

	// 已是纯文本时不再变化
	again, err := Strip(got)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

func TestStrip_Headings(t *testing.T) {
	html, err := Render(query(t), &model.AnalysisResult{EnhancedAnalysis: "### Tactics\nHigh press.\n\nDraw likely."})
	require.NoError(t, err)

	got, err := Strip(html)
	require.NoError(t, err)
	assert.Equal(t, "### Tactics\n\nHigh press.\n\nDraw likely.", got)
}

func TestStrip_LegacyMarkup(t *testing.T) {
	legacy := `<style>.x{}</style>
<h1>Arsenal vs Chelsea - Match Analysis</h1>
<div class="match-banner"><div class="team">Arsenal</div><div class="vs">VS</div></div>
<div class="divider"></div>
<h2>Match Analysis</h2>
<p>Arsenal to win.</p>
<p class="disclaimer"><strong>Disclaimer:</strong> gamble responsibly.</p>`

	got, err := Strip(legacy)
	require.NoError(t, err)
	assert.Equal(t, "Arsenal vs Chelsea - Match Analysis\n\n## Match Analysis\n\nArsenal to win.", got)
	assert.False(t, IsMarkup(got))
}

func TestStrip_Idempotent(t *testing.T) {
	inputs := []string{
		"<p>Tip: use &lt;b&gt;Over 2.5&lt;/b&gt; goals</p>",
		"<p>&amp;lt;i&amp;gt;nested&amp;lt;/i&amp;gt;</p>",
		"Saka <i>should</i> start.<br>Rice too.",
		"<div>Arsenal to win.</div>",
		"plain text, no tags",
	}
	for _, in := range inputs {
		once, err := Strip(in)
		require.NoError(t, err, in)
		twice, err := Strip(once)
		require.NoError(t, err, in)
		assert.Equal(t, once, twice, in)
		assert.NotEmpty(t, once, in)
	}

	got, err := Strip("<p>Tip: use &lt;b&gt;Over 2.5&lt;/b&gt; goals</p>")
	require.NoError(t, err)
	assert.Equal(t, "Tip: use Over 2.5 goals", got)

	got, err = Strip("Saka <i>should</i> start.")
	require.NoError(t, err)
	assert.Equal(t, "Saka should start.", got)
}

func TestStripOrRaw(t *testing.T) {
	assert.Equal(t, "plain", StripOrRaw("  plain "))
	assert.Equal(t, "<div></div>", StripOrRaw("<div></div>"))
}

func TestExtractBettingInsights(t *testing.T) {
	text := `## Form
Arsenal strong.

## Betting Takeaways
- **Match Result:** Back Arsenal to win, odds around **1.85**.
- **Goals** Over 2.5 looks fair
Some closing remark.

## Conclusion
Done.`

	b := ExtractBettingInsights(text)
	require.NotNil(t, b)
	assert.NotContains(t, b.Section, "Conclusion")
	require.Len(t, b.Recommendations, 2)
	assert.Equal(t, Recommendation{Type: "Match Result", Pick: "Back Arsenal to win, odds around 1.85.", Odds: "1.85"}, b.Recommendations[0])
	assert.Equal(t, "Goals", b.Recommendations[1].Type)

	infos := b.BetInfos()
	assert.InDelta(t, 1.85, infos["Match Result"].Odds.Decimal, 1e-9)
	assert.Equal(t, "Over 2.5 looks fair", infos["Goals"].Odds.Text)
	assert.Equal(t, model.TierUnknown, infos["Goals"].Tier)

	assert.Nil(t, ExtractBettingInsights("No markets discussed."))
	assert.Nil(t, (*Betting)(nil).BetInfos())
}
