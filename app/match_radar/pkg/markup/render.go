package markup

import (
	"html/template"
	"strings"

	"github.com/iWorld-y/match_radar/app/match_radar/pkg/model"
)

// 区块注释由 html/template 以外拼接，模板会剥离注释
const (
	blockOpen  = "<!-- wp:html -->\n"
	blockClose = "\n<!-- /wp:html -->"
)

const articleTpl = `<style>
    .match-info { text-align: center; font-size: 1.2em; color: #666; margin-bottom: 2em; }
    .match-banner { display: flex; justify-content: space-between; align-items: center; background: #f5f5f5; padding: 2em; border-radius: 10px; margin: 2em 0; }
    .team { font-size: 1.5em; font-weight: bold; flex: 1; }
    .home-team { text-align: right; }
    .away-team { text-align: left; }
    .vs { font-size: 1.2em; padding: 0 2em; color: #999; }
    .intro { font-size: 1.1em; line-height: 1.6; }
    .divider { height: 1px; background: #ddd; margin: 2em 0; }
    .disclaimer { background: #f8f8f8; padding: 1em; border-left: 4px solid #d44; margin: 2em 0; }
</style>
<h1>{{.Title}} - Match Analysis</h1>
<p class="match-info">{{.Subtitle}}</p>
<div class="match-banner">
    <div class="team home-team">{{.Home}}</div>
    <div class="vs">VS</div>
    <div class="team away-team">{{.Away}}</div>
</div>
<p class="intro">Welcome to our in-depth match analysis and prediction. We break down the key factors that could influence the outcome of this match, including team form, key players, tactics and historical head-to-head records.</p>
<div class="divider"></div>
<h2>Match Analysis</h2>
<div class="analysis-body">
{{template "blocks" .Main}}
</div>
{{- if .Insights}}
<h2>Statistical Insights</h2>
<div class="analysis-insights">
{{template "blocks" .Insights}}
</div>
{{- end}}
<div class="divider"></div>
<h2>Conclusion</h2>
<p>This analysis combines the latest news with statistical data. Football remains inherently unpredictable, so treat it as one of many resources when making betting decisions.</p>
<p class="disclaimer"><strong>Disclaimer:</strong> This content is for informational purposes only. Betting involves risk and you should never bet more than you can afford to lose.</p>
{{define "blocks"}}
{{- range .}}
{{- if eq .Level 2}}
<h2>{{.Text}}</h2>
{{- else if eq .Level 3}}
<h3>{{.Text}}</h3>
{{- else if eq .Level 4}}
<h4>{{.Text}}</h4>
{{- else}}
<p>{{range $i, $l := .Lines}}{{if $i}}<br>{{end}}{{$l}}{{end}}</p>
{{- end}}
{{- end}}
{{- end}}`

var article = template.Must(template.New("article").Parse(articleTpl))

// block 正文中的一个段落或标题，Level 为 0 表示段落
type block struct {
	Level int
	Text  string
	Lines []string
}

type articleData struct {
	Title    string
	Subtitle string
	Home     string
	Away     string
	Main     []block
	Insights []block
}

// Render 生成可直接发布的文章标记。正文取代表性分析，
// db_insights 与正文不同时追加统计洞察小节
func Render(q model.MatchQuery, r *model.AnalysisResult) (string, error) {
	main := r.Canonical()
	if strings.TrimSpace(main) == "" {
		main = "Analysis not available."
	}
	data := articleData{
		Title:    q.Title(),
		Subtitle: q.Date.Format("02 January 2006"),
		Home:     q.HomeTeam,
		Away:     q.AwayTeam,
		Main:     blocks(main),
	}
	if q.League != "" {
		data.Subtitle = q.League + " | " + data.Subtitle
	}
	if ins := r.Insights(); strings.TrimSpace(ins) != "" && ins != main {
		data.Insights = blocks(ins)
	}

	var sb strings.Builder
	sb.WriteString(blockOpen)
	if err := article.Execute(&sb, data); err != nil {
		return "", err
	}
	sb.WriteString(blockClose)
	return sb.String(), nil
}

// blocks 按空行切分段落，段首的 # 行转为标题，段内换行保留为 <br>
func blocks(text string) []block {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var out []block
	for _, para := range strings.Split(text, "\n\n") {
		lines := nonEmptyLines(para)
		if len(lines) == 0 {
			continue
		}
		if level, title, ok := heading(lines[0]); ok {
			out = append(out, block{Level: level, Text: title})
			lines = lines[1:]
		}
		if len(lines) > 0 {
			out = append(out, block{Lines: lines})
		}
	}
	return out
}

func heading(line string) (int, string, bool) {
	n := 0
	for n < len(line) && line[n] == '#' {
		n++
	}
	if n == 0 || n > 4 {
		return 0, "", false
	}
	title := strings.TrimSpace(line[n:])
	if title == "" {
		return 0, "", false
	}
	if n == 1 {
		n = 2
	}
	return n, title, true
}

func nonEmptyLines(s string) []string {
	var lines []string
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return lines
}
