package chat

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/iWorld-y/match_radar/app/match_radar/pkg/model"
)

const (
	maxSnippets     = 3
	maxSnippetRunes = 100
)

// BuildContext 组装问答可用的全部上下文：比赛信息、代表性分析、
// 与之不同的数据库洞察，以及至多 3 条历史记忆
func BuildContext(q model.MatchQuery, r *model.AnalysisResult, snippets []model.MemoryRecord) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "MATCH: %s\n", q.Title())
	if q.League != "" {
		fmt.Fprintf(&sb, "LEAGUE: %s\n", q.League)
	}
	fmt.Fprintf(&sb, "DATE: %s\n", q.Date.Format("02 January 2006"))

	analysis := r.Canonical()
	if strings.TrimSpace(analysis) == "" {
		analysis = "Analysis not available."
	}
	fmt.Fprintf(&sb, "\nANALYSIS:\n%s\n", strings.TrimSpace(analysis))

	if ins := r.Insights(); strings.TrimSpace(ins) != "" && ins != analysis {
		fmt.Fprintf(&sb, "\nDATABASE INSIGHTS:\n%s\n", strings.TrimSpace(ins))
	}

	if len(snippets) > 0 {
		sb.WriteString("\nPRIOR CONVERSATION CONTEXT:\n")
		for i, m := range snippets {
			if i == maxSnippets {
				break
			}
			fmt.Fprintf(&sb, "- %s: %s\n", truncate(m.Query, maxSnippetRunes), truncate(m.Response, maxSnippetRunes))
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
