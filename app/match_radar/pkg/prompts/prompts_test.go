package prompts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_RendersEveryStage(t *testing.T) {
	s := Default()
	in := Input{
		Topic:            "Arsenal vs Chelsea Premier League 01 May 2024",
		RawNews:          "RAW",
		SynthesizedNews:  "SYN",
		InitialAnalysis:  "INIT",
		EnhancedAnalysis: "ENH",
		DBInsights:       "DB",
		StatsData:        "STATS",
		Context:          "CTX",
		Question:         "Who wins?",
	}

	for name, tc := range map[string]struct {
		tpl  *Template
		want []string
	}{
		"synthesize": {&s.Synthesize, []string{"RAW"}},
		"summarize":  {&s.Summarize, []string{"SYN"}},
		"elaborate":  {&s.Elaborate, []string{"MATCH: Arsenal vs Chelsea", "INITIAL ANALYSIS:\nINIT", "RAW"}},
		"insights":   {&s.Insights, []string{"STATS"}},
		"combine":    {&s.Combine, []string{"NEWS-BASED ANALYSIS:\nENH", "DATABASE INSIGHTS:\nDB"}},
	} {
		t.Run(name, func(t *testing.T) {
			sys, user, err := tc.tpl.Render(in)
			require.NoError(t, err)
			assert.NotEmpty(t, sys)
			for _, w := range tc.want {
				assert.Contains(t, user, w)
			}
		})
	}

	sys, user, err := s.Chat.Render(in)
	require.NoError(t, err)
	assert.Contains(t, sys, "Use the following football match analysis as context for answering user questions:\n\nCTX")
	assert.Equal(t, "Who wins?", user)
}

func TestLoad_OverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
version: 2
summarize:
  system: "Be brief."
  user: "Summarize {{.SynthesizedNews}}"
`), 0o600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Version)

	sys, user, err := s.Summarize.Render(Input{SynthesizedNews: "this"})
	require.NoError(t, err)
	assert.Equal(t, "Be brief.", sys)
	assert.Equal(t, "Summarize this", user)

	// 未覆盖的阶段保留内置模板
	_, user, err = s.Combine.Render(Input{EnhancedAnalysis: "E", DBInsights: "D"})
	require.NoError(t, err)
	assert.Contains(t, user, "DATABASE INSIGHTS:\nD")
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("combine:\n  user: \"{{.Broken\"\n"), 0o600))
	_, err = Load(path)
	assert.Error(t, err)

	s, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 1, s.Version)
}
