package prompts

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Input 模板可用字段，各阶段只使用其中一部分
type Input struct {
	Topic            string
	RawNews          string
	SynthesizedNews  string
	InitialAnalysis  string
	EnhancedAnalysis string
	DBInsights       string
	StatsData        string
	Context          string
	Question         string
}

// Template 单个阶段的 system/user 模板
type Template struct {
	System string `yaml:"system"`
	User   string `yaml:"user"`

	sys *template.Template
	usr *template.Template
}

// Set 全部阶段模板，作为可版本化的配置文件维护
type Set struct {
	Version    int      `yaml:"version"`
	Synthesize Template `yaml:"synthesize"`
	Summarize  Template `yaml:"summarize"`
	Elaborate  Template `yaml:"elaborate"`
	Insights   Template `yaml:"insights"`
	Combine    Template `yaml:"combine"`
	Chat       Template `yaml:"chat"`
}

// Default 内置模板
func Default() *Set {
	s, err := parse(defaultYAML, nil)
	if err != nil {
		panic(fmt.Sprintf("embedded prompts are invalid: %v", err))
	}
	return s
}

// Load 在内置模板之上叠加文件中的模板，path 为空时返回内置模板
func Load(path string) (*Set, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts file: %w", err)
	}
	return parse(data, Default())
}

func parse(data []byte, base *Set) (*Set, error) {
	s := base
	if s == nil {
		s = &Set{}
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parse prompts: %w", err)
	}

	named := map[string]*Template{
		"synthesize": &s.Synthesize,
		"summarize":  &s.Summarize,
		"elaborate":  &s.Elaborate,
		"insights":   &s.Insights,
		"combine":    &s.Combine,
		"chat":       &s.Chat,
	}
	for name, t := range named {
		if err := t.compile(name); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (t *Template) compile(name string) error {
	if strings.TrimSpace(t.User) == "" {
		return fmt.Errorf("prompt %q: user template is empty", name)
	}
	var err error
	if t.sys, err = template.New(name + ".system").Parse(t.System); err != nil {
		return fmt.Errorf("prompt %q: %w", name, err)
	}
	if t.usr, err = template.New(name + ".user").Parse(t.User); err != nil {
		return fmt.Errorf("prompt %q: %w", name, err)
	}
	return nil
}

// Render 渲染 system 与 user 文本
func (t *Template) Render(in Input) (system, user string, err error) {
	if t.sys == nil || t.usr == nil {
		return "", "", fmt.Errorf("prompt template not compiled")
	}
	var sb strings.Builder
	if err := t.sys.Execute(&sb, in); err != nil {
		return "", "", err
	}
	system = strings.TrimSpace(sb.String())

	sb.Reset()
	if err := t.usr.Execute(&sb, in); err != nil {
		return "", "", err
	}
	return system, strings.TrimSpace(sb.String()), nil
}
