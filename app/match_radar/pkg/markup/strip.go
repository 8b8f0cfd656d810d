package markup

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var tagPattern = regexp.MustCompile(`</?[a-zA-Z][^>]*>|<!--`)

// skipClasses 装饰性元素，不属于分析文本
var skipClasses = []string{"match-banner", "divider", "disclaimer"}

// IsMarkup 内容是否含有标签
func IsMarkup(content string) bool {
	return tagPattern.MatchString(content)
}

// maxPasses 实体层层转义的内容最多解析的次数
const maxPasses = 8

// Strip 将文章标记还原为纯文本。存在 .analysis-body 时只取正文，
// 否则按标题与段落顺序提取，跳过横幅、分隔线和免责声明；两者都没有时取全部文本。
// 解码后的实体可能再次形成标签，因此反复解析直到不再含有标签，重复调用结果不变
func Strip(content string) (string, error) {
	text := strings.TrimSpace(content)
	for i := 0; i < maxPasses && IsMarkup(text); i++ {
		next, err := stripOnce(text)
		if err != nil {
			return "", err
		}
		if next == text {
			break
		}
		text = next
	}
	return text, nil
}

func stripOnce(content string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("parse markup: %w", err)
	}
	doc.Find("style, script").Remove()
	doc.Find("br").ReplaceWithHtml("\n")

	var parts []string
	collect := func(_ int, s *goquery.Selection) {
		if skipped(s) {
			return
		}
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return
		}
		switch goquery.NodeName(s) {
		case "h2":
			text = "## " + text
		case "h3":
			text = "### " + text
		case "h4":
			text = "#### " + text
		}
		parts = append(parts, text)
	}

	if body := doc.Find(".analysis-body"); body.Length() > 0 {
		body.First().Find("h2, h3, h4, p").Each(collect)
	} else {
		doc.Find("h1, h2, h3, h4, p").Each(collect)
	}
	if len(parts) == 0 {
		// 不是文章结构，例如正文里夹带 <i>、<br> 的纯文本
		return strings.TrimSpace(doc.Text()), nil
	}
	return strings.Join(parts, "\n\n"), nil
}

// StripOrRaw 解析失败时返回原始内容
func StripOrRaw(content string) string {
	text, err := Strip(content)
	if err != nil || text == "" {
		return content
	}
	return text
}

func skipped(s *goquery.Selection) bool {
	for _, class := range skipClasses {
		if s.HasClass(class) || s.Closest("."+class).Length() > 0 {
			return true
		}
	}
	return false
}
