package seriesctx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"jimaku/internal/logging"
)

const summarySystemInstruction = "あなたはデータ整理のプロです。余計な言葉を一切省き、構造化されたデータのみを出力してください。"

// maxArticleRunes bounds the article text sent for summarization.
const maxArticleRunes = 60000

// TextGenerator is the slice of the Gemini client the generator needs.
type TextGenerator interface {
	GenerateText(ctx context.Context, system, prompt string) (string, error)
}

// ArticleFetcher retrieves a reference article by title.
type ArticleFetcher interface {
	Fetch(ctx context.Context, query string) (Article, error)
}

// Generator produces a series reference from a title.
type Generator struct {
	fetcher ArticleFetcher
	llm     TextGenerator
	logger  *slog.Logger
}

// NewGenerator wires a fetcher and a text generator.
func NewGenerator(fetcher ArticleFetcher, llm TextGenerator, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Generator{
		fetcher: fetcher,
		llm:     llm,
		logger:  logging.NewComponentLogger(logger, "seriesctx"),
	}
}

// Generate fetches the article for title and condenses it into markdown
// starting with a "# title" heading.
func (g *Generator) Generate(ctx context.Context, title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", errors.New("title must not be empty")
	}
	article, err := g.fetcher.Fetch(ctx, title)
	if err != nil {
		return "", fmt.Errorf("fetch article: %w", err)
	}
	if article.Content == "" {
		return "", fmt.Errorf("article %q has no text", article.Title)
	}
	content := truncateRunes(article.Content, maxArticleRunes)
	g.logger.Info("summarizing article",
		logging.String("title", article.Title),
		logging.Int("chars", len([]rune(content))),
	)

	summary, err := g.llm.GenerateText(ctx, summarySystemInstruction, BuildSummaryPrompt(title, content))
	if err != nil {
		return "", fmt.Errorf("summarize article: %w", err)
	}
	summary = tidySummary(summary, title)
	if summary == "" {
		return "", errors.New("summarize article: empty reply")
	}
	return summary, nil
}

// BuildSummaryPrompt renders the summarization request for an article.
func BuildSummaryPrompt(title, content string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "以下は、'%s' に関するWikipediaの生データです。\n\n", title)
	b.WriteString("このテキストを分析し、文字起こしAIのための「超」簡潔なリファレンスを作成してください。\n")
	b.WriteString("**制約事項:**\n")
	fmt.Fprintf(&b, "1. **冒頭の挨拶や説明文は一切書かないでください。** 出力は必ず `# %s` の見出しから開始してください。\n", title)
	b.WriteString("2. **説明は極限まで短くしてください。** 体言止めや箇条書きを活用してください。\n")
	b.WriteString("3. 一般的なスラングの辞書的な定義は不要です。\n\n")
	b.WriteString("**出力フォーマット:**\n")
	b.WriteString("# {作品名}\n\n")
	b.WriteString("## 1. 主要登場人物\n")
	b.WriteString("* **名前** (よみ): 属性・役割\n\n")
	b.WriteString("## 2. 用語\n")
	b.WriteString("* **用語**: 簡単な説明\n\n")
	b.WriteString("## 3. 概要\n")
	b.WriteString("* 簡潔なあらすじ（3行以内）\n\n")
	b.WriteString("--- WIKIPEDIA CONTENT START ---\n")
	b.WriteString(content)
	b.WriteString("\n--- WIKIPEDIA CONTENT END ---")
	return b.String()
}

// tidySummary drops any preamble before the first heading and strips a
// surrounding code fence.
func tidySummary(summary, title string) string {
	summary = strings.TrimSpace(summary)
	summary = strings.TrimPrefix(summary, "```markdown")
	summary = strings.TrimPrefix(summary, "```")
	summary = strings.TrimSuffix(summary, "```")
	summary = strings.TrimSpace(summary)
	lines := strings.Split(summary, "\n")
	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			summary = strings.Join(lines[i:], "\n")
			break
		}
	}
	if summary != "" && !strings.HasPrefix(summary, "# ") {
		summary = "# " + title + "\n\n" + summary
	}
	return summary
}

func truncateRunes(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
