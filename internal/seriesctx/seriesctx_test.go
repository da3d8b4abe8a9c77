package seriesctx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"jimaku/internal/services"
)

func wikiServer(t *testing.T, pages map[string]map[string]any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("action") != "query" {
			t.Errorf("unexpected action %q", r.URL.Query().Get("action"))
		}
		if r.Header.Get("User-Agent") == "" {
			t.Error("missing user agent")
		}
		title := r.URL.Query().Get("titles")
		page, ok := pages[title]
		if !ok {
			page = map[string]any{"title": title, "missing": true}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"query": map[string]any{"pages": []any{page}},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestWikiFetchArticle(t *testing.T) {
	server := wikiServer(t, map[string]map[string]any{
		"ぼっち・ざ・ろっく!": {"title": "ぼっち・ざ・ろっく!", "extract": "  後藤ひとりは…  "},
	})
	client := NewWikiClient(server.URL)

	article, err := client.Fetch(context.Background(), "ぼっち・ざ・ろっく!")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if article.Content != "後藤ひとりは…" {
		t.Fatalf("content = %q", article.Content)
	}
}

func TestWikiFetchMissing(t *testing.T) {
	server := wikiServer(t, nil)
	client := NewWikiClient(server.URL)

	_, err := client.Fetch(context.Background(), "存在しない作品")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestWikiFetchDisambiguationFollowsFirstOption(t *testing.T) {
	server := wikiServer(t, map[string]map[string]any{
		"けいおん": {
			"title":     "けいおん",
			"pageprops": map[string]string{"disambiguation": ""},
			"links":     []map[string]string{{"title": "けいおん!"}, {"title": "軽音楽"}},
		},
		"けいおん!": {"title": "けいおん!", "extract": "平沢唯"},
	})
	client := NewWikiClient(server.URL)

	article, err := client.Fetch(context.Background(), "けいおん")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if article.Title != "けいおん!" || article.Content != "平沢唯" {
		t.Fatalf("unexpected article %+v", article)
	}
}

func TestWikiFetchDisambiguationUnresolved(t *testing.T) {
	server := wikiServer(t, map[string]map[string]any{
		"あ": {
			"title":     "あ",
			"pageprops": map[string]string{"disambiguation": ""},
			"links":     []map[string]string{{"title": "い"}, {"title": "う"}},
		},
	})
	client := NewWikiClient(server.URL)

	_, err := client.Fetch(context.Background(), "あ")
	var ambiguous *AmbiguousError
	if !errors.As(err, &ambiguous) {
		t.Fatalf("expected AmbiguousError, got %v", err)
	}
	if len(ambiguous.Options) != 2 {
		t.Fatalf("options = %v", ambiguous.Options)
	}
}

func TestWikiFetchHTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewWikiClient(server.URL).Fetch(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("expected 503 error, got %v", err)
	}
}

type stubFetcher struct {
	article Article
	err     error
}

func (s stubFetcher) Fetch(context.Context, string) (Article, error) {
	return s.article, s.err
}

type stubLLM struct {
	reply  string
	err    error
	system string
	prompt string
}

func (s *stubLLM) GenerateText(_ context.Context, system, prompt string) (string, error) {
	s.system = system
	s.prompt = prompt
	return s.reply, s.err
}

func TestGenerateSummary(t *testing.T) {
	llm := &stubLLM{reply: "以下がリファレンスです。\n# 作品\n\n## 1. 主要登場人物\n* **後藤ひとり** (ごとうひとり): 主人公"}
	gen := NewGenerator(stubFetcher{article: Article{Title: "作品", Content: "本文"}}, llm, nil)

	summary, err := gen.Generate(context.Background(), "作品")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if !strings.HasPrefix(summary, "# 作品") {
		t.Fatalf("preamble not stripped: %q", summary)
	}
	if llm.system != summarySystemInstruction {
		t.Fatalf("system instruction = %q", llm.system)
	}
	for _, want := range []string{"# 作品", "## 1. 主要登場人物", "--- WIKIPEDIA CONTENT START ---\n本文\n--- WIKIPEDIA CONTENT END ---"} {
		if !strings.Contains(llm.prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, llm.prompt)
		}
	}
}

func TestGenerateAddsHeadingWhenMissing(t *testing.T) {
	llm := &stubLLM{reply: "```markdown\n* 用語\n```"}
	gen := NewGenerator(stubFetcher{article: Article{Title: "作品", Content: "本文"}}, llm, nil)

	summary, err := gen.Generate(context.Background(), "作品")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if summary != "# 作品\n\n* 用語" {
		t.Fatalf("summary = %q", summary)
	}
}

func TestGenerateErrors(t *testing.T) {
	fetchErr := errors.New("boom")
	if _, err := NewGenerator(stubFetcher{err: fetchErr}, &stubLLM{}, nil).Generate(context.Background(), "x"); !errors.Is(err, fetchErr) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	if _, err := NewGenerator(stubFetcher{article: Article{Title: "x"}}, &stubLLM{}, nil).Generate(context.Background(), "x"); err == nil {
		t.Fatal("expected error for empty article")
	}
	if _, err := NewGenerator(stubFetcher{article: Article{Title: "x", Content: "y"}}, &stubLLM{reply: "  "}, nil).Generate(context.Background(), "x"); err == nil {
		t.Fatal("expected error for empty reply")
	}
	if _, err := NewGenerator(stubFetcher{}, &stubLLM{}, nil).Generate(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty title")
	}
}

func TestResolve(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "context.md")
	if err := os.WriteFile(path, []byte("\n# 作品\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := Resolve(path)
	if err != nil || got != "# 作品" {
		t.Fatalf("Resolve(file) = %q, %v", got, err)
	}
	got, err = Resolve("主人公は後藤ひとり")
	if err != nil || got != "主人公は後藤ひとり" {
		t.Fatalf("Resolve(text) = %q, %v", got, err)
	}
	if got, err := Resolve("  "); err != nil || got != "" {
		t.Fatalf("Resolve(empty) = %q, %v", got, err)
	}
	if _, err := Resolve(dir); err == nil {
		t.Fatal("expected error for directory")
	}
	binary := filepath.Join(dir, "blob.bin")
	if err := os.WriteFile(binary, []byte{0xff, 0xfe, 0x00}, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Resolve(binary); err == nil {
		t.Fatal("expected error for non-UTF-8 file")
	}
}

func TestGenerateKeepsSubheadingsIntact(t *testing.T) {
	llm := &stubLLM{reply: "## 1. 主要登場人物\n* 後藤ひとり"}
	gen := NewGenerator(stubFetcher{article: Article{Title: "作品", Content: "本文"}}, llm, nil)

	summary, err := gen.Generate(context.Background(), "作品")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if summary != "# 作品\n\n## 1. 主要登場人物\n* 後藤ひとり" {
		t.Fatalf("summary = %q", summary)
	}
}
