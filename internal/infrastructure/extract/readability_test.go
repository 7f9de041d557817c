package extract

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const paragraph = "O banco central anunciou nesta sexta-feira uma nova rodada de medidas para conter a inflação, " +
	"com impacto direto sobre o crédito imobiliário e sobre o financiamento de pequenas empresas em todo o país. "

func articlePage() string {
	body := strings.Repeat("<p>"+paragraph+paragraph+"</p>\n", 6)
	return `<!doctype html>
<html lang="pt-BR">
<head>
  <title>Juros sobem pela terceira vez</title>
  <meta name="author" content="Ana Lima, Carlos Souza">
  <meta property="og:image" content="/img/capa.png">
</head>
<body>
  <nav><a href="/">Início</a> <a href="/economia">Economia</a></nav>
  <article>
    <h1>Juros sobem pela terceira vez</h1>
    ` + body + `
  </article>
  <footer>Todos os direitos reservados</footer>
</body>
</html>`
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func newSite(t *testing.T) *httptest.Server {
	t.Helper()
	img := pngBytes(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/noticia", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(articlePage()))
	})
	mux.HandleFunc("/img/capa.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(img)
	})
	mux.HandleFunc("/feed.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4"))
	})
	mux.HandleFunc("/broken-image", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(strings.Replace(articlePage(), "/img/capa.png", "/img/missing.png", 1)))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestExtractArticleWithImage(t *testing.T) {
	srv := newSite(t)
	dir := t.TempDir()
	store := NewImageStore(dir, srv.Client())
	store.newName = func() string { return "fixed" }

	ex, err := NewReadabilityExtractor(srv.Client(), store, nil).Extract(context.Background(), srv.URL+"/noticia")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}

	if !strings.Contains(ex.Content, "banco central anunciou") {
		t.Fatalf("article text missing: %q", ex.Content)
	}
	if diff := cmp.Diff([]string{"Ana Lima", "Carlos Souza"}, ex.Authors); diff != "" {
		t.Fatalf("authors mismatch (-want +got):\n%s", diff)
	}
	if ex.ImageURL != srv.URL+"/img/capa.png" {
		t.Fatalf("unexpected image url %q", ex.ImageURL)
	}
	if ex.ImagePath != filepath.Join(dir, "fixed.png") {
		t.Fatalf("unexpected image path %q", ex.ImagePath)
	}
	if _, err := os.Stat(ex.ImagePath); err != nil {
		t.Fatalf("image not written: %v", err)
	}
}

func TestExtractWithoutImageStore(t *testing.T) {
	srv := newSite(t)

	ex, err := NewReadabilityExtractor(srv.Client(), nil, nil).Extract(context.Background(), srv.URL+"/noticia")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if ex.ImagePath != "" {
		t.Fatalf("images disabled, got %q", ex.ImagePath)
	}
}

func TestExtractImageFailureKeepsArticle(t *testing.T) {
	srv := newSite(t)
	store := NewImageStore(t.TempDir(), srv.Client())

	ex, err := NewReadabilityExtractor(srv.Client(), store, nil).Extract(context.Background(), srv.URL+"/broken-image")
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if ex.Content == "" || ex.ImagePath != "" {
		t.Fatalf("expected text without image, got path %q", ex.ImagePath)
	}
}

func TestExtractFailures(t *testing.T) {
	srv := newSite(t)
	e := NewReadabilityExtractor(srv.Client(), nil, nil)

	for name, target := range map[string]string{
		"not html":  srv.URL + "/feed.pdf",
		"not found": srv.URL + "/missing",
		"bad url":   "::not a url",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := e.Extract(context.Background(), target); err == nil {
				t.Fatalf("expected error for %s", target)
			}
		})
	}
}

func TestImageStoreRejectsUnsupportedTypes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("RIFF\x00\x00\x00\x00WEBPVP8 "))
	}))
	defer srv.Close()

	dir := t.TempDir()
	if _, err := NewImageStore(dir, srv.Client()).Save(context.Background(), srv.URL); err == nil {
		t.Fatal("expected unsupported type error")
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("no file may be written, got %d", len(entries))
	}
}

func TestSplitByline(t *testing.T) {
	got := splitByline("Por Maria Silva e João  Pereira")
	if diff := cmp.Diff([]string{"Maria Silva", "João Pereira"}, got); diff != "" {
		t.Fatalf("byline mismatch (-want +got):\n%s", diff)
	}
	if splitByline("  ") != nil {
		t.Fatal("empty byline should yield no authors")
	}
}

func TestNormalizeText(t *testing.T) {
	got := normalizeText("  Primeira   linha \n\n\n  segunda\tlinha\n")
	if got != "Primeira linha\n\nsegunda linha" {
		t.Fatalf("unexpected text %q", got)
	}
}
