package server

import (
	"bytes"
	_ "embed"
	"fmt"
	"html/template"
	"net/http"

	"github.com/ayusman/posereps/internal/config"
)

//go:embed web/index.html
var pageTemplate string

// pageData is the set of values baked into the page.
type pageData struct {
	ModelURL         string
	ModelName        string
	CanvasSize       int
	ThresholdPercent int
	TFJSURL          string
	PoseLibURL       string
	KeypointScore    float64
}

// RenderPage renders the single-page rep counter. The result depends only on
// page and is served verbatim for every request.
func RenderPage(page config.PageConfig) ([]byte, error) {
	tmpl, err := template.New("index").Parse(pageTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, pageData{
		ModelURL:         page.ModelURL,
		ModelName:        page.ModelName,
		CanvasSize:       page.CanvasSize,
		ThresholdPercent: page.ThresholdPct,
		TFJSURL:          page.TFJSURL,
		PoseLibURL:       page.PoseLibURL,
		KeypointScore:    page.KeypointScore,
	})
	if err != nil {
		return nil, fmt.Errorf("render page: %w", err)
	}
	return buf.Bytes(), nil
}

// pageHandler serves a pre-rendered document.
type pageHandler []byte

func (p pageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(p)
}
