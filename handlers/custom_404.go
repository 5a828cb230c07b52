package handlers

import (
	_ "embed"
	"fmt"
	"net/http"

	"github.com/ZacxDev/pagesgen/module"
	"github.com/ZacxDev/pagesgen/output"
	"github.com/ZacxDev/pagesgen/render"
	"github.com/gobuffalo/plush"
)

var (
	//go:embed pages/404.plush.html
	notFoundSource string
	//go:embed pages/error.plush.html
	errorSource string
	//go:embed pages/index.plush.html
	indexSource string
)

// Custom404Handler is the router's NotFoundHandler.
func Custom404Handler(w http.ResponseWriter, r *http.Request) {
	notFound(w, r, "")
}

func notFound(w http.ResponseWriter, r *http.Request, message string) {
	ctx := plush.NewContext()
	ctx.Set("path", r.URL.Path)
	ctx.Set("message", message)
	writeDevPage(w, http.StatusNotFound, "Not found", notFoundSource, ctx)
}

// errorPage shows the failure with its stack trace.
func errorPage(w http.ResponseWriter, r *http.Request, err error) {
	output.Error("request failed", "path", r.URL.Path, "err", err)

	ctx := plush.NewContext()
	ctx.Set("path", r.URL.Path)
	ctx.Set("trace", fmt.Sprintf("%+v", err))
	writeDevPage(w, http.StatusInternalServerError, "Error", errorSource, ctx)
}

func writeDevPage(w http.ResponseWriter, status int, title, src string, ctx *plush.Context) {
	body, err := plush.Render(src, ctx)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	page, err := render.DefaultLayout().Render(render.LayoutData{
		Head: &module.HeadConfig{Title: title},
		Body: body,
	})
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(page))
}
