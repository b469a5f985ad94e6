package panel

import (
	"embed"
	"fmt"
	"io/fs"
	"net/http"
	"os"
)

//go:embed web/*
var content embed.FS

// Asset paths served by Handler.
const (
	IndexPath  = "/"
	ScriptPath = "/flashlight.js"
)

// Handler returns an http.Handler that serves the flashlight UI.
//
// When dir is non-empty and the directory exists, assets are served from the
// filesystem (edit-and-reload during development). Otherwise the embedded
// assets are used. Panics if the embedded assets cannot be loaded (build error).
func Handler(dir string) http.Handler {
	fileServer := http.FileServer(http.FS(assets(dir)))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-cache, must-revalidate")
		fileServer.ServeHTTP(w, r)
	})
}

// assets resolves the filesystem backing Handler.
func assets(dir string) fs.FS {
	if dir != "" {
		if info, err := os.Stat(dir); err == nil && info.IsDir() {
			return os.DirFS(dir)
		}
	}

	webFS, err := fs.Sub(content, "web")
	if err != nil {
		panic(fmt.Sprintf("panel: failed to load embedded web assets: %v", err))
	}
	return webFS
}
