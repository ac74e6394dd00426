package execution

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type RouteConfig struct {
	Backend string `yaml:"backend"`
	Version string `yaml:"version"`
}

// Routes maps languages to backends. Languages not listed go to Fallback,
// or are rejected when it is empty.
type Routes struct {
	Fallback  string                 `yaml:"fallback"`
	Languages map[string]RouteConfig `yaml:"languages"`
}

func DefaultRoutes() Routes {
	return Routes{
		Languages: map[string]RouteConfig{
			"javascript": {Backend: BackendLocal, Version: LocalVersion},
			"python":     {Backend: BackendPiston, Version: "*"},
			"java":       {Backend: BackendPiston, Version: "*"},
			"cpp":        {Backend: BackendPiston, Version: "*"},
		},
	}
}

// LoadRoutes reads a routing file and lays it over the default table.
func LoadRoutes(path string) (Routes, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Routes{}, fmt.Errorf("read routes file: %w", err)
	}
	return ParseRoutes(data)
}

func ParseRoutes(data []byte) (Routes, error) {
	var file Routes
	if err := yaml.Unmarshal(data, &file); err != nil {
		return Routes{}, fmt.Errorf("parse routes: %w", err)
	}

	routes := DefaultRoutes()
	if file.Fallback != "" {
		routes.Fallback = strings.ToLower(file.Fallback)
	}
	for lang, rc := range file.Languages {
		lang = strings.ToLower(strings.TrimSpace(lang))
		rc.Backend = strings.ToLower(strings.TrimSpace(rc.Backend))
		if lang == "" || rc.Backend == "" {
			return Routes{}, fmt.Errorf("parse routes: language %q needs a backend", lang)
		}
		if rc.Version == "" {
			rc.Version = defaultVersion(rc.Backend)
		}
		routes.Languages[lang] = rc
	}
	return routes, nil
}

func defaultVersion(backend string) string {
	if backend == BackendLocal {
		return LocalVersion
	}
	return "*"
}
