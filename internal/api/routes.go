package api

import (
	"fmt"
	"net/http"

	"github.com/JaimeStill/sectional/internal/config"
	"github.com/JaimeStill/sectional/internal/rules"
	"github.com/JaimeStill/sectional/internal/runs"
	"github.com/JaimeStill/sectional/pkg/openapi"
	"github.com/JaimeStill/sectional/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	cfg *config.Config,
	runtime *Runtime,
) error {
	runsGroup := domain.Runs.Handler(cfg.API.MaxUploadSizeBytes()).Routes()
	runsGroup.Middleware = append(runsGroup.Middleware, runtime.Auth.Middleware())

	groups := []routes.Group{
		runsGroup,
		domain.Rules.Routes(),
	}
	routes.Register(mux, groups...)

	spec, err := buildSpec(cfg, groups)
	if err != nil {
		return err
	}
	mux.HandleFunc("GET /openapi.json", openapi.ServeSpec(spec))
	return nil
}

func buildSpec(cfg *config.Config, groups []routes.Group) ([]byte, error) {
	spec := openapi.NewSpec(cfg.API.OpenAPI.Title, cfg.Version)
	spec.SetDescription(cfg.API.OpenAPI.Description)
	spec.AddServer(cfg.API.BasePath)
	spec.Components.AddSchemas(runs.Schemas())
	spec.Components.AddSchemas(rules.Schemas())
	routes.Describe(spec, groups...)

	data, err := openapi.MarshalJSON(spec)
	if err != nil {
		return nil, fmt.Errorf("encode openapi spec: %w", err)
	}
	return data, nil
}
