package router

import (
	"net/http"

	"codesync-backend/internal/api"
	"codesync-backend/internal/api/endpoints"
)

func UtilsRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		utilsEndpoints := endpoints.NewUtilsEndpoints(s.Handler())
		mux.HandleFunc(prefix+"/health", s.MakeHTTPHandleFunc(utilsEndpoints.Health))
		mux.HandleFunc(prefix+"/stats", s.MakeHTTPHandleFunc(utilsEndpoints.Stats))
	}
}
