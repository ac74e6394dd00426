package router

import (
	"net/http"
	"strings"

	"codesync-backend/internal/api"
	"codesync-backend/internal/api/endpoints"
	"codesync-backend/internal/api/middleware"
)

func ExecutionRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		base := strings.TrimRight(prefix, "/")
		executionEndpoints := endpoints.NewExecutionEndpoints(s.Execution(), base)

		mux.HandleFunc(base+"/execute", s.MakeHTTPHandleFunc(executionEndpoints.Execute))
		mux.HandleFunc(base+"/languages", s.MakeHTTPHandleFunc(executionEndpoints.Languages))
		mux.HandleFunc(base+"/executions/usage", s.MakeHTTPHandleFunc(executionEndpoints.Usage, middleware.ValidateAdminJWT))
		mux.HandleFunc(base+"/executions/", s.MakeHTTPHandleFunc(executionEndpoints.Execution, middleware.ValidateAdminJWT))
	}
}
