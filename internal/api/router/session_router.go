package router

import (
	"net/http"

	"codesync-backend/internal/api"
	"codesync-backend/internal/api/endpoints"
	"codesync-backend/internal/api/middleware"
)

func SessionRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		sessionEndpoints := endpoints.NewSessionEndpoints(s.Handler())
		mux.HandleFunc(prefix+"/session", s.MakeHTTPHandleFunc(sessionEndpoints.Session))
		mux.HandleFunc(prefix+"/rooms", s.MakeHTTPHandleFunc(sessionEndpoints.Rooms, middleware.ValidateAdminJWT))
	}
}
