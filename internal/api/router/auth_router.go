package router

import (
	"clienthub-backend/internal/api"
	"clienthub-backend/internal/api/endpoints"
	"clienthub-backend/internal/api/middleware"
	"net/http"
)

func AuthRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		authEndpoints := endpoints.NewAuthEndpoints(s.Database())
		mux.HandleFunc(prefix+"/auth/register", s.MakeHTTPHandleFunc(authEndpoints.Register))
		mux.HandleFunc(prefix+"/auth/login", s.MakeHTTPHandleFunc(authEndpoints.Login))
		mux.HandleFunc(prefix+"/auth/refresh", s.MakeHTTPHandleFunc(authEndpoints.Refresh))
		mux.HandleFunc(prefix+"/auth/me", s.MakeHTTPHandleFunc(authEndpoints.Me, middleware.ValidateTeamMemberJWT))
		mux.HandleFunc(prefix+"/auth/invite", s.MakeHTTPHandleFunc(authEndpoints.Invite, middleware.ValidateTeamMemberJWT))
	}
}
