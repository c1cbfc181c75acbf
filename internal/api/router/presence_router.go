package router

import (
	"clienthub-backend/internal/api"
	"clienthub-backend/internal/api/endpoints"
	"clienthub-backend/internal/api/middleware"
	"net/http"
	"strings"
)

func PresenceRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		base := strings.TrimRight(prefix, "/")
		presenceEndpoints := endpoints.NewPresenceEndpoints(s.Tracker(), base+"/presence/rooms/")

		mux.HandleFunc(prefix+"/presence/heartbeat", s.MakeHTTPHandleFunc(presenceEndpoints.Heartbeat, middleware.ValidateTeamMemberJWT))
		mux.HandleFunc(prefix+"/presence/rooms/", s.MakeHTTPHandleFunc(presenceEndpoints.Room, middleware.ValidateTeamMemberJWT))
	}
}
