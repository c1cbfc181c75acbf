package router

import (
	"clienthub-backend/internal/api"
	"clienthub-backend/internal/api/endpoints"
	"clienthub-backend/internal/api/middleware"
	conversationservice "clienthub-backend/internal/service/conversation"
	readstatesvc "clienthub-backend/internal/service/readstate"
	"net/http"
	"strings"
)

// ConversationTenantRoutes serves the team-facing conversation API. Read-state
// operations live under the same conversation prefix, so one mux entry
// dispatches to whichever endpoint group owns the sub-path.
func ConversationTenantRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		base := strings.TrimRight(prefix, "/")
		service := conversationservice.New(s.Database(), s.Dispatcher())
		readService := readstatesvc.New(s.Database(), s.Dispatcher())

		convEndpoints := endpoints.NewConversationEndpointsWithPaths(service, s.Handler(), endpoints.ConversationPaths{
			TenantConversationsPath:  base + "/conversations",
			TenantConversationPrefix: base + "/conversations/",
		})
		readEndpoints := endpoints.NewReadStateEndpoints(readService, service, endpoints.ReadStatePaths{
			TenantConversationPrefix: base + "/conversations/",
			TenantUnreadPath:         base + "/unread",
		})

		conversationDispatch := func(w http.ResponseWriter, r *http.Request) error {
			if isReadStatePath(r.URL.Path) {
				return readEndpoints.ConversationRead(w, r)
			}
			return convEndpoints.Conversation(w, r)
		}

		mux.HandleFunc(prefix+"/conversations", s.MakeHTTPHandleFunc(convEndpoints.Conversations, middleware.ValidateTeamMemberJWT))
		mux.HandleFunc(prefix+"/conversations/", s.MakeHTTPHandleFunc(conversationDispatch, middleware.ValidateTeamMemberJWT))
		mux.HandleFunc(prefix+"/unread", s.MakeHTTPHandleFunc(readEndpoints.Unread, middleware.ValidateTeamMemberJWT))
	}
}

// ConversationPortalRoutes serves the client-facing portal API. Every call is
// authenticated by portal token instead of a JWT.
func ConversationPortalRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		base := strings.TrimRight(prefix, "/")
		service := conversationservice.New(s.Database(), s.Dispatcher())
		readService := readstatesvc.New(s.Database(), s.Dispatcher())

		convEndpoints := endpoints.NewConversationEndpointsWithPaths(service, s.Handler(), endpoints.ConversationPaths{
			PortalConversationsPath:  base + "/conversations",
			PortalConversationPrefix: base + "/conversations/",
		})
		readEndpoints := endpoints.NewReadStateEndpoints(readService, service, endpoints.ReadStatePaths{
			PortalConversationPrefix: base + "/conversations/",
			PortalUnreadPath:         base + "/unread",
		})

		conversationDispatch := func(w http.ResponseWriter, r *http.Request) error {
			if isReadStatePath(r.URL.Path) {
				return readEndpoints.PortalConversationRead(w, r)
			}
			return convEndpoints.PortalConversation(w, r)
		}

		mux.HandleFunc(prefix+"/conversations", s.MakeHTTPHandleFunc(convEndpoints.PortalConversations))
		mux.HandleFunc(prefix+"/conversations/", s.MakeHTTPHandleFunc(conversationDispatch))
		mux.HandleFunc(prefix+"/unread", s.MakeHTTPHandleFunc(readEndpoints.PortalUnread))
	}
}

func ConversationWebsocketRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		base := strings.TrimRight(prefix, "/")
		service := conversationservice.New(s.Database(), s.Dispatcher())
		convEndpoints := endpoints.NewConversationEndpointsWithPaths(service, s.Handler(), endpoints.ConversationPaths{
			WebsocketPrefix:        base + "/conversations/",
			TenantNotificationPath: base + "/notifications",
		})

		mux.HandleFunc(prefix+"/conversations/", s.MakeHTTPHandleFunc(convEndpoints.Websocket))
		mux.HandleFunc(prefix+"/notifications", s.MakeHTTPHandleFunc(convEndpoints.NotificationsWebsocket))
	}
}

// isReadStatePath reports whether a conversation sub-path belongs to the
// read-state endpoints rather than the conversation endpoints.
func isReadStatePath(path string) bool {
	trimmed := strings.TrimRight(path, "/")
	switch {
	case strings.HasSuffix(trimmed, "/read"),
		strings.HasSuffix(trimmed, "/read/schedule"),
		strings.HasSuffix(trimmed, "/read/cancel"),
		strings.HasSuffix(trimmed, "/unread"):
		return true
	}
	return false
}
