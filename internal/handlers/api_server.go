// internal/handlers/api_server.go
package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/rechess/server/internal/blob"
	"github.com/rechess/server/internal/events"
	"github.com/rechess/server/internal/review"
	"github.com/rechess/server/internal/store"
)

// Server bundles the shared dependencies the HTTP handlers need.
type Server struct {
	Store  store.Store
	Bus    *events.Bus
	Blobs  blob.Store
	Review review.Queue
	Logger *logrus.Logger
}

func NewServer(st store.Store, bus *events.Bus, blobs blob.Store, queue review.Queue, logger *logrus.Logger) *Server {
	return &Server{
		Store:  st,
		Bus:    bus,
		Blobs:  blobs,
		Review: queue,
		Logger: logger,
	}
}

// Routes mounts every handler on a fresh mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/user/create", CreateUserHandler(s))
	mux.HandleFunc("/user/login", LoginHandler(s))
	mux.HandleFunc("/user/rename", RenameUserHandler(s))
	mux.HandleFunc("/user/report", ReportUserHandler(s))

	mux.HandleFunc("/variant/create", CreateVariantHandler(s))
	mux.HandleFunc("/variant/upvote", UpvoteVariantHandler(s))
	mux.HandleFunc("/variant/report", ReportVariantHandler(s))

	mux.HandleFunc("/lobby/create", CreateLobbySlotHandler(s))
	mux.HandleFunc("/lobby/join", JoinLobbySlotHandler(s))
	mux.HandleFunc("/lobby/leave", LeaveLobbySlotHandler(s))
	mux.HandleFunc("/lobby/watch/", LobbyWatchHandler(s))

	mux.HandleFunc("/game/create", CreateGameHandler(s))
	mux.HandleFunc("/game/cancel", CancelGameHandler(s))

	mux.HandleFunc("/moderation/deleteVariant", DeleteVariantHandler(s))
	mux.HandleFunc("/moderation/wipeUser", WipeUserHandler(s))

	return mux
}
