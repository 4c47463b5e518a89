package httpapi

import (
	"context"
	"errors"
	"net/http"

	"akshay-tray/hub"
	"akshay-tray/kvstore"
	"akshay-tray/logger"

	"github.com/gorilla/mux"
)

// Server is the coordinator's HTTP/WebSocket endpoint.
type Server struct {
	hub  *hub.Hub
	http *http.Server
}

func NewRouter(store kvstore.PersistentStore, h *hub.Hub) *mux.Router {
	// Keys are data, not file paths: no cleaning and no redirects.
	r := mux.NewRouter().UseEncodedPath().SkipClean(true)
	api := &ApiServer{Store: store}
	api.Register(r)
	ipcServer := &IpcServer{Hub: h}
	ipcServer.Register(r)
	return r
}

func New(listenURL string, store kvstore.PersistentStore, h *hub.Hub) *Server {
	return &Server{
		hub: h,
		http: &http.Server{
			Addr:    stripHTTPPrefix(listenURL),
			Handler: NewRouter(store, h),
		},
	}
}

// Start blocks serving until Shutdown is called.
func (s *Server) Start() error {
	logger.Component("httpapi").WithField("addr", s.http.Addr).Info("starting coordinator HTTP server")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	logger.Component("httpapi").Info("graceful shutdown initiated")
	s.hub.Close()
	return s.http.Shutdown(ctx)
}
