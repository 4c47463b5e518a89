package httpapi

import (
	"io"
	"net/http"
	"time"

	"akshay-tray/hub"
	"akshay-tray/ipc"
	"akshay-tray/logger"
	"akshay-tray/transport"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Only local windows talk to the coordinator.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// IpcServer receives window notifications and fans them out through the hub.
type IpcServer struct {
	Hub *hub.Hub
}

func (is *IpcServer) Register(r *mux.Router) {
	r.HandleFunc("/ipc/{channel}", is.handleNotify).Methods("POST")
	r.HandleFunc("/ws", is.handleWS).Methods("GET")
	r.HandleFunc("/health", is.handleHealth).Methods("GET")
}

func (is *IpcServer) handleNotify(w http.ResponseWriter, r *http.Request) {
	channel := mux.Vars(r)["channel"]
	if !hub.KnownChannel(channel) {
		http.Error(w, "unknown channel", http.StatusNotFound)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	msg, err := ipc.Unmarshal(body)
	if err != nil {
		http.Error(w, "invalid message", http.StatusBadRequest)
		return
	}
	// The route decides the channel.
	msg.Channel = channel

	logger.Component("ipc-server").
		WithField("channel", channel).
		WithField("window", r.Header.Get(transport.WindowIDHeader)).
		Info("notification received")

	delivered := is.Hub.Broadcast(msg)
	writeJSON(w, http.StatusAccepted, map[string]int{"delivered": delivered})
}

func (is *IpcServer) handleWS(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(transport.WindowIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Component("ipc-server").WithError(err).Warn("ws upgrade error")
		return
	}
	go HandleConnection(is.Hub, ws, id)
}

func (is *IpcServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"windows":     is.Hub.WindowCount(),
		"connections": is.Hub.Stats(),
		"uptime_sec":  int64(time.Since(is.Hub.StartTime()).Seconds()),
	})
}
