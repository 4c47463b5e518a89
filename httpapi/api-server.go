package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"akshay-tray/kvstore"
	"akshay-tray/logger"

	"github.com/gorilla/mux"
)

const maxBodySize = 8 << 20

// ApiServer exposes the coordinator's durable store to windows. It is the
// server side of kvstore.RemoteStore.
type ApiServer struct {
	Store kvstore.PersistentStore
}

func (as *ApiServer) Register(r *mux.Router) {
	r.HandleFunc("/kv", as.handleDump).Methods("GET")
	r.HandleFunc("/kv", as.handleSetMany).Methods("POST")
	r.HandleFunc("/kv", as.handleRestore).Methods("PUT")
	r.HandleFunc("/kv/{path:.+}", as.handleGet).Methods("GET")
	r.HandleFunc("/kv/{path:.+}", as.handleSet).Methods("PUT")
	r.HandleFunc("/kv/{path:.+}", as.handleDelete).Methods("DELETE")
}

func stripHTTPPrefix(url string) string {
	url = strings.TrimPrefix(url, "http://")
	return strings.TrimPrefix(url, "https://")
}

// pathFromRequest splits the still-encoded {path} variable so escaped
// slashes stay inside their segment.
func pathFromRequest(r *http.Request) (kvstore.Path, error) {
	raw := mux.Vars(r)["path"]
	parts := strings.Split(raw, "/")
	path := make(kvstore.Path, 0, len(parts))
	for _, p := range parts {
		seg, err := url.PathUnescape(p)
		if err != nil {
			return nil, err
		}
		path = append(path, seg)
	}
	return path, nil
}

func readJSONBody(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, false
	}
	if !json.Valid(body) {
		http.Error(w, "body is not valid JSON", http.StatusBadRequest)
		return nil, false
	}
	return json.RawMessage(body), true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Component("httpapi").WithError(err).Warn("failed to write response")
	}
}

func (as *ApiServer) handleGet(w http.ResponseWriter, r *http.Request) {
	path, err := pathFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	value, ok, err := as.Store.Get(path)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(value)
}

func (as *ApiServer) handleSet(w http.ResponseWriter, r *http.Request) {
	path, err := pathFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	value, ok := readJSONBody(w, r)
	if !ok {
		return
	}
	if err := as.Store.Set(path, value); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	logger.Component("httpapi").WithField("path", path.String()).Debug("value set")
	w.WriteHeader(http.StatusNoContent)
}

func (as *ApiServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	path, err := pathFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := as.Store.Delete(path); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (as *ApiServer) handleDump(w http.ResponseWriter, r *http.Request) {
	data, err := as.Store.Dump()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (as *ApiServer) decodeEntries(w http.ResponseWriter, r *http.Request) (map[string]json.RawMessage, bool) {
	body, ok := readJSONBody(w, r)
	if !ok {
		return nil, false
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(body, &entries); err != nil {
		http.Error(w, "body must be a JSON object", http.StatusBadRequest)
		return nil, false
	}
	return entries, true
}

func (as *ApiServer) handleSetMany(w http.ResponseWriter, r *http.Request) {
	entries, ok := as.decodeEntries(w, r)
	if !ok {
		return
	}
	if err := as.Store.SetMany(entries); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (as *ApiServer) handleRestore(w http.ResponseWriter, r *http.Request) {
	entries, ok := as.decodeEntries(w, r)
	if !ok {
		return
	}
	if err := as.Store.Restore(entries); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
