package httpx

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// ActorHeader identifies the acting user on mutating requests. Requests
// without it act as the system user (0).
const ActorHeader = "X-Actor-ID"

// Actor returns the acting user id from the request headers.
func Actor(r *http.Request) int64 {
	id, _ := strconv.ParseInt(r.Header.Get(ActorHeader), 10, 64)
	return id
}

// PathInt64 parses a chi URL parameter into an int64.
func PathInt64(r *http.Request, key string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, key), 10, 64)
}
