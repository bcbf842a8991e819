package mock

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"
)

const scanPath = "/api/v1/vulnerability-scan/run"

// Reply is a canned response of the APIServer. Body is written as is when it is a string or []byte,
// otherwise it is encoded as JSON.
type Reply struct {
	Status int
	Header http.Header
	Body   interface{}
	Delay  time.Duration
}

type RecordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// APIServer imitates the scan endpoint of the GeekWala API. Replies are served in order and the last one
// is repeated once the queue is drained.
type APIServer struct {
	*httptest.Server

	mu       sync.Mutex
	replies  []Reply
	requests []RecordedRequest
}

func NewAPIServer(t *testing.T, replies ...Reply) *APIServer {
	t.Helper()
	s := &APIServer{replies: replies}

	router := mux.NewRouter()
	router.Methods(http.MethodPost).Path(scanPath).HandlerFunc(s.scan)

	s.Server = httptest.NewServer(router)
	t.Cleanup(s.Close)
	return s
}

// Requests returns the scan requests received so far.
func (s *APIServer) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.requests...)
}

func (s *APIServer) scan(res http.ResponseWriter, req *http.Request) {
	body, _ := io.ReadAll(req.Body)

	s.mu.Lock()
	s.requests = append(s.requests, RecordedRequest{
		Method: req.Method,
		Path:   req.URL.Path,
		Header: req.Header.Clone(),
		Body:   body,
	})
	var reply Reply
	switch len(s.replies) {
	case 0:
		reply = Reply{Status: http.StatusInternalServerError, Body: "no reply configured"}
	case 1:
		reply = s.replies[0]
	default:
		reply, s.replies = s.replies[0], s.replies[1:]
	}
	s.mu.Unlock()

	if reply.Delay > 0 {
		select {
		case <-time.After(reply.Delay):
		case <-req.Context().Done():
			return
		}
	}

	for k, values := range reply.Header {
		for _, v := range values {
			res.Header().Add(k, v)
		}
	}
	s.write(res, reply)
}

func (s *APIServer) write(res http.ResponseWriter, reply Reply) {
	status := reply.Status
	if status == 0 {
		status = http.StatusOK
	}

	var data []byte
	switch body := reply.Body.(type) {
	case []byte:
		data = body
	case string:
		data = []byte(body)
	default:
		var err error
		if data, err = json.Marshal(body); err != nil {
			log.WithError(err).Error("Error while writing JSON")
			http.Error(res, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if res.Header().Get("Content-Type") == "" {
			res.Header().Set("Content-Type", "application/json")
		}
	}

	res.WriteHeader(status)
	_, _ = res.Write(data)
}
