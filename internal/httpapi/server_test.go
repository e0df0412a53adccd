package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"hubd/internal/camera"
	"hubd/internal/hub"
	"hubd/internal/proto"
	"hubd/pkg/types"
)

type fakeService struct {
	status        types.StatusResponse
	ready         bool
	transitionErr error
	commands      []hub.Command
}

func (s *fakeService) Status() types.StatusResponse { return s.status }
func (s *fakeService) Ready() bool                  { return s.ready }
func (s *fakeService) Transition(ctx context.Context, cmd hub.Command) error {
	s.commands = append(s.commands, cmd)
	return s.transitionErr
}

func newTestServer(t *testing.T, svc *fakeService, bus *camera.Bus) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(NewMux(Config{
		Service: svc,
		Frames:  bus,
		Cameras: []string{"front"},
		Log:     zerolog.Nop(),
	}))
	t.Cleanup(ts.Close)
	return ts
}

func postCommand(t *testing.T, ts *httptest.Server, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(ts.URL+"/command", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestStatusEndpoint(t *testing.T) {
	svc := &fakeService{status: types.StatusResponse{Mode: "teleop", Provider: "leader"}, ready: true}
	ts := newTestServer(t, svc, nil)

	resp, err := http.Get(ts.URL + "/status")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	var got types.StatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Mode != "teleop" || got.Provider != "leader" {
		t.Fatalf("got %+v", got)
	}
}

func TestReadyz(t *testing.T) {
	svc := &fakeService{ready: false}
	ts := newTestServer(t, svc, nil)

	resp, err := http.Get(ts.URL + "/readyz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status %d, want 503", resp.StatusCode)
	}

	svc.ready = true
	resp, err = http.Get(ts.URL + "/readyz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d, want 200", resp.StatusCode)
	}
}

func TestCommandEndpoint(t *testing.T) {
	svc := &fakeService{ready: true}
	ts := newTestServer(t, svc, nil)

	resp := postCommand(t, ts, `{"teleop": "leader"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	if len(svc.commands) != 1 || svc.commands[0].Kind != hub.CmdTeleop || svc.commands[0].Provider != "leader" {
		t.Fatalf("commands %+v", svc.commands)
	}
}

func TestCommandErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"unknown provider", hub.ErrUnknownProvider("nope"), http.StatusNotFound},
		{"unreachable", hub.ErrProviderUnreachable("leader", errors.New("refused")), http.StatusBadGateway},
		{"shutting down", hub.ErrShuttingDown, http.StatusServiceUnavailable},
		{"internal", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &fakeService{ready: true, transitionErr: tc.err}
			ts := newTestServer(t, svc, nil)
			resp := postCommand(t, ts, `{"teleop": "leader"}`)
			if resp.StatusCode != tc.want {
				t.Fatalf("status %d, want %d", resp.StatusCode, tc.want)
			}
			var body types.ErrorResponse
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Code != tc.want || body.Error == "" {
				t.Fatalf("body %+v", body)
			}
		})
	}
}

func TestCommandRejectsBadRequests(t *testing.T) {
	svc := &fakeService{ready: true}
	ts := newTestServer(t, svc, nil)

	resp := postCommand(t, ts, `{"dance": "now"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unknown verb: status %d", resp.StatusCode)
	}

	resp = postCommand(t, ts, `not json`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad json: status %d", resp.StatusCode)
	}

	r, err := http.Post(ts.URL+"/command", "text/plain", strings.NewReader(`{"idle":""}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	r.Body.Close()
	if r.StatusCode != http.StatusUnsupportedMediaType {
		t.Fatalf("bad content type: status %d", r.StatusCode)
	}
	if len(svc.commands) != 0 {
		t.Fatalf("rejected requests reached the service: %+v", svc.commands)
	}
}

func TestCamerasEndpoint(t *testing.T) {
	svc := &fakeService{ready: true}
	ts := newTestServer(t, svc, camera.NewBus())

	resp, err := http.Get(ts.URL + "/cameras")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var body struct {
		Cameras []string `json:"cameras"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Cameras) != 1 || body.Cameras[0] != "front" {
		t.Fatalf("cameras %v", body.Cameras)
	}
}

func TestCameraWebsocketRelay(t *testing.T) {
	bus := camera.NewBus()
	svc := &fakeService{ready: true}
	ts := newTestServer(t, svc, bus)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/cameras/front/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-time.After(10 * time.Millisecond):
				bus.Publish(proto.Frame{Camera: "front", Encoding: "jpeg", Data: []byte{0xFF, 0xD8, 0xFF}})
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if kind != websocket.BinaryMessage || data[0] != 0xFF || data[1] != 0xD8 {
		t.Fatalf("message kind %d data % x", kind, data)
	}
}

func TestCameraWebsocketUnknownCamera(t *testing.T) {
	svc := &fakeService{ready: true}
	ts := newTestServer(t, svc, camera.NewBus())

	resp, err := http.Get(ts.URL + "/cameras/overhead/ws")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d, want 404", resp.StatusCode)
	}
}
