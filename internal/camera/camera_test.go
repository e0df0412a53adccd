package camera

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"hubd/internal/config"
	"hubd/internal/proto"
)

func testRawFrame(w, h int) proto.RawFrame {
	pixels := make([]byte, w*h*3)
	for i := range pixels {
		pixels[i] = byte(i)
	}
	return proto.RawFrame{Width: w, Height: h, Pixels: pixels}
}

func TestBusDeliversToMatchingSubscribers(t *testing.T) {
	bus := NewBus()
	all := bus.Subscribe("", 4)
	defer all.Close()
	front := bus.Subscribe("front", 4)
	defer front.Close()
	wrist := bus.Subscribe("wrist", 4)
	defer wrist.Close()

	bus.Publish(proto.Frame{Camera: "front", Data: []byte{1}})

	select {
	case f := <-all.Frames():
		if f.Camera != "front" {
			t.Fatalf("camera %q", f.Camera)
		}
	default:
		t.Fatal("wildcard subscriber missed the frame")
	}
	select {
	case <-front.Frames():
	default:
		t.Fatal("matching subscriber missed the frame")
	}
	select {
	case f := <-wrist.Frames():
		t.Fatalf("filtered subscriber received %q", f.Camera)
	default:
	}
}

func TestBusDropsOnFullBuffer(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe("", 1)
	defer sub.Close()

	bus.Publish(proto.Frame{Camera: "front", Data: []byte{1}})
	bus.Publish(proto.Frame{Camera: "front", Data: []byte{2}})

	if got := sub.Dropped(); got != 1 {
		t.Fatalf("dropped %d, want 1", got)
	}
	f := <-sub.Frames()
	if f.Data[0] != 1 {
		t.Fatalf("kept frame %v, want the first", f.Data)
	}
}

func TestBusCloseRemovesSubscriber(t *testing.T) {
	bus := NewBus()
	sub := bus.Subscribe("", 1)
	sub.Close()
	if got := bus.Subscribers(); got != 0 {
		t.Fatalf("subscribers %d", got)
	}
	if _, ok := <-sub.Frames(); ok {
		t.Fatal("channel not closed")
	}
}

func TestDownscale(t *testing.T) {
	frame := testRawFrame(320, 240)
	out := downscale(frame, 160)
	if out.Width != 160 || out.Height != 120 {
		t.Fatalf("got %dx%d", out.Width, out.Height)
	}
	if len(out.Pixels) != 160*120*3 {
		t.Fatalf("pixel buffer %d bytes", len(out.Pixels))
	}
	// Narrow frames pass through untouched.
	same := downscale(frame, 640)
	if same.Width != 320 || len(same.Pixels) != len(frame.Pixels) {
		t.Fatal("narrow frame was rescaled")
	}
}

func TestEncodeJPEG(t *testing.T) {
	data, err := encodeJPEG(testRawFrame(32, 24), 80)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(data) < 2 || data[0] != 0xFF || data[1] != 0xD8 {
		t.Fatalf("not a JPEG: % x", data[:2])
	}
	if _, err := encodeJPEG(proto.RawFrame{Width: 10, Height: 10, Pixels: []byte{1}}, 80); err == nil {
		t.Fatal("short buffer accepted")
	}
}

func newTestStreamer(t *testing.T, src config.CameraSourceConfig) *Streamer {
	t.Helper()
	cfg := config.CameraConfig{Quality: 80, Sources: []config.CameraSourceConfig{src}}
	s := NewStreamer(cfg, NewBus(), zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return s
}

func TestStreamerEncodesAndPublishes(t *testing.T) {
	s := newTestStreamer(t, config.CameraSourceConfig{Name: "front"})
	sub := s.Bus().Subscribe("front", 4)
	defer sub.Close()

	s.Submit(map[string]proto.RawFrame{"front": testRawFrame(32, 24)}, 42)

	select {
	case f := <-sub.Frames():
		if f.Encoding != "jpeg" || f.Camera != "front" || f.TimestampNS != 42 {
			t.Fatalf("frame %+v", f)
		}
		if f.Data[0] != 0xFF || f.Data[1] != 0xD8 {
			t.Fatal("payload is not a JPEG")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no frame published")
	}
}

func TestStreamerIgnoresUnconfiguredSources(t *testing.T) {
	s := newTestStreamer(t, config.CameraSourceConfig{Name: "front"})
	sub := s.Bus().Subscribe("", 4)
	defer sub.Close()

	s.Submit(map[string]proto.RawFrame{"overhead": testRawFrame(32, 24)}, 1)

	select {
	case f := <-sub.Frames():
		t.Fatalf("unexpected frame from %q", f.Camera)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestStreamerDownscalesPerSource(t *testing.T) {
	s := newTestStreamer(t, config.CameraSourceConfig{Name: "front", MaxWidth: 16})
	sub := s.Bus().Subscribe("front", 4)
	defer sub.Close()

	s.Submit(map[string]proto.RawFrame{"front": testRawFrame(32, 24)}, 1)

	select {
	case f := <-sub.Frames():
		if f.Width != 16 || f.Height != 12 {
			t.Fatalf("published %dx%d", f.Width, f.Height)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no frame published")
	}
}

func TestSubmitNeverBlocksOnSaturation(t *testing.T) {
	// No worker goroutine drains the slot and a full, never-read subscriber
	// sits on the bus; Submit must still return promptly every time.
	cfg := config.CameraConfig{Quality: 80, Sources: []config.CameraSourceConfig{{Name: "front"}}}
	s := NewStreamer(cfg, NewBus(), zerolog.Nop())
	stuck := s.Bus().Subscribe("front", 1)
	defer stuck.Close()
	s.Bus().Publish(proto.Frame{Camera: "front"})

	frame := testRawFrame(320, 240)
	start := time.Now()
	for i := 0; i < 1000; i++ {
		s.Submit(map[string]proto.RawFrame{"front": frame}, int64(i))
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("1000 submits took %s", elapsed)
	}
}

func TestStreamServerDeliversFrames(t *testing.T) {
	bus := NewBus()
	server, err := NewServer(":0", bus, zerolog.Nop())
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		server.Serve(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	conn, err := net.Dial("tcp", server.Address())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	payload, err := proto.Marshal(subscribeRequest{Camera: "front"})
	if err != nil {
		t.Fatalf("encode subscribe: %v", err)
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := conn.Write(append(header[:], payload...)); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	// Publish repeatedly; frames sent before the subscription registers are
	// simply lost.
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-time.After(10 * time.Millisecond):
				bus.Publish(proto.Frame{Camera: "front", Encoding: "jpeg", Data: []byte{0xFF, 0xD8}})
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := io.ReadFull(conn, header[:]); err != nil {
		t.Fatalf("read header: %v", err)
	}
	body := make([]byte, binary.BigEndian.Uint32(header[:]))
	if _, err := io.ReadFull(conn, body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	var frame proto.Frame
	if err := proto.Unmarshal(body, &frame); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if frame.Camera != "front" || frame.Encoding != "jpeg" {
		t.Fatalf("frame %+v", frame)
	}
}
