package main

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/spf13/cobra"

	"hubd/internal/proto"
)

// maxStreamFrameBytes bounds one stream frame; encoded JPEG frames are far
// smaller than this in practice.
const maxStreamFrameBytes = 64 << 20

func buildWatchCmd(cfg *cliConfig) *cobra.Command {
	var streamAddress string
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "watch <camera>",
		Short: "Subscribe to a camera stream and report the frame rate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return watchStream(streamAddress, args[0], duration, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&streamAddress, "stream-address", "127.0.0.1:5556", "Camera stream address")
	cmd.Flags().DurationVar(&duration, "for", 5*time.Second, "How long to watch")
	return cmd
}

func watchStream(address, camera string, duration time.Duration, out io.Writer) error {
	conn, err := net.DialTimeout("tcp", address, 3*time.Second)
	if err != nil {
		return fmt.Errorf("dial %s: %w", address, err)
	}
	defer conn.Close()

	payload, err := proto.Marshal(map[string]string{"camera": camera})
	if err != nil {
		return err
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := conn.Write(append(header[:], payload...)); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	deadline := time.Now().Add(duration)
	var frames, bytes int
	for time.Now().Before(deadline) {
		conn.SetReadDeadline(deadline)
		frame, err := readStreamFrame(conn)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				break
			}
			return fmt.Errorf("stream read: %w", err)
		}
		frames++
		bytes += len(frame.Data)
	}

	secs := duration.Seconds()
	fmt.Fprintf(out, "%s: %d frames in %.1fs (%.1f fps, %.1f KiB/s)\n",
		camera, frames, secs, float64(frames)/secs, float64(bytes)/1024/secs)
	return nil
}

func readStreamFrame(conn net.Conn) (proto.Frame, error) {
	var frame proto.Frame
	var header [4]byte
	if _, err := io.ReadFull(conn, header[:]); err != nil {
		return frame, err
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > maxStreamFrameBytes {
		return frame, fmt.Errorf("frame too large: %d bytes", size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(conn, payload); err != nil {
		return frame, err
	}
	err := proto.Unmarshal(payload, &frame)
	return frame, err
}
