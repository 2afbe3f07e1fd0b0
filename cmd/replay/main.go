// Command replay sends hex-encoded frames to a running receiver, one write
// per frame, and prints whatever the receiver answers.
package main

import (
	"bufio"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"jttracker/internal/observability"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:5023", "receiver address")
	file := flag.String("f", "", "file with one hex frame per line (default stdin)")
	wait := flag.Duration("wait", 500*time.Millisecond, "how long to wait for a reply after each frame")
	flag.Parse()

	logger := observability.NewLogger("info", "")
	defer logger.Sync()

	in := io.Reader(os.Stdin)
	if *file != "" {
		f, err := os.Open(*file)
		if err != nil {
			logger.Fatal("failed to open frame file", zap.Error(err))
		}
		defer f.Close()
		in = f
	}
	frames, err := readFrames(in)
	if err != nil {
		logger.Fatal("failed to read frames", zap.Error(err))
	}

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		logger.Fatal("failed to connect", zap.String("addr", *addr), zap.Error(err))
	}
	defer conn.Close()

	for i, frame := range frames {
		if _, err := conn.Write(frame); err != nil {
			logger.Fatal("failed to send frame", zap.Int("frame", i+1), zap.Error(err))
		}
		reply, err := readReply(conn, *wait)
		if err != nil {
			logger.Fatal("failed to read reply", zap.Int("frame", i+1), zap.Error(err))
		}
		if reply == "" {
			fmt.Printf("frame %d (%c): no reply\n", i+1, frame[0])
		} else {
			fmt.Printf("frame %d (%c): %s\n", i+1, frame[0], reply)
		}
	}
}

// readFrames parses one hex frame per line. Blank lines and lines starting
// with '#' are skipped; spaces inside a frame are ignored.
func readFrames(r io.Reader) ([][]byte, error) {
	var frames [][]byte
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		frame, err := hex.DecodeString(strings.ReplaceAll(text, " ", ""))
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		if len(frame) == 0 {
			continue
		}
		frames = append(frames, frame)
	}
	return frames, scanner.Err()
}

func readReply(conn net.Conn, wait time.Duration) (string, error) {
	if err := conn.SetReadDeadline(time.Now().Add(wait)); err != nil {
		return "", err
	}
	buf := make([]byte, 256)
	n, err := conn.Read(buf)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "", nil
		}
		return "", err
	}
	return string(buf[:n]), nil
}
