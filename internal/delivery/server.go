package delivery

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
)

// artifactServer serves one memory-mapped artifact over a loopback port,
// honoring HTTP range requests so the frontend can seek the video.
type artifactServer struct {
	listener net.Listener
	server   *http.Server
	url      string
}

// startArtifactServer binds the first free port in [basePort, basePort+span)
// and starts serving the mapped bytes. Exhausting the range is a hard error.
func startArtifactServer(data []byte, basePort, span int, allowedOrigin string) (*artifactServer, error) {
	listener, port, err := probeListen(basePort, span)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{Handler: newRangeHandler(data, allowedOrigin)}
	s := &artifactServer{
		listener: listener,
		server:   srv,
		url:      fmt.Sprintf("http://127.0.0.1:%d/", port),
	}

	go func() {
		_ = srv.Serve(listener)
	}()

	return s, nil
}

func (s *artifactServer) URL() string {
	return s.url
}

func (s *artifactServer) Close() {
	_ = s.server.Close()
	_ = s.listener.Close()
}

func probeListen(basePort, span int) (net.Listener, int, error) {
	for port := basePort; port < basePort+span; port++ {
		listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
		if err == nil {
			return listener, port, nil
		}
	}
	return nil, 0, fmt.Errorf("%w: %d-%d", ErrNoPortAvailable, basePort, basePort+span-1)
}

// newRangeHandler answers GET / against the mapped artifact bytes with
// partial-content semantics when a Range header is present and full-content
// semantics otherwise. OPTIONS preflights get an empty success response.
func newRangeHandler(data []byte, allowedOrigin string) http.Handler {
	total := int64(len(data))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if allowedOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Range")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		w.Header().Set("Content-Type", "video/mp4")
		w.Header().Set("Accept-Ranges", "bytes")

		rangeHeader := r.Header.Get("Range")
		if rangeHeader == "" {
			w.Header().Set("Content-Length", strconv.FormatInt(total, 10))
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(data)
			return
		}

		start, end, ok := parseByteRange(rangeHeader, total)
		if !ok {
			w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", total))
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}

		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, total))
		w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
		w.WriteHeader(http.StatusPartialContent)
		_, _ = w.Write(data[start : end+1])
	})
}

// parseByteRange handles a single "bytes=start-end" range, with an
// open-ended "bytes=start-" meaning through end of file.
func parseByteRange(header string, total int64) (int64, int64, bool) {
	spec, found := strings.CutPrefix(header, "bytes=")
	if !found || strings.Contains(spec, ",") {
		return 0, 0, false
	}

	startStr, endStr, found := strings.Cut(spec, "-")
	if !found {
		return 0, 0, false
	}

	start, err := strconv.ParseInt(strings.TrimSpace(startStr), 10, 64)
	if err != nil || start < 0 || start >= total {
		return 0, 0, false
	}

	end := total - 1
	if trimmed := strings.TrimSpace(endStr); trimmed != "" {
		end, err = strconv.ParseInt(trimmed, 10, 64)
		if err != nil || end < start {
			return 0, 0, false
		}
		if end >= total {
			end = total - 1
		}
	}

	return start, end, true
}
