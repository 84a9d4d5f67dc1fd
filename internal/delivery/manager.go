package delivery

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/njraladdin/screen-demo/internal/domain"
)

var (
	ErrNoArtifact      = errors.New("no artifact available for delivery")
	ErrEmptyArtifact   = errors.New("artifact file is empty or missing")
	ErrChunkOutOfRange = errors.New("chunk index out of range")
	ErrNoPortAvailable = errors.New("no listening port available in configured range")
)

// Config controls media-delivery behavior.
type Config struct {
	ChunkSize      int64
	BasePort       int
	PortSpan       int
	AllowedOrigin  string
	OpenRetries    int
	OpenRetryDelay time.Duration
}

// Manager exposes one finalized artifact through one of three strategies:
// a whole-file transfer, indexed chunk pulls, or a range-seekable local
// server. At most one delivery mechanism is active at a time; opening a new
// one tears down its predecessor.
type Manager struct {
	cfg Config

	mu       sync.Mutex
	artifact domain.ArtifactDescriptor
	mapped   []byte
	unmap    func() error
	server   *artifactServer
	url      string
}

func NewManager(cfg Config) *Manager {
	if cfg.ChunkSize < 4096 {
		cfg.ChunkSize = 1 << 20
	}
	if cfg.BasePort <= 0 || cfg.BasePort > 65535 {
		cfg.BasePort = 18693
	}
	if cfg.PortSpan <= 0 {
		cfg.PortSpan = 10
	}
	if cfg.OpenRetries <= 0 {
		cfg.OpenRetries = 5
	}
	if cfg.OpenRetryDelay <= 0 {
		cfg.OpenRetryDelay = 100 * time.Millisecond
	}
	return &Manager{cfg: cfg}
}

// Open hands a finalized artifact to the requested strategy and returns the
// reference the frontend drives retrieval with. Any previously active
// mechanism is torn down first.
func (m *Manager) Open(artifact domain.ArtifactDescriptor, kind domain.DeliveryKind) (domain.DeliveryReference, error) {
	m.Teardown()

	if !artifact.Ready || artifact.Path == "" {
		return domain.DeliveryReference{}, ErrNoArtifact
	}
	info, err := os.Stat(artifact.Path)
	if err != nil || info.Size() == 0 {
		return domain.DeliveryReference{}, ErrEmptyArtifact
	}
	artifact.DeclaredSize = info.Size()

	m.mu.Lock()
	m.artifact = artifact
	m.mu.Unlock()

	switch kind {
	case domain.DeliveryKindWhole:
		data, err := os.ReadFile(artifact.Path)
		if err != nil {
			return domain.DeliveryReference{}, fmt.Errorf("read artifact: %w", err)
		}
		return domain.DeliveryReference{Kind: domain.DeliveryKindWhole, Bytes: data}, nil

	case domain.DeliveryKindServer:
		url, err := m.serve(artifact)
		if err != nil {
			return domain.DeliveryReference{}, err
		}
		return domain.DeliveryReference{Kind: domain.DeliveryKindServer, URL: url}, nil

	default:
		total := int((artifact.DeclaredSize + m.cfg.ChunkSize - 1) / m.cfg.ChunkSize)
		return domain.DeliveryReference{Kind: domain.DeliveryKindChunked, TotalChunks: total}, nil
	}
}

// Chunk reads the fixed-size window at index directly from the artifact
// file. Retrieval is idempotent; any index past the file end errors.
func (m *Manager) Chunk(index int) ([]byte, error) {
	m.mu.Lock()
	artifact := m.artifact
	m.mu.Unlock()

	if artifact.Path == "" {
		return nil, ErrNoArtifact
	}
	if index < 0 {
		return nil, ErrChunkOutOfRange
	}

	f, err := os.Open(artifact.Path)
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat artifact: %w", err)
	}

	offset := int64(index) * m.cfg.ChunkSize
	if offset >= info.Size() {
		return nil, ErrChunkOutOfRange
	}

	size := m.cfg.ChunkSize
	if remaining := info.Size() - offset; remaining < size {
		size = remaining
	}

	buf := make([]byte, size)
	if _, err := f.ReadAt(buf, offset); err != nil && err != io.EOF {
		return nil, fmt.Errorf("read chunk %d: %w", index, err)
	}
	return buf, nil
}

// Artifact returns the descriptor currently held for delivery.
func (m *Manager) Artifact() domain.ArtifactDescriptor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.artifact
}

func (m *Manager) serve(artifact domain.ArtifactDescriptor) (string, error) {
	data, unmap, err := mapArtifact(artifact.Path, m.cfg.OpenRetries, m.cfg.OpenRetryDelay)
	if err != nil {
		return "", err
	}

	server, err := startArtifactServer(data, m.cfg.BasePort, m.cfg.PortSpan, m.cfg.AllowedOrigin)
	if err != nil {
		_ = unmap()
		return "", err
	}

	m.mu.Lock()
	m.mapped = data
	m.unmap = unmap
	m.server = server
	m.url = server.URL()
	m.mu.Unlock()
	return server.URL(), nil
}

// URL returns the active server URL, if the server strategy is live.
func (m *Manager) URL() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.url
}

// Teardown releases everything the active mechanism holds: the listening
// port, then the memory map, then the artifact record. Idempotent and
// best-effort; a failure on one step never blocks the others.
func (m *Manager) Teardown() {
	m.mu.Lock()
	server := m.server
	unmap := m.unmap
	m.server = nil
	m.unmap = nil
	m.mapped = nil
	m.url = ""
	m.artifact = domain.ArtifactDescriptor{}
	m.mu.Unlock()

	if server != nil {
		server.Close()
	}
	if unmap != nil {
		_ = unmap()
	}
}

// mapArtifact memory-maps the artifact after confirming it exists and is
// non-empty, retrying a bounded number of times with a short backoff to
// absorb a race with the finalizer's last write.
func mapArtifact(path string, retries int, delay time.Duration) ([]byte, func() error, error) {
	var lastErr error
	for attempt := 0; attempt < retries; attempt++ {
		if attempt > 0 {
			time.Sleep(delay)
		}

		f, err := os.Open(path)
		if err != nil {
			lastErr = err
			continue
		}

		info, err := f.Stat()
		if err != nil || info.Size() == 0 {
			f.Close()
			lastErr = ErrEmptyArtifact
			continue
		}

		data, unmap, err := mapFile(f, info.Size())
		f.Close()
		if err != nil {
			lastErr = err
			continue
		}
		return data, unmap, nil
	}
	return nil, nil, fmt.Errorf("mapping artifact failed after %d attempts: %w", retries, lastErr)
}
