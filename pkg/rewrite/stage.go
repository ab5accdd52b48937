package rewrite

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/brightvale/platform/pkg/telemetry"
)

// stageState tracks the rewrite stage's response handling mode.
type stageState int

const (
	// statePassthrough streams bytes straight to the transport. Terminal
	// once any byte has left: a response cannot retroactively buffer.
	statePassthrough stageState = iota
	// stateBuffering holds HTML body chunks until the response completes.
	stateBuffering
	// stateFlushing is the terminal rewrite-and-transmit step.
	stateFlushing
)

// Stage is an http.ResponseWriter decorator that buffers text/html responses
// and rewrites their root-relative URLs before a single final write. Every
// other content type streams through untouched. It replaces the classic
// mutable write/end override trick with an explicit pipeline stage.
type Stage struct {
	rw       http.ResponseWriter
	basePath string
	logger   *slog.Logger
	metrics  *telemetry.Metrics

	state       stageState
	decided     bool
	status      int
	statusSet   bool
	sentHeader  bool
	sentAnyByte bool
	buf         bytes.Buffer
}

// NewStage wraps a response writer for a tenant with the given (non-empty,
// normalized) base path. Logger and metrics may be nil.
func NewStage(rw http.ResponseWriter, basePath string, logger *slog.Logger, metrics *telemetry.Metrics) *Stage {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stage{
		rw:       rw,
		basePath: basePath,
		logger:   logger,
		metrics:  metrics,
		status:   http.StatusOK,
	}
}

// Header returns the downstream header map. Buffered responses may keep
// mutating it until the final flush.
func (s *Stage) Header() http.Header {
	return s.rw.Header()
}

// WriteHeader records the status code. When the content type is already
// known it also locks the state; the actual downstream WriteHeader is
// deferred until the first passthrough byte or the final flush so a
// corrected Content-Length can still be set.
func (s *Stage) WriteHeader(statusCode int) {
	if s.statusSet {
		// First call wins, matching net/http semantics.
		return
	}
	s.statusSet = true
	s.status = statusCode

	if !s.decided {
		if ct := s.rw.Header().Get("Content-Type"); ct != "" {
			s.decide(isHTMLContentType(ct))
		}
	}
	if s.decided && s.state == statePassthrough && !s.sentHeader {
		s.sentHeader = true
		s.rw.WriteHeader(statusCode)
	}
}

// Write routes a body chunk according to the state machine. The content-type
// decision happens on the first chunk when the handler never set a header.
func (s *Stage) Write(p []byte) (int, error) {
	if !s.decided {
		ct := s.rw.Header().Get("Content-Type")
		if ct == "" {
			ct = http.DetectContentType(p)
		}
		s.decide(isHTMLContentType(ct))
	}

	if s.state == stateBuffering {
		return s.buf.Write(p)
	}

	if !s.sentHeader {
		s.sentHeader = true
		s.rw.WriteHeader(s.status)
	}
	s.sentAnyByte = true
	return s.rw.Write(p)
}

// decide locks the stage into buffering or passthrough. Buffering is only
// legal before any passthrough byte has been transmitted.
func (s *Stage) decide(isHTML bool) {
	if s.decided {
		return
	}
	s.decided = true
	if isHTML && !s.sentAnyByte {
		s.state = stateBuffering
	} else {
		s.state = statePassthrough
	}
}

// Close completes the response. For buffered HTML it rewrites the whole
// payload, corrects Content-Length, and performs the single final write.
// Passthrough responses only need their deferred header flushed.
func (s *Stage) Close() {
	switch s.state {
	case stateBuffering:
		s.state = stateFlushing
		start := time.Now()
		body := s.buf.Bytes()
		rewritten := Rewrite(body, s.basePath)

		result := "rewritten"
		if bytes.Equal(body, rewritten) {
			result = "unchanged"
		}
		if s.metrics != nil {
			s.metrics.RecordRewrite(result, time.Since(start))
		}
		s.logger.Debug("HTML response rewritten",
			"base_path", s.basePath,
			"bytes_in", len(body),
			"bytes_out", len(rewritten),
		)

		s.rw.Header().Set("Content-Length", strconv.Itoa(len(rewritten)))
		s.rw.WriteHeader(s.status)
		if _, err := s.rw.Write(rewritten); err != nil {
			s.logger.Debug("Client went away during rewrite flush", "error", err)
		}

	case statePassthrough:
		// Header-only responses (204, 304, errors with empty bodies)
		// never hit Write; flush the recorded status now.
		if !s.sentHeader {
			s.sentHeader = true
			s.rw.WriteHeader(s.status)
		}
	}
}

// Flush implements http.Flusher for passthrough responses. Buffered
// responses cannot stream, so the flush is absorbed.
func (s *Stage) Flush() {
	if s.state != statePassthrough || !s.sentHeader {
		return
	}
	if flusher, ok := s.rw.(http.Flusher); ok {
		flusher.Flush()
	}
}

// isHTMLContentType reports whether a Content-Type names an HTML document.
func isHTMLContentType(ct string) bool {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.EqualFold(strings.TrimSpace(ct), "text/html")
}
