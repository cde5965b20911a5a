package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/MeKo-Tech/scanwell/internal/frame"
	"github.com/MeKo-Tech/scanwell/internal/scan"
	"github.com/MeKo-Tech/scanwell/internal/strategy"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	streamReadTimeout = 60 * time.Second
	streamPingPeriod  = 30 * time.Second
	streamWriteWait   = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 4 * 1024,
	// Origin policy is the CORS setting's job; streams carry no cookies.
	CheckOrigin: func(*http.Request) bool { return true },
}

// StreamRequest is a text control message from the client. Binary messages
// are treated as encoded frames directly.
type StreamRequest struct {
	Type string `json:"type"` // frame, reset, stats
	// Image is an encoded image; base64 in JSON.
	Image []byte `json:"image,omitempty"`
}

// StreamMessage is every message the server sends on a stream.
type StreamMessage struct {
	Type       string              `json:"type"` // hello, result, stats, reset, error
	StreamID   string              `json:"stream_id"`
	Frame      int                 `json:"frame,omitempty"`
	Found      bool                `json:"found"`
	Result     *scan.Result        `json:"result,omitempty"`
	Trace      *scan.Trace         `json:"trace,omitempty"`
	Stats      *scan.Stats         `json:"stats,omitempty"`
	Candidates []strategy.Strategy `json:"candidates,omitempty"` // strategies the next frame tries
	Error      string              `json:"error,omitempty"`
	ErrorType  string              `json:"error_type,omitempty"`
}

// messageWriter is the part of *websocket.Conn a stream writes to.
type messageWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// stream is one WebSocket connection and the scan session that belongs to it.
type stream struct {
	id      string
	session *scan.Session
	trace   bool
	conn    messageWriter
	server  *Server
}

// streamHandler upgrades the connection and scans every frame the client
// sends through one session, so a strategy that worked keeps being tried first.
// Query parameters strategies, max_attempts and trace configure the session.
func (s *Server) streamHandler(w http.ResponseWriter, r *http.Request) {
	opts, trace, err := s.requestOptions(r.URL.Query())
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	session, err := scan.NewSession(s.engine, opts)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	st := &stream{id: uuid.NewString(), session: session, trace: trace, conn: conn, server: s}
	s.logger.Info("Stream opened", "stream_id", st.id, "remote_addr", r.RemoteAddr)

	st.send(StreamMessage{Type: "hello", Candidates: session.Attempts()})
	s.serveStream(conn, st)

	stats := session.Stats()
	s.logger.Info("Stream closed", "stream_id", st.id, "frames", stats.FrameCount, "last_successful", stats.LastSuccessful)
}

func (s *Server) serveStream(conn *websocket.Conn, st *stream) {
	conn.SetReadLimit(s.maxUploadMB * 1024 * 1024)
	_ = conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(streamPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Error("WebSocket error", "stream_id", st.id, "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(streamReadTimeout))
		websocketMessagesTotal.WithLabelValues("received").Inc()
		st.handleMessage(messageType, data)
	}
}

// handleMessage dispatches one client message.
func (st *stream) handleMessage(messageType int, data []byte) {
	if messageType == websocket.BinaryMessage {
		st.scanFrame(data)
		return
	}

	var req StreamRequest
	if err := json.Unmarshal(data, &req); err != nil {
		st.sendError("invalid_request", "Failed to parse request: "+err.Error())
		return
	}

	switch req.Type {
	case "frame":
		if len(req.Image) == 0 {
			st.sendError("invalid_request", "No image data provided")
			return
		}
		st.scanFrame(req.Image)
	case "reset":
		st.session.Reset()
		stats := st.session.Stats()
		st.send(StreamMessage{Type: "reset", Stats: &stats, Candidates: st.session.Attempts()})
	case "stats":
		stats := st.session.Stats()
		st.send(StreamMessage{Type: "stats", Stats: &stats, Candidates: st.session.Attempts()})
	default:
		st.sendError("invalid_request", "Unsupported request type: "+req.Type)
	}
}

// scanFrame decodes an image and runs it through the session. Frames that do
// not decode as images never reach the session and are not counted.
func (st *stream) scanFrame(data []byte) {
	buf, _, err := frame.Decode(bytes.NewReader(data))
	if err != nil {
		scanRequestsTotal.WithLabelValues("stream", "error").Inc()
		st.sendError("invalid_frame", "Failed to decode image: "+err.Error())
		return
	}
	buf = frame.Fit(buf, st.server.maxDimension)

	var (
		res *scan.Result
		tr  *scan.Trace
	)
	if st.trace {
		res, tr, err = st.session.ScanFrameTrace(buf)
	} else {
		res, err = st.session.ScanFrame(buf)
	}
	if err != nil {
		scanRequestsTotal.WithLabelValues("stream", "error").Inc()
		st.sendError("processing_error", err.Error())
		return
	}
	scanRequestsTotal.WithLabelValues("stream", foundLabel(res)).Inc()

	stats := st.session.Stats()
	st.send(StreamMessage{
		Type:   "result",
		Frame:  stats.FrameCount,
		Found:  res != nil,
		Result: res,
		Trace:  tr,
		Stats:  &stats,
	})
}

func (st *stream) sendError(errorType, message string) {
	st.send(StreamMessage{Type: "error", Error: message, ErrorType: errorType})
}

func (st *stream) send(msg StreamMessage) {
	msg.StreamID = st.id
	data, err := json.Marshal(msg)
	if err != nil {
		st.server.logger.Error("Failed to marshal WebSocket message", "error", err)
		return
	}
	if err := st.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		st.server.logger.Error("Failed to send WebSocket message", "stream_id", st.id, "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent").Inc()
}
