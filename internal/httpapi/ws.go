package httpapi

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/antoniostano/elysia/internal/pipeline"
	"github.com/antoniostano/elysia/internal/protocol"
	"github.com/antoniostano/elysia/internal/session"
)

const (
	maxFrameBytes  = 1 << 20
	writeTimeout   = 10 * time.Second
	readIdleLimit  = 120 * time.Second
	outboundBuffer = 16
)

// handleChatWS runs one duplex chat session. Frames on a single connection
// are handled strictly in arrival order; the writer goroutine is the only
// writer on the socket.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("httpapi: websocket upgrade failed: %v", err)
		return
	}

	sess := session.NewSession(s.cfg.HistoryWindow)
	s.registry.Register(sess)
	if s.metrics != nil {
		s.metrics.ActiveConnections.Inc()
	}
	log.Printf("httpapi: session %s connected", sess.ID)

	outbound := make(chan any, outboundBuffer)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for frame := range outbound {
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(frame); err != nil {
				log.Printf("httpapi: session %s write failed: %v", sess.ID, err)
				return
			}
		}
	}()

	defer func() {
		close(outbound)
		<-writerDone
		conn.Close()
		s.registry.Unregister(sess)
		if s.metrics != nil {
			s.metrics.ActiveConnections.Dec()
		}
		log.Printf("httpapi: session %s disconnected", sess.ID)
	}()

	conn.SetReadLimit(maxFrameBytes)
	for {
		// Heartbeat frames refresh the deadline, so a silently dead peer
		// cannot pin the loop forever.
		conn.SetReadDeadline(time.Now().Add(readIdleLimit))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("httpapi: session %s read failed: %v", sess.ID, err)
			}
			return
		}

		msg, err := protocol.ParseClientMessage(raw)
		if errors.Is(err, protocol.ErrUnsupportedType) {
			// Unknown discriminants are ignored; the session stays open.
			continue
		}
		if err != nil {
			if !s.sendFrame(outbound, writerDone, string(protocol.TypeError), protocol.NewError("invalid message")) {
				return
			}
			continue
		}

		switch m := msg.(type) {
		case protocol.Heartbeat:
			s.countWSMessage("in", string(protocol.TypeHeartbeat))
			if !s.sendFrame(outbound, writerDone, string(protocol.TypePong), protocol.NewPong()) {
				return
			}
		case protocol.ChatMessage:
			s.countWSMessage("in", string(protocol.TypeChat))
			if !s.handleChatFrame(r, sess, outbound, writerDone, m) {
				return
			}
		}
	}
}

// handleChatFrame runs one chat turn synchronously so replies on this
// connection keep arrival order. Other connections are unaffected. A false
// return means the writer is gone and the session must end.
func (s *Server) handleChatFrame(r *http.Request, sess *session.Session, outbound chan<- any, writerDone <-chan struct{}, msg protocol.ChatMessage) bool {
	if !s.sendFrame(outbound, writerDone, string(protocol.TypeProcessingStart), protocol.NewProcessingStart()) {
		return false
	}

	turn := pipeline.Turn{
		Modality: pipeline.ModalityText,
		Text:     msg.Text,
		History:  sess.History(),
	}
	res, err := s.runner.Run(r.Context(), turn)
	if err != nil {
		log.Printf("httpapi: session %s turn failed: %v", sess.ID, err)
		return s.sendFrame(outbound, writerDone, string(protocol.TypeError), protocol.NewError(err.Error()))
	}

	sess.AppendExchange(msg.Text, res.Text)
	return s.sendFrame(outbound, writerDone, string(protocol.TypeChatResponse), protocol.NewChatResponse(res.Text, string(res.Emotion)))
}

// sendFrame enqueues one outbound frame. It never blocks past the writer's
// lifetime: a dead writer makes it report false instead of hanging the
// frame loop on a full buffer.
func (s *Server) sendFrame(outbound chan<- any, writerDone <-chan struct{}, frameType string, frame any) bool {
	select {
	case <-writerDone:
		return false
	default:
	}
	select {
	case outbound <- frame:
		s.countWSMessage("out", frameType)
		return true
	case <-writerDone:
		return false
	}
}

func (s *Server) countWSMessage(direction, frameType string) {
	if s.metrics != nil {
		s.metrics.WSMessages.WithLabelValues(direction, frameType).Inc()
	}
}
