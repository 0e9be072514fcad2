package server

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/animahq/anima/internal/core/model"
	"github.com/animahq/anima/internal/driver"
)

const proactivePollInterval = time.Minute

// ErrSessionBusy rejects a second concurrent websocket session.
var ErrSessionBusy = errors.New("another session is already active")

// ClientFrame is everything a client may send over the socket.
type ClientFrame struct {
	Type      string `json:"type"`
	Content   string `json:"content,omitempty"`
	Speaker   string `json:"speaker,omitempty"`
	Audio     string `json:"audio,omitempty"`
	Format    string `json:"format,omitempty"`
	Action    string `json:"action,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// ServerFrame is everything the persona sends back. Text frames carry the
// reply in "content"; voice frames carry it in "text" alongside the audio
// (client compatibility).
type ServerFrame struct {
	Type       string `json:"type"`
	Content    string `json:"content,omitempty"`
	Text       string `json:"text,omitempty"`
	Emotion    string `json:"emotion,omitempty"`
	Audio      string `json:"audio,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	Persona    string `json:"persona,omitempty"`
	Phase      string `json:"phase,omitempty"`
	Error      string `json:"error,omitempty"`
	Timestamp  int64  `json:"timestamp"`
}

type session struct {
	conn           *websocket.Conn
	conversationID string
	startedAt      time.Time

	writeMu sync.Mutex
}

func (sess *session) send(frame ServerFrame) error {
	if frame.Timestamp == 0 {
		frame.Timestamp = time.Now().UTC().UnixMilli()
	}
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	return sess.conn.WriteJSON(frame)
}

// sessionManager enforces the single-session rule.
type sessionManager struct {
	mu     sync.Mutex
	active *session
}

func newSessionManager() *sessionManager {
	return &sessionManager{}
}

func (m *sessionManager) claim(sess *session) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active != nil {
		return false
	}
	m.active = sess
	return true
}

func (m *sessionManager) release(sess *session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active == sess {
		m.active = nil
	}
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sess := &session{
		conn:           conn,
		conversationID: uuid.New().String(),
		startedAt:      time.Now().UTC(),
	}
	if !s.sessions.claim(sess) {
		_ = sess.send(ServerFrame{Type: "error", Error: ErrSessionBusy.Error()})
		_ = conn.Close()
		return
	}
	defer func() {
		s.sessions.release(sess)
		s.closeConversation(sess)
		_ = conn.Close()
	}()

	s.openConversation(sess)

	st := s.Mind.Status()
	_ = sess.send(ServerFrame{
		Type:    "connected",
		Persona: s.cfg.Persona.Name,
		Phase:   string(st.GrowthPhase),
	})

	proactiveCtx, stopProactive := context.WithCancel(c.Request.Context())
	defer stopProactive()
	go s.proactiveLoop(proactiveCtx, sess)

	s.readLoop(c.Request.Context(), sess)
}

func (s *Server) readLoop(ctx context.Context, sess *session) {
	for {
		var frame ClientFrame
		if err := sess.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.logger.Warn("session read failed", zap.Error(err))
			}
			return
		}

		switch frame.Type {
		case "text":
			s.handleTextFrame(ctx, sess, frame, false)
		case "voice":
			s.handleVoiceFrame(ctx, sess, frame)
		case "control":
			if done := s.handleControlFrame(ctx, sess, frame); done {
				return
			}
		default:
			_ = sess.send(ServerFrame{Type: "error", Error: "unknown frame type: " + frame.Type})
		}
	}
}

func (s *Server) handleTextFrame(ctx context.Context, sess *session, frame ClientFrame, voiced bool) {
	in := s.inputFromFrame(frame)

	reply, err := s.Mind.ProcessTurn(ctx, in)
	if err != nil {
		s.logger.Error("turn failed", zap.Error(err))
		_ = sess.send(ServerFrame{Type: "error", Error: "I could not process that"})
		return
	}

	// A replayed duplicate is already in the conversation history.
	if !reply.Cached {
		s.persistMessage(sess, "user", in.Text, "")
		s.persistMessage(sess, "assistant", reply.Text, reply.EmotionTag)
	}

	out := ServerFrame{Type: "text", Content: reply.Text, Emotion: reply.EmotionTag}
	if voiced && s.Synthesizer != nil {
		if audio, ok := s.synthesize(ctx, reply.Text, reply.EmotionTag); ok {
			out.Type = "voice"
			out.Content = ""
			out.Text = reply.Text
			out.Audio = audio
		}
	}
	_ = sess.send(out)
}

// synthesize runs TTS under its deadline, returning base64 audio.
func (s *Server) synthesize(ctx context.Context, text, emotion string) (string, bool) {
	ttsCtx, cancel := deadlineCtx(ctx, s.cfg.Deadlines.TTS)
	defer cancel()
	audio, err := s.Synthesizer.Synthesize(ttsCtx, text, emotion)
	if err != nil {
		s.logger.Warn("synthesis failed, replying with text only", zap.Error(err))
		return "", false
	}
	return base64.StdEncoding.EncodeToString(audio), true
}

func deadlineCtx(ctx context.Context, seconds int) (context.Context, context.CancelFunc) {
	if seconds <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, time.Duration(seconds)*time.Second)
}

func (s *Server) handleVoiceFrame(ctx context.Context, sess *session, frame ClientFrame) {
	if s.Transcriber == nil {
		_ = sess.send(ServerFrame{Type: "error", Error: "voice input is not configured"})
		return
	}

	audio, err := base64.StdEncoding.DecodeString(frame.Audio)
	if err != nil {
		_ = sess.send(ServerFrame{Type: "error", Error: "audio must be base64-encoded"})
		return
	}

	sttCtx, cancel := deadlineCtx(ctx, s.cfg.Deadlines.STT)
	text, confidence, err := s.Transcriber.Transcribe(sttCtx, audio, frame.Format)
	cancel()
	if err != nil {
		s.logger.Warn("transcription failed", zap.Error(err))
		_ = sess.send(ServerFrame{Type: "error", Error: "I could not hear that"})
		return
	}

	textFrame := frame
	textFrame.Content = text
	in := s.inputFromFrame(textFrame)
	in.STTConfidence = confidence

	reply, err := s.Mind.ProcessTurn(ctx, in)
	if err != nil {
		s.logger.Error("turn failed", zap.Error(err))
		_ = sess.send(ServerFrame{Type: "error", Error: "I could not process that"})
		return
	}

	if !reply.Cached {
		s.persistMessage(sess, "user", text, "")
		s.persistMessage(sess, "assistant", reply.Text, reply.EmotionTag)
	}

	out := ServerFrame{Type: "voice", Text: reply.Text, Emotion: reply.EmotionTag, Transcript: text}
	if s.Synthesizer != nil {
		if audio, ok := s.synthesize(ctx, reply.Text, reply.EmotionTag); ok {
			out.Audio = audio
		}
	}
	_ = sess.send(out)
}

// handleControlFrame runs a lifecycle action. Returns true when the session
// should end.
func (s *Server) handleControlFrame(ctx context.Context, sess *session, frame ClientFrame) bool {
	switch frame.Action {
	case "pause":
		s.Mind.Pause()
		_ = sess.send(ServerFrame{Type: "control", Content: "paused"})
	case "resume":
		s.Mind.Resume()
		_ = sess.send(ServerFrame{Type: "control", Content: "resumed"})
	case "sleep":
		if err := s.Mind.Sleep(ctx); err != nil {
			s.logger.Error("sleep failed", zap.Error(err))
			_ = sess.send(ServerFrame{Type: "error", Error: "could not fall asleep"})
			return false
		}
		_ = sess.send(ServerFrame{Type: "control", Content: "asleep"})
		return true
	case "shutdown":
		if err := s.Mind.Shutdown(ctx); err != nil {
			s.logger.Error("shutdown persistence failed", zap.Error(err))
		}
		_ = sess.send(ServerFrame{Type: "control", Content: "goodbye"})
		close(s.ShutdownRequested)
		return true
	default:
		_ = sess.send(ServerFrame{Type: "error", Error: "unknown control action: " + frame.Action})
	}
	return false
}

// proactiveLoop pushes a spontaneous message when the creator has been quiet
// too long.
func (s *Server) proactiveLoop(ctx context.Context, sess *session) {
	ticker := time.NewTicker(proactivePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reply, due := s.Mind.ProactiveMessage(ctx)
			if !due {
				continue
			}
			s.persistMessage(sess, "assistant", reply.Text, reply.EmotionTag)
			if err := sess.send(ServerFrame{Type: "proactive", Content: reply.Text, Emotion: reply.EmotionTag}); err != nil {
				return
			}
		}
	}
}

func (s *Server) inputFromFrame(frame ClientFrame) *model.Input {
	speaker := frame.Speaker
	if speaker == "" {
		speaker = s.cfg.Persona.CreatorName
	}
	return &model.Input{
		Text:        frame.Content,
		Speaker:     speaker,
		FromCreator: speaker == s.cfg.Persona.CreatorName,
		ReceivedAt:  time.Now().UTC(),
	}
}

func (s *Server) openConversation(sess *session) {
	_, err := s.Driver.ExecuteQuery(context.Background(), driver.SaveConversationQuery, map[string]interface{}{
		"uuid":       sess.conversationID,
		"started_at": sess.startedAt,
		"ended_at":   nil,
	})
	if err != nil {
		s.logger.Warn("conversation open write failed", zap.Error(err))
	}
}

func (s *Server) closeConversation(sess *session) {
	_, err := s.Driver.ExecuteQuery(context.Background(), driver.SaveConversationQuery, map[string]interface{}{
		"uuid":       sess.conversationID,
		"started_at": sess.startedAt,
		"ended_at":   time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("conversation close write failed", zap.Error(err))
	}
}

func (s *Server) persistMessage(sess *session, role, content, emotion string) {
	_, err := s.Driver.ExecuteQuery(context.Background(), driver.SaveMessageQuery, map[string]interface{}{
		"conversation_uuid": sess.conversationID,
		"uuid":              uuid.New().String(),
		"role":              role,
		"content":           content,
		"emotion":           emotion,
		"sent_at":           time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("message write failed", zap.Error(err))
	}
}
