package server

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/voice-relay/pkg/relay"
	"github.com/teslashibe/voice-relay/pkg/session"
)

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(s.pipeline.Health())
}

// upload reads the multipart "file" field. A missing or unreadable file
// yields empty audio, which the pipeline reports in its own terms.
func (s *Server) upload(c *fiber.Ctx) relay.Audio {
	fh, err := c.FormFile("file")
	if err != nil {
		return relay.Audio{}
	}
	f, err := fh.Open()
	if err != nil {
		s.logger.Warn("open upload", "error", err)
		return relay.Audio{}
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		s.logger.Warn("read upload", "error", err)
		return relay.Audio{}
	}
	return relay.Audio{
		Data:   data,
		Format: strings.TrimPrefix(strings.ToLower(filepath.Ext(fh.Filename)), "."),
	}
}

func (s *Server) handleTranscribe(c *fiber.Ctx) error {
	text, err := s.pipeline.Transcribe(c.UserContext(), s.upload(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"transcription": text, "status": "success"})
}

type speakRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voice_id"`
}

func (s *Server) handleGenerateAudio(c *fiber.Ctx) error {
	var req speakRequest
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(err)
	}
	url, err := s.pipeline.Speak(c.UserContext(), req.Text, req.VoiceID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"audio_url": url, "status": "success"})
}

func (s *Server) handleErrorAudio(c *fiber.Ctx) error {
	var req struct {
		Message string `json:"message"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return invalidBody(err)
		}
	}
	return c.JSON(s.pipeline.ErrorAudio(c.UserContext(), req.Message))
}

func (s *Server) handleEcho(c *fiber.Ctx) error {
	return c.JSON(s.pipeline.Echo(c.UserContext(), s.upload(c)))
}

func (s *Server) handleChat(c *fiber.Ctx) error {
	return c.JSON(s.pipeline.Chat(c.UserContext(), c.Params("session_id"), s.upload(c)))
}

func (s *Server) handleQuery(c *fiber.Ctx) error {
	res, err := s.pipeline.Query(c.UserContext(), s.upload(c))
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (s *Server) handleQueryText(c *fiber.Ctx) error {
	var req struct {
		Text string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil {
		return invalidBody(err)
	}
	reply, err := s.pipeline.Ask(c.UserContext(), req.Text)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"response": reply, "status": "success"})
}

type historyResponse struct {
	SessionID    string            `json:"session_id"`
	Messages     []session.Message `json:"messages"`
	MessageCount int               `json:"message_count"`
}

func (s *Server) handleHistory(c *fiber.Ctx) error {
	id := c.Params("session_id")
	msgs := s.pipeline.History(id)
	return c.JSON(historyResponse{SessionID: id, Messages: msgs, MessageCount: len(msgs)})
}

func (s *Server) handleClearHistory(c *fiber.Ctx) error {
	id := c.Params("session_id")
	msg := "No history found or already cleared"
	if s.pipeline.ClearHistory(id) {
		msg = "Chat history cleared successfully"
	}
	return c.JSON(fiber.Map{"session_id": id, "message": msg, "status": "success"})
}

func (s *Server) handleSessions(c *fiber.Ctx) error {
	list := s.pipeline.Sessions()
	return c.JSON(fiber.Map{"sessions": list, "total_sessions": len(list)})
}

func (s *Server) handleAudio(c *fiber.Ctx) error {
	clip, ok := s.clips.Get(c.Params("id"))
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "Audio not found or expired")
	}
	c.Set(fiber.HeaderContentType, clip.ContentType)
	c.Set(fiber.HeaderCacheControl, "private, max-age=300")
	return c.Send(clip.Data)
}
