package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/voice-relay/pkg/clips"
	"github.com/teslashibe/voice-relay/pkg/fallback"
	"github.com/teslashibe/voice-relay/pkg/hub"
	"github.com/teslashibe/voice-relay/pkg/inference"
	"github.com/teslashibe/voice-relay/pkg/relay"
	"github.com/teslashibe/voice-relay/pkg/session"
	"github.com/teslashibe/voice-relay/pkg/stt"
	"github.com/teslashibe/voice-relay/pkg/tts"
)

const murfURL = "https://murf.example/out.mp3"

type adapters struct {
	stt stt.Provider
	llm inference.Provider
	tts tts.Provider
}

func newServer(t *testing.T, a adapters) *Server {
	t.Helper()
	store := clips.New(clips.Config{})
	opts := []relay.Option{relay.WithClips(store, "/audio/")}
	if a.stt != nil {
		opts = append(opts, relay.WithTranscriber(a.stt))
	}
	if a.llm != nil {
		opts = append(opts, relay.WithGenerator(a.llm))
	}
	if a.tts != nil {
		opts = append(opts, relay.WithSynthesizer(a.tts))
	}
	p := relay.New(session.NewMemoryStore(), opts...)

	cfg := DefaultConfig()
	cfg.StaticDir = t.TempDir() + "/missing"
	return New(p, store, hub.New(nil), cfg)
}

func happyServer(t *testing.T) *Server {
	return newServer(t, adapters{
		stt: stt.NewMock("hello"),
		llm: inference.NewReplyMock("hi there"),
		tts: tts.NewMock(murfURL),
	})
}

func uploadRequest(t *testing.T, path string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if data != nil {
		part, err := w.CreateFormFile("file", "recording.webm")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func jsonRequest(method, path, body string) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func do(t *testing.T, s *Server, req *http.Request, out any) *http.Response {
	t.Helper()
	resp, err := s.App().Test(req, -1)
	require.NoError(t, err)
	if out != nil {
		defer resp.Body.Close()
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestHealthRoute(t *testing.T) {
	var body relay.Health
	resp := do(t, newServer(t, adapters{stt: stt.NewMock("x")}), httptest.NewRequest(http.MethodGet, "/health", nil), &body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body.Status)
	assert.Equal(t, "available", body.Services.SpeechToText)
	assert.Equal(t, "unavailable", body.Services.TextToSpeech)
	assert.Equal(t, "Some services may have limited functionality", body.Message)
}

func TestChatAndHistoryRoutes(t *testing.T) {
	s := happyServer(t)

	var res map[string]any
	resp := do(t, s, uploadRequest(t, "/agent/chat/s1", []byte("audio")), &res)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello", res["transcription"])
	assert.Equal(t, "hi there", res["llm_response"])
	assert.Equal(t, murfURL, res["audio_url"])
	assert.Equal(t, "s1", res["session_id"])
	assert.EqualValues(t, 2, res["message_count"])
	assert.Equal(t, "success", res["status"])
	assert.NotContains(t, res, "fallback_text")

	var hist struct {
		SessionID    string `json:"session_id"`
		MessageCount int    `json:"message_count"`
		Messages     []struct {
			Role      string `json:"role"`
			Content   string `json:"content"`
			Timestamp string `json:"timestamp"`
		} `json:"messages"`
	}
	do(t, s, httptest.NewRequest(http.MethodGet, "/agent/history/s1", nil), &hist)
	assert.Equal(t, "s1", hist.SessionID)
	assert.Equal(t, 2, hist.MessageCount)
	require.Len(t, hist.Messages, 2)
	assert.Equal(t, "user", hist.Messages[0].Role)
	assert.Equal(t, "assistant", hist.Messages[1].Role)
	assert.NotEmpty(t, hist.Messages[0].Timestamp)

	var sessions struct {
		Sessions      []session.Summary `json:"sessions"`
		TotalSessions int               `json:"total_sessions"`
	}
	do(t, s, httptest.NewRequest(http.MethodGet, "/agent/sessions", nil), &sessions)
	assert.Equal(t, 1, sessions.TotalSessions)
	assert.Equal(t, "s1", sessions.Sessions[0].SessionID)

	var cleared map[string]string
	do(t, s, httptest.NewRequest(http.MethodDelete, "/agent/history/s1", nil), &cleared)
	assert.Equal(t, "Chat history cleared successfully", cleared["message"])
	assert.Equal(t, "success", cleared["status"])

	do(t, s, httptest.NewRequest(http.MethodDelete, "/agent/history/s1", nil), &cleared)
	assert.Equal(t, "No history found or already cleared", cleared["message"])

	var empty struct {
		Messages     []any `json:"messages"`
		MessageCount int   `json:"message_count"`
	}
	do(t, s, httptest.NewRequest(http.MethodGet, "/agent/history/never", nil), &empty)
	assert.NotNil(t, empty.Messages)
	assert.Empty(t, empty.Messages)
	assert.Zero(t, empty.MessageCount)
}

func TestChatDegradesWithStatus200(t *testing.T) {
	t.Run("no adapters past transcription", func(t *testing.T) {
		s := newServer(t, adapters{stt: stt.NewMock("hello")})

		var res relay.Result
		resp := do(t, s, uploadRequest(t, "/agent/chat/s1", []byte("audio")), &res)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, relay.StatusPartial, res.Status)
		assert.Equal(t, fallback.Text(fallback.LLMError), res.ReplyText)
		assert.Equal(t, 2, res.MessageCount)
		assert.Contains(t, res.FallbackText, "hello")
	})

	t.Run("missing file", func(t *testing.T) {
		s := happyServer(t)

		var res relay.Result
		resp := do(t, s, uploadRequest(t, "/agent/chat/s1", nil), &res)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, relay.StatusFallback, res.Status)
		assert.Equal(t, fallback.Text(fallback.NoSpeech), res.ReplyText)
		assert.True(t, res.ErrorAudio)
	})
}

func TestEchoRoute(t *testing.T) {
	var res relay.Result
	resp := do(t, happyServer(t), uploadRequest(t, "/tts/echo", []byte("audio")), &res)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello", res.Transcription)
	assert.Equal(t, "hello", res.ReplyText)
	assert.Equal(t, murfURL, res.AudioURL)
}

func TestTranscribeRoute(t *testing.T) {
	tests := []struct {
		name     string
		stt      stt.Provider
		data     []byte
		status   int
		error    string
		fallback string
	}{
		{"success", stt.NewMock("hello"), []byte("a"), http.StatusOK, "", ""},
		{"missing credential", nil, []byte("a"), http.StatusServiceUnavailable, "Speech recognition service unavailable", fallback.Text(fallback.APIKeyMissing)},
		{"missing file", stt.NewMock("hello"), nil, http.StatusBadRequest, "Invalid audio file", "Please upload a valid audio file"},
		{"no speech", stt.NewMock(""), []byte("a"), http.StatusBadRequest, "No speech detected", fallback.Text(fallback.NoSpeech)},
		{"upstream failure", stt.WithError(&stt.APIError{StatusCode: 500, Message: "boom"}), []byte("a"), http.StatusInternalServerError, "Transcription failed: ", fallback.Text(fallback.STTError)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServer(t, adapters{stt: tt.stt})

			var body map[string]string
			resp := do(t, s, uploadRequest(t, "/transcribe/file", tt.data), &body)

			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.status == http.StatusOK {
				assert.Equal(t, "hello", body["transcription"])
				assert.Equal(t, "success", body["status"])
				return
			}
			assert.True(t, strings.HasPrefix(body["error"], tt.error), body["error"])
			assert.Equal(t, tt.fallback, body["fallback"])
		})
	}
}

func TestGenerateAudioRoute(t *testing.T) {
	tests := []struct {
		name   string
		tts    tts.Provider
		body   string
		status int
		error  string
	}{
		{"success", tts.NewMock(murfURL), `{"text":"hi"}`, http.StatusOK, ""},
		{"empty text", tts.NewMock(murfURL), `{"text":"  "}`, http.StatusBadRequest, "Empty text provided"},
		{"too long", tts.NewMock(murfURL), `{"text":"` + strings.Repeat("a", 5001) + `"}`, http.StatusRequestEntityTooLarge, "Text too long"},
		{"malformed body", tts.NewMock(murfURL), `{"text":`, http.StatusBadRequest, "Invalid request body"},
		{"missing credential", nil, `{"text":"hi"}`, http.StatusServiceUnavailable, "Text-to-speech service unavailable"},
		{"unauthorized", tts.WithError(&tts.APIError{StatusCode: 401}), `{"text":"hi"}`, http.StatusServiceUnavailable, "Authentication failed"},
		{"rate limited", tts.WithError(&tts.APIError{StatusCode: 429}), `{"text":"hi"}`, http.StatusTooManyRequests, "Rate limit exceeded"},
		{"server error", tts.WithError(&tts.APIError{StatusCode: 502}), `{"text":"hi"}`, http.StatusServiceUnavailable, "TTS service error: 502"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newServer(t, adapters{tts: tt.tts})

			var body map[string]string
			resp := do(t, s, jsonRequest(http.MethodPost, "/generate-audio", tt.body), &body)

			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.status == http.StatusOK {
				assert.Equal(t, murfURL, body["audio_url"])
				assert.Equal(t, "success", body["status"])
				return
			}
			assert.Equal(t, tt.error, body["error"])
			assert.NotEmpty(t, body["fallback"])
		})
	}
}

func TestGenerateAudioVoice(t *testing.T) {
	mock := tts.NewMock(murfURL)
	s := newServer(t, adapters{tts: mock})

	do(t, s, jsonRequest(http.MethodPost, "/generate-audio", `{"text":"hi","voice_id":"en-US-ken"}`), nil)
	assert.Equal(t, "en-US-ken", mock.LastCall().Request.VoiceID)

	do(t, s, jsonRequest(http.MethodPost, "/generate-audio", `{"text":"hi"}`), nil)
	assert.Equal(t, tts.DefaultMurfVoice, mock.LastCall().Request.VoiceID)
}

func TestAudioBytesServedByURL(t *testing.T) {
	s := newServer(t, adapters{tts: tts.NewBytesMock([]byte("ID3-bytes"))})

	var body map[string]string
	do(t, s, jsonRequest(http.MethodPost, "/generate-audio", `{"text":"hi"}`), &body)
	require.True(t, strings.HasPrefix(body["audio_url"], "/audio/"))

	resp := do(t, s, httptest.NewRequest(http.MethodGet, body["audio_url"], nil), nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/mpeg", resp.Header.Get("Content-Type"))
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3-bytes"), data)

	var missing ErrorBody
	resp = do(t, s, httptest.NewRequest(http.MethodGet, "/audio/nope", nil), &missing)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Audio not found or expired", missing.Error)
}

func TestErrorAudioRoute(t *testing.T) {
	t.Run("unavailable", func(t *testing.T) {
		var body map[string]any
		resp := do(t, newServer(t, adapters{}), jsonRequest(http.MethodPost, "/generate-error-audio", `{"message":"oops"}`), &body)

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "audio_url")
		assert.Nil(t, body["audio_url"])
		assert.Equal(t, "unavailable", body["status"])
	})

	t.Run("empty body uses default message", func(t *testing.T) {
		mock := tts.NewMock(murfURL)
		var body map[string]any
		do(t, newServer(t, adapters{tts: mock}), httptest.NewRequest(http.MethodPost, "/generate-error-audio", nil), &body)

		assert.Equal(t, murfURL, body["audio_url"])
		assert.Equal(t, "An error occurred", mock.LastCall().Request.Text)
		assert.Equal(t, tts.MurfErrorVoice, mock.LastCall().Request.VoiceID)
	})
}

func TestQueryRoutes(t *testing.T) {
	s := happyServer(t)

	var text map[string]string
	resp := do(t, s, jsonRequest(http.MethodPost, "/llm/query/text", `{"text":"what time is it"}`), &text)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hi there", text["response"])
	assert.Equal(t, "success", text["status"])

	var voice map[string]string
	resp = do(t, s, uploadRequest(t, "/llm/query", []byte("audio")), &voice)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "hello", voice["transcription"])
	assert.Equal(t, "hi there", voice["llm_response"])
	assert.Equal(t, murfURL, voice["audio_url"])

	var rejected ErrorBody
	resp = do(t, newServer(t, adapters{}), jsonRequest(http.MethodPost, "/llm/query/text", `{"text":"hi"}`), &rejected)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "LLM service unavailable", rejected.Error)
}

func TestMetricsRoute(t *testing.T) {
	s := happyServer(t)
	do(t, s, uploadRequest(t, "/agent/chat/s1", []byte("audio")), nil)

	resp := do(t, s, httptest.NewRequest(http.MethodGet, "/metrics", nil), nil)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := string(data)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain"))
	assert.Contains(t, out, `voice_relay_runs_total{operation="chat",status="success"} 1`)
	assert.Contains(t, out, "voice_relay_sessions 1")
	assert.Contains(t, out, "voice_relay_event_clients 0")
}

func TestEventsRouteRequiresUpgrade(t *testing.T) {
	resp := do(t, happyServer(t), httptest.NewRequest(http.MethodGet, "/ws/events", nil), nil)
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  relay.Error
		want int
	}{
		{relay.Error{Kind: relay.PayloadInvalid, Stage: relay.StageInput}, 400},
		{relay.Error{Kind: relay.PayloadTooLarge, Stage: relay.StageInput}, 413},
		{relay.Error{Kind: relay.CredentialMissing, Stage: relay.StageTranscribe}, 503},
		{relay.Error{Kind: relay.UpstreamTimeout, Stage: relay.StageSynthesize}, 408},
		{relay.Error{Kind: relay.EmptyResult, Stage: relay.StageTranscribe}, 400},
		{relay.Error{Kind: relay.EmptyResult, Stage: relay.StageGenerate}, 503},
		{relay.Error{Kind: relay.UpstreamRejected, Stage: relay.StageTranscribe}, 500},
		{relay.Error{Kind: relay.UpstreamRejected, Stage: relay.StageSynthesize}, 503},
		{relay.Error{Kind: relay.UpstreamRejected, Stage: relay.StageSynthesize, RateLimited: true}, 429},
		{relay.Error{Kind: relay.UpstreamRejected, Stage: relay.StageSynthesize, Unauthorized: true}, 503},
		{relay.Error{Kind: relay.Internal, Stage: relay.StageSynthesize}, 500},
	}

	for _, tt := range tests {
		t.Run(string(tt.err.Kind)+"/"+string(tt.err.Stage), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(&tt.err))
		})
	}
}
