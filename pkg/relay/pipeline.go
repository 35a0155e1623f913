package relay

import (
	"context"
	"time"

	"github.com/teslashibe/voice-relay/pkg/fallback"
	"github.com/teslashibe/voice-relay/pkg/session"
)

// systemTranscript stands in for the transcription when it failed.
const systemTranscript = "System Error"

// Chat runs one conversation turn for sessionID.
//
// The user message is appended only after a successful transcription, and
// the assistant message (real or fallback) is always appended before
// synthesis, so MessageCount grows by two per transcribed turn.
func (p *Pipeline) Chat(ctx context.Context, sessionID string, audio Audio) *Result {
	r := newRun("chat", sessionID)

	text, ok := p.transcribeStage(ctx, r, audio)
	if !ok {
		return p.finish(r, p.fallbackTurn(ctx, r, text))
	}

	history := p.store.Recent(sessionID, p.cfg.HistoryWindow)
	p.store.Append(sessionID, session.RoleUser, text)

	r.enter(StateGenerating)
	start := time.Now()
	reply, err := p.generate(ctx, BuildPrompt(history, text))
	r.timings.Generate = time.Since(start)
	generated := err == nil
	if err != nil {
		r.fail(StageGenerate, err)
		r.enter(StateGenerateFailed)
		reply = fallback.Text(generateFallback(err))
	} else {
		r.enter(StateGenerated)
		reply = Truncate(reply, p.cfg.MaxReplyRunes, p.cfg.TruncateRunes, p.cfg.TruncateSuffix)
	}
	p.store.Append(sessionID, session.RoleAssistant, reply)

	res := &Result{
		Transcription: text,
		ReplyText:     reply,
		SessionID:     sessionID,
		MessageCount:  p.store.Count(sessionID),
	}

	url, err := p.synthesizeStage(ctx, r, reply, p.cfg.Voice, p.cfg.TTSTimeout)
	switch {
	case err != nil:
		why := reason(err)
		res.Status = StatusPartial
		res.FallbackText = fallback.ChatText(text, reply, why)
		res.Message = fallback.ChatStatus(why)
	case !generated:
		res.AudioURL = url
		res.Status = StatusFallback
		res.FallbackText = reply
	default:
		res.AudioURL = url
		res.Status = StatusSuccess
	}
	return p.finish(r, res)
}

// Echo transcribes audio and speaks the transcript back. No session is
// touched and the dialogue generator is never called.
func (p *Pipeline) Echo(ctx context.Context, audio Audio) *Result {
	r := newRun("echo", "")

	text, ok := p.transcribeStage(ctx, r, audio)
	if !ok {
		return p.finish(r, p.fallbackTurn(ctx, r, text))
	}

	res := &Result{Transcription: text, ReplyText: text}
	url, err := p.synthesizeStage(ctx, r, text, p.cfg.Voice, p.cfg.TTSTimeout)
	if err != nil {
		why := reason(err)
		res.Status = StatusPartial
		res.FallbackText = fallback.EchoText(text, why)
		res.Message = fallback.EchoStatus(why)
	} else {
		res.AudioURL = url
		res.Status = StatusSuccess
	}
	return p.finish(r, res)
}

// transcribeStage returns the transcript and true, or the apology text
// and false.
func (p *Pipeline) transcribeStage(ctx context.Context, r *run, audio Audio) (string, bool) {
	r.enter(StateTranscribing)
	start := time.Now()
	text, err := p.transcribe(ctx, audio, p.cfg.STTTimeout)
	r.timings.Transcribe = time.Since(start)
	if err != nil {
		r.fail(StageTranscribe, err)
		r.enter(StateTranscribeFailed)
		return fallback.Text(transcribeFallback(err)), false
	}
	r.enter(StateTranscribed)
	return text, true
}

func (p *Pipeline) synthesizeStage(ctx context.Context, r *run, text, voice string, timeout time.Duration) (string, error) {
	r.enter(StateSynthesizing)
	start := time.Now()
	url, err := p.synthesize(ctx, text, voice, timeout)
	r.timings.Synthesize = time.Since(start)
	if err != nil {
		r.fail(StageSynthesize, err)
		r.enter(StateSynthesizeFailed)
		return "", err
	}
	r.enter(StateSynthesized)
	return url, nil
}

// fallbackTurn vocalizes msg in place of generation and synthesis after a
// failed transcription. Nothing is appended to the session.
func (p *Pipeline) fallbackTurn(ctx context.Context, r *run, msg string) *Result {
	res := &Result{
		Transcription: systemTranscript,
		ReplyText:     msg,
		SessionID:     r.sessionID,
		Status:        StatusFallback,
		FallbackText:  msg,
		ErrorAudio:    true,
	}
	if r.sessionID != "" {
		res.MessageCount = p.store.Count(r.sessionID)
	}
	if url, err := p.synthesizeStage(ctx, r, msg, p.cfg.Voice, p.cfg.FallbackTTSTimeout); err == nil {
		res.AudioURL = url
	}
	return res
}
