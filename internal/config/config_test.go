package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, key := range []string{"PORT", "STT_PROVIDER", "LLM_PROVIDER", "TTS_PROVIDER", "TTS_FALLBACK", "STT_FALLBACK", "LLM_FALLBACK", "MURF_API_KEY", "TTS_ERROR_TIMEOUT"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, STTAssemblyAI, cfg.STTProvider)
	assert.Equal(t, LLMGemini, cfg.LLMProvider)
	assert.Equal(t, TTSMurf, cfg.TTSProvider)
	assert.Equal(t, "en-US-natalie", cfg.Voice)
	assert.Equal(t, "en-US-ken", cfg.ErrorVoice)
	assert.Equal(t, 44100, cfg.SampleRate)
	assert.Equal(t, 10, cfg.HistoryWindow)
	assert.Equal(t, 45*time.Second, cfg.STTTimeout)
	assert.Equal(t, 60*time.Second, cfg.FileSTTTimeout)
	assert.Equal(t, 20*time.Second, cfg.FallbackTTSTimeout)
	assert.Equal(t, 30*time.Second, cfg.ErrorTTSTimeout)
	assert.Empty(t, cfg.MurfKey)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "relay.env")
	require.NoError(t, os.WriteFile(path, []byte("MURF_API_KEY=\"quoted-key\"\nPORT=9100\n"), 0o600))
	t.Setenv("MURF_API_KEY", "")
	t.Setenv("PORT", "")
	os.Unsetenv("MURF_API_KEY")
	os.Unsetenv("PORT")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "quoted-key", cfg.MurfKey)
	assert.Equal(t, 9100, cfg.Port)
}

func TestSecretStripsQuotes(t *testing.T) {
	t.Setenv("TEST_SECRET", `  'abc123'  `)
	assert.Equal(t, "abc123", Secret("TEST_SECRET"))
}

func TestDuration(t *testing.T) {
	t.Setenv("TEST_DUR", "15")
	assert.Equal(t, 15*time.Second, Duration("TEST_DUR", time.Second))

	t.Setenv("TEST_DUR", "250ms")
	assert.Equal(t, 250*time.Millisecond, Duration("TEST_DUR", time.Second))

	t.Setenv("TEST_DUR", "soon")
	assert.Equal(t, time.Second, Duration("TEST_DUR", time.Second))
}

func TestList(t *testing.T) {
	t.Setenv("TEST_LIST", " ElevenLabs, ,openai ")
	assert.Equal(t, []string{"elevenlabs", "openai"}, List("TEST_LIST"))
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{Port: 8000, STTProvider: STTAssemblyAI, LLMProvider: LLMGemini, TTSProvider: TTSMurf}
	}

	require.NoError(t, base().Validate())

	c := base()
	c.Port = 0
	assert.Error(t, c.Validate())

	c = base()
	c.STTProvider = "deepgram"
	assert.Error(t, c.Validate())

	c = base()
	c.TTSFallback = []string{"polly"}
	assert.Error(t, c.Validate())

	c = base()
	c.LLMFallback = []string{"claude"}
	assert.Error(t, c.Validate())

	c = base()
	c.STTFallback = []string{STTWhisper, STTGoogle}
	assert.NoError(t, c.Validate())
}

func TestChain(t *testing.T) {
	assert.Equal(t, []string{"murf"}, Chain("murf", nil))
	assert.Equal(t, []string{"murf", "elevenlabs", "google"}, Chain("murf", []string{"elevenlabs", "murf", "google", "elevenlabs"}))
}
