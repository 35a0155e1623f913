package inference

import (
	"context"
	"errors"
	"testing"
)

func TestChainFallback(t *testing.T) {
	ctx := context.Background()

	failing := WithError(errors.New("provider 1 failed"))
	working := NewReplyMock("From working provider")

	chain, err := NewChain(failing, working)
	if err != nil {
		t.Fatalf("Failed to create chain: %v", err)
	}
	defer chain.Close()

	resp, err := chain.Chat(ctx, &ChatRequest{
		Messages: []Message{NewUserMessage("test")},
	})
	if err != nil {
		t.Fatalf("Chain chat failed: %v", err)
	}
	if resp.Message.Content != "From working provider" {
		t.Errorf("Unexpected response: %s", resp.Message.Content)
	}
}

func TestChainAllFail(t *testing.T) {
	ctx := context.Background()

	chain, _ := NewChain(WithError(errors.New("provider 1 failed")), WithError(errors.New("provider 2 failed")))
	defer chain.Close()

	_, err := chain.Chat(ctx, &ChatRequest{
		Messages: []Message{NewUserMessage("test")},
	})
	if err == nil {
		t.Fatal("Expected error when all providers fail")
	}

	var chainErr *ChainError
	if !errors.As(err, &chainErr) {
		t.Fatalf("Expected ChainError, got %T", err)
	}
	if len(chainErr.Errors) != 2 {
		t.Errorf("Expected 2 errors, got %d", len(chainErr.Errors))
	}
}

func TestChainSkipsNonChatProviders(t *testing.T) {
	ctx := context.Background()

	noChat := NewReplyMock("should not be used")
	noChat.CapabilitiesOverride = &Capabilities{}
	working := NewReplyMock("used")

	chain, _ := NewChain(noChat, working)

	resp, err := chain.Chat(ctx, &ChatRequest{Messages: []Message{NewUserMessage("x")}})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Text() != "used" {
		t.Errorf("Unexpected reply %q", resp.Text())
	}
	if noChat.CallCount("Chat") != 0 {
		t.Error("Provider without chat capability should be skipped")
	}

	only, _ := NewChain(noChat)
	if _, err := only.Chat(ctx, &ChatRequest{}); !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("Expected ErrProviderUnavailable, got %v", err)
	}
}

func TestChainStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	first := WithError(errors.New("boom"))
	second := NewMock()
	chain, _ := NewChain(first, second)

	if _, err := chain.Chat(ctx, &ChatRequest{}); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if second.CallCount("Chat") != 0 {
		t.Error("Second provider should not run after cancellation")
	}
}

func TestChainCapabilities(t *testing.T) {
	chatOnly := NewMock()
	chatOnly.CapabilitiesOverride = &Capabilities{Chat: true}

	sysOnly := NewMock()
	sysOnly.CapabilitiesOverride = &Capabilities{SystemPrompt: true}

	chain, _ := NewChain(chatOnly, sysOnly)
	caps := chain.Capabilities()
	if !caps.Chat || !caps.SystemPrompt {
		t.Errorf("Expected union of capabilities, got %+v", caps)
	}
}

func TestChainHealth(t *testing.T) {
	ctx := context.Background()

	chain, _ := NewChain(WithError(errors.New("unhealthy")), NewMock())
	if err := chain.Health(ctx); err != nil {
		t.Errorf("Health check should pass with at least one healthy provider: %v", err)
	}

	bad, _ := NewChain(WithError(errors.New("unhealthy 1")), WithError(errors.New("unhealthy 2")))
	if err := bad.Health(ctx); err == nil {
		t.Error("Health check should fail when all providers are unhealthy")
	}
}

func TestChainEmpty(t *testing.T) {
	_, err := NewChain()
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("Expected ErrProviderUnavailable, got %v", err)
	}
}

func TestChainProviders(t *testing.T) {
	chain, _ := NewChain(NewMock(), NewMock())
	if len(chain.Providers()) != 2 {
		t.Errorf("Expected 2 providers, got %d", len(chain.Providers()))
	}
}
