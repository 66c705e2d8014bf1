package llm

import (
	"testing"
	"time"
)

func TestNewHTTPClientHonorsConfiguredTimeout(t *testing.T) {
	client := newHTTPClient(5*time.Second, 60*time.Second)
	if client.Timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", client.Timeout)
	}
}

func TestNewHTTPClientFallsBackWhenUnset(t *testing.T) {
	for _, timeout := range []time.Duration{0, -time.Second} {
		client := newHTTPClient(timeout, 60*time.Second)
		if client.Timeout != 60*time.Second {
			t.Errorf("timeout(%v) = %v, want fallback 60s", timeout, client.Timeout)
		}
	}
}
