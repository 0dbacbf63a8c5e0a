package auth

import (
	"testing"

	"github.com/Prakash617/mobilepoint-backend/internal/config"
)

func TestGenerateAndParseToken(t *testing.T) {
	cfg := &config.JWTConfig{Secret: "test-secret"}

	token, err := GenerateToken(cfg, 42, "alice", true)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := ParseToken(cfg, token)
	if err != nil {
		t.Fatalf("ParseToken: %v", err)
	}
	if claims.UserID != 42 || claims.Username != "alice" || !claims.IsAdmin {
		t.Fatalf("claims = %+v", claims)
	}
}

func TestParseTokenWrongSecret(t *testing.T) {
	token, err := GenerateToken(&config.JWTConfig{Secret: "right"}, 1, "bob", false)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := ParseToken(&config.JWTConfig{Secret: "wrong"}, token); err == nil {
		t.Fatal("token signed with another secret must not parse")
	}
}

func TestRingDistribution(t *testing.T) {
	ring := NewRing([]string{"node-a", "node-b", "node-c"}, 50)

	// 同一个 key 总是落到同一个节点
	first := ring.Node("some-token")
	for i := 0; i < 10; i++ {
		if got := ring.Node("some-token"); got != first {
			t.Fatalf("node changed: %s -> %s", first, got)
		}
	}

	// 空节点列表退化为单节点
	fallback := NewRing(nil, 0)
	if fallback.Node("anything") == "" {
		t.Fatal("fallback ring must still resolve a node")
	}
}
