package auth

import (
	"strings"
	"testing"
)

const testStateKeyHex = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func newTestCodec(t *testing.T) *StateTokenCodec {
	t.Helper()
	codec, err := NewStateTokenCodec(testStateKeyHex)
	if err != nil {
		t.Fatal(err)
	}
	return codec
}

func TestNewStateTokenCodec_RejectsBadKey(t *testing.T) {
	tests := []struct {
		name string
		key  string
	}{
		{"not hex", "zz"},
		{"too short", "0001"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewStateTokenCodec(tt.key); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestStateToken_RoundTrip_Bound(t *testing.T) {
	codec := newTestCodec(t)

	token, err := codec.Encode("user-abc")
	if err != nil {
		t.Fatal(err)
	}

	userID, bound := codec.Decode(token)
	if !bound {
		t.Fatal("expected bound state")
	}
	if userID != "user-abc" {
		t.Errorf("userID = %q, want user-abc", userID)
	}
}

func TestStateToken_RoundTrip_Unbound(t *testing.T) {
	codec := newTestCodec(t)

	token, err := codec.Encode("")
	if err != nil {
		t.Fatal(err)
	}
	if _, bound := codec.Decode(token); bound {
		t.Error("empty bound id must decode as unbound")
	}
}

func TestStateToken_LegacyPlaceholder(t *testing.T) {
	codec := newTestCodec(t)

	// 旧実装が発行していた "undefined" プレースホルダーも紐付けなしとして受理する
	token, err := codec.Encode("undefined")
	if err != nil {
		t.Fatal(err)
	}
	if _, bound := codec.Decode(token); bound {
		t.Error("legacy undefined placeholder must decode as unbound")
	}
}

func TestStateToken_UniquePerEncode(t *testing.T) {
	codec := newTestCodec(t)

	first, _ := codec.Encode("user-abc")
	second, _ := codec.Encode("user-abc")
	if first == second {
		t.Error("tokens must differ per encode (nonce)")
	}
}

func TestStateToken_Decode_NeverErrors(t *testing.T) {
	codec := newTestCodec(t)

	valid, _ := codec.Encode("user-abc")

	// 改竄されたトークン
	tampered := valid[:len(valid)-4] + "AAAA"

	// 別鍵で作られたトークン
	otherCodec, err := NewStateTokenCodec(strings.Repeat("ff", 32))
	if err != nil {
		t.Fatal(err)
	}
	foreign, _ := otherCodec.Encode("user-abc")

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"not base64", "!!!not-base64!!!"},
		{"too short", "AAAA"},
		{"tampered", tampered},
		{"wrong key", foreign},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			userID, bound := codec.Decode(tt.token)
			if bound {
				t.Error("expected unbound")
			}
			if userID != "" {
				t.Errorf("userID = %q, want empty", userID)
			}
		})
	}
}
