package security

import (
	"strings"
	"testing"
)

// TestSanitizeName_PlainText はプレーンテキストの表示名がそのまま通過することを検証する。
func TestSanitizeName_PlainText(t *testing.T) {
	sanitizer := NewNameSanitizer()

	names := []string{
		"Satoshi Nakamoto",
		"trader_2024",
		"山田 太郎",
	}

	for _, name := range names {
		got := sanitizer.Sanitize(name)
		if got != name {
			t.Errorf("Sanitize(%q) = %q, expected unchanged", name, got)
		}
	}
}

// TestSanitizeName_StripsHTML はHTMLタグがすべて除去されることを検証する。
// 取引所プロフィールの表示名は外部入力であり、いかなるタグも許可しない。
func TestSanitizeName_StripsHTML(t *testing.T) {
	sanitizer := NewNameSanitizer()

	tests := []struct {
		name       string
		input      string
		want       string
		wantAbsent []string
	}{
		{
			name:       "scriptタグが除去される",
			input:      `<script>alert('xss')</script>Alice`,
			wantAbsent: []string{"<script", "alert"},
		},
		{
			name:  "bタグが除去されテキストは残る",
			input: "<b>Bob</b>",
			want:  "Bob",
		},
		{
			name:  "aタグが除去されテキストは残る",
			input: `<a href="https://evil.com">Carol</a>`,
			want:  "Carol",
		},
		{
			name:       "imgタグが丸ごと除去される",
			input:      `Dave<img src="x" onerror="alert(1)">`,
			want:       "Dave",
			wantAbsent: []string{"<img", "onerror"},
		},
		{
			name:  "ネストしたタグも除去される",
			input: "<div><span>Eve</span></div>",
			want:  "Eve",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			if tt.want != "" && got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
			for _, absent := range tt.wantAbsent {
				if strings.Contains(got, absent) {
					t.Errorf("Sanitize(%q) = %q, should NOT contain %q", tt.input, got, absent)
				}
			}
		})
	}
}

// TestSanitizeName_TrimsWhitespace は前後の空白が除去されることを検証する。
func TestSanitizeName_TrimsWhitespace(t *testing.T) {
	sanitizer := NewNameSanitizer()

	got := sanitizer.Sanitize("  Frank  ")
	if got != "Frank" {
		t.Errorf("Sanitize(\"  Frank  \") = %q, want %q", got, "Frank")
	}
}

// TestSanitizeName_EmptyInput は空文字列を安全に処理できることを検証する。
func TestSanitizeName_EmptyInput(t *testing.T) {
	sanitizer := NewNameSanitizer()

	got := sanitizer.Sanitize("")
	if got != "" {
		t.Errorf("Sanitize(\"\") = %q, expected empty string", got)
	}
}

// TestSanitizeName_Idempotent は同一入力に対して常に同一出力（冪等性）を検証する。
func TestSanitizeName_Idempotent(t *testing.T) {
	sanitizer := NewNameSanitizer()

	input := `<b> Grace </b><script>x()</script>`
	result1 := sanitizer.Sanitize(input)
	result2 := sanitizer.Sanitize(result1)

	if result1 != result2 {
		t.Errorf("冪等性違反: 1回目=%q, 二重=%q", result1, result2)
	}
}

// TestNameSanitizerInterface はNameSanitizerServiceインターフェースの適合を検証する。
func TestNameSanitizerInterface(t *testing.T) {
	var _ NameSanitizerService = NewNameSanitizer()
}
