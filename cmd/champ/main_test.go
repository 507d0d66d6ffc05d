package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/felixgeelhaar/champ/internal/domain"
)

func TestRenderProgressBar(t *testing.T) {
	tests := []struct {
		value  float64
		filled int
	}{
		{0, 0},
		{0.5, 5},
		{1, 10},
		{1.7, 10},
		{-0.2, 0},
	}
	for _, tt := range tests {
		bar := renderProgressBar(tt.value, 10)
		if got := strings.Count(bar, "█"); got != tt.filled {
			t.Errorf("renderProgressBar(%v) filled = %d, want %d (%s)", tt.value, got, tt.filled, bar)
		}
		if got := strings.Count(bar, "█") + strings.Count(bar, "░"); got != 10 {
			t.Errorf("renderProgressBar(%v) width = %d", tt.value, got)
		}
	}
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		path, flag string
		want       domain.Language
		wantErr    bool
	}{
		{"sum.ts", "", domain.LanguageTypeScript, false},
		{"dir.v2/sum.py", "", domain.LanguagePython, false},
		{"notes.txt", "python", domain.LanguagePython, false},
		{"notes.txt", "", "", true},
		{"sum.ts", "cobol", "", true},
	}
	for _, tt := range tests {
		got, err := detectLanguage(tt.path, tt.flag)
		if (err != nil) != tt.wantErr {
			t.Errorf("detectLanguage(%q, %q) error = %v", tt.path, tt.flag, err)
			continue
		}
		if got != tt.want {
			t.Errorf("detectLanguage(%q, %q) = %q, want %q", tt.path, tt.flag, got, tt.want)
		}
	}
}

func TestOnOff(t *testing.T) {
	if onOff("") != "off" || onOff("redis:6379") != "on" {
		t.Error("onOff() mismatch")
	}
}

func TestDecodeResponse_Error(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.WriteHeader(http.StatusConflict)
	rec.WriteString(`{"error":"module is locked","status":409,"details":"need 50 XP"}`)

	var v struct{}
	err := decodeResponse(rec.Result(), &v)
	if err == nil || err.Error() != "module is locked: need 50 XP" {
		t.Errorf("decodeResponse() error = %v", err)
	}
}

func TestDecodeResponse_OK(t *testing.T) {
	rec := httptest.NewRecorder()
	rec.WriteString(`{"passed":true}`)

	var v struct {
		Passed bool `json:"passed"`
	}
	if err := decodeResponse(rec.Result(), &v); err != nil || !v.Passed {
		t.Errorf("decodeResponse() = %+v, %v", v, err)
	}
}
