package models_test

import (
	"strings"
	"testing"

	"github.com/MegaGrindStone/friday-web-ui/internal/models"
)

func TestParseImageAttachment(t *testing.T) {
	tests := []struct {
		name          string
		raw           string
		wantData      string
		wantMediaType string
	}{
		{
			name:          "PNG data URL",
			raw:           "data:image/png;base64,AAAA",
			wantData:      "AAAA",
			wantMediaType: "image/png",
		},
		{
			name:          "WebP data URL",
			raw:           "data:image/webp;base64,UklGR",
			wantData:      "UklGR",
			wantMediaType: "image/webp",
		},
		{
			name:          "Missing media type",
			raw:           "data:;base64,Zm9v",
			wantData:      "Zm9v",
			wantMediaType: "image/jpeg",
		},
		{
			name:          "No matching prefix",
			raw:           "garbage",
			wantData:      "garbage",
			wantMediaType: "image/jpeg",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := models.ParseImageAttachment(tt.raw)
			if got.Data != tt.wantData {
				t.Errorf("Data = %q, want %q", got.Data, tt.wantData)
			}
			if got.MediaType != tt.wantMediaType {
				t.Errorf("MediaType = %q, want %q", got.MediaType, tt.wantMediaType)
			}
		})
	}
}

func TestImageAttachmentDataURL(t *testing.T) {
	attachment := models.ParseImageAttachment("data:image/png;base64,AAAA")
	if got := attachment.DataURL(); got != "data:image/png;base64,AAAA" {
		t.Errorf("DataURL() = %q", got)
	}
}

func TestRenderHTML(t *testing.T) {
	got, err := models.RenderHTML("**bold** text")
	if err != nil {
		t.Fatalf("RenderHTML() error = %v", err)
	}
	if !strings.Contains(string(got), "<strong>bold</strong>") {
		t.Errorf("RenderHTML() = %q, want bold markup", got)
	}

	got, err = models.RenderHTML("```go\nfmt.Println(\"hi\")\n```")
	if err != nil {
		t.Fatalf("RenderHTML() error = %v", err)
	}
	if !strings.Contains(string(got), "<pre") {
		t.Errorf("RenderHTML() = %q, want a code block", got)
	}
}
