package main

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/iconidentify/xreply/internal/config"
)

const extractorMarkup = `<html><body><article>
	<div data-testid="tweetText">new drop pic.twitter.com/AbC123 check it</div>
	<img src="https://pbs.twimg.com/media/a.jpg" width="60" height="60">
	<button data-xreply-trigger></button></article></body></html>`

func TestNewExtractor_UsesExtractConfig(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name       string
		cfg        config.ExtractConfig
		wantText   string
		wantImages int
	}{
		{
			name:       "defaults",
			cfg:        config.ExtractConfig{MinImageSize: 40},
			wantText:   "new drop pic.twitter.com/AbC123 check it",
			wantImages: 1,
		},
		{
			name:       "larger threshold drops image",
			cfg:        config.ExtractConfig{MinImageSize: 100},
			wantText:   "new drop pic.twitter.com/AbC123 check it",
			wantImages: 0,
		},
		{
			name:       "short links redacted",
			cfg:        config.ExtractConfig{MinImageSize: 40, RedactShortLinks: true},
			wantText:   "new drop check it",
			wantImages: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := newExtractor(tt.cfg, logger).ExtractHTML(strings.NewReader(extractorMarkup))
			if err != nil {
				t.Fatalf("ExtractHTML() error = %v", err)
			}
			if got.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", got.Text, tt.wantText)
			}
			if len(got.Images) != tt.wantImages {
				t.Errorf("Images = %v, want %d", got.Images, tt.wantImages)
			}
		})
	}
}
