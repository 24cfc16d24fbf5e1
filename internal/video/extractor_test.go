package video

import (
	"context"
	"testing"

	"tgsearch-go/internal/logging"
	"tgsearch-go/internal/model"
)

func TestHasVideoStream(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		out  string
		want bool
	}{
		{name: "video only", out: "codec_type=video\n", want: true},
		{name: "audio and video", out: "codec_type=audio\ncodec_type=video\n", want: true},
		{name: "audio only", out: "codec_type=audio\n", want: false},
		{name: "empty", out: "", want: false},
		{name: "whitespace around lines", out: "  codec_type=video  \n", want: true},
		{name: "partial match", out: "codec_type=video_wrapped\n", want: false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := hasVideoStream(tt.out); got != tt.want {
				t.Errorf("hasVideoStream(%q) = %v, want %v", tt.out, got, tt.want)
			}
		})
	}
}

func TestParseDuration(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		out     string
		want    float64
		wantErr bool
	}{
		{name: "plain seconds", out: "12.5\n", want: 12.5},
		{name: "integer", out: "30", want: 30},
		{name: "zero", out: "0.0\n", wantErr: true},
		{name: "negative", out: "-1\n", wantErr: true},
		{name: "not a number", out: "N/A\n", wantErr: true},
		{name: "empty", out: "", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseDuration(tt.out)
			if tt.wantErr {
				if err == nil {
					t.Errorf("parseDuration(%q) error = nil, want error", tt.out)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseDuration(%q) error = %v", tt.out, err)
			}
			if got != tt.want {
				t.Errorf("parseDuration(%q) = %v, want %v", tt.out, got, tt.want)
			}
		})
	}
}

func TestExtractFrames_SkipsNonVideoMedia(t *testing.T) {
	t.Parallel()

	e := NewExtractor("", "", logging.NewNopLogger())

	t.Run("photo", func(t *testing.T) {
		t.Parallel()
		frames, err := e.ExtractFrames(context.Background(), &model.Media{
			ID:   1,
			Type: model.MediaPhoto,
		})
		if err != nil {
			t.Fatalf("ExtractFrames() error = %v", err)
		}
		if frames != nil {
			t.Errorf("frames = %v, want nil", frames)
		}
	})

	t.Run("missing payload", func(t *testing.T) {
		t.Parallel()
		frames, err := e.ExtractFrames(context.Background(), &model.Media{
			ID:       2,
			Type:     model.MediaDocument,
			FilePath: "/nonexistent/video.mp4",
		})
		if err != nil {
			t.Fatalf("ExtractFrames() error = %v", err)
		}
		if frames != nil {
			t.Errorf("frames = %v, want nil", frames)
		}
	})
}

func TestNewExtractor_Defaults(t *testing.T) {
	t.Parallel()

	e := NewExtractor("", "", logging.NewNopLogger())
	if e.ffmpegPath != "ffmpeg" {
		t.Errorf("ffmpegPath = %q, want %q", e.ffmpegPath, "ffmpeg")
	}
	if e.ffprobePath != "ffprobe" {
		t.Errorf("ffprobePath = %q, want %q", e.ffprobePath, "ffprobe")
	}

	custom := NewExtractor("/opt/ffmpeg", "/opt/ffprobe", logging.NewNopLogger())
	if custom.ffmpegPath != "/opt/ffmpeg" || custom.ffprobePath != "/opt/ffprobe" {
		t.Errorf("paths = %q, %q, want custom paths kept", custom.ffmpegPath, custom.ffprobePath)
	}
}
