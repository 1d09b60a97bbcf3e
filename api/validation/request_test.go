package validation

import (
	"errors"
	"strings"
	"testing"

	"videoEditor/api/dto"
)

func validRequest() *dto.ProcessRequest {
	return &dto.ProcessRequest{
		VideoURL:     "https://cdn.example.com/videos/source.mp4",
		CustomerName: "Acme Corp",
	}
}

func TestValidateProcessRequest_FillsDefaults(t *testing.T) {
	req := validRequest()
	if err := ValidateProcessRequest(req); err != nil {
		t.Fatalf("Validation failed: %v", err)
	}
	if req.TransitionStyle != "fade" {
		t.Errorf("Expected default transition fade, got %q", req.TransitionStyle)
	}
	if req.EncodingPreset != "standard" {
		t.Errorf("Expected default preset standard, got %q", req.EncodingPreset)
	}
}

func TestValidateProcessRequest_VideoURL(t *testing.T) {
	cases := []struct {
		name string
		url  string
		ok   bool
	}{
		{"https", "https://example.com/v.mp4", true},
		{"http", "http://example.com/v.mp4", true},
		{"relative", "/videos/v.mp4", false},
		{"ftp", "ftp://example.com/v.mp4", false},
		{"empty", "", false},
		{"no host", "https://", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			req.VideoURL = tc.url
			err := ValidateProcessRequest(req)
			if tc.ok && err != nil {
				t.Errorf("Expected %q to pass: %v", tc.url, err)
			}
			if !tc.ok && err == nil {
				t.Errorf("Expected %q to be rejected", tc.url)
			}
		})
	}
}

func TestValidateProcessRequest_CustomerName(t *testing.T) {
	req := validRequest()
	req.CustomerName = "   "
	if err := ValidateProcessRequest(req); err == nil {
		t.Error("Expected blank customer name to be rejected")
	}

	req = validRequest()
	req.CustomerName = "  Acme  "
	if err := ValidateProcessRequest(req); err != nil {
		t.Fatalf("Validation failed: %v", err)
	}
	if req.CustomerName != "Acme" {
		t.Errorf("Expected trimmed name, got %q", req.CustomerName)
	}

	req = validRequest()
	req.CustomerName = strings.Repeat("a", 256)
	if err := ValidateProcessRequest(req); err == nil {
		t.Error("Expected over-length customer name to be rejected")
	}
}

func TestValidateProcessRequest_TransitionStyle(t *testing.T) {
	for _, style := range []string{"cut", "fade", "slide"} {
		req := validRequest()
		req.TransitionStyle = style
		if err := ValidateProcessRequest(req); err != nil {
			t.Errorf("Expected %q to pass: %v", style, err)
		}
	}

	req := validRequest()
	req.TransitionStyle = "bounce"
	err := ValidateProcessRequest(req)
	if err == nil {
		t.Fatal("Expected unknown transition style to be rejected")
	}
	var verr *Error
	if !errors.As(err, &verr) || verr.Field != "transition_style" {
		t.Errorf("Expected transition_style field error, got %v", err)
	}
}

func TestValidateProcessRequest_EncodingPreset(t *testing.T) {
	for _, preset := range []string{"standard", "high", "mobile", "web"} {
		req := validRequest()
		req.EncodingPreset = preset
		if err := ValidateProcessRequest(req); err != nil {
			t.Errorf("Expected %q to pass: %v", preset, err)
		}
	}

	req := validRequest()
	req.EncodingPreset = "ultra"
	if err := ValidateProcessRequest(req); err == nil {
		t.Error("Expected unknown preset to be rejected")
	}
}

func TestValidateProcessRequest_AssetNames(t *testing.T) {
	for _, name := range []string{"../escape.mp4", "a/b.mp4", `a\b.mp4`, "x..y.mp4"} {
		req := validRequest()
		req.IntroClip = name
		if err := ValidateProcessRequest(req); err == nil {
			t.Errorf("Expected asset name %q to be rejected", name)
		}
	}

	req := validRequest()
	req.IntroClip = "brand_intro.mp4"
	req.OutroClip = "brand_outro.mp4"
	req.WatermarkAsset = "logo.png"
	if err := ValidateProcessRequest(req); err != nil {
		t.Errorf("Expected plain asset names to pass: %v", err)
	}
}
