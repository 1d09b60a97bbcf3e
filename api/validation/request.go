package validation

import (
	"net/url"
	"strings"

	"videoEditor/api/dto"
)

const maxCustomerNameLength = 255

var transitionStyles = map[string]bool{
	"cut":   true,
	"fade":  true,
	"slide": true,
}

var encodingPresets = map[string]bool{
	"standard": true,
	"high":     true,
	"mobile":   true,
	"web":      true,
}

// ValidateProcessRequest checks a submission against the closed enumerations
// and sanitization rules, and fills in defaults. Unknown transition styles or
// presets are caught here, before any job exists, never mid-pipeline.
func ValidateProcessRequest(req *dto.ProcessRequest) error {
	u, err := url.Parse(req.VideoURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return invalid("video_url", "must be an absolute http(s) URL")
	}

	req.CustomerName = strings.TrimSpace(req.CustomerName)
	if req.CustomerName == "" {
		return invalid("customer_name", "is required")
	}
	if len(req.CustomerName) > maxCustomerNameLength {
		return invalid("customer_name", "exceeds %d characters", maxCustomerNameLength)
	}

	if req.TransitionStyle == "" {
		req.TransitionStyle = "fade"
	}
	if !transitionStyles[req.TransitionStyle] {
		return invalid("transition_style", "unknown style %q", req.TransitionStyle)
	}

	if req.EncodingPreset == "" {
		req.EncodingPreset = "standard"
	}
	if !encodingPresets[req.EncodingPreset] {
		return invalid("encoding_preset", "unknown preset %q", req.EncodingPreset)
	}

	for field, name := range map[string]string{
		"intro_clip":      req.IntroClip,
		"outro_clip":      req.OutroClip,
		"watermark_asset": req.WatermarkAsset,
	} {
		if !safeAssetName(name) {
			return invalid(field, "invalid asset name %q", name)
		}
	}
	return nil
}

// safeAssetName rejects anything that could escape the assets namespace.
func safeAssetName(name string) bool {
	if name == "" {
		return true
	}
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		return false
	}
	return true
}
