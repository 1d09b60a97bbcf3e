package domain

import "sync"

// Preset is a named bundle of encoding parameters. Resolution and FrameRate
// are zero when the preset keeps the source values.
type Preset struct {
	Name         string
	VideoCodec   string
	Speed        string
	CRF          int
	Resolution   string
	FrameRate    int
	AudioCodec   string
	AudioBitrate string
}

// PresetRegistry holds the closed set of encoding presets. Definitions can be
// reloaded at runtime; the pipeline resolves a preset at Encode-stage entry,
// never earlier, so in-flight jobs of other presets are unaffected by a
// reload.
type PresetRegistry struct {
	mu      sync.RWMutex
	presets map[string]Preset
}

func NewPresetRegistry() *PresetRegistry {
	return &PresetRegistry{presets: defaultPresets()}
}

func defaultPresets() map[string]Preset {
	return map[string]Preset{
		"standard": {Name: "standard", VideoCodec: "libx264", Speed: "medium", CRF: 23, AudioCodec: "aac", AudioBitrate: "128k"},
		"high":     {Name: "high", VideoCodec: "libx264", Speed: "slow", CRF: 18, AudioCodec: "aac", AudioBitrate: "256k"},
		"mobile":   {Name: "mobile", VideoCodec: "libx264", Speed: "fast", CRF: 28, Resolution: "1280x720", AudioCodec: "aac", AudioBitrate: "96k"},
		"web":      {Name: "web", VideoCodec: "libx264", Speed: "medium", CRF: 25, Resolution: "1920x1080", AudioCodec: "aac", AudioBitrate: "128k"},
	}
}

func (r *PresetRegistry) Resolve(name string) (Preset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.presets[name]
	if !ok {
		return Preset{}, NewError(KindEncodeFailed, "unsupported encoding preset: %q", name)
	}
	return p, nil
}

func (r *PresetRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.presets))
	for name := range r.presets {
		names = append(names, name)
	}
	return names
}

func (r *PresetRegistry) Known(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.presets[name]
	return ok
}

// Reload replaces the registered presets wholesale. An empty map is ignored.
func (r *PresetRegistry) Reload(presets map[string]Preset) {
	if len(presets) == 0 {
		return
	}
	copied := make(map[string]Preset, len(presets))
	for name, p := range presets {
		p.Name = name
		copied[name] = p
	}
	r.mu.Lock()
	r.presets = copied
	r.mu.Unlock()
}
