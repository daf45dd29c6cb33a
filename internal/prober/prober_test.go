package prober_test

import (
	"encoding/json"
	"testing"

	"curator/internal/prober"
)

const sampleProbeJSON = `{
  "streams": [
    {"index": 0, "codec_name": "h264", "codec_type": "video", "width": 1920, "height": 1080},
    {"index": 1, "codec_name": "aac", "codec_type": "audio", "channels": 2}
  ],
  "format": {
    "filename": "media.mp4",
    "nb_streams": 2,
    "duration": "1800.250000",
    "size": "734003200",
    "bit_rate": "3262000",
    "format_name": "mov,mp4,m4a,3gp,3g2,mj2"
  }
}`

func TestTechnicalMapping(t *testing.T) {
	var result prober.Result
	if err := json.Unmarshal([]byte(sampleProbeJSON), &result); err != nil {
		t.Fatalf("decode sample: %v", err)
	}

	info := result.Technical()
	if info.Container != "mov" {
		t.Errorf("expected first format alias, got %q", info.Container)
	}
	if info.VideoCodec != "h264" || info.Width != 1920 || info.Height != 1080 {
		t.Errorf("unexpected video fields: %#v", info)
	}
	if info.AudioCodec != "aac" {
		t.Errorf("unexpected audio codec: %q", info.AudioCodec)
	}
	if info.Duration != 1800.25 {
		t.Errorf("unexpected duration: %v", info.Duration)
	}
	if info.Size != 734003200 || info.Bitrate != 3262000 {
		t.Errorf("unexpected size/bitrate: %#v", info)
	}
	if !result.HasVideo() || !result.HasAudio() {
		t.Error("expected video and audio streams to be detected")
	}
}

func TestTechnicalToleratesMissingFields(t *testing.T) {
	var result prober.Result
	if err := json.Unmarshal([]byte(`{"streams":[],"format":{}}`), &result); err != nil {
		t.Fatalf("decode: %v", err)
	}
	info := result.Technical()
	if info.Duration != 0 || info.Size != 0 || info.Container != "" {
		t.Errorf("expected zero values, got %#v", info)
	}
	if result.HasVideo() {
		t.Error("expected no video stream")
	}
}
