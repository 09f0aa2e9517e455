package config

import (
	"github.com/knadh/koanf/v2"
)

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"server.host": "0.0.0.0",
		"server.port": 8080,

		"database.max_connections": 25,

		"asr.engine":  "whisper-api",
		"asr.api_url": "http://localhost:9000/v1/audio/transcriptions",
		"asr.binary":  "whisper",
		"asr.model":   "base",
		"asr.timeout": "30m",

		"worker.count":          4,
		"worker.lease_duration": "2m",
		"worker.max_attempts":   3,
		"worker.poll_interval":  "1s",
		"worker.job_timeout":    "1h",
		"worker.reap_interval":  "15s",

		"postprocess.dedup_window":      1,
		"postprocess.min_repeat_length": 8,
		"postprocess.min_words":         3,

		"logging.level":  "info",
		"logging.format": "pretty",
	}

	for key, val := range defaults {
		k.Set(key, val)
	}
	return nil
}
