package asr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// WhisperAPI talks to an OpenAI-compatible audio transcription endpoint
// (api.openai.com, or a self-hosted faster-whisper-server) using multipart
// upload and the verbose_json response format for segment timings.
type WhisperAPI struct {
	url    string
	apiKey string
	model  string
	client *http.Client
}

func NewWhisperAPI(cfg Config) *WhisperAPI {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &WhisperAPI{
		url:    cfg.APIURL,
		apiKey: cfg.APIKey,
		model:  cfg.Model,
		client: &http.Client{Timeout: timeout},
	}
}

type whisperAPIResp struct {
	Language string `json:"language"`
	Text     string `json:"text"`
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

func (w *WhisperAPI) Transcribe(ctx context.Context, audioSource string, opts Options) (Result, error) {
	path, cleanup, err := fetchSource(ctx, audioSource)
	defer cleanup()
	if err != nil {
		return Result{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return Result{}, permanent("open audio file", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	model := opts.Model
	if model == "" {
		model = w.model
	}
	fields := map[string]string{
		"model":           model,
		"response_format": "verbose_json",
		"vad_filter":      strconv.FormatBool(opts.VADFilter),
	}
	if opts.LanguageHint != "" {
		fields["language"] = opts.LanguageHint
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return Result{}, transient("build request", err)
		}
	}

	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return Result{}, transient("build request", err)
	}
	if _, err := io.Copy(fw, f); err != nil {
		return Result{}, transient("read audio file", err)
	}
	if err := mw.Close(); err != nil {
		return Result{}, transient("build request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, &body)
	if err != nil {
		return Result{}, permanent("build request", err)
	}
	if w.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+w.apiKey)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := w.client.Do(req)
	if err != nil {
		return Result{}, transient("call transcription API", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := fmt.Sprintf("transcription API http %d: %s", resp.StatusCode, string(b))
		if retriableStatus(resp.StatusCode) {
			return Result{}, transient(msg, nil)
		}
		return Result{}, permanent(msg, nil)
	}

	var parsed whisperAPIResp
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return Result{}, transient("decode transcription response", err)
	}

	res := Result{Language: parsed.Language}
	for _, s := range parsed.Segments {
		res.Segments = append(res.Segments, Segment{
			Text:    s.Text,
			StartMs: int64(s.Start * 1000),
			EndMs:   int64(s.End * 1000),
		})
	}
	// Some servers omit segments for very short audio; fall back to the
	// whole text as a single segment.
	if len(res.Segments) == 0 && parsed.Text != "" {
		res.Segments = []Segment{{Text: parsed.Text}}
	}
	return res, nil
}

func retriableStatus(code int) bool {
	return code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests ||
		code >= 500
}
