// Package speech wraps the pluggable STT and TTS collaborators.
package speech

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"
)

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, format string) (text string, confidence float64, err error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text, emotionTag string) ([]byte, error)
}

type OpenAISpeech struct {
	client *openai.Client
}

func NewOpenAISpeech(apiKey, baseURL string) *OpenAISpeech {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAISpeech{client: openai.NewClientWithConfig(config)}
}

func (s *OpenAISpeech) Transcribe(ctx context.Context, audio []byte, format string) (string, float64, error) {
	if len(audio) == 0 {
		return "", 0, nil
	}

	req := openai.AudioRequest{
		Model:    openai.Whisper1,
		Reader:   bytes.NewReader(audio),
		FilePath: fmt.Sprintf("utterance.%s", format),
	}
	resp, err := s.client.CreateTranscription(ctx, req)
	if err != nil {
		return "", 0, fmt.Errorf("transcription failed: %w", err)
	}

	// Whisper does not report a confidence; treat any non-empty transcript as solid.
	confidence := 0.0
	if resp.Text != "" {
		confidence = 0.9
	}
	return resp.Text, confidence, nil
}

func (s *OpenAISpeech) Synthesize(ctx context.Context, text, emotionTag string) ([]byte, error) {
	req := openai.CreateSpeechRequest{
		Model: openai.TTSModel1,
		Input: text,
		Voice: voiceFor(emotionTag),
	}
	resp, err := s.client.CreateSpeech(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("synthesis failed: %w", err)
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read synthesized audio: %w", err)
	}
	return audio, nil
}

func voiceFor(emotionTag string) openai.SpeechVoice {
	switch emotionTag {
	case "joy", "love", "gratitude":
		return openai.VoiceNova
	case "sadness", "fear":
		return openai.VoiceShimmer
	default:
		return openai.VoiceAlloy
	}
}
