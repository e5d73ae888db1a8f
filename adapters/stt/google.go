package stt

import (
	"context"
	"fmt"
	"io"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/kaiwa-labs/kaiwa-server/domain/repositories"
)

// maxRestarts caps automatic recovery from transport drops within one
// continuous recognition session.
const maxRestarts = 5

// GoogleSpeechRecognizer implements SpeechRecognizer for Google Cloud
type GoogleSpeechRecognizer struct {
	logger *zap.Logger
}

// NewGoogleSpeechRecognizer creates a Google Cloud streaming recognizer.
func NewGoogleSpeechRecognizer(logger *zap.Logger) *GoogleSpeechRecognizer {
	return &GoogleSpeechRecognizer{logger: logger}
}

// StartContinuous opens a continuous recognition stream with interim
// results. Transport drops are recovered by reopening the gRPC stream; only
// repeated or non-recoverable failures reach OnError.
func (g *GoogleSpeechRecognizer) StartContinuous(ctx context.Context, config repositories.AudioConfig, events repositories.RecognitionEvents) (repositories.RecognitionStream, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	encoding, err := audioEncoding(config.Encoding)
	if err != nil {
		client.Close()
		return nil, err
	}

	s := &googleStream{
		client: client,
		ctx:    ctx,
		logger: g.logger,
		events: events,
		config: &speechpb.StreamingRecognitionConfig{
			Config: &speechpb.RecognitionConfig{
				Encoding:        encoding,
				SampleRateHertz: int32(config.SampleRate),
				LanguageCode:    config.Language,
			},
			InterimResults: true,
		},
	}

	if err := s.open(); err != nil {
		client.Close()
		return nil, err
	}
	return s, nil
}

type googleStream struct {
	client *speech.Client
	ctx    context.Context
	logger *zap.Logger
	events repositories.RecognitionEvents
	config *speechpb.StreamingRecognitionConfig

	mu       sync.Mutex
	stream   speechpb.Speech_StreamingRecognizeClient
	stopped  bool
	restarts int
}

// open establishes a fresh gRPC stream, sends the recognition config, and
// starts the receive loop. Caller must not hold s.mu.
func (s *googleStream) open() error {
	stream, err := s.client.StreamingRecognize(s.ctx)
	if err != nil {
		return fmt.Errorf("failed to open streaming recognize: %w", err)
	}
	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: s.config,
		},
	}); err != nil {
		stream.CloseSend()
		return fmt.Errorf("failed to send streaming config: %w", err)
	}

	s.mu.Lock()
	s.stream = stream
	s.mu.Unlock()

	go s.receive(stream)
	return nil
}

// Write forwards raw audio into the recognizer. During a restart the
// current chunk is dropped; the recognizer buffers nothing client-side.
func (s *googleStream) Write(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	s.mu.Lock()
	stream := s.stream
	stopped := s.stopped
	s.mu.Unlock()

	if stopped {
		return fmt.Errorf("recognition stream is stopped")
	}
	if stream == nil {
		// Between restarts; the next chunk lands on the new stream.
		return nil
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: data,
		},
	}); err != nil {
		return fmt.Errorf("failed to send audio data: %w", err)
	}
	return nil
}

// Stop ends recognition and releases the client. Safe to call repeatedly.
func (s *googleStream) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	stream := s.stream
	s.stream = nil
	s.mu.Unlock()

	var err error
	if stream != nil {
		err = stream.CloseSend()
	}
	if cerr := s.client.Close(); err == nil {
		err = cerr
	}
	return err
}

// receive pumps recognition responses until the stream ends, dispatching
// partial and final events and restarting on recoverable drops.
func (s *googleStream) receive(stream speechpb.Speech_StreamingRecognizeClient) {
	for {
		resp, err := stream.Recv()
		if err != nil {
			s.handleStreamEnd(err)
			return
		}

		for _, result := range resp.Results {
			if len(result.Alternatives) == 0 {
				continue
			}
			best := result.Alternatives[0]
			if result.IsFinal {
				if s.events.OnFinal != nil {
					s.events.OnFinal(best.Transcript, float64(best.Confidence))
				}
			} else if s.events.OnPartial != nil {
				s.events.OnPartial(best.Transcript)
			}
		}
	}
}

func (s *googleStream) handleStreamEnd(err error) {
	s.mu.Lock()
	if s.stopped || s.ctx.Err() != nil {
		s.mu.Unlock()
		return
	}
	s.stream = nil
	s.restarts++
	restarts := s.restarts
	s.mu.Unlock()

	if err != io.EOF && restarts <= maxRestarts {
		s.logger.Warn("Recognition stream dropped, restarting",
			zap.Int("restart", restarts),
			zap.Error(err))
		rerr := s.open()
		if rerr == nil {
			return
		}
		err = rerr
	}

	if err == io.EOF {
		// Service closed the stream cleanly (e.g. stream duration limit);
		// reopen so recognition stays continuous.
		if rerr := s.open(); rerr == nil {
			return
		}
	}

	if s.events.OnError != nil {
		s.events.OnError(fmt.Errorf("recognition stream failed: %w", err))
	}
}

// audioEncoding converts string encoding to Google Speech API enum
func audioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "", "PCM16", "LINEAR16", "WAV":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}
