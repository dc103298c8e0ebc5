// Command cli runs a terminal speech client against a voxstream gateway.
// It captures microphone audio with ffmpeg, streams it through the gateway
// and plays the model's spoken replies with ffplay.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/voxstream/voxstream/adapters/audiodev"
	"github.com/voxstream/voxstream/adapters/authclient"
	"github.com/voxstream/voxstream/adapters/retrieval"
	"github.com/voxstream/voxstream/internal/events"
	"github.com/voxstream/voxstream/internal/session"
	"github.com/voxstream/voxstream/usecase"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	_ = godotenv.Load()

	gatewayURL := getEnv("VOXSTREAM_URL", "ws://localhost:8080/ws")
	tokenURL := getEnv("TOKEN_URL", "http://localhost:8080/api/v1/token")
	clientID := getEnv("CLIENT_ID", "cli")

	playback, err := audiodev.NewFFplayPlayback(
		events.DefaultAudioOutputConfiguration().SampleRateHz, logger)
	if err != nil {
		logger.Fatal("Playback unavailable", zap.Error(err))
	}
	defer playback.Close()

	// Tools are resolved locally so the round trip works against any gateway.
	tools := usecase.NewToolRouter(retrieval.NewStaticRetriever(nil), logger)

	client := session.NewClient(session.Config{
		URL:         gatewayURL,
		Tokens:      authclient.NewHTTPTokenProvider(tokenURL, clientID),
		ToolHandler: tools,
		Capture:     audiodev.NewFFmpegCapture(logger),
		Playback:    playback,
		Callbacks: session.Callbacks{
			OnTranscription: func(text string) {
				fmt.Printf("\r... %s", text)
			},
			OnUserMessage: func(text string) {
				fmt.Printf("\ryou: %s\n", text)
			},
			OnResponse: func(text string) {
				fmt.Printf("assistant: %s\n", text)
			},
			OnError: func(err error) {
				fmt.Fprintf(os.Stderr, "session error: %v\n", err)
			},
			OnStateChange: func(active bool) {
				if active {
					fmt.Println("session started, speak into the microphone (Ctrl-C to stop)")
				} else {
					fmt.Println("session ended")
				}
			},
		},
		Logger: logger,
	})

	// The capture device runs on this context for the whole session.
	if err := client.StartSession(context.Background()); err != nil {
		logger.Fatal("Failed to start session", zap.Error(err))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	if err := client.EndSession(); err != nil {
		logger.Warn("Ending session", zap.Error(err))
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
