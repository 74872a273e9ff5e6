package main

import (
	"fmt"

	"github.com/becomeliminal/recall-go-sdk/config"
	"github.com/becomeliminal/recall-go-sdk/memory"
	"github.com/becomeliminal/recall-go-sdk/memory/embedder/mock"
)

func newEmbedder(cfg config.EmbedderConfig) (memory.Embedder, error) {
	switch cfg.Provider {
	case "", "mock":
		if cfg.Dimensions > 0 {
			return mock.NewWithDimensions(cfg.Dimensions), nil
		}
		return mock.New(), nil
	case "onnx":
		return newONNXEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unknown embedder provider %q (valid: mock, onnx)", cfg.Provider)
	}
}
