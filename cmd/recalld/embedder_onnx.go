//go:build onnx

package main

import (
	"github.com/becomeliminal/recall-go-sdk/config"
	"github.com/becomeliminal/recall-go-sdk/memory"
	"github.com/becomeliminal/recall-go-sdk/memory/embedder/onnx"
)

func newONNXEmbedder(cfg config.EmbedderConfig) (memory.Embedder, error) {
	return onnx.New(onnx.Config{
		ModelPath:     cfg.ModelPath,
		TokenizerPath: cfg.TokenizerPath,
		LibraryPath:   cfg.LibraryPath,
		Dimensions:    cfg.Dimensions,
	})
}
