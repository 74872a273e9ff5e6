//go:build !onnx

package main

import (
	"fmt"

	"github.com/becomeliminal/recall-go-sdk/config"
	"github.com/becomeliminal/recall-go-sdk/memory"
)

func newONNXEmbedder(config.EmbedderConfig) (memory.Embedder, error) {
	return nil, fmt.Errorf("this binary was built without onnx support (rebuild with -tags onnx)")
}
