package mock

import (
	"context"
	"math"
	"testing"
)

func TestEmbedIsDeterministic(t *testing.T) {
	e := New()
	ctx := context.Background()

	a, err := e.Embed(ctx, "hello world")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	b, err := e.Embed(ctx, "hello world")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	if len(a) != e.Dimensions() {
		t.Fatalf("vector length = %d, want %d", len(a), e.Dimensions())
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("vectors differ at %d: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestEmbedDistinguishesTexts(t *testing.T) {
	e := New()
	ctx := context.Background()

	a, _ := e.Embed(ctx, "cats")
	b, _ := e.Embed(ctx, "dogs")

	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Error("different texts produced identical vectors")
	}
}

func TestEmbedIsNormalized(t *testing.T) {
	e := New()
	vec, err := e.Embed(context.Background(), "normalize me")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if math.Abs(math.Sqrt(sum)-1) > 1e-5 {
		t.Errorf("vector norm = %f, want 1", math.Sqrt(sum))
	}
}

func TestCustomDimensions(t *testing.T) {
	e := NewWithDimensions(16)
	vec, err := e.Embed(context.Background(), "small")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 16 {
		t.Errorf("vector length = %d, want 16", len(vec))
	}
}
