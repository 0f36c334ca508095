package tensor

import (
	"math/rand"
	"testing"
)

func randomBenchTensor(shape []int) *Tensor {
	rng := rand.New(rand.NewSource(1))
	n := 1
	for _, d := range shape {
		n *= d
	}
	data := make([]float32, n)
	for i := range data {
		data[i] = rng.Float32()*2 - 1
	}
	return New(shape, data)
}

var benchShapes = []struct {
	name  string
	shape []int
}{
	{"small", []int{1, 32, 384}},
	{"batch", []int{32, 128, 384}},
	{"long-seq", []int{8, 512, 384}},
}

func BenchmarkSoftmax(b *testing.B) {
	for _, s := range benchShapes {
		b.Run(s.name, func(b *testing.B) {
			t := randomBenchTensor(s.shape)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := t.Softmax(len(s.shape)); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkLayerNorm(b *testing.B) {
	for _, s := range benchShapes {
		b.Run(s.name, func(b *testing.B) {
			t := randomBenchTensor(s.shape)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := t.LayerNorm(len(s.shape), 1e-5); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkLPNormalize(b *testing.B) {
	for _, s := range benchShapes {
		b.Run(s.name, func(b *testing.B) {
			t := randomBenchTensor(s.shape)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := t.LPNormalize(2, len(s.shape)); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
