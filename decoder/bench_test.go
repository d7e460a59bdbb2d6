package decoder

import (
	"context"
	"math/rand"
	"strconv"
	"testing"
)

func BenchmarkDecode(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	v := digitVocab(b, 29, 28)
	probs := randomProbs(rng, 200, 29)
	for _, width := range []int{1, 16, 100} {
		d := newDecoder(b, v, widthConfig(width))
		b.Run("width="+strconv.Itoa(width), func(b *testing.B) {
			for i := 0; i < b.N; i++ {
				if _, err := d.Decode(context.Background(), probs); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

func BenchmarkDecodeStream(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	v := digitVocab(b, 29, 28)
	probs := randomProbs(rng, 20, 29)
	d := newDecoder(b, v, widthConfig(32))
	st := d.NewState()
	defer st.Destroy()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := d.DecodeStream(context.Background(), st, probs, false); err != nil {
			b.Fatal(err)
		}
	}
}
