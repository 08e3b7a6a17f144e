package asr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testVocab() Vocab {
	return Vocab{Pieces: []string{"<blk>", "▁hello", "▁world", "a"}, BlankID: 0, SpaceID: -1}
}

// TestEmptyEncoderOutputDecodesToEmptyString checks spec.md §4.6/§8: "empty
// feature matrix -> empty string".
func TestEmptyEncoderOutputDecodesToEmptyString(t *testing.T) {
	vocab := testVocab()
	text, err := Decode(nil, vocab, 8,
		func(int64, []float32) ([]float32, []float32, error) { t.Fatal("should not be called"); return nil, nil, nil },
		func([]float32, []float32) ([]float32, error) { t.Fatal("should not be called"); return nil, nil })
	require.NoError(t, err)
	assert.Equal(t, "", text)
}

// TestAllBlankDecodesToEmptyString checks spec.md §8: "a token sequence
// containing only blanks decodes to the empty string".
func TestAllBlankDecodesToEmptyString(t *testing.T) {
	vocab := testVocab()
	decoder := func(int64, []float32) ([]float32, []float32, error) {
		return []float32{0}, make([]float32, 8), nil
	}
	joiner := func([]float32, []float32) ([]float32, error) {
		return []float32{10, 0, 0, 0}, nil // argmax = blank (id 0)
	}
	encOut := [][]float32{{1, 2}, {3, 4}, {5, 6}}
	text, err := Decode(encOut, vocab, 8, decoder, joiner)
	require.NoError(t, err)
	assert.Equal(t, "", text)
}

// TestConsecutiveIdenticalIdsCollapse checks spec.md §8: "consecutive
// identical non-blank ids decode to a single instance".
func TestConsecutiveIdenticalIdsCollapse(t *testing.T) {
	vocab := testVocab()
	// Always emit token id 3 ("a") until MaxEmissionsPerFrame is hit, for a
	// single encoder frame: decoder drift within one frame.
	calls := 0
	decoder := func(int64, []float32) ([]float32, []float32, error) {
		calls++
		return []float32{0}, make([]float32, 8), nil
	}
	joiner := func([]float32, []float32) ([]float32, error) {
		return []float32{0, 0, 0, 10}, nil // argmax = id 3 ("a"), never blank
	}
	encOut := [][]float32{{1, 2}}
	text, err := Decode(encOut, vocab, 8, decoder, joiner)
	require.NoError(t, err)
	assert.Equal(t, "a", text) // 5 identical emissions collapse to one
	assert.Equal(t, MaxEmissionsPerFrame, calls)
}

// TestDecodingIsIdempotent checks spec.md §8: "decoding is idempotent under
// repeated invocation". Frame values key into a per-frame emission plan:
// each frame emits its planned tokens in order, then blank.
func TestDecodingIsIdempotent(t *testing.T) {
	vocab := testVocab()
	plan := map[float32][]int{
		1: {},
		2: {1}, // "hello"
		3: {},
		4: {2}, // "world"
		5: {},
	}
	runDecode := func() string {
		progress := map[float32]int{}
		decoder := func(int64, []float32) ([]float32, []float32, error) {
			return []float32{0}, make([]float32, 8), nil
		}
		joiner := func(frame, _ []float32) ([]float32, error) {
			key := frame[0]
			ids := plan[key]
			i := progress[key]
			logits := make([]float32, len(vocab.Pieces))
			if i < len(ids) {
				logits[ids[i]] = 10
			} else {
				logits[vocab.BlankID] = 10
			}
			progress[key] = i + 1
			return logits, nil
		}
		encOut := [][]float32{{1}, {2}, {3}, {4}, {5}}
		text, err := Decode(encOut, vocab, 8, decoder, joiner)
		require.NoError(t, err)
		return text
	}

	text1 := runDecode()
	text2 := runDecode()
	assert.Equal(t, text1, text2)
	assert.Equal(t, "hello world", text1)
}
