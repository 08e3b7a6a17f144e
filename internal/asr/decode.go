// Package asr implements the RNN-T/TDT transducer ASR engine (C6): greedy
// decode over encoder/decoder/joiner ONNX sessions and adaptive model
// selection. The decode loop itself is grounded on the RNNT decode loop of
// the codebase this module was adapted from (its ai/gigaam_rnnt.go's
// decodeRNNT), generalized
// to spec.md §4.6's K=5 max-emissions-per-frame bound (replacing that
// engine's model-tuned maxSymbolsPerStep=10) and its exact edge-case
// contract for empty input and decoder drift.
package asr

import "strings"

// MaxEmissionsPerFrame is K in spec.md §4.6: the maximum non-blank tokens
// emitted per encoder time step before forcing advance to the next step.
const MaxEmissionsPerFrame = 5

// DecoderStep runs the decoder sub-network on (lastToken, state) and
// returns the decoder embedding plus updated state.
type DecoderStep func(lastToken int64, state []float32) (embedding []float32, newState []float32, err error)

// JoinerStep runs the joiner sub-network on (encoder frame, decoder
// embedding) and returns logits over the vocabulary.
type JoinerStep func(encFrame, decEmbedding []float32) (logits []float32, err error)

// Decode runs greedy RNN-T/TDT decoding over encoder output encOut ([T][H])
// and renders the resulting token sequence to text. An empty encOut decodes
// to the empty string (spec.md §4.6 edge case).
func Decode(encOut [][]float32, vocab Vocab, stateSize int, decoder DecoderStep, joiner JoinerStep) (string, error) {
	if len(encOut) == 0 {
		return "", nil
	}

	state := make([]float32, stateSize)
	lastToken := int64(vocab.BlankID)

	var tokenIDs []int
	for t := 0; t < len(encOut); t++ {
		frame := encOut[t]

		for k := 0; k < MaxEmissionsPerFrame; k++ {
			embedding, newState, err := decoder(lastToken, state)
			if err != nil {
				return "", err
			}
			logits, err := joiner(frame, embedding)
			if err != nil {
				return "", err
			}

			maxIdx := argmax(logits)
			if maxIdx == vocab.BlankID {
				break // advance t; decoder state is NOT updated on blank
			}

			tokenIDs = append(tokenIDs, maxIdx)
			lastToken = int64(maxIdx)
			state = newState
			// Reaching k == MaxEmissionsPerFrame-1 without a blank is the
			// decoder-drift edge case: the inner loop ends here and t
			// advances. A drifting token has been appended once per
			// iteration; Render collapses those consecutive identical ids,
			// so it appears once in the text.
		}
	}

	return Render(tokenIDs, vocab), nil
}

func argmax(logits []float32) int {
	best := 0
	bestVal := logits[0]
	for i, v := range logits {
		if v > bestVal {
			bestVal = v
			best = i
		}
	}
	return best
}

// Render concatenates emitted token ids into text: collapses consecutive
// identical ids (RNN-T's intrinsic de-duplication, spec.md §3/§8), strips
// any stray blanks, and converts subword-continuation markers ("▁" prefix
// = new word boundary) when present.
func Render(ids []int, vocab Vocab) string {
	var deduped []int
	for i, id := range ids {
		if id == vocab.BlankID {
			continue
		}
		if i > 0 && ids[i-1] == id {
			continue
		}
		deduped = append(deduped, id)
	}

	isSubword := vocab.SpaceID == -1
	var sb strings.Builder
	first := true
	for _, id := range deduped {
		if id < 0 || id >= len(vocab.Pieces) {
			continue
		}
		piece := vocab.Pieces[id]

		if isSubword {
			if strings.HasPrefix(piece, "▁") {
				if !first {
					sb.WriteByte(' ')
				}
				piece = strings.TrimPrefix(piece, "▁")
			}
			sb.WriteString(piece)
			first = false
			continue
		}

		if id == vocab.SpaceID {
			sb.WriteByte(' ')
			continue
		}
		sb.WriteString(piece)
		first = false
	}
	return sb.String()
}
