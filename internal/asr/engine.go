package asr

import (
	"fmt"
	"sync"
	"time"

	ort "github.com/yalue/onnxruntime_go"
)

// Variant names one of the two model families from spec.md §4.6.
type Variant string

const (
	Variant06BCPU   Variant = "0.6b-cpu"
	Variant06BAccel Variant = "0.6b-gpu"
	Variant11BAccel Variant = "1.1b-gpu"
)

// ArtifactPaths names the four files a variant is loaded from.
type ArtifactPaths struct {
	Encoder string
	Decoder string
	Joiner  string
	Tokens  string
}

// Engine is the capability-set abstraction Design Note §9 calls for:
// "recognize(features) -> text, required_memory_mb, name". Both model
// families implement this same contract.
type Engine interface {
	Recognize(mel [][]float64) (text string, latency time.Duration, err error)
	RequiredMemoryMB() int
	Name() string
	NMels() int
	Close()
}

// onnxEngine wraps the three ONNX sessions (encoder/decoder/joiner) for one
// model variant, grounded on the encoder/decoder/joint ONNX wiring pattern
// of the codebase this module was adapted from (its ai/gigaam_rnnt.go),
// generalized per spec.md
// §4.6's exact artifact layout and K=5 decode bound.
type onnxEngine struct {
	variant    Variant
	nMels      int
	requiredMB int

	mu       sync.Mutex
	encoder  *ort.DynamicAdvancedSession
	decoder  *ort.DynamicAdvancedSession
	joiner   *ort.DynamicAdvancedSession
	vocab    Vocab
	predSize int
	encDown  int // encoder downsampling factor, commonly 8
}

// requiredMemoryMB mirrors the VRAM thresholds of spec.md §4.6's selection
// table (used for reporting only; selection itself happens in adaptive.go).
func requiredMemoryMB(v Variant) int {
	switch v {
	case Variant11BAccel:
		return 4096
	case Variant06BAccel:
		return 1536
	default:
		return 0
	}
}

// NewEngine loads the three ONNX sessions and vocabulary for one variant.
func NewEngine(variant Variant, paths ArtifactPaths, nMels int, numThreads int) (Engine, error) {
	vocab, err := LoadVocab(paths.Tokens)
	if err != nil {
		return nil, err
	}

	opts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("onnx session options: %w", err)
	}
	defer opts.Destroy()
	if numThreads > 0 {
		_ = opts.SetIntraOpNumThreads(numThreads)
	}

	encoder, err := ort.NewDynamicAdvancedSession(paths.Encoder, []string{"audio_signal", "length"}, []string{"outputs", "encoded_lengths"}, opts)
	if err != nil {
		return nil, fmt.Errorf("load encoder %s: %w", paths.Encoder, err)
	}
	decoder, err := ort.NewDynamicAdvancedSession(paths.Decoder, []string{"targets", "target_length", "states"}, []string{"outputs", "prednet_lengths", "states"}, opts)
	if err != nil {
		encoder.Destroy()
		return nil, fmt.Errorf("load decoder %s: %w", paths.Decoder, err)
	}
	joiner, err := ort.NewDynamicAdvancedSession(paths.Joiner, []string{"encoder_outputs", "decoder_outputs"}, []string{"outputs"}, opts)
	if err != nil {
		encoder.Destroy()
		decoder.Destroy()
		return nil, fmt.Errorf("load joiner %s: %w", paths.Joiner, err)
	}

	return &onnxEngine{
		variant:    variant,
		nMels:      nMels,
		requiredMB: requiredMemoryMB(variant),
		encoder:    encoder,
		decoder:    decoder,
		joiner:     joiner,
		vocab:      vocab,
		predSize:   320,
		encDown:    8,
	}, nil
}

func (e *onnxEngine) Name() string      { return string(e.variant) }
func (e *onnxEngine) NMels() int        { return e.nMels }
func (e *onnxEngine) RequiredMemoryMB() int { return e.requiredMB }

func (e *onnxEngine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.encoder != nil {
		e.encoder.Destroy()
	}
	if e.decoder != nil {
		e.decoder.Destroy()
	}
	if e.joiner != nil {
		e.joiner.Destroy()
	}
}

// Recognize runs the full encoder -> greedy decode pipeline. Never blocks
// the audio thread (spec.md §4.6): it is only ever invoked from T_worker.
func (e *onnxEngine) Recognize(mel [][]float64) (string, time.Duration, error) {
	start := time.Now()
	if len(mel) == 0 {
		return "", time.Since(start), nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	encOut, err := e.runEncoder(mel)
	if err != nil {
		return "", time.Since(start), fmt.Errorf("asr encoder: %w", err)
	}

	text, err := Decode(encOut, e.vocab, e.predSize, e.decoderStep, e.joinerStep)
	if err != nil {
		return "", time.Since(start), fmt.Errorf("asr decode: %w", err)
	}
	return text, time.Since(start), nil
}

func (e *onnxEngine) runEncoder(mel [][]float64) ([][]float32, error) {
	nMels := e.nMels
	frames := len(mel)
	flat := make([]float32, nMels*frames)
	for t := 0; t < frames; t++ {
		for m := 0; m < nMels; m++ {
			flat[m*frames+t] = float32(mel[t][m])
		}
	}

	sigShape := ort.NewShape(1, int64(nMels), int64(frames))
	sigTensor, err := ort.NewTensor(sigShape, flat)
	if err != nil {
		return nil, err
	}
	defer sigTensor.Destroy()

	lenShape := ort.NewShape(1)
	lenTensor, err := ort.NewTensor(lenShape, []int64{int64(frames)})
	if err != nil {
		return nil, err
	}
	defer lenTensor.Destroy()

	outputs := make([]ort.Value, 2)
	if err := e.encoder.Run([]ort.Value{sigTensor, lenTensor}, outputs); err != nil {
		return nil, err
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	out := outputs[0].(*ort.Tensor[float32])
	shape := out.GetShape() // [1, H, T']
	hidden := int(shape[1])
	tsteps := int(shape[2])
	data := out.GetData()

	encOut := make([][]float32, tsteps)
	for t := 0; t < tsteps; t++ {
		frame := make([]float32, hidden)
		for h := 0; h < hidden; h++ {
			frame[h] = data[h*tsteps+t]
		}
		encOut[t] = frame
	}
	return encOut, nil
}

func (e *onnxEngine) decoderStep(lastToken int64, state []float32) ([]float32, []float32, error) {
	half := len(state) / 2
	h, c := state[:half], state[half:]

	labelShape := ort.NewShape(1, 1)
	labelTensor, err := ort.NewTensor(labelShape, []int64{lastToken})
	if err != nil {
		return nil, nil, err
	}
	defer labelTensor.Destroy()

	stateShape := ort.NewShape(1, 1, int64(half))
	hTensor, err := ort.NewTensor(stateShape, append([]float32(nil), h...))
	if err != nil {
		return nil, nil, err
	}
	defer hTensor.Destroy()
	cTensor, err := ort.NewTensor(stateShape, append([]float32(nil), c...))
	if err != nil {
		return nil, nil, err
	}
	defer cTensor.Destroy()

	outputs := make([]ort.Value, 3)
	if err := e.decoder.Run([]ort.Value{labelTensor, hTensor, cTensor}, outputs); err != nil {
		return nil, nil, err
	}
	defer func() {
		for _, o := range outputs {
			if o != nil {
				o.Destroy()
			}
		}
	}()

	emb := append([]float32(nil), outputs[0].(*ort.Tensor[float32]).GetData()...)
	newH := append([]float32(nil), outputs[1].(*ort.Tensor[float32]).GetData()...)
	newC := append([]float32(nil), outputs[2].(*ort.Tensor[float32]).GetData()...)
	newState := append(append([]float32(nil), newH...), newC...)
	return emb, newState, nil
}

func (e *onnxEngine) joinerStep(encFrame, decEmbedding []float32) ([]float32, error) {
	encShape := ort.NewShape(1, int64(len(encFrame)), 1)
	encTensor, err := ort.NewTensor(encShape, encFrame)
	if err != nil {
		return nil, err
	}
	defer encTensor.Destroy()

	decShape := ort.NewShape(1, int64(len(decEmbedding)), 1)
	decTensor, err := ort.NewTensor(decShape, decEmbedding)
	if err != nil {
		return nil, err
	}
	defer decTensor.Destroy()

	outputs := make([]ort.Value, 1)
	if err := e.joiner.Run([]ort.Value{encTensor, decTensor}, outputs); err != nil {
		return nil, err
	}
	defer outputs[0].Destroy()

	return append([]float32(nil), outputs[0].(*ort.Tensor[float32]).GetData()...), nil
}
