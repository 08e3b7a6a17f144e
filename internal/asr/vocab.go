package asr

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Vocab is the ordered token piece list from spec.md §3: line number = token
// id, id 0 is the reserved blank/null emission.
type Vocab struct {
	Pieces  []string
	BlankID int
	SpaceID int // -1 if no dedicated space token (subword model uses "▁" prefix instead)
}

// LoadVocab reads a newline-delimited token file, one piece per line.
func LoadVocab(path string) (Vocab, error) {
	f, err := os.Open(path)
	if err != nil {
		return Vocab{}, fmt.Errorf("open vocab %s: %w", path, err)
	}
	defer f.Close()

	var pieces []string
	spaceID := -1
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		// Some vocab dumps carry a "piece<TAB>id" format; keep only the piece.
		if idx := strings.IndexByte(line, '\t'); idx >= 0 {
			line = line[:idx]
		}
		if line == " " || line == "<space>" || line == "▁" {
			spaceID = len(pieces)
		}
		pieces = append(pieces, line)
	}
	if err := scanner.Err(); err != nil {
		return Vocab{}, fmt.Errorf("scan vocab %s: %w", path, err)
	}
	if len(pieces) == 0 {
		return Vocab{}, fmt.Errorf("vocab %s is empty", path)
	}
	return Vocab{Pieces: pieces, BlankID: 0, SpaceID: spaceID}, nil
}
