package rewrite

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"

	"swictation/internal/daemonlog"
)

// CorrectionMode names which rewrite mode a correction applies under.
type CorrectionMode string

const (
	CorrectionModeSecretary CorrectionMode = "secretary"
	CorrectionModeCode      CorrectionMode = "code"
	CorrectionModeAll       CorrectionMode = "all"
)

// Matches reports whether this correction's mode applies to currentMode.
func (m CorrectionMode) Matches(currentMode string) bool {
	switch m {
	case CorrectionModeAll:
		return true
	case CorrectionModeSecretary:
		return strings.EqualFold(currentMode, "secretary")
	case CorrectionModeCode:
		return strings.EqualFold(currentMode, "code")
	default:
		return false
	}
}

// MatchType selects how a correction's trigger text is compared.
type MatchType string

const (
	MatchTypeExact    MatchType = "exact"
	MatchTypePhonetic MatchType = "phonetic"
)

// CaseMode controls how a replacement's case is derived from the matched
// input word.
type CaseMode string

const (
	// CaseModePreserveInput mirrors the matched word's case pattern onto the
	// replacement: this is the default for newly learned corrections.
	CaseModePreserveInput CaseMode = "preserve_input"
	// CaseModeForcePattern always emits the replacement exactly as stored.
	CaseModeForcePattern CaseMode = "force_pattern"
	// CaseModeSmart uses the replacement's stored case, except when the
	// matched input word is itself ALL CAPS.
	CaseModeSmart CaseMode = "smart"
)

// Correction is a single learned word or phrase substitution.
type Correction struct {
	ID        string         `toml:"id"`
	Original  string         `toml:"original"`
	Corrected string         `toml:"corrected"`
	Mode      CorrectionMode `toml:"mode"`
	MatchType MatchType      `toml:"match_type"`
	CaseMode  CaseMode       `toml:"case_mode"`
	LearnedAt time.Time      `toml:"learned_at"`
	UseCount  uint64         `toml:"use_count"`
}

type correctionsFile struct {
	Corrections []Correction `toml:"corrections"`
}

// CorrectionStore holds the learned-correction set loaded from corrections.toml,
// indexed for fast matching, and watches the file for hot-reload. The zero
// value is not usable; construct with NewCorrectionStore.
type CorrectionStore struct {
	configPath        string
	phoneticThreshold float64
	log               *daemonlog.Logger

	mu              sync.RWMutex
	exactPhrases    map[string]Correction
	exactWords      map[string]Correction
	phoneticPhrases []Correction
	phoneticWords   []Correction

	usageMu      sync.Mutex
	useCounts    map[string]uint64
	totalMatches uint64

	watcher *fsnotify.Watcher
}

// NewCorrectionStore loads corrections.toml from configDir (if present) and
// returns a ready-to-use store. phoneticThreshold is the maximum normalized
// edit distance (0.0-1.0) a phonetic match may have; spec default is 0.25.
func NewCorrectionStore(configDir string, phoneticThreshold float64, logger *daemonlog.Logger) *CorrectionStore {
	s := &CorrectionStore{
		configPath:        filepath.Join(configDir, "corrections.toml"),
		phoneticThreshold: phoneticThreshold,
		log:               logger,
		useCounts:         make(map[string]uint64),
	}
	if err := s.Reload(); err != nil {
		s.log.Warn("failed to load corrections", "err", err)
	}
	return s
}

// StartWatching begins watching the corrections file's parent directory for
// writes or creations, reloading the index on each event. The parent
// directory (not the file itself) is watched so a delete-then-recreate
// editing pattern is still picked up.
func (s *CorrectionStore) StartWatching() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(s.configPath)); err != nil {
		watcher.Close()
		return err
	}
	s.watcher = watcher
	go s.watchLoop()
	s.log.Info("watching corrections file for changes", "path", s.configPath)
	return nil
}

func (s *CorrectionStore) watchLoop() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				s.log.Info("corrections file changed, reloading")
				if err := s.Reload(); err != nil {
					s.log.Error("failed to reload corrections", "err", err)
				}
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.Error("correction watch error", "err", err)
		}
	}
}

// Close stops the file watcher, if one was started.
func (s *CorrectionStore) Close() error {
	if s.watcher == nil {
		return nil
	}
	return s.watcher.Close()
}

// Reload re-reads corrections.toml and rebuilds the match indexes.
func (s *CorrectionStore) Reload() error {
	file, err := s.loadFile()
	if err != nil {
		return err
	}

	exactPhrases := make(map[string]Correction)
	exactWords := make(map[string]Correction)
	var phoneticPhrases, phoneticWords []Correction

	for _, c := range file.Corrections {
		key := strings.ToLower(c.Original)
		isPhrase := strings.Contains(key, " ")
		switch c.MatchType {
		case MatchTypeExact:
			if isPhrase {
				exactPhrases[key] = c
			} else {
				exactWords[key] = c
			}
		case MatchTypePhonetic:
			if isPhrase {
				phoneticPhrases = append(phoneticPhrases, c)
			} else {
				phoneticWords = append(phoneticWords, c)
			}
		}
	}

	sort.SliceStable(phoneticPhrases, func(i, j int) bool {
		return len(strings.Fields(phoneticPhrases[i].Original)) > len(strings.Fields(phoneticPhrases[j].Original))
	})
	sort.SliceStable(phoneticWords, func(i, j int) bool {
		return len(phoneticWords[i].Original) > len(phoneticWords[j].Original)
	})

	s.mu.Lock()
	s.exactPhrases = exactPhrases
	s.exactWords = exactWords
	s.phoneticPhrases = phoneticPhrases
	s.phoneticWords = phoneticWords
	s.mu.Unlock()

	s.log.Debug("loaded corrections",
		"exact_phrases", len(exactPhrases), "exact_words", len(exactWords),
		"phonetic_phrases", len(phoneticPhrases), "phonetic_words", len(phoneticWords))
	return nil
}

// Apply rewrites text using the matching order exact phrase (4,3,2 words) ->
// exact word -> phonetic phrase (longest first) -> phonetic word, skipping
// any correction whose Mode doesn't apply under mode.
func (s *CorrectionStore) Apply(text, mode string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return text
	}
	wordsLower := make([]string, len(words))
	for i, w := range words {
		wordsLower[i] = strings.ToLower(w)
	}

	s.mu.RLock()
	exactPhrases, exactWords := s.exactPhrases, s.exactWords
	phoneticPhrases, phoneticWords := s.phoneticPhrases, s.phoneticWords
	s.mu.RUnlock()

	result := make([]string, 0, len(words))

	i := 0
	for i < len(words) {
		matched := false

		for phraseLen := 4; phraseLen >= 2; phraseLen-- {
			if i+phraseLen > len(words) {
				continue
			}
			key := strings.Join(wordsLower[i:i+phraseLen], " ")
			if c, ok := exactPhrases[key]; ok && c.Mode.Matches(mode) {
				result = append(result, preserveCase(words[i], c.Corrected, c.CaseMode))
				s.incrementUsage(c.ID)
				i += phraseLen
				matched = true
				break
			}
		}
		if matched {
			continue
		}

		if c, ok := exactWords[wordsLower[i]]; ok && c.Mode.Matches(mode) {
			result = append(result, preserveCase(words[i], c.Corrected, c.CaseMode))
			s.incrementUsage(c.ID)
			i++
			continue
		}

		for _, c := range phoneticPhrases {
			if !c.Mode.Matches(mode) {
				continue
			}
			patternWords := strings.Fields(c.Original)
			n := len(patternWords)
			if i+n > len(words) {
				continue
			}
			key := strings.Join(wordsLower[i:i+n], " ")
			if normalizedEditDistance(key, strings.ToLower(c.Original)) <= s.phoneticThreshold {
				result = append(result, preserveCase(words[i], c.Corrected, c.CaseMode))
				s.incrementUsage(c.ID)
				i += n
				matched = true
				break
			}
		}
		if matched {
			continue
		}

		for _, c := range phoneticWords {
			if !c.Mode.Matches(mode) {
				continue
			}
			if normalizedEditDistance(wordsLower[i], strings.ToLower(c.Original)) <= s.phoneticThreshold {
				result = append(result, preserveCase(words[i], c.Corrected, c.CaseMode))
				s.incrementUsage(c.ID)
				matched = true
				break
			}
		}
		if matched {
			i++
			continue
		}

		result = append(result, words[i])
		i++
	}

	return strings.Join(result, " ")
}

// preserveCase applies case_mode to replacement using original's observed
// case pattern.
func preserveCase(original, replacement string, mode CaseMode) string {
	if original == "" || replacement == "" {
		return replacement
	}

	switch mode {
	case CaseModeForcePattern:
		return replacement
	case CaseModeSmart:
		if isAllUpper(original) {
			return strings.ToUpper(replacement)
		}
		return replacement
	default: // CaseModePreserveInput
		r := []rune(original)
		switch {
		case isAllUpper(original):
			return strings.ToUpper(replacement)
		case unicode.IsUpper(r[0]):
			return capitalizeFirst(replacement)
		default:
			return strings.ToLower(replacement)
		}
	}
}

// isAllUpper reports whether every letter in s is uppercase, treating a
// single-letter word as not meaningfully "all caps".
func isAllUpper(s string) bool {
	r := []rune(s)
	if len(r) <= 1 {
		return false
	}
	for _, c := range r {
		if unicode.IsLetter(c) && !unicode.IsUpper(c) {
			return false
		}
	}
	return true
}

// normalizedEditDistance computes Levenshtein distance between a and b,
// normalized to [0.0, 1.0] by the longer string's length.
func normalizedEditDistance(a, b string) float64 {
	ar, br := []rune(a), []rune(b)
	n, m := len(ar), len(br)
	if n == 0 {
		if m == 0 {
			return 0.0
		}
		return 1.0
	}
	if m == 0 {
		return 1.0
	}

	prev := make([]int, m+1)
	for j := range prev {
		prev[j] = j
	}
	curr := make([]int, m+1)

	for i := 1; i <= n; i++ {
		curr[0] = i
		for j := 1; j <= m; j++ {
			cost := 1
			if ar[i-1] == br[j-1] {
				cost = 0
			}
			curr[j] = min3(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}

	maxLen := n
	if m > maxLen {
		maxLen = m
	}
	return float64(prev[m]) / float64(maxLen)
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

// incrementUsage records an in-memory hit for correction id, batched to disk
// by FlushUsageCounts.
func (s *CorrectionStore) incrementUsage(id string) {
	s.usageMu.Lock()
	s.useCounts[id]++
	s.totalMatches++
	s.usageMu.Unlock()
}

// ShouldFlush reports whether 50 or more matches have accumulated since the
// last FlushUsageCounts call.
func (s *CorrectionStore) ShouldFlush() bool {
	s.usageMu.Lock()
	defer s.usageMu.Unlock()
	return s.totalMatches >= 50
}

// FlushUsageCounts persists accumulated use counts to corrections.toml and
// clears the in-memory tally.
func (s *CorrectionStore) FlushUsageCounts() error {
	s.usageMu.Lock()
	if len(s.useCounts) == 0 {
		s.usageMu.Unlock()
		return nil
	}
	counts := s.useCounts
	s.usageMu.Unlock()

	file, err := s.loadFile()
	if err != nil {
		return err
	}
	for i := range file.Corrections {
		if n, ok := counts[file.Corrections[i].ID]; ok {
			file.Corrections[i].UseCount += n
		}
	}
	if err := s.saveFile(file); err != nil {
		return err
	}

	s.usageMu.Lock()
	s.useCounts = make(map[string]uint64)
	s.totalMatches = 0
	s.usageMu.Unlock()

	s.log.Info("flushed correction usage counts to disk")
	return nil
}

// Learn stores a new correction, replacing any existing one with the same
// original text and mode, and refreshes the in-memory indexes.
func (s *CorrectionStore) Learn(original, corrected string, mode CorrectionMode, matchType MatchType) (Correction, error) {
	c := Correction{
		ID:        uuid.NewString(),
		Original:  strings.ToLower(original),
		Corrected: corrected,
		Mode:      mode,
		MatchType: matchType,
		CaseMode:  CaseModePreserveInput,
		LearnedAt: time.Now(),
	}

	file, err := s.loadFile()
	if err != nil {
		return Correction{}, err
	}
	kept := file.Corrections[:0]
	for _, existing := range file.Corrections {
		if strings.ToLower(existing.Original) == c.Original && existing.Mode == c.Mode {
			continue
		}
		kept = append(kept, existing)
	}
	file.Corrections = append(kept, c)

	if err := s.saveFile(file); err != nil {
		return Correction{}, err
	}
	s.log.Info("learned correction", "original", c.Original, "corrected", c.Corrected)
	return c, s.Reload()
}

// All returns every stored correction.
func (s *CorrectionStore) All() ([]Correction, error) {
	file, err := s.loadFile()
	if err != nil {
		return nil, err
	}
	return file.Corrections, nil
}

// Delete removes the correction with the given id.
func (s *CorrectionStore) Delete(id string) error {
	file, err := s.loadFile()
	if err != nil {
		return err
	}
	before := len(file.Corrections)
	kept := file.Corrections[:0]
	for _, c := range file.Corrections {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	file.Corrections = kept
	if len(file.Corrections) == before {
		return errors.New("correction not found")
	}
	if err := s.saveFile(file); err != nil {
		return err
	}
	return s.Reload()
}

// Update changes the corrected text, mode, and/or match type of an existing
// correction. Nil fields are left unchanged.
func (s *CorrectionStore) Update(id string, corrected *string, mode *CorrectionMode, matchType *MatchType) (Correction, error) {
	file, err := s.loadFile()
	if err != nil {
		return Correction{}, err
	}

	idx := -1
	for i, c := range file.Corrections {
		if c.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return Correction{}, errors.New("correction not found")
	}

	if corrected != nil {
		file.Corrections[idx].Corrected = *corrected
	}
	if mode != nil {
		file.Corrections[idx].Mode = *mode
	}
	if matchType != nil {
		file.Corrections[idx].MatchType = *matchType
	}

	updated := file.Corrections[idx]
	if err := s.saveFile(file); err != nil {
		return Correction{}, err
	}
	return updated, s.Reload()
}

func (s *CorrectionStore) loadFile() (correctionsFile, error) {
	data, err := os.ReadFile(s.configPath)
	if errors.Is(err, os.ErrNotExist) {
		return correctionsFile{}, nil
	}
	if err != nil {
		return correctionsFile{}, err
	}
	var file correctionsFile
	if err := toml.Unmarshal(data, &file); err != nil {
		return correctionsFile{}, err
	}
	return file, nil
}

func (s *CorrectionStore) saveFile(file correctionsFile) error {
	if err := os.MkdirAll(filepath.Dir(s.configPath), 0o755); err != nil {
		return err
	}
	data, err := toml.Marshal(file)
	if err != nil {
		return err
	}
	return os.WriteFile(s.configPath, data, 0o644)
}
