// Package vocab maps caption tokens to integer ids.
//
// A vocabulary is built once from the captions of an
// annotation file, saved as JSON, and loaded read-only
// for training.
package vocab

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/unixpickle/essentials"
)

// These are the special tokens.
// They always occupy the lowest ids, in this order.
const (
	PadToken     = "<pad>"
	StartToken   = "<start>"
	EndToken     = "<end>"
	UnknownToken = "<unk>"
)

// These are the ids of the special tokens.
const (
	PadID = iota
	StartID
	EndID
	UnknownID
)

var specialTokens = []string{PadToken, StartToken, EndToken, UnknownToken}

// ErrNotFound is returned by Load when there is no
// saved vocabulary.
// The caller should build one with AddCorpus and Save it.
var ErrNotFound = errors.New("vocabulary not found")

// A Vocab is a bidirectional mapping between tokens and
// integer ids.
type Vocab struct {
	// TokenLevel selects word tokens.
	// If false, every character is a token.
	TokenLevel bool

	// MinFreq is the number of times a token must occur in
	// a corpus before it is given an id.
	MinFreq int

	tokens []string
	ids    map[string]int
}

// New creates a vocabulary containing only the special
// tokens.
func New(tokenLevel bool, minFreq int) *Vocab {
	v := &Vocab{
		TokenLevel: tokenLevel,
		MinFreq:    minFreq,
		ids:        map[string]int{},
	}
	for _, tok := range specialTokens {
		v.insert(tok)
	}
	return v
}

// Len returns the number of tokens, including the special
// tokens.
func (v *Vocab) Len() int {
	return len(v.tokens)
}

// ID returns the id for the token, or UnknownID.
func (v *Vocab) ID(token string) int {
	if id, ok := v.ids[token]; ok {
		return id
	}
	return UnknownID
}

// Token returns the token for an id.
// Out of range ids map to UnknownToken.
func (v *Vocab) Token(id int) string {
	if id < 0 || id >= len(v.tokens) {
		return UnknownToken
	}
	return v.tokens[id]
}

// Tokenize splits a sentence into tokens according to
// v.TokenLevel.
func (v *Vocab) Tokenize(sentence string) []string {
	sentence = strings.ToLower(strings.TrimSpace(sentence))
	if !v.TokenLevel {
		var res []string
		for _, r := range sentence {
			res = append(res, string(r))
		}
		return res
	}
	return strings.FieldsFunc(sentence, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'')
	})
}

// Encode converts a sentence into ids, bracketed by the
// start and end tokens.
func (v *Vocab) Encode(sentence string) []int {
	toks := v.Tokenize(sentence)
	res := make([]int, 0, len(toks)+2)
	res = append(res, StartID)
	for _, tok := range toks {
		res = append(res, v.ID(tok))
	}
	return append(res, EndID)
}

// Decode converts ids back into a sentence.
// Decoding stops at the first end token, and the other
// special tokens are skipped.
func (v *Vocab) Decode(ids []int) string {
	var toks []string
	for _, id := range ids {
		if id == EndID {
			break
		} else if id == PadID || id == StartID {
			continue
		}
		toks = append(toks, v.Token(id))
	}
	if v.TokenLevel {
		return strings.Join(toks, " ")
	}
	return strings.Join(toks, "")
}

// AddCorpus adds the tokens from every caption in an
// annotation file.
//
// The file is a JSON object keyed by video id, where each
// value has a "sentences" list.
// Tokens that occur at least v.MinFreq times are added in
// order of decreasing frequency.
func (v *Vocab) AddCorpus(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return essentials.AddCtx("add corpus", err)
	}
	var ann map[string]struct {
		Sentences []string `json:"sentences"`
	}
	if err := json.Unmarshal(data, &ann); err != nil {
		return essentials.AddCtx("add corpus", err)
	}

	counts := map[string]int{}
	for _, obj := range ann {
		for _, sentence := range obj.Sentences {
			for _, tok := range v.Tokenize(sentence) {
				counts[tok]++
			}
		}
	}

	var newToks []string
	for tok, count := range counts {
		if _, ok := v.ids[tok]; !ok && count >= v.MinFreq {
			newToks = append(newToks, tok)
		}
	}
	sort.Slice(newToks, func(i, j int) bool {
		ci, cj := counts[newToks[i]], counts[newToks[j]]
		if ci != cj {
			return ci > cj
		}
		return newToks[i] < newToks[j]
	})
	for _, tok := range newToks {
		v.insert(tok)
	}
	return nil
}

func (v *Vocab) insert(tok string) {
	v.ids[tok] = len(v.tokens)
	v.tokens = append(v.tokens, tok)
}

type savedVocab struct {
	TokenLevel bool     `json:"token_level"`
	MinFreq    int      `json:"min_freq"`
	Tokens     []string `json:"tokens"`
}

// Save writes the vocabulary to a JSON file.
func (v *Vocab) Save(path string) error {
	data, err := json.Marshal(&savedVocab{
		TokenLevel: v.TokenLevel,
		MinFreq:    v.MinFreq,
		Tokens:     v.tokens,
	})
	if err != nil {
		return essentials.AddCtx("save vocabulary", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return essentials.AddCtx("save vocabulary", err)
	}
	return nil
}

// Load reads a vocabulary that was written by Save.
//
// If the file does not exist, the returned error wraps
// ErrNotFound.
func Load(path string) (*Vocab, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("load vocabulary %s: %w", path, ErrNotFound)
	} else if err != nil {
		return nil, essentials.AddCtx("load vocabulary", err)
	}
	var saved savedVocab
	if err := json.Unmarshal(data, &saved); err != nil {
		return nil, essentials.AddCtx("load vocabulary", err)
	}
	if len(saved.Tokens) < len(specialTokens) {
		return nil, errors.New("load vocabulary: missing special tokens")
	}
	for i, tok := range specialTokens {
		if saved.Tokens[i] != tok {
			return nil, fmt.Errorf("load vocabulary: token %d should be %s but got %s",
				i, tok, saved.Tokens[i])
		}
	}
	v := &Vocab{
		TokenLevel: saved.TokenLevel,
		MinFreq:    saved.MinFreq,
		ids:        map[string]int{},
	}
	for _, tok := range saved.Tokens {
		if _, ok := v.ids[tok]; ok {
			return nil, fmt.Errorf("load vocabulary: duplicate token %q", tok)
		}
		v.insert(tok)
	}
	return v, nil
}

// LoadOrBuild loads the vocabulary at vocabPath.
// If there is none, one is built from corpusPath and saved
// to vocabPath.
//
// The built return value indicates whether the corpus was
// used.
func LoadOrBuild(vocabPath, corpusPath string, tokenLevel bool,
	minFreq int) (v *Vocab, built bool, err error) {
	v, err = Load(vocabPath)
	if err == nil {
		return v, false, nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}
	v = New(tokenLevel, minFreq)
	if err := v.AddCorpus(corpusPath); err != nil {
		return nil, false, err
	}
	if err := v.Save(vocabPath); err != nil {
		return nil, false, err
	}
	return v, true, nil
}
