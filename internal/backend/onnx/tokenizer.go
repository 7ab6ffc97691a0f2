package onnx

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// WordPieceTokenizer implements a minimal BERT-compatible tokenizer over a
// vocab.txt file: lower-casing, punctuation splitting and greedy
// longest-match-first subwords with a "##" continuation prefix.
type WordPieceTokenizer struct {
	vocab        map[string]int64
	lowerCase    bool
	clsID        int64
	sepID        int64
	padID        int64
	unkID        int64
	continuation string
}

// LoadWordPieceTokenizer builds the tokenizer from vocab.txt.
func LoadWordPieceTokenizer(path string) (*WordPieceTokenizer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vocab: %w", err)
	}
	defer f.Close()

	vocab := make(map[string]int64)
	sc := bufio.NewScanner(f)
	var idx int64
	for sc.Scan() {
		token := strings.TrimSpace(sc.Text())
		if token == "" {
			continue
		}
		vocab[token] = idx
		idx++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan vocab: %w", err)
	}
	return NewWordPieceTokenizer(vocab)
}

// NewWordPieceTokenizer builds a tokenizer from an in-memory vocabulary. The
// vocabulary must contain [CLS], [SEP], [PAD] and [UNK].
func NewWordPieceTokenizer(vocab map[string]int64) (*WordPieceTokenizer, error) {
	t := &WordPieceTokenizer{vocab: vocab, lowerCase: true, continuation: "##"}
	for tok, dst := range map[string]*int64{"[CLS]": &t.clsID, "[SEP]": &t.sepID, "[PAD]": &t.padID, "[UNK]": &t.unkID} {
		id, ok := vocab[tok]
		if !ok {
			return nil, fmt.Errorf("vocab missing special token %s", tok)
		}
		*dst = id
	}
	return t, nil
}

// Encode converts text into token IDs and an attention mask of length seqLen.
// Input longer than seqLen-2 word pieces is truncated.
func (t *WordPieceTokenizer) Encode(text string, seqLen int) ([]int64, []int64) {
	if seqLen <= 0 {
		return nil, nil
	}
	ids := make([]int64, seqLen)
	attn := make([]int64, seqLen)
	for i := range ids {
		ids[i] = t.padID
	}
	if seqLen < 2 {
		ids[0], attn[0] = t.clsID, 1
		return ids, attn
	}

	tokens := []int64{t.clsID}
	for _, w := range basicSplit(text) {
		if t.lowerCase {
			w = strings.ToLower(w)
		}
		for _, p := range t.wordPiece(w) {
			if len(tokens) >= seqLen-1 {
				break
			}
			tokens = append(tokens, p)
		}
		if len(tokens) >= seqLen-1 {
			break
		}
	}
	tokens = append(tokens, t.sepID)

	copy(ids, tokens)
	for i := range tokens {
		attn[i] = 1
	}
	return ids, attn
}

func (t *WordPieceTokenizer) wordPiece(token string) []int64 {
	if id, ok := t.vocab[token]; ok {
		return []int64{id}
	}
	var pieces []int64
	start := 0
	for start < len(token) {
		end := len(token)
		matched := false
		for end > start {
			sub := token[start:end]
			if start > 0 {
				sub = t.continuation + sub
			}
			if id, ok := t.vocab[sub]; ok {
				pieces = append(pieces, id)
				start = end
				matched = true
				break
			}
			end--
		}
		if !matched {
			return []int64{t.unkID}
		}
	}
	return pieces
}

// basicSplit splits on whitespace and isolates punctuation characters.
func basicSplit(text string) []string {
	var out []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			flush()
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			flush()
			out = append(out, string(r))
		default:
			b.WriteRune(r)
		}
	}
	flush()
	return out
}
