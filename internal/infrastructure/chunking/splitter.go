package chunking

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/dkomarov/doc-analyst/internal/core/domain"
)

const (
	minChunkChars   = 50
	summarySentMax  = 2
	summaryRuneMax  = 240
	defaultChunk    = 900
	defaultOverlap  = 150
	tocLeaderRunMin = 4
)

// Splitter packs cleaned sentences into chunks of at most ChunkSize runes.
// A sentence longer than ChunkSize falls back to fixed rune windows with
// Overlap. Chunks shorter than the minimum are dropped as noise.
type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = defaultChunk
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

func (s *Splitter) Chunk(source, docID, text string) []domain.Chunk {
	cleaned := cleanText(text)
	if cleaned == "" {
		return nil
	}

	var pieces []string
	for _, block := range packSentences(splitSentences(cleaned), s.ChunkSize) {
		if len([]rune(block)) <= s.ChunkSize {
			pieces = append(pieces, block)
			continue
		}
		pieces = append(pieces, windowSplit(block, s.ChunkSize, s.Overlap)...)
	}

	out := make([]domain.Chunk, 0, len(pieces))
	for _, piece := range pieces {
		piece = strings.TrimSpace(piece)
		if len([]rune(piece)) < minChunkChars {
			continue
		}
		index := len(out)
		out = append(out, domain.Chunk{
			ID:         chunkID(docID, index),
			Source:     source,
			ChunkIndex: index,
			Text:       piece,
			Summary:    summarize(piece),
			Quality:    alnumRatio(piece),
		})
	}
	return out
}

func chunkID(docID string, index int) string {
	return fmt.Sprintf("%s-%d-%s", docID, index, uuid.NewString()[:6])
}

// cleanText normalizes newlines and drops table-of-contents noise: dot-leader
// lines, bare page numbers and empty runs.
func cleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var kept []string
	blankRun := 0
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			blankRun++
			if blankRun <= 2 {
				kept = append(kept, "")
			}
			continue
		}
		blankRun = 0
		if isTOCLine(trimmed) {
			continue
		}
		kept = append(kept, trimmed)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

func isTOCLine(line string) bool {
	if isBareNumber(line) {
		return true
	}
	run := 0
	for _, r := range line {
		if r == '.' || r == '…' {
			run++
			if run >= tocLeaderRunMin {
				return true
			}
			continue
		}
		run = 0
	}
	return false
}

func isBareNumber(line string) bool {
	if line == "" {
		return false
	}
	for _, r := range line {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// splitSentences is a naive terminator split; good enough for packing, not
// for linguistics.
func splitSentences(text string) []string {
	var out []string
	var b strings.Builder
	runes := []rune(text)
	for i, r := range runes {
		b.WriteRune(r)
		if r != '.' && r != '!' && r != '?' && r != '\n' {
			continue
		}
		if r != '\n' && i+1 < len(runes) && runes[i+1] != ' ' && runes[i+1] != '\n' {
			continue
		}
		if s := strings.TrimSpace(b.String()); s != "" {
			out = append(out, s)
		}
		b.Reset()
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		out = append(out, s)
	}
	return out
}

func packSentences(sentences []string, chunkSize int) []string {
	var out []string
	var b strings.Builder
	for _, sentence := range sentences {
		if b.Len() > 0 && len([]rune(b.String()))+len([]rune(sentence))+1 > chunkSize {
			out = append(out, b.String())
			b.Reset()
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(sentence)
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}

func windowSplit(text string, chunkSize, overlap int) []string {
	runes := []rune(text)
	step := chunkSize - overlap
	if step <= 0 {
		step = chunkSize
	}

	out := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		piece := strings.TrimSpace(string(runes[start:end]))
		if piece != "" {
			out = append(out, piece)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}

func summarize(text string) string {
	sentences := splitSentences(text)
	if len(sentences) > summarySentMax {
		sentences = sentences[:summarySentMax]
	}
	summary := strings.Join(sentences, " ")
	runes := []rune(summary)
	if len(runes) > summaryRuneMax {
		summary = strings.TrimSpace(string(runes[:summaryRuneMax]))
	}
	return summary
}

func alnumRatio(text string) float64 {
	total := 0
	alnum := 0
	for _, r := range text {
		total++
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			alnum++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(alnum) / float64(total)
}
