package chain

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/hukumqa/hukumqa/internal/models"
)

// Mode selects the generation prompt family.
type Mode string

const (
	// ModeAnalysis answers with chain-of-thought legal analysis.
	ModeAnalysis Mode = "analysis"
	// ModeVerbatim answers with verbatim quotations only.
	ModeVerbatim Mode = "verbatim"
)

// Question types detected by keyword heuristic.
const (
	QuestionDefinisi    = "definisi"
	QuestionProsedur    = "prosedur"
	QuestionPersyaratan = "persyaratan"
	QuestionSanksi      = "sanksi"
	QuestionUmum        = "umum"
)

var questionTypeCues = []struct {
	qtype string
	cues  []string
}{
	{QuestionDefinisi, []string{"apa itu", "definisi", "pengertian", "arti dari", "yang dimaksud dengan"}},
	{QuestionProsedur, []string{"bagaimana cara", "prosedur", "tata cara", "langkah", "proses"}},
	{QuestionPersyaratan, []string{"syarat", "persyaratan", "dokumen apa", "ketentuan untuk"}},
	{QuestionSanksi, []string{"sanksi", "denda", "hukuman", "pidana", "akibat hukum"}},
}

// DetectQuestionType classifies the question by Indonesian keyword cues.
// First matching type wins.
func DetectQuestionType(question string) string {
	lower := strings.ToLower(question)
	for _, entry := range questionTypeCues {
		for _, cue := range entry.cues {
			if strings.Contains(lower, cue) {
				return entry.qtype
			}
		}
	}
	return QuestionUmum
}

const systemPromptAnalysis = `Anda adalah asisten hukum ahli untuk peraturan perundang-undangan Indonesia. Jawab pertanyaan pengguna HANYA berdasarkan kutipan peraturan yang diberikan dalam konteks. Pikirkan langkah demi langkah: identifikasi peraturan yang relevan, baca ketentuannya, lalu susun jawaban yang akurat. Sebutkan nomor sumber dalam kurung siku, misalnya [1], setiap kali Anda mengutip. Jika konteks tidak memuat jawaban, katakan demikian secara eksplisit. Jangan pernah mengarang ketentuan yang tidak ada dalam konteks.`

const systemPromptVerbatim = `Anda adalah asisten hukum untuk peraturan perundang-undangan Indonesia. Jawab HANYA dengan kutipan kata demi kata dari konteks yang diberikan, disertai nomor sumber dalam kurung siku, misalnya [1]. Jangan memparafrasekan. Jika konteks tidak memuat jawaban, katakan demikian.`

var typeAddenda = map[string]string{
	QuestionDefinisi:    "Pertanyaan ini meminta definisi. Utamakan ketentuan umum (biasanya Pasal 1) dan kutip rumusan definisinya secara tepat.",
	QuestionProsedur:    "Pertanyaan ini meminta prosedur. Susun jawaban sebagai urutan langkah sesuai ketentuan, dengan sumber per langkah.",
	QuestionPersyaratan: "Pertanyaan ini meminta persyaratan. Daftarkan setiap syarat sebagai butir terpisah dengan sumbernya.",
	QuestionSanksi:      "Pertanyaan ini meminta sanksi. Sebutkan jenis sanksi, besarannya, dan pasal yang mengaturnya.",
}

const jsonFooterInstruction = `

Akhiri jawaban Anda dengan blok JSON persis dalam format berikut, berisi nomor sumber yang benar-benar Anda gunakan:
` + "```json" + `
{"cited_sources": [1, 2]}
` + "```"

// SystemPrompt assembles the system prompt for a mode and question type.
func SystemPrompt(mode Mode, questionType string) string {
	if mode == ModeVerbatim {
		return systemPromptVerbatim
	}
	prompt := systemPromptAnalysis
	if addendum, ok := typeAddenda[questionType]; ok {
		prompt += "\n\n" + addendum
	}
	return prompt
}

// UserPrompt assembles the numbered context and the question, ending with
// the mandatory JSON footer instruction.
func UserPrompt(question, context string) string {
	return fmt.Sprintf("Konteks peraturan:\n\n%s\n\nPertanyaan: %s%s", context, question, jsonFooterInstruction)
}

// BuildContext formats results as numbered blocks separated by rules.
func BuildContext(results []models.SearchResult) string {
	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "[%d] %s\n%s\n---\n", i+1, r.Citation, r.Text)
	}
	return b.String()
}

// snippetLen bounds the text snippet carried in citation metadata.
const snippetLen = 500

// BuildCitations produces the numbered citations list parallel to the
// context blocks.
func BuildCitations(results []models.SearchResult) []models.Citation {
	citations := make([]models.Citation, 0, len(results))
	for i, r := range results {
		snippet := truncate(r.Text, snippetLen)
		citations = append(citations, models.Citation{
			Number:     i + 1,
			CitationID: r.CitationID,
			Citation:   r.Citation,
			Score:      roundScore(r.Score),
			Metadata: map[string]interface{}{
				"jenis_dokumen": r.Metadata.JenisDokumen,
				"nomor":         r.Metadata.Nomor,
				"tahun":         r.Metadata.Tahun,
				"pasal":         r.Metadata.Pasal,
				"snippet":       snippet,
			},
		})
	}
	return citations
}

func roundScore(s float64) float64 {
	return float64(int(s*10000+0.5)) / 10000
}

// truncate shortens s to at most max bytes without splitting a UTF-8 rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// Sources returns the distinct display citations in rank order.
func Sources(results []models.SearchResult) []string {
	seen := make(map[string]bool)
	var sources []string
	for _, r := range results {
		if !seen[r.Citation] {
			seen[r.Citation] = true
			sources = append(sources, r.Citation)
		}
	}
	return sources
}
