// Package transcript provides text utilities for Indonesian collection
// call transcripts: timestamp stripping and heuristic metadata
// extraction used to sanity-check model output.
package transcript

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/kolektra/callqa/internal/model"
)

var (
	// Bracketed timestamp markers emitted by the transcription step,
	// e.g. "[00:12.340 --> 00:15.980]".
	timestampRe = regexp.MustCompile(`\[\d{2}:\d{2}\.\d{3}\s*-->\s*\d{2}:\d{2}\.\d{3}\]`)

	// Rupiah amounts in Indonesian number format: "Rp. 6.364.000" or
	// "6.364.000 rupiah". Dots are thousands separators, comma is the
	// decimal separator.
	rupiahPrefixRe = regexp.MustCompile(`(?i)Rp\.?\s*(\d{1,3}(?:\.\d{3})*(?:,\d{2})?)`)
	rupiahSuffixRe = regexp.MustCompile(`(?i)(\d{1,3}(?:\.\d{3})*(?:,\d{2})?)\s*rupiah`)

	agentNameRe    = regexp.MustCompile(`(?i)saya\s+(\w+)\s+dari\s+BFI`)
	customerNameRe = regexp.MustCompile(`(?i)(Bapak|Ibu)\s+(\w+)`)

	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)tanggal\s+\d{1,2}`),
		regexp.MustCompile(`(?i)besok`),
		regexp.MustCompile(`(?i)hari\s+ini`),
		regexp.MustCompile(`(?i)minggu\s+depan`),
	}
)

// contextWindow is how many characters of surrounding text are kept
// around a date mention.
const contextWindow = 50

// Clean strips timestamp markers and collapses whitespace, leaving only
// the spoken text.
func Clean(text string) string {
	out := timestampRe.ReplaceAllString(text, "")
	out = strings.Join(strings.Fields(out), " ")
	return out
}

// DateMention is a payment-date phrase with its surrounding context.
type DateMention struct {
	Phrase  string `json:"phrase"`
	Context string `json:"context"`
}

// Metadata holds heuristically extracted call facts. These are regex
// matches, not model output; they are used for cross-checking and
// report columns.
type Metadata struct {
	AgentName     string         `json:"agent_name,omitempty"`
	CustomerName  string         `json:"customer_name,omitempty"`
	Amounts       []model.Amount `json:"amounts,omitempty"`
	DateMentions  []DateMention  `json:"date_mentions,omitempty"`
	CleanedLength int            `json:"cleaned_length"`
}

// ExtractMetadata runs the heuristic extractors over a raw transcript.
func ExtractMetadata(text string) Metadata {
	cleaned := Clean(text)
	md := Metadata{
		Amounts:       ExtractAmounts(cleaned),
		DateMentions:  extractDateMentions(cleaned),
		CleanedLength: len(cleaned),
	}
	if m := agentNameRe.FindStringSubmatch(cleaned); m != nil {
		md.AgentName = m[1]
	}
	if m := customerNameRe.FindStringSubmatch(cleaned); m != nil {
		md.CustomerName = m[1] + " " + m[2]
	}
	return md
}

// ExtractAmounts finds rupiah figures in the text. Currency is always
// IDR; repeated mentions yield repeated entries.
func ExtractAmounts(text string) []model.Amount {
	var amounts []model.Amount
	for _, re := range []*regexp.Regexp{rupiahPrefixRe, rupiahSuffixRe} {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			v, ok := parseRupiah(m[1])
			if !ok {
				continue
			}
			amounts = append(amounts, model.Amount{
				Value:    v,
				Currency: model.DefaultCurrency,
			})
		}
	}
	return amounts
}

// parseRupiah converts "6.364.000" or "1.250.000,50" to a float.
func parseRupiah(s string) (float64, bool) {
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func extractDateMentions(text string) []DateMention {
	var mentions []DateMention
	for _, re := range datePatterns {
		for _, loc := range re.FindAllStringIndex(text, -1) {
			start := loc[0] - contextWindow
			if start < 0 {
				start = 0
			}
			end := loc[1] + contextWindow
			if end > len(text) {
				end = len(text)
			}
			mentions = append(mentions, DateMention{
				Phrase:  text[loc[0]:loc[1]],
				Context: strings.TrimSpace(text[start:end]),
			})
		}
	}
	return mentions
}
