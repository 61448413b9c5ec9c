// Package prompt composes the instruction sequences sent to the model.
// The prompt constants are versioned configuration: they encode the
// grading rubric, and the tests pin them verbatim so drift is caught.
package prompt

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/kolektra/callqa/internal/model"
)

// Version identifies the current prompt revision. Bump when any prompt
// constant changes so stored analyses can be traced to the rubric that
// produced them.
const Version = "v1"

// ErrEmptyTranscript is returned when composing a prompt without a
// transcript.
var ErrEmptyTranscript = eris.New("prompt: transcript is empty")

// Prompt is a composed two-turn instruction sequence: a system-role
// instruction and a human-role turn carrying the transcript verbatim.
type Prompt struct {
	System string
	Human  string
}

const classificationSystemPrompt = `You are an expert collection call analyzer focusing on Indonesian language transcripts. Your primary task is to accurately classify and extract information from collection call transcripts.

Analyze the call transcript and categorize it into one of these scenarios:

1. PTP (Promise to Pay):
- Customer explicitly provides a specific payment date
- Must be a direct promise from customer (not a guess or suggestion from agent)
Examples:
- "Iya, saya bayar tanggal 8" (PTP)
- "Besok saya bayar" (PTP)
- "Insya Allah tanggal 27" (PTP)

2. Third Party Contact (TPC):
- Person answering is neither customer nor spouse
- Focus on relationship verification
- Message delivery tracking
Examples:
- "Saya adiknya"
- "Beliau sedang tidak ada"
- "Nanti saya sampaikan"

3. Refuse to Pay:
- No clear PTP date given
- Contact is with actual customer (not TPC)
- Expressing inability or unwillingness to pay
Examples:
- "Belum ada uang"
- "Saya tidak sanggup bayar"
- "Mau dikembalikan unitnya"

If the transcript gives no clear evidence for any scenario, use UNKNOWN. Omit any field you cannot confirm from the transcript rather than guessing.

Required Output Format:
Respond with a single JSON object matching this structure example:
{
    "basic_info": {
        "agent_name": "name or omit",
        "customer_name": "name or omit",
        "scenario_type": "PTP|REFUSE_TO_PAY|TPC|UNKNOWN",
        "classification_reason": "why this scenario",
        "call_duration": "MM:SS or omit",
        "amounts_mentioned": [{"value": 6364000.0, "currency": "IDR", "type": "installment"}],
        "payment_date_mentioned": "date phrase or omit"
    },
    "ptp_details": {
        "promised_date": "date phrase",
        "promised_amount": {"value": 500000.0, "currency": "IDR"},
        "negotiation_attempts": 1,
        "commitment_strength": "strong|medium|weak",
        "commitment_phrases": ["exact quotes"]
    },
    "refuse_details": {
        "reason": "stated reason",
        "customer_situation": "situation summary",
        "refusal_type": "explicit|implicit",
        "solutions_discussed": ["list"]
    },
    "tpc_details": {
        "relationship_to_customer": "relationship",
        "message_delivered": false,
        "verification_attempt": false,
        "alternative_contacts": ["list"]
    },
    "call_summary": "one-paragraph summary"
}

Include only the detail object matching the identified scenario_type; leave the other two out entirely. For UNKNOWN, include no detail object.`

// Classification composes the prompt for the initial classify-and-extract
// pass. No scenario parameter applies at this stage.
func Classification(transcript string) (Prompt, error) {
	if strings.TrimSpace(transcript) == "" {
		return Prompt{}, ErrEmptyTranscript
	}
	return Prompt{
		System: classificationSystemPrompt,
		Human:  transcript,
	}, nil
}

// Scoring composes the QA scoring prompt for an already-classified call.
// The scenario type is substituted into the rubric and routes the
// scenario addendum; unrecognized or UNKNOWN scenarios get no addendum.
func Scoring(transcript string, scenario model.ScenarioType) (Prompt, error) {
	if strings.TrimSpace(transcript) == "" {
		return Prompt{}, ErrEmptyTranscript
	}

	system := fmt.Sprintf(scoringSystemPrompt, scenario)
	if addendum := ScenarioAddendum(scenario); addendum != "" {
		system += "\n" + addendum
	}

	return Prompt{
		System: system,
		Human:  transcript,
	}, nil
}
