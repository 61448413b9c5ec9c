package model

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// ScoreLevel is a rubric sub-score on the three-point scale 0 / 0.5 / 1.
// The model is instructed to emit these as strings, but numeric JSON is
// accepted and normalized since providers occasionally emit numbers.
type ScoreLevel string

const (
	ScoreFail    ScoreLevel = "0"
	ScorePartial ScoreLevel = "0.5"
	ScoreFull    ScoreLevel = "1"
)

// Valid reports whether l is a defined score level. The empty string is
// allowed so omitted sub-scores survive validation (they count as 0).
func (l ScoreLevel) Valid() bool {
	switch l {
	case ScoreFail, ScorePartial, ScoreFull, "":
		return true
	}
	return false
}

// Value returns the numeric value of the level. Unset levels are 0.
func (l ScoreLevel) Value() float64 {
	switch l {
	case ScorePartial:
		return 0.5
	case ScoreFull:
		return 1
	}
	return 0
}

// UnmarshalJSON accepts "0", "0.5", "1" as strings or JSON numbers.
func (l *ScoreLevel) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	s = strings.Trim(s, `"`)
	if s == "" || s == "null" {
		*l = ""
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return eris.Errorf("invalid score level %q", s)
	}
	switch f {
	case 0:
		*l = ScoreFail
	case 0.5:
		*l = ScorePartial
	case 1:
		*l = ScoreFull
	default:
		return eris.Errorf("score level %v not in {0, 0.5, 1}", f)
	}
	return nil
}

// MarshalJSON always emits the canonical string form.
func (l ScoreLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(l))
}

// OpeningScore grades the call opening: greeting and identity checks.
type OpeningScore struct {
	GreetingScore                ScoreLevel       `json:"greeting_score"`
	GreetingEvidence             string           `json:"greeting_evidence,omitempty"`
	CustomerNameVerification     ComplianceStatus `json:"customer_name_verification,omitempty"`
	CustomerVerificationEvidence string           `json:"customer_verification_evidence,omitempty"`
	MandatoryInfoDisclosed       []string         `json:"mandatory_info_disclosed,omitempty"`
}

// CommunicationScore grades tone, pace, and language etiquette.
type CommunicationScore struct {
	VoiceToneScore         ScoreLevel `json:"voice_tone_score"`
	VoiceToneEvidence      string     `json:"voice_tone_evidence,omitempty"`
	SpeakingPaceScore      ScoreLevel `json:"speaking_pace_score"`
	SpeakingPaceEvidence   string     `json:"speaking_pace_evidence,omitempty"`
	LanguageEtiquetteScore ScoreLevel `json:"language_etiquette_score"`
	LanguageEvidence       string     `json:"language_evidence,omitempty"`
}

// NegotiationScore grades negotiation effectiveness. Only meaningful for
// PTP and REFUSE_TO_PAY calls; nil for TPC.
type NegotiationScore struct {
	NegotiationAttempts       int      `json:"negotiation_attempts"`
	SolutionsOffered          []string `json:"solutions_offered,omitempty"`
	PaymentCommitmentObtained bool     `json:"payment_commitment_obtained"`
	NegotiationEvidence       []string `json:"negotiation_evidence,omitempty"`
}

// KnockoutViolations records critical compliance failures. Any true flag
// means the call fails QA regardless of section scores.
type KnockoutViolations struct {
	UnauthorizedDisclosure bool     `json:"unauthorized_disclosure"`
	DisclosureEvidence     string   `json:"disclosure_evidence,omitempty"`
	PTPCheating            bool     `json:"ptp_cheating"`
	PTPCheatingEvidence    string   `json:"ptp_cheating_evidence,omitempty"`
	OtherViolations        []string `json:"other_violations,omitempty"`
}

// Any reports whether at least one knockout violation was flagged.
func (k KnockoutViolations) Any() bool {
	return k.UnauthorizedDisclosure || k.PTPCheating || len(k.OtherViolations) > 0
}

// Breakdown category keys used in QAScore.ScoreBreakdown.
const (
	BreakdownOpening       = "opening"
	BreakdownCommunication = "communication"
	BreakdownNegotiation   = "negotiation"
)

// QAScore is the full rubric scoring record for one (transcript,
// scenario) pair.
type QAScore struct {
	ScenarioType       ScenarioType       `json:"scenario_type"`
	OpeningScore       OpeningScore       `json:"opening_score"`
	CommunicationScore CommunicationScore `json:"communication_score"`
	NegotiationScore   *NegotiationScore  `json:"negotiation_score,omitempty"`
	KnockoutViolations KnockoutViolations `json:"knockout_violations"`
	TotalScore         float64            `json:"total_score"`
	ScoreBreakdown     map[string]float64 `json:"score_breakdown,omitempty"`
	ImprovementAreas   []string           `json:"improvement_areas,omitempty"`
	EvidenceHighlights []string           `json:"evidence_highlights,omitempty"`
}

// ApplyDefaults fills schema defaults on a freshly parsed QAScore.
func (q *QAScore) ApplyDefaults() {
	if q.ScenarioType == "" {
		q.ScenarioType = ScenarioUnknown
	}
}

// Validate range-checks the total and the closed-set fields.
func (q *QAScore) Validate() error {
	if !q.ScenarioType.Valid() {
		return eris.Errorf("scenario_type %q is not one of %v", q.ScenarioType, AllScenarioTypes())
	}
	if q.TotalScore < 0 || q.TotalScore > 1 || math.IsNaN(q.TotalScore) {
		return eris.Errorf("total_score %v outside [0, 1]", q.TotalScore)
	}
	if !q.OpeningScore.GreetingScore.Valid() {
		return eris.Errorf("greeting_score %q not in {0, 0.5, 1}", q.OpeningScore.GreetingScore)
	}
	if !q.OpeningScore.CustomerNameVerification.Valid() {
		return eris.Errorf("customer_name_verification %q is not a compliance status", q.OpeningScore.CustomerNameVerification)
	}
	for name, lvl := range map[string]ScoreLevel{
		"voice_tone_score":         q.CommunicationScore.VoiceToneScore,
		"speaking_pace_score":      q.CommunicationScore.SpeakingPaceScore,
		"language_etiquette_score": q.CommunicationScore.LanguageEtiquetteScore,
	} {
		if !lvl.Valid() {
			return eris.Errorf("%s %q not in {0, 0.5, 1}", name, lvl)
		}
	}
	for key := range q.ScoreBreakdown {
		switch key {
		case BreakdownOpening, BreakdownCommunication, BreakdownNegotiation:
		default:
			return eris.Errorf("unexpected score_breakdown key %q", key)
		}
	}
	return nil
}
