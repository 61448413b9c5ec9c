package analyzer

import (
	"math"

	"github.com/kolektra/callqa/internal/config"
	"github.com/kolektra/callqa/internal/model"
)

// Normalize post-processes a decoded QAScore in place and returns it.
// An empty breakdown is zero-filled with the three category keys so
// downstream consumers can index without nil checks. The optional
// strict-totals and knockout-override passes run after that, in this
// order, so an override wins over a recomputed total.
func Normalize(q *model.QAScore, cfg config.ScoringConfig) *model.QAScore {
	if q == nil {
		return nil
	}

	if len(q.ScoreBreakdown) == 0 {
		q.ScoreBreakdown = map[string]float64{
			model.BreakdownOpening:       0,
			model.BreakdownCommunication: 0,
			model.BreakdownNegotiation:   0,
		}
	}

	if cfg.StrictTotals {
		q.ScoreBreakdown = SectionScores(q, cfg.Weights)
		var total float64
		for _, v := range q.ScoreBreakdown {
			total += v
		}
		q.TotalScore = clamp01(total)
	}

	if cfg.KnockoutOverride && q.KnockoutViolations.Any() {
		q.TotalScore = clamp01(cfg.KnockoutScore)
	}

	return q
}

// SectionScores recomputes the weighted category scores from the
// component fields. Negotiation only counts for PTP and REFUSE_TO_PAY
// calls; TPC and UNKNOWN get a zero negotiation entry.
func SectionScores(q *model.QAScore, w config.Weights) map[string]float64 {
	verification := 0.0
	if q.OpeningScore.CustomerNameVerification == model.ComplianceCompliant {
		verification = 1
	}
	opening := (q.OpeningScore.GreetingScore.Value() + verification) / 2 * w.Opening

	communication := (q.CommunicationScore.VoiceToneScore.Value() +
		q.CommunicationScore.SpeakingPaceScore.Value() +
		q.CommunicationScore.LanguageEtiquetteScore.Value()) / 3 * w.Communication

	negotiation := 0.0
	if q.NegotiationScore != nil && negotiationApplies(q.ScenarioType) {
		commitment := 0.0
		if q.NegotiationScore.PaymentCommitmentObtained {
			commitment = 1
		}
		// Each solution offered and each attempt is worth 0.2, capped at 1.
		solutions := math.Min(float64(len(q.NegotiationScore.SolutionsOffered))*0.2, 1)
		attempts := math.Min(float64(q.NegotiationScore.NegotiationAttempts)*0.2, 1)
		negotiation = (commitment + solutions + attempts) / 3 * w.Negotiation
	}

	return map[string]float64{
		model.BreakdownOpening:       opening,
		model.BreakdownCommunication: communication,
		model.BreakdownNegotiation:   negotiation,
	}
}

func negotiationApplies(s model.ScenarioType) bool {
	return s == model.ScenarioPTP || s == model.ScenarioRefuseToPay
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
