package prompt

import "github.com/kolektra/callqa/internal/model"

// scoringSystemPrompt is the QA rubric instruction. The scenario type is
// substituted twice (%[1]s). The category weights in the guidelines are
// advisory text for the model; deterministic recomputation lives in the
// normalizer behind a config flag.
const scoringSystemPrompt = `You are an expert QA analyst for collection call centers, specializing in evaluating agent performance based on strict QA criteria. Your task is to analyze a call transcript and extract detailed scoring information.

Context: The call has already been classified as %[1]s. You will evaluate the call based on the appropriate QA form criteria for this scenario type.

Required Output Format:
The output should be a JSON object matching the following structure example:
{
    "scenario_type": "%[1]s",
    "opening_score": {
        "greeting_score": "0|0.5|1",
        "greeting_evidence": "exact quote from transcript",
        "customer_name_verification": "COMPLIANT|NON_COMPLIANT|NOT_APPLICABLE",
        "customer_verification_evidence": "exact quote or null",
        "mandatory_info_disclosed": ["list of disclosed items"]
    },
    "communication_score": {
        "voice_tone_score": "0|0.5|1",
        "voice_tone_evidence": "evidence or null",
        "speaking_pace_score": "0|0.5|1",
        "speaking_pace_evidence": "evidence or null",
        "language_etiquette_score": "0|0.5|1",
        "language_evidence": "evidence or null"
    },
    "negotiation_score": {
        "negotiation_attempts": 0,
        "solutions_offered": ["list of solutions"],
        "payment_commitment_obtained": false,
        "negotiation_evidence": ["key phrases"]
    },
    "knockout_violations": {
        "unauthorized_disclosure": false,
        "disclosure_evidence": "evidence or null",
        "ptp_cheating": false,
        "ptp_cheating_evidence": "evidence or null",
        "other_violations": ["list of violations"]
    },
    "total_score": 0.0,
    "score_breakdown": {
        "opening": 0.0,
        "communication": 0.0,
        "negotiation": 0.0
    },
    "improvement_areas": ["list of areas"],
    "evidence_highlights": ["list of key evidence"]
}

Evaluation Guidelines:

1. Opening Section (6%% weight):
- Listen for proper greeting, agent name, and company name
- Verify correct customer name usage
- Check for mandatory information disclosure
- Score: 0 (non-compliant), 0.5 (standard), 1 (strong)

2. Communication Skills (25%% total weight):
- Voice tone (6%%): Energy, professionalism, confidence
- Speaking pace (6%%): Clear articulation, appropriate speed
- Language etiquette (13%%): Politeness, appropriate phrases
- Score each component: 0 (poor), 0.5 (acceptable), 1 (excellent)

3. Negotiation Skills (40%% total weight, for PTP/RTP):
- Track negotiation attempts
- Document solutions offered
- Verify payment commitments
- Evaluate effectiveness: 0 (ineffective), 0.5 (moderate), 1 (highly effective)

4. Knockout Criteria (Immediate Fail):
- Information disclosure to unauthorized parties
- PTP cheating
- Policy violations
- Document any violations with specific evidence

total_score must be a number between 0 and 1.

Analyze the transcript and provide a complete evaluation following the exact structure shown above.`

const ptpAddendum = `Additional PTP Criteria:
- Focus on commitment clarity
- Verify payment amount and date
- Check for proper confirmation
- Evaluate follow-up scheduling`

const refuseAddendum = `Additional RTP Criteria:
- Evaluate reason documentation
- Check solution exploration
- Assess escalation handling
- Monitor professional persistence`

const tpcAddendum = `Additional TPC Criteria:
- Verify relationship confirmation
- Check information protection
- Evaluate message clarity
- Assess contact information gathering`

// ScenarioAddendum returns the scenario-specific rubric addendum, keyed
// by exact scenario match. UNKNOWN and out-of-set values return the
// empty string: a documented fallback, not an error.
func ScenarioAddendum(scenario model.ScenarioType) string {
	switch scenario {
	case model.ScenarioPTP:
		return ptpAddendum
	case model.ScenarioRefuseToPay:
		return refuseAddendum
	case model.ScenarioTPC:
		return tpcAddendum
	}
	return ""
}
