package model

import "github.com/rotisserie/eris"

// DefaultCurrency is assumed for amounts mentioned without an explicit
// currency. All calls handled by this system are Indonesian collections.
const DefaultCurrency = "IDR"

// Amount is a monetary figure mentioned during a call. Repeated mentions
// of the same figure are distinct entries.
type Amount struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
	Type     string  `json:"type,omitempty"` // e.g. "installment", "penalty", "total_due"
}

// BasicCallInfo holds the scenario classification and metadata extracted
// from a transcript.
type BasicCallInfo struct {
	AgentName            string       `json:"agent_name,omitempty"`
	CustomerName         string       `json:"customer_name,omitempty"`
	ScenarioType         ScenarioType `json:"scenario_type"`
	ClassificationReason string       `json:"classification_reason,omitempty"`
	CallDuration         string       `json:"call_duration,omitempty"`
	AmountsMentioned     []Amount     `json:"amounts_mentioned,omitempty"`
	PaymentDateMentioned string       `json:"payment_date_mentioned,omitempty"`
}

// PTPDetails captures a promise-to-pay commitment.
type PTPDetails struct {
	PromisedDate        string   `json:"promised_date,omitempty"`
	PromisedAmount      *Amount  `json:"promised_amount,omitempty"`
	NegotiationAttempts int      `json:"negotiation_attempts,omitempty"`
	CommitmentStrength  string   `json:"commitment_strength,omitempty"` // strong, medium, weak
	CommitmentPhrases   []string `json:"commitment_phrases,omitempty"`
}

// RefuseDetails captures a refusal to pay and its stated cause.
type RefuseDetails struct {
	Reason             string   `json:"reason,omitempty"`
	CustomerSituation  string   `json:"customer_situation,omitempty"`
	RefusalType        string   `json:"refusal_type,omitempty"` // explicit or implicit
	SolutionsDiscussed []string `json:"solutions_discussed,omitempty"`
}

// TPCDetails captures a third-party contact.
type TPCDetails struct {
	RelationshipToCustomer string   `json:"relationship_to_customer,omitempty"`
	MessageDelivered       bool     `json:"message_delivered,omitempty"`
	VerificationAttempt    bool     `json:"verification_attempt,omitempty"`
	AlternativeContacts    []string `json:"alternative_contacts,omitempty"`
}

// CallData is the full classification result for one transcript. At most
// one detail variant is populated, and it must match the scenario type.
// Rebuilt, never mutated, when a transcript is re-analyzed.
type CallData struct {
	BasicInfo     BasicCallInfo  `json:"basic_info"`
	PTPDetails    *PTPDetails    `json:"ptp_details,omitempty"`
	RefuseDetails *RefuseDetails `json:"refuse_details,omitempty"`
	TPCDetails    *TPCDetails    `json:"tpc_details,omitempty"`
	CallSummary   string         `json:"call_summary,omitempty"`
}

// ApplyDefaults fills schema defaults on a freshly parsed CallData:
// UNKNOWN scenario when absent, IDR on amounts without a currency.
func (c *CallData) ApplyDefaults() {
	if c.BasicInfo.ScenarioType == "" {
		c.BasicInfo.ScenarioType = ScenarioUnknown
	}
	for i := range c.BasicInfo.AmountsMentioned {
		if c.BasicInfo.AmountsMentioned[i].Currency == "" {
			c.BasicInfo.AmountsMentioned[i].Currency = DefaultCurrency
		}
	}
	if c.PTPDetails != nil && c.PTPDetails.PromisedAmount != nil && c.PTPDetails.PromisedAmount.Currency == "" {
		c.PTPDetails.PromisedAmount.Currency = DefaultCurrency
	}
}

// Validate enforces the closed scenario enum and the one-of detail
// constraint: at most one variant set, and only the one selected by
// scenario_type. UNKNOWN calls carry no variant.
func (c *CallData) Validate() error {
	st := c.BasicInfo.ScenarioType
	if !st.Valid() {
		return eris.Errorf("scenario_type %q is not one of %v", st, AllScenarioTypes())
	}

	populated := 0
	if c.PTPDetails != nil {
		populated++
	}
	if c.RefuseDetails != nil {
		populated++
	}
	if c.TPCDetails != nil {
		populated++
	}
	if populated > 1 {
		return eris.Errorf("%d detail variants populated, want at most one", populated)
	}

	switch {
	case c.PTPDetails != nil && st != ScenarioPTP:
		return eris.Errorf("ptp_details populated but scenario_type is %s", st)
	case c.RefuseDetails != nil && st != ScenarioRefuseToPay:
		return eris.Errorf("refuse_details populated but scenario_type is %s", st)
	case c.TPCDetails != nil && st != ScenarioTPC:
		return eris.Errorf("tpc_details populated but scenario_type is %s", st)
	}

	return nil
}
