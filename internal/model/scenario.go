package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// ScenarioType classifies a collection call into one of four scenarios.
type ScenarioType string

const (
	// ScenarioPTP is a promise-to-pay call: the customer commits to a
	// payment date and amount.
	ScenarioPTP ScenarioType = "PTP"
	// ScenarioRefuseToPay is a call where the customer states they cannot
	// or will not pay.
	ScenarioRefuseToPay ScenarioType = "REFUSE_TO_PAY"
	// ScenarioTPC is a third-party contact: the agent reached someone
	// other than the customer.
	ScenarioTPC ScenarioType = "TPC"
	// ScenarioUnknown is assigned when the transcript gives no clear
	// evidence for any of the other scenarios.
	ScenarioUnknown ScenarioType = "UNKNOWN"
)

// AllScenarioTypes returns every valid scenario type.
func AllScenarioTypes() []ScenarioType {
	return []ScenarioType{
		ScenarioPTP,
		ScenarioRefuseToPay,
		ScenarioTPC,
		ScenarioUnknown,
	}
}

// Valid reports whether s is one of the four defined scenario types.
func (s ScenarioType) Valid() bool {
	switch s {
	case ScenarioPTP, ScenarioRefuseToPay, ScenarioTPC, ScenarioUnknown:
		return true
	}
	return false
}

// ParseScenarioType parses a scenario type string strictly. Unlike model
// output parsing (which falls back to UNKNOWN), this is for operator
// input and rejects anything outside the closed set.
func ParseScenarioType(s string) (ScenarioType, error) {
	st := ScenarioType(strings.ToUpper(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", eris.Errorf("unknown scenario type: %q", s)
	}
	return st, nil
}

// ComplianceStatus is the tri-state outcome of a compliance check.
type ComplianceStatus string

const (
	ComplianceCompliant     ComplianceStatus = "COMPLIANT"
	ComplianceNonCompliant  ComplianceStatus = "NON_COMPLIANT"
	ComplianceNotApplicable ComplianceStatus = "NOT_APPLICABLE"
)

// Valid reports whether c is a defined compliance status. The empty
// string is allowed so omitted fields survive validation.
func (c ComplianceStatus) Valid() bool {
	switch c {
	case ComplianceCompliant, ComplianceNonCompliant, ComplianceNotApplicable, "":
		return true
	}
	return false
}
