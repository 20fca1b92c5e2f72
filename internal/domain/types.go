// Package domain defines the core types for the negotiation recalculation service.
package domain

// Party is a negotiating party suggested during case intake.
type Party struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Case is the root aggregate: the case text and every artifact derived from it.
type Case struct {
	ID               string           `json:"id"`
	Content          string           `json:"content"`
	SuggestedParties []Party          `json:"suggestedParties"`
	Analysis         *Analysis        `json:"analysis,omitempty"`
	Scenarios        []Scenario       `json:"scenarios"`
	RiskAssessments  []RiskAssessment `json:"riskAssessments"`
}

// Analysis is generated once per case and regenerated when the case text changes.
type Analysis struct {
	Summary    string      `json:"summary"`
	IOA        string      `json:"ioa"`
	Iceberg    string      `json:"iceberg"`
	Components []Component `json:"components"`
}

// Component is a single negotiable issue with per-party positions.
type Component struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	Priority         int    `json:"priority"`
	RedlineParty1    string `json:"redlineParty1"`
	BottomlineParty1 string `json:"bottomlineParty1"`
	RedlineParty2    string `json:"redlineParty2"`
	BottomlineParty2 string `json:"bottomlineParty2"`
}

// ScenarioType places a scenario on the spectrum from party 1's redline to party 2's.
type ScenarioType string

const (
	ScenarioRedlineP1    ScenarioType = "redline_violated_p1"
	ScenarioBottomlineP1 ScenarioType = "bottomline_violated_p1"
	ScenarioAgreement    ScenarioType = "agreement_area"
	ScenarioBottomlineP2 ScenarioType = "bottomline_violated_p2"
	ScenarioRedlineP2    ScenarioType = "redline_violated_p2"
)

// ScenarioTypes lists the spectrum in display order.
var ScenarioTypes = []ScenarioType{
	ScenarioRedlineP1,
	ScenarioBottomlineP1,
	ScenarioAgreement,
	ScenarioBottomlineP2,
	ScenarioRedlineP2,
}

// Valid reports whether t is one of the five spectrum values.
func (t ScenarioType) Valid() bool {
	for _, s := range ScenarioTypes {
		if s == t {
			return true
		}
	}
	return false
}

// MaxScenariosPerComponent caps the scenarios kept for one component.
const MaxScenariosPerComponent = 5

// Scenario is one hypothetical outcome for a component.
type Scenario struct {
	ID          string       `json:"id"`
	ComponentID string       `json:"componentId"`
	Type        ScenarioType `json:"type"`
	Description string       `json:"description"`
}

// RiskHorizon holds the impact analysis for one time horizon.
type RiskHorizon struct {
	Impact              string `json:"impact"`
	Mitigation          string `json:"mitigation"`
	RiskAfterMitigation int    `json:"riskAfterMitigation"`
}

// RiskAssessment evaluates the risk of one scenario.
type RiskAssessment struct {
	ID         string      `json:"id"`
	ScenarioID string      `json:"scenarioId"`
	Category   string      `json:"category"`
	ShortTerm  RiskHorizon `json:"shortTerm"`
	LongTerm   RiskHorizon `json:"longTerm"`
	Overall    string      `json:"overallAssessment,omitempty"`
}

// ArtifactKind names a derived artifact tracked for freshness.
type ArtifactKind string

const (
	KindCase            ArtifactKind = "case"
	KindAnalysis        ArtifactKind = "analysis"
	KindScenarios       ArtifactKind = "scenarios"
	KindRiskAssessments ArtifactKind = "riskAssessments"
)

// RecalculationStatus records, per downstream kind, whether cached content
// is consistent with its upstream input.
type RecalculationStatus struct {
	AnalysisRecalculated        bool `json:"analysisRecalculated"`
	ScenariosRecalculated       bool `json:"scenariosRecalculated"`
	RiskAssessmentsRecalculated bool `json:"riskAssessmentsRecalculated"`
}

// FreshStatus is the status of a case whose artifacts all reflect their inputs.
func FreshStatus() RecalculationStatus {
	return RecalculationStatus{
		AnalysisRecalculated:        true,
		ScenariosRecalculated:       true,
		RiskAssessmentsRecalculated: true,
	}
}

// MutationKind classifies a store mutation for freshness tracking.
type MutationKind string

const (
	MutationCaseReplaced         MutationKind = "case_replaced"
	MutationCaseContent          MutationKind = "case_content"
	MutationAnalysis             MutationKind = "analysis"
	MutationComponents           MutationKind = "components"
	MutationScenarioDescription  MutationKind = "scenario_description"
	MutationScenariosRegenerated MutationKind = "scenarios_regenerated"
	MutationRiskAssessments      MutationKind = "risk_assessments"
)

// Mutation describes one write applied by the store.
type Mutation struct {
	Kind   MutationKind
	CaseID string
	UnitID string
}

// HealthStatus is the backend's self-reported health.
type HealthStatus struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// Healthy reports whether the backend and every listed service are up.
func (h HealthStatus) Healthy() bool {
	if h.Status != "ok" {
		return false
	}
	for _, s := range h.Services {
		if s != "connected" {
			return false
		}
	}
	return true
}

// GenerationEvent is an entry in the per-case generation log.
type GenerationEvent struct {
	ID          int64        `json:"id"`
	CaseID      string       `json:"caseId"`
	SeqNo       int64        `json:"seqNo"`
	Kind        ArtifactKind `json:"kind"`
	UnitID      string       `json:"unitId"`
	EventType   string       `json:"eventType"`
	PayloadJSON string       `json:"payload"`
	CreatedAt   int64        `json:"createdAt"`
}

// CaseSnapshot captures an artifact collection before it is overwritten.
type CaseSnapshot struct {
	ID           int64        `json:"id"`
	CaseID       string       `json:"caseId"`
	Kind         ArtifactKind `json:"kind"`
	UnitID       string       `json:"unitId"`
	SnapshotJSON string       `json:"snapshot"`
	Checksum     string       `json:"checksum"`
	CreatedAt    int64        `json:"createdAt"`
}

// AuditRecord logs user-visible destructive actions.
type AuditRecord struct {
	ID           string `json:"id"`
	CaseID       string `json:"caseId"`
	Category     string `json:"category"`
	Actor        string `json:"actor"`
	Action       string `json:"action"`
	RequestJSON  string `json:"request"`
	DecisionJSON string `json:"decision"`
	Severity     string `json:"severity"`
	CreatedAt    int64  `json:"createdAt"`
}

// Audited actions.
const (
	AuditDeleteComponent  = "delete_component"
	AuditAcceptOverwrite  = "accept_overwrite"
	AuditDeclineOverwrite = "decline_overwrite"
	AuditThrottled        = "deny"
)

// AuditSummary counts a case's audit records.
type AuditSummary struct {
	CaseID     string         `json:"caseId"`
	Total      int            `json:"total"`
	ByAction   map[string]int `json:"byAction"`
	BySeverity map[string]int `json:"bySeverity"`
}

// CaseDocument is a persisted case owned by a user.
type CaseDocument struct {
	UserID        string              `json:"userId"`
	Case          Case                `json:"case"`
	Status        RecalculationStatus `json:"status"`
	Version       int64               `json:"version"`
	UpdatedAtUnix int64               `json:"updatedAt"`
}
