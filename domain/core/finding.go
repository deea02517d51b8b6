package core

import "fmt"

// Severity classifies a validation finding
type Severity string

const (
	SeverityBlocking Severity = "blocking"
	SeverityAdvisory Severity = "advisory"
)

// FindingCode identifies a class of validation finding
type FindingCode string

const (
	// Structural codes (decision tree / weight map shape)
	CodeWeightSumInvalid     FindingCode = "WEIGHT_SUM_INVALID"
	CodeConditionUnparseable FindingCode = "CONDITION_UNPARSEABLE"
	CodeAssetNotDeclared     FindingCode = "ASSET_NOT_DECLARED"
	CodeMissingField         FindingCode = "MISSING_REQUIRED_FIELD"

	// Semantic codes
	CodeMissingLogicTree      FindingCode = "MISSING_LOGIC_TREE"
	CodeFrequencyMismatch     FindingCode = "FREQUENCY_MISMATCH"
	CodeConcentrationHigh     FindingCode = "CONCENTRATION_HIGH"
	CodeMissingQuantification FindingCode = "MISSING_QUANTIFICATION"

	// External-call codes
	CodeGenerationFailed   FindingCode = "GENERATION_FAILED"
	CodeGenerationTimeout  FindingCode = "GENERATION_TIMEOUT"
	CodeDeploymentRejected FindingCode = "DEPLOYMENT_REJECTED"
)

// Finding is a single validation result for an artifact. Findings are
// immutable once emitted; a new validation pass produces a fresh set.
type Finding struct {
	ArtifactID ArtifactID  `json:"artifact_id"`
	Severity   Severity    `json:"severity"`
	Code       FindingCode `json:"code"`
	Message    string      `json:"message"`
}

func (f Finding) String() string {
	return fmt.Sprintf("[%s] %s: %s", f.Severity, f.Code, f.Message)
}

// IsBlocking reports whether the finding must be resolved before progression
func (f Finding) IsBlocking() bool {
	return f.Severity == SeverityBlocking
}

// Blocking creates a blocking finding
func Blocking(artifactID ArtifactID, code FindingCode, format string, args ...interface{}) Finding {
	return Finding{
		ArtifactID: artifactID,
		Severity:   SeverityBlocking,
		Code:       code,
		Message:    fmt.Sprintf(format, args...),
	}
}

// Advisory creates an advisory finding
func Advisory(artifactID ArtifactID, code FindingCode, format string, args ...interface{}) Finding {
	return Finding{
		ArtifactID: artifactID,
		Severity:   SeverityAdvisory,
		Code:       code,
		Message:    fmt.Sprintf(format, args...),
	}
}

// HasBlocking reports whether any finding in the set is blocking
func HasBlocking(findings []Finding) bool {
	for _, f := range findings {
		if f.IsBlocking() {
			return true
		}
	}
	return false
}

// BlockingOnly filters the set down to blocking findings
func BlockingOnly(findings []Finding) []Finding {
	var out []Finding
	for _, f := range findings {
		if f.IsBlocking() {
			out = append(out, f)
		}
	}
	return out
}

// AdvisoryOnly filters the set down to advisory findings
func AdvisoryOnly(findings []Finding) []Finding {
	var out []Finding
	for _, f := range findings {
		if !f.IsBlocking() {
			out = append(out, f)
		}
	}
	return out
}

// Codes extracts the finding codes in emission order
func Codes(findings []Finding) []FindingCode {
	out := make([]FindingCode, 0, len(findings))
	for _, f := range findings {
		out = append(out, f.Code)
	}
	return out
}
