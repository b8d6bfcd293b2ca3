package cdshooks

// OperationOutcome is the FHIR error body returned by the CDS Hooks surface.
type OperationOutcome struct {
	ResourceType string                  `json:"resourceType"`
	Issue        []OperationOutcomeIssue `json:"issue"`
}

type OperationOutcomeIssue struct {
	Severity    string   `json:"severity"`
	Code        string   `json:"code"`
	Diagnostics string   `json:"diagnostics,omitempty"`
	Expression  []string `json:"expression,omitempty"`
}

func NewOperationOutcome(severity, code, diagnostics string) *OperationOutcome {
	return &OperationOutcome{
		ResourceType: "OperationOutcome",
		Issue: []OperationOutcomeIssue{
			{
				Severity:    severity,
				Code:        code,
				Diagnostics: diagnostics,
			},
		},
	}
}

func ErrorOutcome(diagnostics string) *OperationOutcome {
	return NewOperationOutcome("error", "processing", diagnostics)
}

// InvalidOutcome reports a rejected input, naming the offending element.
func InvalidOutcome(expression, diagnostics string) *OperationOutcome {
	o := NewOperationOutcome("error", "invalid", diagnostics)
	if expression != "" {
		o.Issue[0].Expression = []string{expression}
	}
	return o
}

func NotFoundOutcome(kind, id string) *OperationOutcome {
	return NewOperationOutcome("error", "not-found", kind+"/"+id+" not found")
}

func InternalErrorOutcome(diagnostics string) *OperationOutcome {
	return NewOperationOutcome("fatal", "exception", diagnostics)
}
