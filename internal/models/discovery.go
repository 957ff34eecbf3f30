package models

// MxResult is the outcome of one MX lookup. Transient marks failures worth retrying later.
type MxResult struct {
	Hosts     []string
	Err       error
	Transient bool
}

const TemplateSourceHeuristic = "heuristic"

// TemplateResult is a resolved settings template and the candidate it came from.
type TemplateResult struct {
	Settings ConnectionSettings
	Source   string
}
