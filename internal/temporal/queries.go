package temporal

const SweepProgressQueryName = "sweepProgress"

// SweepProgress is what a running RepairSweepWorkflow reports when queried.
type SweepProgress struct {
	Total    int `json:"total"`
	Visited  int `json:"visited"`
	Repaired int `json:"repaired"`
	Failed   int `json:"failed"`
}
