package emu

// Stats holds the dynamic instruction counts of one call.
type Stats struct {
	DataProcessing uint64
	Memory         uint64
	Branch         uint64
	Total          uint64

	BranchTaken    uint64
	BranchNotTaken uint64
}

func (s *Stats) retireDataProcessing() {
	s.DataProcessing++
	s.Total++
}

func (s *Stats) retireMemory() {
	s.Memory++
	s.Total++
}

func (s *Stats) retireBranch(taken bool) {
	s.Branch++
	s.Total++
	if taken {
		s.BranchTaken++
	} else {
		s.BranchNotTaken++
	}
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.DataProcessing += other.DataProcessing
	s.Memory += other.Memory
	s.Branch += other.Branch
	s.Total += other.Total
	s.BranchTaken += other.BranchTaken
	s.BranchNotTaken += other.BranchNotTaken
}

// Percent returns n as a percentage of Total, or 0 for an empty run.
func (s Stats) Percent(n uint64) float64 {
	if s.Total == 0 {
		return 0
	}
	return 100 * float64(n) / float64(s.Total)
}
