package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/sarchlab/armemu/cache"
	"github.com/sarchlab/armemu/emu"
)

// WriteStats prints the instruction mix of one call or of a whole run.
func WriteStats(w io.Writer, s emu.Stats) {
	_, _ = fmt.Fprintln(w, "Program Statistics:")
	_, _ = fmt.Fprintln(w, "-----------------------------------")
	_, _ = fmt.Fprintf(w, "Data-processing instructions: %d (%.1f%%)\n", s.DataProcessing, s.Percent(s.DataProcessing))
	_, _ = fmt.Fprintf(w, "Memory instructions:          %d (%.1f%%)\n", s.Memory, s.Percent(s.Memory))
	_, _ = fmt.Fprintf(w, "Branch instructions:          %d (%.1f%%)\n", s.Branch, s.Percent(s.Branch))
	_, _ = fmt.Fprintf(w, "Total instructions:           %d\n", s.Total)
	_, _ = fmt.Fprintf(w, "Branches taken:               %d\n", s.BranchTaken)
	_, _ = fmt.Fprintf(w, "Branches not taken:           %d\n", s.BranchNotTaken)
}

// WriteCacheStats prints cache hit and miss counts.
func WriteCacheStats(w io.Writer, s cache.Statistics) {
	_, _ = fmt.Fprintln(w, "Cache Statistics:")
	_, _ = fmt.Fprintln(w, "-----------------------------------")
	_, _ = fmt.Fprintf(w, "Hits:      %d (%.1f%%)\n", s.Hits, s.HitRate())
	_, _ = fmt.Fprintf(w, "Misses:    %d (%.1f%%)\n", s.Misses, s.MissRate())
	_, _ = fmt.Fprintf(w, "Evictions: %d\n", s.Evictions)
	_, _ = fmt.Fprintf(w, "Requests:  %d\n", s.Requests)
}

// WriteSlots prints the valid bit and tag of every slot.
func WriteSlots(w io.Writer, slots []cache.Slot) {
	for i, s := range slots {
		valid := 0
		if s.Valid {
			valid = 1
		}
		_, _ = fmt.Fprintf(w, "Slot[%d] v = %d tag = 0x%X\n", i, valid, s.Tag)
	}
}

// PrintResults prints every case, then the run totals. With verbose set,
// each case is followed by its own statistics.
func PrintResults(w io.Writer, report *Report, verbose bool) {
	_, _ = fmt.Fprintln(w, "=== armemu reference suite ===")
	_, _ = fmt.Fprintf(w, "cache: %d slots, keyed by %s; workers: %d\n\n",
		report.Config.CacheSize, report.Config.CacheKey, report.Config.Workers)

	for _, r := range report.Results {
		status := "ok"
		switch {
		case r.Err != nil:
			status = "FAULT"
		case !r.Passed():
			status = "MISMATCH"
		}

		_, _ = fmt.Fprintf(w, "%-8s %s\n", status, r.Case.Name())
		_, _ = fmt.Fprintf(w, "  native:   %d\n", r.Case.Expected)
		if r.Err != nil {
			_, _ = fmt.Fprintf(w, "  error:    %v\n", r.Err)
		} else {
			_, _ = fmt.Fprintf(w, "  emulated: %d\n", r.Got)
		}

		if verbose {
			_, _ = fmt.Fprintln(w)
			WriteStats(w, r.Stats)
			_, _ = fmt.Fprintf(w, "Wall time: %v\n", r.WallTime)
		}
		_, _ = fmt.Fprintln(w)
	}

	WriteStats(w, report.Totals)
	_, _ = fmt.Fprintln(w)
	WriteCacheStats(w, report.Cache)

	if report.Config.ShowSlots && report.Slots != nil {
		_, _ = fmt.Fprintln(w)
		WriteSlots(w, report.Slots)
	}

	failed := len(report.Failed())
	_, _ = fmt.Fprintf(w, "\n%d/%d cases passed\n", len(report.Results)-failed, len(report.Results))
}

// PrintCSV outputs one line per case.
func PrintCSV(w io.Writer, report *Report) {
	_, _ = fmt.Fprintln(w, "name,expected,got,passed,dp,mem,branch,total,taken,not_taken")

	for _, r := range report.Results {
		_, _ = fmt.Fprintf(w, "%q,%d,%d,%t,%d,%d,%d,%d,%d,%d\n",
			r.Case.Name(),
			r.Case.Expected,
			r.Got,
			r.Passed(),
			r.Stats.DataProcessing,
			r.Stats.Memory,
			r.Stats.Branch,
			r.Stats.Total,
			r.Stats.BranchTaken,
			r.Stats.BranchNotTaken,
		)
	}
}

type jsonResult struct {
	Name     string    `json:"name"`
	Expected int32     `json:"expected"`
	Got      int32     `json:"got"`
	Passed   bool      `json:"passed"`
	Error    string    `json:"error,omitempty"`
	Stats    emu.Stats `json:"stats"`
	WallTime int64     `json:"wall_time_ns"`
}

type jsonReport struct {
	Config  Config           `json:"config"`
	Results []jsonResult     `json:"results"`
	Totals  emu.Stats        `json:"totals"`
	Cache   cache.Statistics `json:"cache"`
	Slots   []jsonSlot       `json:"slots,omitempty"`
}

type jsonSlot struct {
	Valid bool   `json:"valid"`
	Tag   uint32 `json:"tag"`
}

// PrintJSON outputs the report as indented JSON.
func PrintJSON(w io.Writer, report *Report) error {
	out := jsonReport{
		Config:  report.Config,
		Results: make([]jsonResult, len(report.Results)),
		Totals:  report.Totals,
		Cache:   report.Cache,
	}
	for i, r := range report.Results {
		out.Results[i] = jsonResult{
			Name:     r.Case.Name(),
			Expected: r.Case.Expected,
			Got:      r.Got,
			Passed:   r.Passed(),
			Stats:    r.Stats,
			WallTime: r.WallTime.Nanoseconds(),
		}
		if r.Err != nil {
			out.Results[i].Error = r.Err.Error()
		}
	}

	if report.Config.ShowSlots {
		for _, slot := range report.Slots {
			out.Slots = append(out.Slots, jsonSlot{Valid: slot.Valid, Tag: slot.Tag})
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	return nil
}
