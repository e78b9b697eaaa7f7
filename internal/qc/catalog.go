package qc

import (
	"sort"
	"strings"
)

// Category names a set of sweep numbers used for filtered display. Categories
// overlap freely; a sweep may belong to several.
type Category string

const (
	CatAllSweeps Category = "all_sweeps"
	CatVClamp    Category = "v_clamp"
	CatIClamp    Category = "i_clamp"
	CatPipeline  Category = "pipeline"
	CatSearch    Category = "search"
	CatExTP      Category = "ex_tp"
	CatNucVC     Category = "nuc_vc"
	CatCoreOne   Category = "core_one"
	CatCoreTwo   Category = "core_two"
	CatUnknown   Category = "unknown"
	CatAutoPass  Category = "auto_pass"
	CatAutoFail  Category = "auto_fail"
	CatNoAutoQC  Category = "no_auto_qc"
)

// SweepSet is a set of sweep numbers.
type SweepSet map[int]bool

// Sorted returns the members of the set in increasing order.
func (s SweepSet) Sorted() []int {
	out := make([]int, 0, len(s))
	for n := range s {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// StimulusFamily resolves the canonical family label of a stimulus code.
// The tests run as a priority chain; the first match wins.
func StimulusFamily(code string) Category {
	switch {
	case strings.HasSuffix(code, "Search"):
		return CatSearch
	case strings.HasPrefix(code, "EXTP"):
		return CatExTP
	case strings.HasPrefix(code, "NucVC"):
		return CatNucVC
	case strings.HasPrefix(code, "X"):
		return CatCoreOne
	case strings.HasPrefix(code, "C"):
		return CatCoreTwo
	default:
		return CatUnknown
	}
}

// Catalog holds the derived category sets for one generation of reconciled
// sweeps. It is recomputed whenever reconciliation re-runs; it is never the
// authoritative copy of anything.
type Catalog struct {
	sets map[Category]SweepSet
}

// Classify derives every category set from the current records and states.
//
// Each sweep is tested independently against each rule. The stimulus-code
// convention rules place each sweep in exactly one canonical family (via
// StimulusFamily), but the search/ex_tp/nuc_vc memberships are additionally
// boolean tests on the raw code, so an ambiguous code such as "EXTPSearch"
// lands in more than one of them.
func Classify(records []SweepRecord, states []SweepAutoState) *Catalog {
	c := &Catalog{sets: map[Category]SweepSet{
		CatAllSweeps: {},
		CatVClamp:    {},
		CatIClamp:    {},
		CatPipeline:  {},
		CatSearch:    {},
		CatExTP:      {},
		CatNucVC:     {},
		CatCoreOne:   {},
		CatCoreTwo:   {},
		CatUnknown:   {},
		CatAutoPass:  {},
		CatAutoFail:  {},
		CatNoAutoQC:  {},
	}}

	for i := range records {
		rec := &records[i]
		num := rec.SweepNumber
		c.sets[CatAllSweeps][num] = true

		switch rec.ClampMode {
		case VoltageClamp:
			c.sets[CatVClamp][num] = true
		case CurrentClamp:
			c.sets[CatIClamp][num] = true
		}

		if rec.Passed != nil {
			c.sets[CatPipeline][num] = true
		}

		family := StimulusFamily(rec.StimulusCode)
		c.sets[family][num] = true
		if strings.HasSuffix(rec.StimulusCode, "Search") {
			c.sets[CatSearch][num] = true
		}
		if strings.HasPrefix(rec.StimulusCode, "EXTP") {
			c.sets[CatExTP][num] = true
		}
		if strings.HasPrefix(rec.StimulusCode, "NucVC") {
			c.sets[CatNucVC][num] = true
		}
	}

	for i := range states {
		st := &states[i]
		switch {
		case st.Passed == nil:
			c.sets[CatNoAutoQC][st.SweepNumber] = true
		case *st.Passed:
			c.sets[CatAutoPass][st.SweepNumber] = true
		default:
			c.sets[CatAutoFail][st.SweepNumber] = true
		}
	}

	return c
}

// Set returns the members of one category. The returned set is shared; do
// not mutate it.
func (c *Catalog) Set(cat Category) SweepSet {
	return c.sets[cat]
}

// Categories returns the name of every non-empty category for a sweep.
func (c *Catalog) Categories(sweep int) []Category {
	var out []Category
	for cat, set := range c.sets {
		if set[sweep] {
			out = append(out, cat)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Visible composes a display filter: the union of the checked category sets
// with the search sweeps always removed. Search sweeps are navigation aids,
// not data under review, so they never show regardless of which boxes are
// checked. With nothing checked the visible set is all sweeps minus search.
func (c *Catalog) Visible(checked ...Category) []int {
	union := SweepSet{}
	if len(checked) == 0 {
		union = c.sets[CatAllSweeps]
	} else {
		for _, cat := range checked {
			for n := range c.sets[cat] {
				union[n] = true
			}
		}
	}

	search := c.sets[CatSearch]
	visible := SweepSet{}
	for n := range union {
		if !search[n] {
			visible[n] = true
		}
	}
	return visible.Sorted()
}
