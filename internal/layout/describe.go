package layout

import (
	"encoding/json"
	"fmt"
)

type describedPlan struct {
	Class any  `json:"class"`
	Plan  Plan `json:"plan"`
}

// Describe renders a layout as indented JSON with each plan tagged by its
// sheet class. Map keys marshal sorted, so the output is stable.
func Describe(l *Layout) ([]byte, error) {
	plans := make([]describedPlan, len(l.Plans))
	for i, p := range l.Plans {
		plans[i] = describedPlan{Class: p.Class(), Plan: p}
	}
	out := struct {
		Kind     any             `json:"kind"`
		Header   HeaderPlan      `json:"header"`
		Plans    []describedPlan `json:"plans"`
		Warnings any             `json:"warnings"`
	}{l.Kind, l.Header, plans, l.Warnings}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("describe layout: %w", err)
	}
	return append(b, '\n'), nil
}
