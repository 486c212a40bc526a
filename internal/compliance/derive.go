// Package compliance turns raw backend compliance output into a ComplianceSummary.
package compliance

import (
	"fmt"
	"strings"

	"github.com/alejor21/trabajo-final-IA/internal/models"
)

const (
	MessageAllCompliant = "Todo el personal cumple con el EPP requerido"
	MessageNonCompliant = "No se cumple con el EPP requerido"
)

// Derive maps a raw payload to a ComplianceSummary. It never fails: absent sections
// yield an unreported summary with an empty message and no missing entries.
// Entry order follows the input; entries without a valid person id are dropped and
// repeated ids are folded into their first occurrence.
func Derive(p Payload) models.ComplianceSummary {
	summary := models.ComplianceSummary{
		MissingItems: []models.MissingEntry{},
	}

	if p.Section != nil {
		if p.Section.Compliant != nil {
			summary.Reported = true
			summary.Compliant = *p.Section.Compliant
		}
		summary.Message = strings.TrimSpace(p.Section.Message)
		summary.MissingItems = entries(p.Section.MissingItems)
	}
	// Stats-level items stand in when the section yields no usable entry.
	if len(summary.MissingItems) == 0 {
		summary.MissingItems = entries(p.Items)
	}

	if len(summary.MissingItems) > 0 && !summary.Reported {
		summary.Compliant = false
	}
	if summary.Reported && summary.Message == "" {
		summary.Message = verdictMessage(summary)
	}
	return summary
}

func entries(items []MissingItem) []models.MissingEntry {
	out := make([]models.MissingEntry, 0, len(items))
	index := make(map[int]int, len(items))

	for _, item := range items {
		if item.PersonID == nil || *item.PersonID < 0 {
			continue
		}
		id := *item.PersonID

		pos, seen := index[id]
		if !seen {
			pos = len(out)
			index[id] = pos
			out = append(out, models.MissingEntry{PersonID: id, Missing: []string{}})
		}
		out[pos].Missing = appendUnique(out[pos].Missing, item.Missing)
	}
	return out
}

func appendUnique(dst, src []string) []string {
	for _, name := range src {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		dup := false
		for _, existing := range dst {
			if existing == name {
				dup = true
				break
			}
		}
		if !dup {
			dst = append(dst, name)
		}
	}
	return dst
}

func verdictMessage(s models.ComplianceSummary) string {
	switch {
	case s.Compliant:
		return MessageAllCompliant
	case len(s.MissingItems) == 1:
		return "1 persona sin EPP completo"
	case len(s.MissingItems) > 1:
		return fmt.Sprintf("%d personas sin EPP completo", len(s.MissingItems))
	default:
		return MessageNonCompliant
	}
}
