package metrics

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Format renders records in the Prometheus text exposition format. Records
// sharing a name are grouped in first-appearance order under a single HELP
// and TYPE header; label keys are emitted sorted so output is stable.
func Format(records []Record) string {
	if len(records) == 0 {
		return ""
	}

	order := make([]string, 0, len(records))
	groups := make(map[string][]Record, len(records))
	for _, r := range records {
		if _, seen := groups[r.Name]; !seen {
			order = append(order, r.Name)
		}
		groups[r.Name] = append(groups[r.Name], r)
	}

	var b strings.Builder
	for _, name := range order {
		group := groups[name]
		fmt.Fprintf(&b, "# HELP %s %s\n", name, group[0].Help)
		fmt.Fprintf(&b, "# TYPE %s %s\n", name, group[0].Type)
		for _, r := range group {
			writeSample(&b, r)
		}
	}
	return b.String()
}

func writeSample(b *strings.Builder, r Record) {
	b.WriteString(r.Name)
	if len(r.Labels) > 0 {
		keys := make([]string, 0, len(r.Labels))
		for k := range r.Labels {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(k)
			b.WriteString(`="`)
			b.WriteString(escapeLabelValue(r.Labels[k]))
			b.WriteByte('"')
		}
		b.WriteByte('}')
	}
	b.WriteByte(' ')
	b.WriteString(strconv.FormatFloat(r.Value, 'g', -1, 64))
	b.WriteByte('\n')
}

// escapeLabelValue escapes the characters the exposition format reserves in
// label values. Backslashes first so introduced escapes survive.
func escapeLabelValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	return strings.ReplaceAll(v, "\n", `\n`)
}
