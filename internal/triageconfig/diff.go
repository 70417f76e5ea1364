package triageconfig

import "strings"

// Diff summarizes the line-level difference between two config documents.
// Added and Removed are capped by the caller-facing handler.
type Diff struct {
	Added        []string `json:"added"`
	Removed      []string `json:"removed"`
	TotalLinesV1 int      `json:"total_lines_v1"`
	TotalLinesV2 int      `json:"total_lines_v2"`
}

// DiffContents compares two documents as line multisets: a line counts as
// added or removed by the change in how many times it occurs. Moves within
// the document do not show up, which is adequate for rule configs where
// ordering inside a chain rarely changes without content changing too.
func DiffContents(v1, v2 string) Diff {
	lines1 := splitLines(v1)
	lines2 := splitLines(v2)

	counts := make(map[string]int)
	for _, l := range lines1 {
		counts[l]++
	}

	d := Diff{
		Added:        []string{},
		Removed:      []string{},
		TotalLinesV1: len(lines1),
		TotalLinesV2: len(lines2),
	}

	for _, l := range lines2 {
		if counts[l] > 0 {
			counts[l]--
			continue
		}
		d.Added = append(d.Added, l)
	}
	for _, l := range lines1 {
		if counts[l] > 0 {
			counts[l]--
			d.Removed = append(d.Removed, l)
		}
	}
	return d
}

func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}
