package eval

import "strings"

// ParseGroundTruth parses an ordered relevance list from the training
// data. Two shapes occur in the wild: a semicolon-joined list
// ("BEV_001;BEV_002") and a bracketed, quoted list
// ("['BEV_001', 'BEV_002']"). Anything unparseable yields an empty
// list rather than an error so one bad row never aborts a batch run.
func ParseGroundTruth(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	sep := ";"
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		s = strings.TrimSuffix(strings.TrimPrefix(s, "["), "]")
		sep = ","
	}

	parts := strings.Split(s, sep)
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), `'"`)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
