package logging

import "strings"

// FormatSubject builds the job/slot/stage prefix used in console output.
// Job IDs are shortened to their first eight characters.
func FormatSubject(jobID, slot, stage string) string {
	jobID = strings.TrimSpace(jobID)
	slot = strings.TrimSpace(slot)
	stage = strings.TrimSpace(stage)
	if len(jobID) > 8 {
		jobID = jobID[:8]
	}

	parts := make([]string, 0, 2)
	if jobID != "" {
		parts = append(parts, "Job "+jobID)
	}
	switch {
	case slot != "" && stage != "":
		parts = append(parts, "slot "+slot+" ("+stage+")")
	case slot != "":
		parts = append(parts, "slot "+slot)
	case stage != "":
		parts = append(parts, stage)
	}
	return strings.Join(parts, " · ")
}
