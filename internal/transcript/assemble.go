// Package transcript assembles and normalizes recognized speech segments.
package transcript

import "strings"

// Append joins a newly finalized segment onto accumulated text with a single
// separating space.
func Append(accumulated, segment string) string {
	segment = strings.TrimSpace(segment)
	if segment == "" {
		return accumulated
	}
	if accumulated == "" {
		return segment + " "
	}
	return accumulated + segment + " "
}

// Combine merges finalized and pending text into the current visible transcript.
func Combine(finalized, pending string) string {
	return finalized + pending
}

// Final normalizes the combined transcript for storage: interior whitespace is
// squeezed and the result is trimmed.
func Final(finalized, pending string) string {
	joined := strings.Join(strings.Fields(Combine(finalized, pending)), " ")
	return strings.TrimSpace(joined)
}
