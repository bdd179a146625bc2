// internal/orchestrator/router.go
package orchestrator

import "regexp"

// exitIntentMaxLen bounds exit-intent matching to short messages. A long
// message that happens to contain "stop" is a real request, not an exit.
const exitIntentMaxLen = 100

var exitIntentRe = regexp.MustCompile(`(?i)\b(cancel|stop|quit|exit|back|go back|never ?mind|forget it|leave|i'?m done|that'?s enough)\b`)

// ExitIntent reports whether a short message asks to leave the active
// specialist's flow and return to the chief of staff.
func ExitIntent(text string) bool {
	if len(text) > exitIntentMaxLen {
		return false
	}
	return exitIntentRe.MatchString(text)
}

// handoffRe matches the delegation marker a specialist's first reply is
// wrapped in: [AGENT_HANDOFF:<name>:<step>].
var handoffRe = regexp.MustCompile(`\[AGENT_HANDOFF:([a-zA-Z0-9_-]+):([^\]]*)\]`)

// ParseHandoff extracts the specialist name and declared step from a
// delegation result, returning the result with the marker stripped.
func ParseHandoff(result string) (name, step, stripped string, ok bool) {
	m := handoffRe.FindStringSubmatch(result)
	if m == nil {
		return "", "", result, false
	}
	stripped = handoffRe.ReplaceAllString(result, "")
	return m[1], m[2], stripped, true
}
