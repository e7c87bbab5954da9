package auth

import (
	"strconv"
	"time"
)

// HoneypotVerdict classifies a honeypot inspection.
type HoneypotVerdict int

const (
	// HoneypotClean means the trap field was empty.
	HoneypotClean HoneypotVerdict = iota
	// HoneypotSuspect means the trap was filled but timing suggests a
	// human (browser autofill); allow through with a soft log.
	HoneypotSuspect
	// HoneypotBot means the trap was filled with a non-autofill value
	// and the form came back faster than a human can type.
	HoneypotBot
)

// accidentalAutofillValues are artifacts that broken page scripts write
// into hidden fields; their presence alone does not condemn the request.
// Deliberate fills like "on" or "1" are not on this list.
var accidentalAutofillValues = map[string]bool{
	"undefined":       true,
	"null":            true,
	"NaN":             true,
	"[object Object]": true,
}

// Honeypot inspects the invisible trap field and render-timestamp pair
// submitted with every login form.
type Honeypot struct {
	minHumanDelay time.Duration
}

// NewHoneypot creates a honeypot checker with the given minimum
// human-response threshold.
func NewHoneypot(minHumanDelay time.Duration) *Honeypot {
	return &Honeypot{minHumanDelay: minHumanDelay}
}

// Inspect evaluates a submitted honeypot value against the elapsed time
// since the form was rendered. renderedAt is the unix timestamp issued
// with the form; an unparseable timestamp counts as zero elapsed time.
func (h *Honeypot) Inspect(value, renderedAt string, now time.Time) HoneypotVerdict {
	if value == "" {
		return HoneypotClean
	}

	if accidentalAutofillValues[value] {
		return HoneypotSuspect
	}

	elapsed := time.Duration(0)
	if ts, err := strconv.ParseInt(renderedAt, 10, 64); err == nil && ts > 0 {
		elapsed = now.Sub(time.Unix(ts, 0))
	}

	if elapsed < h.minHumanDelay {
		return HoneypotBot
	}
	return HoneypotSuspect
}
