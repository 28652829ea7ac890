package roast

import "strings"

// Mode selects the reviewer persona.
type Mode int

const (
	ModeRoast Mode = iota
	ModeWaldorf
	ModeSerious
)

var modeNames = [...]string{"roast", "waldorf", "serious"}

// String returns the wire name of the mode.
func (m Mode) String() string {
	if m < 0 || int(m) >= len(modeNames) {
		return modeNames[ModeRoast]
	}
	return modeNames[m]
}

// ParseMode parses a mode name. Unknown names yield ModeRoast and false.
func ParseMode(s string) (Mode, bool) {
	for i, name := range modeNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return Mode(i), true
		}
	}
	return ModeRoast, false
}

// Severity selects how hard a roast hits.
type Severity int

const (
	SeverityNormal Severity = iota
	SeverityGentle
	SeverityBrutal
	SeverityUnhinged
)

var severityNames = [...]string{"normal", "gentle", "brutal", "unhinged"}

// String returns the wire name of the severity.
func (s Severity) String() string {
	if s < 0 || int(s) >= len(severityNames) {
		return severityNames[SeverityNormal]
	}
	return severityNames[s]
}

// ParseSeverity parses a severity name. Unknown names yield SeverityNormal
// and false.
func ParseSeverity(s string) (Severity, bool) {
	for i, name := range severityNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return Severity(i), true
		}
	}
	return SeverityNormal, false
}
