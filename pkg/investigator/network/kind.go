package network

import (
	"fmt"
	"strings"

	"github.com/cognicore/investigator/pkg/investigator/internalerr"
)

// Kind selects how a node combines its parents.
type Kind uint8

const (
	// KindMain is true when at least one parent is effectively true.
	KindMain Kind = iota
	// KindInteraction is true when every parent is effectively true.
	KindInteraction
	// KindExclusion is true when exactly one parent is effectively true.
	KindExclusion
	// KindInverted is true unless every parent is effectively true.
	KindInverted
	// KindInvertedInteraction is true when no parent is effectively true.
	KindInvertedInteraction
)

var kindNames = [...]string{
	KindMain:                "Main",
	KindInteraction:         "Interaction",
	KindExclusion:           "Exclusion",
	KindInverted:            "Inverted",
	KindInvertedInteraction: "Inverted Interaction",
}

// Kinds lists every node kind in declaration order.
func Kinds() []Kind {
	return []Kind{KindMain, KindInteraction, KindExclusion, KindInverted, KindInvertedInteraction}
}

// Valid reports whether k is one of the declared kinds.
func (k Kind) Valid() bool { return int(k) < len(kindNames) }

func (k Kind) String() string {
	if !k.Valid() {
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
	return kindNames[k]
}

// Negated reports whether the kind is one of the inverted forms.
func (k Kind) Negated() bool {
	return k == KindInverted || k == KindInvertedInteraction
}

// ParseKind accepts a kind name case-insensitively. Spaces, dashes and
// underscores are ignored, so "inverted-interaction" is accepted.
func ParseKind(s string) (Kind, error) {
	norm := normalizeName(s)
	for k, name := range kindNames {
		if normalizeName(name) == norm {
			return Kind(k), nil
		}
	}
	return 0, fmt.Errorf("unknown node kind %q: %w", s, internalerr.ErrInvalidInput)
}

func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("marshal %s: %w", k, internalerr.ErrInvalidInput)
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func normalizeName(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(s)))
}

// Truth is a tri-state evidence value.
type Truth int8

const (
	TruthNone Truth = iota
	TruthTrue
	TruthFalse
)

// TruthOf converts a boolean assertion.
func TruthOf(v bool) Truth {
	if v {
		return TruthTrue
	}
	return TruthFalse
}

// Bool returns the asserted value and whether anything is asserted.
func (t Truth) Bool() (value, ok bool) {
	switch t {
	case TruthTrue:
		return true, true
	case TruthFalse:
		return false, true
	}
	return false, false
}

// Value returns 1 for true, 0 for false and for no assertion.
func (t Truth) Value() float64 {
	if t == TruthTrue {
		return 1
	}
	return 0
}

func (t Truth) String() string {
	switch t {
	case TruthTrue:
		return "true"
	case TruthFalse:
		return "false"
	}
	return "none"
}

// ParseTruth accepts true/false/none (and the empty string for none).
func ParseTruth(s string) (Truth, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return TruthNone, nil
	case "true", "t", "1", "yes":
		return TruthTrue, nil
	case "false", "f", "0", "no":
		return TruthFalse, nil
	}
	return TruthNone, fmt.Errorf("unknown truth value %q: %w", s, internalerr.ErrInvalidInput)
}

// Highlight classifies how investigation wants an edge weight to move.
type Highlight uint8

const (
	HighlightNone Highlight = iota
	HighlightIncrease
	HighlightDecrease
	// HighlightImplicated marks an edge on the path of a contradiction whose
	// weight could not move far enough to matter.
	HighlightImplicated
)

func (h Highlight) String() string {
	switch h {
	case HighlightIncrease:
		return "increase"
	case HighlightDecrease:
		return "decrease"
	case HighlightImplicated:
		return "implicated"
	}
	return "none"
}

func (t Truth) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

func (t *Truth) UnmarshalText(b []byte) error {
	parsed, err := ParseTruth(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
