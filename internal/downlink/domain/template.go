package downlink

import (
	"fmt"
	"strings"
)

type segment struct {
	literal     string
	placeholder string
	isField     bool
}

// parseTemplate splits a hex template into literal hex and {placeholder}
// segments. Placeholder text is documentation only; binding is positional.
func parseTemplate(tpl string) ([]segment, error) {
	var segments []segment
	rest := tpl
	for rest != "" {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			lit, err := literalSegment(rest)
			if err != nil {
				return nil, err
			}
			segments = append(segments, lit)
			break
		}
		if open > 0 {
			lit, err := literalSegment(rest[:open])
			if err != nil {
				return nil, err
			}
			segments = append(segments, lit)
		}
		closing := strings.IndexByte(rest[open:], '}')
		if closing < 0 {
			return nil, fmt.Errorf("%w: %q", ErrUnterminatedPlaceholder, tpl)
		}
		name := rest[open+1 : open+closing]
		if strings.ContainsRune(name, '{') {
			return nil, fmt.Errorf("%w: %q", ErrUnterminatedPlaceholder, tpl)
		}
		segments = append(segments, segment{placeholder: name, isField: true})
		rest = rest[open+closing+1:]
	}
	return segments, nil
}

func literalSegment(value string) (segment, error) {
	if len(value)%2 != 0 {
		return segment{}, fmt.Errorf("%w: literal %q has odd length", ErrInvalidTemplate, value)
	}
	for _, r := range value {
		if !isHexDigit(r) {
			return segment{}, fmt.Errorf("%w: literal %q is not hex", ErrInvalidTemplate, value)
		}
	}
	return segment{literal: strings.ToUpper(value)}, nil
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

func countPlaceholders(segments []segment) int {
	n := 0
	for _, seg := range segments {
		if seg.isField {
			n++
		}
	}
	return n
}

func literalLength(segments []segment) int {
	n := 0
	for _, seg := range segments {
		n += len(seg.literal)
	}
	return n
}
