// Package security scrubs personally identifiable information and screens
// for prompt-injection attempts in debate content before it is persisted,
// streamed, or fed back into a subsequent round.
package security

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// PIIType classifies one kind of detected personal data.
type PIIType string

const (
	PIITypeEmail      PIIType = "email"
	PIITypePhone      PIIType = "phone"
	PIITypeSSN        PIIType = "ssn"
	PIITypeCreditCard PIIType = "credit_card"
	PIITypeAPIKey     PIIType = "api_key"
)

// Detection is one PII match found in a piece of text.
type Detection struct {
	Type  PIIType
	Value string
	Start int
	End   int
}

// PIIDetector finds, masks, and redacts PII in free text.
type PIIDetector interface {
	Detect(ctx context.Context, text string) ([]Detection, error)
	Mask(ctx context.Context, text string) (string, []Detection, error)
	Redact(ctx context.Context, text string) (string, []Detection, error)
}

var (
	emailPattern  = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern  = regexp.MustCompile(`\(?\d{3}\)?[-.\s]\d{3}[-.\s]\d{4}`)
	ssnPattern    = regexp.MustCompile(`\b\d{3}[-.]\d{2}[-.]\d{4}\b`)
	cardPattern   = regexp.MustCompile(`\b\d{13,19}\b`)
	apiKeyPattern = regexp.MustCompile(`\b(?:sk|pk)_(?:live|test)_[A-Za-z0-9]{10,}\b`)
)

// RegexPIIDetector finds PII with a fixed set of regular expressions. It
// trades recall for the predictability a debate transcript needs: every
// match is either an unambiguous format (email, API key prefix) or
// additionally checksum-validated (credit card numbers via Luhn).
type RegexPIIDetector struct{}

// NewRegexPIIDetector constructs a RegexPIIDetector.
func NewRegexPIIDetector() *RegexPIIDetector {
	return &RegexPIIDetector{}
}

var _ PIIDetector = (*RegexPIIDetector)(nil)

// Detect returns every PII match in text, in left-to-right order.
func (d *RegexPIIDetector) Detect(ctx context.Context, text string) ([]Detection, error) {
	var detections []Detection

	for _, m := range emailPattern.FindAllStringIndex(text, -1) {
		detections = append(detections, Detection{Type: PIITypeEmail, Value: text[m[0]:m[1]], Start: m[0], End: m[1]})
	}
	for _, m := range ssnPattern.FindAllStringIndex(text, -1) {
		detections = append(detections, Detection{Type: PIITypeSSN, Value: text[m[0]:m[1]], Start: m[0], End: m[1]})
	}
	for _, m := range phonePattern.FindAllStringIndex(text, -1) {
		detections = append(detections, Detection{Type: PIITypePhone, Value: text[m[0]:m[1]], Start: m[0], End: m[1]})
	}
	for _, m := range cardPattern.FindAllStringIndex(text, -1) {
		value := text[m[0]:m[1]]
		if d.validateLuhn(value) {
			detections = append(detections, Detection{Type: PIITypeCreditCard, Value: value, Start: m[0], End: m[1]})
		}
	}
	for _, m := range apiKeyPattern.FindAllStringIndex(text, -1) {
		detections = append(detections, Detection{Type: PIITypeAPIKey, Value: text[m[0]:m[1]], Start: m[0], End: m[1]})
	}

	return detections, nil
}

// validateLuhn reports whether number passes the Luhn checksum.
func (d *RegexPIIDetector) validateLuhn(number string) bool {
	sum := 0
	alt := false
	for i := len(number) - 1; i >= 0; i-- {
		c := number[i]
		if c < '0' || c > '9' {
			return false
		}
		digit := int(c - '0')
		if alt {
			digit *= 2
			if digit > 9 {
				digit -= 9
			}
		}
		sum += digit
		alt = !alt
	}
	return sum%10 == 0
}

// Mask replaces every detected value with a partially-visible stand-in
// (e.g. "jo**@example.com", "***-***-4567") so a transcript stays
// readable without exposing the underlying PII.
func (d *RegexPIIDetector) Mask(ctx context.Context, text string) (string, []Detection, error) {
	detections, err := d.Detect(ctx, text)
	if err != nil {
		return "", nil, err
	}
	return d.rewrite(text, detections, d.maskValue), detections, nil
}

// Redact replaces every detected value with a fixed "[type_REDACTED]"
// marker, leaving no trace of the original content.
func (d *RegexPIIDetector) Redact(ctx context.Context, text string) (string, []Detection, error) {
	detections, err := d.Detect(ctx, text)
	if err != nil {
		return "", nil, err
	}
	return d.rewrite(text, detections, func(det Detection) string {
		return fmt.Sprintf("[%s_REDACTED]", det.Type)
	}), detections, nil
}

func (d *RegexPIIDetector) rewrite(text string, detections []Detection, replacement func(Detection) string) string {
	if len(detections) == 0 {
		return text
	}
	sorted := append([]Detection(nil), detections...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Start < sorted[j-1].Start; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	var b strings.Builder
	cursor := 0
	for _, det := range sorted {
		if det.Start < cursor {
			continue
		}
		b.WriteString(text[cursor:det.Start])
		b.WriteString(replacement(det))
		cursor = det.End
	}
	b.WriteString(text[cursor:])
	return b.String()
}

func (d *RegexPIIDetector) maskValue(det Detection) string {
	switch det.Type {
	case PIITypeEmail:
		return maskEmail(det.Value)
	case PIITypePhone:
		return maskTail(det.Value, "***-***-", 4)
	case PIITypeSSN:
		return maskTail(det.Value, "***-**-", 4)
	case PIITypeCreditCard:
		return maskTail(det.Value, strings.Repeat("*", len(det.Value)-4), 4)
	default:
		return fmt.Sprintf("[%s_MASKED]", det.Type)
	}
}

func maskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at < 0 {
		return email
	}
	local, domain := email[:at], email[at:]
	if len(local) <= 2 {
		return local + "**" + domain
	}
	return local[:2] + strings.Repeat("*", len(local)-2) + domain
}

// maskTail keeps the last keep digits of a value, replacing everything
// before them with prefix.
func maskTail(value, prefix string, keep int) string {
	digits := onlyDigits(value)
	if len(digits) <= keep {
		return prefix + digits
	}
	return prefix + digits[len(digits)-keep:]
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// PIIGuardrail wraps a PIIDetector as a Guardrail: Check reports whether
// text contains PII, applying action (warn/block/modify) and, for
// GuardrailActionModify, returning the masked content.
type PIIGuardrail struct {
	detector PIIDetector
	action   GuardrailAction
	types    []PIIType
}

// NewPIIGuardrail constructs a PIIGuardrail. A nil types slice matches
// every PII type the detector supports.
func NewPIIGuardrail(detector PIIDetector, action GuardrailAction, types []PIIType) *PIIGuardrail {
	return &PIIGuardrail{detector: detector, action: action, types: types}
}

var _ Guardrail = (*PIIGuardrail)(nil)

func (g *PIIGuardrail) Check(ctx context.Context, text string, meta map[string]any) (GuardrailResult, error) {
	detections, err := g.detector.Detect(ctx, text)
	if err != nil {
		return GuardrailResult{}, err
	}
	detections = filterTypes(detections, g.types)
	if len(detections) == 0 {
		return GuardrailResult{}, nil
	}

	result := GuardrailResult{
		Triggered: true,
		Action:    g.action,
		Reason:    fmt.Sprintf("detected %d PII match(es)", len(detections)),
	}
	if g.action == GuardrailActionModify {
		masked, _, err := g.detector.Mask(ctx, text)
		if err != nil {
			return GuardrailResult{}, err
		}
		result.ModifiedContent = masked
	}
	return result, nil
}

func filterTypes(detections []Detection, types []PIIType) []Detection {
	if len(types) == 0 {
		return detections
	}
	allowed := make(map[PIIType]bool, len(types))
	for _, t := range types {
		allowed[t] = true
	}
	filtered := make([]Detection, 0, len(detections))
	for _, d := range detections {
		if allowed[d.Type] {
			filtered = append(filtered, d)
		}
	}
	return filtered
}
