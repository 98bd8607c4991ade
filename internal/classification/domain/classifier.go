package classification

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Unclassified is the payload type reported when no schema is eligible.
const Unclassified = "unclassified"

const (
	reasonNoPayload = "No payload data"
	reasonNoMatch   = "No schema matched"
	reasonNotObject = "Payload is not a JSON object"
)

// Result is the outcome of classifying one decoded payload.
type Result struct {
	PayloadType   string   `json:"payload_type"`
	Confidence    float64  `json:"confidence"`
	MatchedFields []string `json:"matched_fields"`
	IsAmbiguous   bool     `json:"is_ambiguous"`
	Alternates    []string `json:"alternates"`
	Reasons       []string `json:"reasons"`
}

// Classified reports whether a registered schema matched.
func (r Result) Classified() bool {
	return r.PayloadType != Unclassified
}

type candidate struct {
	schema     SchemaDefinition
	matched    []string
	confidence float64
}

// Classify matches a decoded payload against the registry. It never fails:
// absence of a match is reported as Unclassified.
func (r *Registry) Classify(payload map[string]any) Result {
	if len(payload) == 0 {
		return unclassified(reasonNoPayload)
	}

	var eligible []candidate
	for _, schema := range r.schemasOrNil() {
		if c, ok := evaluate(schema, payload); ok {
			eligible = append(eligible, c)
		}
	}

	switch len(eligible) {
	case 0:
		return unclassified(reasonNoMatch, closestMiss(r.schemasOrNil(), payload)...)
	case 1:
		return matchedResult(eligible[0])
	}

	if primary, ok := dominating(eligible); ok {
		result := matchedResult(primary)
		var superseded []string
		for _, c := range eligible {
			if c.schema.PayloadType != primary.schema.PayloadType {
				superseded = append(superseded, c.schema.PayloadType)
			}
		}
		result.Reasons = append(result.Reasons, "More specific than "+strings.Join(superseded, ", "))
		return result
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		a, b := eligible[i], eligible[j]
		if len(a.matched) != len(b.matched) {
			return len(a.matched) > len(b.matched)
		}
		if a.confidence != b.confidence {
			return a.confidence > b.confidence
		}
		return a.schema.PayloadType < b.schema.PayloadType
	})
	result := matchedResult(eligible[0])
	result.IsAmbiguous = true
	for _, c := range eligible[1:] {
		result.Alternates = append(result.Alternates, c.schema.PayloadType)
	}
	sort.Strings(result.Alternates)
	all := append([]string{eligible[0].schema.PayloadType}, result.Alternates...)
	result.Reasons = append(result.Reasons, "Ambiguous match between "+strings.Join(all, ", "))
	return result
}

// ClassifyJSON decodes raw JSON and classifies it. Non-object input is
// reported as Unclassified.
func (r *Registry) ClassifyJSON(raw []byte) Result {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return unclassified(reasonNoPayload)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(trimmed), &payload); err != nil {
		return unclassified(reasonNotObject)
	}
	return r.Classify(payload)
}

func (r *Registry) schemasOrNil() []SchemaDefinition {
	if r == nil {
		return nil
	}
	return r.schemas
}

func evaluate(schema SchemaDefinition, payload map[string]any) (candidate, bool) {
	matched := make([]string, 0, len(schema.RequiredFields)+len(schema.OptionalFields))
	for _, field := range schema.RequiredFields {
		if !present(payload, field) {
			return candidate{}, false
		}
		matched = append(matched, field)
	}
	optionalHits := 0
	for _, field := range schema.OptionalFields {
		if present(payload, field) {
			matched = append(matched, field)
			optionalHits++
		}
	}
	return candidate{
		schema:     schema,
		matched:    matched,
		confidence: confidence(len(schema.RequiredFields), len(schema.RequiredFields), optionalHits, len(schema.OptionalFields)),
	}, true
}

// confidence weighs required coverage and optional coverage equally.
func confidence(requiredHits, requiredTotal, optionalHits, optionalTotal int) float64 {
	requiredCoverage := 1.0
	if requiredTotal > 0 {
		requiredCoverage = float64(requiredHits) / float64(requiredTotal)
	}
	optionalCoverage := 1.0
	if optionalTotal > 0 {
		optionalCoverage = float64(optionalHits) / float64(optionalTotal)
	}
	score := 0.5*requiredCoverage + 0.5*optionalCoverage
	return math.Round(score*1000) / 1000
}

func dominating(eligible []candidate) (candidate, bool) {
	var found []candidate
	for _, c := range eligible {
		dominates := true
		for _, other := range eligible {
			if !c.schema.requiredSupersetOf(other.schema) {
				dominates = false
				break
			}
		}
		if dominates {
			found = append(found, c)
		}
	}
	if len(found) != 1 {
		return candidate{}, false
	}
	return found[0], true
}

func matchedResult(c candidate) Result {
	return Result{
		PayloadType:   c.schema.PayloadType,
		Confidence:    c.confidence,
		MatchedFields: append([]string(nil), c.matched...),
		IsAmbiguous:   false,
		Alternates:    []string{},
		Reasons:       []string{"Matched schema " + c.schema.PayloadType},
	}
}

func unclassified(reason string, extra ...string) Result {
	return Result{
		PayloadType:   Unclassified,
		Confidence:    0,
		MatchedFields: []string{},
		IsAmbiguous:   false,
		Alternates:    []string{},
		Reasons:       append([]string{reason}, extra...),
	}
}

// closestMiss names the schema with the most required fields present, if any.
func closestMiss(schemas []SchemaDefinition, payload map[string]any) []string {
	best := -1
	var bestSchema SchemaDefinition
	var missing []string
	for _, schema := range schemas {
		hits := 0
		var absent []string
		for _, field := range schema.RequiredFields {
			if present(payload, field) {
				hits++
			} else {
				absent = append(absent, field)
			}
		}
		if hits > 0 && hits > best {
			best = hits
			bestSchema = schema
			missing = absent
		}
	}
	if best <= 0 {
		return nil
	}
	return []string{fmt.Sprintf("Closest schema %s is missing %s", bestSchema.PayloadType, strings.Join(missing, ", "))}
}

// present treats JSON null as absent.
func present(payload map[string]any, field string) bool {
	value, ok := payload[field]
	return ok && value != nil
}
