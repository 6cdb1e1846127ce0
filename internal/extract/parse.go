package extract

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/meltforce/allworkouts/internal/apperr"
	"github.com/tidwall/gjson"
)

// Defaults applied when the model omits or garbles a field.
const (
	DefaultPlanName = "Workout Plan"
	DefaultSets     = 3
	DefaultRepsMin  = 8
	DefaultRepsMax  = 12
)

// Upper bounds on numbers read from model output. Larger values are treated
// as garbled and replaced by the field default.
const (
	MaxSets        = 50
	MaxReps        = 200
	MaxRestSeconds = 3600
	MaxSequence    = 10000
)

var (
	// wholeFenceRe matches an answer that is entirely one fenced block.
	wholeFenceRe = regexp.MustCompile("(?s)^```(?:json|JSON)?\\s*(.*?)\\s*```$")

	// fenceRe matches a fenced block: ```json ... ``` or ``` ... ```
	fenceRe = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)```")

	// repsRangeRe matches: 8-12, 8–12, 8—12, 8 to 12
	repsRangeRe = regexp.MustCompile(`^\s*(\d+)\s*(?:-|–|—|to)\s*(\d+)\s*$`)

	// repsSingleRe matches: 8
	repsSingleRe = regexp.MustCompile(`^\s*(\d+)\s*$`)
)

// StripFences returns the JSON body of a model answer. Valid JSON is returned
// as is, even when a string value contains backticks. Otherwise an answer
// wrapped in a single fence is unwrapped, then the first fenced block inside
// surrounding prose is used. Anything else is returned trimmed.
func StripFences(s string) string {
	t := strings.TrimSpace(s)
	if gjson.Valid(t) {
		return t
	}
	if m := wholeFenceRe.FindStringSubmatch(t); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := fenceRe.FindStringSubmatch(t); m != nil {
		return strings.TrimSpace(m[1])
	}
	return t
}

// Parse converts model output into an ExtractedPlan, applying field defaults.
// Output that is not a JSON object is an LLM service error.
func Parse(content string) (*ExtractedPlan, error) {
	body := StripFences(content)
	if !gjson.Valid(body) {
		return nil, apperr.LLMService(fmt.Errorf("invalid JSON: %.200q", body), "AI service returned malformed output")
	}
	root := gjson.Parse(body)
	if !root.IsObject() {
		return nil, apperr.LLMService(fmt.Errorf("expected JSON object, got %s", root.Type), "AI service returned malformed output")
	}

	plan := &ExtractedPlan{
		Name:        DefaultPlanName,
		Description: optionalString(root.Get("description")),
		Exercises:   []ExtractedExercise{},
	}
	if name := optionalString(root.Get("name")); name != nil {
		plan.Name = *name
	}

	// A flat list keeps model-provided sequence numbers. Exercises nested under
	// workouts restart their numbering per workout, so they are renumbered.
	// Repeated numbers fall back to reading order for the whole plan.
	for _, item := range root.Get("exercises").Array() {
		idx := len(plan.Exercises)
		plan.Exercises = append(plan.Exercises, parseExercise(item, idx, true))
	}
	for _, workout := range root.Get("workouts").Array() {
		for _, item := range workout.Get("exercises").Array() {
			idx := len(plan.Exercises)
			plan.Exercises = append(plan.Exercises, parseExercise(item, idx, false))
		}
	}
	if hasDuplicateSequence(plan.Exercises) {
		for i := range plan.Exercises {
			plan.Exercises[i].Sequence = i
		}
	}
	return plan, nil
}

func hasDuplicateSequence(exercises []ExtractedExercise) bool {
	seen := make(map[int]bool, len(exercises))
	for _, ex := range exercises {
		if seen[ex.Sequence] {
			return true
		}
		seen[ex.Sequence] = true
	}
	return false
}

func parseExercise(item gjson.Result, index int, keepSequence bool) ExtractedExercise {
	ex := ExtractedExercise{
		OriginalText: firstString(item, "original_text", "name", "exercise"),
		Sets:         DefaultSets,
		RepsMin:      DefaultRepsMin,
		RepsMax:      DefaultRepsMax,
		Sequence:     index,
	}
	var notes []string
	if n := optionalString(item.Get("notes")); n != nil {
		notes = append(notes, *n)
	}

	setsField := item.Get("sets")
	var perSet []gjson.Result
	switch {
	case setsField.IsArray():
		perSet = setsField.Array()
		if len(perSet) > 0 && len(perSet) <= MaxSets {
			ex.Sets = len(perSet)
		}
	case setsField.Exists():
		if n, ok := positiveInt(setsField, MaxSets); ok {
			ex.Sets = n
		}
	}

	if lo, hi, ok := setReps(item); ok {
		ex.RepsMin, ex.RepsMax = lo, hi
	} else if reps := item.Get("reps"); reps.Exists() && reps.Type != gjson.Null {
		notes = append(notes, "reps: "+strings.TrimSpace(reps.String()))
	} else if lo, hi, ok := perSetRange(perSet); ok {
		ex.RepsMin, ex.RepsMax = lo, hi
	}
	if ex.RepsMin > ex.RepsMax {
		ex.RepsMin, ex.RepsMax = ex.RepsMax, ex.RepsMin
	}

	rest := item.Get("rest_seconds")
	if !rest.Exists() {
		rest = item.Get("rest")
	}
	if rest.Exists() && rest.Type != gjson.Null {
		if secs, ok := nonNegativeInt(rest, MaxRestSeconds); ok {
			ex.RestSeconds = &secs
		} else {
			notes = append(notes, "rest: "+strings.TrimSpace(rest.String()))
		}
	}

	if keepSequence {
		if seq, ok := nonNegativeInt(item.Get("sequence"), MaxSequence); ok {
			ex.Sequence = seq
		}
	}

	if len(notes) > 0 {
		joined := strings.Join(notes, "; ")
		ex.Notes = &joined
	}
	return ex
}

// parseReps accepts an integer or a range string.
func parseReps(v gjson.Result) (int, int, bool) {
	if v.Type == gjson.Number {
		n, ok := positiveInt(v, MaxReps)
		return n, n, ok
	}
	s := v.String()
	if m := repsRangeRe.FindStringSubmatch(s); m != nil {
		lo, errLo := strconv.Atoi(m[1])
		hi, errHi := strconv.Atoi(m[2])
		if errLo == nil && errHi == nil && validReps(lo) && validReps(hi) {
			return lo, hi, true
		}
		return 0, 0, false
	}
	if m := repsSingleRe.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		return n, n, err == nil && validReps(n)
	}
	return 0, 0, false
}

// setReps reads reps_min/reps_max, falling back to a reps field.
func setReps(v gjson.Result) (int, int, bool) {
	if lo, ok := positiveInt(v.Get("reps_min"), MaxReps); ok {
		hi, ok := positiveInt(v.Get("reps_max"), MaxReps)
		if !ok {
			hi = lo
		}
		return lo, hi, true
	}
	return parseReps(v.Get("reps"))
}

// perSetRange returns the lowest minimum and highest maximum across per-set objects.
func perSetRange(sets []gjson.Result) (int, int, bool) {
	lo, hi := 0, 0
	for _, s := range sets {
		l, h, ok := setReps(s)
		if !ok {
			continue
		}
		if lo == 0 || l < lo {
			lo = l
		}
		if h > hi {
			hi = h
		}
	}
	return lo, hi, lo > 0
}

// numeric reads a JSON number or a numeric string. European decimal commas
// are accepted in strings ("1,5").
func numeric(v gjson.Result) (float64, bool) {
	switch v.Type {
	case gjson.Number:
		return v.Num, true
	case gjson.String:
		s := strings.ReplaceAll(strings.TrimSpace(v.Str), ",", ".")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func validReps(n int) bool {
	return n >= 1 && n <= MaxReps
}

// positiveInt reads a whole number in [1, limit].
func positiveInt(v gjson.Result, limit int) (int, bool) {
	return boundedInt(v, 1, limit)
}

// nonNegativeInt reads a whole number in [0, limit].
func nonNegativeInt(v gjson.Result, limit int) (int, bool) {
	return boundedInt(v, 0, limit)
}

// boundedInt rounds a numeric value and rejects it outside [lo, hi]. The
// bounds are checked before conversion so huge values cannot overflow.
func boundedInt(v gjson.Result, lo, hi int) (int, bool) {
	f, ok := numeric(v)
	if !ok || f < float64(lo) {
		return 0, false
	}
	f = math.Round(f)
	if f > float64(hi) {
		return 0, false
	}
	return int(f), true
}

func optionalString(v gjson.Result) *string {
	if v.Type != gjson.String {
		return nil
	}
	s := strings.TrimSpace(v.Str)
	if s == "" {
		return nil
	}
	return &s
}

func firstString(item gjson.Result, keys ...string) string {
	for _, k := range keys {
		if v := item.Get(k); v.Type == gjson.String {
			return strings.TrimSpace(v.Str)
		}
	}
	return ""
}
