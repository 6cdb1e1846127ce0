package matcher

import (
	"sort"
	"strings"
	"unicode"
)

// equipmentWeight scales the score of the comparison made with equipment
// qualifiers removed, so "Squat" ranks "Barbell Squat" high but below an
// exact "Squat".
const equipmentWeight = 0.95

// abbreviations expands gym shorthand before comparison.
var abbreviations = map[string]string{
	"db":   "dumbbell",
	"dbs":  "dumbbell",
	"bb":   "barbell",
	"kb":   "kettlebell",
	"ohp":  "overhead press",
	"rdl":  "romanian deadlift",
	"sldl": "stiff leg deadlift",
	"incl": "incline",
	"decl": "decline",
	"ext":  "extension",
	"bw":   "bodyweight",
}

// equipment lists single-token qualifiers ignored by the secondary comparison.
// "ez bar" is handled as a pair in splitEquipment.
var equipment = map[string]bool{
	"barbell":    true,
	"dumbbell":   true,
	"dumbbells":  true,
	"kettlebell": true,
	"cable":      true,
	"machine":    true,
	"smith":      true,
}

// normalize lowercases s, turns punctuation into spaces and collapses whitespace.
func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// tokens normalizes s, expands abbreviations and returns the resulting words.
func tokens(s string) []string {
	var out []string
	for _, w := range strings.Fields(normalize(s)) {
		if exp, ok := abbreviations[w]; ok {
			out = append(out, strings.Fields(exp)...)
			continue
		}
		out = append(out, w)
	}
	return out
}

// splitEquipment separates equipment qualifiers from the movement words in
// toks. The returned equipment key is sorted and singular, so "Dumbbells" and
// "dumbbell" compare equal.
func splitEquipment(toks []string) (movement []string, gear string) {
	movement = make([]string, 0, len(toks))
	var found []string
	for i := 0; i < len(toks); i++ {
		if toks[i] == "ez" && i+1 < len(toks) && toks[i+1] == "bar" {
			found = append(found, "ez bar")
			i++
			continue
		}
		if equipment[toks[i]] {
			found = append(found, strings.TrimSuffix(toks[i], "s"))
			continue
		}
		movement = append(movement, toks[i])
	}
	return movement, sortedKey(found)
}

func sortedKey(toks []string) string {
	cp := make([]string, len(toks))
	copy(cp, toks)
	sort.Strings(cp)
	return strings.Join(cp, " ")
}

// Similarity scores two exercise names in [0,1]. It is a token-sort indel
// ratio over normalized, abbreviation-expanded names, maximized with the same
// ratio computed without equipment qualifiers (weighted by equipmentWeight).
// The equipment-free ratio is only used when at most one name names
// equipment or both name the same equipment, so "Dumbbell Curl" never
// matches "Barbell Curl" through it. Identical names score exactly 1.0 and
// word order does not matter.
func Similarity(a, b string) float64 {
	ta, tb := tokens(a), tokens(b)
	score := ratio(sortedKey(ta), sortedKey(tb))
	if score == 1 {
		return 1
	}

	sa, ga := splitEquipment(ta)
	sb, gb := splitEquipment(tb)
	if len(sa) == 0 || len(sb) == 0 {
		return score
	}
	if ga == "" && gb == "" {
		return score
	}
	if ga != "" && gb != "" && ga != gb {
		return score
	}
	if alt := equipmentWeight * ratio(sortedKey(sa), sortedKey(sb)); alt > score {
		score = alt
	}
	return score
}

// ratio is the normalized indel similarity 2*LCS/(|a|+|b|) over runes.
// Two empty strings are identical.
func ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	return 2 * float64(lcsLength(ra, rb)) / float64(total)
}

// lcsLength returns the length of the longest common subsequence of a and b
// using two rolling rows.
func lcsLength(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
			} else {
				cur[j] = max(prev[j], cur[j-1])
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}
