package models

import "strings"

// Canonical muscle group names stored in the exercise catalog.
const (
	MuscleChest      = "chest"
	MuscleBack       = "back"
	MuscleShoulders  = "shoulders"
	MuscleBiceps     = "biceps"
	MuscleTriceps    = "triceps"
	MuscleForearms   = "forearms"
	MuscleQuadriceps = "quadriceps"
	MuscleHamstrings = "hamstrings"
	MuscleGlutes     = "glutes"
	MuscleCalves     = "calves"
	MuscleCore       = "core"
)

// muscleGroupMap maps gym slang and anatomical names to canonical groups.
var muscleGroupMap = map[string]string{
	// Canonical names
	"chest":      MuscleChest,
	"back":       MuscleBack,
	"shoulders":  MuscleShoulders,
	"biceps":     MuscleBiceps,
	"triceps":    MuscleTriceps,
	"forearms":   MuscleForearms,
	"quadriceps": MuscleQuadriceps,
	"hamstrings": MuscleHamstrings,
	"glutes":     MuscleGlutes,
	"calves":     MuscleCalves,
	"core":       MuscleCore,

	// Slang
	"pecs":     MuscleChest,
	"lats":     MuscleBack,
	"traps":    MuscleBack,
	"delts":    MuscleShoulders,
	"bis":      MuscleBiceps,
	"tris":     MuscleTriceps,
	"quads":    MuscleQuadriceps,
	"hammys":   MuscleHamstrings,
	"abs":      MuscleCore,
	"obliques": MuscleCore,

	// Anatomical
	"pectorals":        MuscleChest,
	"latissimus dorsi": MuscleBack,
	"trapezius":        MuscleBack,
	"rhomboids":        MuscleBack,
	"deltoids":         MuscleShoulders,
	"gluteus maximus":  MuscleGlutes,
	"gastrocnemius":    MuscleCalves,
	"soleus":           MuscleCalves,
	"rectus abdominis": MuscleCore,

	// Singular forms
	"shoulder":  MuscleShoulders,
	"bicep":     MuscleBiceps,
	"tricep":    MuscleTriceps,
	"forearm":   MuscleForearms,
	"quad":      MuscleQuadriceps,
	"hamstring": MuscleHamstrings,
	"glute":     MuscleGlutes,
	"calf":      MuscleCalves,
}

// NormalizeMuscleGroup maps a muscle group name to its canonical catalog
// name. Returns the canonical name and true if recognized, or the original
// string and false if unknown.
func NormalizeMuscleGroup(raw string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if canonical, ok := muscleGroupMap[lower]; ok {
		return canonical, true
	}
	return raw, false
}
