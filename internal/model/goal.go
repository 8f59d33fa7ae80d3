package model

// LineGoals holds one period's per-business-line targets, keyed by line id
// (lower-case, underscored, e.g. "pet_nutriscience").
type LineGoals struct {
	Goals    map[string]float64
	IPNGoals map[string]float64
}

// SellerGoal is one seller's target for one period.
type SellerGoal struct {
	Goal    float64
	IPNGoal float64
}

// SellerGoals maps team id -> seller id -> period key ("YYYY-MM") -> goal.
type SellerGoals map[string]map[int64]map[string]SellerGoal

// LineID converts a display line name to its goal-table id:
// "PET NUTRISCIENCE" -> "pet_nutriscience".
func LineID(name string) string {
	id := make([]byte, 0, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'A' && c <= 'Z':
			id = append(id, c+'a'-'A')
		case c == ' ':
			id = append(id, '_')
		default:
			id = append(id, c)
		}
	}
	return string(id)
}

// LineName converts a goal-table id back to a display name:
// "pet_nutriscience" -> "PET NUTRISCIENCE".
func LineName(id string) string {
	name := make([]byte, 0, len(id))
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z':
			name = append(name, c-'a'+'A')
		case c == '_':
			name = append(name, ' ')
		default:
			name = append(name, c)
		}
	}
	return string(name)
}
