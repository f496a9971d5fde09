package rules

import (
	"strings"

	"github.com/nathoo/duelcore/types"
)

// EquipRuleMatches reports whether a profile with the given attribute
// points and gear score satisfies every threshold of r.
func EquipRuleMatches(r types.EquipRule, points map[string]int, score int) bool {
	for attr, need := range r.AttrGTE {
		v, ok := points[strings.ToLower(attr)]
		if !ok || v < need {
			return false
		}
	}
	if r.ScoreGTE != nil && score < *r.ScoreGTE {
		return false
	}
	if r.ScoreLTE != nil && score > *r.ScoreLTE {
		return false
	}
	return true
}

// GrantedSkills collects the skill ids of every matching rule, in rule
// order, without duplicates.
func GrantedSkills(rules []types.EquipRule, points map[string]int, score int) []string {
	var out []string
	seen := map[string]bool{}
	for _, r := range rules {
		if !EquipRuleMatches(r, points, score) {
			continue
		}
		for _, id := range r.Give {
			if seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
