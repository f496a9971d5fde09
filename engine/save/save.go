// Package save implements JSON serialization of finished fight reports.
package save

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nathoo/duelcore/engine"
	"github.com/nathoo/duelcore/engine/unit"
)

// FormatVersion is written into every report.
const FormatVersion = "1"

// Fighter is a unit as it stood when the fight ended.
type Fighter struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Side  string `json:"side"`
	HP    int    `json:"hp"`
	MaxHP int    `json:"max_hp"`
}

// Report is the JSON-serializable record of one fight.
type Report struct {
	Version   string    `json:"version"`
	ID        uuid.UUID `json:"id"`
	Kind      string    `json:"kind"` // duel, boss, hunt
	Seed      int64     `json:"seed"`
	Winner    string    `json:"winner,omitempty"`
	Draw      bool      `json:"draw"`
	Rounds    int       `json:"rounds"`
	Events    int       `json:"events"`
	Truncated int       `json:"truncated,omitempty"`
	Fighters  []Fighter `json:"fighters"`
	Log       []string  `json:"log"`
	SavedAt   time.Time `json:"saved_at"`
}

// FromResult builds a report from a finished fight and its units.
func FromResult(kind string, res engine.Result, units ...*unit.Unit) Report {
	r := Report{
		Version:   FormatVersion,
		ID:        res.ID,
		Kind:      kind,
		Seed:      res.Seed,
		Winner:    res.Winner,
		Draw:      res.Draw,
		Rounds:    res.Rounds,
		Events:    res.Events,
		Truncated: res.Truncated,
		Log:       res.Log,
		SavedAt:   time.Now().UTC(),
	}
	for _, u := range units {
		r.Fighters = append(r.Fighters, Fighter{
			ID:    u.ID,
			Name:  u.Name,
			Side:  string(u.Side),
			HP:    u.HP(),
			MaxHP: u.MaxHP(),
		})
	}
	return r
}

// Save serializes a report to JSON bytes.
func Save(r Report) ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Load deserializes JSON bytes into a Report.
func Load(data []byte) (*Report, error) {
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	if r.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported report version %q", r.Version)
	}
	// Ensure slices are never nil after load.
	if r.Fighters == nil {
		r.Fighters = []Fighter{}
	}
	if r.Log == nil {
		r.Log = []string{}
	}
	return &r, nil
}
