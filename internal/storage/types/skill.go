package types

import (
	"encoding/json"
	"fmt"
	"sort"
)

// SkillMap holds the measured level per skill name at one instant.
type SkillMap map[string]int

// PowerLevel returns the sum of all skill levels.
func (m SkillMap) PowerLevel() int {
	var total int
	for _, lvl := range m {
		total += lvl
	}
	return total
}

// Clone returns a copy of the map.
func (m SkillMap) Clone() SkillMap {
	if m == nil {
		return nil
	}
	out := make(SkillMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// SkillDelta holds the aggregated progression of one skill inside a bucket
// window: the level at the start of the window, at the end, and the gain.
type SkillDelta struct {
	Start int `json:"start"`
	End   int `json:"end"`
	Gain  int `json:"gain"`
}

// SkillDeltaMap holds the per-skill aggregate for one bucket.
type SkillDeltaMap map[string]SkillDelta

// EndLevels projects the end level of every skill, the shape raw snapshots use.
func (m SkillDeltaMap) EndLevels() SkillMap {
	out := make(SkillMap, len(m))
	for name, d := range m {
		out[name] = d.End
	}
	return out
}

// StartLevels projects the start level of every skill.
func (m SkillDeltaMap) StartLevels() SkillMap {
	out := make(SkillMap, len(m))
	for name, d := range m {
		out[name] = d.Start
	}
	return out
}

// SkillNames returns the skill names in sorted order.
func (m SkillDeltaMap) SkillNames() []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AggregateSkills builds the per-skill aggregate for a bucket from the skill
// map of the chronologically first measurement and the skill map of the last.
// The result covers the union of skill names; a skill missing on either side
// defaults to level 0, so newly trained skills show their full gain.
func AggregateSkills(start, end SkillMap) SkillDeltaMap {
	out := make(SkillDeltaMap, len(end))
	for name, lvl := range start {
		out[name] = SkillDelta{Start: lvl, End: 0, Gain: -lvl}
	}
	for name, lvl := range end {
		d := out[name]
		d.End = lvl
		d.Gain = lvl - d.Start
		out[name] = d
	}
	return out
}

// MergeAggregates rolls finer-bucket aggregates into a coarser bucket using
// the start side of the chronologically first aggregate and the end side of
// the last, mirroring AggregateSkills for already-summarized tiers.
func MergeAggregates(first, last SkillDeltaMap) SkillDeltaMap {
	return AggregateSkills(first.StartLevels(), last.EndLevels())
}

// skillPayloadVersion tags every persisted skill payload. Decoders reject
// versions they do not know.
const skillPayloadVersion = 1

type skillMapPayload struct {
	V      int      `json:"v"`
	Skills SkillMap `json:"skills"`
}

type skillDeltaPayload struct {
	V      int           `json:"v"`
	Skills SkillDeltaMap `json:"skills"`
}

// EncodeSkillMap serializes a raw skill map for storage in a JSON column.
func EncodeSkillMap(m SkillMap) ([]byte, error) {
	return json.Marshal(skillMapPayload{V: skillPayloadVersion, Skills: m})
}

// DecodeSkillMap deserializes a raw skill map payload.
func DecodeSkillMap(data []byte) (SkillMap, error) {
	if len(data) == 0 {
		return SkillMap{}, nil
	}
	var p skillMapPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode skill map: %w", err)
	}
	if p.V != skillPayloadVersion {
		return nil, fmt.Errorf("decode skill map: unsupported payload version %d", p.V)
	}
	if p.Skills == nil {
		p.Skills = SkillMap{}
	}
	return p.Skills, nil
}

// EncodeSkillDeltas serializes an aggregated skill map for storage.
func EncodeSkillDeltas(m SkillDeltaMap) ([]byte, error) {
	return json.Marshal(skillDeltaPayload{V: skillPayloadVersion, Skills: m})
}

// DecodeSkillDeltas deserializes an aggregated skill map payload.
func DecodeSkillDeltas(data []byte) (SkillDeltaMap, error) {
	if len(data) == 0 {
		return SkillDeltaMap{}, nil
	}
	var p skillDeltaPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode skill aggregate: %w", err)
	}
	if p.V != skillPayloadVersion {
		return nil, fmt.Errorf("decode skill aggregate: unsupported payload version %d", p.V)
	}
	if p.Skills == nil {
		p.Skills = SkillDeltaMap{}
	}
	return p.Skills, nil
}
