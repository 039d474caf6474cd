// Package match resolves loose identity fields (name, phone, email) to a
// stable customer identifier.
//
// An Index is built once per reconciliation pass from the canonical identity
// records. Each record contributes up to four match keys, one per tier, in
// priority order:
//
//	TierNamePhone  name|phone
//	TierNameEmail  name|email
//	TierPhone      |phone
//	TierName       name|
//
// A key that already exists is never overwritten: the first record to claim
// a key keeps it. Resolve tries the same tiers in the same order and returns
// the first hit, so an exact name+contact match always beats a weaker
// single-field match.
//
// The Index is read-only after Build and safe for concurrent Resolve calls.
package match

import "time"

// IdentityRecord is one canonical customer.
type IdentityRecord struct {
	StableID  string    `json:"stable_id"`
	FullName  string    `json:"full_name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at,omitzero"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// Candidate holds the loose identity fields found on a target record.
type Candidate struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
}

// Tier identifies which match key shape produced a resolution.
type Tier int

const (
	TierNone Tier = iota
	TierNamePhone
	TierNameEmail
	TierPhone
	TierName
)

// tiers lists the tiers in priority order.
var tiers = []Tier{TierNamePhone, TierNameEmail, TierPhone, TierName}

func (t Tier) String() string {
	switch t {
	case TierNamePhone:
		return "name_phone"
	case TierNameEmail:
		return "name_email"
	case TierPhone:
		return "phone"
	case TierName:
		return "name"
	default:
		return "none"
	}
}

// Outcome classifies a resolution attempt.
type Outcome int

const (
	// Matched means a key matched at some tier.
	Matched Outcome = iota + 1

	// NotFound means identity fields were present but no tier matched.
	NotFound

	// Skipped means the candidate carried no usable identity information
	// (normalized name and phone both empty).
	Skipped
)

func (o Outcome) String() string {
	switch o {
	case Matched:
		return "matched"
	case NotFound:
		return "not_found"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Resolution is the result of Index.Resolve.
type Resolution struct {
	Outcome  Outcome
	StableID string // set when Outcome == Matched
	Tier     Tier   // set when Outcome == Matched
}

// IndexStats describes a built Index.
type IndexStats struct {
	Records int `json:"records"`

	// Ignored counts records without a stable id.
	Ignored int `json:"ignored"`

	// Keys counts the distinct keys held per tier.
	Keys map[string]int `json:"keys"`

	// Shadowed counts, per tier, records whose key was already claimed by an
	// earlier record and therefore cannot be reached through that tier.
	Shadowed map[string]int `json:"shadowed"`
}

// Index is the priority-tiered key -> stable id mapping.
type Index struct {
	// one map per tier so keys of different shapes never collide
	keys  map[Tier]map[string]string
	stats IndexStats
}

// Build constructs an Index from identity records.
func Build(records []IdentityRecord) *Index {
	ix := &Index{
		keys: make(map[Tier]map[string]string, len(tiers)),
		stats: IndexStats{
			Keys:     make(map[string]int, len(tiers)),
			Shadowed: make(map[string]int, len(tiers)),
		},
	}
	for _, t := range tiers {
		ix.keys[t] = make(map[string]string, len(records))
	}

	for _, rec := range records {
		ix.stats.Records++
		if rec.StableID == "" {
			ix.stats.Ignored++
			continue
		}

		k := newKeys(rec.FullName, rec.Phone, rec.Email)
		for _, t := range tiers {
			key, ok := k.forTier(t)
			if !ok {
				continue
			}
			if _, exists := ix.keys[t][key]; exists {
				ix.stats.Shadowed[t.String()]++
				continue
			}
			ix.keys[t][key] = rec.StableID
		}
	}

	for _, t := range tiers {
		ix.stats.Keys[t.String()] = len(ix.keys[t])
	}
	return ix
}

// Resolve maps a candidate to a stable id.
func (ix *Index) Resolve(c Candidate) Resolution {
	k := newKeys(c.FullName, c.Phone, c.Email)
	if k.name == "" && k.phone == "" {
		return Resolution{Outcome: Skipped}
	}

	for _, t := range tiers {
		key, ok := k.forTier(t)
		if !ok {
			continue
		}
		if id, found := ix.keys[t][key]; found {
			return Resolution{Outcome: Matched, StableID: id, Tier: t}
		}
	}
	return Resolution{Outcome: NotFound}
}

// Stats returns a copy of the index statistics.
func (ix *Index) Stats() IndexStats {
	out := IndexStats{
		Records:  ix.stats.Records,
		Ignored:  ix.stats.Ignored,
		Keys:     make(map[string]int, len(ix.stats.Keys)),
		Shadowed: make(map[string]int, len(ix.stats.Shadowed)),
	}
	for k, v := range ix.stats.Keys {
		out.Keys[k] = v
	}
	for k, v := range ix.stats.Shadowed {
		out.Shadowed[k] = v
	}
	return out
}

// keys holds the normalized fields a record or candidate contributes.
type keys struct {
	name, phone, email string
}

func newKeys(name, phone, email string) keys {
	return keys{
		name:  Normalize(name),
		phone: Normalize(phone),
		email: Normalize(email),
	}
}

// forTier returns the match key for tier t, or false when a component the
// tier needs is empty.
func (k keys) forTier(t Tier) (string, bool) {
	switch t {
	case TierNamePhone:
		return Key(k.name, k.phone), k.name != "" && k.phone != ""
	case TierNameEmail:
		return Key(k.name, k.email), k.name != "" && k.email != ""
	case TierPhone:
		return Key("", k.phone), k.phone != ""
	case TierName:
		return Key(k.name, ""), k.name != ""
	default:
		return "", false
	}
}

// Key composes a match key from already-normalized parts.
func Key(name, contact string) string {
	return name + "|" + contact
}
