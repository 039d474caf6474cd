package engine

import (
	"fmt"

	"github.com/roach88/idsync/internal/doc"
	"github.com/roach88/idsync/internal/match"
	"github.com/roach88/idsync/internal/store"
)

// Classification is the resolver outcome for one target record.
type Classification struct {
	Key        string
	Candidate  match.Candidate
	Resolution match.Resolution
}

// Update is a staged write for one record: set every stale tracked field to
// the resolved stable id.
type Update struct {
	Key      string
	Filter   store.Filter
	Patch    store.Patch
	StableID string
	Tier     match.Tier
	Previous map[string]string
}

// Plan classifies every record of a target collection. Building a Plan
// never touches a store.
type Plan struct {
	Target  string
	Records []Classification
	Updates []Update

	// AlreadyCorrect counts matched records whose tracked fields all hold
	// the resolved id.
	AlreadyCorrect int

	NotFound []Unmatched
	Skipped  []string

	// Invalid holds matched records that need an update but have no usable
	// or no unique key.
	Invalid []*Error

	ByTier map[string]int
}

// Plan resolves each record against ix and stages updates for the records
// whose tracked fields differ from the resolved id.
func (e *Engine) Plan(ix *match.Index, records []doc.Object, spec TargetSpec) *Plan {
	p := &Plan{
		Target:  spec.Name,
		Records: make([]Classification, 0, len(records)),
		ByTier:  make(map[string]int),
	}

	keyCounts := make(map[string]int, len(records))
	for _, rec := range records {
		if _, key, ok := recordKey(rec, spec.Key); ok {
			keyCounts[key]++
		}
	}

	for _, rec := range records {
		keyValue, key, hasKey := recordKey(rec, spec.Key)
		c := spec.Candidate(rec)
		res := ix.Resolve(c)
		p.Records = append(p.Records, Classification{Key: key, Candidate: c, Resolution: res})

		e.logger.Debug("classified record",
			"target", spec.Name,
			"key", key,
			"outcome", res.Outcome.String(),
			"tier", res.Tier.String(),
		)

		switch res.Outcome {
		case match.Skipped:
			p.Skipped = append(p.Skipped, key)
			continue
		case match.NotFound:
			p.NotFound = append(p.NotFound, Unmatched{
				Key:      key,
				FullName: c.FullName,
				Phone:    c.Phone,
				Email:    c.Email,
			})
			continue
		}

		p.ByTier[res.Tier.String()]++

		patch, previous := stalePatch(rec, spec.Tracked, res.StableID)
		if len(patch.Set) == 0 {
			p.AlreadyCorrect++
			continue
		}
		if !hasKey {
			p.Invalid = append(p.Invalid, &Error{
				Code:    ErrCodeMissingKey,
				Message: "record has no usable " + spec.Key + " field",
				Key:     key,
			})
			continue
		}
		if keyCounts[key] > 1 {
			p.Invalid = append(p.Invalid, &Error{
				Code:    ErrCodeDuplicateKey,
				Message: fmt.Sprintf("%s is shared by %d records", spec.Key, keyCounts[key]),
				Key:     key,
			})
			continue
		}
		p.Updates = append(p.Updates, Update{
			Key:      key,
			Filter:   store.Eq(spec.Key, keyValue),
			Patch:    patch,
			StableID: res.StableID,
			Tier:     res.Tier,
			Previous: previous,
		})
	}
	return p
}

// recordKey returns the key value, its text form and whether it can be used
// in a filter. Containers, null and missing values cannot.
func recordKey(rec doc.Object, path string) (doc.Value, string, bool) {
	v, ok := rec.Lookup(path)
	if !ok {
		return nil, "", false
	}
	text, ok := doc.Text(v)
	return v, text, ok
}

// stalePatch builds the $set for tracked fields that do not already hold
// stableID. An ObjectID-typed field stays an ObjectID.
func stalePatch(rec doc.Object, tracked []string, stableID string) (store.Patch, map[string]string) {
	var (
		patch    store.Patch
		previous map[string]string
	)
	for _, path := range tracked {
		cur, ok := rec.Lookup(path)
		text, _ := doc.Text(cur)
		if ok && text == stableID {
			continue
		}

		var next doc.Value = doc.String(stableID)
		if _, isOID := cur.(doc.ObjectID); isOID {
			next = doc.ObjectID(stableID)
		}
		patch.Set = append(patch.Set, doc.F(path, next))

		if previous == nil {
			previous = make(map[string]string, len(tracked))
		}
		previous[path] = text
	}
	return patch, previous
}
