package engine

import (
	"time"

	"github.com/roach88/idsync/internal/doc"
	"github.com/roach88/idsync/internal/match"
)

// TargetSpec declares where a target collection keeps its loose identity
// fields and which fields hold the stored customer id. All fields are dot
// paths into the document ("shippingInfo.fullName").
type TargetSpec struct {
	// Name is the collection name, used in reports and metrics.
	Name string `json:"name" yaml:"name"`

	// Key uniquely identifies a record ("_id", "OrderID").
	Key string `json:"key" yaml:"key"`

	FullName string `json:"full_name" yaml:"full_name"`
	Phone    string `json:"phone" yaml:"phone"`
	Email    string `json:"email,omitempty" yaml:"email,omitempty"`

	// Tracked lists the fields set to the resolved stable id.
	Tracked []string `json:"tracked" yaml:"tracked"`
}

// Validate checks that the spec can drive a reconcile pass.
func (s TargetSpec) Validate() error {
	switch {
	case s.Key == "":
		return newSpecError("target %q: key field is required", s.Name)
	case s.FullName == "" && s.Phone == "":
		return newSpecError("target %q: at least one of full_name or phone is required", s.Name)
	case len(s.Tracked) == 0:
		return newSpecError("target %q: at least one tracked field is required", s.Name)
	}
	for _, f := range s.Tracked {
		if f == "" {
			return newSpecError("target %q: empty tracked field", s.Name)
		}
	}
	return nil
}

// Candidate extracts the loose identity fields of a record.
func (s TargetSpec) Candidate(o doc.Object) match.Candidate {
	return match.Candidate{
		FullName: lookupText(o, s.FullName),
		Phone:    lookupText(o, s.Phone),
		Email:    lookupText(o, s.Email),
	}
}

// IdentitySpec declares where identity documents keep their fields.
type IdentitySpec struct {
	StableID  string `json:"stable_id" yaml:"stable_id"`
	FullName  string `json:"full_name" yaml:"full_name"`
	Phone     string `json:"phone" yaml:"phone"`
	Email     string `json:"email,omitempty" yaml:"email,omitempty"`
	CreatedAt string `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// DefaultIdentitySpec matches customer documents shaped
// {CustomerID, fullName, phone, email, createdAt, updatedAt}.
var DefaultIdentitySpec = IdentitySpec{
	StableID:  "CustomerID",
	FullName:  "fullName",
	Phone:     "phone",
	Email:     "email",
	CreatedAt: "createdAt",
	UpdatedAt: "updatedAt",
}

// Validate checks that the spec names a stable id field.
func (s IdentitySpec) Validate() error {
	if s.StableID == "" {
		return newSpecError("identity: stable_id field is required")
	}
	return nil
}

// ExtractIdentities reads identity records out of documents. Documents
// without a stable id are kept; match.Build ignores them and counts them.
func ExtractIdentities(docs []doc.Object, spec IdentitySpec) []match.IdentityRecord {
	out := make([]match.IdentityRecord, len(docs))
	for i, d := range docs {
		out[i] = match.IdentityRecord{
			StableID:  lookupText(d, spec.StableID),
			FullName:  lookupText(d, spec.FullName),
			Phone:     lookupText(d, spec.Phone),
			Email:     lookupText(d, spec.Email),
			CreatedAt: lookupTime(d, spec.CreatedAt),
			UpdatedAt: lookupTime(d, spec.UpdatedAt),
		}
	}
	return out
}

// lookupText returns the text form of the value at path, or "" when the
// path is empty, missing or holds a non-scalar.
func lookupText(o doc.Object, path string) string {
	if path == "" {
		return ""
	}
	v, ok := o.Lookup(path)
	if !ok {
		return ""
	}
	text, _ := doc.Text(v)
	return text
}

func lookupTime(o doc.Object, path string) time.Time {
	if path == "" {
		return time.Time{}
	}
	v, ok := o.Lookup(path)
	if !ok {
		return time.Time{}
	}
	switch val := v.(type) {
	case doc.Timestamp:
		return val.Time()
	case doc.String:
		if t, err := time.Parse(time.RFC3339Nano, string(val)); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
