package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/idsync/internal/doc"
	"github.com/roach88/idsync/internal/match"
	tu "github.com/roach88/idsync/internal/testutil"
)

func TestTargetSpec_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*TargetSpec)
		wantErr string
	}{
		{"valid", func(*TargetSpec) {}, ""},
		{"no key", func(s *TargetSpec) { s.Key = "" }, "key"},
		{"no identity fields", func(s *TargetSpec) { s.FullName, s.Phone = "", "" }, "name or phone"},
		{"no tracked", func(s *TargetSpec) { s.Tracked = nil }, "tracked"},
		{"empty tracked", func(s *TargetSpec) { s.Tracked = []string{""} }, "empty tracked"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := orderSpec
			spec.Tracked = append([]string(nil), orderSpec.Tracked...)
			tt.mutate(&spec)

			err := spec.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Contains(t, err.Error(), string(ErrCodeInvalidSpec))
		})
	}
}

func TestTargetSpec_Candidate(t *testing.T) {
	c := orderSpec.Candidate(tu.Order("O1", "Alice Tran", "0900000001", "X"))
	assert.Equal(t, match.Candidate{FullName: "Alice Tran", Phone: "0900000001"}, c)
}

func TestExtractIdentities(t *testing.T) {
	created := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	customers := []doc.Object{
		append(tu.Customer("CUS000001", "Alice Tran", "0900000001", "alice@example.com"),
			doc.F("createdAt", doc.NewTimestamp(created)),
			doc.F("updatedAt", doc.String("2024-02-03T04:05:06Z")),
		),
		{doc.F("fullName", doc.String("No Id"))},
	}

	got := ExtractIdentities(customers, DefaultIdentitySpec)

	require.Len(t, got, 2)
	assert.Equal(t, match.IdentityRecord{
		StableID:  "CUS000001",
		FullName:  "Alice Tran",
		Phone:     "0900000001",
		Email:     "alice@example.com",
		CreatedAt: created,
		UpdatedAt: time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC),
	}, got[0])
	assert.Equal(t, match.IdentityRecord{FullName: "No Id"}, got[1])
}

func TestIdentitySpec_Validate(t *testing.T) {
	assert.NoError(t, DefaultIdentitySpec.Validate())
	assert.Error(t, IdentitySpec{FullName: "name"}.Validate())
}

func TestPlan_NeverTouchesStore(t *testing.T) {
	e := newTestEngine()
	ix := match.Build([]match.IdentityRecord{tu.Alice})
	records := []doc.Object{
		tu.Order("O1", "Alice Tran", "0900000001", "OLD"),
		tu.Order("O2", "Alice Tran", "0900000001", "CUS000001"),
		tu.Order("O3", "Bob", "000", "OLD"),
		tu.Order("O4", "", "", "OLD"),
	}

	p := e.Plan(ix, records, orderSpec)

	require.Len(t, p.Records, 4)
	require.Len(t, p.Updates, 1)
	assert.Equal(t, "O1", p.Updates[0].Key)
	assert.Equal(t, "OrderID=O1", p.Updates[0].Filter.String())
	assert.Equal(t, match.TierNamePhone, p.Updates[0].Tier)
	assert.Equal(t, 1, p.AlreadyCorrect)
	assert.Equal(t, []string{"O4"}, p.Skipped)
	require.Len(t, p.NotFound, 1)
	assert.Equal(t, "O3", p.NotFound[0].Key)
	assert.Equal(t, map[string]int{"name_phone": 2}, p.ByTier)

	v, _ := records[0].Get("CustomerID")
	assert.Equal(t, doc.String("OLD"), v)
}
