package match

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/idsync/internal/doc"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"   ", ""},
		{"  Alice Tran  ", "alice tran"},
		{"ALICE@EXAMPLE.COM", "alice@example.com"},
		{"\tTrần Thị Ánh\n", "trần thị ánh"},
		// combining marks compose to the same string as the precomposed input
		{"TRA\u0302\u0300N", "tr\u1ea7n"},
		{"0900 000 001", "0900 000 001"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	for _, s := range []string{" Bob ", "ĐẶNG Văn", "x@Y.z"} {
		once := Normalize(s)
		assert.Equal(t, once, Normalize(once))
	}
}

func TestNormalizeValue(t *testing.T) {
	assert.Equal(t, "", NormalizeValue(nil))
	assert.Equal(t, "", NormalizeValue(doc.Null{}))
	assert.Equal(t, "900000001", NormalizeValue(doc.Int(900000001)))
	assert.Equal(t, "alice", NormalizeValue(doc.String(" Alice ")))
	assert.Equal(t, "", NormalizeValue(doc.Object{}))
}

func TestResolveSingleRecordByNameAndPhone(t *testing.T) {
	records := []IdentityRecord{
		{StableID: "CUS000001", FullName: "Alice Tran", Phone: "0900000001"},
		{StableID: "CUS000002", FullName: "Bob", Phone: "0900000002", Email: "bob@example.com"},
		{StableID: "CUS000003", FullName: "Chi", Email: "chi@example.com"},
		{StableID: "CUS000004", Phone: "0900000004"},
	}

	for _, r := range records {
		t.Run(r.StableID, func(t *testing.T) {
			ix := Build([]IdentityRecord{r})
			got := ix.Resolve(Candidate{FullName: r.FullName, Phone: r.Phone})
			assert.Equal(t, Matched, got.Outcome)
			assert.Equal(t, r.StableID, got.StableID)
		})
	}
}

func TestResolveIsCaseAndWhitespaceInsensitive(t *testing.T) {
	ix := Build([]IdentityRecord{{StableID: "CUS000001", FullName: "Alice Tran", Phone: "0900000001"}})

	got := ix.Resolve(Candidate{FullName: "  ALICE tran ", Phone: " 0900000001"})

	assert.Equal(t, Resolution{Outcome: Matched, StableID: "CUS000001", Tier: TierNamePhone}, got)
}

func TestResolvePriorityOrdering(t *testing.T) {
	ix := Build([]IdentityRecord{
		{StableID: "CUS000001", FullName: "Nguyen Van A", Phone: "0900000001"},
		{StableID: "CUS000002", FullName: "Nguyen Van A", Phone: "0900000002"},
	})

	first := ix.Resolve(Candidate{FullName: "Nguyen Van A", Phone: "0900000001"})
	second := ix.Resolve(Candidate{FullName: "Nguyen Van A", Phone: "0900000002"})

	assert.Equal(t, "CUS000001", first.StableID)
	assert.Equal(t, TierNamePhone, first.Tier)
	assert.Equal(t, "CUS000002", second.StableID)
	assert.Equal(t, TierNamePhone, second.Tier)
}

func TestResolveFallsThroughTiers(t *testing.T) {
	ix := Build([]IdentityRecord{
		{StableID: "CUS000001", FullName: "Alice Tran", Phone: "0900000001", Email: "alice@example.com"},
		{StableID: "CUS000002", FullName: "Bob Le", Phone: "0900000002"},
	})

	tests := []struct {
		name string
		c    Candidate
		want Resolution
	}{
		{
			name: "name and email",
			c:    Candidate{FullName: "Alice Tran", Phone: "0999999999", Email: "ALICE@example.com"},
			want: Resolution{Outcome: Matched, StableID: "CUS000001", Tier: TierNameEmail},
		},
		{
			name: "phone only",
			c:    Candidate{FullName: "B. Le", Phone: "0900000002"},
			want: Resolution{Outcome: Matched, StableID: "CUS000002", Tier: TierPhone},
		},
		{
			name: "name only",
			c:    Candidate{FullName: "bob le", Phone: "0123"},
			want: Resolution{Outcome: Matched, StableID: "CUS000002", Tier: TierName},
		},
		{
			name: "nothing matches",
			c:    Candidate{FullName: "Bob Unknown", Phone: "000"},
			want: Resolution{Outcome: NotFound},
		},
		{
			name: "no identity information",
			c:    Candidate{FullName: " ", Phone: ""},
			want: Resolution{Outcome: Skipped},
		},
		{
			name: "email alone is skipped",
			c:    Candidate{Email: "alice@example.com"},
			want: Resolution{Outcome: Skipped},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ix.Resolve(tt.c))
		})
	}
}

func TestBuildFirstWriterWinsOnWeakTiers(t *testing.T) {
	ix := Build([]IdentityRecord{
		{StableID: "CUS000001", FullName: "Linh", Phone: "0900000001"},
		{StableID: "CUS000002", FullName: "Linh", Phone: "0900000002"},
		{StableID: "CUS000003", FullName: "Mai", Phone: "0900000001"},
	})

	byName := ix.Resolve(Candidate{FullName: "linh", Phone: "0777"})
	byPhone := ix.Resolve(Candidate{FullName: "someone", Phone: "0900000001"})

	assert.Equal(t, "CUS000001", byName.StableID)
	assert.Equal(t, TierName, byName.Tier)
	assert.Equal(t, "CUS000001", byPhone.StableID)
	assert.Equal(t, TierPhone, byPhone.Tier)

	stats := ix.Stats()
	assert.Equal(t, 3, stats.Records)
	assert.Equal(t, 1, stats.Shadowed["name"])
	assert.Equal(t, 1, stats.Shadowed["phone"])
	assert.Equal(t, 3, stats.Keys["name_phone"])
	assert.Equal(t, 2, stats.Keys["name"])
}

func TestBuildSkipsRecordsWithoutStableID(t *testing.T) {
	ix := Build([]IdentityRecord{
		{FullName: "Ghost", Phone: "0900000009"},
		{StableID: "CUS000001", FullName: "Ghost", Phone: "0900000009"},
	})

	got := ix.Resolve(Candidate{FullName: "Ghost", Phone: "0900000009"})
	assert.Equal(t, "CUS000001", got.StableID)
	assert.Equal(t, 1, ix.Stats().Ignored)
}

func TestBuildEmptyFieldsContributeNoKeys(t *testing.T) {
	ix := Build([]IdentityRecord{{StableID: "CUS000001"}})

	stats := ix.Stats()
	for _, tier := range []string{"name_phone", "name_email", "phone", "name"} {
		assert.Zero(t, stats.Keys[tier], tier)
	}
	assert.Equal(t, NotFound, ix.Resolve(Candidate{FullName: "x"}).Outcome)
}

func TestStatsReturnsCopy(t *testing.T) {
	ix := Build([]IdentityRecord{{StableID: "CUS000001", FullName: "A"}})

	s := ix.Stats()
	s.Keys["name"] = 99

	assert.Equal(t, 1, ix.Stats().Keys["name"])
}

func TestResolveConcurrentReaders(t *testing.T) {
	records := make([]IdentityRecord, 100)
	for i := range records {
		records[i] = IdentityRecord{
			StableID: fmt.Sprintf("CUS%06d", i+1),
			FullName: fmt.Sprintf("Customer %d", i),
			Phone:    fmt.Sprintf("09%08d", i),
		}
	}
	ix := Build(records)

	var wg sync.WaitGroup
	errs := make(chan string, len(records))
	for _, r := range records {
		wg.Add(1)
		go func(r IdentityRecord) {
			defer wg.Done()
			got := ix.Resolve(Candidate{FullName: r.FullName, Phone: r.Phone})
			if got.StableID != r.StableID {
				errs <- fmt.Sprintf("%s resolved to %s", r.StableID, got.StableID)
			}
		}(r)
	}
	wg.Wait()
	close(errs)

	for e := range errs {
		t.Error(e)
	}
}

func TestTierAndOutcomeStrings(t *testing.T) {
	require.Equal(t, "name_phone", TierNamePhone.String())
	require.Equal(t, "none", TierNone.String())
	require.Equal(t, "skipped", Skipped.String())
	require.Equal(t, "unknown", Outcome(0).String())
}
