package rules

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticCatalog(t *testing.T) {
	rs := StaticCatalog()
	require.NotEmpty(t, rs)

	seen := make(map[string]bool)
	for _, r := range rs {
		t.Run(r.ID, func(t *testing.T) {
			assert.NoError(t, r.Validate())
			assert.Equal(t, OriginStatic, r.Origin)
			assert.Equal(t, StatusApproved, r.ReviewStatus)
			assert.True(t, r.IsActive())
			assert.False(t, seen[r.ID], "duplicate id")
			seen[r.ID] = true
			if r.PatternKind == PatternRegex {
				_, err := regexp.Compile(r.Pattern)
				assert.NoError(t, err)
			}
		})
	}
	assert.Equal(t, "hb-fatal-error", rs[0].ID)
}

func TestStaticCatalog_ReturnsCopy(t *testing.T) {
	a := StaticCatalog()
	a[0].Pattern = "changed"
	a[0].FileTypes[0] = ".m"

	b := StaticCatalog()
	assert.Equal(t, "fatalError(", b[0].Pattern)
	assert.Equal(t, []string{".swift"}, b[0].FileTypes)
}

func TestSeverityRank(t *testing.T) {
	assert.Less(t, SeverityCritical.Rank(), SeverityError.Rank())
	assert.Less(t, SeverityError.Rank(), SeverityWarning.Rank())
	assert.Less(t, SeverityWarning.Rank(), Severity("info").Rank())
}

func TestParseSeverity(t *testing.T) {
	sev, err := ParseSeverity("error")
	require.NoError(t, err)
	assert.Equal(t, SeverityError, sev)

	_, err = ParseSeverity("info")
	assert.Error(t, err)
	_, err = ParseSeverity("")
	assert.Error(t, err)
}

func TestParseReviewStatus(t *testing.T) {
	st, err := ParseReviewStatus("approved")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, st)

	_, err = ParseReviewStatus("Approved")
	assert.Error(t, err)
	_, err = ParseReviewStatus("")
	assert.Error(t, err)
}
