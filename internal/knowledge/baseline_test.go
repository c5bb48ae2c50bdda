package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBaseline_Bundled(t *testing.T) {
	entries, err := loadBaseline(baselineYAML)
	require.NoError(t, err)
	require.Len(t, entries, 12)

	for _, e := range entries {
		assert.NoError(t, e.Validate(), e.ID)
		assert.NotEqual(t, KindRelease, e.Kind, "release entries are only ingested")
	}
}

func TestLoadBaseline_Rejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "malformed yaml",
			yaml: "entries: [",
			want: "decode baseline",
		},
		{
			name: "missing body",
			yaml: "entries:\n  - id: a\n    title: A\n    kind: pattern\n    source: s\n",
			want: "Body",
		},
		{
			name: "duplicate id",
			yaml: "entries:\n" +
				"  - {id: a, title: A, body: b, kind: pattern, source: s}\n" +
				"  - {id: a, title: A2, body: b2, kind: pitfall, source: s}\n",
			want: "duplicate entry id",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadBaseline([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
