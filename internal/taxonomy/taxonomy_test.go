package taxonomy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultBuilds(t *testing.T) {
	t.Parallel()

	tax := Default()
	assert.Equal(t, "builtin-1", tax.Version())

	id, ok := tax.Canonical("AI/ML")
	require.True(t, ok)
	assert.Equal(t, "ai_ml", id)
}

func TestRelation(t *testing.T) {
	t.Parallel()

	tax := Default()

	tests := []struct {
		name string
		a, b string
		want Relation
	}{
		{"same id", "ai_ml", "ai_ml", RelationExact},
		{"alias resolves to same area", "Machine Learning", "ai/ml", RelationExact},
		{"adjacent areas", "ai_ml", "autonomy", RelationRelated},
		{"adjacency through alias", "cybersecurity", "cloud", RelationRelated},
		{"known but unlinked", "biomedical", "space", RelationUnrelated},
		{"one unknown", "ai_ml", "underwater basket weaving", RelationUnknown},
		{"both unknown", "x", "y", RelationUnknown},
		{"empty label", "", "ai_ml", RelationUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tax.Relation(tt.a, tt.b))
			// Relation is symmetric.
			assert.Equal(t, tt.want, tax.Relation(tt.b, tt.a))
		})
	}
}

func TestRelationString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "exact", RelationExact.String())
	assert.Equal(t, "related", RelationRelated.String())
	assert.Equal(t, "unrelated", RelationUnrelated.String())
	assert.Equal(t, "unknown", RelationUnknown.String())
}

func TestCanonicalNormalizesWhitespaceAndCase(t *testing.T) {
	t.Parallel()

	tax := Default()

	id, ok := tax.Canonical("  Machine   LEARNING ")
	require.True(t, ok)
	assert.Equal(t, "ai_ml", id)

	_, ok = tax.Canonical("")
	assert.False(t, ok)
}

func TestLoadFromYAML(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "taxonomy.yaml")
	yaml := `
taxonomy:
  version: "2026.1"
  areas:
    - id: quantum
      name: Quantum Information Science
      aliases: [quantum computing, qis]
      related: [photonics]
    - id: photonics
      name: Photonics
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	tax, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "2026.1", tax.Version())

	assert.Equal(t, RelationExact, tax.Relation("QIS", "quantum computing"))
	assert.Equal(t, RelationRelated, tax.Relation("quantum", "photonics"))
	// Declared one-way in the file, symmetric in lookups.
	assert.Equal(t, RelationRelated, tax.Relation("photonics", "quantum"))
	assert.Equal(t, RelationUnknown, tax.Relation("quantum", "ai_ml"))
}

func TestLoadRejectsBadFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing version",
			yaml:    "taxonomy:\n  areas:\n    - id: a\n      name: A\n",
			wantErr: "version is required",
		},
		{
			name:    "no areas",
			yaml:    "taxonomy:\n  version: \"1\"\n",
			wantErr: "no areas defined",
		},
		{
			name:    "duplicate id",
			yaml:    "taxonomy:\n  version: \"1\"\n  areas:\n    - id: a\n      name: A\n    - id: a\n      name: Again\n",
			wantErr: "duplicate area id",
		},
		{
			name:    "dangling relation",
			yaml:    "taxonomy:\n  version: \"1\"\n  areas:\n    - id: a\n      name: A\n      related: [ghost]\n",
			wantErr: "unknown area",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(dir, tt.name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0644))

			_, err := Load(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
