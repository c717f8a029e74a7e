package kit

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromRow_DefaultsForOlderRows(t *testing.T) {
	tests := []struct {
		name   string
		config string
	}{
		{name: "empty blob", config: ``},
		{name: "empty object", config: `{}`},
		{name: "only prompt", config: `{"systemPrompt":"be terse"}`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			k, err := FromRow(&Row{ID: "k1", Name: "Kit", Config: []byte(tt.config)})
			require.NoError(t, err)

			assert.Equal(t, DefaultTemplateType, k.Template.Type)
			assert.NotNil(t, k.Template.Files)
			assert.Empty(t, k.Template.Files)
			assert.NotNil(t, k.Resources)
			assert.Empty(t, k.Resources)
			assert.NotNil(t, k.McpServerIDs)
			assert.Empty(t, k.McpServerIDs)
		})
	}
}

func TestFromRow_MergesColumnsAndConfig(t *testing.T) {
	owner := uuid.New()
	thumb := "https://cdn.example.com/k.png"
	row := &Row{
		ID: "shadcn", Name: "shadcn", Description: "UI kit", Thumbnail: &thumb, UserID: &owner,
		Config: []byte(`{
			"template": {"type": "vite-react", "files": {"src/App.tsx": "export default 1"}},
			"npmPackages": {"react": "^19.0.0"},
			"resources": [{"id": "r1", "name": "Guide", "type": "markdown", "content": "# hi"}],
			"designTokens": {"color": {"primary": "#000"}},
			"systemPrompt": "Use shadcn",
			"mcpServerIds": ["figma"]
		}`),
	}

	k, err := FromRow(row)
	require.NoError(t, err)

	assert.Equal(t, "UI kit", k.Description)
	assert.Equal(t, &thumb, k.Thumbnail)
	assert.Equal(t, &owner, k.UserID)
	assert.Equal(t, "vite-react", k.Template.Type)
	assert.Equal(t, "export default 1", k.Template.Files["src/App.tsx"])
	assert.Equal(t, "^19.0.0", k.NpmPackages["react"])
	require.Len(t, k.Resources, 1)
	assert.Equal(t, "Guide", k.Resources[0].Name)
	assert.JSONEq(t, `{"color":{"primary":"#000"}}`, string(k.DesignTokens))
	assert.Equal(t, "Use shadcn", k.SystemPrompt)
	assert.Equal(t, []string{"figma"}, k.McpServerIDs)
}

func TestFromRow_CorruptConfig(t *testing.T) {
	_, err := FromRow(&Row{ID: "bad", Config: []byte(`{"template":`)})
	assert.Error(t, err)
}

func TestToRow_KeepsColumnsOutOfConfig(t *testing.T) {
	teamID := uuid.New()
	k := &Kit{
		ID: "k1", Name: "Kit", Description: "d", TeamID: &teamID,
		Template:     Template{Type: "default", Files: map[string]string{"a.txt": "a"}},
		SystemPrompt: "p",
	}

	row, err := ToRow(k)
	require.NoError(t, err)
	assert.Equal(t, "k1", row.ID)
	assert.Equal(t, &teamID, row.TeamID)

	var blob map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(row.Config, &blob))
	assert.NotContains(t, blob, "id")
	assert.NotContains(t, blob, "name")
	assert.NotContains(t, blob, "teamId")
	assert.Contains(t, blob, "template")
	assert.Contains(t, blob, "systemPrompt")
	assert.NotContains(t, blob, "resources")
}

func TestToRow_EmptyTemplateOmitted(t *testing.T) {
	row, err := ToRow(&Kit{ID: "k1", Name: "Kit"})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(row.Config))
}

func TestDecodeLegacy(t *testing.T) {
	k, ok := decodeLegacy(json.RawMessage(`{
		"id": "legacy-1", "name": "Old kit", "userId": "not-a-uuid",
		"createdAt": 1700000000, "systemPrompt": "hello"
	}`))
	require.True(t, ok)
	assert.Equal(t, "legacy-1", k.ID)
	assert.Equal(t, "hello", k.SystemPrompt)
	assert.Nil(t, k.UserID)

	_, ok = decodeLegacy(json.RawMessage(`{"name": "no id"}`))
	assert.False(t, ok)
	_, ok = decodeLegacy(json.RawMessage(`"just a string"`))
	assert.False(t, ok)
}
