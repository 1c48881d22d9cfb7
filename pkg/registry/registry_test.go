package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	skilltypes "github.com/skillmesh/skillmesh/pkg/types/skills"
)

func newTestRegistry() *Registry {
	r := New()
	r.AddSource(skilltypes.SourceDescriptor{
		Type:     skilltypes.SourceTypeGit,
		URL:      "https://github.com/acme/skills",
		Priority: 1,
	})
	r.AddSource(skilltypes.SourceDescriptor{
		Type:     skilltypes.SourceTypeLocal,
		Path:     "/home/op/skills",
		Priority: 2,
	})
	return r
}

func skillFrom(id string, kind skilltypes.SourceKind) *skilltypes.Skill {
	return &skilltypes.Skill{
		ID:          id,
		Name:        id,
		Description: "from " + string(kind),
		Source:      kind,
		Content:     "content from " + string(kind),
		LastUpdated: time.Now(),
	}
}

func TestRegisterSkillHigherPriorityWins(t *testing.T) {
	r := newTestRegistry()

	assert.True(t, r.RegisterSkill(skillFrom("deploy", skilltypes.SourceRepository)))
	assert.True(t, r.RegisterSkill(skillFrom("deploy", skilltypes.SourceLocal)))

	skill, err := r.GetSkill("deploy")
	require.NoError(t, err)
	assert.Equal(t, skilltypes.SourceLocal, skill.Source)
}

func TestRegisterSkillLowerPriorityDiscarded(t *testing.T) {
	r := newTestRegistry()

	// local (priority 2) lands first, repository (priority 1) must not
	// displace it regardless of ingestion order
	assert.True(t, r.RegisterSkill(skillFrom("deploy", skilltypes.SourceLocal)))
	assert.False(t, r.RegisterSkill(skillFrom("deploy", skilltypes.SourceRepository)))

	skill, err := r.GetSkill("deploy")
	require.NoError(t, err)
	assert.Equal(t, skilltypes.SourceLocal, skill.Source)
	assert.Equal(t, 1, r.Len())
}

func TestRegisterSkillEqualPriorityLastWriteWins(t *testing.T) {
	r := New()
	r.AddSource(skilltypes.SourceDescriptor{Type: skilltypes.SourceTypeGit, Priority: 1})

	first := skillFrom("deploy", skilltypes.SourceRepository)
	second := skillFrom("deploy", skilltypes.SourceRepository)
	second.Description = "newer"

	assert.True(t, r.RegisterSkill(first))
	assert.True(t, r.RegisterSkill(second))

	skill, err := r.GetSkill("deploy")
	require.NoError(t, err)
	assert.Equal(t, "newer", skill.Description)
}

func TestGetSkillNotFound(t *testing.T) {
	r := New()

	_, err := r.GetSkill("missing")
	require.Error(t, err)

	coded := skilltypes.AsError(err)
	assert.Equal(t, skilltypes.ErrSkillNotFound, coded.Code)
}

func TestListSkillsSorted(t *testing.T) {
	r := newTestRegistry()
	r.RegisterSkill(skillFrom("zeta", skilltypes.SourceLocal))
	r.RegisterSkill(skillFrom("alpha", skilltypes.SourceRepository))

	skills := r.ListSkills()
	require.Len(t, skills, 2)
	assert.Equal(t, "alpha", skills[0].ID)
	assert.Equal(t, "zeta", skills[1].ID)
}

func TestReplaceResolvesOverrides(t *testing.T) {
	r := newTestRegistry()
	r.RegisterSkill(skillFrom("stale", skilltypes.SourceRepository))

	syncedAt := time.Now()
	r.Replace([]*skilltypes.Skill{
		skillFrom("deploy", skilltypes.SourceRepository),
		skillFrom("deploy", skilltypes.SourceLocal),
		skillFrom("other", skilltypes.SourceRepository),
	}, syncedAt)

	assert.Equal(t, 2, r.Len())
	_, err := r.GetSkill("stale")
	assert.Error(t, err, "replace clears previous contents")

	skill, err := r.GetSkill("deploy")
	require.NoError(t, err)
	assert.Equal(t, skilltypes.SourceLocal, skill.Source)
	assert.Equal(t, syncedAt, r.LastSync())
}

func TestValidateParametersCollectsEveryViolation(t *testing.T) {
	r := newTestRegistry()
	skill := skillFrom("deploy", skilltypes.SourceRepository)
	skill.Parameters = []skilltypes.ParameterSchema{
		{Name: "a", Type: skilltypes.TypeString, Required: true},
		{Name: "b", Type: skilltypes.TypeNumber, Required: true},
	}
	r.RegisterSkill(skill)

	err := r.ValidateParameters("deploy", map[string]any{"z": 1})
	require.Error(t, err)

	coded := skilltypes.AsError(err)
	assert.Equal(t, skilltypes.ErrInvalidParams, coded.Code)
	require.Len(t, coded.Violations, 3)
	assert.Contains(t, coded.Violations[0], `missing required parameter "a"`)
	assert.Contains(t, coded.Violations[1], `missing required parameter "b"`)
	assert.Contains(t, coded.Violations[2], `unknown parameter "z"`)
}

func TestValidateParametersTypeAndEnum(t *testing.T) {
	r := newTestRegistry()
	skill := skillFrom("deploy", skilltypes.SourceRepository)
	skill.Parameters = []skilltypes.ParameterSchema{
		{Name: "env", Type: skilltypes.TypeString, Required: true, Enum: []string{"staging", "prod"}},
		{Name: "replicas", Type: skilltypes.TypeNumber},
	}
	r.RegisterSkill(skill)

	require.NoError(t, r.ValidateParameters("deploy", map[string]any{
		"env":      "prod",
		"replicas": 3,
	}))

	err := r.ValidateParameters("deploy", map[string]any{
		"env":      "production",
		"replicas": "three",
	})
	require.Error(t, err)
	coded := skilltypes.AsError(err)
	assert.Len(t, coded.Violations, 2)
}

func TestValidateParametersUnknownSkill(t *testing.T) {
	r := New()
	err := r.ValidateParameters("nope", nil)
	assert.Equal(t, skilltypes.ErrSkillNotFound, skilltypes.AsError(err).Code)
}

func TestSnapshotRoundTrip(t *testing.T) {
	r := newTestRegistry()
	r.RegisterSkill(skillFrom("deploy", skilltypes.SourceLocal))
	r.RegisterSkill(skillFrom("rollback", skilltypes.SourceRepository))
	r.SetLastSync(time.Now())

	snapshot := r.ToSnapshot()
	require.Len(t, snapshot.Skills, 2)
	require.Len(t, snapshot.Sources, 2)

	restored := New()
	restored.FromSnapshot(snapshot)

	assert.Equal(t, 2, restored.Len())
	skill, err := restored.GetSkill("deploy")
	require.NoError(t, err)
	assert.Equal(t, skilltypes.SourceLocal, skill.Source)
	assert.Equal(t, r.LastSync().Unix(), restored.LastSync().Unix())
}

func TestMatchesFilter(t *testing.T) {
	skill := &skilltypes.Skill{
		ID:          "pdf-processing",
		Name:        "PDF Processing",
		Description: "Extract text from documents",
	}

	assert.True(t, MatchesFilter(skill, ""))
	assert.True(t, MatchesFilter(skill, "pdf"))
	assert.True(t, MatchesFilter(skill, "EXTRACT"))
	assert.True(t, MatchesFilter(skill, "pdf-proc"))
	assert.False(t, MatchesFilter(skill, "spreadsheet"))
}
