package states

import (
	"testing"
	"time"

	"bizplan/internal/core"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*Store, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	clock := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	return NewStore("/data/states", WithFs(fs), WithClock(func() time.Time { return clock })), fs
}

func testState() core.SectionState {
	temp := float32(0)
	s := core.NewSectionState(core.BusinessProfile{
		CompanyName:    "Acme S.r.l.",
		BusinessSector: "software gestionale",
		YearFounded:    "2019",
	})
	s.Temperature = &temp
	s.SectionPrompts = map[string]string{"conclusione": "chiudi con una sintesi"}
	s.PerplexityResults = &core.ResearchBundle{Trends: []core.Trend{{Description: "cloud"}}}
	return s
}

func TestSaveAndLoad(t *testing.T) {
	store, fs := newTestStore(t)

	name, err := store.Save(testState(), "")
	require.NoError(t, err)
	assert.Equal(t, "acme_s_r_l_20250314_093000", name)

	exists, err := afero.Exists(fs, "/data/states/acme_s_r_l_20250314_093000.yaml")
	require.NoError(t, err)
	assert.True(t, exists)

	loaded, err := store.Load(name)
	require.NoError(t, err)
	assert.Equal(t, "Acme S.r.l.", loaded.CompanyName)
	assert.Equal(t, core.Text("2019"), loaded.YearFounded)
	assert.Equal(t, "chiudi con una sintesi", loaded.SectionPrompts["conclusione"])
	require.NotNil(t, loaded.Temperature)
	assert.Zero(t, *loaded.Temperature)
	assert.False(t, loaded.PerplexityResults.IsEmpty())
}

func TestSaveNamed(t *testing.T) {
	store, _ := newTestStore(t)

	name, err := store.Save(testState(), "bozza.yaml")
	require.NoError(t, err)
	assert.Equal(t, "bozza", name)

	_, err = store.Load("bozza")
	assert.NoError(t, err)
}

func TestInvalidNames(t *testing.T) {
	store, _ := newTestStore(t)

	for _, name := range []string{"../fuori", "a/b", `a\b`, "..", "  "} {
		_, err := store.Save(testState(), name)
		assert.ErrorIs(t, err, ErrInvalidName, name)
	}
	_, err := store.Load("../etc/passwd")
	assert.ErrorIs(t, err, ErrInvalidName)
}

func TestBackup(t *testing.T) {
	store, _ := newTestStore(t)

	name, err := store.Backup(testState())
	require.NoError(t, err)
	assert.Equal(t, "acme_s_r_l_backup_20250314_093000", name)

	infos, err := store.List()
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.True(t, infos[0].Backup)
}

func TestList(t *testing.T) {
	store, fs := newTestStore(t)

	infos, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, infos, "missing directory lists nothing")

	_, err = store.Save(testState(), "prima")
	require.NoError(t, err)
	plain := core.NewSectionState(core.BusinessProfile{})
	_, err = store.Save(plain, "seconda")
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fs, "/data/states/rotta.yaml", []byte("company_name: ["), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/data/states/note.txt", []byte("x"), 0o644))

	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, fs.Chtimes("/data/states/prima.yaml", older, older))

	infos, err = store.List()
	require.NoError(t, err)
	require.Len(t, infos, 2, "corrupt and foreign files are skipped")
	assert.Equal(t, "seconda", infos[0].Name)
	assert.False(t, infos[0].HasResearch)
	assert.Equal(t, "prima", infos[1].Name)
	assert.Equal(t, "Acme S.r.l.", infos[1].CompanyName)
	assert.True(t, infos[1].HasResearch)
	assert.Positive(t, infos[1].Size)
}

func TestDelete(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Save(testState(), "bozza")
	require.NoError(t, err)
	require.NoError(t, store.Delete("bozza"))

	_, err = store.Load("bozza")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete("bozza"), ErrNotFound)
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "caff_roma", slug("  Caffè Roma "))
	assert.Equal(t, "business_plan", slug(""))
	assert.Equal(t, "business_plan", slug("!!!"))
}
