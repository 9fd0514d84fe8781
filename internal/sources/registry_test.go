package sources

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/git-pkgs/feedchooser/internal/core"
)

type memSettings struct {
	sources []string
	active  string
	saves   int
}

func (m *memSettings) Sources() ([]string, error) { return m.sources, nil }
func (m *memSettings) SetSources(urls []string) error {
	m.sources = urls
	m.saves++
	return nil
}
func (m *memSettings) Active() (string, error)    { return m.active, nil }
func (m *memSettings) SetActive(url string) error { m.active = url; return nil }

type staticCreds struct{}

func (staticCreds) Apply(src core.Source) core.Source {
	if src.URL == "https://private.example.com/v3/index.json" {
		src.Credentials = &core.Credentials{Username: "ci", Password: "token"}
	}
	return src
}

func urls(srcs []core.Source) []string {
	out := make([]string, len(srcs))
	for i, s := range srcs {
		out[i] = s.URL
	}
	return out
}

func feed(n int) core.Source {
	return core.NewSource(fmt.Sprintf("https://feed%d.example.com/v3/index.json", n))
}

func TestNew_Empty(t *testing.T) {
	reg, err := New(&memSettings{}, PackageSourceOptions()...)
	require.NoError(t, err)

	assert.Equal(t, []string{DefaultPackageSource}, urls(reg.Sources()))
	assert.Equal(t, DefaultPackageSource, reg.Active().URL)
	assert.Equal(t, "nuget.org", reg.Active().Name)
	assert.False(t, reg.IsFixed())
}

func TestNew_MigratesDeprecatedURLs(t *testing.T) {
	settings := &memSettings{
		sources: []string{"https://www.nuget.org/api/v2/", "https://feed1.example.com/v3/index.json", "HTTPS://NUGET.ORG/API/V2/"},
		active:  "https://nuget.org/api/v2/",
	}

	reg, err := New(settings, PackageSourceOptions()...)
	require.NoError(t, err)

	assert.Equal(t, []string{DefaultPackageSource, "https://feed1.example.com/v3/index.json"}, urls(reg.Sources()))
	assert.Equal(t, DefaultPackageSource, reg.Active().URL)
}

func TestNew_RestoresOrderAndActive(t *testing.T) {
	settings := &memSettings{
		sources: []string{DefaultPackageSource, feed(1).URL, feed(2).URL},
		active:  feed(2).URL,
	}

	reg, err := New(settings, PackageSourceOptions()...)
	require.NoError(t, err)

	assert.Equal(t, []string{DefaultPackageSource, feed(2).URL, feed(1).URL}, urls(reg.Sources()))
	assert.Equal(t, feed(2).URL, reg.Active().URL)
}

func TestNotifySourceUsed_Bound(t *testing.T) {
	reg, err := New(nil, PackageSourceOptions()...)
	require.NoError(t, err)

	for i := 1; i <= 7; i++ {
		require.NoError(t, reg.NotifySourceUsed(feed(i)))

		srcs := reg.Sources()
		assert.LessOrEqual(t, len(srcs), DefaultBound)
		assert.Equal(t, DefaultPackageSource, srcs[0].URL, "default stays first")
	}

	assert.Equal(t, []string{DefaultPackageSource, feed(7).URL, feed(6).URL, feed(5).URL, feed(4).URL}, urls(reg.Sources()))
}

func TestNotifySourceUsed_MovesExistingToFront(t *testing.T) {
	reg, err := New(nil, PackageSourceOptions()...)
	require.NoError(t, err)

	require.NoError(t, reg.NotifySourceUsed(feed(1)))
	require.NoError(t, reg.NotifySourceUsed(feed(2)))
	require.NoError(t, reg.NotifySourceUsed(core.Source{Name: "renamed", URL: "HTTPS://FEED1.EXAMPLE.COM/v3/index.json"}))

	srcs := reg.Sources()
	require.Len(t, srcs, 3)
	assert.Equal(t, "renamed", srcs[1].Name)
	assert.Equal(t, feed(2).URL, srcs[2].URL)

	require.NoError(t, reg.NotifySourceUsed(core.NewSource("https://API.NUGET.ORG/v3/index.json")))
	assert.Len(t, reg.Sources(), 3, "the default is never duplicated")
}

func TestNotifySourceUsed_Empty(t *testing.T) {
	reg, err := New(nil)
	require.NoError(t, err)

	assert.ErrorIs(t, reg.NotifySourceUsed(core.Source{URL: "  "}), ErrEmptySource)
}

func TestFixed(t *testing.T) {
	fixed := core.NewSource("https://fixed.example.com/v3/index.json")
	reg, err := New(nil, append(PackageSourceOptions(), WithFixed(fixed))...)
	require.NoError(t, err)

	assert.True(t, reg.IsFixed())
	assert.Equal(t, fixed.URL, reg.Active().URL)
	assert.ErrorIs(t, reg.SetActive(feed(1)), ErrFixedSource)
	assert.Equal(t, fixed.URL, reg.Active().URL)
}

func TestSetActive(t *testing.T) {
	reg, err := New(nil, PackageSourceOptions()...)
	require.NoError(t, err)

	require.NoError(t, reg.NotifySourceUsed(core.Source{Name: "one", URL: feed(1).URL}))
	require.NoError(t, reg.SetActive(core.NewSource(feed(1).URL)))
	assert.Equal(t, "one", reg.Active().Name, "active reuses the stored entry")

	assert.ErrorIs(t, reg.SetActive(core.Source{}), ErrEmptySource)
}

func TestClose_Persists(t *testing.T) {
	settings := &memSettings{}
	reg, err := New(settings, PackageSourceOptions()...)
	require.NoError(t, err)

	require.NoError(t, reg.NotifySourceUsed(feed(1)))
	require.NoError(t, reg.SetActive(feed(1)))
	require.NoError(t, reg.Close())
	require.NoError(t, reg.Close())

	assert.Equal(t, 1, settings.saves)
	assert.Equal(t, []string{DefaultPackageSource, feed(1).URL}, settings.sources)
	assert.Equal(t, feed(1).URL, settings.active)

	reopened, err := New(settings, PackageSourceOptions()...)
	require.NoError(t, err)
	assert.Equal(t, urls(reg.Sources()), urls(reopened.Sources()))
	assert.Equal(t, feed(1).URL, reopened.Active().URL)
}

func TestPublishSourceOptions(t *testing.T) {
	reg, err := New(&memSettings{sources: []string{"https://nuget.org"}}, PublishSourceOptions()...)
	require.NoError(t, err)

	assert.Equal(t, []string{DefaultPublishSource}, urls(reg.Sources()))
}

func TestCredentials(t *testing.T) {
	settings := &memSettings{sources: []string{"https://private.example.com/v3/index.json"}}
	reg, err := New(settings, append(PackageSourceOptions(), WithCredentials(staticCreds{}))...)
	require.NoError(t, err)

	srcs := reg.Sources()
	require.Len(t, srcs, 2)
	require.NotNil(t, srcs[1].Credentials)
	assert.Equal(t, "ci", srcs[1].Credentials.Username)
	assert.Nil(t, srcs[0].Credentials)
}
