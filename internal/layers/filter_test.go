package layers

import (
	"errors"
	"testing"

	"github.com/quantmind-br/repo2kas/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scanned(project string, paths ...string) []domain.Layer {
	out := make([]domain.Layer, 0, len(paths))
	for _, p := range paths {
		out = append(out, domain.Layer{Project: project, Path: p, Provenance: domain.ProvenanceScanned})
	}
	return out
}

func mustRules(t *testing.T, includes, excludes []string) []Rule {
	t.Helper()
	rules, err := ParseRules(includes, excludes)
	require.NoError(t, err)
	return rules
}

var (
	metaOE = domain.Project{Name: "openembedded/meta-openembedded"}
	poky   = domain.Project{Name: "yocto/poky"}
	myrepo = domain.Project{Name: "vendor/myrepo"}
)

func oeInput() Input {
	return Input{
		Project: metaOE,
		Scanned: scanned(metaOE.Name, "meta-oe", "meta-python", "meta-networking"),
	}
}

func TestParseRule(t *testing.T) {
	tests := []struct {
		in      string
		want    Rule
		wantErr bool
	}{
		{in: "meta-oe", want: Rule{Pattern: "meta-oe"}},
		{in: " myrepo:meta-x/ ", want: Rule{Project: "myrepo", Pattern: "meta-x"}},
		{in: "org/repo:layers/meta-a", want: Rule{Project: "org/repo", Pattern: "layers/meta-a"}},
		{in: ":meta-x", wantErr: true},
		{in: "myrepo:", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRule(tt.in, false)
			if tt.wantErr {
				var ve *domain.ValidationError
				assert.True(t, errors.As(err, &ve))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRules(t *testing.T) {
	rules := mustRules(t, []string{"meta-oe,meta-python", "poky:meta"}, []string{"meta-networking"})
	assert.Equal(t, []Rule{
		{Pattern: "meta-oe"},
		{Pattern: "meta-python"},
		{Project: "poky", Pattern: "meta"},
		{Pattern: "meta-networking", Exclude: true},
	}, rules)
	assert.Equal(t, "poky:meta", rules[2].String())
}

func TestParseHints(t *testing.T) {
	hints, err := ParseHints([]string{"myrepo:meta-custom", "myrepo:meta-custom/", "poky:meta-yocto-bsp"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]string{
		"myrepo": {"meta-custom"},
		"poky":   {"meta-yocto-bsp"},
	}, hints)

	_, err = ParseHints([]string{"meta-custom"})
	assert.Error(t, err)
}

func TestRule_AppliesTo(t *testing.T) {
	assert.True(t, Rule{Pattern: "x"}.AppliesTo(poky))
	assert.True(t, Rule{Project: "poky", Pattern: "x"}.AppliesTo(poky))
	assert.True(t, Rule{Project: "yocto/poky", Pattern: "x"}.AppliesTo(poky))
	assert.False(t, Rule{Project: "yocto", Pattern: "x"}.AppliesTo(poky))
	assert.False(t, Rule{Project: "myrepo", Pattern: "x"}.AppliesTo(poky))
}

func TestFilter_NoRulesKeepsNothing(t *testing.T) {
	sel, diags, err := NewFilter(Options{}).Apply([]Input{oeInput()})
	require.NoError(t, err)
	assert.Empty(t, diags)
	assert.Equal(t, []Selection{{Project: metaOE.Name, Layers: []string{}}}, sel)
}

func TestFilter_IncludeAll(t *testing.T) {
	sel, diags, err := NewFilter(Options{IncludeAll: true}).Apply([]Input{oeInput()})
	require.NoError(t, err)
	assert.Empty(t, diags)
	assert.Equal(t, []string{"meta-networking", "meta-oe", "meta-python"}, sel[0].Layers)
}

func TestFilter_BasenameAndFullPath(t *testing.T) {
	nested := Input{
		Project: poky,
		Scanned: scanned(poky.Name, "layers/meta-openembedded/meta-oe", "meta-oe", "meta-poky"),
	}
	flat := Input{
		Project: metaOE,
		Scanned: scanned(metaOE.Name, "layers/meta-openembedded/meta-oe", "meta-python"),
	}

	t.Run("full path wins within a project", func(t *testing.T) {
		sel, _, err := NewFilter(Options{Rules: mustRules(t, []string{"meta-oe"}, nil)}).Apply([]Input{nested, flat})
		require.NoError(t, err)
		assert.Equal(t, []string{"meta-oe"}, sel[0].Layers)
		assert.Equal(t, []string{"layers/meta-openembedded/meta-oe"}, sel[1].Layers)
	})

	t.Run("all basename matches kept", func(t *testing.T) {
		in := Input{
			Project: poky,
			Scanned: scanned(poky.Name, "a/meta-bsp", "b/meta-bsp", "meta-poky"),
		}
		sel, _, err := NewFilter(Options{Rules: mustRules(t, []string{"meta-bsp"}, nil)}).Apply([]Input{in})
		require.NoError(t, err)
		assert.Equal(t, []string{"a/meta-bsp", "b/meta-bsp"}, sel[0].Layers)
	})

	t.Run("explicit full path", func(t *testing.T) {
		sel, _, err := NewFilter(Options{
			Rules: mustRules(t, []string{"layers/meta-openembedded/meta-oe"}, nil),
		}).Apply([]Input{nested})
		require.NoError(t, err)
		assert.Equal(t, []string{"layers/meta-openembedded/meta-oe"}, sel[0].Layers)
	})
}

func TestFilter_ProjectQualified(t *testing.T) {
	mine := Input{Project: myrepo, Scanned: scanned(myrepo.Name, "meta-oe")}

	sel, diags, err := NewFilter(Options{
		Rules: mustRules(t, []string{"myrepo:meta-oe"}, nil),
	}).Apply([]Input{oeInput(), mine})
	require.NoError(t, err)
	assert.Empty(t, diags)
	assert.Empty(t, sel[0].Layers)
	assert.Equal(t, []string{"meta-oe"}, sel[1].Layers)
}

func TestFilter_ExcludeAlwaysWins(t *testing.T) {
	tests := []struct {
		name     string
		opts     Options
		includes []string
		excludes []string
		want     []string
	}{
		{"over include", Options{}, []string{"meta-oe", "meta-python"}, []string{"meta-python"}, []string{"meta-oe"}},
		{"over include all", Options{IncludeAll: true}, nil, []string{"meta-networking"}, []string{"meta-oe", "meta-python"}},
		{"same rule", Options{}, []string{"meta-oe"}, []string{"meta-oe"}, []string{}},
		{"other project", Options{IncludeAll: true}, nil, []string{"poky:meta-oe"}, []string{"meta-networking", "meta-oe", "meta-python"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := tt.opts
			opts.Rules = mustRules(t, tt.includes, tt.excludes)
			sel, _, err := NewFilter(opts).Apply([]Input{oeInput()})
			require.NoError(t, err)
			assert.Equal(t, tt.want, sel[0].Layers)
		})
	}
}

func TestFilter_HintsOnFailedScan(t *testing.T) {
	failed := Input{Project: myrepo, ScanErr: errors.New("timeout")}
	hints, err := ParseHints([]string{"myrepo:meta-custom"})
	require.NoError(t, err)

	t.Run("include all keeps hint", func(t *testing.T) {
		sel, _, err := NewFilter(Options{IncludeAll: true, Hints: hints}).Apply([]Input{failed})
		require.NoError(t, err)
		assert.Equal(t, []string{"meta-custom"}, sel[0].Layers)
	})

	t.Run("hint matched by rule", func(t *testing.T) {
		sel, diags, err := NewFilter(Options{Hints: hints, Rules: mustRules(t, []string{"meta-custom"}, nil)}).Apply([]Input{failed})
		require.NoError(t, err)
		assert.Empty(t, diags)
		assert.Equal(t, []string{"meta-custom"}, sel[0].Layers)
	})

	t.Run("hint alongside scan", func(t *testing.T) {
		ok := Input{Project: myrepo, Scanned: scanned(myrepo.Name, "meta-a")}
		sel, _, err := NewFilter(Options{IncludeAll: true, Hints: hints}).Apply([]Input{ok})
		require.NoError(t, err)
		assert.Equal(t, []string{"meta-a", "meta-custom"}, sel[0].Layers)
	})
}

func TestFilter_TrustsQualifiedRulesOnFailedScan(t *testing.T) {
	failed := Input{Project: myrepo, ScanErr: errors.New("unsupported host")}

	sel, diags, err := NewFilter(Options{
		Rules: mustRules(t, []string{"myrepo:meta-vendor", "meta-generic"}, nil),
	}).Apply([]Input{failed})
	require.NoError(t, err)
	assert.Equal(t, []string{"meta-vendor"}, sel[0].Layers)
	require.Len(t, diags, 1)
	assert.Contains(t, diags[0].Message, "meta-generic")
}

func TestFilter_UnmatchedRules(t *testing.T) {
	rules := mustRules(t, []string{"meta-oe", "meta-missing", "poky:meta-gone"}, nil)
	failed := Input{Project: myrepo, ScanErr: errors.New("boom")}
	empty := Input{Project: poky}

	t.Run("diagnostics", func(t *testing.T) {
		sel, diags, err := NewFilter(Options{Rules: rules}).Apply([]Input{oeInput(), failed, empty})
		require.NoError(t, err)
		assert.Equal(t, []string{"meta-oe"}, sel[0].Layers)
		require.Len(t, diags, 2)
		assert.Equal(t, "", diags[0].Project)
		assert.Equal(t, "poky", diags[1].Project)
	})

	t.Run("strict", func(t *testing.T) {
		_, _, err := NewFilter(Options{Rules: rules, Strict: true}).Apply([]Input{oeInput(), failed, empty})
		var lre *domain.LayerRequestError
		require.ErrorAs(t, err, &lre)
		assert.Equal(t, []string{"meta-missing", "poky:meta-gone"}, lre.Missing)
		assert.Equal(t, []string{"meta-networking", "meta-oe", "meta-python"}, lre.Available["meta-openembedded"])
		assert.Equal(t, "boom", lre.Failed["myrepo"])
		assert.Contains(t, err.Error(), "poky: (none)")
		assert.Contains(t, err.Error(), "myrepo: (detection failed: boom)")
	})

	t.Run("include all never reports", func(t *testing.T) {
		_, diags, err := NewFilter(Options{Rules: rules, IncludeAll: true, Strict: true}).Apply([]Input{oeInput()})
		require.NoError(t, err)
		assert.Empty(t, diags)
	})
}
