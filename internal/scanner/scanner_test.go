package scanner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/quantmind-br/repo2kas/internal/cache"
	"github.com/quantmind-br/repo2kas/internal/domain"
	"github.com/quantmind-br/repo2kas/internal/domain/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func blob(p string) domain.TreeEntry { return domain.TreeEntry{Path: p, Type: domain.EntryBlob} }
func tree(p string) domain.TreeEntry { return domain.TreeEntry{Path: p, Type: domain.EntryTree} }

var pokyTree = []domain.TreeEntry{
	tree("meta"),
	tree("meta/conf"),
	blob("meta/conf/layer.conf"),
	blob("meta-poky/conf/layer.conf"),
	blob("meta-yocto-bsp/conf/layer.conf"),
	blob("meta-selftest/conf/layer.conf"),
	blob("bitbake/lib/layerindexlib/tests/testdata/layer1/conf/layer.conf"),
	blob("scripts/lib/tests/meta-fixture/conf/layer.conf"),
	blob("conf/layer.conf"),
	blob("meta/conf/layer.conf"),
	blob("README"),
	tree("documentation/conf/layer.conf"),
}

func TestLayersFromTree(t *testing.T) {
	got := LayersFromTree(pokyTree, 3)
	assert.Equal(t, []string{"meta", "meta-poky", "meta-selftest", "meta-yocto-bsp"}, got)
}

func TestLayersFromTree_Depth(t *testing.T) {
	entries := []domain.TreeEntry{
		blob("meta-a/conf/layer.conf"),
		blob("layers/meta-b/conf/layer.conf"),
		blob("a/b/meta-c/conf/layer.conf"),
		blob("a/b/c/meta-d/conf/layer.conf"),
	}

	assert.Equal(t, []string{"a/b/meta-c", "layers/meta-b", "meta-a"}, LayersFromTree(entries, 3))
	assert.Equal(t, []string{"meta-a"}, LayersFromTree(entries, 1))
	assert.Len(t, LayersFromTree(entries, 0), 4)
}

func TestLayerDir(t *testing.T) {
	tests := []struct {
		path string
		dir  string
		ok   bool
	}{
		{"meta-oe/conf/layer.conf", "meta-oe", true},
		{"/meta-openembedded/meta-oe/conf/layer.conf", "meta-openembedded/meta-oe", true},
		{"conf/layer.conf", "", false},
		{"meta-oe/conf/machine.conf", "", false},
		{"meta-oe/myconf/layer.conf", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			dir, ok := LayerDir(tt.path)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.dir, dir)
		})
	}
}

var testProject = domain.Project{
	Name:     "yocto/poky",
	URL:      "https://git.example.com/yocto/poky",
	Revision: "scarthgap",
}

func TestScanner_Scan(t *testing.T) {
	ctrl := gomock.NewController(t)
	lister := mocks.NewMockTreeLister(ctrl)

	ref := domain.RepoRef{Project: testProject.Name, URL: testProject.URL, Revision: testProject.Revision}
	lister.EXPECT().ListTree(gomock.Any(), ref, "", DefaultMaxDepth+2).Return(pokyTree, nil)

	layers, err := NewScanner(lister, nil, nil, Options{}).Scan(context.Background(), testProject)
	require.NoError(t, err)

	require.Len(t, layers, 4)
	for _, l := range layers {
		assert.Equal(t, "yocto/poky", l.Project)
		assert.Equal(t, domain.ProvenanceScanned, l.Provenance)
	}
	assert.Equal(t, "meta", layers[0].Path)
}

func TestScanner_Failure(t *testing.T) {
	ctrl := gomock.NewController(t)
	lister := mocks.NewMockTreeLister(ctrl)
	lister.EXPECT().ListTree(gomock.Any(), gomock.Any(), "", gomock.Any()).
		Return(nil, domain.ErrUnsupportedHost)

	layers, err := NewScanner(lister, nil, nil, Options{}).Scan(context.Background(), testProject)
	assert.Nil(t, layers)

	var sf *domain.ScanFailure
	require.True(t, errors.As(err, &sf))
	assert.Equal(t, "yocto/poky", sf.Project)
	assert.Equal(t, "scarthgap", sf.Revision)
	assert.ErrorIs(t, err, domain.ErrUnsupportedHost)
}

func TestScanner_NoURL(t *testing.T) {
	ctrl := gomock.NewController(t)
	lister := mocks.NewMockTreeLister(ctrl)

	_, err := NewScanner(lister, nil, nil, Options{}).Scan(context.Background(), domain.Project{Name: "x"})
	assert.True(t, domain.IsScanFailure(err))
}

func TestScanner_Timeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	lister := mocks.NewMockTreeLister(ctrl)
	lister.EXPECT().ListTree(gomock.Any(), gomock.Any(), "", gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ domain.RepoRef, _ string, _ int) ([]domain.TreeEntry, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})

	s := NewScanner(lister, nil, nil, Options{Timeout: 20 * time.Millisecond})
	_, err := s.Scan(context.Background(), testProject)

	assert.True(t, domain.IsScanFailure(err))
	assert.ErrorIs(t, err, domain.ErrTimeout)
}

func TestScanner_Cache(t *testing.T) {
	ctx := context.Background()
	c, err := cache.NewBadgerCache(cache.Options{InMemory: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	t.Run("second scan is served from cache", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		lister := mocks.NewMockTreeLister(ctrl)
		lister.EXPECT().ListTree(gomock.Any(), gomock.Any(), "", gomock.Any()).Return(pokyTree, nil).Times(1)

		s := NewScanner(lister, c, nil, Options{CacheTTL: time.Hour})
		first, err := s.Scan(ctx, testProject)
		require.NoError(t, err)
		second, err := s.Scan(ctx, testProject)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("refresh bypasses reads", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		lister := mocks.NewMockTreeLister(ctrl)
		lister.EXPECT().ListTree(gomock.Any(), gomock.Any(), "", gomock.Any()).
			Return([]domain.TreeEntry{blob("meta-new/conf/layer.conf")}, nil)

		s := NewScanner(lister, c, nil, Options{CacheTTL: time.Hour, RefreshCache: true})
		layers, err := s.Scan(ctx, testProject)
		require.NoError(t, err)
		require.Len(t, layers, 1)
		assert.Equal(t, "meta-new", layers[0].Path)
	})

	t.Run("failures are not cached", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		lister := mocks.NewMockTreeLister(ctrl)
		other := testProject
		other.Revision = "kirkstone"
		gomock.InOrder(
			lister.EXPECT().ListTree(gomock.Any(), gomock.Any(), "", gomock.Any()).Return(nil, errors.New("boom")),
			lister.EXPECT().ListTree(gomock.Any(), gomock.Any(), "", gomock.Any()).Return(pokyTree, nil),
		)

		s := NewScanner(lister, c, nil, Options{CacheTTL: time.Hour})
		_, err := s.Scan(ctx, other)
		require.Error(t, err)
		layers, err := s.Scan(ctx, other)
		require.NoError(t, err)
		assert.Len(t, layers, 4)
	})
}

func TestScanner_CacheReadError(t *testing.T) {
	ctrl := gomock.NewController(t)
	lister := mocks.NewMockTreeLister(ctrl)
	c := mocks.NewMockCache(ctrl)

	c.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, errors.New("disk error"))
	lister.EXPECT().ListTree(gomock.Any(), gomock.Any(), "", gomock.Any()).Return(pokyTree, nil)
	c.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any(), time.Hour).Return(nil)

	layers, err := NewScanner(lister, c, nil, Options{CacheTTL: time.Hour}).Scan(context.Background(), testProject)
	require.NoError(t, err)
	assert.Len(t, layers, 4)
}

func TestScanner_CacheDropsUnusableEntries(t *testing.T) {
	expired, err := (&cache.ScanEntry{
		URL:       testProject.URL,
		Layers:    []string{"meta-stale"},
		ExpiresAt: time.Now().Add(-time.Minute),
	}).Encode()
	require.NoError(t, err)

	for name, data := range map[string][]byte{"expired": expired, "corrupt": []byte("{")} {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			lister := mocks.NewMockTreeLister(ctrl)
			c := mocks.NewMockCache(ctrl)

			gomock.InOrder(
				c.EXPECT().Get(gomock.Any(), gomock.Any()).Return(data, nil),
				c.EXPECT().Delete(gomock.Any(), gomock.Any()).Return(nil),
				c.EXPECT().Set(gomock.Any(), gomock.Any(), gomock.Any(), time.Hour).Return(nil),
			)
			lister.EXPECT().ListTree(gomock.Any(), gomock.Any(), "", gomock.Any()).Return(pokyTree, nil)

			layers, err := NewScanner(lister, c, nil, Options{CacheTTL: time.Hour}).Scan(context.Background(), testProject)
			require.NoError(t, err)
			assert.Len(t, layers, 4)
		})
	}
}
