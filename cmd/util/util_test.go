package util

import (
	"context"
	"strings"
	"testing"

	"github.com/ValentinKolb/confcache/lib/common"
	"github.com/ValentinKolb/confcache/lib/model"
	"github.com/ValentinKolb/confcache/lib/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapString(t *testing.T) {
	text := strings.Repeat("word ", 30)
	for _, line := range strings.Split(WrapString(text), "\n") {
		assert.LessOrEqual(t, len(line), Wrap)
	}
	assert.Equal(t, "short text", WrapString("  short   text "))
}

func TestOpenStore(t *testing.T) {
	conf := common.DefaultConfig()
	conf.StoreDir = t.TempDir()
	s, err := OpenStore(conf)
	require.NoError(t, err)
	info, err := s.GetInfo()
	require.NoError(t, err)
	assert.Equal(t, store.ImplLocal, info.Impl)
	require.NoError(t, s.Close())

	conf.Store = "remote"
	_, err = OpenStore(conf)
	assert.Error(t, err)
}

func TestOpenCache(t *testing.T) {
	conf := common.DefaultConfig()
	conf.Store = store.ImplMemory
	conf.BaseDir = t.TempDir()

	c, factory, err := OpenCache(conf)
	require.NoError(t, err)
	defer c.Close()

	p := factory.NewProject("app", factory.Resolver().BaseDir())
	require.NoError(t, p.AddTask(factory.NewTask(p, "build")))

	_, err = c.Save(context.Background(), "app", p)
	require.NoError(t, err)
	out, _, err := c.Load(context.Background(), "app")
	require.NoError(t, err)
	assert.Equal(t, "app", out.(*model.Project).Name)
}
