package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/target/notify-dispatch/internal/domain/model"
	"github.com/target/notify-dispatch/internal/mocks"
	"go.uber.org/mock/gomock"
)

var welcomeEmailKey = model.TemplateKey{EventType: "welcome", Channel: model.ChannelEmail, TenantID: "t-1"}

func TestTemplateResolver_NoCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockTemplateRepository(ctrl)
	r := MustNewTemplateResolver(TemplateResolverOptions{Repo: repo})

	tenant := "t-1"
	want := &model.Template{ID: "tpl-tenant", TenantID: &tenant, Body: "hi"}
	repo.EXPECT().FindBest(gomock.Any(), welcomeEmailKey).Return(want, nil)

	got, err := r.Resolve(context.Background(), welcomeEmailKey)
	require.NoError(t, err)
	assert.Same(t, want, got)
}

func TestTemplateResolver_NoMatchReturnsNil(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockTemplateRepository(ctrl)
	r := MustNewTemplateResolver(TemplateResolverOptions{Repo: repo})

	repo.EXPECT().FindBest(gomock.Any(), welcomeEmailKey).Return(nil, nil)

	got, err := r.Resolve(context.Background(), welcomeEmailKey)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTemplateResolver_CacheHitSkipsRepo(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockTemplateRepository(ctrl)
	cache := mocks.NewMockTemplateCache(ctrl)
	r := MustNewTemplateResolver(TemplateResolverOptions{
		Repo:  repo,
		Cache: TemplateCacheOptions{Cache: cache, TTL: time.Minute},
	})

	cached := &model.Template{ID: "tpl-system", Body: "hello"}
	cache.EXPECT().Get(gomock.Any(), welcomeEmailKey).Return(cached, true, nil)

	got, err := r.Resolve(context.Background(), welcomeEmailKey)
	require.NoError(t, err)
	assert.Equal(t, "tpl-system", got.ID)
}

func TestTemplateResolver_CachedMiss(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockTemplateRepository(ctrl)
	cache := mocks.NewMockTemplateCache(ctrl)
	r := MustNewTemplateResolver(TemplateResolverOptions{Repo: repo, Cache: TemplateCacheOptions{Cache: cache}})

	cache.EXPECT().Get(gomock.Any(), welcomeEmailKey).Return(nil, true, nil)

	got, err := r.Resolve(context.Background(), welcomeEmailKey)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTemplateResolver_CacheMissPopulates(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockTemplateRepository(ctrl)
	cache := mocks.NewMockTemplateCache(ctrl)
	r := MustNewTemplateResolver(TemplateResolverOptions{
		Repo:  repo,
		Cache: TemplateCacheOptions{Cache: cache, TTL: 2 * time.Minute},
	})

	tmpl := &model.Template{ID: "tpl-system", Body: "hello"}
	gomock.InOrder(
		cache.EXPECT().Get(gomock.Any(), welcomeEmailKey).Return(nil, false, nil),
		repo.EXPECT().FindBest(gomock.Any(), welcomeEmailKey).Return(tmpl, nil),
		cache.EXPECT().Set(gomock.Any(), welcomeEmailKey, tmpl, 2*time.Minute).Return(nil),
	)

	got, err := r.Resolve(context.Background(), welcomeEmailKey)
	require.NoError(t, err)
	assert.Same(t, tmpl, got)
}

func TestTemplateResolver_CacheErrorsFallThrough(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockTemplateRepository(ctrl)
	cache := mocks.NewMockTemplateCache(ctrl)
	r := MustNewTemplateResolver(TemplateResolverOptions{Repo: repo, Cache: TemplateCacheOptions{Cache: cache}})

	tmpl := &model.Template{ID: "tpl-system"}
	cache.EXPECT().Get(gomock.Any(), welcomeEmailKey).Return(nil, false, errors.New("redis: connection refused"))
	repo.EXPECT().FindBest(gomock.Any(), welcomeEmailKey).Return(tmpl, nil)
	cache.EXPECT().Set(gomock.Any(), welcomeEmailKey, tmpl, DefaultTemplateTTL).Return(errors.New("redis: connection refused"))

	got, err := r.Resolve(context.Background(), welcomeEmailKey)
	require.NoError(t, err)
	assert.Same(t, tmpl, got)
}

func TestTemplateResolver_NegativeTTLDisablesWrites(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockTemplateRepository(ctrl)
	cache := mocks.NewMockTemplateCache(ctrl)
	r := MustNewTemplateResolver(TemplateResolverOptions{
		Repo:  repo,
		Cache: TemplateCacheOptions{Cache: cache, TTL: -1},
	})

	cache.EXPECT().Get(gomock.Any(), welcomeEmailKey).Return(nil, false, nil)
	repo.EXPECT().FindBest(gomock.Any(), welcomeEmailKey).Return(nil, nil)

	got, err := r.Resolve(context.Background(), welcomeEmailKey)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTemplateResolver_RepoError(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockTemplateRepository(ctrl)
	r := MustNewTemplateResolver(TemplateResolverOptions{Repo: repo})

	dbErr := errors.New("relation does not exist")
	repo.EXPECT().FindBest(gomock.Any(), welcomeEmailKey).Return(nil, dbErr)

	_, err := r.Resolve(context.Background(), welcomeEmailKey)
	require.Error(t, err)
	assert.ErrorIs(t, err, dbErr)
}

func TestTemplateResolver_InvalidKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	r := MustNewTemplateResolver(TemplateResolverOptions{Repo: mocks.NewMockTemplateRepository(ctrl)})

	_, err := r.Resolve(context.Background(), model.TemplateKey{EventType: "welcome", Channel: "fax"})
	assert.Error(t, err)

	_, err = r.Resolve(context.Background(), model.TemplateKey{Channel: model.ChannelSMS})
	assert.Error(t, err)
}

func TestTemplateResolver_CollapsesConcurrentMisses(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockTemplateRepository(ctrl)
	r := MustNewTemplateResolver(TemplateResolverOptions{Repo: repo})

	release := make(chan struct{})
	var calls atomic.Int32
	tmpl := &model.Template{ID: "tpl-system"}
	repo.EXPECT().FindBest(gomock.Any(), welcomeEmailKey).DoAndReturn(
		func(context.Context, model.TemplateKey) (*model.Template, error) {
			calls.Add(1)
			<-release
			return tmpl, nil
		}).MinTimes(1)

	const callers = 8
	var started, done sync.WaitGroup
	started.Add(callers)
	done.Add(callers)
	results := make([]*model.Template, callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer done.Done()
			started.Done()
			got, err := r.Resolve(context.Background(), welcomeEmailKey)
			assert.NoError(t, err)
			results[i] = got
		}(i)
	}
	started.Wait()
	time.Sleep(20 * time.Millisecond)
	close(release)
	done.Wait()

	assert.Less(t, int(calls.Load()), callers)
	for _, got := range results {
		assert.Same(t, tmpl, got)
	}
}

func TestNewTemplateResolver_RequiresRepo(t *testing.T) {
	_, err := NewTemplateResolver(TemplateResolverOptions{})
	require.Error(t, err)
	assert.Panics(t, func() { MustNewTemplateResolver(TemplateResolverOptions{}) })
}
