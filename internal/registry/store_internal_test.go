package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func newFileStore(t *testing.T, clock *fakeClock) Store {
	t.Helper()
	s := NewFileStore(filepath.Join(t.TempDir(), "registry", "demos.json"))
	s.now = clock.now
	return s
}

func newRedisStore(t *testing.T, clock *fakeClock) Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	s := NewRedisStore(client, "test:demos")
	s.now = clock.now
	return s
}

func sampleEntry(slug string) Entry {
	return Entry{
		Slug:              slug,
		Business:          "Acme",
		URL:               "https://acme.test",
		SystemMessageFile: "./public/system_messages/n8n_System_Message_Acme.md",
		DemoURL:           "https://" + slug + "-demo.localboxs.com",
		Chatwoot:          Chatwoot{InboxID: 42, WebsiteToken: "tok"},
	}
}

func forEachStore(t *testing.T, fn func(t *testing.T, s Store, clock *fakeClock)) {
	t.Helper()
	backends := map[string]func(*testing.T, *fakeClock) Store{
		"file":  newFileStore,
		"redis": newRedisStore,
	}
	for name, build := range backends {
		t.Run(name, func(t *testing.T) {
			clock := newClock()
			fn(t, build(t, clock), clock)
		})
	}
}

func TestStore_UpsertCreatesThenUpdates(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store, clock *fakeClock) {
		ctx := context.Background()
		created := clock.now()

		first, err := s.Upsert(ctx, sampleEntry("acme"))
		require.NoError(t, err)
		assert.True(t, first.CreatedAt.Equal(created))
		assert.Nil(t, first.UpdatedAt)

		clock.advance(time.Hour)
		again := sampleEntry("acme")
		again.WorkflowID = "wf-1"
		again.AgentBot = &AgentBot{ID: 9, AccessToken: "bot"}
		again.CreatedAt = clock.now()

		second, err := s.Upsert(ctx, again)
		require.NoError(t, err)
		assert.True(t, second.CreatedAt.Equal(created), "created_at is preserved")
		require.NotNil(t, second.UpdatedAt)
		assert.True(t, second.UpdatedAt.Equal(clock.now()))

		got, err := s.Get(ctx, "acme")
		require.NoError(t, err)
		assert.Equal(t, "wf-1", got.WorkflowID)
		assert.Equal(t, &AgentBot{ID: 9, AccessToken: "bot"}, got.AgentBot)
		assert.True(t, got.CreatedAt.Equal(created))
	})
}

func TestStore_GetListDelete(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store, clock *fakeClock) {
		ctx := context.Background()

		_, err := s.Get(ctx, "missing")
		require.ErrorIs(t, err, ErrNotFound)

		list, err := s.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, list)

		for _, slug := range []string{"old", "middle", "new"} {
			_, err = s.Upsert(ctx, sampleEntry(slug))
			require.NoError(t, err)
			clock.advance(time.Minute)
		}

		list, err = s.List(ctx)
		require.NoError(t, err)
		require.Len(t, list, 3)
		assert.Equal(t, []string{"new", "middle", "old"}, []string{list[0].Slug, list[1].Slug, list[2].Slug})

		require.NoError(t, s.Delete(ctx, "middle"))
		require.ErrorIs(t, s.Delete(ctx, "middle"), ErrNotFound)

		list, err = s.List(ctx)
		require.NoError(t, err)
		assert.Len(t, list, 2)
	})
}

func TestStore_DeleteIfInbox(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store, _ *fakeClock) {
		ctx := context.Background()

		_, err := s.Upsert(ctx, sampleEntry("acme"))
		require.NoError(t, err)

		fresh := sampleEntry("acme")
		fresh.Chatwoot.InboxID = 99
		_, err = s.Upsert(ctx, fresh)
		require.NoError(t, err)

		require.ErrorIs(t, s.DeleteIfInbox(ctx, "acme", 42), ErrInboxChanged)
		got, err := s.Get(ctx, "acme")
		require.NoError(t, err)
		assert.Equal(t, int64(99), got.Chatwoot.InboxID)

		require.NoError(t, s.DeleteIfInbox(ctx, "acme", 99))
		require.ErrorIs(t, s.DeleteIfInbox(ctx, "acme", 99), ErrNotFound)
	})
}

func TestEntry_RedactedDropsBotToken(t *testing.T) {
	e := sampleEntry("acme")
	e.AgentBot = &AgentBot{ID: 7, AccessToken: "bot-secret"}

	public := e.Redacted()
	assert.Equal(t, &AgentBot{ID: 7}, public.AgentBot)
	assert.Equal(t, "bot-secret", e.AgentBot.AccessToken, "original entry is untouched")

	assert.Nil(t, sampleEntry("plain").Redacted().AgentBot)
}

func TestFileStore_ConcurrentUpsertsKeepEveryEntry(t *testing.T) {
	s := newFileStore(t, newClock())
	ctx := context.Background()
	const writers = 20

	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Upsert(ctx, sampleEntry(fmt.Sprintf("biz-%d", i)))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, writers)
}

func TestFileStore_WritesKeyedJSON(t *testing.T) {
	clock := newClock()
	path := filepath.Join(t.TempDir(), "demos.json")
	s := NewFileStore(path)
	s.now = clock.now

	_, err := s.Upsert(context.Background(), sampleEntry("acme"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var raw map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	require.Contains(t, raw, "acme")
	entry := raw["acme"]
	assert.Equal(t, "acme", entry["slug"])
	assert.Equal(t, "2025-03-01T10:00:00Z", entry["created_at"])
	assert.NotContains(t, entry, "updated_at")
	assert.NotContains(t, entry, "workflow_id")
	assert.NotContains(t, entry, "agent_bot")
	assert.Equal(t, map[string]any{"inbox_id": float64(42), "website_token": "tok"}, entry["chatwoot"])

	matches, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".demos-*"))
	require.NoError(t, err)
	assert.Empty(t, matches, "no temp files left behind")
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demos.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileStore(path).Upsert(context.Background(), sampleEntry("acme"))
	require.Error(t, err)

	data, readErr := os.ReadFile(path)
	require.NoError(t, readErr)
	assert.Equal(t, "{not json", string(data), "corrupt registry is never overwritten")
}
