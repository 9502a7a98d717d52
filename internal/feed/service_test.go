package feed_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/Dendrobium123/FeedbackTrader/internal/adapter"
	"github.com/Dendrobium123/FeedbackTrader/internal/adapter/mock"
	"github.com/Dendrobium123/FeedbackTrader/internal/feed"
)

// memStore is an in-memory feed.Store with injectable failures.
type memStore struct {
	entries map[feed.Key]feed.Series
	getErr  error
	putErr  error
	gets    int
	puts    int
}

func newMemStore() *memStore {
	return &memStore{entries: make(map[feed.Key]feed.Series)}
}

func (m *memStore) Get(_ context.Context, key feed.Key) (feed.Series, bool, error) {
	m.gets++
	if m.getErr != nil {
		return feed.Series{}, false, m.getErr
	}
	s, ok := m.entries[key]
	return s, ok, nil
}

func (m *memStore) Put(_ context.Context, key feed.Key, s feed.Series) error {
	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	m.entries[key] = s
	return nil
}

func newMockAdapter(t *testing.T, source string) *mock.MockAdapter {
	t.Helper()
	ctrl := gomock.NewController(t)
	ad := mock.NewMockAdapter(ctrl)
	ad.EXPECT().Source().Return(source).AnyTimes()
	return ad
}

func testBars() []adapter.Bar {
	return []adapter.Bar{
		{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Open: 7.1, High: 7.3, Low: 7.0, Close: 7.2, Volume: 1000},
		{Date: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Open: 7.2, High: 7.4, Low: 7.1, Close: 7.3, Volume: 1100},
	}
}

func TestGetHistory_SecondCallServedFromCache(t *testing.T) {
	ad := newMockAdapter(t, "akshare")
	ad.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(testBars(), nil).Times(1)

	reg := adapter.NewRegistry()
	reg.Register(ad)
	store := newMemStore()
	svc := feed.NewService(reg, store)

	req := feed.Request{Symbol: "600000.SH", Source: "akshare", Cache: true}

	first, err := svc.GetHistory(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, first.Bars, 2)

	// Second call must not reach the adapter (Times(1) above enforces it).
	second, err := svc.GetHistory(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestGetHistory_RefreshBypassesCache(t *testing.T) {
	ad := newMockAdapter(t, "akshare")
	ad.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(testBars(), nil).Times(2)

	reg := adapter.NewRegistry()
	reg.Register(ad)
	store := newMemStore()
	svc := feed.NewService(reg, store)

	_, err := svc.GetHistory(context.Background(), feed.Request{Symbol: "600000.SH", Source: "akshare", Cache: true})
	require.NoError(t, err)

	_, err = svc.GetHistory(context.Background(), feed.Request{Symbol: "600000.SH", Source: "akshare", Cache: true, Refresh: true})
	require.NoError(t, err)

	// Refresh still rewrites the artifact.
	require.Equal(t, 2, store.puts)
}

func TestGetHistory_CacheDisabled(t *testing.T) {
	ad := newMockAdapter(t, "akshare")
	ad.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(testBars(), nil).Times(2)

	reg := adapter.NewRegistry()
	reg.Register(ad)
	store := newMemStore()
	svc := feed.NewService(reg, store)

	req := feed.Request{Symbol: "600000.SH", Source: "akshare", Cache: false}

	_, err := svc.GetHistory(context.Background(), req)
	require.NoError(t, err)
	_, err = svc.GetHistory(context.Background(), req)
	require.NoError(t, err)

	require.Zero(t, store.gets)
	require.Zero(t, store.puts)
}

func TestGetHistory_EmptyResultIsCached(t *testing.T) {
	ad := newMockAdapter(t, "akshare")
	ad.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(nil, nil).Times(1)

	reg := adapter.NewRegistry()
	reg.Register(ad)
	store := newMemStore()
	svc := feed.NewService(reg, store)

	req := feed.Request{Symbol: "NODATA", Source: "akshare", Cache: true}

	s, err := svc.GetHistory(context.Background(), req)
	require.NoError(t, err)
	require.True(t, s.Empty())
	require.Equal(t, 1, store.puts)

	// Cached empty series satisfies the second call without a fetch.
	s2, err := svc.GetHistory(context.Background(), req)
	require.NoError(t, err)
	require.True(t, s2.Empty())
}

func TestGetHistory_ErrorsPropagateUnchanged(t *testing.T) {
	tests := []struct {
		name    string
		fetchEr error
		check   func(error) bool
	}{
		{"rate limit", &adapter.RateLimitError{Source: "akshare", Msg: "throttled"}, adapter.IsRateLimit},
		{"adapter failure", &adapter.AdapterError{Source: "akshare", Msg: "interval not supported"}, adapter.IsAdapterFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ad := newMockAdapter(t, "akshare")
			ad.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(nil, tt.fetchEr).Times(1)

			reg := adapter.NewRegistry()
			reg.Register(ad)
			store := newMemStore()
			svc := feed.NewService(reg, store)

			_, err := svc.GetHistory(context.Background(), feed.Request{Symbol: "600000.SH", Source: "akshare", Cache: true})
			require.Error(t, err)
			require.True(t, tt.check(err))
			require.Zero(t, store.puts, "failed fetches must not be cached")
		})
	}
}

func TestGetHistory_UnknownSource(t *testing.T) {
	svc := feed.NewService(adapter.NewRegistry(), newMemStore())

	_, err := svc.GetHistory(context.Background(), feed.Request{Symbol: "AAPL", Source: "bloomberg"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no adapter registered")
	require.True(t, adapter.IsAdapterFailure(err))
}

func TestGetHistory_ValidationErrors(t *testing.T) {
	svc := feed.NewService(adapter.NewRegistry(), newMemStore())

	_, err := svc.GetHistory(context.Background(), feed.Request{Source: "akshare"})
	require.Error(t, err)

	_, err = svc.GetHistory(context.Background(), feed.Request{
		Symbol: "AAPL",
		Source: "akshare",
		Start:  time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.Error(t, err)
}

func TestGetHistory_CacheReadFailureFallsThroughToFetch(t *testing.T) {
	ad := newMockAdapter(t, "akshare")
	ad.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(testBars(), nil).Times(1)

	reg := adapter.NewRegistry()
	reg.Register(ad)
	store := newMemStore()
	store.getErr = errors.New("disk unavailable")
	svc := feed.NewService(reg, store)

	s, err := svc.GetHistory(context.Background(), feed.Request{Symbol: "600000.SH", Source: "akshare", Cache: true})
	require.NoError(t, err)
	require.Len(t, s.Bars, 2)
}

func TestGetHistory_CacheWriteFailureDoesNotFailFetch(t *testing.T) {
	ad := newMockAdapter(t, "akshare")
	ad.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(testBars(), nil).Times(1)

	reg := adapter.NewRegistry()
	reg.Register(ad)
	store := newMemStore()
	store.putErr = errors.New("disk full")
	svc := feed.NewService(reg, store)

	s, err := svc.GetHistory(context.Background(), feed.Request{Symbol: "600000.SH", Source: "akshare", Cache: true})
	require.NoError(t, err)
	require.Len(t, s.Bars, 2)
}

func TestGetHistory_NormalizesRawBars(t *testing.T) {
	raw := []adapter.Bar{
		{Date: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Close: 3},
		{Date: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Close: 2},
		{Date: time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), Close: 3.5},
	}
	ad := newMockAdapter(t, "csv")
	ad.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(raw, nil).Times(1)

	reg := adapter.NewRegistry()
	reg.Register(ad)
	svc := feed.NewService(reg, nil)

	s, err := svc.GetHistory(context.Background(), feed.Request{Symbol: "prices", Source: "csv"})
	require.NoError(t, err)
	require.Len(t, s.Bars, 2)
	require.True(t, s.Bars[0].Time.Before(s.Bars[1].Time))
	require.Equal(t, 3.5, s.Bars[1].Close)
}

func TestGetHistory_IntervalAliasSharesCacheKey(t *testing.T) {
	ad := newMockAdapter(t, "akshare")
	ad.EXPECT().Fetch(gomock.Any(), gomock.Any()).Return(testBars(), nil).Times(1)

	reg := adapter.NewRegistry()
	reg.Register(ad)
	store := newMemStore()
	svc := feed.NewService(reg, store)

	_, err := svc.GetHistory(context.Background(), feed.Request{Symbol: "600000.SH", Source: "akshare", Interval: "daily", Cache: true})
	require.NoError(t, err)

	// "1d" resolves to the same artifact the "daily" call wrote.
	s, err := svc.GetHistory(context.Background(), feed.Request{Symbol: "600000.SH", Source: "akshare", Interval: "1d", Cache: true})
	require.NoError(t, err)
	require.Len(t, s.Bars, 2)
}
