package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openskulk/skulk/pkg/types"
)

// passthroughConverter lets slice arguments (e.g. []int64 for unnest) reach
// the mock unchanged, as the pgx driver accepts them at runtime.
type passthroughConverter struct{}

func (passthroughConverter) ConvertValue(v any) (driver.Value, error) {
	if out, err := driver.DefaultParameterConverter.ConvertValue(v); err == nil {
		return out, nil
	}
	return driver.Value(v), nil
}

func newMockStore(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(
		sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp),
		sqlmock.ValueConverterOption(passthroughConverter{}),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresFromDB(db), mock
}

func TestInsertCandidate(t *testing.T) {
	t.Run("inserted row returns id", func(t *testing.T) {
		p, mock := newMockStore(t)

		mock.ExpectQuery(`(?s)INSERT INTO proxies .+ ON CONFLICT \(ip, port, protocol\) DO NOTHING`).
			WithArgs("10.0.0.1", 8080, types.ProtocolHTTP, "US", "src-a").
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(42)))

		id, err := p.InsertCandidate(context.Background(), types.Candidate{
			IP: "10.0.0.1", Port: 8080, Protocol: types.ProtocolHTTP, Country: "US", Source: "src-a",
		})
		require.NoError(t, err)
		assert.Equal(t, int64(42), id)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("conflict is a silent no-op", func(t *testing.T) {
		p, mock := newMockStore(t)

		mock.ExpectQuery(`INSERT INTO proxies`).
			WillReturnError(sql.ErrNoRows)

		id, err := p.InsertCandidate(context.Background(), types.Candidate{
			IP: "10.0.0.1", Port: 8080, Protocol: types.ProtocolHTTP, Source: "src-a",
		})
		require.NoError(t, err)
		assert.Zero(t, id)
	})
}

func TestInsertBatch(t *testing.T) {
	p, mock := newMockStore(t)

	mock.ExpectExec(`INSERT INTO proxies \(ip, port, protocol, country, source, status\) VALUES .+ ON CONFLICT \(ip, port, protocol\) DO NOTHING`).
		WithArgs(
			"10.0.0.1", 8080, "http", "US", "src-a",
			"10.0.0.2", 1080, "socks5", "", "src-b",
		).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := p.InsertBatch(context.Background(), []types.Candidate{
		{IP: "10.0.0.1", Port: 8080, Protocol: types.ProtocolHTTP, Country: "US", Source: "src-a"},
		{IP: "10.0.0.2", Port: 1080, Protocol: types.ProtocolSOCKS5, Source: "src-b"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatchChunksLargeCrawls(t *testing.T) {
	p, mock := newMockStore(t)

	// One row past the chunk size must split into two statements; a single
	// statement would blow the bind-parameter cap on big list days.
	candidates := make([]types.Candidate, insertChunkSize+1)
	for i := range candidates {
		candidates[i] = types.Candidate{
			IP:       fmt.Sprintf("10.0.%d.%d", i/256, i%256),
			Port:     8080,
			Protocol: types.ProtocolHTTP,
			Source:   "big-list",
		}
	}

	mock.ExpectExec(`INSERT INTO proxies .+`).
		WillReturnResult(sqlmock.NewResult(0, int64(insertChunkSize)))
	mock.ExpectExec(`INSERT INTO proxies .+`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, p.InsertBatch(context.Background(), candidates))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertBatchEmpty(t *testing.T) {
	p, mock := newMockStore(t)
	require.NoError(t, p.InsertBatch(context.Background(), nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordVerdict(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		p, mock := newMockStore(t)

		speed := 0.37
		anon := types.AnonymityElite
		mock.ExpectExec(`UPDATE proxies`).
			WithArgs(int64(7), true, 0.37, "elite", int(types.StatusSuccess)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := p.RecordVerdict(context.Background(), types.Verdict{
			ProxyID: 7, Success: true, Speed: &speed, Anonymity: &anon,
		})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failure carries nil speed and anonymity", func(t *testing.T) {
		p, mock := newMockStore(t)

		mock.ExpectExec(`UPDATE proxies`).
			WithArgs(int64(7), false, nil, nil, int(types.StatusFailed)).
			WillReturnResult(sqlmock.NewResult(0, 1))

		err := p.RecordVerdict(context.Background(), types.Verdict{ProxyID: 7, Success: false})
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPendingForValidationOrdering(t *testing.T) {
	p, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "ip", "port", "protocol", "source", "success_count", "fail_count", "status"}).
		AddRow(int64(1), "10.0.0.1", 8080, "http", "src-a", 0, 0, 0).
		AddRow(int64(2), "10.0.0.2", 8081, "http", "src-a", 0, 1, 2)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY last_checked ASC NULLS FIRST")).
		WithArgs(3, int(types.StatusPending), int(types.StatusFailed), 100).
		WillReturnRows(rows)

	proxies, err := p.PendingForValidation(context.Background(), 100, 3)
	require.NoError(t, err)
	require.Len(t, proxies, 2)
	assert.Equal(t, int64(1), proxies[0].ID)
	assert.Equal(t, types.StatusFailed, proxies[1].Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActiveProxiesLimitCap(t *testing.T) {
	p, mock := newMockStore(t)

	// Request 500 but the query must be capped at the internal maximum.
	mock.ExpectQuery(`ORDER BY last_success DESC, success_count DESC`).
		WithArgs(int(types.StatusSuccess), "http", maxActiveLimit).
		WillReturnRows(sqlmock.NewRows([]string{"id", "ip", "port", "protocol", "source", "status"}))

	_, err := p.ActiveProxies(context.Background(), ActiveFilter{
		Protocol: types.ProtocolHTTP, Limit: 500,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActiveProxiesFilters(t *testing.T) {
	p, mock := newMockStore(t)

	mock.ExpectQuery(`protocol = \$2 AND country = \$3 AND anonymity = \$4`).
		WithArgs(int(types.StatusSuccess), "socks5", "US", "elite", 5).
		WillReturnRows(sqlmock.NewRows([]string{"id", "ip", "port", "protocol", "source", "status"}))

	_, err := p.ActiveProxies(context.Background(), ActiveFilter{
		Protocol:  types.ProtocolSOCKS5,
		Country:   "us",
		Anonymity: types.AnonymityElite,
		Limit:     5,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanupFailed(t *testing.T) {
	p, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM proxies WHERE status = \$1 AND fail_count >= \$2`).
		WithArgs(int(types.StatusFailed), 3).
		WillReturnResult(sqlmock.NewResult(0, 12))

	n, err := p.CleanupFailed(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
}

func TestCleanupStale(t *testing.T) {
	p, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM proxies`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := p.CleanupStale(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
}

func TestBatchSetCountry(t *testing.T) {
	p, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE proxies SET`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := p.BatchSetCountry(context.Background(), []CountryUpdate{
		{ID: 1, Country: "US"},
		{ID: 2, Country: "DE"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestBatchSetCountryEmpty(t *testing.T) {
	p, mock := newMockStore(t)
	n, err := p.BatchSetCountry(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStats(t *testing.T) {
	p, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{
		"total", "active", "inactive", "pending", "protocols", "countries",
		"avg_speed", "transparent", "anonymous", "elite",
	}).AddRow(100, 40, 30, 30, 4, 12, 1.25, 5, 15, 20)

	mock.ExpectQuery(`SELECT`).WillReturnRows(rows)

	stats, err := p.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(100), stats.Total)
	assert.Equal(t, int64(40), stats.Active)
	require.NotNil(t, stats.AvgSpeed)
	assert.InDelta(t, 1.25, *stats.AvgSpeed, 0.001)
	assert.Equal(t, int64(20), stats.Elite)
}

func TestProxiesWithoutCountry(t *testing.T) {
	p, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "ip"}).
		AddRow(int64(1), "10.0.0.1").
		AddRow(int64(2), "10.0.0.2")

	mock.ExpectQuery(`SELECT id, ip FROM proxies`).
		WithArgs(int(types.StatusSuccess), 100).
		WillReturnRows(rows)

	records, err := p.ProxiesWithoutCountry(context.Background(), 100)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "10.0.0.2", records[1].IP)
}
