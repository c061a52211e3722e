package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weaponwatch/internal/dto"
	"weaponwatch/internal/model"
)

// ========================================
// Test Setup Helpers
// ========================================

func setupTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err, "failed to create test database")
	t.Cleanup(func() { db.Close() })

	return db
}

func incident(id, ts, label, location, sourceName string) model.Incident {
	return model.Incident{
		ID:         id,
		Timestamp:  ts,
		SourceID:   "Camera 1",
		SourceName: sourceName,
		Location:   location,
		Label:      label,
		Confidence: 0.91,
		Image:      "/incidents/" + id + ".jpg",
	}
}

func seed(t *testing.T, repo *IncidentRepository, incidents ...model.Incident) {
	t.Helper()
	for _, inc := range incidents {
		require.NoError(t, repo.Save(context.Background(), inc))
	}
}

// ========================================
// Database Tests
// ========================================

func TestDatabase_Connection(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := New(dbPath)
	require.NoError(t, err)
	defer db.Close()

	_, err = os.Stat(dbPath)
	assert.NoError(t, err, "database file should exist")
}

func TestDatabase_ReopenKeepsData(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := New(dbPath)
	require.NoError(t, err)
	seed(t, NewIncidentRepository(db), incident("a", "2024-01-01_10-00-00", "pistol", "Lobby", "Main"))
	require.NoError(t, db.Close())

	db, err = New(dbPath)
	require.NoError(t, err)
	defer db.Close()

	count, err := NewIncidentRepository(db).CountAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

// ========================================
// Incident Repository Tests
// ========================================

func TestIncidentRepository_SaveDuplicateID(t *testing.T) {
	repo := NewIncidentRepository(setupTestDB(t))
	inc := incident("dup", "2024-01-01_10-00-00", "pistol", "Lobby", "Main")

	require.NoError(t, repo.Save(context.Background(), inc))
	assert.Error(t, repo.Save(context.Background(), inc))
}

func TestIncidentRepository_MostRecent(t *testing.T) {
	repo := NewIncidentRepository(setupTestDB(t))
	ctx := context.Background()

	seed(t, repo,
		incident("old", "2024-01-01_10-00-00", "pistol", "Lobby", "Main"),
		incident("new", "2024-01-01_10-05-00", "pistol", "Lobby", "Main"),
		incident("knife", "2024-01-01_11-00-00", "knife", "Lobby", "Main"),
	)

	got, err := repo.MostRecent(ctx, "pistol", "Camera 1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "new", got.ID)
	assert.Equal(t, "Main", got.SourceName)
	assert.InDelta(t, 0.91, got.Confidence, 1e-9)
}

func TestIncidentRepository_MostRecent_NotFound(t *testing.T) {
	repo := NewIncidentRepository(setupTestDB(t))

	got, err := repo.MostRecent(context.Background(), "pistol", "Camera 9")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestIncidentRepository_Query(t *testing.T) {
	repo := NewIncidentRepository(setupTestDB(t))
	ctx := context.Background()

	seed(t, repo,
		incident("before", "2023-12-31_23-59-59", "pistol", "Lobby", "Main"),
		incident("start", "2024-01-01_00-00-00", "pistol", "Lobby", "Main"),
		incident("noon", "2024-01-01_12-00-00", "knife", "Lobby", "Main"),
		incident("last", "2024-01-01_23-59-59", "pistol", "Lobby", "Main"),
		incident("after", "2024-01-02_00-00-00", "pistol", "Lobby", "Main"),
	)

	tests := []struct {
		name   string
		filter dto.IncidentFilter
		want   []string
	}{
		{"no filter newest first", dto.IncidentFilter{}, []string{"after", "last", "noon", "start", "before"}},
		{"single day inclusive", dto.IncidentFilter{StartDate: "2024-01-01", EndDate: "2024-01-01"}, []string{"last", "noon", "start"}},
		{"start only", dto.IncidentFilter{StartDate: "2024-01-01_12-00-00"}, []string{"after", "last", "noon"}},
		{"full end bound", dto.IncidentFilter{EndDate: "2024-01-01_12-00-00"}, []string{"noon", "start", "before"}},
		{"empty range", dto.IncidentFilter{StartDate: "2025-01-01"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.Query(ctx, tt.filter)
			require.NoError(t, err)

			ids := []string{}
			for _, inc := range got {
				ids = append(ids, inc.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestIncidentRepository_AggregateByPeriod(t *testing.T) {
	repo := NewIncidentRepository(setupTestDB(t))
	ctx := context.Background()

	seed(t, repo,
		incident("a", "2024-01-01_10-00-00", "pistol", "Lobby", "Main"),
		incident("b", "2024-01-01_11-00-00", "pistol", "Lobby", "Main"),
		incident("c", "2024-01-15_11-00-00", "knife", "Lobby", "Main"),
		incident("d", "2024-02-03_11-00-00", "knife", "Lobby", "Main"),
	)

	days, err := repo.AggregateByPeriod(ctx, dto.GranularityDay)
	require.NoError(t, err)
	assert.Equal(t, []dto.PeriodCount{
		{Period: "2024-01-01", Count: 2},
		{Period: "2024-01-15", Count: 1},
		{Period: "2024-02-03", Count: 1},
	}, days)

	months, err := repo.AggregateByPeriod(ctx, dto.GranularityMonth)
	require.NoError(t, err)
	assert.Equal(t, []dto.PeriodCount{
		{Period: "2024-01", Count: 3},
		{Period: "2024-02", Count: 1},
	}, months)

	_, err = repo.AggregateByPeriod(ctx, dto.Granularity("year"))
	assert.Error(t, err)
}

func TestIncidentRepository_AggregateByField(t *testing.T) {
	repo := NewIncidentRepository(setupTestDB(t))
	ctx := context.Background()

	seed(t, repo,
		incident("a", "2024-01-01_10-00-00", "pistol", "Lobby", "Main"),
		incident("b", "2024-01-01_11-00-00", "knife", "Dock", "Rear"),
		incident("c", "2024-01-02_11-00-00", "knife", "Lobby", "Main"),
		incident("d", "2024-01-03_11-00-00", "knife", "Lobby", "Main"),
	)

	byLabel, err := repo.AggregateByField(ctx, dto.FieldLabel)
	require.NoError(t, err)
	assert.Equal(t, []dto.CategoryCount{{Category: "knife", Count: 3}, {Category: "pistol", Count: 1}}, byLabel)

	byLocation, err := repo.AggregateByField(ctx, dto.FieldLocation)
	require.NoError(t, err)
	assert.Equal(t, []dto.CategoryCount{{Category: "Lobby", Count: 3}, {Category: "Dock", Count: 1}}, byLocation)

	bySource, err := repo.AggregateByField(ctx, dto.FieldSourceName)
	require.NoError(t, err)
	assert.Equal(t, []dto.CategoryCount{{Category: "Main", Count: 3}, {Category: "Rear", Count: 1}}, bySource)

	// Repeated calls without new incidents return identical counts.
	again, err := repo.AggregateByField(ctx, dto.FieldLabel)
	require.NoError(t, err)
	assert.Equal(t, byLabel, again)

	_, err = repo.AggregateByField(ctx, dto.Field("image; DROP TABLE incidents"))
	assert.Error(t, err)
}

func TestIncidentRepository_ConcurrentAccess(t *testing.T) {
	repo := NewIncidentRepository(setupTestDB(t))
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func(idx int) {
			defer wg.Done()
			inc := incident(fmt.Sprintf("c%d", idx), fmt.Sprintf("2024-01-01_10-00-%02d", idx), "pistol", "Lobby", "Main")
			assert.NoError(t, repo.Save(ctx, inc))
		}(i)
		go func() {
			defer wg.Done()
			_, err := repo.Query(ctx, dto.IncidentFilter{})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	count, err := repo.CountAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, count)
}

// ========================================
// Destination Repository Tests
// ========================================

func TestDestinationRepository_AddListRemove(t *testing.T) {
	repo := NewDestinationRepository(setupTestDB(t))
	ctx := context.Background()

	require.NoError(t, repo.Add(ctx, "100"))
	require.NoError(t, repo.Add(ctx, "200"))
	require.NoError(t, repo.Add(ctx, "100"))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"100", "200"}, list)

	removed, err := repo.Remove(ctx, "100")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = repo.Remove(ctx, "100")
	require.NoError(t, err)
	assert.False(t, removed)

	count, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestDestinationRepository_RemoveBatch(t *testing.T) {
	repo := NewDestinationRepository(setupTestDB(t))
	ctx := context.Background()

	for _, id := range []string{"1", "2", "3", "4"} {
		require.NoError(t, repo.Add(ctx, id))
	}

	require.NoError(t, repo.RemoveBatch(ctx, []string{"2", "4", "missing"}))
	require.NoError(t, repo.RemoveBatch(ctx, nil))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "3"}, list)
}
