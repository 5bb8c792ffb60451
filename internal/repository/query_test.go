package repository

import (
	"Keepsake/internal/model"
	"Keepsake/internal/pkg/rowfilter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func dryRunDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "user:pass@tcp(127.0.0.1:3306)/keepsake?parseTime=true",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)
	return db
}

func TestColumnsWhereConvertsTypes(t *testing.T) {
	db := dryRunDB(t)
	filter, err := rowfilter.ParseString("day=eq.2026-10-19&vault=eq.false&id=gt.10")
	require.NoError(t, err)

	q, err := ImageColumns.Where(db.Model(&model.Image{}), filter)
	require.NoError(t, err)
	q, err = ImageColumns.OrderBy(q, rowfilter.Order{}, rowfilter.Asc("created_at"))
	require.NoError(t, err)

	var images []*model.Image
	stmt := q.Find(&images).Statement
	sql := stmt.SQL.String()
	assert.Contains(t, sql, "day = ?")
	assert.Contains(t, sql, "id > ?")
	assert.Contains(t, sql, "vault = ?")
	assert.Contains(t, sql, "ORDER BY created_at ASC,id ASC")
	assert.Contains(t, stmt.Vars, false)
	assert.Contains(t, stmt.Vars, uint64(10))
}

func TestColumnsRejectUnknown(t *testing.T) {
	db := dryRunDB(t)

	_, err := ImageColumns.Where(db, rowfilter.Filter{rowfilter.Eq("password", "x")})
	assert.ErrorIs(t, err, rowfilter.ErrBadFilter)

	_, err = ImageColumns.Where(db, rowfilter.Filter{rowfilter.Eq("vault", "maybe")})
	assert.ErrorIs(t, err, rowfilter.ErrBadFilter)

	_, err = ImageColumns.OrderBy(db, rowfilter.Desc("object_key; DROP TABLE images"), rowfilter.Asc("id"))
	assert.ErrorIs(t, err, rowfilter.ErrBadFilter)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, MaxPageSize, clampLimit(0))
	assert.Equal(t, MaxPageSize, clampLimit(10_000))
	assert.Equal(t, 20, clampLimit(20))
}
