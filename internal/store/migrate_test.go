// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"errors"
	"fmt"
	"testing"
	"testing/fstest"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/identity/pkg/errutil"
)

// fakeMigrate implements migrateIface for testing.
type fakeMigrate struct {
	upErr, downErr, stepsErr, forceErr error
	version                            uint
	dirty                              bool
	versionErr                         error
	closeSourceErr, closeDBErr         error
	forced                             []int
}

func (f *fakeMigrate) Up() error                    { return f.upErr }
func (f *fakeMigrate) Down() error                  { return f.downErr }
func (f *fakeMigrate) Steps(int) error              { return f.stepsErr }
func (f *fakeMigrate) Version() (uint, bool, error) { return f.version, f.dirty, f.versionErr }
func (f *fakeMigrate) Close() (error, error)        { return f.closeSourceErr, f.closeDBErr }
func (f *fakeMigrate) Force(v int) error {
	f.forced = append(f.forced, v)
	return f.forceErr
}

func TestNewMigrator_InvalidURL(t *testing.T) {
	_, err := NewMigrator("badscheme://localhost:5432/identity")
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
}

func TestDriverURL(t *testing.T) {
	assert.Equal(t, "pgx5://u:p@db/identity", driverURL("postgres://u:p@db/identity"))
	assert.Equal(t, "pgx5://db/identity?sslmode=disable", driverURL("postgresql://db/identity?sslmode=disable"))
	assert.Equal(t, "pgx5://db/identity", driverURL("pgx5://db/identity"))
}

func TestMigrator_UpDownSteps(t *testing.T) {
	tests := []struct {
		name string
		fake *fakeMigrate
		run  func(*Migrator) error
		code string
	}{
		{"up", &fakeMigrate{}, (*Migrator).Up, ""},
		{"up no change", &fakeMigrate{upErr: migrate.ErrNoChange}, (*Migrator).Up, ""},
		{"up error", &fakeMigrate{upErr: errors.New("syntax error")}, (*Migrator).Up, "MIGRATION_UP_FAILED"},
		{"down no change", &fakeMigrate{downErr: migrate.ErrNoChange}, (*Migrator).Down, ""},
		{"down error", &fakeMigrate{downErr: errors.New("locked")}, (*Migrator).Down, "MIGRATION_DOWN_FAILED"},
		{"steps no change", &fakeMigrate{stepsErr: migrate.ErrNoChange}, func(m *Migrator) error { return m.Steps(0) }, ""},
		{"steps error", &fakeMigrate{stepsErr: errors.New("file does not exist")}, func(m *Migrator) error { return m.Steps(-3) }, "MIGRATION_STEPS_FAILED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run(&Migrator{m: tt.fake})
			if tt.code == "" {
				require.NoError(t, err)
				return
			}
			errutil.AssertErrorCode(t, err, tt.code)
		})
	}
}

func TestMigrator_Version(t *testing.T) {
	t.Run("nil version reads as zero", func(t *testing.T) {
		v, dirty, err := (&Migrator{m: &fakeMigrate{versionErr: migrate.ErrNilVersion}}).Version()
		require.NoError(t, err)
		assert.Zero(t, v)
		assert.False(t, dirty)
	})

	t.Run("dirty", func(t *testing.T) {
		v, dirty, err := (&Migrator{m: &fakeMigrate{version: 2, dirty: true}}).Version()
		require.NoError(t, err)
		assert.Equal(t, uint(2), v)
		assert.True(t, dirty)
	})

	t.Run("error", func(t *testing.T) {
		_, _, err := (&Migrator{m: &fakeMigrate{versionErr: errors.New("connection lost")}}).Version()
		errutil.AssertErrorCode(t, err, "MIGRATION_VERSION_FAILED")
	})
}

func TestMigrator_Force(t *testing.T) {
	fake := &fakeMigrate{}
	m := &Migrator{m: fake}

	require.NoError(t, m.Force(1))
	errutil.AssertErrorCode(t, m.Force(-1), "INVALID_VERSION")
	assert.Equal(t, []int{1}, fake.forced, "negative versions never reach golang-migrate")

	fake.forceErr = errors.New("no such version")
	errutil.AssertErrorCode(t, m.Force(9), "MIGRATION_FORCE_FAILED")
}

func TestMigrator_Status(t *testing.T) {
	m := &Migrator{m: &fakeMigrate{version: 1}}

	status, err := m.Status()
	require.NoError(t, err)

	assert.Equal(t, uint(1), status.Version)
	require.Len(t, status.Applied, 1)
	assert.Equal(t, Migration{Version: 1, Name: "identity"}, status.Applied[0])
	require.NotEmpty(t, status.Pending)
	assert.Equal(t, uint(2), status.Pending[0].Version)
}

func TestMigrator_Close(t *testing.T) {
	require.NoError(t, (&Migrator{m: &fakeMigrate{}}).Close())

	err := (&Migrator{m: &fakeMigrate{closeSourceErr: errors.New("src")}}).Close()
	errutil.AssertErrorContext(t, err, "component", "source")

	err = (&Migrator{m: &fakeMigrate{closeDBErr: errors.New("db")}}).Close()
	errutil.AssertErrorContext(t, err, "component", "database")

	err = (&Migrator{m: &fakeMigrate{closeSourceErr: errors.New("src"), closeDBErr: errors.New("db")}}).Close()
	errutil.AssertErrorCode(t, err, "MIGRATION_CLOSE_FAILED")
	errutil.AssertErrorContext(t, err, "component", "both")
	assert.Contains(t, err.Error(), "src")
	assert.Contains(t, err.Error(), "db")
}

func TestMigrations_Embedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	require.NoError(t, err)
	for _, entry := range entries {
		assert.Regexp(t, migrationFile, entry.Name())
	}

	all, err := Migrations()
	require.NoError(t, err)
	require.NotEmpty(t, all)
	for i, mig := range all {
		assert.Equal(t, uint(i+1), mig.Version, "versions are contiguous")
		_, err := migrationsFS.ReadFile(fmt.Sprintf("migrations/%06d_%s.down.sql", mig.Version, mig.Name))
		assert.NoError(t, err, "every up migration has a down")
	}
}

func TestListMigrations_SkipsForeignFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/000002_second.up.sql":   {},
		"migrations/000002_second.down.sql": {},
		"migrations/000001_first.up.sql":    {},
		"migrations/README.md":              {},
	}

	all, err := listMigrations(fsys)
	require.NoError(t, err)
	assert.Equal(t, []Migration{{1, "first"}, {2, "second"}}, all)
}
