package migration

import (
	"io/fs"

	"go.uber.org/fx"

	"github.com/tigerroll/blobtosql/pkg/batch/adapter/database"
	"github.com/tigerroll/blobtosql/pkg/batch/component/migration/filesystem"
)

// MigrationsFSTag is the Fx tag of the embedded migrations filesystem.
const MigrationsFSTag = `name:"migrationsFS"`

// NewDestinationMigrator creates the Migrator of the destination connection.
func NewDestinationMigrator(conn database.DBConnection) Migrator {
	return NewMigrator(conn.Config(), OpenWithGorm)
}

// Params groups what a migration run needs.
type Params struct {
	fx.In
	Migrator     Migrator
	MigrationsFS fs.FS `name:"migrationsFS"`
}

// Module provides the destination Migrator and the embedded migrations.
var Module = fx.Options(
	fx.Provide(NewDestinationMigrator),
	fx.Provide(fx.Annotate(
		filesystem.ProvideMigrationsFS,
		fx.ResultTags(MigrationsFSTag),
	)),
)
