package db

import (
	"github.com/campuspulse/campuspulse/internal/models"
	"github.com/juju/errors"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Open opens a gorm connection with the settings every driver shares.
// Foreign keys are not created by the migrator: attendance logs must
// survive the deletion of their event, and registrations are removed by
// the event service itself.
func Open(dialector gorm.Dialector) (*gorm.DB, error) {
	conn, err := gorm.Open(dialector, &gorm.Config{
		TranslateError:                           true,
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, errors.Annotate(err, "opening database")
	}

	return conn, nil
}

func Dialector(driver, dsn string) (gorm.Dialector, error) {
	switch driver {
	case "postgres":
		return postgres.Open(dsn), nil
	case "mysql":
		return mysql.Open(dsn), nil
	case "sqlite":
		return sqlite.Open(dsn), nil
	default:
		return nil, errors.NotSupportedf("database driver %q", driver)
	}
}

func ConnectDatabase(driver, dsn string) error {
	dialector, err := Dialector(driver, dsn)
	if err != nil {
		return err
	}

	DB, err = Open(dialector)

	return err
}

func MigrateDatabase(conn *gorm.DB) error {
	models := []interface{}{
		&models.User{},
		&models.Event{},
		&models.EventParticipant{},
		&models.AttendanceLog{},
	}

	for _, model := range models {
		if err := conn.AutoMigrate(model); err != nil {
			return errors.Annotatef(err, "migrating %T", model)
		}
	}

	return nil
}
