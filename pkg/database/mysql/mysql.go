package mysql

import (
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/hashicorp/go-multierror"

	"github.com/ninja0404/whale-signal/pkg/logger"
)

const (
	DEFAULT_DB = "default"
)

var dbs map[string]*gorm.DB

func init() {
	dbs = make(map[string]*gorm.DB)
}

// SetupDatabase 使用默认名称初始化数据库连接
func SetupDatabase(config *MysqlConfig) error {
	return SetupNamedDatabase(DEFAULT_DB, config)
}

func SetupNamedDatabase(name string, config *MysqlConfig) error {
	newDB, err := createDatabase(config)
	if err != nil {
		return err
	}
	dbs[name] = newDB.db
	logger.Info(
		"mysql database connected",
		logger.String("name", name),
		logger.String("host", config.Host),
		logger.Int("port", config.Port),
		logger.String("database", config.Database),
	)
	return nil
}

func Stop() error {
	var merr error
	for dname, db := range dbs {
		realDB, err := db.DB()
		if err != nil {
			merr = multierror.Append(merr, err)
			continue
		}
		err = realDB.Close()
		if err != nil {
			merr = multierror.Append(merr, err)
		}
		logger.Info(
			"mysql database closed",
			logger.String("name", dname),
		)
	}
	return merr
}

func GetDb() (*gorm.DB, error) {
	return GetDbWithName(DEFAULT_DB)
}

func GetDbWithName(name string) (*gorm.DB, error) {
	db, ok := dbs[name]
	if !ok {
		return nil, errors.New("database does not initialized")
	}
	return db, nil
}
