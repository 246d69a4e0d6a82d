package model_test

import (
	"os"
	"path"
	"testing"

	"notex/pkg/config"
	"notex/pkg/model"
	"notex/pkg/xlog"

	"gorm.io/gorm"
)

var db *gorm.DB

func TestMain(m *testing.M) {
	if os.Getenv("NOTEX_TEST_MYSQL") == "" {
		// DB integration tests need a local mysql, see config below
		os.Exit(0)
	}

	config.Shared = &config.Config{
		IsDebug: true,
	}
	config.Shared.FillDefaults()

	config.Shared.MySQL.Main = config.MySQLServer{
		Host:         "127.0.0.1",
		User:         "notex",
		Pass:         "localdbtestpwd",
		DB:           "notex",
		Port:         3306,
		MaxOpenConns: 8,
	}

	xlog.Init("test", path.Join(os.TempDir(), "logs/notex-test.log"), nil)

	db = model.OpenMySQL()
	os.Exit(m.Run())
}

func TestMigrate(t *testing.T) {
	if err := model.Migrate(db); err != nil {
		t.Fatalf("migrate failed: %s", err)
	}
}
