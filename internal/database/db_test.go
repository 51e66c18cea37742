package database

import (
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"gorm.io/gorm"

	"github.com/iliyamo/movieflix/internal/config"
	"github.com/iliyamo/movieflix/internal/model"
)

func TestOpenSQLite(t *testing.T) {
	db, err := Open(config.Config{DBDriver: "sqlite", DBPath: ":memory:"}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer Close(db)

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	for _, table := range []string{"users", "refresh_tokens", "entries"} {
		if !db.Migrator().HasTable(table) {
			t.Errorf("table %s missing after migrate", table)
		}
	}
}

func TestDialectorFor(t *testing.T) {
	t.Run("mysql dsn", func(t *testing.T) {
		d, err := dialectorFor(config.Config{DBDriver: "mysql", DBUser: "app", DBPass: "pw", DBHost: "db", DBName: "movieflix"})
		if err != nil {
			t.Fatal(err)
		}
		if d.Name() != "mysql" {
			t.Errorf("Name = %q", d.Name())
		}
	})
	t.Run("unknown driver", func(t *testing.T) {
		_, err := dialectorFor(config.Config{DBDriver: "oracle"})
		if err == nil || !strings.Contains(err.Error(), "oracle") {
			t.Fatalf("err = %v", err)
		}
	})
}

func TestGormLogsThroughZap(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	db, err := Open(config.Config{DBDriver: "sqlite", DBPath: ":memory:"}, zap.New(core).Sugar())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer Close(db)
	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	logs.TakeAll()

	var u model.User
	if err := db.Where("email = ?", "nobody@example.com").First(&u).Error; !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("First = %v", err)
	}
	if n := logs.Len(); n != 0 {
		t.Fatalf("record not found was logged %d times: %v", n, logs.All())
	}

	if err := db.Exec("SELECT * FROM no_such_table").Error; err == nil {
		t.Fatal("query on a missing table succeeded")
	}
	found := logs.FilterMessageSnippet("no_such_table").All()
	if len(found) == 0 {
		t.Fatalf("failed statement not logged: %v", logs.All())
	}
	if found[0].LoggerName != "gorm" || found[0].Level != zapcore.WarnLevel {
		t.Errorf("entry = %s at %v", found[0].LoggerName, found[0].Level)
	}
}
