package internal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfig_Driver(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		want    StorageDriver
		wantErr bool
	}{
		{"Badger with path", Config{StorageDriver: "badger", BadgerFilepath: "/tmp/chat"}, DriverBadger, false},
		{"Badger without path", Config{StorageDriver: "badger"}, "", true},
		{"Case insensitive", Config{StorageDriver: "SQLite", StorageDSN: "file:chat.db"}, DriverSQLite, false},
		{"MySQL without dsn", Config{StorageDriver: "mysql"}, "", true},
		{"Unknown", Config{StorageDriver: "postgres", StorageDSN: "x"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			driver, err := tt.cfg.Driver()
			if tt.wantErr {
				req.Error(err)
				return
			}
			req.NoError(err)
			req.Equal(tt.want, driver)
		})
	}
}

func TestConfig_Origins(t *testing.T) {
	req := require.New(t)
	req.Equal([]string{"https://a.example.com", "https://b.example.com"},
		Config{AllowedOrigins: " https://a.example.com, ,https://b.example.com"}.Origins())
	req.Equal([]string{"*"}, Config{AllowedOrigins: "*"}.Origins())
}
