package database

import (
	"strings"
	"testing"

	"github.com/chrissnell/meteodb/pkg/config"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.TimescaleDBData
		want string
	}{
		{
			name: "connection string wins",
			cfg:  config.TimescaleDBData{ConnectionString: "postgres://u@h/db", Host: "ignored"},
			want: "postgres://u@h/db",
		},
		{
			name: "defaults",
			cfg:  config.TimescaleDBData{Host: "tsdb.local", Database: "meteodb"},
			want: "host=tsdb.local port=5432 dbname=meteodb sslmode=prefer",
		},
		{
			name: "credentials quoted",
			cfg: config.TimescaleDBData{
				Host: "tsdb.local", Port: 5433, User: "meteo", Password: `it's a secret`,
				Database: "meteodb", SSLMode: "require",
			},
			want: `host=tsdb.local port=5433 user=meteo password='it\'s a secret' dbname=meteodb sslmode=require`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DSN(&tt.cfg); got != tt.want {
				t.Errorf("DSN() = %q, expected %q", got, tt.want)
			}
		})
	}
}

func TestGeneratePassword(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		p, err := GeneratePassword(0)
		if err != nil {
			t.Fatal(err)
		}
		if len(p) != PasswordLength {
			t.Errorf("len(password) = %d, expected %d", len(p), PasswordLength)
		}
		if strings.ContainsAny(p, `'\ `) {
			t.Errorf("password %q contains a quoting character", p)
		}
		seen[p] = true
	}
	if len(seen) != 20 {
		t.Errorf("generated %d distinct passwords out of 20", len(seen))
	}
}

func TestQuoteLiteral(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"secret", "'secret'"},
		{"it's", "'it''s'"},
		{"", "''"},
	}
	for _, tt := range tests {
		if got := quoteLiteral(tt.in); got != tt.want {
			t.Errorf("quoteLiteral(%q) = %s, expected %s", tt.in, got, tt.want)
		}
	}
}
