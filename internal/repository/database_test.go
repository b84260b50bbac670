package repository

import "testing"

func TestPgx5URL(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"postgres scheme", "postgres://u:p@localhost:5432/db", "pgx5://u:p@localhost:5432/db"},
		{"postgresql scheme", "postgresql://localhost/db", "pgx5://localhost/db"},
		{"already pgx5", "pgx5://localhost/db", "pgx5://localhost/db"},
		{"dsn passthrough", "host=localhost dbname=db", "host=localhost dbname=db"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pgx5URL(tt.in); got != tt.want {
				t.Errorf("pgx5URL(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
