package database

import "testing"

func TestConfigDSN(t *testing.T) {
	cfg := Config{Host: "db", User: "relay", Password: "secret", Name: "relay"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got, want := cfg.KeywordDSN(), "user=relay password=secret host=db port=5432 dbname=relay sslmode=disable"; got != want {
		t.Fatalf("KeywordDSN = %q, want %q", got, want)
	}
	if got, want := cfg.URLDSN(), "postgres://relay:secret@db:5432/relay?sslmode=disable"; got != want {
		t.Fatalf("URLDSN = %q, want %q", got, want)
	}
	if err := (Config{Host: "db"}).Validate(); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestUpFilesBetween(t *testing.T) {
	if got := upFilesBetween(0, 1); len(got) != 1 || got[0] != "000001_relay_kv.up.sql" {
		t.Fatalf("upFilesBetween(0, 1) = %v", got)
	}
	if got := upFilesBetween(1, 1); len(got) != 0 {
		t.Fatalf("no change should list nothing, got %v", got)
	}
}
