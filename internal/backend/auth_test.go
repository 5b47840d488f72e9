/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package backend

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	now := time.Now()
	tok, err := SignToken("k", "alice", now.Add(time.Hour))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	sub, err := VerifyToken("k", tok, now)
	if err != nil || sub != "alice" {
		t.Fatalf("verify = %q, %v", sub, err)
	}
	if _, err := VerifyToken("other", tok, now); !errors.Is(err, ErrTokenSig) {
		t.Fatalf("wrong key err = %v", err)
	}
	if _, err := VerifyToken("k", tok, now.Add(2*time.Hour)); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expired err = %v", err)
	}
	payload, sig, _ := strings.Cut(tok, ".")
	if _, err := VerifyToken("k", payload+"x."+sig, now); err == nil {
		t.Fatalf("tampered payload accepted")
	}
	for _, bad := range []string{"", "nodot", "a.b.c", "!!.??"} {
		if _, err := VerifyToken("k", bad, now); err == nil {
			t.Fatalf("token %q accepted", bad)
		}
	}
}

func TestEmptySubjectDefaults(t *testing.T) {
	tok, _ := SignToken("k", "", time.Now().Add(time.Minute))
	if sub, err := VerifyToken("k", tok, time.Now()); err != nil || sub != "dev" {
		t.Fatalf("sub = %q, %v", sub, err)
	}
}

func TestParseMigrationVersion(t *testing.T) {
	if v, err := parseVersion("migrations/0002_search.sql"); err != nil || v != 2 {
		t.Fatalf("v = %d, %v", v, err)
	}
	for _, bad := range []string{"init.sql", "x_init.sql"} {
		if _, err := parseVersion(bad); err == nil {
			t.Fatalf("%q accepted", bad)
		}
	}
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil || len(entries) < 2 {
		t.Fatalf("embedded migrations = %d, %v", len(entries), err)
	}
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PGC_PG_DSN", "")
	t.Setenv("PORT", "9999")
	t.Setenv("PGC_BACKEND_ADDR", "")
	t.Setenv("PGC_AUTH_SECRET", "s3")
	cfg := LoadConfig()
	if cfg.DBURL != DefaultDSN || cfg.Addr != ":9999" || cfg.Secret != "s3" {
		t.Fatalf("cfg = %+v", cfg)
	}
	t.Setenv("PGC_PG_DSN", "postgres://x")
	t.Setenv("PGC_BACKEND_ADDR", "127.0.0.1:1")
	if cfg = LoadConfig(); cfg.DBURL != "postgres://x" || cfg.Addr != "127.0.0.1:1" {
		t.Fatalf("cfg = %+v", cfg)
	}
}
