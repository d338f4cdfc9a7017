package storage

import (
	"strings"
	"testing"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	encoded, err := newPasswordHash("correct horse", testArgon2idParams)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=19$m=1024,t=1,p=1$") {
		t.Fatalf("unexpected encoding: %s", encoded)
	}
	h, err := decodePasswordHash(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if h.params != testArgon2idParams {
		t.Errorf("decoded params %+v, want %+v", h.params, testArgon2idParams)
	}
	if valid, rehash := checkPassword(encoded, "correct horse", testArgon2idParams); !valid || rehash {
		t.Errorf("expected valid without rehash, got valid=%v rehash=%v", valid, rehash)
	}
	if valid, _ := checkPassword(encoded, "wrong", testArgon2idParams); valid {
		t.Error("wrong password accepted")
	}
}

func TestPasswordRehashOnParamChange(t *testing.T) {
	encoded, err := newPasswordHash("pw", testArgon2idParams)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	stronger := testArgon2idParams
	stronger.Time = 2
	valid, rehash := checkPassword(encoded, "pw", stronger)
	if !valid || !rehash {
		t.Errorf("expected valid with rehash, got valid=%v rehash=%v", valid, rehash)
	}
}

func TestDecodePasswordHashRejectsGarbage(t *testing.T) {
	for _, encoded := range []string{
		"",
		"$2a$10$bcrypt",
		"$argon2id$v=19$m=1,t=1$salt",
		"$argon2id$v=19$m=x,t=1,p=1$c2FsdA$a2V5",
		"$argon2id$v=19$m=1,t=1,p=1$!!$a2V5",
	} {
		if _, err := decodePasswordHash(encoded); err == nil {
			t.Errorf("expected error for %q", encoded)
		}
	}
}
