package auth

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestEncodeArgon2_CostSegmentRoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		params  Params
		segment string
	}{
		{"fast", fastParams, "m=1024,t=1,p=1"},
		{"wide", Params{Time: 2, Memory: 2048, Threads: 3, KeyLen: 24, SaltLen: 8}, "m=2048,t=2,p=3"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			encoded, err := encodeArgon2("hunter2-but-longer", tt.params)
			if err != nil {
				t.Fatalf("encodeArgon2 failed: %v", err)
			}

			parts := strings.Split(encoded, "$")
			if len(parts) != 6 || parts[1] != "argon2id" || parts[2] != "v=19" {
				t.Fatalf("unexpected PHC string %q", encoded)
			}
			if parts[3] != tt.segment {
				t.Errorf("cost segment = %q, want %q", parts[3], tt.segment)
			}

			got, salt, key, err := decodeArgon2(encoded)
			if err != nil {
				t.Fatalf("decodeArgon2 failed: %v", err)
			}
			if got != tt.params {
				t.Errorf("decoded params = %+v, want %+v", got, tt.params)
			}
			if uint32(len(salt)) != tt.params.SaltLen || uint32(len(key)) != tt.params.KeyLen {
				t.Errorf("salt/key length = %d/%d, want %d/%d", len(salt), len(key), tt.params.SaltLen, tt.params.KeyLen)
			}

			ok, err := verifyArgon2("hunter2-but-longer", encoded)
			if err != nil || !ok {
				t.Errorf("verifyArgon2 = %v, %v; want true, nil", ok, err)
			}
		})
	}
}

func TestEncodeArgon2_FreshSaltPerHash(t *testing.T) {
	t.Parallel()

	a, err := encodeArgon2("same-password", fastParams)
	if err != nil {
		t.Fatalf("encodeArgon2 failed: %v", err)
	}
	b, err := encodeArgon2("same-password", fastParams)
	if err != nil {
		t.Fatalf("encodeArgon2 failed: %v", err)
	}
	if a == b {
		t.Error("expected different encodings for the same password")
	}
}

func TestParseCost(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		segment string
		want    Params
		wantErr bool
	}{
		{"valid", "m=65536,t=3,p=4", Params{Memory: 65536, Time: 3, Threads: 4}, false},
		{"missing threads", "m=65536,t=3", Params{}, true},
		{"missing time and threads", "m=65536", Params{}, true},
		{"empty", "", Params{}, true},
		{"trailing junk", "m=65536,t=3,p=4x", Params{}, true},
		{"reordered", "t=3,m=65536,p=4", Params{}, true},
		{"zero memory", "m=0,t=3,p=4", Params{}, true},
		{"threads overflow", "m=65536,t=3,p=256", Params{}, true},
		{"negative", "m=-1,t=3,p=4", Params{}, true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseCost(tt.segment)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidHash) {
					t.Errorf("parseCost(%q) error = %v, want ErrInvalidHash", tt.segment, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("parseCost(%q) failed: %v", tt.segment, err)
			}
			if got != tt.want {
				t.Errorf("parseCost(%q) = %+v, want %+v", tt.segment, got, tt.want)
			}
		})
	}
}

func TestDecodeArgon2_Rejects(t *testing.T) {
	t.Parallel()

	salt := base64.RawStdEncoding.EncodeToString([]byte("0123456789abcdef"))
	key := base64.RawStdEncoding.EncodeToString([]byte("0123456789abcdef0123456789abcdef"))

	tests := []struct {
		name    string
		encoded string
		wantErr error
	}{
		{"empty", "", ErrInvalidHash},
		{"bcrypt prefix", "$2b$10$abcdefghijklmnopqrstuv", ErrInvalidHash},
		{"argon2i", "$argon2i$v=19$m=1024,t=1,p=1$" + salt + "$" + key, ErrInvalidHash},
		{"leading text", "x$argon2id$v=19$m=1024,t=1,p=1$" + salt + "$" + key, ErrInvalidHash},
		{"old version", "$argon2id$v=16$m=1024,t=1,p=1$" + salt + "$" + key, ErrIncompatibleVersion},
		{"truncated cost", "$argon2id$v=19$m=1024,t=1$" + salt + "$" + key, ErrInvalidHash},
		{"bad salt", "$argon2id$v=19$m=1024,t=1,p=1$!!!$" + key, ErrInvalidHash},
		{"empty key", "$argon2id$v=19$m=1024,t=1,p=1$" + salt + "$", ErrInvalidHash},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, _, _, err := decodeArgon2(tt.encoded); !errors.Is(err, tt.wantErr) {
				t.Errorf("decodeArgon2 error = %v, want %v", err, tt.wantErr)
			}
			if ok, err := verifyArgon2("anything", tt.encoded); ok || !errors.Is(err, tt.wantErr) {
				t.Errorf("verifyArgon2 = %v, %v; want false, %v", ok, err, tt.wantErr)
			}
		})
	}
}
