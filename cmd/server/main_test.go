package main

import (
	"testing"

	"vendarapida/backend/internal/config"
)

func TestValidateSecurityConfigRejectsWeakValues(t *testing.T) {
	cases := []config.Config{
		{AuthSecret: "short", OperatorEmail: "dona@tendaselonas.com", OperatorPassword: "segredo-forte-123"},
		{AuthSecret: "0123456789abcdef0123456789abcdef", OperatorEmail: "", OperatorPassword: "segredo-forte-123"},
		{AuthSecret: "0123456789abcdef0123456789abcdef", OperatorEmail: "dona@tendaselonas.com", OperatorPassword: ""},
		{AuthSecret: "0123456789abcdef0123456789abcdef", OperatorEmail: "dona@tendaselonas.com", OperatorPassword: "curta"},
		{AuthSecret: "0123456789abcdef0123456789abcdef", OperatorEmail: "dona@tendaselonas.com", OperatorPassword: "12345678"},
		{AuthSecret: "0123456789abcdef0123456789abcdef", OperatorEmail: "dona@tendaselonas.com", OperatorPassword: "aaaaaaaa"},
	}
	for i, cfg := range cases {
		if err := validateSecurityConfig(cfg); err == nil {
			t.Fatalf("case %d: expected weak security config to be rejected", i)
		}
	}
}

func TestValidateSecurityConfigAcceptsStrongValues(t *testing.T) {
	err := validateSecurityConfig(config.Config{
		AuthSecret:       "0123456789abcdef0123456789abcdef",
		OperatorEmail:    "dona@tendaselonas.com",
		OperatorPassword: "segredo-forte-123",
	})
	if err != nil {
		t.Fatalf("expected strong config to pass, got %v", err)
	}
}

func TestValidateSecurityConfigAcceptsBcryptHash(t *testing.T) {
	err := validateSecurityConfig(config.Config{
		AuthSecret:       "0123456789abcdef0123456789abcdef",
		OperatorEmail:    "dona@tendaselonas.com",
		OperatorPassword: "$2b$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy",
	})
	if err != nil {
		t.Fatalf("expected bcrypt hash to pass, got %v", err)
	}
}
