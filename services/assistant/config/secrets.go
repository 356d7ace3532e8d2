// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/awnumar/memguard"
	"golang.org/x/sys/unix"
)

var (
	memguardInitOnce sync.Once
	mlockSufficient  bool
)

// initSecureMemory checks whether the process can mlock enough memory
// for guarded key storage. Keys still load when it cannot; they just
// lose the swap protection.
func initSecureMemory() {
	memguardInitOnce.Do(func() {
		var limit unix.Rlimit
		if err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &limit); err != nil {
			slog.Warn("Could not read RLIMIT_MEMLOCK, assuming insufficient", "error", err)
			return
		}
		// 1MB covers memguard's guard pages plus a handful of keys.
		mlockSufficient = limit.Cur == unix.RLIM_INFINITY || limit.Cur >= 1<<20
		if !mlockSufficient {
			slog.Warn("RLIMIT_MEMLOCK too low for locked key storage",
				slog.Uint64("limit_bytes", limit.Cur))
		}
		memguard.CatchInterrupt()
	})
}

// Keyring holds provider API keys in memguard enclaves so plaintext
// keys never sit in ordinary heap memory between uses.
//
// Thread Safety: safe for concurrent use after LoadKeys.
type Keyring struct {
	mu   sync.RWMutex
	keys map[string]*memguard.Enclave
}

// LoadKeys reads each provider's API key from its configured
// environment variable and seals it. Providers without a key env are
// skipped; a named but empty env var is an error so a misconfigured
// deployment fails at startup, not on the first request.
func LoadKeys(providers []ProviderConfig) (*Keyring, error) {
	initSecureMemory()

	k := &Keyring{keys: make(map[string]*memguard.Enclave)}
	for _, p := range providers {
		if p.APIKeyEnv == "" {
			continue
		}
		val := os.Getenv(p.APIKeyEnv)
		if val == "" {
			return nil, fmt.Errorf("provider %q: env %s is empty", p.ID, p.APIKeyEnv)
		}
		k.keys[p.ID] = memguard.NewEnclave([]byte(val))
		// Scrub the process environment copy once sealed.
		os.Unsetenv(p.APIKeyEnv)
	}
	return k, nil
}

// Key opens the enclave for a provider and returns the plaintext key.
// The caller must not retain the returned string longer than the call
// that needs it.
func (k *Keyring) Key(providerID string) (string, error) {
	k.mu.RLock()
	enclave, ok := k.keys[providerID]
	k.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("no key loaded for provider %q", providerID)
	}

	buf, err := enclave.Open()
	if err != nil {
		return "", fmt.Errorf("open key for provider %q: %w", providerID, err)
	}
	defer buf.Destroy()
	// Copy out before the locked buffer is destroyed.
	return string(buf.Bytes()), nil
}

// Has reports whether a key was loaded for the provider.
func (k *Keyring) Has(providerID string) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	_, ok := k.keys[providerID]
	return ok
}
