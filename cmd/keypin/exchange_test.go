// Copyright 2026 Jeremy Hahn
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-keypin/pkg/pinexchange"
	"github.com/jeremyhahn/go-keypin/pkg/pinstore"
)

// startExchangeServer runs a pin exchange server distributing url and pin
// and returns its address and public key in hex.
func startExchangeServer(t *testing.T, url, pin string) (string, string) {
	t.Helper()

	key, err := pinexchange.GenerateStaticKey()
	require.NoError(t, err)

	settings := pinstore.Settings{URL: url}
	if pin != "" {
		settings.Pin = &pin
	}
	server, err := pinexchange.NewServer(&pinexchange.ServerConfig{
		ListenAddr: "127.0.0.1:0",
		StaticKey:  key,
		Pins:       pinstore.NewMemoryStore(settings),
	})
	require.NoError(t, err)
	require.NoError(t, server.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Stop(ctx)
	})

	return server.Addr().String(), hex.EncodeToString(key.Public)
}

func TestExchange_Save(t *testing.T) {
	addr, serverKey := startExchangeServer(t, "https://api.example.com", otherPin())
	cfg := tempConfig(t)

	out, err := executeCommand(t, "--config", cfg, "exchange", "--server", addr, "--server-key", serverKey, "--save")
	require.NoError(t, err)
	assert.Equal(t, "URL: https://api.example.com\nPin: "+otherPin()+"\n", out)

	store, err := pinstore.OpenFile(cfg, nil)
	require.NoError(t, err)
	saved, ok := store.LookupPin()
	assert.True(t, ok)
	assert.Equal(t, otherPin(), saved)
	assert.Equal(t, "https://api.example.com", store.URL())
}

func TestExchange_NoPinOnServer(t *testing.T) {
	addr, serverKey := startExchangeServer(t, "", "")

	_, err := executeCommand(t, "--config", tempConfig(t), "exchange", "--server", addr, "--server-key", serverKey)
	assert.ErrorIs(t, err, ErrRequestFailed)
}

func TestExchange_WrongServerKey(t *testing.T) {
	addr, _ := startExchangeServer(t, "", otherPin())
	impostor, err := pinexchange.GenerateStaticKey()
	require.NoError(t, err)

	_, err = executeCommand(t, "--config", tempConfig(t), "exchange",
		"--server", addr, "--server-key", hex.EncodeToString(impostor.Public))
	assert.ErrorIs(t, err, ErrRequestFailed)
}

func TestExchange_InvalidInput(t *testing.T) {
	cfg := tempConfig(t)

	_, err := executeCommand(t, "--config", cfg, "exchange", "--server-key", "00")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = executeCommand(t, "--config", cfg, "exchange", "--server", "127.0.0.1:1")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = executeCommand(t, "--config", cfg, "exchange", "--server", "127.0.0.1:1", "--server-key", "zz")
	assert.ErrorIs(t, err, ErrKeyOperation)
}
