// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetConfigEmpty(t *testing.T) {
	require := require.New(t)

	cfg, err := GetConfig(nil)
	require.NoError(err)
	require.Equal(Default, *cfg)

	cfg, err = GetConfig([]byte(`{}`))
	require.NoError(err)
	require.Equal(Default, *cfg)
}

func TestGetConfigOverride(t *testing.T) {
	require := require.New(t)

	cfg, err := GetConfig([]byte(`{"validator-count": 21, "bonding-duration": 28}`))
	require.NoError(err)
	require.Equal(uint32(21), cfg.ValidatorCount)
	require.Equal(uint32(28), cfg.BondingDuration)
	// untouched fields keep defaults
	require.Equal(Default.SessionsPerEra, cfg.SessionsPerEra)
	require.Equal(Default.SlashDeferDuration, cfg.SlashDeferDuration)
}

func TestGetConfigInvalid(t *testing.T) {
	_, err := GetConfig([]byte(`{"validator-count": `))
	require.Error(t, err)
}
