package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/config"
	"github.com/MorseWayne/storefront/internal/payment"
)

func TestLoadLocation(t *testing.T) {
	loc, err := loadLocation("")
	require.NoError(t, err)
	assert.Equal(t, "UTC", loc.String())

	loc, err = loadLocation("Asia/Kolkata")
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", loc.String())

	_, err = loadLocation("Mars/Olympus")
	assert.Error(t, err)
}

func TestNewGateway(t *testing.T) {
	lg := zap.NewNop()

	cfg := &config.Config{}
	cfg.App.Env = "dev"
	gw, err := newGateway(cfg, lg)
	require.NoError(t, err)
	_, isFake := gw.(*payment.Fake)
	assert.True(t, isFake, "dev without keys uses the local gateway")

	cfg.App.Env = "prod"
	_, err = newGateway(cfg, lg)
	assert.Error(t, err, "prod requires real keys")

	cfg.Payment = config.PaymentConfig{KeyID: "rzp_test", KeySecret: "s3cret", Currency: "INR"}
	gw, err = newGateway(cfg, lg)
	require.NoError(t, err)
	_, isRazorpay := gw.(*payment.Razorpay)
	assert.True(t, isRazorpay)
}

func TestInitCache_MemoryFallback(t *testing.T) {
	cfg := &config.Config{}
	cfg.Cache.Enabled = true
	cfg.Cache.Type = "bogus"

	c, client := initCache(cfg, zap.NewNop())
	require.NotNil(t, c)
	assert.Nil(t, client)

	cfg.Cache.Enabled = false
	c, client = initCache(cfg, zap.NewNop())
	require.NotNil(t, c)
	assert.Nil(t, client)
}
