package app

import (
	"testing"
	"time"

	"github.com/JustJay7/ecourts-extractor/internal/config"
	"github.com/JustJay7/ecourts-extractor/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig() *config.Config {
	return &config.Config{
		CacheSize:        10,
		CourtTimezone:    time.UTC,
		RequestTimeout:   time.Second,
		UserAgents:       []string{"ua-1", "ua-2"},
		IdentityPolicy:   "round_robin",
		TesseractPath:    "tesseract",
		CaptchaCharset:   "digits",
		BackoffBase:      100 * time.Millisecond,
		BackoffCap:       time.Second,
		MaxAttempts:      2,
		QueryTimeout:     10 * time.Second,
		CaseCacheTTL:     time.Minute,
		HighCourtBaseURL: "https://hc.example/hcservices",
	}
}

func TestNewFromPortalsFile(t *testing.T) {
	cfg := baseConfig()
	cfg.PortalsFile = "../../configs/portals.example.yaml"

	a, err := New(cfg, logger.NewNop())
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []string{"delhi_hc", "delhi_district"}, a.Engine.Adapters(), "disabled portals are skipped")
	assert.Equal(t, 2, a.Identity.Size())
	assert.True(t, a.Documents.Allowed("https://main.sci.gov.in/judgment/1.pdf"))
	assert.False(t, a.Documents.Allowed("https://example.org/x.pdf"))
}

func TestNewFromBaseURLs(t *testing.T) {
	a, err := New(baseConfig(), logger.NewNop())
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, []string{"high_court"}, a.Engine.Adapters())
	assert.True(t, a.Documents.Allowed("https://hc.example/pdf/1.pdf"))
}

func TestNewRequiresPortals(t *testing.T) {
	cfg := baseConfig()
	cfg.HighCourtBaseURL = ""
	_, err := New(cfg, logger.NewNop())
	assert.Error(t, err)

	cfg = baseConfig()
	cfg.IdentityPolicy = "sticky"
	_, err = New(cfg, logger.NewNop())
	assert.Error(t, err)
}
