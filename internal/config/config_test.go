package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Server.Addr() != "localhost:8080" {
		t.Errorf("server addr = %s", cfg.Server.Addr())
	}
	if cfg.Server.Timeout != 30*time.Second {
		t.Errorf("server timeout = %v", cfg.Server.Timeout)
	}
	if cfg.Store.Kind != StoreFile {
		t.Errorf("store kind = %q, want file", cfg.Store.Kind)
	}
	if cfg.Render.Dimension != 256 {
		t.Errorf("render dimension = %d, want 256", cfg.Render.Dimension)
	}
	if cfg.Render.Placeholder != "fill" {
		t.Errorf("render placeholder = %q, want fill", cfg.Render.Placeholder)
	}
	if cfg.Cache.Enabled {
		t.Error("cache enabled by default")
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	t.Setenv("DRAPE_SERVER_PORT", "9090")
	t.Setenv("DRAPE_STORE_BASE_URL", "https://images.example.com")

	v := viper.New()
	v.SetConfigType("yaml")
	err := v.ReadConfig(strings.NewReader(`
store:
  kind: http
  timeout: 5s
cache:
  enabled: true
  addr: valkey:6379
  ttl: 1m
render:
  dimension: 512
  placeholder: blank
overlays:
  - id: Honolulu
    descriptor:
      anchor: {lat: 21.334011, lng: -157.866301}
      width_meters: 2800
      rotation_degrees: 12.5
      aspect_width: 4000
      aspect_height: 3000
    source:
      bucket: maps
      key: honolulu.png
`))
	if err != nil {
		t.Fatalf("ReadConfig error: %v", err)
	}

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("server port = %d, want env override 9090", cfg.Server.Port)
	}
	if cfg.Store.Kind != StoreHTTP || cfg.Store.BaseURL != "https://images.example.com" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Store.Timeout != 5*time.Second {
		t.Errorf("store timeout = %v, want 5s", cfg.Store.Timeout)
	}
	if !cfg.Cache.Enabled || cfg.Cache.TTL != time.Minute {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.Render.Dimension != 512 || cfg.Render.Placeholder != "blank" {
		t.Errorf("render = %+v", cfg.Render)
	}

	if len(cfg.Overlays) != 1 {
		t.Fatalf("overlays = %d, want 1", len(cfg.Overlays))
	}
	o := cfg.Overlays[0]
	if o.ID != "Honolulu" {
		t.Errorf("overlay id = %q", o.ID)
	}
	if o.Descriptor.Anchor.Lat != 21.334011 || o.Descriptor.WidthMeters != 2800 || o.Descriptor.RotationDegrees != 12.5 {
		t.Errorf("descriptor = %+v", o.Descriptor)
	}
	if o.Descriptor.AspectWidth != 4000 || o.Descriptor.AspectHeight != 3000 {
		t.Errorf("aspect = %vx%v", o.Descriptor.AspectWidth, o.Descriptor.AspectHeight)
	}
	if o.Source.String() != "maps/honolulu.png" {
		t.Errorf("source = %s", o.Source)
	}
}

func TestValidateCollectsErrors(t *testing.T) {
	cfg, err := Load(viper.New())
	if err != nil {
		t.Fatal(err)
	}

	cfg.Server.Port = 0
	cfg.Store.Kind = "s3"
	cfg.Cache = CacheConfig{Enabled: true}
	cfg.Render.Dimension = 0
	cfg.Render.Placeholder = "checkerboard"
	cfg.Render.Interpolation = "lanczos"

	err = cfg.Validate()
	if err == nil {
		t.Fatal("Validate accepted an invalid config")
	}
	for _, want := range []string{
		"server.port",
		"store.kind",
		"cache.addr",
		"cache.ttl",
		"render.dimension",
		"render.placeholder",
		"render.interpolation",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("validation error does not mention %s:\n%v", want, err)
		}
	}
}

func TestValidateHTTPStoreNeedsBaseURL(t *testing.T) {
	cfg, err := Load(viper.New())
	if err != nil {
		t.Fatal(err)
	}
	cfg.Store.Kind = StoreHTTP
	cfg.Store.BaseURL = ""
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "store.base_url") {
		t.Errorf("Validate error = %v, want store.base_url complaint", err)
	}
}
