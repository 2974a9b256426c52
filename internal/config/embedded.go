package config

// EmbeddedTMDBKey is injected at build time via ldflags and serves as the
// default identifier provider key. Environment variables and the config file
// override it.
//
// Build with:
//
//	go build -ldflags "-X 'github.com/slipstream/mediabridge/internal/config.EmbeddedTMDBKey=xxx'"
var EmbeddedTMDBKey string
