package config

// Version is the cobuy binary version.
// Set at build time via: -ldflags "-X github.com/persistorai/cobuy/internal/config.Version=<tag>"
// Defaults to "dev" when built without ldflags.
var Version = "dev"
