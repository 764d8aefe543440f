package spacetraveling

import "embed"

// EmbeddedAssets contains static assets shipped with the site:
// styles.css and favicon.svg.
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
