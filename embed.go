package folio

import "embed"

// EmbeddedAssets contains the static files served under /public/:
// folio.css, nowplaying.js, admin.js and gallery images.
//
//go:embed embedded/*
var EmbeddedAssets embed.FS
