// Package web holds the page templates and static assets compiled into the binary.
package web

import "embed"

// TemplatesFS holds every page and partial template.
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS holds app.css and app.js, served under /static/.
//go:embed static/*
var StaticFS embed.FS
