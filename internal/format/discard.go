package format

import (
	"context"
	"log/slog"
)

// discardHandler drops every record; parsing stays silent unless a logger
// is injected.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// DiscardLogger returns a logger that drops everything, for parsers that
// want structured diagnostics but run silent by default.
func DiscardLogger() *slog.Logger { return slog.New(discardHandler{}) }
