// Package tgui provides small Telegram HTML helpers:
//   - Escaping and inline tags for ParseMode="HTML"
//   - A message builder producing text + send options
//
// Everything written through the builder is escaped unless it goes through
// RawLine.
package tgui
