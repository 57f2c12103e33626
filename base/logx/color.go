// Copyright (c) 2023, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package logx

import (
	"log/slog"

	"github.com/muesli/termenv"
)

// UseColor is whether to use color in log messages. It is on by default.
var UseColor = true

// colorProfile is the termenv color profile, stored globally for convenience.
// It is set by [InitColor] if [UseColor] is true.
var colorProfile termenv.Profile

// InitColor sets up the terminal environment for color output. It is called
// automatically in an init function. Call it again after running a system
// command that may have reset terminal state.
func InitColor() {
	restoreFunc, err := termenv.EnableVirtualTerminalProcessing(termenv.DefaultOutput())
	if err != nil {
		slog.Warn("error enabling virtual terminal processing for colored output on Windows", "error", err)
	}
	_ = restoreFunc
	colorProfile = termenv.ColorProfile()
}

// ApplyColor applies the given ANSI color to the given string and returns
// the resulting string. If [UseColor] is false, it just returns str.
func ApplyColor(clr termenv.Color, str string) string {
	if !UseColor {
		return str
	}
	return termenv.String(str).Foreground(clr).String()
}

// LevelColor applies the color associated with the given level to the
// given string and returns the resulting string.
func LevelColor(level slog.Level, str string) string {
	switch level {
	case slog.LevelDebug:
		return DebugColor(str)
	case slog.LevelInfo:
		return InfoColor(str)
	case slog.LevelWarn:
		return WarnColor(str)
	case slog.LevelError:
		return ErrorColor(str)
	}
	return str
}

// DebugColor applies the debug-level color (cyan) to str.
func DebugColor(str string) string {
	return ApplyColor(colorProfile.Color("#00AFAF"), str)
}

// InfoColor applies the info-level color to str. Info is unstyled by
// default to keep normal output readable.
func InfoColor(str string) string {
	return str
}

// WarnColor applies the warn-level color (yellow) to str.
func WarnColor(str string) string {
	return ApplyColor(colorProfile.Color("#D78700"), str)
}

// ErrorColor applies the error-level color (red) to str.
func ErrorColor(str string) string {
	return ApplyColor(colorProfile.Color("#D70000"), str)
}

// SuccessColor applies the success color (green) to str.
func SuccessColor(str string) string {
	return ApplyColor(colorProfile.Color("#5FAF00"), str)
}
