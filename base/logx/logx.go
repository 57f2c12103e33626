// Copyright (c) 2023, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package logx provides simple utilities for colored, leveled console
// logging on top of [log/slog].
package logx

// UserLevel is the minimum level of message that will be printed by
// [Print], [Println], and [Printf]. It defaults to [defaultUserLevel],
// which differs between debug and release builds.
var UserLevel = defaultUserLevel

func init() {
	if UseColor {
		InitColor()
	}
}
