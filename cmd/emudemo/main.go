// Copyright (c) 2024, Cogent Core. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command emudemo boots a headless Vulkan device, submits a write and a
// read through the render command submission engine, and reports
// whether the data round-tripped.
package main

import (
	"bytes"
	"os"
	"time"

	"github.com/coregpu/emureno/base/logx"
	"github.com/coregpu/emureno/emulator"
	"github.com/coregpu/emureno/vkgpu"
)

func main() {
	gp, dev, err := vkgpu.NewHeadlessDevice("emudemo")
	if err != nil {
		logx.PrintlnError("emudemo: creating headless device:", err)
		os.Exit(1)
	}
	defer gp.Release()
	defer dev.Destroy()

	e, err := emulator.New(dev)
	if err != nil {
		logx.PrintlnError("emudemo: creating engine:", err)
		os.Exit(1)
	}
	defer e.ShutdownWait()

	const size = 4096
	buf, err := e.CreatePersistentBuffer(size)
	if err != nil {
		logx.PrintlnError("emudemo: creating buffer:", err)
		os.Exit(1)
	}
	defer buf.Destroy()

	want := bytes.Repeat([]byte{0xab}, size)
	if _, err := e.CmdWriteBuffer(buf, 0, want); err != nil {
		logx.PrintlnError("emudemo: writing buffer:", err)
		os.Exit(1)
	}

	got := make([]byte, size)
	token, err := e.CmdReadBuffer(buf, 0, got)
	if err != nil {
		logx.PrintlnError("emudemo: reading buffer:", err)
		os.Exit(1)
	}
	if err := token.AwaitTimeout(5 * time.Second); err != nil {
		logx.PrintlnError("emudemo: awaiting read:", err)
		os.Exit(1)
	}

	if !bytes.Equal(want, got) {
		logx.PrintlnError("emudemo: round-trip mismatch")
		os.Exit(1)
	}
	logx.PrintlnInfo("emudemo: round-tripped", size, "bytes successfully")
}
