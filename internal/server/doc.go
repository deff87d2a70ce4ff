// Copyright 2026 Gateway Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package server manages the HTTP/HTTPS listener lifecycle: non-blocking
start, graceful shutdown, and signal-driven process wait.

Manager wraps net/http.Server with unified start, serve, shutdown and
error-propagation handling. It supports both plain HTTP and TLS
listeners and includes built-in SIGINT/SIGTERM handling for graceful
stop in production.

# Core types

  - Manager: holds the http.Server, its net.Listener and an async error
    channel, exposing Start/StartTLS/Shutdown/WaitForShutdown.
  - Config: listen address, read/write/idle timeouts, max header size,
    and the graceful-shutdown timeout.

# Capabilities

  - Non-blocking start: Start/StartTLS serve in a background goroutine.
  - Graceful shutdown: Shutdown drains in-flight requests within the
    configured timeout.
  - Signal handling: WaitForShutdown listens for SIGINT/SIGTERM and
    triggers Shutdown automatically.
  - Error propagation: Errors() returns an async channel for callers to
    monitor listener failures.
  - TLS support via StartTLS with an explicit cert/key pair.
  - IsRunning/Addr report current listener state.
*/
package server
