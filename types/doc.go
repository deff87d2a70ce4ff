// Copyright 2026 Gateway Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package types holds the handful of value types shared by every other
gateway package: the canonical Message shape, a structured Error carrier,
and context.Context helpers for trace id, tenant id, user id and admin
roles. Nothing here imports another gateway package, so every package is
free to depend on types without risking an import cycle.
*/
package types
