// Copyright 2026 Gateway Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package metrics provides the gateway's Prometheus metrics collector,
covering the HTTP surface and the dispatch, selection and health-probe
internals specific to routing chat completions across providers.

Every metric is registered through Collector using promauto, so callers
never manage a Registry directly. Metrics are namespaced and labeled for
per-route, per-provider breakdowns in Grafana or any other Prometheus
consumer.

# Core types

  - Collector: holds every Counter, Histogram and Gauge the gateway
    exports, grouped by HTTP, dispatch, selection and health-probe
    concerns.

# Metric groups

  - HTTP: request count, latency, request/response size, labeled by
    method/path/status with status bucketed into 2xx/3xx/4xx/5xx.
  - Dispatch: request count and latency by provider/model/status, token
    counts as providers report them, and retry counts labeled by the
    error kind that triggered the failover.
  - Selection: a count of Selector picks by route and chosen provider.
  - Health: a live gauge of provider eligibility and a histogram of
    probe round-trip latency.
*/
package metrics
