// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the configuration shared by the clustermetrics
// commands: the OpenTSDB destination, the Prometheus push gateway and
// logging.
//
// Configuration comes from a single file named by the
// CLUSTERMETRICS_CONFIG environment variable or a --config flag. There
// is no search path. The file format follows the extension:
//
//   - .yaml, .yml -- YAML
//   - .json, .jsonc -- JSON, with comments and trailing commas allowed
//   - .ini -- sections [opentsdb], [prometheus] and [log], the layout
//     the cluster's existing tools use
//
// Fields absent from the file keep the values from [Default]. The host
// and push gateway fields expand ${VAR} and ${VAR:-default} from the
// environment after loading, so one file can serve several nodes.
//
// Command-line flags override file values; that merge happens in the
// commands, not here.
package config
