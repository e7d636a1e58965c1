// SPDX-License-Identifier: MIT

// Package config loads daemon configuration with the precedence
// ENV > file > defaults. Config files are parsed strictly: unknown
// keys reject the whole file instead of being silently dropped.
package config
