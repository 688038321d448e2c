//go:build !linux

package main

import "github.com/kaiju-coding/codejudge/cmd/codejudge/config"

func initCgroupMetrics(*config.Config, map[string]any) {}
