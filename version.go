package main

import "strings"

// Set via -ldflags "-X main.buildVersion=... -X main.buildCommit=...".
var (
	buildVersion = "dev"
	buildCommit  = ""
)

func versionString() string {
	v := strings.TrimSpace(buildVersion)
	if v == "" {
		v = "dev"
	}
	c := strings.TrimSpace(buildCommit)
	if len(c) > 7 {
		c = c[:7]
	}
	if v == "dev" && c != "" {
		return v + "-" + c
	}
	return v
}
