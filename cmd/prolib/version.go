package main

import "runtime/debug"

// version is overridden at link time with -ldflags "-X main.version=..."
var version = "dev"

func getVersionString() string {
	if version != "dev" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return version
}
