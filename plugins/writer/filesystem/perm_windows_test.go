//go:build windows

package filesystem

func runtimeHasUnixPerms() bool { return false }
