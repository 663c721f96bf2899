// Package version carries the build version of netmanager. The client
// reports it in its default User-Agent header.
//
// Version and GitCommit are set at compile time via -ldflags:
//
//	go build -ldflags "-X github.com/kbukum/netmanager/version.Version=1.2.0"
package version
