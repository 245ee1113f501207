// Package version reports the wonderwhisper build.
//
// The release and commit are stamped at link time and otherwise read from
// the module build info:
//
//	go build -ldflags "-X github.com/kbukum/wonderwhisper/version.Version=0.4.0" ./cmd/wonderwhisper
package version
