// Package system contains helpers that depend on the host OS.
package system
