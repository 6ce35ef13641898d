// Package platform wraps operating system specific file access.
package platform
