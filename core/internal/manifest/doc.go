// Package manifest reads the text manifests of a CASC installation: the
// top-level build info table and the key=value configuration files stored
// under the data directory.
package manifest
