// Package casc reads local CASC archive installations.
//
// An installation directory holds a .build.info file naming the active
// build configuration and a data directory (usually Data) with bucket
// indexes, numbered data files and configuration files. [Open] ties these
// together; the lower layers live in the [core] subpackage.
//
// # Quick Start
//
// Open an installation and read a file by its native path:
//
//	archive, err := casc.Open("/games/example/Data")
//	if err != nil {
//	    return err
//	}
//	defer archive.Close()
//	content, err := archive.ReadPath(`data\global\excel\armor.txt`)
//
// Archive also implements fs.FS over lower-cased, slash-separated paths, so
// the standard library can walk it:
//
//	err = fs.WalkDir(archive, ".", func(p string, d fs.DirEntry, err error) error {
//	    fmt.Println(p)
//	    return err
//	})
//
// # Caching
//
// Decoding zlib chunks dominates read cost. [WithCache] keeps decoded
// contents keyed by encoding key, either in memory or on disk:
//
//	c, err := disk.New("/var/cache/casc")
//	if err != nil {
//	    return err
//	}
//	archive, err := casc.Open(dataDir, casc.WithCache(c))
//
// # Extraction
//
// [Archive.Extract] writes every file present in storage below a directory,
// decoding files in parallel.
package casc
