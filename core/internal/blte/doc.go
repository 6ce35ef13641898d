// Package blte decodes stored regions of CASC data files.
//
// A region starts with a 30 byte container header followed by BLTE content:
// a "BLTE" preamble, an optional chunk table, and the encoded chunks. Each
// chunk is either raw ('N') or zlib compressed ('Z'). BankStream yields the
// decoded chunks in order into caller supplied buffers.
package blte
