// Package archive extracts downloaded client archives. The
// compiler-cache client ships as tar.gz on unix-like platforms and
// zip on Windows; both paths reject entries that would escape the
// destination directory.
package archive
