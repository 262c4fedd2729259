// Package sliceutil holds small generic slice helpers.
package sliceutil

// ChunkWithSize splits slice into consecutive chunks of at most chunkSize
// elements, preserving order. The chunks share the backing array. An empty
// slice yields no chunks; a chunkSize below 1 yields the slice as one chunk.
func ChunkWithSize[T any](slice []T, chunkSize int) [][]T {
	if len(slice) == 0 {
		return nil
	}
	if chunkSize < 1 {
		return [][]T{slice}
	}
	chunks := make([][]T, 0, (len(slice)+chunkSize-1)/chunkSize)
	for i := 0; i < len(slice); i += chunkSize {
		end := min(i+chunkSize, len(slice))
		chunks = append(chunks, slice[i:end])
	}
	return chunks
}
