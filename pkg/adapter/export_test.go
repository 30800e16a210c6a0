package adapter

import "io"

// CloseUnderlyingFile makes subsequent writes to a file storage writer fail
func CloseUnderlyingFile(w io.WriteCloser) error {
	return w.(*fileWriter).file.Close()
}
