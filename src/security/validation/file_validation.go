package validation

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/GokhanYmn/NakitAkisGrafana/src/logger"
)

// isBinaryContent checks if a buffer contains null bytes or invalid UTF-8,
// which indicate the file is not a text CSV.
func isBinaryContent(buf []byte) bool {
	if bytes.IndexByte(buf, 0) != -1 {
		return true
	}
	// A 1KB window may end inside a multi-byte rune.
	for i := 0; i < utf8.UTFMax && len(buf) > 0 && !utf8.Valid(buf); i++ {
		buf = buf[:len(buf)-1]
	}
	return !utf8.Valid(buf)
}

// ValidateCSVContent inspects the first kilobyte of a seed file and rewinds it.
func ValidateCSVContent(file io.ReadSeeker) error {
	if file == nil {
		return fmt.Errorf("%w: file is nil", ErrValidationFailed)
	}

	buffer := make([]byte, 1024)
	n, err := io.ReadFull(file, buffer)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return fmt.Errorf("failed to read file for content type checking: %w", err)
	}

	// Reset the read pointer so the parser sees the whole file.
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to reset file read pointer: %w", err)
	}

	if n == 0 {
		return fmt.Errorf("%w: file is empty", ErrValidationFailed)
	}

	if isBinaryContent(buffer[:n]) {
		logger.L.Warn("File rejected: Binary content detected in text upload")
		return fmt.Errorf("%w: file appears to be binary, not text/CSV", ErrValidationFailed)
	}

	detected := strings.ToLower(strings.Split(http.DetectContentType(buffer[:n]), ";")[0])
	switch detected {
	case "text/plain", "text/csv", "application/csv":
		logger.L.Debug("File content type validated", "detectedContentType", detected)
		return nil
	}
	logger.L.Warn("Disallowed detected file content type", "detectedContentType", detected)
	return fmt.Errorf("%w: detected file content type '%s' is not allowed", ErrValidationFailed, detected)
}
