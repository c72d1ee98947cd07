package directory

import (
	"fmt"
	"mime"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"
)

// QR code image bounds in pixels.
const (
	DefaultQRSize = 300
	MinQRSize     = 128
	MaxQRSize     = 1024
)

// ProfileURL returns the shareable profile page URL of an employee.
func ProfileURL(baseURL, id string) string {
	return strings.TrimRight(baseURL, "/") + "/profile/" + url.PathEscape(id)
}

// ClampQRSize bounds size to [MinQRSize, MaxQRSize]. Zero selects DefaultQRSize.
func ClampQRSize(size int) int {
	switch {
	case size == 0:
		return DefaultQRSize
	case size < MinQRSize:
		return MinQRSize
	case size > MaxQRSize:
		return MaxQRSize
	default:
		return size
	}
}

// RenderQRCode encodes content as a square PNG of the given size.
func RenderQRCode(content string, size int) ([]byte, error) {
	png, err := qrcode.Encode(content, qrcode.Medium, ClampQRSize(size))
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return png, nil
}

// QRFilename returns the download name for an employee's QR code.
func QRFilename(fullName string) string {
	name := strings.Join(strings.Fields(fullName), "_")
	if name == "" {
		name = "profile"
	}
	return name + "_QR.png"
}

// QRDisposition returns the Content-Disposition value serving the QR code inline
// under its download name. Quotes and non-ASCII names are encoded.
func QRDisposition(fullName string) string {
	return mime.FormatMediaType("inline", map[string]string{"filename": QRFilename(fullName)})
}
